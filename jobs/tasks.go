package jobs

import (
	"context"
	"encoding/json"

	"github.com/hibiken/asynq"

	"github.com/mcaceresg1/ledger-reports/internal/balance"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskSnapshotRefresh rebuilds one tenant's trial-balance snapshot.
	TaskSnapshotRefresh = "tb:refresh"
	// TaskSnapshotRefreshAll rebuilds every tenant snapshot against its
	// last materialized window.
	TaskSnapshotRefreshAll = "tb:refresh_all"
)

// SnapshotRefreshPayload names the tenant and window to rebuild.
type SnapshotRefreshPayload struct {
	Tenant     string `json:"tenant"`
	StartDate  string `json:"startDate"`
	EndDate    string `json:"endDate"`
	Book       string `json:"book"`
	ReportType string `json:"reportType"`
}

// refreshPayload flattens a report window into the wire payload consumed by
// the worker.
func refreshPayload(tenantCode string, w balance.Window) SnapshotRefreshPayload {
	return SnapshotRefreshPayload{
		Tenant:     tenantCode,
		StartDate:  w.Start.Format("2006-01-02"),
		EndDate:    w.End.Format("2006-01-02"),
		Book:       string(w.Book),
		ReportType: string(w.ReportType),
	}
}

// NewSnapshotRefreshTask constructs the refresh task.
func NewSnapshotRefreshTask(payload SnapshotRefreshPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskSnapshotRefresh, data), nil
}

// NewSnapshotRefreshAllTask constructs the refresh-all task.
func NewSnapshotRefreshAllTask() *asynq.Task {
	return asynq.NewTask(TaskSnapshotRefreshAll, nil)
}

// Client submits jobs to the queue.
type Client struct {
	client *asynq.Client
}

// NewClient constructs an Asynq client.
func NewClient(redisOpts asynq.RedisClientOpt) *Client {
	return &Client{client: asynq.NewClient(redisOpts)}
}

// EnqueueSnapshotRefresh queues one tenant refresh.
func (c *Client) EnqueueSnapshotRefresh(ctx context.Context, payload SnapshotRefreshPayload) (*asynq.TaskInfo, error) {
	task, err := NewSnapshotRefreshTask(payload)
	if err != nil {
		return nil, err
	}
	return c.client.EnqueueContext(ctx, task, asynq.Queue(QueueDefault))
}

// EnqueueRefresh queues a rebuild of one tenant's snapshot for the given
// window and returns the task id. It satisfies balance.Enqueuer.
func (c *Client) EnqueueRefresh(ctx context.Context, tenantCode string, w balance.Window) (string, error) {
	info, err := c.EnqueueSnapshotRefresh(ctx, refreshPayload(tenantCode, w))
	if err != nil {
		return "", err
	}
	return info.ID, nil
}

// Close releases the underlying connection.
func (c *Client) Close() error {
	return c.client.Close()
}
