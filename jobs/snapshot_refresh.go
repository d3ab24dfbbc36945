package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/mcaceresg1/ledger-reports/internal/balance"
	jobmetrics "github.com/mcaceresg1/ledger-reports/internal/jobs"
	"github.com/mcaceresg1/ledger-reports/internal/tenant"
)

// SnapshotRefreshJob rebuilds trial-balance snapshots in the background.
type SnapshotRefreshJob struct {
	Materializer *balance.Materializer
	Store        balance.SnapshotStore
	Tenants      *tenant.Repository
	Metrics      *jobmetrics.Metrics
	Logger       *slog.Logger
}

// NewSnapshotRefreshJob initialises the refresh handler.
func NewSnapshotRefreshJob(mat *balance.Materializer, store balance.SnapshotStore, repo *tenant.Repository, metrics *jobmetrics.Metrics, logger *slog.Logger) *SnapshotRefreshJob {
	return &SnapshotRefreshJob{Materializer: mat, Store: store, Tenants: repo, Metrics: metrics, Logger: logger}
}

// Handle rebuilds one tenant's snapshot for the window in the payload.
func (j *SnapshotRefreshJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Materializer == nil {
		return errors.New("snapshot refresh: handler not configured")
	}
	var payload SnapshotRefreshPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	start, err := time.Parse("2006-01-02", payload.StartDate)
	if err != nil {
		return asynq.SkipRetry
	}
	end, err := time.Parse("2006-01-02", payload.EndDate)
	if err != nil {
		return asynq.SkipRetry
	}
	window := balance.Window{
		Start:      start,
		End:        end,
		Book:       balance.Book(payload.Book),
		ReportType: balance.ReportType(payload.ReportType),
	}
	if err := window.Validate(); err != nil {
		return asynq.SkipRetry
	}

	began := time.Now()
	tracker := j.Metrics.Track(TaskSnapshotRefresh)
	run, err := j.Materializer.Materialize(ctx, payload.Tenant, window)
	if err = tracker.End(err); err != nil {
		j.Logger.Error("snapshot refresh failed",
			slog.String("tenant", payload.Tenant), slog.Any("error", err))
		return err
	}
	j.Metrics.SetSnapshotRows(payload.Tenant, run.Rows)
	j.Logger.Info("snapshot refreshed",
		slog.String("tenant", payload.Tenant),
		slog.String("window", run.Fingerprint),
		slog.Int("rows", run.Rows),
		slog.Duration("duration", time.Since(began)),
	)
	return nil
}

// HandleAll re-materializes every tenant that already has a snapshot,
// reusing the window its current snapshot was generated for. Tenants that
// never generated a report are skipped; there is no window to rebuild.
func (j *SnapshotRefreshJob) HandleAll(ctx context.Context, _ *asynq.Task) error {
	if j == nil || j.Materializer == nil || j.Tenants == nil {
		return errors.New("snapshot refresh: handler not configured")
	}
	tracker := j.Metrics.Track(TaskSnapshotRefreshAll)
	tenants, err := j.Tenants.List(ctx)
	if err != nil {
		return tracker.End(err)
	}

	var failed int
	for _, t := range tenants {
		if !t.ValidSchema() {
			j.Logger.Warn("skipping tenant with unsafe schema", slog.String("tenant", t.Code))
			continue
		}
		meta, ok, err := j.Store.SnapshotMeta(ctx, t.Schema)
		if err != nil {
			j.Logger.Error("read snapshot meta", slog.String("tenant", t.Code), slog.Any("error", err))
			failed++
			continue
		}
		if !ok {
			continue
		}
		window, err := balance.ParseFingerprint(meta.Fingerprint)
		if err != nil {
			j.Logger.Error("unreadable snapshot fingerprint",
				slog.String("tenant", t.Code), slog.String("fingerprint", meta.Fingerprint))
			failed++
			continue
		}
		run, err := j.Materializer.Materialize(ctx, t.Code, window)
		if err != nil {
			j.Logger.Error("snapshot refresh failed",
				slog.String("tenant", t.Code), slog.Any("error", err))
			failed++
			continue
		}
		j.Metrics.SetSnapshotRows(t.Code, run.Rows)
	}
	if failed > 0 {
		j.Logger.Warn("snapshot refresh-all finished with failures", slog.Int("failed", failed))
	}
	return tracker.End(nil)
}
