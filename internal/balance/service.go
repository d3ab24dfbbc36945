package balance

import (
	"context"
	"fmt"

	"github.com/mcaceresg1/ledger-reports/internal/shared"
)

const (
	defaultPageSize = 25
	maxPageSize     = 1000
	defaultExport   = 10000
	maxExport       = 50000
)

// SnapshotReader is the read surface the service queries pages through.
type SnapshotReader interface {
	CountSnapshot(ctx context.Context, schema string, f Filters) (int, error)
	QuerySnapshot(ctx context.Context, schema string, f Filters, limit, offset int) ([]SnapshotRow, error)
	SnapshotExists(ctx context.Context, schema string) (bool, error)
}

// Page is one page of the trial balance plus its provenance.
type Page struct {
	Rows        []SnapshotRow     `json:"rows"`
	Pagination  shared.Pagination `json:"pagination"`
	Fingerprint string            `json:"fingerprint"`
	Refreshed   bool              `json:"refreshed"`
}

// QueryRequest carries one report read.
type QueryRequest struct {
	Tenant   string
	Window   Window
	Filters  Filters
	Page     int
	PageSize int
}

// ExportRequest carries one spreadsheet export. Exports always cover the
// full snapshot up to the row cap, never a filtered subset.
type ExportRequest struct {
	Tenant string
	Window Window
	Limit  int
}

// Service answers report reads against materialized snapshots, generating
// them on demand when missing or stale.
type Service struct {
	mat     *Materializer
	tenants TenantResolver
	reader  SnapshotReader
	cache   *Cache
}

// NewService constructs Service.
func NewService(mat *Materializer, tenants TenantResolver, reader SnapshotReader, cache *Cache) *Service {
	return &Service{mat: mat, tenants: tenants, reader: reader, cache: cache}
}

func clamp(v, def, max int) int {
	if v <= 0 {
		return def
	}
	if v > max {
		return max
	}
	return v
}

// Query returns one page of the trial balance for the requested window. The
// snapshot is rebuilt first when it does not match the window; a matching
// snapshot is served as is, from the page cache when possible.
func (s *Service) Query(ctx context.Context, req QueryRequest) (Page, error) {
	run, refreshed, err := s.mat.Ensure(ctx, req.Tenant, req.Window)
	if err != nil {
		return Page{}, err
	}
	t, err := s.tenants.Resolve(ctx, req.Tenant)
	if err != nil {
		return Page{}, err
	}

	page := req.Page
	if page <= 0 {
		page = 1
	}
	pageSize := clamp(req.PageSize, defaultPageSize, maxPageSize)

	load := func(ctx context.Context) (interface{}, error) {
		total, err := s.reader.CountSnapshot(ctx, t.Schema, req.Filters)
		if err != nil {
			return nil, fmt.Errorf("balance: count snapshot: %w", err)
		}
		p := shared.NewPagination(page, pageSize, total)
		rows, err := s.reader.QuerySnapshot(ctx, t.Schema, req.Filters, p.PageSize, p.Offset())
		if err != nil {
			return nil, fmt.Errorf("balance: query snapshot: %w", err)
		}
		if rows == nil {
			rows = []SnapshotRow{}
		}
		return Page{Rows: rows, Pagination: p, Fingerprint: run.Fingerprint}, nil
	}

	var out Page
	key := PageKey(t.Code, run.Fingerprint, req.Filters, page, pageSize)
	if err := s.cache.FetchJSON(ctx, key, &out, load); err != nil {
		return Page{}, err
	}
	out.Refreshed = refreshed
	return out, nil
}

// Export returns up to req.Limit snapshot rows for spreadsheet rendering,
// always starting from the first row. It never reads the page cache; export
// row sets are too large to be worth keeping hot.
func (s *Service) Export(ctx context.Context, req ExportRequest) ([]SnapshotRow, Run, error) {
	run, _, err := s.mat.Ensure(ctx, req.Tenant, req.Window)
	if err != nil {
		return nil, Run{}, err
	}
	t, err := s.tenants.Resolve(ctx, req.Tenant)
	if err != nil {
		return nil, Run{}, err
	}
	limit := clamp(req.Limit, defaultExport, maxExport)
	rows, err := s.reader.QuerySnapshot(ctx, t.Schema, Filters{}, limit, 0)
	if err != nil {
		return nil, Run{}, fmt.Errorf("balance: export snapshot: %w", err)
	}
	return rows, run, nil
}

// Snapshot reads the current snapshot page without regenerating, for callers
// that want whatever was last materialized. Missing snapshots surface
// ErrSnapshotMissing.
func (s *Service) Snapshot(ctx context.Context, tenantCode string, f Filters, page, pageSize int) (Page, error) {
	t, err := s.tenants.Resolve(ctx, tenantCode)
	if err != nil {
		return Page{}, err
	}
	exists, err := s.reader.SnapshotExists(ctx, t.Schema)
	if err != nil {
		return Page{}, err
	}
	if !exists {
		return Page{}, ErrSnapshotMissing
	}
	if page <= 0 {
		page = 1
	}
	pageSize = clamp(pageSize, defaultPageSize, maxPageSize)
	total, err := s.reader.CountSnapshot(ctx, t.Schema, f)
	if err != nil {
		return Page{}, err
	}
	p := shared.NewPagination(page, pageSize, total)
	rows, err := s.reader.QuerySnapshot(ctx, t.Schema, f, p.PageSize, p.Offset())
	if err != nil {
		return Page{}, err
	}
	if rows == nil {
		rows = []SnapshotRow{}
	}
	return Page{Rows: rows, Pagination: p}, nil
}
