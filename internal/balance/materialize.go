package balance

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/mcaceresg1/ledger-reports/internal/coa"
	"github.com/mcaceresg1/ledger-reports/internal/tenant"
)

// SnapshotStore is the persistence surface the materializer writes through.
type SnapshotStore interface {
	FetchSources(ctx context.Context, schema string, w Window) (Sources, error)
	ReplaceSnapshot(ctx context.Context, schema string, rows []SnapshotRow, meta SnapshotMeta) error
	SnapshotMeta(ctx context.Context, schema string) (SnapshotMeta, bool, error)
}

// TreeLoader loads a tenant's chart of accounts.
type TreeLoader interface {
	LoadTree(ctx context.Context, schema string) (*coa.Tree, error)
}

// TenantResolver maps tenant codes to validated tenants.
type TenantResolver interface {
	Resolve(ctx context.Context, code string) (tenant.Tenant, error)
}

// Invalidator drops cached report pages after a snapshot swap.
type Invalidator interface {
	InvalidateTenant(ctx context.Context, tenantCode string) error
}

// Run describes one completed materialization.
type Run struct {
	ID          uuid.UUID `json:"runId"`
	Tenant      string    `json:"tenant"`
	Fingerprint string    `json:"fingerprint"`
	Rows        int       `json:"rows"`
	GeneratedAt time.Time `json:"generatedAt"`
}

// Materializer rebuilds tenant trial-balance snapshots from the ledger
// sources.
type Materializer struct {
	tenants TenantResolver
	trees   TreeLoader
	store   SnapshotStore
	cache   Invalidator
	log     *slog.Logger
}

// NewMaterializer constructs Materializer. cache may be nil when no report
// cache is wired.
func NewMaterializer(tenants TenantResolver, trees TreeLoader, store SnapshotStore, cache Invalidator, log *slog.Logger) *Materializer {
	return &Materializer{tenants: tenants, trees: trees, store: store, cache: cache, log: log}
}

// Materialize recomputes the snapshot for one tenant and window and swaps it
// in atomically. Aggregated accounts absent from the chart of accounts, or
// with an incomplete ancestor chain, are dropped rather than emitted with
// holes.
func (m *Materializer) Materialize(ctx context.Context, tenantCode string, w Window) (Run, error) {
	if err := w.Validate(); err != nil {
		return Run{}, err
	}
	t, err := m.tenants.Resolve(ctx, tenantCode)
	if err != nil {
		return Run{}, err
	}

	tree, err := m.trees.LoadTree(ctx, t.Schema)
	if err != nil {
		return Run{}, fmt.Errorf("balance: load accounts for %s: %w", t.Code, err)
	}
	src, err := m.store.FetchSources(ctx, t.Schema, w)
	if err != nil {
		return Run{}, err
	}

	totals := Aggregate(w, src)
	rows, dropped := assemble(tree, totals, w)

	meta := SnapshotMeta{
		Fingerprint: w.Fingerprint(),
		RunID:       uuid.New(),
		ReportType:  w.ReportType,
		GeneratedAt: time.Now().UTC(),
	}
	if err := m.store.ReplaceSnapshot(ctx, t.Schema, rows, meta); err != nil {
		return Run{}, err
	}
	if m.cache != nil {
		if err := m.cache.InvalidateTenant(ctx, t.Code); err != nil {
			m.log.WarnContext(ctx, "report cache invalidation failed", "tenant", t.Code, "err", err)
		}
	}

	m.log.InfoContext(ctx, "trial balance materialized",
		"tenant", t.Code, "window", meta.Fingerprint,
		"rows", len(rows), "dropped", dropped, "run_id", meta.RunID)
	return Run{
		ID:          meta.RunID,
		Tenant:      t.Code,
		Fingerprint: meta.Fingerprint,
		Rows:        len(rows),
		GeneratedAt: meta.GeneratedAt,
	}, nil
}

// Ensure returns without work when the tenant's snapshot already matches the
// requested window, and rematerializes otherwise. The bool reports whether a
// rebuild ran.
func (m *Materializer) Ensure(ctx context.Context, tenantCode string, w Window) (Run, bool, error) {
	if err := w.Validate(); err != nil {
		return Run{}, false, err
	}
	t, err := m.tenants.Resolve(ctx, tenantCode)
	if err != nil {
		return Run{}, false, err
	}
	meta, ok, err := m.store.SnapshotMeta(ctx, t.Schema)
	if err != nil {
		return Run{}, false, err
	}
	if ok && meta.Fingerprint == w.Fingerprint() {
		return Run{
			ID:          meta.RunID,
			Tenant:      t.Code,
			Fingerprint: meta.Fingerprint,
			GeneratedAt: meta.GeneratedAt,
		}, false, nil
	}
	run, err := m.Materialize(ctx, tenantCode, w)
	if err != nil {
		return Run{}, false, err
	}
	return run, true, nil
}

func assemble(tree *coa.Tree, totals []AccountTotals, w Window) ([]SnapshotRow, int) {
	rows := make([]SnapshotRow, 0, len(totals))
	dropped := 0
	for _, t := range totals {
		acct, ok := tree.Lookup(t.Account)
		if !ok {
			dropped++
			continue
		}
		ancestors, ok := tree.Expand(t.Account)
		if !ok {
			dropped++
			continue
		}
		rows = append(rows, SnapshotRow{
			Account:        t.Account,
			Description:    acct.Description,
			Ancestors:      ancestors,
			BalanceLocal:   t.BalanceLocal,
			BalanceForeign: t.BalanceForeign,
			DebitLocal:     t.Movement.DebitLocal,
			DebitForeign:   t.Movement.DebitForeign,
			CreditLocal:    t.Movement.CreditLocal,
			CreditForeign:  t.Movement.CreditForeign,
			Type:           acct.Type,
			DetailedType:   acct.DetailedType,
			ReportType:     w.ReportType,
			TreeLevels:     treeLevels(),
		})
	}
	return rows, dropped
}

// treeLevels fills the numeric slots consumers use for tree rendering. Every
// snapshot row is a leaf, flagged in the second slot only.
func treeLevels() [12]int {
	var levels [12]int
	levels[1] = 1
	return levels
}
