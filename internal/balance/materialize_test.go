package balance

import (
	"context"
	"log/slog"
	"sort"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/mcaceresg1/ledger-reports/internal/coa"
	"github.com/mcaceresg1/ledger-reports/internal/tenant"
)

type fakeStore struct {
	sources      Sources
	rows         []SnapshotRow
	meta         SnapshotMeta
	hasMeta      bool
	replaceCalls int
}

func (s *fakeStore) FetchSources(_ context.Context, _ string, _ Window) (Sources, error) {
	return s.sources, nil
}

func (s *fakeStore) ReplaceSnapshot(_ context.Context, _ string, rows []SnapshotRow, meta SnapshotMeta) error {
	s.rows = rows
	s.meta = meta
	s.hasMeta = true
	s.replaceCalls++
	return nil
}

func (s *fakeStore) SnapshotMeta(_ context.Context, _ string) (SnapshotMeta, bool, error) {
	return s.meta, s.hasMeta, nil
}

func (s *fakeStore) SnapshotExists(_ context.Context, _ string) (bool, error) {
	return s.hasMeta, nil
}

func (s *fakeStore) filtered(f Filters) []SnapshotRow {
	var out []SnapshotRow
	for _, r := range s.rows {
		if f.AccountPrefix != "" && (len(r.Account) < len(f.AccountPrefix) || r.Account[:len(f.AccountPrefix)] != f.AccountPrefix) {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Account < out[j].Account })
	return out
}

func (s *fakeStore) CountSnapshot(_ context.Context, _ string, f Filters) (int, error) {
	return len(s.filtered(f)), nil
}

func (s *fakeStore) QuerySnapshot(_ context.Context, _ string, f Filters, limit, offset int) ([]SnapshotRow, error) {
	rows := s.filtered(f)
	if offset >= len(rows) {
		return nil, nil
	}
	rows = rows[offset:]
	if limit < len(rows) {
		rows = rows[:limit]
	}
	return rows, nil
}

type fakeTenants map[string]tenant.Tenant

func (f fakeTenants) Resolve(_ context.Context, code string) (tenant.Tenant, error) {
	t, ok := f[code]
	if !ok {
		return tenant.Tenant{}, tenant.ErrTenantNotFound
	}
	return t, nil
}

type fakeTrees struct {
	tree *coa.Tree
}

func (f fakeTrees) LoadTree(_ context.Context, _ string) (*coa.Tree, error) {
	return f.tree, nil
}

type fakeInvalidator struct {
	invalidated []string
}

func (f *fakeInvalidator) InvalidateTenant(_ context.Context, code string) error {
	f.invalidated = append(f.invalidated, code)
	return nil
}

func testChart(t *testing.T) *coa.Tree {
	t.Helper()
	codes := []struct{ code, desc string }{
		{"01.0.0.0.000", "Assets"},
		{"01.1.0.0.000", "Current Assets"},
		{"01.1.1.0.000", "Cash"},
		{"01.1.1.1.000", "Bank Accounts"},
		{"01.1.1.1.001", "Operating Account"},
		{"01.1.1.1.002", "Payroll Account"},
		// Leaf with a broken chain: no 02.1.0.0.000 summary exists.
		{"02.0.0.0.000", "Liabilities"},
		{"02.1.1.1.001", "Orphaned"},
	}
	accounts := make([]coa.Account, 0, len(codes))
	for _, c := range codes {
		accounts = append(accounts, coa.Account{
			Code:          c.code,
			Description:   c.desc,
			NormalBalance: coa.NormalDebit,
			Type:          "Asset",
			DetailedType:  "Cash",
		})
	}
	return coa.NewTree(accounts)
}

func testTenants() fakeTenants {
	return fakeTenants{
		"acme": {Code: "acme", Name: "Acme Corp", Schema: "acme", Active: true},
	}
}

func newTestMaterializer(store *fakeStore, inv *fakeInvalidator, tree *coa.Tree) *Materializer {
	return NewMaterializer(testTenants(), fakeTrees{tree: tree}, store, inv, slog.Default())
}

func TestMaterializeBuildsSnapshotWithAncestry(t *testing.T) {
	store := &fakeStore{sources: Sources{
		Journal: []JournalRow{
			{Account: "01.1.1.1.001", HeaderDate: day(t, "2024-01-10"), Book: EntryFiscal, DebitLocal: d(t, "150")},
		},
	}}
	inv := &fakeInvalidator{}
	mat := newTestMaterializer(store, inv, testChart(t))

	run, err := mat.Materialize(context.Background(), "acme", januaryWindow(t))
	require.NoError(t, err)
	require.Equal(t, 1, run.Rows)
	require.Equal(t, "acme", run.Tenant)
	require.NotEqual(t, "", run.Fingerprint)

	require.Len(t, store.rows, 1)
	row := store.rows[0]
	require.Equal(t, "01.1.1.1.001", row.Account)
	require.Equal(t, "Operating Account", row.Description)
	require.Equal(t, "01.0.0.0.000", row.Ancestors[0].Code)
	require.Equal(t, "Assets", row.Ancestors[0].Description)
	require.Equal(t, "01.1.1.1.000", row.Ancestors[3].Code)
	require.Equal(t, "01.1.1.1.001", row.Ancestors[4].Code)
	require.True(t, row.DebitLocal.Equal(d(t, "150")))
	require.Equal(t, ReportPreliminary, row.ReportType)
	require.Equal(t, [12]int{0, 1}, row.TreeLevels)

	require.Equal(t, []string{"acme"}, inv.invalidated)
	require.Equal(t, run.Fingerprint, store.meta.Fingerprint)
}

func TestMaterializeDropsAccountsWithBrokenAncestry(t *testing.T) {
	store := &fakeStore{sources: Sources{
		Journal: []JournalRow{
			{Account: "01.1.1.1.001", HeaderDate: day(t, "2024-01-10"), Book: EntryFiscal, DebitLocal: d(t, "1")},
			{Account: "02.1.1.1.001", HeaderDate: day(t, "2024-01-10"), Book: EntryFiscal, DebitLocal: d(t, "2")},
			{Account: "99.9.9.9.999", HeaderDate: day(t, "2024-01-10"), Book: EntryFiscal, DebitLocal: d(t, "3")},
		},
	}}
	mat := newTestMaterializer(store, &fakeInvalidator{}, testChart(t))

	run, err := mat.Materialize(context.Background(), "acme", januaryWindow(t))
	require.NoError(t, err)
	require.Equal(t, 1, run.Rows)
	require.Equal(t, "01.1.1.1.001", store.rows[0].Account)
}

func TestMaterializeRejectsUnknownTenant(t *testing.T) {
	mat := newTestMaterializer(&fakeStore{}, &fakeInvalidator{}, testChart(t))
	_, err := mat.Materialize(context.Background(), "ghost", januaryWindow(t))
	require.ErrorIs(t, err, tenant.ErrTenantNotFound)
}

func TestMaterializeRejectsInvalidWindow(t *testing.T) {
	mat := newTestMaterializer(&fakeStore{}, &fakeInvalidator{}, testChart(t))
	w := januaryWindow(t)
	w.Book = "X"
	_, err := mat.Materialize(context.Background(), "acme", w)
	require.ErrorIs(t, err, ErrInvalidWindow)
}

func TestEnsureSkipsMatchingFingerprint(t *testing.T) {
	store := &fakeStore{sources: Sources{
		Journal: []JournalRow{
			{Account: "01.1.1.1.001", HeaderDate: day(t, "2024-01-10"), Book: EntryFiscal, DebitLocal: d(t, "1")},
		},
	}}
	mat := newTestMaterializer(store, &fakeInvalidator{}, testChart(t))
	w := januaryWindow(t)

	_, refreshed, err := mat.Ensure(context.Background(), "acme", w)
	require.NoError(t, err)
	require.True(t, refreshed)
	require.Equal(t, 1, store.replaceCalls)

	run, refreshed, err := mat.Ensure(context.Background(), "acme", w)
	require.NoError(t, err)
	require.False(t, refreshed)
	require.Equal(t, 1, store.replaceCalls)
	require.Equal(t, w.Fingerprint(), run.Fingerprint)
}

func TestEnsureRebuildsOnWindowChange(t *testing.T) {
	store := &fakeStore{sources: Sources{
		Journal: []JournalRow{
			{Account: "01.1.1.1.001", HeaderDate: day(t, "2024-01-10"), Book: EntryFiscal, DebitLocal: d(t, "1")},
		},
	}}
	mat := newTestMaterializer(store, &fakeInvalidator{}, testChart(t))

	_, _, err := mat.Ensure(context.Background(), "acme", januaryWindow(t))
	require.NoError(t, err)

	wider := januaryWindow(t)
	wider.End = day(t, "2024-02-29")
	_, refreshed, err := mat.Ensure(context.Background(), "acme", wider)
	require.NoError(t, err)
	require.True(t, refreshed)
	require.Equal(t, 2, store.replaceCalls)
	require.Equal(t, wider.Fingerprint(), store.meta.Fingerprint)
}

func TestMaterializeIsIdempotent(t *testing.T) {
	store := &fakeStore{sources: Sources{
		Journal: []JournalRow{
			{Account: "01.1.1.1.001", HeaderDate: day(t, "2024-01-10"), Book: EntryFiscal, DebitLocal: d(t, "150")},
			{Account: "01.1.1.1.002", HeaderDate: day(t, "2024-01-12"), Book: EntryFiscal, CreditLocal: d(t, "25")},
		},
	}}
	mat := newTestMaterializer(store, &fakeInvalidator{}, testChart(t))
	w := januaryWindow(t)

	first, err := mat.Materialize(context.Background(), "acme", w)
	require.NoError(t, err)
	firstRows := append([]SnapshotRow(nil), store.rows...)

	second, err := mat.Materialize(context.Background(), "acme", w)
	require.NoError(t, err)
	require.NotEqual(t, first.ID, second.ID)
	require.Equal(t, first.Fingerprint, second.Fingerprint)
	require.Equal(t, firstRows, store.rows)
}

func TestLevelTwoGroupsReconcileWithGrandTotal(t *testing.T) {
	accounts := []coa.Account{
		{Code: "01.0.0.0.000", Description: "Assets"},
		{Code: "01.1.0.0.000", Description: "Current Assets"},
		{Code: "01.1.1.0.000", Description: "Cash"},
		{Code: "01.1.1.1.000", Description: "Bank Accounts"},
		{Code: "01.1.1.1.001", Description: "Operating Account"},
		{Code: "01.1.1.1.002", Description: "Payroll Account"},
		{Code: "01.2.0.0.000", Description: "Fixed Assets"},
		{Code: "01.2.1.0.000", Description: "Equipment"},
		{Code: "01.2.1.1.000", Description: "Machinery"},
		{Code: "01.2.1.1.001", Description: "Presses"},
	}
	store := &fakeStore{sources: Sources{
		Journal: []JournalRow{
			{Account: "01.1.1.1.001", HeaderDate: day(t, "2024-01-10"), Book: EntryFiscal, DebitLocal: d(t, "100")},
			{Account: "01.1.1.1.002", HeaderDate: day(t, "2024-01-11"), Book: EntryFiscal, DebitLocal: d(t, "40")},
			{Account: "01.2.1.1.001", HeaderDate: day(t, "2024-01-12"), Book: EntryFiscal, DebitLocal: d(t, "60")},
		},
	}}
	mat := newTestMaterializer(store, &fakeInvalidator{}, coa.NewTree(accounts))

	_, err := mat.Materialize(context.Background(), "acme", januaryWindow(t))
	require.NoError(t, err)
	require.Len(t, store.rows, 3)

	groups := map[string]decimal.Decimal{}
	grand := decimal.Zero
	for _, r := range store.rows {
		code := r.Ancestors[1].Code
		groups[code] = groups[code].Add(r.DebitLocal)
		grand = grand.Add(r.DebitLocal)
	}
	require.Len(t, groups, 2)
	require.True(t, groups["01.1.0.0.000"].Equal(d(t, "140")))
	require.True(t, groups["01.2.0.0.000"].Equal(d(t, "60")))

	sum := decimal.Zero
	for _, v := range groups {
		sum = sum.Add(v)
	}
	require.True(t, sum.Equal(grand))
}
