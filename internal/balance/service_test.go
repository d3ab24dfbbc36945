package balance

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mcaceresg1/ledger-reports/internal/coa"
)

func seededStore(t *testing.T, accounts int) *fakeStore {
	t.Helper()
	var journal []JournalRow
	for i := 0; i < accounts; i++ {
		journal = append(journal, JournalRow{
			Account:    fmt.Sprintf("01.1.1.1.%03d", i+1),
			HeaderDate: day(t, "2024-01-10"),
			Book:       EntryFiscal,
			DebitLocal: d(t, "10"),
		})
	}
	return &fakeStore{sources: Sources{Journal: journal}}
}

// chartFor builds a chart covering numbered leaves under one branch.
func chartFor(t *testing.T, accounts int) fakeTrees {
	t.Helper()
	list := []coa.Account{
		{Code: "01.0.0.0.000", Description: "Assets"},
		{Code: "01.1.0.0.000", Description: "Current Assets"},
		{Code: "01.1.1.0.000", Description: "Cash"},
		{Code: "01.1.1.1.000", Description: "Bank Accounts"},
	}
	for i := 0; i < accounts; i++ {
		list = append(list, coa.Account{
			Code:        fmt.Sprintf("01.1.1.1.%03d", i+1),
			Description: fmt.Sprintf("Account %d", i+1),
		})
	}
	return fakeTrees{tree: coa.NewTree(list)}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestServiceQueryDefaultsAndPaginates(t *testing.T) {
	store := seededStore(t, 30)
	trees := chartFor(t, 30)
	mat := NewMaterializer(testTenants(), trees, store, nil, discardLogger())
	svc := NewService(mat, testTenants(), store, nil)

	page, err := svc.Query(context.Background(), QueryRequest{
		Tenant: "acme",
		Window: januaryWindow(t),
	})
	require.NoError(t, err)
	require.True(t, page.Refreshed)
	require.Equal(t, 30, page.Pagination.Total)
	require.Equal(t, 25, page.Pagination.PageSize)
	require.Equal(t, 2, page.Pagination.TotalPages)
	require.Len(t, page.Rows, 25)
	require.Equal(t, "01.1.1.1.001", page.Rows[0].Account)

	second, err := svc.Query(context.Background(), QueryRequest{
		Tenant: "acme",
		Window: januaryWindow(t),
		Page:   2,
	})
	require.NoError(t, err)
	require.False(t, second.Refreshed)
	require.Len(t, second.Rows, 5)
	require.Equal(t, "01.1.1.1.026", second.Rows[0].Account)
}

func TestServiceQueryClampsPageSize(t *testing.T) {
	store := seededStore(t, 3)
	mat := NewMaterializer(testTenants(), chartFor(t, 3), store, nil, discardLogger())
	svc := NewService(mat, testTenants(), store, nil)

	page, err := svc.Query(context.Background(), QueryRequest{
		Tenant:   "acme",
		Window:   januaryWindow(t),
		PageSize: 9999,
	})
	require.NoError(t, err)
	require.Equal(t, maxPageSize, page.Pagination.PageSize)
}

func TestServiceQueryPageBeyondRangeIsEmptyNotError(t *testing.T) {
	store := seededStore(t, 3)
	mat := NewMaterializer(testTenants(), chartFor(t, 3), store, nil, discardLogger())
	svc := NewService(mat, testTenants(), store, nil)

	page, err := svc.Query(context.Background(), QueryRequest{
		Tenant: "acme",
		Window: januaryWindow(t),
		Page:   7,
	})
	require.NoError(t, err)
	require.Empty(t, page.Rows)
	require.Equal(t, 3, page.Pagination.Total)
}

func TestServiceQueryAppliesAccountFilter(t *testing.T) {
	store := seededStore(t, 5)
	mat := NewMaterializer(testTenants(), chartFor(t, 5), store, nil, discardLogger())
	svc := NewService(mat, testTenants(), store, nil)

	page, err := svc.Query(context.Background(), QueryRequest{
		Tenant:  "acme",
		Window:  januaryWindow(t),
		Filters: Filters{AccountPrefix: "01.1.1.1.003"},
	})
	require.NoError(t, err)
	require.Len(t, page.Rows, 1)
	require.Equal(t, "01.1.1.1.003", page.Rows[0].Account)
}

func TestServiceExportObeysLimit(t *testing.T) {
	store := seededStore(t, 12)
	mat := NewMaterializer(testTenants(), chartFor(t, 12), store, nil, discardLogger())
	svc := NewService(mat, testTenants(), store, nil)

	rows, run, err := svc.Export(context.Background(), ExportRequest{
		Tenant: "acme",
		Window: januaryWindow(t),
		Limit:  4,
	})
	require.NoError(t, err)
	require.Len(t, rows, 4)
	require.Equal(t, "01.1.1.1.001", rows[0].Account)
	require.NotEqual(t, "", run.Fingerprint)

	rows, _, err = svc.Export(context.Background(), ExportRequest{
		Tenant: "acme",
		Window: januaryWindow(t),
		Limit:  maxExport + 1,
	})
	require.NoError(t, err)
	require.Len(t, rows, 12)
}

func TestServiceSnapshotMissing(t *testing.T) {
	store := &fakeStore{}
	mat := NewMaterializer(testTenants(), chartFor(t, 1), store, nil, discardLogger())
	svc := NewService(mat, testTenants(), store, nil)

	_, err := svc.Snapshot(context.Background(), "acme", Filters{}, 1, 25)
	require.ErrorIs(t, err, ErrSnapshotMissing)
}

func TestServiceExportMatchesFirstPage(t *testing.T) {
	store := seededStore(t, 12)
	mat := NewMaterializer(testTenants(), chartFor(t, 12), store, nil, discardLogger())
	svc := NewService(mat, testTenants(), store, nil)

	exported, _, err := svc.Export(context.Background(), ExportRequest{
		Tenant: "acme",
		Window: januaryWindow(t),
		Limit:  4,
	})
	require.NoError(t, err)

	page, err := svc.Query(context.Background(), QueryRequest{
		Tenant:   "acme",
		Window:   januaryWindow(t),
		Page:     1,
		PageSize: 4,
	})
	require.NoError(t, err)
	require.Equal(t, page.Rows, exported)
}
