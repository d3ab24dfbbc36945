package balance

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"github.com/mcaceresg1/ledger-reports/internal/coa"
	"github.com/mcaceresg1/ledger-reports/internal/platform/db"
	"github.com/mcaceresg1/ledger-reports/internal/tenant"
)

// SnapshotMeta records which window produced a tenant's snapshot.
type SnapshotMeta struct {
	Fingerprint string
	RunID       uuid.UUID
	ReportType  ReportType
	GeneratedAt time.Time
}

// Repository reads ledger sources and owns the per-tenant snapshot table.
// Every method takes a schema name already validated by the tenant
// directory; it is interpolated, never parameterized, because Postgres does
// not accept bind parameters in identifier position.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// FetchSources reads the three ledger sources for one window. The queries
// prefilter on broad date bounds; the exact window boundaries are applied by
// the aggregator.
func (r *Repository) FetchSources(ctx context.Context, schema string, w Window) (Sources, error) {
	end := dateOnly(w.End)
	closing := end.AddDate(0, 0, 1)

	var src Sources
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		rows, err := r.fetchOpening(ctx, schema, end)
		if err != nil {
			return fmt.Errorf("opening balances: %w", err)
		}
		src.Opening = rows
		return nil
	})
	g.Go(func() error {
		rows, err := r.fetchLedger(ctx, schema, closing)
		if err != nil {
			return fmt.Errorf("general ledger: %w", err)
		}
		src.Ledger = rows
		return nil
	})
	g.Go(func() error {
		rows, err := r.fetchJournal(ctx, schema, closing)
		if err != nil {
			return fmt.Errorf("journal: %w", err)
		}
		src.Journal = rows
		return nil
	})
	if err := g.Wait(); err != nil {
		return Sources{}, fmt.Errorf("balance: fetch sources for %s: %w", schema, err)
	}
	return src, nil
}

// mapSchemaErr converts Postgres schema-level failures into the domain
// error. A directory row pointing at a schema that was never provisioned
// surfaces as an undefined schema or table.
func mapSchemaErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "3F000", "42P01":
			return fmt.Errorf("%w: %s", tenant.ErrTenantNotFound, pgErr.Message)
		}
	}
	return err
}

func (r *Repository) fetchOpening(ctx context.Context, schema string, end time.Time) ([]OpeningBalanceRow, error) {
	query := fmt.Sprintf(`SELECT account_code, entry_date, net_local, net_foreign,
debit_local, debit_foreign, credit_local, credit_foreign
FROM %s.opening_balance WHERE entry_date <= $1`, schema)
	rows, err := r.pool.Query(ctx, query, end)
	if err != nil {
		return nil, mapSchemaErr(err)
	}
	defer rows.Close()
	var out []OpeningBalanceRow
	for rows.Next() {
		var o OpeningBalanceRow
		if err := rows.Scan(&o.Account, &o.Date, &o.NetLocal, &o.NetForeign,
			&o.DebitLocal, &o.DebitForeign, &o.CreditLocal, &o.CreditForeign); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (r *Repository) fetchLedger(ctx context.Context, schema string, closing time.Time) ([]GeneralLedgerRow, error) {
	query := fmt.Sprintf(`SELECT account_code, entry_date, book,
debit_local, debit_foreign, credit_local, credit_foreign
FROM %s.ledger_entry WHERE entry_date <= $1 AND book IN ('F','A')`, schema)
	rows, err := r.pool.Query(ctx, query, closing)
	if err != nil {
		return nil, mapSchemaErr(err)
	}
	defer rows.Close()
	var out []GeneralLedgerRow
	for rows.Next() {
		var g GeneralLedgerRow
		var book string
		if err := rows.Scan(&g.Account, &g.Date, &book,
			&g.DebitLocal, &g.DebitForeign, &g.CreditLocal, &g.CreditForeign); err != nil {
			return nil, err
		}
		g.Book = EntryBook(book)
		out = append(out, g)
	}
	return out, rows.Err()
}

func (r *Repository) fetchJournal(ctx context.Context, schema string, closing time.Time) ([]JournalRow, error) {
	// The header carries the authoritative date and accounting-book flag.
	query := fmt.Sprintf(`SELECT l.account_code, h.entry_date, h.book,
l.debit_local, l.debit_foreign, l.credit_local, l.credit_foreign
FROM %s.journal_line l
JOIN %s.journal_header h ON h.entry_id = l.entry_id
WHERE h.entry_date <= $1 AND h.book IN ('F','A')`, schema, schema)
	rows, err := r.pool.Query(ctx, query, closing)
	if err != nil {
		return nil, mapSchemaErr(err)
	}
	defer rows.Close()
	var out []JournalRow
	for rows.Next() {
		var j JournalRow
		var book string
		if err := rows.Scan(&j.Account, &j.HeaderDate, &book,
			&j.DebitLocal, &j.DebitForeign, &j.CreditLocal, &j.CreditForeign); err != nil {
			return nil, err
		}
		j.Book = EntryBook(book)
		out = append(out, j)
	}
	return out, rows.Err()
}

const snapshotDDL = `CREATE TABLE IF NOT EXISTS %s.trial_balance_snapshot (
	account_code    text PRIMARY KEY,
	description     text NOT NULL DEFAULT '',
	level1_code     text NOT NULL DEFAULT '',
	level1_desc     text NOT NULL DEFAULT '',
	level2_code     text NOT NULL DEFAULT '',
	level2_desc     text NOT NULL DEFAULT '',
	level3_code     text NOT NULL DEFAULT '',
	level3_desc     text NOT NULL DEFAULT '',
	level4_code     text NOT NULL DEFAULT '',
	level4_desc     text NOT NULL DEFAULT '',
	level5_code     text NOT NULL DEFAULT '',
	level5_desc     text NOT NULL DEFAULT '',
	balance_local   numeric(18,2) NOT NULL DEFAULT 0,
	balance_foreign numeric(18,2) NOT NULL DEFAULT 0,
	debit_local     numeric(18,2) NOT NULL DEFAULT 0,
	debit_foreign   numeric(18,2) NOT NULL DEFAULT 0,
	credit_local    numeric(18,2) NOT NULL DEFAULT 0,
	credit_foreign  numeric(18,2) NOT NULL DEFAULT 0,
	currency        integer NOT NULL DEFAULT 0,
	tree_levels     integer[] NOT NULL DEFAULT '{}',
	account_type    text NOT NULL DEFAULT '',
	detailed_type   text NOT NULL DEFAULT '',
	report_type     text NOT NULL DEFAULT '',
	cost_center     text NOT NULL DEFAULT '',
	extra_codes     text[] NOT NULL DEFAULT '{}',
	extra_descs     text[] NOT NULL DEFAULT '{}'
)`

const snapshotMetaDDL = `CREATE TABLE IF NOT EXISTS %s.trial_balance_snapshot_meta (
	id           integer PRIMARY KEY DEFAULT 1 CHECK (id = 1),
	fingerprint  text NOT NULL,
	run_id       uuid NOT NULL,
	report_type  text NOT NULL,
	generated_at timestamptz NOT NULL DEFAULT now()
)`

var snapshotColumns = []string{
	"account_code", "description",
	"level1_code", "level1_desc", "level2_code", "level2_desc",
	"level3_code", "level3_desc", "level4_code", "level4_desc",
	"level5_code", "level5_desc",
	"balance_local", "balance_foreign",
	"debit_local", "debit_foreign", "credit_local", "credit_foreign",
	"currency", "tree_levels", "account_type", "detailed_type",
	"report_type", "cost_center",
}

// ReplaceSnapshot swaps the tenant's snapshot wholesale. The delete and the
// bulk insert share one transaction so readers never observe a half-written
// table and a failed run leaves the prior snapshot intact.
func (r *Repository) ReplaceSnapshot(ctx context.Context, schema string, rows []SnapshotRow, meta SnapshotMeta) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, fmt.Sprintf(snapshotDDL, schema)); err != nil {
			return fmt.Errorf("balance: create snapshot table: %w", err)
		}
		if _, err := tx.Exec(ctx, fmt.Sprintf(snapshotMetaDDL, schema)); err != nil {
			return fmt.Errorf("balance: create snapshot meta table: %w", err)
		}
		if _, err := tx.Exec(ctx, fmt.Sprintf(`DELETE FROM %s.trial_balance_snapshot`, schema)); err != nil {
			return fmt.Errorf("balance: clear snapshot: %w", err)
		}

		source := make([][]any, 0, len(rows))
		for _, row := range rows {
			levels := make([]int32, len(row.TreeLevels))
			for i, v := range row.TreeLevels {
				levels[i] = int32(v)
			}
			source = append(source, []any{
				row.Account, row.Description,
				row.Ancestors[0].Code, row.Ancestors[0].Description,
				row.Ancestors[1].Code, row.Ancestors[1].Description,
				row.Ancestors[2].Code, row.Ancestors[2].Description,
				row.Ancestors[3].Code, row.Ancestors[3].Description,
				row.Ancestors[4].Code, row.Ancestors[4].Description,
				row.BalanceLocal.StringFixed(2), row.BalanceForeign.StringFixed(2),
				row.DebitLocal.StringFixed(2), row.DebitForeign.StringFixed(2),
				row.CreditLocal.StringFixed(2), row.CreditForeign.StringFixed(2),
				int32(row.Currency), levels, row.Type, row.DetailedType,
				string(row.ReportType), row.CostCenter,
			})
		}
		if _, err := tx.CopyFrom(ctx,
			pgx.Identifier{schema, "trial_balance_snapshot"},
			snapshotColumns,
			pgx.CopyFromRows(source),
		); err != nil {
			return fmt.Errorf("balance: insert snapshot rows: %w", err)
		}

		if _, err := tx.Exec(ctx, fmt.Sprintf(`INSERT INTO %s.trial_balance_snapshot_meta (id, fingerprint, run_id, report_type, generated_at)
VALUES (1, $1, $2, $3, now())
ON CONFLICT (id) DO UPDATE SET fingerprint = EXCLUDED.fingerprint,
	run_id = EXCLUDED.run_id, report_type = EXCLUDED.report_type,
	generated_at = EXCLUDED.generated_at`, schema),
			meta.Fingerprint, meta.RunID, string(meta.ReportType)); err != nil {
			return fmt.Errorf("balance: record snapshot meta: %w", err)
		}
		return nil
	})
}

// SnapshotMeta returns the window fingerprint of the tenant's snapshot.
// The second return is false when no snapshot has ever been materialized.
func (r *Repository) SnapshotMeta(ctx context.Context, schema string) (SnapshotMeta, bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (
SELECT 1 FROM information_schema.tables WHERE table_schema = $1 AND table_name = 'trial_balance_snapshot_meta')`, schema).
		Scan(&exists)
	if err != nil {
		return SnapshotMeta{}, false, err
	}
	if !exists {
		return SnapshotMeta{}, false, nil
	}
	var meta SnapshotMeta
	var reportType string
	err = r.pool.QueryRow(ctx, fmt.Sprintf(`SELECT fingerprint, run_id, report_type, generated_at
FROM %s.trial_balance_snapshot_meta WHERE id = 1`, schema)).
		Scan(&meta.Fingerprint, &meta.RunID, &reportType, &meta.GeneratedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return SnapshotMeta{}, false, nil
		}
		return SnapshotMeta{}, false, err
	}
	meta.ReportType = ReportType(reportType)
	return meta, true, nil
}

func filterClause(f Filters) (string, []any) {
	conds := []string{"1=1"}
	var args []any
	next := func() string { return "$" + strconv.Itoa(len(args)) }
	if f.AccountPrefix != "" {
		args = append(args, f.AccountPrefix+"%")
		conds = append(conds, "account_code LIKE "+next())
	}
	if f.CostCenterPrefix != "" {
		args = append(args, f.CostCenterPrefix+"%")
		conds = append(conds, "cost_center LIKE "+next())
	}
	if f.Type != "" {
		args = append(args, "%"+f.Type+"%")
		conds = append(conds, "account_type LIKE "+next())
	}
	if f.DetailedType != "" {
		args = append(args, "%"+f.DetailedType+"%")
		conds = append(conds, "detailed_type LIKE "+next())
	}
	return strings.Join(conds, " AND "), args
}

// CountSnapshot returns the filtered row count.
func (r *Repository) CountSnapshot(ctx context.Context, schema string, f Filters) (int, error) {
	where, args := filterClause(f)
	var total int
	err := r.pool.QueryRow(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s.trial_balance_snapshot WHERE %s`, schema, where), args...).
		Scan(&total)
	return total, err
}

// QuerySnapshot reads one page of the snapshot ordered by leaf account code.
func (r *Repository) QuerySnapshot(ctx context.Context, schema string, f Filters, limit, offset int) ([]SnapshotRow, error) {
	where, args := filterClause(f)
	args = append(args, limit, offset)
	query := fmt.Sprintf(`SELECT account_code, description,
level1_code, level1_desc, level2_code, level2_desc, level3_code, level3_desc,
level4_code, level4_desc, level5_code, level5_desc,
balance_local, balance_foreign, debit_local, debit_foreign, credit_local, credit_foreign,
currency, tree_levels, account_type, detailed_type, report_type, cost_center
FROM %s.trial_balance_snapshot WHERE %s
ORDER BY account_code ASC LIMIT $%d OFFSET $%d`, schema, where, len(args)-1, len(args))
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []SnapshotRow
	for rows.Next() {
		var row SnapshotRow
		var levels []int32
		var currency int32
		var reportType string
		var anc coa.Ancestry
		if err := rows.Scan(&row.Account, &row.Description,
			&anc[0].Code, &anc[0].Description, &anc[1].Code, &anc[1].Description,
			&anc[2].Code, &anc[2].Description, &anc[3].Code, &anc[3].Description,
			&anc[4].Code, &anc[4].Description,
			&row.BalanceLocal, &row.BalanceForeign,
			&row.DebitLocal, &row.DebitForeign, &row.CreditLocal, &row.CreditForeign,
			&currency, &levels, &row.Type, &row.DetailedType, &reportType, &row.CostCenter); err != nil {
			return nil, err
		}
		row.Ancestors = anc
		row.Currency = int(currency)
		row.ReportType = ReportType(reportType)
		for i := 0; i < len(levels) && i < len(row.TreeLevels); i++ {
			row.TreeLevels[i] = int(levels[i])
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// SnapshotExists reports whether the tenant's snapshot table is present.
func (r *Repository) SnapshotExists(ctx context.Context, schema string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (
SELECT 1 FROM information_schema.tables WHERE table_schema = $1 AND table_name = 'trial_balance_snapshot')`, schema).
		Scan(&exists)
	return exists, err
}
