package coa

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository reads tenant charts of accounts.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// LoadTree loads the full chart for one tenant schema and indexes it.
// The schema name must already be validated by the tenant directory.
func (r *Repository) LoadTree(ctx context.Context, schema string) (*Tree, error) {
	query := fmt.Sprintf(`SELECT code, description, normal_balance, account_type, detailed_type
FROM %s.account`, schema)
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("coa: load chart for %s: %w", schema, err)
	}
	defer rows.Close()
	var accounts []Account
	for rows.Next() {
		var a Account
		var normal string
		if err := rows.Scan(&a.Code, &a.Description, &normal, &a.Type, &a.DetailedType); err != nil {
			return nil, err
		}
		a.NormalBalance = NormalBalance(normal)
		accounts = append(accounts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return NewTree(accounts), nil
}
