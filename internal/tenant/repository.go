package tenant

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository reads the tenant registry.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// FindByCode returns the active tenant with the supplied code.
func (r *Repository) FindByCode(ctx context.Context, code string) (Tenant, error) {
	var t Tenant
	err := r.pool.QueryRow(ctx, `SELECT code, name, schema_name, active, created_at
FROM tenants WHERE code=$1 AND active`, code).
		Scan(&t.Code, &t.Name, &t.Schema, &t.Active, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Tenant{}, ErrTenantNotFound
		}
		return Tenant{}, err
	}
	return t, nil
}

// List returns every active tenant, ordered by code.
func (r *Repository) List(ctx context.Context) ([]Tenant, error) {
	rows, err := r.pool.Query(ctx, `SELECT code, name, schema_name, active, created_at
FROM tenants WHERE active ORDER BY code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var tenants []Tenant
	for rows.Next() {
		var t Tenant
		if err := rows.Scan(&t.Code, &t.Name, &t.Schema, &t.Active, &t.CreatedAt); err != nil {
			return nil, err
		}
		tenants = append(tenants, t)
	}
	return tenants, rows.Err()
}
