package tenant

import (
	"context"
	"fmt"
)

// Resolver looks tenants up by code.
type Resolver interface {
	FindByCode(ctx context.Context, code string) (Tenant, error)
}

// Directory validates tenant identifiers before any tenant-scoped query runs.
// Resolution fails closed: unknown codes and unsafe schema names are rejected
// here, never downstream.
type Directory struct {
	repo Resolver
}

// NewDirectory constructs Directory.
func NewDirectory(repo Resolver) *Directory {
	return &Directory{repo: repo}
}

// Resolve returns the validated tenant for the supplied code.
func (d *Directory) Resolve(ctx context.Context, code string) (Tenant, error) {
	if code == "" {
		return Tenant{}, ErrTenantNotFound
	}
	t, err := d.repo.FindByCode(ctx, code)
	if err != nil {
		return Tenant{}, err
	}
	if !t.ValidSchema() {
		return Tenant{}, fmt.Errorf("%w: %q", ErrInvalidSchema, t.Schema)
	}
	return t, nil
}
