package tenant

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

type stubResolver map[string]Tenant

func (s stubResolver) FindByCode(_ context.Context, code string) (Tenant, error) {
	t, ok := s[code]
	if !ok {
		return Tenant{}, ErrTenantNotFound
	}
	return t, nil
}

func TestDirectoryResolve(t *testing.T) {
	dir := NewDirectory(stubResolver{
		"acme": {Code: "acme", Schema: "acme_prod", Active: true},
	})

	got, err := dir.Resolve(context.Background(), "acme")
	require.NoError(t, err)
	require.Equal(t, "acme_prod", got.Schema)
}

func TestDirectoryResolveUnknown(t *testing.T) {
	dir := NewDirectory(stubResolver{})
	_, err := dir.Resolve(context.Background(), "ghost")
	require.ErrorIs(t, err, ErrTenantNotFound)

	_, err = dir.Resolve(context.Background(), "")
	require.ErrorIs(t, err, ErrTenantNotFound)
}

func TestDirectoryRejectsUnsafeSchemas(t *testing.T) {
	for _, schema := range []string{
		"",
		"Acme",
		"1acme",
		"acme;drop table tenants",
		"acme.prod",
		"acme_prod_with_a_very_long_schema_name",
	} {
		dir := NewDirectory(stubResolver{
			"acme": {Code: "acme", Schema: schema, Active: true},
		})
		_, err := dir.Resolve(context.Background(), "acme")
		require.ErrorIs(t, err, ErrInvalidSchema, "schema %q", schema)
	}
}

func TestValidSchema(t *testing.T) {
	require.True(t, Tenant{Schema: "acme"}.ValidSchema())
	require.True(t, Tenant{Schema: "a_1"}.ValidSchema())
	require.False(t, Tenant{Schema: "a-1"}.ValidSchema())
	require.False(t, Tenant{Schema: `a"b`}.ValidSchema())
}
