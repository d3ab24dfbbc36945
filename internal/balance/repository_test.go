package balance

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"

	"github.com/mcaceresg1/ledger-reports/internal/tenant"
)

func TestMapSchemaErrUnprovisionedSchema(t *testing.T) {
	for _, code := range []string{"3F000", "42P01"} {
		err := mapSchemaErr(fmt.Errorf("query: %w",
			&pgconn.PgError{Code: code, Message: "relation does not exist"}))
		require.ErrorIs(t, err, tenant.ErrTenantNotFound, "code %s", code)
	}
}

func TestMapSchemaErrPassesThroughOtherErrors(t *testing.T) {
	plain := errors.New("connection reset")
	require.Equal(t, plain, mapSchemaErr(plain))

	constraint := &pgconn.PgError{Code: "23505", Message: "duplicate key"}
	require.Equal(t, error(constraint), mapSchemaErr(constraint))
	require.Nil(t, mapSchemaErr(nil))
}
