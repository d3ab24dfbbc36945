package tenant

import (
	"errors"
	"regexp"
	"time"
)

var (
	// ErrTenantNotFound indicates the tenant code is unknown or inactive.
	ErrTenantNotFound = errors.New("tenant: not found")
	// ErrInvalidSchema indicates the stored schema name is unsafe to qualify queries with.
	ErrInvalidSchema = errors.New("tenant: invalid schema name")
)

// Schema names are interpolated into schema-qualified SQL and must never
// carry anything beyond a plain identifier.
var schemaNamePattern = regexp.MustCompile(`^[a-z][a-z0-9_]{0,29}$`)

// Tenant is one isolated client dataset. All ledger tables and the
// trial-balance snapshot live inside its schema.
type Tenant struct {
	Code      string
	Name      string
	Schema    string
	Active    bool
	CreatedAt time.Time
}

// ValidSchema reports whether the tenant schema name is safe to use.
func (t Tenant) ValidSchema() bool {
	return schemaNamePattern.MatchString(t.Schema)
}
