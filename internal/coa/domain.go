package coa

// NormalBalance marks which side of the ledger an account normally carries.
type NormalBalance string

const (
	NormalDebit  NormalBalance = "D"
	NormalCredit NormalBalance = "C"
)

// Account is one row of a tenant's chart of accounts. Reference data only;
// this service never writes it.
type Account struct {
	Code          string
	Description   string
	NormalBalance NormalBalance
	Type          string
	DetailedType  string
}
