package balance

import (
	"time"

	"github.com/shopspring/decimal"
)

// The three ledger sources carry amounts in different shapes and signs.
// Each variant normalizes itself into a SignedAmount — debit and credit
// kept separate, local and foreign currency side by side — so the
// aggregator only ever folds one amount model.

// SignedAmount is the normalized contribution of one source row.
type SignedAmount struct {
	DebitLocal    decimal.Decimal
	DebitForeign  decimal.Decimal
	CreditLocal   decimal.Decimal
	CreditForeign decimal.Decimal
}

// Add accumulates another amount scaled by weight (+1 or -1).
func (s SignedAmount) Add(other SignedAmount, weight int64) SignedAmount {
	w := decimal.NewFromInt(weight)
	return SignedAmount{
		DebitLocal:    s.DebitLocal.Add(other.DebitLocal.Mul(w)),
		DebitForeign:  s.DebitForeign.Add(other.DebitForeign.Mul(w)),
		CreditLocal:   s.CreditLocal.Add(other.CreditLocal.Mul(w)),
		CreditForeign: s.CreditForeign.Add(other.CreditForeign.Mul(w)),
	}
}

// Net returns debit minus credit for the local and foreign sides.
func (s SignedAmount) Net() (local, foreign decimal.Decimal) {
	return s.DebitLocal.Sub(s.CreditLocal), s.DebitForeign.Sub(s.CreditForeign)
}

// OpeningBalanceRow is a periodic balance snapshot for one account: a signed
// net amount plus the raw debit/credit traffic recorded with it.
type OpeningBalanceRow struct {
	Account       string
	Date          time.Time
	NetLocal      decimal.Decimal
	NetForeign    decimal.Decimal
	DebitLocal    decimal.Decimal
	DebitForeign  decimal.Decimal
	CreditLocal   decimal.Decimal
	CreditForeign decimal.Decimal
}

// Normalize returns the raw period traffic of the opening row.
func (o OpeningBalanceRow) Normalize() SignedAmount {
	return SignedAmount{
		DebitLocal:    o.DebitLocal,
		DebitForeign:  o.DebitForeign,
		CreditLocal:   o.CreditLocal,
		CreditForeign: o.CreditForeign,
	}
}

// NormalizeNet sign-splits the stored net amount: positive nets become
// debits, negative nets become credits.
func (o OpeningBalanceRow) NormalizeNet() SignedAmount {
	var out SignedAmount
	if o.NetLocal.IsNegative() {
		out.CreditLocal = o.NetLocal.Neg()
	} else {
		out.DebitLocal = o.NetLocal
	}
	if o.NetForeign.IsNegative() {
		out.CreditForeign = o.NetForeign.Neg()
	} else {
		out.DebitForeign = o.NetForeign
	}
	return out
}

// GeneralLedgerRow is a posted general-ledger movement, already net of
// reversal.
type GeneralLedgerRow struct {
	Account       string
	Date          time.Time
	Book          EntryBook
	DebitLocal    decimal.Decimal
	DebitForeign  decimal.Decimal
	CreditLocal   decimal.Decimal
	CreditForeign decimal.Decimal
}

// Normalize returns the row's debit/credit amounts.
func (g GeneralLedgerRow) Normalize() SignedAmount {
	return SignedAmount{
		DebitLocal:    g.DebitLocal,
		DebitForeign:  g.DebitForeign,
		CreditLocal:   g.CreditLocal,
		CreditForeign: g.CreditForeign,
	}
}

// JournalRow is a journal-entry line; the authoritative date and
// accounting-book flag come from its header.
type JournalRow struct {
	Account       string
	HeaderDate    time.Time
	Book          EntryBook
	DebitLocal    decimal.Decimal
	DebitForeign  decimal.Decimal
	CreditLocal   decimal.Decimal
	CreditForeign decimal.Decimal
}

// Normalize returns the line's debit/credit amounts.
func (j JournalRow) Normalize() SignedAmount {
	return SignedAmount{
		DebitLocal:    j.DebitLocal,
		DebitForeign:  j.DebitForeign,
		CreditLocal:   j.CreditLocal,
		CreditForeign: j.CreditForeign,
	}
}

// Sources bundles everything the aggregator reads for one materialization.
type Sources struct {
	Opening []OpeningBalanceRow
	Ledger  []GeneralLedgerRow
	Journal []JournalRow
}
