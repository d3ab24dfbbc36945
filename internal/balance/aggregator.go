package balance

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// AccountTotals is the aggregated figure set for one leaf account.
type AccountTotals struct {
	Account        string
	BalanceLocal   decimal.Decimal
	BalanceForeign decimal.Decimal
	Movement       SignedAmount
}

// dateOnly drops the time-of-day component. Source dates are calendar dates;
// stray timestamps must not shift rows across the closing-day boundary.
func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

type accountFold struct {
	balance     SignedAmount
	movement    SignedAmount
	openingDate time.Time
	opening     SignedAmount
	hasOpening  bool
}

// Aggregate folds the three ledger sources into one totals row per account.
//
// Balance as of the window end is the most recent opening balance on or
// before the end date plus all journal activity dated on or before it.
//
// Period movement sums three contributions: opening-row traffic up to the
// end date; general-ledger rows, where postings dated before the end date
// are backed out (they are already folded into balances) and exactly the
// closing-day postings — dated after the end date but no later than one day
// past it — are re-introduced; and journal rows dated inside the window
// extended by that same closing day. The asymmetric ledger boundaries are
// deliberate and must not be collapsed into a plain <=.
//
// Accounts whose every figure folds to zero are omitted: the trial balance
// never carries synthetic zero rows.
func Aggregate(w Window, src Sources) []AccountTotals {
	start := dateOnly(w.Start)
	end := dateOnly(w.End)
	closing := end.AddDate(0, 0, 1)

	folds := make(map[string]*accountFold)
	get := func(account string) *accountFold {
		f, ok := folds[account]
		if !ok {
			f = &accountFold{}
			folds[account] = f
		}
		return f
	}

	for _, row := range src.Opening {
		date := dateOnly(row.Date)
		if date.After(end) {
			continue
		}
		f := get(row.Account)
		f.movement = f.movement.Add(row.Normalize(), 1)
		if !f.hasOpening || date.After(f.openingDate) {
			f.hasOpening = true
			f.openingDate = date
			f.opening = row.NormalizeNet()
		}
	}

	for _, row := range src.Ledger {
		if !w.Includes(row.Book) {
			continue
		}
		date := dateOnly(row.Date)
		switch {
		case date.Before(end):
			f := get(row.Account)
			f.movement = f.movement.Add(row.Normalize(), -1)
		case date.After(end) && !date.After(closing):
			f := get(row.Account)
			f.movement = f.movement.Add(row.Normalize(), 1)
		}
	}

	for _, row := range src.Journal {
		if !w.Includes(row.Book) {
			continue
		}
		date := dateOnly(row.HeaderDate)
		if !date.After(end) {
			f := get(row.Account)
			f.balance = f.balance.Add(row.Normalize(), 1)
		}
		if !date.Before(start) && !date.After(closing) {
			f := get(row.Account)
			f.movement = f.movement.Add(row.Normalize(), 1)
		}
	}

	totals := make([]AccountTotals, 0, len(folds))
	for account, f := range folds {
		balance := f.balance
		if f.hasOpening {
			balance = balance.Add(f.opening, 1)
		}
		balLocal, balForeign := balance.Net()
		t := AccountTotals{
			Account:        account,
			BalanceLocal:   balLocal,
			BalanceForeign: balForeign,
			Movement:       f.movement,
		}
		if isZeroTotals(t) {
			continue
		}
		totals = append(totals, t)
	}
	sort.Slice(totals, func(i, j int) bool { return totals[i].Account < totals[j].Account })
	return totals
}

func isZeroTotals(t AccountTotals) bool {
	return t.BalanceLocal.IsZero() && t.BalanceForeign.IsZero() &&
		t.Movement.DebitLocal.IsZero() && t.Movement.DebitForeign.IsZero() &&
		t.Movement.CreditLocal.IsZero() && t.Movement.CreditForeign.IsZero()
}
