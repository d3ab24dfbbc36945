package balance

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mcaceresg1/ledger-reports/internal/coa"
)

var (
	// ErrInvalidWindow indicates an unusable report window.
	ErrInvalidWindow = errors.New("balance: invalid report window")
	// ErrSnapshotMissing indicates no snapshot exists for the tenant.
	ErrSnapshotMissing = errors.New("balance: snapshot not materialized")
)

// Book classifies a posting as fiscal, administrative or both.
type Book string

const (
	BookFiscal         Book = "Fiscal"
	BookAdministrative Book = "Administrative"
	BookBoth           Book = "Both"
)

// EntryBook is the accounting-book flag carried by ledger and journal rows.
type EntryBook string

const (
	EntryFiscal         EntryBook = "F"
	EntryAdministrative EntryBook = "A"
)

// ReportType labels a materialized snapshot.
type ReportType string

const (
	ReportPreliminary ReportType = "Preliminary"
	ReportOfficial    ReportType = "Official"
)

const (
	minWindowYear = 1900
	maxWindowYear = 2100
)

// Window parameterizes one materialization. It is never persisted; its
// fingerprint is stamped onto the snapshot it produced.
type Window struct {
	Start      time.Time
	End        time.Time
	Book       Book
	ReportType ReportType
}

// Validate rejects windows before they reach the aggregator.
func (w Window) Validate() error {
	if w.Start.IsZero() || w.End.IsZero() {
		return fmt.Errorf("%w: start and end dates required", ErrInvalidWindow)
	}
	if w.End.Before(w.Start) {
		return fmt.Errorf("%w: end %s before start %s", ErrInvalidWindow,
			w.End.Format("2006-01-02"), w.Start.Format("2006-01-02"))
	}
	for _, y := range []int{w.Start.Year(), w.End.Year()} {
		if y < minWindowYear || y > maxWindowYear {
			return fmt.Errorf("%w: year %d out of range", ErrInvalidWindow, y)
		}
	}
	switch w.Book {
	case BookFiscal, BookAdministrative, BookBoth:
	default:
		return fmt.Errorf("%w: unknown accounting book %q", ErrInvalidWindow, w.Book)
	}
	switch w.ReportType {
	case ReportPreliminary, ReportOfficial:
	default:
		return fmt.Errorf("%w: unknown report type %q", ErrInvalidWindow, w.ReportType)
	}
	return nil
}

// Includes reports whether a row with the given accounting-book flag
// participates in this window.
func (w Window) Includes(book EntryBook) bool {
	switch w.Book {
	case BookFiscal:
		return book == EntryFiscal
	case BookAdministrative:
		return book == EntryAdministrative
	default:
		return book == EntryFiscal || book == EntryAdministrative
	}
}

// Fingerprint identifies the window a snapshot was generated from so stale
// snapshots can be detected instead of silently served.
func (w Window) Fingerprint() string {
	return strings.Join([]string{
		w.Start.Format("2006-01-02"),
		w.End.Format("2006-01-02"),
		string(w.Book),
		string(w.ReportType),
	}, "|")
}

// ParseFingerprint reverses Fingerprint. Background refreshes use it to
// rebuild a snapshot against the same window it was generated for.
func ParseFingerprint(s string) (Window, error) {
	parts := strings.Split(s, "|")
	if len(parts) != 4 {
		return Window{}, fmt.Errorf("%w: fingerprint %q", ErrInvalidWindow, s)
	}
	start, err := time.Parse("2006-01-02", parts[0])
	if err != nil {
		return Window{}, fmt.Errorf("%w: fingerprint start %q", ErrInvalidWindow, parts[0])
	}
	end, err := time.Parse("2006-01-02", parts[1])
	if err != nil {
		return Window{}, fmt.Errorf("%w: fingerprint end %q", ErrInvalidWindow, parts[1])
	}
	w := Window{Start: start, End: end, Book: Book(parts[2]), ReportType: ReportType(parts[3])}
	if err := w.Validate(); err != nil {
		return Window{}, err
	}
	return w, nil
}

// SnapshotRow is one materialized line of the trial balance: a leaf account
// with its five roll-up ancestors and aggregated figures.
type SnapshotRow struct {
	Account        string          `json:"account"`
	Description    string          `json:"description"`
	Ancestors      coa.Ancestry    `json:"ancestors"`
	BalanceLocal   decimal.Decimal `json:"balanceLocal"`
	BalanceForeign decimal.Decimal `json:"balanceForeign"`
	DebitLocal     decimal.Decimal `json:"debitLocal"`
	DebitForeign   decimal.Decimal `json:"debitForeign"`
	CreditLocal    decimal.Decimal `json:"creditLocal"`
	CreditForeign  decimal.Decimal `json:"creditForeign"`
	Currency       int             `json:"currency"`
	Type           string          `json:"type"`
	DetailedType   string          `json:"detailedType"`
	ReportType     ReportType      `json:"reportType"`
	CostCenter     string          `json:"costCenter,omitempty"`
	// TreeLevels are twelve numeric slots reserved for UI tree rendering.
	TreeLevels [12]int `json:"treeLevels"`
}

// Filters restricts snapshot reads. All fields are optional prefix matches
// combined with AND.
type Filters struct {
	AccountPrefix    string
	CostCenterPrefix string
	Type             string
	DetailedType     string
}

// IsZero reports whether no filter is set.
func (f Filters) IsZero() bool {
	return f == Filters{}
}

// Key serializes the filters for cache keys.
func (f Filters) Key() string {
	return strings.Join([]string{f.AccountPrefix, f.CostCenterPrefix, f.Type, f.DetailedType}, ",")
}
