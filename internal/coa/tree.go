package coa

// Account codes encode their own hierarchy: truncating the code at fixed
// prefix lengths and re-padding with zero segments yields the code of the
// summary account at that level. "01.1.1.1.001" therefore rolls up through
// "01.0.0.0.000", "01.1.0.0.000", "01.1.1.0.000", "01.1.1.1.000" and itself.
var hierarchyLevels = [HierarchyDepth]struct {
	prefixLen int
	padding   string
}{
	{2, ".0.0.0.000"},
	{4, ".0.0.000"},
	{6, ".0.000"},
	{8, ".000"},
	{12, ""},
}

// HierarchyDepth is the fixed number of roll-up levels.
const HierarchyDepth = 5

// Ancestor is one resolved roll-up level of a leaf account.
type Ancestor struct {
	Code        string
	Description string
}

// Ancestry holds the five roll-up levels of a leaf account, coarsest first.
type Ancestry [HierarchyDepth]Ancestor

// Tree is the chart of accounts indexed by code, built once per
// materialization so ancestor lookups never touch the database.
type Tree struct {
	accounts map[string]Account
}

// NewTree indexes the supplied chart of accounts.
func NewTree(accounts []Account) *Tree {
	idx := make(map[string]Account, len(accounts))
	for _, a := range accounts {
		idx[a.Code] = a
	}
	return &Tree{accounts: idx}
}

// Lookup returns the account with the given code.
func (t *Tree) Lookup(code string) (Account, bool) {
	a, ok := t.accounts[code]
	return a, ok
}

// Len returns the number of indexed accounts.
func (t *Tree) Len() int {
	return len(t.accounts)
}

// AncestorCode derives the summary-account code for one hierarchy level.
// The second return is false when the leaf code is too short for the level.
func AncestorCode(leaf string, level int) (string, bool) {
	if level < 0 || level >= HierarchyDepth {
		return "", false
	}
	spec := hierarchyLevels[level]
	if len(leaf) < spec.prefixLen {
		return "", false
	}
	return leaf[:spec.prefixLen] + spec.padding, true
}

// Expand resolves the five ancestors of a leaf account. It fails closed:
// if any level's summary account is missing from the chart the leaf is
// reported unresolvable and must be excluded from roll-ups, because an
// incomplete hierarchy would corrupt level totals.
func (t *Tree) Expand(leaf string) (Ancestry, bool) {
	var out Ancestry
	for level := range hierarchyLevels {
		code, ok := AncestorCode(leaf, level)
		if !ok {
			return Ancestry{}, false
		}
		acct, ok := t.accounts[code]
		if !ok {
			return Ancestry{}, false
		}
		out[level] = Ancestor{Code: code, Description: acct.Description}
	}
	return out, true
}
