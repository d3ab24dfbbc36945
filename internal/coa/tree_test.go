package coa

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func chartFixture() []Account {
	return []Account{
		{Code: "01.0.0.0.000", Description: "Assets"},
		{Code: "01.1.0.0.000", Description: "Current Assets"},
		{Code: "01.1.1.0.000", Description: "Cash and Equivalents"},
		{Code: "01.1.1.1.000", Description: "Cash"},
		{Code: "01.1.1.1.001", Description: "Petty Cash", NormalBalance: NormalDebit, Type: "ASSET", DetailedType: "CASH"},
	}
}

func TestAncestorCodePadding(t *testing.T) {
	leaf := "01.1.1.1.001"
	expected := []string{
		"01.0.0.0.000",
		"01.1.0.0.000",
		"01.1.1.0.000",
		"01.1.1.1.000",
		"01.1.1.1.001",
	}
	for level, want := range expected {
		code, ok := AncestorCode(leaf, level)
		require.True(t, ok, "level %d", level)
		require.Equal(t, want, code, "level %d", level)
	}
}

func TestAncestorCodeShortLeaf(t *testing.T) {
	_, ok := AncestorCode("01.1", 4)
	require.False(t, ok)
}

func TestExpandResolvesAllLevels(t *testing.T) {
	tree := NewTree(chartFixture())
	anc, ok := tree.Expand("01.1.1.1.001")
	require.True(t, ok)
	require.Equal(t, "Assets", anc[0].Description)
	require.Equal(t, "01.1.1.0.000", anc[2].Code)
	require.Equal(t, "Petty Cash", anc[4].Description)
}

func TestExpandFailsClosedOnMissingAncestor(t *testing.T) {
	chart := chartFixture()
	// Remove the 6-character summary account.
	var trimmed []Account
	for _, a := range chart {
		if a.Code == "01.1.1.0.000" {
			continue
		}
		trimmed = append(trimmed, a)
	}
	tree := NewTree(trimmed)
	_, ok := tree.Expand("01.1.1.1.001")
	require.False(t, ok)
}

func TestLookup(t *testing.T) {
	tree := NewTree(chartFixture())
	acct, ok := tree.Lookup("01.1.1.1.001")
	require.True(t, ok)
	require.Equal(t, "ASSET", acct.Type)
	_, ok = tree.Lookup("99.9.9.9.999")
	require.False(t, ok)
}
