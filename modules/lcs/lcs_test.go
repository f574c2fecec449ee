package lcs

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLCSMatchesCommonSubsequence(t *testing.T) {
	a := []string{"a", "b", "c", "d", "e"}
	b := []string{"b", "c", "x", "e"}
	matches := LCS(a, b)
	require.Len(t, matches, 3)
	require.Equal(t, Match{A: 1, B: 0}, matches[0])
	require.Equal(t, Match{A: 2, B: 1}, matches[1])
	require.Equal(t, Match{A: 4, B: 3}, matches[2])
}

func TestDiffIdentical(t *testing.T) {
	a := []string{"1", "2", "3"}
	require.Empty(t, Diff(a, a))
}

func TestDiffInsertAndDelete(t *testing.T) {
	a := []string{"one", "two", "three"}
	b := []string{"one", "TWO", "three", "four"}
	changes := Diff(a, b)
	require.Len(t, changes, 2)
	require.Equal(t, Change{P1: 1, Del: 1, P2: 1, Ins: 1}, changes[0])
	require.Equal(t, Change{P1: 3, Del: 0, P2: 3, Ins: 1}, changes[1])
}
