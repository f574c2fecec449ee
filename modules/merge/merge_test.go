package merge

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCleanMergeNonOverlappingChanges(t *testing.T) {
	base := []string{"celery", "garlic", "onions", "salmon", "tomatoes", "wine"}
	ours := []string{"celery", "salmon", "tomatoes", "garlic", "onions", "wine"}
	theirs := []string{"celery", "salmon", "garlic", "onions", "tomatoes", "wine"}

	blocks := Merge(base, ours, theirs)
	require.False(t, HasConflict(blocks))
}

func TestConflictingMergeBothSidesChangeSameLine(t *testing.T) {
	base := []string{"line one", "line two", "line three"}
	ours := []string{"line one", "OURS CHANGE", "line three"}
	theirs := []string{"line one", "THEIRS CHANGE", "line three"}

	blocks := Merge(base, ours, theirs)
	require.True(t, HasConflict(blocks))

	out := Render(blocks, "ours", "theirs")
	require.Contains(t, out, Sep1+" ours")
	require.Contains(t, out, "OURS CHANGE")
	require.Contains(t, out, Sep2)
	require.Contains(t, out, "THEIRS CHANGE")
	require.Contains(t, out, Sep3+" theirs")
}

func TestIdenticalSidesNoConflict(t *testing.T) {
	base := []string{"a", "b", "c"}
	ours := []string{"a", "b", "c", "d"}
	theirs := []string{"a", "b", "c", "d"}

	blocks := Merge(base, ours, theirs)
	require.False(t, HasConflict(blocks))
}

func TestIsBinaryDetectsNulByte(t *testing.T) {
	require.False(t, IsBinary([]byte("plain text content")))
	require.True(t, IsBinary([]byte("binary\x00content")))
}

func TestSplitLines(t *testing.T) {
	require.Equal(t, []string{"a", "b", "c"}, SplitLines("a\nb\nc\n"))
	require.Equal(t, []string{"a", "b", "c"}, SplitLines("a\nb\nc"))
	require.Nil(t, SplitLines(""))
}
