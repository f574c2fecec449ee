package graph

import (
	"context"
	"testing"

	"github.com/dot-do/gitcore/modules/object"
	"github.com/dot-do/gitcore/modules/plumbing"
	"github.com/stretchr/testify/require"
)

type fakeLoader struct {
	commits map[plumbing.Hash]*object.Commit
}

func (f *fakeLoader) ReadCommit(oid plumbing.Hash) (*object.Commit, error) {
	c, ok := f.commits[oid]
	if !ok {
		return nil, plumbing.NoSuchObject(oid)
	}
	return c, nil
}

func h(n string) plumbing.Hash {
	// Build a deterministic 40-char hex id padded from a short tag.
	full := n
	for len(full) < 40 {
		full += "0"
	}
	return plumbing.NewHash(full)
}

func commit(parents ...plumbing.Hash) *object.Commit {
	return &object.Commit{Tree: h("treeaaa"), Parents: parents}
}

// newDiamondLoader builds a history that forks at x:
//
//	root -> x -> a
//	root -> x -> b
func newDiamondLoader() (*fakeLoader, plumbing.Hash, plumbing.Hash, plumbing.Hash, plumbing.Hash) {
	root := h("root")
	x := h("x")
	a := h("a")
	b := h("b")
	loader := &fakeLoader{commits: map[plumbing.Hash]*object.Commit{
		root: commit(),
		x:    commit(root),
		a:    commit(x),
		b:    commit(x),
	}}
	return loader, root, x, a, b
}

func TestBFSVisitsEveryAncestorOnce(t *testing.T) {
	loader, root, x, a, _ := newDiamondLoader()
	ctx := context.Background()
	ancestors, err := Ancestors(ctx, loader, a)
	require.NoError(t, err)
	require.True(t, ancestors[root])
	require.True(t, ancestors[x])
	require.True(t, ancestors[a])
}

func TestIsAncestor(t *testing.T) {
	loader, root, _, a, b := newDiamondLoader()
	ctx := context.Background()
	ok, err := IsAncestor(ctx, loader, root, a)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = IsAncestor(ctx, loader, a, b)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestMergeBaseFindsCommonAncestor(t *testing.T) {
	loader, _, x, a, b := newDiamondLoader()
	ctx := context.Background()
	bases, err := MergeBase(ctx, loader, a, b)
	require.NoError(t, err)
	require.Equal(t, []plumbing.Hash{x}, bases)
}

func TestOctopusMergeBase(t *testing.T) {
	loader, _, x, a, b := newDiamondLoader()
	c := h("c")
	loader.commits[c] = commit(x)
	ctx := context.Background()
	bases, err := OctopusMergeBase(ctx, loader, []plumbing.Hash{a, b, c})
	require.NoError(t, err)
	require.Equal(t, []plumbing.Hash{x}, bases)
}

type fakeReflog struct {
	entries map[string][]ReflogEntry
}

func (f *fakeReflog) Log(name string) ([]ReflogEntry, error) {
	return f.entries[name], nil
}

func TestForkPointFallsBackToMergeBaseWithEmptyReflog(t *testing.T) {
	loader, _, x, a, b := newDiamondLoader()
	ctx := context.Background()
	log := &fakeReflog{entries: map[string][]ReflogEntry{}}
	fp, err := ForkPoint(ctx, loader, log, "refs/heads/main", a, b)
	require.NoError(t, err)
	require.Equal(t, x, fp)
}

func TestForkPointUsesReflogAfterBaseRewound(t *testing.T) {
	// main used to point at x (b's fork point) but was since rewound
	// onto a new commit off root, so a plain merge-base(main, b) would
	// only find root. The reflog still remembers main once pointed at
	// x, which is still an ancestor of b.
	loader, root, x, _, b := newDiamondLoader()
	rewound := h("rewound")
	loader.commits[rewound] = commit(root)
	ctx := context.Background()
	log := &fakeReflog{entries: map[string][]ReflogEntry{
		"refs/heads/main": {
			{Old: x, New: rewound},
			{Old: root, New: x},
		},
	}}
	fp, err := ForkPoint(ctx, loader, log, "refs/heads/main", rewound, b)
	require.NoError(t, err)
	require.Equal(t, x, fp)
}
