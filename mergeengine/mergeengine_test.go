package mergeengine

import (
	"context"
	"testing"
	"time"

	"github.com/dot-do/gitcore/modules/codec"
	"github.com/dot-do/gitcore/modules/merge"
	"github.com/dot-do/gitcore/modules/object"
	"github.com/dot-do/gitcore/modules/plumbing"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	objects map[plumbing.Hash][]byte
	types   map[plumbing.Hash]codec.ObjectType
}

func newMemStore() *memStore {
	return &memStore{objects: map[plumbing.Hash][]byte{}, types: map[plumbing.Hash]codec.ObjectType{}}
}

func (s *memStore) Put(t codec.ObjectType, content []byte) (plumbing.Hash, error) {
	oid := codec.HashObject(t, content)
	s.objects[oid] = content
	s.types[oid] = t
	return oid, nil
}

func (s *memStore) ReadTree(oid plumbing.Hash) (*object.Tree, error) {
	raw, ok := s.objects[oid]
	if !ok {
		return nil, plumbing.NoSuchObject(oid)
	}
	return object.ParseTree(codec.Frame(codec.TypeTree, raw))
}

func (s *memStore) ReadBlob(oid plumbing.Hash) (*object.Blob, error) {
	raw, ok := s.objects[oid]
	if !ok {
		return nil, plumbing.NoSuchObject(oid)
	}
	return object.ParseBlob(codec.Frame(codec.TypeBlob, raw))
}

func (s *memStore) ReadCommit(oid plumbing.Hash) (*object.Commit, error) {
	raw, ok := s.objects[oid]
	if !ok {
		return nil, plumbing.NoSuchObject(oid)
	}
	return object.ParseCommit(codec.Frame(codec.TypeCommit, raw))
}

func putBlob(t *testing.T, s *memStore, content string) plumbing.Hash {
	oid, err := s.Put(codec.TypeBlob, []byte(content))
	require.NoError(t, err)
	return oid
}

func putTree(t *testing.T, s *memStore, entries ...object.TreeEntry) plumbing.Hash {
	tree, err := object.NewTree(entries)
	require.NoError(t, err)
	raw, err := tree.Serialize()
	require.NoError(t, err)
	oid, err := s.Put(codec.TypeTree, raw)
	require.NoError(t, err)
	return oid
}

func sig(name string) object.Signature {
	return object.Signature{Name: name, Email: name + "@example.com", When: time.Unix(1700000000, 0).UTC()}
}

func putCommit(t *testing.T, s *memStore, tree plumbing.Hash, parents ...plumbing.Hash) plumbing.Hash {
	c, err := object.NewCommit(tree, parents, sig("author"), sig("author"), "msg")
	require.NoError(t, err)
	raw, err := c.Serialize()
	require.NoError(t, err)
	oid, err := s.Put(codec.TypeCommit, raw)
	require.NoError(t, err)
	return oid
}

func TestMergeFastForward(t *testing.T) {
	s := newMemStore()
	baseTree := putTree(t, s, object.TreeEntry{Name: "a.txt", Mode: object.ModeRegular, Hash: putBlob(t, s, "a\n")})
	base := putCommit(t, s, baseTree)

	theirTree := putTree(t, s, object.TreeEntry{Name: "a.txt", Mode: object.ModeRegular, Hash: putBlob(t, s, "a\nb\n")})
	theirs := putCommit(t, s, theirTree, base)

	res, err := Merge(context.Background(), s, s, t.TempDir(), base, theirs, sig("m"), sig("m"), "merge", Options{})
	require.NoError(t, err)
	require.Equal(t, OutcomeFastForward, res.Outcome)
	require.Equal(t, theirs, res.Commit)
}

func TestMergeCleanNonOverlapping(t *testing.T) {
	s := newMemStore()
	baseTree := putTree(t, s,
		object.TreeEntry{Name: "a.txt", Mode: object.ModeRegular, Hash: putBlob(t, s, "line1\nline2\nline3\n")},
		object.TreeEntry{Name: "b.txt", Mode: object.ModeRegular, Hash: putBlob(t, s, "keep\n")},
	)
	base := putCommit(t, s, baseTree)

	ourTree := putTree(t, s,
		object.TreeEntry{Name: "a.txt", Mode: object.ModeRegular, Hash: putBlob(t, s, "line1-ours\nline2\nline3\n")},
		object.TreeEntry{Name: "b.txt", Mode: object.ModeRegular, Hash: putBlob(t, s, "keep\n")},
	)
	ours := putCommit(t, s, ourTree, base)

	theirTree := putTree(t, s,
		object.TreeEntry{Name: "a.txt", Mode: object.ModeRegular, Hash: putBlob(t, s, "line1\nline2\nline3-theirs\n")},
		object.TreeEntry{Name: "b.txt", Mode: object.ModeRegular, Hash: putBlob(t, s, "keep\n")},
	)
	theirs := putCommit(t, s, theirTree, base)

	res, err := Merge(context.Background(), s, s, t.TempDir(), ours, theirs, sig("m"), sig("m"), "merge", Options{})
	require.NoError(t, err)
	require.Equal(t, OutcomeMerged, res.Outcome)

	merged, err := s.ReadCommit(res.Commit)
	require.NoError(t, err)
	mergedTree, err := s.ReadTree(merged.Tree)
	require.NoError(t, err)
	a := mergedTree.Find("a.txt")
	require.NotNil(t, a)
	ab, err := s.ReadBlob(a.Hash)
	require.NoError(t, err)
	require.Equal(t, "line1-ours\nline2\nline3-theirs\n", string(ab.Content))
}

func TestMergeConflictResolveContinue(t *testing.T) {
	s := newMemStore()
	baseTree := putTree(t, s, object.TreeEntry{Name: "a.txt", Mode: object.ModeRegular, Hash: putBlob(t, s, "shared\n")})
	base := putCommit(t, s, baseTree)

	ourTree := putTree(t, s, object.TreeEntry{Name: "a.txt", Mode: object.ModeRegular, Hash: putBlob(t, s, "ours-change\n")})
	ours := putCommit(t, s, ourTree, base)

	theirTree := putTree(t, s, object.TreeEntry{Name: "a.txt", Mode: object.ModeRegular, Hash: putBlob(t, s, "theirs-change\n")})
	theirs := putCommit(t, s, theirTree, base)

	root := t.TempDir()
	res, err := Merge(context.Background(), s, s, root, ours, theirs, sig("m"), sig("m"), "merge", Options{})
	require.NoError(t, err)
	require.Equal(t, OutcomeConflicts, res.Outcome)
	require.Len(t, res.Conflicts, 1)
	require.Equal(t, ConflictContent, res.Conflicts[0].Kind)
	require.Contains(t, string(res.Conflicts[0].Rendered), merge.Sep1)

	_, err = ContinueMerge(root, s, sig("m"), sig("m"))
	require.ErrorIs(t, err, ErrConflictsRemain)

	pm, err := ResolveConflict(s, s, root, "a.txt", object.ModeRegular, []byte("resolved\n"))
	require.NoError(t, err)
	require.Empty(t, pm.Conflicts)

	finalCommit, err := ContinueMerge(root, s, sig("m"), sig("m"))
	require.NoError(t, err)
	commit, err := s.ReadCommit(finalCommit)
	require.NoError(t, err)
	require.Equal(t, []plumbing.Hash{ours, theirs}, commit.Parents)
	tree, err := s.ReadTree(commit.Tree)
	require.NoError(t, err)
	entry := tree.Find("a.txt")
	require.NotNil(t, entry)
	blob, err := s.ReadBlob(entry.Hash)
	require.NoError(t, err)
	require.Equal(t, "resolved\n", string(blob.Content))

	_, err = Load(root)
	require.ErrorIs(t, err, ErrNoPendingMerge)
}

func TestMergeFastForwardOnlyRefusesTrueMerge(t *testing.T) {
	s := newMemStore()
	baseTree := putTree(t, s, object.TreeEntry{Name: "a.txt", Mode: object.ModeRegular, Hash: putBlob(t, s, "shared\n")})
	base := putCommit(t, s, baseTree)
	ourTree := putTree(t, s, object.TreeEntry{Name: "a.txt", Mode: object.ModeRegular, Hash: putBlob(t, s, "ours\n")})
	ours := putCommit(t, s, ourTree, base)
	theirTree := putTree(t, s, object.TreeEntry{Name: "a.txt", Mode: object.ModeRegular, Hash: putBlob(t, s, "theirs\n")})
	theirs := putCommit(t, s, theirTree, base)

	_, err := Merge(context.Background(), s, s, t.TempDir(), ours, theirs, sig("m"), sig("m"), "merge", Options{FastForwardOnly: true})
	require.ErrorIs(t, err, ErrNotFastForwardable)
}

func TestMergeAutoResolveOurs(t *testing.T) {
	s := newMemStore()
	baseTree := putTree(t, s, object.TreeEntry{Name: "a.txt", Mode: object.ModeRegular, Hash: putBlob(t, s, "shared\n")})
	base := putCommit(t, s, baseTree)
	ourTree := putTree(t, s, object.TreeEntry{Name: "a.txt", Mode: object.ModeRegular, Hash: putBlob(t, s, "ours-change\n")})
	ours := putCommit(t, s, ourTree, base)
	theirTree := putTree(t, s, object.TreeEntry{Name: "a.txt", Mode: object.ModeRegular, Hash: putBlob(t, s, "theirs-change\n")})
	theirs := putCommit(t, s, theirTree, base)

	res, err := Merge(context.Background(), s, s, t.TempDir(), ours, theirs, sig("m"), sig("m"), "merge", Options{AutoResolve: AutoResolveOurs})
	require.NoError(t, err)
	require.Equal(t, OutcomeMerged, res.Outcome)
	require.Empty(t, res.Conflicts)

	commit, err := s.ReadCommit(res.Commit)
	require.NoError(t, err)
	tree, err := s.ReadTree(commit.Tree)
	require.NoError(t, err)
	blob, err := s.ReadBlob(tree.Find("a.txt").Hash)
	require.NoError(t, err)
	require.Equal(t, "ours-change\n", string(blob.Content))
}

func TestMergeNoCommitReturnsTreeOnly(t *testing.T) {
	s := newMemStore()
	baseTree := putTree(t, s,
		object.TreeEntry{Name: "a.txt", Mode: object.ModeRegular, Hash: putBlob(t, s, "line1\nline2\nline3\n")},
	)
	base := putCommit(t, s, baseTree)
	ourTree := putTree(t, s,
		object.TreeEntry{Name: "a.txt", Mode: object.ModeRegular, Hash: putBlob(t, s, "line1-ours\nline2\nline3\n")},
	)
	ours := putCommit(t, s, ourTree, base)
	theirTree := putTree(t, s,
		object.TreeEntry{Name: "a.txt", Mode: object.ModeRegular, Hash: putBlob(t, s, "line1\nline2\nline3-theirs\n")},
	)
	theirs := putCommit(t, s, theirTree, base)

	res, err := Merge(context.Background(), s, s, t.TempDir(), ours, theirs, sig("m"), sig("m"), "merge", Options{NoCommit: true})
	require.NoError(t, err)
	require.Equal(t, OutcomeMerged, res.Outcome)
	require.True(t, res.Commit.IsZero())
	require.False(t, res.NewTree.IsZero())
}

func TestMergeAbort(t *testing.T) {
	s := newMemStore()
	baseTree := putTree(t, s, object.TreeEntry{Name: "a.txt", Mode: object.ModeRegular, Hash: putBlob(t, s, "shared\n")})
	base := putCommit(t, s, baseTree)
	ourTree := putTree(t, s, object.TreeEntry{Name: "a.txt", Mode: object.ModeRegular, Hash: putBlob(t, s, "ours\n")})
	ours := putCommit(t, s, ourTree, base)
	theirTree := putTree(t, s, object.TreeEntry{Name: "a.txt", Mode: object.ModeRegular, Hash: putBlob(t, s, "theirs\n")})
	theirs := putCommit(t, s, theirTree, base)

	root := t.TempDir()
	res, err := Merge(context.Background(), s, s, root, ours, theirs, sig("m"), sig("m"), "merge", Options{})
	require.NoError(t, err)
	require.Equal(t, OutcomeConflicts, res.Outcome)

	require.NoError(t, Abort(root))
	_, err = Load(root)
	require.ErrorIs(t, err, ErrNoPendingMerge)
}

func TestMergeUnrelatedHistoriesRefused(t *testing.T) {
	s := newMemStore()
	ourTree := putTree(t, s, object.TreeEntry{Name: "a.txt", Mode: object.ModeRegular, Hash: putBlob(t, s, "x\n")})
	ours := putCommit(t, s, ourTree)
	theirTree := putTree(t, s, object.TreeEntry{Name: "b.txt", Mode: object.ModeRegular, Hash: putBlob(t, s, "y\n")})
	theirs := putCommit(t, s, theirTree)

	_, err := Merge(context.Background(), s, s, t.TempDir(), ours, theirs, sig("m"), sig("m"), "merge", Options{})
	require.ErrorIs(t, err, ErrUnrelatedHistories)
}
