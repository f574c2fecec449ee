package repository

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dot-do/gitcore/config"
	"github.com/dot-do/gitcore/modules/codec"
	"github.com/dot-do/gitcore/modules/object"
	"github.com/dot-do/gitcore/modules/plumbing"
	"github.com/dot-do/gitcore/modules/wire"
	"github.com/dot-do/gitcore/refs"
)

func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	repo, err := Open(t.TempDir(), "test", config.Default())
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func commitWithFile(t *testing.T, repo *Repository, name, content string, parents []plumbing.Hash) plumbing.Hash {
	t.Helper()
	blob := object.NewBlob([]byte(content))
	braw, err := blob.Serialize()
	require.NoError(t, err)
	bh, err := repo.Objects.Put(codec.TypeBlob, braw)
	require.NoError(t, err)

	tree, err := object.NewTree([]object.TreeEntry{{Name: name, Mode: object.ModeRegular, Hash: bh}})
	require.NoError(t, err)
	traw, err := tree.Serialize()
	require.NoError(t, err)
	th, err := repo.Objects.Put(codec.TypeTree, traw)
	require.NoError(t, err)

	sig := object.Signature{Name: "a", Email: "a@example.com"}
	commit, err := object.NewCommit(th, parents, sig, sig, "msg")
	require.NoError(t, err)
	craw, err := commit.Serialize()
	require.NoError(t, err)
	ch, err := repo.Objects.Put(codec.TypeCommit, craw)
	require.NoError(t, err)
	return ch
}

func TestUploadPackThenReceivePackRoundTrip(t *testing.T) {
	src := newTestRepo(t)
	c1 := commitWithFile(t, src, "a.txt", "one", nil)

	var buf bytes.Buffer
	err := src.UploadPack(context.Background(), &buf, []plumbing.Hash{c1}, nil)
	require.NoError(t, err)
	require.Greater(t, buf.Len(), 0)

	dst := newTestRepo(t)
	err = dst.ApplyReceivePack(buf.Bytes(), []wire.RefUpdateCommand{
		{OldSHA: wire.ZeroOID, NewSHA: c1.String(), Ref: "refs/heads/main"},
	})
	require.NoError(t, err)

	ref, err := dst.Refs.Get(refs.Name("refs/heads/main"))
	require.NoError(t, err)
	require.Equal(t, c1, ref.Hash)

	got, err := dst.Objects.ReadCommit(c1)
	require.NoError(t, err)
	require.Equal(t, "msg", got.Message)
}

func TestUploadPackExcludesHaves(t *testing.T) {
	repo := newTestRepo(t)
	c1 := commitWithFile(t, repo, "a.txt", "one", nil)
	c2 := commitWithFile(t, repo, "b.txt", "two", []plumbing.Hash{c1})

	objs, err := repo.CollectObjects(context.Background(), []plumbing.Hash{c2}, []plumbing.Hash{c1})
	require.NoError(t, err)

	var sawC1 bool
	for _, o := range objs {
		if o.SHA == c1 {
			sawC1 = true
		}
	}
	require.False(t, sawC1, "commit already held by the client must not be resent")
}
