package refs

import (
	"database/sql"
	"testing"

	"github.com/dot-do/gitcore/modules/plumbing"
	"github.com/dot-do/gitcore/sqlstore"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sqlstore.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestUpdateCreateAndReadBack(t *testing.T) {
	s := NewStore(openTestDB(t))
	h := plumbing.NewHash("1111111111111111111111111111111111111111")
	require.NoError(t, s.Update("refs/heads/main", h, plumbing.ZeroHash))

	ref, err := s.Get("refs/heads/main")
	require.NoError(t, err)
	require.False(t, ref.IsSymbolic())
	require.Equal(t, h, ref.Hash)
}

func TestUpdateRejectsStaleOldValue(t *testing.T) {
	s := NewStore(openTestDB(t))
	h1 := plumbing.NewHash("1111111111111111111111111111111111111111")
	h2 := plumbing.NewHash("2222222222222222222222222222222222222222")
	require.NoError(t, s.Update("refs/heads/main", h1, plumbing.ZeroHash))

	err := s.Update("refs/heads/main", h2, plumbing.ZeroHash)
	require.ErrorIs(t, err, ErrChanged)

	require.NoError(t, s.Update("refs/heads/main", h2, h1))
	ref, err := s.Get("refs/heads/main")
	require.NoError(t, err)
	require.Equal(t, h2, ref.Hash)
}

func TestLogRecordsMovesNewestFirst(t *testing.T) {
	s := NewStore(openTestDB(t))
	h1 := plumbing.NewHash("1111111111111111111111111111111111111111")
	h2 := plumbing.NewHash("2222222222222222222222222222222222222222")
	h3 := plumbing.NewHash("3333333333333333333333333333333333333333")

	require.NoError(t, s.Update("refs/heads/main", h1, plumbing.ZeroHash))
	require.NoError(t, s.Update("refs/heads/main", h2, h1))
	require.NoError(t, s.Update("refs/heads/main", h3, h2))

	entries, err := s.Log("refs/heads/main")
	require.NoError(t, err)
	require.Len(t, entries, 3)
	require.Equal(t, h2, entries[0].Old)
	require.Equal(t, h3, entries[0].New)
	require.Equal(t, h1, entries[1].Old)
	require.Equal(t, h2, entries[1].New)
	require.Equal(t, plumbing.ZeroHash, entries[2].Old)
	require.Equal(t, h1, entries[2].New)
}

func TestSymbolicHeadResolves(t *testing.T) {
	s := NewStore(openTestDB(t))
	h := plumbing.NewHash("3333333333333333333333333333333333333333")
	require.NoError(t, s.Update("refs/heads/main", h, plumbing.ZeroHash))
	require.NoError(t, s.UpdateSymbolic(HEAD, "refs/heads/main"))

	ref, err := s.Head()
	require.NoError(t, err)
	require.Equal(t, h, ref.Hash)
}

func TestDeleteRequiresMatchingOldValue(t *testing.T) {
	s := NewStore(openTestDB(t))
	h := plumbing.NewHash("4444444444444444444444444444444444444444")
	require.NoError(t, s.Update("refs/heads/feature", h, plumbing.ZeroHash))

	err := s.Delete("refs/heads/feature", plumbing.ZeroHash)
	require.ErrorIs(t, err, ErrChanged)

	require.NoError(t, s.Delete("refs/heads/feature", h))
	_, err = s.Get("refs/heads/feature")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestListReturnsRefsUnderPrefix(t *testing.T) {
	s := NewStore(openTestDB(t))
	h := plumbing.NewHash("5555555555555555555555555555555555555555")
	require.NoError(t, s.Update("refs/heads/main", h, plumbing.ZeroHash))
	require.NoError(t, s.Update("refs/heads/dev", h, plumbing.ZeroHash))
	require.NoError(t, s.Update("refs/tags/v1", h, plumbing.ZeroHash))

	heads, err := s.List("refs/heads")
	require.NoError(t, err)
	require.Len(t, heads, 2)
}

func TestShortNameUnambiguous(t *testing.T) {
	s := NewStore(openTestDB(t))
	h := plumbing.NewHash("6666666666666666666666666666666666666666")
	require.NoError(t, s.Update("refs/heads/main", h, plumbing.ZeroHash))
	require.Equal(t, "main", s.ShortName("refs/heads/main"))
}

func TestValidateRejectsMalformedNames(t *testing.T) {
	require.Error(t, Validate("refs/heads/../evil"))
	require.Error(t, Validate("refs/heads/"))
	require.Error(t, Validate(""))
	require.NoError(t, Validate("refs/heads/main"))
}
