package store

import (
	"path/filepath"
	"testing"

	"github.com/dot-do/gitcore/modules/codec"
	"github.com/dot-do/gitcore/sqlstore"
	"github.com/stretchr/testify/require"
)

func TestPutGetRoundTrip(t *testing.T) {
	conn, err := sqlstore.Open(":memory:")
	require.NoError(t, err)
	defer conn.Close()
	db, err := NewDatabase(conn, WithCache(100, 1<<20))
	require.NoError(t, err)
	defer db.Close()

	content := []byte("hello, content-addressed world")
	hash, err := db.Put(codec.TypeBlob, content)
	require.NoError(t, err)
	require.True(t, db.Has(hash))

	got, err := db.Get(hash)
	require.NoError(t, err)
	require.Equal(t, content, got)

	typ, err := db.GetType(hash)
	require.NoError(t, err)
	require.Equal(t, codec.TypeBlob, typ)

	size, err := db.GetSize(hash)
	require.NoError(t, err)
	require.Equal(t, int64(len(content)), size)
}

func TestDeleteRemovesObject(t *testing.T) {
	conn, err := sqlstore.Open(":memory:")
	require.NoError(t, err)
	defer conn.Close()
	db, err := NewDatabase(conn)
	require.NoError(t, err)
	defer db.Close()

	hash, err := db.Put(codec.TypeBlob, []byte("transient"))
	require.NoError(t, err)
	require.NoError(t, db.Delete(hash))
	require.False(t, db.Has(hash))
}

func TestVerifyAllDetectsNoCorruption(t *testing.T) {
	conn, err := sqlstore.Open(":memory:")
	require.NoError(t, err)
	defer conn.Close()
	db, err := NewDatabase(conn)
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Put(codec.TypeBlob, []byte("a"))
	require.NoError(t, err)
	_, err = db.Put(codec.TypeBlob, []byte("b"))
	require.NoError(t, err)

	bad, err := db.VerifyAll()
	require.NoError(t, err)
	require.Empty(t, bad)
}

func TestReopenRecoversFromWAL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	conn, err := sqlstore.Open(path)
	require.NoError(t, err)
	db, err := NewDatabase(conn)
	require.NoError(t, err)
	hash, err := db.Put(codec.TypeBlob, []byte("durable"))
	require.NoError(t, err)
	require.NoError(t, db.Close())
	require.NoError(t, conn.Close())

	conn2, err := sqlstore.Open(path)
	require.NoError(t, err)
	defer conn2.Close()
	db2, err := NewDatabase(conn2)
	require.NoError(t, err)
	defer db2.Close()
	require.True(t, db2.Has(hash))
}
