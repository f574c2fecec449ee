package sqlstore

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOpenCreatesSchema(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "gitcore.db"))
	require.NoError(t, err)
	defer db.Close()

	tables := []string{"objects", "object_index", "hot_objects", "wal", "wal_checkpoints", "refs", "ref_log", "pull_requests", "pull_request_reviews"}
	for _, tbl := range tables {
		var name string
		err := db.QueryRow(`select name from sqlite_master where type='table' and name=?`, tbl).Scan(&name)
		require.NoError(t, err, "table %s should exist", tbl)
		require.Equal(t, tbl, name)
	}
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gitcore.db")
	db1, err := Open(path)
	require.NoError(t, err)
	db1.Close()

	db2, err := Open(path)
	require.NoError(t, err)
	defer db2.Close()
}
