package migrate

import (
	"context"
	"database/sql"
	"time"

	"github.com/dot-do/gitcore/modules/plumbing"
)

// SQLIndex is the Index implementation backing sqlstore's object_index
// table: the single location record migrate.Migrate updates on every
// successful tier move.
type SQLIndex struct {
	db *sql.DB
}

// NewSQLIndex wraps db for location-index bookkeeping. db is expected to
// already carry the schema sqlstore.Open creates.
func NewSQLIndex(db *sql.DB) *SQLIndex {
	return &SQLIndex{db: db}
}

// SetTier records oid as now living in tier, updating object_index in
// place so readers resolving an object's location always see either its
// old tier or its new one, never a gap.
func (idx *SQLIndex) SetTier(ctx context.Context, oid plumbing.Hash, tier Tier) error {
	_, err := idx.db.ExecContext(ctx, `update object_index set tier = ?, updated_at = ? where sha = ?`,
		tier.String(), time.Now().Unix(), oid.String())
	return err
}

// Tier reports the tier object_index currently records for oid, or
// false if the object has no index entry (not yet written through
// store.Database.Put).
func (idx *SQLIndex) Tier(ctx context.Context, oid plumbing.Hash) (Tier, bool, error) {
	var s string
	err := idx.db.QueryRowContext(ctx, `select tier from object_index where sha = ?`, oid.String()).Scan(&s)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	switch s {
	case "warm":
		return TierWarm, true, nil
	case "cold":
		return TierCold, true, nil
	default:
		return TierHot, true, nil
	}
}
