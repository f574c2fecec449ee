package store

import (
	"database/sql"
	"fmt"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/dot-do/gitcore/modules/codec"
	"github.com/dot-do/gitcore/modules/object"
	"github.com/dot-do/gitcore/modules/plumbing"
)

// Database is the content-addressed object store: rows in sqlstore's
// objects table, guarded by a SQL-backed WAL and fronted by a bounded
// Cache, in the Option-constructor/Reload/atomic-close-once shape of
// backend.Database. A second table, object_index, tracks which tier
// (hot/warm/cold) each object currently lives in for migrate's benefit;
// Put/Delete keep both tables in lockstep inside one SQL transaction, so
// a tier starts every object at tierHot and migrate.Controller moves it
// from there.
type Database struct {
	db      *sql.DB
	wal     *WAL
	cache   *Cache
	neg     *negativeCache
	reads   singleflight.Group
	mu      sync.RWMutex
	closed  uint32
	cacheOn bool
}

// Option configures a Database at construction time.
type Option func(*Database)

// WithCache enables the read cache, bounded by maxItems entries and
// maxBytes total size.
func WithCache(maxItems int, maxBytes int64) Option {
	return func(d *Database) {
		d.cacheOn = true
		d.cache = NewCache(maxItems, maxBytes)
	}
}

// NewDatabase opens the object store backed by db, replaying its WAL to
// recover any transaction that committed but was not yet reflected in
// the objects table. db is expected to already carry the schema
// sqlstore.Open creates; NewDatabase does not open or close it.
func NewDatabase(db *sql.DB, opts ...Option) (*Database, error) {
	d := &Database{db: db, wal: OpenWAL(db), neg: newNegativeCache()}
	for _, o := range opts {
		o(d)
	}
	if err := d.wal.Recover(d.applyRecovered); err != nil {
		return nil, err
	}
	return d, nil
}

// applyRecovered replays one unflushed WAL row: "put" writes the payload
// back into objects/object_index, "delete" removes it. The original
// write commits its WAL row and object rows in one SQL transaction and
// marks the row flushed right after, so a row only shows up here if the
// process stopped between that commit and the flush; replaying it
// rewrites rows that are already in place.
func (d *Database) applyRecovered(operation string, payload []byte, txID string) error {
	verb, sha, ok := splitOperation(operation)
	if !ok {
		return fmt.Errorf("store: malformed wal operation %q", operation)
	}
	switch verb {
	case "delete":
		if _, err := d.db.Exec(`delete from objects where sha = ?`, sha); err != nil {
			return err
		}
		_, err := d.db.Exec(`delete from object_index where sha = ?`, sha)
		return err
	default:
		hash := plumbing.NewHash(sha)
		framed, err := codec.Decompress(payload)
		if err != nil {
			return err
		}
		return d.insertObject(d.db, hash, framed)
	}
}

// splitOperation parses a WAL operation string of the form "verb:sha"
// written by Put/Delete.
func splitOperation(operation string) (verb, sha string, ok bool) {
	i := indexByte([]byte(operation), ':')
	if i < 0 {
		return "", "", false
	}
	return operation[:i], operation[i+1:], true
}

func (d *Database) insertObject(exec interface {
	Exec(query string, args ...any) (sql.Result, error)
}, hash plumbing.Hash, framed []byte) error {
	typ, size, content, err := splitFramed(framed)
	if err != nil {
		return err
	}
	now := timeNow().Unix()
	if _, err := exec.Exec(`insert or replace into objects(sha, type, size, data, created_at) values (?, ?, ?, ?, ?)`,
		hash.String(), string(typ), size, content, now); err != nil {
		return fmt.Errorf("store: insert object %s: %w", hash, err)
	}
	if _, err := exec.Exec(`insert into object_index(sha, tier, pack_id, offset, size, type, updated_at)
		values (?, ?, null, null, ?, ?, ?)
		on conflict(sha) do update set updated_at = excluded.updated_at`,
		hash.String(), tierHot, size, string(typ), now); err != nil {
		return fmt.Errorf("store: index object %s: %w", hash, err)
	}
	return nil
}

// tierHot is the tier every newly written object starts in, matching
// the string form of migrate.TierHot without importing the migrate
// package (store has no dependency on migrate, and migrate's HotBackend
// takes plain function values rather than a store type, see
// migrate/tier.go).
const tierHot = "hot"

func splitFramed(framed []byte) (codec.ObjectType, int64, []byte, error) {
	sp := indexByte(framed, ' ')
	nul := indexByte(framed, 0)
	if sp < 0 || nul < 0 || sp > nul {
		return "", 0, nil, fmt.Errorf("store: malformed object framing")
	}
	return codec.ObjectType(framed[:sp]), int64(len(framed) - nul - 1), framed[nul+1:], nil
}

// Close flushes the WAL and marks the database closed; a second Close
// returns an error. The underlying *sql.DB is owned by whoever opened it
// (repository.Open) and is not closed here.
func (d *Database) Close() error {
	if !atomic.CompareAndSwapUint32(&d.closed, 0, 1) {
		return fmt.Errorf("store: database already closed")
	}
	d.neg.close()
	return d.wal.Close()
}

// Put stores content under the given object type, returning its hash.
// The WAL row and the objects/object_index rows are written inside one
// SQL transaction, so a crash between them cannot leave the store
// missing an object its caller believes landed.
func (d *Database) Put(t codec.ObjectType, content []byte) (plumbing.Hash, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	framed := codec.Frame(t, content)
	hash := codec.SHA1Bytes(framed)
	compressed, err := codec.Compress(framed)
	if err != nil {
		return plumbing.ZeroHash, err
	}

	tx, err := d.db.Begin()
	if err != nil {
		return plumbing.ZeroHash, err
	}
	defer tx.Rollback()

	walTx := d.wal.BeginTx()
	if _, err := d.wal.Append(tx, walTx.ID, "put:"+hash.String(), compressed); err != nil {
		return plumbing.ZeroHash, err
	}
	if err := d.insertObject(tx, hash, framed); err != nil {
		return plumbing.ZeroHash, err
	}
	if err := tx.Commit(); err != nil {
		return plumbing.ZeroHash, err
	}
	if err := d.wal.CommitTx(walTx.ID); err != nil {
		return plumbing.ZeroHash, err
	}
	if _, err := d.wal.Flush(); err != nil {
		return plumbing.ZeroHash, err
	}

	d.neg.forget(hash.String())
	if d.cacheOn {
		d.cache.Set(hash.String(), framed, int64(len(framed)), 0)
	}
	return hash, nil
}

// PutMany stores every content/type pair, returning their hashes in
// order. It stops at the first error.
func (d *Database) PutMany(items []struct {
	Type    codec.ObjectType
	Content []byte
}) ([]plumbing.Hash, error) {
	hashes := make([]plumbing.Hash, 0, len(items))
	for _, it := range items {
		h, err := d.Put(it.Type, it.Content)
		if err != nil {
			return hashes, err
		}
		hashes = append(hashes, h)
	}
	return hashes, nil
}

// rawGet returns an object's framed (type+size+NUL+content) bytes.
// rawGet's query is collapsed through a singleflight.Group keyed by oid,
// so a burst of concurrent Get/Has calls for the same object (upload-pack
// fanning out over a commit's tree, several PR reviewers diffing the same
// blob) pays for one SQL read instead of one per caller.
func (d *Database) rawGet(oid plumbing.Hash) ([]byte, error) {
	key := oid.String()
	if d.cacheOn {
		if v, ok := d.cache.Get(key); ok {
			return v.([]byte), nil
		}
	}
	if d.neg.isKnownAbsent(key) {
		return nil, plumbing.NoSuchObject(oid)
	}
	v, err, _ := d.reads.Do(key, func() (any, error) {
		var typ string
		var content []byte
		err := d.db.QueryRow(`select type, data from objects where sha = ?`, key).Scan(&typ, &content)
		if err == sql.ErrNoRows {
			d.neg.markAbsent(key)
			return nil, plumbing.NoSuchObject(oid)
		}
		if err != nil {
			return nil, plumbing.NewError(plumbing.KindConsistency, "get", oid, "", err)
		}
		framed := codec.Frame(codec.ObjectType(typ), content)
		if d.cacheOn {
			d.cache.Set(key, framed, int64(len(framed)), 0)
		}
		return framed, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

// Has reports whether oid is present without inflating its content.
func (d *Database) Has(oid plumbing.Hash) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	key := oid.String()
	if d.cacheOn {
		if _, ok := d.cache.Peek(key); ok {
			return true
		}
	}
	if d.neg.isKnownAbsent(key) {
		return false
	}
	var exists int
	if err := d.db.QueryRow(`select 1 from objects where sha = ?`, key).Scan(&exists); err != nil {
		if err == sql.ErrNoRows {
			d.neg.markAbsent(key)
		}
		return false
	}
	return true
}

// GetType returns the declared object type for oid, served directly from
// the objects table's type column rather than inflating content.
func (d *Database) GetType(oid plumbing.Hash) (codec.ObjectType, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var typ string
	err := d.db.QueryRow(`select type from objects where sha = ?`, oid.String()).Scan(&typ)
	if err == sql.ErrNoRows {
		return "", plumbing.NoSuchObject(oid)
	}
	if err != nil {
		return "", err
	}
	return codec.ObjectType(typ), nil
}

// GetSize returns the declared content size for oid, served directly
// from the objects table's size column.
func (d *Database) GetSize(oid plumbing.Hash) (int64, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var size int64
	err := d.db.QueryRow(`select size from objects where sha = ?`, oid.String()).Scan(&size)
	if err == sql.ErrNoRows {
		return 0, plumbing.NoSuchObject(oid)
	}
	return size, err
}

// Get returns an object's raw content (without the type/size framing).
func (d *Database) Get(oid plumbing.Hash) ([]byte, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	framed, err := d.rawGet(oid)
	if err != nil {
		return nil, err
	}
	nul := indexByte(framed, 0)
	if nul < 0 {
		return nil, plumbing.NewError(plumbing.KindCodec, "get", oid, "", fmt.Errorf("malformed object framing"))
	}
	return framed[nul+1:], nil
}

// GetMany fetches several objects, stopping at the first error.
func (d *Database) GetMany(oids []plumbing.Hash) ([][]byte, error) {
	out := make([][]byte, 0, len(oids))
	for _, oid := range oids {
		b, err := d.Get(oid)
		if err != nil {
			return out, err
		}
		out = append(out, b)
	}
	return out, nil
}

// Delete removes oid from the store, through the WAL so the removal is
// itself durable and replayable, and drops its object_index row in the
// same SQL transaction.
func (d *Database) Delete(oid plumbing.Hash) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	tx, err := d.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	walTx := d.wal.BeginTx()
	if _, err := d.wal.Append(tx, walTx.ID, "delete:"+oid.String(), nil); err != nil {
		return err
	}
	if _, err := tx.Exec(`delete from objects where sha = ?`, oid.String()); err != nil {
		return err
	}
	if _, err := tx.Exec(`delete from object_index where sha = ?`, oid.String()); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	if err := d.wal.CommitTx(walTx.ID); err != nil {
		return err
	}
	if _, err := d.wal.Flush(); err != nil {
		return err
	}

	if d.cacheOn {
		d.cache.Delete(oid.String())
	}
	d.neg.markAbsent(oid.String())
	return nil
}

// VerifyAll re-hashes every stored object's content and returns the set
// of SHAs whose content no longer hashes to the name it is stored under.
// This is a supplemented batch-integrity operation this engine needs
// beyond per-object Get/Put.
func (d *Database) VerifyAll() ([]plumbing.Hash, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	rows, err := d.db.Query(`select sha, type, data from objects`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var bad []plumbing.Hash
	for rows.Next() {
		var sha, typ string
		var content []byte
		if err := rows.Scan(&sha, &typ, &content); err != nil {
			return nil, err
		}
		oid, err := plumbing.NewHashEx(sha)
		if err != nil {
			continue
		}
		framed := codec.Frame(codec.ObjectType(typ), content)
		if codec.SHA1Bytes(framed) != oid {
			bad = append(bad, oid)
		}
	}
	return bad, rows.Err()
}

// ReadBlob, ReadTree, ReadCommit, ReadTag decode a stored object as its
// typed form, failing with ErrMismatchedObject if oid names a different
// type.
func (d *Database) ReadBlob(oid plumbing.Hash) (*object.Blob, error) {
	raw, err := d.rawGet(oid)
	if err != nil {
		return nil, err
	}
	return object.ParseBlob(raw)
}

func (d *Database) ReadTree(oid plumbing.Hash) (*object.Tree, error) {
	raw, err := d.rawGet(oid)
	if err != nil {
		return nil, err
	}
	return object.ParseTree(raw)
}

func (d *Database) ReadCommit(oid plumbing.Hash) (*object.Commit, error) {
	raw, err := d.rawGet(oid)
	if err != nil {
		return nil, err
	}
	return object.ParseCommit(raw)
}

func (d *Database) ReadTag(oid plumbing.Hash) (*object.Tag, error) {
	raw, err := d.rawGet(oid)
	if err != nil {
		return nil, err
	}
	return object.ParseTag(raw)
}

func indexByte(b []byte, c byte) int {
	for i, x := range b {
		if x == c {
			return i
		}
	}
	return -1
}
