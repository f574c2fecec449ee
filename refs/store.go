package refs

import (
	"database/sql"
	"errors"
	"sort"
	"time"

	"github.com/dot-do/gitcore/graph"
	"github.com/dot-do/gitcore/modules/plumbing"
)

// Store is a reference database backed by sqlstore's refs table: name is
// the primary key, hash holds a direct reference's target object id, and
// target holds a symbolic reference's pointee name (type distinguishes
// the two so a zero hash and an empty target both read unambiguously as
// "not set").
type Store struct {
	db *sql.DB
}

// NewStore wraps db for reference storage. db is expected to already
// carry the schema sqlstore.Open creates.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

const refTypeSymbolic = "symbolic"
const refTypeDirect = "sha"

// Get reads name's current value directly, without following symbolic
// indirection.
func (s *Store) Get(name Name) (*Reference, error) {
	var target, hash, typ string
	err := s.db.QueryRow(`select target, hash, type from refs where name = ?`, string(name)).Scan(&target, &hash, &typ)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if typ == refTypeSymbolic {
		return &Reference{Name: name, Target: Name(target)}, nil
	}
	return &Reference{Name: name, Hash: plumbing.NewHash(hash)}, nil
}

// Resolve follows symbolic references (e.g. HEAD -> refs/heads/main)
// until it reaches a direct reference, bounded to guard against cycles.
func (s *Store) Resolve(name Name) (*Reference, error) {
	const maxHops = 16
	cur := name
	for i := 0; i < maxHops; i++ {
		ref, err := s.Get(cur)
		if err != nil {
			return nil, err
		}
		if !ref.IsSymbolic() {
			return ref, nil
		}
		cur = ref.Target
	}
	return nil, errors.New("refs: symbolic reference chain too deep")
}

// Head is a convenience wrapper for Resolve(HEAD).
func (s *Store) Head() (*Reference, error) {
	return s.Resolve(HEAD)
}

// Update atomically sets name to point at newHash, failing with
// ErrChanged if name's current value is not exactly oldHash (the zero
// hash means "must not currently exist"). This is the engine's
// last-writer-wins guard: the caller reads old, computes new, and Update
// only commits if nothing else won the race in between, enforced here by
// doing the check-then-write inside one SQL transaction rather than a
// lock file.
func (s *Store) Update(name Name, newHash, oldHash plumbing.Hash) error {
	if err := Validate(name); err != nil {
		return err
	}
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := checkCurrentTx(tx, name, oldHash); err != nil {
		return err
	}
	if _, err := tx.Exec(`insert into refs(name, target, hash, type, updated_at)
		values (?, '', ?, ?, ?)
		on conflict(name) do update set target = '', hash = excluded.hash, type = excluded.type, updated_at = excluded.updated_at`,
		string(name), newHash.String(), refTypeDirect, time.Now().Unix()); err != nil {
		return err
	}
	if _, err := tx.Exec(`insert into ref_log(name, old_hash, new_hash, updated_at) values (?, ?, ?, ?)`,
		string(name), oldHash.String(), newHash.String(), time.Now().Unix()); err != nil {
		return err
	}
	return tx.Commit()
}

// Log returns name's recorded history of direct-reference moves,
// newest first, satisfying graph.ReflogSource — the record
// graph.ForkPoint walks to find where a branch actually diverged from
// name's current tip, which can differ from a plain merge-base after
// name has been rewound or rebased.
func (s *Store) Log(name string) ([]graph.ReflogEntry, error) {
	rows, err := s.db.Query(`select old_hash, new_hash from ref_log where name = ? order by id desc`, name)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []graph.ReflogEntry
	for rows.Next() {
		var oldHex, newHex string
		if err := rows.Scan(&oldHex, &newHex); err != nil {
			return nil, err
		}
		out = append(out, graph.ReflogEntry{Old: plumbing.NewHash(oldHex), New: plumbing.NewHash(newHex)})
	}
	return out, rows.Err()
}

// UpdateSymbolic atomically repoints a symbolic reference (typically
// HEAD) at target.
func (s *Store) UpdateSymbolic(name, target Name) error {
	_, err := s.db.Exec(`insert into refs(name, target, hash, type, updated_at)
		values (?, ?, '', ?, ?)
		on conflict(name) do update set target = excluded.target, hash = '', type = excluded.type, updated_at = excluded.updated_at`,
		string(name), string(target), refTypeSymbolic, time.Now().Unix())
	return err
}

func checkCurrentTx(tx *sql.Tx, name Name, oldHash plumbing.Hash) error {
	var target, hash, typ string
	err := tx.QueryRow(`select target, hash, type from refs where name = ?`, string(name)).Scan(&target, &hash, &typ)
	if errors.Is(err, sql.ErrNoRows) {
		if oldHash.IsZero() {
			return nil
		}
		return ErrChanged
	}
	if err != nil {
		return err
	}
	if typ == refTypeSymbolic || plumbing.NewHash(hash) != oldHash {
		return ErrChanged
	}
	return nil
}

// Delete removes name, requiring its current value to match oldHash.
func (s *Store) Delete(name Name, oldHash plumbing.Hash) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := checkCurrentTx(tx, name, oldHash); err != nil {
		return err
	}
	if _, err := tx.Exec(`delete from refs where name = ?`, string(name)); err != nil {
		return err
	}
	return tx.Commit()
}

// List returns every reference under prefix (e.g. "refs/heads"), sorted
// by name.
func (s *Store) List(prefix Name) ([]*Reference, error) {
	rows, err := s.db.Query(`select name, target, hash, type from refs where name = ? or name like ? order by name`,
		string(prefix), string(prefix)+"/%")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*Reference
	for rows.Next() {
		var name, target, hash, typ string
		if err := rows.Scan(&name, &target, &hash, &typ); err != nil {
			return nil, err
		}
		if typ == refTypeSymbolic {
			out = append(out, &Reference{Name: Name(name), Target: Name(target)})
		} else {
			out = append(out, &Reference{Name: Name(name), Hash: plumbing.NewHash(hash)})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// ShortName renders name in the shortest unambiguous form per Git's
// shorten_unambiguous_ref rules, falling back to the full name were it
// ambiguous against an earlier, more general rule.
func (s *Store) ShortName(name Name) string {
	full := string(name)
	for i := len(revParseRules) - 1; i > 0; i-- {
		short, ok := revParseRules[i].shorten(full)
		if !ok {
			continue
		}
		ambiguous := false
		for j := 0; j < i; j++ {
			if _, err := s.Get(revParseRules[j].expand(short)); err == nil {
				ambiguous = true
				break
			}
		}
		if !ambiguous {
			return short
		}
	}
	return full
}
