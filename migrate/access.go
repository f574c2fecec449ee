package migrate

import (
	"database/sql"
	"sync"
	"time"

	"github.com/dot-do/gitcore/modules/plumbing"
)

// AccessStat is one object's tracked access history: a decaying hit
// count and the time it was last touched.
type AccessStat struct {
	Score      float64
	LastAccess time.Time
}

// AccessTracker records per-object access frequency with exponential
// decay, so candidate selection favors objects that have gone cold
// recently over ones that were merely touched once long ago.
type AccessTracker struct {
	mu       sync.Mutex
	stats    map[plumbing.Hash]*AccessStat
	halfLife time.Duration
	db       *sql.DB // optional; see WithPersistence
}

// NewAccessTracker builds a tracker whose score halves every halfLife of
// inactivity.
func NewAccessTracker(halfLife time.Duration) *AccessTracker {
	return &AccessTracker{stats: make(map[plumbing.Hash]*AccessStat), halfLife: halfLife}
}

// WithPersistence attaches db so every RecordAccess/Forget also mirrors
// into sqlstore's hot_objects table, surviving a process restart. db is
// expected to already carry the schema sqlstore.Open creates.
func (t *AccessTracker) WithPersistence(db *sql.DB) *AccessTracker {
	t.db = db
	return t
}

func (t *AccessTracker) persist(oid plumbing.Hash, s *AccessStat) {
	if t.db == nil {
		return
	}
	_, _ = t.db.Exec(`insert into hot_objects(sha, access_count, last_access, bytes_read)
		values (?, 1, ?, 0)
		on conflict(sha) do update set access_count = access_count + 1, last_access = excluded.last_access`,
		oid.String(), s.LastAccess.Unix())
}

// RecordAccess bumps oid's score by 1, first decaying it for elapsed
// time since its last touch.
func (t *AccessTracker) RecordAccess(oid plumbing.Hash, now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.stats[oid]
	if !ok {
		s = &AccessStat{Score: 1, LastAccess: now}
		t.stats[oid] = s
		t.persist(oid, s)
		return
	}
	s.Score = t.decayedScore(s, now) + 1
	s.LastAccess = now
	t.persist(oid, s)
}

// Score returns oid's current decayed score (0 if never recorded).
func (t *AccessTracker) Score(oid plumbing.Hash, now time.Time) float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.stats[oid]
	if !ok {
		return 0
	}
	return t.decayedScore(s, now)
}

func (t *AccessTracker) decayedScore(s *AccessStat, now time.Time) float64 {
	if t.halfLife <= 0 {
		return s.Score
	}
	elapsed := now.Sub(s.LastAccess)
	if elapsed <= 0 {
		return s.Score
	}
	halvings := float64(elapsed) / float64(t.halfLife)
	decay := 1.0
	for halvings > 0 {
		if halvings >= 1 {
			decay /= 2
			halvings--
		} else {
			decay *= 1 - halvings/2
			halvings = 0
		}
	}
	return s.Score * decay
}

// Candidates returns every tracked object whose current decayed score is
// at or below threshold, ordered coldest first — the objects a
// find-candidates pass should consider migrating to a colder tier.
func (t *AccessTracker) Candidates(threshold float64, now time.Time) []plumbing.Hash {
	t.mu.Lock()
	defer t.mu.Unlock()
	type scored struct {
		oid   plumbing.Hash
		score float64
	}
	var cold []scored
	for oid, s := range t.stats {
		score := t.decayedScore(s, now)
		if score <= threshold {
			cold = append(cold, scored{oid, score})
		}
	}
	for i := 1; i < len(cold); i++ {
		for j := i; j > 0 && cold[j].score < cold[j-1].score; j-- {
			cold[j], cold[j-1] = cold[j-1], cold[j]
		}
	}
	out := make([]plumbing.Hash, len(cold))
	for i, c := range cold {
		out[i] = c.oid
	}
	return out
}

// Forget drops oid's tracked history (called after it is migrated and no
// longer lives in the tier this tracker watches).
func (t *AccessTracker) Forget(oid plumbing.Hash) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.stats, oid)
	if t.db != nil {
		_, _ = t.db.Exec(`delete from hot_objects where sha = ?`, oid.String())
	}
}
