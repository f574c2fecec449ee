package migrate

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/dot-do/gitcore/modules/plumbing"
	"golang.org/x/sync/errgroup"
)

// Job describes one object's planned move from one tier to another.
type Job struct {
	ID   string
	OID  plumbing.Hash
	From Tier
	To   Tier
}

// Index records which tier currently holds each object, backing
// sqlstore's object_index table. It is optional: Controller.Migrate
// works without one (in-memory backends alone decide placement), but a
// real repository wires in a SQL-backed Index so object_index stays the
// authoritative location record migrate.Migrate mutates.
type Index interface {
	SetTier(ctx context.Context, oid plumbing.Hash, tier Tier) error
}

// Controller drives candidate selection and migration between tiers,
// serializing concurrent access to any one object with a per-SHA lock so
// a read or write arriving mid-migration is never served a half-moved
// object.
//
// Modeled on pkg/serve/odb.uploadGroup (channel + sync.WaitGroup worker
// pool) for batch concurrency, generalized here to errgroup.WithContext
// so the first failing transfer cancels the rest.
type Controller struct {
	tiers   map[Tier]Backend
	tracker *AccessTracker
	index   Index

	locksMu sync.Mutex
	locks   map[plumbing.Hash]*sync.Mutex
}

// NewController wires a tier for each Backend given and an access
// tracker used by FindCandidates. The controller starts without a
// location index (object_index stays unmaintained); use WithIndex to set
// one.
func NewController(tracker *AccessTracker, backends ...Backend) *Controller {
	c := &Controller{
		tiers:   make(map[Tier]Backend, len(backends)),
		tracker: tracker,
		locks:   make(map[plumbing.Hash]*sync.Mutex),
	}
	for _, b := range backends {
		c.tiers[b.Tier()] = b
	}
	return c
}

// WithIndex attaches a location index Migrate keeps in sync, returning c
// for chaining with NewController.
func (c *Controller) WithIndex(index Index) *Controller {
	c.index = index
	return c
}

func (c *Controller) lockFor(oid plumbing.Hash) *sync.Mutex {
	c.locksMu.Lock()
	defer c.locksMu.Unlock()
	l, ok := c.locks[oid]
	if !ok {
		l = &sync.Mutex{}
		c.locks[oid] = l
	}
	return l
}

// FindCandidates selects objects in fromTier whose access score is at or
// below threshold and builds a migration Job for each.
func (c *Controller) FindCandidates(ctx context.Context, from, to Tier, threshold float64, now time.Time) ([]Job, error) {
	cold := c.tracker.Candidates(threshold, now)
	jobs := make([]Job, 0, len(cold))
	fromBackend, ok := c.tiers[from]
	if !ok {
		return nil, fmt.Errorf("migrate: no backend registered for tier %s", from)
	}
	for _, oid := range cold {
		exists, err := fromBackend.Exists(ctx, oid)
		if err != nil {
			return nil, err
		}
		if !exists {
			continue
		}
		jobs = append(jobs, Job{ID: jobID(oid, from, to), OID: oid, From: from, To: to})
	}
	return jobs, nil
}

func jobID(oid plumbing.Hash, from, to Tier) string {
	return fmt.Sprintf("%s:%s->%s", oid, from, to)
}

// Migrate moves a single object from job.From to job.To. The object is
// read from the source, written to the destination, verified present,
// and only then deleted from the source; if the write or verification
// fails, the destination copy is rolled back (deleted) and the source is
// left untouched, so Migrate is never partially visible.
func (c *Controller) Migrate(ctx context.Context, job Job) error {
	lock := c.lockFor(job.OID)
	lock.Lock()
	defer lock.Unlock()

	src, ok := c.tiers[job.From]
	if !ok {
		return fmt.Errorf("migrate: no backend for source tier %s", job.From)
	}
	dst, ok := c.tiers[job.To]
	if !ok {
		return fmt.Errorf("migrate: no backend for destination tier %s", job.To)
	}

	r, err := src.Get(ctx, job.OID)
	if err != nil {
		return plumbing.NewError(plumbing.KindRemoteTier, "migrate-read-source", job.OID, job.From.String(), err)
	}
	defer r.Close()

	content, err := io.ReadAll(r)
	if err != nil {
		return plumbing.NewError(plumbing.KindRemoteTier, "migrate-read-source", job.OID, job.From.String(), err)
	}

	if err := dst.Put(ctx, job.OID, bytes.NewReader(content), int64(len(content))); err != nil {
		_ = dst.Delete(ctx, job.OID)
		return plumbing.NewError(plumbing.KindRemoteTier, "migrate-write-dest", job.OID, job.To.String(), err)
	}

	exists, err := dst.Exists(ctx, job.OID)
	if err != nil || !exists {
		_ = dst.Delete(ctx, job.OID)
		if err == nil {
			err = fmt.Errorf("destination write did not verify")
		}
		return plumbing.NewError(plumbing.KindRemoteTier, "migrate-verify-dest", job.OID, job.To.String(), err)
	}

	if c.index != nil {
		if err := c.index.SetTier(ctx, job.OID, job.To); err != nil {
			_ = dst.Delete(ctx, job.OID)
			return plumbing.NewError(plumbing.KindRemoteTier, "migrate-index", job.OID, job.To.String(), err)
		}
	}

	if err := src.Delete(ctx, job.OID); err != nil {
		return plumbing.NewError(plumbing.KindRemoteTier, "migrate-delete-source", job.OID, job.From.String(), err)
	}
	c.tracker.Forget(job.OID)
	return nil
}

// MigrateBatch runs up to concurrency migrations at once and returns the
// first error. Every job is still started: a failure only cancels the
// context handed to the migrations running or started after it, each of
// which is independently rolled back on its own failure.
func (c *Controller) MigrateBatch(ctx context.Context, jobs []Job, concurrency int) error {
	if concurrency <= 0 {
		concurrency = 1
	}
	g, gctx := errgroup.WithContext(ctx)
	sem := make(chan struct{}, concurrency)
	for _, job := range jobs {
		job := job
		sem <- struct{}{}
		g.Go(func() error {
			defer func() { <-sem }()
			return c.Migrate(gctx, job)
		})
	}
	return g.Wait()
}

// ReadDuringMigration reads oid, waiting for any in-flight migration of
// that object to finish first so it never observes a torn state; it then
// checks the tier the caller expects (preferred) and falls back to whichever
// tier actually holds the object.
func (c *Controller) ReadDuringMigration(ctx context.Context, oid plumbing.Hash, preferred Tier) (io.ReadCloser, Tier, error) {
	lock := c.lockFor(oid)
	lock.Lock()
	defer lock.Unlock()

	if b, ok := c.tiers[preferred]; ok {
		if exists, err := b.Exists(ctx, oid); err == nil && exists {
			r, err := b.Get(ctx, oid)
			return r, preferred, err
		}
	}
	for _, t := range []Tier{TierHot, TierWarm, TierCold} {
		if t == preferred {
			continue
		}
		b, ok := c.tiers[t]
		if !ok {
			continue
		}
		if exists, err := b.Exists(ctx, oid); err == nil && exists {
			r, err := b.Get(ctx, oid)
			return r, t, err
		}
	}
	return nil, preferred, plumbing.NoSuchObject(oid)
}

// WriteDuringMigration writes oid to tier, blocking until any in-flight
// migration of that object completes, so a write never races a
// concurrent Migrate for the same SHA.
func (c *Controller) WriteDuringMigration(ctx context.Context, oid plumbing.Hash, tier Tier, content []byte) error {
	lock := c.lockFor(oid)
	lock.Lock()
	defer lock.Unlock()

	b, ok := c.tiers[tier]
	if !ok {
		return fmt.Errorf("migrate: no backend for tier %s", tier)
	}
	return b.Put(ctx, oid, bytes.NewReader(content), int64(len(content)))
}
