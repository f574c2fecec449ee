// Package repository is the per-repository composition root: one value
// owning a repository's object store, reference store, pull-request
// store, and migration controller, wired the way pkg/serve/repo.Repositories
// wires a database.DB, an odb.Database, and an oss.PersistentOSS per
// repository, except scoped to a single instance rather than a
// multi-tenant hub: one writer per repository, routed to it externally.
package repository

import (
	"database/sql"
	"fmt"
	"path/filepath"

	"github.com/dot-do/gitcore/config"
	"github.com/dot-do/gitcore/migrate"
	"github.com/dot-do/gitcore/pr"
	"github.com/dot-do/gitcore/refs"
	"github.com/dot-do/gitcore/sqlstore"
	"github.com/dot-do/gitcore/store"
)

// Repository bundles the state this engine needs to serve one Git
// repository end to end: object storage, named references, the
// pull-request workflow, and (optionally) a tiered-migration controller.
// Every SQL-backed component shares one *sql.DB, opened once by Open —
// objects, object_index, hot_objects, wal, refs, and pull_requests are
// all tables in that single database, never separate files.
type Repository struct {
	Name    string
	Root    string // working-directory root, used for mergeengine's on-disk pending-merge state
	DB      *sql.DB
	Objects *store.Database
	Refs    *refs.Store
	PRs     pr.DB
	Migrate *migrate.Controller
	Access  *migrate.AccessTracker
	Config  *config.Config
}

// Open opens (creating if absent) a repository rooted at root, wiring
// its object store, reference store, and pull-request store onto one
// shared SQLite database at root/gitcore.db, provisioned by sqlstore.
func Open(root, name string, cfg *config.Config) (*Repository, error) {
	db, err := sqlstore.Open(filepath.Join(root, "gitcore.db"))
	if err != nil {
		return nil, fmt.Errorf("repository: open database: %w", err)
	}

	opts := []store.Option{store.WithCache(cfg.Cache.MaxCount, cfg.Cache.MaxBytes)}
	objects, err := store.NewDatabase(db, opts...)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("repository: open object store: %w", err)
	}

	access := migrate.NewAccessTracker(0).WithPersistence(db)
	controller := migrate.NewController(access).WithIndex(migrate.NewSQLIndex(db))

	return &Repository{
		Name:    name,
		Root:    root,
		DB:      db,
		Objects: objects,
		Refs:    refs.NewStore(db),
		PRs:     pr.Open(db),
		Migrate: controller,
		Access:  access,
		Config:  cfg,
	}, nil
}

// Close releases the repository's shared database handle. Objects,
// Refs, and PRs all operate on the same connection, so there is nothing
// further for them to close individually.
func (r *Repository) Close() error {
	return r.DB.Close()
}
