// Package sqlstore owns the single SQLite schema a repository instance
// exclusively reads and writes: the objects table (content-addressed
// storage itself), the tiered-storage location index, the hot-tier
// access-pattern table, the write-ahead log, named references, and the
// pull-request workflow. store, refs, and migrate each open this same
// *sql.DB and drive their tables directly — there is no parallel
// loose-file or filesystem store underneath any of them. It is modeled
// on the "mary-ext-tangled.sh-mirror" db.go pattern from other_examples/
// (a bare sql.Open + schema-exec-on-open shape) — nothing else in the
// retrieval pack embeds SQLite directly; pkg/serve/database speaks MySQL
// via go-sql-driver/mysql, a shape pr mirrors structurally even though
// sqlstore supplies the driver.
package sqlstore

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// schema creates every table this engine's SQL-backed components read
// and write: the object table itself, the tiered-storage location
// index, the hot-tier access-pattern table, the write-ahead log, named
// references, and the pull-request workflow. store, refs, and migrate
// all open this same database and treat these tables (objects,
// object_index, hot_objects, wal, refs) as their sole source of truth —
// there is no loose-file or filesystem fallback for any of them.
const schema = `
create table if not exists objects (
	sha         text primary key,
	type        text not null,
	size        integer not null,
	data        blob not null,
	created_at  integer not null
);
create index if not exists idx_objects_type on objects(type);

create table if not exists object_index (
	sha         text primary key,
	tier        text not null,
	pack_id     text,
	offset      integer,
	size        integer not null,
	type        text not null,
	updated_at  integer not null
);
create index if not exists idx_object_index_tier on object_index(tier);
create index if not exists idx_object_index_pack on object_index(pack_id);

-- hot_objects persists the per-SHA access-pattern counters component 4.5's
-- tracker needs (access count, last access, bytes read) so
-- candidate selection survives a process restart; it is keyed the same
-- way as the wire hot-tier content table but holds access stats rather
-- than a second copy of the bytes already in objects.
create table if not exists hot_objects (
	sha           text primary key,
	access_count  integer not null default 0,
	last_access   integer not null,
	bytes_read    integer not null default 0
);

create table if not exists wal (
	id              integer primary key autoincrement,
	operation       text not null,
	payload         blob,
	transaction_id  text,
	created_at      integer not null,
	flushed         integer not null default 0
);
create index if not exists idx_wal_flushed on wal(flushed);

create table if not exists wal_checkpoints (
	id          integer primary key autoincrement,
	position    integer not null,
	meta        text not null,
	created_at  integer not null
);

create table if not exists refs (
	name        text primary key,
	target      text not null default '',
	hash        text not null default '',
	type        text not null default 'sha',
	updated_at  integer not null
);

-- ref_log records every direct-reference move, newest rows last: the
-- history graph.ForkPoint walks to find where a branch actually
-- diverged, mirroring what .git/logs/<ref> backs `git merge-base
-- --fork-point` with. Symbolic updates (HEAD repointing at a branch)
-- are not logged here, only hash moves.
create table if not exists ref_log (
	id          integer primary key autoincrement,
	name        text not null,
	old_hash    text not null,
	new_hash    text not null,
	updated_at  integer not null
);
create index if not exists idx_ref_log_name on ref_log(name, id);

create table if not exists pull_requests (
	id             integer primary key autoincrement,
	repo_id        integer not null,
	number         integer not null,
	title          text not null,
	description    text not null,
	source_branch  text not null,
	target_branch  text not null,
	author_id      integer not null,
	status         text not null,
	labels         text not null default '[]',
	source_sha     text not null default '',
	target_sha     text not null default '',
	merge_method   text not null default '',
	merge_commit   text not null default '',
	created_at     datetime not null,
	updated_at     datetime not null,
	unique(repo_id, number)
);
create index if not exists idx_pull_requests_repo_status on pull_requests(repo_id, status);

create table if not exists pull_request_reviews (
	id               integer primary key autoincrement,
	pull_request_id  integer not null,
	reviewer_id      integer not null,
	state            text not null,
	body             text not null,
	created_at       datetime not null
);
create index if not exists idx_reviews_pr on pull_request_reviews(pull_request_id);
`

// Open opens (creating if absent) a SQLite database at path and ensures
// the full schema exists. SQLite serializes writers at the file level,
// so callers share one *sql.DB with a single open connection rather than
// pooling — one handle per repository.
func Open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlstore: create schema: %w", err)
	}
	return db, nil
}
