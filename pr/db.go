package pr

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dot-do/gitcore/mergeengine"
	"github.com/dot-do/gitcore/modules/codec"
	"github.com/dot-do/gitcore/modules/object"
	"github.com/dot-do/gitcore/modules/plumbing"
	"github.com/dot-do/gitcore/refs"
)

// DB is the pull-request store's capability surface, modeled on
// pkg/serve/database's DB interface shape.
type DB interface {
	Create(ctx context.Context, p *PullRequest) (*PullRequest, error)
	Get(ctx context.Context, id int64) (*PullRequest, error)
	GetByNumber(ctx context.Context, repoID, number int64) (*PullRequest, error)
	List(ctx context.Context, repoID int64, status *Status) ([]*PullRequest, error)
	UpdateStatus(ctx context.Context, id int64, status Status, mergeCommit plumbing.Hash) (*PullRequest, error)
	Merge(ctx context.Context, id int64, refsStore *refs.Store, l mergeengine.Loader, w mergeengine.Writer, opts MergeOptions) (*PullRequest, error)
	AddReview(ctx context.Context, r *Review) (*Review, error)
	ListReviews(ctx context.Context, prID int64) ([]*Review, error)
	DismissReview(ctx context.Context, reviewID int64) error
	AggregateReviewState(ctx context.Context, prID int64) (ReviewState, error)
	Close() error
}

type database struct {
	*sql.DB
}

func (d *database) Close() error { return d.DB.Close() }

var _ DB = &database{}

// Open wraps db as a pull-request store. db is expected to already
// carry the schema sqlstore.Open creates — schema provisioning happens
// once, shared with the object store and reference store, not per
// package.
func Open(db *sql.DB) DB {
	return &database{DB: db}
}

func (d *database) Create(ctx context.Context, p *PullRequest) (*PullRequest, error) {
	now := time.Now()
	labels, err := json.Marshal(p.Labels)
	if err != nil {
		return nil, err
	}
	tx, err := d.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	var nextNumber int64
	if err := tx.QueryRowContext(ctx, `select coalesce(max(number), 0) + 1 from pull_requests where repo_id = ?`, p.RepoID).Scan(&nextNumber); err != nil {
		_ = tx.Rollback()
		return nil, err
	}
	status := p.Status
	if status == 0 && p.ID == 0 {
		status = StatusOpen
	}
	res, err := tx.ExecContext(ctx, `insert into pull_requests
		(repo_id, number, title, description, source_branch, target_branch, author_id, status, labels, source_sha, target_sha, merge_method, merge_commit, created_at, updated_at)
		values (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		p.RepoID, nextNumber, p.Title, p.Description, p.SourceBranch, p.TargetBranch, p.AuthorID, status.String(),
		string(labels), p.SourceSHA.String(), p.TargetSHA.String(), string(p.MergeMethod), plumbing.ZeroHash.String(), now, now)
	if err != nil {
		_ = tx.Rollback()
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return d.Get(ctx, id)
}

func scanPR(row interface {
	Scan(dest ...any) error
}) (*PullRequest, error) {
	var p PullRequest
	var statusTok, labelsJSON, sourceSHAHex, targetSHAHex, mergeMethodTok, mergeCommitHex string
	if err := row.Scan(&p.ID, &p.RepoID, &p.Number, &p.Title, &p.Description, &p.SourceBranch, &p.TargetBranch,
		&p.AuthorID, &statusTok, &labelsJSON, &sourceSHAHex, &targetSHAHex, &mergeMethodTok, &mergeCommitHex,
		&p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	status, err := ParseStatus(statusTok)
	if err != nil {
		return nil, err
	}
	p.Status = status
	if labelsJSON != "" {
		if err := json.Unmarshal([]byte(labelsJSON), &p.Labels); err != nil {
			return nil, fmt.Errorf("pr: corrupt labels column: %w", err)
		}
	}
	p.MergeMethod = MergeMethod(mergeMethodTok)
	p.MergeCommit = plumbing.NewHash(mergeCommitHex)
	p.SourceSHA = plumbing.NewHash(sourceSHAHex)
	p.TargetSHA = plumbing.NewHash(targetSHAHex)
	p.CreatedAt = p.CreatedAt.Local()
	p.UpdatedAt = p.UpdatedAt.Local()
	return &p, nil
}

const selectPRColumns = `id, repo_id, number, title, description, source_branch, target_branch, author_id, status, labels, source_sha, target_sha, merge_method, merge_commit, created_at, updated_at`

func (d *database) Get(ctx context.Context, id int64) (*PullRequest, error) {
	row := d.QueryRowContext(ctx, `select `+selectPRColumns+` from pull_requests where id = ?`, id)
	p, err := scanPR(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, &ErrNotFound{Kind: "pull_request", ID: id}
		}
		return nil, err
	}
	return p, nil
}

func (d *database) GetByNumber(ctx context.Context, repoID, number int64) (*PullRequest, error) {
	row := d.QueryRowContext(ctx, `select `+selectPRColumns+` from pull_requests where repo_id = ? and number = ?`, repoID, number)
	p, err := scanPR(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, &ErrNotFound{Kind: "pull_request", ID: number}
		}
		return nil, err
	}
	return p, nil
}

func (d *database) List(ctx context.Context, repoID int64, status *Status) ([]*PullRequest, error) {
	query := `select ` + selectPRColumns + ` from pull_requests where repo_id = ?`
	args := []any{repoID}
	if status != nil {
		query += ` and status = ?`
		args = append(args, status.String())
	}
	query += ` order by number desc`
	rows, err := d.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*PullRequest
	for rows.Next() {
		p, err := scanPR(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (d *database) UpdateStatus(ctx context.Context, id int64, status Status, mergeCommit plumbing.Hash) (*PullRequest, error) {
	cur, err := d.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if cur.Status == StatusMerged || (cur.Status == StatusDraft && status == StatusMerged) {
		return nil, &ErrAlreadyMerged{ID: id}
	}
	res, err := d.ExecContext(ctx, `update pull_requests set status = ?, merge_commit = ?, updated_at = ? where id = ?`,
		status.String(), mergeCommit.String(), time.Now(), id)
	if err != nil {
		return nil, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, &ErrNotFound{Kind: "pull_request", ID: id}
	}
	return d.Get(ctx, id)
}

// MergeOptions controls how Merge combines a pull request's commits.
type MergeOptions struct {
	Method          MergeMethod
	RequireApproval bool
	Author          object.Signature
	Committer       object.Signature
	// Root is the repository's working-directory root, used only to
	// persist mergeengine's pending-merge state should the merge
	// method leave conflicts (MergeMethodMerge).
	Root string
}

func branchRef(name string) refs.Name { return refs.Name("refs/heads/" + name) }

// Merge resolves the pull request's source and target branches to their
// current tips (not the PR's creation-time snapshot — either branch may
// have moved since the PR opened), delegates the actual content merge to
// mergeengine per opts.Method, writes the target branch ref to the
// result, and persists the merge method, resolved SHAs, and merge
// commit.
func (d *database) Merge(ctx context.Context, id int64, refsStore *refs.Store, l mergeengine.Loader, w mergeengine.Writer, opts MergeOptions) (*PullRequest, error) {
	p, err := d.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.Status != StatusOpen {
		return nil, &ErrAlreadyMerged{ID: id}
	}
	switch opts.Method {
	case MergeMethodMerge, MergeMethodSquash, MergeMethodFastForward:
	default:
		return nil, &ErrInvalidMergeMethod{Value: opts.Method}
	}
	if opts.RequireApproval {
		state, err := d.AggregateReviewState(ctx, id)
		if err != nil {
			return nil, err
		}
		if state != ReviewApproved {
			return nil, ErrChangesRequested
		}
	}

	sourceRef, err := refsStore.Resolve(branchRef(p.SourceBranch))
	if err != nil {
		return nil, fmt.Errorf("pr: resolve source branch %q: %w", p.SourceBranch, err)
	}
	targetRef, err := refsStore.Resolve(branchRef(p.TargetBranch))
	if err != nil {
		return nil, fmt.Errorf("pr: resolve target branch %q: %w", p.TargetBranch, err)
	}
	sourceSHA, targetSHA := sourceRef.Hash, targetRef.Hash

	var resultCommit plumbing.Hash
	switch opts.Method {
	case MergeMethodFastForward:
		res, err := mergeengine.Merge(ctx, l, w, opts.Root, targetSHA, sourceSHA, opts.Author, opts.Committer, p.Title, mergeengine.Options{FastForwardOnly: true})
		if err != nil {
			return nil, err
		}
		resultCommit = res.Commit
	case MergeMethodSquash:
		res, err := mergeengine.Merge(ctx, l, w, opts.Root, targetSHA, sourceSHA, opts.Author, opts.Committer, p.Title, mergeengine.Options{NoCommit: true})
		if err != nil {
			return nil, err
		}
		if len(res.Conflicts) != 0 {
			return nil, ErrConflicts
		}
		tree := res.NewTree
		if res.Outcome == mergeengine.OutcomeFastForward || res.Outcome == mergeengine.OutcomeUpToDate {
			sourceCommit, err := l.ReadCommit(sourceSHA)
			if err != nil {
				return nil, err
			}
			tree = sourceCommit.Tree
		}
		commit, err := object.NewCommit(tree, []plumbing.Hash{targetSHA}, opts.Author, opts.Committer, p.Title)
		if err != nil {
			return nil, err
		}
		raw, err := commit.Serialize()
		if err != nil {
			return nil, err
		}
		resultCommit, err = w.Put(codec.TypeCommit, raw)
		if err != nil {
			return nil, err
		}
	default: // MergeMethodMerge
		res, err := mergeengine.Merge(ctx, l, w, opts.Root, targetSHA, sourceSHA, opts.Author, opts.Committer, p.Title, mergeengine.Options{})
		if err != nil {
			return nil, err
		}
		if len(res.Conflicts) != 0 {
			return nil, ErrConflicts
		}
		resultCommit = res.Commit
	}

	if err := refsStore.Update(branchRef(p.TargetBranch), resultCommit, targetSHA); err != nil {
		return nil, fmt.Errorf("pr: update target branch %q: %w", p.TargetBranch, err)
	}

	now := time.Now()
	_, err = d.ExecContext(ctx, `update pull_requests set status = ?, source_sha = ?, target_sha = ?, merge_method = ?, merge_commit = ?, updated_at = ? where id = ?`,
		StatusMerged.String(), sourceSHA.String(), targetSHA.String(), string(opts.Method), resultCommit.String(), now, id)
	if err != nil {
		return nil, err
	}
	return d.Get(ctx, id)
}
