// Package pr implements the pull-request workflow: create/get/list/
// update-status/merge, review submission and listing, review dismissal,
// and aggregate review-state computation, backed by SQLite (the schema
// itself lives in sqlstore).
//
// Modeled on pkg/serve/database: the DB interface + database{*sql.DB} +
// NewDB(cfg) constructor shape (database.go), the
// QueryRowContext/ExecContext/sql.ErrNoRows error-mapping style
// (branches.go), and its typed not-found/already-locked error values
// (error.go). That package speaks MySQL via go-sql-driver/mysql; this
// one speaks SQLite via mattn/go-sqlite3, since this engine's storage
// layer is SQLite throughout, not a MySQL-backed hosting service.
package pr

import (
	"time"

	"github.com/dot-do/gitcore/modules/plumbing"
)

// Status is a pull request's lifecycle state.
type Status int

const (
	StatusOpen Status = iota
	StatusMerged
	StatusClosed
	// StatusDraft marks a pull request not yet ready for review: it can
	// move to StatusOpen, but UpdateStatus refuses to mark it merged
	// directly.
	StatusDraft
)

func (s Status) String() string {
	switch s {
	case StatusOpen:
		return "open"
	case StatusMerged:
		return "merged"
	case StatusClosed:
		return "closed"
	case StatusDraft:
		return "draft"
	default:
		return "unknown"
	}
}

func ParseStatus(s string) (Status, error) {
	switch s {
	case "open":
		return StatusOpen, nil
	case "merged":
		return StatusMerged, nil
	case "closed":
		return StatusClosed, nil
	case "draft":
		return StatusDraft, nil
	default:
		return 0, &ErrInvalidStatus{Value: s}
	}
}

// MergeMethod selects how Merge combines a pull request's commits into
// its target branch.
type MergeMethod string

const (
	MergeMethodMerge       MergeMethod = "merge"
	MergeMethodSquash      MergeMethod = "squash"
	MergeMethodFastForward MergeMethod = "fast-forward"
)

type ErrInvalidStatus struct{ Value string }

func (e *ErrInvalidStatus) Error() string { return "pr: invalid status " + e.Value }

// ReviewState is one reviewer's verdict on a pull request.
type ReviewState int

const (
	ReviewPending ReviewState = iota
	ReviewApproved
	ReviewChangesRequested
	ReviewDismissed
)

func (s ReviewState) String() string {
	switch s {
	case ReviewPending:
		return "pending"
	case ReviewApproved:
		return "approved"
	case ReviewChangesRequested:
		return "changes_requested"
	case ReviewDismissed:
		return "dismissed"
	default:
		return "unknown"
	}
}

// PullRequest is one proposed merge of SourceBranch into TargetBranch
// within a single repository.
type PullRequest struct {
	ID           int64
	RepoID       int64
	Number       int64
	Title        string
	Description  string
	SourceBranch string
	TargetBranch string
	AuthorID     int64
	Status       Status
	// Labels are free-form tags the hosting layer attaches to a pull
	// request; persisted as a JSON array in the labels column.
	Labels []string
	// SourceSHA and TargetSHA record the branch tips Merge actually
	// merged, captured at merge time — not the PR's creation-time
	// snapshot, since either branch may have moved since the PR opened.
	SourceSHA    plumbing.Hash
	TargetSHA    plumbing.Hash
	MergeCommit  plumbing.Hash
	MergeMethod  MergeMethod
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Review is one reviewer's submission against a pull request.
type Review struct {
	ID            int64
	PullRequestID int64
	ReviewerID    int64
	State         ReviewState
	Body          string
	CreatedAt     time.Time
}
