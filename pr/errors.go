package pr

import (
	"database/sql"
	"errors"
	"fmt"
)

// ErrNotFound is the not-found error for a missing pull request or
// review, modeled on the ErrRevisionNotFound shape.
type ErrNotFound struct {
	Kind string // "pull_request" or "review"
	ID   int64
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("pr: %s %d not found", e.Kind, e.ID)
}

func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	var nf *ErrNotFound
	if errors.As(err, &nf) {
		return true
	}
	return errors.Is(err, sql.ErrNoRows)
}

// ErrAlreadyMerged is returned by Merge when the pull request is not
// open, and by UpdateStatus when it is already merged or is a draft
// being marked merged.
type ErrAlreadyMerged struct{ ID int64 }

func (e *ErrAlreadyMerged) Error() string {
	return fmt.Sprintf("pr: pull request %d is not open", e.ID)
}

// ErrChangesRequested is returned by Merge when the aggregate review
// state blocks merging.
var ErrChangesRequested = errors.New("pr: changes requested, cannot merge")

// ErrConflicts is returned by Merge when the underlying tree merge left
// unresolved conflicts: the pull request stays open and a resolution
// must go through mergeengine's resolve/abort/continue workflow before
// merging can be retried.
var ErrConflicts = errors.New("pr: merge has unresolved conflicts")

// ErrInvalidMergeMethod is returned by Merge when method is not one of
// MergeMethodMerge, MergeMethodSquash, or MergeMethodFastForward.
type ErrInvalidMergeMethod struct{ Value MergeMethod }

func (e *ErrInvalidMergeMethod) Error() string {
	return fmt.Sprintf("pr: invalid merge method %q", e.Value)
}
