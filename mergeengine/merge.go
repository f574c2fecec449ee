package mergeengine

import (
	"context"
	"errors"
	"fmt"

	"github.com/dot-do/gitcore/graph"
	"github.com/dot-do/gitcore/modules/codec"
	"github.com/dot-do/gitcore/modules/object"
	"github.com/dot-do/gitcore/modules/plumbing"
)

// ErrUnrelatedHistories is returned when ours and theirs share no common
// ancestor and Options.AllowUnrelatedHistories was not set, mirroring the
// refusal in pkg/zeta/merge_tree.go.
var ErrUnrelatedHistories = errors.New("mergeengine: refusing to merge unrelated histories")

// ErrNotFastForwardable is returned when Options.FastForwardOnly is set
// but theirs is not a descendant of ours, so no fast-forward is possible.
var ErrNotFastForwardable = errors.New("mergeengine: fast-forward-only merge requested but history cannot fast-forward")

// Outcome describes how Merge concluded.
type Outcome int

const (
	OutcomeUpToDate Outcome = iota
	OutcomeFastForward
	OutcomeMerged
	OutcomeConflicts
)

// AutoResolveStrategy picks a side to win every conflict automatically
// instead of surfacing it for manual resolution.
type AutoResolveStrategy int

const (
	AutoResolveNone AutoResolveStrategy = iota
	AutoResolveOurs
	AutoResolveTheirs
)

// Options controls how Merge resolves the fast-forward/commit/conflict
// decision, covering the three merge parameters beyond the two input
// commits: whether a non-fast-forward is an error, whether conflicts
// should be auto-resolved by picking a side, and whether to stop short of
// committing the merge.
type Options struct {
	// FastForwardOnly refuses to produce a three-way merge commit when
	// theirs is not reachable from ours by fast-forward: Merge returns
	// ErrNotFastForwardable instead.
	FastForwardOnly bool
	// AutoResolve, when not AutoResolveNone, overrides every conflict
	// MergeTree reports with the chosen side's blob and clears the
	// conflict list before Merge decides the outcome, so a would-be
	// conflicted merge instead completes as OutcomeMerged.
	AutoResolve AutoResolveStrategy
	// NoCommit stops Merge after producing the merged tree: Outcome is
	// still OutcomeMerged, but Commit stays zero and NewTree carries the
	// tree that would have been committed.
	NoCommit bool
	// AllowUnrelatedHistories permits merging commits with no common
	// ancestor, using an empty tree as the virtual merge base.
	AllowUnrelatedHistories bool
}

// MergeResult is the return value of Merge.
type MergeResult struct {
	Outcome   Outcome
	Commit    plumbing.Hash // new HEAD; zero when Outcome is OutcomeConflicts or NoCommit was set
	NewTree   plumbing.Hash // merged tree; set whenever a tree was produced, including NoCommit and OutcomeConflicts' partial tree
	Conflicts []Conflict
}

// Merge merges theirs into ours. It first checks for the up-to-date and
// fast-forward cases (mirroring mergeFF), falling back to a recursive
// tree merge and merge-commit construction otherwise. When the tree merge
// reports conflicts and opts.AutoResolve is unset, the merge state is
// persisted via Begin so the caller can drive
// ResolveConflict/ContinueMerge/Abort, and MergeResult.Outcome is
// OutcomeConflicts.
func Merge(ctx context.Context, l Loader, w Writer, root string, ours, theirs plumbing.Hash, author, committer object.Signature, message string, opts Options) (*MergeResult, error) {
	if ours == theirs {
		return &MergeResult{Outcome: OutcomeUpToDate, Commit: ours}, nil
	}

	bases, err := graph.MergeBase(ctx, l, ours, theirs)
	if err != nil {
		return nil, err
	}

	if len(bases) == 1 && bases[0] == ours {
		return &MergeResult{Outcome: OutcomeFastForward, Commit: theirs}, nil
	}
	if len(bases) == 1 && bases[0] == theirs {
		return &MergeResult{Outcome: OutcomeUpToDate, Commit: ours}, nil
	}
	if opts.FastForwardOnly {
		return nil, ErrNotFastForwardable
	}

	var baseOID plumbing.Hash
	switch len(bases) {
	case 0:
		if !opts.AllowUnrelatedHistories {
			return nil, ErrUnrelatedHistories
		}
		baseOID = plumbing.ZeroHash
	case 1:
		baseCommit, err := l.ReadCommit(bases[0])
		if err != nil {
			return nil, err
		}
		baseOID = baseCommit.Tree
	default:
		// Criss-cross merge: recursively merge the merge-bases into a
		// virtual base tree, as resolveAncestorTree0 does.
		virtual, err := mergeCommits(ctx, l, w, bases[0], bases[1], opts.AllowUnrelatedHistories)
		if err != nil {
			return nil, err
		}
		baseOID = virtual
	}

	ourCommit, err := l.ReadCommit(ours)
	if err != nil {
		return nil, err
	}
	theirCommit, err := l.ReadCommit(theirs)
	if err != nil {
		return nil, err
	}

	result, err := MergeTree(l, w, baseOID, ourCommit.Tree, theirCommit.Tree)
	if err != nil {
		return nil, err
	}

	if result.HasConflicts() && opts.AutoResolve != AutoResolveNone {
		result, err = applyAutoResolve(l, w, result, opts.AutoResolve)
		if err != nil {
			return nil, err
		}
	}

	if result.HasConflicts() {
		if err := Begin(root, ours, theirs, message, result.NewTree, result.Conflicts); err != nil {
			return nil, err
		}
		return &MergeResult{Outcome: OutcomeConflicts, NewTree: result.NewTree, Conflicts: result.Conflicts}, nil
	}

	if opts.NoCommit {
		return &MergeResult{Outcome: OutcomeMerged, NewTree: result.NewTree}, nil
	}

	commitOID, err := makeMergeCommit(w, result.NewTree, []plumbing.Hash{ours, theirs}, author, committer, message)
	if err != nil {
		return nil, err
	}
	return &MergeResult{Outcome: OutcomeMerged, Commit: commitOID, NewTree: result.NewTree}, nil
}

// applyAutoResolve overrides every reported conflict with the blob from
// the chosen side, grafting it into the partial tree exactly as
// ResolveConflict would, and returns a conflict-free Result.
func applyAutoResolve(l Loader, w Writer, result *Result, strategy AutoResolveStrategy) (*Result, error) {
	tree := result.NewTree
	for _, c := range result.Conflicts {
		var side ConflictEntry
		if strategy == AutoResolveOurs {
			side = c.Our
		} else {
			side = c.Their
		}
		if !side.present() {
			var err error
			tree, err = removePath(l, w, tree, c.Path)
			if err != nil {
				return nil, err
			}
			continue
		}
		leaf := object.TreeEntry{Name: baseName(c.Path), Mode: side.Mode, Hash: side.Hash}
		var errIns error
		tree, errIns = insertPath(l, w, tree, c.Path, leaf)
		if errIns != nil {
			return nil, errIns
		}
	}
	return &Result{NewTree: tree, Messages: result.Messages}, nil
}

func baseName(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[i+1:]
		}
	}
	return path
}

// mergeCommits recursively merges two commits' trees (used to resolve a
// criss-cross merge-base) and returns the resulting tree, discarding any
// conflicts is not acceptable — a conflicted virtual base is reported as
// an error since there is no commit to attach its state to.
func mergeCommits(ctx context.Context, l Loader, w Writer, a, b plumbing.Hash, allowUnrelated bool) (plumbing.Hash, error) {
	bases, err := graph.MergeBase(ctx, l, a, b)
	if err != nil {
		return plumbing.ZeroHash, err
	}
	var baseOID plumbing.Hash
	if len(bases) > 0 {
		bc, err := l.ReadCommit(bases[0])
		if err != nil {
			return plumbing.ZeroHash, err
		}
		baseOID = bc.Tree
	} else if !allowUnrelated {
		return plumbing.ZeroHash, ErrUnrelatedHistories
	}

	ac, err := l.ReadCommit(a)
	if err != nil {
		return plumbing.ZeroHash, err
	}
	bc, err := l.ReadCommit(b)
	if err != nil {
		return plumbing.ZeroHash, err
	}
	result, err := MergeTree(l, w, baseOID, ac.Tree, bc.Tree)
	if err != nil {
		return plumbing.ZeroHash, err
	}
	if result.HasConflicts() {
		return plumbing.ZeroHash, fmt.Errorf("mergeengine: criss-cross merge-base %s/%s has unresolvable conflicts", a, b)
	}
	return result.NewTree, nil
}

func makeMergeCommit(w Writer, tree plumbing.Hash, parents []plumbing.Hash, author, committer object.Signature, message string) (plumbing.Hash, error) {
	c, err := object.NewCommit(tree, parents, author, committer, message)
	if err != nil {
		return plumbing.ZeroHash, err
	}
	raw, err := c.Serialize()
	if err != nil {
		return plumbing.ZeroHash, err
	}
	return w.Put(codec.TypeCommit, raw)
}
