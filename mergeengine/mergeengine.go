// Package mergeengine implements three-way merge orchestration: the
// fast-forward/up-to-date check, a recursive per-path tree walk that
// dispatches each changed file to content merge, binary detection, merge
// commit construction and merge-state persistence for a
// resolve/abort/continue workflow.
//
// Modeled on pkg/zeta/merge_tree.go (resolveAncestorTree/mergeTree:
// merge-base resolution, recursive criss-cross base resolution,
// empty-tree fallback for unrelated histories) and pkg/zeta/odb/merge.go
// (ConflictEntry/Conflict shape, the per-path decision table driving
// auto-merge vs conflict). The rename-detection and directory-rename
// machinery those packages carry (merkletrie-based,
// CONFLICT_DIR_RENAME_*) is out of scope here: this engine merges by
// exact path identity only — content and add/delete conflicts, not
// rename detection.
package mergeengine

import (
	"github.com/dot-do/gitcore/modules/codec"
	"github.com/dot-do/gitcore/modules/object"
	"github.com/dot-do/gitcore/modules/plumbing"
)

// Loader is the read side the engine needs from an object store.
type Loader interface {
	ReadTree(oid plumbing.Hash) (*object.Tree, error)
	ReadBlob(oid plumbing.Hash) (*object.Blob, error)
	ReadCommit(oid plumbing.Hash) (*object.Commit, error)
}

// Writer is the write side: the engine only ever adds new tree/blob/commit
// objects, never mutates existing ones.
type Writer interface {
	Put(t codec.ObjectType, content []byte) (plumbing.Hash, error)
}

// ConflictEntry is one side of a path conflict: the mode/hash Git would
// stage for it, or a zero Hash if that side has no entry at all.
type ConflictEntry struct {
	Path string
	Mode object.FileMode
	Hash plumbing.Hash
}

func (e ConflictEntry) present() bool { return !e.Hash.IsZero() || e.Mode != 0 }

// ConflictKind classifies why a path could not be auto-merged.
type ConflictKind int

const (
	ConflictContent ConflictKind = iota
	ConflictBinary
	ConflictFileDirectory
	ConflictModes
	// ConflictModifyDelete is ours-modified/theirs-deleted: ours still has
	// the path, theirs does not, and base differs from ours.
	ConflictModifyDelete
	// ConflictDeleteModify is the mirror image: ours deleted the path,
	// theirs modified it relative to base. Kept distinct from
	// ConflictModifyDelete because which side deleted determines which
	// content a resolution UI should offer to keep.
	ConflictDeleteModify
	ConflictAddAdd
)

func (k ConflictKind) String() string {
	switch k {
	case ConflictContent:
		return "content"
	case ConflictBinary:
		return "binary"
	case ConflictFileDirectory:
		return "file/directory"
	case ConflictModes:
		return "distinct modes"
	case ConflictModifyDelete:
		return "modify/delete"
	case ConflictDeleteModify:
		return "delete/modify"
	case ConflictAddAdd:
		return "add/add"
	default:
		return "unknown"
	}
}

// Conflict is a single unresolved path, in Git's three-stage index shape:
// stage 1 is the merge-base entry, stage 2 is ours, stage 3 is theirs.
type Conflict struct {
	Path     string
	Kind     ConflictKind
	Ancestor ConflictEntry
	Our      ConflictEntry
	Their    ConflictEntry
	// Rendered holds the merged content with conflict markers, when Kind
	// is ConflictContent or ConflictAddAdd and all sides are text.
	Rendered []byte
}

// Result is the outcome of a tree-level merge.
type Result struct {
	NewTree   plumbing.Hash
	Conflicts []Conflict
	Messages  []string
}

func (r *Result) HasConflicts() bool { return len(r.Conflicts) != 0 }
