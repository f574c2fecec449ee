package mergeengine

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dot-do/gitcore/modules/codec"
	"github.com/dot-do/gitcore/modules/object"
	"github.com/dot-do/gitcore/modules/plumbing"
)

// Persisted file names, modeled on the MERGE_HEAD/MERGE_MSG special
// references in worktree_merge.go, with conflict state folded into a
// single JSON sidecar rather than an index-stage encoding since this
// engine has no on-disk index to stage into.
const (
	mergeHeadFile      = "MERGE_HEAD"
	mergeMsgFile       = "MERGE_MSG"
	mergeConflictsFile = "MERGE_CONFLICTS"
)

// ErrNoPendingMerge is returned by Load, ResolveConflict and
// ContinueMerge when no merge is in progress.
var ErrNoPendingMerge = errors.New("mergeengine: no merge in progress")

// ErrConflictsRemain is returned by ContinueMerge while unresolved
// conflicts remain.
var ErrConflictsRemain = errors.New("mergeengine: conflicts remain unresolved")

// PendingMerge is the on-disk record of an in-progress merge: enough to
// resume resolving conflicts across process restarts.
type PendingMerge struct {
	OurHead     plumbing.Hash `json:"our_head"`
	TheirHead   plumbing.Hash `json:"their_head"`
	Message     string        `json:"message"`
	PartialTree plumbing.Hash `json:"partial_tree"`
	Conflicts   []Conflict    `json:"conflicts"`
}

func headPath(root string) string      { return filepath.Join(root, mergeHeadFile) }
func msgPath(root string) string       { return filepath.Join(root, mergeMsgFile) }
func conflictsPath(root string) string { return filepath.Join(root, mergeConflictsFile) }

// Begin records a new pending merge, overwriting any prior one.
func Begin(root string, ourHead, theirHead plumbing.Hash, message string, partialTree plumbing.Hash, conflicts []Conflict) error {
	pm := &PendingMerge{OurHead: ourHead, TheirHead: theirHead, Message: message, PartialTree: partialTree, Conflicts: conflicts}
	return pm.save(root)
}

// Load reads the pending merge recorded under root, or ErrNoPendingMerge
// if none exists.
func Load(root string) (*PendingMerge, error) {
	raw, err := os.ReadFile(conflictsPath(root))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNoPendingMerge
	}
	if err != nil {
		return nil, err
	}
	var pm PendingMerge
	if err := json.Unmarshal(raw, &pm); err != nil {
		return nil, fmt.Errorf("mergeengine: corrupt %s: %w", mergeConflictsFile, err)
	}
	return &pm, nil
}

func (pm *PendingMerge) save(root string) error {
	raw, err := json.MarshalIndent(pm, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(conflictsPath(root), raw, 0o644); err != nil {
		return err
	}
	if err := os.WriteFile(headPath(root), []byte(pm.TheirHead.String()+"\n"), 0o644); err != nil {
		return err
	}
	return os.WriteFile(msgPath(root), []byte(pm.Message), 0o644)
}

// Abort discards the pending merge and its persisted files. It is not an
// error to abort when nothing is pending.
func Abort(root string) error {
	for _, p := range []string{headPath(root), msgPath(root), conflictsPath(root)} {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
	}
	return nil
}

// ResolveConflict grafts resolvedContent as path's final content into the
// pending merge's partial tree, removes path from the unresolved-conflict
// list, and persists the update.
func ResolveConflict(l Loader, w Writer, root, path string, mode object.FileMode, resolvedContent []byte) (*PendingMerge, error) {
	pm, err := Load(root)
	if err != nil {
		return nil, err
	}
	idx := -1
	for i, c := range pm.Conflicts {
		if c.Path == path {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, fmt.Errorf("mergeengine: %q is not a conflicted path", path)
	}

	blobOID, err := w.Put(codec.TypeBlob, resolvedContent)
	if err != nil {
		return nil, err
	}
	leaf := object.TreeEntry{Name: filepath.Base(path), Mode: mode, Hash: blobOID}
	newRoot, err := insertPath(l, w, pm.PartialTree, path, leaf)
	if err != nil {
		return nil, err
	}

	pm.PartialTree = newRoot
	pm.Conflicts = append(pm.Conflicts[:idx], pm.Conflicts[idx+1:]...)
	if err := pm.save(root); err != nil {
		return nil, err
	}
	return pm, nil
}

// ContinueMerge builds and persists the merge commit once every conflict
// has been resolved, parented on pm.OurHead and pm.TheirHead exactly as a
// conflict-free Merge would have, and clears the pending-merge files.
func ContinueMerge(root string, w Writer, author, committer object.Signature) (plumbing.Hash, error) {
	pm, err := Load(root)
	if err != nil {
		return plumbing.ZeroHash, err
	}
	if len(pm.Conflicts) != 0 {
		return plumbing.ZeroHash, ErrConflictsRemain
	}
	commitOID, err := makeMergeCommit(w, pm.PartialTree, []plumbing.Hash{pm.OurHead, pm.TheirHead}, author, committer, pm.Message)
	if err != nil {
		return plumbing.ZeroHash, err
	}
	if err := Abort(root); err != nil {
		return plumbing.ZeroHash, err
	}
	return commitOID, nil
}
