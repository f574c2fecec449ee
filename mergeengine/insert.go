package mergeengine

import (
	"strings"

	"github.com/dot-do/gitcore/modules/codec"
	"github.com/dot-do/gitcore/modules/object"
	"github.com/dot-do/gitcore/modules/plumbing"
)

// insertPath rebuilds the tree spine from rootOID down to path's parent
// directory, replacing (or adding) path's leaf entry, and returns the new
// root tree hash. Used by ResolveConflict to graft a manually resolved
// file back into a partially merged tree.
func insertPath(l Loader, w Writer, rootOID plumbing.Hash, path string, leaf object.TreeEntry) (plumbing.Hash, error) {
	parts := strings.Split(path, "/")
	return insertAt(l, w, rootOID, parts, leaf)
}

// removePath rebuilds the tree spine from rootOID down to path's parent,
// dropping path's leaf entry entirely, and returns the new root tree hash.
// Used when auto-resolving a modify/delete conflict in favor of the side
// that deleted the path.
func removePath(l Loader, w Writer, rootOID plumbing.Hash, path string) (plumbing.Hash, error) {
	parts := strings.Split(path, "/")
	return removeAt(l, w, rootOID, parts)
}

func removeAt(l Loader, w Writer, dirOID plumbing.Hash, parts []string) (plumbing.Hash, error) {
	tree, err := loadTree(l, dirOID)
	if err != nil {
		return plumbing.ZeroHash, err
	}
	if tree == nil {
		return plumbing.ZeroHash, nil
	}

	name := parts[0]
	var kept []object.TreeEntry
	var matched *object.TreeEntry
	for i := range tree.Entries {
		if tree.Entries[i].Name == name {
			e := tree.Entries[i]
			matched = &e
			continue
		}
		kept = append(kept, tree.Entries[i])
	}

	if len(parts) > 1 && matched != nil {
		newChildOID, err := removeAt(l, w, matched.Hash, parts[1:])
		if err != nil {
			return plumbing.ZeroHash, err
		}
		if !newChildOID.IsZero() {
			kept = append(kept, object.TreeEntry{Name: name, Mode: object.ModeDir, Hash: newChildOID})
		}
	}

	if len(kept) == 0 {
		return plumbing.ZeroHash, nil
	}
	newTree, err := object.NewTree(kept)
	if err != nil {
		return plumbing.ZeroHash, err
	}
	raw, err := newTree.Serialize()
	if err != nil {
		return plumbing.ZeroHash, err
	}
	return w.Put(codec.TypeTree, raw)
}

func insertAt(l Loader, w Writer, dirOID plumbing.Hash, parts []string, leaf object.TreeEntry) (plumbing.Hash, error) {
	tree, err := loadTree(l, dirOID)
	if err != nil {
		return plumbing.ZeroHash, err
	}
	var existing []object.TreeEntry
	if tree != nil {
		existing = tree.Entries
	}

	name := parts[0]
	var kept []object.TreeEntry
	var matched *object.TreeEntry
	for i := range existing {
		if existing[i].Name == name {
			e := existing[i]
			matched = &e
			continue
		}
		kept = append(kept, existing[i])
	}

	if len(parts) == 1 {
		kept = append(kept, leaf)
		newTree, err := object.NewTree(kept)
		if err != nil {
			return plumbing.ZeroHash, err
		}
		raw, err := newTree.Serialize()
		if err != nil {
			return plumbing.ZeroHash, err
		}
		return w.Put(codec.TypeTree, raw)
	}

	var childOID plumbing.Hash
	if matched != nil {
		childOID = matched.Hash
	}
	newChildOID, err := insertAt(l, w, childOID, parts[1:], leaf)
	if err != nil {
		return plumbing.ZeroHash, err
	}
	kept = append(kept, object.TreeEntry{Name: name, Mode: object.ModeDir, Hash: newChildOID})
	newTree, err := object.NewTree(kept)
	if err != nil {
		return plumbing.ZeroHash, err
	}
	raw, err := newTree.Serialize()
	if err != nil {
		return plumbing.ZeroHash, err
	}
	return w.Put(codec.TypeTree, raw)
}
