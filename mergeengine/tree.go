package mergeengine

import (
	"sort"

	"github.com/dot-do/gitcore/modules/codec"
	"github.com/dot-do/gitcore/modules/object"
	"github.com/dot-do/gitcore/modules/plumbing"
)

// entrySet is a directory's children keyed by name, as seen from one side
// of the merge (nil entry means "absent on this side").
type entrySet map[string]*object.TreeEntry

func entriesOf(t *object.Tree) entrySet {
	if t == nil {
		return entrySet{}
	}
	s := make(entrySet, len(t.Entries))
	for i := range t.Entries {
		e := t.Entries[i]
		s[e.Name] = &e
	}
	return s
}

func unionNames(sets ...entrySet) []string {
	seen := map[string]bool{}
	var names []string
	for _, s := range sets {
		for name := range s {
			if !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		}
	}
	sort.Strings(names)
	return names
}

// MergeTree performs a recursive three-way merge of three trees rooted at
// base/ours/theirs, returning the merged tree hash (built and written via
// w) and any unresolved conflicts, collected with their full repo-relative
// path.
//
// Modeled on odb.mergeTree: same base/our/their tree walk and per-path
// conflict classification, scoped here to exact-path matching (no
// rename detection).
func MergeTree(l Loader, w Writer, baseOID, ourOID, theirOID plumbing.Hash) (*Result, error) {
	result := &Result{}
	newTree, err := mergeDir(l, w, "", baseOID, ourOID, theirOID, result)
	if err != nil {
		return nil, err
	}
	result.NewTree = newTree
	return result, nil
}

func loadTree(l Loader, oid plumbing.Hash) (*object.Tree, error) {
	if oid.IsZero() {
		return nil, nil
	}
	return l.ReadTree(oid)
}

// mergeDir merges one directory level, recursing into subtrees that
// changed on both sides, and returns the hash of the merged tree object
// for this directory (or the zero hash if every entry was removed).
func mergeDir(l Loader, w Writer, prefix string, baseOID, ourOID, theirOID plumbing.Hash, result *Result) (plumbing.Hash, error) {
	baseTree, err := loadTree(l, baseOID)
	if err != nil {
		return plumbing.ZeroHash, err
	}
	ourTree, err := loadTree(l, ourOID)
	if err != nil {
		return plumbing.ZeroHash, err
	}
	theirTree, err := loadTree(l, theirOID)
	if err != nil {
		return plumbing.ZeroHash, err
	}

	baseEntries := entriesOf(baseTree)
	ourEntries := entriesOf(ourTree)
	theirEntries := entriesOf(theirTree)

	var merged []object.TreeEntry
	for _, name := range unionNames(baseEntries, ourEntries, theirEntries) {
		path := name
		if prefix != "" {
			path = prefix + "/" + name
		}
		entry, conflict, err := mergeEntry(l, w, path, name, baseEntries[name], ourEntries[name], theirEntries[name], result)
		if err != nil {
			return plumbing.ZeroHash, err
		}
		if conflict {
			continue
		}
		if entry != nil {
			merged = append(merged, *entry)
		}
	}

	if len(merged) == 0 {
		return plumbing.ZeroHash, nil
	}
	tree, err := object.NewTree(merged)
	if err != nil {
		return plumbing.ZeroHash, err
	}
	raw, err := tree.Serialize()
	if err != nil {
		return plumbing.ZeroHash, err
	}
	return w.Put(codec.TypeTree, raw)
}

// mergeEntry resolves one name across the three sides. It returns the
// entry to keep in the merged tree (nil if the path should be absent), or
// records a Conflict and reports conflict=true.
func mergeEntry(l Loader, w Writer, path, name string, base, ours, theirs *object.TreeEntry, result *Result) (entry *object.TreeEntry, conflict bool, err error) {
	// Unanimous agreement, including the "nobody has it" case.
	if sameEntry(ours, theirs) {
		return ours, false, nil
	}
	// Only one side touched it relative to base: take the touched side.
	if sameEntry(base, ours) {
		return theirs, false, nil
	}
	if sameEntry(base, theirs) {
		return ours, false, nil
	}

	// Both sides changed the path relative to base and disagree.
	switch {
	case ours == nil && theirs == nil:
		return nil, false, nil
	case ours == nil || theirs == nil:
		return mergeModifyDelete(path, base, ours, theirs, result)
	case ours.Mode.IsDir() && theirs.Mode.IsDir():
		newOID, err := mergeDir(l, w, path, treeHash(base), ours.Hash, theirs.Hash, result)
		if err != nil {
			return nil, false, err
		}
		if newOID.IsZero() {
			return nil, false, nil
		}
		return &object.TreeEntry{Name: name, Mode: object.ModeDir, Hash: newOID}, false, nil
	case ours.Mode.IsDir() != theirs.Mode.IsDir():
		result.Conflicts = append(result.Conflicts, Conflict{
			Path: path, Kind: ConflictFileDirectory,
			Ancestor: entryConflict(path, base), Our: entryConflict(path, ours), Their: entryConflict(path, theirs),
		})
		return nil, true, nil
	case base == nil:
		// Both sides independently added the same path with different content.
		c, mergedBlob, err := mergeBlobContent(l, w, path, nil, ours, theirs)
		if err != nil {
			return nil, false, err
		}
		if c != nil {
			c.Kind = ConflictAddAdd
			result.Conflicts = append(result.Conflicts, *c)
			return nil, true, nil
		}
		return mergedBlob, false, nil
	case ours.Mode != theirs.Mode:
		result.Conflicts = append(result.Conflicts, Conflict{
			Path: path, Kind: ConflictModes,
			Ancestor: entryConflict(path, base), Our: entryConflict(path, ours), Their: entryConflict(path, theirs),
		})
		return nil, true, nil
	default:
		c, mergedBlob, err := mergeBlobContent(l, w, path, base, ours, theirs)
		if err != nil {
			return nil, false, err
		}
		if c != nil {
			result.Conflicts = append(result.Conflicts, *c)
			return nil, true, nil
		}
		return mergedBlob, false, nil
	}
}

// mergeModifyDelete handles the two asymmetric add/delete disagreements:
// one side still has the path (having modified it relative to base) while
// the other removed it entirely. Which side did the deleting decides the
// conflict kind, since a resolution UI needs to know whether to offer
// "keep our edit" or "keep their edit" as the non-delete option.
func mergeModifyDelete(path string, base, ours, theirs *object.TreeEntry, result *Result) (*object.TreeEntry, bool, error) {
	kind := ConflictModifyDelete // ours present (modified), theirs deleted
	if ours == nil {
		kind = ConflictDeleteModify // ours deleted, theirs present (modified)
	}
	result.Conflicts = append(result.Conflicts, Conflict{
		Path: path, Kind: kind,
		Ancestor: entryConflict(path, base), Our: entryConflict(path, ours), Their: entryConflict(path, theirs),
	})
	return nil, true, nil
}

func sameEntry(a, b *object.TreeEntry) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Mode == b.Mode && a.Hash == b.Hash
}

func treeHash(e *object.TreeEntry) plumbing.Hash {
	if e == nil {
		return plumbing.ZeroHash
	}
	return e.Hash
}

func entryConflict(path string, e *object.TreeEntry) ConflictEntry {
	if e == nil {
		return ConflictEntry{Path: path}
	}
	return ConflictEntry{Path: path, Mode: e.Mode, Hash: e.Hash}
}
