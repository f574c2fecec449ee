package mergeengine

import (
	"github.com/dot-do/gitcore/modules/codec"
	"github.com/dot-do/gitcore/modules/merge"
	"github.com/dot-do/gitcore/modules/object"
	"github.com/dot-do/gitcore/modules/plumbing"
)

// mergeBlobContent three-way merges a single file's content. base may be
// nil (add/add case). On a clean merge it writes the merged blob and
// returns the tree entry for it; on conflict it returns a populated
// Conflict (with Rendered content for text files) and a nil entry.
func mergeBlobContent(l Loader, w Writer, path string, base, ours, theirs *object.TreeEntry) (*Conflict, *object.TreeEntry, error) {
	var baseContent []byte
	var err error
	if base != nil {
		if baseContent, err = readBlob(l, base.Hash); err != nil {
			return nil, nil, err
		}
	}
	ourContent, err := readBlob(l, ours.Hash)
	if err != nil {
		return nil, nil, err
	}
	theirContent, err := readBlob(l, theirs.Hash)
	if err != nil {
		return nil, nil, err
	}

	if merge.IsBinary(baseContent) || merge.IsBinary(ourContent) || merge.IsBinary(theirContent) {
		return &Conflict{
			Path: path, Kind: ConflictBinary,
			Ancestor: entryConflict(path, base), Our: entryConflict(path, ours), Their: entryConflict(path, theirs),
		}, nil, nil
	}

	blocks := merge.Merge(merge.SplitLines(string(baseContent)), merge.SplitLines(string(ourContent)), merge.SplitLines(string(theirContent)))
	if !merge.HasConflict(blocks) {
		rendered := []byte(merge.Render(blocks, "", ""))
		oid, err := w.Put(codec.TypeBlob, rendered)
		if err != nil {
			return nil, nil, err
		}
		return nil, &object.TreeEntry{Name: nameOf(ours, theirs), Mode: ours.Mode, Hash: oid}, nil
	}

	rendered := []byte(merge.Render(blocks, "ours", "theirs"))
	return &Conflict{
		Path: path, Kind: ConflictContent,
		Ancestor: entryConflict(path, base), Our: entryConflict(path, ours), Their: entryConflict(path, theirs),
		Rendered: rendered,
	}, nil, nil
}

func readBlob(l Loader, oid plumbing.Hash) ([]byte, error) {
	if oid.IsZero() {
		return nil, nil
	}
	b, err := l.ReadBlob(oid)
	if err != nil {
		return nil, err
	}
	return b.Content, nil
}

func nameOf(entries ...*object.TreeEntry) string {
	for _, e := range entries {
		if e != nil {
			return e.Name
		}
	}
	return ""
}
