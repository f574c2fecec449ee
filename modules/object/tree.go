package object

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"github.com/dot-do/gitcore/modules/plumbing"
)

// TreeEntry is one row of a tree object: {mode, name, sha}.
type TreeEntry struct {
	Name string
	Mode FileMode
	Hash plumbing.Hash
}

// Tree is an ordered sequence of entries, each validated and sorted per
// §3's tree ordering rule: entries sort by name, with directories treated
// as though their name carried a trailing "/".
type Tree struct {
	Entries []TreeEntry
}

// sortKey returns the name used for ordering comparisons: name, with a
// trailing "/" appended for directory entries.
func sortKey(e TreeEntry) string {
	if e.Mode.IsDir() {
		return e.Name + "/"
	}
	return e.Name
}

// NewTree validates entries, sorts them per §3 and constructs a Tree.
func NewTree(entries []TreeEntry) (*Tree, error) {
	for _, e := range entries {
		if err := validateEntry(e); err != nil {
			return nil, err
		}
	}
	sorted := make([]TreeEntry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool { return sortKey(sorted[i]) < sortKey(sorted[j]) })
	return &Tree{Entries: sorted}, nil
}

func validateEntry(e TreeEntry) error {
	if e.Name == "" {
		return &ErrInvalidEntry{Reason: "empty name"}
	}
	if strings.ContainsRune(e.Name, '/') {
		return &ErrInvalidEntry{Reason: fmt.Sprintf("name %q contains '/'", e.Name)}
	}
	if strings.IndexByte(e.Name, 0) >= 0 {
		return &ErrInvalidEntry{Reason: fmt.Sprintf("name %q contains NUL", e.Name)}
	}
	if !ValidModes[e.Mode] {
		return &ErrInvalidMode{Mode: e.Mode.String()}
	}
	return nil
}

// ErrInvalidEntry is a §7 Validation error for a malformed tree entry.
type ErrInvalidEntry struct {
	Reason string
}

func (e *ErrInvalidEntry) Error() string {
	return fmt.Sprintf("object: invalid tree entry: %s", e.Reason)
}

func (t *Tree) Type() Type { return TreeObject }

// Serialize emits "<mode> <name>\0" + 20 raw SHA bytes per entry, in the
// sorted order established at construction/parse time.
func (t *Tree) Serialize() ([]byte, error) {
	var buf bytes.Buffer
	for _, e := range t.Entries {
		buf.WriteString(modeToken(e.Mode))
		buf.WriteByte(' ')
		buf.WriteString(e.Name)
		buf.WriteByte(0)
		buf.Write(e.Hash[:])
	}
	return buf.Bytes(), nil
}

func (t *Tree) Hash() (plumbing.Hash, error) {
	return hashOf(TreeObject, t.Serialize)
}

// ParseTree decodes Git-framed tree bytes, validating mode/name/sha and
// that entries are already in canonical order (§8: "entries returned by
// get_tree are in the canonical sort order").
func ParseTree(raw []byte) (*Tree, error) {
	body, err := parseHeader(TreeObject, raw)
	if err != nil {
		return nil, err
	}
	var entries []TreeEntry
	for len(body) > 0 {
		spaceIdx := bytes.IndexByte(body, ' ')
		if spaceIdx < 0 {
			return nil, plumbing.NewError(plumbing.KindCodec, "parse-tree", plumbing.ZeroHash, "", fmt.Errorf("missing mode separator"))
		}
		modeTok := string(body[:spaceIdx])
		rest := body[spaceIdx+1:]
		nulIdx := bytes.IndexByte(rest, 0)
		if nulIdx < 0 {
			return nil, plumbing.NewError(plumbing.KindCodec, "parse-tree", plumbing.ZeroHash, "", fmt.Errorf("missing name terminator"))
		}
		name := string(rest[:nulIdx])
		shaStart := nulIdx + 1
		if shaStart+plumbing.HashSize > len(rest) {
			return nil, plumbing.NewError(plumbing.KindCodec, "parse-tree", plumbing.ZeroHash, "", fmt.Errorf("truncated entry sha"))
		}
		var h plumbing.Hash
		copy(h[:], rest[shaStart:shaStart+plumbing.HashSize])
		mode, err := ParseFileMode(modeTok)
		if err != nil {
			return nil, err
		}
		entry := TreeEntry{Name: name, Mode: mode, Hash: h}
		if err := validateEntry(entry); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
		body = rest[shaStart+plumbing.HashSize:]
	}
	if !sort.SliceIsSorted(entries, func(i, j int) bool { return sortKey(entries[i]) < sortKey(entries[j]) }) {
		return nil, plumbing.NewError(plumbing.KindConsistency, "parse-tree", plumbing.ZeroHash, "", fmt.Errorf("tree entries unsorted on read"))
	}
	return &Tree{Entries: entries}, nil
}

// Find returns the entry named name, or nil if absent.
func (t *Tree) Find(name string) *TreeEntry {
	for i := range t.Entries {
		if t.Entries[i].Name == name {
			return &t.Entries[i]
		}
	}
	return nil
}
