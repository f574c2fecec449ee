// Package refs implements a named-reference store: branches and tags
// resolving to object ids, HEAD (direct or symbolic), and an atomic
// compare-and-swap update so concurrent writers never silently clobber
// each other's last update.
//
// Modeled on modules/zeta/refs: HEAD either a 40-hex hash or a
// "ref: <name>" symbolic pointer, and ReferenceUpdate's pre-write
// old-value check (filesystem.go). Storage differs: references are rows
// in sqlstore's refs table, and each update does its check-then-write
// inside one SQL transaction instead of a lock file and rename. Its
// packed-refs compaction format is not carried here.
package refs

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dot-do/gitcore/modules/plumbing"
)

// Name is a fully-qualified reference name, e.g. "refs/heads/main".
type Name string

const HEAD Name = "HEAD"

// ErrNotFound is returned when a reference does not exist.
var ErrNotFound = errors.New("refs: reference not found")

// ErrChanged is returned by Update/Delete when the stored value no longer
// matches the caller-supplied expected old value (optimistic concurrency
// lost the race).
var ErrChanged = errors.New("refs: reference changed concurrently")

// ErrInvalidName rejects a malformed reference name.
type ErrInvalidName struct{ Name string }

func (e *ErrInvalidName) Error() string { return fmt.Sprintf("refs: invalid reference name %q", e.Name) }

// Validate enforces a conservative subset of Git's ref-name rules: no
// empty components, no "..", no control characters, no leading/trailing
// slash.
func Validate(name Name) error {
	s := string(name)
	if s == "" || s != strings.TrimSpace(s) {
		return &ErrInvalidName{Name: s}
	}
	if strings.HasPrefix(s, "/") || strings.HasSuffix(s, "/") {
		return &ErrInvalidName{Name: s}
	}
	if strings.Contains(s, "..") || strings.ContainsAny(s, " \t\n~^:?*[\\") {
		return &ErrInvalidName{Name: s}
	}
	for i := 0; i < len(s); i++ {
		if s[i] < 0x20 || s[i] == 0x7f {
			return &ErrInvalidName{Name: s}
		}
	}
	for _, part := range strings.Split(s, "/") {
		if part == "" {
			return &ErrInvalidName{Name: s}
		}
	}
	return nil
}

// Reference is either a direct reference (Hash set) or a symbolic one
// (Target set, pointing at another reference name).
type Reference struct {
	Name   Name
	Hash   plumbing.Hash
	Target Name // non-empty for a symbolic reference
}

// IsSymbolic reports whether r points at another reference rather than an
// object id directly.
func (r *Reference) IsSymbolic() bool { return r.Target != "" }

func (r *Reference) encode() string {
	if r.IsSymbolic() {
		return "ref: " + string(r.Target) + "\n"
	}
	return r.Hash.String() + "\n"
}

func decodeReference(name Name, content string) *Reference {
	line := strings.TrimSpace(content)
	if target, ok := strings.CutPrefix(line, "ref: "); ok {
		return &Reference{Name: name, Target: Name(strings.TrimSpace(target))}
	}
	return &Reference{Name: name, Hash: plumbing.NewHash(line)}
}

// rule is one of Git's shorten_unambiguous_ref rev-parse rules.
type rule struct{ prefix, suffix string }

func (r rule) expand(short string) Name { return Name(r.prefix + short + r.suffix) }

func (r rule) shorten(name string) (string, bool) {
	if !strings.HasPrefix(name, r.prefix) {
		return "", false
	}
	trimmed := strings.TrimSuffix(name[len(r.prefix):], r.suffix)
	return trimmed, true
}

var revParseRules = []rule{
	{},
	{prefix: "refs/"},
	{prefix: "refs/tags/"},
	{prefix: "refs/heads/"},
	{prefix: "refs/remotes/"},
	{prefix: "refs/remotes/", suffix: "/HEAD"},
}
