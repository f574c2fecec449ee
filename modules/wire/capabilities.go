package wire

import (
	"sort"
	"strings"
)

// Capabilities is the set of capability tokens (some with a "=value"
// payload, e.g. "agent=gitcore/1.0" or "symref=HEAD:refs/heads/main")
// a side advertises or requests.
type Capabilities map[string]string

// NewCapabilities builds a Capabilities set from "key" and "key=value"
// tokens.
func NewCapabilities(tokens ...string) Capabilities {
	c := make(Capabilities, len(tokens))
	for _, t := range tokens {
		if i := strings.IndexByte(t, '='); i >= 0 {
			c[t[:i]] = t[i+1:]
		} else {
			c[t] = ""
		}
	}
	return c
}

// Has reports whether name was advertised/requested, with or without a
// value.
func (c Capabilities) Has(name string) bool {
	_, ok := c[name]
	return ok
}

// Get returns the value paired with name, or "" if it carries none.
func (c Capabilities) Get(name string) string {
	return c[name]
}

// String renders capabilities as a single space-joined, alphabetically
// sorted token list, the form they take appended to the first
// ref-advertisement line (separated from the ref by a NUL).
func (c Capabilities) String() string {
	names := make([]string, 0, len(c))
	for k := range c {
		names = append(names, k)
	}
	sort.Strings(names)
	tokens := make([]string, 0, len(names))
	for _, k := range names {
		if v, ok := c[k]; ok && v != "" {
			tokens = append(tokens, k+"="+v)
		} else {
			tokens = append(tokens, k)
		}
	}
	return strings.Join(tokens, " ")
}

// ParseRefLine splits a ref-advertisement first line of the form
// "<sha> <refname>\x00<capabilities>" into its sha, ref name and parsed
// capability set. Subsequent lines (no NUL) are plain "<sha> <refname>".
func ParseRefLine(line string) (sha, ref string, caps Capabilities) {
	if i := strings.IndexByte(line, 0); i >= 0 {
		caps = NewCapabilities(strings.Fields(line[i+1:])...)
		line = line[:i]
	}
	fields := strings.SplitN(line, " ", 2)
	if len(fields) == 2 {
		sha, ref = fields[0], fields[1]
	}
	return sha, ref, caps
}
