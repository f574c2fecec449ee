package object

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/dot-do/gitcore/modules/plumbing"
)

// Commit is a Git commit object: tree, zero or more parents, author,
// committer, message, and optional GPG signature.
type Commit struct {
	Tree      plumbing.Hash
	Parents   []plumbing.Hash
	Author    Signature
	Committer Signature
	Message   string
	GPGSig    string // empty if absent
}

// NewCommit validates and constructs a Commit. Tree must be non-zero;
// parent-DAG validity (no cycles, parents resolve) is enforced by the
// object store at insert time, not here.
func NewCommit(tree plumbing.Hash, parents []plumbing.Hash, author, committer Signature, message string) (*Commit, error) {
	if tree.IsZero() {
		return nil, &ErrInvalidCommit{Reason: "tree must be non-zero"}
	}
	if err := author.Validate(); err != nil {
		return nil, err
	}
	if err := committer.Validate(); err != nil {
		return nil, err
	}
	return &Commit{Tree: tree, Parents: parents, Author: author, Committer: committer, Message: message}, nil
}

// ErrInvalidCommit is a §7 Validation error for a malformed commit.
type ErrInvalidCommit struct {
	Reason string
}

func (e *ErrInvalidCommit) Error() string {
	return fmt.Sprintf("object: invalid commit: %s", e.Reason)
}

func (c *Commit) Type() Type { return CommitObject }

// Subject returns the first line of the message.
func (c *Commit) Subject() string {
	if i := strings.IndexByte(c.Message, '\n'); i >= 0 {
		return c.Message[:i]
	}
	return c.Message
}

// Body returns the message after the first blank line, or "" if there is
// no body.
func (c *Commit) Body() string {
	idx := strings.Index(c.Message, "\n\n")
	if idx < 0 {
		return ""
	}
	return c.Message[idx+2:]
}

// Warnings reports non-fatal message-quality issues (§4.2): a subject
// longer than 72 characters, a subject ending in '.', or a missing blank
// line between subject and body.
func (c *Commit) Warnings() []string {
	var warnings []string
	subject := c.Subject()
	if len(subject) > 72 {
		warnings = append(warnings, "subject longer than 72 characters")
	}
	if strings.HasSuffix(subject, ".") {
		warnings = append(warnings, "subject ends in '.'")
	}
	if rest := strings.TrimPrefix(c.Message, subject); rest != "" && !strings.HasPrefix(rest, "\n\n") && !strings.HasPrefix(rest, "\n") {
		warnings = append(warnings, "missing blank line between subject and body")
	} else if strings.HasPrefix(rest, "\n") && !strings.HasPrefix(rest, "\n\n") && rest != "\n" {
		warnings = append(warnings, "missing blank line between subject and body")
	}
	return warnings
}

// Serialize renders canonical commit bytes: "tree", zero or more
// "parent", "author", "committer", optional "gpgsig" (continuation lines
// prefixed by a single space), a blank line, then the message.
func (c *Commit) Serialize() ([]byte, error) {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "tree %s\n", c.Tree)
	for _, p := range c.Parents {
		fmt.Fprintf(&buf, "parent %s\n", p)
	}
	fmt.Fprintf(&buf, "author %s\n", c.Author.Encode())
	fmt.Fprintf(&buf, "committer %s\n", c.Committer.Encode())
	if c.GPGSig != "" {
		buf.WriteString("gpgsig ")
		lines := strings.Split(c.GPGSig, "\n")
		for i, l := range lines {
			if i > 0 {
				buf.WriteString("\n ")
			}
			buf.WriteString(l)
		}
		buf.WriteByte('\n')
	}
	buf.WriteByte('\n')
	buf.WriteString(c.Message)
	return buf.Bytes(), nil
}

func (c *Commit) Hash() (plumbing.Hash, error) {
	return hashOf(CommitObject, c.Serialize)
}

// ParseCommit decodes Git-framed commit bytes, preserving the GPG
// signature block verbatim (it is read until the PGP footer, treating
// intermediate blank lines as continuation, not end-of-headers) and
// splitting subject/body on the first blank line in Message.
func ParseCommit(raw []byte) (*Commit, error) {
	body, err := parseHeader(CommitObject, raw)
	if err != nil {
		return nil, err
	}
	c := &Commit{}
	lines := splitLinesKeepEmpty(body)
	i := 0
	for ; i < len(lines); i++ {
		line := lines[i]
		if line == "" {
			i++
			break
		}
		switch {
		case strings.HasPrefix(line, "tree "):
			h, err := plumbing.NewHashEx(strings.TrimPrefix(line, "tree "))
			if err != nil {
				return nil, err
			}
			c.Tree = h
		case strings.HasPrefix(line, "parent "):
			h, err := plumbing.NewHashEx(strings.TrimPrefix(line, "parent "))
			if err != nil {
				return nil, err
			}
			c.Parents = append(c.Parents, h)
		case strings.HasPrefix(line, "author "):
			sig, err := ParseSignature(strings.TrimPrefix(line, "author "))
			if err != nil {
				return nil, err
			}
			c.Author = sig
		case strings.HasPrefix(line, "committer "):
			sig, err := ParseSignature(strings.TrimPrefix(line, "committer "))
			if err != nil {
				return nil, err
			}
			c.Committer = sig
		case strings.HasPrefix(line, "gpgsig "):
			sigLines := []string{strings.TrimPrefix(line, "gpgsig ")}
			i++
			for i < len(lines) {
				l := lines[i]
				if strings.HasPrefix(l, " ") {
					sigLines = append(sigLines, strings.TrimPrefix(l, " "))
					if strings.Contains(l, "-----END PGP SIGNATURE-----") {
						i++
						break
					}
					i++
					continue
				}
				// a genuinely blank line inside the signature block is a
				// continuation, not a header terminator
				if l == "" && !strings.Contains(strings.Join(sigLines, "\n"), "-----END PGP SIGNATURE-----") {
					sigLines = append(sigLines, "")
					i++
					continue
				}
				break
			}
			c.GPGSig = strings.Join(sigLines, "\n")
			i--
		default:
			return nil, plumbing.NewError(plumbing.KindCodec, "parse-commit", plumbing.ZeroHash, "", fmt.Errorf("unrecognized header %q", line))
		}
	}
	if c.Tree.IsZero() {
		return nil, &ErrInvalidCommit{Reason: "missing tree header"}
	}
	c.Message = strings.Join(lines[i:], "\n")
	return c, nil
}

// splitLinesKeepEmpty splits on '\n' without discarding trailing empty
// lines (unlike strings.Split's last element after a trailing newline,
// here that trailing "" is meaningful to header-termination detection).
func splitLinesKeepEmpty(b []byte) []string {
	return strings.Split(string(b), "\n")
}
