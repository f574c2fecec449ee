package object

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"github.com/dot-do/gitcore/modules/plumbing"
)

// Tag is a Git annotated tag: target object, tag name, optional tagger,
// message, optional GPG signature and arbitrary preserved extra headers
// (including "encoding").
//
// Extra is always non-nil after NewTag/ParseTag, so that round-trip
// serialization reproduces the header set exactly even when it is empty.
type Tag struct {
	Object     plumbing.Hash
	TargetType Type
	Name       string
	Tagger     *Signature
	Message    string
	GPGSig     string
	Extra      map[string]string
}

// NewTag validates and constructs a Tag.
func NewTag(target plumbing.Hash, targetType Type, name string, tagger *Signature, message string) (*Tag, error) {
	if target.IsZero() {
		return nil, &ErrInvalidTag{Reason: "target must be non-zero"}
	}
	if name == "" || strings.ContainsAny(name, "\x00\n") {
		return nil, &ErrInvalidTag{Reason: fmt.Sprintf("invalid tag name %q", name)}
	}
	if tagger != nil {
		if err := tagger.Validate(); err != nil {
			return nil, err
		}
	}
	return &Tag{Object: target, TargetType: targetType, Name: name, Tagger: tagger, Message: message, Extra: map[string]string{}}, nil
}

// ErrInvalidTag is a §7 Validation error for a malformed tag.
type ErrInvalidTag struct {
	Reason string
}

func (e *ErrInvalidTag) Error() string {
	return fmt.Sprintf("object: invalid tag: %s", e.Reason)
}

func (t *Tag) Type() Type { return TagObject }

// Serialize renders "object", "type", "tag", optional "tagger", any
// preserved extra headers (stable order: encoding first, then the rest
// alphabetically), optional multi-line gpgsig, a blank line, and message.
func (t *Tag) Serialize() ([]byte, error) {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "object %s\n", t.Object)
	fmt.Fprintf(&buf, "type %s\n", t.TargetType)
	fmt.Fprintf(&buf, "tag %s\n", t.Name)
	if t.Tagger != nil {
		fmt.Fprintf(&buf, "tagger %s\n", t.Tagger.Encode())
	}
	if enc, ok := t.Extra["encoding"]; ok {
		fmt.Fprintf(&buf, "encoding %s\n", enc)
	}
	keys := make([]string, 0, len(t.Extra))
	for k := range t.Extra {
		if k == "encoding" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&buf, "%s %s\n", k, t.Extra[k])
	}
	if t.GPGSig != "" {
		buf.WriteString("gpgsig ")
		lines := strings.Split(t.GPGSig, "\n")
		for i, l := range lines {
			if i > 0 {
				buf.WriteString("\n ")
			}
			buf.WriteString(l)
		}
		buf.WriteByte('\n')
	}
	buf.WriteByte('\n')
	buf.WriteString(t.Message)
	return buf.Bytes(), nil
}

func (t *Tag) Hash() (plumbing.Hash, error) {
	return hashOf(TagObject, t.Serialize)
}

// ParseTag decodes Git-framed tag bytes. Any header line of the form
// "<name> <value>" that is not one of object/type/tag/tagger/gpgsig is
// preserved verbatim in Extra for round-trip identity.
func ParseTag(raw []byte) (*Tag, error) {
	body, err := parseHeader(TagObject, raw)
	if err != nil {
		return nil, err
	}
	tg := &Tag{Extra: map[string]string{}}
	lines := splitLinesKeepEmpty(body)
	i := 0
	for ; i < len(lines); i++ {
		line := lines[i]
		if line == "" {
			i++
			break
		}
		spaceIdx := strings.IndexByte(line, ' ')
		if spaceIdx < 0 {
			return nil, plumbing.NewError(plumbing.KindCodec, "parse-tag", plumbing.ZeroHash, "", fmt.Errorf("malformed header %q", line))
		}
		key, value := line[:spaceIdx], line[spaceIdx+1:]
		switch key {
		case "object":
			h, err := plumbing.NewHashEx(value)
			if err != nil {
				return nil, err
			}
			tg.Object = h
		case "type":
			typ, err := ParseType(value)
			if err != nil {
				return nil, err
			}
			tg.TargetType = typ
		case "tag":
			tg.Name = value
		case "tagger":
			sig, err := ParseSignature(value)
			if err != nil {
				return nil, err
			}
			tg.Tagger = &sig
		case "gpgsig":
			sigLines := []string{value}
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
				break
			}
			tg.GPGSig = strings.Join(sigLines, "\n")
			i--
		default:
			tg.Extra[key] = value
		}
	}
	if tg.Object.IsZero() || tg.Name == "" {
		return nil, &ErrInvalidTag{Reason: "missing object or tag header"}
	}
	tg.Message = strings.Join(lines[i:], "\n")
	return tg, nil
}
