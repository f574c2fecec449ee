// Package object implements the Git object model: blob, tree, commit and
// tag, with constructors that validate, canonical serializers, parsers
// that validate Git object framing, and Hash() that serializes then
// hashes. Modeled on modules/zeta/object (itself derived from go-git's
// object model), adapted from zeta's custom binary framing back to Git's
// textual "<type> <size>\0<content>" framing and SHA-1 addressing, since
// the core this engine serves must be byte-compatible with real Git
// repositories.
package object

import (
	"fmt"

	"github.com/dot-do/gitcore/modules/codec"
	"github.com/dot-do/gitcore/modules/plumbing"
)

// Type identifies one of the four object kinds.
type Type int

const (
	InvalidObject Type = iota
	BlobObject
	TreeObject
	CommitObject
	TagObject
)

func (t Type) String() string {
	switch t {
	case BlobObject:
		return "blob"
	case TreeObject:
		return "tree"
	case CommitObject:
		return "commit"
	case TagObject:
		return "tag"
	default:
		return "invalid"
	}
}

// ParseType maps a Git object-type token to a Type.
func ParseType(s string) (Type, error) {
	switch s {
	case "blob":
		return BlobObject, nil
	case "tree":
		return TreeObject, nil
	case "commit":
		return CommitObject, nil
	case "tag":
		return TagObject, nil
	default:
		return InvalidObject, &ErrUnsupportedType{Type: s}
	}
}

func (t Type) codecType() codec.ObjectType {
	return codec.ObjectType(t.String())
}

// ErrUnsupportedType is a §7 Codec error for an unrecognized object-type
// token in a header.
type ErrUnsupportedType struct {
	Type string
}

func (e *ErrUnsupportedType) Error() string {
	return fmt.Sprintf("object: unsupported type %q", e.Type)
}

// Object is the common interface implemented by Blob, Tree, Commit and Tag.
type Object interface {
	Type() Type
	Serialize() ([]byte, error)
	Hash() (plumbing.Hash, error)
}

// hashOf serializes o and hashes the result under Git object framing.
func hashOf(t Type, serialize func() ([]byte, error)) (plumbing.Hash, error) {
	b, err := serialize()
	if err != nil {
		return plumbing.ZeroHash, err
	}
	return codec.HashObject(t.codecType(), b), nil
}

// parseHeader splits a Git-framed object into its declared size and body,
// validating that the declared size matches the actual body length.
func parseHeader(want Type, raw []byte) (body []byte, err error) {
	nulIdx := -1
	for i, b := range raw {
		if b == 0 {
			nulIdx = i
			break
		}
	}
	if nulIdx < 0 {
		return nil, plumbing.NewError(plumbing.KindCodec, "parse-header", plumbing.ZeroHash, "", fmt.Errorf("missing NUL terminator"))
	}
	header := string(raw[:nulIdx])
	var typeTok string
	var size int
	if _, err := fmt.Sscanf(header, "%s %d", &typeTok, &size); err != nil {
		return nil, plumbing.NewError(plumbing.KindCodec, "parse-header", plumbing.ZeroHash, "", fmt.Errorf("malformed header %q", header))
	}
	gotType, err := ParseType(typeTok)
	if err != nil {
		return nil, err
	}
	if gotType != want {
		return nil, &ErrMismatchedObject{Want: want.String(), Got: gotType.String()}
	}
	body = raw[nulIdx+1:]
	if len(body) != size {
		return nil, plumbing.NewError(plumbing.KindConsistency, "parse-header", plumbing.ZeroHash, "", fmt.Errorf("declared size %d does not match body length %d", size, len(body)))
	}
	return body, nil
}

// ErrMismatchedObject is a §7 Codec error raised when a parser is asked to
// decode bytes framed as a different object type.
type ErrMismatchedObject struct {
	Want, Got string
}

func (e *ErrMismatchedObject) Error() string {
	return fmt.Sprintf("object: expected %q, got %q", e.Want, e.Got)
}
