package object

import (
	"github.com/dot-do/gitcore/modules/plumbing"
)

// Blob is the simplest object: an opaque byte payload addressed by the
// SHA-1 of its Git framing.
type Blob struct {
	Content []byte
}

// NewBlob validates and constructs a Blob. Size may be zero; any byte
// content is accepted.
func NewBlob(content []byte) *Blob {
	return &Blob{Content: content}
}

func (b *Blob) Type() Type { return BlobObject }

// Serialize returns the raw content unchanged: a blob's canonical bytes
// are its content, the type/size framing is added by hash_object/Frame.
func (b *Blob) Serialize() ([]byte, error) {
	return b.Content, nil
}

func (b *Blob) Hash() (plumbing.Hash, error) {
	return hashOf(BlobObject, b.Serialize)
}

// ParseBlob reads Git-framed bytes ("blob <size>\0<content>") into a Blob.
func ParseBlob(raw []byte) (*Blob, error) {
	body, err := parseHeader(BlobObject, raw)
	if err != nil {
		return nil, err
	}
	return &Blob{Content: body}, nil
}

// Size returns the blob's content length.
func (b *Blob) Size() int64 { return int64(len(b.Content)) }
