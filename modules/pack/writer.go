package pack

import (
	"bytes"
	"crypto/sha1"
	"fmt"
	"hash"
	"hash/crc32"
	"io"

	"github.com/dot-do/gitcore/modules/codec"
	"github.com/dot-do/gitcore/modules/plumbing"
)

// ObjectToPack is one object queued for Writer.Write: its id, kind, full
// inflated content, and an optional delta base to encode against instead
// of storing the content whole.
type ObjectToPack struct {
	SHA     plumbing.Hash
	Kind    ObjectKind
	Content []byte

	// DeltaBaseSHA, when non-zero, selects REF_DELTA encoding against a
	// base identified by SHA. DeltaBaseContent supplies the base's
	// inflated bytes; when it is nil, Write uses the base registered for
	// DeltaBaseSHA via WithBases, and stores the object whole if neither
	// is present. The base itself may or may not also be written into
	// this pack — external bases are how a thin pack negotiates against
	// objects the receiver already has.
	DeltaBaseSHA     plumbing.Hash
	DeltaBaseContent []byte
}

// Writer streams a sequence of ObjectToPack values into a well-formed
// pack file and produces the matching index entries, mirroring the
// DecodePackfile/Packfile pairing in modules/zeta/backend/pack but for
// encoding rather than decoding.
type Writer struct {
	w       io.Writer
	digest  hash.Hash
	offset  int64
	entries []IndexEntry
	bases   map[plumbing.Hash][]byte // WithBases: external bases for thin-pack negotiation
}

// NewWriter wraps w, writing the pack header for count objects up front.
func NewWriter(w io.Writer, count uint32) (*Writer, error) {
	pw := &Writer{w: w, digest: sha1.New()}
	hdr := EncodeHeader(Header{Version: PackVersion, Count: count})
	if err := pw.writeRaw(hdr); err != nil {
		return nil, err
	}
	return pw, nil
}

// WithBases registers externally-known object contents (objects the
// remote peer is assumed to already hold) so Write can encode
// REF_DELTA instructions against them without including the base
// itself in the pack — the thin-pack negotiation helper used by
// upload-pack when serving an incremental fetch.
func (pw *Writer) WithBases(bases map[plumbing.Hash][]byte) *Writer {
	pw.bases = bases
	return pw
}

func (pw *Writer) writeRaw(b []byte) error {
	if _, err := pw.w.Write(b); err != nil {
		return fmt.Errorf("pack: write: %w", err)
	}
	pw.digest.Write(b)
	pw.offset += int64(len(b))
	return nil
}

// Write encodes one object (as a delta against DeltaBaseContent if set,
// otherwise whole) and appends its IndexEntry.
func (pw *Writer) Write(obj ObjectToPack) error {
	base := obj.DeltaBaseContent
	if base == nil && !obj.DeltaBaseSHA.IsZero() {
		base = pw.bases[obj.DeltaBaseSHA]
	}

	var body []byte
	kind := obj.Kind
	var headerSize int64
	if base != nil {
		ops := Diff(base, obj.Content)
		body = EncodeDelta(int64(len(base)), int64(len(obj.Content)), ops)
		kind = KindRefDelta
		headerSize = int64(len(body))
	} else {
		body = obj.Content
		headerSize = int64(len(body))
	}

	compressed, err := codec.Compress(body)
	if err != nil {
		return err
	}

	startOffset := pw.offset
	var chunk bytes.Buffer
	chunk.Write(EncodeObjectHeader(kind, headerSize))
	if kind == KindRefDelta {
		chunk.Write(obj.DeltaBaseSHA[:])
	}
	chunk.Write(compressed)

	crc := crc32.ChecksumIEEE(chunk.Bytes())
	if err := pw.writeRaw(chunk.Bytes()); err != nil {
		return err
	}
	pw.entries = append(pw.entries, IndexEntry{SHA: obj.SHA, Offset: uint64(startOffset), CRC32: crc})
	return nil
}

// Close writes the trailing pack checksum and returns the accumulated
// index entries plus that checksum (for EncodeIndex).
func (pw *Writer) Close() ([]IndexEntry, [20]byte, error) {
	var trailer [20]byte
	copy(trailer[:], pw.digest.Sum(nil))
	if err := pw.writeRawNoDigest(trailer[:]); err != nil {
		return nil, trailer, err
	}
	return pw.entries, trailer, nil
}

func (pw *Writer) writeRawNoDigest(b []byte) error {
	if _, err := pw.w.Write(b); err != nil {
		return fmt.Errorf("pack: write trailer: %w", err)
	}
	return nil
}
