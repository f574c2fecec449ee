package pack

import (
	"bytes"
	"crypto/sha1"
	"encoding/binary"
	"fmt"
	"sort"

	"github.com/dot-do/gitcore/modules/plumbing"
)

// IndexEntry is one object's index record: its id, byte offset into the
// pack, and the CRC32 of its (still-compressed) pack representation.
type IndexEntry struct {
	SHA    plumbing.Hash
	Offset uint64
	CRC32  uint32
}

// Index is the in-memory form of a decoded (or about-to-be-encoded)
// ".idx" v2 file: a 256-entry fanout table plus one IndexEntry per
// object, sorted by SHA.
//
// Modeled on modules/zeta/backend/pack.Index (fanout + per-entry
// lookup), rewritten for the real Git v2 on-disk layout: sorted-SHA
// table, parallel CRC32 table, 32-bit offset table with a large-offset
// redirect into a 64-bit table, trailing pack/idx checksums.
type Index struct {
	Entries []IndexEntry
}

// NewIndex builds an Index from entries sorted by SHA (EncodeIndex sorts
// defensively regardless).
func NewIndex(entries []IndexEntry) *Index {
	sorted := append([]IndexEntry(nil), entries...)
	sort.Slice(sorted, func(i, j int) bool {
		return bytes.Compare(sorted[i].SHA[:], sorted[j].SHA[:]) < 0
	})
	return &Index{Entries: sorted}
}

// Find returns the entry for sha, or ok=false.
func (idx *Index) Find(sha plumbing.Hash) (IndexEntry, bool) {
	i := sort.Search(len(idx.Entries), func(i int) bool {
		return bytes.Compare(idx.Entries[i].SHA[:], sha[:]) >= 0
	})
	if i < len(idx.Entries) && idx.Entries[i].SHA == sha {
		return idx.Entries[i], true
	}
	return IndexEntry{}, false
}

// ErrBadIndexHeader is a §7 Codec error for a malformed ".idx" file.
var ErrBadIndexHeader = fmt.Errorf("pack: bad index header")

// EncodeIndex renders a full v2 ".idx" file for entries against a pack
// whose trailer checksum is packChecksum (20 bytes).
func EncodeIndex(entries []IndexEntry, packChecksum [20]byte) []byte {
	idx := NewIndex(entries)
	var buf bytes.Buffer

	buf.Write(IndexMagic[:])
	binary.Write(&buf, binary.BigEndian, IndexVersion)

	var fanout [256]uint32
	for _, e := range idx.Entries {
		fanout[e.SHA[0]]++
	}
	running := uint32(0)
	for i := 0; i < 256; i++ {
		running += fanout[i]
		fanout[i] = running
	}
	for i := 0; i < 256; i++ {
		binary.Write(&buf, binary.BigEndian, fanout[i])
	}

	for _, e := range idx.Entries {
		buf.Write(e.SHA[:])
	}
	for _, e := range idx.Entries {
		binary.Write(&buf, binary.BigEndian, e.CRC32)
	}

	var largeOffsets []uint64
	for _, e := range idx.Entries {
		if e.Offset >= LargeOffsetMin {
			largeIdx := uint32(len(largeOffsets)) | 0x80000000
			binary.Write(&buf, binary.BigEndian, largeIdx)
			largeOffsets = append(largeOffsets, e.Offset)
		} else {
			binary.Write(&buf, binary.BigEndian, uint32(e.Offset))
		}
	}
	for _, off := range largeOffsets {
		binary.Write(&buf, binary.BigEndian, off)
	}

	buf.Write(packChecksum[:])
	trailer := sha1.Sum(buf.Bytes())
	buf.Write(trailer[:])
	return buf.Bytes()
}

// DecodeIndex parses a v2 ".idx" file.
func DecodeIndex(b []byte) (*Index, error) {
	if len(b) < 8 || !bytes.Equal(b[0:4], IndexMagic[:]) {
		return nil, ErrBadIndexHeader
	}
	version := binary.BigEndian.Uint32(b[4:8])
	if version != IndexVersion {
		return nil, &ErrUnsupportedVersion{Got: version}
	}
	off := 8
	var fanout [256]uint32
	for i := 0; i < 256; i++ {
		fanout[i] = binary.BigEndian.Uint32(b[off : off+4])
		off += 4
	}
	count := int(fanout[255])

	shas := make([]plumbing.Hash, count)
	for i := 0; i < count; i++ {
		var h plumbing.Hash
		copy(h[:], b[off:off+20])
		shas[i] = h
		off += 20
	}
	crcs := make([]uint32, count)
	for i := 0; i < count; i++ {
		crcs[i] = binary.BigEndian.Uint32(b[off : off+4])
		off += 4
	}
	rawOffsets := make([]uint32, count)
	for i := 0; i < count; i++ {
		rawOffsets[i] = binary.BigEndian.Uint32(b[off : off+4])
		off += 4
	}
	var largeCount int
	for _, o := range rawOffsets {
		if o&0x80000000 != 0 {
			largeCount++
		}
	}
	largeOffsets := make([]uint64, largeCount)
	for i := 0; i < largeCount; i++ {
		largeOffsets[i] = binary.BigEndian.Uint64(b[off : off+8])
		off += 8
	}

	entries := make([]IndexEntry, count)
	for i := 0; i < count; i++ {
		var offset uint64
		if rawOffsets[i]&0x80000000 != 0 {
			offset = largeOffsets[rawOffsets[i]&0x7fffffff]
		} else {
			offset = uint64(rawOffsets[i])
		}
		entries[i] = IndexEntry{SHA: shas[i], Offset: offset, CRC32: crcs[i]}
	}
	return &Index{Entries: entries}, nil
}

// kindForObjectType maps a pack ObjectKind to the corresponding
// object.Type ordinal understood by modules/object, keeping pack free of
// a direct import cycle back to object.
func kindForObjectType(k ObjectKind) (int, bool) {
	switch k {
	case KindCommit:
		return 1, true
	case KindTree:
		return 2, true
	case KindBlob:
		return 3, true
	case KindTag:
		return 4, true
	default:
		return 0, false
	}
}
