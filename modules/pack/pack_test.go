package pack

import (
	"bytes"
	"testing"

	"github.com/dot-do/gitcore/modules/plumbing"
	"github.com/stretchr/testify/require"
)

func TestHeaderRoundTrip(t *testing.T) {
	b := EncodeHeader(Header{Version: 2, Count: 5})
	h, err := DecodeHeader(b)
	require.NoError(t, err)
	require.Equal(t, uint32(2), h.Version)
	require.Equal(t, uint32(5), h.Count)
}

func TestDecodeHeaderRejectsBadMagic(t *testing.T) {
	_, err := DecodeHeader([]byte("XXXX\x00\x00\x00\x02\x00\x00\x00\x01"))
	require.ErrorIs(t, err, ErrBadPackHeader)
}

func TestObjectHeaderRoundTrip(t *testing.T) {
	for _, size := range []int64{0, 1, 15, 16, 127, 128, 4096, 1 << 20} {
		b := EncodeObjectHeader(KindBlob, size)
		oh, err := DecodeObjectHeader(b)
		require.NoError(t, err)
		require.Equal(t, KindBlob, oh.Kind)
		require.Equal(t, size, oh.Size)
		require.Equal(t, len(b), oh.HeaderLen)
	}
}

func TestOfsDeltaOffsetRoundTrip(t *testing.T) {
	for _, off := range []int64{1, 127, 128, 129, 16383, 16384, 1 << 24} {
		b := EncodeOfsDeltaOffset(off)
		got, n, err := DecodeOfsDeltaOffset(b)
		require.NoError(t, err)
		require.Equal(t, off, got)
		require.Equal(t, len(b), n)
	}
}

func TestDeltaRoundTrip(t *testing.T) {
	base := bytes.Repeat([]byte("the quick brown fox jumps over the lazy dog "), 50)
	target := append(append([]byte{}, base...), []byte("and then some new tail content")...)
	target[10] = 'Q'

	ops := Diff(base, target)
	delta := EncodeDelta(int64(len(base)), int64(len(target)), ops)
	out, err := ApplyDelta(base, delta)
	require.NoError(t, err)
	require.Equal(t, target, out)
}

func TestIndexRoundTrip(t *testing.T) {
	entries := []IndexEntry{
		{SHA: plumbing.NewHash("aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"), Offset: 12, CRC32: 0x1234},
		{SHA: plumbing.NewHash("ffffffffffffffffffffffffffffffffffffffff"), Offset: 1 << 32, CRC32: 0x5678},
		{SHA: plumbing.NewHash("0000000000000000000000000000000000000a"), Offset: 99, CRC32: 0x9abc},
	}
	var checksum [20]byte
	copy(checksum[:], []byte("01234567890123456789"))

	raw := EncodeIndex(entries, checksum)
	idx, err := DecodeIndex(raw)
	require.NoError(t, err)
	require.Len(t, idx.Entries, 3)

	for _, e := range entries {
		got, ok := idx.Find(e.SHA)
		require.True(t, ok)
		require.Equal(t, e.Offset, got.Offset)
		require.Equal(t, e.CRC32, got.CRC32)
	}
}

func TestWriterReaderRoundTrip(t *testing.T) {
	blob := []byte("hello pack world")
	sha := plumbing.NewHash("1111111111111111111111111111111111111111")

	var buf bytes.Buffer
	pw, err := NewWriter(&buf, 1)
	require.NoError(t, err)
	require.NoError(t, pw.Write(ObjectToPack{SHA: sha, Kind: KindBlob, Content: blob}))
	entries, checksum, err := pw.Close()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.NotEqual(t, [20]byte{}, checksum)

	idx := NewIndex(entries)
	data := buf.Bytes()
	pr, err := NewReader(bytes.NewReader(data), int64(len(data)), idx)
	require.NoError(t, err)
	require.True(t, pr.Exists(sha))

	content, kind, err := pr.Get(sha)
	require.NoError(t, err)
	require.Equal(t, KindBlob, kind)
	require.Equal(t, blob, content)
}

func TestWriterDeltaAgainstExternalBase(t *testing.T) {
	base := []byte("common shared file content that both sides already hold")
	target := append(append([]byte{}, base...), []byte(" plus a small appended change")...)
	baseSHA := plumbing.NewHash("2222222222222222222222222222222222222222")
	targetSHA := plumbing.NewHash("3333333333333333333333333333333333333333")

	var buf bytes.Buffer
	pw, err := NewWriter(&buf, 1)
	require.NoError(t, err)
	pw = pw.WithBases(map[plumbing.Hash][]byte{baseSHA: base})
	require.NoError(t, pw.Write(ObjectToPack{
		SHA:          targetSHA,
		Kind:         KindBlob,
		Content:      target,
		DeltaBaseSHA: baseSHA,
	}))
	entries, _, err := pw.Close()
	require.NoError(t, err)

	idx := NewIndex(entries)
	data := buf.Bytes()
	// A thin pack's external base is not itself stored, so Reader.Get
	// cannot resolve the target from this pack alone. Check only that
	// the target was written and indexed at an offset inside the pack.
	entry, ok := idx.Find(targetSHA)
	require.True(t, ok)
	require.Less(t, int(entry.Offset), len(data))
}
