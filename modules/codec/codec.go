// Package codec implements the hash and compression primitives shared by
// the object store and pack codec: SHA-1/SHA-256 over raw bytes and over
// Git object framing, hex<->bytes, and zlib compress/decompress. All
// functions here are pure and safe for concurrent use.
package codec

import (
	"bytes"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"strconv"

	"github.com/dot-do/gitcore/modules/plumbing"
	"github.com/klauspost/compress/zlib"
)

// ObjectType is one of the four Git object kinds framed by hash_object.
type ObjectType string

const (
	TypeBlob   ObjectType = "blob"
	TypeTree   ObjectType = "tree"
	TypeCommit ObjectType = "commit"
	TypeTag    ObjectType = "tag"
)

// SHA1 returns the hex SHA-1 digest of b.
func SHA1(b []byte) string {
	sum := sha1.Sum(b)
	return hex.EncodeToString(sum[:])
}

// SHA1Bytes returns the raw 20-byte SHA-1 digest of b.
func SHA1Bytes(b []byte) plumbing.Hash {
	return plumbing.Hash(sha1.Sum(b))
}

// SHA256 returns the hex SHA-256 digest of b.
func SHA256(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// Frame produces the canonical Git object header+body:
// "<type> <size>\0<content>".
func Frame(t ObjectType, content []byte) []byte {
	header := strconv.Itoa(len(content))
	buf := make([]byte, 0, len(t)+1+len(header)+1+len(content))
	buf = append(buf, t...)
	buf = append(buf, ' ')
	buf = append(buf, header...)
	buf = append(buf, 0)
	buf = append(buf, content...)
	return buf
}

// HashObject computes the SHA-1 object id of content as Git would:
// sha1("<type> <size>\0" + content).
func HashObject(t ObjectType, content []byte) plumbing.Hash {
	return SHA1Bytes(Frame(t, content))
}

// HexToBytes decodes a hex string to raw bytes. Empty input returns an
// empty, non-nil slice.
func HexToBytes(s string) ([]byte, error) {
	if s == "" {
		return []byte{}, nil
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, plumbing.NewError(plumbing.KindCodec, "hex-decode", plumbing.ZeroHash, "", err)
	}
	return b, nil
}

// BytesToHex encodes raw bytes to a lowercase hex string.
func BytesToHex(b []byte) string {
	return hex.EncodeToString(b)
}

// Compress deflates b using zlib framing, matching the compression Git
// applies to loose objects and pack entries.
func Compress(b []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	if _, err := w.Write(b); err != nil {
		return nil, plumbing.NewError(plumbing.KindCodec, "zlib-compress", plumbing.ZeroHash, "", err)
	}
	if err := w.Close(); err != nil {
		return nil, plumbing.NewError(plumbing.KindCodec, "zlib-compress", plumbing.ZeroHash, "", err)
	}
	return buf.Bytes(), nil
}

// Decompress inflates zlib-framed bytes. Truncated or malformed input
// surfaces a §7 Codec error.
func Decompress(b []byte) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(b))
	if err != nil {
		return nil, plumbing.NewError(plumbing.KindCodec, "zlib-decompress", plumbing.ZeroHash, "", err)
	}
	defer r.Close()
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, plumbing.NewError(plumbing.KindCodec, "zlib-decompress", plumbing.ZeroHash, "", fmt.Errorf("truncated stream: %w", err))
	}
	return out, nil
}

// NewDeflateWriter opens a streaming zlib writer onto w, for large blobs
// that should not be buffered in memory.
func NewDeflateWriter(w io.Writer) *zlib.Writer {
	return zlib.NewWriter(w)
}

// NewInflateReader opens a streaming zlib reader from r.
func NewInflateReader(r io.Reader) (io.ReadCloser, error) {
	zr, err := zlib.NewReader(r)
	if err != nil {
		return nil, plumbing.NewError(plumbing.KindCodec, "zlib-decompress", plumbing.ZeroHash, "", err)
	}
	return zr, nil
}
