// Package plumbing holds the low-level addressing primitives shared by the
// object store, pack codec and wire protocol: the 20-byte SHA-1 object id
// and its hex encoding/validation rules.
package plumbing

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
)

const (
	// HashSize is the width of a raw SHA-1 object id in bytes.
	HashSize = 20
	// HexSize is the width of a SHA-1 object id in lowercase hex.
	HexSize = 40
)

// ZeroHash is the all-zero object id used in ref updates to signal
// "ref does not yet exist" / "ref should be deleted".
var ZeroHash Hash

// Hash is a 20-byte SHA-1 object id.
type Hash [HashSize]byte

// NewHash decodes a hex string into a Hash. Malformed input yields the zero
// hash; callers that must reject malformed input should use NewHashEx.
func NewHash(s string) Hash {
	var h Hash
	b, _ := hex.DecodeString(s)
	copy(h[:], b)
	return h
}

// NewHashEx decodes and validates s, returning a Validation error (§7) on
// failure.
func NewHashEx(s string) (Hash, error) {
	if !ValidateHex(s) {
		return ZeroHash, &ErrInvalidHash{Value: s}
	}
	return NewHash(s), nil
}

// ErrInvalidHash is a §7 Validation error for a malformed hex object id.
type ErrInvalidHash struct {
	Value string
}

func (e *ErrInvalidHash) Error() string {
	return fmt.Sprintf("plumbing: %q is not a valid object id", e.Value)
}

// IsZero reports whether h is the all-zero hash.
func (h Hash) IsZero() bool {
	return h == ZeroHash
}

// String returns the lowercase hex encoding of h.
func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

func (h Hash) MarshalJSON() ([]byte, error) {
	return json.Marshal(h.String())
}

func (h *Hash) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	v, err := NewHashEx(s)
	if err != nil {
		return err
	}
	*h = v
	return nil
}

func (h Hash) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

func (h *Hash) UnmarshalText(b []byte) error {
	v, err := NewHashEx(string(b))
	if err != nil {
		return err
	}
	*h = v
	return nil
}

// HashesSort sorts hashes in ascending byte order, in place.
func HashesSort(hs []Hash) {
	sort.Sort(hashSlice(hs))
}

type hashSlice []Hash

func (p hashSlice) Len() int           { return len(p) }
func (p hashSlice) Less(i, j int) bool { return bytes.Compare(p[i][:], p[j][:]) < 0 }
func (p hashSlice) Swap(i, j int)      { p[i], p[j] = p[j], p[i] }

// ValidateHex reports whether s is exactly 40 lowercase hex characters.
// Real repositories require strict [0-9a-f]{40}; a looser
// alphanumeric-length check would let malformed ids slip through object
// lookups as well-formed garbage.
func ValidateHex(s string) bool {
	if len(s) != HexSize {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f')) {
			return false
		}
	}
	return true
}

// IsLooseDir reports whether s is a valid two-hex-digit loose-object
// subdirectory name.
func IsLooseDir(s string) bool {
	if len(s) != 2 {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f')) {
			return false
		}
	}
	return true
}
