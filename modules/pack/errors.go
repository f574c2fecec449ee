package pack

import "fmt"

// ErrBaseNotFound is raised when a delta object's base (by offset or by
// SHA) cannot be located within the pack or its thin-pack closure.
type ErrBaseNotFound struct {
	Ref string
}

func (e *ErrBaseNotFound) Error() string {
	return fmt.Sprintf("pack: delta base not found: %s", e.Ref)
}

// ErrCRCMismatch is raised by Reader.Verify when a pack object's stored
// CRC32 disagrees with the bytes actually on disk.
type ErrCRCMismatch struct {
	Offset uint64
	Want   uint32
	Got    uint32
}

func (e *ErrCRCMismatch) Error() string {
	return fmt.Sprintf("pack: crc32 mismatch at offset %d: want %08x got %08x", e.Offset, e.Want, e.Got)
}

// ErrTrailerMismatch is raised when a pack's trailing SHA-1 checksum does
// not match its contents.
var ErrTrailerMismatch = fmt.Errorf("pack: trailer checksum mismatch")
