package object

import "fmt"

// FileMode is a tree entry's Git file mode, restricted to the values Git
// itself recognizes.
type FileMode uint32

const (
	ModeRegular    FileMode = 0o100644
	ModeExecutable FileMode = 0o100755
	ModeDir        FileMode = 0o040000
	ModeSymlink    FileMode = 0o120000
	ModeSubmodule  FileMode = 0o160000
)

// ValidModes enumerates the only modes a tree entry may carry (§3).
var ValidModes = map[FileMode]bool{
	ModeRegular:    true,
	ModeExecutable: true,
	ModeDir:        true,
	ModeSymlink:    true,
	ModeSubmodule:  true,
}

func (m FileMode) String() string {
	return fmt.Sprintf("%06o", uint32(m))
}

// IsDir reports whether m denotes a directory (tree) entry.
func (m FileMode) IsDir() bool { return m == ModeDir }

// ParseFileMode decodes an octal-ish mode token from a serialized tree
// entry, e.g. "100644" or "40000" (Git writes directory modes without the
// leading zero).
func ParseFileMode(s string) (FileMode, error) {
	var raw uint32
	if _, err := fmt.Sscanf(s, "%o", &raw); err != nil {
		return 0, fmt.Errorf("object: malformed file mode %q", s)
	}
	m := FileMode(raw)
	if m == 0o40000 {
		m = ModeDir
	}
	if !ValidModes[m] {
		return 0, &ErrInvalidMode{Mode: s}
	}
	return m, nil
}

// ErrInvalidMode is a §7 Validation error for a tree entry mode outside
// the §3 enumeration.
type ErrInvalidMode struct {
	Mode string
}

func (e *ErrInvalidMode) Error() string {
	return fmt.Sprintf("object: invalid file mode %q", e.Mode)
}

// modeToken renders m the way Git writes it inside a tree entry: no
// leading zero for directories.
func modeToken(m FileMode) string {
	if m == ModeDir {
		return "40000"
	}
	return fmt.Sprintf("%o", uint32(m))
}
