// Package filemode implements git's object-mode constants: the six file
// types a tree entry or index entry can record.
package filemode

import (
	"fmt"
	"os"
	"strconv"
)

// FileMode is one of the six mode values git allows in a tree entry.
type FileMode uint32

const (
	Empty      FileMode = 0
	Dir        FileMode = 0o40000
	Regular    FileMode = 0o100644
	Deprecated FileMode = 0o100664
	Executable FileMode = 0o100755
	Symlink    FileMode = 0o120000
	Submodule  FileMode = 0o160000
)

// New parses s (an unsigned octal string, possibly zero-padded) as a
// FileMode.
func New(s string) (FileMode, error) {
	if s == "" {
		return 0, fmt.Errorf("filemode: empty mode")
	}
	for _, r := range s {
		if r < '0' || r > '7' {
			return 0, fmt.Errorf("filemode: malformed mode %q", s)
		}
	}
	b, err := strconv.ParseUint(s, 8, 32)
	if err != nil {
		return 0, fmt.Errorf("filemode: malformed mode %q: %w", s, err)
	}
	return FileMode(b), nil
}

// NewFromOSFileMode translates a standard library os.FileMode into the
// closest git FileMode, used when staging a working-tree file.
func NewFromOSFileMode(m os.FileMode) (FileMode, error) {
	switch {
	case m.IsRegular():
		if m&0o111 != 0 {
			return Executable, nil
		}
		return Regular, nil
	case m&os.ModeSymlink != 0:
		return Symlink, nil
	case m.IsDir():
		return Dir, nil
	default:
		return 0, fmt.Errorf("filemode: unsupported os.FileMode %v", m)
	}
}

func (m FileMode) String() string {
	return fmt.Sprintf("%06o", uint32(m))
}

func (m FileMode) IsRegular() bool {
	return m == Regular || m == Deprecated || m == Executable
}

func (m FileMode) IsMalformed() bool {
	switch m {
	case Empty, Dir, Regular, Deprecated, Executable, Symlink, Submodule:
		return false
	default:
		return true
	}
}

// ToOSFileMode returns the closest standard library os.FileMode, used
// when materialising a working-tree file during checkout.
func (m FileMode) ToOSFileMode() (os.FileMode, error) {
	switch m {
	case Dir, Submodule:
		return os.ModeDir | 0o755, nil
	case Regular, Deprecated:
		return 0o644, nil
	case Executable:
		return 0o755, nil
	case Symlink:
		return os.ModeSymlink | 0o777, nil
	case Empty:
		return 0, nil
	default:
		return 0, fmt.Errorf("filemode: %s has no standard library equivalent", m)
	}
}
