// Package fsutil holds the small filesystem helpers used when installing and
// removing unit files.
package fsutil

import (
	"os"

	"github.com/google/renameio/v2"
)

// WriteFileAtomic writes data to path atomically using a temp file in the
// same directory and a rename. The service manager never observes a
// partially-written unit file.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	return renameio.WriteFile(path, data, perm)
}

// SameFile reports whether a and b refer to the same existing file.
// It returns false if either path cannot be stat'ed.
func SameFile(a, b string) bool {
	ai, err := os.Stat(a)
	if err != nil {
		return false
	}
	bi, err := os.Stat(b)
	if err != nil {
		return false
	}
	return os.SameFile(ai, bi)
}

// IsDir reports whether path exists and is a directory.
func IsDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
