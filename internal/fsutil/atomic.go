// Package fsutil holds the write-to-temp-then-rename helper shared by the
// mirror, the manifest and the index writer.
package fsutil

import (
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// TempPrefix starts the name of every temp file WriteAtomic creates.
// Directory scans skip names with this prefix.
const TempPrefix = ".pdf-site-"

// WriteAtomic streams r into a temp file next to path, then renames it
// over path. Readers see either the old content or the new content, never
// a partial file. The temp file is removed on every failure path.
// Returns the number of bytes written.
func WriteAtomic(path string, r io.Reader, perm fs.FileMode) (int64, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, fmt.Errorf("creating directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, TempPrefix+"*")
	if err != nil {
		return 0, fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()

	n, err := io.Copy(tmp, r)
	if err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return n, fmt.Errorf("writing temp file: %w", err)
	}

	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return n, fmt.Errorf("syncing temp file: %w", err)
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return n, fmt.Errorf("closing temp file: %w", err)
	}

	if err := os.Chmod(tmpName, perm); err != nil {
		os.Remove(tmpName)
		return n, fmt.Errorf("setting file permissions: %w", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return n, fmt.Errorf("renaming temp file: %w", err)
	}

	return n, nil
}

// WriteFileAtomic is WriteAtomic for an in-memory buffer.
func WriteFileAtomic(path string, data []byte, perm fs.FileMode) error {
	_, err := WriteAtomic(path, bytes.NewReader(data), perm)
	return err
}

// IsTemp reports whether name is a WriteAtomic temp file.
func IsTemp(name string) bool {
	return strings.HasPrefix(name, TempPrefix)
}
