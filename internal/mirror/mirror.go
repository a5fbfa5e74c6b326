// Package mirror manages the local directory holding downloaded copies of
// bucket objects. The directory is flat: every object key is a file name.
package mirror

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/alexjbarnes/pdf-site/internal/docname"
	"github.com/alexjbarnes/pdf-site/internal/fsutil"
)

const (
	mirrorDirPerm  = fs.FileMode(0o755)
	mirrorFilePerm = fs.FileMode(0o644)
)

// Mirror provides file operations on the mirror directory. The sync engine
// is its only writer; writes are atomic, so concurrent readers (the index
// renderer, a web server) never see a partial PDF.
type Mirror struct {
	dir string
}

// New creates a Mirror rooted at dir. The directory must be an absolute
// path (resolved at config load time). It is created on first write.
func New(dir string) *Mirror {
	return &Mirror{dir: filepath.Clean(dir)}
}

// Dir returns the root directory of the mirror.
func (m *Mirror) Dir() string {
	return m.dir
}

// WriteFrom streams r into the file for key. If mtime is non-zero, the
// file's modification time is set to it, keeping the bucket's timestamp
// on the local copy. Returns the number of bytes written.
func (m *Mirror) WriteFrom(key string, r io.Reader, mtime time.Time) (int64, error) {
	absPath, err := m.resolve(key)
	if err != nil {
		return 0, err
	}

	if err := os.MkdirAll(m.dir, mirrorDirPerm); err != nil {
		return 0, fmt.Errorf("creating mirror directory: %w", err)
	}

	n, err := fsutil.WriteAtomic(absPath, r, mirrorFilePerm)
	if err != nil {
		return n, fmt.Errorf("writing %s: %w", key, err)
	}

	if !mtime.IsZero() {
		if err := os.Chtimes(absPath, mtime, mtime); err != nil {
			return n, fmt.Errorf("setting mtime for %s: %w", key, err)
		}
	}

	return n, nil
}

// Exists reports whether key is present as a regular file.
func (m *Mirror) Exists(key string) bool {
	absPath, err := m.resolve(key)
	if err != nil {
		return false
	}

	info, err := os.Stat(absPath)
	return err == nil && info.Mode().IsRegular()
}

// Listing is the result of scanning the mirror directory.
type Listing struct {
	// Names holds base names (no extension) of well-formed documents,
	// sorted.
	Names []string
	// Rejected holds file names that look like documents (.pdf) but do
	// not decode.
	Rejected []string
}

// Documents scans the directory for files the codec accepts. Hidden
// files, temp files, directories and non-PDF files are ignored. A missing
// directory is an empty mirror.
func (m *Mirror) Documents(codec docname.Codec) (*Listing, error) {
	entries, err := os.ReadDir(m.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return &Listing{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading mirror directory: %w", err)
	}

	result := &Listing{}

	for _, e := range entries {
		name := e.Name()
		if skipName(name) || !e.Type().IsRegular() {
			continue
		}

		if !strings.HasSuffix(name, docname.Ext) {
			continue
		}

		if !codec.Valid(name) {
			result.Rejected = append(result.Rejected, name)
			continue
		}

		result.Names = append(result.Names, strings.TrimSuffix(name, docname.Ext))
	}

	sort.Strings(result.Names)
	sort.Strings(result.Rejected)

	return result, nil
}

// skipName reports names the scanner and the watcher never look at.
func skipName(name string) bool {
	return strings.HasPrefix(name, ".") || fsutil.IsTemp(name)
}

// resolve converts a key to an absolute path inside the mirror, rejecting
// anything that would leave the flat directory.
func (m *Mirror) resolve(key string) (string, error) {
	if key == "" {
		return "", fmt.Errorf("empty key")
	}

	if strings.ContainsAny(key, `/\`) || key == "." || key == ".." {
		return "", fmt.Errorf("key %q is not a flat file name", key)
	}

	absPath := filepath.Join(m.dir, key)
	if filepath.Dir(absPath) != m.dir {
		return "", fmt.Errorf("path traversal blocked: %q resolves outside mirror dir", key)
	}

	return absPath, nil
}
