package manifest

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	apperrors "github.com/alexjbarnes/pdf-site/internal/errors"
	bolt "go.etcd.io/bbolt"
)

const (
	// boltDirPerm is the permission mode for the manifest directory.
	boltDirPerm = fs.FileMode(0o755)

	// boltFilePerm is the permission mode for the database file.
	boltFilePerm = fs.FileMode(0o644)

	// boltOpenTimeout is the maximum time to wait for the bolt database lock.
	boltOpenTimeout = 5 * time.Second
)

var objectsBucket = []byte("objects")

// BoltStore keeps the manifest in a bbolt database. The database is opened
// for the duration of each Load or Save and closed again, so a second
// process only ever waits on the file lock for one operation.
type BoltStore struct {
	path string
}

// NewBoltStore returns a BoltStore at path.
func NewBoltStore(path string) *BoltStore {
	return &BoltStore{path: path}
}

// Path returns the database path.
func (s *BoltStore) Path() string {
	return s.path
}

func (s *BoltStore) open() (*bolt.DB, error) {
	if err := os.MkdirAll(filepath.Dir(s.path), boltDirPerm); err != nil {
		return nil, fmt.Errorf("creating manifest directory: %w", err)
	}

	return bolt.Open(s.path, boltFilePerm, &bolt.Options{Timeout: boltOpenTimeout})
}

// Load reads every entry. A database that does not exist yet yields an
// empty manifest and is not created.
func (s *BoltStore) Load() (*Manifest, error) {
	if _, err := os.Stat(s.path); errors.Is(err, fs.ErrNotExist) {
		return New(), nil
	}

	db, err := s.open()
	if err != nil {
		return nil, fmt.Errorf("%w: opening %s: %v", apperrors.ErrManifestLoad, s.path, err)
	}
	defer db.Close()

	var entries []Entry

	err = db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(objectsBucket)
		if b == nil {
			return nil
		}

		return b.ForEach(func(k, v []byte) error {
			ts, err := time.Parse(timeFormat, string(v))
			if err != nil {
				return fmt.Errorf("entry %q: %w", k, err)
			}

			entries = append(entries, Entry{Key: string(k), LastModified: ts})

			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", apperrors.ErrManifestLoad, s.path, err)
	}

	return FromEntries(entries), nil
}

// Save replaces the objects bucket in a single transaction. bbolt commits
// the transaction atomically, so a crash leaves the previous manifest.
func (s *BoltStore) Save(m *Manifest) error {
	db, err := s.open()
	if err != nil {
		return fmt.Errorf("%w: opening %s: %v", apperrors.ErrManifestPersist, s.path, err)
	}
	defer db.Close()

	entries := m.Entries()

	err = db.Update(func(tx *bolt.Tx) error {
		if tx.Bucket(objectsBucket) != nil {
			if err := tx.DeleteBucket(objectsBucket); err != nil {
				return err
			}
		}

		b, err := tx.CreateBucket(objectsBucket)
		if err != nil {
			return err
		}

		for _, e := range entries {
			if err := b.Put([]byte(e.Key), []byte(e.LastModified.UTC().Format(timeFormat))); err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %s: %v", apperrors.ErrManifestPersist, s.path, err)
	}

	m.markClean()

	return nil
}
