// Package manifest records which bucket objects have been mirrored and the
// remote LastModified each copy was taken at.
package manifest

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// timeFormat is used by every on-disk format. Nanosecond precision keeps
// the strictly-newer comparison exact across a save/load cycle.
const timeFormat = time.RFC3339Nano

// Entry is one manifest record.
type Entry struct {
	Key          string
	LastModified time.Time
}

// Manifest is the in-memory key -> LastModified mapping. It is safe for
// concurrent use; the sync engine records fetch results from several
// workers at once.
type Manifest struct {
	mu      sync.RWMutex
	entries map[string]time.Time
	dirty   bool
}

// New returns an empty manifest, the state of a first run.
func New() *Manifest {
	return &Manifest{entries: make(map[string]time.Time)}
}

// FromEntries builds a clean manifest from entries.
func FromEntries(entries []Entry) *Manifest {
	m := New()
	for _, e := range entries {
		m.entries[e.Key] = e.LastModified.UTC()
	}
	return m
}

// Get returns the recorded LastModified for key.
func (m *Manifest) Get(key string) (time.Time, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ts, ok := m.entries[key]
	return ts, ok
}

// RecordSuccess stores ts for key after the object was written to the
// mirror. It only changes memory; Store.Save persists.
func (m *Manifest) RecordSuccess(key string, ts time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[key] = ts.UTC()
	m.dirty = true
}

// Delete forgets key so the next run fetches it again.
func (m *Manifest) Delete(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.entries[key]; ok {
		delete(m.entries, key)
		m.dirty = true
	}
}

// Len returns the number of entries.
func (m *Manifest) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.entries)
}

// Entries returns a snapshot sorted by key.
func (m *Manifest) Entries() []Entry {
	m.mu.RLock()
	out := make([]Entry, 0, len(m.entries))
	for k, ts := range m.entries {
		out = append(out, Entry{Key: k, LastModified: ts})
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })

	return out
}

// Dirty reports whether the manifest changed since it was loaded or last
// saved.
func (m *Manifest) Dirty() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.dirty
}

func (m *Manifest) markClean() {
	m.mu.Lock()
	m.dirty = false
	m.mu.Unlock()
}

// Store loads and saves a manifest. Implementations hold no open file
// handles between calls.
type Store interface {
	// Load returns the persisted manifest, or an empty one when nothing
	// has been persisted yet.
	Load() (*Manifest, error)
	// Save replaces the persisted manifest atomically.
	Save(m *Manifest) error
	// Path returns the backing file.
	Path() string
}

// Open returns the Store for path, chosen by extension: .yaml/.yml and
// .json are text files, .db is a bbolt database.
func Open(path string) (Store, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return NewFileStore(path, FormatYAML), nil
	case ".json":
		return NewFileStore(path, FormatJSON), nil
	case ".db":
		return NewBoltStore(path), nil
	default:
		return nil, fmt.Errorf("unsupported manifest extension %q (want .yaml, .yml, .json or .db)", filepath.Ext(path))
	}
}
