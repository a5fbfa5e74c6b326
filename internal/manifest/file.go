package manifest

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	apperrors "github.com/alexjbarnes/pdf-site/internal/errors"
	"github.com/alexjbarnes/pdf-site/internal/fsutil"
	"github.com/tidwall/gjson"
	"gopkg.in/yaml.v3"
)

// Format selects the text encoding of a FileStore.
type Format int

const (
	FormatYAML Format = iota
	FormatJSON
)

const (
	manifestFilePerm = fs.FileMode(0o644)

	yamlVersion = 1
)

// yamlDoc is the YAML layout. yaml.v3 writes map keys sorted, so the file
// diffs cleanly between runs.
type yamlDoc struct {
	Version int               `yaml:"version"`
	Objects map[string]string `yaml:"objects"`
}

// FileStore keeps the manifest in a human-readable file.
type FileStore struct {
	path   string
	format Format
}

// NewFileStore returns a FileStore at path.
func NewFileStore(path string, format Format) *FileStore {
	return &FileStore{path: path, format: format}
}

// Path returns the manifest file path.
func (s *FileStore) Path() string {
	return s.path
}

// Load reads the manifest file. A missing or empty file is a first run and
// yields an empty manifest.
func (s *FileStore) Load() (*Manifest, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return New(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", apperrors.ErrManifestLoad, s.path, err)
	}

	if len(data) == 0 {
		return New(), nil
	}

	var entries []Entry
	switch s.format {
	case FormatJSON:
		entries, err = decodeJSON(data)
	default:
		entries, err = decodeYAML(data)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", apperrors.ErrManifestLoad, s.path, err)
	}

	return FromEntries(entries), nil
}

// Save writes the manifest to a temp file and renames it into place.
func (s *FileStore) Save(m *Manifest) error {
	var (
		data []byte
		err  error
	)

	switch s.format {
	case FormatJSON:
		data, err = encodeJSON(m.Entries())
	default:
		data, err = encodeYAML(m.Entries())
	}
	if err != nil {
		return fmt.Errorf("%w: encoding: %v", apperrors.ErrManifestPersist, err)
	}

	if err := fsutil.WriteFileAtomic(s.path, data, manifestFilePerm); err != nil {
		return fmt.Errorf("%w: %s: %v", apperrors.ErrManifestPersist, s.path, err)
	}

	m.markClean()

	return nil
}

func encodeYAML(entries []Entry) ([]byte, error) {
	doc := yamlDoc{Version: yamlVersion, Objects: make(map[string]string, len(entries))}
	for _, e := range entries {
		doc.Objects[e.Key] = e.LastModified.UTC().Format(timeFormat)
	}

	return yaml.Marshal(doc)
}

func decodeYAML(data []byte) ([]Entry, error) {
	var doc yamlDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing yaml: %w", err)
	}

	if doc.Version != yamlVersion {
		return nil, fmt.Errorf("unsupported manifest version %d", doc.Version)
	}

	entries := make([]Entry, 0, len(doc.Objects))
	for key, raw := range doc.Objects {
		ts, err := time.Parse(timeFormat, raw)
		if err != nil {
			return nil, fmt.Errorf("entry %q: %w", key, err)
		}
		entries = append(entries, Entry{Key: key, LastModified: ts})
	}

	return entries, nil
}

// encodeJSON writes a flat {"key": "timestamp"} object. encoding/json
// sorts map keys.
func encodeJSON(entries []Entry) ([]byte, error) {
	flat := make(map[string]string, len(entries))
	for _, e := range entries {
		flat[e.Key] = e.LastModified.UTC().Format(timeFormat)
	}

	data, err := json.MarshalIndent(flat, "", "  ")
	if err != nil {
		return nil, err
	}

	return append(data, '\n'), nil
}

func decodeJSON(data []byte) ([]Entry, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("invalid json")
	}

	root := gjson.ParseBytes(data)
	if !root.IsObject() {
		return nil, fmt.Errorf("manifest must be a json object")
	}

	var (
		entries []Entry
		bad     error
	)

	root.ForEach(func(k, v gjson.Result) bool {
		if v.Type != gjson.String {
			bad = fmt.Errorf("entry %q: timestamp must be a string", k.Str)
			return false
		}

		ts, err := time.Parse(timeFormat, v.Str)
		if err != nil {
			bad = fmt.Errorf("entry %q: %w", k.Str, err)
			return false
		}

		entries = append(entries, Entry{Key: k.Str, LastModified: ts})

		return true
	})

	return entries, bad
}
