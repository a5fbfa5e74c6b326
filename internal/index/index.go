// Package index picks the documents shown on the index page and renders
// it.
package index

import (
	"strings"

	"github.com/tidwall/btree"

	"github.com/alexjbarnes/pdf-site/internal/docname"
)

// DefaultMaxEntries is the number of documents listed when no limit is
// configured.
const DefaultMaxEntries = 30

// Entry is one row of the index page.
type Entry struct {
	// Name is the base name, without extension.
	Name string
	Date docname.Date
}

// FileName returns the name of the mirrored file.
func (e Entry) FileName() string {
	return e.Name + docname.Ext
}

// newest orders entries by date descending, then name ascending, so equal
// dates have a stable order across runs.
func newest(a, b Entry) bool {
	if c := a.Date.Compare(b.Date); c != 0 {
		return c > 0
	}
	return a.Name < b.Name
}

// Select decodes names and returns at most n entries, newest first. Names
// that fail to decode are returned separately and never appear in the
// result. A trailing .pdf on a name is ignored. n <= 0 yields no entries.
func Select(names []string, codec docname.Codec, n int) ([]Entry, []string) {
	tree := btree.NewBTreeG(newest)

	var rejected []string

	for _, name := range names {
		base := strings.TrimSuffix(name, docname.Ext)

		d, err := codec.Decode(base)
		if err != nil {
			rejected = append(rejected, name)
			continue
		}

		tree.Set(Entry{Name: base, Date: d})
	}

	if n <= 0 {
		return []Entry{}, rejected
	}

	out := make([]Entry, 0, min(n, tree.Len()))
	tree.Scan(func(e Entry) bool {
		out = append(out, e)
		return len(out) < n
	})

	return out, rejected
}
