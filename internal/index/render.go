package index

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"path"
	"path/filepath"
	"time"

	apperrors "github.com/alexjbarnes/pdf-site/internal/errors"
	"github.com/alexjbarnes/pdf-site/internal/fsutil"
)

const indexFilePerm = fs.FileMode(0o644)

//go:embed templates/index.html.tmpl
var templatesFS embed.FS

const defaultTemplate = "templates/index.html.tmpl"

// Page is the data handed to the template.
type Page struct {
	Documents []Entry
	// Assets is the URL path from the index page to the mirror
	// directory, without a trailing slash.
	Assets    string
	Generated time.Time
}

// Href returns the link to e's file.
func (p Page) Href(e Entry) string {
	if p.Assets == "" || p.Assets == "." {
		return e.FileName()
	}
	return path.Join(p.Assets, e.FileName())
}

var funcs = template.FuncMap{
	// date formats e's date with layout. Dates that do not exist on the
	// calendar keep their YYYY-MM-DD form rather than rolling into the
	// next month and colliding with a real date.
	"date": func(e Entry, layout string) string {
		if !e.Date.OnCalendar() {
			return e.Date.String()
		}
		return e.Date.Time().Format(layout)
	},
}

// Renderer writes the index page.
type Renderer struct {
	tmpl *template.Template
}

// NewRenderer parses the template at templatePath, or the built-in
// template when templatePath is empty.
func NewRenderer(templatePath string) (*Renderer, error) {
	var (
		tmpl *template.Template
		err  error
	)

	if templatePath == "" {
		tmpl, err = template.New(path.Base(defaultTemplate)).Funcs(funcs).ParseFS(templatesFS, defaultTemplate)
	} else {
		tmpl, err = template.New(filepath.Base(templatePath)).Funcs(funcs).ParseFiles(templatePath)
	}

	if err != nil {
		return nil, fmt.Errorf("%w: parsing template: %w", apperrors.ErrRender, err)
	}

	return &Renderer{tmpl: tmpl}, nil
}

// AssetsPath returns the slash-separated path from the directory holding
// indexPath to mirrorDir, for use in links.
func AssetsPath(indexPath, mirrorDir string) (string, error) {
	rel, err := filepath.Rel(filepath.Dir(indexPath), mirrorDir)
	if err != nil {
		return "", fmt.Errorf("%w: %w", apperrors.ErrRender, err)
	}
	return filepath.ToSlash(rel), nil
}

// Write renders page into indexPath. The page is rendered in memory first
// and then written atomically, so a template error leaves the previous
// index in place.
func (r *Renderer) Write(indexPath string, page Page) error {
	var buf bytes.Buffer
	if err := r.tmpl.Execute(&buf, page); err != nil {
		return fmt.Errorf("%w: executing template: %w", apperrors.ErrRender, err)
	}

	if err := fsutil.WriteFileAtomic(indexPath, buf.Bytes(), indexFilePerm); err != nil {
		return fmt.Errorf("%w: %w", apperrors.ErrRender, err)
	}

	return nil
}
