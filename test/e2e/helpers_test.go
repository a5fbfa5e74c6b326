package e2e_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/alexjbarnes/pdf-site/internal/bucket"
	"github.com/alexjbarnes/pdf-site/internal/docname"
	"github.com/alexjbarnes/pdf-site/internal/index"
	"github.com/alexjbarnes/pdf-site/internal/manifest"
	"github.com/alexjbarnes/pdf-site/internal/mirror"
	"github.com/alexjbarnes/pdf-site/internal/syncer"
)

const testBucket = "pdf.peoples-press.com"

type object struct {
	body     string
	modified time.Time
}

// fakeS3 is a path-style S3 endpoint holding an in-memory bucket. Objects
// can be changed between runs, and individual keys can be made to fail
// with a non-retryable error.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string]object
	failing map[string]bool
	gets    map[string]int
}

func (f *fakeS3) put(key, body string, modified time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = object{body: body, modified: modified}
}

func (f *fakeS3) fail(key string, failing bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failing[key] = failing
}

func (f *fakeS3) getCount(key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.gets[key]
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	rest, ok := strings.CutPrefix(r.URL.Path, "/"+testBucket)
	if !ok {
		writeError(w, http.StatusNotFound, "NoSuchBucket")
		return
	}

	if rest == "" || rest == "/" {
		f.list(w)
		return
	}

	key := strings.TrimPrefix(rest, "/")
	obj, ok := f.objects[key]
	if !ok {
		writeError(w, http.StatusNotFound, "NoSuchKey")
		return
	}
	if f.failing[key] {
		writeError(w, http.StatusForbidden, "AccessDenied")
		return
	}

	// minio checks an object with HEAD before reading it; only a GET is a
	// download.
	if r.Method == http.MethodGet {
		f.gets[key]++
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Length", strconv.Itoa(len(obj.body)))
	w.Header().Set("ETag", `"e2e"`)
	w.Header().Set("Last-Modified", obj.modified.UTC().Format(http.TimeFormat))
	w.WriteHeader(http.StatusOK)
	if r.Method != http.MethodHead {
		io.WriteString(w, obj.body)
	}
}

func (f *fakeS3) list(w http.ResponseWriter) {
	keys := make([]string, 0, len(f.objects))
	for k := range f.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>`)
	b.WriteString(`<ListBucketResult xmlns="http://s3.amazonaws.com/doc/2006-03-01/">`)
	fmt.Fprintf(&b, "<Name>%s</Name><Prefix></Prefix><KeyCount>%d</KeyCount><MaxKeys>1000</MaxKeys><IsTruncated>false</IsTruncated>", testBucket, len(keys))
	for _, k := range keys {
		o := f.objects[k]
		fmt.Fprintf(&b, "<Contents><Key>%s</Key><LastModified>%s</LastModified><ETag>&quot;e2e&quot;</ETag><Size>%d</Size><StorageClass>STANDARD</StorageClass></Contents>",
			k, o.modified.UTC().Format("2006-01-02T15:04:05.000Z"), len(o.body))
	}
	b.WriteString("</ListBucketResult>")

	w.Header().Set("Content-Type", "application/xml")
	io.WriteString(w, b.String())
}

func writeError(w http.ResponseWriter, status int, code string) {
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(status)
	fmt.Fprintf(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>%s</Code><Message>%s</Message><RequestId>e2e</RequestId></Error>`, code, code)
}

// harness wires the real stack the way cmd/pdf-site does: a bucket client
// against the fake endpoint, a manifest file, the mirror and the index
// renderer, all under one temp web root.
type harness struct {
	S3        *fakeS3
	Client    bucket.Client
	Mirror    *mirror.Mirror
	Store     manifest.Store
	IndexPath string
	Codec     docname.Codec
	MaxPDFs   int
	logger    *slog.Logger
}

func newHarness(t *testing.T, backend, manifestName string) *harness {
	t.Helper()

	fake := &fakeS3{
		objects: make(map[string]object),
		failing: make(map[string]bool),
		gets:    make(map[string]int),
	}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	client, err := bucket.New(context.Background(), bucket.Config{
		Backend:   backend,
		Bucket:    testBucket,
		Endpoint:  srv.URL,
		Region:    "us-east-1",
		AccessKey: "AKIDEXAMPLE",
		SecretKey: "wJalrXUtnFEMI/K7MDENG/bPxRfiCYEXAMPLEKEY",
	})
	require.NoError(t, err)

	root := t.TempDir()
	store, err := manifest.Open(filepath.Join(root, manifestName))
	require.NoError(t, err)

	return &harness{
		S3:        fake,
		Client:    client,
		Mirror:    mirror.New(filepath.Join(root, "html", "assets")),
		Store:     store,
		IndexPath: filepath.Join(root, "html", "index.html"),
		Codec:     docname.New("MS"),
		MaxPDFs:   index.DefaultMaxEntries,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// run does one full pass: load the manifest, sync, render.
func (h *harness) run(t *testing.T) *syncer.Result {
	t.Helper()

	m, err := h.Store.Load()
	require.NoError(t, err)

	engine := syncer.New(h.Client, h.Mirror, h.Codec, h.Store, h.logger, syncer.Options{Concurrency: 3})
	res, err := engine.Run(context.Background(), m)
	require.NoError(t, err)

	listing, err := h.Mirror.Documents(h.Codec)
	require.NoError(t, err)

	docs, _ := index.Select(listing.Names, h.Codec, h.MaxPDFs)

	renderer, err := index.NewRenderer("")
	require.NoError(t, err)

	assets, err := index.AssetsPath(h.IndexPath, h.Mirror.Dir())
	require.NoError(t, err)

	require.NoError(t, renderer.Write(h.IndexPath, index.Page{
		Documents: docs,
		Assets:    assets,
		Generated: time.Date(2024, 2, 1, 7, 0, 0, 0, time.UTC),
	}))

	return res
}

func (h *harness) indexHTML(t *testing.T) string {
	t.Helper()
	data, err := os.ReadFile(h.IndexPath)
	require.NoError(t, err)
	return string(data)
}

func (h *harness) mirrored(t *testing.T, key string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(h.Mirror.Dir(), key))
	require.NoError(t, err)
	return string(data)
}
