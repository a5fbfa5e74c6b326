// Package bucket lists and reads the remote object store. It is the only
// package that touches a storage SDK; everything above it works with
// Object values.
package bucket

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
)

// Object is one remote object as seen by a listing.
type Object struct {
	// Key is the normalized key: the mirror file name and the manifest key.
	Key string
	// RemoteKey is the key exactly as the provider listed it. Open must be
	// called with this value. Empty means it equals Key.
	RemoteKey    string
	LastModified time.Time
	Size         int64
}

// SourceKey returns the key to pass to Client.Open.
func (o Object) SourceKey() string {
	if o.RemoteKey != "" {
		return o.RemoteKey
	}
	return o.Key
}

// Client is the capability the sync engine consumes.
type Client interface {
	// ListObjects returns every object in the bucket, draining pagination.
	ListObjects(ctx context.Context) ([]Object, error)
	// Open streams an object's content. key is the provider key
	// (Object.SourceKey), not the normalized one. The caller closes the
	// reader.
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	// Name identifies the backend in logs ("s3", "minio").
	Name() string
}

// Config holds connection settings shared by both backends.
type Config struct {
	Backend   string
	Bucket    string
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	UseSSL    bool
}

// New returns the Client selected by cfg.Backend.
func New(ctx context.Context, cfg Config) (Client, error) {
	switch cfg.Backend {
	case "", "s3":
		return NewS3(ctx, cfg)
	case "minio":
		return NewMinio(cfg)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

// normalizeKey converts a provider key to the form used in the manifest
// and the mirror: no leading slashes, Unicode NFC.
func normalizeKey(key string) string {
	return norm.NFC.String(strings.TrimLeft(key, "/"))
}

// isDirMarker reports whether key is a zero-byte "folder" placeholder
// some tools create.
func isDirMarker(key string) bool {
	return key == "" || strings.HasSuffix(key, "/")
}

// newObject builds an Object from a listed provider key. ok is false for
// folder markers.
func newObject(remoteKey string, modified time.Time, size int64) (Object, bool) {
	key := normalizeKey(remoteKey)
	if isDirMarker(key) {
		return Object{}, false
	}

	obj := Object{Key: key, LastModified: modified.UTC(), Size: size}
	if key != remoteKey {
		obj.RemoteKey = remoteKey
	}

	return obj, true
}
