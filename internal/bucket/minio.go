package bucket

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	miniocreds "github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/alexjbarnes/pdf-site/internal/metrics"
)

// Minio implements Client with minio-go for self-hosted S3-compatible
// servers.
type Minio struct {
	client *minio.Client
	bucket string
}

// NewMinio creates a minio client. The endpoint may be given as host:port
// or as a URL; a URL scheme overrides cfg.UseSSL.
func NewMinio(cfg Config) (*Minio, error) {
	endpoint, secure := splitEndpoint(cfg.Endpoint, cfg.UseSSL)
	if endpoint == "" {
		return nil, fmt.Errorf("minio endpoint is required")
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  miniocreds.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: secure,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	return &Minio{client: client, bucket: cfg.Bucket}, nil
}

func splitEndpoint(endpoint string, useSSL bool) (string, bool) {
	if !strings.Contains(endpoint, "://") {
		return endpoint, useSSL
	}

	u, err := url.Parse(endpoint)
	if err != nil {
		return endpoint, useSSL
	}

	return u.Host, u.Scheme == "https"
}

// Name returns "minio".
func (b *Minio) Name() string { return "minio" }

// ListObjects walks the whole bucket recursively.
func (b *Minio) ListObjects(ctx context.Context) ([]Object, error) {
	start := time.Now()

	var objects []Object

	for info := range b.client.ListObjects(ctx, b.bucket, minio.ListObjectsOptions{Recursive: true}) {
		if info.Err != nil {
			metrics.RecordBucketOperation("list_objects", time.Since(start), false)
			return nil, fmt.Errorf("list objects in %s: %w", b.bucket, info.Err)
		}

		if obj, ok := newObject(info.Key, info.LastModified, info.Size); ok {
			objects = append(objects, obj)
		}
	}

	metrics.RecordBucketOperation("list_objects", time.Since(start), true)

	return objects, nil
}

// Open returns the object stream. minio-go defers the request until first
// use, so Stat is called here to surface missing keys immediately.
func (b *Minio) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	start := time.Now()

	obj, err := b.client.GetObject(ctx, b.bucket, key, minio.GetObjectOptions{})
	if err == nil {
		_, err = obj.Stat()
		if err != nil {
			obj.Close()
		}
	}
	if err != nil {
		metrics.RecordBucketOperation("get_object", time.Since(start), false)
		return nil, fmt.Errorf("get object %s: %w", key, err)
	}

	metrics.RecordBucketOperation("get_object", time.Since(start), true)

	return obj, nil
}
