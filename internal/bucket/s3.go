package bucket

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/alexjbarnes/pdf-site/internal/metrics"
)

// S3 implements Client with the AWS SDK. It also talks to S3-compatible
// services when an endpoint is configured.
type S3 struct {
	client *s3.Client
	bucket string
}

// NewS3 creates an S3 client. Credentials come from the default AWS chain
// unless a static key pair is configured.
func NewS3(ctx context.Context, cfg Config) (*S3, error) {
	opts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Region),
	}

	if cfg.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &S3{client: client, bucket: cfg.Bucket}, nil
}

// Name returns "s3".
func (b *S3) Name() string { return "s3" }

// ListObjects drains ListObjectsV2 pagination.
func (b *S3) ListObjects(ctx context.Context) ([]Object, error) {
	start := time.Now()

	var objects []Object

	paginator := s3.NewListObjectsV2Paginator(b.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(b.bucket),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			metrics.RecordBucketOperation("list_objects", time.Since(start), false)
			return nil, fmt.Errorf("list objects in %s: %w", b.bucket, err)
		}

		for _, o := range page.Contents {
			obj, ok := newObject(aws.ToString(o.Key), aws.ToTime(o.LastModified), aws.ToInt64(o.Size))
			if ok {
				objects = append(objects, obj)
			}
		}
	}

	metrics.RecordBucketOperation("list_objects", time.Since(start), true)

	return objects, nil
}

// Open starts a GetObject and returns its body.
func (b *S3) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	start := time.Now()

	result, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		metrics.RecordBucketOperation("get_object", time.Since(start), false)
		return nil, fmt.Errorf("get object %s: %w", key, err)
	}

	metrics.RecordBucketOperation("get_object", time.Since(start), true)

	return result.Body, nil
}
