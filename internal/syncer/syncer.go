// Package syncer brings the local mirror up to date with the bucket.
package syncer

//go:generate mockgen -source=syncer.go -destination=mock_bucket_test.go -package=syncer

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alexjbarnes/pdf-site/internal/bucket"
	"github.com/alexjbarnes/pdf-site/internal/docname"
	apperrors "github.com/alexjbarnes/pdf-site/internal/errors"
	"github.com/alexjbarnes/pdf-site/internal/manifest"
	"github.com/alexjbarnes/pdf-site/internal/metrics"
	"github.com/alexjbarnes/pdf-site/internal/mirror"
)

// DefaultConcurrency is the number of parallel downloads when none is set.
const DefaultConcurrency = 4

// Bucket is the part of bucket.Client the engine needs.
type Bucket interface {
	ListObjects(ctx context.Context) ([]bucket.Object, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// Options configures an Engine.
type Options struct {
	Concurrency int
	DryRun      bool
}

// Engine runs one sync pass: list, diff against the manifest, fetch,
// persist.
type Engine struct {
	bucket      Bucket
	mirror      *mirror.Mirror
	codec       docname.Codec
	store       manifest.Store
	logger      *slog.Logger
	concurrency int
	dryRun      bool
}

// New creates an Engine.
func New(b Bucket, m *mirror.Mirror, codec docname.Codec, store manifest.Store, logger *slog.Logger, opts Options) *Engine {
	concurrency := opts.Concurrency
	if concurrency < 1 {
		concurrency = DefaultConcurrency
	}

	return &Engine{
		bucket:      b,
		mirror:      m,
		codec:       codec,
		store:       store,
		logger:      logger,
		concurrency: concurrency,
		dryRun:      opts.DryRun,
	}
}

// Result summarises a sync pass.
type Result struct {
	Listed    int
	Malformed int
	Delta     []bucket.Object
	Fetched   int
	Failed    int
	Bytes     int64
	// PersistErr is set when fetched objects could not be recorded on
	// disk. The run still counts as successful; the next run fetches
	// those objects again.
	PersistErr error
}

// ComputeDelta returns the objects that are absent from m or whose
// LastModified is strictly after the recorded value. Order follows remote.
func ComputeDelta(remote []bucket.Object, m *manifest.Manifest) []bucket.Object {
	var delta []bucket.Object

	for _, obj := range remote {
		recorded, ok := m.Get(obj.Key)
		if !ok || obj.LastModified.After(recorded) {
			delta = append(delta, obj)
		}
	}

	return delta
}

// Run performs one sync pass against m. Only a listing failure returns an
// error. Individual fetch failures are logged and counted, and a failed
// manifest save is reported in Result.PersistErr.
func (e *Engine) Run(ctx context.Context, m *manifest.Manifest) (*Result, error) {
	listed, err := e.bucket.ListObjects(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrListObjects, err)
	}

	metrics.SetObjectsListed(len(listed))

	remote := e.wellFormed(listed)
	res := &Result{
		Listed:    len(listed),
		Malformed: len(listed) - len(remote),
	}

	res.Delta = e.withMissing(ComputeDelta(remote, m), remote, m)

	e.logger.Info("sync delta computed",
		slog.Int("listed", res.Listed),
		slog.Int("malformed", res.Malformed),
		slog.Int("manifest", m.Len()),
		slog.Int("delta", len(res.Delta)),
	)

	if e.dryRun || len(res.Delta) == 0 {
		return res, nil
	}

	e.fetchAll(ctx, m, res)

	if res.Fetched > 0 {
		res.PersistErr = e.persist(m)
	}

	e.logger.Info("sync complete",
		slog.Int("fetched", res.Fetched),
		slog.Int("failed", res.Failed),
		slog.Int64("bytes", res.Bytes),
	)

	return res, nil
}

// wellFormed drops keys that do not match the document pattern.
func (e *Engine) wellFormed(objects []bucket.Object) []bucket.Object {
	out := make([]bucket.Object, 0, len(objects))

	for _, obj := range objects {
		if _, err := e.codec.DecodeFile(obj.Key); err != nil {
			e.logger.Warn("skipping malformed object", slog.String("key", obj.Key), slog.String("error", err.Error()))
			metrics.RecordMalformed("bucket")
			continue
		}

		out = append(out, obj)
	}

	return out
}

// withMissing appends objects the manifest records but the mirror lacks,
// so a deleted local file is restored on the next run.
func (e *Engine) withMissing(delta, remote []bucket.Object, m *manifest.Manifest) []bucket.Object {
	inDelta := make(map[string]struct{}, len(delta))
	for _, obj := range delta {
		inDelta[obj.Key] = struct{}{}
	}

	for _, obj := range remote {
		if _, ok := inDelta[obj.Key]; ok {
			continue
		}

		if _, ok := m.Get(obj.Key); ok && !e.mirror.Exists(obj.Key) {
			e.logger.Warn("manifest entry missing from mirror, fetching again", slog.String("key", obj.Key))
			delta = append(delta, obj)
		}
	}

	return delta
}

// fetchAll downloads the delta with bounded concurrency. Workers never
// return errors to the group, so one failure does not cancel its
// siblings.
func (e *Engine) fetchAll(ctx context.Context, m *manifest.Manifest, res *Result) {
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)

	for _, obj := range res.Delta {
		obj := obj
		g.Go(func() error {
			n, err := e.fetch(gctx, obj)

			mu.Lock()
			defer mu.Unlock()

			if err != nil {
				res.Failed++
				e.logger.Warn("fetch failed",
					slog.String("key", obj.Key),
					slog.String("error", err.Error()),
				)
				metrics.RecordFetch(0, false)
				return nil
			}

			m.RecordSuccess(obj.Key, obj.LastModified)
			res.Fetched++
			res.Bytes += n
			metrics.RecordFetch(n, true)

			return nil
		})
	}

	_ = g.Wait()
}

// fetch copies one object into the mirror. The manifest is only touched by
// the caller once this returns without error.
func (e *Engine) fetch(ctx context.Context, obj bucket.Object) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("%w: %s: %w", apperrors.ErrFetch, obj.Key, err)
	}

	start := time.Now()

	rc, err := e.bucket.Open(ctx, obj.SourceKey())
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %w", apperrors.ErrFetch, obj.Key, err)
	}
	defer rc.Close()

	n, err := e.mirror.WriteFrom(obj.Key, rc, obj.LastModified)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %w", apperrors.ErrFetch, obj.Key, err)
	}

	e.logger.Debug("fetched",
		slog.String("key", obj.Key),
		slog.Int64("bytes", n),
		slog.Duration("took", time.Since(start)),
	)

	return n, nil
}

func (e *Engine) persist(m *manifest.Manifest) error {
	if err := e.store.Save(m); err != nil {
		metrics.RecordManifestPersist(m.Len(), false)
		e.logger.Error("manifest not saved, fetched objects will be downloaded again next run",
			slog.String("path", e.store.Path()),
			slog.String("error", err.Error()),
		)
		return err
	}

	metrics.RecordManifestPersist(m.Len(), true)
	e.logger.Debug("manifest saved", slog.String("path", e.store.Path()), slog.Int("entries", m.Len()))

	return nil
}
