package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alexjbarnes/pdf-site/internal/bucket"
	"github.com/alexjbarnes/pdf-site/internal/config"
	"github.com/alexjbarnes/pdf-site/internal/docname"
	"github.com/alexjbarnes/pdf-site/internal/index"
	"github.com/alexjbarnes/pdf-site/internal/logging"
	"github.com/alexjbarnes/pdf-site/internal/manifest"
	"github.com/alexjbarnes/pdf-site/internal/metrics"
	"github.com/alexjbarnes/pdf-site/internal/mirror"
	"github.com/alexjbarnes/pdf-site/internal/syncer"
)

// app holds what every command shares once configuration is loaded.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	codec  docname.Codec
	mirror *mirror.Mirror
}

func newApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	logger := logging.New(cfg.Environment, logging.FileOptions{
		File:       cfg.LogFile,
		MaxSizeMB:  cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
		MaxAgeDays: cfg.LogMaxAgeDays,
	})

	logger.Debug("pdf-site starting",
		slog.String("version", Version),
		slog.String("bucket", cfg.BucketName),
		slog.String("backend", cfg.StorageBackend),
		slog.String("mirror", cfg.MirrorDir),
	)

	return &app{
		cfg:    cfg,
		logger: logger,
		codec:  docname.New(cfg.DocPrefix),
		mirror: mirror.New(cfg.MirrorDir),
	}, nil
}

// sync runs one sync pass. The manifest is loaded fresh each time so that
// watch mode picks up edits made between passes.
func (a *app) sync(ctx context.Context, dryRun bool) (*syncer.Result, error) {
	ctx, cancel := context.WithTimeout(ctx, a.cfg.FetchTimeout)
	defer cancel()

	store, err := manifest.Open(a.cfg.ManifestPath)
	if err != nil {
		return nil, err
	}

	m, err := store.Load()
	if err != nil {
		return nil, err
	}

	client, err := bucket.New(ctx, bucket.Config{
		Backend:   a.cfg.StorageBackend,
		Bucket:    a.cfg.BucketName,
		Endpoint:  a.cfg.Endpoint,
		Region:    a.cfg.Region,
		AccessKey: a.cfg.AccessKey,
		SecretKey: a.cfg.SecretKey,
		UseSSL:    a.cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("creating bucket client: %w", err)
	}

	a.logger.Info("syncing",
		slog.String("bucket", a.cfg.BucketName),
		slog.String("backend", client.Name()),
		slog.String("manifest", store.Path()),
		slog.Int("known", m.Len()),
		slog.Bool("dry_run", dryRun),
	)

	engine := syncer.New(client, a.mirror, a.codec, store, a.logger, syncer.Options{
		Concurrency: a.cfg.FetchConcurrency,
		DryRun:      dryRun,
	})

	return engine.Run(ctx, m)
}

// render rebuilds the index page from the mirror contents.
func (a *app) render() error {
	listing, err := a.mirror.Documents(a.codec)
	if err != nil {
		return err
	}

	for _, name := range listing.Rejected {
		a.logger.Warn("skipping malformed document", slog.String("file", name))
		metrics.RecordMalformed("mirror")
	}

	docs, _ := index.Select(listing.Names, a.codec, a.cfg.MaxPDFs)

	renderer, err := index.NewRenderer(a.cfg.IndexTemplate)
	if err != nil {
		return err
	}

	assets, err := index.AssetsPath(a.cfg.IndexPath, a.mirror.Dir())
	if err != nil {
		return err
	}

	err = renderer.Write(a.cfg.IndexPath, index.Page{
		Documents: docs,
		Assets:    assets,
		Generated: time.Now(),
	})
	if err != nil {
		return err
	}

	metrics.SetIndexEntries(len(docs))
	a.logger.Info("index rendered",
		slog.String("path", a.cfg.IndexPath),
		slog.Int("documents", len(docs)),
		slog.Int("available", len(listing.Names)),
	)

	return nil
}

// finish writes the metrics textfile if one is configured. Failures are
// logged; metrics never change the exit status.
func (a *app) finish() {
	if a.cfg.MetricsTextfile == "" {
		return
	}

	if err := metrics.WriteTextfile(a.cfg.MetricsTextfile); err != nil {
		a.logger.Warn("writing metrics textfile", slog.String("error", err.Error()))
	}
}
