package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	// DefaultMaxPDFs is the number of documents listed on the index page
	// when MAX_PDFS is not set.
	DefaultMaxPDFs = 30

	BackendS3    = "s3"
	BackendMinio = "minio"
)

// Config holds all environment-based configuration for pdf-site.
type Config struct {
	// Remote bucket holding the PDFs.
	BucketName     string `env:"BUCKET_NAME" envDefault:"pdf.peoples-press.com"`
	StorageBackend string `env:"STORAGE_BACKEND" envDefault:"s3"`

	// Endpoint overrides the provider endpoint. Required for minio, optional
	// for s3 (S3-compatible services).
	Endpoint  string `env:"S3_ENDPOINT"`
	Region    string `env:"S3_REGION" envDefault:"us-east-1"`
	AccessKey string `env:"S3_ACCESS_KEY"`
	SecretKey string `env:"S3_SECRET_KEY"`
	UseSSL    bool   `env:"S3_USE_SSL" envDefault:"true"`

	// Filename prefix of mirrored documents, e.g. MS for MS_2024_01_10.pdf.
	DocPrefix string `env:"DOC_PREFIX" envDefault:"MS"`

	MirrorDir     string `env:"MIRROR_DIR" envDefault:"html/assets"`
	ManifestPath  string `env:"MANIFEST_PATH" envDefault:"manifest.yaml"`
	IndexPath     string `env:"INDEX_PATH" envDefault:"html/index.html"`
	IndexTemplate string `env:"INDEX_TEMPLATE"`

	MaxPDFs          int           `env:"MAX_PDFS" envDefault:"30"`
	FetchConcurrency int           `env:"FETCH_CONCURRENCY" envDefault:"4"`
	FetchTimeout     time.Duration `env:"FETCH_TIMEOUT" envDefault:"5m"`
	WatchDebounce    time.Duration `env:"WATCH_DEBOUNCE" envDefault:"2s"`

	// MetricsTextfile, when set, receives the run's metrics in the
	// node_exporter textfile format.
	MetricsTextfile string `env:"METRICS_TEXTFILE"`

	// Environment controls log format
	Environment   string `env:"ENVIRONMENT" envDefault:"development"`
	LogFile       string `env:"LOG_FILE"`
	LogMaxSizeMB  int    `env:"LOG_MAX_SIZE_MB" envDefault:"16"`
	LogMaxBackups int    `env:"LOG_MAX_BACKUPS" envDefault:"5"`
	LogMaxAgeDays int    `env:"LOG_MAX_AGE_DAYS" envDefault:"30"`
}

// warnInsecureEnvFile checks whether the .env file (if present) has
// overly permissive permissions. It may hold bucket credentials.
func warnInsecureEnvFile() {
	if runtime.GOOS == "windows" {
		return
	}

	info, err := os.Stat(".env")
	if err != nil {
		return // file does not exist, nothing to check
	}

	mode := info.Mode().Perm()
	if mode&0o077 != 0 {
		log.Printf("WARNING: .env file has insecure permissions %04o; recommended 0600", mode)
	}
}

// Load reads configuration from environment variables.
// It first attempts to load a .env file if present, then parses env vars.
func Load() (*Config, error) {
	_ = godotenv.Load()

	warnInsecureEnvFile()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	cfg.StorageBackend = strings.ToLower(strings.TrimSpace(cfg.StorageBackend))

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	// The mirror directory is used for path traversal checks, which rely
	// on prefix comparison of absolute paths.
	for _, p := range []*string{&cfg.MirrorDir, &cfg.ManifestPath, &cfg.IndexPath, &cfg.IndexTemplate, &cfg.MetricsTextfile, &cfg.LogFile} {
		if *p == "" {
			continue
		}

		abs, err := filepath.Abs(*p)
		if err != nil {
			return nil, fmt.Errorf("resolving %s to absolute path: %w", *p, err)
		}

		*p = abs
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.BucketName == "" {
		return fmt.Errorf("BUCKET_NAME is required")
	}

	switch c.StorageBackend {
	case BackendS3:
	case BackendMinio:
		if c.Endpoint == "" {
			return fmt.Errorf("S3_ENDPOINT is required when STORAGE_BACKEND is minio")
		}
	default:
		return fmt.Errorf("unknown STORAGE_BACKEND %q (want %s or %s)", c.StorageBackend, BackendS3, BackendMinio)
	}

	if (c.AccessKey == "") != (c.SecretKey == "") {
		return fmt.Errorf("S3_ACCESS_KEY and S3_SECRET_KEY must be set together")
	}

	if c.DocPrefix == "" || strings.ContainsAny(c.DocPrefix, "_/") {
		return fmt.Errorf("DOC_PREFIX must be non-empty and contain no '_' or '/'")
	}

	if c.MirrorDir == "" {
		return fmt.Errorf("MIRROR_DIR is required")
	}

	if c.ManifestPath == "" {
		return fmt.Errorf("MANIFEST_PATH is required")
	}

	if c.IndexPath == "" {
		return fmt.Errorf("INDEX_PATH is required")
	}

	if c.FetchConcurrency < 1 {
		return fmt.Errorf("FETCH_CONCURRENCY must be at least 1")
	}

	if c.FetchTimeout <= 0 {
		return fmt.Errorf("FETCH_TIMEOUT must be positive")
	}

	return nil
}

// IsProduction returns true when the environment is set to production.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
