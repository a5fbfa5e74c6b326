// Package metrics provides Prometheus metrics for pdf-site runs.
//
// pdf-site is a one-shot process, so nothing is scraped. Collectors live in
// a private registry and WriteTextfile hands them to the node_exporter
// textfile collector at the end of a run.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	registry = prometheus.NewRegistry()
	factory  = promauto.With(registry)

	// Bucket metrics
	bucketOperationsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pdfsite_bucket_operations_total",
			Help: "Total number of bucket operations",
		},
		[]string{"operation", "status"},
	)

	bucketOperationDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pdfsite_bucket_operation_duration_seconds",
			Help:    "Bucket operation duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	objectsListed = factory.NewGauge(
		prometheus.GaugeOpts{
			Name: "pdfsite_objects_listed",
			Help: "Number of objects in the last bucket listing",
		},
	)

	// Sync metrics
	fetchesTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pdfsite_fetches_total",
			Help: "Total number of object fetches",
		},
		[]string{"status"},
	)

	bytesFetched = factory.NewCounter(
		prometheus.CounterOpts{
			Name: "pdfsite_fetched_bytes_total",
			Help: "Total bytes written to the mirror",
		},
	)

	malformedNames = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pdfsite_malformed_names_total",
			Help: "Names skipped because they do not match the document pattern",
		},
		[]string{"source"},
	)

	manifestPersistsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pdfsite_manifest_persists_total",
			Help: "Total number of manifest saves",
		},
		[]string{"status"},
	)

	manifestEntries = factory.NewGauge(
		prometheus.GaugeOpts{
			Name: "pdfsite_manifest_entries",
			Help: "Number of entries in the manifest",
		},
	)

	// Index metrics
	indexEntries = factory.NewGauge(
		prometheus.GaugeOpts{
			Name: "pdfsite_index_entries",
			Help: "Number of documents listed on the rendered index",
		},
	)

	lastRunTimestamp = factory.NewGauge(
		prometheus.GaugeOpts{
			Name: "pdfsite_last_run_timestamp_seconds",
			Help: "Unix time the last run finished",
		},
	)
)

func status(success bool) string {
	if success {
		return "success"
	}
	return "error"
}

// RecordBucketOperation records a list or get against the bucket.
func RecordBucketOperation(operation string, duration time.Duration, success bool) {
	bucketOperationDuration.WithLabelValues(operation).Observe(duration.Seconds())
	bucketOperationsTotal.WithLabelValues(operation, status(success)).Inc()
}

// SetObjectsListed records the size of the last listing.
func SetObjectsListed(n int) {
	objectsListed.Set(float64(n))
}

// RecordFetch records one object fetch.
func RecordFetch(bytes int64, success bool) {
	fetchesTotal.WithLabelValues(status(success)).Inc()
	if success {
		bytesFetched.Add(float64(bytes))
	}
}

// RecordMalformed records a skipped name. source is "bucket" or "mirror".
func RecordMalformed(source string) {
	malformedNames.WithLabelValues(source).Inc()
}

// RecordManifestPersist records a manifest save.
func RecordManifestPersist(entries int, success bool) {
	manifestPersistsTotal.WithLabelValues(status(success)).Inc()
	if success {
		manifestEntries.Set(float64(entries))
	}
}

// SetIndexEntries records how many documents the index lists.
func SetIndexEntries(n int) {
	indexEntries.Set(float64(n))
}

// WriteTextfile writes every collector to path in the text exposition
// format. The write goes through a temp file and rename, so the
// node_exporter never reads a partial file.
func WriteTextfile(path string) error {
	lastRunTimestamp.SetToCurrentTime()
	return prometheus.WriteToTextfile(path, registry)
}
