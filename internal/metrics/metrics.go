package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Pipeline pass metrics
var (
	PassRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_pipeline_pass_runs_total",
			Help: "Total number of pass runs by pass",
		},
		[]string{"pass"}, // "baseline", "backfill", "reconcile"
	)

	PassRunning = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "media_pipeline_pass_running",
			Help: "Whether a pass is currently running (1 = running, 0 = idle)",
		},
		[]string{"pass"},
	)

	PassLastRunTimestamp = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "media_pipeline_pass_last_run_timestamp",
			Help: "Unix timestamp of the last completed pass run",
		},
		[]string{"pass"},
	)

	PassLastRunDuration = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "media_pipeline_pass_last_run_duration_seconds",
			Help: "Duration of the last pass run in seconds",
		},
		[]string{"pass"},
	)

	PassItemsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_pipeline_pass_items_total",
			Help: "Total number of items handled by a pass, by outcome",
		},
		[]string{"pass", "outcome"}, // "succeeded", "failed", "skipped"
	)

	PassItemDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_pipeline_pass_item_duration_seconds",
			Help:    "Time spent on a single item in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"pass"},
	)

	PassThrottleWaits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_pipeline_pass_throttle_waits_total",
			Help: "Number of times a pass waited for memory pressure to ease",
		},
		[]string{"pass"},
	)
)

// Extraction metrics
var (
	ExtractionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_pipeline_extraction_duration_seconds",
			Help:    "Feature extraction duration in seconds by media type and stage",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"media_type", "stage"}, // stage: "decode", "handcrafted", "deep", "metadata"
	)

	ExtractionErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_pipeline_extraction_errors_total",
			Help: "Total number of extraction errors by media type and stage",
		},
		[]string{"media_type", "stage"},
	)

	ExtractorInitFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_pipeline_extractor_init_failures_total",
			Help: "Total number of extractor construction failures",
		},
		[]string{"media_type", "mode"}, // mode: "baseline", "deep"
	)
)

// Thumbnail metrics
var (
	ThumbnailGenerationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_pipeline_thumbnail_generations_total",
			Help: "Total number of thumbnail generations",
		},
		[]string{"backend", "status"}, // backend: "vips", "imaging"
	)

	ThumbnailGenerationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_pipeline_thumbnail_generation_duration_seconds",
			Help:    "Thumbnail generation duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"backend"},
	)

	ThumbnailsReconciled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_pipeline_thumbnails_reconciled_total",
			Help: "Thumbnail artifacts seen by reconciliation, by outcome",
		},
		[]string{"outcome"}, // "inserted", "exists", "unmatched", "ambiguous", "ignored", "error"
	)
)

// Media state metrics
var (
	MediaItemsTotal = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "media_pipeline_media_items",
			Help: "Number of media items by type and processing state",
		},
		[]string{"media_type", "state"},
	)
)

// Database metrics
var (
	DBQueryTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_pipeline_db_queries_total",
			Help: "Total number of database queries",
		},
		[]string{"operation", "status"},
	)

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_pipeline_db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"operation"},
	)

	DBTransactionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_pipeline_db_transaction_duration_seconds",
			Help:    "Database transaction duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"result"}, // "commit", "rollback"
	)

	DBConnectionsOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_pipeline_db_connections_open",
			Help: "Number of open database connections",
		},
	)
)

// Filesystem metrics
var (
	FilesystemRetryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_pipeline_filesystem_retry_attempts_total",
			Help: "Total number of filesystem operation retry attempts",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetrySuccess = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_pipeline_filesystem_retry_success_total",
			Help: "Total number of filesystem operations that succeeded after retry",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetryFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_pipeline_filesystem_retry_failures_total",
			Help: "Total number of filesystem operations that failed after all retries",
		},
		[]string{"operation", "volume"},
	)

	FilesystemStaleErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_pipeline_filesystem_stale_errors_total",
			Help: "Total number of stale file handle (ESTALE) errors",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_pipeline_filesystem_retry_duration_seconds",
			Help:    "Duration of filesystem operations including retries",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1},
		},
		[]string{"operation", "volume"},
	)
)

// Memory metrics
var (
	MemoryUsageRatio = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_pipeline_memory_usage_ratio",
			Help: "Current memory usage as a ratio of the configured limit (0-1)",
		},
	)

	MemoryPaused = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_pipeline_memory_paused",
			Help: "Whether processing is paused due to memory pressure (1 = paused, 0 = running)",
		},
	)

	MemoryGCPauses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_pipeline_memory_gc_pauses_total",
			Help: "Total number of times processing was paused for garbage collection",
		},
	)
)

// Application info
var (
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "media_pipeline_app_info",
			Help: "Application build information",
		},
		[]string{"version", "commit", "go_version"},
	)
)

// SetAppInfo sets the application info metric
func SetAppInfo(version, commit, goVersion string) {
	AppInfo.WithLabelValues(version, commit, goVersion).Set(1)
}
