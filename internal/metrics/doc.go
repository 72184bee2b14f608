// Package metrics provides Prometheus instrumentation for the media pipeline.
//
// All metrics are prefixed with "media_pipeline_" and registered with the
// default registry through promauto.
//
// # Metric Categories
//
// ## Pass Metrics
//
// Track the baseline, backfill and reconcile passes:
//   - PassRunsTotal: Counter of pass runs
//   - PassRunning: Gauge indicating if a pass is active
//   - PassLastRunTimestamp: Gauge of last completion time
//   - PassLastRunDuration: Gauge of last run duration
//   - PassItemsTotal: Counter of items by outcome (succeeded/failed/skipped)
//   - PassItemDuration: Histogram of per-item processing time
//   - PassThrottleWaits: Counter of memory pressure waits
//
// ## Extraction Metrics
//
//   - ExtractionDuration: Histogram by media type and stage
//   - ExtractionErrors: Counter by media type and stage
//   - ExtractorInitFailures: Counter of extractor construction failures
//
// ## Thumbnail Metrics
//
//   - ThumbnailGenerationsTotal: Counter by backend (vips/imaging) and status
//   - ThumbnailGenerationDuration: Histogram by backend
//   - ThumbnailsReconciled: Counter of reconciliation outcomes
//
// ## Media, Database, Filesystem and Memory Metrics
//
//   - MediaItemsTotal: Gauge of media items by type and processing state
//   - DBQueryTotal, DBQueryDuration, DBTransactionDuration, DBConnectionsOpen
//   - FilesystemRetry*: NFS stale handle retry tracking
//   - MemoryUsageRatio, MemoryPaused, MemoryGCPauses
//
// # Collector
//
// [Collector] periodically reads a [StatsProvider] (normally the database)
// and refreshes MediaItemsTotal:
//
//	collector := metrics.NewCollector(db, 30*time.Second)
//	collector.Start()
//	defer collector.Stop()
//
// # Prometheus Queries
//
// Failure rate of the baseline pass:
//
//	rate(media_pipeline_pass_items_total{pass="baseline",outcome="failed"}[1h]) /
//	rate(media_pipeline_pass_items_total{pass="baseline"}[1h])
//
// P95 deep feature extraction time:
//
//	histogram_quantile(0.95, sum(rate(media_pipeline_extraction_duration_seconds_bucket{stage="deep"}[5m])) by (le))
package metrics
