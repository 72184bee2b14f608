package metrics

// Label values of MediaItemsTotal.
var (
	mediaTypeLabels = []string{"image", "audio", "video"}
	stateLabels     = []string{"unprocessed", "processed", "failed"}
)

// InitializeMetrics pre-populates all expected label combinations so that
// every metric is exported from the first Prometheus scrape.
// Call this once at startup after metric registration.
func InitializeMetrics() {
	passes := []string{"baseline", "backfill", "reconcile"}
	for _, p := range passes {
		PassRunsTotal.WithLabelValues(p)
		PassRunning.WithLabelValues(p)
		PassItemDuration.WithLabelValues(p)
		PassThrottleWaits.WithLabelValues(p)
		for _, outcome := range []string{"succeeded", "failed", "skipped"} {
			PassItemsTotal.WithLabelValues(p, outcome)
		}
	}

	mediaTypes := mediaTypeLabels
	stages := []string{"decode", "handcrafted", "deep", "metadata"}
	for _, mt := range mediaTypes {
		for _, stage := range stages {
			ExtractionDuration.WithLabelValues(mt, stage)
			ExtractionErrors.WithLabelValues(mt, stage)
		}
		for _, mode := range []string{"baseline", "deep"} {
			ExtractorInitFailures.WithLabelValues(mt, mode)
		}
		for _, state := range stateLabels {
			MediaItemsTotal.WithLabelValues(mt, state)
		}
	}

	for _, backend := range []string{"vips", "imaging"} {
		ThumbnailGenerationDuration.WithLabelValues(backend)
		ThumbnailGenerationsTotal.WithLabelValues(backend, "success")
		ThumbnailGenerationsTotal.WithLabelValues(backend, "error")
	}

	for _, outcome := range []string{"inserted", "exists", "unmatched", "ambiguous", "ignored", "error"} {
		ThumbnailsReconciled.WithLabelValues(outcome)
	}

	volumes := []string{"uploads", "thumbnails", "database", "unknown"}
	for _, op := range []string{"stat", "open", "readdir"} {
		for _, vol := range volumes {
			FilesystemRetryAttempts.WithLabelValues(op, vol)
			FilesystemRetrySuccess.WithLabelValues(op, vol)
			FilesystemRetryFailures.WithLabelValues(op, vol)
			FilesystemStaleErrors.WithLabelValues(op, vol)
			FilesystemRetryDuration.WithLabelValues(op, vol)
		}
	}

	for _, op := range []string{"initialize_schema", "insert_media", "get_media", "list_media",
		"list_unprocessed", "list_backfill_candidates", "find_media_by_prefix", "upsert_features",
		"get_features", "merge_features", "insert_thumbnail", "thumbnail_exists",
		"list_thumbnails", "update_media_state", "get_metadata", "set_metadata", "record_processing_error", "media_stats"} {
		DBQueryTotal.WithLabelValues(op, "success")
		DBQueryTotal.WithLabelValues(op, "error")
		DBQueryDuration.WithLabelValues(op)
	}

	for _, r := range []string{"commit", "rollback"} {
		DBTransactionDuration.WithLabelValues(r)
	}
}
