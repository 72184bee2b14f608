// Package main provides the mediaproc command, which runs the media
// processing passes against the feature store.
//
// # Passes
//
//   - process: Baseline pass. Every unprocessed media item gets its
//     handcrafted features, descriptive metadata and (for images) a thumbnail,
//     committed in one transaction per item. Failures are recorded on the item
//     and retried by the next run.
//   - backfill: Deep-feature backfill for processed images. Only the deep and
//     combined families are written; -id limits the run to specific items and
//     -missing-only skips images that already have deep features.
//   - reconcile: Records thumbnail files found in THUMBNAIL_DIR that the
//     database does not know about, matching them to media by file name.
//
// Passes run one item at a time. SIGINT and SIGTERM stop the pass before
// its next item; the item in flight is finished and committed.
//
// # Tools
//
//   - list: Every media row with its resolved path, EXISTS/MISSING on disk,
//     and its recorded thumbnails.
//   - verify: Deep and combined feature presence for processed images.
//     Exits 1 when any image lacks them.
//   - reset: Returns one item to the unprocessed state. Asks for
//     confirmation on a terminal unless -yes is given.
//   - version: Build information.
//
// # Exit Codes
//
//   - 0: Success, or interrupted by a signal
//   - 1: The pass could not run, or a baseline pass had failed items
//   - 2: Usage error
//
// # Metrics
//
// With METRICS_ENABLED=true a Prometheus endpoint is served on METRICS_PORT
// (/metrics, /healthz) for the duration of the pass.
//
// Configuration is described in [media-pipeline/internal/startup].
package main
