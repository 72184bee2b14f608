// Package startup handles configuration loading and startup/shutdown logging.
//
// # Configuration
//
// Configuration is read from environment variables with caarlos0/env via
// [Parse] (quiet) or [LoadConfig] (banner, configuration dump and directory
// setup). The following environment variables are supported:
//
//   - UPLOAD_ROOT: Root that relative media paths are resolved against (default: /data)
//   - THUMBNAIL_DIR: Thumbnail artifact directory (default: UPLOAD_ROOT/thumbnails)
//   - THUMBNAIL_SIZE: Square thumbnail bound in pixels (default: 256)
//   - DATABASE_DIR: Path to database directory (default: /database)
//   - ITEM_DELAY: Pause between baseline items as Go duration (default: 500ms)
//   - DEEP_MODEL_COMMAND: Embedding command line; enables deep backfill
//   - FORCE_CPU: Ask the embedding model to run on the CPU (default: true)
//   - FFMPEG_PATH, FFPROBE_PATH: Binaries for audio and video (default: from PATH)
//   - AUDIO_MAX_SECONDS: Audio analysed per file (default: 60)
//   - VIDEO_KEYFRAME_INTERVAL: Seconds between sampled frames (default: 1)
//   - VIDEO_MAX_KEYFRAMES: Frames sampled per video (default: 120)
//   - METRICS_ENABLED: Serve Prometheus metrics while a pass runs (default: false)
//   - METRICS_PORT: Prometheus metrics server port (default: 9090)
//   - LOG_LEVEL: Logging level - debug, info, warn, error (default: info)
//   - LOG_FILE: Also write logs to this size-rotated file
//   - LOG_MAX_SIZE_MB, LOG_MAX_BACKUPS, LOG_MAX_AGE_DAYS: Log rotation (default: 50, 3, 28)
//   - MEMORY_LIMIT: Container memory limit in bytes for automatic GOMEMLIMIT configuration
//   - MEMORY_RATIO: Share of MEMORY_LIMIT for the Go heap (default: 0.75)
//   - GOMEMLIMIT: Direct override for Go's memory limit
//
// # Directory Setup
//
//   - Database directory: Required, created if missing, must be writable
//   - Thumbnail directory: Optional, thumbnails are disabled if not writable
//   - Upload root: Checked but not created (should be mounted)
//
// # Build Information
//
// Build-time variables are injected via ldflags and exposed via [GetBuildInfo].
package startup
