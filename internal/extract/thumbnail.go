package extract

import (
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/davidbyttow/govips/v2/vips"
	"github.com/disintegration/imaging"

	"media-pipeline/internal/logging"
	"media-pipeline/internal/metrics"
)

const thumbnailQuality = 85

var (
	vipsMu      sync.Mutex
	vipsStarted bool
)

// InitVips starts libvips with logging routed through the application
// logger. Call it once at startup; without it thumbnails are rendered with
// the pure Go imaging backend.
func InitVips() {
	vipsMu.Lock()
	defer vipsMu.Unlock()

	if vipsStarted {
		return
	}

	var vipsLevel vips.LogLevel
	switch logging.GetLevel() {
	case logging.LevelDebug:
		vipsLevel = vips.LogLevelInfo
	case logging.LevelInfo:
		vipsLevel = vips.LogLevelWarning
	case logging.LevelWarn:
		vipsLevel = vips.LogLevelError
	default:
		vipsLevel = vips.LogLevelCritical
	}

	vips.LoggingSettings(func(domain string, level vips.LogLevel, msg string) {
		switch {
		case level >= vips.LogLevelError:
			logging.Error("[%s] %s", domain, msg)
		case level == vips.LogLevelWarning:
			logging.Warn("[%s] %s", domain, msg)
		default:
			logging.Debug("[%s] %s", domain, msg)
		}
	}, vipsLevel)

	// One image at a time keeps memory flat during long passes.
	vips.Startup(&vips.Config{
		ConcurrencyLevel: 1,
		MaxCacheMem:      50 * 1024 * 1024,
		MaxCacheSize:     100,
	})

	vipsStarted = true
	logging.Info("libvips initialized successfully (version: %s)", vips.Version)
}

// ShutdownVips releases libvips resources.
func ShutdownVips() {
	vipsMu.Lock()
	defer vipsMu.Unlock()

	if vipsStarted {
		vips.Shutdown()
		vipsStarted = false
		logging.Info("libvips shutdown complete")
	}
}

// VipsEnabled reports whether libvips is running.
func VipsEnabled() bool {
	vipsMu.Lock()
	defer vipsMu.Unlock()
	return vipsStarted
}

// generateThumbnail renders src as a JPEG fitting within size x size. libvips
// is tried first when it is running; imaging is the fallback. The file is
// written atomically so a crash never leaves a truncated artifact behind.
func generateThumbnail(src, out string, size int) Result[string] {
	if size <= 0 {
		return Unavailable[string](fmt.Errorf("invalid thumbnail size %d", size))
	}
	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return Unavailable[string](fmt.Errorf("create thumbnail directory: %w", err))
	}

	var errs []error
	if VipsEnabled() {
		err := timedThumbnail("vips", func() error { return vipsThumbnail(src, out, size) })
		if err == nil {
			return Ok(out)
		}
		logging.Debug("vips thumbnail failed for %s, falling back to imaging: %v", src, err)
		errs = append(errs, err)
	}

	err := timedThumbnail("imaging", func() error { return imagingThumbnail(src, out, size) })
	if err == nil {
		return Ok(out)
	}
	errs = append(errs, err)
	return Unavailable[string](errors.Join(errs...))
}

func timedThumbnail(backend string, fn func() error) error {
	start := time.Now()
	err := fn()
	metrics.ThumbnailGenerationDuration.WithLabelValues(backend).Observe(time.Since(start).Seconds())

	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.ThumbnailGenerationsTotal.WithLabelValues(backend, status).Inc()
	return err
}

func vipsThumbnail(src, out string, size int) error {
	ref, err := vips.LoadImageFromFile(src, vips.NewImportParams())
	if err != nil {
		return fmt.Errorf("vips load: %w", err)
	}
	defer ref.Close()

	if err := ref.AutoRotate(); err != nil {
		return fmt.Errorf("vips autorotate: %w", err)
	}
	if err := ref.Thumbnail(size, size, vips.InterestingNone); err != nil {
		return fmt.Errorf("vips resize: %w", err)
	}

	buf, _, err := ref.ExportJpeg(&vips.JpegExportParams{
		Quality:        thumbnailQuality,
		StripMetadata:  true,
		OptimizeCoding: true,
	})
	if err != nil {
		return fmt.Errorf("vips export: %w", err)
	}

	return writeAtomic(out, func(f *os.File) error {
		_, err := f.Write(buf)
		return err
	})
}

func imagingThumbnail(src, out string, size int) error {
	img, err := imaging.Open(src, imaging.AutoOrientation(true))
	if err != nil {
		return fmt.Errorf("decode %s: %w", src, err)
	}

	return encodeThumbnail(img, out, size)
}

// encodeThumbnail fits an already decoded image within size x size and
// writes it as a JPEG.
func encodeThumbnail(img image.Image, out string, size int) error {
	thumb := imaging.Fit(img, size, size, imaging.Lanczos)
	return writeAtomic(out, func(f *os.File) error {
		return imaging.Encode(f, thumb, imaging.JPEG, imaging.JPEGQuality(thumbnailQuality))
	})
}

func writeAtomic(path string, write func(*os.File) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".thumb-*")
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if err := write(tmp); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
