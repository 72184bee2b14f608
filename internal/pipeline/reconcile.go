package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"media-pipeline/internal/database"
	"media-pipeline/internal/filesystem"
	"media-pipeline/internal/logging"
	"media-pipeline/internal/metrics"
)

const thumbnailPrefix = "thumb_"

// ErrAmbiguousMatch means a thumbnail name matches more than one media item.
var ErrAmbiguousMatch = errors.New("thumbnail matches more than one media item")

// RunReconcile records thumbnail artifacts found in the thumbnail directory
// that have no database row, and marks their media processed. Files not
// named thumb_<base>.<ext> are ignored. Running it again changes nothing.
func (p *Pipeline) RunReconcile(ctx context.Context) (*Report, error) {
	report, err := p.begin(PassReconcile)
	if err != nil {
		return nil, err
	}
	defer p.end(report)

	dir := p.cfg.ThumbnailDir
	entries, err := filesystem.ReadDirWithRetry(dir, p.retry)
	if errors.Is(err, os.ErrNotExist) {
		logging.Info("%s Thumbnail directory %s does not exist; nothing to do", report.prefix(), dir)
		p.recordRun(ctx, report)
		return report, nil
	}
	if err != nil {
		return report, fmt.Errorf("read thumbnail directory: %w", err)
	}
	logging.Info("%s Scanning %d entries in %s", report.prefix(), len(entries), dir)

	first := true
	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())
		base, ok := thumbnailBase(entry.Name())
		if ok {
			// Symlinks count when they point at a regular file.
			if ok, err = filesystem.IsRegularFile(path, p.retry); err != nil {
				logging.Warn("%s Cannot stat %s: %v", report.prefix(), path, err)
			}
		}
		if !ok {
			metrics.ThumbnailsReconciled.WithLabelValues("ignored").Inc()
			continue
		}

		if err := p.pace(ctx, report, first, 0); err != nil {
			report.Interrupted = true
			return report, err
		}
		first = false

		p.runItem(ctx, report, func(ctx context.Context) ItemResult {
			return p.reconcileItem(ctx, report, base, path)
		})
	}

	p.recordRun(ctx, report)
	return report, nil
}

// thumbnailBase extracts <base> from thumb_<base>.<ext>.
func thumbnailBase(name string) (string, bool) {
	rest, ok := strings.CutPrefix(name, thumbnailPrefix)
	if !ok {
		return "", false
	}
	base := strings.TrimSuffix(rest, filepath.Ext(rest))
	return base, base != ""
}

func (p *Pipeline) reconcileItem(ctx context.Context, report *Report, base, path string) ItemResult {
	res := ItemResult{Name: filepath.Base(path)}

	m, outcome, err := p.matchMedia(ctx, base)
	if err != nil {
		metrics.ThumbnailsReconciled.WithLabelValues(outcome).Inc()
		res.Outcome, res.Reason = OutcomeFailed, err.Error()
		switch outcome {
		case "unmatched":
			report.Unmatched++
			res.Outcome = OutcomeSkipped
		case "ambiguous":
			report.Ambiguous++
			res.Outcome = OutcomeSkipped
		}
		return res
	}
	res.MediaID = m.ID

	inserted, err := p.recordThumbnail(ctx, m.ID, path)
	switch {
	case err != nil:
		metrics.ThumbnailsReconciled.WithLabelValues("error").Inc()
		res.Outcome, res.Reason = OutcomeFailed, err.Error()
	case !inserted:
		metrics.ThumbnailsReconciled.WithLabelValues("exists").Inc()
		res.Outcome, res.Reason = OutcomeSkipped, fmt.Sprintf("already recorded for media %d", m.ID)
	default:
		metrics.ThumbnailsReconciled.WithLabelValues("inserted").Inc()
		res.Outcome = OutcomeSucceeded
	}
	return res
}

// matchMedia finds the media item a thumbnail base name belongs to. A media
// whose filename without extension equals base wins. Otherwise the base must
// prefix exactly one filename.
func (p *Pipeline) matchMedia(ctx context.Context, base string) (*database.Media, string, error) {
	candidates, err := p.store.FindMediaByFilenamePrefix(ctx, base)
	if err != nil {
		return nil, "error", fmt.Errorf("find media for %q: %w", base, err)
	}

	var exact []database.Media
	for _, c := range candidates {
		if strings.TrimSuffix(c.Filename, filepath.Ext(c.Filename)) == base {
			exact = append(exact, c)
		}
	}
	if len(exact) > 0 {
		candidates = exact
	}

	switch len(candidates) {
	case 0:
		return nil, "unmatched", fmt.Errorf("no media matches %q", base)
	case 1:
		return &candidates[0], "", nil
	default:
		ids := make([]string, len(candidates))
		for i, c := range candidates {
			ids[i] = fmt.Sprint(c.ID)
		}
		return nil, "ambiguous", fmt.Errorf("%w: %q matches media %s", ErrAmbiguousMatch, base, strings.Join(ids, ", "))
	}
}

// recordThumbnail inserts the thumbnail row and promotes the media to
// processed in one transaction. It reports false when the row exists.
func (p *Pipeline) recordThumbnail(ctx context.Context, mediaID int64, path string) (inserted bool, err error) {
	exists, err := p.store.ThumbnailExists(ctx, mediaID, path)
	if err != nil || exists {
		return false, err
	}

	tx, err := p.store.BeginTx(ctx)
	if err != nil {
		return false, err
	}
	defer func() {
		err = p.store.EndTx(tx, err)
		if err != nil {
			inserted = false
		}
	}()

	inserted, err = p.store.InsertThumbnail(ctx, tx, &database.Thumbnail{
		MediaID: mediaID,
		Path:    path,
		Type:    database.DefaultThumbnailType,
		Width:   p.cfg.ThumbnailSize,
		Height:  p.cfg.ThumbnailSize,
	})
	if err != nil || !inserted {
		return false, err
	}

	if err = p.store.SetProcessed(ctx, tx, mediaID); err != nil {
		return false, err
	}
	logging.Info("Recorded thumbnail %s for media %d", filepath.Base(path), mediaID)
	return true, nil
}
