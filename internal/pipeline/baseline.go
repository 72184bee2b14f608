package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"media-pipeline/internal/database"
	"media-pipeline/internal/extract"
	"media-pipeline/internal/features"
	"media-pipeline/internal/logging"
)

// ThumbnailName is the artifact name of a media file's default thumbnail:
// thumb_<name without extension>.jpg.
func ThumbnailName(filename string) string {
	return "thumb_" + strings.TrimSuffix(filename, filepath.Ext(filename)) + ".jpg"
}

// RunBaseline processes every unprocessed media item: handcrafted features,
// metadata and, where the extractor supports it, a thumbnail. Each item is
// committed on its own. A failed item records its error and the pass moves
// on; an item whose extractor is unavailable is left untouched.
//
// The returned error is non-nil only when the pass could not start or was
// cancelled; the report is valid in both cases.
func (p *Pipeline) RunBaseline(ctx context.Context) (*Report, error) {
	report, err := p.begin(PassBaseline)
	if err != nil {
		return nil, err
	}
	defer p.end(report)

	items, err := p.store.ListUnprocessed(ctx)
	if err != nil {
		return report, fmt.Errorf("list unprocessed media: %w", err)
	}
	logging.Info("%s Found %d unprocessed media items", report.prefix(), len(items))

	for i := range items {
		m := &items[i]
		if err := p.pace(ctx, report, i == 0, p.cfg.ItemDelay); err != nil {
			report.Interrupted = true
			return report, err
		}
		p.runItem(ctx, report, func(ctx context.Context) ItemResult {
			return p.baselineItem(ctx, m)
		})
	}

	p.recordRun(ctx, report)
	return report, nil
}

func (p *Pipeline) baselineItem(ctx context.Context, m *database.Media) ItemResult {
	res := ItemResult{MediaID: m.ID, Name: m.Filename}
	if !EligibleForBaseline(m) {
		res.Outcome, res.Reason = OutcomeSkipped, "already processed"
		return res
	}

	err := p.processBaseline(ctx, m)
	switch {
	case err == nil:
		res.Outcome = OutcomeSucceeded
	case errors.Is(err, extract.ErrCapabilityUnavailable):
		res.Outcome, res.Reason = OutcomeSkipped, err.Error()
	default:
		res.Outcome, res.Reason = OutcomeFailed, err.Error()
		if recErr := p.store.RecordProcessingError(ctx, m.ID, err.Error()); recErr != nil {
			logging.Error("Failed to record processing error for media %d: %v", m.ID, recErr)
		}
	}
	return res
}

func (p *Pipeline) processBaseline(ctx context.Context, m *database.Media) (err error) {
	path, err := p.locate(m.FilePath)
	if err != nil {
		return err
	}

	ext, err := p.registry.New(m.MediaType, extract.Options{})
	if err != nil {
		return err
	}

	set, err := ext.ExtractAll(ctx, path)
	if err != nil {
		return fmt.Errorf("extract features: %w", err)
	}
	// Deep features are only ever written by the backfill pass.
	delete(set, features.DeepFeatures)

	info := p.metadata(ctx, ext, path)
	thumb := p.thumbnail(ctx, ext, path, m)

	tx, err := p.store.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer func() {
		err = p.store.EndTx(tx, err)
	}()

	err = p.store.UpsertFeatures(ctx, tx, &database.Features{
		MediaID:   m.ID,
		MediaType: m.MediaType,
		Set:       set,
	})
	if err != nil {
		return fmt.Errorf("store features: %w", err)
	}

	if thumb != nil {
		if _, terr := p.store.InsertThumbnail(ctx, tx, thumb); terr != nil {
			logging.Warn("Failed to record thumbnail %s: %v", thumb.Path, terr)
		}
	}

	if err = p.store.MarkProcessed(ctx, tx, m.ID, info); err != nil {
		return fmt.Errorf("mark processed: %w", err)
	}
	return nil
}

func (p *Pipeline) metadata(ctx context.Context, ext extract.Extractor, path string) database.MediaInfo {
	res := ext.Metadata(ctx, path)
	md, ok := res.Get()
	if !ok {
		logging.Debug("Metadata unavailable for %s: %v", path, res.Reason())
		return database.MediaInfo{}
	}
	return database.MediaInfo{Width: md.Width, Height: md.Height, Duration: md.Duration}
}

// thumbnail renders the default thumbnail when the extractor can. Failures
// are logged and yield nil.
func (p *Pipeline) thumbnail(ctx context.Context, ext extract.Extractor, path string, m *database.Media) *database.Thumbnail {
	t, ok := ext.(extract.Thumbnailer)
	if !ok || p.cfg.ThumbnailDir == "" {
		return nil
	}

	out := filepath.Join(p.cfg.ThumbnailDir, ThumbnailName(m.Filename))
	res := t.GenerateThumbnail(ctx, path, out, p.cfg.ThumbnailSize)
	got, ok := res.Get()
	if !ok {
		logging.Warn("Thumbnail generation failed for %s: %v", m.Filename, res.Reason())
		return nil
	}

	return &database.Thumbnail{
		MediaID: m.ID,
		Path:    got,
		Type:    database.DefaultThumbnailType,
		Width:   p.cfg.ThumbnailSize,
		Height:  p.cfg.ThumbnailSize,
	}
}
