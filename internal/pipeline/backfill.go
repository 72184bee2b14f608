package pipeline

import (
	"context"
	"errors"
	"fmt"

	"media-pipeline/internal/database"
	"media-pipeline/internal/extract"
	"media-pipeline/internal/features"
	"media-pipeline/internal/filesystem"
	"media-pipeline/internal/logging"
)

// BackfillOptions select the items of a deep backfill run.
type BackfillOptions struct {
	// MediaIDs limits the run to these items. Empty means every processed
	// image.
	MediaIDs []int64
	// MissingOnly skips items whose deep features are already stored.
	MissingOnly bool
}

// RunBackfill computes deep features for processed images and merges them
// into the existing feature rows. Only the deep and combined families are
// written; handcrafted features and the item's processing state are never
// touched. Items whose deep extractor cannot be built are skipped and can be
// retried once the model is available.
func (p *Pipeline) RunBackfill(ctx context.Context, opts BackfillOptions) (*Report, error) {
	report, err := p.begin(PassBackfill)
	if err != nil {
		return nil, err
	}
	defer p.end(report)

	items, err := p.backfillTargets(ctx, report, opts)
	if err != nil {
		return report, err
	}
	logging.Info("%s Found %d images for deep feature extraction", report.prefix(), len(items))

	for i := range items {
		m := &items[i]
		if err := p.pace(ctx, report, i == 0, 0); err != nil {
			report.Interrupted = true
			return report, err
		}
		p.runItem(ctx, report, func(ctx context.Context) ItemResult {
			return p.backfillItem(ctx, m)
		})
	}

	p.recordRun(ctx, report)
	return report, nil
}

// backfillTargets loads the items to process. Requested ids that cannot be
// backfilled are reported as skipped here.
func (p *Pipeline) backfillTargets(ctx context.Context, report *Report, opts BackfillOptions) ([]database.Media, error) {
	if len(opts.MediaIDs) == 0 {
		items, err := p.store.ListBackfillCandidates(ctx, opts.MissingOnly)
		if err != nil {
			return nil, fmt.Errorf("list backfill candidates: %w", err)
		}
		return items, nil
	}

	var items []database.Media
	for _, id := range opts.MediaIDs {
		skip := func(reason string) {
			report.add(ItemResult{MediaID: id, Name: fmt.Sprintf("media %d", id), Outcome: OutcomeSkipped, Reason: reason})
		}

		m, err := p.store.GetMedia(ctx, id)
		switch {
		case errors.Is(err, database.ErrNotFound):
			skip("media not found")
			continue
		case err != nil:
			return nil, fmt.Errorf("load media %d: %w", id, err)
		}

		if !EligibleForBackfill(m) {
			skip(fmt.Sprintf("%s media in state %s is not eligible for deep features", m.MediaType, StateOf(m)))
			continue
		}

		if opts.MissingOnly {
			f, err := p.store.GetFeatures(ctx, id, m.MediaType)
			if err == nil && f.Set.Get(features.DeepFeatures) != nil {
				skip("deep features already present")
				continue
			}
			if err != nil && !errors.Is(err, database.ErrNotFound) {
				return nil, fmt.Errorf("load features of media %d: %w", id, err)
			}
		}
		items = append(items, *m)
	}
	return items, nil
}

func (p *Pipeline) backfillItem(ctx context.Context, m *database.Media) ItemResult {
	res := ItemResult{MediaID: m.ID, Name: m.Filename}

	ext, err := p.registry.New(m.MediaType, extract.Options{Deep: true, ForceCPU: p.cfg.ForceCPU})
	if err != nil {
		res.Outcome, res.Reason = OutcomeFailed, err.Error()
		if errors.Is(err, extract.ErrCapabilityUnavailable) {
			res.Outcome = OutcomeSkipped
		}
		return res
	}

	if err := p.processBackfill(ctx, ext, m); err != nil {
		res.Outcome, res.Reason = OutcomeFailed, err.Error()
		return res
	}
	res.Outcome = OutcomeSucceeded
	return res
}

func (p *Pipeline) processBackfill(ctx context.Context, ext extract.Extractor, m *database.Media) (err error) {
	path, err := p.backfillSource(ctx, m)
	if err != nil {
		return err
	}

	set, err := ext.ExtractAll(ctx, path)
	if err != nil {
		return fmt.Errorf("extract features: %w", err)
	}
	deep := set.Get(features.DeepFeatures)
	if deep == nil {
		return errors.New("extractor produced no deep features")
	}

	tx, err := p.store.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer func() {
		err = p.store.EndTx(tx, err)
	}()

	if err = p.store.MergeFeature(ctx, tx, m.ID, m.MediaType, features.DeepFeatures, deep); err != nil {
		return fmt.Errorf("store deep features: %w", err)
	}
	return nil
}

// backfillSource resolves the item's file, falling back to its first
// recorded thumbnail when the original is gone.
func (p *Pipeline) backfillSource(ctx context.Context, m *database.Media) (string, error) {
	path, err := p.locate(m.FilePath)
	if err == nil || !errors.Is(err, ErrSourceNotFound) {
		return path, err
	}

	thumbs, terr := p.store.ListThumbnails(ctx, m.ID)
	if terr != nil {
		return "", errors.Join(err, fmt.Errorf("list thumbnails: %w", terr))
	}
	if len(thumbs) == 0 {
		return "", err
	}

	thumb := ResolvePath(p.cfg.UploadRoot, thumbs[0].Path)
	ok, serr := filesystem.IsRegularFile(thumb, p.retry)
	if serr != nil || !ok {
		return "", err
	}
	logging.Info("Original file missing for media %d, using thumbnail %s", m.ID, thumb)
	return thumb, nil
}
