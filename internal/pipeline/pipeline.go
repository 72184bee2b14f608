package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"media-pipeline/internal/database"
	"media-pipeline/internal/extract"
	"media-pipeline/internal/features"
	"media-pipeline/internal/filesystem"
	"media-pipeline/internal/logging"
	"media-pipeline/internal/mediatypes"
	"media-pipeline/internal/memory"
	"media-pipeline/internal/metrics"
)

// Pass names, used for metrics labels, log prefixes and last-run keys.
const (
	PassBaseline  = "baseline"
	PassBackfill  = "backfill"
	PassReconcile = "reconcile"
)

// ErrPassRunning is returned when a pass is started while another one is in
// progress on the same Pipeline.
var ErrPassRunning = errors.New("a pass is already running")

// Store is the feature store surface the passes use. *database.Database
// implements it.
type Store interface {
	BeginTx(ctx context.Context) (*database.Tx, error)
	EndTx(tx *database.Tx, err error) error

	GetMedia(ctx context.Context, id int64) (*database.Media, error)
	ListUnprocessed(ctx context.Context) ([]database.Media, error)
	ListBackfillCandidates(ctx context.Context, missingOnly bool) ([]database.Media, error)
	FindMediaByFilenamePrefix(ctx context.Context, prefix string) ([]database.Media, error)
	MarkProcessed(ctx context.Context, tx *database.Tx, id int64, info database.MediaInfo) error
	SetProcessed(ctx context.Context, tx *database.Tx, id int64) error
	RecordProcessingError(ctx context.Context, id int64, msg string) error

	GetFeatures(ctx context.Context, mediaID int64, mt mediatypes.MediaType) (*database.Features, error)
	UpsertFeatures(ctx context.Context, tx *database.Tx, f *database.Features) error
	MergeFeature(ctx context.Context, tx *database.Tx, mediaID int64, mt mediatypes.MediaType, family string, a *features.Array) error

	InsertThumbnail(ctx context.Context, tx *database.Tx, t *database.Thumbnail) (bool, error)
	ThumbnailExists(ctx context.Context, mediaID int64, path string) (bool, error)
	ListThumbnails(ctx context.Context, mediaID int64) ([]database.Thumbnail, error)

	SetLastRun(ctx context.Context, pass string, t time.Time) error
}

var _ Store = (*database.Database)(nil)

// Config holds the filesystem boundary and pacing settings of the passes.
type Config struct {
	// UploadRoot is joined to relative media paths.
	UploadRoot string
	// ThumbnailDir receives generated thumbnails and is scanned by
	// reconciliation.
	ThumbnailDir string
	// ThumbnailSize is the square bound of generated thumbnails, in pixels.
	ThumbnailSize int
	// ItemDelay is the pause between baseline items.
	ItemDelay time.Duration
	// ForceCPU is passed to the deep extractor during backfill.
	ForceCPU bool
}

// Pipeline runs the baseline, backfill and reconciliation passes against a
// store. Passes are sequential; at most one runs at a time.
type Pipeline struct {
	store    Store
	registry *extract.Registry
	cfg      Config
	monitor  *memory.Monitor
	retry    filesystem.RetryConfig

	mu      sync.Mutex
	running string
}

// New creates a Pipeline. monitor may be nil.
func New(store Store, registry *extract.Registry, cfg Config, monitor *memory.Monitor) *Pipeline {
	return &Pipeline{
		store:    store,
		registry: registry,
		cfg:      cfg,
		monitor:  monitor,
		retry:    filesystem.DefaultRetryConfig(),
	}
}

func (p *Pipeline) begin(pass string) (*Report, error) {
	p.mu.Lock()
	if p.running != "" {
		running := p.running
		p.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrPassRunning, running)
	}
	p.running = pass
	p.mu.Unlock()

	metrics.PassRunsTotal.WithLabelValues(pass).Inc()
	metrics.PassRunning.WithLabelValues(pass).Set(1)

	report := newReport(pass)
	logging.Info("%s Starting %s pass", report.prefix(), pass)
	return report, nil
}

func (p *Pipeline) end(report *Report) {
	report.finish()
	metrics.PassRunning.WithLabelValues(report.Pass).Set(0)

	p.mu.Lock()
	p.running = ""
	p.mu.Unlock()
}

// recordRun stores the start time of a completed pass.
func (p *Pipeline) recordRun(ctx context.Context, report *Report) {
	if err := p.store.SetLastRun(ctx, report.Pass, report.StartedAt); err != nil {
		logging.Warn("%s Failed to record last run time: %v", report.prefix(), err)
	}
}

// pace runs before every item. It waits out memory pressure and, when delay
// is positive and this is not the first item, sleeps for delay. It returns
// the context's error once the run has been cancelled.
func (p *Pipeline) pace(ctx context.Context, report *Report, first bool, delay time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if p.monitor.IsPaused() {
		metrics.PassThrottleWaits.WithLabelValues(report.Pass).Inc()
		logging.Info("%s Waiting for memory pressure to ease (%.1f%% of limit)", report.prefix(), p.monitor.Usage()*100)
	}
	if err := p.monitor.Wait(ctx); err != nil {
		return err
	}

	if first || delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// runItem executes fn outside of ctx's cancellation so that an interrupt
// never abandons an item between its writes.
func (p *Pipeline) runItem(ctx context.Context, report *Report, fn func(context.Context) ItemResult) {
	start := time.Now()
	report.add(fn(context.WithoutCancel(ctx)))
	metrics.PassItemDuration.WithLabelValues(report.Pass).Observe(time.Since(start).Seconds())
}
