package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"media-pipeline/internal/database"
	"media-pipeline/internal/extract"
	"media-pipeline/internal/features"
	"media-pipeline/internal/mediatypes"
)

func TestRunBaseline_ImageScenario(t *testing.T) {
	env := newTestEnv(t)
	env.useImageExtractor(nil)
	env.writeImage(t, "uploads/cat.jpg", 800, 600)
	m := env.insertMedia(t, "cat.jpg", "uploads/cat.jpg", mediatypes.MediaTypeImage)

	report, err := env.pipe.RunBaseline(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Total)
	assert.Equal(t, 1, report.Succeeded)
	assert.NotEqual(t, uuid.Nil, report.RunID)

	got := env.media(t, m.ID)
	assert.True(t, got.IsProcessed)
	assert.Empty(t, got.ProcessingError)
	require.NotNil(t, got.Width)
	require.NotNil(t, got.Height)
	assert.Equal(t, 800, *got.Width)
	assert.Equal(t, 600, *got.Height)

	f, err := env.db.GetFeatures(context.Background(), m.ID, mediatypes.MediaTypeImage)
	require.NoError(t, err)
	assert.NotNil(t, f.Set.Get(features.ColorHistogram))
	assert.NotNil(t, f.Set.Get(features.TextureLBP))
	assert.Nil(t, f.Set.Get(features.DeepFeatures))
	assert.NotNil(t, f.Set.Get(features.Combined))

	thumbs, err := env.db.ListThumbnails(context.Background(), m.ID)
	require.NoError(t, err)
	require.Len(t, thumbs, 1)
	assert.Equal(t, filepath.Join(env.thumbs, "thumb_cat.jpg"), thumbs[0].Path)
	assert.Equal(t, database.DefaultThumbnailType, thumbs[0].Type)
	assert.Equal(t, testThumbSize, thumbs[0].Width)
	assert.Equal(t, testThumbSize, thumbs[0].Height)

	img, err := imaging.Open(thumbs[0].Path)
	require.NoError(t, err)
	assert.LessOrEqual(t, img.Bounds().Dx(), testThumbSize)
	assert.LessOrEqual(t, img.Bounds().Dy(), testThumbSize)

	last, err := env.db.GetLastRun(context.Background(), PassBaseline)
	require.NoError(t, err)
	assert.False(t, last.IsZero())
}

func TestRunBaseline_IsolatesFailures(t *testing.T) {
	env := newTestEnv(t)
	env.useImageExtractor(nil)

	env.writeImage(t, "uploads/a.jpg", 40, 30)
	env.writeImage(t, "uploads/c.jpg", 40, 30)
	a := env.insertMedia(t, "a.jpg", "uploads/a.jpg", mediatypes.MediaTypeImage)
	b := env.insertMedia(t, "b.jpg", "uploads/b.jpg", mediatypes.MediaTypeImage)
	c := env.insertMedia(t, "c.jpg", "uploads/c.jpg", mediatypes.MediaTypeImage)

	report, err := env.pipe.RunBaseline(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, report.Total)
	assert.Equal(t, 2, report.Succeeded)
	assert.Equal(t, 1, report.Failed)

	assert.Equal(t, StateProcessed, StateOf(env.media(t, a.ID)))
	assert.Equal(t, StateProcessed, StateOf(env.media(t, c.ID)))

	failed := env.media(t, b.ID)
	assert.Equal(t, StateFailed, StateOf(failed))
	assert.Contains(t, failed.ProcessingError, ErrSourceNotFound.Error())

	_, err = env.db.GetFeatures(context.Background(), b.ID, mediatypes.MediaTypeImage)
	assert.ErrorIs(t, err, database.ErrNotFound, "a failed item must not leave a feature row")

	// The failed item is picked up again once its file appears.
	env.writeImage(t, "uploads/b.jpg", 40, 30)
	report, err = env.pipe.RunBaseline(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Total)
	assert.Equal(t, 1, report.Succeeded)

	recovered := env.media(t, b.ID)
	assert.True(t, recovered.IsProcessed)
	assert.Empty(t, recovered.ProcessingError)
}

func TestRunBaseline_RerunReplacesFeatures(t *testing.T) {
	env := newTestEnv(t)
	env.useImageExtractor(nil)
	env.writeImage(t, "uploads/cat.jpg", 64, 64)
	m := env.insertMedia(t, "cat.jpg", "uploads/cat.jpg", mediatypes.MediaTypeImage)

	_, err := env.pipe.RunBaseline(context.Background())
	require.NoError(t, err)
	first, err := env.db.GetFeatures(context.Background(), m.ID, mediatypes.MediaTypeImage)
	require.NoError(t, err)

	require.NoError(t, env.db.ResetMedia(context.Background(), m.ID))
	report, err := env.pipe.RunBaseline(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Succeeded)

	second, err := env.db.GetFeatures(context.Background(), m.ID, mediatypes.MediaTypeImage)
	require.NoError(t, err)
	assert.True(t, first.Set.Get(features.ColorHistogram).Equal(second.Set.Get(features.ColorHistogram)))

	thumbs, err := env.db.ListThumbnails(context.Background(), m.ID)
	require.NoError(t, err)
	assert.Len(t, thumbs, 1)

	// Nothing left to do.
	report, err = env.pipe.RunBaseline(context.Background())
	require.NoError(t, err)
	assert.Zero(t, report.Total)
}

func TestRunBaseline_DropsDeepFeatures(t *testing.T) {
	env := newTestEnv(t)
	env.registry.Register(mediatypes.MediaTypeImage, func(extract.Options) (extract.Extractor, error) {
		return &fakeExtractor{
			mt: mediatypes.MediaTypeImage,
			set: features.Set{
				features.ColorHistogram: features.Vector([]float64{1, 0}),
				features.DeepFeatures:   features.Vector([]float64{0.3, 0.4}),
			},
			md: extract.Unavailable[extract.Metadata](errors.New("no header")),
		}, nil
	})
	env.writeImage(t, "uploads/x.png", 8, 8)
	m := env.insertMedia(t, "x.png", "uploads/x.png", mediatypes.MediaTypeImage)

	report, err := env.pipe.RunBaseline(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Succeeded)

	f, err := env.db.GetFeatures(context.Background(), m.ID, mediatypes.MediaTypeImage)
	require.NoError(t, err)
	assert.Nil(t, f.Set.Get(features.DeepFeatures))
	assert.Nil(t, f.Set.Get(features.TextureLBP))
	assert.Equal(t, []float64{1, 0}, f.Set.Get(features.Combined).Flat())

	got := env.media(t, m.ID)
	assert.True(t, got.IsProcessed, "unavailable metadata never fails an item")
	assert.Nil(t, got.Width)

	// The fake cannot render thumbnails.
	thumbs, err := env.db.ListThumbnails(context.Background(), m.ID)
	require.NoError(t, err)
	assert.Empty(t, thumbs)
}

func TestRunBaseline_AudioAndVideo(t *testing.T) {
	env := newTestEnv(t)
	duration := 12.5
	env.registry.Register(mediatypes.MediaTypeAudio, func(extract.Options) (extract.Extractor, error) {
		return &fakeExtractor{
			mt: mediatypes.MediaTypeAudio,
			set: features.Set{
				features.MFCC:          features.Vector(make([]float64, 26)),
				features.WaveformStats: features.Vector([]float64{0, 1, 1, 1, 0.1, 12.5}),
			},
			md: extract.Ok(extract.Metadata{Duration: &duration}),
		}, nil
	})

	require.NoError(t, os.MkdirAll(filepath.Join(env.root, "uploads"), 0o755))
	for _, name := range []string{"song.mp3", "clip.mp4"} {
		require.NoError(t, os.WriteFile(filepath.Join(env.root, "uploads", name), []byte("data"), 0o644))
	}
	song := env.insertMedia(t, "song.mp3", "uploads/song.mp3", mediatypes.MediaTypeAudio)
	clip := env.insertMedia(t, "clip.mp4", "uploads/clip.mp4", mediatypes.MediaTypeVideo)

	report, err := env.pipe.RunBaseline(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Succeeded)
	assert.Equal(t, 1, report.Failed)

	gotSong := env.media(t, song.ID)
	assert.True(t, gotSong.IsProcessed)
	require.NotNil(t, gotSong.Duration)
	assert.Equal(t, 12.5, *gotSong.Duration)

	f, err := env.db.GetFeatures(context.Background(), song.ID, mediatypes.MediaTypeAudio)
	require.NoError(t, err)
	assert.Nil(t, f.Set.Get(features.Spectral))
	assert.NotNil(t, f.Set.Get(features.Combined))

	// No video extractor is registered: recorded as a failure.
	gotClip := env.media(t, clip.ID)
	assert.Equal(t, StateFailed, StateOf(gotClip))
	assert.Contains(t, gotClip.ProcessingError, extract.ErrUnsupported.Error())
}

func TestRunBaseline_CapabilityUnavailableLeavesItem(t *testing.T) {
	env := newTestEnv(t)
	env.registry.Register(mediatypes.MediaTypeVideo, func(extract.Options) (extract.Extractor, error) {
		return nil, extract.ErrCapabilityUnavailable
	})
	require.NoError(t, os.MkdirAll(filepath.Join(env.root, "uploads"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(env.root, "uploads", "clip.mp4"), []byte("data"), 0o644))
	m := env.insertMedia(t, "clip.mp4", "uploads/clip.mp4", mediatypes.MediaTypeVideo)

	report, err := env.pipe.RunBaseline(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Skipped)

	got := env.media(t, m.ID)
	assert.Equal(t, StateUnprocessed, StateOf(got))
	assert.Empty(t, got.ProcessingError)
}

func TestRunBaseline_ExtractionErrorRecorded(t *testing.T) {
	env := newTestEnv(t)
	env.registry.Register(mediatypes.MediaTypeImage, func(extract.Options) (extract.Extractor, error) {
		return &fakeExtractor{mt: mediatypes.MediaTypeImage, err: errors.New("corrupt header")}, nil
	})
	env.writeImage(t, "uploads/bad.jpg", 4, 4)
	m := env.insertMedia(t, "bad.jpg", "uploads/bad.jpg", mediatypes.MediaTypeImage)

	report, err := env.pipe.RunBaseline(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Failed)
	require.Len(t, report.Items, 1)
	assert.Contains(t, report.Items[0].Reason, "corrupt header")

	got := env.media(t, m.ID)
	assert.Equal(t, StateFailed, StateOf(got))
	assert.Contains(t, got.ProcessingError, "corrupt header")
}

func TestRunBaseline_CancelledBeforeFirstItem(t *testing.T) {
	env := newTestEnv(t)
	env.useImageExtractor(nil)
	env.writeImage(t, "uploads/a.jpg", 8, 8)
	m := env.insertMedia(t, "a.jpg", "uploads/a.jpg", mediatypes.MediaTypeImage)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := env.pipe.RunBaseline(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, report)
	assert.Zero(t, report.Total)
	assert.Equal(t, StateUnprocessed, StateOf(env.media(t, m.ID)))

	last, err := env.db.GetLastRun(context.Background(), PassBaseline)
	require.NoError(t, err)
	assert.True(t, last.IsZero(), "an interrupted pass is not recorded as run")
}

// thumbnailingExtractor is a fakeExtractor whose thumbnail step always
// reports the renderer as unavailable.
type thumbnailingExtractor struct {
	fakeExtractor
	calls int
}

func (f *thumbnailingExtractor) GenerateThumbnail(context.Context, string, string, int) extract.Result[string] {
	f.calls++
	return extract.Unavailable[string](errors.New("no decoder for thumbnail"))
}

func TestRunBaseline_ThumbnailFailureKeepsItem(t *testing.T) {
	env := newTestEnv(t)
	ext := &thumbnailingExtractor{fakeExtractor: fakeExtractor{
		mt:  mediatypes.MediaTypeImage,
		set: features.Set{features.ColorHistogram: features.Vector([]float64{0, 1})},
		md:  extract.Unavailable[extract.Metadata](errors.New("no header")),
	}}
	env.registry.Register(mediatypes.MediaTypeImage, func(extract.Options) (extract.Extractor, error) {
		return ext, nil
	})
	env.writeImage(t, "uploads/odd.png", 8, 8)
	m := env.insertMedia(t, "odd.png", "uploads/odd.png", mediatypes.MediaTypeImage)

	report, err := env.pipe.RunBaseline(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Succeeded)
	assert.Equal(t, 1, ext.calls)

	got := env.media(t, m.ID)
	assert.Equal(t, StateProcessed, StateOf(got))
	assert.Empty(t, got.ProcessingError)

	f, err := env.db.GetFeatures(context.Background(), m.ID, mediatypes.MediaTypeImage)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 1}, f.Set.Get(features.ColorHistogram).Flat())

	thumbs, err := env.db.ListThumbnails(context.Background(), m.ID)
	require.NoError(t, err)
	assert.Empty(t, thumbs)
}

// failingUpsertStore writes the feature row for failID and then reports an
// error, so the enclosing transaction has something to roll back.
type failingUpsertStore struct {
	*database.Database
	failID int64
}

func (s *failingUpsertStore) UpsertFeatures(ctx context.Context, tx *database.Tx, f *database.Features) error {
	if err := s.Database.UpsertFeatures(ctx, tx, f); err != nil {
		return err
	}
	if f.MediaID == s.failID {
		return errors.New("disk I/O error")
	}
	return nil
}

func TestRunBaseline_StoreFailureRollsBack(t *testing.T) {
	env := newTestEnv(t)
	env.useImageExtractor(nil)
	env.writeImage(t, "uploads/a.jpg", 16, 16)
	env.writeImage(t, "uploads/b.jpg", 16, 16)
	a := env.insertMedia(t, "a.jpg", "uploads/a.jpg", mediatypes.MediaTypeImage)
	b := env.insertMedia(t, "b.jpg", "uploads/b.jpg", mediatypes.MediaTypeImage)

	store := &failingUpsertStore{Database: env.db, failID: a.ID}
	pipe := New(store, env.registry, Config{
		UploadRoot:    env.root,
		ThumbnailDir:  env.thumbs,
		ThumbnailSize: testThumbSize,
	}, nil)

	report, err := pipe.RunBaseline(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, report.Total)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 1, report.Succeeded)

	failed := env.media(t, a.ID)
	assert.Equal(t, StateFailed, StateOf(failed))
	assert.Contains(t, failed.ProcessingError, "disk I/O error")

	_, err = env.db.GetFeatures(context.Background(), a.ID, mediatypes.MediaTypeImage)
	assert.ErrorIs(t, err, database.ErrNotFound, "the feature write must be rolled back")
	thumbs, err := env.db.ListThumbnails(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Empty(t, thumbs)

	assert.Equal(t, StateProcessed, StateOf(env.media(t, b.ID)))
	_, err = env.db.GetFeatures(context.Background(), b.ID, mediatypes.MediaTypeImage)
	assert.NoError(t, err)
}
