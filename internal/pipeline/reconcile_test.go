package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"media-pipeline/internal/database"
	"media-pipeline/internal/mediatypes"
)

func (e *testEnv) touchThumb(t *testing.T, name string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(e.thumbs, 0o755))
	path := filepath.Join(e.thumbs, name)
	require.NoError(t, os.WriteFile(path, []byte("jpeg"), 0o644))
	return path
}

func TestThumbnailBase(t *testing.T) {
	tests := []struct {
		name string
		base string
		ok   bool
	}{
		{"thumb_cat.jpg", "cat", true},
		{"thumb_my.photo.jpg", "my.photo", true},
		{"thumb_noext", "noext", true},
		{"thumb_.jpg", "", false},
		{"cat.jpg", "", false},
		{".thumb-123456", "", false},
		{"video_3_frame_1.jpg", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			base, ok := thumbnailBase(tt.name)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.base, base)
		})
	}
}

func TestRunReconcile_Idempotent(t *testing.T) {
	env := newTestEnv(t)
	cat := env.insertMedia(t, "cat.jpg", "uploads/cat.jpg", mediatypes.MediaTypeImage)
	catThumb := env.touchThumb(t, "thumb_cat.jpg")
	env.touchThumb(t, "thumb_zebra.jpg")
	env.touchThumb(t, "notes.txt")
	require.NoError(t, os.MkdirAll(filepath.Join(env.thumbs, "thumb_dir.jpg"), 0o755))

	report, err := env.pipe.RunReconcile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, report.Total)
	assert.Equal(t, 1, report.Succeeded)
	assert.Equal(t, 1, report.Unmatched)

	thumbs, err := env.db.ListThumbnails(context.Background(), cat.ID)
	require.NoError(t, err)
	require.Len(t, thumbs, 1)
	assert.Equal(t, catThumb, thumbs[0].Path)
	assert.Equal(t, database.DefaultThumbnailType, thumbs[0].Type)
	assert.Equal(t, testThumbSize, thumbs[0].Width)
	assert.True(t, env.media(t, cat.ID).IsProcessed, "reconciliation promotes the item")

	report, err = env.pipe.RunReconcile(context.Background())
	require.NoError(t, err)
	assert.Zero(t, report.Succeeded)
	assert.Equal(t, 2, report.Skipped)

	thumbs, err = env.db.ListThumbnails(context.Background(), cat.ID)
	require.NoError(t, err)
	assert.Len(t, thumbs, 1)
}

func TestRunReconcile_AfterBaselineIsNoop(t *testing.T) {
	env := newTestEnv(t)
	env.useImageExtractor(nil)
	env.writeImage(t, "uploads/cat.jpg", 50, 50)
	m := env.insertMedia(t, "cat.jpg", "uploads/cat.jpg", mediatypes.MediaTypeImage)
	_, err := env.pipe.RunBaseline(context.Background())
	require.NoError(t, err)

	report, err := env.pipe.RunReconcile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Skipped)
	assert.Zero(t, report.Succeeded)

	thumbs, err := env.db.ListThumbnails(context.Background(), m.ID)
	require.NoError(t, err)
	assert.Len(t, thumbs, 1)
}

func TestRunReconcile_Ambiguity(t *testing.T) {
	env := newTestEnv(t)
	cat := env.insertMedia(t, "cat.jpg", "uploads/cat.jpg", mediatypes.MediaTypeImage)
	env.insertMedia(t, "cat2.jpg", "uploads/cat2.jpg", mediatypes.MediaTypeImage)
	env.insertMedia(t, "dog.jpg", "uploads/dog.jpg", mediatypes.MediaTypeImage)
	env.insertMedia(t, "dog.png", "uploads/dog.png", mediatypes.MediaTypeImage)

	env.touchThumb(t, "thumb_cat.jpg") // exact stem wins over cat2.jpg
	env.touchThumb(t, "thumb_ca.jpg")  // prefix of two filenames
	env.touchThumb(t, "thumb_dog.jpg") // two files share the stem

	report, err := env.pipe.RunReconcile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Succeeded)
	assert.Equal(t, 2, report.Ambiguous)

	thumbs, err := env.db.ListThumbnails(context.Background(), cat.ID)
	require.NoError(t, err)
	assert.Len(t, thumbs, 1)

	for _, item := range report.Items {
		if item.Name == "thumb_ca.jpg" {
			assert.Equal(t, OutcomeSkipped, item.Outcome)
			assert.Contains(t, item.Reason, ErrAmbiguousMatch.Error())
		}
	}
}

func TestRunReconcile_PrefixMatch(t *testing.T) {
	env := newTestEnv(t)
	m := env.insertMedia(t, "holiday_2024_beach.jpg", "uploads/holiday_2024_beach.jpg", mediatypes.MediaTypeImage)
	env.touchThumb(t, "thumb_holiday_2024.jpg")

	report, err := env.pipe.RunReconcile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Succeeded)
	assert.True(t, env.media(t, m.ID).IsProcessed)
}

func TestRunReconcile_MissingDirectory(t *testing.T) {
	env := newTestEnv(t)
	report, err := env.pipe.RunReconcile(context.Background())
	require.NoError(t, err)
	assert.Zero(t, report.Total)
}

func TestRunReconcile_FollowsSymlinks(t *testing.T) {
	env := newTestEnv(t)
	dog := env.insertMedia(t, "dog.jpg", "uploads/dog.jpg", mediatypes.MediaTypeImage)
	env.insertMedia(t, "owl.jpg", "uploads/owl.jpg", mediatypes.MediaTypeImage)

	target := filepath.Join(t.TempDir(), "rendered.jpg")
	require.NoError(t, os.WriteFile(target, []byte("jpeg"), 0o644))
	require.NoError(t, os.MkdirAll(env.thumbs, 0o755))
	link := filepath.Join(env.thumbs, "thumb_dog.jpg")
	require.NoError(t, os.Symlink(target, link))
	require.NoError(t, os.Symlink(filepath.Join(t.TempDir(), "gone.jpg"), filepath.Join(env.thumbs, "thumb_owl.jpg")))

	report, err := env.pipe.RunReconcile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Total, "a dangling link is not a thumbnail")
	assert.Equal(t, 1, report.Succeeded)

	thumbs, err := env.db.ListThumbnails(context.Background(), dog.ID)
	require.NoError(t, err)
	require.Len(t, thumbs, 1)
	assert.Equal(t, link, thumbs[0].Path)
	assert.True(t, env.media(t, dog.ID).IsProcessed)
}
