package database

import (
	"context"
	"errors"
	"testing"

	"media-pipeline/internal/mediatypes"
)

func TestInsertAndGetMedia(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	w, h := 800, 600
	m := &Media{
		Filename:  "cat.jpg",
		FilePath:  "/abs/cat.jpg",
		MediaType: mediatypes.MediaTypeImage,
		Width:     &w,
		Height:    &h,
	}
	if err := db.InsertMedia(ctx, m); err != nil {
		t.Fatalf("InsertMedia() failed: %v", err)
	}
	if m.ID == 0 {
		t.Fatal("InsertMedia did not set ID")
	}

	got, err := db.GetMedia(ctx, m.ID)
	if err != nil {
		t.Fatalf("GetMedia() failed: %v", err)
	}

	if got.Filename != "cat.jpg" || got.FilePath != "/abs/cat.jpg" || got.MediaType != mediatypes.MediaTypeImage {
		t.Errorf("unexpected media: %+v", got)
	}
	if got.Width == nil || *got.Width != 800 || got.Height == nil || *got.Height != 600 {
		t.Errorf("dimensions not round-tripped: %v x %v", got.Width, got.Height)
	}
	if got.Duration != nil {
		t.Errorf("Duration = %v, want nil", *got.Duration)
	}
	if got.IsProcessed || got.ProcessingError != "" {
		t.Errorf("new media should be unprocessed without error: %+v", got)
	}
	if got.CreatedAt.IsZero() {
		t.Error("CreatedAt not populated")
	}
}

func TestInsertMedia_RejectsUnknownType(t *testing.T) {
	db := setupTestDB(t)
	err := db.InsertMedia(context.Background(), &Media{Filename: "a.pdf", FilePath: "a.pdf", MediaType: "document"})
	if err == nil {
		t.Error("expected error for unknown media type")
	}
}

func TestGetMedia_NotFound(t *testing.T) {
	db := setupTestDB(t)
	if _, err := db.GetMedia(context.Background(), 42); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetMedia(42) error = %v, want ErrNotFound", err)
	}
}

func TestListQueries(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	img1 := insertTestMedia(t, db, "a.jpg", mediatypes.MediaTypeImage)
	img2 := insertTestMedia(t, db, "b.jpg", mediatypes.MediaTypeImage)
	song := insertTestMedia(t, db, "c.mp3", mediatypes.MediaTypeAudio)
	insertTestMedia(t, db, "d.mp4", mediatypes.MediaTypeVideo)

	for _, id := range []int64{img1.ID, img2.ID, song.ID} {
		tx, err := db.BeginTx(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if err := db.EndTx(tx, db.MarkProcessed(ctx, tx, id, MediaInfo{})); err != nil {
			t.Fatal(err)
		}
	}

	unprocessed, err := db.ListUnprocessed(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(unprocessed) != 1 || unprocessed[0].Filename != "d.mp4" {
		t.Errorf("ListUnprocessed() = %v, want [d.mp4]", unprocessed)
	}

	candidates, err := db.ListBackfillCandidates(ctx, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(candidates) != 2 {
		t.Fatalf("ListBackfillCandidates(false) returned %d items, want 2", len(candidates))
	}
	if candidates[0].ID != img1.ID || candidates[1].ID != img2.ID {
		t.Error("candidates not ordered by id")
	}

	all, err := db.ListMedia(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 4 {
		t.Errorf("ListMedia() returned %d items, want 4", len(all))
	}
}

func TestFindMediaByFilenamePrefix(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	insertTestMedia(t, db, "cat.jpg", mediatypes.MediaTypeImage)
	insertTestMedia(t, db, "cat_2.jpg", mediatypes.MediaTypeImage)
	insertTestMedia(t, db, "100%_dog.png", mediatypes.MediaTypeImage)
	insertTestMedia(t, db, "Cat.png", mediatypes.MediaTypeImage)

	tests := []struct {
		prefix string
		want   int
	}{
		{"cat", 2},
		{"cat_", 1}, // underscore is literal, not a LIKE wildcard
		{"100%", 1},
		{"1", 1},
		{"Cat", 1},
		{"bird", 0},
	}

	for _, tt := range tests {
		t.Run(tt.prefix, func(t *testing.T) {
			got, err := db.FindMediaByFilenamePrefix(ctx, tt.prefix)
			if err != nil {
				t.Fatal(err)
			}
			if len(got) != tt.want {
				t.Errorf("FindMediaByFilenamePrefix(%q) returned %d rows, want %d", tt.prefix, len(got), tt.want)
			}
		})
	}
}

func TestMarkProcessed_FillsInfoAndClearsError(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	m := insertTestMedia(t, db, "clip.mp4", mediatypes.MediaTypeVideo)

	if err := db.RecordProcessingError(ctx, m.ID, "decode failed"); err != nil {
		t.Fatal(err)
	}

	w := 1920
	dur := 12.5
	tx, err := db.BeginTx(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if err := db.EndTx(tx, db.MarkProcessed(ctx, tx, m.ID, MediaInfo{Width: &w, Duration: &dur})); err != nil {
		t.Fatal(err)
	}

	got, err := db.GetMedia(ctx, m.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !got.IsProcessed || got.ProcessingError != "" {
		t.Errorf("state after MarkProcessed: processed=%v error=%q", got.IsProcessed, got.ProcessingError)
	}
	if got.Width == nil || *got.Width != 1920 {
		t.Errorf("Width = %v, want 1920", got.Width)
	}
	if got.Height != nil {
		t.Errorf("Height = %v, want nil", *got.Height)
	}
	if got.Duration == nil || *got.Duration != 12.5 {
		t.Errorf("Duration = %v, want 12.5", got.Duration)
	}
}

func TestRecordProcessingErrorAndReset(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	m := insertTestMedia(t, db, "a.wav", mediatypes.MediaTypeAudio)

	if err := db.RecordProcessingError(ctx, m.ID, "source file not found"); err != nil {
		t.Fatal(err)
	}
	got, _ := db.GetMedia(ctx, m.ID)
	if got.IsProcessed || got.ProcessingError != "source file not found" {
		t.Errorf("after error: %+v", got)
	}

	if err := db.ResetMedia(ctx, m.ID); err != nil {
		t.Fatal(err)
	}
	got, _ = db.GetMedia(ctx, m.ID)
	if got.IsProcessed || got.ProcessingError != "" {
		t.Errorf("after reset: %+v", got)
	}

	if err := db.ResetMedia(ctx, 999); !errors.Is(err, ErrNotFound) {
		t.Errorf("ResetMedia(999) = %v, want ErrNotFound", err)
	}
	if err := db.RecordProcessingError(ctx, 999, "x"); !errors.Is(err, ErrNotFound) {
		t.Errorf("RecordProcessingError(999) = %v, want ErrNotFound", err)
	}
}

func TestDeleteMediaCascades(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	m := insertTestMedia(t, db, "a.jpg", mediatypes.MediaTypeImage)

	tx, err := db.BeginTx(ctx)
	if err != nil {
		t.Fatal(err)
	}
	_, err = db.InsertThumbnail(ctx, tx, &Thumbnail{MediaID: m.ID, Path: "thumbnails/thumb_a.jpg", Width: 256, Height: 256})
	if err := db.EndTx(tx, err); err != nil {
		t.Fatal(err)
	}

	if _, err := db.db.ExecContext(ctx, "DELETE FROM media WHERE id = ?", m.ID); err != nil {
		t.Fatal(err)
	}

	var n int
	if err := db.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM thumbnails").Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("thumbnails left after media delete: %d", n)
	}
}
