package database

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"media-pipeline/internal/mediatypes"
)

func setupTestDB(t testing.TB) *Database {
	t.Helper()

	db, err := New(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func insertTestMedia(t testing.TB, db *Database, filename string, mt mediatypes.MediaType) *Media {
	t.Helper()

	m := &Media{Filename: filename, FilePath: "uploads/" + filename, MediaType: mt}
	if err := db.InsertMedia(context.Background(), m); err != nil {
		t.Fatalf("InsertMedia(%s) failed: %v", filename, err)
	}
	return m
}

func TestNew(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "media.db")

	db, err := New(context.Background(), dbPath)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	defer db.Close()

	if _, err := os.Stat(dbPath); err != nil {
		t.Errorf("database file was not created: %v", err)
	}
	if db.Path() != dbPath {
		t.Errorf("Path() = %q, want %q", db.Path(), dbPath)
	}

	for _, table := range []string{"media", "image_features", "audio_features", "video_features", "thumbnails", "metadata"} {
		var name string
		err := db.db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		if err != nil {
			t.Errorf("table %s missing: %v", table, err)
		}
	}
}

func TestNew_ReopenIsIdempotent(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "media.db")

	db, err := New(context.Background(), dbPath)
	if err != nil {
		t.Fatalf("first New() failed: %v", err)
	}
	insertTestMedia(t, db, "a.jpg", mediatypes.MediaTypeImage)
	db.Close()

	db, err = New(context.Background(), dbPath)
	if err != nil {
		t.Fatalf("second New() failed: %v", err)
	}
	defer db.Close()

	all, err := db.ListMedia(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 1 {
		t.Errorf("got %d media after reopen, want 1", len(all))
	}
}

func TestMigration_AddsKeyframeTimestamps(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	// Rebuild video_features the way older releases created it.
	for _, stmt := range []string{
		"DROP TABLE video_features",
		`CREATE TABLE video_features (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			media_id INTEGER NOT NULL UNIQUE,
			keyframe_features TEXT,
			motion_features TEXT,
			scene_stats TEXT,
			combined_features TEXT
		)`,
	} {
		if _, err := db.db.ExecContext(ctx, stmt); err != nil {
			t.Fatal(err)
		}
	}

	if err := db.runMigrations(ctx); err != nil {
		t.Fatalf("runMigrations() failed: %v", err)
	}

	var exists bool
	err := db.db.QueryRowContext(ctx,
		"SELECT COUNT(*) > 0 FROM pragma_table_info('video_features') WHERE name='keyframe_timestamps'").Scan(&exists)
	if err != nil {
		t.Fatal(err)
	}
	if !exists {
		t.Error("keyframe_timestamps column was not added")
	}

	// Running again is a no-op.
	if err := db.runMigrations(ctx); err != nil {
		t.Errorf("second runMigrations() failed: %v", err)
	}
}

func TestEndTx_CommitAndRollback(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	m := insertTestMedia(t, db, "a.jpg", mediatypes.MediaTypeImage)

	tx, err := db.BeginTx(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if err := db.SetProcessed(ctx, tx, m.ID); err != nil {
		t.Fatal(err)
	}
	boom := errors.New("boom")
	if err := db.EndTx(tx, boom); !errors.Is(err, boom) {
		t.Fatalf("EndTx(rollback) = %v, want boom", err)
	}

	got, err := db.GetMedia(ctx, m.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.IsProcessed {
		t.Error("rolled back update was persisted")
	}

	tx, err = db.BeginTx(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if err := db.SetProcessed(ctx, tx, m.ID); err != nil {
		t.Fatal(err)
	}
	if err := db.EndTx(tx, nil); err != nil {
		t.Fatalf("EndTx(commit) = %v", err)
	}

	got, err = db.GetMedia(ctx, m.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !got.IsProcessed {
		t.Error("committed update was lost")
	}
}

func TestDiagnoseDatabasePermissions(t *testing.T) {
	dir := t.TempDir()
	if err := diagnoseDatabasePermissions(filepath.Join(dir, "x.db")); err != nil {
		t.Errorf("writable dir: unexpected error %v", err)
	}
	if err := diagnoseDatabasePermissions(filepath.Join(dir, "missing", "x.db")); err == nil {
		t.Error("missing dir: expected an error")
	}
}
