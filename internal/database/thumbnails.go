package database

import (
	"context"
	"time"
)

// InsertThumbnail records a thumbnail artifact. It reports false without
// error when the (media, path) pair is already recorded, so repeated
// inserts of the same artifact are harmless.
func (d *Database) InsertThumbnail(ctx context.Context, tx *Tx, t *Thumbnail) (inserted bool, err error) {
	start := time.Now()
	defer func() { recordQuery("insert_thumbnail", start, err) }()

	thumbType := t.Type
	if thumbType == "" {
		thumbType = DefaultThumbnailType
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO thumbnails (media_id, thumbnail_path, thumbnail_type, width, height)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(media_id, thumbnail_path) DO NOTHING
	`, t.MediaID, t.Path, thumbType, t.Width, t.Height)
	if err != nil {
		return false, err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 0 {
		return false, nil
	}

	t.Type = thumbType
	t.ID, err = res.LastInsertId()
	return err == nil, err
}

// ThumbnailExists reports whether the artifact at path is already recorded
// for mediaID.
func (d *Database) ThumbnailExists(ctx context.Context, mediaID int64, path string) (exists bool, err error) {
	start := time.Now()
	defer func() { recordQuery("thumbnail_exists", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	err = d.db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM thumbnails WHERE media_id = ? AND thumbnail_path = ?)
	`, mediaID, path).Scan(&exists)
	return exists, err
}

// ListThumbnails returns the thumbnails of a media item, oldest first.
func (d *Database) ListThumbnails(ctx context.Context, mediaID int64) (thumbs []Thumbnail, err error) {
	start := time.Now()
	defer func() { recordQuery("list_thumbnails", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, err := d.db.QueryContext(ctx, `
		SELECT id, media_id, thumbnail_path, thumbnail_type, width, height, created_at
		FROM thumbnails WHERE media_id = ? ORDER BY id
	`, mediaID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var t Thumbnail
		var createdAt int64
		if err = rows.Scan(&t.ID, &t.MediaID, &t.Path, &t.Type, &t.Width, &t.Height, &createdAt); err != nil {
			return nil, err
		}
		t.CreatedAt = time.Unix(createdAt, 0)
		thumbs = append(thumbs, t)
	}
	err = rows.Err()
	return thumbs, err
}
