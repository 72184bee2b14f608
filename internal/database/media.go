package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"media-pipeline/internal/mediatypes"
)

// querier is satisfied by *sql.DB and *Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const mediaColumns = `id, filename, file_path, media_type, is_processed, processing_error,
	width, height, duration, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMedia(row rowScanner) (*Media, error) {
	var (
		m                  Media
		mediaType          string
		procErr            sql.NullString
		width, height      sql.NullInt64
		duration           sql.NullFloat64
		createdAt, updated int64
	)

	if err := row.Scan(&m.ID, &m.Filename, &m.FilePath, &mediaType, &m.IsProcessed, &procErr,
		&width, &height, &duration, &createdAt, &updated); err != nil {
		return nil, err
	}

	m.MediaType = mediatypes.MediaType(mediaType)
	m.ProcessingError = procErr.String
	if width.Valid {
		w := int(width.Int64)
		m.Width = &w
	}
	if height.Valid {
		h := int(height.Int64)
		m.Height = &h
	}
	if duration.Valid {
		dur := duration.Float64
		m.Duration = &dur
	}
	m.CreatedAt = time.Unix(createdAt, 0)
	m.UpdatedAt = time.Unix(updated, 0)
	return &m, nil
}

func (d *Database) listMedia(ctx context.Context, op, where string, args ...any) (media []Media, err error) {
	start := time.Now()
	defer func() { recordQuery(op, start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	query := "SELECT " + mediaColumns + " FROM media"
	if where != "" {
		query += " WHERE " + where
	}
	query += " ORDER BY id"

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		m, scanErr := scanMedia(rows)
		if scanErr != nil {
			err = scanErr
			return nil, err
		}
		media = append(media, *m)
	}
	err = rows.Err()
	return media, err
}

// InsertMedia creates a media record and sets m.ID. It is used by ingestion
// collaborators; the passes never create media.
func (d *Database) InsertMedia(ctx context.Context, m *Media) (err error) {
	start := time.Now()
	defer func() { recordQuery("insert_media", start, err) }()

	if _, err = mediatypes.Parse(string(m.MediaType)); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := d.db.ExecContext(ctx, `
		INSERT INTO media (filename, file_path, media_type, is_processed, processing_error, width, height, duration)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, m.Filename, m.FilePath, string(m.MediaType), m.IsProcessed, nullString(m.ProcessingError),
		m.Width, m.Height, m.Duration)
	if err != nil {
		return err
	}

	m.ID, err = res.LastInsertId()
	return err
}

// GetMedia returns one media record, or ErrNotFound.
func (d *Database) GetMedia(ctx context.Context, id int64) (m *Media, err error) {
	start := time.Now()
	defer func() { recordQuery("get_media", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	m, err = scanMedia(d.db.QueryRowContext(ctx, "SELECT "+mediaColumns+" FROM media WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("media %d: %w", id, ErrNotFound)
	}
	return m, err
}

// ListMedia returns every media record ordered by id.
func (d *Database) ListMedia(ctx context.Context) ([]Media, error) {
	return d.listMedia(ctx, "list_media", "")
}

// ListUnprocessed returns media with is_processed = false, including items
// whose last attempt failed.
func (d *Database) ListUnprocessed(ctx context.Context) ([]Media, error) {
	return d.listMedia(ctx, "list_unprocessed", "is_processed = 0")
}

// ListBackfillCandidates returns processed image media. With missingOnly,
// only items whose feature row lacks deep features (or has no row) are
// returned.
func (d *Database) ListBackfillCandidates(ctx context.Context, missingOnly bool) ([]Media, error) {
	where := "media_type = ? AND is_processed = 1"
	if missingOnly {
		where += ` AND NOT EXISTS (
			SELECT 1 FROM image_features f
			WHERE f.media_id = media.id AND f.deep_features IS NOT NULL
		)`
	}
	return d.listMedia(ctx, "list_backfill_candidates", where, string(mediatypes.MediaTypeImage))
}

// FindMediaByFilenamePrefix returns media whose filename starts with prefix,
// compared byte for byte (no LIKE wildcards or case folding).
func (d *Database) FindMediaByFilenamePrefix(ctx context.Context, prefix string) ([]Media, error) {
	return d.listMedia(ctx, "find_media_by_prefix", "substr(filename, 1, length(?)) = ?", prefix, prefix)
}

// MarkProcessed moves an item to the processed state inside tx, clearing any
// stale error and filling the descriptive fields present in info.
func (d *Database) MarkProcessed(ctx context.Context, tx *Tx, id int64, info MediaInfo) (err error) {
	start := time.Now()
	defer func() { recordQuery("update_media_state", start, err) }()

	err = execOne(ctx, tx, `
		UPDATE media SET
			is_processed = 1,
			processing_error = NULL,
			width = COALESCE(?, width),
			height = COALESCE(?, height),
			duration = COALESCE(?, duration),
			updated_at = strftime('%s', 'now')
		WHERE id = ?
	`, info.Width, info.Height, info.Duration, id)
	return err
}

// SetProcessed flips is_processed without touching anything else.
func (d *Database) SetProcessed(ctx context.Context, tx *Tx, id int64) (err error) {
	start := time.Now()
	defer func() { recordQuery("update_media_state", start, err) }()

	err = execOne(ctx, tx, `
		UPDATE media SET is_processed = 1, updated_at = strftime('%s', 'now') WHERE id = ?
	`, id)
	return err
}

// RecordProcessingError marks an item failed in its own statement so the
// marker survives the rollback of the item's transaction.
func (d *Database) RecordProcessingError(ctx context.Context, id int64, msg string) (err error) {
	start := time.Now()
	defer func() { recordQuery("record_processing_error", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	err = execOne(ctx, d.db, `
		UPDATE media SET is_processed = 0, processing_error = ?, updated_at = strftime('%s', 'now')
		WHERE id = ?
	`, msg, id)
	return err
}

// ResetMedia returns an item to the unprocessed state so the next baseline
// pass picks it up again. Feature and thumbnail rows are kept; the rerun
// replaces them.
func (d *Database) ResetMedia(ctx context.Context, id int64) (err error) {
	start := time.Now()
	defer func() { recordQuery("update_media_state", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	err = execOne(ctx, d.db, `
		UPDATE media SET is_processed = 0, processing_error = NULL, updated_at = strftime('%s', 'now')
		WHERE id = ?
	`, id)
	return err
}

// execOne runs an update that must touch exactly one media row.
func execOne(ctx context.Context, q querier, query string, args ...any) error {
	res, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("media %v: %w", args[len(args)-1], ErrNotFound)
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
