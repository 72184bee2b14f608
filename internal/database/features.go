package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"media-pipeline/internal/features"
	"media-pipeline/internal/mediatypes"
)

var featureTables = map[mediatypes.MediaType]string{
	mediatypes.MediaTypeImage: "image_features",
	mediatypes.MediaTypeAudio: "audio_features",
	mediatypes.MediaTypeVideo: "video_features",
}

func featureTable(mt mediatypes.MediaType) (string, []string, error) {
	table, ok := featureTables[mt]
	if !ok {
		return "", nil, fmt.Errorf("no feature table for media type %q", mt)
	}
	return table, features.Families(mt), nil
}

// UpsertFeatures writes the complete feature row for f.MediaID, replacing any
// existing row. The combined vector is recomputed from the other families in
// f.Set before writing, so a row never carries a combined vector that its own
// fields do not explain.
func (d *Database) UpsertFeatures(ctx context.Context, tx *Tx, f *Features) (err error) {
	start := time.Now()
	defer func() { recordQuery("upsert_features", start, err) }()

	table, cols, err := featureTable(f.MediaType)
	if err != nil {
		return err
	}

	set := f.Set.Recombine(f.MediaType)

	placeholders := make([]string, len(cols))
	updates := make([]string, len(cols))
	args := make([]any, 0, len(cols)+1)
	args = append(args, f.MediaID)
	for i, c := range cols {
		placeholders[i] = "?"
		updates[i] = fmt.Sprintf("%s = excluded.%s", c, c)
		args = append(args, set.Get(c))
	}

	query := fmt.Sprintf(`INSERT INTO %s (media_id, %s) VALUES (?, %s)
		ON CONFLICT(media_id) DO UPDATE SET %s`,
		table, strings.Join(cols, ", "), strings.Join(placeholders, ", "), strings.Join(updates, ", "))

	_, err = tx.ExecContext(ctx, query, args...)
	return err
}

// GetFeatures returns the feature row of a media item, or ErrNotFound.
func (d *Database) GetFeatures(ctx context.Context, mediaID int64, mt mediatypes.MediaType) (*Features, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()
	return d.getFeatures(ctx, d.db, mediaID, mt)
}

func (d *Database) getFeatures(ctx context.Context, q querier, mediaID int64, mt mediatypes.MediaType) (f *Features, err error) {
	start := time.Now()
	defer func() {
		if errors.Is(err, ErrNotFound) {
			recordQuery("get_features", start, nil)
			return
		}
		recordQuery("get_features", start, err)
	}()

	table, cols, err := featureTable(mt)
	if err != nil {
		return nil, err
	}

	raw := make([]sql.NullString, len(cols))
	dest := make([]any, len(cols))
	for i := range raw {
		dest[i] = &raw[i]
	}

	query := fmt.Sprintf("SELECT %s FROM %s WHERE media_id = ?", strings.Join(cols, ", "), table)
	err = q.QueryRowContext(ctx, query, mediaID).Scan(dest...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s for media %d: %w", table, mediaID, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	f = &Features{MediaID: mediaID, MediaType: mt, Set: make(features.Set, len(cols))}
	for i, c := range cols {
		if !raw[i].Valid {
			continue
		}
		a, perr := features.Parse(raw[i].String)
		if perr != nil {
			return nil, fmt.Errorf("%s.%s for media %d: %w", table, c, mediaID, perr)
		}
		if a != nil {
			f.Set[c] = a
		}
	}
	return f, nil
}

// MergeFeature sets one feature family on an existing row and recomputes the
// combined vector from the row's stored fields. Only those two columns are
// written; every other family is left exactly as stored. A row is created if
// none exists yet.
func (d *Database) MergeFeature(ctx context.Context, tx *Tx, mediaID int64, mt mediatypes.MediaType, family string, a *features.Array) (err error) {
	start := time.Now()
	defer func() { recordQuery("merge_features", start, err) }()

	if family == features.Combined {
		return errors.New("combined features are derived and cannot be merged directly")
	}

	table, cols, err := featureTable(mt)
	if err != nil {
		return err
	}
	known := false
	for _, c := range cols {
		known = known || c == family
	}
	if !known {
		return fmt.Errorf("%s has no %s column", table, family)
	}

	existing, err := d.getFeatures(ctx, tx, mediaID, mt)
	switch {
	case errors.Is(err, ErrNotFound):
		existing = &Features{MediaID: mediaID, MediaType: mt, Set: features.Set{}}
		err = nil
	case err != nil:
		return err
	}

	merged := existing.Set.Recombine(mt)
	merged[family] = a
	merged = merged.Recombine(mt)

	query := fmt.Sprintf(`INSERT INTO %s (media_id, %s, %s) VALUES (?, ?, ?)
		ON CONFLICT(media_id) DO UPDATE SET %s = excluded.%s, %s = excluded.%s`,
		table, family, features.Combined,
		family, family, features.Combined, features.Combined)

	_, err = tx.ExecContext(ctx, query, mediaID, merged.Get(family), merged.Get(features.Combined))
	return err
}
