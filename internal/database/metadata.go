package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// GetMetadata retrieves a metadata value by key, or ErrNotFound.
func (d *Database) GetMetadata(ctx context.Context, key string) (value string, err error) {
	start := time.Now()
	defer func() { recordQuery("get_metadata", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	err = d.db.QueryRowContext(ctx, "SELECT COALESCE(value, '') FROM metadata WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("metadata %q: %w", key, ErrNotFound)
	}
	return value, err
}

// SetMetadata sets a metadata key-value pair.
func (d *Database) SetMetadata(ctx context.Context, key, value string) (err error) {
	start := time.Now()
	defer func() { recordQuery("set_metadata", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err = d.db.ExecContext(ctx, `
		INSERT INTO metadata (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	return err
}

func lastRunKey(pass string) string {
	return "last_" + pass + "_run"
}

// GetLastRun returns when a pass last completed. Returns zero time if never run.
func (d *Database) GetLastRun(ctx context.Context, pass string) (time.Time, error) {
	value, err := d.GetMetadata(ctx, lastRunKey(pass))
	if errors.Is(err, ErrNotFound) || (err == nil && value == "") {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}
	return time.Parse(time.RFC3339, value)
}

// SetLastRun stores when a pass last completed. A zero time clears it.
func (d *Database) SetLastRun(ctx context.Context, pass string, t time.Time) error {
	if t.IsZero() {
		return d.SetMetadata(ctx, lastRunKey(pass), "")
	}
	return d.SetMetadata(ctx, lastRunKey(pass), t.UTC().Format(time.RFC3339))
}
