package database

import (
	"context"
	"time"

	"media-pipeline/internal/logging"
	"media-pipeline/internal/metrics"
)

// MediaStats counts media items by type and processing state. The state
// names match the pipeline's: unprocessed, processed and failed.
func (d *Database) MediaStats(ctx context.Context) (stats metrics.Stats, err error) {
	start := time.Now()
	defer func() { recordQuery("media_stats", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, err := d.db.QueryContext(ctx, `
		SELECT media_type,
			CASE
				WHEN is_processed = 1 THEN 'processed'
				WHEN processing_error IS NOT NULL THEN 'failed'
				ELSE 'unprocessed'
			END AS state,
			COUNT(*)
		FROM media
		GROUP BY media_type, state
		ORDER BY media_type, state
	`)
	if err != nil {
		return stats, err
	}
	defer rows.Close()

	for rows.Next() {
		var sc metrics.StateCount
		if err = rows.Scan(&sc.MediaType, &sc.State, &sc.Count); err != nil {
			return stats, err
		}
		stats.Counts = append(stats.Counts, sc)
	}
	err = rows.Err()
	return stats, err
}

// GetStats implements metrics.StatsProvider. Errors are logged and yield
// empty stats.
func (d *Database) GetStats() metrics.Stats {
	d.UpdateDBMetrics()

	stats, err := d.MediaStats(context.Background())
	if err != nil {
		logging.Warn("Failed to collect media stats: %v", err)
	}
	return stats
}
