package pipeline

import (
	"media-pipeline/internal/database"
	"media-pipeline/internal/mediatypes"
)

// State is the processing state of a media item, derived from its
// is_processed flag and processing_error.
type State string

// Processing states.
const (
	StateUnprocessed State = "unprocessed"
	StateProcessed   State = "processed"
	StateFailed      State = "failed"
)

// StateOf derives the state of m.
func StateOf(m *database.Media) State {
	switch {
	case m.IsProcessed:
		return StateProcessed
	case m.ProcessingError != "":
		return StateFailed
	default:
		return StateUnprocessed
	}
}

// EligibleForBaseline reports whether the baseline pass should process m.
// Failed items stay eligible; there is no retry limit.
func EligibleForBaseline(m *database.Media) bool {
	return !m.IsProcessed
}

// EligibleForBackfill reports whether the deep backfill pass may process m.
func EligibleForBackfill(m *database.Media) bool {
	return m.IsProcessed && m.MediaType == mediatypes.MediaTypeImage
}
