package pipeline

import (
	"time"

	"github.com/google/uuid"

	"media-pipeline/internal/logging"
	"media-pipeline/internal/metrics"
)

// Outcome is the result of one item in a pass.
type Outcome string

// Item outcomes.
const (
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeFailed    Outcome = "failed"
	OutcomeSkipped   Outcome = "skipped"
)

// ItemResult records what happened to one item.
type ItemResult struct {
	MediaID int64   `json:"mediaId,omitempty"`
	Name    string  `json:"name"`
	Outcome Outcome `json:"outcome"`
	Reason  string  `json:"reason,omitempty"`
}

// Report summarises a pass run.
type Report struct {
	RunID       uuid.UUID     `json:"runId"`
	Pass        string        `json:"pass"`
	StartedAt   time.Time     `json:"startedAt"`
	Duration    time.Duration `json:"duration"`
	Total       int           `json:"total"`
	Succeeded   int           `json:"succeeded"`
	Failed      int           `json:"failed"`
	Skipped     int           `json:"skipped"`
	Unmatched   int           `json:"unmatched,omitempty"`
	Ambiguous   int           `json:"ambiguous,omitempty"`
	Interrupted bool          `json:"interrupted,omitempty"`
	Items       []ItemResult  `json:"items"`
}

func newReport(pass string) *Report {
	return &Report{
		RunID:     uuid.New(),
		Pass:      pass,
		StartedAt: time.Now(),
	}
}

// prefix tags log lines with the pass and a short run id.
func (r *Report) prefix() string {
	return "[" + r.Pass + " " + r.RunID.String()[:8] + "]"
}

func (r *Report) add(item ItemResult) {
	r.Items = append(r.Items, item)
	r.Total++
	switch item.Outcome {
	case OutcomeSucceeded:
		r.Succeeded++
	case OutcomeFailed:
		r.Failed++
	case OutcomeSkipped:
		r.Skipped++
	}
	metrics.PassItemsTotal.WithLabelValues(r.Pass, string(item.Outcome)).Inc()

	switch item.Outcome {
	case OutcomeFailed:
		logging.Warn("%s %s: failed: %s", r.prefix(), item.Name, item.Reason)
	case OutcomeSkipped:
		logging.Info("%s %s: skipped: %s", r.prefix(), item.Name, item.Reason)
	default:
		logging.Info("%s %s: ok", r.prefix(), item.Name)
	}
}

func (r *Report) finish() {
	r.Duration = time.Since(r.StartedAt)
	metrics.PassLastRunTimestamp.WithLabelValues(r.Pass).Set(float64(time.Now().Unix()))
	metrics.PassLastRunDuration.WithLabelValues(r.Pass).Set(r.Duration.Seconds())

	status := "complete"
	if r.Interrupted {
		status = "interrupted"
	}
	// The summary is printed at every log level.
	logging.Printf("[SUMMARY] %s Pass %s: %d items, %d succeeded, %d failed, %d skipped in %v",
		r.prefix(), status, r.Total, r.Succeeded, r.Failed, r.Skipped, r.Duration.Round(time.Millisecond))
	if r.Unmatched > 0 || r.Ambiguous > 0 {
		logging.Printf("[SUMMARY] %s %d thumbnails had no matching media, %d matched more than one", r.prefix(), r.Unmatched, r.Ambiguous)
	}
}
