package metrics

import (
	"time"

	"media-pipeline/internal/logging"
)

// StatsProvider interface for collecting stats
type StatsProvider interface {
	GetStats() Stats
}

// StateCount is the number of media items of one type in one processing state.
type StateCount struct {
	MediaType string
	State     string
	Count     int
}

// Stats holds the current statistics
type Stats struct {
	Counts []StateCount
}

// Total returns the number of media items across all types and states.
func (s Stats) Total() int {
	total := 0
	for _, c := range s.Counts {
		total += c.Count
	}
	return total
}

// Collector periodically collects and updates metrics
type Collector struct {
	statsProvider StatsProvider
	interval      time.Duration
	stopChan      chan struct{}
}

// NewCollector creates a new metrics collector
func NewCollector(provider StatsProvider, interval time.Duration) *Collector {
	return &Collector{
		statsProvider: provider,
		interval:      interval,
		stopChan:      make(chan struct{}),
	}
}

// Start begins the metrics collection loop
func (c *Collector) Start() {
	go c.collectLoop()
}

// Stop stops the metrics collection
func (c *Collector) Stop() {
	close(c.stopChan)
}

func (c *Collector) collectLoop() {
	// Collect immediately on start
	c.collect()

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.collect()
		case <-c.stopChan:
			return
		}
	}
}

func (c *Collector) collect() {
	if c.statsProvider == nil {
		return
	}

	stats := c.statsProvider.GetStats()

	// Groups with no items are absent from stats; reset every series so an
	// emptied group reads zero.
	for _, mt := range mediaTypeLabels {
		for _, state := range stateLabels {
			MediaItemsTotal.WithLabelValues(mt, state).Set(0)
		}
	}
	for _, sc := range stats.Counts {
		MediaItemsTotal.WithLabelValues(sc.MediaType, sc.State).Set(float64(sc.Count))
	}

	logging.Debug("Metrics collected: media items=%d", stats.Total())
}
