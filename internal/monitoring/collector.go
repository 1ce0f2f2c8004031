// Package monitoring reports on ingestion health: run-log metrics,
// component checks, and webhook alerting.
package monitoring

import (
	"context"
	"sort"
	"time"

	"github.com/rotisserie/eris"

	"github.com/skylinedata/rental-ingest/internal/model"
	"github.com/skylinedata/rental-ingest/internal/store"
)

// MetricsSnapshot holds a point-in-time view of ingestion health.
type MetricsSnapshot struct {
	// Run counts within the lookback window.
	RunsTotal    int     `json:"runs_total"`
	RunsComplete int     `json:"runs_complete"`
	RunsFailed   int     `json:"runs_failed"`
	RunsRunning  int     `json:"runs_running"`
	FailRate     float64 `json:"fail_rate"`

	// Volume and anomaly counters summed over the window.
	RowsLoaded        int `json:"rows_loaded"`
	RecordsFetched    int `json:"records_fetched"`
	Duplicates        int `json:"duplicates"`
	MissingIDs        int `json:"missing_ids"`
	CoercionFailures  int `json:"coercion_failures"`
	AbortedPartitions int `json:"aborted_partitions"`

	// SourcesFailedLatest lists sources whose most recent run failed,
	// regardless of the window.
	SourcesFailedLatest []string `json:"sources_failed_latest,omitempty"`

	// Metadata.
	LookbackHours int       `json:"lookback_hours"`
	CollectedAt   time.Time `json:"collected_at"`
}

// RunLister abstracts the run-log read the collector needs.
type RunLister interface {
	ListRuns(ctx context.Context, filter store.RunFilter) ([]model.IngestRun, error)
}

// Collector gathers metrics from the run log.
type Collector struct {
	runs RunLister
}

// NewCollector creates a new metrics collector.
func NewCollector(runs RunLister) *Collector {
	return &Collector{runs: runs}
}

// collectSample bounds how much of the run log one snapshot reads.
const collectSample = 1000

// Collect computes a snapshot over runs started within the lookback
// window. A lookback of zero or less covers the whole sampled log.
func (c *Collector) Collect(ctx context.Context, lookbackHours int) (*MetricsSnapshot, error) {
	snap := &MetricsSnapshot{
		LookbackHours: lookbackHours,
		CollectedAt:   time.Now().UTC(),
	}

	runs, err := c.runs.ListRuns(ctx, store.RunFilter{Limit: collectSample})
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list runs")
	}

	var cutoff time.Time
	if lookbackHours > 0 {
		cutoff = time.Now().UTC().Add(-time.Duration(lookbackHours) * time.Hour)
	}

	latestSeen := make(map[string]bool)
	for _, r := range runs {
		// Runs come back newest first, so the first run seen per source
		// is its latest.
		if !latestSeen[r.Source] {
			latestSeen[r.Source] = true
			if r.Status == model.RunStatusFailed {
				snap.SourcesFailedLatest = append(snap.SourcesFailedLatest, r.Source)
			}
		}

		if !cutoff.IsZero() && r.StartedAt.Before(cutoff) {
			continue
		}

		snap.RunsTotal++
		switch r.Status {
		case model.RunStatusComplete:
			snap.RunsComplete++
		case model.RunStatusFailed:
			snap.RunsFailed++
		case model.RunStatusRunning:
			snap.RunsRunning++
		}

		snap.RowsLoaded += r.RowsLoaded
		snap.RecordsFetched += r.RecordsFetched
		snap.Duplicates += r.Duplicates
		snap.MissingIDs += r.MissingIDs
		snap.CoercionFailures += r.CoercionFailures
		snap.AbortedPartitions += r.AbortedPartitions
	}

	if finished := snap.RunsComplete + snap.RunsFailed; finished > 0 {
		snap.FailRate = float64(snap.RunsFailed) / float64(finished)
	}

	sort.Strings(snap.SourcesFailedLatest)
	return snap, nil
}
