package model

import "time"

// Run status values recorded in the ingest run log.
const (
	RunStatusRunning  = "running"
	RunStatusComplete = "complete"
	RunStatusFailed   = "failed"
)

// IngestRun is one engine execution for one source, as persisted to the
// run log and exposed by the status surfaces.
type IngestRun struct {
	ID                string     `json:"id"`
	Source            string     `json:"source"`
	Status            string     `json:"status"`
	StartedAt         time.Time  `json:"started_at"`
	CompletedAt       *time.Time `json:"completed_at,omitempty"`
	Partitions        int        `json:"partitions"`
	Pages             int        `json:"pages"`
	RecordsFetched    int        `json:"records_fetched"`
	RowsLoaded        int        `json:"rows_loaded"`
	Duplicates        int        `json:"duplicates"`
	MissingIDs        int        `json:"missing_ids"`
	CoercionFailures  int        `json:"coercion_failures"`
	AbortedPartitions int        `json:"aborted_partitions"`
	Error             string     `json:"error,omitempty"`
}

// Duration returns the run's elapsed time, zero if still running.
func (r IngestRun) Duration() time.Duration {
	if r.CompletedAt == nil {
		return 0
	}
	return r.CompletedAt.Sub(r.StartedAt)
}
