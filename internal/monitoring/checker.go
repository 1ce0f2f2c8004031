package monitoring

import (
	"context"
	"time"

	"github.com/skylinedata/rental-ingest/internal/config"
)

// ComponentStatus is one health-check result.
type ComponentStatus struct {
	Name   string `json:"name"`
	OK     bool   `json:"ok"`
	Detail string `json:"detail,omitempty"`
}

// HealthReport aggregates component checks; OK is their conjunction.
type HealthReport struct {
	OK         bool              `json:"ok"`
	Components []ComponentStatus `json:"components"`
	CheckedAt  time.Time         `json:"checked_at"`
}

// Pinger is the store surface the checker needs.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Checker reports component health: database reachability and
// credential presence.
type Checker struct {
	db  Pinger
	cfg *config.Config
}

// NewChecker creates a health checker. db may be nil when running
// without a store.
func NewChecker(db Pinger, cfg *config.Config) *Checker {
	return &Checker{db: db, cfg: cfg}
}

// Check probes each component and returns the combined report.
func (c *Checker) Check(ctx context.Context) HealthReport {
	report := HealthReport{OK: true, CheckedAt: time.Now().UTC()}

	db := ComponentStatus{Name: "database", OK: true}
	if c.db == nil {
		db.OK = false
		db.Detail = "not configured"
	} else if err := c.db.Ping(ctx); err != nil {
		db.OK = false
		db.Detail = err.Error()
	}
	report.Components = append(report.Components, db)

	cred := ComponentStatus{Name: "rapidapi_credential", OK: true}
	if err := c.cfg.RapidAPI.Validate(); err != nil {
		cred.OK = false
		cred.Detail = "missing RapidAPI key"
	}
	report.Components = append(report.Components, cred)

	for _, comp := range report.Components {
		if !comp.OK {
			report.OK = false
		}
	}
	return report
}
