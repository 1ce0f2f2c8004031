// Package store persists the listing tables and the ingest run log. The
// Postgres driver is the production target; SQLite serves local work
// without a server.
package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/skylinedata/rental-ingest/internal/config"
	"github.com/skylinedata/rental-ingest/internal/model"
)

// RunFilter narrows ListRuns.
type RunFilter struct {
	Source string `json:"source,omitempty"`
	Status string `json:"status,omitempty"`
	Limit  int    `json:"limit,omitempty"`
}

// Store is the persistence surface for ingestion and the status tooling.
type Store interface {
	// ReplaceListings swaps a destination table's contents for the given
	// rows in one transaction: prior rows are gone on commit, intact on
	// rollback.
	ReplaceListings(ctx context.Context, table string, data *model.Table) (int64, error)

	// Run log
	CreateRun(ctx context.Context, run *model.IngestRun) error
	UpdateRun(ctx context.Context, run *model.IngestRun) error
	GetRun(ctx context.Context, id string) (*model.IngestRun, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.IngestRun, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

// Open selects a driver from config: "postgres" (the default) or
// "sqlite".
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	switch cfg.Driver {
	case "", "postgres":
		dsn, err := cfg.DSN()
		if err != nil {
			return nil, err
		}
		return NewPostgres(ctx, dsn)
	case "sqlite":
		return NewSQLite(cfg.SQLitePath)
	}
	return nil, eris.Errorf("store: unknown driver %q", cfg.Driver)
}

// conformRows renders a table's rows for the destination. Values that do
// not conform to their column's declared type are written as NULL; the
// count of nulled cells comes back so callers can log the data loss.
func conformRows(data *model.Table) ([][]any, int) {
	nulled := 0
	out := make([][]any, len(data.Rows))
	for i, row := range data.Rows {
		r := make([]any, len(row))
		for j, cell := range row {
			v, ok := data.Columns[j].Coerce(cell)
			if !ok {
				nulled++
				v = nil
			}
			r[j] = v
		}
		out[i] = r
	}
	return out, nulled
}
