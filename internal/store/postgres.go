package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/skylinedata/rental-ingest/internal/db"
	"github.com/skylinedata/rental-ingest/internal/model"
)

// schemaName is the Postgres schema holding every ingestion table.
const schemaName = "raw"

// PostgresStore implements Store on a pgx pool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
	log     *zap.Logger
}

// NewPostgres opens a pooled Postgres store and verifies connectivity.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pool, err := db.Connect(ctx, connString)
	if err != nil {
		return nil, err
	}
	return &PostgresStore{
		pool:    pool,
		closeFn: pool.Close,
		log:     zap.L().With(zap.String("component", "store")),
	}, nil
}

var postgresTypes = map[model.ColumnType]string{
	model.TypeString:    "TEXT",
	model.TypeInt32:     "INTEGER",
	model.TypeFloat32:   "REAL",
	model.TypeBool:      "BOOLEAN",
	model.TypeTimestamp: "TIMESTAMPTZ",
}

const postgresRunLog = `
CREATE TABLE IF NOT EXISTS raw.ingest_runs (
	id                 TEXT PRIMARY KEY,
	source             TEXT NOT NULL,
	status             TEXT NOT NULL DEFAULT 'running',
	started_at         TIMESTAMPTZ NOT NULL,
	completed_at       TIMESTAMPTZ,
	partitions         INTEGER NOT NULL DEFAULT 0,
	pages              INTEGER NOT NULL DEFAULT 0,
	records_fetched    INTEGER NOT NULL DEFAULT 0,
	rows_loaded        INTEGER NOT NULL DEFAULT 0,
	duplicates         INTEGER NOT NULL DEFAULT 0,
	missing_ids        INTEGER NOT NULL DEFAULT 0,
	coercion_failures  INTEGER NOT NULL DEFAULT 0,
	aborted_partitions INTEGER NOT NULL DEFAULT 0,
	error              TEXT
);

CREATE INDEX IF NOT EXISTS idx_ingest_runs_source ON raw.ingest_runs(source);
CREATE INDEX IF NOT EXISTS idx_ingest_runs_started_at ON raw.ingest_runs(started_at DESC);
`

func postgresMigration() string {
	var b strings.Builder
	b.WriteString("CREATE SCHEMA IF NOT EXISTS " + schemaName + ";\n\n")
	for _, tbl := range model.ListingTables() {
		b.WriteString(createTableSQL(schemaName+"."+tbl.Name, tbl.Columns, postgresTypes))
		b.WriteString(";\n\n")
	}
	b.WriteString(postgresRunLog)
	return b.String()
}

// Migrate creates the raw schema, the listing tables, and the run log,
// idempotently.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration())
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) qualify(table string) string {
	return schemaName + "." + table
}

// ReplaceListings swaps a listing table's contents inside one
// transaction: TRUNCATE, COPY the new rows, commit. A failure rolls back
// leaving the prior rows intact.
func (s *PostgresStore) ReplaceListings(ctx context.Context, table string, data *model.Table) (int64, error) {
	qualified := s.qualify(table)
	rows, nulled := conformRows(data)

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrapf(err, "postgres: begin replace %s", qualified)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, "TRUNCATE "+db.TableIdent(qualified).Sanitize()); err != nil {
		return 0, eris.Wrapf(err, "postgres: truncate %s", qualified)
	}

	n, err := db.CopyInto(ctx, tx, qualified, data.Columns.Names(), rows)
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrapf(err, "postgres: commit replace %s", qualified)
	}

	if nulled > 0 {
		s.log.Warn("non-conforming values written as NULL",
			zap.String("table", qualified),
			zap.Int("cells", nulled),
		)
	}
	return n, nil
}

func (s *PostgresStore) CreateRun(ctx context.Context, run *model.IngestRun) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO raw.ingest_runs (id, source, status, started_at) VALUES ($1, $2, $3, $4)`,
		run.ID, run.Source, run.Status, run.StartedAt,
	)
	return eris.Wrapf(err, "postgres: insert run %s", run.ID)
}

func (s *PostgresStore) UpdateRun(ctx context.Context, run *model.IngestRun) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE raw.ingest_runs SET status = $1, completed_at = $2, partitions = $3, pages = $4, records_fetched = $5, rows_loaded = $6, duplicates = $7, missing_ids = $8, coercion_failures = $9, aborted_partitions = $10, error = $11 WHERE id = $12`,
		run.Status, run.CompletedAt, run.Partitions, run.Pages, run.RecordsFetched,
		run.RowsLoaded, run.Duplicates, run.MissingIDs, run.CoercionFailures,
		run.AbortedPartitions, nullIfEmpty(run.Error), run.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update run %s", run.ID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("run not found: %s", run.ID)
	}
	return nil
}

const runColumns = `id, source, status, started_at, completed_at, partitions, pages, records_fetched, rows_loaded, duplicates, missing_ids, coercion_failures, aborted_partitions, error`

func (s *PostgresStore) GetRun(ctx context.Context, id string) (*model.IngestRun, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+runColumns+` FROM raw.ingest_runs WHERE id = $1`, id)
	run, err := scanRun(row.Scan)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get run %s", id)
	}
	return run, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.IngestRun, error) {
	query := `SELECT ` + runColumns + ` FROM raw.ingest_runs WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Source != "" {
		query += fmt.Sprintf(` AND source = $%d`, argIdx)
		args = append(args, filter.Source)
		argIdx++
	}
	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, filter.Status)
		argIdx++
	}
	query += ` ORDER BY started_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.IngestRun
	for rows.Next() {
		r, err := scanRun(rows.Scan)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

// scanRun reads one run-log row; the scan argument order matches
// runColumns.
func scanRun(scan func(dest ...any) error) (*model.IngestRun, error) {
	var r model.IngestRun
	var errText *string
	if err := scan(
		&r.ID, &r.Source, &r.Status, &r.StartedAt, &r.CompletedAt,
		&r.Partitions, &r.Pages, &r.RecordsFetched, &r.RowsLoaded,
		&r.Duplicates, &r.MissingIDs, &r.CoercionFailures,
		&r.AbortedPartitions, &errText,
	); err != nil {
		return nil, err
	}
	if errText != nil {
		r.Error = *errText
	}
	return &r, nil
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// createTableSQL renders an idempotent CREATE TABLE for one listing
// table, mapping column types through the driver's type map.
func createTableSQL(table string, cols model.Schema, types map[model.ColumnType]string) string {
	defs := make([]string, len(cols))
	for i, c := range cols {
		defs[i] = fmt.Sprintf("\t%s %s", pgx.Identifier{c.Name}.Sanitize(), types[c.Type])
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n%s\n)", db.TableIdent(table).Sanitize(), strings.Join(defs, ",\n"))
}
