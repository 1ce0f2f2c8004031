package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/skylinedata/rental-ingest/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite. Tables are
// unqualified; SQLite has no schema namespaces.
type SQLiteStore struct {
	db  *sql.DB
	log *zap.Logger
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{
		db:  db,
		log: zap.L().With(zap.String("component", "store")),
	}, nil
}

var sqliteTypes = map[model.ColumnType]string{
	model.TypeString:    "TEXT",
	model.TypeInt32:     "INTEGER",
	model.TypeFloat32:   "REAL",
	model.TypeBool:      "BOOLEAN",
	model.TypeTimestamp: "DATETIME",
}

const sqliteRunLog = `
CREATE TABLE IF NOT EXISTS ingest_runs (
	id                 TEXT PRIMARY KEY,
	source             TEXT NOT NULL,
	status             TEXT NOT NULL DEFAULT 'running',
	started_at         DATETIME NOT NULL,
	completed_at       DATETIME,
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

CREATE INDEX IF NOT EXISTS idx_ingest_runs_source ON ingest_runs(source);
CREATE INDEX IF NOT EXISTS idx_ingest_runs_started_at ON ingest_runs(started_at);
`

func sqliteMigration() string {
	var b strings.Builder
	for _, tbl := range model.ListingTables() {
		b.WriteString(createTableSQL(tbl.Name, tbl.Columns, sqliteTypes))
		b.WriteString(";\n\n")
	}
	b.WriteString(sqliteRunLog)
	return b.String()
}

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration())
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ReplaceListings swaps a listing table's contents inside one
// transaction: DELETE, row-by-row INSERT, commit.
func (s *SQLiteStore) ReplaceListings(ctx context.Context, table string, data *model.Table) (int64, error) {
	rows, nulled := conformRows(data)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrapf(err, "sqlite: begin replace %s", table)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM `+table); err != nil {
		return 0, eris.Wrapf(err, "sqlite: clear %s", table)
	}

	cols := data.Columns.Names()
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s)", table, strings.Join(cols, ", "), placeholders,
	))
	if err != nil {
		return 0, eris.Wrapf(err, "sqlite: prepare insert %s", table)
	}
	defer stmt.Close()

	for _, row := range rows {
		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			return 0, eris.Wrapf(err, "sqlite: insert into %s", table)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrapf(err, "sqlite: commit replace %s", table)
	}

	if nulled > 0 {
		s.log.Warn("non-conforming values written as NULL",
			zap.String("table", table),
			zap.Int("cells", nulled),
		)
	}
	return int64(len(rows)), nil
}

func (s *SQLiteStore) CreateRun(ctx context.Context, run *model.IngestRun) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO ingest_runs (id, source, status, started_at) VALUES (?, ?, ?, ?)`,
		run.ID, run.Source, run.Status, run.StartedAt,
	)
	return eris.Wrapf(err, "sqlite: insert run %s", run.ID)
}

func (s *SQLiteStore) UpdateRun(ctx context.Context, run *model.IngestRun) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE ingest_runs SET status = ?, completed_at = ?, partitions = ?, pages = ?, records_fetched = ?, rows_loaded = ?, duplicates = ?, missing_ids = ?, coercion_failures = ?, aborted_partitions = ?, error = ? WHERE id = ?`,
		run.Status, run.CompletedAt, run.Partitions, run.Pages, run.RecordsFetched,
		run.RowsLoaded, run.Duplicates, run.MissingIDs, run.CoercionFailures,
		run.AbortedPartitions, nullIfEmpty(run.Error), run.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update run %s", run.ID)
	}
	return checkRowsAffected(res, "run", run.ID)
}

func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*model.IngestRun, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+runColumns+` FROM ingest_runs WHERE id = ?`, id,
	)
	return scanRunRow(row)
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.IngestRun, error) {
	query := `SELECT ` + runColumns + ` FROM ingest_runs WHERE 1=1`
	var args []any

	if filter.Source != "" {
		query += ` AND source = ?`
		args = append(args, filter.Source)
	}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, filter.Status)
	}
	query += ` ORDER BY started_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	var runs []model.IngestRun
	for rows.Next() {
		r, err := scanRunRow(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRunRow(row scannable) (*model.IngestRun, error) {
	var r model.IngestRun
	var completed sql.NullTime
	var errText sql.NullString

	err := row.Scan(
		&r.ID, &r.Source, &r.Status, &r.StartedAt, &completed,
		&r.Partitions, &r.Pages, &r.RecordsFetched, &r.RowsLoaded,
		&r.Duplicates, &r.MissingIDs, &r.CoercionFailures,
		&r.AbortedPartitions, &errText,
	)
	if err == sql.ErrNoRows {
		return nil, eris.New("run not found")
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan run")
	}

	if completed.Valid {
		t := completed.Time
		r.CompletedAt = &t
	}
	if errText.Valid {
		r.Error = errText.String
	}
	return &r, nil
}
