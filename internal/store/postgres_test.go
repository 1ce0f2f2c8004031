package store

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/skylinedata/rental-ingest/internal/model"
)

func newMockStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return &PostgresStore{pool: mock, log: zap.NewNop()}, mock
}

func listingFixture() *model.Table {
	return &model.Table{
		Columns: model.Schema{
			{Name: "listing_id", Type: model.TypeString},
			{Name: "list_price", Type: model.TypeInt32},
			{Name: "pet_cats", Type: model.TypeBool},
		},
		Rows: [][]any{
			{"R1", int32(2400), true},
			{"R2", int32(3100), false},
		},
	}
}

func TestPostgresMigrateSQL(t *testing.T) {
	sql := postgresMigration()

	assert.Contains(t, sql, "CREATE SCHEMA IF NOT EXISTS raw")
	for _, tbl := range model.ListingTables() {
		assert.Contains(t, sql, `CREATE TABLE IF NOT EXISTS "raw"."`+tbl.Name+`"`)
	}
	assert.Contains(t, sql, `"list_date" TIMESTAMPTZ`)
	assert.Contains(t, sql, `"list_price" INTEGER`)
	assert.Contains(t, sql, `"baths" REAL`)
	assert.Contains(t, sql, `"pet_cats" BOOLEAN`)
	assert.Contains(t, sql, "CREATE TABLE IF NOT EXISTS raw.ingest_runs")
	assert.Contains(t, sql, "idx_ingest_runs_started_at")
}

func TestPostgresMigrate(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("CREATE SCHEMA IF NOT EXISTS raw").
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, store.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresReplaceListings(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`TRUNCATE "raw"."bos_realtor_listings_raw"`).
		WillReturnResult(pgxmock.NewResult("TRUNCATE", 0))
	mock.ExpectCopyFrom(
		pgx.Identifier{"raw", "bos_realtor_listings_raw"},
		[]string{"listing_id", "list_price", "pet_cats"},
	).WillReturnResult(2)
	mock.ExpectCommit()

	n, err := store.ReplaceListings(context.Background(), "bos_realtor_listings_raw", listingFixture())
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresReplaceListingsCopyError(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`TRUNCATE "raw"."bos_realtor_listings_raw"`).
		WillReturnResult(pgxmock.NewResult("TRUNCATE", 0))
	mock.ExpectCopyFrom(
		pgx.Identifier{"raw", "bos_realtor_listings_raw"},
		[]string{"listing_id", "list_price", "pet_cats"},
	).WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	_, err := store.ReplaceListings(context.Background(), "bos_realtor_listings_raw", listingFixture())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "COPY INTO raw.bos_realtor_listings_raw")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresReplaceListingsTruncateError(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`TRUNCATE "raw"."bos_realtor_listings_raw"`).
		WillReturnError(errors.New("relation is locked"))
	mock.ExpectRollback()

	_, err := store.ReplaceListings(context.Background(), "bos_realtor_listings_raw", listingFixture())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "truncate raw.bos_realtor_listings_raw")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresCreateRun(t *testing.T) {
	store, mock := newMockStore(t)
	started := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectExec("INSERT INTO raw.ingest_runs").
		WithArgs("run-1", "bos_realtor", model.RunStatusRunning, started).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := store.CreateRun(context.Background(), &model.IngestRun{
		ID:        "run-1",
		Source:    "bos_realtor",
		Status:    model.RunStatusRunning,
		StartedAt: started,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUpdateRun(t *testing.T) {
	store, mock := newMockStore(t)
	started := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	completed := started.Add(90 * time.Second)

	run := &model.IngestRun{
		ID:                "run-1",
		Source:            "bos_realtor",
		Status:            model.RunStatusComplete,
		StartedAt:         started,
		CompletedAt:       &completed,
		Partitions:        28,
		Pages:             64,
		RecordsFetched:    9100,
		RowsLoaded:        9000,
		Duplicates:        80,
		MissingIDs:        20,
		CoercionFailures:  3,
		AbortedPartitions: 1,
	}

	mock.ExpectExec("UPDATE raw.ingest_runs SET").
		WithArgs(model.RunStatusComplete, &completed, 28, 64, 9100, 9000, 80, 20, 3, 1, (*string)(nil), "run-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, store.UpdateRun(context.Background(), run))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUpdateRunNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("UPDATE raw.ingest_runs SET").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := store.UpdateRun(context.Background(), &model.IngestRun{ID: "run-9", Status: model.RunStatusFailed})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run not found: run-9")
}

func TestPostgresGetRun(t *testing.T) {
	store, mock := newMockStore(t)
	started := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	completed := started.Add(2 * time.Minute)
	errText := "ingest: load bos_realtor_listings_raw: connection reset"

	rows := pgxmock.NewRows(strings.Split(runColumns, ", ")).AddRow(
		"run-1", "bos_realtor", model.RunStatusFailed, started, &completed,
		28, 64, 9100, 0, 80, 20, 3, 0, &errText,
	)
	mock.ExpectQuery(`SELECT .+ FROM raw.ingest_runs WHERE id = \$1`).
		WithArgs("run-1").
		WillReturnRows(rows)

	run, err := store.GetRun(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, "run-1", run.ID)
	assert.Equal(t, model.RunStatusFailed, run.Status)
	require.NotNil(t, run.CompletedAt)
	assert.Equal(t, completed, *run.CompletedAt)
	assert.Equal(t, 9100, run.RecordsFetched)
	assert.Equal(t, errText, run.Error)
}

func TestPostgresListRuns(t *testing.T) {
	store, mock := newMockStore(t)
	started := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	rows := pgxmock.NewRows(strings.Split(runColumns, ", ")).
		AddRow("run-2", "bos_realtor", model.RunStatusRunning, started.Add(time.Hour), (*time.Time)(nil),
			0, 0, 0, 0, 0, 0, 0, 0, (*string)(nil)).
		AddRow("run-1", "bos_realtor", model.RunStatusComplete, started, (*time.Time)(nil),
			28, 64, 9100, 9000, 80, 20, 3, 0, (*string)(nil))

	mock.ExpectQuery(`SELECT .+ FROM raw.ingest_runs WHERE true AND source = \$1 ORDER BY started_at DESC LIMIT \$2`).
		WithArgs("bos_realtor", 10).
		WillReturnRows(rows)

	runs, err := store.ListRuns(context.Background(), RunFilter{Source: "bos_realtor", Limit: 10})
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-2", runs[0].ID)
	assert.Nil(t, runs[0].CompletedAt)
	assert.Equal(t, 9000, runs[1].RowsLoaded)
}

func TestPostgresListRunsDefaultLimit(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT .+ FROM raw.ingest_runs WHERE true ORDER BY started_at DESC LIMIT \$1`).
		WithArgs(100).
		WillReturnRows(pgxmock.NewRows(strings.Split(runColumns, ", ")))

	runs, err := store.ListRuns(context.Background(), RunFilter{})
	require.NoError(t, err)
	assert.Empty(t, runs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresListRunsStatusFilter(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`WHERE true AND status = \$1 ORDER BY started_at DESC LIMIT \$2`).
		WithArgs(model.RunStatusFailed, 100).
		WillReturnRows(pgxmock.NewRows(strings.Split(runColumns, ", ")))

	_, err := store.ListRuns(context.Background(), RunFilter{Status: model.RunStatusFailed})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
