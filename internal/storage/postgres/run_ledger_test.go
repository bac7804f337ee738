package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/catalog-pipeline/internal/catalog"
)

func strPtr(s string) *string { return &s }

func TestRecordRunInsertsRow(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	ledger, err := NewRunLedgerWithPool(mock, "")
	require.NoError(t, err)

	started := time.Unix(1700000000, 0).UTC()
	run := catalog.RunSummary{
		RunID:           "0190b6b4-0000-7000-8000-000000000001",
		Category:        "chocolats",
		Name:            "chocolats_fr",
		Status:          catalog.RunSucceeded,
		StartedAt:       started,
		FinishedAt:      started.Add(12 * time.Second),
		Pages:           3,
		StopReason:      catalog.StopEmptyPage,
		RecordsFetched:  200,
		RecordsCleaned:  187,
		RawPath:         "data/raw/chocolats_fr_20231114_221320.json",
		RawSHA256:       "abc",
		ProcessedPath:   "data/processed/chocolats_fr_20231114_221320.parquet",
		ProcessedSHA256: "def",
	}

	mock.ExpectExec("INSERT INTO catalog_runs").
		WithArgs(
			run.RunID,
			run.Category,
			run.Name,
			run.Status,
			(*string)(nil),
			(*string)(nil),
			run.StartedAt,
			run.FinishedAt,
			run.Pages,
			strPtr("empty_page"),
			run.RecordsFetched,
			run.RecordsCleaned,
			strPtr(run.RawPath),
			strPtr(run.RawSHA256),
			strPtr(run.ProcessedPath),
			strPtr(run.ProcessedSHA256),
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, ledger.RecordRun(context.Background(), run))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordRunFailedRun(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	ledger, err := NewRunLedgerWithPool(mock, "runs")
	require.NoError(t, err)

	run := catalog.RunSummary{
		RunID:       "run-2",
		Category:    "biscuits",
		Name:        "biscuits",
		Status:      catalog.RunFailed,
		FailedStage: "fetch",
		Error:       "page 3: transient failure",
		StopReason:  catalog.StopError,
	}
	mock.ExpectExec("INSERT INTO runs").
		WithArgs(
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), catalog.RunFailed,
			strPtr("fetch"), strPtr(run.Error),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(),
			(*string)(nil), (*string)(nil), (*string)(nil), (*string)(nil),
		).
		WillReturnError(errors.New("connection reset"))

	err = ledger.RecordRun(context.Background(), run)
	require.ErrorContains(t, err, "insert run")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordRunRequiresID(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	ledger, err := NewRunLedgerWithPool(mock, "")
	require.NoError(t, err)
	require.Error(t, ledger.RecordRun(context.Background(), catalog.RunSummary{}))

	var nilLedger *RunLedger
	require.Error(t, nilLedger.RecordRun(context.Background(), catalog.RunSummary{RunID: "x"}))
	nilLedger.Close()
}

func TestEnsureSchema(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	ledger, err := NewRunLedgerWithPool(mock, "catalog_runs")
	require.NoError(t, err)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS catalog_runs").
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	require.NoError(t, ledger.EnsureSchema(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestConstructorsValidate(t *testing.T) {
	t.Parallel()

	_, err := NewRunLedgerWithPool(nil, "")
	require.Error(t, err)

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	_, err = NewRunLedgerWithPool(mock, "runs; DROP TABLE x")
	require.Error(t, err)

	_, err = NewRunLedger(context.Background(), Config{})
	require.Error(t, err)
	_, err = NewRunLedger(context.Background(), Config{DSN: "postgres://localhost/db", Table: "bad-name"})
	require.Error(t, err)
}
