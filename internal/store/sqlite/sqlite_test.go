package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"comexstat/internal/model"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "comexstat.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestNewRequiresPath(t *testing.T) {
	_, err := New("")
	assert.Error(t, err)
}

func TestUpsertTradeRecords(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	record := model.TradeRecord{
		Flow: model.FlowImport, Year: 2020, Month: 1, NCM: "01012100", Unit: "11",
		CountryCode: "249", State: "SP", Transport: "4", CustomsOffice: "817700",
		Quantity: 2, NetKg: 900, FOB: 45000, Freight: 1200, Insurance: 80,
	}
	require.NoError(t, s.UpsertTradeRecords(ctx, []model.TradeRecord{record}))

	record.FOB = 46000
	other := record
	other.Year = 2021
	require.NoError(t, s.UpsertTradeRecords(ctx, []model.TradeRecord{record, other}))

	got, err := s.ListTradeRecords(ctx, 2020)
	require.NoError(t, err)
	assert.Equal(t, []model.TradeRecord{record}, got)

	empty, err := s.ListTradeRecords(ctx, 1999)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestUpsertCountries(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertCountries(ctx, []model.Country{
		{Code: "756", Name: "África do Sul", Block: "Não disponível"},
		{Code: "160", Name: "China", Block: "Ásia"},
	}))
	require.NoError(t, s.UpsertCountries(ctx, []model.Country{{Code: "756", Name: "África do Sul", Block: "África"}}))

	got, err := s.ListCountries(ctx)
	require.NoError(t, err)
	assert.Equal(t, []model.Country{
		{Code: "160", Name: "China", Block: "Ásia"},
		{Code: "756", Name: "África do Sul", Block: "África"},
	}, got)
}

func TestTransfersRoundTripDecimal(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertTransfers(ctx, []model.Transfer{
		{Month: "jan", Year: "2019", Entity: "SENAI", Total: decimal.RequireFromString("1234567.89")},
	}))
	require.NoError(t, s.UpsertTransfers(ctx, []model.Transfer{
		{Month: "jan", Year: "2019", Entity: "SENAI", Total: decimal.RequireFromString("10.5")},
	}))

	got, err := s.ListTransfers(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, decimal.RequireFromString("10.5").Equal(got[0].Total))
}

func TestInsertFetchRuns(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	runs := []model.FetchRun{
		{RunID: "r1", Flow: model.FlowExport, Year: 2023, State: "SP", Month: "01", Status: model.FetchOK, Rows: 3},
		{RunID: "r1", Flow: model.FlowExport, Year: 2023, State: "RJ", Month: "02", Status: model.FetchFailed, Error: "boom", FetchedAt: time.Now()},
	}
	require.NoError(t, s.InsertFetchRuns(ctx, runs))

	var count int
	require.NoError(t, s.db.QueryRow(`SELECT COUNT(*) FROM fetch_runs WHERE run_id = 'r1' AND error IS NOT NULL`).Scan(&count))
	assert.Equal(t, 1, count)

	assert.Error(t, s.InsertFetchRuns(ctx, runs[:1]))
}

func TestExecBatchRollsBackOnError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	prep := mock.ExpectPrepare("INSERT INTO countries")
	prep.ExpectExec().WithArgs("1", "A", "X").WillReturnResult(sqlmock.NewResult(1, 1))
	prep.ExpectExec().WithArgs("2", "B", "Y").WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	s := &Store{db: db}
	err = s.UpsertCountries(context.Background(), []model.Country{
		{Code: "1", Name: "A", Block: "X"},
		{Code: "2", Name: "B", Block: "Y"},
	})
	assert.EqualError(t, err, "disk full")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecBatchEmptyIsNoop(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	s := &Store{db: db}
	require.NoError(t, s.UpsertTradeRecords(context.Background(), nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}
