package store

import (
	"context"

	"comexstat/internal/model"
)

type Store interface {
	UpsertTradeRecords(ctx context.Context, records []model.TradeRecord) error
	UpsertCountries(ctx context.Context, countries []model.Country) error
	InsertFetchRuns(ctx context.Context, runs []model.FetchRun) error
	UpsertTransfers(ctx context.Context, transfers []model.Transfer) error
	ListTradeRecords(ctx context.Context, year int) ([]model.TradeRecord, error)
	ListCountries(ctx context.Context) ([]model.Country, error)
	Close() error
}

type NopStore struct{}

func (s *NopStore) UpsertTradeRecords(ctx context.Context, records []model.TradeRecord) error {
	_ = ctx
	_ = records
	return nil
}

func (s *NopStore) UpsertCountries(ctx context.Context, countries []model.Country) error {
	_ = ctx
	_ = countries
	return nil
}

func (s *NopStore) InsertFetchRuns(ctx context.Context, runs []model.FetchRun) error {
	_ = ctx
	_ = runs
	return nil
}

func (s *NopStore) UpsertTransfers(ctx context.Context, transfers []model.Transfer) error {
	_ = ctx
	_ = transfers
	return nil
}

func (s *NopStore) ListTradeRecords(ctx context.Context, year int) ([]model.TradeRecord, error) {
	_ = ctx
	_ = year
	return nil, nil
}

func (s *NopStore) ListCountries(ctx context.Context) ([]model.Country, error) {
	_ = ctx
	return nil, nil
}

func (s *NopStore) Close() error {
	return nil
}
