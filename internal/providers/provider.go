package providers

import (
	"context"

	"comexstat/internal/model"
	"comexstat/internal/table"
)

// Source serves the yearly bulk files and the reference tables.
type Source interface {
	Name() string
	FetchTrade(ctx context.Context, year int, flow model.Flow) (table.Table, error)
	FetchCountries(ctx context.Context) (table.Table, error)
	FetchBlocks(ctx context.Context) (table.Table, error)
}
