package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"comexstat/internal/model"
	"comexstat/internal/store"
)

type Store struct {
	db *sql.DB
}

func New(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite: path is required")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return s, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) UpsertTradeRecords(ctx context.Context, records []model.TradeRecord) error {
	return s.execBatch(ctx, `
		INSERT INTO trade_records (
			flow, year, month, ncm, unit, country_code, state, transport, customs_office,
			quantity, net_kg, fob, freight, insurance
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(flow, year, month, ncm, unit, country_code, state, transport, customs_office)
		DO UPDATE SET
			quantity = excluded.quantity,
			net_kg = excluded.net_kg,
			fob = excluded.fob,
			freight = excluded.freight,
			insurance = excluded.insurance
	`, len(records), func(i int) []any {
		r := records[i]
		return []any{
			string(r.Flow), r.Year, r.Month, r.NCM, r.Unit, r.CountryCode, r.State, r.Transport, r.CustomsOffice,
			r.Quantity, r.NetKg, r.FOB, r.Freight, r.Insurance,
		}
	})
}

func (s *Store) UpsertCountries(ctx context.Context, countries []model.Country) error {
	return s.execBatch(ctx, `
		INSERT INTO countries (code, name, block) VALUES (?, ?, ?)
		ON CONFLICT(code) DO UPDATE SET name = excluded.name, block = excluded.block
	`, len(countries), func(i int) []any {
		c := countries[i]
		return []any{c.Code, c.Name, c.Block}
	})
}

func (s *Store) InsertFetchRuns(ctx context.Context, runs []model.FetchRun) error {
	now := time.Now().UTC()
	return s.execBatch(ctx, `
		INSERT INTO fetch_runs (run_id, flow, year, state, month, status, rows, error, fetched_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, len(runs), func(i int) []any {
		r := runs[i]
		fetchedAt := r.FetchedAt
		if fetchedAt.IsZero() {
			fetchedAt = now
		}
		var errText any
		if r.Error != "" {
			errText = r.Error
		}
		return []any{r.RunID, string(r.Flow), r.Year, r.State, r.Month, string(r.Status), r.Rows, errText, fetchedAt.UTC()}
	})
}

func (s *Store) UpsertTransfers(ctx context.Context, transfers []model.Transfer) error {
	return s.execBatch(ctx, `
		INSERT INTO resource_transfers (year, month, entity, total) VALUES (?, ?, ?, ?)
		ON CONFLICT(year, month, entity) DO UPDATE SET total = excluded.total
	`, len(transfers), func(i int) []any {
		t := transfers[i]
		return []any{t.Year, t.Month, t.Entity, t.Total.String()}
	})
}

func (s *Store) ListTradeRecords(ctx context.Context, year int) ([]model.TradeRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT flow, year, month, ncm, unit, country_code, state, transport, customs_office,
			quantity, net_kg, fob, freight, insurance
		FROM trade_records
		WHERE year = ?
		ORDER BY flow, month, ncm, country_code, state
	`, year)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]model.TradeRecord, 0)
	for rows.Next() {
		var r model.TradeRecord
		var flow string
		if err := rows.Scan(&flow, &r.Year, &r.Month, &r.NCM, &r.Unit, &r.CountryCode, &r.State, &r.Transport, &r.CustomsOffice,
			&r.Quantity, &r.NetKg, &r.FOB, &r.Freight, &r.Insurance); err != nil {
			return nil, err
		}
		r.Flow = model.Flow(flow)
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

func (s *Store) ListCountries(ctx context.Context) ([]model.Country, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT code, name, block FROM countries ORDER BY code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	countries := make([]model.Country, 0)
	for rows.Next() {
		var c model.Country
		if err := rows.Scan(&c.Code, &c.Name, &c.Block); err != nil {
			return nil, err
		}
		countries = append(countries, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return countries, nil
}

// ListTransfers is used by the publisher; it is not part of store.Store.
func (s *Store) ListTransfers(ctx context.Context) ([]model.Transfer, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT year, month, entity, total FROM resource_transfers ORDER BY year, month, entity`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	transfers := make([]model.Transfer, 0)
	for rows.Next() {
		var t model.Transfer
		var total string
		if err := rows.Scan(&t.Year, &t.Month, &t.Entity, &total); err != nil {
			return nil, err
		}
		t.Total, err = decimal.NewFromString(total)
		if err != nil {
			return nil, err
		}
		transfers = append(transfers, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return transfers, nil
}

func (s *Store) execBatch(ctx context.Context, query string, n int, args func(i int) []any) error {
	if n == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer stmt.Close()

	for i := 0; i < n; i++ {
		if _, err := stmt.ExecContext(ctx, args(i)...); err != nil {
			_ = tx.Rollback()
			return err
		}
	}

	return tx.Commit()
}

func (s *Store) migrate() error {
	statements := []string{
		`PRAGMA foreign_keys = ON;`,
		`CREATE TABLE IF NOT EXISTS trade_records (
			flow TEXT NOT NULL,
			year INTEGER NOT NULL,
			month INTEGER NOT NULL,
			ncm TEXT NOT NULL,
			unit TEXT NOT NULL,
			country_code TEXT NOT NULL,
			state TEXT NOT NULL,
			transport TEXT NOT NULL,
			customs_office TEXT NOT NULL,
			quantity INTEGER NOT NULL,
			net_kg INTEGER NOT NULL,
			fob INTEGER NOT NULL,
			freight INTEGER NOT NULL,
			insurance INTEGER NOT NULL,
			PRIMARY KEY (flow, year, month, ncm, unit, country_code, state, transport, customs_office)
		);`,
		`CREATE TABLE IF NOT EXISTS countries (
			code TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			block TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS fetch_runs (
			run_id TEXT NOT NULL,
			flow TEXT NOT NULL,
			year INTEGER NOT NULL,
			state TEXT NOT NULL,
			month TEXT NOT NULL,
			status TEXT NOT NULL,
			rows INTEGER NOT NULL,
			error TEXT,
			fetched_at TEXT NOT NULL,
			PRIMARY KEY (run_id, flow, state, month)
		);`,
		`CREATE TABLE IF NOT EXISTS resource_transfers (
			year TEXT NOT NULL,
			month TEXT NOT NULL,
			entity TEXT NOT NULL,
			total TEXT NOT NULL,
			PRIMARY KEY (year, month, entity)
		);`,
	}

	for _, statement := range statements {
		if _, err := s.db.Exec(statement); err != nil {
			return err
		}
	}

	return nil
}

var _ store.Store = (*Store)(nil)
