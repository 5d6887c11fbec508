package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"comexstat/internal/model"
	"comexstat/internal/providers/comex"
	"comexstat/internal/providers/rfb"
	"comexstat/internal/store/sqlite"
)

var errNoRecords = errors.New("no trade records for year")

type metaFile struct {
	GeneratedAt string `json:"generated_at"`
	Year        int    `json:"year"`
}

type summaryFile struct {
	GeneratedAt string         `json:"generated_at"`
	Year        int            `json:"year"`
	Totals      flowTotals     `json:"totals"`
	Rows        []summaryEntry `json:"rows"`
}

type flowTotals struct {
	Export decimal.Decimal `json:"export"`
	Import decimal.Decimal `json:"import"`
}

type summaryEntry struct {
	Flow        model.Flow      `json:"flow"`
	CountryCode string          `json:"country_code"`
	Country     string          `json:"country"`
	Block       string          `json:"block"`
	FOB         decimal.Decimal `json:"fob"`
	Share       decimal.Decimal `json:"share"`
}

type transfersFile struct {
	GeneratedAt string          `json:"generated_at"`
	Rows        []transferEntry `json:"rows"`
}

type transferEntry struct {
	Month  string          `json:"month"`
	Entity string          `json:"entity"`
	Total  decimal.Decimal `json:"total"`
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	switch os.Args[1] {
	case "build":
		build(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
}

func build(args []string) {
	fs := flag.NewFlagSet("build", flag.ExitOnError)
	outDir := fs.String("out", "site/data", "output directory")
	dbPath := fs.String("db", "comexstat.db", "sqlite database path")
	year := fs.Int("year", time.Now().Year()-1, "four-digit year to summarise")
	fs.Parse(args)

	if strings.TrimSpace(*dbPath) == "" {
		fmt.Fprintln(os.Stderr, "db path is required")
		os.Exit(1)
	}
	st, err := sqlite.New(*dbPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to open db:", err)
		os.Exit(1)
	}
	defer st.Close()

	records, rows, err := publish(context.Background(), st, *outDir, *year)
	if err != nil {
		fmt.Fprintln(os.Stderr, "publisher build failed:", err)
		os.Exit(1)
	}

	fmt.Printf("publisher build complete (out=%s year=%d records=%d rows=%d)\n", *outDir, *year, records, rows)
}

// publish writes meta.json, summary.json and, when transfers are stored,
// transfers.json. Nothing is written for a year without trade records.
func publish(ctx context.Context, st *sqlite.Store, outDir string, year int) (int, int, error) {
	records, err := st.ListTradeRecords(ctx, year)
	if err != nil {
		return 0, 0, fmt.Errorf("load trade records: %w", err)
	}
	if len(records) == 0 {
		return 0, 0, fmt.Errorf("%w: %d", errNoRecords, year)
	}
	countries, err := st.ListCountries(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("load countries: %w", err)
	}
	stored, err := st.ListTransfers(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("load transfers: %w", err)
	}
	var transfers []transferEntry
	if len(stored) > 0 {
		transfers, err = buildTransfers(stored)
		if err != nil {
			return 0, 0, fmt.Errorf("invalid transfers: %w", err)
		}
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return 0, 0, err
	}

	now := time.Now().UTC().Format(time.RFC3339)
	if err := writeJSON(filepath.Join(outDir, "meta.json"), metaFile{GeneratedAt: now, Year: year}); err != nil {
		return 0, 0, err
	}

	rows, totals := buildSummary(records, countries)
	if err := writeJSON(filepath.Join(outDir, "summary.json"), summaryFile{GeneratedAt: now, Year: year, Totals: totals, Rows: rows}); err != nil {
		return 0, 0, err
	}

	if len(transfers) > 0 {
		if err := writeJSON(filepath.Join(outDir, "transfers.json"), transfersFile{GeneratedAt: now, Rows: transfers}); err != nil {
			return 0, 0, err
		}
	}
	return len(records), len(rows), nil
}

func writeJSON(path string, value any) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	return encoder.Encode(value)
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: publisher build [options]")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "options:")
	fmt.Fprintln(os.Stderr, "  -out   output directory (default: site/data)")
	fmt.Fprintln(os.Stderr, "  -db    sqlite database path (default: comexstat.db)")
	fmt.Fprintln(os.Stderr, "  -year  four-digit year (default: last year)")
}

type summaryKey struct {
	flow    model.Flow
	country string
}

// buildSummary totals FOB per flow and partner country. Share is the fraction
// of the flow total, rounded to four places.
func buildSummary(records []model.TradeRecord, countries []model.Country) ([]summaryEntry, flowTotals) {
	lookup := make(map[string]model.Country, len(countries))
	for _, country := range countries {
		lookup[country.Code] = country
	}

	sums := make(map[summaryKey]decimal.Decimal)
	totals := map[model.Flow]decimal.Decimal{
		model.FlowExport: decimal.Zero,
		model.FlowImport: decimal.Zero,
	}
	for _, record := range records {
		key := summaryKey{flow: record.Flow, country: record.CountryCode}
		value := decimal.NewFromInt(record.FOB)
		sums[key] = sums[key].Add(value)
		totals[record.Flow] = totals[record.Flow].Add(value)
	}

	rows := make([]summaryEntry, 0, len(sums))
	for key, fob := range sums {
		country, ok := lookup[key.country]
		if !ok {
			country = model.Country{Code: key.country, Block: comex.NoBlock}
		}
		share := decimal.Zero
		if total := totals[key.flow]; !total.IsZero() {
			share = fob.DivRound(total, 4)
		}
		rows = append(rows, summaryEntry{
			Flow:        key.flow,
			CountryCode: key.country,
			Country:     country.Name,
			Block:       country.Block,
			FOB:         fob,
			Share:       share,
		})
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Flow != rows[j].Flow {
			return rows[i].Flow < rows[j].Flow
		}
		if cmp := rows[i].FOB.Cmp(rows[j].FOB); cmp != 0 {
			return cmp > 0
		}
		return rows[i].CountryCode < rows[j].CountryCode
	})

	return rows, flowTotals{Export: totals[model.FlowExport], Import: totals[model.FlowImport]}
}

// buildTransfers sums transfers per month key and entity.
func buildTransfers(transfers []model.Transfer) ([]transferEntry, error) {
	type transferKey struct {
		month  string
		entity string
	}
	sums := make(map[transferKey]decimal.Decimal)
	for _, transfer := range transfers {
		month, err := rfb.MonthKey(transfer.Month + "/" + transfer.Year)
		if err != nil {
			return nil, err
		}
		if transfer.Entity == "" {
			return nil, errors.New("transfer without entity")
		}
		key := transferKey{month: month, entity: transfer.Entity}
		sums[key] = sums[key].Add(transfer.Total)
	}

	rows := make([]transferEntry, 0, len(sums))
	for key, total := range sums {
		rows = append(rows, transferEntry{Month: key.month, Entity: key.entity, Total: total})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Month != rows[j].Month {
			return rows[i].Month < rows[j].Month
		}
		return rows[i].Entity < rows[j].Entity
	})
	return rows, nil
}
