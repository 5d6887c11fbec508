package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"comexstat/internal/loader"
	"comexstat/internal/model"
	"comexstat/internal/providers/comex"
	"comexstat/internal/providers/comexapi"
	"comexstat/internal/providers/rfb"
	"comexstat/internal/store"
	"comexstat/internal/store/sqlite"
	"comexstat/internal/table"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	switch os.Args[1] {
	case "run":
		run(os.Args[2:])
	case "states":
		states(os.Args[2:])
	case "transfers":
		transfers(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
}

func run(args []string) {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	year := fs.Int("year", defaultYear(), "four-digit year to load")
	dataDir := fs.String("data", loader.DefaultRoot, "cache root directory")
	dbPath := fs.String("db", "comexstat.db", "sqlite database path (empty disables persistence)")
	flows := fs.String("flows", "export,import", "comma-separated flows to persist")
	refresh := fs.Bool("refresh", false, "move the cached year aside and download again")
	verbose := fs.Bool("verbose", false, "development logging")
	fs.Parse(args)

	logger := newLogger(*verbose)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := runCollector(ctx, logger, *year, *dataDir, *dbPath, *flows, *refresh); err != nil {
		fmt.Fprintln(os.Stderr, "collector run failed:", err)
		os.Exit(1)
	}
}

func states(args []string) {
	fs := flag.NewFlagSet("states", flag.ExitOnError)
	year := fs.Int("year", defaultYear(), "four-digit year to query")
	outDir := fs.String("out", "", "output directory (default: <data>/comexapi-<year>)")
	dataDir := fs.String("data", loader.DefaultRoot, "cache root directory")
	dbPath := fs.String("db", "comexstat.db", "sqlite database path (empty disables persistence)")
	only := fs.String("states", "", "comma-separated state codes (empty = all)")
	maxConns := fs.Int("max-conns", 0, "simultaneous connections (0 = COMEXAPI_MAX_CONNS)")
	verbose := fs.Bool("verbose", false, "development logging")
	fs.Parse(args)

	logger := newLogger(*verbose)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := *outDir
	if strings.TrimSpace(out) == "" {
		out = filepath.Join(*dataDir, fmt.Sprintf("comexapi-%d", *year))
	}
	if err := runStates(ctx, logger, *year, out, *dbPath, *only, *maxConns); err != nil {
		fmt.Fprintln(os.Stderr, "collector states failed:", err)
		os.Exit(1)
	}
}

func transfers(args []string) {
	fs := flag.NewFlagSet("transfers", flag.ExitOnError)
	dbPath := fs.String("db", "comexstat.db", "sqlite database path (empty disables persistence)")
	outPath := fs.String("out", "", "write the projected table to this CSV path (optional)")
	verbose := fs.Bool("verbose", false, "development logging")
	fs.Parse(args)

	logger := newLogger(*verbose)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := runTransfers(ctx, logger, *dbPath, *outPath); err != nil {
		fmt.Fprintln(os.Stderr, "collector transfers failed:", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: collector <run|states|transfers> [options]")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "run options:")
	fmt.Fprintln(os.Stderr, "  -year       four-digit year (default: last year)")
	fmt.Fprintln(os.Stderr, "  -data       cache root directory (default: data)")
	fmt.Fprintln(os.Stderr, "  -db         sqlite database path (default: comexstat.db)")
	fmt.Fprintln(os.Stderr, "  -flows      comma-separated flows (default: export,import)")
	fmt.Fprintln(os.Stderr, "  -refresh    move the cached year aside and download again")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "states options:")
	fmt.Fprintln(os.Stderr, "  -year       four-digit year (default: last year)")
	fmt.Fprintln(os.Stderr, "  -out        output directory (default: <data>/comexapi-<year>)")
	fmt.Fprintln(os.Stderr, "  -states     comma-separated state codes (default: all)")
	fmt.Fprintln(os.Stderr, "  -max-conns  simultaneous connections (default: COMEXAPI_MAX_CONNS)")
	fmt.Fprintln(os.Stderr, "  -db         sqlite database path (default: comexstat.db)")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "transfers options:")
	fmt.Fprintln(os.Stderr, "  -db         sqlite database path (default: comexstat.db)")
	fmt.Fprintln(os.Stderr, "  -out        projected CSV path (optional)")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "every subcommand accepts -verbose")
}

func runCollector(ctx context.Context, logger *zap.Logger, year int, dataDir, dbPath, flowsCSV string, refresh bool) error {
	flowList, err := parseFlows(flowsCSV)
	if err != nil {
		return err
	}

	provider, err := comex.New()
	if err != nil {
		return err
	}

	st, err := openStore(dbPath)
	if err != nil {
		return err
	}
	defer st.Close()

	l := loader.New(dataDir, provider, logger)
	var bundle loader.Bundle
	if refresh {
		bundle, err = l.Refresh(ctx, year)
	} else {
		bundle, err = l.Load(ctx, year)
	}
	if err != nil {
		return err
	}

	stored := 0
	for _, flow := range flowList {
		source := bundle.Exports
		if flow == model.FlowImport {
			source = bundle.Imports
		}
		records, err := comex.Records(source, flow)
		if err != nil {
			return fmt.Errorf("%s: %w", flow, err)
		}
		if err := st.UpsertTradeRecords(ctx, records); err != nil {
			return err
		}
		stored += len(records)
	}

	countries, err := comex.Countries(bundle.Countries)
	if err != nil {
		return err
	}
	if err := st.UpsertCountries(ctx, countries); err != nil {
		return err
	}

	fmt.Printf("collector run complete (year=%d dir=%s imports=%d exports=%d countries=%d)\n",
		year, bundle.Dir, bundle.Imports.Len(), bundle.Exports.Len(), bundle.Countries.Len(),
	)
	if stored > 0 {
		fmt.Printf("collector stored records=%d\n", stored)
	}
	return nil
}

func runStates(ctx context.Context, logger *zap.Logger, year int, outDir, dbPath, onlyCSV string, maxConns int) error {
	cfg, err := comexapi.ConfigFromEnv()
	if err != nil {
		return err
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}
	provider, err := comexapi.NewWithConfig(cfg)
	if err != nil {
		return err
	}
	provider.WithLogger(logger)

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return err
	}

	st, err := openStore(dbPath)
	if err != nil {
		return err
	}
	defer st.Close()

	listed, err := provider.ListStates(ctx)
	if err != nil {
		return err
	}
	codes := filterStates(listed, parseList(onlyCSV))
	if len(codes) == 0 {
		return errors.New("no states after filtering")
	}

	results, err := provider.FetchAll(ctx, comexapi.Plan(codes, year))
	if err != nil {
		return err
	}
	exports, imports, report := comexapi.Assemble(results)

	runID := uuid.NewString()
	now := time.Now().UTC()
	runs := make([]model.FetchRun, 0, len(results))
	for _, result := range results {
		runs = append(runs, result.FetchRun(runID, now))
	}
	if err := st.InsertFetchRuns(ctx, runs); err != nil {
		return err
	}

	for _, output := range []struct {
		flow  model.Flow
		name  string
		table table.Table
	}{
		{model.FlowExport, "exports.csv", exports},
		{model.FlowImport, "imports.csv", imports},
	} {
		written, err := writeOutput(filepath.Join(outDir, output.name), output.table)
		if err != nil {
			return err
		}
		if !written {
			logger.Warn("no rows for flow, file not written", zap.String("flow", string(output.flow)))
		}
	}

	for _, failure := range report.Failures {
		logger.Warn("request failed",
			zap.String("flow", string(failure.Flow)),
			zap.String("state", failure.State),
			zap.String("month", failure.Month.Number),
			zap.Error(failure.Err),
		)
	}
	logger.Info("states fetch finished",
		zap.String("run_id", runID),
		zap.Bool("complete", report.Complete()),
	)

	fmt.Printf("collector states complete (run=%s year=%d states=%d out=%s)\n", runID, year, len(codes), outDir)
	printSummary(model.FlowExport, report.Exports)
	printSummary(model.FlowImport, report.Imports)
	return nil
}

func runTransfers(ctx context.Context, logger *zap.Logger, dbPath, outPath string) error {
	provider, err := rfb.New()
	if err != nil {
		return err
	}

	st, err := openStore(dbPath)
	if err != nil {
		return err
	}
	defer st.Close()

	published, parsed, err := provider.FetchTransfers(ctx)
	if err != nil {
		return err
	}
	logger.Info("transfers fetched", zap.String("url", provider.URL()), zap.Int("rows", published.Len()))

	if err := st.UpsertTransfers(ctx, parsed); err != nil {
		return err
	}
	if strings.TrimSpace(outPath) != "" {
		if err := rfb.Project(parsed).WriteCSVFile(outPath); err != nil {
			return err
		}
	}

	fmt.Printf("collector transfers complete (rows=%d stored=%d)\n", published.Len(), len(parsed))
	return nil
}

// writeOutput replaces path with t. A table without columns removes any file
// left by an earlier run instead, since it cannot be read back.
func writeOutput(path string, t table.Table) (bool, error) {
	if len(t.Header) == 0 {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return false, err
		}
		return false, nil
	}

	file, err := os.Create(path)
	if err != nil {
		return false, err
	}
	if err := t.WriteCSV(file); err != nil {
		_ = file.Close()
		return false, err
	}
	return true, file.Close()
}

func printSummary(flow model.Flow, summary comexapi.Summary) {
	fmt.Printf("  %s requested=%d with_rows=%d empty=%d failed=%d rows=%d\n",
		flow, summary.Requested, summary.WithRows, summary.Empty, summary.Failed, summary.Rows,
	)
}

func newLogger(verbose bool) *zap.Logger {
	var (
		logger *zap.Logger
		err    error
	)
	if verbose {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

func openStore(path string) (store.Store, error) {
	if strings.TrimSpace(path) == "" {
		return &store.NopStore{}, nil
	}
	return sqlite.New(path)
}

func defaultYear() int {
	return time.Now().Year() - 1
}

// filterStates keeps listed states in API order; an empty allow list keeps all.
func filterStates(listed []model.State, allowed []string) []string {
	set := make(map[string]struct{}, len(allowed))
	for _, code := range allowed {
		set[code] = struct{}{}
	}
	codes := make([]string, 0, len(listed))
	for _, state := range listed {
		if len(set) > 0 {
			if _, ok := set[strings.ToUpper(state.ID)]; !ok {
				continue
			}
		}
		codes = append(codes, state.ID)
	}
	return codes
}

func parseList(value string) []string {
	raw := strings.Split(value, ",")
	items := make([]string, 0, len(raw))
	for _, item := range raw {
		trimmed := strings.TrimSpace(item)
		if trimmed == "" {
			continue
		}
		items = append(items, strings.ToUpper(trimmed))
	}
	return items
}

func parseFlows(value string) ([]model.Flow, error) {
	raw := parseList(value)
	if len(raw) == 0 {
		return nil, errors.New("no flows provided")
	}

	flows := make([]model.Flow, 0, len(raw))
	for _, item := range raw {
		switch strings.ToLower(item) {
		case "export", "exports":
			flows = append(flows, model.FlowExport)
		case "import", "imports":
			flows = append(flows, model.FlowImport)
		default:
			return nil, fmt.Errorf("unknown flow: %s", item)
		}
	}
	return flows, nil
}
