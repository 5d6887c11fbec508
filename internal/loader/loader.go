// Package loader memoizes a year of foreign-trade files on disk. A year is
// read from <root>/comex-<year>/ when all three files parse, and otherwise
// downloaded, relabelled, written once and read back.
//
// Nothing is ever invalidated: a stale directory stays in use until the
// caller refreshes it explicitly.
package loader

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"go.uber.org/zap"

	"comexstat/internal/model"
	"comexstat/internal/providers"
	"comexstat/internal/providers/comex"
	"comexstat/internal/table"
)

const (
	DefaultRoot   = "data"
	ImportsFile   = "imports.csv"
	ExportsFile   = "exports.csv"
	CountriesFile = "country-codes.csv"
)

var ErrInvalidYear = errors.New("loader: year must have four digits")

type Bundle struct {
	Imports   table.Table
	Exports   table.Table
	Countries table.Table
	Dir       string
}

type Loader struct {
	Root   string
	Source providers.Source
	Logger *zap.Logger
}

func New(root string, source providers.Source, logger *zap.Logger) *Loader {
	if root == "" {
		root = DefaultRoot
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{Root: root, Source: source, Logger: logger}
}

// Dir is the cache directory for year.
func (l *Loader) Dir(year int) string {
	return filepath.Join(l.Root, "comex-"+strconv.Itoa(year))
}

// Load returns the cached files for year, downloading them on a miss. The year
// directory is created exclusively, so a concurrent or partial earlier download
// surfaces as an fs.ErrExist error instead of being overwritten.
func (l *Loader) Load(ctx context.Context, year int) (Bundle, error) {
	if year < 1000 || year > 9999 {
		return Bundle{}, fmt.Errorf("%w: %d", ErrInvalidYear, year)
	}
	dir := l.Dir(year)

	bundle, err := readBundle(dir)
	if err == nil {
		l.Logger.Info("comex files loaded", zap.String("dir", dir))
		return bundle, nil
	}
	l.Logger.Info("comex files unavailable, downloading",
		zap.Int("year", year),
		zap.String("source", l.sourceName()),
		zap.NamedError("cause", err),
	)

	if l.Source == nil {
		return Bundle{}, errors.New("loader: no source configured")
	}
	fetched, err := l.fetch(ctx, year)
	if err != nil {
		return Bundle{}, err
	}
	if err := writeBundle(dir, fetched); err != nil {
		return Bundle{}, err
	}

	bundle, err = readBundle(dir)
	if err != nil {
		return Bundle{}, fmt.Errorf("loader: reread %s: %w", dir, err)
	}
	l.Logger.Info("comex files loaded", zap.String("dir", dir))
	return bundle, nil
}

// Refresh moves an existing year directory aside and loads the year again.
func (l *Loader) Refresh(ctx context.Context, year int) (Bundle, error) {
	dir := l.Dir(year)
	if _, err := os.Stat(dir); err == nil {
		stale := fmt.Sprintf("%s.stale-%d", dir, time.Now().Unix())
		if err := os.Rename(dir, stale); err != nil {
			return Bundle{}, err
		}
		l.Logger.Info("comex cache moved aside", zap.String("from", dir), zap.String("to", stale))
	}
	return l.Load(ctx, year)
}

func (l *Loader) fetch(ctx context.Context, year int) (Bundle, error) {
	imports, err := l.fetchTrade(ctx, year, model.FlowImport)
	if err != nil {
		return Bundle{}, err
	}
	exports, err := l.fetchTrade(ctx, year, model.FlowExport)
	if err != nil {
		return Bundle{}, err
	}

	countries, err := l.Source.FetchCountries(ctx)
	if err != nil {
		return Bundle{}, fmt.Errorf("loader: countries: %w", err)
	}
	blocks, err := l.Source.FetchBlocks(ctx)
	if err != nil {
		return Bundle{}, fmt.Errorf("loader: blocks: %w", err)
	}
	codes, err := comex.CountryCodes(countries, blocks)
	if err != nil {
		return Bundle{}, fmt.Errorf("loader: country codes: %w", err)
	}

	return Bundle{Imports: imports, Exports: exports, Countries: codes}, nil
}

func (l *Loader) fetchTrade(ctx context.Context, year int, flow model.Flow) (table.Table, error) {
	raw, err := l.Source.FetchTrade(ctx, year, flow)
	if err != nil {
		return table.Table{}, fmt.Errorf("loader: %s %d: %w", flow, year, err)
	}
	renamed, err := table.Rename(raw, comex.SchemaForFlow(flow))
	if err != nil {
		return table.Table{}, fmt.Errorf("loader: %s %d: %w", flow, year, err)
	}
	return renamed, nil
}

func (l *Loader) sourceName() string {
	if l.Source == nil {
		return ""
	}
	return l.Source.Name()
}

func readBundle(dir string) (Bundle, error) {
	imports, err := table.ReadCSVFile(filepath.Join(dir, ImportsFile))
	if err != nil {
		return Bundle{}, err
	}
	exports, err := table.ReadCSVFile(filepath.Join(dir, ExportsFile))
	if err != nil {
		return Bundle{}, err
	}
	countries, err := table.ReadCSVFile(filepath.Join(dir, CountriesFile))
	if err != nil {
		return Bundle{}, err
	}
	return Bundle{Imports: imports, Exports: exports, Countries: countries, Dir: dir}, nil
}

func writeBundle(dir string, b Bundle) error {
	if err := os.MkdirAll(filepath.Dir(dir), 0o755); err != nil {
		return err
	}
	if err := os.Mkdir(dir, 0o755); err != nil {
		return fmt.Errorf("loader: create cache dir: %w", err)
	}
	files := []struct {
		name string
		t    table.Table
	}{
		{ImportsFile, b.Imports},
		{ExportsFile, b.Exports},
		{CountriesFile, b.Countries},
	}
	for _, file := range files {
		if err := file.t.WriteCSVFile(filepath.Join(dir, file.name)); err != nil {
			return fmt.Errorf("loader: write %s: %w", file.name, err)
		}
	}
	return nil
}
