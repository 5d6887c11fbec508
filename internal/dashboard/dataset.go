package dashboard

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"comexstat/internal/table"
)

var ErrNotNumeric = errors.New("dashboard: column is not numeric")

// Dataset is a table loaded once at start-up with one categorical column and
// the numeric columns that can be histogrammed against it.
type Dataset struct {
	Table   table.Table
	X       string
	Columns []string
	Default string

	x      int
	values map[string][]float64
}

// Bin is the sum of one column over the rows sharing a category.
type Bin struct {
	Category string  `json:"category"`
	Sum      float64 `json:"sum"`
}

// NewDataset validates x and the selectable columns. An empty column list
// selects every column except x. An empty or unknown default falls back to the
// first selectable column.
func NewDataset(t table.Table, x string, columns []string, def string) (*Dataset, error) {
	xIndex, ok := t.Index(x)
	if !ok {
		return nil, fmt.Errorf("%w: %s", table.ErrUnknownColumn, x)
	}
	if len(columns) == 0 {
		for _, name := range t.Header {
			if name != x {
				columns = append(columns, name)
			}
		}
	}
	if len(columns) == 0 {
		return nil, errors.New("dashboard: no selectable columns")
	}

	values := make(map[string][]float64, len(columns))
	for _, name := range columns {
		cells, err := t.Column(name)
		if err != nil {
			return nil, err
		}
		parsed := make([]float64, len(cells))
		for i, cell := range cells {
			v, err := parseNumber(cell)
			if err != nil {
				return nil, fmt.Errorf("%w: %s row %d: %q", ErrNotNumeric, name, i+1, cell)
			}
			parsed[i] = v
		}
		values[name] = parsed
	}

	if _, ok := values[def]; !ok {
		def = columns[0]
	}
	return &Dataset{Table: t, X: x, Columns: columns, Default: def, x: xIndex, values: values}, nil
}

func LoadDataset(path, x string, columns []string, def string) (*Dataset, error) {
	t, err := table.ReadCSVFile(path)
	if err != nil {
		return nil, err
	}
	return NewDataset(t, x, columns, def)
}

func (d *Dataset) Has(column string) bool {
	_, ok := d.values[column]
	return ok
}

// Histogram sums column per category of X, categories in first-seen order.
func (d *Dataset) Histogram(column string) ([]Bin, error) {
	values, ok := d.values[column]
	if !ok {
		return nil, fmt.Errorf("%w: %s", table.ErrUnknownColumn, column)
	}
	index := make(map[string]int)
	bins := make([]Bin, 0)
	for i, row := range d.Table.Rows {
		category := row[d.x]
		pos, ok := index[category]
		if !ok {
			pos = len(bins)
			index[category] = pos
			bins = append(bins, Bin{Category: category})
		}
		bins[pos].Sum += values[i]
	}
	return bins, nil
}

// Pages is the number of pages of the given size, at least one.
func (d *Dataset) Pages(size int) int {
	if size <= 0 || d.Table.Len() == 0 {
		return 1
	}
	return (d.Table.Len() + size - 1) / size
}

// Page returns rows of the 1-based page, clamped to the valid range.
func (d *Dataset) Page(page, size int) (int, table.Table) {
	pages := d.Pages(size)
	if page < 1 {
		page = 1
	}
	if page > pages {
		page = pages
	}
	if size <= 0 {
		return page, d.Table
	}
	from := (page - 1) * size
	return page, d.Table.Slice(from, from+size)
}

func parseNumber(value string) (float64, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, nil
	}
	value = strings.TrimSuffix(value, "%")
	if strings.Contains(value, ",") {
		value = strings.ReplaceAll(strings.ReplaceAll(value, ".", ""), ",", ".")
	}
	return strconv.ParseFloat(value, 64)
}
