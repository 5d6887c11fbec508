// Package table holds the small row/column value the loaders pass around and
// the CSV codec used for the on-disk cache.
package table

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

var (
	ErrSchemaDrift   = errors.New("table: schema drift")
	ErrUnknownColumn = errors.New("table: unknown column")
	ErrNoHeader      = errors.New("table: missing header row")
)

const bom = "\ufeff"

type Table struct {
	Header []string
	Rows   [][]string
}

func (t Table) Len() int {
	return len(t.Rows)
}

func (t Table) Index(name string) (int, bool) {
	for i, column := range t.Header {
		if column == name {
			return i, true
		}
	}
	return -1, false
}

func (t Table) Column(name string) ([]string, error) {
	index, ok := t.Index(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownColumn, name)
	}
	values := make([]string, len(t.Rows))
	for i, row := range t.Rows {
		values[i] = row[index]
	}
	return values, nil
}

// Select keeps the columns at the given positions, in the given order.
func (t Table) Select(cols ...int) (Table, error) {
	header := make([]string, len(cols))
	for i, col := range cols {
		if col < 0 || col >= len(t.Header) {
			return Table{}, fmt.Errorf("%w: position %d of %d", ErrUnknownColumn, col, len(t.Header))
		}
		header[i] = t.Header[col]
	}
	rows := make([][]string, len(t.Rows))
	for i, row := range t.Rows {
		selected := make([]string, len(cols))
		for j, col := range cols {
			selected[j] = row[col]
		}
		rows[i] = selected
	}
	return Table{Header: header, Rows: rows}, nil
}

// Slice returns rows [from, to) clamped to the table bounds.
func (t Table) Slice(from, to int) Table {
	if from < 0 {
		from = 0
	}
	if to > len(t.Rows) {
		to = len(t.Rows)
	}
	if from >= to {
		return Table{Header: t.Header, Rows: [][]string{}}
	}
	return Table{Header: t.Header, Rows: t.Rows[from:to]}
}

func ReadCSV(r io.Reader, sep rune) (Table, error) {
	reader := csv.NewReader(r)
	reader.Comma = sep
	reader.LazyQuotes = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return Table{}, ErrNoHeader
	}
	if err != nil {
		return Table{}, err
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], bom)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	rows := make([][]string, 0)
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Table{}, err
		}
		rows = append(rows, record)
	}
	return Table{Header: header, Rows: rows}, nil
}

func ReadCSVFile(path string) (Table, error) {
	file, err := os.Open(path)
	if err != nil {
		return Table{}, err
	}
	defer file.Close()

	t, err := ReadCSV(file, ',')
	if err != nil {
		return Table{}, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

func (t Table) WriteCSV(w io.Writer) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(t.Header); err != nil {
		return err
	}
	if err := writer.WriteAll(t.Rows); err != nil {
		return err
	}
	return writer.Error()
}

// WriteCSVFile creates path and fails if it already exists.
func (t Table) WriteCSVFile(path string) error {
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	if err := t.WriteCSV(file); err != nil {
		_ = file.Close()
		return fmt.Errorf("%s: %w", path, err)
	}
	return file.Close()
}
