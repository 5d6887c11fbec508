package table

import "fmt"

// LeftJoinFirst joins right onto left by the key column. Every left row is kept
// exactly once: the first matching right row wins, and rows with no match get
// missing in every right column.
func LeftJoinFirst(left, right Table, key, missing string) (Table, error) {
	leftKey, ok := left.Index(key)
	if !ok {
		return Table{}, fmt.Errorf("%w: %s in left table", ErrUnknownColumn, key)
	}
	rightKey, ok := right.Index(key)
	if !ok {
		return Table{}, fmt.Errorf("%w: %s in right table", ErrUnknownColumn, key)
	}

	first := make(map[string][]string, len(right.Rows))
	for _, row := range right.Rows {
		if _, seen := first[row[rightKey]]; seen {
			continue
		}
		first[row[rightKey]] = row
	}

	header := append([]string{}, left.Header...)
	for i, column := range right.Header {
		if i == rightKey {
			continue
		}
		header = append(header, column)
	}

	rows := make([][]string, 0, len(left.Rows))
	for _, row := range left.Rows {
		joined := append(make([]string, 0, len(header)), row...)
		match, ok := first[row[leftKey]]
		for i := range right.Header {
			if i == rightKey {
				continue
			}
			if ok {
				joined = append(joined, match[i])
			} else {
				joined = append(joined, missing)
			}
		}
		rows = append(rows, joined)
	}
	return Table{Header: header, Rows: rows}, nil
}

// Record is one row with its keys in source order.
type Record struct {
	Keys   []string
	Values map[string]string
}

// FromRecords builds a table whose header is the union of record keys in the
// order they are first seen. Absent values are empty.
func FromRecords(records []Record) Table {
	header := make([]string, 0)
	seen := make(map[string]struct{})
	for _, record := range records {
		for _, key := range record.Keys {
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			header = append(header, key)
		}
	}

	rows := make([][]string, 0, len(records))
	for _, record := range records {
		row := make([]string, len(header))
		for i, key := range header {
			row[i] = record.Values[key]
		}
		rows = append(rows, row)
	}
	return Table{Header: header, Rows: rows}
}

// Concat stacks tables, aligning columns by name.
func Concat(tables ...Table) Table {
	header := make([]string, 0)
	seen := make(map[string]struct{})
	for _, t := range tables {
		for _, column := range t.Header {
			if _, ok := seen[column]; ok {
				continue
			}
			seen[column] = struct{}{}
			header = append(header, column)
		}
	}

	out := Table{Header: header, Rows: make([][]string, 0)}
	for _, t := range tables {
		positions := make([]int, len(header))
		for i, column := range header {
			index, ok := t.Index(column)
			if !ok {
				index = -1
			}
			positions[i] = index
		}
		for _, row := range t.Rows {
			aligned := make([]string, len(header))
			for i, index := range positions {
				if index >= 0 {
					aligned[i] = row[index]
				}
			}
			out.Rows = append(out.Rows, aligned)
		}
	}
	return out
}
