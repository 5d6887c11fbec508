package table

import (
	"fmt"
	"strings"
)

// Schema maps upstream column names to display labels by position. The last
// Optional columns may be missing from a header, as the export files of recent
// years omit freight and insurance.
type Schema struct {
	Source   []string
	Target   []string
	Optional int
}

// Validate checks the schema is one-to-one and that no label is also a source
// name, so renaming twice can never relabel a column.
func (s Schema) Validate() error {
	if len(s.Source) != len(s.Target) {
		return fmt.Errorf("table: schema has %d source and %d target columns", len(s.Source), len(s.Target))
	}
	if s.Optional < 0 || s.Optional > len(s.Source) {
		return fmt.Errorf("table: schema optional count %d out of range", s.Optional)
	}
	sources := make(map[string]struct{}, len(s.Source))
	for _, name := range s.Source {
		key := strings.ToUpper(name)
		if _, dup := sources[key]; dup {
			return fmt.Errorf("table: duplicate source column %q", name)
		}
		sources[key] = struct{}{}
	}
	targets := make(map[string]struct{}, len(s.Target))
	for _, name := range s.Target {
		if _, dup := targets[name]; dup {
			return fmt.Errorf("table: duplicate target column %q", name)
		}
		if _, clash := sources[strings.ToUpper(name)]; clash {
			return fmt.Errorf("table: target column %q is also a source column", name)
		}
		targets[name] = struct{}{}
	}
	return nil
}

// Rename relabels t according to s. A header that already carries the target
// labels is returned unchanged; any other header is reported as drift.
func Rename(t Table, s Schema) (Table, error) {
	if err := s.Validate(); err != nil {
		return Table{}, err
	}

	width := len(t.Header)
	minimum := len(s.Source) - s.Optional
	if width < minimum || width > len(s.Source) {
		return Table{}, fmt.Errorf("%w: got %d columns, expected %d to %d", ErrSchemaDrift, width, minimum, len(s.Source))
	}

	if matches(t.Header, s.Target[:width], strings.EqualFold) {
		return t, nil
	}
	for i, column := range t.Header {
		if !strings.EqualFold(strings.TrimSpace(column), s.Source[i]) {
			return Table{}, fmt.Errorf("%w: column %d is %q, expected %q", ErrSchemaDrift, i, column, s.Source[i])
		}
	}

	header := make([]string, width)
	copy(header, s.Target[:width])
	return Table{Header: header, Rows: t.Rows}, nil
}

func matches(header, names []string, equal func(a, b string) bool) bool {
	if len(header) != len(names) {
		return false
	}
	for i := range header {
		if !equal(strings.TrimSpace(header[i]), names[i]) {
			return false
		}
	}
	return true
}
