package table

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSchema = Schema{
	Source:   []string{"CO_ANO", "CO_MES", "VL_FOB", "VL_FRETE"},
	Target:   []string{"Ano", "Mês", "Valor Free On Board", "Valor de frete"},
	Optional: 1,
}

func TestReadCSVSemicolonAndBOM(t *testing.T) {
	input := "\ufeff\"CO_ANO\";\"CO_MES\"\n2020;01\n2020;02\n"
	got, err := ReadCSV(strings.NewReader(input), ';')
	require.NoError(t, err)
	assert.Equal(t, []string{"CO_ANO", "CO_MES"}, got.Header)
	assert.Equal(t, [][]string{{"2020", "01"}, {"2020", "02"}}, got.Rows)
}

func TestReadCSVEmpty(t *testing.T) {
	_, err := ReadCSV(strings.NewReader(""), ',')
	assert.ErrorIs(t, err, ErrNoHeader)
}

func TestReadCSVRaggedRow(t *testing.T) {
	_, err := ReadCSV(strings.NewReader("a,b\n1,2,3\n"), ',')
	assert.Error(t, err)
}

func TestCSVFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rows.csv")
	content := "Ano,Nome do país\n2020,\"Coreia, Sul\"\n2021,Brasil\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	got, err := ReadCSVFile(path)
	require.NoError(t, err)
	require.Equal(t, 2, got.Len())

	var buf bytes.Buffer
	require.NoError(t, got.WriteCSV(&buf))
	assert.Equal(t, content, buf.String())
}

func TestWriteCSVFileRefusesOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rows.csv")
	tab := Table{Header: []string{"a"}, Rows: [][]string{{"1"}}}
	require.NoError(t, tab.WriteCSVFile(path))
	err := tab.WriteCSVFile(path)
	assert.True(t, errors.Is(err, os.ErrExist))
}

func TestSelectAndColumn(t *testing.T) {
	tab := Table{
		Header: []string{"CO_PAIS", "CO_PAIS_ISON3", "CO_PAIS_ISOA3", "NO_PAIS"},
		Rows:   [][]string{{"105", "076", "BRA", "Brasil"}},
	}
	got, err := tab.Select(0, 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"CO_PAIS", "NO_PAIS"}, got.Header)
	assert.Equal(t, [][]string{{"105", "Brasil"}}, got.Rows)

	_, err = tab.Select(9)
	assert.ErrorIs(t, err, ErrUnknownColumn)

	names, err := got.Column("NO_PAIS")
	require.NoError(t, err)
	assert.Equal(t, []string{"Brasil"}, names)
}

func TestSlice(t *testing.T) {
	tab := Table{Header: []string{"a"}, Rows: [][]string{{"1"}, {"2"}, {"3"}}}
	assert.Equal(t, 2, tab.Slice(1, 10).Len())
	assert.Equal(t, 0, tab.Slice(5, 10).Len())
}

func TestRenameIsTotal(t *testing.T) {
	tab := Table{Header: []string{"CO_ANO", "CO_MES", "VL_FOB", "VL_FRETE"}, Rows: [][]string{{"2020", "1", "10", "2"}}}
	got, err := Rename(tab, testSchema)
	require.NoError(t, err)
	assert.Equal(t, testSchema.Target, got.Header)
	assert.Equal(t, tab.Rows, got.Rows)
}

func TestRenameIsIdempotent(t *testing.T) {
	tab := Table{Header: []string{"CO_ANO", "CO_MES", "VL_FOB"}}
	once, err := Rename(tab, testSchema)
	require.NoError(t, err)
	twice, err := Rename(once, testSchema)
	require.NoError(t, err)
	assert.Equal(t, once.Header, twice.Header)
	assert.Equal(t, []string{"Ano", "Mês", "Valor Free On Board"}, twice.Header)
}

func TestRenameDetectsDrift(t *testing.T) {
	cases := map[string][]string{
		"reordered": {"CO_MES", "CO_ANO", "VL_FOB"},
		"too short": {"CO_ANO", "CO_MES"},
		"too long":  {"CO_ANO", "CO_MES", "VL_FOB", "VL_FRETE", "VL_SEGURO"},
		"unknown":   {"CO_ANO", "CO_MES", "VL_CIF"},
	}
	for name, header := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Rename(Table{Header: header}, testSchema)
			assert.ErrorIs(t, err, ErrSchemaDrift)
		})
	}
}

func TestSchemaValidateRejectsOverlap(t *testing.T) {
	s := Schema{Source: []string{"A", "B"}, Target: []string{"B", "C"}}
	assert.Error(t, s.Validate())
	assert.NoError(t, testSchema.Validate())
}

func TestLeftJoinFirst(t *testing.T) {
	countries := Table{
		Header: []string{"CO_PAIS", "NO_PAIS"},
		Rows:   [][]string{{"105", "Brasil"}, {"249", "Estados Unidos"}, {"999", "Desconhecido"}},
	}
	blocks := Table{
		Header: []string{"CO_PAIS", "NO_BLOCO"},
		Rows: [][]string{
			{"105", "Mercosul"},
			{"105", "América do Sul"},
			{"249", "América do Norte"},
		},
	}

	got, err := LeftJoinFirst(countries, blocks, "CO_PAIS", "n/a")
	require.NoError(t, err)
	assert.Equal(t, []string{"CO_PAIS", "NO_PAIS", "NO_BLOCO"}, got.Header)
	assert.Equal(t, [][]string{
		{"105", "Brasil", "Mercosul"},
		{"249", "Estados Unidos", "América do Norte"},
		{"999", "Desconhecido", "n/a"},
	}, got.Rows)

	_, err = LeftJoinFirst(countries, blocks, "CODE", "")
	assert.ErrorIs(t, err, ErrUnknownColumn)
}

func TestFromRecordsAndConcat(t *testing.T) {
	first := FromRecords([]Record{
		{Keys: []string{"noUf", "vlFob"}, Values: map[string]string{"noUf": "SP", "vlFob": "10"}},
		{Keys: []string{"noUf", "kgLiquido"}, Values: map[string]string{"noUf": "RJ", "kgLiquido": "3"}},
	})
	assert.Equal(t, []string{"noUf", "vlFob", "kgLiquido"}, first.Header)
	assert.Equal(t, [][]string{{"SP", "10", ""}, {"RJ", "", "3"}}, first.Rows)

	second := Table{Header: []string{"vlFob", "noUf"}, Rows: [][]string{{"7", "MG"}}}
	all := Concat(first, second, Table{})
	assert.Equal(t, first.Header, all.Header)
	assert.Equal(t, []string{"MG", "7", ""}, all.Rows[2])
	assert.Equal(t, 3, all.Len())
}
