package loader

import (
	"bytes"
	"context"
	"io/fs"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"comexstat/internal/model"
	"comexstat/internal/providers/comex"
	"comexstat/internal/table"
)

type fakeSource struct {
	mu        sync.Mutex
	calls     int
	trade     map[model.Flow]table.Table
	countries table.Table
	blocks    table.Table
}

func (f *fakeSource) Name() string { return "fake" }

func (f *fakeSource) FetchTrade(ctx context.Context, year int, flow model.Flow) (table.Table, error) {
	f.count()
	return f.trade[flow], nil
}

func (f *fakeSource) FetchCountries(ctx context.Context) (table.Table, error) {
	f.count()
	return f.countries, nil
}

func (f *fakeSource) FetchBlocks(ctx context.Context) (table.Table, error) {
	f.count()
	return f.blocks, nil
}

func (f *fakeSource) count() {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
}

const (
	cachedImports   = "Ano,Mês,NCM\n2020,1,01012100\n2020,2,02013000\n"
	cachedExports   = "Ano,Mês,NCM\n2020,3,09011110\n2020,4,12019000\n"
	cachedCountries = "Código do país,Nome do país,Nome do bloco\n105,Brasil,Mercosul\n249,Estados Unidos,América do Norte\n"
)

func writeCache(t *testing.T, dir string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ImportsFile), []byte(cachedImports), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ExportsFile), []byte(cachedExports), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, CountriesFile), []byte(cachedCountries), 0o644))
}

func csvBytes(t *testing.T, tab table.Table) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, tab.WriteCSV(&buf))
	return buf.String()
}

func TestLoadCacheHitMakesNoRequests(t *testing.T) {
	root := t.TempDir()
	writeCache(t, filepath.Join(root, "comex-2020"))
	source := &fakeSource{}

	bundle, err := New(root, source, nil).Load(context.Background(), 2020)
	require.NoError(t, err)

	assert.Equal(t, 0, source.calls)
	assert.Equal(t, filepath.Join(root, "comex-2020"), bundle.Dir)
	assert.Equal(t, 2, bundle.Imports.Len())
	assert.Equal(t, 2, bundle.Exports.Len())
	assert.Equal(t, 2, bundle.Countries.Len())
	assert.Equal(t, cachedImports, csvBytes(t, bundle.Imports))
	assert.Equal(t, cachedExports, csvBytes(t, bundle.Exports))
	assert.Equal(t, cachedCountries, csvBytes(t, bundle.Countries))
}

const (
	remoteImports = "CO_ANO;CO_MES;CO_NCM;CO_UNID;CO_PAIS;SG_UF_NCM;CO_VIA;CO_URF;QT_ESTAT;KG_LIQUIDO;VL_FOB;VL_FRETE;VL_SEGURO\n" +
		"1999;01;01012100;11;249;SP;4;817700;2;900;45000;1200;80\n" +
		"1999;02;02013000;10;105;RJ;1;717600;10;10000;30000;900;40\n" +
		"1999;03;09011110;10;999;MG;7;0;5;5000;12000;300;10\n"
	remoteExports = "CO_ANO;CO_MES;CO_NCM;CO_UNID;CO_PAIS;SG_UF_NCM;CO_VIA;CO_URF;QT_ESTAT;KG_LIQUIDO;VL_FOB\n" +
		"1999;01;12019000;10;160;PR;1;917800;60000;60000;21000\n" +
		"1999;05;26011100;10;160;MG;1;717600;90000;90000;18000\n" +
		"1999;09;09011110;10;249;ES;1;727600;300;300;900\n"
	remoteCountries = "CO_PAIS;CO_PAIS_ISON3;CO_PAIS_ISOA3;NO_PAIS;NO_PAIS_ING;NO_PAIS_ESP\n" +
		"160;156;CHN;China;China;China\n" +
		"249;840;USA;Estados Unidos;United States;Estados Unidos\n" +
		"999;999;ZZZ;N\xe3o Definido;Undefined;No Definido\n"
	remoteBlocks = "CO_PAIS;CO_BLOCO;NO_BLOCO;NO_BLOCO_ING;NO_BLOCO_ESP\n" +
		"160;41;\xc1sia (Exclusive Oriente M\xe9dio);Asia;Asia\n" +
		"249;22;Am\xe9rica do Norte;North America;Am\xe9rica del Norte\n" +
		"249;105;Estados Unidos (inclusive Porto Rico);United States;Estados Unidos\n"
)

func TestLoadCacheMissFetchesAndPersists(t *testing.T) {
	var mu sync.Mutex
	var paths []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		paths = append(paths, r.URL.Path)
		mu.Unlock()
		switch {
		case strings.HasSuffix(r.URL.Path, "/IMP_1999.csv"):
			_, _ = w.Write([]byte(remoteImports))
		case strings.HasSuffix(r.URL.Path, "/EXP_1999.csv"):
			_, _ = w.Write([]byte(remoteExports))
		case strings.HasSuffix(r.URL.Path, "/PAIS.csv"):
			_, _ = w.Write([]byte(remoteCountries))
		case strings.HasSuffix(r.URL.Path, "/PAIS_BLOCO.csv"):
			_, _ = w.Write([]byte(remoteBlocks))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	source, err := comex.NewWithConfig(comex.Config{BaseURL: server.URL})
	require.NoError(t, err)
	root := t.TempDir()

	bundle, err := New(root, source, nil).Load(context.Background(), 1999)
	require.NoError(t, err)

	assert.Len(t, paths, 4)
	dir := filepath.Join(root, "comex-1999")
	assert.Equal(t, dir, bundle.Dir)
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 3)

	assert.Equal(t, comex.ImportSchema.Target, bundle.Imports.Header)
	assert.Equal(t, comex.ExportSchema.Target[:11], bundle.Exports.Header)
	assert.Equal(t, 3, bundle.Imports.Len())
	assert.Equal(t, 3, bundle.Exports.Len())
	assert.Equal(t, "45000", bundle.Imports.Rows[0][10])
	assert.Equal(t, "PR", bundle.Exports.Rows[0][5])

	assert.Equal(t, comex.CountrySchema.Target, bundle.Countries.Header)
	assert.Equal(t, [][]string{
		{"160", "China", "Ásia (Exclusive Oriente Médio)"},
		{"249", "Estados Unidos", "América do Norte"},
		{"999", "Não Definido", comex.NoBlock},
	}, bundle.Countries.Rows)

	again, err := New(root, &fakeSource{}, nil).Load(context.Background(), 1999)
	require.NoError(t, err)
	assert.Equal(t, bundle, again)
}

func TestLoadRefusesExistingDirectory(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "comex-2021")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ImportsFile), []byte(cachedImports), 0o644))

	source := &fakeSource{
		trade: map[model.Flow]table.Table{
			model.FlowImport: {Header: comex.ImportSchema.Source},
			model.FlowExport: {Header: comex.ExportSchema.Source},
		},
		countries: table.Table{Header: []string{"CO_PAIS", "NO_PAIS"}},
		blocks:    table.Table{Header: []string{"CO_PAIS", "NO_BLOCO"}},
	}
	_, err := New(root, source, nil).Load(context.Background(), 2021)
	assert.ErrorIs(t, err, fs.ErrExist)
	assert.Equal(t, 4, source.calls)
}

func TestLoadSchemaDriftWritesNothing(t *testing.T) {
	root := t.TempDir()
	source := &fakeSource{
		trade: map[model.Flow]table.Table{
			model.FlowImport: {Header: []string{"CO_MES", "CO_ANO"}},
		},
	}
	_, err := New(root, source, nil).Load(context.Background(), 2022)
	assert.ErrorIs(t, err, table.ErrSchemaDrift)
	_, statErr := os.Stat(filepath.Join(root, "comex-2022"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestLoadRejectsBadYear(t *testing.T) {
	_, err := New(t.TempDir(), &fakeSource{}, nil).Load(context.Background(), 99)
	assert.ErrorIs(t, err, ErrInvalidYear)
}

func TestRefreshMovesCacheAside(t *testing.T) {
	root := t.TempDir()
	writeCache(t, filepath.Join(root, "comex-2020"))
	source := &fakeSource{
		trade: map[model.Flow]table.Table{
			model.FlowImport: {Header: comex.ImportSchema.Source, Rows: [][]string{make([]string, 13)}},
			model.FlowExport: {Header: comex.ExportSchema.Source[:11]},
		},
		countries: table.Table{Header: []string{"CO_PAIS", "NO_PAIS"}, Rows: [][]string{{"1", "A"}}},
		blocks:    table.Table{Header: []string{"CO_PAIS", "NO_BLOCO"}},
	}

	bundle, err := New(root, source, nil).Refresh(context.Background(), 2020)
	require.NoError(t, err)
	assert.Equal(t, 4, source.calls)
	assert.Equal(t, 1, bundle.Imports.Len())
	assert.Equal(t, 0, bundle.Exports.Len())

	matches, err := filepath.Glob(filepath.Join(root, "comex-2020.stale-*"))
	require.NoError(t, err)
	assert.Len(t, matches, 1)
}
