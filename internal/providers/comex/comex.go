package comex

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/time/rate"

	"comexstat/internal/model"
	"comexstat/internal/providers"
	"comexstat/internal/table"
)

const (
	defaultBaseURL           = "https://balanca.economia.gov.br/balanca/bd/"
	defaultTradePathTemplate = "comexstat-bd/ncm/{prefix}_{year}.csv"
	defaultCountriesPath     = "tabelas/PAIS.csv"
	defaultBlocksPath        = "tabelas/PAIS_BLOCO.csv"
	defaultTimeout           = 10 * time.Minute
	defaultUserAgent         = "comexstat/0.1"
	separator                = ';'
)

var ErrNotFound = errors.New("comex: file not found")

type Config struct {
	BaseURL           string        `env:"COMEX_BASE_URL" envDefault:"https://balanca.economia.gov.br/balanca/bd/"`
	TradePathTemplate string        `env:"COMEX_TRADE_PATH" envDefault:"comexstat-bd/ncm/{prefix}_{year}.csv"`
	CountriesPath     string        `env:"COMEX_COUNTRIES_PATH" envDefault:"tabelas/PAIS.csv"`
	BlocksPath        string        `env:"COMEX_BLOCKS_PATH" envDefault:"tabelas/PAIS_BLOCO.csv"`
	Timeout           time.Duration `env:"COMEX_TIMEOUT" envDefault:"10m"`
	UserAgent         string        `env:"COMEX_USER_AGENT" envDefault:"comexstat/0.1"`
	// The portal's certificate chain does not validate, so verification is
	// off unless asked for.
	VerifyTLS       bool    `env:"COMEX_VERIFY_TLS" envDefault:"false"`
	RateLimitPerSec float64 `env:"COMEX_RATE_LIMIT_PER_SEC" envDefault:"0"`
}

type Provider struct {
	config  Config
	client  *http.Client
	limiter *rate.Limiter
}

func New() (*Provider, error) {
	cfg, err := ConfigFromEnv()
	if err != nil {
		return nil, err
	}
	return NewWithConfig(cfg)
}

func NewWithConfig(cfg Config) (*Provider, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = defaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/") + "/"
	if strings.TrimSpace(cfg.TradePathTemplate) == "" {
		cfg.TradePathTemplate = defaultTradePathTemplate
	}
	if strings.TrimSpace(cfg.CountriesPath) == "" {
		cfg.CountriesPath = defaultCountriesPath
	}
	if strings.TrimSpace(cfg.BlocksPath) == "" {
		cfg.BlocksPath = defaultBlocksPath
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: !cfg.VerifyTLS}

	var limiter *rate.Limiter
	if cfg.RateLimitPerSec > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitPerSec), 1)
	}

	return &Provider{
		config:  cfg,
		client:  &http.Client{Timeout: cfg.Timeout, Transport: transport},
		limiter: limiter,
	}, nil
}

func ConfigFromEnv() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("comex: config: %w", err)
	}
	return cfg, nil
}

func (p *Provider) Name() string {
	return "comex"
}

// FetchTrade downloads the yearly import or export file (UTF-8).
func (p *Provider) FetchTrade(ctx context.Context, year int, flow model.Flow) (table.Table, error) {
	body, err := p.doRequest(ctx, p.tradePath(year, flow))
	if err != nil {
		return table.Table{}, err
	}
	t, err := table.ReadCSV(bytes.NewReader(body), separator)
	if err != nil {
		return table.Table{}, fmt.Errorf("comex: parse %s %d: %w", flow, year, err)
	}
	return t, nil
}

// FetchCountries returns CO_PAIS and NO_PAIS from PAIS.csv.
func (p *Provider) FetchCountries(ctx context.Context) (table.Table, error) {
	return p.fetchReference(ctx, p.config.CountriesPath, 0, 3)
}

// FetchBlocks returns CO_PAIS and NO_BLOCO from PAIS_BLOCO.csv.
func (p *Provider) FetchBlocks(ctx context.Context) (table.Table, error) {
	return p.fetchReference(ctx, p.config.BlocksPath, 0, 2)
}

func (p *Provider) fetchReference(ctx context.Context, path string, cols ...int) (table.Table, error) {
	body, err := p.doRequest(ctx, path)
	if err != nil {
		return table.Table{}, err
	}
	decoded := charmap.ISO8859_1.NewDecoder().Reader(bytes.NewReader(body))
	t, err := table.ReadCSV(decoded, separator)
	if err != nil {
		return table.Table{}, fmt.Errorf("comex: parse %s: %w", path, err)
	}
	return t.Select(cols...)
}

func (p *Provider) tradePath(year int, flow model.Flow) string {
	path := p.config.TradePathTemplate
	path = strings.ReplaceAll(path, "{prefix}", flow.FilePrefix())
	path = strings.ReplaceAll(path, "{year}", strconv.Itoa(year))
	return path
}

func (p *Provider) doRequest(ctx context.Context, path string) ([]byte, error) {
	endpoint := p.config.BaseURL + strings.TrimLeft(path, "/")

	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/csv")
	if p.config.UserAgent != "" {
		req.Header.Set("User-Agent", p.config.UserAgent)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, endpoint)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("comex: request failed (%s): %s", resp.Status, endpoint)
	}
	return body, nil
}

var _ providers.Source = (*Provider)(nil)
