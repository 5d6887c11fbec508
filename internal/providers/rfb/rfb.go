// Package rfb loads the Receita Federal monthly resource-transfer table.
package rfb

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/shopspring/decimal"

	"comexstat/internal/model"
	"comexstat/internal/table"
)

const (
	defaultURL       = "https://www.gov.br/receitafederal/dados/repasse-s.csv"
	defaultTimeout   = 60 * time.Second
	defaultUserAgent = "comexstat/0.1"

	ColReference = "Mês / Ano de Referência"
	ColEntity    = "Entidade"
	ColTotal     = "Total Repassado"
	ColMonth     = "Mês"
	ColYear      = "Ano"
)

var ErrBadReference = errors.New("rfb: malformed reference month")

var monthNumbers = map[string]string{
	"jan": "01", "fev": "02", "mar": "03", "abr": "04", "mai": "05", "jun": "06",
	"jul": "07", "ago": "08", "set": "09", "out": "10", "nov": "11", "dez": "12",
}

type Config struct {
	URL       string        `env:"RFB_TRANSFERS_URL" envDefault:"https://www.gov.br/receitafederal/dados/repasse-s.csv"`
	Timeout   time.Duration `env:"RFB_TIMEOUT" envDefault:"60s"`
	UserAgent string        `env:"RFB_USER_AGENT" envDefault:"comexstat/0.1"`
}

type Provider struct {
	config Config
	client *http.Client
}

func New() (*Provider, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("rfb: config: %w", err)
	}
	return NewWithConfig(cfg)
}

func NewWithConfig(cfg Config) (*Provider, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		cfg.URL = defaultURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	return &Provider{config: cfg, client: &http.Client{Timeout: cfg.Timeout}}, nil
}

func (p *Provider) URL() string {
	return p.config.URL
}

// FetchTransfers returns the table as published and the parsed transfers.
func (p *Provider) FetchTransfers(ctx context.Context) (table.Table, []model.Transfer, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.config.URL, nil)
	if err != nil {
		return table.Table{}, nil, err
	}
	req.Header.Set("User-Agent", p.config.UserAgent)

	resp, err := p.client.Do(req)
	if err != nil {
		return table.Table{}, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return table.Table{}, nil, err
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return table.Table{}, nil, fmt.Errorf("rfb: request failed (%s)", resp.Status)
	}

	published, err := table.ReadCSV(bytes.NewReader(body), ';')
	if err != nil {
		return table.Table{}, nil, fmt.Errorf("rfb: parse: %w", err)
	}
	transfers, err := ParseTransfers(published)
	if err != nil {
		return table.Table{}, nil, err
	}
	return published, transfers, nil
}

// ParseTransfers splits the "jan/19" reference into month and four-digit year
// and reads the total with its thousands separators removed.
func ParseTransfers(t table.Table) ([]model.Transfer, error) {
	references, err := t.Column(ColReference)
	if err != nil {
		return nil, err
	}
	entities, err := t.Column(ColEntity)
	if err != nil {
		return nil, err
	}
	totals, err := t.Column(ColTotal)
	if err != nil {
		return nil, err
	}

	transfers := make([]model.Transfer, 0, len(references))
	for i := range references {
		month, year, err := splitReference(references[i])
		if err != nil {
			return nil, fmt.Errorf("rfb: row %d: %w", i+1, err)
		}
		total, err := ParseAmount(totals[i])
		if err != nil {
			return nil, fmt.Errorf("rfb: row %d: %w", i+1, err)
		}
		transfers = append(transfers, model.Transfer{
			Month:  month,
			Year:   year,
			Entity: strings.TrimSpace(entities[i]),
			Total:  total,
		})
	}
	return transfers, nil
}

// ParseAmount reads "1.234.567,89" style amounts.
func ParseAmount(value string) (decimal.Decimal, error) {
	value = strings.TrimSpace(value)
	value = strings.TrimPrefix(value, "R$")
	value = strings.ReplaceAll(strings.TrimSpace(value), ".", "")
	value = strings.ReplaceAll(value, ",", ".")
	return decimal.NewFromString(value)
}

func splitReference(value string) (string, string, error) {
	parts := strings.Split(strings.TrimSpace(value), "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("%w: %q", ErrBadReference, value)
	}
	year := parts[1]
	if len(year) == 2 {
		year = "20" + year
	}
	return strings.ToLower(parts[0]), year, nil
}

// MonthKey turns "jan/2019" into "2019-01".
func MonthKey(value string) (string, error) {
	month, year, err := splitReference(value)
	if err != nil {
		return "", err
	}
	number, ok := monthNumbers[month]
	if !ok {
		return "", fmt.Errorf("%w: unknown month %q", ErrBadReference, month)
	}
	return year + "-" + number, nil
}

// Project keeps Mês, Ano, Entidade and Total Repassado, in that order.
func Project(transfers []model.Transfer) table.Table {
	rows := make([][]string, 0, len(transfers))
	for _, transfer := range transfers {
		rows = append(rows, []string{transfer.Month, transfer.Year, transfer.Entity, transfer.Total.String()})
	}
	return table.Table{Header: []string{ColMonth, ColYear, ColEntity, ColTotal}, Rows: rows}
}
