// Package comexapi queries the comexstat JSON API one (state, month, flow) at
// a time and reassembles the answers into one table per flow.
package comexapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"comexstat/internal/model"
	"comexstat/internal/table"
)

const (
	defaultBaseURL        = "http://api.comexstat.mdic.gov.br/"
	defaultStatesPath     = "pt/location/states"
	defaultGeneralPath    = "general"
	defaultMaxConns       = 350
	defaultRequestTimeout = 2 * time.Minute
	defaultUserAgent      = "comexstat/0.1"
	defaultMaxRetries     = 2
)

var (
	ErrUnexpectedStatus = errors.New("comexapi: unexpected status")
	ErrNoStates         = errors.New("comexapi: no states listed")
)

type Config struct {
	BaseURL         string        `env:"COMEXAPI_BASE_URL" envDefault:"http://api.comexstat.mdic.gov.br/"`
	StatesPath      string        `env:"COMEXAPI_STATES_PATH" envDefault:"pt/location/states"`
	GeneralPath     string        `env:"COMEXAPI_GENERAL_PATH" envDefault:"general"`
	MaxConns        int           `env:"COMEXAPI_MAX_CONNS" envDefault:"350"`
	RequestTimeout  time.Duration `env:"COMEXAPI_REQUEST_TIMEOUT" envDefault:"2m"`
	RateLimitPerSec float64       `env:"COMEXAPI_RATE_LIMIT_PER_SEC" envDefault:"0"`
	UserAgent       string        `env:"COMEXAPI_USER_AGENT" envDefault:"comexstat/0.1"`
	// MaxRetries applies to 429 answers only; -1 disables retries.
	MaxRetries int `env:"COMEXAPI_MAX_RETRIES" envDefault:"2"`
}

type Provider struct {
	config  Config
	client  *http.Client
	limiter *rate.Limiter
	logger  *zap.Logger
}

// Request is one (state, month, flow) query.
type Request struct {
	Year  int
	Flow  model.Flow
	State string
	Month model.Month
}

// Result carries the rows of a request, or the reason it has none. A request
// answered with an empty list is FetchEmpty; any transport, status or decode
// problem is FetchFailed with Err set.
type Result struct {
	Request
	Status model.FetchStatus
	Rows   []table.Record
	Err    error
}

type Summary struct {
	Requested int
	WithRows  int
	Empty     int
	Failed    int
	Rows      int
}

type Report struct {
	Exports  Summary
	Imports  Summary
	Failures []Result
}

// Complete reports whether every request was answered.
func (r Report) Complete() bool {
	return r.Exports.Failed == 0 && r.Imports.Failed == 0
}

type Outcome struct {
	Exports table.Table
	Imports table.Table
	Report  Report
	Results []Result
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
	if strings.TrimSpace(cfg.StatesPath) == "" {
		cfg.StatesPath = defaultStatesPath
	}
	if strings.TrimSpace(cfg.GeneralPath) == "" {
		cfg.GeneralPath = defaultGeneralPath
	}
	if cfg.MaxConns <= 0 {
		cfg.MaxConns = defaultMaxConns
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = defaultMaxRetries
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.MaxConnsPerHost = cfg.MaxConns
	transport.MaxIdleConnsPerHost = cfg.MaxConns

	var limiter *rate.Limiter
	if cfg.RateLimitPerSec > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitPerSec), 1)
	}

	return &Provider{
		config:  cfg,
		client:  &http.Client{Transport: transport},
		limiter: limiter,
		logger:  zap.NewNop(),
	}, nil
}

func ConfigFromEnv() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("comexapi: config: %w", err)
	}
	return cfg, nil
}

func (p *Provider) WithLogger(logger *zap.Logger) *Provider {
	if logger != nil {
		p.logger = logger
	}
	return p
}

func (p *Provider) Name() string {
	return "comexapi"
}

// Fetch lists the states and queries every (state, month) pair of year for
// both flows.
func (p *Provider) Fetch(ctx context.Context, year int) (Outcome, error) {
	states, err := p.ListStates(ctx)
	if err != nil {
		return Outcome{}, err
	}
	ids := make([]string, 0, len(states))
	for _, state := range states {
		ids = append(ids, state.ID)
	}

	results, err := p.FetchAll(ctx, Plan(ids, year))
	if err != nil {
		return Outcome{}, err
	}
	exports, imports, report := Assemble(results)
	return Outcome{Exports: exports, Imports: imports, Report: report, Results: results}, nil
}

func (p *Provider) ListStates(ctx context.Context) ([]model.State, error) {
	filter, err := encodeStateField()
	if err != nil {
		return nil, err
	}
	body, status, _, err := p.doRequest(ctx, p.config.StatesPath, url.Values{"filter": {filter}})
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("%w: states (%d)", ErrUnexpectedStatus, status)
	}

	var list []model.State
	if err := json.Unmarshal(body, &list); err != nil {
		var wrapped struct {
			Data []model.State `json:"data"`
		}
		if errWrapped := json.Unmarshal(body, &wrapped); errWrapped != nil {
			return nil, fmt.Errorf("comexapi: decode states: %w", err)
		}
		list = wrapped.Data
	}

	states := make([]model.State, 0, len(list))
	for _, state := range list {
		if strings.TrimSpace(state.ID) == "" {
			continue
		}
		states = append(states, state)
	}
	if len(states) == 0 {
		return nil, ErrNoStates
	}
	return states, nil
}

// Plan builds the export requests followed by the import requests, state by
// state and month by month.
func Plan(states []string, year int) []Request {
	requests := make([]Request, 0, 2*len(states)*len(model.Months))
	for _, flow := range []model.Flow{model.FlowExport, model.FlowImport} {
		for _, state := range states {
			for _, month := range model.Months {
				requests = append(requests, Request{Year: year, Flow: flow, State: state, Month: month})
			}
		}
	}
	return requests
}

// FetchAll issues the requests concurrently, at most MaxConns at a time, and
// returns one result per request in input order. The error is non-nil only
// when ctx ends; individual failures are reported in the results.
func (p *Provider) FetchAll(ctx context.Context, requests []Request) ([]Result, error) {
	results := make([]Result, len(requests))

	var g errgroup.Group
	g.SetLimit(p.config.MaxConns)
	for i, req := range requests {
		i, req := i, req
		g.Go(func() error {
			results[i] = p.fetchOne(ctx, req)
			return nil
		})
	}
	_ = g.Wait()

	return results, ctx.Err()
}

func (p *Provider) fetchOne(ctx context.Context, req Request) Result {
	result := Result{Request: req}
	fail := func(err error) Result {
		result.Status = model.FetchFailed
		result.Err = err
		p.logger.Debug("comexapi request failed",
			zap.String("flow", string(req.Flow)),
			zap.String("state", req.State),
			zap.String("month", req.Month.Number),
			zap.Error(err),
		)
		return result
	}

	filter, err := NewGeneralFilter(req.Year, req.Month, req.State, req.Flow).Encode()
	if err != nil {
		return fail(err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, p.config.RequestTimeout)
	defer cancel()

	var body []byte
	for attempt := 0; ; attempt++ {
		var (
			status     int
			retryAfter time.Duration
		)
		body, status, retryAfter, err = p.doRequest(reqCtx, p.config.GeneralPath, url.Values{"filter": {filter}})
		if err != nil {
			return fail(err)
		}
		if status == http.StatusOK {
			break
		}
		if status == http.StatusTooManyRequests && attempt < p.config.MaxRetries {
			if retryAfter <= 0 {
				retryAfter = time.Second
			}
			if err := sleepWithContext(reqCtx, retryAfter); err != nil {
				return fail(err)
			}
			continue
		}
		return fail(fmt.Errorf("%w: %d", ErrUnexpectedStatus, status))
	}

	rows, err := decodeRecords(body)
	if err != nil {
		return fail(err)
	}
	result.Rows = rows
	if len(rows) == 0 {
		result.Status = model.FetchEmpty
	} else {
		result.Status = model.FetchOK
	}
	return result
}

// Assemble concatenates the rows of every answered request per flow.
func Assemble(results []Result) (exports, imports table.Table, report Report) {
	var exportRows, importRows []table.Record
	for _, result := range results {
		summary := &report.Exports
		rows := &exportRows
		if result.Flow == model.FlowImport {
			summary = &report.Imports
			rows = &importRows
		}

		summary.Requested++
		switch result.Status {
		case model.FetchOK:
			summary.WithRows++
			summary.Rows += len(result.Rows)
			*rows = append(*rows, result.Rows...)
		case model.FetchEmpty:
			summary.Empty++
		default:
			summary.Failed++
			report.Failures = append(report.Failures, result)
		}
	}
	return table.FromRecords(exportRows), table.FromRecords(importRows), report
}

// FetchRun converts a result into the row recorded for a fetch run.
func (r Result) FetchRun(runID string, at time.Time) model.FetchRun {
	run := model.FetchRun{
		RunID:     runID,
		Flow:      r.Flow,
		Year:      r.Year,
		State:     r.State,
		Month:     r.Month.Number,
		Status:    r.Status,
		Rows:      len(r.Rows),
		FetchedAt: at,
	}
	if r.Err != nil {
		run.Error = r.Err.Error()
	}
	return run
}

func (p *Provider) doRequest(ctx context.Context, path string, params url.Values) ([]byte, int, time.Duration, error) {
	endpoint := strings.TrimRight(p.config.BaseURL, "/") + "/" + strings.TrimLeft(path, "/")
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return nil, 0, 0, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, 0, 0, err
	}
	req.Header.Set("Accept", "application/json")
	if p.config.UserAgent != "" {
		req.Header.Set("User-Agent", p.config.UserAgent)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, 0, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, 0, err
	}
	return body, resp.StatusCode, parseRetryAfter(resp), nil
}

func parseRetryAfter(resp *http.Response) time.Duration {
	value := strings.TrimSpace(resp.Header.Get("Retry-After"))
	if value == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	if when, err := time.Parse(http.TimeFormat, value); err == nil {
		if wait := time.Until(when); wait > 0 {
			return wait
		}
	}
	return 0
}

func sleepWithContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

type generalResponse struct {
	Data struct {
		List []json.RawMessage `json:"list"`
	} `json:"data"`
}

func decodeRecords(body []byte) ([]table.Record, error) {
	var payload generalResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("comexapi: decode response: %w", err)
	}
	records := make([]table.Record, 0, len(payload.Data.List))
	for _, raw := range payload.Data.List {
		record, err := decodeRecord(raw)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, nil
}

// decodeRecord reads a JSON object keeping its keys in document order.
func decodeRecord(raw json.RawMessage) (table.Record, error) {
	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.UseNumber()

	token, err := decoder.Token()
	if err != nil {
		return table.Record{}, err
	}
	if delim, ok := token.(json.Delim); !ok || delim != '{' {
		return table.Record{}, fmt.Errorf("comexapi: list item is not an object")
	}

	record := table.Record{Values: make(map[string]string)}
	for decoder.More() {
		token, err := decoder.Token()
		if err != nil {
			return table.Record{}, err
		}
		key, ok := token.(string)
		if !ok {
			return table.Record{}, fmt.Errorf("comexapi: unexpected key %v", token)
		}
		var value any
		if err := decoder.Decode(&value); err != nil {
			return table.Record{}, err
		}
		if _, dup := record.Values[key]; !dup {
			record.Keys = append(record.Keys, key)
		}
		record.Values[key] = stringify(value)
	}
	return record, nil
}

func stringify(value any) string {
	switch typed := value.(type) {
	case nil:
		return ""
	case string:
		return typed
	case json.Number:
		return typed.String()
	case bool:
		return strconv.FormatBool(typed)
	default:
		raw, err := json.Marshal(typed)
		if err != nil {
			return ""
		}
		return string(raw)
	}
}
