// Package stooq implements a collection adapter for the Stooq CSV quote
// endpoint (https://stooq.com/q/l/).
package stooq

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/joungwon-dreams/joungwon-stocks-sub002/internal/collect"
)

const (
	Kind = "stooq-csv"

	defaultEndpoint  = "https://stooq.com/q/l/"
	defaultRefSymbol = "aapl.us"
	dataType         = "daily-quote"
)

// Expected CSV header of the f=sd2t2ohlcv format.
var expectedHeader = []string{"Symbol", "Date", "Time", "Open", "High", "Low", "Close", "Volume"}

type Adapter struct {
	source    collect.Source
	client    *http.Client
	endpoint  string
	refSymbol string
	suffix    string
}

func New(src collect.Source, opts ...Option) *Adapter {
	a := &Adapter{
		source:    src,
		client:    &http.Client{Timeout: 30 * time.Second},
		endpoint:  defaultEndpoint,
		refSymbol: defaultRefSymbol,
		suffix:    ".us",
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

type Option func(*Adapter)

func WithClient(c *http.Client) Option {
	return func(a *Adapter) { a.client = c }
}

func WithEndpoint(ep string) Option {
	return func(a *Adapter) { a.endpoint = ep }
}

func WithRefSymbol(sym string) Option {
	return func(a *Adapter) { a.refSymbol = sym }
}

// WithSuffix sets the market suffix appended to bare symbols (Stooq uses
// e.g. "aapl.us" for US listings).
func WithSuffix(s string) Option {
	return func(a *Adapter) { a.suffix = s }
}

func (a *Adapter) Kind() string { return Kind }

type quotePayload struct {
	Symbol string  `json:"symbol"`
	Date   string  `json:"date"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume int64   `json:"volume"`
}

// Fetch retrieves the latest daily OHLCV row for the target.
func (a *Adapter) Fetch(ctx context.Context, target collect.Target) (*collect.Result, error) {
	if target.Symbol == "" {
		return nil, collect.Errf(collect.ErrKindValidation, "target symbol is empty")
	}

	row, err := a.fetchRow(ctx, a.stooqSymbol(target.Symbol))
	if err != nil {
		return nil, err
	}

	payload, err := parseRow(target.Symbol, row)
	if err != nil {
		return nil, err
	}

	raw, merr := json.Marshal(payload)
	if merr != nil {
		return nil, collect.Errf(collect.ErrKindUnknown, "encode payload: %v", merr)
	}
	return &collect.Result{DataType: dataType, Payload: raw, Records: 1}, nil
}

// SelfCheck fetches the reference symbol and verifies the CSV header still
// matches the requested field layout.
func (a *Adapter) SelfCheck(ctx context.Context) bool {
	_, err := a.fetchRow(ctx, a.refSymbol)
	return err == nil || errors.Is(err, collect.ErrNoData)
}

func (a *Adapter) stooqSymbol(symbol string) string {
	s := strings.ToLower(symbol)
	if a.suffix != "" && !strings.Contains(s, ".") {
		s += a.suffix
	}
	return s
}

// fetchRow performs the HTTP round trip and returns the single data row,
// header-validated.
func (a *Adapter) fetchRow(ctx context.Context, symbol string) ([]string, error) {
	q := url.Values{}
	q.Set("s", symbol)
	q.Set("f", "sd2t2ohlcv")
	q.Set("h", "")
	q.Set("e", "csv")

	req, err := http.NewRequestWithContext(ctx, "GET", a.endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return nil, collect.Errf(collect.ErrKindConnection, "build request: %v", err)
	}

	res, err := a.client.Do(req) //nolint:gosec // URL built from internal config
	if err != nil {
		return nil, wrapTransport(err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode != http.StatusOK {
		return nil, collect.Errf(collect.ErrKindConnection, "stooq returned HTTP %d for %s", res.StatusCode, symbol)
	}

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, wrapTransport(err)
	}

	records, err := csv.NewReader(strings.NewReader(string(body))).ReadAll()
	if err != nil {
		return nil, collect.Errf(collect.ErrKindValidation, "parse csv: %v", err)
	}
	if len(records) < 2 {
		return nil, collect.Errf(collect.ErrKindValidation, "csv has no data row")
	}
	if !headerMatches(records[0]) {
		return nil, collect.Errf(collect.ErrKindValidation, "unexpected csv header %v", records[0])
	}

	row := records[1]
	// Stooq reports unknown symbols with N/D placeholders, not an error.
	if len(row) > 1 && (row[1] == "N/D" || row[1] == "N/A") {
		return nil, collect.ErrNoData
	}
	return row, nil
}

func headerMatches(header []string) bool {
	if len(header) != len(expectedHeader) {
		return false
	}
	for i, h := range header {
		if !strings.EqualFold(strings.TrimSpace(h), expectedHeader[i]) {
			return false
		}
	}
	return true
}

func parseRow(symbol string, row []string) (*quotePayload, error) {
	if len(row) != len(expectedHeader) {
		return nil, collect.Errf(collect.ErrKindValidation, "csv row has %d fields, want %d", len(row), len(expectedHeader))
	}

	p := &quotePayload{Symbol: symbol, Date: row[1]}

	var err error
	if p.Open, err = parseFloat(row[3]); err != nil {
		return nil, err
	}
	if p.High, err = parseFloat(row[4]); err != nil {
		return nil, err
	}
	if p.Low, err = parseFloat(row[5]); err != nil {
		return nil, err
	}
	if p.Close, err = parseFloat(row[6]); err != nil {
		return nil, err
	}
	if row[7] != "" && row[7] != "N/D" {
		if p.Volume, err = strconv.ParseInt(row[7], 10, 64); err != nil {
			return nil, collect.Errf(collect.ErrKindValidation, "parse volume %q: %v", row[7], err)
		}
	}
	return p, nil
}

func parseFloat(s string) (float64, error) {
	if s == "" || s == "N/D" {
		return 0, collect.ErrNoData
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, collect.Errf(collect.ErrKindValidation, "parse number %q: %v", s, err)
	}
	return v, nil
}

func wrapTransport(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return &collect.FetchError{Kind: collect.ErrKindTimeout, Err: err}
	}
	return &collect.FetchError{Kind: collect.ErrKindConnection, Err: fmt.Errorf("stooq: %w", err)}
}
