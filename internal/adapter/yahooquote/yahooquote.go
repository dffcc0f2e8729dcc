// Package yahooquote implements a collection adapter for the Yahoo Finance
// v8 chart API. It uses cookie + crumb authentication, matching the approach
// used by the yfinance Python library.
package yahooquote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joungwon-dreams/joungwon-stocks-sub002/internal/collect"
)

const (
	Kind = "yahoo-chart"

	defaultChartEndpoint = "https://query2.finance.yahoo.com/v8/finance/chart"
	defaultCookieURL     = "https://fc.yahoo.com"
	defaultCrumbURL      = "https://query1.finance.yahoo.com/v1/test/getcrumb"
	defaultRefSymbol     = "AAPL"
	dataType             = "daily-quote"
	lookbackDays         = 7
	userAgent            = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"
)

// Adapter fetches recent daily close prices for one source from Yahoo
// Finance.
type Adapter struct {
	source        collect.Source
	client        *http.Client
	chartEndpoint string
	cookieURL     string
	crumbURL      string
	refSymbol     string

	mu    sync.Mutex
	crumb string
}

// New creates an Adapter bound to src with the given options applied.
func New(src collect.Source, opts ...Option) *Adapter {
	jar, _ := cookiejar.New(nil)
	a := &Adapter{
		source:        src,
		client:        &http.Client{Jar: jar, Timeout: 30 * time.Second},
		chartEndpoint: defaultChartEndpoint,
		cookieURL:     defaultCookieURL,
		crumbURL:      defaultCrumbURL,
		refSymbol:     defaultRefSymbol,
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithClient sets the HTTP client. The client should have a cookie jar.
func WithClient(c *http.Client) Option {
	return func(a *Adapter) { a.client = c }
}

// WithChartEndpoint overrides the default chart API endpoint.
func WithChartEndpoint(ep string) Option {
	return func(a *Adapter) { a.chartEndpoint = ep }
}

// WithCookieURL overrides the URL used to obtain the session cookie.
func WithCookieURL(u string) Option {
	return func(a *Adapter) { a.cookieURL = u }
}

// WithCrumbURL overrides the URL used to obtain the crumb token.
func WithCrumbURL(u string) Option {
	return func(a *Adapter) { a.crumbURL = u }
}

// WithRefSymbol overrides the liquid symbol probed by SelfCheck.
func WithRefSymbol(sym string) Option {
	return func(a *Adapter) { a.refSymbol = sym }
}

func (a *Adapter) Kind() string { return Kind }

// chartResponse represents the Yahoo Finance v8 chart API response.
type chartResponse struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Close []any `json:"close"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// quotePayload is the collected payload for one target.
type quotePayload struct {
	Symbol string       `json:"symbol"`
	Prices []dailyClose `json:"prices"`
}

type dailyClose struct {
	Date  string  `json:"date"`
	Close float64 `json:"close"`
}

// Fetch retrieves the last week of daily closes for the target. It performs
// exactly one attempt; retries belong to the caller.
func (a *Adapter) Fetch(ctx context.Context, target collect.Target) (*collect.Result, error) {
	if target.Symbol == "" {
		return nil, collect.Errf(collect.ErrKindValidation, "target symbol is empty")
	}

	if err := a.ensureCrumb(ctx); err != nil {
		return nil, wrapTransport(fmt.Errorf("yahoo auth: %w", err))
	}

	cr, err := a.fetchChart(ctx, target.Symbol)
	if err != nil {
		return nil, err
	}

	payload, n := buildPayload(target.Symbol, cr)
	if n == 0 {
		return nil, collect.ErrNoData
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, collect.Errf(collect.ErrKindUnknown, "encode payload: %v", err)
	}
	return &collect.Result{DataType: dataType, Payload: raw, Records: n}, nil
}

// SelfCheck probes the chart endpoint with the reference symbol and reports
// whether the response still has the expected shape.
func (a *Adapter) SelfCheck(ctx context.Context) bool {
	if err := a.ensureCrumb(ctx); err != nil {
		slog.Warn("yahoo self-check: auth failed", "error", err)
		return false
	}
	cr, err := a.fetchChart(ctx, a.refSymbol)
	if err != nil {
		slog.Warn("yahoo self-check: chart fetch failed", "symbol", a.refSymbol, "error", err)
		return false
	}
	_, n := buildPayload(a.refSymbol, cr)
	return n > 0
}

// ensureCrumb fetches a session cookie and crumb token if not already cached.
func (a *Adapter) ensureCrumb(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.crumb != "" {
		return nil
	}

	// Step 1: GET the cookie host to obtain a session cookie.
	cookieReq, err := http.NewRequestWithContext(ctx, "GET", a.cookieURL, nil)
	if err != nil {
		return fmt.Errorf("build cookie request: %w", err)
	}
	cookieReq.Header.Set("User-Agent", userAgent)

	cookieRes, err := a.client.Do(cookieReq) //nolint:gosec // URL from internal config
	if err != nil {
		return fmt.Errorf("fetch cookie: %w", err)
	}
	_ = cookieRes.Body.Close()

	// Step 2: GET crumb endpoint (cookie is sent automatically via jar).
	crumbReq, err := http.NewRequestWithContext(ctx, "GET", a.crumbURL, nil)
	if err != nil {
		return fmt.Errorf("build crumb request: %w", err)
	}
	crumbReq.Header.Set("User-Agent", userAgent)

	crumbRes, err := a.client.Do(crumbReq) //nolint:gosec // URL from internal config
	if err != nil {
		return fmt.Errorf("fetch crumb: %w", err)
	}
	defer func() { _ = crumbRes.Body.Close() }()

	if crumbRes.StatusCode != http.StatusOK {
		return fmt.Errorf("crumb endpoint returned HTTP %d", crumbRes.StatusCode)
	}

	body, err := io.ReadAll(crumbRes.Body)
	if err != nil {
		return fmt.Errorf("read crumb: %w", err)
	}

	crumb := strings.TrimSpace(string(body))
	if crumb == "" {
		return fmt.Errorf("empty crumb received")
	}

	a.crumb = crumb
	return nil
}

func (a *Adapter) fetchChart(ctx context.Context, symbol string) (*chartResponse, error) {
	a.mu.Lock()
	crumb := a.crumb
	a.mu.Unlock()

	to := time.Now()
	from := to.AddDate(0, 0, -lookbackDays)

	reqURL := fmt.Sprintf("%s/%s?period1=%s&period2=%s&interval=1d&crumb=%s",
		a.chartEndpoint,
		symbol,
		strconv.FormatInt(from.Unix(), 10),
		strconv.FormatInt(to.Unix(), 10),
		crumb,
	)

	req, err := http.NewRequestWithContext(ctx, "GET", reqURL, nil)
	if err != nil {
		return nil, collect.Errf(collect.ErrKindConnection, "build chart request: %v", err)
	}
	req.Header.Set("User-Agent", userAgent)

	res, err := a.client.Do(req) //nolint:gosec // URL built from internal config
	if err != nil {
		return nil, wrapTransport(err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode == http.StatusNotFound {
		return nil, collect.ErrNoData
	}
	if res.StatusCode != http.StatusOK {
		// Invalidate crumb on auth errors so the next fetch retries auth.
		if res.StatusCode == http.StatusUnauthorized || res.StatusCode == http.StatusForbidden {
			a.mu.Lock()
			a.crumb = ""
			a.mu.Unlock()
		}
		return nil, collect.Errf(collect.ErrKindConnection, "yahoo returned HTTP %d for %s", res.StatusCode, symbol)
	}

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, wrapTransport(err)
	}

	cr := &chartResponse{}
	if err := json.Unmarshal(body, cr); err != nil {
		return nil, collect.Errf(collect.ErrKindValidation, "decode chart response: %v", err)
	}
	if cr.Chart.Error != nil {
		if cr.Chart.Error.Code == "Not Found" {
			return nil, collect.ErrNoData
		}
		return nil, collect.Errf(collect.ErrKindValidation, "chart error %s: %s", cr.Chart.Error.Code, cr.Chart.Error.Description)
	}
	return cr, nil
}

func buildPayload(symbol string, cr *chartResponse) (*quotePayload, int64) {
	p := &quotePayload{Symbol: symbol}
	if len(cr.Chart.Result) == 0 {
		return p, 0
	}
	r := cr.Chart.Result[0]
	if len(r.Indicators.Quote) == 0 {
		return p, 0
	}
	closes := r.Indicators.Quote[0].Close
	for i, ts := range r.Timestamp {
		if i >= len(closes) {
			break
		}
		// Yahoo emits null for market holidays; those decode as nil.
		v, ok := closes[i].(float64)
		if !ok {
			continue
		}
		p.Prices = append(p.Prices, dailyClose{
			Date:  time.Unix(ts, 0).UTC().Format("2006-01-02"),
			Close: v,
		})
	}
	return p, int64(len(p.Prices))
}

// wrapTransport classifies a transport-level error: deadline and
// cancellation are timeouts, everything else is a connection failure.
func wrapTransport(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return &collect.FetchError{Kind: collect.ErrKindTimeout, Err: err}
	}
	return &collect.FetchError{Kind: collect.ErrKindConnection, Err: err}
}
