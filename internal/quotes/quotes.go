// Package quotes fetches daily share prices from the Yahoo Finance chart API.
package quotes

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

const (
	DefaultBaseURL = "https://query1.finance.yahoo.com"
	DefaultRange   = "2d"
	DefaultTimeout = 10 * time.Second
	// DayLayout formats the trading day shown on the stock card.
	DayLayout      = "January 02 2006"
)

var (
	ErrNoData       = errors.New("no quote data returned")
	ErrQuoteRequest = errors.New("quote request failed")
)

// Direction of the price move since the previous trading day.
type Direction int

const (
	Flat Direction = iota
	Up
	Down
)

// Quote is the latest trading day of a ticker compared with the day before.
type Quote struct {
	Ticker      string
	Day         time.Time
	Price       float64
	Open        float64
	High        float64
	Low         float64
	Diff        float64
	DiffPercent float64
}

// Direction reports whether the price went up, down or stayed flat.
func (q Quote) Direction() Direction {
	switch {
	case q.Diff > 0:
		return Up
	case q.Diff < 0:
		return Down
	default:
		return Flat
	}
}

// Symbol returns the arrow drawn next to the price change.
func (q Quote) Symbol() string {
	switch q.Direction() {
	case Up:
		return "▲"
	case Down:
		return "▼"
	default:
		return "►"
	}
}

// Color returns the adaptive card text colour for the price change.
func (q Quote) Color() string {
	switch q.Direction() {
	case Up:
		return "Good"
	case Down:
		return "Attention"
	default:
		return "Default"
	}
}

// ChangeString renders the change as "▲ 0.12 (0.5%)".
func (q Quote) ChangeString() string {
	return q.Symbol() + " " + FormatNumber(q.Diff) + " (" + FormatNumber(q.DiffPercent) + "%)"
}

// DayString renders the trading day as "March 05 2024".
func (q Quote) DayString() string {
	return q.Day.Format(DayLayout)
}

// FormatNumber prints v with the shortest representation.
func FormatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Source returns the latest quote of a ticker.
type Source interface {
	Quote(ctx context.Context, ticker string) (Quote, error)
}

// Opts holds configuration options for the Yahoo client.
type Opts struct {
	HTTPClient *http.Client
	BaseURL    string
	Range      string
}

// Option defines a functional option for configuring the Yahoo client.
type Option func(*Opts)

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(o *Opts) { o.HTTPClient = c }
}

// WithBaseURL overrides the API host.
func WithBaseURL(u string) Option {
	return func(o *Opts) { o.BaseURL = u }
}

// WithRange sets the history window requested per quote.
func WithRange(r string) Option {
	return func(o *Opts) { o.Range = r }
}

// YahooClient implements Source with the chart endpoint.
type YahooClient struct {
	http    *http.Client
	baseURL string
	rng     string
}

var _ Source = (*YahooClient)(nil)

// NewYahooClient creates a Yahoo Finance client.
func NewYahooClient(opts ...Option) *YahooClient {
	cfg := Opts{BaseURL: DefaultBaseURL, Range: DefaultRange}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: DefaultTimeout}
	}
	return &YahooClient{http: cfg.HTTPClient, baseURL: strings.TrimRight(cfg.BaseURL, "/"), rng: cfg.Range}
}

// Quote fetches the daily history of ticker and summarises the last day.
func (c *YahooClient) Quote(ctx context.Context, ticker string) (Quote, error) {
	endpoint := fmt.Sprintf("%s/v8/finance/chart/%s?range=%s&interval=1d", c.baseURL, url.PathEscape(ticker), url.QueryEscape(c.rng))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Quote{}, fmt.Errorf("build quote request: %w", err)
	}
	req.Header.Set("User-Agent", "SecretaryBot/1.0")

	resp, err := c.http.Do(req)
	if err != nil {
		return Quote{}, fmt.Errorf("%w: %v", ErrQuoteRequest, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Quote{}, fmt.Errorf("%w: read body: %v", ErrQuoteRequest, err)
	}
	if resp.StatusCode != http.StatusOK {
		slog.Error("YahooClient Quote unexpected status", "ticker", ticker, "status", resp.StatusCode)
		return Quote{}, fmt.Errorf("%w: status %d", ErrQuoteRequest, resp.StatusCode)
	}
	q, err := ParseChart(body)
	if err != nil {
		return Quote{}, err
	}
	q.Ticker = ticker
	slog.Debug("YahooClient Quote", "ticker", ticker, "price", q.Price, "diff", q.Diff)
	return q, nil
}

type bar struct {
	ts                     int64
	open, high, low, close float64
}

// ParseChart summarises a chart API response. The price is the last close,
// or the last open when the day has not closed yet. The change compares
// closes, or opens when the closes are equal.
func ParseChart(body []byte) (Quote, error) {
	res := gjson.GetBytes(body, "chart.result.0")
	if !res.Exists() {
		return Quote{}, ErrNoData
	}
	ind := res.Get("indicators.quote.0")
	stamps := res.Get("timestamp").Array()
	opens := ind.Get("open").Array()
	highs := ind.Get("high").Array()
	lows := ind.Get("low").Array()
	closes := ind.Get("close").Array()

	var bars []bar
	for i, ts := range stamps {
		if i >= len(opens) || i >= len(highs) || i >= len(lows) || i >= len(closes) {
			break
		}
		// skip days the exchange reported without prices
		if opens[i].Type == gjson.Null {
			continue
		}
		bars = append(bars, bar{
			ts:    ts.Int(),
			open:  opens[i].Float(),
			high:  highs[i].Float(),
			low:   lows[i].Float(),
			close: closes[i].Float(),
		})
	}
	if len(bars) == 0 {
		return Quote{}, ErrNoData
	}

	last := bars[len(bars)-1]
	q := Quote{
		Day:   time.Unix(last.ts, 0).UTC(),
		Open:  round2(last.open),
		High:  round2(last.high),
		Low:   round2(last.low),
		Price: round2(last.close),
	}
	if last.close <= 0 {
		q.Price = round2(last.open)
	}
	if len(bars) > 1 {
		prev := bars[len(bars)-2]
		diff := last.close - prev.close
		if diff == 0 {
			diff = last.open - prev.open
		}
		q.Diff = round2(diff)
	}
	if q.Price != 0 {
		q.DiffPercent = round2(q.Diff / q.Price * 100)
	}
	return q, nil
}

// StaticSource always returns the same quote.
type StaticSource struct {
	Q   Quote
	Err error
}

// Quote returns the configured quote.
func (s StaticSource) Quote(_ context.Context, ticker string) (Quote, error) {
	if s.Err != nil {
		return Quote{}, s.Err
	}
	q := s.Q
	q.Ticker = ticker
	return q, nil
}
