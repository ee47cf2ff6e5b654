// Package quotes looks up stock prices and currency exchange rates from
// remote providers. Lookups never touch ledger state.
package quotes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrUnavailable covers transport failures, provider errors and
	// responses without the requested data.
	ErrUnavailable = errors.New("quote unavailable")
	// ErrUnsupported is returned for symbols or currencies outside the
	// catalogues, before any request is made.
	ErrUnsupported = errors.New("unsupported symbol")
)

const (
	DefaultMarketURL   = "https://www.alphavantage.co/query"
	DefaultCurrencyURL = "https://api.freecurrencyapi.com/v1/latest"

	intradaySeries = "Time Series (5min)"
)

// MarketClient fetches the latest intraday close price for a stock.
type MarketClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewMarketClient(baseURL, apiKey string, timeout time.Duration) *MarketClient {
	if baseURL == "" {
		baseURL = DefaultMarketURL
	}
	return &MarketClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}
}

type intradayResponse struct {
	Series map[string]map[string]string `json:"Time Series (5min)"`
	Note   string                       `json:"Note"`
	Error  string                       `json:"Error Message"`
}

// LatestPrice returns the close price at the most recent 5 minute interval.
func (c *MarketClient) LatestPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	symbol, ok := normalize(supportedStocks, symbol)
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrUnsupported, symbol)
	}

	q := url.Values{}
	q.Set("function", "TIME_SERIES_INTRADAY")
	q.Set("symbol", symbol)
	q.Set("interval", "5min")
	q.Set("apikey", c.apiKey)

	var body intradayResponse
	if err := getJSON(ctx, c.client, c.baseURL, q, &body); err != nil {
		return decimal.Zero, err
	}
	if len(body.Series) == 0 {
		reason := body.Error
		if reason == "" {
			reason = body.Note
		}
		if reason == "" {
			reason = "no " + intradaySeries
		}
		return decimal.Zero, fmt.Errorf("%w: %s: %s", ErrUnavailable, symbol, reason)
	}

	stamps := make([]string, 0, len(body.Series))
	for ts := range body.Series {
		stamps = append(stamps, ts)
	}
	// "YYYY-MM-DD HH:MM:SS" sorts chronologically as text.
	sort.Strings(stamps)
	latest := stamps[len(stamps)-1]

	price, err := decimal.NewFromString(body.Series[latest]["4. close"])
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %s close at %s: %v", ErrUnavailable, symbol, latest, err)
	}
	return price, nil
}

func getJSON(ctx context.Context, client *http.Client, base string, q url.Values, out any) error {
	u, err := url.Parse(base)
	if err != nil {
		return fmt.Errorf("parse provider url: %w", err)
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: provider returned %s", ErrUnavailable, resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode response: %v", ErrUnavailable, err)
	}
	return nil
}
