package quotes

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"
)

// CurrencyClient fetches the latest exchange rate between two currencies.
type CurrencyClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewCurrencyClient(baseURL, apiKey string, timeout time.Duration) *CurrencyClient {
	if baseURL == "" {
		baseURL = DefaultCurrencyURL
	}
	return &CurrencyClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}
}

// {"data":{"EUR":0.9213}}
type latestRatesResponse struct {
	Data map[string]decimal.Decimal `json:"data"`
}

// Rate returns how many units of target one unit of base buys.
func (c *CurrencyClient) Rate(ctx context.Context, base, target string) (decimal.Decimal, error) {
	base, ok := normalize(supportedCurrencies, base)
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrUnsupported, base)
	}
	target, ok = normalize(supportedCurrencies, target)
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrUnsupported, target)
	}

	q := url.Values{}
	q.Set("apikey", c.apiKey)
	q.Set("base_currency", base)
	q.Set("currencies", target)

	var body latestRatesResponse
	if err := getJSON(ctx, c.client, c.baseURL, q, &body); err != nil {
		return decimal.Zero, err
	}

	rate, ok := body.Data[target]
	if !ok || !rate.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: no rate for %s/%s", ErrUnavailable, base, target)
	}
	return rate, nil
}
