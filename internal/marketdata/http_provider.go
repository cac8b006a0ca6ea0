package marketdata

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
)

// HTTPProvider is a resty-backed Provider for a last-trade quote service,
// adapted from the original prototype's PolygonIO client: one GET per
// ticker, a single numeric price field in the response body.
type HTTPProvider struct {
	client *resty.Client
}

// HTTPProviderConfig controls the underlying resty client.
type HTTPProviderConfig struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	RetryCount int
}

type lastTradeResponse struct {
	Results struct {
		Price decimal.Decimal `json:"price"`
	} `json:"results"`
}

// NewHTTPProvider builds a Provider with retry/backoff on 5xx responses,
// mirroring the teacher pack's resty client configuration.
func NewHTTPProvider(cfg HTTPProviderConfig) *HTTPProvider {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	retries := cfg.RetryCount
	if retries <= 0 {
		retries = 3
	}

	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(timeout).
		SetRetryCount(retries).
		SetRetryWaitTime(200 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return r.StatusCode() >= 500
		}).
		SetQueryParam("apiKey", cfg.APIKey)

	return &HTTPProvider{client: client}
}

// LastTrade fetches the most recent trade price for ticker. Any non-200
// response or decode failure is returned as an error, never a zero price,
// so the caller can route it through DependencyFailure handling.
func (p *HTTPProvider) LastTrade(ctx context.Context, ticker string) (decimal.Decimal, error) {
	var result lastTradeResponse
	resp, err := p.client.R().
		SetContext(ctx).
		SetResult(&result).
		Get(fmt.Sprintf("/v2/last/trade/%s", ticker))
	if err != nil {
		return decimal.Zero, fmt.Errorf("marketdata: last trade request for %s: %w", ticker, err)
	}
	if resp.IsError() {
		return decimal.Zero, fmt.Errorf("marketdata: last trade for %s: status %d: %s", ticker, resp.StatusCode(), resp.String())
	}
	return result.Results.Price, nil
}
