package collector

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"RatioScope/internal/model"
)

// BarFetcher fetches genuine OHLCV bars from a primary provider.
type BarFetcher interface {
	FetchBars(ctx context.Context, symbol string, g model.Granularity, limit int) ([]model.Bar, error)
	Name() string
}

// QuoteFetcher fetches close-only quotes from a secondary provider.
type QuoteFetcher interface {
	FetchQuotes(ctx context.Context, id string, days int) ([]model.Quote, error)
	Name() string
}

// newHTTPClient builds the shared provider client with optional proxy support.
func newHTTPClient(proxyURL string) *http.Client {
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	return &http.Client{
		Timeout:   30 * time.Second,
		Transport: transport,
	}
}
