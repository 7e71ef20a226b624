package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	"RatioScope/internal/metrics"
	"RatioScope/internal/model"
)

// MaxSecondaryDays is the longest history the free CoinGecko tier serves.
const MaxSecondaryDays = 365

// CoinGeckoFetcher implements QuoteFetcher using the CoinGecko market_chart API.
type CoinGeckoFetcher struct {
	BaseURL string
	APIKey  string
	Client  *http.Client
	Metrics *metrics.Metrics
}

// NewCoinGeckoFetcher creates a fetcher with optional proxy support.
func NewCoinGeckoFetcher(baseURL, apiKey, proxyURL string) *CoinGeckoFetcher {
	if baseURL == "" {
		baseURL = "https://api.coingecko.com/api/v3"
	}
	return &CoinGeckoFetcher{
		BaseURL: baseURL,
		APIKey:  apiKey,
		Client:  newHTTPClient(proxyURL),
	}
}

func (f *CoinGeckoFetcher) Name() string { return string(model.ProviderCoinGecko) }

type geckoChart struct {
	Prices [][2]float64 `json:"prices"`
}

// FetchQuotes returns usd quotes for the last days (clamped to 1..MaxSecondaryDays).
func (f *CoinGeckoFetcher) FetchQuotes(ctx context.Context, id string, days int) ([]model.Quote, error) {
	if days < 1 {
		days = 1
	}
	if days > MaxSecondaryDays {
		days = MaxSecondaryDays
	}
	params := url.Values{}
	params.Set("vs_currency", "usd")
	params.Set("days", strconv.Itoa(days))
	u := fmt.Sprintf("%s/coins/%s/market_chart?%s", f.BaseURL, url.PathEscape(id), params.Encode())

	start := time.Now()
	quotes, err := f.fetch(ctx, id, u)
	f.Metrics.ObserveFetch(f.Name(), outcome(err), time.Since(start))
	return quotes, err
}

func (f *CoinGeckoFetcher) fetch(ctx context.Context, id, u string) ([]model.Quote, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, &FetchFailedError{Provider: f.Name(), Asset: id, Err: err}
	}
	req.Header.Set("User-Agent", "RatioScope/1.0")
	req.Header.Set("Accept", "application/json")
	if f.APIKey != "" {
		req.Header.Set("x-cg-demo-api-key", f.APIKey)
	}

	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, &FetchFailedError{Provider: f.Name(), Asset: id, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, &RateLimitedError{Provider: f.Name(), Asset: id}
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &FetchFailedError{Provider: f.Name(), Asset: id, Err: fmt.Errorf("read body: %w", err)}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &FetchFailedError{Provider: f.Name(), Asset: id, Status: resp.StatusCode,
			Err: fmt.Errorf("body: %s", string(body))}
	}

	var chart geckoChart
	if err := json.Unmarshal(body, &chart); err != nil {
		return nil, &FetchFailedError{Provider: f.Name(), Asset: id, Err: fmt.Errorf("decode: %w", err)}
	}

	quotes := make([]model.Quote, 0, len(chart.Prices))
	for _, p := range chart.Prices {
		if p[1] <= 0 {
			continue
		}
		quotes = append(quotes, model.Quote{TimestampMs: int64(p[0]), Price: p[1]})
	}
	sort.Slice(quotes, func(i, j int) bool { return quotes[i].TimestampMs < quotes[j].TimestampMs })
	return quotes, nil
}
