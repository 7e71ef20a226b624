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

// MaxPrimaryBars is the largest bar count CryptoCompare serves per request.
const MaxPrimaryBars = 2000

// CryptoCompareFetcher implements BarFetcher using the CryptoCompare histo API.
type CryptoCompareFetcher struct {
	BaseURL       string
	APIKey        string
	QuoteCurrency string
	Client        *http.Client
	Metrics       *metrics.Metrics
}

// NewCryptoCompareFetcher creates a fetcher with optional proxy support.
func NewCryptoCompareFetcher(baseURL, apiKey, quoteCurrency, proxyURL string) *CryptoCompareFetcher {
	if baseURL == "" {
		baseURL = "https://min-api.cryptocompare.com"
	}
	if quoteCurrency == "" {
		quoteCurrency = "USD"
	}
	return &CryptoCompareFetcher{
		BaseURL:       baseURL,
		APIKey:        apiKey,
		QuoteCurrency: quoteCurrency,
		Client:        newHTTPClient(proxyURL),
	}
}

func (f *CryptoCompareFetcher) Name() string { return string(model.ProviderCryptoCompare) }

// ccHisto is the response envelope of /data/v2/histohour and /data/v2/histoday.
type ccHisto struct {
	Response string          `json:"Response"`
	Message  string          `json:"Message"`
	Data     json.RawMessage `json:"Data"`
}

type ccBar struct {
	Time     int64   `json:"time"`
	Open     float64 `json:"open"`
	High     float64 `json:"high"`
	Low      float64 `json:"low"`
	Close    float64 `json:"close"`
	VolumeTo float64 `json:"volumeto"`
}

// FetchBars requests up to limit bars of the given granularity, capped at MaxPrimaryBars.
func (f *CryptoCompareFetcher) FetchBars(ctx context.Context, symbol string, g model.Granularity, limit int) ([]model.Bar, error) {
	if limit <= 0 || limit > MaxPrimaryBars {
		limit = MaxPrimaryBars
	}
	endpoint := "histoday"
	if g == model.GranularityHour {
		endpoint = "histohour"
	}

	params := url.Values{}
	params.Set("fsym", symbol)
	params.Set("tsym", f.QuoteCurrency)
	params.Set("limit", strconv.Itoa(limit))
	if f.APIKey != "" {
		params.Set("api_key", f.APIKey)
	}
	u := fmt.Sprintf("%s/data/v2/%s?%s", f.BaseURL, endpoint, params.Encode())

	start := time.Now()
	bars, err := f.fetch(ctx, symbol, u)
	f.Metrics.ObserveFetch(f.Name(), outcome(err), time.Since(start))
	return bars, err
}

func (f *CryptoCompareFetcher) fetch(ctx context.Context, symbol, u string) ([]model.Bar, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, &FetchFailedError{Provider: f.Name(), Asset: symbol, Err: err}
	}
	req.Header.Set("User-Agent", "RatioScope/1.0")

	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, &FetchFailedError{Provider: f.Name(), Asset: symbol, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, &RateLimitedError{Provider: f.Name(), Asset: symbol}
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &FetchFailedError{Provider: f.Name(), Asset: symbol, Err: fmt.Errorf("read body: %w", err)}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &FetchFailedError{Provider: f.Name(), Asset: symbol, Status: resp.StatusCode,
			Err: fmt.Errorf("body: %s", string(body))}
	}

	var histo ccHisto
	if err := json.Unmarshal(body, &histo); err != nil {
		return nil, &FetchFailedError{Provider: f.Name(), Asset: symbol, Err: fmt.Errorf("decode: %w", err)}
	}
	if histo.Response == "Error" {
		return nil, &ProviderError{Provider: f.Name(), Asset: symbol, Message: histo.Message}
	}

	var data struct {
		Data []ccBar `json:"Data"`
	}
	if len(histo.Data) > 0 {
		if err := json.Unmarshal(histo.Data, &data); err != nil {
			return nil, &FetchFailedError{Provider: f.Name(), Asset: symbol, Err: fmt.Errorf("decode data: %w", err)}
		}
	}

	bars := make([]model.Bar, 0, len(data.Data))
	for _, b := range data.Data {
		if b.Close <= 0 {
			continue
		}
		bars = append(bars, model.Bar{
			Time:   b.Time,
			Open:   b.Open,
			High:   b.High,
			Low:    b.Low,
			Close:  b.Close,
			Volume: b.VolumeTo,
		})
	}
	sort.Slice(bars, func(i, j int) bool { return bars[i].Time < bars[j].Time })
	return bars, nil
}

func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	return KindOf(err)
}
