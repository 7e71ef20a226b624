package collector

import (
	"context"
	"sync"
	"time"

	"RatioScope/internal/model"
)

// MockBarFetcher returns controllable fixed bars for development and testing.
// Bars and Errs are keyed by symbol; symbols without fixtures get generated bars.
type MockBarFetcher struct {
	Price float64
	Bars  map[string][]model.Bar
	Errs  map[string]error
	Delay time.Duration

	mu    sync.Mutex
	calls map[string]int
}

func (m *MockBarFetcher) Name() string { return "mock" }

func (m *MockBarFetcher) FetchBars(ctx context.Context, symbol string, g model.Granularity, limit int) ([]model.Bar, error) {
	m.mu.Lock()
	if m.calls == nil {
		m.calls = make(map[string]int)
	}
	m.calls[symbol]++
	m.mu.Unlock()

	if err := m.Errs[symbol]; err != nil {
		return nil, err
	}
	if err := wait(ctx, m.Delay); err != nil {
		return nil, err
	}
	if bars, ok := m.Bars[symbol]; ok {
		return bars, nil
	}
	step := int64(86400)
	if g == model.GranularityHour {
		step = 3600
	}
	return generateMockBars(m.Price, limit, step), nil
}

// Calls reports how many times symbol was fetched.
func (m *MockBarFetcher) Calls(symbol string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[symbol]
}

// TotalCalls reports fetches across all symbols.
func (m *MockBarFetcher) TotalCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		n += c
	}
	return n
}

// MockQuoteFetcher returns controllable fixed quotes.
type MockQuoteFetcher struct {
	Quotes map[string][]model.Quote
	Errs   map[string]error
	Delay  time.Duration

	mu       sync.Mutex
	calls    map[string]int
	lastDays int
}

func (m *MockQuoteFetcher) Name() string { return "mock-quotes" }

func (m *MockQuoteFetcher) FetchQuotes(ctx context.Context, id string, days int) ([]model.Quote, error) {
	m.mu.Lock()
	if m.calls == nil {
		m.calls = make(map[string]int)
	}
	m.calls[id]++
	m.lastDays = days
	m.mu.Unlock()

	if err := m.Errs[id]; err != nil {
		return nil, err
	}
	if err := wait(ctx, m.Delay); err != nil {
		return nil, err
	}
	return m.Quotes[id], nil
}

// Calls reports how many times id was fetched.
func (m *MockQuoteFetcher) Calls(id string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[id]
}

// LastDays reports the days argument of the latest fetch.
func (m *MockQuoteFetcher) LastDays() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastDays
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// generateMockBars builds count ascending bars spaced step seconds apart,
// ending at the most recent whole step.
func generateMockBars(basePrice float64, count int, step int64) []model.Bar {
	if basePrice <= 0 {
		basePrice = 1
	}
	end := time.Now().Unix() / step * step
	bars := make([]model.Bar, count)
	for i := 0; i < count; i++ {
		p := basePrice * (1 + float64(i-count/2)*0.001)
		bars[i] = model.Bar{
			Time:   end - int64(count-1-i)*step,
			Open:   p * 0.999,
			High:   p * 1.005,
			Low:    p * 0.995,
			Close:  p,
			Volume: 1000000,
		}
	}
	return bars
}
