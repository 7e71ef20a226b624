package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"RatioScope/internal/collector"
	"RatioScope/internal/model"
	"RatioScope/internal/pipeline"
	"RatioScope/internal/recorder"
)

type fakeSender struct {
	mu   sync.Mutex
	sent []string
	err  error
}

func (f *fakeSender) SendWithRetry(_ context.Context, text string, _ int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, text)
	return f.err
}

func (f *fakeSender) messages() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent...)
}

func dailyBars(n int, price float64) []model.Bar {
	bars := make([]model.Bar, n)
	for i := range bars {
		bars[i] = model.Bar{Time: int64(i) * 86400, Open: price, High: price, Low: price, Close: price}
	}
	return bars
}

func pair(name, num, den string) model.Pair {
	return model.Pair{
		Name:        name,
		Numerator:   model.AssetRef{Symbol: num, Provider: model.ProviderCryptoCompare},
		Denominator: model.AssetRef{Symbol: den, Provider: model.ProviderCryptoCompare},
	}
}

func newScheduler(t *testing.T, sender *fakeSender) (*Scheduler, *collector.MockBarFetcher) {
	t.Helper()
	bars := &collector.MockBarFetcher{
		Bars: map[string][]model.Bar{
			"BTC": dailyBars(30, 100),
			"CHZ": dailyBars(30, 4),
		},
		Errs: map[string]error{
			"ETH": &collector.RateLimitedError{Provider: "cryptocompare", Asset: "ETH"},
		},
	}
	src := collector.NewSource(bars, &collector.MockQuoteFetcher{})
	mgr := pipeline.NewManager([]model.Pair{
		pair("CHZ/BTC", "BTC", "CHZ"),
		pair("ETH/BTC", "ETH", "BTC"),
	}, src)

	s := NewScheduler(context.Background(), mgr, nil, recorder.NewNoopRecorder(), pipeline.DefaultView)
	if sender != nil {
		s.Notifier = sender
	}
	return s, bars
}

func TestRegisterAll(t *testing.T) {
	s, _ := newScheduler(t, &fakeSender{})
	require.NoError(t, s.RegisterAll("0 */15 * * * *", "0 0 9 * * *"))
	assert.Len(t, s.Cron.Entries(), 2)

	s2, _ := newScheduler(t, &fakeSender{})
	require.NoError(t, s2.RegisterAll("0 */15 * * * *", ""))
	assert.Len(t, s2.Cron.Entries(), 1)
}

func TestRegisterAll_InvalidCron(t *testing.T) {
	s, _ := newScheduler(t, &fakeSender{})
	err := s.RegisterAll("not a cron", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "register refresh task")
}

func TestRunRefreshNow_NotifiesFailuresOnly(t *testing.T) {
	sender := &fakeSender{}
	s, _ := newScheduler(t, sender)

	results := s.RunRefreshNow()
	require.Len(t, results, 2)
	assert.NoError(t, results[0].Err)
	assert.Equal(t, 25.0, results[0].Snapshot.Primary.Bars[0].Value)
	assert.True(t, errors.Is(results[1].Err, collector.ErrRateLimited))

	msgs := sender.messages()
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0], "ETH/BTC")
	assert.Contains(t, msgs[0], "[rate_limited]")
}

func TestRunRefreshNow_WithoutNotifier(t *testing.T) {
	s, _ := newScheduler(t, nil)
	assert.NotPanics(t, func() { s.RunRefreshNow() })
}

func TestReportTask_UsesCurrentSnapshots(t *testing.T) {
	sender := &fakeSender{}
	s, bars := newScheduler(t, sender)
	s.RunRefreshNow()
	calls := bars.TotalCalls()

	s.reportTask()
	msgs := sender.messages()
	require.Len(t, msgs, 2)
	assert.Contains(t, msgs[1], "<b>CHZ/BTC</b> (365, 1D)")
	assert.Contains(t, msgs[1], "ETH/BTC")
	assert.Equal(t, calls, bars.TotalCalls(), "report must not fetch")
}

func TestHandleCommand(t *testing.T) {
	s, bars := newScheduler(t, &fakeSender{})

	ratios := s.HandleCommand("/ratios")
	assert.Contains(t, ratios, "pipeline has no ready snapshot")
	assert.Zero(t, bars.TotalCalls())

	refreshed := s.HandleCommand("/refresh 30 1W")
	assert.Contains(t, refreshed, "<b>CHZ/BTC</b> (30, 1W)")

	status := s.HandleCommand("/status")
	assert.Contains(t, status, "CHZ/BTC: ready")
	assert.Contains(t, status, "ETH/BTC: failed [rate_limited]")

	assert.Contains(t, s.HandleCommand("/help"), "Available commands")
	assert.Contains(t, s.HandleCommand(""), "Available commands")
	assert.Contains(t, s.HandleCommand("/refresh 45"), `unknown argument "45"`)
}

func TestRefreshTask_KeepsChosenView(t *testing.T) {
	s, _ := newScheduler(t, &fakeSender{})
	s.HandleCommand("/refresh 30 1W")

	s.refreshTask()
	p, err := s.Manager.Get("chz-btc")
	require.NoError(t, err)
	snap, ok := p.Snapshot()
	require.True(t, ok)
	assert.Equal(t, model.Days(30), snap.View.Lookback)
	assert.Equal(t, model.Interval1W, snap.View.Interval)

	s.HandleCommand("/refresh")
	snap, _ = p.Snapshot()
	assert.Equal(t, model.Interval1W, snap.View.Interval)

	s.HandleCommand("/refresh 365 1D")
	snap, _ = p.Snapshot()
	assert.Equal(t, pipeline.DefaultView, snap.View)
}

func TestParseView(t *testing.T) {
	view, err := parseView(pipeline.DefaultView, []string{"4H", "max"})
	require.NoError(t, err)
	assert.Equal(t, model.Interval4H, view.Interval)
	assert.Equal(t, model.MaxLookback, view.Lookback)

	view, err = parseView(pipeline.DefaultView, nil)
	require.NoError(t, err)
	assert.Equal(t, pipeline.DefaultView, view)

	_, err = parseView(pipeline.DefaultView, []string{"2M"})
	assert.Error(t, err)
}
