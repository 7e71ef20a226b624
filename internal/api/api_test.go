package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"RatioScope/internal/collector"
	"RatioScope/internal/metrics"
	"RatioScope/internal/model"
	"RatioScope/internal/pipeline"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func flatBars(n int, price float64) []model.Bar {
	bars := make([]model.Bar, n)
	for i := range bars {
		bars[i] = model.Bar{Time: int64(i) * 86400, Open: price, High: price, Low: price, Close: price, Volume: 1}
	}
	return bars
}

func flatQuotes(n int, price float64) []model.Quote {
	quotes := make([]model.Quote, n)
	for i := range quotes {
		quotes[i] = model.Quote{TimestampMs: int64(i) * 86400 * 1000, Price: price}
	}
	return quotes
}

func cc(symbol string) model.AssetRef {
	return model.AssetRef{Symbol: symbol, Provider: model.ProviderCryptoCompare}
}

type testServer struct {
	router *gin.Engine
	bars   *collector.MockBarFetcher
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	bars := &collector.MockBarFetcher{
		Bars: map[string][]model.Bar{
			"BTC": flatBars(30, 100),
			"CHZ": flatBars(30, 4),
		},
		Errs: map[string]error{
			"ETH":  &collector.FetchFailedError{Provider: "cryptocompare", Asset: "ETH", Status: 503},
			"DOGE": &collector.RateLimitedError{Provider: "cryptocompare", Asset: "DOGE"},
		},
	}
	quotes := &collector.MockQuoteFetcher{Quotes: map[string][]model.Quote{"pepper": flatQuotes(30, 0.5)}}
	pairs := []model.Pair{
		{
			Name: "CHZ/BTC", Numerator: cc("BTC"), Denominator: cc("CHZ"),
			Optional: &model.OptionalLeg{
				Name:    "PEPPER/CHZ",
				Asset:   model.AssetRef{Symbol: "pepper", Provider: model.ProviderCoinGecko},
				Against: model.RoleDenominator,
				Invert:  true,
			},
		},
		{Name: "ETH/BTC", Numerator: cc("ETH"), Denominator: cc("BTC")},
		{Name: "DOGE/BTC", Numerator: cc("DOGE"), Denominator: cc("BTC")},
	}
	m := metrics.NewMetrics()
	mgr := pipeline.NewManager(pairs, collector.NewSource(bars, quotes), pipeline.WithMetrics(m))
	return &testServer{
		router: NewRouter(NewHandler(mgr, pipeline.DefaultView), m),
		bars:   bars,
	}
}

func (s *testServer) do(t *testing.T, method, path, body string) (int, map[string]any) {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var out map[string]any
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	}
	return w.Code, out
}

func (s *testServer) refresh(t *testing.T) {
	t.Helper()
	code, _ := s.do(t, http.MethodPost, "/api/pairs/chz-btc/refresh", `{"lookback":"30","interval":"1D"}`)
	require.Equal(t, http.StatusOK, code)
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t)
	code, body := s.do(t, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body["status"])

	s.refresh(t)
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ratioscope_derive_duration_seconds")
	assert.Contains(t, w.Body.String(), `ratioscope_pipeline_runs_total{outcome="ready",pair="CHZ/BTC"} 1`)
}

func TestGetPair_UnknownAndNotReady(t *testing.T) {
	s := newTestServer(t)

	code, body := s.do(t, http.MethodGet, "/api/pairs/nope", "")
	assert.Equal(t, http.StatusNotFound, code)
	assert.Contains(t, body["error"], "unknown pair")

	code, body = s.do(t, http.MethodGet, "/api/pairs/chz-btc", "")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "idle", body["stage"])
}

func TestRefresh_ReturnsChart(t *testing.T) {
	s := newTestServer(t)
	code, body := s.do(t, http.MethodPost, "/api/pairs/chz-btc/refresh", `{"lookback":"30","interval":"1D"}`)
	require.Equal(t, http.StatusOK, code)

	view := body["view"].(map[string]any)
	assert.Equal(t, "30", view["lookback"])
	assert.Equal(t, "1D", view["interval"])
	assert.Equal(t, "ready", body["stage"])
	assert.Equal(t, "ok", body["optional"].(map[string]any)["status"])

	primary := body["primary"].(map[string]any)
	assert.Equal(t, "CHZ/BTC", primary["name"])
	area := primary["area"].([]any)
	require.Len(t, area, 30)
	assert.InDelta(t, 25.0, area[0].(map[string]any)["value"], 1e-9)

	secondary := body["secondary"].(map[string]any)
	assert.Equal(t, "PEPPER/CHZ", secondary["name"])
	assert.InDelta(t, 8.0, secondary["area"].([]any)[0].(map[string]any)["value"], 1e-9)
}

func TestRefresh_EmptyBodyUsesDefaultView(t *testing.T) {
	s := newTestServer(t)
	code, body := s.do(t, http.MethodPost, "/api/pairs/chz-btc/refresh", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "365", body["view"].(map[string]any)["lookback"])
}

func TestRefresh_Errors(t *testing.T) {
	s := newTestServer(t)

	code, body := s.do(t, http.MethodPost, "/api/pairs/chz-btc/refresh", `{"lookback":"45"}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, body["error"], "lookback must be one of")

	code, _ = s.do(t, http.MethodPost, "/api/pairs/chz-btc/refresh", `{"interval":"2D"}`)
	assert.Equal(t, http.StatusBadRequest, code)

	code, body = s.do(t, http.MethodPost, "/api/pairs/eth-btc/refresh", "")
	assert.Equal(t, http.StatusBadGateway, code)
	assert.Equal(t, collector.KindFetchFailed, body["kind"])

	code, body = s.do(t, http.MethodPost, "/api/pairs/doge-btc/refresh", "")
	assert.Equal(t, http.StatusTooManyRequests, code)
	assert.Equal(t, collector.KindRateLimited, body["kind"])

	code, body = s.do(t, http.MethodGet, "/api/pairs/doge-btc", "")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "failed", body["stage"])
	assert.Equal(t, collector.KindRateLimited, body["kind"])
}

func TestListPairs(t *testing.T) {
	s := newTestServer(t)
	s.refresh(t)
	s.do(t, http.MethodPost, "/api/pairs/eth-btc/refresh", "")

	code, body := s.do(t, http.MethodGet, "/api/pairs", "")
	require.Equal(t, http.StatusOK, code)
	pairs := body["pairs"].([]any)
	require.Len(t, pairs, 3)

	first := pairs[0].(map[string]any)
	assert.Equal(t, "chz-btc", first["slug"])
	assert.Equal(t, "ready", first["stage"])
	assert.NotContains(t, first, "error_kind")

	second := pairs[1].(map[string]any)
	assert.Equal(t, "failed", second["stage"])
	assert.Equal(t, collector.KindFetchFailed, second["error_kind"])
	assert.NotContains(t, second, "view")
}

func TestGetPair_Modes(t *testing.T) {
	s := newTestServer(t)
	s.refresh(t)

	code, body := s.do(t, http.MethodGet, "/api/pairs/chz-btc?mode=candles", "")
	require.Equal(t, http.StatusOK, code)
	primary := body["primary"].(map[string]any)
	assert.Len(t, primary["candles"], 30)
	assert.NotContains(t, primary, "area")
	assert.NotNil(t, primary["summary"])

	code, _ = s.do(t, http.MethodGet, "/api/pairs/chz-btc?mode=bars", "")
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestGetVolume(t *testing.T) {
	s := newTestServer(t)
	s.refresh(t)

	code, body := s.do(t, http.MethodGet, "/api/pairs/chz-btc/volume", "")
	require.Equal(t, http.StatusOK, code)
	volume := body["volume"].([]any)
	require.Len(t, volume, 30)
	assert.Equal(t, "up", volume[0].(map[string]any)["color"])

	code, body = s.do(t, http.MethodGet, "/api/pairs/chz-btc/volume?series=secondary", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "PEPPER/CHZ", body["name"])

	code, _ = s.do(t, http.MethodGet, "/api/pairs/chz-btc/volume?series=third", "")
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestSetIndicators(t *testing.T) {
	s := newTestServer(t)

	code, body := s.do(t, http.MethodPut, "/api/pairs/chz-btc/indicators", `{"indicators":[{"kind":"ema","period":10,"visible":true}]}`)
	assert.Equal(t, http.StatusAccepted, code)
	assert.Len(t, body["indicators"], 1)

	s.refresh(t)
	calls := s.bars.TotalCalls()

	code, body = s.do(t, http.MethodPut, "/api/pairs/chz-btc/indicators", `{"indicators":[{"kind":"sma","period":5,"visible":true},{"kind":"ema","period":3,"visible":false}]}`)
	require.Equal(t, http.StatusOK, code)
	overlays := body["primary"].(map[string]any)["overlays"].([]any)
	require.Len(t, overlays, 1)
	assert.Equal(t, "SMA5", overlays[0].(map[string]any)["label"])
	assert.Len(t, overlays[0].(map[string]any)["points"], 26)
	assert.Equal(t, calls, s.bars.TotalCalls())

	code, _ = s.do(t, http.MethodPut, "/api/pairs/chz-btc/indicators", `{"indicators":[{"kind":"wma","period":5}]}`)
	assert.Equal(t, http.StatusBadRequest, code)
	code, _ = s.do(t, http.MethodPut, "/api/pairs/chz-btc/indicators", "")
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestSetInterval(t *testing.T) {
	s := newTestServer(t)

	code, _ := s.do(t, http.MethodPut, "/api/pairs/chz-btc/interval", `{"interval":"1W"}`)
	assert.Equal(t, http.StatusServiceUnavailable, code)

	s.refresh(t)
	code, body := s.do(t, http.MethodPut, "/api/pairs/chz-btc/interval", `{"interval":"1W"}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "1W", body["view"].(map[string]any)["interval"])
	assert.Len(t, body["primary"].(map[string]any)["area"], 5)

	code, body = s.do(t, http.MethodPut, "/api/pairs/chz-btc/interval", `{"interval":"4H"}`)
	assert.Equal(t, http.StatusConflict, code)
	assert.Contains(t, body["error"], "refetch required")

	code, _ = s.do(t, http.MethodPut, "/api/pairs/chz-btc/interval", `{"interval":"3D"}`)
	assert.Equal(t, http.StatusBadRequest, code)
	code, _ = s.do(t, http.MethodPut, "/api/pairs/chz-btc/interval", `{}`)
	assert.Equal(t, http.StatusBadRequest, code)
}
