package calculator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"RatioScope/internal/model"
)

const day = int64(86400)

func hourlyBars(n int) []model.Bar {
	bars := make([]model.Bar, n)
	for i := 0; i < n; i++ {
		p := float64(100 + i)
		bars[i] = model.Bar{
			Time:   int64(i) * 3600,
			Open:   p,
			High:   p + 2,
			Low:    p - 1,
			Close:  p + 1,
			Volume: 10,
		}
	}
	return bars
}

func points(values ...float64) []model.Point {
	pts := make([]model.Point, len(values))
	for i, v := range values {
		pts[i] = model.Point{Time: int64(i) * day, Value: v}
	}
	return pts
}

func TestAggregate_EightHoursIntoTwoGroups(t *testing.T) {
	bars := hourlyBars(8)
	out := Aggregate(bars, 4)
	require.Len(t, out, 2)

	assert.Equal(t, bars[0].Time, out[0].Time)
	assert.Equal(t, bars[0].Open, out[0].Open)
	assert.Equal(t, bars[3].High, out[0].High)
	assert.Equal(t, bars[0].Low, out[0].Low)
	assert.Equal(t, bars[3].Close, out[0].Close)
	assert.Equal(t, 40.0, out[0].Volume)

	assert.Equal(t, bars[4].Time, out[1].Time)
	assert.Equal(t, bars[7].Close, out[1].Close)
}

func TestAggregate_ShortTrailingChunk(t *testing.T) {
	bars := hourlyBars(10)
	out := Aggregate(bars, 4)
	require.Len(t, out, 3)
	assert.Equal(t, bars[8].Time, out[2].Time)
	assert.Equal(t, bars[9].Close, out[2].Close)
	assert.Equal(t, 20.0, out[2].Volume)
}

func TestAggregate_FiltersNonPositiveClose(t *testing.T) {
	bars := hourlyBars(6)
	bars[1].Close = 0
	bars[2].Close = -3

	out := Aggregate(bars, 2)
	// 4 usable bars -> 2 groups: {0,3}, {4,5}
	require.Len(t, out, 2)
	assert.Equal(t, bars[0].Time, out[0].Time)
	assert.Equal(t, bars[3].Close, out[0].Close)
	assert.Equal(t, bars[3].High, out[0].High)
}

func TestAggregate_PropertiesPerChunk(t *testing.T) {
	bars := hourlyBars(23)
	bars[5].High = 500
	bars[17].Low = 1
	for _, n := range []int{1, 2, 3, 4, 7, 23, 30} {
		out := Aggregate(bars, n)
		require.Len(t, out, (len(bars)+n-1)/n, "groupSize=%d", n)
		for k, o := range out {
			start := k * n
			end := min(start+n, len(bars))
			chunk := bars[start:end]
			high, low, vol := chunk[0].High, chunk[0].Low, 0.0
			for _, b := range chunk {
				high = max(high, b.High)
				low = min(low, b.Low)
				vol += b.Volume
			}
			assert.Equal(t, high, o.High)
			assert.Equal(t, low, o.Low)
			assert.Equal(t, chunk[0].Open, o.Open)
			assert.Equal(t, chunk[len(chunk)-1].Close, o.Close)
			assert.Equal(t, vol, o.Volume)
		}
	}
}

func TestAggregate_Idempotent(t *testing.T) {
	bars := hourlyBars(13)
	assert.Equal(t, Aggregate(bars, 4), Aggregate(bars, 4))
}

func TestAggregate_EmptyAndInvalidGroup(t *testing.T) {
	assert.Empty(t, Aggregate(nil, 4))
	bars := hourlyBars(3)
	assert.Equal(t, bars, Aggregate(bars, 0))
}

func TestComputeQuoteRatio_SingleDay(t *testing.T) {
	num := []model.Quote{{TimestampMs: 0, Price: 100}}
	den := []model.Quote{{TimestampMs: 0, Price: 10}}
	out := ComputeQuoteRatio(num, den)
	require.Len(t, out, 1)
	assert.Equal(t, model.Point{Time: 0, Value: 10.0}, out[0])
}

func TestComputeRatio_ZeroDenominatorExcluded(t *testing.T) {
	num := []model.Bar{
		{Time: 0, Open: 1, High: 1, Low: 1, Close: 10},
		{Time: day, Open: 1, High: 1, Low: 1, Close: 20},
	}
	den := []model.Bar{
		{Time: 0, Open: 1, High: 1, Low: 1, Close: 0},
		{Time: day, Open: 1, High: 1, Low: 1, Close: 4},
	}
	out := ComputeRatio(num, den)
	require.Len(t, out, 1)
	assert.Equal(t, day, out[0].Time)
	assert.Equal(t, 5.0, out[0].Close)
}

func TestComputeRatio_Fields(t *testing.T) {
	num := []model.Bar{{Time: 10, Open: 100, High: 120, Low: 90, Close: 110, Volume: 30}}
	den := []model.Bar{{Time: 20, Open: 10, High: 12, Low: 8, Close: 11, Volume: 10}}
	out := ComputeRatio(num, den)
	require.Len(t, out, 1)
	r := out[0]
	assert.Equal(t, int64(10), r.Time)
	assert.InDelta(t, 10.0, r.Open, 1e-12)
	assert.InDelta(t, 15.0, r.High, 1e-12)
	assert.InDelta(t, 7.5, r.Low, 1e-12)
	assert.InDelta(t, 10.0, r.Close, 1e-12)
	assert.Equal(t, r.Close, r.Value)
	assert.Equal(t, 20.0, r.Volume)
}

func TestComputeRatio_DenominatorLastWriteNumeratorFirstWins(t *testing.T) {
	num := []model.Bar{
		{Time: 100, Open: 1, High: 1, Low: 1, Close: 50},
		{Time: 200, Open: 1, High: 1, Low: 1, Close: 70},
	}
	den := []model.Bar{
		{Time: 100, Open: 1, High: 1, Low: 1, Close: 5},
		{Time: 300, Open: 1, High: 1, Low: 1, Close: 10},
	}
	out := ComputeRatio(num, den)
	require.Len(t, out, 1)
	assert.Equal(t, int64(100), out[0].Time)
	assert.Equal(t, 5.0, out[0].Close)
}

func TestComputeRatio_SortedAndUniqueDays(t *testing.T) {
	var num, den []model.Bar
	// unordered intraday numerator with repeats, daily denominator
	for _, h := range []int64{50, 3, 49, 0, 26, 27, 12, 70} {
		num = append(num, model.Bar{Time: h * 3600, Open: 2, High: 2, Low: 2, Close: 2})
	}
	for d := int64(0); d < 4; d++ {
		den = append(den, model.Bar{Time: d * day, Open: 1, High: 1, Low: 1, Close: 1})
	}
	out := ComputeRatio(num, den)
	seen := map[int64]bool{}
	for i, r := range out {
		bucket := model.DayBucket(r.Time)
		assert.False(t, seen[bucket], "duplicate day bucket %d", bucket)
		seen[bucket] = true
		if i > 0 {
			assert.Greater(t, r.Time, out[i-1].Time)
		}
	}
	assert.Len(t, out, 3)
	assert.Equal(t, out, ComputeRatio(num, den))
}

func TestComputeRatio_NonPositiveDenominatorLowFallsBack(t *testing.T) {
	num := []model.Bar{{Time: 0, Open: 10, High: 12, Low: 8, Close: 10}}
	den := []model.Bar{{Time: 0, Open: 0, High: 2, Low: 0, Close: 2}}
	out := ComputeRatio(num, den)
	require.Len(t, out, 1)
	assert.Equal(t, 5.0, out[0].Open)
	assert.Equal(t, 6.0, out[0].High)
	assert.Equal(t, 4.0, out[0].Low)
}

func TestSMA_Scenario(t *testing.T) {
	out := SMA(points(1, 2, 3, 4, 5), 5)
	require.Len(t, out, 1)
	assert.Equal(t, 4*day, out[0].Time)
	assert.Equal(t, 3.0, out[0].Value)
}

func TestSMA_Rolling(t *testing.T) {
	out := SMA(points(1, 2, 3, 4, 5), 2)
	require.Len(t, out, 4)
	assert.Equal(t, []float64{1.5, 2.5, 3.5, 4.5}, extractValues(out))
	assert.Equal(t, day, out[0].Time)
}

func TestSMA_LargeValueLeavingWindowDoesNotDrift(t *testing.T) {
	values := []float64{1e8, 0.1, 0.2, 0.3, 0.4, 0.5, 0.6}
	out := SMA(points(values...), 3)
	require.Len(t, out, 5)
	for i, p := range out {
		want := (values[i] + values[i+1] + values[i+2]) / 3
		assert.Equal(t, want, p.Value, "window ending at %d", i+2)
	}
	assert.InDelta(t, 0.2, out[1].Value, 1e-15)
}

func TestEMA_SeedAndRecurrence(t *testing.T) {
	out := EMA(points(1, 2, 3, 4, 5), 3)
	require.Len(t, out, 3)
	assert.Equal(t, 2*day, out[0].Time)
	assert.InDelta(t, 2.0, out[0].Value, 1e-12)
	assert.InDelta(t, 3.0, out[1].Value, 1e-12) // (4-2)*0.5+2
	assert.InDelta(t, 4.0, out[2].Value, 1e-12) // (5-3)*0.5+3
}

func TestMovingAverages_LengthProperty(t *testing.T) {
	series := points(3, 1, 4, 1, 5, 9, 2, 6)
	for period := 1; period <= 10; period++ {
		want := max(0, len(series)-period+1)
		assert.Len(t, SMA(series, period), want, "sma period %d", period)
		assert.Len(t, EMA(series, period), want, "ema period %d", period)
	}
	assert.Empty(t, SMA(series, 0))
	assert.Empty(t, EMA(nil, 3))
}

func TestComputeOverlay_Dispatch(t *testing.T) {
	series := points(1, 2, 3, 4)
	sma := ComputeOverlay(IndicatorSpec{Kind: KindSMA, Period: 2}, series)
	ema := ComputeOverlay(IndicatorSpec{Kind: KindEMA, Period: 2}, series)
	assert.Equal(t, SMA(series, 2), sma.Points)
	assert.Equal(t, EMA(series, 2), ema.Points)
	assert.Equal(t, "EMA2", ema.Spec.Label())
}

func TestIndicatorSpec_Validate(t *testing.T) {
	assert.NoError(t, IndicatorSpec{Kind: KindEMA, Period: 9}.Validate())
	assert.Error(t, IndicatorSpec{Kind: "wma", Period: 9}.Validate())
	assert.Error(t, IndicatorSpec{Kind: KindSMA, Period: 0}.Validate())
}

func TestSummarize(t *testing.T) {
	s, ok := Summarize(points(10, 20, 15))
	require.True(t, ok)
	assert.Equal(t, 15.0, s.Last)
	assert.Equal(t, 20.0, s.High)
	assert.Equal(t, 10.0, s.Low)
	assert.InDelta(t, 50.0, s.Change, 1e-9)
	assert.InDelta(t, 0.5, s.Position, 1e-9)
	assert.Equal(t, 50.0, s.RSI)

	_, ok = Summarize(nil)
	assert.False(t, ok)
}

func TestCalculateRSI_AllGains(t *testing.T) {
	values := make([]float64, 20)
	for i := range values {
		values[i] = float64(i + 1)
	}
	rsi, err := CalculateRSI(values, 14)
	require.NoError(t, err)
	assert.Equal(t, 100.0, rsi)

	_, err = CalculateRSI(values, 0)
	assert.Error(t, err)
}
