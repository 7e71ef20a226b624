package calculator

import (
	"fmt"
	"strings"

	"RatioScope/internal/model"
)

// IndicatorKind selects the moving-average flavour of an overlay.
type IndicatorKind string

const (
	KindSMA IndicatorKind = "sma"
	KindEMA IndicatorKind = "ema"
)

// IndicatorSpec configures one moving-average overlay.
type IndicatorSpec struct {
	Kind    IndicatorKind `yaml:"kind" json:"kind"`
	Period  int           `yaml:"period" json:"period"`
	Visible bool          `yaml:"visible" json:"visible"`
}

// Label returns a display name such as "SMA20".
func (s IndicatorSpec) Label() string {
	return fmt.Sprintf("%s%d", strings.ToUpper(string(s.Kind)), s.Period)
}

// Validate checks the kind and period.
func (s IndicatorSpec) Validate() error {
	if s.Kind != KindSMA && s.Kind != KindEMA {
		return fmt.Errorf("unknown indicator kind %q", s.Kind)
	}
	if s.Period < 1 {
		return fmt.Errorf("indicator period must be positive, got %d", s.Period)
	}
	return nil
}

// DefaultIndicators are the overlays shown when none are configured.
func DefaultIndicators() []IndicatorSpec {
	return []IndicatorSpec{
		{Kind: KindSMA, Period: 20, Visible: true},
		{Kind: KindSMA, Period: 50, Visible: true},
	}
}

// Overlay is a computed indicator series tagged with its spec.
type Overlay struct {
	Spec   IndicatorSpec `json:"spec"`
	Points []model.Point `json:"points"`
}

// ComputeOverlay dispatches on the spec kind.
func ComputeOverlay(spec IndicatorSpec, series []model.Point) Overlay {
	var pts []model.Point
	switch spec.Kind {
	case KindEMA:
		pts = EMA(series, spec.Period)
	default:
		pts = SMA(series, spec.Period)
	}
	return Overlay{Spec: spec, Points: pts}
}

// SMA computes the simple moving average series. It returns an empty slice
// when the series is shorter than period.
func SMA(series []model.Point, period int) []model.Point {
	if period < 1 || len(series) < period {
		return []model.Point{}
	}
	values := extractValues(series)
	out := make([]model.Point, 0, len(series)-period+1)
	for i := period - 1; i < len(series); i++ {
		// each window is summed afresh; a running sum drifts once a large
		// value leaves the window
		avg, _ := CalculateSMA(values[:i+1], period)
		out = append(out, model.Point{Time: series[i].Time, Value: avg})
	}
	return out
}

// EMA computes the exponential moving average series, seeded with the SMA of
// the first period values.
func EMA(series []model.Point, period int) []model.Point {
	if period < 1 || len(series) < period {
		return []model.Point{}
	}
	k := 2.0 / float64(period+1)
	seed, _ := CalculateSMA(extractValues(series[:period]), period)

	out := make([]model.Point, 0, len(series)-period+1)
	out = append(out, model.Point{Time: series[period-1].Time, Value: seed})
	prev := seed
	for _, p := range series[period:] {
		prev = (p.Value-prev)*k + prev
		out = append(out, model.Point{Time: p.Time, Value: prev})
	}
	return out
}

// CalculateSMA computes the simple moving average of the last period prices.
func CalculateSMA(prices []float64, period int) (float64, error) {
	if period <= 0 {
		return 0, fmt.Errorf("period must be positive")
	}
	if len(prices) < period {
		return 0, fmt.Errorf("not enough data for SMA calculation")
	}
	sum := 0.0
	for i := len(prices) - period; i < len(prices); i++ {
		sum += prices[i]
	}
	return sum / float64(period), nil
}

func extractValues(points []model.Point) []float64 {
	values := make([]float64, len(points))
	for i, p := range points {
		values[i] = p.Value
	}
	return values
}
