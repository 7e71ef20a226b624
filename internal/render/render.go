package render

import (
	"fmt"

	"RatioScope/internal/calculator"
	"RatioScope/internal/model"
	"RatioScope/internal/pipeline"
)

// Mode selects how the main series is drawn.
type Mode string

const (
	ModeArea    Mode = "area"
	ModeCandles Mode = "candles"
)

// ParseMode accepts "area" and "candles"; empty means area.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModeArea:
		return ModeArea, nil
	case ModeCandles:
		return ModeCandles, nil
	}
	return "", fmt.Errorf("unknown display mode %q", s)
}

// Candle is the candlestick projection of a ratio bar.
type Candle struct {
	Time  int64   `json:"time"`
	Open  float64 `json:"open"`
	High  float64 `json:"high"`
	Low   float64 `json:"low"`
	Close float64 `json:"close"`
}

// VolumeBar is one histogram column, colored by bar direction.
type VolumeBar struct {
	Time  int64   `json:"time"`
	Value float64 `json:"value"`
	Color string  `json:"color"`
}

// OverlaySeries is an indicator line.
type OverlaySeries struct {
	Label   string        `json:"label"`
	Kind    string        `json:"kind"`
	Period  int           `json:"period"`
	Visible bool          `json:"visible"`
	Points  []model.Point `json:"points"`
}

// ChartData is the full payload for one derived series.
type ChartData struct {
	Name     string              `json:"name"`
	Mode     Mode                `json:"mode"`
	Limited  bool                `json:"limited"`
	Area     []model.Point       `json:"area,omitempty"`
	Candles  []Candle            `json:"candles,omitempty"`
	Overlays []OverlaySeries     `json:"overlays"`
	Summary  *calculator.Summary `json:"summary,omitempty"`
}

// Area projects ratio bars onto {time, value}.
func Area(bars []model.RatioBar) []model.Point {
	pts := make([]model.Point, len(bars))
	for i, b := range bars {
		pts[i] = model.Point{Time: b.Time, Value: b.Value}
	}
	return pts
}

// Candles projects ratio bars onto OHLC candles.
func Candles(bars []model.RatioBar) []Candle {
	out := make([]Candle, len(bars))
	for i, b := range bars {
		out[i] = Candle{Time: b.Time, Open: b.Open, High: b.High, Low: b.Low, Close: b.Close}
	}
	return out
}

// Volume projects ratio bars onto a histogram; "up" when close >= open.
func Volume(bars []model.RatioBar) []VolumeBar {
	out := make([]VolumeBar, len(bars))
	for i, b := range bars {
		color := "down"
		if b.Close >= b.Open {
			color = "up"
		}
		out[i] = VolumeBar{Time: b.Time, Value: b.Volume, Color: color}
	}
	return out
}

// Overlay projects a computed indicator.
func Overlay(o calculator.Overlay) OverlaySeries {
	pts := o.Points
	if pts == nil {
		pts = []model.Point{}
	}
	return OverlaySeries{
		Label:   o.Spec.Label(),
		Kind:    string(o.Spec.Kind),
		Period:  o.Spec.Period,
		Visible: o.Spec.Visible,
		Points:  pts,
	}
}

// Chart builds the payload of a derived series for a display mode.
func Chart(ds pipeline.DerivedSeries, mode Mode) ChartData {
	cd := ChartData{
		Name:     ds.Name,
		Mode:     mode,
		Limited:  ds.Limited,
		Overlays: make([]OverlaySeries, 0, len(ds.Overlays)),
	}
	if mode == ModeCandles {
		cd.Candles = Candles(ds.Bars)
	} else {
		cd.Area = Area(ds.Bars)
	}
	for _, o := range ds.Overlays {
		cd.Overlays = append(cd.Overlays, Overlay(o))
	}
	if sum, ok := calculator.Summarize(ds.Points()); ok {
		cd.Summary = &sum
	}
	return cd
}
