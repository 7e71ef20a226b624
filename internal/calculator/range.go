package calculator

import (
	"errors"
	"math"

	"RatioScope/internal/model"
)

// Range scans the most recent n points and returns the high and low.
// n <= 0 scans the whole series.
func Range(points []model.Point, n int) (high, low float64, err error) {
	if len(points) == 0 {
		return 0, 0, errors.New("no points provided")
	}
	start := 0
	if n > 0 && len(points) > n {
		start = len(points) - n
	}
	high = math.Inf(-1)
	low = math.Inf(1)
	for _, p := range points[start:] {
		if p.Value > high {
			high = p.Value
		}
		if p.Value < low {
			low = p.Value
		}
	}
	return high, low, nil
}

// Position returns where current sits within [low, high] (0.0~1.0).
func Position(current, high, low float64) (float64, error) {
	if high == low {
		return 0.5, nil
	}
	if high < low {
		return 0, errors.New("high must be >= low")
	}
	pos := (current - low) / (high - low)
	if pos < 0 {
		pos = 0
	}
	if pos > 1 {
		pos = 1
	}
	return pos, nil
}

// Summary is the legend-style digest of a derived series.
type Summary struct {
	Time     int64   `json:"time"`
	Last     float64 `json:"last"`
	Change   float64 `json:"change_pct"` // vs first point, percent
	High     float64 `json:"high"`
	Low      float64 `json:"low"`
	Position float64 `json:"position"`
	RSI      float64 `json:"rsi"`
}

// Summarize digests a series. ok is false for an empty series.
func Summarize(points []model.Point) (Summary, bool) {
	if len(points) == 0 {
		return Summary{}, false
	}
	last := points[len(points)-1]
	s := Summary{Time: last.Time, Last: last.Value}

	if first := points[0].Value; first != 0 {
		s.Change = (last.Value - first) / first * 100
	}
	s.High, s.Low, _ = Range(points, 0)
	s.Position, _ = Position(last.Value, s.High, s.Low)
	s.RSI, _ = CalculateRSI(extractValues(points), 14)
	return s, true
}
