package calculator

import (
	"sort"

	"RatioScope/internal/model"
)

// dayAligner describes how to align one kind of series by day.
type dayAligner[T, R any] struct {
	day    func(T) int64
	usable func(T) bool // denominator entry may divide
	emit   func(num, den T) R
	timeOf func(R) int64
}

// align joins numerator and denominator entries falling on the same day.
// The denominator lookup keeps the last entry per day; on the numerator side
// the first entry per day wins. Output is sorted ascending by time.
func (a dayAligner[T, R]) align(num, den []T) []R {
	lookup := make(map[int64]T, len(den))
	for _, d := range den {
		lookup[a.day(d)] = d
	}

	emitted := make(map[int64]struct{}, len(num))
	out := make([]R, 0, len(num))
	for _, n := range num {
		day := a.day(n)
		if _, seen := emitted[day]; seen {
			continue
		}
		d, ok := lookup[day]
		if !ok || !a.usable(d) {
			continue
		}
		out = append(out, a.emit(n, d))
		emitted[day] = struct{}{}
	}

	sort.SliceStable(out, func(i, j int) bool { return a.timeOf(out[i]) < a.timeOf(out[j]) })
	return out
}

var barAligner = dayAligner[model.Bar, model.RatioBar]{
	day:    func(b model.Bar) int64 { return model.DayBucket(b.Time) },
	usable: func(b model.Bar) bool { return b.Close > 0 },
	emit:   ratioBar,
	timeOf: func(r model.RatioBar) int64 { return r.Time },
}

var quoteAligner = dayAligner[model.Quote, model.Point]{
	day:    func(q model.Quote) int64 { return model.DayBucketMs(q.TimestampMs) },
	usable: func(q model.Quote) bool { return q.Price > 0 },
	emit: func(n, d model.Quote) model.Point {
		return model.Point{Time: n.TimestampMs / 1000, Value: n.Price / d.Price}
	},
	timeOf: func(p model.Point) int64 { return p.Time },
}

// ComputeRatio derives a day-aligned numerator/denominator OHLCV ratio series.
func ComputeRatio(numerator, denominator []model.Bar) []model.RatioBar {
	return barAligner.align(numerator, denominator)
}

// ComputeQuoteRatio derives a day-aligned ratio from two close-only series.
func ComputeQuoteRatio(numerator, denominator []model.Quote) []model.Point {
	return quoteAligner.align(numerator, denominator)
}

// ratioBar builds one ratio bar. The ratio peaks when the numerator is at its
// high and the denominator at its low, hence the crossed high/low fields.
// Volume is a plain average of two volumes in different units.
func ratioBar(n, d model.Bar) model.RatioBar {
	closeRatio := n.Close / d.Close
	return model.RatioBar{
		Time:   n.Time,
		Open:   n.Open / positiveOr(d.Open, d.Close),
		High:   n.High / positiveOr(d.Low, d.Close),
		Low:    n.Low / positiveOr(d.High, d.Close),
		Close:  closeRatio,
		Value:  closeRatio,
		Volume: (n.Volume + d.Volume) / 2,
	}
}

// positiveOr substitutes the denominator close for a non-positive open, low
// or high; only the close is guaranteed positive after filtering.
func positiveOr(v, fallback float64) float64 {
	if v > 0 {
		return v
	}
	return fallback
}

// Values projects a ratio series onto its single-value form.
func Values(bars []model.RatioBar) []model.Point {
	pts := make([]model.Point, len(bars))
	for i, b := range bars {
		pts[i] = model.Point{Time: b.Time, Value: b.Value}
	}
	return pts
}
