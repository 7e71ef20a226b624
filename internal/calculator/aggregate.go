package calculator

import "RatioScope/internal/model"

// Aggregate re-buckets bars into groups of groupSize consecutive bars.
// Bars with a non-positive close are dropped first. Grouping is positional
// over the filtered sequence, not aligned to calendar boundaries, and the
// trailing group may be short.
func Aggregate(bars []model.Bar, groupSize int) []model.Bar {
	if groupSize < 1 {
		groupSize = 1
	}
	valid := FilterBars(bars)
	if len(valid) == 0 {
		return nil
	}

	out := make([]model.Bar, 0, (len(valid)+groupSize-1)/groupSize)
	for start := 0; start < len(valid); start += groupSize {
		end := start + groupSize
		if end > len(valid) {
			end = len(valid)
		}
		chunk := valid[start:end]

		agg := chunk[0]
		for _, b := range chunk[1:] {
			if b.High > agg.High {
				agg.High = b.High
			}
			if b.Low < agg.Low {
				agg.Low = b.Low
			}
			agg.Volume += b.Volume
		}
		agg.Close = chunk[len(chunk)-1].Close
		out = append(out, agg)
	}
	return out
}

// FilterBars returns the bars whose close is strictly positive.
func FilterBars(bars []model.Bar) []model.Bar {
	out := make([]model.Bar, 0, len(bars))
	for _, b := range bars {
		if b.Close > 0 {
			out = append(out, b)
		}
	}
	return out
}
