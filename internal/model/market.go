package model

import "time"

const (
	secondsPerDay = 86400
	msPerDay      = 86400000
)

// Bar represents a single OHLCV observation. Time is unix seconds.
type Bar struct {
	Time   int64   `json:"time"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
}

// Quote is a single close-only price observation. TimestampMs is unix milliseconds.
type Quote struct {
	TimestampMs int64   `json:"timestamp_ms"`
	Price       float64 `json:"price"`
}

// RatioBar is one bar of a derived ratio series. Value always equals Close.
type RatioBar struct {
	Time   int64   `json:"time"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Value  float64 `json:"value"`
	Volume float64 `json:"volume"`
}

// Point is a single (time, value) sample, used for quote ratios and indicator output.
type Point struct {
	Time  int64   `json:"time"`
	Value float64 `json:"value"`
}

// BarFromQuote synthesizes a degenerate bar from a close-only quote.
func BarFromQuote(q Quote) Bar {
	return Bar{
		Time:  q.TimestampMs / 1000,
		Open:  q.Price,
		High:  q.Price,
		Low:   q.Price,
		Close: q.Price,
	}
}

// BarsFromQuotes converts a quote series into synthesized bars.
func BarsFromQuotes(quotes []Quote) []Bar {
	bars := make([]Bar, len(quotes))
	for i, q := range quotes {
		bars[i] = BarFromQuote(q)
	}
	return bars
}

// QuotesFromBars projects bars onto their closes.
func QuotesFromBars(bars []Bar) []Quote {
	quotes := make([]Quote, len(bars))
	for i, b := range bars {
		quotes[i] = Quote{TimestampMs: b.Time * 1000, Price: b.Close}
	}
	return quotes
}

// DayBucket returns the integer day index of a unix-seconds timestamp.
func DayBucket(sec int64) int64 {
	return floorDiv(sec, secondsPerDay)
}

// DayBucketMs returns the integer day index of a unix-milliseconds timestamp.
func DayBucketMs(ms int64) int64 {
	return floorDiv(ms, msPerDay)
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if a%b != 0 && a < 0 {
		q--
	}
	return q
}

// UnixTime converts a bar timestamp to time.Time in UTC.
func UnixTime(sec int64) time.Time {
	return time.Unix(sec, 0).UTC()
}
