package model

import (
	"fmt"
	"strconv"
	"strings"
)

// Interval is the display bucket size of a derived series.
type Interval string

const (
	Interval1H Interval = "1H"
	Interval4H Interval = "4H"
	Interval1D Interval = "1D"
	Interval1W Interval = "1W"
)

// Granularity is the native bar size a primary provider can serve.
type Granularity string

const (
	GranularityHour Granularity = "hour"
	GranularityDay  Granularity = "day"
)

// ParseInterval accepts 1H, 4H, 1D and 1W (case-insensitive).
func ParseInterval(s string) (Interval, error) {
	iv := Interval(strings.ToUpper(strings.TrimSpace(s)))
	switch iv {
	case Interval1H, Interval4H, Interval1D, Interval1W:
		return iv, nil
	}
	return "", fmt.Errorf("unknown interval %q", s)
}

// Base returns the provider granularity and the positional group size
// needed to build bars of this interval.
func (iv Interval) Base() (Granularity, int) {
	switch iv {
	case Interval1H:
		return GranularityHour, 1
	case Interval4H:
		return GranularityHour, 4
	case Interval1W:
		return GranularityDay, 7
	default:
		return GranularityDay, 1
	}
}

// Lookback is the history window requested from providers.
type Lookback struct {
	Days int
	Max  bool
}

// MaxLookback is the unbounded lookback.
var MaxLookback = Lookback{Max: true}

// LookbackOptions are the selectable history windows.
var LookbackOptions = []Lookback{Days(7), Days(30), Days(90), Days(180), Days(365), MaxLookback}

// Days returns a bounded lookback.
func Days(n int) Lookback { return Lookback{Days: n} }

// ParseLookback accepts "max" or a positive number of days.
func ParseLookback(s string) (Lookback, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "max" {
		return MaxLookback, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return Lookback{}, fmt.Errorf("invalid lookback %q", s)
	}
	return Days(n), nil
}

func (l Lookback) String() string {
	if l.Max {
		return "max"
	}
	return strconv.Itoa(l.Days)
}

// Clamp bounds the lookback to cap days; Max becomes cap.
func (l Lookback) Clamp(cap int) int {
	if l.Max || l.Days > cap {
		return cap
	}
	return l.Days
}

func (l Lookback) MarshalText() ([]byte, error) { return []byte(l.String()), nil }

func (l *Lookback) UnmarshalText(b []byte) error {
	parsed, err := ParseLookback(string(b))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// IsOption reports whether l is one of LookbackOptions.
func (l Lookback) IsOption() bool {
	for _, o := range LookbackOptions {
		if o == l {
			return true
		}
	}
	return false
}
