package pipeline

import (
	"errors"
	"time"

	"RatioScope/internal/calculator"
	"RatioScope/internal/collector"
	"RatioScope/internal/model"
)

var (
	ErrNotReady        = errors.New("pipeline has no ready snapshot")
	ErrRefetchRequired = errors.New("interval needs a different base granularity, refetch required")
	ErrUnknownPair     = errors.New("unknown pair")
)

// Stage is the lifecycle position of a pair pipeline.
type Stage int

const (
	StageIdle Stage = iota
	StageFetchingRequired
	StageFetchingOptional
	StageDeriving
	StageReady
	StageFailed
)

func (s Stage) String() string {
	switch s {
	case StageFetchingRequired:
		return "fetching_required_legs"
	case StageFetchingOptional:
		return "fetching_optional_leg"
	case StageDeriving:
		return "deriving"
	case StageReady:
		return "ready"
	case StageFailed:
		return "failed"
	default:
		return "idle"
	}
}

func (s Stage) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// View selects the history window and display interval of a run.
type View struct {
	Lookback model.Lookback `json:"lookback"`
	Interval model.Interval `json:"interval"`
}

// DefaultView is one year of daily bars.
var DefaultView = View{Lookback: model.Days(365), Interval: model.Interval1D}

// Plan sizes the provider request for this view.
func (v View) Plan() collector.Plan {
	return collector.PlanRequest(v.Lookback, v.Interval)
}

// LegStatus tags the outcome of the optional leg.
type LegStatus string

const (
	LegNone     LegStatus = "none"
	LegOk       LegStatus = "ok"
	LegDegraded LegStatus = "degraded"
)

// LegResult is the tagged outcome of an optional leg fetch.
type LegResult struct {
	Status LegStatus     `json:"status"`
	Quotes []model.Quote `json:"-"`
	Reason string        `json:"reason,omitempty"`
}

// Ok wraps a successful optional fetch.
func Ok(quotes []model.Quote) LegResult {
	return LegResult{Status: LegOk, Quotes: quotes}
}

// Degraded records an absorbed optional failure; its series is empty.
func Degraded(reason string) LegResult {
	return LegResult{Status: LegDegraded, Reason: reason}
}

// Series returns the quotes to derive from, empty unless Ok.
func (r LegResult) Series() []model.Quote {
	if r.Status != LegOk {
		return nil
	}
	return r.Quotes
}

// DerivedSeries is one ratio series with its overlays.
// Limited marks an empty series, shown as "limited data available".
type DerivedSeries struct {
	Name     string               `json:"name"`
	Bars     []model.RatioBar     `json:"bars"`
	Overlays []calculator.Overlay `json:"overlays"`
	Limited  bool                 `json:"limited"`
}

// Points projects the series onto its values.
func (d DerivedSeries) Points() []model.Point {
	return calculator.Values(d.Bars)
}

// Snapshot is the immutable Ready output of a pair pipeline.
type Snapshot struct {
	Pair       model.Pair                 `json:"pair"`
	View       View                       `json:"view"`
	Stage      Stage                      `json:"stage"`
	Primary    DerivedSeries              `json:"primary"`
	Secondary  DerivedSeries              `json:"secondary"`
	Optional   LegResult                  `json:"optional"`
	Indicators []calculator.IndicatorSpec `json:"indicators"`
	FetchedAt  time.Time                  `json:"fetched_at"`
	DerivedAt  time.Time                  `json:"derived_at"`
}
