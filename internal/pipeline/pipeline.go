package pipeline

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"RatioScope/internal/calculator"
	"RatioScope/internal/collector"
	"RatioScope/internal/metrics"
	"RatioScope/internal/model"
	"RatioScope/internal/recorder"
)

// LegSource fetches the raw data of one leg. *collector.Source satisfies it.
type LegSource interface {
	FetchBars(ctx context.Context, asset model.AssetRef, lb model.Lookback, iv model.Interval) ([]model.Bar, error)
	FetchRawBars(ctx context.Context, asset model.AssetRef, plan collector.Plan) ([]model.Bar, error)
	FetchQuotes(ctx context.Context, asset model.AssetRef, lb model.Lookback) ([]model.Quote, error)
}

// Option configures a PairPipeline.
type Option func(*PairPipeline)

// WithMetrics attaches Prometheus collectors.
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *PairPipeline) { p.metrics = m }
}

// WithRecorder persists run outcomes and latest ratio values.
func WithRecorder(r recorder.Recorder) Option {
	return func(p *PairPipeline) { p.recorder = r }
}

// WithIndicators sets the initial overlay configuration.
func WithIndicators(specs []calculator.IndicatorSpec) Option {
	return func(p *PairPipeline) { p.indicators = append([]calculator.IndicatorSpec(nil), specs...) }
}

// rawCache holds the fetched legs of the last successful run.
type rawCache struct {
	plan      collector.Plan
	lookback  model.Lookback
	num       []model.Bar
	den       []model.Bar
	optional  LegResult
	fetchedAt time.Time
}

// PairPipeline drives fetch, derivation and caching for one pair.
// Runs are serialized by runMu; mu guards state read by concurrent callers.
type PairPipeline struct {
	pair     model.Pair
	src      LegSource
	metrics  *metrics.Metrics
	recorder recorder.Recorder

	runMu sync.Mutex

	mu         sync.RWMutex
	stage      Stage
	lastErr    error
	indicators []calculator.IndicatorSpec
	view       View
	cache      *rawCache
	snap       *Snapshot
}

// New creates an idle pipeline for pair.
func New(pair model.Pair, src LegSource, opts ...Option) *PairPipeline {
	p := &PairPipeline{
		pair:       pair,
		src:        src,
		recorder:   recorder.NewNoopRecorder(),
		indicators: calculator.DefaultIndicators(),
		view:       DefaultView,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *PairPipeline) Pair() model.Pair { return p.pair }

// Stage reports the current lifecycle stage.
func (p *PairPipeline) Stage() Stage {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.stage
}

// LastError returns the error of the latest failed run, or nil.
func (p *PairPipeline) LastError() error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lastErr
}

// Snapshot returns the latest Ready snapshot. A failed refresh keeps the
// previous snapshot available.
func (p *PairPipeline) Snapshot() (*Snapshot, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.snap, p.snap != nil
}

// CurrentView returns the view of the cached legs, or fallback before the
// first successful run.
func (p *PairPipeline) CurrentView(fallback View) View {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.cache == nil {
		return fallback
	}
	return p.view
}

// Indicators returns a copy of the overlay configuration.
func (p *PairPipeline) Indicators() []calculator.IndicatorSpec {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]calculator.IndicatorSpec(nil), p.indicators...)
}

func (p *PairPipeline) setStage(s Stage) {
	p.mu.Lock()
	p.stage = s
	p.mu.Unlock()
}

// Run fetches both required legs concurrently and the optional leg best-effort,
// then derives a new snapshot. A required-leg error is returned unmodified.
func (p *PairPipeline) Run(ctx context.Context, view View) (*Snapshot, error) {
	p.runMu.Lock()
	defer p.runMu.Unlock()

	start := time.Now()
	plan := view.Plan()
	p.setStage(StageFetchingRequired)

	optCtx, cancelOpt := context.WithCancel(ctx)
	defer cancelOpt()
	optCh := make(chan LegResult, 1)
	if p.pair.Optional != nil {
		go func() { optCh <- p.fetchOptional(optCtx, view.Lookback) }()
	} else {
		optCh <- LegResult{Status: LegNone}
	}

	fetch := func(ctx context.Context, asset model.AssetRef) ([]model.Bar, error) {
		if plan.GroupSize == 1 {
			// interval bars equal the raw bars; re-aggregating them later is a no-op
			return p.src.FetchBars(ctx, asset, view.Lookback, view.Interval)
		}
		return p.src.FetchRawBars(ctx, asset, plan)
	}

	var num, den []model.Bar
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		bars, err := fetch(gctx, p.pair.Numerator)
		if err != nil {
			return err
		}
		num = bars
		return nil
	})
	g.Go(func() error {
		bars, err := fetch(gctx, p.pair.Denominator)
		if err != nil {
			return err
		}
		den = bars
		return nil
	})
	if err := g.Wait(); err != nil {
		p.fail(view, err, time.Since(start))
		return nil, err
	}

	p.setStage(StageFetchingOptional)
	opt := <-optCh
	if opt.Status == LegDegraded {
		log.Printf("[WARN] %s: optional leg %s degraded: %s", p.pair.Name, p.pair.Optional.Name, opt.Reason)
		p.metrics.ObserveDegraded(p.pair.Name)
	}

	p.setStage(StageDeriving)
	cache := &rawCache{
		plan:      plan,
		lookback:  view.Lookback,
		num:       num,
		den:       den,
		optional:  opt,
		fetchedAt: time.Now(),
	}

	p.mu.Lock()
	snap := p.derive(cache, view, p.indicators)
	p.cache = cache
	p.view = view
	p.snap = snap
	p.stage = StageReady
	p.lastErr = nil
	p.mu.Unlock()

	p.metrics.ObserveRun(p.pair.Name, "ready")
	p.record(snap, time.Since(start))
	return snap, nil
}

func (p *PairPipeline) fetchOptional(ctx context.Context, lb model.Lookback) LegResult {
	quotes, err := p.src.FetchQuotes(ctx, p.pair.Optional.Asset, lb)
	if err != nil {
		return Degraded(err.Error())
	}
	return Ok(quotes)
}

func (p *PairPipeline) fail(view View, err error, d time.Duration) {
	p.mu.Lock()
	p.stage = StageFailed
	p.lastErr = err
	p.mu.Unlock()

	p.metrics.ObserveRun(p.pair.Name, "failed")
	if rerr := p.recorder.RecordRun(&recorder.RunRecord{
		Pair:       p.pair.Name,
		Lookback:   view.Lookback.String(),
		Interval:   string(view.Interval),
		Outcome:    "failed",
		ErrorKind:  collector.KindOf(err),
		Error:      err.Error(),
		DurationMs: d.Milliseconds(),
	}); rerr != nil {
		log.Printf("[WARN] %s: record run: %v", p.pair.Name, rerr)
	}
}

func (p *PairPipeline) record(snap *Snapshot, d time.Duration) {
	run := &recorder.RunRecord{
		Pair:            p.pair.Name,
		Lookback:        snap.View.Lookback.String(),
		Interval:        string(snap.View.Interval),
		Outcome:         "ready",
		OptionalStatus:  string(snap.Optional.Status),
		PrimaryPoints:   len(snap.Primary.Bars),
		SecondaryPoints: len(snap.Secondary.Bars),
		DurationMs:      d.Milliseconds(),
	}
	if err := p.recorder.RecordRun(run); err != nil {
		log.Printf("[WARN] %s: record run: %v", p.pair.Name, err)
	}
	for _, series := range []struct {
		name string
		ds   DerivedSeries
	}{{"primary", snap.Primary}, {"secondary", snap.Secondary}} {
		sum, ok := calculator.Summarize(series.ds.Points())
		if !ok {
			continue
		}
		if err := p.recorder.RecordRatio(&recorder.RatioRecord{
			Pair:     p.pair.Name,
			Series:   series.name,
			Time:     sum.Time,
			Value:    sum.Last,
			Change:   sum.Change,
			High:     sum.High,
			Low:      sum.Low,
			Position: sum.Position,
			RSI:      sum.RSI,
		}); err != nil {
			log.Printf("[WARN] %s: record ratio: %v", p.pair.Name, err)
		}
	}
}

// SetIndicators replaces the overlay configuration and re-derives from the
// cached legs without fetching.
func (p *PairPipeline) SetIndicators(specs []calculator.IndicatorSpec) (*Snapshot, error) {
	for _, s := range specs {
		if err := s.Validate(); err != nil {
			return nil, err
		}
	}
	specs = append([]calculator.IndicatorSpec(nil), specs...)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.indicators = specs
	if p.cache == nil {
		return nil, ErrNotReady
	}
	p.snap = p.derive(p.cache, p.view, specs)
	return p.snap, nil
}

// SetInterval re-derives the cached legs at another interval of the same
// base granularity. Other intervals return ErrRefetchRequired.
func (p *PairPipeline) SetInterval(iv model.Interval) (*Snapshot, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cache == nil {
		return nil, ErrNotReady
	}
	g, _ := iv.Base()
	if g != p.cache.plan.Granularity {
		return nil, fmt.Errorf("%s to %s: %w", p.view.Interval, iv, ErrRefetchRequired)
	}
	p.view = View{Lookback: p.cache.lookback, Interval: iv}
	p.snap = p.derive(p.cache, p.view, p.indicators)
	return p.snap, nil
}

// derive builds a snapshot from cached legs. It does no I/O.
func (p *PairPipeline) derive(c *rawCache, view View, specs []calculator.IndicatorSpec) *Snapshot {
	start := time.Now()
	_, group := view.Interval.Base()
	num := calculator.Aggregate(c.num, group)
	den := calculator.Aggregate(c.den, group)

	snap := &Snapshot{
		Pair:       p.pair,
		View:       view,
		Stage:      StageReady,
		Primary:    deriveSeries(p.pair.Name, calculator.ComputeRatio(num, den), specs),
		Optional:   c.optional,
		Indicators: specs,
		FetchedAt:  c.fetchedAt,
		DerivedAt:  time.Now(),
	}

	if opt := p.pair.Optional; opt != nil {
		var ratio []model.RatioBar
		if quotes := c.optional.Series(); len(quotes) > 0 {
			optBars := model.BarsFromQuotes(quotes)
			against := den
			if opt.Against == model.RoleNumerator {
				against = num
			}
			if opt.Invert {
				ratio = calculator.ComputeRatio(against, optBars)
			} else {
				ratio = calculator.ComputeRatio(optBars, against)
			}
		}
		snap.Secondary = deriveSeries(opt.Name, ratio, specs)
	}

	p.metrics.ObserveDerive(p.pair.Name, time.Since(start), map[string]int{
		"primary":   len(snap.Primary.Bars),
		"secondary": len(snap.Secondary.Bars),
	})
	return snap
}

func deriveSeries(name string, bars []model.RatioBar, specs []calculator.IndicatorSpec) DerivedSeries {
	ds := DerivedSeries{Name: name, Bars: bars, Limited: len(bars) == 0}
	values := calculator.Values(bars)
	for _, spec := range specs {
		if !spec.Visible {
			continue
		}
		ds.Overlays = append(ds.Overlays, calculator.ComputeOverlay(spec, values))
	}
	return ds
}
