package pipeline

import (
	"context"
	"fmt"
	"log"
	"sync"

	"RatioScope/internal/collector"
	"RatioScope/internal/model"
)

// RunResult is the outcome of one pair in a RefreshAll.
type RunResult struct {
	Pair     string
	Snapshot *Snapshot
	Err      error
}

// Manager holds one pipeline per configured pair.
type Manager struct {
	order     []string
	pipelines map[string]*PairPipeline
}

// NewManager creates a pipeline for every pair, in configuration order.
func NewManager(pairs []model.Pair, src LegSource, opts ...Option) *Manager {
	m := &Manager{pipelines: make(map[string]*PairPipeline, len(pairs))}
	for _, pair := range pairs {
		m.order = append(m.order, pair.Name)
		m.pipelines[pair.Name] = New(pair, src, opts...)
	}
	return m
}

// Get returns the pipeline by name or slug, or ErrUnknownPair.
func (m *Manager) Get(name string) (*PairPipeline, error) {
	if p, ok := m.pipelines[name]; ok {
		return p, nil
	}
	for _, n := range m.order {
		if p := m.pipelines[n]; p.pair.Slug() == name {
			return p, nil
		}
	}
	return nil, fmt.Errorf("%q: %w", name, ErrUnknownPair)
}

// Pipelines returns all pipelines in configuration order.
func (m *Manager) Pipelines() []*PairPipeline {
	out := make([]*PairPipeline, 0, len(m.order))
	for _, name := range m.order {
		out = append(out, m.pipelines[name])
	}
	return out
}

// RefreshAll runs every pair concurrently at its current view; pairs that
// were never Ready use fallback. One pair's failure never affects the
// others; results keep configuration order.
func (m *Manager) RefreshAll(ctx context.Context, fallback View) []RunResult {
	return m.refresh(ctx, func(p *PairPipeline) View { return p.CurrentView(fallback) })
}

// RefreshAllAt runs every pair concurrently at view.
func (m *Manager) RefreshAllAt(ctx context.Context, view View) []RunResult {
	return m.refresh(ctx, func(*PairPipeline) View { return view })
}

func (m *Manager) refresh(ctx context.Context, viewOf func(*PairPipeline) View) []RunResult {
	results := make([]RunResult, len(m.order))
	var wg sync.WaitGroup
	for i, name := range m.order {
		wg.Add(1)
		go func(i int, p *PairPipeline) {
			defer wg.Done()
			snap, err := p.Run(ctx, viewOf(p))
			if err != nil {
				log.Printf("[ERROR] refresh %s failed (%s): %v", p.pair.Name, collector.KindOf(err), err)
			}
			results[i] = RunResult{Pair: p.pair.Name, Snapshot: snap, Err: err}
		}(i, m.pipelines[name])
	}
	wg.Wait()
	return results
}
