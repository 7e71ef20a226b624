package scheduler

import (
	"context"
	"fmt"
	"log"
	"strings"

	"RatioScope/internal/model"
	"RatioScope/internal/notifier"
	"RatioScope/internal/pipeline"
	"RatioScope/internal/recorder"

	"github.com/robfig/cron/v3"
)

// Scheduler manages the refresh and report cron tasks.
type Scheduler struct {
	Cron     *cron.Cron
	Manager  *pipeline.Manager
	Notifier notifier.Sender // nil disables notifications
	Recorder recorder.Recorder
	View     pipeline.View
	Ctx      context.Context
}

// NewScheduler creates a new Scheduler.
func NewScheduler(ctx context.Context, mgr *pipeline.Manager, sender notifier.Sender, rec recorder.Recorder, view pipeline.View) *Scheduler {
	if rec == nil {
		rec = recorder.NewNoopRecorder()
	}
	return &Scheduler{
		Cron:     cron.New(cron.WithSeconds()),
		Manager:  mgr,
		Notifier: sender,
		Recorder: rec,
		View:     view,
		Ctx:      ctx,
	}
}

// RegisterAll registers the refresh and daily report tasks.
func (s *Scheduler) RegisterAll(refreshCron, reportCron string) error {
	if _, err := s.Cron.AddFunc(refreshCron, func() { s.refreshTask() }); err != nil {
		return fmt.Errorf("register refresh task: %w", err)
	}
	if reportCron != "" {
		if _, err := s.Cron.AddFunc(reportCron, s.reportTask); err != nil {
			return fmt.Errorf("register report task: %w", err)
		}
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	log.Println("[INFO] scheduler started")
}

// Stop stops the cron scheduler gracefully.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	log.Println("[INFO] scheduler stopped")
}

// RunRefreshNow refreshes every pair immediately (RUN_ON_START / manual trigger).
func (s *Scheduler) RunRefreshNow() []pipeline.RunResult {
	return s.refreshTask()
}

// refreshTask refreshes all pairs at their current views and notifies
// about failed ones only.
func (s *Scheduler) refreshTask() []pipeline.RunResult {
	log.Printf("[INFO] refreshing %d pairs", len(s.Manager.Pipelines()))
	return s.notifyFailures(s.Manager.RefreshAll(s.Ctx, s.View))
}

// refreshAt moves every pair to view.
func (s *Scheduler) refreshAt(view pipeline.View) []pipeline.RunResult {
	log.Printf("[INFO] refreshing %d pairs at %s/%s", len(s.Manager.Pipelines()), view.Lookback, view.Interval)
	return s.notifyFailures(s.Manager.RefreshAllAt(s.Ctx, view))
}

func (s *Scheduler) notifyFailures(results []pipeline.RunResult) []pipeline.RunResult {
	for _, r := range results {
		if r.Err != nil {
			s.trySend(notifier.FormatFailure(r.Pair, r.Err))
		}
	}
	return results
}

func (s *Scheduler) reportTask() {
	log.Println("[INFO] sending ratio report")
	s.trySend(notifier.FormatRefreshReport(s.current()))
}

// current collects the latest snapshot of every pair without fetching.
func (s *Scheduler) current() []pipeline.RunResult {
	var results []pipeline.RunResult
	for _, p := range s.Manager.Pipelines() {
		r := pipeline.RunResult{Pair: p.Pair().Name}
		if snap, ok := p.Snapshot(); ok {
			r.Snapshot = snap
		} else if err := p.LastError(); err != nil {
			r.Err = err
		} else {
			r.Err = pipeline.ErrNotReady
		}
		results = append(results, r)
	}
	return results
}

// HandleCommand processes a user command and returns a reply.
func (s *Scheduler) HandleCommand(command string) string {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return helpText
	}
	switch fields[0] {
	case "/ratios":
		return notifier.FormatRefreshReport(s.current())
	case "/refresh":
		if len(fields) == 1 {
			return notifier.FormatRefreshReport(s.refreshTask())
		}
		view, err := parseView(s.View, fields[1:])
		if err != nil {
			return fmt.Sprintf("⚠️ %v\n\n%s", err, helpText)
		}
		return notifier.FormatRefreshReport(s.refreshAt(view))
	case "/status":
		runs, err := s.Recorder.RecentRuns(5)
		if err != nil {
			log.Printf("[WARN] load recent runs: %v", err)
		}
		return notifier.FormatStatus(s.Manager.Pipelines(), runs)
	default:
		return helpText
	}
}

const helpText = "Available commands:\n" +
	"• /ratios: latest ratios\n" +
	"• /refresh [7|30|90|180|365|max] [1H|4H|1D|1W]: fetch now\n" +
	"• /status: pipeline status"

// parseView applies optional lookback and interval arguments in any order.
func parseView(base pipeline.View, args []string) (pipeline.View, error) {
	view := base
	for _, arg := range args {
		if iv, err := model.ParseInterval(arg); err == nil {
			view.Interval = iv
			continue
		}
		lb, err := model.ParseLookback(arg)
		if err != nil || !lb.IsOption() {
			return base, fmt.Errorf("unknown argument %q", arg)
		}
		view.Lookback = lb
	}
	return view, nil
}

func (s *Scheduler) trySend(text string) {
	if s.Notifier == nil {
		log.Printf("[INFO] notification (telegram disabled): %s", firstLine(text))
		return
	}
	if err := s.Notifier.SendWithRetry(s.Ctx, text, 3); err != nil {
		log.Printf("[ERROR] send notification: %v", err)
	}
}

func firstLine(text string) string {
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		return text[:i]
	}
	return text
}
