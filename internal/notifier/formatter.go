package notifier

import (
	"fmt"
	"html"
	"strings"
	"time"

	"RatioScope/internal/calculator"
	"RatioScope/internal/collector"
	"RatioScope/internal/model"
	"RatioScope/internal/pipeline"
	"RatioScope/internal/recorder"
)

// FormatRefreshReport formats the outcome of a refresh across all pairs.
func FormatRefreshReport(results []pipeline.RunResult) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("📊 <b>RatioScope</b> | %s\n", time.Now().UTC().Format("2006-01-02 15:04")))

	for _, r := range results {
		b.WriteString("\n")
		if r.Err != nil {
			b.WriteString(FormatFailure(r.Pair, r.Err))
			continue
		}
		b.WriteString(FormatSnapshot(r.Snapshot))
	}
	return b.String()
}

// FormatSnapshot formats the legend of a pair's derived series.
func FormatSnapshot(snap *pipeline.Snapshot) string {
	if snap == nil {
		return ""
	}
	var b strings.Builder
	b.WriteString(fmt.Sprintf("<b>%s</b> (%s, %s)\n",
		html.EscapeString(snap.Pair.Name), snap.View.Lookback, snap.View.Interval))
	writeSeries(&b, snap.Primary)

	switch snap.Optional.Status {
	case pipeline.LegOk:
		writeSeries(&b, snap.Secondary)
	case pipeline.LegDegraded:
		b.WriteString(fmt.Sprintf("%s: ⚠️ unavailable (%s)\n",
			html.EscapeString(snap.Secondary.Name), html.EscapeString(snap.Optional.Reason)))
	}
	return b.String()
}

func writeSeries(b *strings.Builder, ds pipeline.DerivedSeries) {
	name := html.EscapeString(ds.Name)
	sum, ok := calculator.Summarize(ds.Points())
	if !ok {
		b.WriteString(fmt.Sprintf("%s: limited data available\n", name))
		return
	}
	b.WriteString(fmt.Sprintf("%s: %s (%+.1f%%) as of %s\n",
		name, formatRatio(sum.Last), sum.Change, model.UnixTime(sum.Time).Format("2006-01-02")))
	b.WriteString(fmt.Sprintf("  range %s – %s | position %.0f%% | RSI14 %.1f\n",
		formatRatio(sum.Low), formatRatio(sum.High), sum.Position*100, sum.RSI))
	for _, o := range ds.Overlays {
		if len(o.Points) == 0 {
			continue
		}
		last := o.Points[len(o.Points)-1]
		b.WriteString(fmt.Sprintf("  %s %s\n", o.Spec.Label(), formatRatio(last.Value)))
	}
}

// FormatFailure formats a failed pair refresh with its error kind.
func FormatFailure(pair string, err error) string {
	icon := "❌"
	if collector.KindOf(err) == collector.KindRateLimited {
		icon = "⏳"
	}
	return fmt.Sprintf("%s <b>%s</b> refresh failed [%s]\n%s\n",
		icon, html.EscapeString(pair), collector.KindOf(err), html.EscapeString(err.Error()))
}

// FormatStatus formats pipeline stages and the most recent recorded runs.
func FormatStatus(pipes []*pipeline.PairPipeline, runs []recorder.RunRecord) string {
	var b strings.Builder
	b.WriteString("🛰 <b>Pipeline status</b>\n\n")
	for _, p := range pipes {
		line := fmt.Sprintf("%s: %s", html.EscapeString(p.Pair().Name), p.Stage())
		if err := p.LastError(); err != nil {
			line += fmt.Sprintf(" [%s]", collector.KindOf(err))
		}
		if snap, ok := p.Snapshot(); ok {
			line += fmt.Sprintf(", data from %s", snap.FetchedAt.UTC().Format("01-02 15:04"))
		}
		b.WriteString(line + "\n")
	}
	if len(runs) > 0 {
		b.WriteString("\n<b>Recent runs</b>\n")
		for _, r := range runs {
			b.WriteString(fmt.Sprintf("%s %s %s", time.Unix(r.Timestamp, 0).UTC().Format("01-02 15:04"),
				html.EscapeString(r.Pair), r.Outcome))
			if r.ErrorKind != "" {
				b.WriteString(" " + r.ErrorKind)
			}
			b.WriteString(fmt.Sprintf(" (%dms)\n", r.DurationMs))
		}
	}
	return b.String()
}

// formatRatio keeps small ratios readable.
func formatRatio(v float64) string {
	switch {
	case v == 0:
		return "0"
	case v >= 1000:
		return fmt.Sprintf("%.0f", v)
	case v >= 1:
		return fmt.Sprintf("%.4f", v)
	default:
		return fmt.Sprintf("%.8f", v)
	}
}
