// Package progress renders search progress by polling a snapshot source.
// Reporters never touch the workers; they only read atomics through
// Source.Progress.
package progress

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/pterm/pterm"

	"github.com/screa/create2-miner/internal/logger"
	"github.com/screa/create2-miner/pkg/types"
)

// Source is anything that can report attempts so far, e.g. *miner.Miner.
type Source interface {
	Progress() types.Progress
}

// Reporter renders progress until ctx is cancelled.
type Reporter interface {
	Run(ctx context.Context, src Source) error
}

// Options configure a reporter for one search.
type Options struct {
	Title      string
	Interval   time.Duration
	Difficulty float64 // expected attempts per match, 0 if unknown
	Total      uint64  // global attempt ceiling, 0 if unbounded
}

// LogReporter writes a progress line at a fixed interval.
type LogReporter struct {
	opts   Options
	logger *logger.Logger
}

// NewLogReporter creates a reporter that logs through l.
func NewLogReporter(l *logger.Logger, opts Options) *LogReporter {
	if opts.Interval <= 0 {
		opts.Interval = 5 * time.Second
	}
	return &LogReporter{opts: opts, logger: l}
}

func (r *LogReporter) Run(ctx context.Context, src Source) error {
	ticker := time.NewTicker(r.opts.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			r.report(src.Progress())
		}
	}
}

func (r *LogReporter) report(p types.Progress) {
	kv := []any{
		"target", r.opts.Title,
		"attempts", p.Attempts,
		"rate", fmt.Sprintf("%.2f hashes/sec", p.Rate()),
		"elapsed", p.Elapsed.Round(time.Second),
	}
	if eta, ok := ExpectedTime(r.opts.Difficulty, p.Rate()); ok {
		kv = append(kv, "expected", eta.Round(time.Second))
	}
	if r.opts.Total > 0 {
		kv = append(kv, "ceiling", r.opts.Total)
	}
	r.logger.Infow("progress", kv...)
}

// TerminalReporter draws a pterm progress bar when the attempt ceiling is
// global, or a spinning status line when the search is open-ended.
type TerminalReporter struct {
	opts Options
}

// NewTerminalReporter creates a pterm based reporter.
func NewTerminalReporter(opts Options) *TerminalReporter {
	if opts.Interval <= 0 {
		opts.Interval = 250 * time.Millisecond
	}
	return &TerminalReporter{opts: opts}
}

func (r *TerminalReporter) Run(ctx context.Context, src Source) error {
	if r.opts.Total > 0 && r.opts.Total <= math.MaxInt {
		return r.runBar(ctx, src)
	}
	return r.runSpinner(ctx, src)
}

func (r *TerminalReporter) runBar(ctx context.Context, src Source) error {
	bar, err := pterm.DefaultProgressbar.
		WithTotal(int(r.opts.Total)).
		WithTitle(r.opts.Title).
		WithShowElapsedTime(false).
		WithRemoveWhenDone(true).
		Start()
	if err != nil {
		return fmt.Errorf("start progress bar: %w", err)
	}

	ticker := time.NewTicker(r.opts.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			r.advance(bar, src.Progress())
			_, _ = bar.Stop()
			return nil
		case <-ticker.C:
			r.advance(bar, src.Progress())
		}
	}
}

func (r *TerminalReporter) advance(bar *pterm.ProgressbarPrinter, p types.Progress) {
	n := int(min(p.Attempts, r.opts.Total))
	if delta := n - bar.Current; delta > 0 {
		bar.Add(delta)
	}
	bar.UpdateTitle(fmt.Sprintf("%s %s %s", r.opts.Title, formatRate(p.Rate()), p.Elapsed.Round(time.Second)))
}

func (r *TerminalReporter) runSpinner(ctx context.Context, src Source) error {
	// The area is redrawn only from this goroutine.
	area, err := pterm.DefaultArea.WithRemoveWhenDone(true).Start(r.frame(0, src.Progress()))
	if err != nil {
		return fmt.Errorf("start progress area: %w", err)
	}

	ticker := time.NewTicker(r.opts.Interval)
	defer ticker.Stop()
	for tick := 1; ; tick++ {
		select {
		case <-ctx.Done():
			_ = area.Stop()
			return nil
		case <-ticker.C:
			area.Update(r.frame(tick, src.Progress()))
		}
	}
}

var spinnerSequence = []string{"⣾", "⣽", "⣻", "⢿", "⡿", "⣟", "⣯", "⣷"}

func (r *TerminalReporter) frame(tick int, p types.Progress) string {
	return spinnerSequence[tick%len(spinnerSequence)] + " " + r.line(p)
}

func (r *TerminalReporter) line(p types.Progress) string {
	s := fmt.Sprintf("%s | attempts: %d | %s | elapsed %s",
		r.opts.Title, p.Attempts, formatRate(p.Rate()), p.Elapsed.Round(time.Second))
	if eta, ok := ExpectedTime(r.opts.Difficulty, p.Rate()); ok {
		s += " | expected " + eta.Round(time.Second).String()
	}
	return s
}

// ExpectedTime is the mean time to a match at the given rate. The search is
// memoryless, so it does not shrink as attempts accumulate.
func ExpectedTime(difficulty, rate float64) (time.Duration, bool) {
	if difficulty <= 0 || rate <= 0 {
		return 0, false
	}
	secs := difficulty / rate
	if secs > float64(math.MaxInt64/int64(time.Second)) {
		return 0, false
	}
	return time.Duration(secs * float64(time.Second)), true
}

func formatRate(rate float64) string {
	switch {
	case rate >= 1e6:
		return fmt.Sprintf("%.2f MH/s", rate/1e6)
	case rate >= 1e3:
		return fmt.Sprintf("%.2f kH/s", rate/1e3)
	default:
		return fmt.Sprintf("%.0f H/s", rate)
	}
}
