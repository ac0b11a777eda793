// Package progress periodically reports run counters to the console and to
// optional external publishers.
package progress

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/park285/position-analyzer/internal/stats"
	"go.uber.org/zap"
)

type Publisher interface {
	Publish(ctx context.Context, snap stats.Snapshot) error
}

type Tracker struct {
	counters   *stats.Counters
	out        io.Writer
	interval   time.Duration
	publishers []Publisher
	logger     *zap.Logger
}

func NewTracker(counters *stats.Counters, out io.Writer, interval time.Duration, logger *zap.Logger, publishers ...Publisher) *Tracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if out == nil {
		out = io.Discard
	}
	return &Tracker{
		counters:   counters,
		out:        out,
		interval:   interval,
		publishers: publishers,
		logger:     logger,
	}
}

// Run reports every interval until ctx is cancelled, then reports once more.
func (t *Tracker) Run(ctx context.Context) {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			t.Report(context.WithoutCancel(ctx))
			return
		case <-ticker.C:
			t.Report(ctx)
		}
	}
}

func (t *Tracker) Report(ctx context.Context) {
	snap := t.counters.Snapshot()
	fmt.Fprintln(t.out, FormatLine(snap))
	for _, p := range t.publishers {
		if err := p.Publish(ctx, snap); err != nil {
			t.logger.Warn("publish progress", zap.Error(err))
		}
	}
}

// FormatLine renders "[hh:mm:ss] processed/total (rate/s, ETA: d)".
func FormatLine(s stats.Snapshot) string {
	eta := "-"
	if s.ETA > 0 {
		eta = s.ETA.Round(time.Second).String()
	} else if s.Done() {
		eta = "0s"
	}
	return fmt.Sprintf("[%s] %d/%d (%.1f/s, ETA: %s)", clock(s.Elapsed), s.Processed, s.Total, s.Rate, eta)
}

func clock(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	return fmt.Sprintf("%02d:%02d:%02d", h, m, d/time.Second)
}
