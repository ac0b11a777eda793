// Package stats holds the run-wide counters shared by workers, progress and status.
package stats

import (
	"sync/atomic"
	"time"
)

type Reason string

const (
	ReasonInvalidPosition Reason = "invalid_position"
	ReasonAnalysisEmpty   Reason = "analysis_empty"
	ReasonAnalysisFailed  Reason = "analysis_failed"
	ReasonSynthesis       Reason = "synthesis"
)

var Reasons = []Reason{ReasonInvalidPosition, ReasonAnalysisEmpty, ReasonAnalysisFailed, ReasonSynthesis}

type Counters struct {
	total     int64
	startedAt time.Time
	now       func() time.Time

	processed atomic.Int64
	written   atomic.Int64
	dropped   atomic.Int64
	errors    [4]atomic.Int64
}

func New(total int) *Counters {
	return newWithClock(total, time.Now)
}

func newWithClock(total int, now func() time.Time) *Counters {
	return &Counters{total: int64(total), startedAt: now(), now: now}
}

// Succeeded records a position whose example was handed to the sink.
func (c *Counters) Succeeded(written bool) {
	if written {
		c.written.Add(1)
	} else {
		c.dropped.Add(1)
	}
	c.processed.Add(1)
}

func (c *Counters) Failed(r Reason) {
	c.errors[reasonIndex(r)].Add(1)
	c.processed.Add(1)
}

func reasonIndex(r Reason) int {
	for i, known := range Reasons {
		if known == r {
			return i
		}
	}
	// unknown reasons are counted as analysis failures
	return reasonIndex(ReasonAnalysisFailed)
}

func (c *Counters) Processed() int64 { return c.processed.Load() }

type Snapshot struct {
	Total     int64            `json:"total"`
	Processed int64            `json:"processed"`
	Written   int64            `json:"written"`
	Dropped   int64            `json:"dropped_writes"`
	Errors    int64            `json:"errors"`
	ByReason  map[Reason]int64 `json:"errors_by_reason"`
	Elapsed   time.Duration    `json:"elapsed_ns"`
	Rate      float64          `json:"rate_per_sec"`
	ETA       time.Duration    `json:"eta_ns"`
}

func (c *Counters) Snapshot() Snapshot {
	s := Snapshot{
		Total:     c.total,
		Processed: c.processed.Load(),
		Written:   c.written.Load(),
		Dropped:   c.dropped.Load(),
		ByReason:  make(map[Reason]int64, len(Reasons)),
		Elapsed:   c.now().Sub(c.startedAt),
	}
	for i, r := range Reasons {
		n := c.errors[i].Load()
		s.ByReason[r] = n
		s.Errors += n
	}
	if secs := s.Elapsed.Seconds(); secs > 0 {
		s.Rate = float64(s.Processed) / secs
	}
	if s.Rate > 0 && s.Total > s.Processed {
		s.ETA = time.Duration(float64(s.Total-s.Processed) / s.Rate * float64(time.Second))
	}
	return s
}

func (s Snapshot) Done() bool { return s.Processed >= s.Total }
