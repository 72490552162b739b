package storage

import (
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
)

// Progress tracks committed batches and logs a concise line per batch with
// running totals and instantaneous rows/sec since the previous batch.
type Progress struct {
	clock  clockwork.Clock
	log    *slog.Logger
	prefix string

	start     time.Time
	last      time.Time
	total     int64
	lastTotal int64
	batches   int64
}

// NewProgress starts a tracker. A nil clock uses the real clock; a nil
// logger discards output.
func NewProgress(clock clockwork.Clock, log *slog.Logger, prefix string) *Progress {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	now := clock.Now()
	return &Progress{clock: clock, log: log, prefix: prefix, start: now, last: now}
}

// Batch records a committed batch of n rows.
func (p *Progress) Batch(n int64) {
	p.total += n
	p.batches++

	now := p.clock.Now()
	sinceLast := now.Sub(p.last)
	rps := float64(0)
	if sinceLast > 0 {
		rps = float64(p.total-p.lastTotal) / sinceLast.Seconds()
	}
	p.log.Info(p.prefix+": batch committed",
		"batch", p.batches,
		"rps", int64(rps),
		"inserted", n,
		"total_inserted", p.total,
		"elapsed", now.Sub(p.start).Truncate(time.Millisecond),
		"since_last", sinceLast.Truncate(time.Millisecond),
	)
	p.last = now
	p.lastTotal = p.total
}

// Failed logs a batch that was rolled back.
func (p *Progress) Failed(err error) {
	p.log.Error(p.prefix+": batch failed", "batch", p.batches+1, "total_inserted", p.total, "err", err)
}

// Total returns the rows recorded so far.
func (p *Progress) Total() int64 { return p.total }

// Batches returns the number of committed batches.
func (p *Progress) Batches() int64 { return p.batches }

// Elapsed returns the time since the tracker started.
func (p *Progress) Elapsed() time.Duration { return p.clock.Since(p.start) }
