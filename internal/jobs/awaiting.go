package jobs

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// AwaitingCounter is the slice of the alert store this job reads.
type AwaitingCounter interface {
	CountAwaiting(ctx context.Context, before time.Time) (int, error)
}

// AwaitingGauge receives the latest count.
type AwaitingGauge interface {
	AwaitingResponse(n int)
}

// AwaitingReporter publishes how many notified alerts have sat without any
// volunteer progress for longer than staleAfter. It only reports; nothing is
// re-dispatched.
type AwaitingReporter struct {
	alerts     AwaitingCounter
	gauge      AwaitingGauge
	staleAfter time.Duration
	logr       *zap.Logger
	now        func() time.Time
}

func NewAwaitingReporter(alerts AwaitingCounter, gauge AwaitingGauge, staleAfter time.Duration, logr *zap.Logger) *AwaitingReporter {
	return &AwaitingReporter{
		alerts:     alerts,
		gauge:      gauge,
		staleAfter: staleAfter,
		logr:       logr,
		now:        time.Now,
	}
}

func (r *AwaitingReporter) Name() string { return "awaiting_response" }

func (r *AwaitingReporter) Run(ctx context.Context) error {
	n, err := r.alerts.CountAwaiting(ctx, r.now().UTC().Add(-r.staleAfter))
	if err != nil {
		return err
	}
	r.gauge.AwaitingResponse(n)
	if n > 0 {
		r.logr.Warn("sos alerts awaiting volunteer response",
			zap.Int("count", n),
			zap.Duration("stale_after", r.staleAfter))
	}
	return nil
}
