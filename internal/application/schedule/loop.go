// Package schedule runs a unit of work on a fixed interval until cancelled.
package schedule

import (
	"context"
	"log/slog"
	"time"
)

// Loop calls Body repeatedly. Cancellation is checked at the top of every
// iteration and during the wait, never in the middle of Body.
type Loop struct {
	Name     string
	Interval time.Duration
	Body     func(ctx context.Context) error
	Logger   *slog.Logger
}

// Run blocks until ctx is cancelled. A Body error is logged and the loop
// carries on after the interval.
func (l *Loop) Run(ctx context.Context) {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("loop started", "loop", l.Name, "interval", l.Interval.String())
	for {
		select {
		case <-ctx.Done():
			logger.Info("loop stopped", "loop", l.Name)
			return
		default:
		}

		if err := l.Body(ctx); err != nil {
			logger.Error("loop iteration failed", "loop", l.Name, "error", err)
		}

		if !Sleep(ctx, l.Interval) {
			logger.Info("loop stopped", "loop", l.Name)
			return
		}
	}
}

// Sleep waits for d or until ctx is done. It reports false when cancelled.
func Sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
