package schedule

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestLoop_RunsUntilCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var calls atomic.Int32

	l := &Loop{
		Name:     "test",
		Interval: time.Millisecond,
		Logger:   quietLogger(),
		Body: func(context.Context) error {
			if calls.Add(1) == 3 {
				cancel()
			}
			return nil
		},
	}

	done := make(chan struct{})
	go func() {
		l.Run(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("loop did not stop after cancel")
	}
	assert.Equal(t, int32(3), calls.Load())
}

func TestLoop_ContinuesAfterError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var calls atomic.Int32

	l := &Loop{
		Name:     "flaky",
		Interval: time.Millisecond,
		Logger:   quietLogger(),
		Body: func(context.Context) error {
			if calls.Add(1) >= 2 {
				cancel()
			}
			return errors.New("store unreachable")
		},
	}
	l.Run(ctx)

	assert.Equal(t, int32(2), calls.Load())
}

func TestLoop_CancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	l := &Loop{Name: "never", Interval: time.Hour, Logger: quietLogger(), Body: func(context.Context) error {
		called = true
		return nil
	}}
	l.Run(ctx)

	assert.False(t, called)
}

func TestSleep(t *testing.T) {
	assert.True(t, Sleep(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.False(t, Sleep(ctx, time.Hour))
}
