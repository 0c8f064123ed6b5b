package puller

import (
	"context"
	"time"
)

// Pacer waits between remote calls.
type Pacer interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// TimerPacer sleeps on a timer and wakes early when ctx is done.
type TimerPacer struct{}

func (TimerPacer) Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// NoopPacer never sleeps. It still reports a done context.
type NoopPacer struct{}

func (NoopPacer) Sleep(ctx context.Context, _ time.Duration) error {
	return ctx.Err()
}
