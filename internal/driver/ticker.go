package driver

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

const (
	DefaultTickLength = 250 * time.Millisecond
)

// Manager advances simulated state by one tick. Tick always runs on the loop.
type Manager interface {
	Tick(ctx context.Context, dt time.Duration)
}

// Ticker keeps wall-clock time on its own goroutine and hands every tick to
// the loop. It never touches manager state directly.
type Ticker struct {
	loop       *Loop
	managers   []Manager
	tickLength time.Duration
}

func NewTicker(loop *Loop, managers []Manager, opts ...TickerOpt) *Ticker {
	t := &Ticker{
		loop:       loop,
		managers:   managers,
		tickLength: DefaultTickLength,
	}

	for _, opt := range opts {
		opt(t)
	}

	return t
}

func (t *Ticker) Start(ctx context.Context) error {
	timer := time.NewTimer(t.tickLength)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-timer.C:
		}

		start := time.Now()
		if err := t.Tick(ctx); err != nil {
			if errors.Is(err, ErrStopped) {
				return nil
			}
			return err
		}

		// Sleep only what is left of the tick so the schedule does not drift.
		took := time.Since(start)
		remaining := t.tickLength - took
		if remaining < 0 {
			slog.WarnContext(ctx, "tick overran", "took", took, "tick", t.tickLength)
			remaining = 0
		}
		timer.Reset(remaining)
	}
}

// Tick submits one tick of every manager to the loop without waiting.
func (t *Ticker) Tick(ctx context.Context) error {
	dt := t.tickLength
	for _, m := range t.managers {
		err := t.loop.Submit(func(ctx context.Context) {
			m.Tick(ctx, dt)
		})
		if err != nil {
			return err
		}
	}
	return nil
}
