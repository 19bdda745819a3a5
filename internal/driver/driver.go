package driver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

const (
	DefaultQueueSize = 1024
)

var ErrStopped = errors.New("driver loop stopped")

// Task runs on the loop goroutine with exclusive access to loop-owned state.
type Task func(context.Context)

// Loop is the single logical owner of world state. Tasks run one at a time in
// submission order.
type Loop struct {
	queueSize int

	tasks chan Task
	done  chan struct{}
}

func NewLoop(opts ...LoopOpt) *Loop {
	l := &Loop{
		queueSize: DefaultQueueSize,
		done:      make(chan struct{}),
	}

	for _, opt := range opts {
		opt(l)
	}

	l.tasks = make(chan Task, l.queueSize)
	return l
}

func (l *Loop) Start(ctx context.Context) error {
	defer close(l.done)

	slog.InfoContext(ctx, "driver loop started", "queue", cap(l.tasks))
	for {
		select {
		case <-ctx.Done():
			return nil
		case t := <-l.tasks:
			l.run(ctx, t)
		}
	}
}

func (l *Loop) run(ctx context.Context, t Task) {
	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "driver task panicked", "panic", fmt.Sprint(r))
		}
	}()
	t(ctx)
}

// Submit queues a task without waiting for it to run. It blocks only while
// the queue is full.
func (l *Loop) Submit(t Task) error {
	select {
	case <-l.done:
		return ErrStopped
	default:
	}

	select {
	case l.tasks <- t:
		return nil
	case <-l.done:
		return ErrStopped
	}
}

// Do queues a task and waits for it to finish.
func (l *Loop) Do(ctx context.Context, t Task) error {
	finished := make(chan struct{})
	err := l.Submit(func(ctx context.Context) {
		defer close(finished)
		t(ctx)
	})
	if err != nil {
		return err
	}

	select {
	case <-finished:
		return nil
	case <-l.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}
