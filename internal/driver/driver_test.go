package driver

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/pixil98/go-testutil"
)

func startLoop(t *testing.T, opts ...LoopOpt) (*Loop, context.CancelFunc) {
	t.Helper()
	l := NewLoop(opts...)
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		if err := l.Start(ctx); err != nil {
			t.Errorf("loop start: %v", err)
		}
	}()
	t.Cleanup(func() {
		cancel()
		<-stopped
	})
	return l, cancel
}

func TestLoop_RunsInSubmissionOrder(t *testing.T) {
	l, _ := startLoop(t)

	var got []int
	for i := 0; i < 100; i++ {
		err := l.Submit(func(context.Context) { got = append(got, i) })
		if err != nil {
			t.Fatalf("submit %d: %v", i, err)
		}
	}
	if err := l.Do(context.Background(), func(context.Context) {}); err != nil {
		t.Fatalf("do: %v", err)
	}

	testutil.AssertEqual(t, "count", len(got), 100)
	for i, v := range got {
		if v != i {
			t.Fatalf("task %d ran at position %d", v, i)
		}
	}
}

func TestLoop_DoWaits(t *testing.T) {
	l, _ := startLoop(t, WithQueueSize(1))

	ran := false
	err := l.Do(context.Background(), func(context.Context) { ran = true })
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	testutil.AssertEqual(t, "ran", ran, true)
}

func TestLoop_SurvivesPanic(t *testing.T) {
	l, _ := startLoop(t)

	_ = l.Submit(func(context.Context) { panic("boom") })

	ran := false
	if err := l.Do(context.Background(), func(context.Context) { ran = true }); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	testutil.AssertEqual(t, "ran after panic", ran, true)
}

func TestLoop_StoppedRejects(t *testing.T) {
	l, cancel := startLoop(t)
	cancel()
	<-l.done

	tests := map[string]func() error{
		"submit": func() error { return l.Submit(func(context.Context) {}) },
		"do":     func() error { return l.Do(context.Background(), func(context.Context) {}) },
	}

	for name, call := range tests {
		t.Run(name, func(t *testing.T) {
			if err := call(); !errors.Is(err, ErrStopped) {
				t.Errorf("expected ErrStopped, got %v", err)
			}
		})
	}
}

func TestLoop_DoHonorsContext(t *testing.T) {
	l, _ := startLoop(t)

	block := make(chan struct{})
	defer close(block)
	_ = l.Submit(func(context.Context) { <-block })

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := l.Do(ctx, func(context.Context) {})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}

type countingManager struct {
	mu    sync.Mutex
	ticks int
	dt    time.Duration
}

func (m *countingManager) Tick(_ context.Context, dt time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ticks++
	m.dt = dt
}

func TestTicker_SubmitsToLoop(t *testing.T) {
	l, _ := startLoop(t)
	m := &countingManager{}
	tk := NewTicker(l, []Manager{m}, WithTickLength(5*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() { done <- tk.Start(ctx) }()

	deadline := time.After(2 * time.Second)
	for {
		m.mu.Lock()
		n := m.ticks
		m.mu.Unlock()
		if n >= 3 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("only %d ticks observed", n)
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("ticker start: %v", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	testutil.AssertEqual(t, "dt", m.dt, 5*time.Millisecond)
}

func TestTicker_StopsWithLoop(t *testing.T) {
	l, cancelLoop := startLoop(t)
	cancelLoop()
	<-l.done

	tk := NewTicker(l, []Manager{&countingManager{}})
	err := tk.Tick(context.Background())
	if !errors.Is(err, ErrStopped) {
		t.Errorf("expected ErrStopped, got %v", err)
	}
}
