package chat

import (
	"context"
	"sync"
)

type queue struct {
	channel string
	sub     *Subscription

	mu    sync.Mutex
	items []Message
}

func (q *queue) push(m Message) {
	q.mu.Lock()
	q.items = append(q.items, m)
	q.mu.Unlock()

	select {
	case q.sub.notify <- struct{}{}:
	default:
	}
}

func (q *queue) pop() (Message, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return Message{}, false
	}
	m := q.items[0]
	q.items[0] = Message{}
	q.items = q.items[1:]
	return m, true
}

// Subscription is one player's set of queues. Next waits on all of them at
// once; there is no ordering between channels.
type Subscription struct {
	bus      *Bus
	playerID string
	queues   []*queue

	next   int
	notify chan struct{}
	done   chan struct{}
	once   sync.Once
}

func (s *Subscription) PlayerID() string {
	return s.playerID
}

// Channels lists the channels this subscription holds queues on.
func (s *Subscription) Channels() []string {
	out := make([]string, len(s.queues))
	for i, q := range s.queues {
		out[i] = q.channel
	}
	return out
}

// Next blocks until any queue has a message, the subscription is closed or
// ctx is done. It must not be called concurrently.
func (s *Subscription) Next(ctx context.Context) (Message, error) {
	for {
		select {
		case <-s.done:
			return Message{}, ErrClosed
		default:
		}

		if m, ok := s.tryPop(); ok {
			return m, nil
		}

		select {
		case <-s.notify:
		case <-s.done:
			return Message{}, ErrClosed
		case <-ctx.Done():
			return Message{}, ctx.Err()
		}
	}
}

// tryPop scans the queues starting after the last one served so a busy
// channel cannot starve the others.
func (s *Subscription) tryPop() (Message, bool) {
	n := len(s.queues)
	for i := 0; i < n; i++ {
		idx := (s.next + i) % n
		if m, ok := s.queues[idx].pop(); ok {
			s.next = (idx + 1) % n
			return m, true
		}
	}
	return Message{}, false
}

// Close removes the subscription's queues from every channel and unblocks
// Next. It is safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.bus.unsubscribe(s)
		close(s.done)
	})
}
