package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/pixil98/go-realm/internal/hub"
)

var ErrClosed = errors.New("session closed")

// State is the handshake progress of a connection.
type State int

const (
	StateConnected State = iota
	StateAwaitingAuth
	StateAuthenticated
	StateDisconnected
)

func (s State) String() string {
	switch s {
	case StateConnected:
		return "connected"
	case StateAwaitingAuth:
		return "awaiting_auth"
	case StateAuthenticated:
		return "authenticated"
	case StateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// Session is one live connection. Outbound frames are queued and written by a
// dedicated goroutine so a slow peer never stalls the driver loop.
type Session struct {
	id   string
	conn io.ReadWriteCloser

	mu     sync.Mutex
	closed bool
	out    chan []byte
	done   chan struct{}

	// Owned by the driver loop.
	state    State
	nonce    string
	playerID string
	lastMove time.Time
	stopChat context.CancelFunc
}

func newSession(id string, conn io.ReadWriteCloser, queueSize int) *Session {
	return &Session{
		id:    id,
		conn:  conn,
		out:   make(chan []byte, queueSize),
		done:  make(chan struct{}),
		state: StateConnected,
	}
}

func (s *Session) ID() string {
	return s.id
}

// Send queues a frame without blocking. A full queue reports
// hub.ErrSlowConsumer.
func (s *Session) Send(frame []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	select {
	case s.out <- frame:
		return nil
	default:
		return hub.ErrSlowConsumer
	}
}

// Close stops the writer and closes the underlying connection, which also
// unblocks the reader. Frames still queued are discarded.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.out)
	close(s.done)
	s.mu.Unlock()

	return s.conn.Close()
}

// Done is closed once the session is closed.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

func (s *Session) writeLoop(ctx context.Context) {
	for frame := range s.out {
		if _, err := s.conn.Write(frame); err != nil {
			slog.DebugContext(ctx, "writing frame", "session", s.id, "error", err)
			_ = s.Close()
			for range s.out {
			}
			return
		}
	}
}
