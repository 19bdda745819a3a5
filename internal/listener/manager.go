package listener

import (
	"context"
	"io"
	"log/slog"

	"github.com/remeh/sizedwaitgroup"
)

const DefaultMaxConnections = 1024

// Acceptor runs one connection until it ends.
type Acceptor interface {
	AcceptConnection(ctx context.Context, conn io.ReadWriteCloser) error
}

// ConnectionManager hands accepted connections to the session layer and
// bounds how many run at once.
type ConnectionManager struct {
	acceptor Acceptor
	slots    sizedwaitgroup.SizedWaitGroup
}

func NewConnectionManager(a Acceptor, maxConnections int) *ConnectionManager {
	if maxConnections <= 0 {
		maxConnections = DefaultMaxConnections
	}
	return &ConnectionManager{
		acceptor: a,
		slots:    sizedwaitgroup.New(maxConnections),
	}
}

// AcceptConnection waits for a free slot and then runs the connection. The
// connection is closed when it returns or ctx is done.
func (m *ConnectionManager) AcceptConnection(ctx context.Context, conn io.ReadWriteCloser) {
	defer func() { _ = conn.Close() }()
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	if err := m.slots.AddWithContext(ctx); err != nil {
		return
	}
	defer m.slots.Done()

	if err := m.acceptor.AcceptConnection(ctx, conn); err != nil {
		slog.InfoContext(ctx, "session ended", "error", err)
	}
}

// Wait blocks until every running connection has returned.
func (m *ConnectionManager) Wait() {
	m.slots.Wait()
}
