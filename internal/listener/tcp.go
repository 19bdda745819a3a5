package listener

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
)

// TCPListener serves the line protocol on a raw TCP socket.
type TCPListener struct {
	addr string
	cm   *ConnectionManager

	bound chan struct{}
	ln    net.Listener
}

func NewTCPListener(addr string, cm *ConnectionManager) *TCPListener {
	return &TCPListener{
		addr:  addr,
		cm:    cm,
		bound: make(chan struct{}),
	}
}

func (l *TCPListener) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", l.addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", l.addr, err)
	}
	l.ln = ln
	close(l.bound)

	slog.InfoContext(ctx, "listening for tcp", "addr", ln.Addr().String())
	return serve(ctx, ln, "tcp", func(ctx context.Context, conn net.Conn) {
		l.cm.AcceptConnection(ctx, conn)
	})
}

// Addr waits for the socket to be bound and returns its address.
func (l *TCPListener) Addr(ctx context.Context) (net.Addr, error) {
	select {
	case <-l.bound:
		return l.ln.Addr(), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// serve accepts connections until ctx is done, running handle for each on
// its own goroutine. Connections get a context that is cancelled only after
// the listener has stopped accepting, and serve waits for them to return.
func serve(ctx context.Context, ln net.Listener, kind string, handle func(context.Context, net.Conn)) error {
	connCtx, cancelConns := context.WithCancel(context.WithoutCancel(ctx))
	var wg sync.WaitGroup

	// Close the listener when the parent context is canceled
	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				cancelConns()
				wg.Wait()
				return nil
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				cancelConns()
				wg.Wait()
				return fmt.Errorf("%s listener closed: %w", kind, err)
			}
			slog.ErrorContext(ctx, "accepting connection", "listener", kind, "error", err)
			continue
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			slog.DebugContext(connCtx, "connection accepted", "listener", kind, "remote", conn.RemoteAddr().String())
			handle(connCtx, conn)
		}()
	}
}
