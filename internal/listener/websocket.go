package listener

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	DefaultWebSocketPath = "/ws"
	wsWriteTimeout       = 5 * time.Second
)

// WebSocketListener serves the protocol with one JSON packet per text
// message.
type WebSocketListener struct {
	addr     string
	path     string
	cm       *ConnectionManager
	upgrader websocket.Upgrader
	readMax  int64

	bound chan struct{}
	ln    net.Listener

	connCtx context.Context
	wg      sync.WaitGroup
}

type WebSocketOpt func(*WebSocketListener)

func WithPath(path string) WebSocketOpt {
	return func(l *WebSocketListener) {
		if path != "" {
			l.path = path
		}
	}
}

// WithReadLimit caps the size of a single inbound message.
func WithReadLimit(n int64) WebSocketOpt {
	return func(l *WebSocketListener) {
		l.readMax = n
	}
}

func NewWebSocketListener(addr string, cm *ConnectionManager, opts ...WebSocketOpt) *WebSocketListener {
	l := &WebSocketListener{
		addr: addr,
		path: DefaultWebSocketPath,
		cm:   cm,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		readMax: 64 * 1024,
		bound:   make(chan struct{}),
		connCtx: context.Background(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *WebSocketListener) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", l.addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", l.addr, err)
	}
	l.ln = ln

	connCtx, cancelConns := context.WithCancel(context.WithoutCancel(ctx))
	l.connCtx = connCtx
	close(l.bound)

	mux := http.NewServeMux()
	mux.Handle(l.path, l.Handler())
	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	slog.InfoContext(ctx, "listening for websocket", "addr", ln.Addr().String(), "path", l.path)
	err = srv.Serve(ln)

	// Upgraded connections are hijacked, so Shutdown does not wait for them.
	cancelConns()
	l.wg.Wait()

	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return fmt.Errorf("websocket listener: %w", err)
}

// Addr waits for the socket to be bound and returns its address.
func (l *WebSocketListener) Addr(ctx context.Context) (net.Addr, error) {
	select {
	case <-l.bound:
		return l.ln.Addr(), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Handler upgrades requests and runs each as a connection.
func (l *WebSocketListener) Handler() http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		ws, err := l.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			slog.WarnContext(r.Context(), "websocket upgrade", "remote", r.RemoteAddr, "error", err)
			return
		}
		ws.SetReadLimit(l.readMax)

		l.wg.Add(1)
		defer l.wg.Done()

		slog.DebugContext(l.connCtx, "connection accepted", "listener", "websocket", "remote", r.RemoteAddr)
		l.cm.AcceptConnection(l.connCtx, newWSConn(ws))
	})
}

// wsConn presents a websocket as a newline-delimited stream. Each inbound
// text message becomes one line; each Write goes out as one text message.
type wsConn struct {
	ws *websocket.Conn

	rmu sync.Mutex
	r   io.Reader

	wmu sync.Mutex

	closeOnce sync.Once
	closeErr  error
}

func newWSConn(ws *websocket.Conn) *wsConn {
	return &wsConn{ws: ws}
}

func (c *wsConn) Read(p []byte) (int, error) {
	c.rmu.Lock()
	defer c.rmu.Unlock()

	for {
		if c.r == nil {
			typ, r, err := c.ws.NextReader()
			if err != nil {
				return 0, readErr(err)
			}
			if typ != websocket.TextMessage {
				// Drain binary frames.
				_, _ = io.Copy(io.Discard, r)
				continue
			}
			c.r = io.MultiReader(r, bytes.NewReader([]byte{'\n'}))
		}

		n, err := c.r.Read(p)
		if errors.Is(err, io.EOF) {
			c.r = nil
			if n > 0 {
				return n, nil
			}
			continue
		}
		if err != nil {
			return n, readErr(err)
		}
		return n, nil
	}
}

func (c *wsConn) Write(p []byte) (int, error) {
	c.wmu.Lock()
	defer c.wmu.Unlock()

	msg := bytes.TrimRight(p, "\r\n")
	_ = c.ws.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (c *wsConn) Close() error {
	c.closeOnce.Do(func() {
		c.wmu.Lock()
		_ = c.ws.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		c.wmu.Unlock()
		c.closeErr = c.ws.Close()
	})
	return c.closeErr
}

// readErr reports an orderly close as end of stream.
func readErr(err error) error {
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
		return io.EOF
	}
	return err
}
