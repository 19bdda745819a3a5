package listener

import (
	"bufio"
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"io"
	"net"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pixil98/go-testutil"
	"golang.org/x/crypto/ssh"
)

// echoAcceptor writes every line it reads back with an "echo:" prefix.
type echoAcceptor struct {
	active atomic.Int32
	peak   atomic.Int32
}

func (a *echoAcceptor) AcceptConnection(ctx context.Context, conn io.ReadWriteCloser) error {
	n := a.active.Add(1)
	defer a.active.Add(-1)
	for {
		p := a.peak.Load()
		if n <= p || a.peak.CompareAndSwap(p, n) {
			break
		}
	}

	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		if _, err := conn.Write([]byte("echo:" + scanner.Text() + "\n")); err != nil {
			return err
		}
	}
	return scanner.Err()
}

func TestTCPListener_RoundTrip(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	l := NewTCPListener("127.0.0.1:0", NewConnectionManager(&echoAcceptor{}, 4))
	done := make(chan error, 1)
	go func() { done <- l.Start(ctx) }()

	addrCtx, addrCancel := context.WithTimeout(ctx, 2*time.Second)
	defer addrCancel()
	addr, err := l.Addr(addrCtx)
	if err != nil {
		t.Fatalf("waiting for bind: %v", err)
	}

	conn, err := net.Dial("tcp", addr.String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer func() { _ = conn.Close() }()

	_, err = conn.Write([]byte("{\"id\":8,\"data\":{}}\n"))
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	line, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	testutil.AssertEqual(t, "echo", line, "echo:{\"id\":8,\"data\":{}}\n")

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Start: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("listener did not stop")
	}
}

func TestConnectionManager_Cap(t *testing.T) {
	acceptor := &echoAcceptor{}
	cm := NewConnectionManager(acceptor, 1)
	ctx := context.Background()

	var wg sync.WaitGroup
	var clients []net.Conn
	for range 3 {
		server, client := net.Pipe()
		clients = append(clients, client)
		wg.Add(1)
		go func() {
			defer wg.Done()
			cm.AcceptConnection(ctx, server)
		}()
	}

	// Only one connection is served at a time; the others wait for the slot.
	results := make(chan string, len(clients))
	for _, c := range clients {
		go func() {
			defer func() { _ = c.Close() }()
			_ = c.SetDeadline(time.Now().Add(5 * time.Second))
			if _, err := c.Write([]byte("hi\n")); err != nil {
				results <- err.Error()
				return
			}
			line, err := bufio.NewReader(c).ReadString('\n')
			if err != nil {
				results <- err.Error()
				return
			}
			results <- line
		}()
	}
	for range clients {
		testutil.AssertEqual(t, "echo", <-results, "echo:hi\n")
	}

	wg.Wait()
	cm.Wait()
	testutil.AssertEqual(t, "peak", acceptor.peak.Load(), int32(1))
}

func TestConnectionManager_CancelledWhileWaiting(t *testing.T) {
	cm := NewConnectionManager(&echoAcceptor{}, 1)

	busyServer, busyClient := net.Pipe()
	defer func() { _ = busyClient.Close() }()
	go cm.AcceptConnection(context.Background(), busyServer)

	// Wait for the busy connection to hold the only slot.
	_ = busyClient.SetDeadline(time.Now().Add(2 * time.Second))
	if _, err := busyClient.Write([]byte("x\n")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := bufio.NewReader(busyClient).ReadString('\n'); err != nil {
		t.Fatalf("read: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	server, client := net.Pipe()
	returned := make(chan struct{})
	go func() {
		cm.AcceptConnection(ctx, server)
		close(returned)
	}()
	cancel()

	select {
	case <-returned:
	case <-time.After(2 * time.Second):
		t.Fatal("waiting connection was not released")
	}

	// The waiting connection was closed without being served.
	_ = client.SetReadDeadline(time.Now().Add(time.Second))
	_, err := client.Read(make([]byte, 1))
	if !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrClosedPipe) {
		t.Fatalf("expected closed pipe, got %v", err)
	}
}

func TestWebSocketListener_Frames(t *testing.T) {
	l := NewWebSocketListener("127.0.0.1:0", NewConnectionManager(&echoAcceptor{}, 4), WithReadLimit(1024))
	srv := httptest.NewServer(l.Handler())
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer func() { _ = ws.Close() }()

	tests := []string{
		`{"id":8,"data":{}}`,
		`{"id":5,"data":{"message":"hi"}}`,
	}
	for _, msg := range tests {
		if err := ws.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	for _, msg := range tests {
		_ = ws.SetReadDeadline(time.Now().Add(2 * time.Second))
		typ, got, err := ws.ReadMessage()
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		testutil.AssertEqual(t, "type", typ, websocket.TextMessage)
		testutil.AssertEqual(t, "message", string(got), "echo:"+msg)
	}

	// Oversized messages end the connection.
	if err := ws.WriteMessage(websocket.TextMessage, []byte(strings.Repeat("a", 2048))); err != nil {
		t.Fatalf("write: %v", err)
	}
	_ = ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err = ws.ReadMessage()
	if err == nil {
		t.Fatal("expected connection to close")
	}
}

func TestSSHListener_RoundTrip(t *testing.T) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generating key: %v", err)
	}
	signer, err := ssh.NewSignerFromKey(priv)
	if err != nil {
		t.Fatalf("signer: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	l := NewSSHListener("127.0.0.1:0", NewConnectionManager(&echoAcceptor{}, 4), signer)
	done := make(chan error, 1)
	go func() { done <- l.Start(ctx) }()

	addrCtx, addrCancel := context.WithTimeout(ctx, 2*time.Second)
	defer addrCancel()
	addr, err := l.Addr(addrCtx)
	if err != nil {
		t.Fatalf("waiting for bind: %v", err)
	}

	client, err := ssh.Dial("tcp", addr.String(), &ssh.ClientConfig{
		User:            "player",
		HostKeyCallback: ssh.FixedHostKey(signer.PublicKey()),
		Timeout:         2 * time.Second,
	})
	if err != nil {
		t.Fatalf("ssh dial: %v", err)
	}
	defer func() { _ = client.Close() }()

	sess, err := client.NewSession()
	if err != nil {
		t.Fatalf("session: %v", err)
	}
	stdin, err := sess.StdinPipe()
	if err != nil {
		t.Fatalf("stdin: %v", err)
	}
	stdout, err := sess.StdoutPipe()
	if err != nil {
		t.Fatalf("stdout: %v", err)
	}
	if err := sess.Shell(); err != nil {
		t.Fatalf("shell: %v", err)
	}

	if _, err := stdin.Write([]byte("{\"id\":8,\"data\":{}}\n")); err != nil {
		t.Fatalf("write: %v", err)
	}

	lines := make(chan string, 1)
	go func() {
		line, _ := bufio.NewReader(stdout).ReadString('\n')
		lines <- line
	}()
	select {
	case line := <-lines:
		testutil.AssertEqual(t, "echo", line, "echo:{\"id\":8,\"data\":{}}\n")
	case <-time.After(2 * time.Second):
		t.Fatal("no echo over ssh")
	}

	_ = sess.Close()
	_ = client.Close()
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Start: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("listener did not stop")
	}
}
