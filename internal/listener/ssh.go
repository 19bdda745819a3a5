package listener

import (
	"context"
	"fmt"
	"log/slog"
	"net"

	"golang.org/x/crypto/ssh"
)

// SSHListener carries the line protocol over an ssh session channel. Client
// authentication is left to the in-band handshake.
type SSHListener struct {
	addr    string
	cm      *ConnectionManager
	hostKey ssh.Signer

	bound chan struct{}
	ln    net.Listener
}

func NewSSHListener(addr string, cm *ConnectionManager, hostKey ssh.Signer) *SSHListener {
	return &SSHListener{
		addr:    addr,
		cm:      cm,
		hostKey: hostKey,
		bound:   make(chan struct{}),
	}
}

func (l *SSHListener) Start(ctx context.Context) error {
	config := &ssh.ServerConfig{
		NoClientAuth: true,
	}
	config.AddHostKey(l.hostKey)

	ln, err := net.Listen("tcp", l.addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", l.addr, err)
	}
	l.ln = ln
	close(l.bound)

	slog.InfoContext(ctx, "listening for ssh", "addr", ln.Addr().String())
	return serve(ctx, ln, "ssh", func(ctx context.Context, conn net.Conn) {
		l.handleConnection(ctx, conn, config)
	})
}

// Addr waits for the socket to be bound and returns its address.
func (l *SSHListener) Addr(ctx context.Context) (net.Addr, error) {
	select {
	case <-l.bound:
		return l.ln.Addr(), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (l *SSHListener) handleConnection(ctx context.Context, conn net.Conn, config *ssh.ServerConfig) {
	defer func() { _ = conn.Close() }()

	sshConn, chans, reqs, err := ssh.NewServerConn(conn, config)
	if err != nil {
		slog.WarnContext(ctx, "ssh handshake", "remote", conn.RemoteAddr().String(), "error", err)
		return
	}
	defer func() { _ = sshConn.Close() }()

	// Closing the ssh connection ends the channel loop below.
	go func() {
		<-ctx.Done()
		_ = sshConn.Close()
	}()

	go ssh.DiscardRequests(reqs)

	for newChan := range chans {
		if newChan.ChannelType() != "session" {
			_ = newChan.Reject(ssh.UnknownChannelType, "unknown channel type")
			continue
		}

		ch, requests, err := newChan.Accept()
		if err != nil {
			slog.WarnContext(ctx, "accepting ssh channel", "error", err)
			continue
		}

		// Clients only forward input once the shell request is answered.
		shellReady := make(chan struct{})
		go func(in <-chan *ssh.Request) {
			for req := range in {
				switch req.Type {
				case "shell":
					_ = req.Reply(true, nil)
					close(shellReady)
				default:
					// No pty: the client keeps line buffering.
					_ = req.Reply(false, nil)
				}
			}
		}(requests)

		select {
		case <-shellReady:
		case <-ctx.Done():
			_ = ch.Close()
			continue
		}

		l.cm.AcceptConnection(ctx, ch)
	}
}
