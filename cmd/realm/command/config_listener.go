package command

import (
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/pixil98/go-errors"
	"github.com/pixil98/go-service"
	"golang.org/x/crypto/ssh"

	"github.com/pixil98/go-realm/internal/listener"
)

type ListenerType int

const (
	ListenerTypeTCP ListenerType = iota
	ListenerTypeSSH
	ListenerTypeWebSocket
)

func (lt ListenerType) String() string {
	switch lt {
	case ListenerTypeTCP:
		return "tcp"
	case ListenerTypeSSH:
		return "ssh"
	case ListenerTypeWebSocket:
		return "websocket"
	default:
		return fmt.Sprintf("ListenerType(%d)", int(lt))
	}
}

func (lt *ListenerType) UnmarshalText(text []byte) error {
	switch string(text) {
	case "tcp":
		*lt = ListenerTypeTCP
	case "ssh":
		*lt = ListenerTypeSSH
	case "websocket", "ws":
		*lt = ListenerTypeWebSocket
	default:
		return fmt.Errorf("unknown listener type: %s", text)
	}
	return nil
}

type ListenerConfig struct {
	Protocol       ListenerType `json:"protocol"`
	Host           string       `json:"host,omitempty"`
	Port           uint16       `json:"port"`
	HostKeyPath    string       `json:"host_key_path,omitempty"`
	Path           string       `json:"path,omitempty"`
	MaxConnections int          `json:"max_connections,omitempty"`
}

func (cl *ListenerConfig) validate() error {
	el := errors.NewErrorList()

	if cl.Port == 0 {
		el.Add(fmt.Errorf("port must be set to a positive integer"))
	}
	if cl.MaxConnections < 0 {
		el.Add(fmt.Errorf("max_connections must not be negative"))
	}
	if cl.Path != "" {
		if cl.Protocol != ListenerTypeWebSocket {
			el.Add(fmt.Errorf("path only applies to websocket listeners"))
		} else if !strings.HasPrefix(cl.Path, "/") {
			el.Add(fmt.Errorf("path must start with /"))
		}
	}
	if cl.HostKeyPath != "" && cl.Protocol != ListenerTypeSSH {
		el.Add(fmt.Errorf("host_key_path only applies to ssh listeners"))
	}

	return el.Err()
}

func (cl *ListenerConfig) addr() string {
	return net.JoinHostPort(cl.Host, strconv.Itoa(int(cl.Port)))
}

// BuildListener creates the listener worker. maxFrame caps websocket message
// size and is ignored when zero.
func (cl *ListenerConfig) BuildListener(a listener.Acceptor, maxFrame int) (service.Worker, error) {
	cm := listener.NewConnectionManager(a, cl.MaxConnections)

	switch cl.Protocol {
	case ListenerTypeTCP:
		return listener.NewTCPListener(cl.addr(), cm), nil
	case ListenerTypeSSH:
		hostKey, err := cl.loadOrGenerateHostKey()
		if err != nil {
			return nil, fmt.Errorf("setting up ssh host key: %w", err)
		}
		return listener.NewSSHListener(cl.addr(), cm, hostKey), nil
	case ListenerTypeWebSocket:
		opts := []listener.WebSocketOpt{listener.WithPath(cl.Path)}
		if maxFrame > 0 {
			opts = append(opts, listener.WithReadLimit(int64(maxFrame)))
		}
		return listener.NewWebSocketListener(cl.addr(), cm, opts...), nil
	default:
		return nil, fmt.Errorf("unknown listener type: %v", cl.Protocol)
	}
}

func (cl *ListenerConfig) loadOrGenerateHostKey() (ssh.Signer, error) {
	if cl.HostKeyPath != "" {
		keyBytes, err := os.ReadFile(cl.HostKeyPath)
		if err != nil {
			return nil, fmt.Errorf("reading host key %q: %w", cl.HostKeyPath, err)
		}
		signer, err := ssh.ParsePrivateKey(keyBytes)
		if err != nil {
			return nil, fmt.Errorf("parsing host key %q: %w", cl.HostKeyPath, err)
		}
		return signer, nil
	}

	slog.Warn("no host_key_path configured for ssh listener, generating ephemeral key", "port", cl.Port)
	_, privKey, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generating ephemeral key: %w", err)
	}
	return ssh.NewSignerFromKey(privKey)
}
