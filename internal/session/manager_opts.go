package session

import (
	"time"

	"github.com/pixil98/go-realm/internal/audit"
	"github.com/pixil98/go-realm/internal/chatcmd"
)

type ManagerOpt func(*Manager)

// WithRecorder sets where movement rejections are reported.
func WithRecorder(r audit.Recorder) ManagerOpt {
	return func(m *Manager) {
		m.recorder = r
	}
}

// WithChannels sets the channels a player is subscribed to on join.
func WithChannels(channels []string) ManagerOpt {
	return func(m *Manager) {
		m.channels = channels
	}
}

func WithCommands(h *chatcmd.Handler) ManagerOpt {
	return func(m *Manager) {
		m.commands = h
	}
}

func WithOutboundQueue(n int) ManagerOpt {
	return func(m *Manager) {
		if n > 0 {
			m.outboundQueue = n
		}
	}
}

// WithMaxFrame bounds the length of one inbound line.
func WithMaxFrame(n int) ManagerOpt {
	return func(m *Manager) {
		if n > 0 {
			m.maxFrame = n
		}
	}
}

func WithClock(now func() time.Time) ManagerOpt {
	return func(m *Manager) {
		m.now = now
	}
}

// WithSessionIDs replaces the session id generator.
func WithSessionIDs(f func() string) ManagerOpt {
	return func(m *Manager) {
		m.newID = f
	}
}
