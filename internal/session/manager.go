package session

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/pixil98/go-realm/internal/audit"
	"github.com/pixil98/go-realm/internal/auth"
	"github.com/pixil98/go-realm/internal/chat"
	"github.com/pixil98/go-realm/internal/chatcmd"
	"github.com/pixil98/go-realm/internal/driver"
	"github.com/pixil98/go-realm/internal/hub"
	"github.com/pixil98/go-realm/internal/movement"
	"github.com/pixil98/go-realm/internal/protocol"
	"github.com/pixil98/go-realm/internal/world"
)

const (
	DefaultOutboundQueue = 256
	DefaultMaxFrame      = 64 * 1024
)

// ChatBus is the chat transport a session talks to. Both chat.Client and
// chat.Local satisfy it.
type ChatBus interface {
	Publish(ctx context.Context, channel, playerID, text string) error
	Whisper(ctx context.Context, fromID, toID, text string) error
	CreateChannel(ctx context.Context, name, creatorID string) error
	Stream(ctx context.Context, playerID string, channels []string, fn func(chat.Message)) error
}

// NPCSource supplies the spawn packets a newly joined player catches up
// with. It is read on the driver loop.
type NPCSource interface {
	SpawnPackets() []*protocol.NPCState
}

type handlerFunc func(ctx context.Context, s *Session, pkt protocol.Packet) error

// Manager runs every connection's protocol state machine. Sessions, the
// world store and the hub are only touched from tasks on the driver loop.
type Manager struct {
	loop      *driver.Loop
	world     *world.Store
	hub       *hub.Hub
	validator *movement.Validator
	verifier  *auth.Verifier
	chat      ChatBus
	commands  *chatcmd.Handler
	npcs      NPCSource
	recorder  audit.Recorder

	channels      []string
	outboundQueue int
	maxFrame      int
	now           func() time.Time
	newID         func() string

	sessions map[string]*Session
	handlers map[protocol.Kind]handlerFunc
}

func NewManager(loop *driver.Loop, store *world.Store, h *hub.Hub, v *movement.Validator, verifier *auth.Verifier, bus ChatBus, opts ...ManagerOpt) *Manager {
	m := &Manager{
		loop:          loop,
		world:         store,
		hub:           h,
		validator:     v,
		verifier:      verifier,
		chat:          bus,
		commands:      chatcmd.NewHandler(),
		recorder:      audit.LogRecorder{},
		channels:      chat.DefaultChannels,
		outboundQueue: DefaultOutboundQueue,
		maxFrame:      DefaultMaxFrame,
		now:           time.Now,
		newID:         func() string { return uuid.New().String() },
		sessions:      map[string]*Session{},
	}

	for _, opt := range opts {
		opt(m)
	}

	m.handlers = map[protocol.Kind]handlerFunc{
		protocol.KindPing:             m.handlePing,
		protocol.KindPlayerJoin:       m.handleJoin,
		protocol.KindPlayerMove:       m.handleMove,
		protocol.KindChat:             m.handleChat,
		protocol.KindPlayerCorrection: m.handleCorrection,
	}
	for _, k := range []protocol.Kind{
		protocol.KindPong,
		protocol.KindWorldUpdate,
		protocol.KindPlayerIDAssigned,
		protocol.KindNPCSpawn,
		protocol.KindNPCUpdate,
		protocol.KindNPCDespawn,
		protocol.KindHandshakeChallenge,
	} {
		m.handlers[k] = m.handleServerOnly
	}

	return m
}

// SetNPCSource attaches the NPC engine once it exists. It must be called
// before the driver loop starts.
func (m *Manager) SetNPCSource(src NPCSource) {
	m.npcs = src
}

// AcceptConnection runs one connection until the peer goes away, the server
// closes it, or ctx is done. Cleanup runs on every exit path.
func (m *Manager) AcceptConnection(ctx context.Context, conn io.ReadWriteCloser) error {
	s := newSession(m.newID(), conn, m.outboundQueue)
	go s.writeLoop(ctx)

	nonce, err := auth.NewNonce()
	if err != nil {
		_ = s.Close()
		return err
	}

	err = m.loop.Do(ctx, func(ctx context.Context) { m.register(ctx, s, nonce) })
	if err != nil {
		_ = s.Close()
		return fmt.Errorf("registering session: %w", err)
	}
	defer m.disconnect(ctx, s)

	stop := context.AfterFunc(ctx, func() { _ = s.Close() })
	defer stop()

	return m.readLoop(ctx, s)
}

func (m *Manager) register(ctx context.Context, s *Session, nonce string) {
	m.sessions[s.id] = s
	m.hub.Add(s)
	s.nonce = nonce
	s.state = StateAwaitingAuth

	slog.InfoContext(ctx, "session connected", "session", s.id)
	m.sendTo(ctx, s, protocol.KindHandshakeChallenge, &protocol.HandshakeChallenge{Nonce: nonce})
}

func (m *Manager) readLoop(ctx context.Context, s *Session) error {
	scanner := bufio.NewScanner(s.conn)
	scanner.Buffer(make([]byte, 0, 4096), m.maxFrame)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}

		pkt, err := protocol.Decode(line)
		if errors.Is(err, protocol.ErrEmptyFrame) {
			return nil
		}
		if err != nil {
			slog.WarnContext(ctx, "dropping malformed packet", "session", s.id, "error", err)
			continue
		}

		if err := m.dispatch(ctx, s, pkt); err != nil {
			return err
		}
	}

	select {
	case <-s.Done():
		// Closed by the server; the read error only reports that.
		return nil
	default:
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading session %s: %w", s.id, err)
	}
	return nil
}

// dispatch routes a packet to its handler. A returned error ends the session;
// anything else a handler hits is logged and the session carries on.
func (m *Manager) dispatch(ctx context.Context, s *Session, pkt protocol.Packet) (err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "packet handler panicked", "session", s.id, "kind", pkt.Kind.String(), "panic", fmt.Sprint(r))
			err = nil
		}
	}()

	h, ok := m.handlers[pkt.Kind]
	if !ok {
		slog.WarnContext(ctx, "unknown packet", "session", s.id, "kind", int(pkt.Kind))
		return nil
	}
	return h(ctx, s, pkt)
}

// disconnect removes the session and tells everyone else the player left.
func (m *Manager) disconnect(ctx context.Context, s *Session) {
	_ = s.Close()

	err := m.loop.Do(context.WithoutCancel(ctx), func(ctx context.Context) {
		if m.purge(ctx, s.id) {
			m.broadcastWorld(ctx)
		}
	})
	if err != nil && !errors.Is(err, driver.ErrStopped) {
		slog.WarnContext(ctx, "cleaning up session", "session", s.id, "error", err)
	}
}

// purge forgets a session and the player it owned. It reports whether a
// player left the world. Runs on the loop.
func (m *Manager) purge(ctx context.Context, id string) bool {
	s, ok := m.sessions[id]
	if !ok {
		return false
	}
	delete(m.sessions, id)
	m.hub.Remove(id)
	_ = s.Close()

	s.state = StateDisconnected
	s.nonce = ""
	if s.stopChat != nil {
		s.stopChat()
		s.stopChat = nil
	}

	if s.playerID == "" {
		slog.InfoContext(ctx, "session disconnected", "session", id)
		return false
	}
	m.world.Leave(s.playerID)
	slog.InfoContext(ctx, "player left", "session", id, "player", s.playerID)
	return true
}

// sendTo delivers one packet to a single session. Runs on the loop.
func (m *Manager) sendTo(ctx context.Context, s *Session, kind protocol.Kind, payload any) {
	if !m.live(s) {
		return
	}
	frame, err := protocol.Encode(kind, payload)
	if err != nil {
		slog.ErrorContext(ctx, "encoding packet", "kind", kind.String(), "error", err)
		return
	}
	if err := m.hub.Send(s.id, frame); err != nil {
		slog.WarnContext(ctx, "dropping connection", "session", s.id, "error", err)
		if m.purge(ctx, s.id) {
			m.broadcastWorld(ctx)
		}
	}
}

// Broadcast sends one packet to every live connection. Runs on the loop.
func (m *Manager) Broadcast(ctx context.Context, kind protocol.Kind, payload any) {
	frame, err := protocol.Encode(kind, payload)
	if err != nil {
		slog.ErrorContext(ctx, "encoding packet", "kind", kind.String(), "error", err)
		return
	}
	m.broadcastFrame(ctx, frame)
}

// broadcastFrame fans a frame out and prunes connections that failed. The
// survivors get a single world update per sweep when a player was purged.
func (m *Manager) broadcastFrame(ctx context.Context, frame []byte) {
	dead := m.hub.Broadcast(frame)
	if len(dead) == 0 {
		return
	}

	left := false
	for _, id := range dead {
		slog.WarnContext(ctx, "dropping dead connection", "session", id)
		if m.purge(ctx, id) {
			left = true
		}
	}
	if left {
		m.broadcastWorld(ctx)
	}
}

func (m *Manager) broadcastWorld(ctx context.Context) {
	m.Broadcast(ctx, protocol.KindWorldUpdate, m.worldUpdate())
}

func (m *Manager) worldUpdate() *protocol.WorldUpdate {
	players := m.world.Players()
	out := &protocol.WorldUpdate{Players: make([]protocol.PlayerPosition, 0, len(players))}
	for _, p := range players {
		out.Players = append(out.Players, protocol.PlayerPosition{ID: p.ID, X: p.Pos.X, Y: p.Pos.Y, Z: p.Pos.Z})
	}
	return out
}
