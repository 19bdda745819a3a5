package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/pixil98/go-realm/internal/audit"
	"github.com/pixil98/go-realm/internal/auth"
	"github.com/pixil98/go-realm/internal/chat"
	"github.com/pixil98/go-realm/internal/chatcmd"
	"github.com/pixil98/go-realm/internal/geom"
	"github.com/pixil98/go-realm/internal/protocol"
)

const defaultChatChannel = "global"

// ErrProtocolAbuse ends a session that sent a packet only the server may send.
var ErrProtocolAbuse = errors.New("client sent a server-only packet")

// live reports whether s is still registered. Runs on the loop.
func (m *Manager) live(s *Session) bool {
	_, ok := m.sessions[s.id]
	return ok
}

// authenticated returns the player id of s, or "" before a successful join.
// Runs on the loop.
func (m *Manager) authenticated(s *Session) string {
	if !m.live(s) || s.state != StateAuthenticated {
		return ""
	}
	return s.playerID
}

func (m *Manager) handlePing(ctx context.Context, s *Session, _ protocol.Packet) error {
	return m.loop.Do(ctx, func(ctx context.Context) {
		m.sendTo(ctx, s, protocol.KindPong, &protocol.Pong{Msg: "pong"})
	})
}

// handleJoin checks the handshake proof and places the player in the world.
// Every attempt before auth consumes the nonce; a failed proof ends the
// session. Joins on an authenticated session are ignored.
func (m *Manager) handleJoin(sessCtx context.Context, s *Session, pkt protocol.Packet) error {
	join := pkt.Data.(*protocol.PlayerJoin)

	var joinErr error
	err := m.loop.Do(sessCtx, func(ctx context.Context) {
		if !m.live(s) {
			joinErr = ErrClosed
			return
		}
		if s.state == StateAuthenticated {
			slog.WarnContext(ctx, "ignoring join on authenticated session", "session", s.id, "player", s.playerID)
			return
		}

		nonce := s.nonce
		s.nonce = ""
		proof := auth.Proof{PreferredID: join.PreferredID, TS: join.TS, HMAC: join.HMAC}
		if err := m.verifier.Verify(nonce, proof); err != nil {
			var authErr *auth.Error
			if errors.As(err, &authErr) {
				slog.WarnContext(ctx, "handshake rejected", "session", s.id, "reason", string(authErr.Reason))
			}
			joinErr = err
			return
		}

		p, err := m.world.Join(join.PreferredID, join.Nickname)
		if err != nil {
			joinErr = fmt.Errorf("joining world: %w", err)
			return
		}
		s.playerID = p.ID
		s.state = StateAuthenticated
		s.lastMove = m.now()

		slog.InfoContext(ctx, "player joined", "session", s.id, "player", p.ID, "nickname", p.Nickname, "spawn", p.SpawnIndex)
		m.sendTo(ctx, s, protocol.KindPlayerIDAssigned, &protocol.PlayerIDAssigned{AssignedID: p.ID, SpawnIndex: p.SpawnIndex})
		m.broadcastWorld(ctx)
		if m.npcs != nil {
			for _, st := range m.npcs.SpawnPackets() {
				m.sendTo(ctx, s, protocol.KindNPCSpawn, st)
			}
		}

		// Any send above may have pruned this session; purge already ran.
		if !m.live(s) {
			return
		}

		chatCtx, cancel := context.WithCancel(sessCtx)
		s.stopChat = cancel
		go m.streamChat(chatCtx, s, p.ID)
	})
	if err != nil {
		return err
	}
	return joinErr
}

// streamChat forwards the player's chat subscription to the connection until
// the session ends.
func (m *Manager) streamChat(ctx context.Context, s *Session, playerID string) {
	err := m.chat.Stream(ctx, playerID, m.channels, func(msg chat.Message) {
		frame, err := protocol.Encode(protocol.KindChat, &protocol.Chat{
			Channel:   msg.Channel,
			PlayerID:  msg.PlayerID,
			Text:      msg.Text,
			Timestamp: msg.Timestamp,
		})
		if err != nil {
			slog.ErrorContext(ctx, "encoding chat", "player", playerID, "error", err)
			return
		}
		if err := s.Send(frame); err != nil {
			slog.DebugContext(ctx, "delivering chat", "player", playerID, "error", err)
		}
	})
	if err != nil && ctx.Err() == nil {
		slog.WarnContext(ctx, "chat stream ended", "session", s.id, "player", playerID, "error", err)
	}
}

// handleMove validates a proposed position. Rejections are answered with a
// correction and never end the session.
func (m *Manager) handleMove(ctx context.Context, s *Session, pkt protocol.Packet) error {
	mv := pkt.Data.(*protocol.PlayerMove)
	proposed := geom.Vec3{X: mv.X, Y: mv.Y, Z: mv.Z}

	return m.loop.Do(ctx, func(ctx context.Context) {
		id := m.authenticated(s)
		if id == "" {
			slog.DebugContext(ctx, "ignoring move before join", "session", s.id)
			return
		}
		p, ok := m.world.Player(id)
		if !ok {
			return
		}

		now := m.now()
		d := m.validator.Validate(p.Pos, proposed, now.Sub(s.lastMove))
		if !d.Accepted {
			m.recorder.Record(ctx, audit.Rejection{
				Time:       now,
				PlayerID:   id,
				Reason:     string(d.Reason),
				From:       p.Pos,
				Proposed:   proposed,
				Correction: d.Correction,
				Measured:   d.Measured,
			})
			m.sendTo(ctx, s, protocol.KindPlayerCorrection, &protocol.PlayerCorrection{
				X: d.Correction.X,
				Y: d.Correction.Y,
				Z: d.Correction.Z,
			})
			return
		}

		if err := m.world.Move(id, proposed); err != nil {
			slog.ErrorContext(ctx, "committing move", "player", id, "error", err)
			return
		}
		s.lastMove = now
		m.broadcastWorld(ctx)
	})
}

// handleChat runs slash commands and publishes everything else. Mistakes the
// player can fix come back as system notices.
func (m *Manager) handleChat(ctx context.Context, s *Session, pkt protocol.Packet) error {
	msg := pkt.Data.(*protocol.Chat)

	var playerID string
	if err := m.loop.Do(ctx, func(context.Context) { playerID = m.authenticated(s) }); err != nil {
		return err
	}
	if playerID == "" {
		slog.DebugContext(ctx, "ignoring chat before join", "session", s.id)
		return nil
	}

	env := &playerEnv{m: m, s: s, playerID: playerID}
	handled, err := m.commands.Handle(ctx, env, msg.Text)
	if !handled {
		channel := msg.Channel
		if channel == "" {
			channel = defaultChatChannel
		}
		err = m.chat.Publish(ctx, channel, playerID, msg.Text)
		if errors.Is(err, chat.ErrUnknownChannel) {
			err = chatcmd.UnknownChannel(channel)
		}
	}

	var userErr *chatcmd.UserError
	if errors.As(err, &userErr) {
		if err := env.Notify(ctx, userErr.Message); err != nil {
			slog.DebugContext(ctx, "sending notice", "session", s.id, "error", err)
		}
		return nil
	}
	if err != nil {
		slog.WarnContext(ctx, "handling chat", "session", s.id, "player", playerID, "error", err)
	}
	return nil
}

// handleCorrection ends an authenticated session that tries to send a
// correction. Before the join it is ignored like any other early packet.
func (m *Manager) handleCorrection(ctx context.Context, s *Session, _ protocol.Packet) error {
	var playerID string
	if err := m.loop.Do(ctx, func(context.Context) { playerID = m.authenticated(s) }); err != nil {
		return err
	}
	if playerID == "" {
		slog.DebugContext(ctx, "ignoring correction before join", "session", s.id)
		return nil
	}

	slog.WarnContext(ctx, "client sent correction, disconnecting", "session", s.id, "player", playerID)
	return fmt.Errorf("%s: %w", protocol.KindPlayerCorrection, ErrProtocolAbuse)
}

func (m *Manager) handleServerOnly(ctx context.Context, s *Session, pkt protocol.Packet) error {
	slog.DebugContext(ctx, "ignoring server-only packet", "session", s.id, "kind", pkt.Kind.String())
	return nil
}

// playerEnv gives chat commands access to one player's session.
type playerEnv struct {
	m        *Manager
	s        *Session
	playerID string
}

func (e *playerEnv) PlayerID() string {
	return e.playerID
}

func (e *playerEnv) Rename(ctx context.Context, nick string) error {
	var err error
	if derr := e.m.loop.Do(ctx, func(context.Context) { err = e.m.world.Rename(e.playerID, nick) }); derr != nil {
		return derr
	}
	return err
}

func (e *playerEnv) LookupNickname(ctx context.Context, nick string) (string, bool) {
	var (
		id string
		ok bool
	)
	if err := e.m.loop.Do(ctx, func(context.Context) { id, ok = e.m.world.IDForNickname(nick) }); err != nil {
		return "", false
	}
	return id, ok
}

func (e *playerEnv) Whisper(ctx context.Context, toID, text string) error {
	return e.m.chat.Whisper(ctx, e.playerID, toID, text)
}

func (e *playerEnv) CreateChannel(ctx context.Context, name string) error {
	return e.m.chat.CreateChannel(ctx, name, e.playerID)
}

// Notify sends a system line to this connection only.
func (e *playerEnv) Notify(_ context.Context, text string) error {
	frame, err := protocol.Encode(protocol.KindChat, &protocol.Chat{
		Channel:   chat.ChannelSystem,
		Text:      text,
		Timestamp: e.m.now().Unix(),
	})
	if err != nil {
		return err
	}
	return e.s.Send(frame)
}

var _ chatcmd.Env = (*playerEnv)(nil)
