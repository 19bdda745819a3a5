package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/pixil98/go-realm/internal/messaging"
)

const (
	SubjectPublish     = "chat.publish"
	SubjectWhisper     = "chat.whisper"
	SubjectCreate      = "chat.create"
	SubjectSubscribe   = "chat.subscribe"
	SubjectUnsubscribe = "chat.unsubscribe"
	subjectStreamFmt   = "chat.stream.%s"
)

var errorCodes = map[string]error{
	"unknown_channel": ErrUnknownChannel,
	"not_online":      ErrNotOnline,
	"already_exists":  ErrAlreadyExists,
}

// StreamSubject is where messages for one player are published.
func StreamSubject(playerID string) string {
	return fmt.Sprintf(subjectStreamFmt, playerID)
}

type publishRequest struct {
	Channel  string `json:"channel"`
	PlayerID string `json:"playerId"`
	Text     string `json:"text"`
}

type whisperRequest struct {
	FromPlayerID string `json:"fromPlayerId"`
	ToPlayerID   string `json:"toPlayerId"`
	Text         string `json:"text"`
}

type createRequest struct {
	Name      string `json:"name"`
	CreatorID string `json:"creatorId"`
}

type streamRequest struct {
	PlayerID string   `json:"playerId"`
	Channels []string `json:"channels,omitempty"`
	Token    string   `json:"token,omitempty"`
}

// stream is one forwarded subscription. The token is handed to the
// subscriber and must accompany its unsubscribe.
type stream struct {
	sub   *Subscription
	token string
}

// Service exposes a Bus over NATS request/reply and forwards each
// subscriber's messages to its stream subject.
type Service struct {
	bus       *Bus
	connector messaging.Connector

	mu      sync.Mutex
	streams map[string]stream
	wg      sync.WaitGroup
}

func NewService(bus *Bus, connector messaging.Connector) *Service {
	return &Service{
		bus:       bus,
		connector: connector,
		streams:   map[string]stream{},
	}
}

func (s *Service) Start(ctx context.Context) error {
	conn, err := s.connector.Conn(ctx)
	if err != nil {
		return fmt.Errorf("connecting chat service: %w", err)
	}

	handlers := map[string]nats.MsgHandler{
		SubjectPublish:     s.handle(ctx, s.publish),
		SubjectWhisper:     s.handle(ctx, s.whisper),
		SubjectCreate:      s.handle(ctx, s.create),
		SubjectSubscribe:   s.handle(ctx, s.subscribe(ctx, conn)),
		SubjectUnsubscribe: s.handle(ctx, s.unsubscribe),
	}

	var subs []*nats.Subscription
	defer func() {
		for _, sub := range subs {
			_ = sub.Unsubscribe()
		}
	}()
	for subject, h := range handlers {
		sub, err := conn.Subscribe(subject, h)
		if err != nil {
			return fmt.Errorf("subscribing %s: %w", subject, err)
		}
		subs = append(subs, sub)
	}

	slog.InfoContext(ctx, "chat service ready", "channels", s.bus.Channels())

	<-ctx.Done()
	s.closeStreams()
	s.wg.Wait()
	return nil
}

func (s *Service) handle(ctx context.Context, fn func(data []byte) (string, error)) nats.MsgHandler {
	return func(msg *nats.Msg) {
		ack := messaging.Ack{Success: true}
		id, err := fn(msg.Data)
		if err != nil {
			slog.DebugContext(ctx, "chat request failed", "subject", msg.Subject, "error", err)
			ack = messaging.Fail(err, errorCodes)
		}
		ack.ID = id
		if err := messaging.Reply(msg, ack); err != nil {
			slog.WarnContext(ctx, "replying to chat request", "subject", msg.Subject, "error", err)
		}
	}
}

func (s *Service) publish(data []byte) (string, error) {
	var req publishRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return "", fmt.Errorf("decoding publish: %w", err)
	}
	return "", s.bus.Publish(req.Channel, Message{PlayerID: req.PlayerID, Text: req.Text})
}

func (s *Service) whisper(data []byte) (string, error) {
	var req whisperRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return "", fmt.Errorf("decoding whisper: %w", err)
	}
	return "", s.bus.Whisper(req.ToPlayerID, Message{PlayerID: req.FromPlayerID, Text: req.Text})
}

func (s *Service) create(data []byte) (string, error) {
	var req createRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return "", fmt.Errorf("decoding create: %w", err)
	}
	return req.Name, s.bus.CreateChannel(req.Name)
}

func (s *Service) subscribe(ctx context.Context, conn *nats.Conn) func([]byte) (string, error) {
	return func(data []byte) (string, error) {
		var req streamRequest
		if err := json.Unmarshal(data, &req); err != nil {
			return "", fmt.Errorf("decoding subscribe: %w", err)
		}
		if req.PlayerID == "" {
			return "", errors.New("playerId is required")
		}

		sub := s.bus.Subscribe(req.PlayerID, req.Channels)
		token := uuid.New().String()

		s.mu.Lock()
		if prev, ok := s.streams[req.PlayerID]; ok {
			prev.sub.Close()
		}
		s.streams[req.PlayerID] = stream{sub: sub, token: token}
		s.mu.Unlock()

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.forward(ctx, conn, sub)
		}()
		return token, nil
	}
}

// unsubscribe ends the player's stream only if the token names it. A stale
// token from a replaced stream is ignored.
func (s *Service) unsubscribe(data []byte) (string, error) {
	var req streamRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return "", fmt.Errorf("decoding unsubscribe: %w", err)
	}

	s.mu.Lock()
	cur, ok := s.streams[req.PlayerID]
	if !ok || cur.token != req.Token {
		s.mu.Unlock()
		return "", nil
	}
	delete(s.streams, req.PlayerID)
	s.mu.Unlock()

	cur.sub.Close()
	return req.PlayerID, nil
}

func (s *Service) forward(ctx context.Context, conn *nats.Conn, sub *Subscription) {
	subject := StreamSubject(sub.PlayerID())
	for {
		m, err := sub.Next(ctx)
		if err != nil {
			return
		}
		if err := messaging.PublishJSON(conn, subject, m); err != nil {
			slog.WarnContext(ctx, "forwarding chat message", "player", sub.PlayerID(), "error", err)
		}
	}
}

func (s *Service) closeStreams() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, st := range s.streams {
		st.sub.Close()
		delete(s.streams, id)
	}
}
