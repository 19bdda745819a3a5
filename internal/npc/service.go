package npc

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"

	"github.com/pixil98/go-realm/internal/geom"
	"github.com/pixil98/go-realm/internal/messaging"
)

const (
	SubjectSpawn   = "npc.spawn"
	SubjectWalk    = "npc.walk"
	SubjectDespawn = "npc.despawn"
)

var errorCodes = map[string]error{
	"not_found": ErrNotFound,
}

type SpawnRequest struct {
	Name string  `json:"name,omitempty"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Z    float64 `json:"z"`
}

type WalkRequest struct {
	NPCID string  `json:"npcId"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Z     float64 `json:"z"`
}

type DespawnRequest struct {
	NPCID string `json:"npcId"`
}

// Service exposes the engine's admin operations over NATS request/reply.
// Replies are messaging.Ack with ID set to the npc id.
type Service struct {
	engine    *Engine
	connector messaging.Connector
}

func NewService(engine *Engine, connector messaging.Connector) *Service {
	return &Service{
		engine:    engine,
		connector: connector,
	}
}

func (s *Service) Start(ctx context.Context) error {
	conn, err := s.connector.Conn(ctx)
	if err != nil {
		return fmt.Errorf("connecting npc service: %w", err)
	}

	handlers := map[string]func(context.Context, []byte) (string, error){
		SubjectSpawn:   s.spawn,
		SubjectWalk:    s.walk,
		SubjectDespawn: s.despawn,
	}

	var subs []*nats.Subscription
	defer func() {
		for _, sub := range subs {
			_ = sub.Unsubscribe()
		}
	}()
	for subject, h := range handlers {
		sub, err := conn.Subscribe(subject, s.handle(ctx, h))
		if err != nil {
			return fmt.Errorf("subscribing %s: %w", subject, err)
		}
		subs = append(subs, sub)
	}

	slog.InfoContext(ctx, "npc service ready")
	<-ctx.Done()
	return nil
}

func (s *Service) handle(ctx context.Context, fn func(context.Context, []byte) (string, error)) nats.MsgHandler {
	return func(msg *nats.Msg) {
		ack := messaging.Ack{Success: true}
		id, err := fn(ctx, msg.Data)
		if err != nil {
			ack = messaging.Fail(err, errorCodes)
		}
		ack.ID = id
		if err := messaging.Reply(msg, ack); err != nil {
			slog.WarnContext(ctx, "replying to npc request", "subject", msg.Subject, "error", err)
		}
	}
}

func (s *Service) spawn(ctx context.Context, data []byte) (string, error) {
	var req SpawnRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return "", fmt.Errorf("decoding spawn: %w", err)
	}
	return s.engine.Spawn(ctx, req.Name, geom.Vec3{X: req.X, Y: req.Y, Z: req.Z})
}

func (s *Service) walk(ctx context.Context, data []byte) (string, error) {
	var req WalkRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return "", fmt.Errorf("decoding walk: %w", err)
	}
	return req.NPCID, s.engine.Walk(ctx, req.NPCID, geom.Vec3{X: req.X, Y: req.Y, Z: req.Z})
}

func (s *Service) despawn(ctx context.Context, data []byte) (string, error) {
	var req DespawnRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return "", fmt.Errorf("decoding despawn: %w", err)
	}
	return req.NPCID, s.engine.Despawn(ctx, req.NPCID)
}
