package npc

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/pixil98/go-realm/internal/driver"
	"github.com/pixil98/go-realm/internal/geom"
	"github.com/pixil98/go-realm/internal/protocol"
)

// maxTurnRate bounds the random heading change in radians per second.
const maxTurnRate = 0.6

// Broadcaster sends a packet to every live connection. It is only called
// from the driver loop.
type Broadcaster interface {
	Broadcast(ctx context.Context, kind protocol.Kind, payload any)
}

// Engine owns the NPC registry. The registry is only touched on the driver
// loop: ticks arrive through driver.Ticker and the admin operations go
// through Loop.Do.
type Engine struct {
	loop    *driver.Loop
	out     Broadcaster
	bounds  geom.Bounds
	terrain geom.Terrain

	rng   *rand.Rand
	newID func() string

	npcs map[string]*NPC
}

type EngineOpt func(*Engine)

// WithRand replaces the random source used for wander and spawn headings.
func WithRand(r *rand.Rand) EngineOpt {
	return func(e *Engine) {
		e.rng = r
	}
}

func WithIDGenerator(f func() string) EngineOpt {
	return func(e *Engine) {
		e.newID = f
	}
}

func NewEngine(loop *driver.Loop, out Broadcaster, bounds geom.Bounds, terrain geom.Terrain, opts ...EngineOpt) *Engine {
	e := &Engine{
		loop:    loop,
		out:     out,
		bounds:  bounds,
		terrain: terrain,
		rng:     rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		newID:   func() string { return uuid.New().String() },
		npcs:    map[string]*NPC{},
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Load adds configured NPCs keyed by id. It must be called before the driver
// loop starts.
func (e *Engine) Load(defs map[string]*Def) {
	ids := make([]string, 0, len(defs))
	for id := range defs {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		d := defs[id]
		n := &NPC{
			ID:           id,
			Name:         d.Name,
			Type:         d.Type,
			Pos:          d.Spawn,
			Home:         d.Spawn,
			Heading:      e.rng.Float64() * 2 * math.Pi,
			Speed:        d.Speed,
			State:        d.Behavior,
			WanderRadius: d.WanderRadius,
		}
		if n.Name == "" {
			n.Name = "Unknown"
		}
		if n.Type == "" {
			n.Type = "generic"
		}
		if n.Speed == 0 {
			n.Speed = DefaultSpeed
		}
		if n.State == "" {
			n.State = StateIdle
		}
		e.npcs[id] = n
	}
}

// Tick advances every NPC by dt. It runs on the driver loop.
func (e *Engine) Tick(ctx context.Context, dt time.Duration) {
	e.step(ctx, dt.Seconds())
}

func (e *Engine) step(ctx context.Context, dt float64) {
	for _, n := range e.sorted() {
		n.Heading += (e.rng.Float64()*2 - 1) * maxTurnRate * dt

		step := n.Speed * dt
		cand := geom.Vec3{
			X: n.Pos.X + math.Cos(n.Heading)*step,
			Z: n.Pos.Z + math.Sin(n.Heading)*step,
		}
		cand.Y = e.terrain.HeightAt(cand.X, cand.Z)

		if !e.bounds.ContainsXZ(cand) || e.leashed(n, cand) {
			n.Heading += math.Pi
			continue
		}
		if e.terrain.IsInsideCollider(cand.X, cand.Y, cand.Z) {
			n.Heading += math.Pi / 2
			continue
		}

		n.Pos = cand
		n.State = StateWalking
		e.out.Broadcast(ctx, protocol.KindNPCUpdate, stateOf(n, false))
	}
}

// leashed reports whether cand strays past the NPC's wander radius.
func (e *Engine) leashed(n *NPC, cand geom.Vec3) bool {
	return n.WanderRadius > 0 && cand.DistXZ(n.Home) > n.WanderRadius
}

// Spawn creates an idle NPC at pos with a random heading and speed and
// announces it to every connection.
func (e *Engine) Spawn(ctx context.Context, name string, pos geom.Vec3) (string, error) {
	if name == "" {
		name = "npc"
	}

	var id string
	err := e.loop.Do(ctx, func(ctx context.Context) {
		n := &NPC{
			ID:      e.newID(),
			Name:    name,
			Type:    "generic",
			Pos:     pos,
			Home:    pos,
			Heading: e.rng.Float64() * 2 * math.Pi,
			Speed:   DefaultSpeed + e.rng.Float64(),
			State:   StateIdle,
		}
		e.npcs[n.ID] = n
		id = n.ID
		e.out.Broadcast(ctx, protocol.KindNPCSpawn, stateOf(n, true))
		slog.InfoContext(ctx, "npc spawned", "npc", n.ID, "name", n.Name, "pos", n.Pos)
	})
	if err != nil {
		return "", fmt.Errorf("spawning npc: %w", err)
	}
	return id, nil
}

// Walk places an NPC at pos without validation.
func (e *Engine) Walk(ctx context.Context, id string, pos geom.Vec3) error {
	return e.withNPC(ctx, id, func(ctx context.Context, n *NPC) {
		n.Pos = pos
		n.State = StateWalking
		e.out.Broadcast(ctx, protocol.KindNPCUpdate, stateOf(n, false))
	})
}

func (e *Engine) Despawn(ctx context.Context, id string) error {
	return e.withNPC(ctx, id, func(ctx context.Context, n *NPC) {
		delete(e.npcs, id)
		e.out.Broadcast(ctx, protocol.KindNPCDespawn, &protocol.NPCDespawn{NPCID: id})
		slog.InfoContext(ctx, "npc despawned", "npc", id)
	})
}

func (e *Engine) withNPC(ctx context.Context, id string, fn func(context.Context, *NPC)) error {
	found := false
	err := e.loop.Do(ctx, func(ctx context.Context) {
		n, ok := e.npcs[id]
		if !ok {
			return
		}
		found = true
		fn(ctx, n)
	})
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	return nil
}

// Snapshot copies every NPC sorted by id. It must run on the driver loop.
func (e *Engine) Snapshot() []NPC {
	out := make([]NPC, 0, len(e.npcs))
	for _, n := range e.sorted() {
		out = append(out, *n)
	}
	return out
}

// SpawnPackets returns one NPC_SPAWN payload per live NPC. It must run on the
// driver loop.
func (e *Engine) SpawnPackets() []*protocol.NPCState {
	out := make([]*protocol.NPCState, 0, len(e.npcs))
	for _, n := range e.sorted() {
		out = append(out, stateOf(n, true))
	}
	return out
}

func (e *Engine) sorted() []*NPC {
	out := make([]*NPC, 0, len(e.npcs))
	for _, n := range e.npcs {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func stateOf(n *NPC, withName bool) *protocol.NPCState {
	s := &protocol.NPCState{
		NPCID: n.ID,
		X:     n.Pos.X,
		Y:     n.Pos.Y,
		Z:     n.Pos.Z,
		State: string(n.State),
	}
	if withName {
		s.Name = n.Name
	}
	return s
}
