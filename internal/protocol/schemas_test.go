package protocol_test

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/pixil98/go-realm/internal/protocol"
)

func TestSchemas_EncodedFrames(t *testing.T) {
	compile := func(name string) *jsonschema.Schema {
		t.Helper()
		p := filepath.Join("..", "..", "schemas", name)
		s, err := jsonschema.Compile(p)
		if err != nil {
			t.Fatalf("compile %s: %v", name, err)
		}
		return s
	}

	envelope := compile("envelope.schema.json")

	tests := map[string]struct {
		schema  string
		kind    protocol.Kind
		payload any
	}{
		"handshake challenge": {
			schema:  "handshake_challenge.schema.json",
			kind:    protocol.KindHandshakeChallenge,
			payload: &protocol.HandshakeChallenge{Nonce: "00112233445566778899aabbccddeeff"},
		},
		"player join": {
			schema: "player_join.schema.json",
			kind:   protocol.KindPlayerJoin,
			payload: &protocol.PlayerJoin{
				PreferredID: "p1",
				TS:          json.RawMessage(`1700000000`),
				HMAC:        "abcdef",
			},
		},
		"player id assigned": {
			schema:  "player_id_assigned.schema.json",
			kind:    protocol.KindPlayerIDAssigned,
			payload: &protocol.PlayerIDAssigned{AssignedID: "p1", SpawnIndex: 1},
		},
		"player move": {
			schema:  "player_move.schema.json",
			kind:    protocol.KindPlayerMove,
			payload: &protocol.PlayerMove{X: 1, Y: 2, Z: 3},
		},
		"player correction": {
			schema:  "player_correction.schema.json",
			kind:    protocol.KindPlayerCorrection,
			payload: &protocol.PlayerCorrection{X: 208.6, Y: 6.98, Z: 545.1},
		},
		"world update": {
			schema: "world_update.schema.json",
			kind:   protocol.KindWorldUpdate,
			payload: &protocol.WorldUpdate{Players: []protocol.PlayerPosition{
				{ID: "a", X: 1, Y: 2, Z: 3},
			}},
		},
		"empty world update": {
			schema:  "world_update.schema.json",
			kind:    protocol.KindWorldUpdate,
			payload: &protocol.WorldUpdate{Players: []protocol.PlayerPosition{}},
		},
		"npc spawn": {
			schema:  "npc_state.schema.json",
			kind:    protocol.KindNPCSpawn,
			payload: &protocol.NPCState{NPCID: "guard", X: 1, Y: 2, Z: 3, State: "idle", Name: "Guard"},
		},
		"npc update": {
			schema:  "npc_state.schema.json",
			kind:    protocol.KindNPCUpdate,
			payload: &protocol.NPCState{NPCID: "guard", X: 1, Y: 2, Z: 3, State: "walking"},
		},
		"npc despawn": {
			schema:  "npc_despawn.schema.json",
			kind:    protocol.KindNPCDespawn,
			payload: &protocol.NPCDespawn{NPCID: "guard"},
		},
		"chat": {
			schema:  "chat.schema.json",
			kind:    protocol.KindChat,
			payload: &protocol.Chat{Channel: "global", PlayerID: "p1", Text: "hi", Timestamp: 1700000000},
		},
		"pong": {
			schema:  "pong.schema.json",
			kind:    protocol.KindPong,
			payload: &protocol.Pong{Msg: "pong"},
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			frame, err := protocol.Encode(tt.kind, tt.payload)
			if err != nil {
				t.Fatalf("encode: %v", err)
			}

			var env map[string]any
			if err := json.Unmarshal(frame, &env); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if err := envelope.Validate(env); err != nil {
				t.Fatalf("envelope: %v", err)
			}
			if err := compile(tt.schema).Validate(env["data"]); err != nil {
				t.Fatalf("payload: %v", err)
			}
		})
	}
}
