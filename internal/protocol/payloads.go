package protocol

import "encoding/json"

// Ping is sent by clients for liveness checks.
type Ping struct {
	Msg string `json:"msg,omitempty"`
}

type Pong struct {
	Msg string `json:"msg"`
}

type HandshakeChallenge struct {
	Nonce string `json:"nonce"`
}

// PlayerJoin carries the handshake proof. TS is kept raw so that a
// non-integer timestamp is an authentication failure rather than a
// malformed frame.
type PlayerJoin struct {
	PreferredID string          `json:"preferredId,omitempty"`
	Nickname    string          `json:"nickname,omitempty"`
	TS          json.RawMessage `json:"ts,omitempty"`
	HMAC        string          `json:"hmac"`
}

type PlayerIDAssigned struct {
	AssignedID string `json:"assignedId"`
	SpawnIndex int    `json:"spawnIndex"`
}

type PlayerMove struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// PlayerCorrection is server to client only.
type PlayerCorrection struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

type PlayerPosition struct {
	ID string  `json:"id"`
	X  float64 `json:"x"`
	Y  float64 `json:"y"`
	Z  float64 `json:"z"`
}

// WorldUpdate is a full snapshot of every joined player.
type WorldUpdate struct {
	Players []PlayerPosition `json:"players"`
}

type NPCState struct {
	NPCID string  `json:"npcId"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Z     float64 `json:"z"`
	State string  `json:"state,omitempty"`
	Name  string  `json:"name,omitempty"`
}

type NPCDespawn struct {
	NPCID string `json:"npcId"`
}

type Chat struct {
	Channel   string `json:"channel,omitempty"`
	PlayerID  string `json:"playerId,omitempty"`
	Text      string `json:"text"`
	Timestamp int64  `json:"timestamp,omitempty"`
}

// RawPayload is the decoded form of a kind with no registered payload.
type RawPayload struct {
	Kind   Kind
	Fields map[string]json.RawMessage
}
