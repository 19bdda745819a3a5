package protocol

import "fmt"

// Kind identifies the payload carried in a packet envelope.
type Kind int

const (
	KindPing               Kind = 1
	KindPong               Kind = 2
	KindChat               Kind = 4
	KindWorldUpdate        Kind = 5
	KindPlayerJoin         Kind = 6
	KindPlayerIDAssigned   Kind = 7
	KindPlayerMove         Kind = 8
	KindPlayerCorrection   Kind = 9
	KindNPCSpawn           Kind = 10
	KindNPCUpdate          Kind = 11
	KindNPCDespawn         Kind = 12
	KindHandshakeChallenge Kind = 100
)

var kindNames = map[Kind]string{
	KindPing:               "PING",
	KindPong:               "PONG",
	KindChat:               "CHAT",
	KindWorldUpdate:        "WORLD_UPDATE",
	KindPlayerJoin:         "PLAYER_JOIN",
	KindPlayerIDAssigned:   "PLAYER_ID_ASSIGNED",
	KindPlayerMove:         "PLAYER_MOVE",
	KindPlayerCorrection:   "PLAYER_CORRECTION",
	KindNPCSpawn:           "NPC_SPAWN",
	KindNPCUpdate:          "NPC_UPDATE",
	KindNPCDespawn:         "NPC_DESPAWN",
	KindHandshakeChallenge: "HANDSHAKE_CHALLENGE",
}

func (k Kind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return fmt.Sprintf("UNKNOWN(%d)", int(k))
}

// Kinds returns every kind known to the protocol.
func Kinds() []Kind {
	return []Kind{
		KindPing, KindPong, KindChat, KindWorldUpdate, KindPlayerJoin, KindPlayerIDAssigned,
		KindPlayerMove, KindPlayerCorrection, KindNPCSpawn, KindNPCUpdate, KindNPCDespawn,
		KindHandshakeChallenge,
	}
}
