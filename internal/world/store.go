package world

import (
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/pixil98/go-realm/internal/geom"
)

var (
	ErrPlayerNotFound = errors.New("player not found")
	ErrNicknameTaken  = errors.New("nickname already taken")
	ErrNoSpawnPoints  = errors.New("no spawn points configured")
)

// Player is the authoritative record for one joined client.
type Player struct {
	ID         string
	Nickname   string
	Pos        geom.Vec3
	SpawnIndex int
}

// Store maps player ids to positions and nicknames. It is not safe for
// concurrent use; every call must come from the driver loop.
type Store struct {
	spawnPoints []geom.Vec3

	players    map[string]*Player
	nickToID   map[string]string
	generateID func() string
}

type StoreOpt func(*Store)

// WithIDGenerator replaces uuid generation for players without a usable
// preferred id.
func WithIDGenerator(f func() string) StoreOpt {
	return func(s *Store) {
		s.generateID = f
	}
}

func NewStore(spawnPoints []geom.Vec3, opts ...StoreOpt) (*Store, error) {
	if len(spawnPoints) == 0 {
		return nil, ErrNoSpawnPoints
	}

	s := &Store{
		spawnPoints: append([]geom.Vec3(nil), spawnPoints...),
		players:     map[string]*Player{},
		nickToID:    map[string]string{},
		generateID:  func() string { return uuid.New().String() },
	}

	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// Join registers a new player. The preferred id is used when it is non-empty
// and not already in use. The nickname defaults to the id; a taken nickname
// leaves the player without one rather than failing the join.
func (s *Store) Join(preferredID, nickname string) (Player, error) {
	id := preferredID
	if _, taken := s.players[id]; id == "" || taken {
		id = s.generateID()
		if _, taken := s.players[id]; taken {
			return Player{}, fmt.Errorf("generated id %q already in use", id)
		}
	}

	idx := len(s.players) % len(s.spawnPoints)
	p := &Player{
		ID:         id,
		Pos:        s.spawnPoints[idx],
		SpawnIndex: idx,
	}
	s.players[id] = p

	if nickname == "" {
		nickname = id
	}
	if _, taken := s.nickToID[nickname]; !taken {
		p.Nickname = nickname
		s.nickToID[nickname] = id
	}

	return *p, nil
}

// Leave drops the player and its nickname. Unknown ids are ignored.
func (s *Store) Leave(id string) {
	p, ok := s.players[id]
	if !ok {
		return
	}
	if p.Nickname != "" && s.nickToID[p.Nickname] == id {
		delete(s.nickToID, p.Nickname)
	}
	delete(s.players, id)
}

// Move commits an already validated position.
func (s *Store) Move(id string, pos geom.Vec3) error {
	p, ok := s.players[id]
	if !ok {
		return ErrPlayerNotFound
	}
	p.Pos = pos
	return nil
}

func (s *Store) Player(id string) (Player, bool) {
	p, ok := s.players[id]
	if !ok {
		return Player{}, false
	}
	return *p, true
}

// Players returns a snapshot sorted by id.
func (s *Store) Players() []Player {
	out := make([]Player, 0, len(s.players))
	for _, p := range s.players {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Store) Count() int {
	return len(s.players)
}

// Rename moves the player to a new nickname, releasing the old one.
func (s *Store) Rename(id, nickname string) error {
	p, ok := s.players[id]
	if !ok {
		return ErrPlayerNotFound
	}
	if nickname == "" {
		return fmt.Errorf("nickname must not be empty")
	}
	if owner, taken := s.nickToID[nickname]; taken {
		if owner == id {
			return nil
		}
		return fmt.Errorf("%q: %w", nickname, ErrNicknameTaken)
	}

	if p.Nickname != "" {
		delete(s.nickToID, p.Nickname)
	}
	p.Nickname = nickname
	s.nickToID[nickname] = id
	return nil
}

func (s *Store) NicknameOf(id string) string {
	if p, ok := s.players[id]; ok {
		return p.Nickname
	}
	return ""
}

func (s *Store) IDForNickname(nickname string) (string, bool) {
	id, ok := s.nickToID[nickname]
	return id, ok
}
