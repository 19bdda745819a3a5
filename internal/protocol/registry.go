package protocol

import (
	"fmt"
	"sync"
)

// PayloadFactory returns a pointer to a fresh payload value for decoding.
type PayloadFactory func() any

// Registry maps packet kinds to their payload shapes. It is safe for
// concurrent use; every connection reader decodes through the same registry.
type Registry struct {
	mu        sync.RWMutex
	factories map[Kind]PayloadFactory
}

// NewRegistry returns a registry with no kinds registered.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[Kind]PayloadFactory)}
}

// DefaultRegistry returns a registry covering every kind the server speaks.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.MustRegister(KindPing, func() any { return &Ping{} })
	r.MustRegister(KindPong, func() any { return &Pong{} })
	r.MustRegister(KindChat, func() any { return &Chat{} })
	r.MustRegister(KindWorldUpdate, func() any { return &WorldUpdate{} })
	r.MustRegister(KindPlayerJoin, func() any { return &PlayerJoin{} })
	r.MustRegister(KindPlayerIDAssigned, func() any { return &PlayerIDAssigned{} })
	r.MustRegister(KindPlayerMove, func() any { return &PlayerMove{} })
	r.MustRegister(KindPlayerCorrection, func() any { return &PlayerCorrection{} })
	r.MustRegister(KindNPCSpawn, func() any { return &NPCState{} })
	r.MustRegister(KindNPCUpdate, func() any { return &NPCState{} })
	r.MustRegister(KindNPCDespawn, func() any { return &NPCDespawn{} })
	r.MustRegister(KindHandshakeChallenge, func() any { return &HandshakeChallenge{} })
	return r
}

// Register adds a payload shape for kind. Registering a kind twice is an error.
func (r *Registry) Register(kind Kind, factory PayloadFactory) error {
	if factory == nil {
		return fmt.Errorf("payload factory for %s cannot be nil", kind)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[kind]; exists {
		return fmt.Errorf("kind %s already registered", kind)
	}
	r.factories[kind] = factory
	return nil
}

func (r *Registry) MustRegister(kind Kind, factory PayloadFactory) {
	if err := r.Register(kind, factory); err != nil {
		panic(err)
	}
}

func (r *Registry) lookup(kind Kind) (PayloadFactory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.factories[kind]
	return f, ok
}
