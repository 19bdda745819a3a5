package chat

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/sasha-s/go-deadlock"
)

const (
	ChannelWhisper = "whisper"
	ChannelSystem  = "system"
)

var DefaultChannels = []string{"global", "trade", "guild"}

var (
	ErrUnknownChannel = errors.New("unknown channel")
	ErrNotOnline      = errors.New("target not online")
	ErrAlreadyExists  = errors.New("channel already exists")
	ErrClosed         = errors.New("subscription closed")
)

// Message is one chat line. It is never stored past delivery.
type Message struct {
	Channel   string `json:"channel"`
	PlayerID  string `json:"playerId"`
	Text      string `json:"text"`
	Timestamp int64  `json:"timestamp"`
}

// Bus routes messages to per-subscriber queues. Channels are never removed.
type Bus struct {
	mu       deadlock.RWMutex
	channels map[string]map[string]*queue
	now      func() time.Time
}

type BusOpt func(*Bus)

// WithBusClock replaces the clock used to stamp messages.
func WithBusClock(now func() time.Time) BusOpt {
	return func(b *Bus) {
		b.now = now
	}
}

func NewBus(channels []string, opts ...BusOpt) *Bus {
	b := &Bus{
		channels: map[string]map[string]*queue{},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	for _, name := range channels {
		b.channels[name] = map[string]*queue{}
	}
	return b
}

func (b *Bus) CreateChannel(name string) error {
	if name == "" {
		return fmt.Errorf("channel name must not be empty")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.channels[name]; ok {
		return fmt.Errorf("%q: %w", name, ErrAlreadyExists)
	}
	b.channels[name] = map[string]*queue{}
	return nil
}

// Channels returns the sorted channel names.
func (b *Bus) Channels() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]string, 0, len(b.channels))
	for name := range b.channels {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Subscribe gives the player a queue on every listed channel, creating
// channels that do not exist yet. A previous queue the same player held on
// one of those channels is replaced.
func (b *Bus) Subscribe(playerID string, channels []string) *Subscription {
	sub := &Subscription{
		bus:      b,
		playerID: playerID,
		notify:   make(chan struct{}, 1),
		done:     make(chan struct{}),
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	seen := map[string]bool{}
	for _, name := range channels {
		if seen[name] {
			continue
		}
		seen[name] = true

		subs, ok := b.channels[name]
		if !ok {
			subs = map[string]*queue{}
			b.channels[name] = subs
		}
		q := &queue{channel: name, sub: sub}
		subs[playerID] = q
		sub.queues = append(sub.queues, q)
	}
	return sub
}

// Publish stamps the message and queues it for every subscriber of the
// channel. A channel with no subscribers is not an error.
func (b *Bus) Publish(channel string, m Message) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	subs, ok := b.channels[channel]
	if !ok {
		return fmt.Errorf("%q: %w", channel, ErrUnknownChannel)
	}

	m.Channel = channel
	if m.Timestamp == 0 {
		m.Timestamp = b.now().Unix()
	}
	for _, q := range subs {
		q.push(m)
	}
	return nil
}

// Whisper delivers a private line to every queue the target holds.
func (b *Bus) Whisper(to string, m Message) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	m.Channel = ChannelWhisper
	m.Text = fmt.Sprintf("(whisper to %s): %s", to, m.Text)
	if m.Timestamp == 0 {
		m.Timestamp = b.now().Unix()
	}

	found := false
	for _, subs := range b.channels {
		if q, ok := subs[to]; ok {
			q.push(m)
			found = true
		}
	}
	if !found {
		return fmt.Errorf("%q: %w", to, ErrNotOnline)
	}
	return nil
}

func (b *Bus) unsubscribe(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, q := range sub.queues {
		subs := b.channels[q.channel]
		if subs[sub.playerID] == q {
			delete(subs, sub.playerID)
		}
	}
}
