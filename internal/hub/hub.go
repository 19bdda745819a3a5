package hub

import (
	"errors"
	"fmt"
	"sort"
)

var (
	ErrSlowConsumer = errors.New("outbound queue full")
	ErrConnNotFound = errors.New("connection not found")
)

// Conn is a live connection that accepts encoded frames.
type Conn interface {
	ID() string
	Send(frame []byte) error
	Close() error
}

// Hub tracks the live connections frames are fanned out to. It is owned by
// the driver loop and is not safe for concurrent use.
type Hub struct {
	conns map[string]Conn
}

func New() *Hub {
	return &Hub{conns: map[string]Conn{}}
}

func (h *Hub) Add(c Conn) {
	h.conns[c.ID()] = c
}

// Remove forgets the connection without closing it.
func (h *Hub) Remove(id string) {
	delete(h.conns, id)
}

func (h *Hub) Get(id string) (Conn, bool) {
	c, ok := h.conns[id]
	return c, ok
}

func (h *Hub) Len() int {
	return len(h.conns)
}

// Send delivers a frame to one connection. A failed send closes and removes
// the connection.
func (h *Hub) Send(id string, frame []byte) error {
	c, ok := h.conns[id]
	if !ok {
		return fmt.Errorf("%s: %w", id, ErrConnNotFound)
	}
	if err := c.Send(frame); err != nil {
		h.drop(c)
		return fmt.Errorf("sending to %s: %w", id, err)
	}
	return nil
}

// Broadcast sends the frame to every connection. Connections that fail are
// closed and removed; their ids are returned in sorted order.
func (h *Hub) Broadcast(frame []byte) []string {
	var dead []string
	for id, c := range h.conns {
		if err := c.Send(frame); err != nil {
			dead = append(dead, id)
		}
	}
	for _, id := range dead {
		h.drop(h.conns[id])
	}
	sort.Strings(dead)
	return dead
}

func (h *Hub) drop(c Conn) {
	delete(h.conns, c.ID())
	_ = c.Close()
}
