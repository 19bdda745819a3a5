package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Packet is one decoded frame. Data is a pointer to the registered payload
// type for Kind, or a *RawPayload when Kind is not registered.
type Packet struct {
	Kind Kind
	Data any
}

type envelope struct {
	ID   *Kind           `json:"id"`
	Data json.RawMessage `json:"data,omitempty"`
}

type outEnvelope struct {
	ID   Kind `json:"id"`
	Data any  `json:"data"`
}

// Encode renders a single newline-terminated frame.
func Encode(kind Kind, payload any) ([]byte, error) {
	if payload == nil {
		payload = struct{}{}
	}

	b, err := json.Marshal(outEnvelope{ID: kind, Data: payload})
	if err != nil {
		return nil, fmt.Errorf("encoding %s: %w", kind, err)
	}
	return append(b, '\n'), nil
}

// Decode parses one frame using the default registry.
func Decode(line []byte) (Packet, error) {
	return defaultRegistry.Decode(line)
}

var defaultRegistry = DefaultRegistry()

// Decode parses one frame. Unregistered kinds decode to a *RawPayload that
// keeps the original numeric kind.
func (r *Registry) Decode(line []byte) (Packet, error) {
	line = bytes.TrimSpace(line)

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(line, &raw); err != nil {
		return Packet{}, &MalformedPacketError{Frame: string(line), Err: err}
	}
	if len(raw) == 0 {
		return Packet{}, ErrEmptyFrame
	}

	var env envelope
	if err := json.Unmarshal(line, &env); err != nil {
		return Packet{}, &MalformedPacketError{Frame: string(line), Err: err}
	}
	if env.ID == nil {
		return Packet{}, &MalformedPacketError{Frame: string(line), Err: fmt.Errorf("missing id")}
	}
	kind := *env.ID

	data := env.Data
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		data = []byte("{}")
	}

	factory, ok := r.lookup(kind)
	if !ok {
		fields := map[string]json.RawMessage{}
		if err := json.Unmarshal(data, &fields); err != nil {
			return Packet{}, &MalformedPacketError{Frame: string(line), Err: err}
		}
		return Packet{Kind: kind, Data: &RawPayload{Kind: kind, Fields: fields}}, nil
	}

	payload := factory()
	if err := json.Unmarshal(data, payload); err != nil {
		return Packet{}, &MalformedPacketError{Frame: string(line), Err: fmt.Errorf("%s payload: %w", kind, err)}
	}

	return Packet{Kind: kind, Data: payload}, nil
}
