package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go"
)

// Connector hands out a ready client connection.
type Connector interface {
	Conn(ctx context.Context) (*nats.Conn, error)
}

// Ack is the reply to every request/reply call. Code names a sentinel error
// the caller can match on.
type Ack struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	Code    string `json:"code,omitempty"`
	ID      string `json:"id,omitempty"`
}

// Fail builds a failed ack, tagging err with the code of the first sentinel
// it matches.
func Fail(err error, codes map[string]error) Ack {
	for code, sentinel := range codes {
		if errors.Is(err, sentinel) {
			return Ack{Error: err.Error(), Code: code}
		}
	}
	return Ack{Error: err.Error()}
}

// Err turns a failed ack back into an error wrapping the sentinel its code
// names. It returns nil on success.
func (a Ack) Err(codes map[string]error) error {
	if a.Success {
		return nil
	}
	return &RemoteError{Message: a.Error, Err: codes[a.Code]}
}

// RemoteError is a failure reported by the other side of a request.
type RemoteError struct {
	Message string
	Err     error
}

func (e *RemoteError) Error() string {
	return e.Message
}

func (e *RemoteError) Unwrap() error {
	return e.Err
}

// Reply marshals v as the response to msg.
func Reply(msg *nats.Msg, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshalling reply: %w", err)
	}
	return msg.Respond(data)
}

// Request sends req to subject and decodes the reply into resp.
func Request(ctx context.Context, conn *nats.Conn, subject string, req, resp any) error {
	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshalling %s request: %w", subject, err)
	}
	msg, err := conn.RequestWithContext(ctx, subject, data)
	if err != nil {
		return fmt.Errorf("requesting %s: %w", subject, err)
	}
	if err := json.Unmarshal(msg.Data, resp); err != nil {
		return fmt.Errorf("decoding %s reply: %w", subject, err)
	}
	return nil
}

// PublishJSON marshals v and publishes it without waiting for a reply.
func PublishJSON(conn *nats.Conn, subject string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshalling %s message: %w", subject, err)
	}
	return conn.Publish(subject, data)
}
