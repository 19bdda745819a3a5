package protocol

import (
	"errors"
	"fmt"
)

var (
	ErrMalformedPacket = errors.New("malformed packet")
	ErrEmptyFrame      = errors.New("empty frame")
)

// MalformedPacketError describes a frame that could not be decoded. The
// connection that produced it stays open.
type MalformedPacketError struct {
	Frame string
	Err   error
}

func (e *MalformedPacketError) Error() string {
	return fmt.Sprintf("malformed packet %q: %v", truncate(e.Frame, 64), e.Err)
}

func (e *MalformedPacketError) Is(target error) bool {
	return target == ErrMalformedPacket
}

func (e *MalformedPacketError) Unwrap() error {
	return e.Err
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
