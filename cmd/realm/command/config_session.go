package command

import (
	"fmt"

	"github.com/pixil98/go-errors"

	"github.com/pixil98/go-realm/internal/session"
)

type SessionConfig struct {
	OutboundQueue int `json:"outbound_queue,omitempty"`
	MaxFrameBytes int `json:"max_frame_bytes,omitempty"`
}

func (c *SessionConfig) validate() error {
	el := errors.NewErrorList()

	if c.OutboundQueue < 0 {
		el.Add(fmt.Errorf("outbound_queue must not be negative"))
	}
	if c.MaxFrameBytes < 0 {
		el.Add(fmt.Errorf("max_frame_bytes must not be negative"))
	} else if c.MaxFrameBytes > 0 && c.MaxFrameBytes < 1024 {
		el.Add(fmt.Errorf("max_frame_bytes must be at least 1024"))
	}

	return el.Err()
}

func (c *SessionConfig) options() []session.ManagerOpt {
	return []session.ManagerOpt{
		session.WithOutboundQueue(c.OutboundQueue),
		session.WithMaxFrame(c.MaxFrameBytes),
	}
}
