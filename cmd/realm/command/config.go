package command

import (
	"fmt"
	"time"

	"github.com/pixil98/go-errors"

	"github.com/pixil98/go-realm/internal/driver"
)

type Config struct {
	TickInterval string           `json:"tick_interval"`
	Listeners    []ListenerConfig `json:"listeners"`
	World        WorldConfig      `json:"world"`
	Session      SessionConfig    `json:"session"`
	NPC          NPCConfig        `json:"npc"`
	Chat         ChatConfig       `json:"chat"`
	Audit        AuditConfig      `json:"audit"`
}

func (c *Config) Validate() error {
	el := errors.NewErrorList()

	_, err := optionalDuration("tick_interval", c.TickInterval)
	el.Add(err)

	if len(c.Listeners) == 0 {
		el.Add(fmt.Errorf("at least one listener is required"))
	}
	for i, l := range c.Listeners {
		err := l.validate()
		if err != nil {
			el.Add(fmt.Errorf("listener %d: %w", i, err))
		}
	}

	el.Add(c.World.validate())
	el.Add(c.Session.validate())
	el.Add(c.NPC.validate())
	el.Add(c.Chat.validate())
	el.Add(c.Audit.validate())

	return el.Err()
}

func (c *Config) tickLength() time.Duration {
	d, err := optionalDuration("tick_interval", c.TickInterval)
	if err != nil || d == 0 {
		return driver.DefaultTickLength
	}
	return d
}
