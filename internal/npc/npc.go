package npc

import (
	"errors"
	"fmt"

	perrors "github.com/pixil98/go-errors"

	"github.com/pixil98/go-realm/internal/geom"
)

var ErrNotFound = errors.New("npc not found")

type State string

const (
	StateIdle    State = "idle"
	StateWalking State = "walking"
)

const DefaultSpeed = 1.5

// NPC is a server-simulated character. Only the engine mutates it, always on
// the driver loop.
type NPC struct {
	ID           string
	Name         string
	Type         string
	Pos          geom.Vec3
	Home         geom.Vec3
	Heading      float64
	Speed        float64
	State        State
	WanderRadius float64
}

// Def is an NPC definition loaded from an asset file.
type Def struct {
	Name         string    `json:"name" yaml:"name"`
	Type         string    `json:"type" yaml:"type"`
	Spawn        geom.Vec3 `json:"spawn" yaml:"spawn"`
	Behavior     State     `json:"behavior" yaml:"behavior"`
	WanderRadius float64   `json:"wander_radius" yaml:"wander_radius"`
	Speed        float64   `json:"speed" yaml:"speed"`
}

func (d *Def) Validate() error {
	el := perrors.NewErrorList()

	switch d.Behavior {
	case "", StateIdle, StateWalking:
	default:
		el.Add(fmt.Errorf("unknown behavior %q", d.Behavior))
	}
	if d.WanderRadius < 0 {
		el.Add(fmt.Errorf("wander_radius must not be negative"))
	}
	if d.Speed < 0 {
		el.Add(fmt.Errorf("speed must not be negative"))
	}

	return el.Err()
}
