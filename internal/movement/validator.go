package movement

import (
	"math"
	"time"

	"github.com/pixil98/go-realm/internal/geom"
)

const (
	// SpeedTolerance scales the max speed to absorb latency and jitter.
	SpeedTolerance = 1.5
	// MinElapsed is the smallest interval a velocity is computed over.
	MinElapsed = time.Millisecond
	// TeleportFactor bounds a single displacement when no time has elapsed.
	TeleportFactor = 0.2
	// VerticalTolerance is how far a player may be above or below the ground.
	VerticalTolerance = 5.0
)

// Reason names the check that rejected a move.
type Reason string

const (
	ReasonNone     Reason = ""
	ReasonSpeed    Reason = "speed"
	ReasonTeleport Reason = "teleport"
	ReasonBounds   Reason = "bounds"
	ReasonHeight   Reason = "height"
	ReasonCollider Reason = "collider"
)

// Decision is the outcome of validating one move. A rejected move carries
// the position the client must be corrected to.
type Decision struct {
	Accepted   bool
	Reason     Reason
	Correction geom.Vec3

	// Measured is the implied speed for speed rejections and the
	// displacement or vertical offset for teleport and height rejections.
	Measured float64
}

// Validator is the server-side movement policy. It holds no mutable state
// and may be shared freely.
type Validator struct {
	MaxSpeed float64
	Bounds   geom.Bounds
	Terrain  geom.Terrain
}

// Validate checks a proposed move in a fixed order. The first failing
// check decides the correction.
func (v *Validator) Validate(prev, proposed geom.Vec3, elapsed time.Duration) Decision {
	dist := prev.Dist(proposed)

	if elapsed > MinElapsed {
		speed := dist / elapsed.Seconds()
		if speed > v.MaxSpeed*SpeedTolerance {
			return reject(ReasonSpeed, prev, speed)
		}
	} else if dist > v.MaxSpeed*TeleportFactor {
		return reject(ReasonTeleport, prev, dist)
	}

	if !v.Bounds.Contains(proposed) {
		return reject(ReasonBounds, prev, 0)
	}

	expectedY := v.Terrain.HeightAt(proposed.X, proposed.Z)
	if dy := math.Abs(proposed.Y - expectedY); dy > VerticalTolerance {
		// Horizontal motion is kept; only the vertical component is snapped.
		return reject(ReasonHeight, geom.Vec3{X: proposed.X, Y: expectedY, Z: proposed.Z}, dy)
	}

	if v.Terrain.IsInsideCollider(proposed.X, proposed.Y, proposed.Z) {
		return reject(ReasonCollider, prev, 0)
	}

	return Decision{Accepted: true}
}

func reject(r Reason, correction geom.Vec3, measured float64) Decision {
	return Decision{Reason: r, Correction: correction, Measured: measured}
}
