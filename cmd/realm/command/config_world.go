package command

import (
	"fmt"
	"time"

	"github.com/pixil98/go-errors"

	"github.com/pixil98/go-realm/internal/auth"
	"github.com/pixil98/go-realm/internal/geom"
	"github.com/pixil98/go-realm/internal/movement"
	"github.com/pixil98/go-realm/internal/world"
)

const (
	defaultGroundHeight = 6.989525
	defaultMaxSpeed     = 10
)

var (
	defaultBounds = geom.Bounds{
		Min: geom.Vec3{X: 150, Y: 0, Z: 500},
		Max: geom.Vec3{X: 250, Y: 50, Z: 600},
	}
	defaultSpawnPoints = []geom.Vec3{
		{X: 208.6597, Y: defaultGroundHeight, Z: 545.12},
		{X: 208.6597, Y: defaultGroundHeight, Z: 548},
	}
)

type WorldConfig struct {
	Bounds      *geom.Bounds  `json:"bounds,omitempty"`
	SpawnPoints []geom.Vec3   `json:"spawn_points,omitempty"`
	MaxSpeed    float64       `json:"max_speed,omitempty"`
	Secret      string        `json:"secret"`
	MaxSkew     string        `json:"max_skew,omitempty"`
	Terrain     TerrainConfig `json:"terrain"`
}

type TerrainConfig struct {
	GroundHeight *float64      `json:"ground_height,omitempty"`
	Colliders    []geom.Bounds `json:"colliders,omitempty"`
}

func (c *WorldConfig) validate() error {
	el := errors.NewErrorList()

	if c.Secret == "" {
		el.Add(fmt.Errorf("world secret is required"))
	}
	if c.MaxSpeed < 0 {
		el.Add(fmt.Errorf("max_speed must be positive"))
	}
	if c.Bounds != nil {
		if err := c.Bounds.Validate(); err != nil {
			el.Add(fmt.Errorf("world bounds: %w", err))
		}
	}
	if c.MaxSkew != "" {
		d, err := time.ParseDuration(c.MaxSkew)
		if err != nil {
			el.Add(fmt.Errorf("parsing max_skew: %w", err))
		} else if d <= 0 {
			el.Add(fmt.Errorf("max_skew must be positive"))
		}
	}

	bounds := c.bounds()
	for i, p := range c.SpawnPoints {
		if !bounds.Contains(p) {
			el.Add(fmt.Errorf("spawn point %d is outside the world bounds", i))
		}
	}
	for i, b := range c.Terrain.Colliders {
		if err := b.Validate(); err != nil {
			el.Add(fmt.Errorf("collider %d: %w", i, err))
		}
	}

	return el.Err()
}

func (c *WorldConfig) bounds() geom.Bounds {
	if c.Bounds == nil {
		return defaultBounds
	}
	return *c.Bounds
}

func (c *WorldConfig) terrain() geom.Terrain {
	height := defaultGroundHeight
	if c.Terrain.GroundHeight != nil {
		height = *c.Terrain.GroundHeight
	}
	return &geom.FlatTerrain{Height: height, Colliders: c.Terrain.Colliders}
}

func (c *WorldConfig) buildStore() (*world.Store, error) {
	spawns := c.SpawnPoints
	if len(spawns) == 0 {
		spawns = defaultSpawnPoints
	}
	return world.NewStore(spawns)
}

func (c *WorldConfig) buildValidator() *movement.Validator {
	speed := c.MaxSpeed
	if speed == 0 {
		speed = defaultMaxSpeed
	}
	return &movement.Validator{
		MaxSpeed: speed,
		Bounds:   c.bounds(),
		Terrain:  c.terrain(),
	}
}

func (c *WorldConfig) buildVerifier() *auth.Verifier {
	var opts []auth.VerifierOpt
	if d, err := time.ParseDuration(c.MaxSkew); err == nil && d > 0 {
		opts = append(opts, auth.WithMaxSkew(d))
	}
	return auth.NewVerifier([]byte(c.Secret), opts...)
}
