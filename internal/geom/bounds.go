package geom

import (
	"fmt"

	"github.com/pixil98/go-errors"
)

// Bounds is an axis-aligned box. Both faces are inside the box.
type Bounds struct {
	Min Vec3 `json:"min" yaml:"min"`
	Max Vec3 `json:"max" yaml:"max"`
}

// Contains reports whether v lies inside b on every axis.
func (b Bounds) Contains(v Vec3) bool {
	return b.ContainsXZ(v) && v.Y >= b.Min.Y && v.Y <= b.Max.Y
}

// ContainsXZ reports whether v lies inside b on the horizontal axes.
func (b Bounds) ContainsXZ(v Vec3) bool {
	return v.X >= b.Min.X && v.X <= b.Max.X &&
		v.Z >= b.Min.Z && v.Z <= b.Max.Z
}

func (b Bounds) Validate() error {
	el := errors.NewErrorList()

	if b.Min.X > b.Max.X {
		el.Add(fmt.Errorf("min x %v exceeds max x %v", b.Min.X, b.Max.X))
	}
	if b.Min.Y > b.Max.Y {
		el.Add(fmt.Errorf("min y %v exceeds max y %v", b.Min.Y, b.Max.Y))
	}
	if b.Min.Z > b.Max.Z {
		el.Add(fmt.Errorf("min z %v exceeds max z %v", b.Min.Z, b.Max.Z))
	}

	return el.Err()
}
