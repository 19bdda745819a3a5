package geom

// Terrain answers ground and solid-geometry queries. Implementations must be
// pure: the same inputs always produce the same answer.
type Terrain interface {
	HeightAt(x, z float64) float64
	IsInsideCollider(x, y, z float64) bool
}

// FlatTerrain is a constant-height ground plane with box colliders.
type FlatTerrain struct {
	Height    float64
	Colliders []Bounds
}

func (t *FlatTerrain) HeightAt(x, z float64) float64 {
	return t.Height
}

func (t *FlatTerrain) IsInsideCollider(x, y, z float64) bool {
	p := Vec3{X: x, Y: y, Z: z}
	for _, c := range t.Colliders {
		if c.Contains(p) {
			return true
		}
	}
	return false
}

// TerrainFuncs adapts two plain functions to Terrain.
type TerrainFuncs struct {
	Height   func(x, z float64) float64
	Collides func(x, y, z float64) bool
}

func (t TerrainFuncs) HeightAt(x, z float64) float64 {
	if t.Height == nil {
		return 0
	}
	return t.Height(x, z)
}

func (t TerrainFuncs) IsInsideCollider(x, y, z float64) bool {
	if t.Collides == nil {
		return false
	}
	return t.Collides(x, y, z)
}
