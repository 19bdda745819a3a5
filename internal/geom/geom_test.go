package geom

import (
	"testing"

	"github.com/pixil98/go-testutil"
)

func TestBounds_Contains(t *testing.T) {
	b := Bounds{Min: Vec3{X: -1, Y: 0, Z: -1}, Max: Vec3{X: 1, Y: 2, Z: 1}}

	tests := map[string]struct {
		v     Vec3
		exp   bool
		expXZ bool
	}{
		"center":          {v: Vec3{X: 0, Y: 1, Z: 0}, exp: true, expXZ: true},
		"on max face":     {v: Vec3{X: 1, Y: 2, Z: 1}, exp: true, expXZ: true},
		"on min face":     {v: Vec3{X: -1, Y: 0, Z: -1}, exp: true, expXZ: true},
		"above":           {v: Vec3{X: 0, Y: 3, Z: 0}, exp: false, expXZ: true},
		"outside x":       {v: Vec3{X: 1.01, Y: 1, Z: 0}, exp: false, expXZ: false},
		"outside z below": {v: Vec3{X: 0, Y: 1, Z: -5}, exp: false, expXZ: false},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			testutil.AssertEqual(t, "contains", b.Contains(tt.v), tt.exp)
			testutil.AssertEqual(t, "contains xz", b.ContainsXZ(tt.v), tt.expXZ)
		})
	}
}

func TestBounds_Validate(t *testing.T) {
	err := Bounds{Min: Vec3{X: 2}, Max: Vec3{X: 1}}.Validate()
	testutil.AssertErrorContains(t, err, "min x")

	if err := (Bounds{Max: Vec3{X: 1, Y: 1, Z: 1}}).Validate(); err != nil {
		t.Errorf("valid bounds: %v", err)
	}
}

func TestVec3_Dist(t *testing.T) {
	a := Vec3{X: 0, Y: 0, Z: 0}
	b := Vec3{X: 3, Y: 4, Z: 0}

	testutil.AssertEqual(t, "dist", a.Dist(b), 5.0)
	testutil.AssertEqual(t, "dist xz", a.DistXZ(Vec3{X: 3, Y: 100, Z: 4}), 5.0)
	testutil.AssertEqual(t, "add", a.Add(b).Sub(b), a)
	testutil.AssertEqual(t, "scale", b.Scale(2), Vec3{X: 6, Y: 8})
}

func TestFlatTerrain(t *testing.T) {
	ft := &FlatTerrain{
		Height:    7,
		Colliders: []Bounds{{Min: Vec3{X: 10, Y: 0, Z: 10}, Max: Vec3{X: 12, Y: 5, Z: 12}}},
	}

	testutil.AssertEqual(t, "height", ft.HeightAt(100, -3), 7.0)
	testutil.AssertEqual(t, "inside", ft.IsInsideCollider(11, 1, 11), true)
	testutil.AssertEqual(t, "outside", ft.IsInsideCollider(13, 1, 11), false)

	var tf TerrainFuncs
	testutil.AssertEqual(t, "nil height", tf.HeightAt(1, 1), 0.0)
	testutil.AssertEqual(t, "nil collides", tf.IsInsideCollider(1, 1, 1), false)
}
