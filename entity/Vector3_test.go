package entity

import (
	"testing"

	"github.com/bmizerany/assert"
)

func TestVector3Arithmetic(t *testing.T) {
	a := Vector3{1, 2, 3}
	b := Vector3{4, 5, 6}

	assert.Equal(t, Vector3{5, 7, 9}, a.Add(b))
	assert.Equal(t, Vector3{-3, -3, -3}, a.Sub(b))
	assert.Equal(t, Vector3{2, 4, 6}, a.Mul(2))
	assert.Equal(t, Vector3{4, 10, 18}, a.MulVec(b))
	assert.Equal(t, true, a.Equals(Vector3{1, 2, 3}))
	assert.Equal(t, false, a.Equals(b))
}

func TestVector3DistanceTo(t *testing.T) {
	a := Vector3{0, 0, 0}
	b := Vector3{3, 4, 0}
	assert.Equal(t, Coord(5), a.DistanceTo(b))
	assert.Equal(t, Coord(5), b.DistanceTo(a))
	assert.Equal(t, Coord(0), a.DistanceTo(a))
}

func TestVector3ValueSemantics(t *testing.T) {
	w, _, _ := newTestWorld(1)
	pos := Vector3{10, 0, 10}
	b := w.NewBrick(pos, Vector3{1, 1, 1})

	// mutating the caller's vector must not alias into the brick
	pos.X = 999
	assert.Equal(t, Coord(10), b.Position().X)

	// and the getter returns a copy
	got := b.Position()
	got.Z = -1
	assert.Equal(t, Coord(10), b.Position().Z)
}

func TestVector3Normalized(t *testing.T) {
	v := Vector3{0, 3, 4}.Normalized()
	assert.Equal(t, Coord(0), v.X)
	if d := float64(v.Y - 0.6); d > 1e-6 || d < -1e-6 {
		t.Fatalf("Y = %v, want 0.6", v.Y)
	}
	// zero vector stays put
	assert.Equal(t, Vector3{}, Vector3{}.Normalized())
}
