package entity

import (
	"fmt"
	"math"
)

// Coord is the type of entity position coordinates (x, y, z)
type Coord float32

// Vector3 is the spatial primitive shared by all entity kinds.
// It has value semantics: setters store an independent copy, so callers
// can keep mutating their own vector afterwards.
type Vector3 struct {
	X Coord
	Y Coord
	Z Coord
}

func (p Vector3) String() string {
	return fmt.Sprintf("(%.2f, %.2f, %.2f)", p.X, p.Y, p.Z)
}

// DistanceTo calculates distance between two positions
func (p Vector3) DistanceTo(o Vector3) Coord {
	dx := p.X - o.X
	dy := p.Y - o.Y
	dz := p.Z - o.Z
	return Coord(math.Sqrt(float64(dx*dx + dy*dy + dz*dz)))
}

// Sub calculates Vector3 p - Vector3 o
func (p Vector3) Sub(o Vector3) Vector3 {
	return Vector3{p.X - o.X, p.Y - o.Y, p.Z - o.Z}
}

// Add calculates Vector3 p + Vector3 o
func (p Vector3) Add(o Vector3) Vector3 {
	return Vector3{p.X + o.X, p.Y + o.Y, p.Z + o.Z}
}

// Mul calculates Vector3 p * m
func (p Vector3) Mul(m Coord) Vector3 {
	return Vector3{p.X * m, p.Y * m, p.Z * m}
}

// MulVec multiplies component-wise
func (p Vector3) MulVec(o Vector3) Vector3 {
	return Vector3{p.X * o.X, p.Y * o.Y, p.Z * o.Z}
}

// Equals reports exact component equality
func (p Vector3) Equals(o Vector3) bool {
	return p.X == o.X && p.Y == o.Y && p.Z == o.Z
}

func (p *Vector3) Normalize() {
	d := Coord(math.Sqrt(float64(p.X*p.X + p.Y*p.Y + p.Z*p.Z)))
	if d == 0 {
		return
	}
	p.X /= d
	p.Y /= d
	p.Z /= d
}

func (p Vector3) Normalized() Vector3 {
	p.Normalize()
	return p
}
