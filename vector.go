package main

import "math"

// Vector2 is an immutable 2D vector
type Vector2 struct {
	X float64 `json:"x" msgpack:"x"`
	Y float64 `json:"y" msgpack:"y"`
}

// Vec is shorthand for Vector2{x, y}
func Vec(x, y float64) Vector2 {
	return Vector2{X: x, Y: y}
}

// Add returns v + o
func (v Vector2) Add(o Vector2) Vector2 {
	return Vector2{X: v.X + o.X, Y: v.Y + o.Y}
}

// Sub returns v - o
func (v Vector2) Sub(o Vector2) Vector2 {
	return Vector2{X: v.X - o.X, Y: v.Y - o.Y}
}

// Scale returns v * s
func (v Vector2) Scale(s float64) Vector2 {
	return Vector2{X: v.X * s, Y: v.Y * s}
}

// Len returns the euclidean length
func (v Vector2) Len() float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y)
}

// Normalize returns a unit vector with the same direction.
// The zero vector yields NaN components.
func (v Vector2) Normalize() Vector2 {
	l := v.Len()
	return Vector2{X: v.X / l, Y: v.Y / l}
}

// IsFinite reports whether both components are finite numbers
func (v Vector2) IsFinite() bool {
	return !math.IsNaN(v.X) && !math.IsInf(v.X, 0) &&
		!math.IsNaN(v.Y) && !math.IsInf(v.Y, 0)
}

// NormalizeXY is Vec(dx, dy).Normalize()
func NormalizeXY(dx, dy float64) Vector2 {
	return Vec(dx, dy).Normalize()
}
