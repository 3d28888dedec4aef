package main

import "math"

// BoundaryMargin keeps bodies this far inside the arena walls
const BoundaryMargin = 5.0

// Body is anything round with a position
type Body interface {
	Pos() Vector2
	Size() float64
}

// Positioned is a body whose position can be corrected in place
type Positioned interface {
	Body
	SetPos(Vector2)
}

// CheckCollision checks if two circles overlap (strictly, touching is not a hit)
func CheckCollision(x1, y1, r1, x2, y2, r2 float64) bool {
	return Distance(x1, y1, x2, y2) < r1+r2
}

// Colliding is CheckCollision for two bodies
func Colliding(a, b Body) bool {
	pa, pb := a.Pos(), b.Pos()
	return CheckCollision(pa.X, pa.Y, a.Size(), pb.X, pb.Y, b.Size())
}

// AdjustForBoundaries clamps e so its full extent stays margin inside the arena
func AdjustForBoundaries(e Positioned, radius, margin, width, height float64) {
	p := e.Pos()
	e.SetPos(Vector2{
		X: math.Min(width-margin-radius, math.Max(margin+radius, p.X)),
		Y: math.Min(height-margin-radius, math.Max(margin+radius, p.Y)),
	})
}
