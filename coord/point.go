package coord

import (
	"math"
)

// Point is a position on the sheet, in output units.
type Point struct{ X, Y float64 }

func (p Point) Equal(b Point) bool {
	return p.X == b.X && p.Y == b.Y
}

// Near reports whether b is within tol of p on both axes.
func (p Point) Near(b Point, tol float64) bool {
	return math.Abs(p.X-b.X) <= tol && math.Abs(p.Y-b.Y) <= tol
}

func (p Point) Mul(val float64) Point {
	p.X *= val
	p.Y *= val
	return p
}

func (p Point) Div(val float64) Point {
	p.X /= val
	p.Y /= val
	return p
}

// Add will add the target values to p.
func (p Point) Add(target Point) Point {
	p.X += target.X
	p.Y += target.Y
	return p
}

// Sub will subtract the target values from p.
func (p Point) Sub(target Point) Point {
	p.X -= target.X
	p.Y -= target.Y
	return p
}

// IsFinite is false if either axis is NaN or infinite.
func (p Point) IsFinite() bool {
	return !math.IsNaN(p.X) && !math.IsInf(p.X, 0) && !math.IsNaN(p.Y) && !math.IsInf(p.Y, 0)
}

// Distance will return the 2D distance to p from b.
func (p Point) Distance(b Point) float64 {
	return math.Hypot(b.X-p.X, b.Y-p.Y)
}
