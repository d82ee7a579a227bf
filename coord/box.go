package coord

import "math"

// Box is an axis-aligned bounding box.
type Box struct{ Min, Max Point }

// BoundingBox returns the min/max per axis over points. ok is false if
// points is empty.
func BoundingBox(points []Point) (b Box, ok bool) {
	if len(points) == 0 {
		return b, false
	}
	b.Min, b.Max = points[0], points[0]
	for _, p := range points[1:] {
		b.Min.X = math.Min(b.Min.X, p.X)
		b.Min.Y = math.Min(b.Min.Y, p.Y)
		b.Max.X = math.Max(b.Max.X, p.X)
		b.Max.Y = math.Max(b.Max.Y, p.Y)
	}
	return b, true
}

func (b Box) Width() float64  { return b.Max.X - b.Min.X }
func (b Box) Height() float64 { return b.Max.Y - b.Min.Y }

// Grow returns b extended by m on every side.
func (b Box) Grow(m float64) Box {
	b.Min = b.Min.Sub(Point{X: m, Y: m})
	b.Max = b.Max.Add(Point{X: m, Y: m})
	return b
}

// Contains is true if p lies within b, edges included.
func (b Box) Contains(p Point) bool {
	return p.X >= b.Min.X && p.X <= b.Max.X && p.Y >= b.Min.Y && p.Y <= b.Max.Y
}
