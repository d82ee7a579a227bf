package coord

import "math"

// ClosureTolerance is the max per-axis distance between the first and last
// point of a contour for it to count as closed.
const ClosureTolerance = 5e-4

// Orientation selects how the HKSTR orientation flag is chosen.
type Orientation int

const (
	OrientAuto Orientation = iota
	OrientInner
	OrientOuter
	OrientChain
)

// Orientation flag values as written to HKSTR.
const (
	FlagOuter = 0
	FlagInner = 1
)

// ParseOrientation maps a config name to an Orientation.
func ParseOrientation(s string) (Orientation, bool) {
	switch s {
	case "", "auto":
		return OrientAuto, true
	case "inner":
		return OrientInner, true
	case "outer":
		return OrientOuter, true
	case "chain":
		return OrientChain, true
	}
	return OrientAuto, false
}

// SignedArea computes the shoelace area over the points in order.
//
// The polygon is not closed implicitly; append the first point to include
// the closing edge. A negative result means clockwise winding.
func SignedArea(points []Point) float64 {
	var sum float64
	for i := 0; i+1 < len(points); i++ {
		sum += points[i].X*points[i+1].Y - points[i+1].X*points[i].Y
	}
	return sum / 2
}

// IsClosedContour is true if there are at least 3 points and the last point
// returns to the first within ClosureTolerance.
func IsClosedContour(points []Point) bool {
	if len(points) < 3 {
		return false
	}
	first, last := points[0], points[len(points)-1]
	return math.Abs(first.X-last.X) <= ClosureTolerance && math.Abs(first.Y-last.Y) <= ClosureTolerance
}

// ResolveOrientationFlag returns the HKSTR orientation flag for a contour.
//
// Under OrientAuto an open path is treated as outer, a closed clockwise
// contour as inner. The flag drives the kerf offset side on the machine.
func ResolveOrientationFlag(points []Point, o Orientation) int {
	switch o {
	case OrientInner:
		return FlagInner
	case OrientOuter, OrientChain:
		return FlagOuter
	}
	if !IsClosedContour(points) {
		return FlagOuter
	}
	if SignedArea(points) < 0 {
		return FlagInner
	}
	return FlagOuter
}
