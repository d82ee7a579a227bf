package coord

import (
	"math"

	"github.com/fogleman/delaunay"
)

// HullArea returns the area of the convex hull around points.
//
// It is the sheet footprint of a part, ignoring holes. Fewer than 3 points,
// or collinear points, have no area.
func HullArea(points []Point) float64 {
	if len(points) < 3 {
		return 0
	}
	pts := make([]delaunay.Point, len(points))
	for i, p := range points {
		pts[i] = delaunay.Point{X: p.X, Y: p.Y}
	}
	tri, err := delaunay.Triangulate(pts)
	if err != nil || len(tri.ConvexHull) < 3 {
		return 0
	}

	hull := make([]Point, 0, len(tri.ConvexHull)+1)
	for _, p := range tri.ConvexHull {
		hull = append(hull, Point{X: p.X, Y: p.Y})
	}
	hull = append(hull, hull[0])
	return math.Abs(SignedArea(hull))
}
