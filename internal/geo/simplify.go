package geo

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/simplify"
)

// DefaultTolerance is roughly one meter at the equator.
const DefaultTolerance = 1e-5

// Simplify reduces a dense point sequence with Douglas-Peucker. There is no
// radial-distance pre-pass, so every vertex is considered. Inputs with fewer
// than three points are returned unchanged. The input slice is never
// modified.
func Simplify(points []GeoPoint, tolerance float64) []GeoPoint {
	if len(points) < MinVertices {
		return points
	}
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}

	ls := make(orb.LineString, len(points))
	for i, p := range points {
		ls[i] = p.Point()
	}

	// orb simplifies in place
	reduced := simplify.DouglasPeucker(tolerance).LineString(ls)

	out := make([]GeoPoint, len(reduced))
	for i, p := range reduced {
		out[i] = FromPoint(p)
	}
	return out
}
