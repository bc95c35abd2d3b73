package geo

import (
	"encoding/json"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/geojson"
)

// Geometry is the derived shape summary of a polygon.
type Geometry struct {
	Rect   Rect     `json:"enclosingRectangle" doc:"Min/max lat and lng over all vertices"`
	Center GeoPoint `json:"center" doc:"Center of the enclosing rectangle"`
	Radius float64  `json:"radius" doc:"Max center-to-vertex distance in meters"`
}

// Compute derives the enclosing rectangle, its center, and the largest
// great-circle distance from that center to any vertex. The center is the
// rectangle's center, not the vertex centroid, matching how a map reports a
// bounds center. vertices must hold a valid polygon.
func Compute(vertices []GeoPoint) Geometry {
	b := orb.Bound{Min: vertices[0].Point(), Max: vertices[0].Point()}
	for _, v := range vertices[1:] {
		b = b.Extend(v.Point())
	}

	center := b.Center()
	radius := 0.0
	for _, v := range vertices {
		radius = math.Max(radius, geo.DistanceHaversine(center, v.Point()))
	}

	return Geometry{
		Rect:   RectFromBound(b),
		Center: FromPoint(center),
		Radius: radius,
	}
}

// Distance is the great-circle distance in meters used for boundary radii.
func Distance(a, b GeoPoint) float64 {
	return geo.DistanceHaversine(a.Point(), b.Point())
}

// Boundary is a committed search area. Its rectangle, center and radius are
// derived from the vertices when the boundary is built and cannot be set on
// their own.
type Boundary struct {
	vertices []GeoPoint
	geom     Geometry
}

// NewBoundary closes the ring and derives the geometry. It fails with
// ErrInsufficientVertices when fewer than three distinct vertices remain.
func NewBoundary(vertices []GeoPoint) (*Boundary, error) {
	ring := closeRing(vertices)
	if len(ring)-1 < MinVertices {
		return nil, ErrInsufficientVertices
	}
	return &Boundary{vertices: ring, geom: Compute(ring)}, nil
}

func closeRing(vertices []GeoPoint) []GeoPoint {
	if len(vertices) == 0 {
		return nil
	}
	ring := make([]GeoPoint, len(vertices), len(vertices)+1)
	copy(ring, vertices)
	if ring[0] != ring[len(ring)-1] {
		ring = append(ring, ring[0])
	}
	return ring
}

// Vertices returns a copy of the closed vertex ring.
func (b *Boundary) Vertices() []GeoPoint {
	out := make([]GeoPoint, len(b.vertices))
	copy(out, b.vertices)
	return out
}

func (b *Boundary) Rect() Rect         { return b.geom.Rect }
func (b *Boundary) Center() GeoPoint   { return b.geom.Center }
func (b *Boundary) Radius() float64    { return b.geom.Radius }
func (b *Boundary) Geometry() Geometry { return b.geom }

// Ring returns the boundary as an orb ring.
func (b *Boundary) Ring() orb.Ring {
	r := make(orb.Ring, len(b.vertices))
	for i, v := range b.vertices {
		r[i] = v.Point()
	}
	return r
}

// Polygon returns the boundary as an orb polygon.
func (b *Boundary) Polygon() orb.Polygon {
	return orb.Polygon{b.Ring()}
}

// Feature returns the boundary as a GeoJSON feature carrying the derived
// center and radius as properties.
func (b *Boundary) Feature() *geojson.Feature {
	f := geojson.NewFeature(b.Polygon())
	f.Properties["centerLat"] = b.geom.Center.Lat
	f.Properties["centerLng"] = b.geom.Center.Lng
	f.Properties["radius"] = b.geom.Radius
	return f
}

// BoundaryView is the wire form of a Boundary.
type BoundaryView struct {
	Vertices []GeoPoint `json:"vertices" doc:"Closed vertex ring (first equals last)"`
	Geometry
}

// View returns the wire form.
func (b *Boundary) View() BoundaryView {
	return BoundaryView{Vertices: b.Vertices(), Geometry: b.geom}
}

func (b *Boundary) MarshalJSON() ([]byte, error) {
	return json.Marshal(b.View())
}
