// Package geo holds the coordinate types and the pure geometry used by the
// boundary drawing core: screen→geographic translation, polygon
// simplification and boundary derivation.
//
// Geographic points convert to and from orb.Point, which stores longitude
// first ({X: lng, Y: lat}).
package geo

import (
	"errors"

	"github.com/paulmach/orb"
)

var (
	// ErrBoundsUnavailable means the host map could not report its bounds or
	// pixel dimensions. Callers skip the affected point or operation.
	ErrBoundsUnavailable = errors.New("map bounds unavailable")

	// ErrInsufficientVertices means fewer than three vertices survived
	// capture or simplification.
	ErrInsufficientVertices = errors.New("insufficient vertices")
)

// MinVertices is the smallest vertex count that forms a polygon.
const MinVertices = 3

// ScreenPoint is a pixel offset relative to the overlay's top-left corner.
type ScreenPoint struct {
	X float64 `json:"x" doc:"Horizontal pixel offset"`
	Y float64 `json:"y" doc:"Vertical pixel offset (grows downward)"`
}

// GeoPoint is a geographic coordinate in degrees.
type GeoPoint struct {
	Lat float64 `json:"lat" minimum:"-90" maximum:"90" doc:"Latitude" example:"14.5995"`
	Lng float64 `json:"lng" minimum:"-180" maximum:"180" doc:"Longitude" example:"120.9842"`
}

// Point returns the orb representation (lng, lat).
func (p GeoPoint) Point() orb.Point {
	return orb.Point{p.Lng, p.Lat}
}

// FromPoint converts an orb point back to a GeoPoint.
func FromPoint(p orb.Point) GeoPoint {
	return GeoPoint{Lat: p.Lat(), Lng: p.Lon()}
}

// Viewport is the host map's visible region descriptor.
type Viewport struct {
	Center GeoPoint `json:"center" doc:"Viewport center"`
	Zoom   int      `json:"zoom" minimum:"0" maximum:"22" doc:"Zoom level" example:"14"`
}

// Rect is a geographic rectangle described by its north-east and south-west
// corners.
type Rect struct {
	NorthEast GeoPoint `json:"northEast" doc:"North-east corner"`
	SouthWest GeoPoint `json:"southWest" doc:"South-west corner"`
}

// IsZero reports whether the rectangle was never set.
func (r Rect) IsZero() bool {
	return r == Rect{}
}

// Center is the geometric center of the rectangle.
func (r Rect) Center() GeoPoint {
	return FromPoint(r.Bound().Center())
}

// Bound converts the rectangle to an orb.Bound.
func (r Rect) Bound() orb.Bound {
	return orb.Bound{
		Min: r.SouthWest.Point(),
		Max: r.NorthEast.Point(),
	}
}

// RectFromBound converts an orb.Bound to a Rect.
func RectFromBound(b orb.Bound) Rect {
	return Rect{
		NorthEast: FromPoint(b.Max),
		SouthWest: FromPoint(b.Min),
	}
}

// Frame is everything the translator needs from the host map at one instant:
// its geographic bounds and the pixel size of the rendered surface.
type Frame struct {
	Bounds Rect    `json:"bounds" doc:"Geographic bounds of the visible map"`
	Width  float64 `json:"width" doc:"Rendered width in pixels"`
	Height float64 `json:"height" doc:"Rendered height in pixels"`
}
