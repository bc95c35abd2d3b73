// Package service contains the session layer of plat-draw: drawing sessions
// that pair a browser map with a boundary controller, saved search areas,
// and the event bus that fans lifecycle changes out to SSE streams.
package service

import (
	"time"

	"github.com/joeblew999/plat-draw/internal/geo"
)

// SessionInfo is the wire form of a drawing session.
type SessionInfo struct {
	ID        string            `json:"id" format:"uuid" doc:"Session ID"`
	Created   time.Time         `json:"created" doc:"Creation time"`
	State     string            `json:"state" enum:"idle,drawing,boundary_active,clearing" doc:"Lifecycle state"`
	Attached  bool              `json:"attached" doc:"Whether a browser map is consuming commands"`
	Boundary  *geo.BoundaryView `json:"boundary,omitempty" doc:"Active boundary"`
	LastError string            `json:"lastError,omitempty" doc:"Most recent failure shown to the user"`
}

// Area is a saved search boundary. Geometry is derived from Vertices on
// save and ignored on input.
type Area struct {
	ID       string         `json:"id,omitempty" doc:"Unique area identifier" example:"makati_cbd"`
	Name     string         `json:"name" required:"true" minLength:"1" maxLength:"100" doc:"Display name" example:"Makati CBD"`
	Vertices []geo.GeoPoint `json:"vertices" required:"true" minItems:"3" doc:"Polygon vertices"`
	Geometry *geo.Geometry  `json:"geometry,omitempty" readOnly:"true" doc:"Derived rectangle, center and radius"`
}
