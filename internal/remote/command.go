// Package remote implements draw.HostMap for a map widget running in a
// browser. The browser reports its viewport, frame and readiness; the
// drawing core's calls become Commands streamed back over SSE.
package remote

import (
	"github.com/joeblew999/plat-draw/internal/geo"
)

// Op names a browser-side map operation.
type Op string

const (
	OpSetView       Op = "set_view"
	OpInteractions  Op = "interactions"
	OpAddPolygon    Op = "add_polygon"
	OpAddRectangle  Op = "add_rectangle"
	OpAddMarker     Op = "add_marker"
	OpRemoveOverlay Op = "remove_overlay"
	OpLoadMarkers   Op = "load_markers"
	OpStrokeBegin   Op = "stroke_begin"
	OpStrokeTo      Op = "stroke_to"
	OpCursor        Op = "cursor"
	OpCanvasClear   Op = "canvas_clear"
)

// Command is one instruction for the browser. Only the fields relevant to
// Op are set.
type Command struct {
	Op      Op               `json:"op"`
	Overlay string           `json:"overlay,omitempty"`
	View    *geo.Viewport    `json:"view,omitempty"`
	Enabled *bool            `json:"enabled,omitempty"`
	Ring    []geo.GeoPoint   `json:"ring,omitempty"`
	Rect    *geo.Rect        `json:"rect,omitempty"`
	Point   *geo.GeoPoint    `json:"point,omitempty"`
	Screen  *geo.ScreenPoint `json:"screen,omitempty"`
}

// Report is what the browser tells the server about its widget. Nil fields
// are unchanged.
type Report struct {
	View         *geo.Viewport `json:"view,omitempty" doc:"Current center and zoom"`
	Frame        *geo.Frame    `json:"frame,omitempty" doc:"Visible bounds and pixel size"`
	UserGesture  bool          `json:"userGesture,omitempty" doc:"The change was a deliberate pan or zoom"`
	Idle         bool          `json:"idle,omitempty" doc:"The widget finished moving"`
	MarkersReady bool          `json:"markersReady,omitempty" doc:"Marker rendering is available"`
}
