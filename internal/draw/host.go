// Package draw implements the boundary drawing lifecycle on top of a host
// map: the freehand capture surface, the view stabilizer and the controller
// state machine that composes them.
package draw

import (
	"context"
	"errors"

	"github.com/joeblew999/plat-draw/internal/geo"
)

var (
	// ErrOverlayCreation is surfaced to listeners when the host map refuses
	// to create a polygon, rectangle or marker.
	ErrOverlayCreation = errors.New("couldn't apply drawn area, try again")

	// ErrViewportRead means the host could not report its center or zoom.
	ErrViewportRead = errors.New("viewport unavailable")
)

// OverlayKind names a host overlay primitive.
type OverlayKind string

const (
	OverlayPolygon   OverlayKind = "polygon"
	OverlayRectangle OverlayKind = "rectangle"
	OverlayMarker    OverlayKind = "marker"
)

// Overlay is a handle to a primitive created on the host map.
type Overlay struct {
	ID   string      `json:"id"`
	Kind OverlayKind `json:"kind"`
}

// EventType is a host map notification.
type EventType string

const (
	EventCenterChanged EventType = "center_changed"
	EventZoomChanged   EventType = "zoom_changed"
	EventBoundsChanged EventType = "bounds_changed"
	EventIdle          EventType = "idle"
	// EventUserGesture marks a deliberate pan or zoom by the user.
	EventUserGesture EventType = "user_gesture"
)

// MapEvent is delivered by HostMap subscriptions.
type MapEvent struct {
	Type EventType `json:"type" enum:"center_changed,zoom_changed,bounds_changed,idle,user_gesture"`
}

// Drifts reports whether the event can indicate an unrequested view change.
func (e MapEvent) Drifts() bool {
	switch e.Type {
	case EventCenterChanged, EventZoomChanged, EventBoundsChanged, EventIdle:
		return true
	}
	return false
}

// Canvas renders live stroke feedback on the capture overlay.
type Canvas interface {
	BeginStroke(p geo.ScreenPoint)
	StrokeTo(p geo.ScreenPoint)
	ShowCursor(p geo.ScreenPoint)
	Clear()
}

// HostMap is the third-party map widget the drawing core runs on. Calls are
// made from the controller's event loop, except LoadMarkerLibrary which runs
// through Options.Go.
type HostMap interface {
	View() (geo.Viewport, error)
	SetView(v geo.Viewport) error
	Frame() (geo.Frame, error)

	// SetInteractions toggles native drag, scroll and double-click zoom.
	SetInteractions(enabled bool) error

	AddPolygon(ring []geo.GeoPoint) (Overlay, error)
	AddRectangle(r geo.Rect) (Overlay, error)
	AddMarker(p geo.GeoPoint) (Overlay, error)
	RemoveOverlay(o Overlay) error

	// LoadMarkerLibrary blocks until marker rendering is available.
	LoadMarkerLibrary(ctx context.Context) error

	Subscribe(fn func(MapEvent)) (cancel func())

	Canvas() Canvas
}

// PointerType is the pointer event phase.
type PointerType string

const (
	PointerDown  PointerType = "down"
	PointerMove  PointerType = "move"
	PointerUp    PointerType = "up"
	PointerLeave PointerType = "leave"
)

// PointerKind is the input device.
type PointerKind string

const (
	PointerMouse PointerKind = "mouse"
	PointerPen   PointerKind = "pen"
	PointerTouch PointerKind = "touch"
)

// Precise reports whether the device warrants a cursor indicator.
func (k PointerKind) Precise() bool {
	return k == PointerMouse || k == PointerPen
}

// PointerEvent is one pointer sample on the capture overlay.
type PointerEvent struct {
	Type  PointerType     `json:"type" enum:"down,move,up,leave" doc:"Pointer phase"`
	Kind  PointerKind     `json:"kind,omitempty" enum:"mouse,pen,touch" doc:"Input device"`
	Point geo.ScreenPoint `json:"point" doc:"Position relative to the overlay"`
}

// Listener receives lifecycle notifications. Nil fields are skipped.
type Listener struct {
	// OnDrawStart fires when the capture surface is mounted.
	OnDrawStart      func()
	OnDrawComplete   func(b *geo.Boundary)
	OnBoundaryChange func(hasBoundary bool)
	OnCancel         func()
	OnError          func(err error)
}
