package draw

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/facebookgo/clock"

	"github.com/joeblew999/plat-draw/internal/geo"
)

var errHost = errors.New("host refused")

// fakeHost is an in-memory HostMap. SetView fires center_changed to
// subscribers synchronously, like a real widget would.
type fakeHost struct {
	view     geo.Viewport
	viewErr  error
	frame    geo.Frame
	frameErr error

	interactions bool
	overlays     map[string]Overlay
	removed      []Overlay
	nextID       int
	failOn       OverlayKind
	panicOn      OverlayKind
	markerErr    error

	subs     map[int]func(MapEvent)
	nextSub  int
	setViews []geo.Viewport
	canvas   *fakeCanvas
}

func newFakeHost() *fakeHost {
	return &fakeHost{
		view: geo.Viewport{
			Center: geo.GeoPoint{Lat: 14.5995, Lng: 120.9842},
			Zoom:   14,
		},
		frame: geo.Frame{
			Bounds: geo.Rect{
				NorthEast: geo.GeoPoint{Lat: 14.61, Lng: 120.995},
				SouthWest: geo.GeoPoint{Lat: 14.59, Lng: 120.975},
			},
			Width:  800,
			Height: 600,
		},
		interactions: true,
		overlays:     map[string]Overlay{},
		subs:         map[int]func(MapEvent){},
		canvas:       &fakeCanvas{},
	}
}

func (h *fakeHost) View() (geo.Viewport, error) {
	if h.viewErr != nil {
		return geo.Viewport{}, h.viewErr
	}
	return h.view, nil
}

func (h *fakeHost) SetView(v geo.Viewport) error {
	h.view = v
	h.setViews = append(h.setViews, v)
	h.fire(EventCenterChanged)
	return nil
}

func (h *fakeHost) Frame() (geo.Frame, error) {
	if h.frameErr != nil {
		return geo.Frame{}, h.frameErr
	}
	return h.frame, nil
}

func (h *fakeHost) SetInteractions(enabled bool) error {
	h.interactions = enabled
	return nil
}

func (h *fakeHost) add(kind OverlayKind) (Overlay, error) {
	if h.panicOn == kind {
		panic("widget exploded")
	}
	if h.failOn == kind {
		return Overlay{}, errHost
	}
	h.nextID++
	o := Overlay{ID: fmt.Sprintf("%s-%d", kind, h.nextID), Kind: kind}
	h.overlays[o.ID] = o
	return o, nil
}

func (h *fakeHost) AddPolygon([]geo.GeoPoint) (Overlay, error) { return h.add(OverlayPolygon) }
func (h *fakeHost) AddRectangle(geo.Rect) (Overlay, error)     { return h.add(OverlayRectangle) }
func (h *fakeHost) AddMarker(geo.GeoPoint) (Overlay, error)    { return h.add(OverlayMarker) }

func (h *fakeHost) RemoveOverlay(o Overlay) error {
	if _, ok := h.overlays[o.ID]; !ok {
		return errors.New("unknown overlay")
	}
	delete(h.overlays, o.ID)
	h.removed = append(h.removed, o)
	return nil
}

func (h *fakeHost) LoadMarkerLibrary(ctx context.Context) error {
	return h.markerErr
}

func (h *fakeHost) Subscribe(fn func(MapEvent)) func() {
	id := h.nextSub
	h.nextSub++
	h.subs[id] = fn
	return func() { delete(h.subs, id) }
}

func (h *fakeHost) Canvas() Canvas { return h.canvas }

func (h *fakeHost) fire(t EventType) {
	for _, fn := range h.subs {
		fn(MapEvent{Type: t})
	}
}

// drift moves the view the way a widget recenters on its own.
func (h *fakeHost) drift(silent bool) {
	h.view.Center.Lat += 0.01
	h.view.Center.Lng -= 0.01
	h.view.Zoom++
	if !silent {
		h.fire(EventCenterChanged)
	}
}

// pan is a deliberate user move.
func (h *fakeHost) pan() {
	h.view.Center.Lat += 0.05
	h.fire(EventUserGesture)
	h.fire(EventCenterChanged)
}

func (h *fakeHost) count(kind OverlayKind) int {
	n := 0
	for _, o := range h.overlays {
		if o.Kind == kind {
			n++
		}
	}
	return n
}

type fakeCanvas struct {
	strokes int
	cursor  int
	clears  int
}

func (c *fakeCanvas) BeginStroke(geo.ScreenPoint) { c.strokes++ }
func (c *fakeCanvas) StrokeTo(geo.ScreenPoint)    { c.strokes++ }
func (c *fakeCanvas) ShowCursor(geo.ScreenPoint)  { c.cursor++ }
func (c *fakeCanvas) Clear()                      { c.clears++ }

// recorder captures listener notifications.
type recorder struct {
	starts   int
	complete []*geo.Boundary
	changes  []bool
	cancels  int
	errs     []error
}

func (r *recorder) listener() Listener {
	return Listener{
		OnDrawStart:      func() { r.starts++ },
		OnDrawComplete:   func(b *geo.Boundary) { r.complete = append(r.complete, b) },
		OnBoundaryChange: func(has bool) { r.changes = append(r.changes, has) },
		OnCancel:         func() { r.cancels++ },
		OnError:          func(err error) { r.errs = append(r.errs, err) },
	}
}

type harness struct {
	t    *testing.T
	host *fakeHost
	clk  *clock.Mock
	rec  *recorder
	c    *Controller
}

func newHarness(t *testing.T, mutate ...func(*Options)) *harness {
	t.Helper()
	h := &harness{
		t:    t,
		host: newFakeHost(),
		clk:  clock.NewMock(),
		rec:  &recorder{},
	}
	opts := Options{
		Listener: h.rec.listener(),
		Clock:    h.clk,
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		Go:       func(fn func()) { fn() },
	}
	for _, m := range mutate {
		m(&opts)
	}
	h.c = NewController(h.host, opts)
	h.c.Start()
	t.Cleanup(h.c.Close)
	return h
}

func (h *harness) advance(d time.Duration) {
	h.clk.Add(d)
}

// settle runs past the feedback delay and the stabilization window.
func (h *harness) settle() {
	h.advance(DefaultFeedbackDelay)
	h.advance(DefaultRetryPolicy.Window + DefaultRetryPolicy.Interval)
}

// square draws a square gesture with intermediate samples on each edge.
func (h *harness) square(x0, y0, x1, y1 float64) {
	corners := []geo.ScreenPoint{{X: x0, Y: y0}, {X: x1, Y: y0}, {X: x1, Y: y1}, {X: x0, Y: y1}, {X: x0, Y: y0}}
	h.c.HandlePointer(PointerEvent{Type: PointerDown, Kind: PointerMouse, Point: corners[0]})
	for i := 1; i < len(corners); i++ {
		a, b := corners[i-1], corners[i]
		for s := 1; s <= 10; s++ {
			f := float64(s) / 10
			p := geo.ScreenPoint{X: a.X + (b.X-a.X)*f, Y: a.Y + (b.Y-a.Y)*f}
			h.c.HandlePointer(PointerEvent{Type: PointerMove, Kind: PointerMouse, Point: p})
		}
	}
	h.c.HandlePointer(PointerEvent{Type: PointerUp, Kind: PointerMouse, Point: corners[0]})
}

func (h *harness) wantState(want State) {
	h.t.Helper()
	if got := h.c.State(); got != want {
		h.t.Fatalf("state=%s, want %s", got, want)
	}
}

func (h *harness) wantView(want geo.Viewport) {
	h.t.Helper()
	snap := Snapshot{Viewport: want}
	if snap.Drifted(h.host.view, DefaultEpsilon) {
		h.t.Fatalf("view=%+v, want %+v", h.host.view, want)
	}
}
