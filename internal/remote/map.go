package remote

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/joeblew999/plat-draw/internal/draw"
	"github.com/joeblew999/plat-draw/internal/geo"
)

var (
	ErrNoView         = errors.New("map has not reported a viewport")
	ErrOutboxFull     = errors.New("map command outbox full")
	ErrAttached       = errors.New("map already has a client attached")
	ErrClosed         = errors.New("map closed")
	ErrUnknownOverlay = errors.New("unknown overlay")
)

// Map is a draw.HostMap whose widget lives in a browser. It is safe for
// concurrent use.
type Map struct {
	log *slog.Logger

	mu       sync.Mutex
	out      chan Command
	attached bool
	closed   bool
	done     chan struct{}

	view  *geo.Viewport
	frame geo.Frame

	overlays map[string]draw.Overlay
	seq      int

	markers          chan struct{}
	markersReady     bool
	markersRequested bool

	subs    map[int]func(draw.MapEvent)
	nextSub int
}

// New returns a Map buffering up to outbox commands for its client.
func New(outbox int, log *slog.Logger) *Map {
	if outbox <= 0 {
		outbox = 64
	}
	if log == nil {
		log = slog.Default()
	}
	return &Map{
		log:      log,
		out:      make(chan Command, outbox),
		done:     make(chan struct{}),
		overlays: make(map[string]draw.Overlay),
		markers:  make(chan struct{}),
		subs:     make(map[int]func(draw.MapEvent)),
	}
}

// Attach hands the command stream to a client. Only one client may be
// attached at a time; detach releases it. Commands issued before a client
// attaches are delivered on attach, up to the outbox size.
func (m *Map) Attach() (<-chan Command, func(), error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, nil, ErrClosed
	}
	if m.attached {
		return nil, nil, ErrAttached
	}
	m.attached = true
	var once sync.Once
	detach := func() {
		once.Do(func() {
			m.mu.Lock()
			m.attached = false
			m.mu.Unlock()
		})
	}
	return m.out, detach, nil
}

// Attached reports whether a client is consuming commands.
func (m *Map) Attached() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.attached
}

// Close ends the command stream and aborts pending marker loads.
func (m *Map) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.closed = true
	close(m.done)
	close(m.out)
}

// Report applies a browser report and notifies subscribers of what changed.
func (m *Map) Report(r Report) {
	var events []draw.MapEvent
	if r.UserGesture {
		events = append(events, draw.MapEvent{Type: draw.EventUserGesture})
	}

	m.mu.Lock()
	if r.View != nil {
		prev := m.view
		v := *r.View
		m.view = &v
		if prev == nil || prev.Center != v.Center {
			events = append(events, draw.MapEvent{Type: draw.EventCenterChanged})
		}
		if prev == nil || prev.Zoom != v.Zoom {
			events = append(events, draw.MapEvent{Type: draw.EventZoomChanged})
		}
	}
	if r.Frame != nil && *r.Frame != m.frame {
		m.frame = *r.Frame
		events = append(events, draw.MapEvent{Type: draw.EventBoundsChanged})
	}
	if r.MarkersReady && !m.markersReady {
		m.markersReady = true
		close(m.markers)
	}
	subs := make([]func(draw.MapEvent), 0, len(m.subs))
	for _, fn := range m.subs {
		subs = append(subs, fn)
	}
	m.mu.Unlock()

	if r.Idle {
		events = append(events, draw.MapEvent{Type: draw.EventIdle})
	}
	for _, ev := range events {
		for _, fn := range subs {
			fn(ev)
		}
	}
}

func (m *Map) View() (geo.Viewport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.view == nil {
		return geo.Viewport{}, ErrNoView
	}
	return *m.view, nil
}

// SetView records v as the current view and asks the browser to move there.
// The browser's next report of the same view is not a change.
func (m *Map) SetView(v geo.Viewport) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.push(Command{Op: OpSetView, View: &v}); err != nil {
		return err
	}
	m.view = &v
	return nil
}

func (m *Map) Frame() (geo.Frame, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.frame.Width <= 0 || m.frame.Height <= 0 || m.frame.Bounds.IsZero() {
		return geo.Frame{}, geo.ErrBoundsUnavailable
	}
	return m.frame, nil
}

func (m *Map) SetInteractions(enabled bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.push(Command{Op: OpInteractions, Enabled: &enabled})
}

func (m *Map) AddPolygon(ring []geo.GeoPoint) (draw.Overlay, error) {
	ring = append([]geo.GeoPoint(nil), ring...)
	return m.add(draw.OverlayPolygon, Command{Op: OpAddPolygon, Ring: ring})
}

func (m *Map) AddRectangle(r geo.Rect) (draw.Overlay, error) {
	return m.add(draw.OverlayRectangle, Command{Op: OpAddRectangle, Rect: &r})
}

func (m *Map) AddMarker(p geo.GeoPoint) (draw.Overlay, error) {
	m.mu.Lock()
	ready := m.markersReady
	m.mu.Unlock()
	if !ready {
		return draw.Overlay{}, errors.New("marker library not loaded")
	}
	return m.add(draw.OverlayMarker, Command{Op: OpAddMarker, Point: &p})
}

func (m *Map) add(kind draw.OverlayKind, cmd Command) (draw.Overlay, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	o := draw.Overlay{ID: fmt.Sprintf("%s-%d", kind, m.seq), Kind: kind}
	cmd.Overlay = o.ID
	if err := m.push(cmd); err != nil {
		return draw.Overlay{}, err
	}
	m.overlays[o.ID] = o
	return o, nil
}

func (m *Map) RemoveOverlay(o draw.Overlay) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.overlays[o.ID]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownOverlay, o.ID)
	}
	if err := m.push(Command{Op: OpRemoveOverlay, Overlay: o.ID}); err != nil {
		return err
	}
	delete(m.overlays, o.ID)
	return nil
}

// Overlays returns the overlays currently on the map.
func (m *Map) Overlays() []draw.Overlay {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]draw.Overlay, 0, len(m.overlays))
	for _, o := range m.overlays {
		out = append(out, o)
	}
	return out
}

// LoadMarkerLibrary asks the browser for the marker library once and waits
// for it to report markers ready.
func (m *Map) LoadMarkerLibrary(ctx context.Context) error {
	m.mu.Lock()
	if !m.markersReady && !m.markersRequested {
		if err := m.push(Command{Op: OpLoadMarkers}); err != nil {
			m.mu.Unlock()
			return err
		}
		m.markersRequested = true
	}
	ready := m.markers
	m.mu.Unlock()

	select {
	case <-ready:
		return nil
	case <-m.done:
		return ErrClosed
	case <-ctx.Done():
		m.mu.Lock()
		m.markersRequested = false
		m.mu.Unlock()
		return fmt.Errorf("load marker library: %w", ctx.Err())
	}
}

func (m *Map) Subscribe(fn func(draw.MapEvent)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = fn
	return func() {
		m.mu.Lock()
		delete(m.subs, id)
		m.mu.Unlock()
	}
}

func (m *Map) Canvas() draw.Canvas { return canvas{m} }

// push queues cmd without blocking. Callers hold m.mu.
func (m *Map) push(cmd Command) error {
	if m.closed {
		return ErrClosed
	}
	select {
	case m.out <- cmd:
		return nil
	default:
		return ErrOutboxFull
	}
}

// canvas streams stroke feedback. Feedback is best effort: it is dropped
// when no client is attached or the outbox is full, so it never crowds out
// overlay commands.
type canvas struct{ m *Map }

func (c canvas) send(cmd Command) {
	c.m.mu.Lock()
	defer c.m.mu.Unlock()
	if !c.m.attached {
		return
	}
	if err := c.m.push(cmd); err != nil {
		c.m.log.Debug("stroke feedback dropped", "op", cmd.Op, "error", err)
	}
}

func (c canvas) BeginStroke(p geo.ScreenPoint) { c.send(Command{Op: OpStrokeBegin, Screen: &p}) }
func (c canvas) StrokeTo(p geo.ScreenPoint)    { c.send(Command{Op: OpStrokeTo, Screen: &p}) }
func (c canvas) ShowCursor(p geo.ScreenPoint)  { c.send(Command{Op: OpCursor, Screen: &p}) }
func (c canvas) Clear()                        { c.send(Command{Op: OpCanvasClear}) }
