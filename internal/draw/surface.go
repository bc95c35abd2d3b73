package draw

import (
	"log/slog"
	"time"

	"github.com/facebookgo/clock"

	"github.com/joeblew999/plat-draw/internal/geo"
)

// DefaultFeedbackDelay lets the closing stroke segment render before the
// overlay is torn down.
const DefaultFeedbackDelay = 40 * time.Millisecond

// SurfaceState is the per-gesture capture state.
type SurfaceState int

const (
	SurfaceReady SurfaceState = iota
	SurfaceCapturing
	SurfaceFinishing
)

func (s SurfaceState) String() string {
	switch s {
	case SurfaceReady:
		return "ready"
	case SurfaceCapturing:
		return "capturing"
	case SurfaceFinishing:
		return "finishing"
	}
	return "unknown"
}

// Surface is the transparent overlay that turns pointer gestures into a
// simplified geographic vertex list. While mounted it keeps the host map's
// native drag, scroll and double-click zoom disabled.
type Surface struct {
	host      HostMap
	clk       clock.Clock
	post      func(func())
	tolerance float64
	delay     time.Duration
	log       *slog.Logger

	// complete receives the simplified vertices of a finished gesture.
	complete func(vertices []geo.GeoPoint)
	// discard is told why a gesture produced nothing.
	discard func(reason error)

	state   SurfaceState
	mounted bool
	path    []geo.ScreenPoint
	pending *clock.Timer
	gen     uint64
}

func newSurface(host HostMap, clk clock.Clock, post func(func()), tolerance float64, delay time.Duration, log *slog.Logger) *Surface {
	return &Surface{
		host:      host,
		clk:       clk,
		post:      post,
		tolerance: tolerance,
		delay:     delay,
		log:       log,
		complete:  func([]geo.GeoPoint) {},
		discard:   func(error) {},
	}
}

// State returns the gesture state.
func (s *Surface) State() SurfaceState { return s.state }

// Mounted reports whether the overlay is up.
func (s *Surface) Mounted() bool { return s.mounted }

// Mount raises the overlay and disables host map interactions.
func (s *Surface) Mount() {
	if s.mounted {
		return
	}
	s.mounted = true
	s.state = SurfaceReady
	if err := s.host.SetInteractions(false); err != nil {
		s.log.Warn("disable map interactions", "error", err)
	}
}

// Unmount cancels any gesture, clears the stroke and restores host map
// interactions.
func (s *Surface) Unmount() {
	if !s.mounted {
		return
	}
	s.Cancel()
	s.mounted = false
	if err := s.host.SetInteractions(true); err != nil {
		s.log.Warn("restore map interactions", "error", err)
	}
}

// Cancel aborts a gesture in progress or drops a finished path that has not
// been delivered yet. It always returns to Ready.
func (s *Surface) Cancel() {
	s.gen++
	if s.pending != nil {
		s.pending.Stop()
		s.pending = nil
	}
	s.state = SurfaceReady
	s.path = nil
	s.canvas().Clear()
}

// Handle feeds one pointer event into the gesture state machine.
func (s *Surface) Handle(ev PointerEvent) {
	if !s.mounted {
		return
	}
	if ev.Type == PointerMove && ev.Kind.Precise() {
		s.canvas().ShowCursor(ev.Point)
	}

	switch s.state {
	case SurfaceReady:
		if ev.Type == PointerDown {
			s.state = SurfaceCapturing
			s.path = append(s.path[:0], ev.Point)
			s.canvas().BeginStroke(ev.Point)
		}
	case SurfaceCapturing:
		switch ev.Type {
		case PointerMove:
			s.path = append(s.path, ev.Point)
			s.canvas().StrokeTo(ev.Point)
		case PointerUp, PointerLeave:
			s.finish()
		}
	case SurfaceFinishing:
		// waiting for the feedback delay
	}
}

func (s *Surface) finish() {
	s.state = SurfaceFinishing
	path := s.path
	s.path = nil

	if len(path) < geo.MinVertices {
		s.reject(geo.ErrInsufficientVertices)
		return
	}

	frame, err := s.host.Frame()
	if err != nil {
		s.log.Debug("frame unavailable at gesture end", "error", err)
		s.reject(geo.ErrBoundsUnavailable)
		return
	}

	vertices := geo.Simplify(geo.ConvertAll(path, frame), s.tolerance)
	if len(vertices) < geo.MinVertices {
		s.reject(geo.ErrInsufficientVertices)
		return
	}

	gen := s.gen
	s.pending = s.clk.AfterFunc(s.delay, func() {
		s.post(func() {
			if s.gen != gen || s.state != SurfaceFinishing {
				return
			}
			s.pending = nil
			s.state = SurfaceReady
			s.canvas().Clear()
			s.complete(vertices)
		})
	})
}

func (s *Surface) reject(reason error) {
	s.state = SurfaceReady
	s.canvas().Clear()
	s.discard(reason)
}

func (s *Surface) canvas() Canvas {
	if c := s.host.Canvas(); c != nil {
		return c
	}
	return nopCanvas{}
}

type nopCanvas struct{}

func (nopCanvas) BeginStroke(geo.ScreenPoint) {}
func (nopCanvas) StrokeTo(geo.ScreenPoint)    {}
func (nopCanvas) ShowCursor(geo.ScreenPoint)  {}
func (nopCanvas) Clear()                      {}
