package draw

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/facebookgo/clock"

	"github.com/joeblew999/plat-draw/internal/geo"
)

// State is the boundary lifecycle state.
type State int

const (
	Idle State = iota
	Drawing
	BoundaryActive
	// Clearing is transient and never outlives a single callback.
	Clearing
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Drawing:
		return "drawing"
	case BoundaryActive:
		return "boundary_active"
	case Clearing:
		return "clearing"
	}
	return "unknown"
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// DefaultMarkerTimeout bounds LoadMarkerLibrary.
const DefaultMarkerTimeout = 5 * time.Second

// Options configures a Controller. Zero values fall back to defaults.
type Options struct {
	Tolerance     float64
	FeedbackDelay time.Duration
	Policy        RetryPolicy
	Epsilon       float64
	MarkerTimeout time.Duration

	// InitialBoundary is rendered by Start without running the drawing
	// pipeline.
	InitialBoundary *geo.Boundary

	Listener Listener
	Observer Observer
	Clock    clock.Clock
	Logger   *slog.Logger

	// Go runs blocking host calls off the event loop. Defaults to a new
	// goroutine.
	Go func(func())
}

func (o *Options) defaults() {
	if o.Tolerance <= 0 {
		o.Tolerance = geo.DefaultTolerance
	}
	if o.FeedbackDelay <= 0 {
		o.FeedbackDelay = DefaultFeedbackDelay
	}
	if o.Policy == (RetryPolicy{}) {
		o.Policy = DefaultRetryPolicy
	}
	if o.Epsilon <= 0 {
		o.Epsilon = DefaultEpsilon
	}
	if o.MarkerTimeout <= 0 {
		o.MarkerTimeout = DefaultMarkerTimeout
	}
	if o.Observer == nil {
		o.Observer = nopObserver{}
	}
	if o.Clock == nil {
		o.Clock = clock.New()
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.Go == nil {
		o.Go = func(fn func()) { go fn() }
	}
}

// Controller owns the boundary lifecycle. Its exported methods may be called
// from any goroutine; the work runs on the controller's event loop. While
// the state is anything but Idle the controller exclusively owns the host
// map's viewport and the overlays it created.
type Controller struct {
	host HostMap
	opts Options
	log  *slog.Logger
	loop EventLoop

	surface *Surface
	stab    *Stabilizer

	state    State
	boundary *geo.Boundary
	// initial is the supplied boundary until it is first rendered or
	// replaced. A cancelled draw re-commits it.
	initial  *geo.Boundary
	overlays []Overlay
	entry    *Snapshot

	// epoch invalidates async results whenever the lifecycle moves on.
	epoch      uint64
	committing bool
	abortLoad  context.CancelFunc

	unsubscribe func()
	closed      bool

	mu          sync.RWMutex
	pubState    State
	pubBoundary *geo.Boundary
}

// NewController wires the capture surface and stabilizer to host.
func NewController(host HostMap, opts Options) *Controller {
	opts.defaults()
	c := &Controller{
		host: host,
		opts: opts,
		log:  opts.Logger.With("component", "draw"),
	}
	c.stab = NewStabilizer(host, opts.Clock, c.loop.Post, opts.Policy, opts.Epsilon, c.log, opts.Observer)
	c.surface = newSurface(host, opts.Clock, c.loop.Post, opts.Tolerance, opts.FeedbackDelay, c.log)
	c.surface.complete = c.onGestureComplete
	c.surface.discard = c.onGestureDiscarded
	return c
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.pubState
}

// Boundary returns the active boundary, or nil.
func (c *Controller) Boundary() *geo.Boundary {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.pubBoundary
}

// Start subscribes to host map events and renders the initial boundary, if
// one was supplied.
func (c *Controller) Start() {
	c.loop.Post(func() {
		if c.unsubscribe != nil || c.closed {
			return
		}
		c.unsubscribe = c.host.Subscribe(func(ev MapEvent) {
			c.loop.Post(func() { c.stab.HandleEvent(ev) })
		})
		if b := c.opts.InitialBoundary; b != nil {
			c.initial = b
			snap, err := c.stab.Capture(Idle)
			var sp *Snapshot
			if err == nil {
				sp = &snap
			}
			c.commit(b, sp, Idle, false)
		}
	})
}

// EnterDrawMode mounts the capture surface.
func (c *Controller) EnterDrawMode() { c.loop.Post(c.enterDrawMode) }

// Cancel aborts drawing. The previous boundary, if any, stays active.
func (c *Controller) Cancel() { c.loop.Post(c.cancel) }

// Clear removes the active boundary.
func (c *Controller) Clear() { c.loop.Post(c.clear) }

// HandlePointer forwards a pointer sample to the capture surface.
func (c *Controller) HandlePointer(ev PointerEvent) {
	c.loop.Post(func() {
		if c.state != Drawing || c.committing || !c.surface.Mounted() {
			return
		}
		c.surface.Handle(ev)
	})
}

// HandleMapEvent feeds a host event to the stabilizer. Hosts that deliver
// events through Subscribe do not need to call this.
func (c *Controller) HandleMapEvent(ev MapEvent) {
	c.loop.Post(func() { c.stab.HandleEvent(ev) })
}

// Close tears everything down and removes every overlay the controller
// created.
func (c *Controller) Close() {
	c.loop.Call(func() {
		if c.closed {
			return
		}
		c.closed = true
		c.invalidate()
		c.surface.Unmount()
		c.stab.Release()
		c.removeOwned()
		c.boundary = nil
		c.initial = nil
		if c.unsubscribe != nil {
			c.unsubscribe()
			c.unsubscribe = nil
		}
		c.setState(Idle)
	})
}

func (c *Controller) enterDrawMode() {
	if c.closed || c.state == Drawing {
		return
	}
	c.invalidate()

	c.entry = nil
	if snap, err := c.stab.Capture(c.state); err == nil {
		c.entry = &snap
		c.stab.Hold(snap)
	} else {
		c.log.Debug("entering draw mode without snapshot", "error", err)
	}

	c.surface.Mount()
	c.setState(Drawing)
	if c.opts.Listener.OnDrawStart != nil {
		c.opts.Listener.OnDrawStart()
	}
}

func (c *Controller) onGestureComplete(vertices []geo.GeoPoint) {
	if c.state != Drawing || c.committing {
		return
	}
	b, err := geo.NewBoundary(vertices)
	if err != nil {
		c.onGestureDiscarded(err)
		return
	}
	c.commit(b, c.entry, Drawing, true)
}

func (c *Controller) onGestureDiscarded(reason error) {
	c.log.Debug("gesture discarded", "reason", reason)
	c.opts.Observer.GestureDiscarded(discardReason(reason))
}

func discardReason(err error) string {
	switch {
	case errors.Is(err, geo.ErrBoundsUnavailable):
		return "bounds_unavailable"
	case errors.Is(err, geo.ErrInsufficientVertices):
		return "insufficient_vertices"
	}
	return "other"
}

// commit waits for marker support off the loop, then renders b. expect is
// the state the lifecycle must still be in when the load resolves. Drawn
// boundaries wait at most MarkerTimeout; the initial boundary waits until a
// client reports markers or the commit is invalidated.
func (c *Controller) commit(b *geo.Boundary, snap *Snapshot, expect State, drawn bool) {
	c.epoch++
	epoch := c.epoch
	c.committing = true

	var (
		ctx    context.Context
		cancel context.CancelFunc
	)
	if drawn {
		ctx, cancel = context.WithTimeout(context.Background(), c.opts.MarkerTimeout)
	} else {
		ctx, cancel = context.WithCancel(context.Background())
	}
	c.abortLoad = cancel

	c.opts.Go(func() {
		err := c.host.LoadMarkerLibrary(ctx)
		cancel()
		c.loop.Post(func() {
			if epoch != c.epoch || c.state != expect {
				c.log.Debug("dropping stale boundary commit", "epoch", epoch)
				return
			}
			c.committing = false
			c.abortLoad = nil
			c.install(b, snap, err, drawn)
		})
	})
}

func (c *Controller) install(b *geo.Boundary, snap *Snapshot, loadErr error, drawn bool) {
	if loadErr != nil {
		c.fail(fmt.Errorf("%w: load marker library: %w", ErrOverlayCreation, loadErr), snap)
		return
	}

	created, err := c.render(b)
	if err != nil {
		c.removeAll(created)
		c.fail(err, snap)
		return
	}

	c.removeOwned()
	c.overlays = created
	c.boundary = b
	c.initial = nil

	c.surface.Unmount()
	if snap != nil {
		c.stab.Hold(*snap)
	}
	c.setState(BoundaryActive)
	c.opts.Observer.BoundaryCommitted()
	c.log.Info("boundary active",
		"vertices", len(b.Vertices()),
		"center_lat", b.Center().Lat,
		"center_lng", b.Center().Lng,
		"radius_m", b.Radius(),
	)

	c.emitBoundaryChange(true)
	if drawn && c.opts.Listener.OnDrawComplete != nil {
		c.opts.Listener.OnDrawComplete(b)
	}
}

// render creates the polygon, rectangle and center marker. Overlays created
// before a failure are returned so the caller can remove them.
func (c *Controller) render(b *geo.Boundary) (created []Overlay, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: host panic: %v", ErrOverlayCreation, r)
		}
	}()

	steps := []struct {
		kind OverlayKind
		add  func() (Overlay, error)
	}{
		{OverlayPolygon, func() (Overlay, error) { return c.host.AddPolygon(b.Vertices()) }},
		{OverlayRectangle, func() (Overlay, error) { return c.host.AddRectangle(b.Rect()) }},
		{OverlayMarker, func() (Overlay, error) { return c.host.AddMarker(b.Center()) }},
	}
	for _, step := range steps {
		o, err := step.add()
		if err != nil {
			return created, fmt.Errorf("%w: add %s: %w", ErrOverlayCreation, step.kind, err)
		}
		created = append(created, o)
	}
	return created, nil
}

// fail rolls back to Idle after an overlay error.
func (c *Controller) fail(err error, snap *Snapshot) {
	c.invalidate()
	had := c.boundary != nil
	c.removeOwned()
	c.boundary = nil
	c.initial = nil

	c.surface.Unmount()
	if snap != nil {
		c.stab.Hold(*snap)
	}
	c.setState(Idle)
	c.opts.Observer.OverlayFailed()
	c.log.Error("boundary rollback", "error", err)

	if c.opts.Listener.OnError != nil {
		c.opts.Listener.OnError(err)
	}
	if had {
		c.emitBoundaryChange(false)
	}
}

func (c *Controller) cancel() {
	if c.state != Drawing {
		return
	}
	c.invalidate()
	c.surface.Unmount()
	if c.entry != nil {
		c.stab.Hold(*c.entry)
	}

	switch {
	case c.boundary != nil:
		c.setState(BoundaryActive)
	case c.initial != nil:
		c.setState(Idle)
		c.commit(c.initial, c.entry, Idle, false)
	default:
		c.setState(Idle)
	}
	if c.opts.Listener.OnCancel != nil {
		c.opts.Listener.OnCancel()
	}
}

func (c *Controller) clear() {
	switch c.state {
	case Idle:
		if c.initial != nil {
			c.invalidate()
			c.initial = nil
		}
		return
	case Clearing:
		return
	case Drawing:
		c.invalidate()
		c.surface.Unmount()
		c.initial = nil
		if c.boundary == nil {
			if c.entry != nil {
				c.stab.Hold(*c.entry)
			}
			c.setState(Idle)
			return
		}
	}

	c.setState(Clearing)
	_ = c.stab.Guard(Clearing, func() error {
		c.removeOwned()
		return nil
	})
	c.boundary = nil
	c.setState(Idle)
	c.emitBoundaryChange(false)
}

// invalidate drops any in-flight commit.
func (c *Controller) invalidate() {
	c.epoch++
	c.committing = false
	if c.abortLoad != nil {
		c.abortLoad()
		c.abortLoad = nil
	}
}

func (c *Controller) removeOwned() {
	c.removeAll(c.overlays)
	c.overlays = nil
}

func (c *Controller) removeAll(overlays []Overlay) {
	for _, o := range overlays {
		if err := c.host.RemoveOverlay(o); err != nil {
			c.log.Warn("remove overlay", "id", o.ID, "kind", o.Kind, "error", err)
		}
	}
}

func (c *Controller) emitBoundaryChange(has bool) {
	if c.opts.Listener.OnBoundaryChange != nil {
		c.opts.Listener.OnBoundaryChange(has)
	}
}

func (c *Controller) setState(s State) {
	c.state = s
	c.mu.Lock()
	c.pubState = s
	c.pubBoundary = c.boundary
	c.mu.Unlock()
}
