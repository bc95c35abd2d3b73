package draw

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/facebookgo/clock"

	"github.com/joeblew999/plat-draw/internal/geo"
)

// DefaultEpsilon is the center drift, in degrees, that triggers a correction.
const DefaultEpsilon = 1e-4

// Snapshot is the viewport captured before an operation that may make the
// host map recenter or rezoom on its own.
type Snapshot struct {
	Viewport   geo.Viewport `json:"viewport"`
	CapturedAt State        `json:"capturedAt"`
}

// Drifted reports whether v differs from the snapshot beyond eps or by any
// zoom step.
func (s Snapshot) Drifted(v geo.Viewport, eps float64) bool {
	if v.Zoom != s.Viewport.Zoom {
		return true
	}
	return math.Abs(v.Center.Lat-s.Viewport.Center.Lat) > eps ||
		math.Abs(v.Center.Lng-s.Viewport.Center.Lng) > eps
}

// Stabilizer holds the host map on a snapshot viewport for a bounded window.
// Only one window is open at a time; opening another supersedes it.
type Stabilizer struct {
	host     HostMap
	clk      clock.Clock
	post     func(func())
	policy   RetryPolicy
	epsilon  float64
	log      *slog.Logger
	observer Observer

	snap *Snapshot
	task *retryTask
}

// NewStabilizer creates a stabilizer. post must run callbacks on the same
// event loop that calls the stabilizer.
func NewStabilizer(host HostMap, clk clock.Clock, post func(func()), policy RetryPolicy, epsilon float64, log *slog.Logger, obs Observer) *Stabilizer {
	if epsilon <= 0 {
		epsilon = DefaultEpsilon
	}
	if obs == nil {
		obs = nopObserver{}
	}
	return &Stabilizer{
		host:     host,
		clk:      clk,
		post:     post,
		policy:   policy,
		epsilon:  epsilon,
		log:      log,
		observer: obs,
	}
}

// Capture reads the live viewport.
func (s *Stabilizer) Capture(state State) (Snapshot, error) {
	v, err := s.host.View()
	if err != nil {
		return Snapshot{}, fmt.Errorf("%w: %w", ErrViewportRead, err)
	}
	return Snapshot{Viewport: v, CapturedAt: state}, nil
}

// Hold reasserts snap immediately and keeps correcting drift until the
// window closes.
func (s *Stabilizer) Hold(snap Snapshot) {
	if s.task != nil {
		s.task.stop(OutcomeSuperseded)
	}
	s.snap = &snap
	s.reassert()

	var task *retryTask
	task = newRetryTask(s.policy, s.clk, s.post, s.correct, func(o Outcome) {
		if s.task != task {
			return
		}
		s.log.Debug("stabilization window closed", "outcome", o.String(), "corrections", task.spent)
		s.task = nil
		s.snap = nil
	})
	s.task = task
	task.start()
}

// Guard captures the viewport, runs op, then holds the captured viewport.
// A failed capture skips stabilization but op still runs.
func (s *Stabilizer) Guard(state State, op func() error) error {
	snap, capErr := s.Capture(state)
	err := op()
	if capErr != nil {
		s.log.Debug("skipping stabilization", "error", capErr)
		return err
	}
	s.Hold(snap)
	return err
}

// HandleEvent reacts to host map events while a window is open. A user
// gesture ends the window so deliberate panning is never fought.
func (s *Stabilizer) HandleEvent(ev MapEvent) {
	if s.task == nil || !s.task.running() {
		return
	}
	if ev.Type == EventUserGesture {
		s.task.stop(OutcomeReleased)
		return
	}
	if ev.Drifts() {
		s.correct()
	}
}

// Release closes any open window. Safe to call repeatedly.
func (s *Stabilizer) Release() {
	if s.task != nil {
		s.task.stop(OutcomeReleased)
	}
}

// Active reports whether a window is open.
func (s *Stabilizer) Active() bool {
	return s.task != nil && s.task.running()
}

// Current returns the snapshot being held, if any.
func (s *Stabilizer) Current() (Snapshot, bool) {
	if s.snap == nil {
		return Snapshot{}, false
	}
	return *s.snap, true
}

func (s *Stabilizer) reassert() {
	v, err := s.host.View()
	if err == nil && !s.snap.Drifted(v, s.epsilon) {
		return
	}
	if err := s.host.SetView(s.snap.Viewport); err != nil {
		s.log.Warn("reassert viewport", "error", err)
	}
}

func (s *Stabilizer) correct() {
	if s.snap == nil {
		return
	}
	v, err := s.host.View()
	if err != nil {
		return
	}
	if !s.snap.Drifted(v, s.epsilon) {
		return
	}
	if err := s.host.SetView(s.snap.Viewport); err != nil {
		s.log.Warn("correct viewport drift", "error", err)
		return
	}
	s.observer.ViewCorrected()
	if s.task != nil {
		s.task.spend()
	}
}
