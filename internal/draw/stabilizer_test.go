package draw

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/facebookgo/clock"

	"github.com/joeblew999/plat-draw/internal/geo"
)

type countingObserver struct {
	nopObserver
	corrections int
}

func (o *countingObserver) ViewCorrected() { o.corrections++ }

func newTestStabilizer(host *fakeHost, policy RetryPolicy) (*Stabilizer, *clock.Mock, *countingObserver) {
	var loop EventLoop
	clk := clock.NewMock()
	obs := &countingObserver{}
	s := NewStabilizer(host, clk, loop.Post, policy, DefaultEpsilon, slog.New(slog.NewTextHandler(io.Discard, nil)), obs)
	host.Subscribe(func(ev MapEvent) { loop.Post(func() { s.HandleEvent(ev) }) })
	return s, clk, obs
}

func TestSnapshotDrifted(t *testing.T) {
	snap := Snapshot{Viewport: geo.Viewport{Center: geo.GeoPoint{Lat: 10, Lng: 20}, Zoom: 12}}
	tests := []struct {
		name string
		v    geo.Viewport
		want bool
	}{
		{"same", snap.Viewport, false},
		{"within epsilon", geo.Viewport{Center: geo.GeoPoint{Lat: 10.00005, Lng: 19.99995}, Zoom: 12}, false},
		{"lat drift", geo.Viewport{Center: geo.GeoPoint{Lat: 10.0002, Lng: 20}, Zoom: 12}, true},
		{"lng drift", geo.Viewport{Center: geo.GeoPoint{Lat: 10, Lng: 20.0002}, Zoom: 12}, true},
		{"zoom", geo.Viewport{Center: snap.Viewport.Center, Zoom: 13}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := snap.Drifted(tt.v, DefaultEpsilon); got != tt.want {
				t.Fatalf("Drifted=%v, want %v", got, tt.want)
			}
		})
	}
}

func TestHoldReassertsImmediately(t *testing.T) {
	host := newFakeHost()
	s, _, _ := newTestStabilizer(host, DefaultRetryPolicy)

	snap, err := s.Capture(Idle)
	if err != nil {
		t.Fatal(err)
	}
	host.drift(true)
	s.Hold(snap)

	if snap.Drifted(host.view, DefaultEpsilon) {
		t.Fatal("view not reasserted")
	}
	if !s.Active() {
		t.Fatal("window not open")
	}
}

func TestWindowExpires(t *testing.T) {
	host := newFakeHost()
	s, clk, _ := newTestStabilizer(host, DefaultRetryPolicy)

	snap, _ := s.Capture(Idle)
	s.Hold(snap)
	clk.Add(DefaultRetryPolicy.Window)

	if s.Active() {
		t.Fatal("window still open after expiry")
	}
	if _, ok := s.Current(); ok {
		t.Fatal("snapshot kept after expiry")
	}

	// drift after release is left alone
	host.drift(false)
	if !snap.Drifted(host.view, DefaultEpsilon) {
		t.Fatal("released stabilizer corrected drift")
	}
}

func TestNewWindowSupersedesOld(t *testing.T) {
	host := newFakeHost()
	s, clk, _ := newTestStabilizer(host, DefaultRetryPolicy)

	first, _ := s.Capture(Idle)
	s.Hold(first)

	clk.Add(100 * time.Millisecond)
	second := Snapshot{Viewport: geo.Viewport{Center: geo.GeoPoint{Lat: 1, Lng: 2}, Zoom: 5}, CapturedAt: Clearing}
	s.Hold(second)

	host.drift(true)
	clk.Add(DefaultRetryPolicy.Interval)
	if second.Drifted(host.view, DefaultEpsilon) {
		t.Fatalf("view=%+v, want second snapshot", host.view)
	}

	// the first window's deadline passes without closing the second
	clk.Add(DefaultRetryPolicy.Window - 100*time.Millisecond)
	if !s.Active() {
		t.Fatal("second window closed by the first window's deadline")
	}
	if cur, _ := s.Current(); cur != second {
		t.Fatalf("current=%+v, want second", cur)
	}
}

func TestCorrectionBudgetExhausts(t *testing.T) {
	host := newFakeHost()
	policy := RetryPolicy{Interval: 10 * time.Millisecond, Window: time.Second, MaxCorrections: 3}
	s, clk, obs := newTestStabilizer(host, policy)

	snap, _ := s.Capture(Idle)
	s.Hold(snap)
	for i := 0; i < 5; i++ {
		host.drift(true)
		clk.Add(policy.Interval)
	}

	if s.Active() {
		t.Fatal("window open after budget exhausted")
	}
	if obs.corrections != 3 {
		t.Fatalf("corrections=%d, want 3", obs.corrections)
	}
}

func TestGuardSkipsWhenViewUnreadable(t *testing.T) {
	host := newFakeHost()
	host.viewErr = errHost
	s, _, _ := newTestStabilizer(host, DefaultRetryPolicy)

	ran := false
	if err := s.Guard(Clearing, func() error { ran = true; return nil }); err != nil {
		t.Fatal(err)
	}
	if !ran {
		t.Fatal("op skipped")
	}
	if s.Active() || len(host.setViews) != 0 {
		t.Fatal("stabilized without a snapshot")
	}
}

func TestReleaseIsIdempotent(t *testing.T) {
	host := newFakeHost()
	s, clk, _ := newTestStabilizer(host, DefaultRetryPolicy)

	snap, _ := s.Capture(Idle)
	s.Hold(snap)
	s.Release()
	s.Release()

	host.drift(true)
	clk.Add(DefaultRetryPolicy.Window)
	if !snap.Drifted(host.view, DefaultEpsilon) {
		t.Fatal("released window still corrected")
	}
}
