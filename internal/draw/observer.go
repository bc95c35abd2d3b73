package draw

// Observer receives counters from the drawing core. internal/metrics
// provides the Prometheus implementation.
type Observer interface {
	BoundaryCommitted()
	GestureDiscarded(reason string)
	ViewCorrected()
	OverlayFailed()
}

type nopObserver struct{}

func (nopObserver) BoundaryCommitted()      {}
func (nopObserver) GestureDiscarded(string) {}
func (nopObserver) ViewCorrected()          {}
func (nopObserver) OverlayFailed()          {}
