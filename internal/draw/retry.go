package draw

import (
	"time"

	"github.com/facebookgo/clock"
)

// RetryPolicy bounds a correction window.
type RetryPolicy struct {
	Interval       time.Duration `mapstructure:"interval"`
	Window         time.Duration `mapstructure:"window"`
	MaxCorrections int           `mapstructure:"max_corrections"`
}

// DefaultRetryPolicy checks every 50ms for 600ms and gives up after 20
// corrections.
var DefaultRetryPolicy = RetryPolicy{
	Interval:       50 * time.Millisecond,
	Window:         600 * time.Millisecond,
	MaxCorrections: 20,
}

// Outcome is how a retry task ended.
type Outcome int

const (
	OutcomeRunning Outcome = iota
	// OutcomeExpired: the window elapsed.
	OutcomeExpired
	// OutcomeExhausted: the correction budget ran out.
	OutcomeExhausted
	// OutcomeReleased: stopped early, e.g. the user took over.
	OutcomeReleased
	// OutcomeSuperseded: replaced by a newer task.
	OutcomeSuperseded
)

func (o Outcome) String() string {
	switch o {
	case OutcomeRunning:
		return "running"
	case OutcomeExpired:
		return "expired"
	case OutcomeExhausted:
		return "exhausted"
	case OutcomeReleased:
		return "released"
	case OutcomeSuperseded:
		return "superseded"
	}
	return "unknown"
}

// retryTask calls attempt on every interval tick until the window elapses,
// the budget is spent or Stop is called. On expiry attempt runs one last
// time before finish. Timer callbacks are posted to the event loop and are
// ignored once the task has ended.
type retryTask struct {
	policy  RetryPolicy
	clk     clock.Clock
	post    func(func())
	attempt func()
	finish  func(Outcome)

	spent    int
	outcome  Outcome
	ticker   *clock.Timer
	deadline *clock.Timer
}

func newRetryTask(p RetryPolicy, clk clock.Clock, post func(func()), attempt func(), finish func(Outcome)) *retryTask {
	return &retryTask{policy: p, clk: clk, post: post, attempt: attempt, finish: finish}
}

func (t *retryTask) start() {
	t.deadline = t.clk.AfterFunc(t.policy.Window, func() {
		t.post(t.expire)
	})
	t.arm()
}

func (t *retryTask) arm() {
	if t.policy.Interval <= 0 {
		return
	}
	t.ticker = t.clk.AfterFunc(t.policy.Interval, func() {
		t.post(t.tick)
	})
}

func (t *retryTask) tick() {
	if t.outcome != OutcomeRunning {
		return
	}
	t.attempt()
	if t.outcome == OutcomeRunning {
		t.arm()
	}
}

func (t *retryTask) expire() {
	if t.outcome != OutcomeRunning {
		return
	}
	t.attempt()
	t.stop(OutcomeExpired)
}

// spend records one correction and ends the task when the budget is gone.
func (t *retryTask) spend() {
	if t.outcome != OutcomeRunning {
		return
	}
	t.spent++
	if t.policy.MaxCorrections > 0 && t.spent >= t.policy.MaxCorrections {
		t.stop(OutcomeExhausted)
	}
}

func (t *retryTask) running() bool {
	return t.outcome == OutcomeRunning
}

func (t *retryTask) stop(o Outcome) {
	if t.outcome != OutcomeRunning {
		return
	}
	t.outcome = o
	if t.ticker != nil {
		t.ticker.Stop()
	}
	if t.deadline != nil {
		t.deadline.Stop()
	}
	if t.finish != nil {
		t.finish(o)
	}
}
