package draw

import "sync"

// EventLoop runs posted callbacks one at a time, in order, to completion.
// A callback posted while another is running is queued and picked up by the
// goroutine that is already draining, so callbacks never overlap and a
// callback may safely post more work.
type EventLoop struct {
	mu      sync.Mutex
	queue   []func()
	running bool
}

// Post enqueues fn. If no drain is in progress the calling goroutine drains
// the queue before returning.
func (l *EventLoop) Post(fn func()) {
	l.mu.Lock()
	l.queue = append(l.queue, fn)
	if l.running {
		l.mu.Unlock()
		return
	}
	l.running = true

	for len(l.queue) > 0 {
		next := l.queue[0]
		l.queue[0] = nil
		l.queue = l.queue[1:]
		l.mu.Unlock()

		next()

		l.mu.Lock()
	}
	l.running = false
	l.mu.Unlock()
}

// Call posts fn and waits for it to run. It must not be called from inside
// a callback.
func (l *EventLoop) Call(fn func()) {
	done := make(chan struct{})
	l.Post(func() {
		defer close(done)
		fn()
	})
	<-done
}
