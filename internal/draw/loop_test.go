package draw

import (
	"sync"
	"testing"
)

func TestEventLoopRunsNestedPostsInOrder(t *testing.T) {
	var l EventLoop
	var got []int

	l.Post(func() {
		got = append(got, 1)
		l.Post(func() { got = append(got, 3) })
		got = append(got, 2)
	})

	want := []int{1, 2, 3}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestEventLoopSerializesGoroutines(t *testing.T) {
	var l EventLoop
	var wg sync.WaitGroup
	running, overlaps, total := 0, 0, 0

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.Call(func() {
				running++
				if running > 1 {
					overlaps++
				}
				total++
				running--
			})
		}()
	}
	wg.Wait()

	l.Call(func() {
		if overlaps != 0 {
			t.Errorf("overlapping callbacks: %d", overlaps)
		}
		if total != 50 {
			t.Errorf("ran %d callbacks, want 50", total)
		}
	})
}
