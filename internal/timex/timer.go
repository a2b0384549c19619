package timex

import (
	"sync"
	"time"
)

// CancellableTimer owns at most one pending callback.
type CancellableTimer struct {
	clock Clock

	mu    sync.Mutex
	timer Timer
	gen   uint64
}

// NewCancellableTimer returns an idle timer scheduling on clock.
func NewCancellableTimer(clock Clock) *CancellableTimer {
	if clock == nil {
		clock = Real()
	}
	return &CancellableTimer{clock: clock}
}

// Start cancels any pending callback and schedules fn after d.
func (t *CancellableTimer) Start(d time.Duration, fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.stopLocked()
	gen := t.gen
	t.timer = t.clock.AfterFunc(d, func() {
		t.mu.Lock()
		if t.gen != gen {
			t.mu.Unlock()
			return
		}
		t.timer = nil
		t.gen++
		t.mu.Unlock()
		fn()
	})
}

// Cancel stops the pending callback. It reports whether one was pending.
func (t *CancellableTimer) Cancel() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopLocked()
}

// Pending reports whether a callback is scheduled and has not started.
func (t *CancellableTimer) Pending() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.timer != nil
}

func (t *CancellableTimer) stopLocked() bool {
	t.gen++
	if t.timer == nil {
		return false
	}
	t.timer.Stop()
	t.timer = nil
	return true
}
