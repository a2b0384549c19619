package surfaces

import (
	"sync"
	"time"
)

// View holds the latest committed value of one surface.
type View[T any] struct {
	mu        sync.Mutex
	started   uint64
	committed uint64
	value     T
	set       bool
	updated   time.Time
	dropped   int
}

// begin tags a new load.
func (v *View[T]) begin() uint64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.started++
	return v.started
}

// commit stores value if no newer load has committed yet.
func (v *View[T]) commit(gen uint64, value T, at time.Time) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	if gen <= v.committed {
		v.dropped++
		return false
	}
	v.committed = gen
	v.value = value
	v.set = true
	v.updated = at
	return true
}

// Clear drops the committed value. Loads started before Clear are discarded.
func (v *View[T]) Clear() {
	v.mu.Lock()
	defer v.mu.Unlock()
	var zero T
	v.started++
	v.committed = v.started
	v.value = zero
	v.set = false
	v.updated = time.Time{}
}

// Get returns the committed value and whether any load has committed.
func (v *View[T]) Get() (T, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.value, v.set
}

func (v *View[T]) Updated() time.Time {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.updated
}

// Dropped counts stale loads that were discarded.
func (v *View[T]) Dropped() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.dropped
}
