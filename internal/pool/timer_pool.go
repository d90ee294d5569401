// Package pool recycles the timers that bound waits for transfer
// completion, so blocking bus calls do not allocate a timer each.
package pool

import (
	"sync"
	"time"
)

var timers = sync.Pool{
	New: func() any {
		t := time.NewTimer(time.Hour)
		t.Stop()

		return t
	},
}

// GetTimer returns a timer from the pool that fires after d.
//
// Return it with PutTimer once the wait is over.
func GetTimer(d time.Duration) *time.Timer {
	t, _ := timers.Get().(*time.Timer) // the pool only holds timers
	t.Reset(d)

	return t
}

// PutTimer stops t and returns it to the pool. t must not be used
// afterwards.
func PutTimer(t *time.Timer) {
	if !t.Stop() {
		// fired but not received
		select {
		case <-t.C:
		default:
		}
	}
	timers.Put(t)
}
