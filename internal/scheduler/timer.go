package scheduler

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Timer is a one-shot timer whose pending fire can be atomically replaced or
// cancelled. A fire that was already in flight when Reset or Stop ran is
// discarded, so callers never observe a stale callback.
type Timer struct {
	clock clockwork.Clock

	mu      sync.Mutex
	pending clockwork.Timer
	gen     uint64
}

// NewTimer returns an idle timer driven by clock.
func NewTimer(clock clockwork.Clock) *Timer {
	return &Timer{clock: clock}
}

// Reset cancels any pending fire and arms fn to run after d.
func (t *Timer) Reset(d time.Duration, fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.stopLocked()
	gen := t.gen
	t.pending = t.clock.AfterFunc(d, func() {
		if !t.claim(gen) {
			return
		}
		fn()
	})
}

// Stop cancels the pending fire, if any. It reports whether one was pending.
func (t *Timer) Stop() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopLocked()
}

// Pending reports whether a fire is armed and has not started yet.
func (t *Timer) Pending() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pending != nil
}

func (t *Timer) stopLocked() bool {
	t.gen++
	if t.pending == nil {
		return false
	}
	t.pending.Stop()
	t.pending = nil
	return true
}

// claim marks the fire for generation gen as started. It fails when the timer
// was reset or stopped after that fire was armed.
func (t *Timer) claim(gen uint64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if gen != t.gen {
		return false
	}
	t.pending = nil
	return true
}
