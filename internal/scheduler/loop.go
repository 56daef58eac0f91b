package scheduler

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Step runs one cycle of a Loop and returns the delay before the next cycle.
// Returning a non-positive delay ends the loop.
type Step func() time.Duration

// Loop is a self-rescheduling task. Each cycle decides its own next delay, so
// a delay read from live configuration takes effect on the following cycle.
type Loop struct {
	name  string
	step  Step
	timer *Timer

	mu      sync.Mutex
	stopped bool
	// rescheduled counts Reschedule calls; a cycle that sees it move while
	// its step ran keeps the newer schedule.
	rescheduled uint64
}

// NewLoop builds a loop that is not running yet.
func NewLoop(clock clockwork.Clock, name string, step Step) *Loop {
	return &Loop{name: name, step: step, timer: NewTimer(clock)}
}

// Name returns the loop's name for logs.
func (l *Loop) Name() string { return l.name }

// Start runs the first cycle immediately on the caller's goroutine and arms
// the next one.
func (l *Loop) Start() {
	l.mu.Lock()
	l.stopped = false
	l.mu.Unlock()
	l.cycle()
}

// StartAfter arms the first cycle after d instead of running it now.
func (l *Loop) StartAfter(d time.Duration) {
	l.mu.Lock()
	l.stopped = false
	l.mu.Unlock()
	l.timer.Reset(d, l.cycle)
}

// Stop cancels the pending cycle. A cycle already running completes but does
// not re-arm.
func (l *Loop) Stop() {
	l.mu.Lock()
	l.stopped = true
	l.mu.Unlock()
	l.timer.Stop()
}

// Reschedule replaces the pending cycle with one after d. It has no effect
// on a stopped loop.
func (l *Loop) Reschedule(d time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.stopped {
		return
	}
	l.rescheduled++
	l.timer.Reset(d, l.cycle)
}

// Trigger cancels the pending cycle and runs one now on the caller's
// goroutine.
func (l *Loop) Trigger() {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return
	}
	l.timer.Stop()
	l.mu.Unlock()
	l.cycle()
}

func (l *Loop) cycle() {
	l.mu.Lock()
	seen := l.rescheduled
	l.mu.Unlock()

	next := l.step()

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.stopped || next <= 0 || l.rescheduled != seen {
		return
	}
	l.timer.Reset(next, l.cycle)
}
