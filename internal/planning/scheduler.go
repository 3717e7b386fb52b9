package planning

import (
	"sync"
	"time"
)

// Handle is a pending scheduled call.
type Handle interface {
	Cancel()
}

// Scheduler runs fn once after delay. Implementations must run fn on a goroutine other than
// the one calling Schedule, or later from an explicit pump (tests).
type Scheduler interface {
	Schedule(delay time.Duration, fn func()) Handle
}

type timerScheduler struct{}

// SystemScheduler schedules with time.AfterFunc.
func SystemScheduler() Scheduler { return timerScheduler{} }

func (timerScheduler) Schedule(delay time.Duration, fn func()) Handle {
	return timerHandle{t: time.AfterFunc(delay, fn)}
}

type timerHandle struct{ t *time.Timer }

func (h timerHandle) Cancel() { h.t.Stop() }

// Debouncer coalesces bursts of Trigger calls into one call of fn, delay after the last
// Trigger. A Trigger cancels whatever is pending and schedules anew.
type Debouncer struct {
	sched Scheduler
	delay time.Duration
	fn    func()

	mu      sync.Mutex
	pending Handle
	gen     uint64
	stopped bool
}

func NewDebouncer(sched Scheduler, delay time.Duration, fn func()) *Debouncer {
	if sched == nil {
		sched = SystemScheduler()
	}
	return &Debouncer{sched: sched, delay: delay, fn: fn}
}

func (d *Debouncer) Trigger() { d.TriggerIn(d.delay) }

// TriggerIn is Trigger with a one-off delay.
func (d *Debouncer) TriggerIn(delay time.Duration) {
	if d == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	if d.pending != nil {
		d.pending.Cancel()
	}
	d.gen++
	gen := d.gen
	d.pending = d.sched.Schedule(delay, func() { d.fire(gen) })
}

func (d *Debouncer) fire(gen uint64) {
	d.mu.Lock()
	// A Cancel can lose the race with a timer that already fired.
	if gen != d.gen || d.pending == nil || d.stopped {
		d.mu.Unlock()
		return
	}
	d.pending = nil
	d.mu.Unlock()
	d.fn()
}

// Pending reports whether a call is scheduled.
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending != nil
}

// Cancel drops the pending call, if any, and reports whether there was one.
func (d *Debouncer) Cancel() bool {
	if d == nil {
		return false
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.pending == nil {
		return false
	}
	d.pending.Cancel()
	d.pending = nil
	d.gen++
	return true
}

// Flush runs the pending call now, on the caller's goroutine.
func (d *Debouncer) Flush() bool {
	if !d.Cancel() {
		return false
	}
	d.fn()
	return true
}

// Stop cancels the pending call and ignores later triggers.
func (d *Debouncer) Stop() {
	if d == nil {
		return
	}
	d.Cancel()
	d.mu.Lock()
	d.stopped = true
	d.mu.Unlock()
}
