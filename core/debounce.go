package orchestration

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
)

// pendingToggle is the single outstanding camera request of a session.
//
// Exactly one of the timer callback and the canceller claims it; the claimer
// closes done when it is finished with it.
type pendingToggle struct {
	on     bool
	reason string
	timer  *clock.Timer

	claimed atomic.Bool
	done    chan struct{}
}

func (p *pendingToggle) claim() bool { return p.claimed.CompareAndSwap(false, true) }

type debouncer struct {
	clock  clock.Clock
	window time.Duration
	apply  func(on bool, reason string)

	mu      sync.Mutex
	pending *pendingToggle
	closed  bool
}

func newDebouncer(clk clock.Clock, window time.Duration, apply func(on bool, reason string)) *debouncer {
	return &debouncer{clock: clk, window: window, apply: apply}
}

// Request supersedes any pending toggle and schedules on to be applied once the
// window passes without another request.
func (d *debouncer) Request(on bool, reason string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return
	}

	d.cancelPendingLocked()

	toggle := &pendingToggle{on: on, reason: reason, done: make(chan struct{})}
	toggle.timer = d.clock.AfterFunc(d.window, func() { d.fire(toggle) })
	d.pending = toggle
}

// Pending returns the requested state still waiting out the window.
func (d *debouncer) Pending() (on bool, ok bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.pending == nil || d.pending.claimed.Load() {
		return false, false
	}
	return d.pending.on, true
}

// Close cancels the pending toggle, waiting for an application already in
// flight. Further requests are dropped.
func (d *debouncer) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.closed = true
	d.cancelPendingLocked()
}

func (d *debouncer) cancelPendingLocked() {
	toggle := d.pending
	d.pending = nil
	if toggle == nil {
		return
	}

	toggle.timer.Stop()
	if toggle.claim() {
		close(toggle.done)
		return
	}

	<-toggle.done
}

func (d *debouncer) fire(toggle *pendingToggle) {
	if !toggle.claim() {
		return
	}
	defer close(toggle.done)

	defer func() {
		if recovered := recover(); recovered != nil {
			logger.Error("camera state application panicked", "camera_on", toggle.on, "panic", recovered)
		}
	}()

	d.apply(toggle.on, toggle.reason)
}
