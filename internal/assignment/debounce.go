package assignment

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// Debouncer delays a task until no newer task was scheduled for the configured delay.
// Every scheduled task ends exactly once: either its run func fires, or its drop func is
// called because a newer task or Cancel replaced it.
type Debouncer struct {
	clock clock.Clock
	delay time.Duration

	mu    sync.Mutex
	timer *clock.Timer
	drop  func()
}

func NewDebouncer(clk clock.Clock, delay time.Duration) *Debouncer {
	return &Debouncer{clock: clk, delay: delay}
}

func (d *Debouncer) Schedule(run, drop func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopLocked()

	var t *clock.Timer
	t = d.clock.AfterFunc(d.delay, func() {
		d.mu.Lock()
		if d.timer != t {
			// Replaced between firing and acquiring the lock; drop already ran.
			d.mu.Unlock()
			return
		}
		d.timer, d.drop = nil, nil
		d.mu.Unlock()

		run()
	})
	d.timer, d.drop = t, drop
}

// Cancel drops the pending task, if any.
func (d *Debouncer) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopLocked()
}

func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.timer != nil
}

func (d *Debouncer) stopLocked() {
	if d.timer == nil {
		return
	}
	d.timer.Stop()
	drop := d.drop
	d.timer, d.drop = nil, nil
	if drop != nil {
		drop()
	}
}
