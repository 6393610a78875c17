// Package clock provides the time source used by page-lifetime timers.
// Production code uses Real; tests drive a Manual clock to advance simulated time.
package clock

import (
	"sync"
	"time"
)

// Timer is a cancellable scheduled callback
type Timer interface {
	// Stop cancels the timer. It returns false if the timer already fired or was stopped.
	Stop() bool
}

// Clock schedules callbacks
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

// Real is the wall clock
type Real struct{}

// New returns the wall clock
func New() Clock {
	return Real{}
}

// Now returns the current time
func (Real) Now() time.Time {
	return time.Now()
}

// AfterFunc runs f in its own goroutine after d
func (Real) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// periodic re-arms a one-shot timer after every run
type periodic struct {
	clock    Clock
	interval time.Duration
	fn       func()

	mu      sync.Mutex
	current Timer
	stopped bool
}

// Every runs fn every interval until the returned Timer is stopped.
// The next run is scheduled after fn returns, so runs never overlap.
func Every(c Clock, interval time.Duration, fn func()) Timer {
	p := &periodic{clock: c, interval: interval, fn: fn}
	p.mu.Lock()
	p.current = c.AfterFunc(interval, p.fire)
	p.mu.Unlock()
	return p
}

func (p *periodic) fire() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()

	p.fn()

	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.stopped {
		p.current = p.clock.AfterFunc(p.interval, p.fire)
	}
}

// Stop cancels all future runs
func (p *periodic) Stop() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return false
	}
	p.stopped = true
	if p.current != nil {
		p.current.Stop()
	}
	return true
}
