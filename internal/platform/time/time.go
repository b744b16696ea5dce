// Package time provides a clock seam so time driven code can be tested without sleeping
package time

import (
	"sync"
	"time"
)

// Clock is the time source used by the governor, cache and orchestrator
type Clock interface {
	Now() time.Time
}

// System is the wall clock
var System Clock = systemClock{}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Fake is a manually advanced clock for tests
type Fake struct {
	mu  sync.Mutex
	now time.Time
}

// NewFake returns a fake clock set to start
func NewFake(start time.Time) *Fake { return &Fake{now: start} }

// Now returns the fake time
func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// Advance moves the fake clock forward by d
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

// OrSystem returns c, or the wall clock when c is nil
func OrSystem(c Clock) Clock {
	if c == nil {
		return System
	}
	return c
}
