package testfixtures

import (
	"sync"
	"time"
)

// Clock is a manually driven time source for tests that inject a now func
// into services and background sweeps.
type Clock struct {
	mu  sync.RWMutex
	now time.Time
}

// NewClock returns a clock frozen at start, or at ReferenceTime when start is
// the zero value.
func NewClock(start time.Time) *Clock {
	if start.IsZero() {
		start = ReferenceTime()
	}
	return &Clock{now: start}
}

// Now reports the frozen instant. The clock never ticks on its own; only Set
// and Advance move it.
func (c *Clock) Now() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.now
}

// Current is an alias for Now, used where a test reads the clock without
// implying passage of time.
func (c *Clock) Current() time.Time {
	return c.Now()
}

// NowFunc adapts the clock to the `now func() time.Time` constructor
// parameter the services take. A nil clock degrades to time.Now.
func (c *Clock) NowFunc() func() time.Time {
	if c == nil {
		return time.Now
	}
	return c.Now
}

// Set jumps the clock to t.
func (c *Clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// Advance moves the clock forward by d and returns the new instant.
func (c *Clock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	return c.now
}
