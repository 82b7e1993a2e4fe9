package test

import (
	"sync"
	"time"
)

// Epoch is the starting time of every Clock
var Epoch = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

// Clock is a manually advanced clock
type Clock struct {
	mu sync.Mutex
	t  time.Time
}

// NewClock returns a Clock set to Epoch
func NewClock() *Clock {
	return &Clock{t: Epoch}
}

// Now returns the current fake time
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

// Advance moves the clock forward by d
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// NewClockAt returns a Clock set to t
func NewClockAt(t time.Time) *Clock {
	return &Clock{t: t}
}
