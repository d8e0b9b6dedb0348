// Package testutil provides deterministic test fixtures shared across
// package test suites.
package testutil

import (
	"sync"
	"time"
)

// Epoch is the fixed starting instant for deterministic clocks. Tests
// that assert on timestamps or last-write-wins ordering derive every
// instant from it.
var Epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// Clock is a thread-safe deterministic time source: every Now() call
// advances by a fixed step, so repeated runs of the same scenario produce
// identical timestamps and identical write ordering.
type Clock struct {
	mu   sync.Mutex
	now  time.Time
	step time.Duration
}

// NewClock returns a Clock starting at start, advancing by step per Now()
// call. A zero start uses Epoch; a zero step uses one second.
func NewClock(start time.Time, step time.Duration) *Clock {
	if start.IsZero() {
		start = Epoch
	}
	if step == 0 {
		step = time.Second
	}
	return &Clock{now: start, step: step}
}

// Now returns the current instant and advances the clock.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.now
	c.now = c.now.Add(c.step)
	return t
}

// Peek returns the instant the next Now() call will produce.
func (c *Clock) Peek() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance jumps the clock forward without producing an instant.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Reset rewinds the clock to start for scenario reuse.
func (c *Clock) Reset(start time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if start.IsZero() {
		start = Epoch
	}
	c.now = start
}
