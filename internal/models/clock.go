package models

import (
	"sync"
	"time"
)

// Clock issues version tokens. Every token is a UTC instant at microsecond
// resolution and strictly greater than any token issued or observed before.
type Clock struct {
	mu   sync.Mutex
	last time.Time
	now  func() time.Time
}

func NewClock() *Clock {
	return &Clock{now: time.Now}
}

// NewClockAt is NewClock with a custom time source.
func NewClockAt(now func() time.Time) *Clock {
	return &Clock{now: now}
}

// Next returns a new version token.
func (c *Clock) Next() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	t := c.now().UTC().Truncate(time.Microsecond)
	if !t.After(c.last) {
		t = c.last.Add(time.Microsecond)
	}
	c.last = t
	return t
}

// Observe moves the clock past a version issued elsewhere.
func (c *Clock) Observe(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	t = t.UTC().Truncate(time.Microsecond)
	if t.After(c.last) {
		c.last = t
	}
}
