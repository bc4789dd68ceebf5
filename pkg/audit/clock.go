package audit

import (
	"sync"
	"time"
)

// Clock supplies entry timestamps
type Clock interface {
	Now() time.Time
}

// MonotonicClock returns UTC times that never go backwards, even if the wall
// clock is stepped back. Equal timestamps are allowed.
type MonotonicClock struct {
	mu   sync.Mutex
	last time.Time
	now  func() time.Time
}

// NewMonotonicClock wraps now, or time.Now when now is nil
func NewMonotonicClock(now func() time.Time) *MonotonicClock {
	if now == nil {
		now = time.Now
	}
	return &MonotonicClock{now: now}
}

// Now returns the current time, clamped to the last returned time
func (c *MonotonicClock) Now() time.Time {
	t := c.now().UTC()

	c.mu.Lock()
	defer c.mu.Unlock()
	if t.Before(c.last) {
		return c.last
	}
	c.last = t
	return t
}
