package queue

import (
	"sync"
	"time"
)

// Precision is the timestamp granularity shared by every store
const Precision = time.Microsecond

// Clock supplies record timestamps
type Clock interface {
	Now() time.Time
}

// MonotonicClock returns UTC times truncated to Precision that strictly
// increase across calls, so that two writes from one process never share
// a timestamp even when the wall clock has not advanced.
type MonotonicClock struct {
	mu   sync.Mutex
	last time.Time
	now  func() time.Time
}

// NewClock returns a MonotonicClock backed by time.Now
func NewClock() *MonotonicClock {
	return &MonotonicClock{now: time.Now}
}

// NewClockFunc returns a MonotonicClock backed by the given source.
// Useful in tests that need to control the wall clock.
func NewClockFunc(now func() time.Time) *MonotonicClock {
	if now == nil {
		now = time.Now
	}
	return &MonotonicClock{now: now}
}

func (c *MonotonicClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	t := c.now().UTC().Truncate(Precision)
	if !t.After(c.last) {
		t = c.last.Add(Precision)
	}
	c.last = t
	return t
}

// defaultClock is shared by stores that are not given an explicit clock
var defaultClock = NewClock()

// DefaultClock returns the process-wide clock
func DefaultClock() Clock {
	return defaultClock
}
