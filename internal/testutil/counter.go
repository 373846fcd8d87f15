package testutil

import "sync"

// Counter is a thread-safe monotonic counter for deterministic ids.
//
// Unlike journal.Clock, Counter can be reset so the same scenario can run
// several times with identical values.
type Counter struct {
	mu sync.Mutex
	n  int64
}

// Next increments and returns the counter. The first call returns 1.
func (c *Counter) Next() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.n++
	return c.n
}

// Current returns the last value handed out without incrementing.
func (c *Counter) Current() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}

// Reset returns the counter to 0.
func (c *Counter) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.n = 0
}
