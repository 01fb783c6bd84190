package session

import "time"

// Clock is the Agent Session's monotone context clock, injectable for
// tests (spec.md §4.5 "a monotone context clock (injectable for tests)").
// Only Now is needed: round advancement is the session's own counter, not
// the clock's — the clock exists solely to stamp runtime.datetime and
// startup_at/started_at/finished_at epoch-ms fields deterministically.
type Clock interface {
	Now() time.Time
}

// SystemClock is the default Clock backed by time.Now.
type SystemClock struct{}

// Now implements Clock.
func (SystemClock) Now() time.Time { return time.Now() }

// FixedClock is a test Clock that always returns the same instant unless
// advanced.
type FixedClock struct {
	At time.Time
}

// Now implements Clock.
func (c *FixedClock) Now() time.Time { return c.At }

// Advance moves the fixed instant forward by d.
func (c *FixedClock) Advance(d time.Duration) { c.At = c.At.Add(d) }
