package sim

import (
	"fmt"
	"sync"
)

// NanosPerSecond is the carry threshold of the simulated clock.
const NanosPerSecond = 1_000_000_000

// SimTime is a snapshot of the simulated clock.
// Nanoseconds is always in [0, NanosPerSecond).
type SimTime struct {
	Seconds     uint32
	Nanoseconds uint32
}

// Total returns the snapshot as a single nanosecond count.
func (t SimTime) Total() int64 {
	return int64(t.Seconds)*NanosPerSecond + int64(t.Nanoseconds)
}

// String renders the time as seconds with nine fractional digits.
func (t SimTime) String() string {
	return fmt.Sprintf("%d.%09d", t.Seconds, t.Nanoseconds)
}

// Clock is the process-wide simulated clock.
// Every read-modify-write goes through mu so the carry into Seconds is atomic
// with respect to any goroutine that reads the clock.
type Clock struct {
	mu  sync.Mutex
	now SimTime
}

// NewClock returns a clock at 0.0.
func NewClock() *Clock {
	return &Clock{}
}

// Advance adds ns nanoseconds, normalizes, and returns ns.
func (c *Clock) Advance(ns uint32) uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	total := uint64(c.now.Nanoseconds) + uint64(ns)
	c.now.Seconds += uint32(total / NanosPerSecond)
	c.now.Nanoseconds = uint32(total % NanosPerSecond)
	return ns
}

// Now returns the current simulated time.
func (c *Clock) Now() SimTime {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}
