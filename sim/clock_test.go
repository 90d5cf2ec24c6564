package sim

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClock_Advance_CarriesIntoSeconds(t *testing.T) {
	// GIVEN a clock at 0.999999999
	c := NewClock()
	c.Advance(NanosPerSecond - 1)

	// WHEN two more nanoseconds pass
	got := c.Advance(2)

	// THEN the carry lands in Seconds and Advance returns its argument
	assert.Equal(t, uint32(2), got)
	assert.Equal(t, SimTime{Seconds: 1, Nanoseconds: 1}, c.Now())
}

func TestClock_Advance_LargeStepStaysNormalized(t *testing.T) {
	// GIVEN a fresh clock
	c := NewClock()

	// WHEN advanced by more than four seconds in one step
	c.Advance(4_294_967_295)

	// THEN nanoseconds stay below one second
	now := c.Now()
	assert.Equal(t, uint32(4), now.Seconds)
	assert.Equal(t, uint32(294_967_295), now.Nanoseconds)
	assert.Less(t, now.Nanoseconds, uint32(NanosPerSecond))
}

func TestClock_ConcurrentAdvance_NoLostUpdates(t *testing.T) {
	// GIVEN 8 goroutines each advancing 1000 times by 1ms
	c := NewClock()
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 1000; i++ {
				c.Advance(1_000_000)
			}
		}()
	}
	wg.Wait()

	// THEN the total is exactly 8 seconds
	assert.Equal(t, SimTime{Seconds: 8}, c.Now())
}

func TestSimTime_TotalAndString(t *testing.T) {
	ts := SimTime{Seconds: 3, Nanoseconds: 42}
	assert.Equal(t, int64(3_000_000_042), ts.Total())
	assert.Equal(t, "3.000000042", ts.String())
	assert.Equal(t, "42.044475748", SimTime{Seconds: 42, Nanoseconds: 44_475_748}.String())
}
