package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLifecycle(t *testing.T, cfg Config) (*Lifecycle, *State, *FrameAllocator, *RunQueue) {
	t.Helper()
	rng := NewPartitionedRNG(NewSimulationKey(cfg.Seed))
	s := NewState(cfg.MaxConcurrent, cfg.PageCount, rng.ForSubsystem(SubsystemProtection))
	fa := NewFrameAllocator(s, cfg.FrameCount, cfg.ScanPolicy)
	rq := &RunQueue{}
	return NewLifecycle(cfg, s, fa, rq, rng), s, fa, rq
}

func smallConfig() Config {
	cfg := DefaultConfig()
	cfg.MaxConcurrent = 2
	cfg.TotalTarget = 5
	cfg.PageCount = 4
	cfg.FrameCount = 8
	cfg.SpawnJitterMaxNs = 0
	return cfg
}

func TestLifecycle_MaybeSpawn_ConcurrencyCap(t *testing.T) {
	// GIVEN MaxConcurrent=2 and no spawn gate delay
	l, s, _, rq := newTestLifecycle(t, smallConfig())

	// WHEN two workers have been spawned
	id0, ok0 := l.MaybeSpawn()
	id1, ok1 := l.MaybeSpawn()
	require.True(t, ok0)
	require.True(t, ok1)

	// THEN a third spawn is refused regardless of the other guards
	for i := 0; i < 10; i++ {
		s.Clock.Advance(1_000_000_000)
		_, ok := l.MaybeSpawn()
		assert.False(t, ok)
	}
	assert.Equal(t, []int{id0, id1}, rq.Snapshot())
	assert.Equal(t, 2, l.Active())
	assert.NotEqual(t, s.Worker(id0).ExternalID, s.Worker(id1).ExternalID)
}

func TestLifecycle_MaybeSpawn_TotalTargetCap(t *testing.T) {
	cfg := smallConfig()
	cfg.TotalTarget = 3
	l, _, _, _ := newTestLifecycle(t, cfg)

	spawned := 0
	for i := 0; i < 10; i++ {
		if id, ok := l.MaybeSpawn(); ok {
			spawned++
			l.Reap(id)
		}
	}
	assert.Equal(t, 3, spawned)
	assert.Equal(t, 3, l.Spawned())
	assert.True(t, l.Done())
}

func TestLifecycle_MaybeSpawn_GateNeedsElapsedTime(t *testing.T) {
	// GIVEN a spawn gate threshold drawn from [0, 1ms]
	cfg := smallConfig()
	cfg.SpawnJitterMaxNs = 1_000_000
	l, s, _, _ := newTestLifecycle(t, cfg)

	// WHEN the clock is past the largest possible threshold
	s.Clock.Advance(1_000_001)
	_, ok := l.MaybeSpawn()

	// THEN the gate opens
	assert.True(t, ok)

	// AND reopens only once the clock moves past the threshold again
	s.Clock.Advance(1_000_001)
	_, ok = l.MaybeSpawn()
	assert.True(t, ok)
}

func TestLifecycle_MaybeSpawn_GateClosedBelowThreshold(t *testing.T) {
	// GIVEN the gate stream of a seeded run, replayed independently
	cfg := smallConfig()
	cfg.SpawnJitterMaxNs = 1_000_000
	l, s, _, _ := newTestLifecycle(t, cfg)
	replay := NewPartitionedRNG(NewSimulationKey(cfg.Seed)).ForSubsystem(SubsystemLifecycle)
	first := replay.Int63n(cfg.SpawnJitterMaxNs + 1)
	require.Positive(t, first)

	// WHEN the clock is one nanosecond short of the first threshold
	s.Clock.Advance(uint32(first - 1))
	_, ok := l.MaybeSpawn()

	// THEN the gate stays closed
	assert.False(t, ok)
	assert.Equal(t, 0, l.Spawned())

	// WHEN the clock reaches the threshold drawn for the second attempt
	second := replay.Int63n(cfg.SpawnJitterMaxNs + 1)
	if elapsed := first - 1; second > elapsed {
		s.Clock.Advance(uint32(second - elapsed))
	}
	_, ok = l.MaybeSpawn()

	// THEN it opens, having drawn a fresh threshold on each attempt
	assert.True(t, ok)
	assert.Equal(t, replay.Int63(), l.gate.Int63(), "gate stream out of step: refused attempt did not consume a draw")
}

func TestLifecycle_MaybeSpawn_CapsCheckedBeforeGate(t *testing.T) {
	// GIVEN a lifecycle at its concurrency cap
	cfg := smallConfig()
	cfg.MaxConcurrent = 1
	l, _, _, _ := newTestLifecycle(t, cfg)
	_, ok := l.MaybeSpawn()
	require.True(t, ok)
	replay := NewPartitionedRNG(NewSimulationKey(cfg.Seed)).ForSubsystem(SubsystemLifecycle)
	replay.Int63n(cfg.SpawnJitterMaxNs + 1)

	// WHEN further attempts are refused by the cap
	for i := 0; i < 5; i++ {
		_, ok = l.MaybeSpawn()
		assert.False(t, ok)
	}

	// THEN no gate threshold was drawn for them
	assert.Equal(t, replay.Int63(), l.gate.Int63())
}

func TestLifecycle_MaybeSpawn_ShutdownBlocks(t *testing.T) {
	l, _, _, _ := newTestLifecycle(t, smallConfig())
	l.RequestShutdown()

	_, ok := l.MaybeSpawn()

	assert.False(t, ok)
	assert.True(t, l.ShutdownRequested())
	// nothing was spawned, so the drain is already complete
	assert.True(t, l.Done())
}

func TestLifecycle_Reap_ReleasesFramesAndReusesSlot(t *testing.T) {
	// GIVEN a spawned worker holding two frames
	l, s, fa, _ := newTestLifecycle(t, smallConfig())
	id, ok := l.MaybeSpawn()
	require.True(t, ok)
	fa.HandleRequest(id, 0, 0)
	fa.HandleRequest(id, 1, 1024)

	// WHEN it is reaped
	released := l.Reap(id)

	// THEN its frames are free and the lowest slot is available again
	assert.Len(t, released, 2)
	assert.Equal(t, 0, fa.UsedFrames())
	assert.False(t, s.Worker(id).InUse())
	assert.Equal(t, 0, l.Active())
	assert.Equal(t, 1, l.Exited())

	again, ok := l.MaybeSpawn()
	require.True(t, ok)
	assert.Equal(t, id, again)
	require.NoError(t, fa.CheckInvariants())
}

func TestLifecycle_Done_WaitsForTotalTarget(t *testing.T) {
	cfg := smallConfig()
	cfg.TotalTarget = 2
	l, _, _, _ := newTestLifecycle(t, cfg)
	id0, _ := l.MaybeSpawn()
	id1, _ := l.MaybeSpawn()

	l.Reap(id0)
	assert.False(t, l.Done())
	l.Reap(id1)
	assert.True(t, l.Done())
}

func TestLifecycle_Done_AfterShutdownDrainsSpawned(t *testing.T) {
	cfg := smallConfig()
	cfg.TotalTarget = 10
	l, _, _, _ := newTestLifecycle(t, cfg)
	id, ok := l.MaybeSpawn()
	require.True(t, ok)

	l.RequestShutdown()
	assert.False(t, l.Done())
	l.Reap(id)
	assert.True(t, l.Done())
}
