package sim

import (
	"math/rand"
	"sync/atomic"

	"github.com/rs/xid"
)

// Lifecycle decides when workers are spawned and accounts for their exit.
// Creating the goroutine itself is left to the caller of MaybeSpawn.
type Lifecycle struct {
	maxConcurrent int
	totalTarget   int
	jitterMax     int64

	state  *State
	frames *FrameAllocator
	runq   *RunQueue
	gate   *rand.Rand
	prot   *rand.Rand

	active   int
	spawned  int
	exited   int
	lastGate int64 // simulated ns at which the spawn gate last opened

	shutdown atomic.Bool
}

// NewLifecycle wires the manager to the shared state, allocator and run queue.
func NewLifecycle(cfg Config, state *State, frames *FrameAllocator, runq *RunQueue, rng *PartitionedRNG) *Lifecycle {
	return &Lifecycle{
		maxConcurrent: cfg.MaxConcurrent,
		totalTarget:   cfg.TotalTarget,
		jitterMax:     cfg.SpawnJitterMaxNs,
		state:         state,
		frames:        frames,
		runq:          runq,
		gate:          rng.ForSubsystem(SubsystemLifecycle),
		prot:          rng.ForSubsystem(SubsystemProtection),
	}
}

// RequestShutdown stops further spawns. Safe to call from any goroutine.
func (l *Lifecycle) RequestShutdown() {
	l.shutdown.Store(true)
}

// ShutdownRequested reports whether RequestShutdown has been called.
func (l *Lifecycle) ShutdownRequested() bool {
	return l.shutdown.Load()
}

// MaybeSpawn admits a new worker if every guard passes, in order:
// the concurrency cap, the total-spawn cap, the randomized inter-arrival
// gate, and the shutdown flag. The gate threshold is redrawn each time it is
// evaluated. On success the worker has a fresh page table and is queued.
func (l *Lifecycle) MaybeSpawn() (id int, ok bool) {
	if l.active >= l.maxConcurrent {
		return 0, false
	}
	if l.spawned >= l.totalTarget {
		return 0, false
	}
	now := l.state.Clock.Now().Total()
	if now-l.lastGate < l.gate.Int63n(l.jitterMax+1) {
		return 0, false
	}
	if l.ShutdownRequested() {
		return 0, false
	}
	l.lastGate = now

	id = l.state.LowestFreeSlot()
	if id < 0 {
		return 0, false
	}
	l.state.InitWorker(id, xid.New().String(), l.prot)
	l.runq.Enqueue(id)
	l.active++
	l.spawned++
	return id, true
}

// Reap accounts for the exit of worker id: its frames are released, its slot
// becomes free for reuse and the exit counter advances.
func (l *Lifecycle) Reap(id int) []Mapping {
	released := l.frames.ReleaseWorker(id)
	l.state.ClearWorker(id)
	l.active--
	l.exited++
	return released
}

// Done is the termination predicate of the whole simulation.
// After shutdown the run drains in-flight workers; otherwise it waits for
// the total target to exit.
func (l *Lifecycle) Done() bool {
	if l.ShutdownRequested() {
		return l.exited == l.spawned
	}
	return l.exited == l.totalTarget
}

// Active returns the number of spawned but not yet reaped workers.
func (l *Lifecycle) Active() int { return l.active }

// Spawned returns the number of workers spawned so far.
func (l *Lifecycle) Spawned() int { return l.spawned }

// Exited returns the number of reaped workers.
func (l *Lifecycle) Exited() int { return l.exited }
