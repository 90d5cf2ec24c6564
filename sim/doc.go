// Package sim provides the demand-paged virtual memory simulator.
//
// # Reading Guide
//
// Start with these three files to understand the simulation kernel:
//   - frames.go: frame allocation, LRU eviction and write-back on a page fault
//   - dispatch.go: one round-robin pass of turn-token/reply exchanges
//   - simulator.go: the orchestrator loop (spawn, dispatch, reap) and teardown
//
// # Architecture
//
// One orchestrator goroutine owns every piece of mutable state: page tables
// (state.go), the frame bitmap (bitmap.go), the reference and LRU lists
// (mapping.go) and the run queue (runqueue.go). Each simulated process is a
// worker goroutine (worker.go) that only draws references and answers turn
// tokens over the Switchboard (protocol.go). Spawn admission and exit
// accounting live in lifecycle.go.
//
// Simulated time is kept by Clock (clock.go) and stamped on every line of the
// EventLog (eventlog.go). Random streams are partitioned per subsystem
// (rng.go) so a seed reproduces a run up to goroutine reap timing.
//
// Sub-packages:
//   - sim/trace/: in-memory exchange trace and its summary
//   - sim/record/: SQLite persistence of exchange records (a Recorder)
package sim
