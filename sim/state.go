package sim

import (
	"fmt"
	"math/rand"
)

// Protection is the access right of a page, fixed when the page table is built.
type Protection int

const (
	ProtRead Protection = iota
	ProtWrite
)

func (p Protection) String() string {
	if p == ProtWrite {
		return "write"
	}
	return "read"
}

// NoFrame marks a page table entry with no frame.
const NoFrame = -1

// PageTableEntry is one page of one worker.
// Valid == false implies Frame == NoFrame.
type PageTableEntry struct {
	Frame      int
	Protection Protection
	Dirty      bool
	Valid      bool
}

func (e *PageTableEntry) invalidate() {
	e.Frame = NoFrame
	e.Dirty = false
	e.Valid = false
}

// WorkerRecord is the per-slot process control block.
type WorkerRecord struct {
	ExternalID string // unique for the lifetime of the run; empty when the slot is free
	LogicalID  int
	Pages      []PageTableEntry
}

// InUse reports whether a live worker occupies the slot.
func (w *WorkerRecord) InUse() bool {
	return w.ExternalID != ""
}

// State is the shared simulation state: the clock and one WorkerRecord per
// logical id.
//
// Single-writer invariant: page tables are mutated only by the orchestrator
// goroutine (the dispatcher and the lifecycle manager run on it, and the
// dispatcher talks to exactly one worker at a time). Worker goroutines never
// touch State, so page tables carry no lock. The clock is the one piece that
// is read from other goroutines (event log formatting) and is locked.
type State struct {
	Clock   *Clock
	Workers []WorkerRecord
}

// NewState builds a state with maxWorkers free slots of pageCount invalid
// entries each. Protection bits are drawn from rng, as every slot is
// redrawn on spawn anyway.
func NewState(maxWorkers, pageCount int, rng *rand.Rand) *State {
	s := &State{
		Clock:   NewClock(),
		Workers: make([]WorkerRecord, maxWorkers),
	}
	for i := range s.Workers {
		s.Workers[i] = WorkerRecord{LogicalID: i, Pages: make([]PageTableEntry, pageCount)}
		resetPages(s.Workers[i].Pages, rng)
	}
	return s
}

func resetPages(pages []PageTableEntry, rng *rand.Rand) {
	for j := range pages {
		pages[j] = PageTableEntry{
			Frame:      NoFrame,
			Protection: Protection(rng.Intn(2)),
		}
	}
}

// InitWorker claims slot id for a newly spawned worker and rebuilds its page
// table with fresh random protection bits and every entry invalid.
func (s *State) InitWorker(id int, externalID string, rng *rand.Rand) *WorkerRecord {
	w := s.Worker(id)
	if w.InUse() {
		panic(fmt.Sprintf("InitWorker: slot %d already held by %s", id, w.ExternalID))
	}
	w.ExternalID = externalID
	resetPages(w.Pages, rng)
	return w
}

// ClearWorker frees slot id. Its mappings must have been released already.
func (s *State) ClearWorker(id int) {
	s.Worker(id).ExternalID = ""
}

// Worker returns the record of logical id. Out-of-range ids panic.
func (s *State) Worker(id int) *WorkerRecord {
	if id < 0 || id >= len(s.Workers) {
		panic(fmt.Sprintf("Worker: logical id %d out of range [0, %d)", id, len(s.Workers)))
	}
	return &s.Workers[id]
}

// Entry returns the page table entry of (worker, page). Out-of-range ids panic.
func (s *State) Entry(worker, page int) *PageTableEntry {
	w := s.Worker(worker)
	if page < 0 || page >= len(w.Pages) {
		panic(fmt.Sprintf("Entry: page %d of worker %d out of range [0, %d)", page, worker, len(w.Pages)))
	}
	return &w.Pages[page]
}

// LowestFreeSlot returns the smallest logical id not in use, or -1.
func (s *State) LowestFreeSlot() int {
	for i := range s.Workers {
		if !s.Workers[i].InUse() {
			return i
		}
	}
	return -1
}

// ValidEntries returns the number of valid entries across all workers.
func (s *State) ValidEntries() int {
	n := 0
	for i := range s.Workers {
		for _, e := range s.Workers[i].Pages {
			if e.Valid {
				n++
			}
		}
	}
	return n
}
