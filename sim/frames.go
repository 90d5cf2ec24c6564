// sim/frames.go
package sim

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// OutcomeKind distinguishes a resident reference from a page fault.
type OutcomeKind int

const (
	Hit OutcomeKind = iota
	Fault
)

func (k OutcomeKind) String() string {
	if k == Fault {
		return "fault"
	}
	return "hit"
}

// Outcome is the result of routing one memory reference through the allocator.
type Outcome struct {
	Kind      OutcomeKind
	Frame     int      // frame now holding the page
	Evicted   *Mapping // victim displaced to serve a fault on a full memory, nil otherwise
	WroteBack bool     // victim was dirty
}

// FrameAllocator owns physical frames and the eviction order.
// It maintains, for all reachable states:
//
//	valid entries == bitmap.Count() == Refs.Len() == LRU.Len()
//
// and no frame is held by two valid entries. It is driven from the
// orchestrator goroutine only (see State).
type FrameAllocator struct {
	state  *State
	bitmap *FrameBitmap
	// Refs holds every mapped triple in mapping order.
	Refs MappingList
	// LRU holds every mapped triple, least recently touched first.
	LRU MappingList

	scanPolicy string
	cursor     int // next-fit resume point; starts at frame 0
}

// NewFrameAllocator creates an allocator of frameCount free frames over state.
func NewFrameAllocator(state *State, frameCount int, scanPolicy string) *FrameAllocator {
	if !ValidScanPolicies[scanPolicy] {
		panic(fmt.Sprintf("NewFrameAllocator: unknown scan policy %q", scanPolicy))
	}
	if scanPolicy == "" {
		scanPolicy = ScanNextFit
	}
	return &FrameAllocator{
		state:      state,
		bitmap:     NewFrameBitmap(frameCount),
		scanPolicy: scanPolicy,
	}
}

// Bitmap exposes the occupancy bitmap for inspection.
func (fa *FrameAllocator) Bitmap() *FrameBitmap {
	return fa.bitmap
}

// UsedFrames returns the number of occupied frames.
func (fa *FrameAllocator) UsedFrames() int {
	return fa.bitmap.Count()
}

// HandleRequest resolves a reference by worker to page.
// A resident page only has its recency refreshed. A non-resident page gets a
// free frame if one exists, otherwise the frame of the LRU head.
// address is informational; the page number is authoritative.
func (fa *FrameAllocator) HandleRequest(worker, page int, address uint32) Outcome {
	entry := fa.state.Entry(worker, page)

	if entry.Valid {
		fa.LRU.Touch(Mapping{Worker: worker, Page: page, Frame: entry.Frame})
		return Outcome{Kind: Hit, Frame: entry.Frame}
	}

	out := Outcome{Kind: Fault}
	frame, ok := fa.findFreeFrame()
	if ok {
		fa.bitmap.Set(frame)
	} else {
		victim, found := fa.LRU.Head()
		if !found {
			panic(fmt.Sprintf("HandleRequest: no free frame and empty LRU list (used=%d)", fa.bitmap.Count()))
		}
		ve := fa.state.Entry(victim.Worker, victim.Page)
		out.WroteBack = ve.Dirty
		ve.invalidate()
		fa.LRU.Remove(victim)
		fa.Refs.Remove(victim)
		out.Evicted = &victim
		frame = victim.Frame
		logrus.Debugf("evicting %v for worker %d page %d (address %d)", victim, worker, page, address)
	}

	entry.Frame = frame
	entry.Valid = true
	entry.Dirty = entry.Protection == ProtWrite
	m := Mapping{Worker: worker, Page: page, Frame: frame}
	fa.Refs.Append(m)
	fa.LRU.Append(m)
	out.Frame = frame
	return out
}

func (fa *FrameAllocator) findFreeFrame() (int, bool) {
	start := 0
	if fa.scanPolicy == ScanNextFit {
		start = fa.cursor
	}
	frame, ok := fa.bitmap.FindFirstClear(start)
	if ok {
		fa.cursor = (frame + 1) % fa.bitmap.Size()
	}
	return frame, ok
}

// ReleaseWorker frees every frame held by worker and returns the released
// mappings in page order. Calling it for a worker with no mappings is a no-op.
func (fa *FrameAllocator) ReleaseWorker(worker int) []Mapping {
	w := fa.state.Worker(worker)
	var released []Mapping
	for page := range w.Pages {
		e := &w.Pages[page]
		if !e.Valid {
			continue
		}
		m := Mapping{Worker: worker, Page: page, Frame: e.Frame}
		fa.bitmap.Clear(e.Frame)
		fa.Refs.Remove(m)
		fa.LRU.Remove(m)
		e.invalidate()
		released = append(released, m)
	}
	return released
}

// ReleaseAll frees every frame of every worker.
func (fa *FrameAllocator) ReleaseAll() int {
	n := 0
	for id := range fa.state.Workers {
		n += len(fa.ReleaseWorker(id))
	}
	return n
}

// CheckInvariants verifies the bookkeeping identities between page tables,
// bitmap and both lists. It returns the first violation found.
func (fa *FrameAllocator) CheckInvariants() error {
	valid := fa.state.ValidEntries()
	if used := fa.bitmap.Count(); used != valid {
		return fmt.Errorf("bitmap has %d frames set, page tables have %d valid entries", used, valid)
	}
	if fa.Refs.Len() != valid {
		return fmt.Errorf("reference list has %d entries, page tables have %d valid entries", fa.Refs.Len(), valid)
	}
	if fa.LRU.Len() != valid {
		return fmt.Errorf("LRU list has %d entries, page tables have %d valid entries", fa.LRU.Len(), valid)
	}
	owner := make(map[int]Mapping, valid)
	for id := range fa.state.Workers {
		for page, e := range fa.state.Workers[id].Pages {
			if !e.Valid {
				if e.Frame != NoFrame {
					return fmt.Errorf("invalid entry (%d, %d) still holds frame %d", id, page, e.Frame)
				}
				continue
			}
			m := Mapping{Worker: id, Page: page, Frame: e.Frame}
			if prev, dup := owner[e.Frame]; dup {
				return fmt.Errorf("frame %d held by both %v and %v", e.Frame, prev, m)
			}
			owner[e.Frame] = m
			if !fa.bitmap.Get(e.Frame) {
				return fmt.Errorf("frame %d of %v not set in bitmap", e.Frame, m)
			}
			if !fa.Refs.Contains(m) || !fa.LRU.Contains(m) {
				return fmt.Errorf("mapping %v missing from a tracking list", m)
			}
		}
	}
	return nil
}
