package sim

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/sirupsen/logrus"

	"github.com/inference-sim/pagesim/sim/trace"
)

// Dispatcher runs round-robin passes over the RunQueue. Each pass gives every
// queued worker exactly one exchange, in queue order, and rebuilds the queue
// from the workers that did not terminate.
type Dispatcher struct {
	cfg      Config
	state    *State
	frames   *FrameAllocator
	runq     *RunQueue
	sb       *Switchboard
	log      *EventLog
	metrics  *Metrics
	trace    *trace.SimulationTrace
	recorder Recorder
	idle     *rand.Rand

	seq int
}

// NewDispatcher wires a dispatcher. trace and recorder may be nil.
func NewDispatcher(cfg Config, state *State, frames *FrameAllocator, runq *RunQueue, sb *Switchboard,
	log *EventLog, metrics *Metrics, st *trace.SimulationTrace, recorder Recorder, idle *rand.Rand) *Dispatcher {
	return &Dispatcher{
		cfg:      cfg,
		state:    state,
		frames:   frames,
		runq:     runq,
		sb:       sb,
		log:      log,
		metrics:  metrics,
		trace:    st,
		recorder: recorder,
		idle:     idle,
	}
}

// IdleTick advances the clock by a random 1..IdleTickMaxNs nanoseconds.
func (d *Dispatcher) IdleTick() {
	if d.cfg.IdleTickMaxNs == 0 {
		return
	}
	d.state.Clock.Advance(uint32(d.idle.Int63n(int64(d.cfg.IdleTickMaxNs))) + 1)
}

// RunPass performs one round-robin pass. It returns the ids of workers that
// terminated during the pass. An error means an exchange could not complete
// (cancellation or a protocol violation); the queue is left untouched then.
func (d *Dispatcher) RunPass(ctx context.Context) (terminated []int, err error) {
	ids := d.runq.Snapshot()
	next := make([]int, 0, len(ids))
	for _, id := range ids {
		d.IdleTick()
		reply, err := d.sb.Exchange(ctx, id)
		if err != nil {
			return terminated, fmt.Errorf("exchange with worker %d: %w", id, err)
		}
		d.IdleTick()

		if reply.Terminate {
			d.terminate(id)
			terminated = append(terminated, id)
		} else {
			d.serve(id, reply)
			next = append(next, id)
		}
		d.dumpMemoryMap()
	}
	d.runq.Replace(next)
	return terminated, nil
}

func (d *Dispatcher) serve(id int, reply Message) {
	page := int(reply.Page)
	if page >= d.cfg.PageCount {
		panic(fmt.Sprintf("serve: worker %d requested page %d beyond page count %d", id, page, d.cfg.PageCount))
	}
	entry := d.state.Entry(id, page)
	if entry.Protection == ProtRead {
		d.log.Eventf("P%d requests read of address %d (page %d)", id, reply.Address, page)
	} else {
		d.log.Eventf("P%d requests write of address %d (page %d)", id, reply.Address, page)
	}

	cost := int64(d.state.Clock.Advance(d.cfg.AccessCostNs))
	out := d.frames.HandleRequest(id, page, reply.Address)
	if out.Kind == Fault {
		cost += int64(d.state.Clock.Advance(d.cfg.FaultPenaltyNs))
		d.log.Eventf("address %d (page %d) not resident, page fault", reply.Address, page)
		if out.Evicted != nil {
			v := out.Evicted
			d.log.Eventf("memory full, evicting P%d page %d from frame %d", v.Worker, v.Page, v.Frame)
			if out.WroteBack {
				d.log.Eventf("P%d page %d is dirty, writing back to disk", v.Worker, v.Page)
				if d.cfg.WriteBackPenaltyNs > 0 {
					cost += int64(d.state.Clock.Advance(d.cfg.WriteBackPenaltyNs))
				}
			}
		}
		d.log.Eventf("allocated frame %d to P%d page %d", out.Frame, id, page)
		if entry.Dirty {
			d.log.Eventf("frame %d marked dirty", out.Frame)
		}
	} else {
		d.log.Eventf("address %d (page %d) already in frame %d, serving P%d", reply.Address, page, out.Frame, id)
	}
	d.metrics.RecordAccess(out, cost, d.frames.UsedFrames())

	rec := trace.ExchangeRecord{
		Worker:      id,
		Page:        page,
		Address:     reply.Address,
		Kind:        trace.KindHit,
		Frame:       out.Frame,
		VictimOwner: -1,
		VictimPage:  -1,
		WroteBack:   out.WroteBack,
		CostNs:      cost,
	}
	if out.Kind == Fault {
		rec.Kind = trace.KindFault
	}
	if out.Evicted != nil {
		rec.VictimOwner = out.Evicted.Worker
		rec.VictimPage = out.Evicted.Page
	}
	d.record(rec)
}

func (d *Dispatcher) terminate(id int) {
	released := d.frames.ReleaseWorker(id)
	d.metrics.Terminations++
	d.log.Eventf("P%d has terminated, freed %d frames", id, len(released))
	d.record(trace.ExchangeRecord{
		Worker:      id,
		Page:        -1,
		Kind:        trace.KindTerminate,
		Frame:       -1,
		VictimOwner: -1,
		VictimPage:  -1,
	})
}

func (d *Dispatcher) record(rec trace.ExchangeRecord) {
	d.seq++
	rec.Seq = d.seq
	rec.Clock = d.state.Clock.Now().Total()
	d.trace.RecordExchange(rec)
	if d.recorder != nil {
		if err := d.recorder.Record(rec); err != nil {
			logrus.Warnf("recording exchange %d: %v", rec.Seq, err)
		}
	}
}

func (d *Dispatcher) dumpMemoryMap() {
	if !d.cfg.Debug || !d.log.DebugEnabled() {
		return
	}
	d.log.Debugf("references %s", &d.frames.Refs)
	d.log.Debugf("lru        %s", &d.frames.LRU)
}
