// sim/simulator.go
package sim

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/inference-sim/pagesim/sim/trace"
)

// Option customizes a Simulator at construction.
type Option func(*Simulator)

// WithRecorder persists every exchange through r. The simulator closes r on teardown.
func WithRecorder(r Recorder) Option {
	return func(s *Simulator) { s.recorder = r }
}

// WithTrace keeps an in-memory exchange trace at the given level.
func WithTrace(level trace.TraceLevel) Option {
	return func(s *Simulator) { s.Trace = trace.NewSimulationTrace(trace.TraceConfig{Level: level}) }
}

// WithLogPrefix sets the prefix of every event log line.
func WithLogPrefix(prefix string) Option {
	return func(s *Simulator) { s.logPrefix = prefix }
}

// Simulator is the orchestrator: it owns the shared state, the allocator, the
// run queue and the worker goroutines, and drives spawn/dispatch/reap cycles
// until the termination predicate holds.
type Simulator struct {
	Config     Config
	State      *State
	Frames     *FrameAllocator
	RunQ       *RunQueue
	Lifecycle  *Lifecycle
	Dispatcher *Dispatcher
	Metrics    *Metrics
	Trace      *trace.SimulationTrace
	Log        *EventLog

	rng       *PartitionedRNG
	scheme    Scheme
	sb        *Switchboard
	recorder  Recorder
	logPrefix string

	workerCtx     context.Context
	cancelWorkers context.CancelFunc
	workers       sync.WaitGroup
	exited        chan int

	teardownOnce sync.Once
}

// NewSimulator validates cfg and builds a simulator whose event log writes to
// out. Setup errors are returned before any worker exists.
func NewSimulator(cfg Config, out io.Writer, opts ...Option) (*Simulator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	scheme, err := ParseScheme(cfg.Scheme)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = io.Discard
	}

	rng := NewPartitionedRNG(NewSimulationKey(cfg.Seed))
	state := NewState(cfg.MaxConcurrent, cfg.PageCount, rng.ForSubsystem(SubsystemProtection))
	frames := NewFrameAllocator(state, cfg.FrameCount, cfg.ScanPolicy)
	runq := &RunQueue{}

	s := &Simulator{
		Config:    cfg,
		State:     state,
		Frames:    frames,
		RunQ:      runq,
		Lifecycle: NewLifecycle(cfg, state, frames, runq, rng),
		Metrics:   NewMetrics(),
		rng:       rng,
		scheme:    scheme,
		sb:        NewSwitchboard(cfg.MaxConcurrent),
		exited:    make(chan int, cfg.MaxConcurrent),
		logPrefix: "pagesim",
	}
	for _, opt := range opts {
		opt(s)
	}
	s.Log = NewEventLog(out, s.logPrefix, state.Clock, cfg.Debug)
	s.Dispatcher = NewDispatcher(cfg, state, frames, runq, s.sb, s.Log, s.Metrics, s.Trace, s.recorder,
		rng.ForSubsystem(SubsystemIdle))
	return s, nil
}

// Run drives the simulation until every worker has exited (see
// Lifecycle.Done). The configured timeout stops further spawns; cancelling ctx
// forces shutdown: live workers are cancelled, every frame is released and
// the summary is still produced. Run returns nil in both cases; an error means
// the protocol broke down.
func (s *Simulator) Run(ctx context.Context) (err error) {
	s.workerCtx, s.cancelWorkers = context.WithCancel(ctx)
	defer s.teardown()

	if s.Config.Timeout > 0 {
		timer := time.AfterFunc(s.Config.Timeout, func() {
			logrus.Infof("timeout of %s reached, no more workers will be spawned", s.Config.Timeout)
			s.Lifecycle.RequestShutdown()
		})
		defer timer.Stop()
	}

	logrus.Infof("starting simulation: %d frames, %d pages/worker, scheme=%s, scan=%s",
		s.Config.FrameCount, s.Config.PageCount, s.scheme, s.Config.ScanPolicy)

	for {
		if ctx.Err() != nil {
			s.interrupted()
			return nil
		}
		if id, ok := s.Lifecycle.MaybeSpawn(); ok {
			s.launch(id)
		}
		s.Dispatcher.IdleTick()

		if _, err := s.Dispatcher.RunPass(ctx); err != nil {
			if ctx.Err() != nil {
				s.interrupted()
				return nil
			}
			return err
		}
		s.Dispatcher.IdleTick()

		s.reap()
		if s.Lifecycle.Done() {
			break
		}
	}
	logrus.Infof("simulation finished at %s", s.State.Clock.Now())
	return nil
}

func (s *Simulator) interrupted() {
	s.Metrics.Interrupted = true
	s.Log.Eventf("interrupted, terminating %d live workers", s.Lifecycle.Active())
}

// launch starts the goroutine of a freshly admitted worker.
func (s *Simulator) launch(id int) {
	ordinal := s.Lifecycle.Spawned() - 1
	gen := NewRequestGenerator(s.scheme, s.Config.PageCount, s.Config.PageSize, s.rng.ForSubsystem(SubsystemWorker(ordinal)))
	w := NewWorker(id, gen, s.Config.ReferenceLimit)
	inbox := s.sb.Open(id)

	s.workers.Add(1)
	go func() {
		defer s.workers.Done()
		if err := w.Run(s.workerCtx, inbox, s.sb); err != nil && !errors.Is(err, context.Canceled) {
			logrus.Errorf("worker %d: %v", id, err)
		}
		s.exited <- id
	}()
	s.Log.Eventf("P%d created (%s)", id, s.State.Worker(id).ExternalID)
}

// reap accounts for every worker goroutine that has returned so far.
func (s *Simulator) reap() {
	for {
		select {
		case id := <-s.exited:
			s.sb.Close(id)
			released := s.Lifecycle.Reap(id)
			if len(released) > 0 {
				s.Log.Eventf("P%d reaped, reclaimed %d frames", id, len(released))
			}
		default:
			return
		}
	}
}

// teardown cancels and waits for every worker, releases all frames and
// closes the recorder. It is idempotent and safe after a partial setup.
func (s *Simulator) teardown() {
	s.teardownOnce.Do(func() {
		if s.cancelWorkers != nil {
			s.cancelWorkers()
		}
		s.workers.Wait()
		s.reap()
		s.RunQ.Replace(nil)
		if n := s.Frames.ReleaseAll(); n > 0 {
			logrus.Debugf("teardown released %d frames", n)
		}
		if s.recorder != nil {
			if err := s.recorder.Close(); err != nil {
				logrus.Warnf("closing recorder: %v", err)
			}
		}
		s.Metrics.WorkersSpawned = s.Lifecycle.Spawned()
		s.Metrics.WorkersExited = s.Lifecycle.Exited()
		s.Metrics.SystemTime = s.State.Clock.Now()
	})
}

// PrintSummary writes the statistics summary to the event log sink.
func (s *Simulator) PrintSummary() {
	fmt.Fprintln(s.Log.Writer())
	s.Metrics.Print(s.Log.Writer())
}
