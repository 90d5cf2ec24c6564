package sim

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
)

// Scheme selects how a worker draws its memory references.
type Scheme int

const (
	// SchemeUniform draws addresses uniformly over the whole address space.
	SchemeUniform Scheme = iota
	// SchemeWeighted favours low page numbers through a harmonic weight table.
	SchemeWeighted
)

// ErrUnknownScheme is returned by ParseScheme for unrecognized selectors.
var ErrUnknownScheme = errors.New("unknown request scheme")

func (s Scheme) String() string {
	switch s {
	case SchemeUniform:
		return "uniform"
	case SchemeWeighted:
		return "weighted"
	default:
		return fmt.Sprintf("Scheme(%d)", int(s))
	}
}

// ParseScheme accepts "uniform" (alias "random", "1") and "weighted" (alias "2").
func ParseScheme(name string) (Scheme, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "uniform", "random", "1":
		return SchemeUniform, nil
	case "weighted", "2":
		return SchemeWeighted, nil
	default:
		return 0, fmt.Errorf("%w %q (want uniform|1 or weighted|2)", ErrUnknownScheme, name)
	}
}

// CumulativeWeights returns w where w[i] = sum_{j=0..i} 1/(j+1).
func CumulativeWeights(pageCount int) []float64 {
	w := make([]float64, pageCount)
	sum := 0.0
	for i := range w {
		sum += 1 / float64(i+1)
		w[i] = sum
	}
	return w
}

// SelectWeightedPage returns the first page whose cumulative weight exceeds r,
// or the last page when none does.
func SelectWeightedPage(weights []float64, r int) int {
	for i, w := range weights {
		if w > float64(r) {
			return i
		}
	}
	return len(weights) - 1
}

// RequestGenerator produces (address, page) pairs for one worker.
// It owns its rng and must only be used from that worker's goroutine.
type RequestGenerator struct {
	scheme    Scheme
	pageCount int
	pageSize  int
	weights   []float64
	rng       *rand.Rand
}

// NewRequestGenerator builds a generator for a pageCount*pageSize address space.
func NewRequestGenerator(scheme Scheme, pageCount, pageSize int, rng *rand.Rand) *RequestGenerator {
	g := &RequestGenerator{scheme: scheme, pageCount: pageCount, pageSize: pageSize, rng: rng}
	if scheme == SchemeWeighted {
		g.weights = CumulativeWeights(pageCount)
	}
	return g
}

// Next draws one reference.
func (g *RequestGenerator) Next() (address uint32, page uint32) {
	switch g.scheme {
	case SchemeWeighted:
		// the draw is over the integer part of the total weight, inclusive
		r := g.rng.Intn(int(g.weights[len(g.weights)-1]) + 1)
		p := SelectWeightedPage(g.weights, r)
		address = uint32(p*g.pageSize + g.rng.Intn(g.pageSize))
		return address, uint32(p)
	default:
		address = uint32(g.rng.Intn(g.pageCount * g.pageSize))
		return address, address / uint32(g.pageSize)
	}
}

// Worker is the request loop of one simulated process. Apart from its
// reference counter it keeps no state between turns.
type Worker struct {
	ID    int
	gen   *RequestGenerator
	limit int
	refs  int
}

// NewWorker creates a worker that makes limit references before terminating.
func NewWorker(id int, gen *RequestGenerator, limit int) *Worker {
	return &Worker{ID: id, gen: gen, limit: limit}
}

// References returns how many requests the worker has produced.
func (w *Worker) References() int {
	return w.refs
}

// Decide builds the reply to one turn token.
func (w *Worker) Decide() Message {
	reply := Message{Target: OrchestratorTarget, WorkerID: w.ID}
	if w.refs >= w.limit {
		reply.Terminate = true
		return reply
	}
	reply.Address, reply.Page = w.gen.Next()
	w.refs++
	return reply
}

// Run serves turn tokens from inbox until it has sent a terminate reply or
// ctx is cancelled.
func (w *Worker) Run(ctx context.Context, inbox <-chan Message, sb *Switchboard) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case turn := <-inbox:
			if turn.Target != w.ID {
				return fmt.Errorf("worker %d received token for %d: %w", w.ID, turn.Target, ErrProtocol)
			}
			reply := w.Decide()
			if err := sb.Send(ctx, reply); err != nil {
				return err
			}
			if reply.Terminate {
				return nil
			}
		}
	}
}
