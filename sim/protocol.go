package sim

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// OrchestratorTarget is the routing key of replies addressed to the orchestrator.
const OrchestratorTarget = -1

var (
	// ErrNoRoute is returned when a message targets a worker with no open inbox.
	ErrNoRoute = errors.New("no route to target")
	// ErrProtocol is returned when a reply arrives from a worker other than the one addressed.
	ErrProtocol = errors.New("protocol violation")
)

// Message is the single envelope used in both directions.
// A turn token carries only Target and WorkerID; a reply additionally
// carries either Terminate or the requested Address and Page.
type Message struct {
	Target    int // routing key: a logical worker id, or OrchestratorTarget
	WorkerID  int
	Terminate bool
	Address   uint32
	Page      uint32
}

// Switchboard is the addressed channel between the orchestrator and the workers:
// one inbox per logical worker id for turn tokens and one shared reply channel.
// Delivery is FIFO per target and lossless.
type Switchboard struct {
	mu      sync.Mutex
	inboxes map[int]chan Message
	replies chan Message
}

// NewSwitchboard creates a switchboard whose reply channel can hold
// capacity undelivered replies.
func NewSwitchboard(capacity int) *Switchboard {
	return &Switchboard{
		inboxes: make(map[int]chan Message),
		replies: make(chan Message, capacity),
	}
}

// Open creates the inbox of worker id and returns its receive side.
func (sb *Switchboard) Open(id int) <-chan Message {
	sb.mu.Lock()
	defer sb.mu.Unlock()
	if _, ok := sb.inboxes[id]; ok {
		panic(fmt.Sprintf("Open: inbox %d already open", id))
	}
	ch := make(chan Message, 1)
	sb.inboxes[id] = ch
	return ch
}

// Close drops the inbox of worker id. Closing an unknown id is a no-op.
func (sb *Switchboard) Close(id int) {
	sb.mu.Lock()
	defer sb.mu.Unlock()
	delete(sb.inboxes, id)
}

// Send delivers msg to msg.Target, blocking until there is room or ctx ends.
func (sb *Switchboard) Send(ctx context.Context, msg Message) error {
	var ch chan Message
	if msg.Target == OrchestratorTarget {
		ch = sb.replies
	} else {
		sb.mu.Lock()
		ch = sb.inboxes[msg.Target]
		sb.mu.Unlock()
		if ch == nil {
			return fmt.Errorf("send to worker %d: %w", msg.Target, ErrNoRoute)
		}
	}
	select {
	case ch <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ReceiveFrom blocks for the next reply addressed to the orchestrator and
// checks that it was sent by worker from.
func (sb *Switchboard) ReceiveFrom(ctx context.Context, from int) (Message, error) {
	select {
	case msg := <-sb.replies:
		if msg.WorkerID != from {
			return msg, fmt.Errorf("expected reply from worker %d, got worker %d: %w", from, msg.WorkerID, ErrProtocol)
		}
		return msg, nil
	case <-ctx.Done():
		return Message{}, ctx.Err()
	}
}

// Exchange sends a turn token to worker id and waits for its reply.
// The orchestrator never has more than one exchange in flight.
func (sb *Switchboard) Exchange(ctx context.Context, id int) (Message, error) {
	if err := sb.Send(ctx, Message{Target: id, WorkerID: id}); err != nil {
		return Message{}, err
	}
	return sb.ReceiveFrom(ctx, id)
}
