// Implements the RunQueue, the round-robin dispatch order of live workers.
// Workers are enqueued on spawn and re-enqueued after every non-terminal turn.

package sim

import (
	"fmt"
	"strings"
)

// RunQueue represents a FIFO queue of logical worker ids.
// Membership is exactly the set of workers that have not yet sent a terminate reply.
type RunQueue struct {
	queue []int
}

// Enqueue adds a worker id to the back of the queue.
func (rq *RunQueue) Enqueue(id int) {
	rq.queue = append(rq.queue, id)
}

// Dequeue removes and returns the id at the front of the queue.
// ok is false when the queue is empty.
func (rq *RunQueue) Dequeue() (id int, ok bool) {
	if len(rq.queue) == 0 {
		return 0, false
	}
	id = rq.queue[0]
	rq.queue = rq.queue[1:]
	return id, true
}

// Len returns the number of queued workers.
func (rq *RunQueue) Len() int {
	return len(rq.queue)
}

// Snapshot returns a copy of the queue contents, front first.
// A dispatch pass iterates a snapshot so that spawns during the pass
// cannot change the pass itself.
func (rq *RunQueue) Snapshot() []int {
	return append([]int(nil), rq.queue...)
}

// Replace discards the current contents and installs ids as the new order.
func (rq *RunQueue) Replace(ids []int) {
	rq.queue = append(rq.queue[:0:0], ids...)
}

func (rq *RunQueue) String() string {
	var sb strings.Builder
	sb.WriteString("[")
	for i, val := range rq.queue {
		sb.WriteString(fmt.Sprint(val))
		if i < len(rq.queue)-1 {
			sb.WriteString(" ")
		}
	}
	sb.WriteString("]")
	return sb.String()
}
