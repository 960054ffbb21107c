// Package round holds the bookkeeping of a single scatter/gather round: who
// asked for it, which workers still owe an answer and the running sum of the
// answers received so far.
package round

import (
	"time"

	"github.com/viant/fanout/internal/clock"
	"github.com/viant/fanout/model/message"
)

// Round is owned by one coordinator loop and is not safe for concurrent use.
// The round is complete once no worker is outstanding.
type Round struct {
	Seq       uint64
	Requester message.Mailbox
	StartedAt time.Time

	Sum        float64
	Dispatched int
	Replied    int
	Lost       int

	outstanding map[message.ID]struct{}
}

// New creates a round for requester.
func New(seq uint64, requester message.Mailbox) *Round {
	return &Round{
		Seq:         seq,
		Requester:   requester,
		StartedAt:   clock.Now(),
		outstanding: make(map[message.ID]struct{}),
	}
}

// Expect registers a worker that was sent a work item.
func (r *Round) Expect(id message.ID) {
	if _, ok := r.outstanding[id]; ok {
		return
	}
	r.outstanding[id] = struct{}{}
	r.Dispatched++
}

// Accept records a partial result from id. It returns false, leaving the
// round untouched, when id is not outstanding.
func (r *Round) Accept(id message.ID, value float64) bool {
	if _, ok := r.outstanding[id]; !ok {
		return false
	}
	delete(r.outstanding, id)
	r.Sum += value
	r.Replied++
	return true
}

// Drop removes a failed worker; it contributes nothing to the sum.
func (r *Round) Drop(id message.ID) bool {
	if _, ok := r.outstanding[id]; !ok {
		return false
	}
	delete(r.outstanding, id)
	r.Lost++
	return true
}

// IsOutstanding reports whether id still owes an answer.
func (r *Round) IsOutstanding(id message.ID) bool {
	_, ok := r.outstanding[id]
	return ok
}

// Outstanding returns the number of pending answers.
func (r *Round) Outstanding() int {
	return len(r.outstanding)
}

// Done returns whether the round is complete.
func (r *Round) Done() bool {
	return len(r.outstanding) == 0
}

// Elapsed returns the time since the round started.
func (r *Round) Elapsed() time.Duration {
	return clock.Since(r.StartedAt)
}
