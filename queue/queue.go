// Package queue implements the single-producer/single-consumer action
// handoff between the planner loop and the polling browser client (C4).
//
// It is a generic, in-memory sibling of orchestration/redis_task_queue.go:
// that queue durably hands tasks to worker processes over Redis
// LPUSH/BRPOP; this one hands exactly one action at a time to a single
// polling client within one session's process memory, which is the
// discipline the distilled spec calls for ("the contract is one browser
// client per session"). The Enqueue/Pop/Drain naming mirrors that file's
// Enqueue/Dequeue/Reject vocabulary.
package queue

import (
	"errors"
	"sync"
)

// ErrInFlight is returned by Pop when an action is already in flight and
// has not yet been acknowledged.
var ErrInFlight = errors.New("queue: action already in flight")

// ActionQueue is a FIFO of pending actions (the pending list has no size
// limit) with at most one action in flight at a time. T is typically session.Action, but the queue is defined generically
// so it carries no dependency on the session package's types.
type ActionQueue[T any] struct {
	mu       sync.Mutex
	pending  []T
	inFlight *T
}

// New creates an empty ActionQueue.
func New[T any]() *ActionQueue[T] {
	return &ActionQueue[T]{}
}

// Enqueue appends an action to the back of the pending queue. Called by
// the planner loop.
func (q *ActionQueue[T]) Enqueue(action T) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending = append(q.pending, action)
}

// Pop removes and returns the oldest pending action, marking it in
// flight. Returns ErrInFlight if an action is already in flight (the
// caller must Acknowledge or Drain first), and (zero, false, nil) if the
// queue is empty.
func (q *ActionQueue[T]) Pop() (action T, ok bool, err error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.inFlight != nil {
		return action, false, ErrInFlight
	}
	if len(q.pending) == 0 {
		return action, false, nil
	}

	action = q.pending[0]
	q.pending = q.pending[1:]
	q.inFlight = &action
	return action, true, nil
}

// Acknowledge clears the in-flight marker once the corresponding
// action-result has arrived, allowing the next Pop to proceed.
func (q *ActionQueue[T]) Acknowledge() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.inFlight = nil
}

// Drain empties the pending queue and clears the in-flight marker. Called
// on session cancellation.
func (q *ActionQueue[T]) Drain() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending = nil
	q.inFlight = nil
}

// InFlight reports whether an action has been popped but not yet
// acknowledged.
func (q *ActionQueue[T]) InFlight() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.inFlight != nil
}

// Len returns the number of pending (not yet popped) actions.
func (q *ActionQueue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}
