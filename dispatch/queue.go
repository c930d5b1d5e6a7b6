package dispatch

import (
	"sync"

	"github.com/so5go/so5"
)

// demandQueue is a mutex+condvar FIFO, the same unbounded shape the root
// package's default dispatcher uses, reimplemented here so this package
// does not need to reach into so5 internals for its own queue. PushEvtFinish
// must never fail.
type demandQueue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	items  []so5.ExecutionDemand
	closed bool
}

func newDemandQueue() *demandQueue {
	q := &demandQueue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

func (q *demandQueue) Push(d so5.ExecutionDemand) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return &so5.Error{Op: "push", Kind: so5.KindInvariantViolation, Cause: so5.ErrMboxClosed}
	}
	q.items = append(q.items, d)
	q.cond.Signal()
	return nil
}

func (q *demandQueue) PushEvtFinish(d so5.ExecutionDemand) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, d)
	q.cond.Signal()
}

// TryPop returns immediately instead of blocking: ok is false whenever the
// queue is currently empty, whether or not it is closed. Callers that need
// to tell "empty" apart from "closed and empty" use Pop instead.
func (q *demandQueue) TryPop() (so5.ExecutionDemand, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return so5.ExecutionDemand{}, false
	}
	d := q.items[0]
	q.items = q.items[1:]
	return d, true
}

func (q *demandQueue) Pop() (so5.ExecutionDemand, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.items) == 0 && !q.closed {
		q.cond.Wait()
	}
	if len(q.items) == 0 {
		return so5.ExecutionDemand{}, false
	}
	d := q.items[0]
	q.items = q.items[1:]
	return d, true
}

func (q *demandQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *demandQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.cond.Broadcast()
}
