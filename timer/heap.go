// Package timer provides so5.TimerManager implementations beyond the root
// package's one-goroutine-per-timer default: a min-heap manager for
// moderate timer counts with exact ordering, a sorted-list manager tuned for
// very few timers, and a hashed wheel manager that amortizes large timer
// counts across one ticking goroutine.
package timer

import (
	"container/heap"
	"sync"
	"time"

	"github.com/so5go/so5"
)

type heapEntry struct {
	deadline time.Time
	period   time.Duration // 0 for a one-shot
	fn       func()
	index    int
	cancelled bool
}

type entryHeap []*heapEntry

func (h entryHeap) Len() int            { return len(h) }
func (h entryHeap) Less(i, j int) bool  { return h[i].deadline.Before(h[j].deadline) }
func (h entryHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}
func (h *entryHeap) Push(x any) {
	e := x.(*heapEntry)
	e.index = len(*h)
	*h = append(*h, e)
}
func (h *entryHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]
	return e
}

// Heap is a min-heap-ordered TimerManager: one background goroutine sleeps
// until the single nearest deadline, fires every entry due at that instant,
// then re-sleeps. Cancellation is lazy (the entry is marked cancelled and
// skipped when popped) to avoid an O(n) heap search on every Cancel.
type Heap struct {
	mu     sync.Mutex
	h      entryHeap
	wake   chan struct{}
	closed chan struct{}
	once   sync.Once
}

// NewHeap constructs and starts a Heap timer manager.
func NewHeap() so5.TimerManager {
	h := &Heap{wake: make(chan struct{}, 1), closed: make(chan struct{})}
	go h.loop()
	return h
}

type heapHandle struct{ e *heapEntry; h *Heap }

func (hh heapHandle) Cancel() {
	hh.h.mu.Lock()
	hh.e.cancelled = true
	hh.h.mu.Unlock()
}

func (h *Heap) ScheduleSingle(delay time.Duration, fn func()) so5.TimerHandle {
	e := &heapEntry{deadline: time.Now().Add(delay), fn: fn}
	h.push(e)
	return heapHandle{e: e, h: h}
}

func (h *Heap) SchedulePeriodic(pause, period time.Duration, fn func()) so5.TimerHandle {
	e := &heapEntry{deadline: time.Now().Add(pause), period: period, fn: fn}
	h.push(e)
	return heapHandle{e: e, h: h}
}

func (h *Heap) push(e *heapEntry) {
	h.mu.Lock()
	heap.Push(&h.h, e)
	h.mu.Unlock()
	select {
	case h.wake <- struct{}{}:
	default:
	}
}

func (h *Heap) nextDeadline() (time.Time, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.h) == 0 {
		return time.Time{}, false
	}
	return h.h[0].deadline, true
}

func (h *Heap) loop() {
	timer := time.NewTimer(time.Hour)
	defer timer.Stop()
	for {
		deadline, ok := h.nextDeadline()
		var wait time.Duration
		if ok {
			wait = time.Until(deadline)
			if wait < 0 {
				wait = 0
			}
		} else {
			wait = time.Hour
		}
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(wait)

		select {
		case <-timer.C:
			h.fireDue()
		case <-h.wake:
		case <-h.closed:
			return
		}
	}
}

func (h *Heap) fireDue() {
	now := time.Now()
	var due []*heapEntry
	h.mu.Lock()
	for len(h.h) > 0 && !h.h[0].deadline.After(now) {
		e := heap.Pop(&h.h).(*heapEntry)
		if e.cancelled {
			continue
		}
		due = append(due, e)
		if e.period > 0 {
			e.deadline = now.Add(e.period)
			e.cancelled = false
			heap.Push(&h.h, e)
		}
	}
	h.mu.Unlock()

	for _, e := range due {
		e.fn()
	}
}

func (h *Heap) Close() {
	h.once.Do(func() { close(h.closed) })
}
