package timer

import (
	"sort"
	"sync"
	"time"

	"github.com/so5go/so5"
)

type listEntry struct {
	deadline  time.Time
	period    time.Duration
	fn        func()
	cancelled bool
}

// List keeps pending timers in a deadline-sorted slice, inserting with a
// binary search + shift. O(n) insert versus Heap's O(log n), but no heap
// bookkeeping and a trivially inspectable "what fires next" list — a fit
// for dispatchers with only a handful of outstanding timers (state time
// limits, a few send_delayed calls), which is the common case for most
// agents.
type List struct {
	mu     sync.Mutex
	items  []*listEntry
	wake   chan struct{}
	closed chan struct{}
	once   sync.Once
}

// NewList constructs and starts a List timer manager.
func NewList() so5.TimerManager {
	l := &List{wake: make(chan struct{}, 1), closed: make(chan struct{})}
	go l.loop()
	return l
}

type listHandle struct {
	e *listEntry
	l *List
}

func (lh listHandle) Cancel() {
	lh.l.mu.Lock()
	lh.e.cancelled = true
	lh.l.mu.Unlock()
}

func (l *List) insert(e *listEntry) {
	l.mu.Lock()
	i := sort.Search(len(l.items), func(i int) bool { return l.items[i].deadline.After(e.deadline) })
	l.items = append(l.items, nil)
	copy(l.items[i+1:], l.items[i:])
	l.items[i] = e
	l.mu.Unlock()
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

func (l *List) ScheduleSingle(delay time.Duration, fn func()) so5.TimerHandle {
	e := &listEntry{deadline: time.Now().Add(delay), fn: fn}
	l.insert(e)
	return listHandle{e: e, l: l}
}

func (l *List) SchedulePeriodic(pause, period time.Duration, fn func()) so5.TimerHandle {
	e := &listEntry{deadline: time.Now().Add(pause), period: period, fn: fn}
	l.insert(e)
	return listHandle{e: e, l: l}
}

func (l *List) loop() {
	timer := time.NewTimer(time.Hour)
	defer timer.Stop()
	for {
		l.mu.Lock()
		var wait time.Duration
		if len(l.items) > 0 {
			wait = time.Until(l.items[0].deadline)
			if wait < 0 {
				wait = 0
			}
		} else {
			wait = time.Hour
		}
		l.mu.Unlock()

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(wait)

		select {
		case <-timer.C:
			l.fireDue()
		case <-l.wake:
		case <-l.closed:
			return
		}
	}
}

func (l *List) fireDue() {
	now := time.Now()
	var due []*listEntry
	l.mu.Lock()
	i := 0
	for i < len(l.items) && !l.items[i].deadline.After(now) {
		i++
	}
	due, l.items = l.items[:i], l.items[i:]
	l.mu.Unlock()

	var toReinsert []*listEntry
	for _, e := range due {
		if e.cancelled {
			continue
		}
		e.fn()
		if e.period > 0 {
			e.deadline = now.Add(e.period)
			toReinsert = append(toReinsert, e)
		}
	}
	for _, e := range toReinsert {
		l.insert(e)
	}
}

func (l *List) Close() {
	l.once.Do(func() { close(l.closed) })
}
