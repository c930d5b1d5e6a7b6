package timer

import (
	"sync"
	"time"

	"github.com/so5go/so5"
)

// CatchUpPolicy controls what a Wheel does when its tick goroutine falls
// behind wall-clock time (a long GC pause, a loaded host) and discovers a
// periodic entry missed one or more ticks: fire once and resync, or fire
// once per missed tick up to a cap.
type CatchUpPolicy struct {
	// FireMissedTicks, if true, runs the callback once for every tick the
	// wheel fell behind by (capped by MaxCatchUpTicks) instead of collapsing
	// them into a single firing.
	FireMissedTicks bool
	MaxCatchUpTicks int
}

// DefaultCatchUpPolicy collapses any number of missed ticks into one firing,
// which is correct for send_periodic's "redeliver the same notification"
// semantics — a consumer reacting to "timer fired" has no use for being
// told it fired N times while nobody was listening.
func DefaultCatchUpPolicy() CatchUpPolicy {
	return CatchUpPolicy{FireMissedTicks: false}
}

type wheelEntry struct {
	fn        func()
	period    time.Duration
	remaining int // ticks until next firing, reduced by one lap each time its bucket comes round early
	cancelled bool
}

// Wheel is a hashed timing wheel: fixed tick resolution, entries bucketed by
// (ticks-from-now mod wheel size), one ticking goroutine regardless of
// entry count. Appropriate when an environment schedules large numbers of
// timers (per-agent state time limits across thousands of agents,
// high-fan-out send_periodic) where Heap's per-entry O(log n) push/pop
// would add up; Wheel's cost per tick is O(entries in this bucket) instead.
type Wheel struct {
	tick   time.Duration
	size   int
	policy CatchUpPolicy

	mu      sync.Mutex
	buckets [][]*wheelEntry
	cursor  int

	closed chan struct{}
	once   sync.Once
}

// NewWheel constructs and starts a Wheel with the given tick resolution and
// number of buckets (their product bounds the longest delay representable
// in one lap; longer delays stay in their bucket for further laps until
// their remaining ticks run out).
func NewWheel(tickResolution time.Duration, bucketCount int, policy CatchUpPolicy) so5.TimerManager {
	if bucketCount < 1 {
		bucketCount = 1
	}
	w := &Wheel{
		tick:    tickResolution,
		size:    bucketCount,
		policy:  policy,
		buckets: make([][]*wheelEntry, bucketCount),
		closed:  make(chan struct{}),
	}
	go w.loop()
	return w
}

type wheelHandle struct {
	e *wheelEntry
	w *Wheel
}

func (h wheelHandle) Cancel() {
	h.w.mu.Lock()
	h.e.cancelled = true
	h.w.mu.Unlock()
}

func (w *Wheel) ticksFor(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	n := int(d / w.tick)
	if n < 1 {
		n = 1
	}
	return n
}

func (w *Wheel) ScheduleSingle(delay time.Duration, fn func()) so5.TimerHandle {
	e := &wheelEntry{fn: fn, remaining: w.ticksFor(delay)}
	w.place(e)
	return wheelHandle{e: e, w: w}
}

func (w *Wheel) SchedulePeriodic(pause, period time.Duration, fn func()) so5.TimerHandle {
	e := &wheelEntry{fn: fn, period: period, remaining: w.ticksFor(pause)}
	w.place(e)
	return wheelHandle{e: e, w: w}
}

func (w *Wheel) place(e *wheelEntry) {
	w.mu.Lock()
	defer w.mu.Unlock()
	bucket := (w.cursor + (e.remaining % w.size)) % w.size
	w.buckets[bucket] = append(w.buckets[bucket], e)
}

func (w *Wheel) loop() {
	ticker := time.NewTicker(w.tick)
	defer ticker.Stop()
	lastTick := time.Now()
	for {
		select {
		case now := <-ticker.C:
			missed := int(now.Sub(lastTick) / w.tick)
			if missed < 1 {
				missed = 1
			}
			lastTick = now
			if !w.policy.FireMissedTicks || missed == 1 {
				w.advance(1)
				continue
			}
			ticksToRun := missed
			if w.policy.MaxCatchUpTicks > 0 && ticksToRun > w.policy.MaxCatchUpTicks {
				ticksToRun = w.policy.MaxCatchUpTicks
			}
			for i := 0; i < ticksToRun; i++ {
				w.advance(1)
			}
		case <-w.closed:
			return
		}
	}
}

func (w *Wheel) advance(steps int) {
	for s := 0; s < steps; s++ {
		w.mu.Lock()
		w.cursor = (w.cursor + 1) % w.size
		due := w.buckets[w.cursor]
		w.buckets[w.cursor] = nil
		var fire []*wheelEntry
		var reinsert []*wheelEntry
		var later []*wheelEntry
		for _, e := range due {
			if e.cancelled {
				continue
			}
			if e.remaining > w.size {
				e.remaining -= w.size
				later = append(later, e)
				continue
			}
			fire = append(fire, e)
			if e.period > 0 {
				e.remaining = w.ticksFor(e.period)
				reinsert = append(reinsert, e)
			}
		}
		for _, e := range reinsert {
			bucket := (w.cursor + (e.remaining % w.size)) % w.size
			w.buckets[bucket] = append(w.buckets[bucket], e)
		}
		w.buckets[w.cursor] = append(w.buckets[w.cursor], later...)
		w.mu.Unlock()

		for _, e := range fire {
			e.fn()
		}
	}
}

func (w *Wheel) Close() {
	w.once.Do(func() { close(w.closed) })
}
