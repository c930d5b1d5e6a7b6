package so5

import (
	"sync"
	"time"
)

// TimerHandle is returned by a TimerManager's scheduling calls; Cancel stops
// further firings.
type TimerHandle interface {
	Cancel()
}

// TimerManager is the pluggable timer backend contract. The root package
// carries a minimal time.AfterFunc-based implementation so an Environment
// works with no extra wiring; so5/timer provides heap, sorted list, and
// wheel implementations with different complexity/precision tradeoffs.
type TimerManager interface {
	// ScheduleSingle arranges for fn to run once after delay.
	ScheduleSingle(delay time.Duration, fn func()) TimerHandle
	// SchedulePeriodic arranges for fn to run after pause, then every period
	// thereafter, until cancelled. A period of zero behaves like
	// ScheduleSingle.
	SchedulePeriodic(pause, period time.Duration, fn func()) TimerHandle
	// Close stops every outstanding timer, used during environment shutdown.
	Close()
}

// stdTimerHandle holds the stop channel the firing goroutine selects on, so
// both single and periodic firings share one Cancel path.
type stdTimerHandle struct {
	stop chan struct{}
	once sync.Once
}

func (h *stdTimerHandle) Cancel() {
	h.once.Do(func() { close(h.stop) })
}

// stdTimerManager is the default TimerManager: one goroutine per scheduled
// timer, parked on time.After/time.Ticker. Adequate for modest timer counts;
// so5/timer's wheel manager amortizes large counts across one goroutine.
type stdTimerManager struct {
	mu      sync.Mutex
	handles map[*stdTimerHandle]struct{}
	closed  bool
}

// NewStdTimerManager constructs the default TimerManager.
func NewStdTimerManager() TimerManager {
	return &stdTimerManager{handles: make(map[*stdTimerHandle]struct{})}
}

func (m *stdTimerManager) track(h *stdTimerHandle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		h.Cancel()
		return
	}
	m.handles[h] = struct{}{}
}

func (m *stdTimerManager) untrack(h *stdTimerHandle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.handles, h)
}

func (m *stdTimerManager) ScheduleSingle(delay time.Duration, fn func()) TimerHandle {
	h := &stdTimerHandle{stop: make(chan struct{})}
	m.track(h)
	t := time.NewTimer(delay)
	go func() {
		defer m.untrack(h)
		defer t.Stop()
		select {
		case <-t.C:
			fn()
		case <-h.stop:
		}
	}()
	return h
}

func (m *stdTimerManager) SchedulePeriodic(pause, period time.Duration, fn func()) TimerHandle {
	h := &stdTimerHandle{stop: make(chan struct{})}
	m.track(h)
	go func() {
		defer m.untrack(h)
		t := time.NewTimer(pause)
		defer t.Stop()
		select {
		case <-t.C:
		case <-h.stop:
			return
		}
		fn()
		if period <= 0 {
			return
		}
		ticker := time.NewTicker(period)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				fn()
			case <-h.stop:
				return
			}
		}
	}()
	return h
}

func (m *stdTimerManager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	for h := range m.handles {
		h.Cancel()
	}
	m.handles = make(map[*stdTimerHandle]struct{})
}
