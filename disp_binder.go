package so5

// Priority orders agents within a priority-aware dispatcher (so5/dispatch's
// PrioOneThread, PrioOneThreadQuoted, PrioThreadPool and
// PrioDedicatedThreads). Ignored by priority-agnostic dispatchers.
type Priority int

const (
	PriorityQuiet Priority = iota
	PriorityLow
	PriorityBelowNormal
	PriorityNormal
	PriorityAboveNormal
	PriorityHigh
	PriorityCritical
)

// Dispatcher owns one or more worker threads and turns bound agents' demands
// into invoke calls. Concrete families (one-thread, active-object,
// thread-pool, and their priority variants) live in so5/dispatch; this
// package only depends on the interface so coops can bind agents without
// importing a specific implementation.
type Dispatcher interface {
	// Name returns the dispatcher's registered name ("" for an environment's
	// default dispatcher).
	Name() string

	// Bind reserves and installs an EventQueue for agent, including the
	// preallocated evt_finish slot: a dispatcher must guarantee
	// PushEvtFinish never fails once Bind has returned nil. If preallocation
	// fails (e.g. a bounded thread-pool at capacity), Bind returns a *Error
	// wrapping ErrPreallocationFailed and the agent is not bound.
	Bind(agent *Agent, prio Priority) (DispBinder, error)

	// Start spins up worker goroutines. Called once, by the environment, as
	// it transitions to running.
	Start() error

	// Shutdown stops accepting new demands and tells every worker goroutine
	// to drain and exit. Non-blocking; call Wait to block for completion.
	Shutdown()

	// Wait blocks until every worker goroutine launched by Start has
	// returned.
	Wait()

	// Stats returns a DataSource reporting this dispatcher's queue depth(s)
	// and worker count, registered into the environment's StatsRepository.
	Stats() DataSource
}

// DispBinder is the per-agent handle returned by Dispatcher.Bind: the
// agent's queue is installed by the time Bind returns, and Unbind releases
// whatever resources Bind reserved.
type DispBinder interface {
	Unbind()
}

// InstallQueue is the only way an agent's queue field is ever set, confined
// to this seam so the two-phase preallocate/bind contract in
// Dispatcher.Bind is the sole writer. Dispatcher implementations (including
// third-party ones in so5/dispatch) call this exactly once, from inside
// Bind, before returning.
func InstallQueue(a *Agent, q EventQueue, binder DispBinder) {
	a.queue = q
	a.binder = binder
}
