package so5

import (
	"fmt"
	"os"
	"sync"
)

// Environment is the root runtime object: it owns every mbox, coop, named
// dispatcher, timer, and layer created within it, and is the unit a process
// typically has exactly one of.
type Environment struct {
	params EnvironmentParams

	logger  Logger
	timers  TimerManager
	layers  *layerRegistry
	stats   *StatsRepository
	coops   *coopRepository

	mboxSeq mboxIDSeq

	namedMboxMu sync.Mutex
	namedMbox   map[string]Mbox

	dispatcherMu sync.Mutex
	dispatchers  map[string]Dispatcher

	traceBackend TraceBackend
	traceFilter  TraceFilter

	runningMu sync.Mutex
	running   bool
	stopCh    chan struct{}
	stopOnce  sync.Once
}

// NewEnvironment builds an Environment from DefaultEnvironmentParams()
// modified by opts. The environment is not yet running; call Run (or Start
// for a non-blocking variant) to bring its default dispatcher and timers to
// life.
func NewEnvironment(opts ...EnvironmentOption) *Environment {
	params := DefaultEnvironmentParams()
	for _, opt := range opts {
		opt(&params)
	}
	if params.DefaultDispatcher == nil {
		params.DefaultDispatcher = defaultDispatcherForFlavor(params.Flavor)
	}
	env := &Environment{
		params:      params,
		logger:      params.Logger,
		timers:      params.Timers,
		layers:      newLayerRegistry(),
		stats:       NewStatsRepository(),
		coops:       newCoopRepository(),
		namedMbox:   make(map[string]Mbox),
		dispatchers: make(map[string]Dispatcher),
		traceBackend: params.TraceBackend,
		traceFilter:  params.TraceFilter,
		stopCh:       make(chan struct{}),
	}
	if env.logger == nil {
		env.logger = NewNullLogger()
	}
	if env.timers == nil {
		env.timers = NewStdTimerManager()
	}
	return env
}

// defaultDispatcherForFlavor picks the zero-config default dispatcher that
// matches an EnvironmentFlavor, used when the caller applied WithFlavor but
// not WithDefaultDispatcher. Only the not-mtsafe single-thread flavor needs
// a genuinely different implementation; the other two both want a single
// worker that is safe to push into from multiple goroutines.
func defaultDispatcherForFlavor(f EnvironmentFlavor) Dispatcher {
	if f == FlavorSimpleNotMTSafeSingleThread {
		return newInlineDispatcher("default")
	}
	return NewOneThreadDispatcher("default")
}

// Logger returns the environment's configured Logger.
func (env *Environment) Logger() Logger { return env.logger }

// Stats returns the environment's stats repository, for installing custom
// DataSources or for so5/statsweb to poll.
func (env *Environment) Stats() *StatsRepository { return env.stats }

// newMbox allocates a fresh, unnamed mbox of the given kind.
func (env *Environment) newMbox(kind MboxKind) Mbox {
	return newLocalMbox(env.mboxSeq.next(), kind, env)
}

// CreateMbox creates a new, unnamed MPMC mbox.
func (env *Environment) CreateMbox() Mbox { return env.newMbox(MboxMPMC) }

// CreateMPSCMbox creates a new, unnamed MPSC mbox, generally used internally
// by Agent.CreateDirectMbox but exposed for callers that want a private
// single-consumer channel without an owning agent.
func (env *Environment) CreateMPSCMbox() Mbox { return env.newMbox(MboxMPSC) }

// NamedMbox returns the mbox registered under name, creating a fresh MPMC
// mbox on first reference: repeated calls with the same name return the
// same mbox, which is how independently registered coops rendezvous.
func (env *Environment) NamedMbox(name string) Mbox {
	env.namedMboxMu.Lock()
	defer env.namedMboxMu.Unlock()
	if mb, ok := env.namedMbox[name]; ok {
		return mb
	}
	mb := env.newMbox(MboxMPMC)
	env.namedMbox[name] = mb
	return mb
}

// RegisterDispatcher adds a named dispatcher to the environment: Start
// starts it, Stop shuts it down, and Dispatcher(name) returns it. Coop
// registration always binds agents to the default dispatcher; a named
// dispatcher is never selected at bind time. Fails if the name is already
// taken.
func (env *Environment) RegisterDispatcher(name string, d Dispatcher) error {
	env.dispatcherMu.Lock()
	defer env.dispatcherMu.Unlock()
	if _, exists := env.dispatchers[name]; exists {
		return newErr("register_dispatcher", KindInvariantViolation, ErrDispatcherNameTaken)
	}
	env.dispatchers[name] = d
	env.stats.Register(d.Stats())
	return nil
}

// Dispatcher looks up a named dispatcher previously registered with
// RegisterDispatcher.
func (env *Environment) Dispatcher(name string) (Dispatcher, error) {
	env.dispatcherMu.Lock()
	defer env.dispatcherMu.Unlock()
	d, ok := env.dispatchers[name]
	if !ok {
		return nil, newErr("dispatcher", KindInvariantViolation, ErrDispatcherNotFound)
	}
	return d, nil
}

// scheduleStateTimeLimit arranges for the agent to transition to
// leaf.timeLimitTarget after leaf.timeLimitDuration, unless it has already
// left leaf by the time the timer fires.
func (env *Environment) scheduleStateTimeLimit(a *Agent, leaf *State) {
	env.timers.ScheduleSingle(leaf.timeLimitDuration, func() {
		if a.CurrentState() != leaf {
			return
		}
		_ = a.ChangeState(leaf.timeLimitTarget)
	})
}

// fatal logs op/msg as an error and terminates the process. Used for the
// handful of conditions the framework treats as unrecoverable: an
// AbortOnException reaction, or a message-limit AbortReaction firing.
func (env *Environment) fatal(op, msg string) {
	env.logger.Error("fatal", "op", op, "msg", msg)
	fmt.Fprintf(os.Stderr, "so5: fatal: %s: %s\n", op, msg)
	os.Exit(1)
}
