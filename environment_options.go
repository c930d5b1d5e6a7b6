package so5

// DefaultRedirectionDeepLimit bounds how many times a single message may be
// redirected/transformed by overlimit reactions before it is dropped and
// traced as a loop.
const DefaultRedirectionDeepLimit = 32

// EnvironmentFlavor selects the shape of the default dispatcher an
// Environment builds for itself when the caller hasn't supplied one
// directly via WithDefaultDispatcher.
type EnvironmentFlavor int

const (
	// FlavorDefaultMultiThreaded is the general-purpose flavor: its default
	// dispatcher is the locking oneThreadDispatcher, and callers remain free
	// to register additional genuinely multi-threaded named dispatchers
	// (so5/dispatch's ThreadPool and friends) alongside it.
	FlavorDefaultMultiThreaded EnvironmentFlavor = iota
	// FlavorSimpleMTSafeSingleThread also uses the locking oneThreadDispatcher,
	// but documents the intent that this environment only ever runs demands
	// through its single default dispatcher — safe to call into from
	// multiple goroutines, at the cost of the mutex+condvar they share.
	FlavorSimpleMTSafeSingleThread
	// FlavorSimpleNotMTSafeSingleThread runs every demand inline, on
	// whichever goroutine pushed it, with no locking and no dedicated
	// worker goroutine at all. Correct only when the caller guarantees a
	// single goroutine ever touches this environment.
	FlavorSimpleNotMTSafeSingleThread
)

// EnvironmentParams collects every Environment-wide tunable. Zero value is
// not directly usable; build one with DefaultEnvironmentParams and apply
// EnvironmentOption values.
type EnvironmentParams struct {
	MaxStateNestingDepth     int
	RedirectionDeepLimit     int
	DefaultExceptionReaction ExceptionReactionKind

	// Flavor picks the default dispatcher NewEnvironment builds when
	// DefaultDispatcher is left nil. Ignored once DefaultDispatcher is set
	// by WithDefaultDispatcher.
	Flavor EnvironmentFlavor

	DefaultDispatcher Dispatcher
	Timers            TimerManager
	Logger            Logger

	TraceBackend TraceBackend
	TraceFilter  TraceFilter

	// AutoShutdownWhenNoCoops ends Run() once the last coop finishes
	// deregistering and none remain.
	AutoShutdownWhenNoCoops bool
}

// DefaultEnvironmentParams returns the baseline configuration: a 16-level
// state nesting cap, a redirection-deep guard of 32, abort-on-exception, the
// stdlib timer manager, a null logger, no tracing, and the default
// multi-threaded flavor. DefaultDispatcher is left nil here; NewEnvironment
// fills it in from Flavor once every option has been applied.
func DefaultEnvironmentParams() EnvironmentParams {
	return EnvironmentParams{
		MaxStateNestingDepth:     DefaultMaxStateNestingDepth,
		RedirectionDeepLimit:     DefaultRedirectionDeepLimit,
		DefaultExceptionReaction: AbortOnException,
		Flavor:                   FlavorDefaultMultiThreaded,
		Timers:                   NewStdTimerManager(),
		Logger:                   NewNullLogger(),
		AutoShutdownWhenNoCoops:  false,
	}
}

// EnvironmentOption mutates an EnvironmentParams being built.
type EnvironmentOption func(*EnvironmentParams)

func WithMaxStateNestingDepth(n int) EnvironmentOption {
	return func(p *EnvironmentParams) { p.MaxStateNestingDepth = n }
}

func WithRedirectionDeepLimit(n int) EnvironmentOption {
	return func(p *EnvironmentParams) { p.RedirectionDeepLimit = n }
}

func WithDefaultExceptionReaction(k ExceptionReactionKind) EnvironmentOption {
	return func(p *EnvironmentParams) { p.DefaultExceptionReaction = k }
}

func WithDefaultDispatcher(d Dispatcher) EnvironmentOption {
	return func(p *EnvironmentParams) { p.DefaultDispatcher = d }
}

// WithFlavor selects which zero-config default dispatcher NewEnvironment
// builds. Has no effect if WithDefaultDispatcher is also applied.
func WithFlavor(f EnvironmentFlavor) EnvironmentOption {
	return func(p *EnvironmentParams) { p.Flavor = f }
}

func WithTimerManager(t TimerManager) EnvironmentOption {
	return func(p *EnvironmentParams) { p.Timers = t }
}

func WithLogger(l Logger) EnvironmentOption {
	return func(p *EnvironmentParams) { p.Logger = l }
}

func WithTrace(backend TraceBackend, filter TraceFilter) EnvironmentOption {
	return func(p *EnvironmentParams) {
		p.TraceBackend = backend
		p.TraceFilter = filter
	}
}

func WithAutoShutdownWhenNoCoops(v bool) EnvironmentOption {
	return func(p *EnvironmentParams) { p.AutoShutdownWhenNoCoops = v }
}
