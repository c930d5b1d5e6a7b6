package so5

// HandlerSelector tags what kind of execution demand is being run, so the
// dispatcher's invoke step knows whether to call a subscription handler or
// a lifecycle hook.
type HandlerSelector int

const (
	// SelectorMsg is an ordinary subscribed message or signal.
	SelectorMsg HandlerSelector = iota
	// SelectorEvtStart is the agent's once-only start event.
	SelectorEvtStart
	// SelectorEvtFinish is the agent's once-only finish event. Queues must
	// accept it even under back-pressure.
	SelectorEvtFinish
	// SelectorMutableMsg marks a demand carrying a mutable message,
	// delivered only through an MPSC mbox.
	SelectorMutableMsg
)

// ExecutionDemand is the value pushed onto an event queue: everything a
// dispatcher thread needs to invoke one handler for one agent.
type ExecutionDemand struct {
	Agent      *Agent
	MboxID     uint64
	TypeTag    TypeTag
	Message    *Message
	Selector   HandlerSelector
	Limit      *MessageLimit // non-nil if this demand was admitted through a limit

	// Metadata carries dispatcher-specific annotations about how a demand
	// was scheduled. Nil unless a dispatcher has something to say: the
	// priority dispatchers that support cross-priority work stealing set
	// "processor_prio" and "queue_prio" on a demand pulled from a level
	// other than the one it was queued at.
	Metadata map[string]string
}

// EventQueue is the narrow surface a dispatcher's worker loop drains.
// Depending on the dispatcher, a queue may be owned by a single agent
// (active-object), shared by all agents bound to one worker thread
// (one-thread), or partitioned by priority (prio dispatchers).
type EventQueue interface {
	// Push enqueues an ordinary demand. May fail (e.g. a bounded queue at
	// capacity without a configured overlimit reaction upstream already
	// having rejected it) but must never panic.
	Push(d ExecutionDemand) error

	// PushEvtFinish enqueues the finish demand. This must never fail: the
	// queues shipped in this module are unbounded and accept it without any
	// capacity check.
	PushEvtFinish(d ExecutionDemand)

	// Pop blocks until a demand is available or the queue is told to stop,
	// returning ok=false in the latter case.
	Pop() (d ExecutionDemand, ok bool)

	// Len reports current depth, used by stats data sources.
	Len() int

	// Close tells Pop to stop blocking once drained.
	Close()
}
