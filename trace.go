package so5

// TraceRecord is the structured record emitted for every mbox routing
// decision: delivered, rejected-by-filter, no-subscribers,
// rejected-mutable-on-mpmc, or push-error (the sink's PushEvent failed).
type TraceRecord struct {
	ThreadID  uint64
	TypeTag   TypeTag
	TypeName  string
	MboxID    uint64
	MboxKind  MboxKind
	AgentPtr  uintptr
	Envelope  bool
	Mutable   bool
	Action    string // two-part action name, e.g. "mbox/delivered"
	Err       error
}

// TraceFilter suppresses individual records before they reach a TraceBackend.
// Returning false drops the record.
type TraceFilter func(TraceRecord) bool

// TraceBackend is the surface external collaborators implement to receive
// trace output: a trace(structured-record) callback. Concrete backends
// live in so5/trace (text, CloudEvents).
type TraceBackend interface {
	Trace(TraceRecord)
}

// TraceBackendFunc adapts a function to TraceBackend.
type TraceBackendFunc func(TraceRecord)

func (f TraceBackendFunc) Trace(r TraceRecord) { f(r) }

// trace is the environment's single emission point: every localMbox routing
// decision funnels through here so a filter and backend swap affects all
// mboxes uniformly.
func (env *Environment) trace(r TraceRecord) {
	if env == nil || env.traceBackend == nil {
		return
	}
	if env.traceFilter != nil && !env.traceFilter(r) {
		return
	}
	env.traceBackend.Trace(r)
}
