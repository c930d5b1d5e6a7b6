package so5

import (
	"fmt"
	"sync"
	"unsafe"
)

// ExceptionReactionKind enumerates what an agent does when a handler panics
// or returns an error.
type ExceptionReactionKind int

const (
	// InheritExceptionReaction defers to the owning coop's policy, which in
	// turn defers to the environment's.
	InheritExceptionReaction ExceptionReactionKind = iota
	AbortOnException
	ShutdownEnvironmentOnException
	DeregisterCoopOnException
	IgnoreException
)

// AgentBehavior is the hook a user type implements to participate in the
// runtime: DefineAgent sets up subscriptions and declarative state
// transitions; AgentStarter/AgentFinisher are optional interfaces for
// start/finish lifecycle hooks.
type AgentBehavior interface {
	// DefineAgent is called once, during coop registration, on the thread
	// registering the coop (not yet the dispatcher thread). It should set
	// up subscriptions via a.Subscribe and declarative state transitions.
	DefineAgent(a *Agent) error
}

// AgentBehaviorFunc adapts a plain function to AgentBehavior, for agents
// simple enough not to need EvtStart/EvtFinish or any other state.
type AgentBehaviorFunc func(a *Agent) error

func (f AgentBehaviorFunc) DefineAgent(a *Agent) error { return f(a) }

// AgentStarter is implemented by behaviors that need to run code on
// evt_start, delivered through the agent's own queue before any other
// event.
type AgentStarter interface {
	EvtStart(a *Agent) error
}

// AgentFinisher is implemented by behaviors that need to run code on
// evt_finish, guaranteed to run after every other event the agent handles.
type AgentFinisher interface {
	EvtFinish(a *Agent)
}

// Agent is an autonomous object with private state, processing one message
// at a time.
type Agent struct {
	behavior AgentBehavior
	env      *Environment
	coop     *Coop

	storage      SubscriptionStorage
	currentState *State
	defaultState *State

	directMbox Mbox
	limits     *MessageLimits

	queue EventQueue // installed by the dispatcher binder at bind time

	exceptionReaction ExceptionReactionKind

	mu        sync.Mutex
	switching bool // reentrant change_state guard

	binder   DispBinder
	priority Priority
	name     string
}

// NewAgent constructs an agent with the given behavior. storage, if nil,
// defaults to a small slice-backed implementation (see so5/subscr.NewVector
// for the richer, pluggable option); callers that care about subscription
// volume should pass one explicitly.
func NewAgent(behavior AgentBehavior, storage SubscriptionStorage) *Agent {
	a := &Agent{
		behavior: behavior,
		storage:  storage,
		limits:   NewMessageLimits(),
		priority: PriorityNormal,
	}
	a.defaultState = NewState("default").BindTo(a)
	a.currentState = a.defaultState
	return a
}

// SinkID implements MessageSink: an agent's own address is a stable,
// comparable identity for the lifetime of the process.
func (a *Agent) SinkID() uintptr { return uintptr(unsafe.Pointer(a)) }

// Name returns a diagnostic label (not required to be unique).
func (a *Agent) Name() string { return a.name }

// SetName sets the diagnostic label.
func (a *Agent) SetName(name string) *Agent { a.name = name; return a }

// Environment returns the owning environment (valid after the agent's coop
// is registered).
func (a *Agent) Environment() *Environment { return a.env }

// Coop returns the owning coop.
func (a *Agent) Coop() *Coop { return a.coop }

// DefaultState returns the agent's implicit root state, active before any
// ChangeState call.
func (a *Agent) DefaultState() *State { return a.defaultState }

// CurrentState returns the agent's current (always-leaf) state.
func (a *Agent) CurrentState() *State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.currentState
}

// SetExceptionReaction overrides this agent's reaction to handler panics,
// taking priority over the coop's and environment's policy.
func (a *Agent) SetExceptionReaction(k ExceptionReactionKind) { a.exceptionReaction = k }

// SetPriority declares which priority level a priority-aware dispatcher
// (so5/dispatch's PrioOneThread/PrioThreadPool) should bind this agent at.
// Must be called before the agent's coop is registered; ignored by
// priority-agnostic dispatchers. Defaults to PriorityNormal.
func (a *Agent) SetPriority(p Priority) *Agent { a.priority = p; return a }

// Priority returns the level this agent will be (or was) bound at.
func (a *Agent) Priority() Priority { return a.priority }

// CreateDirectMbox lazily creates and returns this agent's private MPSC
// mbox.
func (a *Agent) CreateDirectMbox() (Mbox, error) {
	if a.directMbox != nil {
		return a.directMbox, nil
	}
	if a.env == nil {
		return nil, newErr("create_direct_mbox", KindInvariantViolation, fmt.Errorf("agent has no environment yet"))
	}
	mb := a.env.newMbox(MboxMPSC)
	a.directMbox = mb
	return mb, nil
}

// SetMessageLimits installs quota+reaction for a message type, keyed by the
// Go type of a zero-value sample of the message.
func (a *Agent) SetMessageLimits(sample any, limit uint32, reaction LimitReaction) {
	a.limits.Set(TypeTagOf(sample), NewMessageLimit(limit, reaction))
}

// Subscribe registers a handler for messages of tag arriving on mbox while
// the agent is in state (or a.defaultState if state is nil). threadSafe
// marks whether a thread-pool dispatcher may run this handler concurrently
// with other thread-safe handlers of the same agent (default not_thread_safe).
func (a *Agent) Subscribe(mbox Mbox, sample any, state *State, threadSafe bool, handler HandlerFunc) error {
	if state == nil {
		state = a.defaultState
	}
	if state.agent != nil && state.agent != a {
		return newErr("subscribe", KindInvariantViolation, ErrForeignState)
	}
	tag := TypeTagOf(sample)
	key := SubscriptionKey{MboxID: mbox.ID(), Tag: tag, State: state}
	entry := SubscriptionEntry{Handler: handler, ThreadSafe: threadSafe, HandlerKind: HandlerKindNormal}
	if err := a.storage.Create(key, entry); err != nil {
		return err
	}
	if err := mbox.SubscribeEventHandler(tag, a); err != nil {
		// Roll back the storage entry: the mbox side is the source of
		// truth for "does this sink still need delivery", so storage and
		// mbox must agree.
		a.storage.DropForState(key)
		return err
	}
	return nil
}

// DropSubscription removes the (mbox, sample-type, state) subscription. If
// it was the last one for (mbox, type) across every state, the mbox-side
// subscription is released too.
func (a *Agent) DropSubscription(mbox Mbox, sample any, state *State) {
	if state == nil {
		state = a.defaultState
	}
	tag := TypeTagOf(sample)
	key := SubscriptionKey{MboxID: mbox.ID(), Tag: tag, State: state}
	lastForMboxTag := a.storage.DropForState(key)
	if lastForMboxTag {
		mbox.UnsubscribeEventHandler(tag, a)
	}
}

// SetDeliveryFilter installs a predicate consulted before delivery of sample
// on mbox to this agent (MPMC only, immutable messages only).
func (a *Agent) SetDeliveryFilter(mbox Mbox, sample any, filter DeliveryFilter) error {
	if IsSignalType(sample) {
		return newErr("set_delivery_filter", KindInvariantViolation, ErrFilterOnSignal)
	}
	return mbox.SetDeliveryFilter(TypeTagOf(sample), filter, a)
}

// DropDeliveryFilter removes a previously installed filter.
func (a *Agent) DropDeliveryFilter(mbox Mbox, sample any) {
	mbox.DropDeliveryFilter(TypeTagOf(sample), a)
}

// ChangeState performs a state switch: rejects a foreign state, runs
// on-exit hooks of states being left (innermost first), updates current
// state to the leaf of target's initial-substate chain, runs on-enter hooks
// (outermost first). Reentrant calls (a switch initiated from within a
// switch) are rejected.
func (a *Agent) ChangeState(target *State) error {
	if target.agent != nil && target.agent != a {
		return newErr("change_state", KindInvariantViolation, ErrForeignState)
	}
	maxDepth := DefaultMaxStateNestingDepth
	if a.env != nil {
		maxDepth = a.env.params.MaxStateNestingDepth
	}
	if err := target.validateNesting(maxDepth); err != nil {
		return err
	}

	a.mu.Lock()
	if a.switching {
		a.mu.Unlock()
		return newErr("change_state", KindInvariantViolation, ErrReentrantStateChange)
	}
	a.switching = true
	from := a.currentState
	a.mu.Unlock()

	leaf := target.leaf()

	exitPath := commonAncestorExclusivePath(from, leaf)
	for _, st := range exitPath {
		if st.onExit != nil {
			st.onExit()
		}
	}
	enterPath := commonAncestorExclusivePath(leaf, from)
	for i := len(enterPath) - 1; i >= 0; i-- {
		if enterPath[i].onEnter != nil {
			enterPath[i].onEnter()
		}
	}

	a.mu.Lock()
	a.currentState = leaf
	a.switching = false
	a.mu.Unlock()

	if leaf.timeLimitDuration > 0 && leaf.timeLimitTarget != nil && a.env != nil {
		a.env.scheduleStateTimeLimit(a, leaf)
	}
	return nil
}

// commonAncestorExclusivePath returns the states on from's path to the root
// that are not also on to's path, i.e. the states from's switch must
// exit/enter relative to to. Used symmetrically for exit (from=old,to=new)
// and enter (from=new,to=old, reversed by the caller).
func commonAncestorExclusivePath(from, to *State) []*State {
	toSet := map[*State]bool{}
	for _, s := range to.pathToRoot() {
		toSet[s] = true
	}
	var out []*State
	for _, s := range from.pathToRoot() {
		if toSet[s] {
			break
		}
		out = append(out, s)
	}
	return out
}

// lookupHandler walks the state hierarchy from the agent's current state
// outward (leaf first) looking for a subscription to (mboxID, tag),
// applying transfer/suppress/just-switch declarations before falling back
// to a normal handler lookup.
func (a *Agent) lookupHandler(mboxID uint64, tag TypeTag) (SubscriptionEntry, *State, bool) {
	state := a.CurrentState()

	// Resolve transfer_to_state declarations with cycle detection.
	seen := map[*State]bool{}
	for {
		key := transitionKey{mboxID, tag}
		if target, ok := state.transfer[key]; ok {
			if seen[state] {
				return SubscriptionEntry{}, nil, false
			}
			seen[state] = true
			state = target.leaf()
			continue
		}
		break
	}

	for cur := state; cur != nil; cur = cur.parent {
		key := transitionKey{mboxID, tag}
		if cur.suppress[key] {
			return SubscriptionEntry{Handler: func(*EventContext) error { return nil }, HandlerKind: HandlerKindSuppress}, cur, true
		}
		if target, ok := cur.justSwitch[key]; ok {
			return SubscriptionEntry{
				Handler: func(ctx *EventContext) error { return ctx.Agent.ChangeState(target) },
				HandlerKind: HandlerKindJustSwitch,
			}, cur, true
		}
		if e, ok := a.storage.Find(mboxID, tag, cur); ok {
			return e, cur, true
		}
	}
	return SubscriptionEntry{}, nil, false
}

// PushEvent implements MessageSink. It is called synchronously in the
// producer's thread by Mbox.DoDeliverMessage. It consults this agent's
// MessageLimits, applies the configured overlimit reaction if needed, and
// otherwise enqueues an ExecutionDemand onto the agent's queue.
func (a *Agent) PushEvent(mboxID uint64, tag TypeTag, msg *Message, redirectionDeep int) error {
	limit, hasLimit := a.limits.Get(tag)
	if hasLimit {
		within, _ := limit.tryAcquire()
		if !within {
			return a.reactToOverlimit(limit, mboxID, tag, msg, redirectionDeep)
		}
	}

	selector := SelectorMsg
	if msg.Mutable() {
		selector = SelectorMutableMsg
	}
	demand := ExecutionDemand{Agent: a, MboxID: mboxID, TypeTag: tag, Message: msg, Selector: selector, Limit: limit}
	if a.queue == nil {
		return newErr("push_event", KindInvariantViolation, fmt.Errorf("agent not bound to a dispatcher"))
	}
	return a.queue.Push(demand)
}

func (a *Agent) reactToOverlimit(limit *MessageLimit, mboxID uint64, tag TypeTag, msg *Message, redirectionDeep int) error {
	defer limit.release() // every reaction undoes the speculative acquire; redirect/transform acquire fresh at the new destination

	maxDeep := DefaultRedirectionDeepLimit
	if a.env != nil {
		maxDeep = a.env.params.RedirectionDeepLimit
	}
	if redirectionDeep >= maxDeep {
		a.env.trace(TraceRecord{Action: "limit/redirection-depth-exceeded", MboxID: mboxID, TypeTag: tag})
		return nil
	}

	switch limit.Reaction.Kind {
	case LimitReactionDrop:
		a.env.trace(TraceRecord{Action: "limit/drop", MboxID: mboxID, TypeTag: tag})
		return nil
	case LimitReactionAbort:
		if a.env != nil {
			a.env.fatal("message_limit", fmt.Sprintf("agent message limit exceeded for type %d, abort reaction", tag))
		}
		return newErr("push_event", KindCapacityViolation, fmt.Errorf("message limit exceeded, abort reaction"))
	case LimitReactionRedirect:
		target := limit.Reaction.Redirect()
		if target == nil {
			return nil
		}
		return target.DoDeliverMessage(tag, msg, redirectionDeep+1)
	case LimitReactionTransform:
		target, newTag, newMsg := limit.Reaction.Transform(msg.Payload())
		if target == nil || newMsg == nil {
			return nil
		}
		return target.DoDeliverMessage(newTag, newMsg, redirectionDeep+1)
	}
	return nil
}

// invoke runs one ExecutionDemand on the dispatcher thread currently
// executing this agent. It is the single place lifecycle selectors and
// ordinary handler lookup are dispatched.
func (a *Agent) invoke(d ExecutionDemand) {
	if d.Limit != nil {
		d.Limit.release()
	}

	switch d.Selector {
	case SelectorEvtStart:
		a.runProtected(func() error {
			if s, ok := a.behavior.(AgentStarter); ok {
				return s.EvtStart(a)
			}
			return nil
		})
		return
	case SelectorEvtFinish:
		if f, ok := a.behavior.(AgentFinisher); ok {
			f.EvtFinish(a)
		}
		return
	}

	entry, _, found := a.lookupHandler(d.MboxID, d.TypeTag)
	if !found {
		return
	}
	a.runProtected(func() error {
		return entry.Handler(&EventContext{Agent: a, MboxID: d.MboxID, TypeTag: d.TypeTag, Message: d.Message})
	})
}

// runProtected invokes fn, converting a panic into a KindUnknownException
// (or KindUserHandlerException if the panic value was an error), then
// applies the exception reaction policy.
func (a *Agent) runProtected(fn func() error) {
	var handlerErr error
	func() {
		defer func() {
			if r := recover(); r != nil {
				if e, ok := r.(error); ok {
					handlerErr = newErr("handler", KindUserHandlerException, e)
				} else {
					handlerErr = newErr("handler", KindUnknownException, fmt.Errorf("%v", r))
				}
			}
		}()
		handlerErr = fn()
	}()
	if handlerErr == nil {
		return
	}
	a.handleException(handlerErr)
}

func (a *Agent) handleException(err error) {
	reaction := a.resolveExceptionReaction()
	if a.env != nil {
		a.env.logger.Error("agent handler exception", "agent", a.name, "reaction", reaction, "error", err)
	}
	switch reaction {
	case AbortOnException:
		if a.env != nil {
			a.env.fatal("agent_exception", err.Error())
		}
	case ShutdownEnvironmentOnException:
		if a.env != nil {
			a.env.Stop()
		}
	case DeregisterCoopOnException:
		if a.coop != nil {
			a.coop.Deregister(err.Error())
		}
	case IgnoreException:
		// swallow
	}
}

// Invoke runs one ExecutionDemand, for use by dispatcher implementations
// outside this package (so5/dispatch) that cannot call Agent.invoke
// directly.
func Invoke(d ExecutionDemand) { d.Agent.invoke(d) }

func (a *Agent) resolveExceptionReaction() ExceptionReactionKind {
	if a.exceptionReaction != InheritExceptionReaction {
		return a.exceptionReaction
	}
	if a.coop != nil && a.coop.exceptionReaction != InheritExceptionReaction {
		return a.coop.exceptionReaction
	}
	if a.env != nil {
		return a.env.params.DefaultExceptionReaction
	}
	return AbortOnException
}
