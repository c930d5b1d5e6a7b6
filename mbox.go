package so5

import (
	"sync"
	"sync/atomic"
)

// MboxKind distinguishes the two mbox flavors.
type MboxKind int

const (
	// MboxMPMC is multi-producer/multi-consumer: many subscribers, no
	// mutable messages.
	MboxMPMC MboxKind = iota
	// MboxMPSC is multi-producer/single-consumer: exactly one subscribing
	// agent over its lifetime, mutable messages allowed.
	MboxMPSC
)

func (k MboxKind) String() string {
	if k == MboxMPSC {
		return "MPSC"
	}
	return "MPMC"
}

// DeliveryFilter is a predicate consulted before enqueue on an MPMC mbox. It
// runs in the producer's thread, before the subscriber's limit counter is
// touched.
type DeliveryFilter func(payload any) bool

// Mbox is the routing endpoint contract.
type Mbox interface {
	ID() uint64
	Kind() MboxKind
	Environment() *Environment

	// SubscribeEventHandler is the public subscribe surface: it both
	// records (tag, sink) in the mbox's table and holds at most one entry
	// per (sink, tag) — a duplicate subscribe fails with ErrDuplicateSubscription.
	SubscribeEventHandler(tag TypeTag, sink MessageSink) error
	// UnsubscribeEventHandler removes a (tag, sink) entry. noexcept: never
	// returns an error, and is a no-op if not subscribed.
	UnsubscribeEventHandler(tag TypeTag, sink MessageSink)

	// SetDeliveryFilter installs a predicate for (tag, sink). MPMC only,
	// immutable messages only, forbidden on signals.
	SetDeliveryFilter(tag TypeTag, filter DeliveryFilter, sink MessageSink) error
	// DropDeliveryFilter removes a previously installed filter. No-op if
	// none was set.
	DropDeliveryFilter(tag TypeTag, sink MessageSink)

	// DoDeliverMessage synchronously routes msg to every passing
	// subscriber's sink.
	DoDeliverMessage(tag TypeTag, msg *Message, redirectionDeep int) error

	// internal, package-private plumbing used by sink.go's bindings so they
	// can share the same subscribe/unsubscribe path as the public API.
	subscribeTag(tag TypeTag, sink MessageSink) error
	unsubscribeTag(tag TypeTag, sink MessageSink)
}

type subscriberEntry struct {
	sink   MessageSink
	filter DeliveryFilter
}

// localMbox implements both MPMC and MPSC kinds; the only behavioral
// difference is enforced in the two validation helpers below. Subscribers
// are indexed by TypeTag and then by sink identity under a single
// sync.RWMutex.
type localMbox struct {
	id   uint64
	kind MboxKind
	env  *Environment

	mu   sync.RWMutex
	subs map[TypeTag]map[uintptr]*subscriberEntry

	mpscOwner atomic.Uintptr // SinkID of the one agent allowed to subscribe, MPSC only
}

func newLocalMbox(id uint64, kind MboxKind, env *Environment) *localMbox {
	return &localMbox{
		id:   id,
		kind: kind,
		env:  env,
		subs: make(map[TypeTag]map[uintptr]*subscriberEntry),
	}
}

func (m *localMbox) ID() uint64            { return m.id }
func (m *localMbox) Kind() MboxKind        { return m.kind }
func (m *localMbox) Environment() *Environment { return m.env }

func (m *localMbox) SubscribeEventHandler(tag TypeTag, sink MessageSink) error {
	return m.subscribeTag(tag, sink)
}

func (m *localMbox) subscribeTag(tag TypeTag, sink MessageSink) error {
	if m.kind == MboxMPSC {
		id := sink.SinkID()
		if !m.mpscOwner.CompareAndSwap(0, id) && m.mpscOwner.Load() != id {
			return newErr("subscribe_event_handler", KindInvariantViolation, ErrMPSCAlreadyBound)
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	set, ok := m.subs[tag]
	if !ok {
		set = make(map[uintptr]*subscriberEntry)
		m.subs[tag] = set
	}
	if _, exists := set[sink.SinkID()]; exists {
		return newErr("subscribe_event_handler", KindInvariantViolation, ErrDuplicateSubscription)
	}
	set[sink.SinkID()] = &subscriberEntry{sink: sink}
	return nil
}

func (m *localMbox) UnsubscribeEventHandler(tag TypeTag, sink MessageSink) {
	m.unsubscribeTag(tag, sink)
}

func (m *localMbox) unsubscribeTag(tag TypeTag, sink MessageSink) {
	m.mu.Lock()
	defer m.mu.Unlock()
	set, ok := m.subs[tag]
	if !ok {
		return
	}
	delete(set, sink.SinkID())
	if len(set) == 0 {
		delete(m.subs, tag)
	}
}

func (m *localMbox) SetDeliveryFilter(tag TypeTag, filter DeliveryFilter, sink MessageSink) error {
	if m.kind == MboxMPSC {
		// Filters are an MPMC concept; MPSC mboxes route directly to their
		// single agent without fan-out, so a filter would be meaningless.
		// Reject rather than silently ignore.
		return newErr("set_delivery_filter", KindInvariantViolation, ErrFilterOnMutable)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	set, ok := m.subs[tag]
	if !ok {
		return newErr("set_delivery_filter", KindInvariantViolation, ErrNotSubscribed)
	}
	e, ok := set[sink.SinkID()]
	if !ok {
		return newErr("set_delivery_filter", KindInvariantViolation, ErrNotSubscribed)
	}
	e.filter = filter
	return nil
}

func (m *localMbox) DropDeliveryFilter(tag TypeTag, sink MessageSink) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if set, ok := m.subs[tag]; ok {
		if e, ok := set[sink.SinkID()]; ok {
			e.filter = nil
		}
	}
}

func (m *localMbox) DoDeliverMessage(tag TypeTag, msg *Message, redirectionDeep int) error {
	if m.kind == MboxMPMC && msg.Mutable() {
		m.traceRejected(tag, msg, "mutable-on-mpmc")
		return newErr("do_deliver_message", KindMutabilityViolation, ErrMutableOnMPMC)
	}

	m.mu.RLock()
	set, ok := m.subs[tag]
	if !ok || len(set) == 0 {
		m.mu.RUnlock()
		m.traceNoSubscribers(tag, msg)
		return nil
	}
	entries := make([]*subscriberEntry, 0, len(set))
	for _, e := range set {
		entries = append(entries, e)
	}
	m.mu.RUnlock()

	for _, e := range entries {
		if e.filter != nil {
			if !e.filter(msg.Payload()) {
				m.traceRejectedByFilter(tag, msg, e.sink)
				continue
			}
		}
		if err := e.sink.PushEvent(m.id, tag, msg, redirectionDeep); err != nil {
			m.traceDeliveryError(tag, msg, e.sink, err)
		} else {
			m.traceDelivered(tag, msg, e.sink)
		}
	}
	return nil
}

func (m *localMbox) traceDelivered(tag TypeTag, msg *Message, sink MessageSink) {
	m.env.trace(m.traceRecord("mbox/delivered", tag, msg, sink, nil))
}

func (m *localMbox) traceRejectedByFilter(tag TypeTag, msg *Message, sink MessageSink) {
	m.env.trace(m.traceRecord("mbox/rejected-by-filter", tag, msg, sink, nil))
}

func (m *localMbox) traceNoSubscribers(tag TypeTag, msg *Message) {
	m.env.trace(m.traceRecord("mbox/no-subscribers", tag, msg, nil, nil))
}

func (m *localMbox) traceRejected(tag TypeTag, msg *Message, reason string) {
	m.env.trace(m.traceRecord("mbox/rejected-"+reason, tag, msg, nil, nil))
}

func (m *localMbox) traceDeliveryError(tag TypeTag, msg *Message, sink MessageSink, err error) {
	m.env.trace(m.traceRecord("mbox/push-error", tag, msg, sink, err))
}

// traceRecord builds the structured record shared by every routing
// decision: mbox id/kind and the message's Go type always come from this
// mbox and msg; AgentPtr is only set when a subscriber was actually
// involved (no-subscribers and filter/mutability rejections that never
// matched one have none to report). ThreadID is left zero — Go has no
// stable per-goroutine identifier the way a native thread id would give —
// and Envelope is left false, since delivery here always carries a plain
// *Message rather than a wrapped Envelope.
func (m *localMbox) traceRecord(action string, tag TypeTag, msg *Message, sink MessageSink, err error) TraceRecord {
	r := TraceRecord{
		Action:   action,
		MboxID:   m.id,
		MboxKind: m.kind,
		TypeTag:  tag,
		Mutable:  msg.Mutable(),
		Err:      err,
	}
	if t := msg.GoType(); t != nil {
		r.TypeName = t.String()
	}
	if sink != nil {
		r.AgentPtr = sink.SinkID()
	}
	return r
}

// mboxIDSeq hands out stable, unique-within-environment mbox ids.
type mboxIDSeq struct{ n atomic.Uint64 }

func (s *mboxIDSeq) next() uint64 { return s.n.Add(1) }
