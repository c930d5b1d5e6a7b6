package so5

// MessageSink is "where a message goes next": the abstraction an Mbox hands
// a passing message to once its delivery filter has been consulted.
// An Agent is the canonical sink (it owns an event queue and a
// MessageLimits table); SingleSinkBinding/MultiSinkBinding let externally
// owned subscription sets act as sinks too.
type MessageSink interface {
	// PushEvent is called by an Mbox's routing code, synchronously in the
	// sender's thread, once a subscriber has passed its delivery filter.
	// The sink is responsible for consulting its own MessageLimits, and for
	// the overlimit reaction, including incrementing/decrementing the
	// occupancy counter.
	PushEvent(mboxID uint64, tag TypeTag, msg *Message, redirectionDeep int) error

	// SinkID returns a stable identity used as part of the subscription
	// key (mbox-id, msg-type, sink) so a subscriber appears at most once
	// per (mbox, msg-type).
	SinkID() uintptr
}

// SingleSinkBinding owns exactly one subscription-carrying sink and forwards
// bind/unbind calls to it: a small externally held object that represents
// "this code path owns the subscription to mbox for msg-type T",
// independent of any Agent.
type SingleSinkBinding struct {
	mbox    Mbox
	tag     TypeTag
	sink    MessageSink
	bound   bool
}

// NewSingleSinkBinding subscribes sink to tag on mbox immediately and
// returns a handle that unsubscribes on Unbind. Nothing unsubscribes it
// when the handle is garbage collected.
func NewSingleSinkBinding(mbox Mbox, tag TypeTag, sink MessageSink) (*SingleSinkBinding, error) {
	if err := mbox.subscribeTag(tag, sink); err != nil {
		return nil, err
	}
	return &SingleSinkBinding{mbox: mbox, tag: tag, sink: sink, bound: true}, nil
}

// Unbind drops the subscription. Idempotent.
func (b *SingleSinkBinding) Unbind() {
	if !b.bound {
		return
	}
	b.mbox.unsubscribeTag(b.tag, b.sink)
	b.bound = false
}

// MultiSinkBinding owns a set of (mbox, tag) subscriptions for one sink and
// releases all of them in one UnbindAll call, one mbox after another.
type MultiSinkBinding struct {
	sink    MessageSink
	entries []sinkBindingEntry
}

type sinkBindingEntry struct {
	mbox Mbox
	tag  TypeTag
}

// NewMultiSinkBinding creates an empty binding set for sink.
func NewMultiSinkBinding(sink MessageSink) *MultiSinkBinding {
	return &MultiSinkBinding{sink: sink}
}

// Add subscribes sink to tag on mbox and records it for later release.
func (b *MultiSinkBinding) Add(mbox Mbox, tag TypeTag) error {
	if err := mbox.subscribeTag(tag, b.sink); err != nil {
		return err
	}
	b.entries = append(b.entries, sinkBindingEntry{mbox: mbox, tag: tag})
	return nil
}

// UnbindAll releases every subscription this binding accumulated, in
// reverse order of addition (mirrors coop resource teardown order).
func (b *MultiSinkBinding) UnbindAll() {
	for i := len(b.entries) - 1; i >= 0; i-- {
		e := b.entries[i]
		e.mbox.unsubscribeTag(e.tag, b.sink)
	}
	b.entries = nil
}
