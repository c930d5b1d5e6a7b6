package so5

import "sync/atomic"

// LimitReactionKind enumerates overlimit reactions.
type LimitReactionKind int

const (
	LimitReactionDrop LimitReactionKind = iota
	LimitReactionAbort
	LimitReactionRedirect
	LimitReactionTransform
)

// RedirectFunc is consulted by a LimitReactionRedirect reaction to pick the
// mbox a message is re-delivered to.
type RedirectFunc func() Mbox

// TransformFunc is consulted by a LimitReactionTransform reaction. It
// receives the original payload and returns the mbox/message to deliver
// instead.
type TransformFunc func(payload any) (target Mbox, newTypeTag TypeTag, newMessage *Message)

// LimitReaction describes what a sink does when a message-limit counter
// would exceed its configured limit.
type LimitReaction struct {
	Kind      LimitReactionKind
	Redirect  RedirectFunc  // set iff Kind == LimitReactionRedirect
	Transform TransformFunc // set iff Kind == LimitReactionTransform
}

// DropReaction returns a LimitReaction that silently discards the message
// (with a trace record) when the limit is exceeded.
func DropReaction() LimitReaction { return LimitReaction{Kind: LimitReactionDrop} }

// AbortReaction returns a LimitReaction that calls the environment's error
// logger and terminates the process when the limit is exceeded. This is the
// one overlimit reaction classified as a fatal capacity violation.
func AbortReaction() LimitReaction { return LimitReaction{Kind: LimitReactionAbort} }

// RedirectReaction re-delivers the same message instance to whatever mbox
// fn() returns, consuming one unit of the redirection-deep guard.
func RedirectReaction(fn RedirectFunc) LimitReaction {
	return LimitReaction{Kind: LimitReactionRedirect, Redirect: fn}
}

// TransformReaction invokes fn(payload) and delivers the returned message
// to the returned mbox, consuming one unit of the redirection-deep guard.
func TransformReaction(fn TransformFunc) LimitReaction {
	return LimitReaction{Kind: LimitReactionTransform, Transform: fn}
}

// MessageLimit is a per-agent, per-message-type quota: a configured limit
// and the reaction to take when an enqueue would exceed it. The counter is
// incremented before enqueue and decremented when the demand is popped for
// execution, so it reflects queue occupancy rather than handler processing
// time.
type MessageLimit struct {
	Limit    uint32
	Reaction LimitReaction

	counter atomic.Uint32
}

// NewMessageLimit constructs a MessageLimit with the given quota and
// reaction.
func NewMessageLimit(limit uint32, reaction LimitReaction) *MessageLimit {
	return &MessageLimit{Limit: limit, Reaction: reaction}
}

// tryAcquire increments the counter and reports whether the resulting count
// is within the limit. If it is not, the counter is left incremented (the
// caller is expected to invoke the reaction exactly once and then, whatever
// the reaction, decrement back via release — redirect/transform additionally
// re-deliver through the pipeline, which performs its own acquire for the
// new destination).
func (l *MessageLimit) tryAcquire() (within bool, count uint32) {
	n := l.counter.Add(1)
	return n <= l.Limit, n
}

// release decrements the occupancy counter; called when a demand carrying
// this limit is popped off its queue for execution, or when a drop/abort
// reaction needs to undo its speculative acquire.
func (l *MessageLimit) release() {
	for {
		cur := l.counter.Load()
		if cur == 0 {
			return
		}
		if l.counter.CompareAndSwap(cur, cur-1) {
			return
		}
	}
}

// Occupancy returns the current counter value, useful for stats data
// sources and tests.
func (l *MessageLimit) Occupancy() uint32 { return l.counter.Load() }

// MessageLimits is the per-agent table of MessageLimit by TypeTag, owned by
// the agent and consulted by its sink on every push.
type MessageLimits struct {
	byType map[TypeTag]*MessageLimit
}

// NewMessageLimits constructs an empty limits table.
func NewMessageLimits() *MessageLimits {
	return &MessageLimits{byType: make(map[TypeTag]*MessageLimit)}
}

// Set installs (or replaces) the limit for a message type.
func (m *MessageLimits) Set(tag TypeTag, limit *MessageLimit) {
	m.byType[tag] = limit
}

// Get looks up the limit for a message type, if any is configured.
func (m *MessageLimits) Get(tag TypeTag) (*MessageLimit, bool) {
	l, ok := m.byType[tag]
	return l, ok
}
