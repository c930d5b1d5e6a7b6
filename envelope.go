package so5

// Envelope wraps a Message with inspection/transform hooks that run as part
// of delivery: it is transparent to type-based subscription but may
// suppress or observe delivery. An envelope can observe a delivery attempt
// and, by returning EnvelopeActionTransformed with a replacement message,
// effectively transform it before it reaches the sink; returning
// EnvelopeActionSuppress makes the delivery a no-op without invoking the
// sink at all.
type Envelope interface {
	// Payload returns the wrapped message. Subscription lookups key off the
	// payload's TypeTag, never the envelope's own type.
	Payload() *Message

	// AccessHook is invoked once per sink the envelope is about to be
	// delivered to, immediately before the sink's push is attempted. It may
	// inspect the payload, suppress delivery, or substitute another
	// message.
	AccessHook(ctx EnvelopeAccessContext) EnvelopeAction
}

// EnvelopeAccessContext describes why AccessHook was invoked.
type EnvelopeAccessContext struct {
	// Mode distinguishes a normal delivery attempt from a context where the
	// payload is merely being inspected (e.g. by a delivery filter), which
	// must not trigger side effects meant for actual delivery.
	Mode EnvelopeAccessMode
}

// EnvelopeAccessMode enumerates why an envelope's AccessHook fired.
type EnvelopeAccessMode int

const (
	// EnvelopeAccessDeliver means the payload is about to be handed to a
	// sink for real.
	EnvelopeAccessDeliver EnvelopeAccessMode = iota
	// EnvelopeAccessInspect means the payload is being looked at for a
	// filter/trace decision only; hooks must not count this as delivery.
	EnvelopeAccessInspect
)

// EnvelopeAction is the verdict an envelope's AccessHook returns.
type EnvelopeAction struct {
	Kind        EnvelopeActionKind
	Replacement *Message // only meaningful when Kind == EnvelopeActionTransformed
}

// EnvelopeActionKind enumerates the possible envelope verdicts.
type EnvelopeActionKind int

const (
	// EnvelopeActionPassthrough delivers the original payload unchanged.
	EnvelopeActionPassthrough EnvelopeActionKind = iota
	// EnvelopeActionTransformed substitutes EnvelopeAction.Replacement.
	EnvelopeActionTransformed
	// EnvelopeActionSuppress swallows the delivery silently.
	EnvelopeActionSuppress
)

// transparentEnvelope is the identity envelope used when a Message is sent
// without an explicit wrapper; it exists so mbox routing code can always
// go through the Envelope surface instead of branching on "is this
// enveloped".
type transparentEnvelope struct{ msg *Message }

func (e transparentEnvelope) Payload() *Message { return e.msg }

func (e transparentEnvelope) AccessHook(EnvelopeAccessContext) EnvelopeAction {
	return EnvelopeAction{Kind: EnvelopeActionPassthrough}
}

func wrapTransparent(m *Message) Envelope { return transparentEnvelope{msg: m} }

// unwrapForInspection walks through any envelope to reach the concrete
// message for filter evaluation, without treating the walk as delivery.
func unwrapForInspection(e Envelope) (*Message, EnvelopeAction) {
	action := e.AccessHook(EnvelopeAccessContext{Mode: EnvelopeAccessInspect})
	switch action.Kind {
	case EnvelopeActionSuppress:
		return nil, action
	case EnvelopeActionTransformed:
		return action.Replacement, action
	default:
		return e.Payload(), action
	}
}
