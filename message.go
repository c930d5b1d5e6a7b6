package so5

import (
	"reflect"
	"sync"
	"sync/atomic"
)

// TypeTag is a stable per-message-type integer computed once per type and
// used as the subscription/routing key instead of a runtime string or
// reflect.Type comparison on the hot path (see Design Notes, "Dynamic
// dispatch by type").
type TypeTag uintptr

var (
	typeTagSeq atomic.Uintptr
	typeTagMu  sync.Mutex
	typeTags   = make(map[reflect.Type]TypeTag)
)

// TypeTagOf returns the stable TypeTag for the Go type of v, allocating a
// new tag on first use of that type.
func TypeTagOf(v any) TypeTag {
	return typeTagFor(reflect.TypeOf(v))
}

func typeTagFor(t reflect.Type) TypeTag {
	typeTagMu.Lock()
	defer typeTagMu.Unlock()
	if tag, ok := typeTags[t]; ok {
		return tag
	}
	tag := TypeTag(typeTagSeq.Add(1))
	typeTags[t] = tag
	return tag
}

// Signal marks a message type that carries no payload; only its TypeTag
// matters for routing. Embed Signal (or implement isSignal) in a type meant
// to be sent as a pure notification.
type Signal struct{}

func (Signal) isSignal() {}

type signalMarker interface{ isSignal() }

// IsSignalType reports whether v's type is a signal (payload-less message).
func IsSignalType(v any) bool {
	_, ok := v.(signalMarker)
	return ok
}

// Mutable wraps a payload to mark it mutable. Mutable messages may only be
// delivered through an MPSC mbox and may never be scheduled as a periodic
// timer.
type Mutable struct {
	Payload any
}

// Message is the framework's internal representation of one instance in
// flight: a type tag, the payload, a mutability flag, and a reference
// count that starts at 1 and that routing in this package does not change
// (the payload itself is not copied per-subscriber; all subscribers observe
// the same instance).
type Message struct {
	typeTag   TypeTag
	goType    reflect.Type
	payload   any
	mutable   bool
	signal    bool
	refs      atomic.Int64
	createdAt int64 // ordering hint; no code in this package sets it
}

// NewMessage wraps payload into a reference-counted Message instance. If
// payload is a Mutable, the message is marked mutable and the inner payload
// is unwrapped.
func NewMessage(payload any) *Message {
	mutable := false
	if mw, ok := payload.(Mutable); ok {
		mutable = true
		payload = mw.Payload
	}
	m := &Message{
		payload: payload,
		mutable: mutable,
		signal:  IsSignalType(payload),
	}
	if payload != nil {
		m.goType = reflect.TypeOf(payload)
		m.typeTag = typeTagFor(m.goType)
	}
	m.refs.Store(1)
	return m
}

// TypeTag returns the message's stable type tag.
func (m *Message) TypeTag() TypeTag { return m.typeTag }

// GoType returns the underlying Go type of the payload.
func (m *Message) GoType() reflect.Type { return m.goType }

// Payload returns the wrapped payload value (the zero value of the signal
// type for a signal).
func (m *Message) Payload() any { return m.payload }

// Mutable reports whether this message instance was marked mutable.
func (m *Message) Mutable() bool { return m.mutable }

// IsSignal reports whether this message carries no payload.
func (m *Message) IsSignal() bool { return m.signal }

// retain increments the shared ownership count. Nothing in this package
// calls it: fan-out hands the same instance to every subscriber uncounted.
func (m *Message) retain() { m.refs.Add(1) }

// release decrements the shared ownership count. The Go garbage collector
// reclaims the payload once every reference is dropped; release exists so
// finalizer-style hooks (tracing, pooling) have a defined "last reference
// gone" point to hook.
func (m *Message) release() int64 { return m.refs.Add(-1) }
