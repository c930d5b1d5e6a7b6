package so5

// HandlerFunc is invoked when a subscribed message is delivered to an agent
// in a state for which it is registered.
type HandlerFunc func(evt *EventContext) error

// EventContext is what a HandlerFunc receives: everything about the demand
// currently being executed.
type EventContext struct {
	Agent    *Agent
	MboxID   uint64
	TypeTag  TypeTag
	Message  *Message
	Envelope bool
}

// SubscriptionEntry is the value side of the per-agent subscription index:
// (mbox-id, msg-type, state) -> {handler, thread-safety, kind}.
type SubscriptionEntry struct {
	Handler     HandlerFunc
	ThreadSafe  bool
	HandlerKind HandlerKind
}

// HandlerKind distinguishes a normal user handler from the declarative
// transition shortcuts: just_switch_to and suppress install entries with no
// user Handler at all.
type HandlerKind int

const (
	HandlerKindNormal HandlerKind = iota
	HandlerKindJustSwitch
	HandlerKindSuppress
)

// SubscriptionKey identifies one entry in a per-agent subscription index.
type SubscriptionKey struct {
	MboxID uint64
	Tag    TypeTag
	State  *State
}

// SubscriptionStorage is the per-agent index from (mbox-id, msg-type, state)
// to handler. Four interchangeable backends are provided by so5/subscr;
// agent.go depends only on this interface so a backend can be chosen per
// agent without the root package importing the backend package (avoiding an
// import cycle, since the backends import so5 for the types above).
type SubscriptionStorage interface {
	// Create inserts a new entry, rejecting an exact (mbox, tag, state)
	// duplicate.
	Create(key SubscriptionKey, entry SubscriptionEntry) error

	// DropForState removes the entry for one state. lastForMboxTag reports
	// whether no entry remains for (mbox, tag) across any state, so the
	// caller can tell the mbox to release its side of the subscription.
	DropForState(key SubscriptionKey) (lastForMboxTag bool)

	// DropForAllStates removes every entry for (mbox, tag) regardless of
	// state, used during coop shutdown.
	DropForAllStates(mboxID uint64, tag TypeTag)

	// DropAll removes every entry, used when an agent is fully torn down.
	DropAll()

	// Find looks up the handler for (mbox, tag, state).
	Find(mboxID uint64, tag TypeTag, state *State) (SubscriptionEntry, bool)

	// Enumerate lists every key currently stored, for diagnostics/tests.
	Enumerate() []SubscriptionKey

	// Len reports entry count.
	Len() int
}

// SubscriptionStorageFactory builds a fresh, empty SubscriptionStorage. Each
// agent gets its own instance — subscription storages are private to one
// agent.
type SubscriptionStorageFactory func() SubscriptionStorage

// sliceSubscriptionStorage is the default, dependency-free backend: a flat
// slice scanned linearly. Adequate for the common case of a handful of
// subscriptions per agent; so5/subscr's map/hash/flatset backends trade
// setup cost for lookup speed at higher subscription counts.
type sliceSubscriptionStorage struct {
	entries []sliceEntry
}

type sliceEntry struct {
	key   SubscriptionKey
	entry SubscriptionEntry
}

func newDefaultSubscriptionStorage() SubscriptionStorage {
	return &sliceSubscriptionStorage{}
}

func (s *sliceSubscriptionStorage) Create(key SubscriptionKey, entry SubscriptionEntry) error {
	for _, e := range s.entries {
		if e.key == key {
			return newErr("subscription_storage.create", KindInvariantViolation, ErrDuplicateSubscription)
		}
	}
	s.entries = append(s.entries, sliceEntry{key, entry})
	return nil
}

func (s *sliceSubscriptionStorage) DropForState(key SubscriptionKey) bool {
	for i, e := range s.entries {
		if e.key == key {
			s.entries = append(s.entries[:i], s.entries[i+1:]...)
			break
		}
	}
	for _, e := range s.entries {
		if e.key.MboxID == key.MboxID && e.key.Tag == key.Tag {
			return false
		}
	}
	return true
}

func (s *sliceSubscriptionStorage) DropForAllStates(mboxID uint64, tag TypeTag) {
	out := s.entries[:0]
	for _, e := range s.entries {
		if e.key.MboxID == mboxID && e.key.Tag == tag {
			continue
		}
		out = append(out, e)
	}
	s.entries = out
}

func (s *sliceSubscriptionStorage) DropAll() {
	s.entries = nil
}

func (s *sliceSubscriptionStorage) Find(mboxID uint64, tag TypeTag, state *State) (SubscriptionEntry, bool) {
	for _, e := range s.entries {
		if e.key.MboxID == mboxID && e.key.Tag == tag && e.key.State == state {
			return e.entry, true
		}
	}
	return SubscriptionEntry{}, false
}

func (s *sliceSubscriptionStorage) Enumerate() []SubscriptionKey {
	out := make([]SubscriptionKey, len(s.entries))
	for i, e := range s.entries {
		out[i] = e.key
	}
	return out
}

func (s *sliceSubscriptionStorage) Len() int { return len(s.entries) }
