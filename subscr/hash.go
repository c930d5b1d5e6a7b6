package subscr

import "github.com/so5go/so5"

// Hash is a single flat map keyed by the full composite (mbox, type, state)
// key — one hash lookup per Find/Create/DropForState, at the cost of a
// scan over every stored entry to answer DropForState's "any state left"
// question. Preferable to Map
// when an agent subscribes the same (mbox, type) across very few states but
// has a large total subscription count across many distinct mboxes.
type Hash struct {
	byKey map[so5.SubscriptionKey]so5.SubscriptionEntry
}

// NewHash constructs an empty Hash backend.
func NewHash() so5.SubscriptionStorage {
	return &Hash{byKey: make(map[so5.SubscriptionKey]so5.SubscriptionEntry)}
}

func (s *Hash) Create(key so5.SubscriptionKey, entry so5.SubscriptionEntry) error {
	if _, exists := s.byKey[key]; exists {
		return &so5.Error{Op: "subscr.hash.create", Kind: so5.KindInvariantViolation, Cause: so5.ErrDuplicateSubscription}
	}
	s.byKey[key] = entry
	return nil
}

func (s *Hash) DropForState(key so5.SubscriptionKey) bool {
	delete(s.byKey, key)
	for k := range s.byKey {
		if k.MboxID == key.MboxID && k.Tag == key.Tag {
			return false
		}
	}
	return true
}

func (s *Hash) DropForAllStates(mboxID uint64, tag so5.TypeTag) {
	for k := range s.byKey {
		if k.MboxID == mboxID && k.Tag == tag {
			delete(s.byKey, k)
		}
	}
}

func (s *Hash) DropAll() { s.byKey = make(map[so5.SubscriptionKey]so5.SubscriptionEntry) }

func (s *Hash) Find(mboxID uint64, tag so5.TypeTag, state *so5.State) (so5.SubscriptionEntry, bool) {
	e, ok := s.byKey[so5.SubscriptionKey{MboxID: mboxID, Tag: tag, State: state}]
	return e, ok
}

func (s *Hash) Enumerate() []so5.SubscriptionKey {
	out := make([]so5.SubscriptionKey, 0, len(s.byKey))
	for k := range s.byKey {
		out = append(out, k)
	}
	return out
}

func (s *Hash) Len() int { return len(s.byKey) }
