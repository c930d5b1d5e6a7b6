// Package subscr provides interchangeable SubscriptionStorage backends for
// so5.Agent, trading setup cost against lookup speed as subscription counts
// grow.
package subscr

import "github.com/so5go/so5"

type vectorEntry struct {
	key   so5.SubscriptionKey
	entry so5.SubscriptionEntry
}

// Vector is a flat, unsorted slice scanned linearly on every Find. Cheapest
// to allocate and fastest for the common case of a handful of
// subscriptions per agent; Find degrades to O(n). Mirrors the slice-backed
// default the root package carries so an Environment works unconfigured,
// exposed here as an explicit, swappable choice alongside Map/Hash/FlatSet.
type Vector struct {
	entries []vectorEntry
}

// NewVector constructs an empty Vector backend.
func NewVector() so5.SubscriptionStorage { return &Vector{} }

func (s *Vector) Create(key so5.SubscriptionKey, entry so5.SubscriptionEntry) error {
	for _, e := range s.entries {
		if e.key == key {
			return &so5.Error{Op: "subscr.vector.create", Kind: so5.KindInvariantViolation, Cause: so5.ErrDuplicateSubscription}
		}
	}
	s.entries = append(s.entries, vectorEntry{key, entry})
	return nil
}

func (s *Vector) DropForState(key so5.SubscriptionKey) bool {
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

func (s *Vector) DropForAllStates(mboxID uint64, tag so5.TypeTag) {
	out := s.entries[:0]
	for _, e := range s.entries {
		if e.key.MboxID == mboxID && e.key.Tag == tag {
			continue
		}
		out = append(out, e)
	}
	s.entries = out
}

func (s *Vector) DropAll() { s.entries = nil }

func (s *Vector) Find(mboxID uint64, tag so5.TypeTag, state *so5.State) (so5.SubscriptionEntry, bool) {
	for _, e := range s.entries {
		if e.key.MboxID == mboxID && e.key.Tag == tag && e.key.State == state {
			return e.entry, true
		}
	}
	return so5.SubscriptionEntry{}, false
}

func (s *Vector) Enumerate() []so5.SubscriptionKey {
	out := make([]so5.SubscriptionKey, len(s.entries))
	for i, e := range s.entries {
		out[i] = e.key
	}
	return out
}

func (s *Vector) Len() int { return len(s.entries) }
