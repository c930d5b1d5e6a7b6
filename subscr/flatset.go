package subscr

import (
	"sort"
	"unsafe"

	"github.com/so5go/so5"
)

func statePtr(s *so5.State) unsafe.Pointer { return unsafe.Pointer(s) }

// FlatSet keeps entries in one slice sorted by (MboxID, Tag, State pointer)
// and finds by binary search: no map, no per-entry allocation beyond the
// slice itself, the most cache-friendly option once an agent's
// subscription count is large and mostly static after DefineAgent runs.
type FlatSet struct {
	entries []vectorEntry
}

// NewFlatSet constructs an empty FlatSet backend.
func NewFlatSet() so5.SubscriptionStorage { return &FlatSet{} }

func flatSetLess(a, b so5.SubscriptionKey) bool {
	if a.MboxID != b.MboxID {
		return a.MboxID < b.MboxID
	}
	if a.Tag != b.Tag {
		return a.Tag < b.Tag
	}
	return uintptr(statePtr(a.State)) < uintptr(statePtr(b.State))
}

func (s *FlatSet) search(key so5.SubscriptionKey) int {
	return sort.Search(len(s.entries), func(i int) bool {
		return !flatSetLess(s.entries[i].key, key)
	})
}

func (s *FlatSet) Create(key so5.SubscriptionKey, entry so5.SubscriptionEntry) error {
	i := s.search(key)
	if i < len(s.entries) && s.entries[i].key == key {
		return &so5.Error{Op: "subscr.flatset.create", Kind: so5.KindInvariantViolation, Cause: so5.ErrDuplicateSubscription}
	}
	s.entries = append(s.entries, vectorEntry{})
	copy(s.entries[i+1:], s.entries[i:])
	s.entries[i] = vectorEntry{key, entry}
	return nil
}

func (s *FlatSet) DropForState(key so5.SubscriptionKey) bool {
	i := s.search(key)
	if i < len(s.entries) && s.entries[i].key == key {
		s.entries = append(s.entries[:i], s.entries[i+1:]...)
	}
	for _, e := range s.entries {
		if e.key.MboxID == key.MboxID && e.key.Tag == key.Tag {
			return false
		}
	}
	return true
}

func (s *FlatSet) DropForAllStates(mboxID uint64, tag so5.TypeTag) {
	out := s.entries[:0]
	for _, e := range s.entries {
		if e.key.MboxID == mboxID && e.key.Tag == tag {
			continue
		}
		out = append(out, e)
	}
	s.entries = out
}

func (s *FlatSet) DropAll() { s.entries = nil }

func (s *FlatSet) Find(mboxID uint64, tag so5.TypeTag, state *so5.State) (so5.SubscriptionEntry, bool) {
	key := so5.SubscriptionKey{MboxID: mboxID, Tag: tag, State: state}
	i := s.search(key)
	if i < len(s.entries) && s.entries[i].key == key {
		return s.entries[i].entry, true
	}
	return so5.SubscriptionEntry{}, false
}

func (s *FlatSet) Enumerate() []so5.SubscriptionKey {
	out := make([]so5.SubscriptionKey, len(s.entries))
	for i, e := range s.entries {
		out[i] = e.key
	}
	return out
}

func (s *FlatSet) Len() int { return len(s.entries) }
