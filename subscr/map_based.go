package subscr

import "github.com/so5go/so5"

type mboxTagKey struct {
	mboxID uint64
	tag    so5.TypeTag
}

// Map is a two-level map: (mbox, type) -> state -> entry. Find and
// DropForState are O(1) average; Enumerate requires visiting every bucket.
// Better than Vector once an agent accumulates more than a handful of
// subscriptions (see DESIGN.md for the chosen switch-over guidance).
type Map struct {
	byMboxTag map[mboxTagKey]map[*so5.State]so5.SubscriptionEntry
	count     int
}

// NewMap constructs an empty Map backend.
func NewMap() so5.SubscriptionStorage {
	return &Map{byMboxTag: make(map[mboxTagKey]map[*so5.State]so5.SubscriptionEntry)}
}

func (s *Map) Create(key so5.SubscriptionKey, entry so5.SubscriptionEntry) error {
	k := mboxTagKey{key.MboxID, key.Tag}
	states, ok := s.byMboxTag[k]
	if !ok {
		states = make(map[*so5.State]so5.SubscriptionEntry)
		s.byMboxTag[k] = states
	}
	if _, exists := states[key.State]; exists {
		return &so5.Error{Op: "subscr.map.create", Kind: so5.KindInvariantViolation, Cause: so5.ErrDuplicateSubscription}
	}
	states[key.State] = entry
	s.count++
	return nil
}

func (s *Map) DropForState(key so5.SubscriptionKey) bool {
	k := mboxTagKey{key.MboxID, key.Tag}
	states, ok := s.byMboxTag[k]
	if !ok {
		return true
	}
	if _, exists := states[key.State]; exists {
		delete(states, key.State)
		s.count--
	}
	if len(states) == 0 {
		delete(s.byMboxTag, k)
		return true
	}
	return false
}

func (s *Map) DropForAllStates(mboxID uint64, tag so5.TypeTag) {
	k := mboxTagKey{mboxID, tag}
	if states, ok := s.byMboxTag[k]; ok {
		s.count -= len(states)
		delete(s.byMboxTag, k)
	}
}

func (s *Map) DropAll() {
	s.byMboxTag = make(map[mboxTagKey]map[*so5.State]so5.SubscriptionEntry)
	s.count = 0
}

func (s *Map) Find(mboxID uint64, tag so5.TypeTag, state *so5.State) (so5.SubscriptionEntry, bool) {
	states, ok := s.byMboxTag[mboxTagKey{mboxID, tag}]
	if !ok {
		return so5.SubscriptionEntry{}, false
	}
	e, ok := states[state]
	return e, ok
}

func (s *Map) Enumerate() []so5.SubscriptionKey {
	out := make([]so5.SubscriptionKey, 0, s.count)
	for k, states := range s.byMboxTag {
		for state := range states {
			out = append(out, so5.SubscriptionKey{MboxID: k.mboxID, Tag: k.tag, State: state})
		}
	}
	return out
}

func (s *Map) Len() int { return s.count }
