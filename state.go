package so5

import (
	"fmt"
	"time"
)

// DefaultMaxStateNestingDepth bounds hierarchical state nesting. Configurable
// per Environment.
const DefaultMaxStateNestingDepth = 16

// State is a node in an agent's hierarchical state machine.
type State struct {
	name    string
	agent   *Agent
	parent  *State
	initial *State // initial substate, required if this State has children

	timeLimitDuration time.Duration
	timeLimitTarget   *State

	onEnter func()
	onExit  func()

	justSwitch map[transitionKey]*State
	suppress   map[transitionKey]bool
	transfer   map[transitionKey]*State
}

type transitionKey struct {
	mboxID uint64
	tag    TypeTag
}

// NewState creates a detached state. Call BindTo to attach it to an agent
// before using it in subscriptions.
func NewState(name string) *State {
	return &State{
		name:       name,
		justSwitch: make(map[transitionKey]*State),
		suppress:   make(map[transitionKey]bool),
		transfer:   make(map[transitionKey]*State),
	}
}

// Name returns the state's human-readable identifier.
func (s *State) Name() string { return s.name }

func (s *State) String() string { return s.name }

// BindTo attaches the state to an agent; required before the state can be
// used in Agent.ChangeState or in subscriptions.
func (s *State) BindTo(a *Agent) *State {
	s.agent = a
	return s
}

// SetParent nests s under parent, building the hierarchy used for fallback
// lookup during dispatch.
func (s *State) SetParent(parent *State) *State {
	s.parent = parent
	return s
}

// SetInitial declares this state's initial substate. A composite state
// (one with children) must have one.
func (s *State) SetInitial(initial *State) *State {
	s.initial = initial
	return s
}

// OnEnter/OnExit register lifecycle hooks, invoked in the order documented
// on Agent.ChangeState.
func (s *State) OnEnter(fn func()) *State { s.onEnter = fn; return s }
func (s *State) OnExit(fn func()) *State  { s.onExit = fn; return s }

// TimeLimit declares that after d spent in this state (started the moment
// it becomes the leaf current state), the agent auto-transitions to target.
func (s *State) TimeLimit(d time.Duration, target *State) *State {
	s.timeLimitDuration = d
	s.timeLimitTarget = target
	return s
}

// JustSwitchTo declares that receiving message type tag on mbox while in
// this state switches to target without invoking a user handler.
func (s *State) JustSwitchTo(mboxID uint64, tag TypeTag, target *State) *State {
	s.justSwitch[transitionKey{mboxID, tag}] = target
	return s
}

// Suppress declares that receiving message type tag on mbox while in this
// state is swallowed with no handler invocation.
func (s *State) Suppress(mboxID uint64, tag TypeTag) *State {
	s.suppress[transitionKey{mboxID, tag}] = true
	return s
}

// TransferToState declares that receiving tag on mbox in this state should
// be treated as received in target instead, after switching to target.
func (s *State) TransferToState(mboxID uint64, tag TypeTag, target *State) *State {
	s.transfer[transitionKey{mboxID, tag}] = target
	return s
}

// leaf walks the initial-substate chain to find the leaf state a switch
// into s should land on. The "current state" is always a leaf.
func (s *State) leaf() *State {
	cur := s
	seen := map[*State]bool{}
	for cur.initial != nil {
		if seen[cur] {
			// A cycle in initial-substate chains is itself an invariant
			// violation; callers are expected to have validated this at
			// state-definition time, so this is a defensive stop only.
			break
		}
		seen[cur] = true
		cur = cur.initial
	}
	return cur
}

// pathToRoot returns [s, s.parent, ..., root].
func (s *State) pathToRoot() []*State {
	var path []*State
	for cur := s; cur != nil; cur = cur.parent {
		path = append(path, cur)
	}
	return path
}

// depth returns nesting depth (root == 0).
func (s *State) depth() int {
	d := 0
	for cur := s.parent; cur != nil; cur = cur.parent {
		d++
	}
	return d
}

// validateNesting checks the max-depth invariant and that every composite
// state on the path has an initial substate.
func (s *State) validateNesting(maxDepth int) error {
	if s.depth() > maxDepth {
		return newErr("change_state", KindInvariantViolation,
			fmt.Errorf("%w: depth %d exceeds max %d", ErrStateNestingTooDeep, s.depth(), maxDepth))
	}
	for _, p := range s.pathToRoot()[1:] {
		if p.initial == nil {
			return newErr("change_state", KindInvariantViolation,
				fmt.Errorf("%w: %s", ErrCompositeNeedsInitial, p.name))
		}
	}
	return nil
}
