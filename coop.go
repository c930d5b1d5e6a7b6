package so5

import (
	"sync"

	"go.uber.org/multierr"
)

// CoopState tracks where a cooperation is in its registration/deregistration
// lifecycle.
type CoopState int

const (
	CoopRegistering CoopState = iota
	CoopRegistered
	CoopDeregistering
	CoopDeregistered
)

func (s CoopState) String() string {
	switch s {
	case CoopRegistering:
		return "registering"
	case CoopRegistered:
		return "registered"
	case CoopDeregistering:
		return "deregistering"
	case CoopDeregistered:
		return "deregistered"
	default:
		return "unknown"
	}
}

// Coop (cooperation) is the unit of atomic registration/deregistration: a
// named group of agents, optionally nested under a parent coop, that are
// bound to dispatchers and started together and torn down together.
type Coop struct {
	name   string
	env    *Environment
	parent *Coop

	mu       sync.Mutex
	state    CoopState
	agents   []*Agent
	children map[string]*Coop

	exceptionReaction ExceptionReactionKind

	// finishing counts agents that have been asked to deregister but whose
	// evt_finish + unbind has not yet completed; the coop is only removed
	// from the repository once this reaches zero and every child has fully
	// deregistered.
	finishing int
	onDrained func(*Coop) // invoked once fully torn down, installed by the repository
}

// NewCoop creates a detached coop. Call AddAgent to populate it, then
// Environment.RegisterCoop (or RegisterCoopAsChild) to bring it to life.
func NewCoop(name string) *Coop {
	return &Coop{name: name, children: make(map[string]*Coop)}
}

// Name returns the coop's registered name.
func (c *Coop) Name() string { return c.name }

// State reports the coop's current lifecycle stage.
func (c *Coop) State() CoopState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// SetExceptionReaction overrides every member agent's default exception
// reaction (an agent's own override, if any, still takes priority).
func (c *Coop) SetExceptionReaction(k ExceptionReactionKind) *Coop {
	c.exceptionReaction = k
	return c
}

// AddAgent registers agent as a member, to be bound when the coop is
// registered. Must be called before RegisterCoop.
func (c *Coop) AddAgent(agent *Agent) *Coop {
	agent.coop = c
	c.agents = append(c.agents, agent)
	return c
}

// Agents returns the coop's member agents (registration order).
func (c *Coop) Agents() []*Agent {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*Agent, len(c.agents))
	copy(out, c.agents)
	return out
}

// Parent returns the owning coop, or nil for a root coop.
func (c *Coop) Parent() *Coop { return c.parent }

// bindAgents runs DefineAgent, SetMessageLimits wiring, and dispatcher
// binding for every member, in registration order. On any failure it
// unwinds everything already bound for THIS coop (its own agents only —
// parent/child rollback is the repository's job) and returns the
// accumulated error via multierr.
func (c *Coop) bindAgents(env *Environment, dispatcher Dispatcher) error {
	var bound []*Agent
	var err error
	for _, a := range c.agents {
		a.env = env
		if a.storage == nil {
			a.storage = newDefaultSubscriptionStorage()
		}
		binder, bindErr := dispatcher.Bind(a, a.priority)
		if bindErr != nil {
			err = multierr.Append(err, newErr("register_coop", KindInvariantViolation, bindErr))
			break
		}
		if defErr := a.behavior.DefineAgent(a); defErr != nil {
			binder.Unbind()
			err = multierr.Append(err, newErr("register_coop", KindInvariantViolation, defErr))
			break
		}
		bound = append(bound, a)
	}
	if err != nil {
		for _, a := range bound {
			if a.binder != nil {
				a.binder.Unbind()
			}
			a.storage.DropAll()
		}
		return err
	}
	return nil
}

// startAgents pushes each member's evt_start demand. Called after every
// member has been successfully bound.
func (c *Coop) startAgents() {
	for _, a := range c.agents {
		_ = a.queue.Push(ExecutionDemand{Agent: a, Selector: SelectorEvtStart})
	}
}

// finishAgents pushes each member's evt_finish demand (guaranteed not to
// fail) and, once the dispatcher confirms the demand has run, unbinds the
// agent's queue.
func (c *Coop) finishAgents() {
	c.mu.Lock()
	c.finishing = len(c.agents)
	c.mu.Unlock()
	for _, a := range c.agents {
		a := a
		a.queue.PushEvtFinish(ExecutionDemand{Agent: a, Selector: SelectorEvtFinish})
	}
}

// Deregister begins tearing the coop down: children first, then this coop's
// own agents. A parent cannot finish deregistering before its children do,
// since children may still be sending through mboxes whose lifetime the
// parent owns.
func (c *Coop) Deregister(reason string) {
	if c.env == nil {
		return
	}
	c.env.deregisterCoop(c, reason)
}
