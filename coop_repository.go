package so5

import (
	"fmt"
	"sync"
)

// coopRepository is the environment-wide index of live coops, keyed by name,
// with parent/child edges recorded so deregistration can cascade correctly.
type coopRepository struct {
	mu    sync.Mutex
	byName map[string]*Coop
	roots  map[string]*Coop
}

func newCoopRepository() *coopRepository {
	return &coopRepository{
		byName: make(map[string]*Coop),
		roots:  make(map[string]*Coop),
	}
}

func (r *coopRepository) register(c *Coop, parent *Coop) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byName[c.name]; exists {
		return newErr("register_coop", KindInvariantViolation, ErrCoopNameTaken)
	}
	if parent != nil {
		parent.mu.Lock()
		if parent.state == CoopDeregistering || parent.state == CoopDeregistered {
			parent.mu.Unlock()
			return newErr("register_coop", KindInvariantViolation, ErrParentDeregistering)
		}
		parent.children[c.name] = c
		parent.mu.Unlock()
		c.parent = parent
	}
	r.byName[c.name] = c
	if parent == nil {
		r.roots[c.name] = c
	}
	return nil
}

func (r *coopRepository) find(name string) (*Coop, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.byName[name]
	return c, ok
}

func (r *coopRepository) list() []*Coop {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Coop, 0, len(r.byName))
	for _, c := range r.byName {
		out = append(out, c)
	}
	return out
}

// isEmpty reports whether no coop is registered any more, used by
// EnvironmentParams.AutoShutdownWhenNoCoops to decide when the last coop
// finishing means the environment itself should stop.
func (r *coopRepository) isEmpty() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byName) == 0
}

// remove drops a fully-deregistered coop from every index and, if it had a
// parent, detaches it from the parent's child set so the parent's own
// drain-completion check can observe it is done.
func (r *coopRepository) remove(c *Coop) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byName, c.name)
	delete(r.roots, c.name)
	if c.parent != nil {
		c.parent.mu.Lock()
		delete(c.parent.children, c.name)
		c.parent.mu.Unlock()
	}
}

// deregisterCoop drives one coop through CoopDeregistering -> removed. It
// first recurses into every child (innermost coops finish first), then
// drains this coop's own agents, then removes it from the repository. If
// this was the last child blocking an already-deregistering parent, the
// parent is finalized too.
func (env *Environment) deregisterCoop(c *Coop, reason string) {
	c.mu.Lock()
	if c.state == CoopDeregistering || c.state == CoopDeregistered {
		c.mu.Unlock()
		return
	}
	c.state = CoopDeregistering
	children := make([]*Coop, 0, len(c.children))
	for _, ch := range c.children {
		children = append(children, ch)
	}
	c.mu.Unlock()

	for _, ch := range children {
		env.deregisterCoop(ch, fmt.Sprintf("parent %q deregistering: %s", c.name, reason))
	}

	c.finishAgents()
}

// NotifyAgentFinished lets a dispatcher implementation outside this package
// (so5/dispatch) report that an agent's evt_finish demand has run, the same
// notification the root package's own dispatchers give via
// Environment.onAgentFinished directly.
func NotifyAgentFinished(a *Agent) {
	if a.env != nil {
		a.env.onAgentFinished(a)
	}
}

// onAgentFinished is called by a dispatcher once an agent's evt_finish
// demand has actually run. It unbinds the agent and clears its subscription
// storage; when every member of c has finished, c is retired from the
// repository.
func (env *Environment) onAgentFinished(a *Agent) {
	c := a.coop
	if c == nil {
		return
	}
	c.mu.Lock()
	c.finishing--
	done := c.finishing <= 0 && len(c.children) == 0
	if done {
		c.state = CoopDeregistered
	}
	c.mu.Unlock()

	if a.binder != nil {
		a.binder.Unbind()
	}
	a.storage.DropAll()

	if done {
		env.coops.remove(c)
		if c.onDrained != nil {
			c.onDrained(c)
		}
		env.stats.Unregister("coop/" + c.name)

		if env.params.AutoShutdownWhenNoCoops && env.coops.isEmpty() {
			// Stop shuts down and joins every dispatcher, including the one
			// whose worker goroutine is running this very callback; do it
			// from a fresh goroutine so that join never waits on itself.
			go env.Stop()
		}
	}
}
