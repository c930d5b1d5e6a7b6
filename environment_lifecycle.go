package so5

import "fmt"

// RegisterCoop brings a root coop to life: binds every member agent to the
// environment's default dispatcher, runs DefineAgent, and pushes each
// member's evt_start demand. On any member's DefineAgent or bind failure,
// every already-bound member of this coop is rolled back and the coop
// never appears in the repository.
func (env *Environment) RegisterCoop(c *Coop) error {
	return env.registerCoop(c, nil)
}

// RegisterCoopAsChild nests c under parent: parent must already be
// registered and not be deregistering. Deregistering parent later cascades
// into c.
func (env *Environment) RegisterCoopAsChild(parent *Coop, c *Coop) error {
	if parent == nil {
		return env.registerCoop(c, nil)
	}
	return env.registerCoop(c, parent)
}

func (env *Environment) registerCoop(c *Coop, parent *Coop) error {
	if env.params.DefaultDispatcher == nil {
		return newErr("register_coop", KindInvariantViolation, fmt.Errorf("no default dispatcher configured"))
	}
	c.env = env
	c.state = CoopRegistering

	if err := env.coops.register(c, parent); err != nil {
		return err
	}

	if err := c.bindAgents(env, env.params.DefaultDispatcher); err != nil {
		env.coops.remove(c)
		return err
	}

	c.state = CoopRegistered
	env.stats.Register(DataSourceFunc{
		SourceName: "coop/" + c.name,
		CollectFn: func() []StatsValue {
			return []StatsValue{{Name: "agent_count", Value: float64(len(c.Agents())), Labels: map[string]string{"coop": c.name}}}
		},
	})
	c.startAgents()
	return nil
}

// DeregisterCoop begins tearing down the named coop. No-op if the name is
// unknown or already deregistering.
func (env *Environment) DeregisterCoop(name, reason string) {
	c, ok := env.coops.find(name)
	if !ok {
		return
	}
	env.deregisterCoop(c, reason)
}

// Start brings the environment up through its startup stages: stats and
// layers are already live the moment NewEnvironment returns (they own no
// goroutines of their own and cannot fail to start), the timer manager was
// constructed the same way, and the coop repository accepts registrations
// from the moment it exists. Dispatchers are the one stage that can
// actually fail here: the default dispatcher starts first, then every
// dispatcher registered via RegisterDispatcher, in no particular order. If
// any dispatcher fails to start, every dispatcher already started earlier
// in this call is shut down again, in reverse start order, before the error is
// returned — Start leaves the environment exactly as not-running as it was
// when called, rather than half up.
func (env *Environment) Start() error {
	env.runningMu.Lock()
	defer env.runningMu.Unlock()
	if env.running {
		return nil
	}

	var started []Dispatcher
	unwind := func() {
		for i := len(started) - 1; i >= 0; i-- {
			started[i].Shutdown()
			started[i].Wait()
		}
	}

	if env.params.DefaultDispatcher != nil {
		if err := env.params.DefaultDispatcher.Start(); err != nil {
			return err
		}
		started = append(started, env.params.DefaultDispatcher)
	}

	env.dispatcherMu.Lock()
	dispatchers := make([]Dispatcher, 0, len(env.dispatchers))
	for _, d := range env.dispatchers {
		dispatchers = append(dispatchers, d)
	}
	env.dispatcherMu.Unlock()
	for _, d := range dispatchers {
		if err := d.Start(); err != nil {
			unwind()
			return err
		}
		started = append(started, d)
	}

	env.running = true
	return nil
}

// Run starts the environment (if not already running) and blocks until Stop
// is called. A typical program calls this from main after registering its
// root coops.
func (env *Environment) Run() error {
	if err := env.Start(); err != nil {
		return err
	}
	<-env.stopCh
	return nil
}

// Stop deregisters every root coop, waits (synchronously, up to the caller's
// own goroutine budget) for nothing further to drain, then shuts down every
// dispatcher and the timer manager and unblocks Run.
func (env *Environment) Stop() {
	env.stopOnce.Do(func() {
		for _, c := range env.coops.list() {
			if c.parent == nil {
				env.deregisterCoop(c, "environment stop")
			}
		}

		env.runningMu.Lock()
		defer env.runningMu.Unlock()
		if env.params.DefaultDispatcher != nil {
			env.params.DefaultDispatcher.Shutdown()
			env.params.DefaultDispatcher.Wait()
		}
		env.dispatcherMu.Lock()
		dispatchers := make([]Dispatcher, 0, len(env.dispatchers))
		for _, d := range env.dispatchers {
			dispatchers = append(dispatchers, d)
		}
		env.dispatcherMu.Unlock()
		for _, d := range dispatchers {
			d.Shutdown()
			d.Wait()
		}
		env.timers.Close()
		env.running = false
		close(env.stopCh)
	})
}
