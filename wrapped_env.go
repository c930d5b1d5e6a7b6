package so5

// WrappedEnv starts an Environment on its own goroutine at construction time
// and stops it when Close is called — a convenience for programs that want
// to build coops from the same goroutine that also does other work, instead
// of blocking on Run.
type WrappedEnv struct {
	env    *Environment
	done   chan struct{}
}

// NewWrappedEnv builds an Environment with opts and immediately starts it
// running in the background.
func NewWrappedEnv(opts ...EnvironmentOption) *WrappedEnv {
	env := NewEnvironment(opts...)
	w := &WrappedEnv{env: env, done: make(chan struct{})}
	go func() {
		defer close(w.done)
		_ = env.Run()
	}()
	return w
}

// Environment returns the underlying Environment, e.g. to call RegisterCoop.
func (w *WrappedEnv) Environment() *Environment { return w.env }

// Close stops the environment and blocks until its Run goroutine returns.
func (w *WrappedEnv) Close() {
	w.env.Stop()
	<-w.done
}

// RunEnvironment builds a simple-mtsafe-single-thread Environment (opts are
// applied after the flavor default, so a caller can still override Flavor
// or DefaultDispatcher), starts it, runs initFn once to register root
// coops and do any other one-time setup — the "user-init" stage of
// startup, run after dispatchers and the timer manager are already live —
// and then blocks until the environment is stopped. If initFn returns an
// error, the environment is stopped immediately and the error is returned
// without blocking.
func RunEnvironment(initFn func(*Environment) error, opts ...EnvironmentOption) error {
	opts = append([]EnvironmentOption{WithFlavor(FlavorSimpleMTSafeSingleThread)}, opts...)
	env := NewEnvironment(opts...)
	if err := env.Start(); err != nil {
		return err
	}
	if initFn != nil {
		if err := initFn(env); err != nil {
			env.Stop()
			return err
		}
	}
	return env.Run()
}
