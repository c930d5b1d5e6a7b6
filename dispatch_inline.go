package so5

// inlineQueue runs every demand synchronously on whatever goroutine pushed
// it: no buffering, no locking, no worker goroutine of its own. Correct
// only when a single goroutine ever touches the environment, which is
// exactly FlavorSimpleNotMTSafeSingleThread's contract.
type inlineQueue struct{}

func (inlineQueue) Push(d ExecutionDemand) error {
	Invoke(d)
	return nil
}

func (inlineQueue) PushEvtFinish(d ExecutionDemand) {
	Invoke(d)
	NotifyAgentFinished(d.Agent)
}

func (inlineQueue) Pop() (ExecutionDemand, bool) { return ExecutionDemand{}, false }
func (inlineQueue) Len() int                     { return 0 }
func (inlineQueue) Close()                       {}

// inlineDispatcher is the default dispatcher for
// FlavorSimpleNotMTSafeSingleThread. It has no worker goroutine at all:
// every PushEvent call has already run its handler inline by the time it
// returns, which is what makes this flavor distinct from the locking
// oneThreadDispatcher rather than just a relabeling of it.
type inlineDispatcher struct {
	name string
}

func newInlineDispatcher(name string) Dispatcher { return &inlineDispatcher{name: name} }

func (d *inlineDispatcher) Name() string { return d.name }

type inlineBinder struct{}

func (inlineBinder) Unbind() {}

func (d *inlineDispatcher) Bind(agent *Agent, _ Priority) (DispBinder, error) {
	InstallQueue(agent, inlineQueue{}, inlineBinder{})
	return inlineBinder{}, nil
}

func (d *inlineDispatcher) Start() error { return nil }
func (d *inlineDispatcher) Shutdown()    {}
func (d *inlineDispatcher) Wait()        {}

func (d *inlineDispatcher) Stats() DataSource {
	return DataSourceFunc{
		SourceName: "dispatcher/" + d.name,
		CollectFn:  func() []StatsValue { return nil },
	}
}
