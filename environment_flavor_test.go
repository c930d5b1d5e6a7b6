package so5_test

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/so5go/so5"
)

type flavorSignal struct{ so5.Signal }

type flavorCounterBehavior struct {
	counter *atomic.Int32
}

func (b *flavorCounterBehavior) DefineAgent(a *so5.Agent) error {
	mbox, err := a.CreateDirectMbox()
	if err != nil {
		return err
	}
	return a.Subscribe(mbox, flavorSignal{}, nil, false, func(evt *so5.EventContext) error {
		b.counter.Add(1)
		return nil
	})
}

// TestNotMTSafeSingleThreadFlavorRunsInline verifies the defining trait of
// FlavorSimpleNotMTSafeSingleThread: a pushed signal has already run its
// handler by the time Send returns, with no worker goroutine in between.
func TestNotMTSafeSingleThreadFlavorRunsInline(t *testing.T) {
	env := so5.NewEnvironment(so5.WithFlavor(so5.FlavorSimpleNotMTSafeSingleThread))
	require.NoError(t, env.Start())
	defer env.Stop()

	var counter atomic.Int32
	behavior := &flavorCounterBehavior{counter: &counter}
	agent := so5.NewAgent(behavior, nil)

	coop := so5.NewCoop("inline")
	coop.AddAgent(agent)
	require.NoError(t, env.RegisterCoop(coop))

	mbox, err := agent.CreateDirectMbox()
	require.NoError(t, err)

	require.NoError(t, so5.SendSignal[flavorSignal](mbox))
	require.Equal(t, int32(1), counter.Load(), "inline dispatcher must have run the handler before Send returned")
}

// TestRunEnvironmentStartsInitsAndBlocksUntilStop verifies RunEnvironment
// starts the environment, runs initFn, and then blocks until the
// environment is stopped from elsewhere.
func TestRunEnvironmentStartsInitsAndBlocksUntilStop(t *testing.T) {
	started := make(chan *so5.Environment, 1)
	done := make(chan error, 1)
	go func() {
		done <- so5.RunEnvironment(func(env *so5.Environment) error {
			started <- env
			return nil
		})
	}()

	var env *so5.Environment
	select {
	case env = <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("initFn never ran")
	}

	select {
	case <-done:
		t.Fatal("RunEnvironment returned before Stop was called")
	case <-time.After(20 * time.Millisecond):
	}

	env.Stop()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("RunEnvironment never returned after Stop")
	}
}

// fakeDispatcher is a minimal so5.Dispatcher whose Start can be told to
// fail, for exercising Start's unwind-on-failure path.
type fakeDispatcher struct {
	name        string
	startErr    error
	shutdownHit atomic.Bool
	waitHit     atomic.Bool
}

func (f *fakeDispatcher) Name() string { return f.name }

func (f *fakeDispatcher) Bind(a *so5.Agent, _ so5.Priority) (so5.DispBinder, error) {
	return fakeBinder{}, nil
}

func (f *fakeDispatcher) Start() error { return f.startErr }

func (f *fakeDispatcher) Shutdown() { f.shutdownHit.Store(true) }

func (f *fakeDispatcher) Wait() { f.waitHit.Store(true) }

func (f *fakeDispatcher) Stats() so5.DataSource {
	return so5.DataSourceFunc{SourceName: f.name, CollectFn: func() []so5.StatsValue { return nil }}
}

type fakeBinder struct{}

func (fakeBinder) Unbind() {}

// TestStartUnwindsOnDispatcherFailure verifies that when a later dispatcher
// fails to start, every dispatcher already started during the same Start
// call is shut down again before the error is returned.
func TestStartUnwindsOnDispatcherFailure(t *testing.T) {
	def := &fakeDispatcher{name: "default"}
	env := so5.NewEnvironment(so5.WithDefaultDispatcher(def))

	failing := &fakeDispatcher{name: "failing", startErr: errors.New("boom")}
	require.NoError(t, env.RegisterDispatcher("failing", failing))

	err := env.Start()
	require.Error(t, err)
	require.True(t, def.shutdownHit.Load(), "default dispatcher must be unwound after a later dispatcher fails to start")
	require.True(t, def.waitHit.Load(), "default dispatcher must be waited on during unwind")
	require.False(t, failing.shutdownHit.Load(), "a dispatcher that never successfully started has nothing to unwind")
}
