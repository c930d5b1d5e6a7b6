package dispatch_test

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/so5go/so5"
	"github.com/so5go/so5/dispatch"
)

type signal struct{ so5.Signal }

type counterBehavior struct {
	counter *atomic.Int32
	done    chan struct{}
	target  int
}

func (b *counterBehavior) DefineAgent(a *so5.Agent) error {
	mbox, err := a.CreateDirectMbox()
	if err != nil {
		return err
	}
	return a.Subscribe(mbox, signal{}, nil, false, func(evt *so5.EventContext) error {
		if b.counter.Add(1) == int32(b.target) {
			close(b.done)
		}
		return nil
	})
}

func runAgainstDispatcher(t *testing.T, d so5.Dispatcher) {
	t.Helper()

	env := so5.NewEnvironment(so5.WithDefaultDispatcher(d))
	require.NoError(t, env.Start())
	defer env.Stop()

	var counter atomic.Int32
	done := make(chan struct{})
	behavior := &counterBehavior{counter: &counter, done: done, target: 20}
	agent := so5.NewAgent(behavior, nil)

	coop := so5.NewCoop("counters")
	coop.AddAgent(agent)
	require.NoError(t, env.RegisterCoop(coop))

	mbox, err := agent.CreateDirectMbox()
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = so5.SendSignal[signal](mbox)
		}()
	}
	wg.Wait()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("only %d of 20 signals processed", counter.Load())
	}
}

func TestThreadPoolDispatcher(t *testing.T) {
	runAgainstDispatcher(t, dispatch.NewThreadPool("pool", 4))
}

func TestActiveObjectDispatcher(t *testing.T) {
	runAgainstDispatcher(t, dispatch.NewActiveObject("active"))
}

func TestPrioOneThreadDispatcher(t *testing.T) {
	runAgainstDispatcher(t, dispatch.NewPrioOneThread("prio-one"))
}

func TestPrioThreadPoolDispatcher(t *testing.T) {
	runAgainstDispatcher(t, dispatch.NewPrioThreadPool("prio-pool", 4))
}

func TestPrioOneThreadQuotedDispatcher(t *testing.T) {
	runAgainstDispatcher(t, dispatch.NewPrioOneThreadQuoted("prio-quoted", nil))
}

func TestPrioDedicatedThreadsDispatcher(t *testing.T) {
	runAgainstDispatcher(t, dispatch.NewPrioDedicatedThreads("prio-dedicated", false))
}

func TestPrioDedicatedThreadsDispatcherWithStealing(t *testing.T) {
	runAgainstDispatcher(t, dispatch.NewPrioDedicatedThreads("prio-dedicated-steal", true))
}

type orderRecordingBehavior struct {
	mu    *sync.Mutex
	order *[]string
	label string
}

func (b *orderRecordingBehavior) DefineAgent(a *so5.Agent) error {
	mbox, err := a.CreateDirectMbox()
	if err != nil {
		return err
	}
	return a.Subscribe(mbox, signal{}, nil, false, func(evt *so5.EventContext) error {
		b.mu.Lock()
		*b.order = append(*b.order, b.label)
		b.mu.Unlock()
		return nil
	})
}

// TestPrioOneThreadDrainsHighestPriorityFirst backs a quiet agent's and a
// critical agent's queues up before the single worker starts, then asserts
// the critical agent's message is drained first even though it arrived
// second.
func TestPrioOneThreadDrainsHighestPriorityFirst(t *testing.T) {
	d := dispatch.NewPrioOneThread("prio-order")
	env := so5.NewEnvironment(so5.WithDefaultDispatcher(d))

	var mu sync.Mutex
	var order []string

	coop := so5.NewCoop("priorities")

	quiet := &orderRecordingBehavior{mu: &mu, order: &order, label: "quiet"}
	quietAgent := so5.NewAgent(quiet, nil).SetPriority(so5.PriorityQuiet)
	coop.AddAgent(quietAgent)

	critical := &orderRecordingBehavior{mu: &mu, order: &order, label: "critical"}
	criticalAgent := so5.NewAgent(critical, nil).SetPriority(so5.PriorityCritical)
	coop.AddAgent(criticalAgent)

	require.NoError(t, env.RegisterCoop(coop))

	quietMbox, err := quietAgent.CreateDirectMbox()
	require.NoError(t, err)
	criticalMbox, err := criticalAgent.CreateDirectMbox()
	require.NoError(t, err)

	require.NoError(t, so5.SendSignal[signal](quietMbox))
	require.NoError(t, so5.SendSignal[signal](criticalMbox))

	require.NoError(t, env.Start())
	defer env.Stop()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(order) == 2
	}, 2*time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []string{"critical", "quiet"}, order)
}

// TestPrioOneThreadQuotedRoundRobinsAcrossLevels backs up four quiet and
// four critical signals before Start(), with a quota of two per level, and
// asserts the worker interleaves the levels rather than draining one level
// completely before touching the other. Each agent's evt_start is queued
// ahead of its signals and takes one slot of its level's first round, so
// that round runs only one signal per level.
func TestPrioOneThreadQuotedRoundRobinsAcrossLevels(t *testing.T) {
	quotas := map[so5.Priority]int{so5.PriorityQuiet: 2, so5.PriorityCritical: 2}
	d := dispatch.NewPrioOneThreadQuoted("prio-quota", quotas)
	env := so5.NewEnvironment(so5.WithDefaultDispatcher(d))

	var mu sync.Mutex
	var order []string

	coop := so5.NewCoop("quotas")

	quiet := &orderRecordingBehavior{mu: &mu, order: &order, label: "quiet"}
	quietAgent := so5.NewAgent(quiet, nil).SetPriority(so5.PriorityQuiet)
	coop.AddAgent(quietAgent)

	critical := &orderRecordingBehavior{mu: &mu, order: &order, label: "critical"}
	criticalAgent := so5.NewAgent(critical, nil).SetPriority(so5.PriorityCritical)
	coop.AddAgent(criticalAgent)

	require.NoError(t, env.RegisterCoop(coop))

	quietMbox, err := quietAgent.CreateDirectMbox()
	require.NoError(t, err)
	criticalMbox, err := criticalAgent.CreateDirectMbox()
	require.NoError(t, err)

	for i := 0; i < 4; i++ {
		require.NoError(t, so5.SendSignal[signal](quietMbox))
		require.NoError(t, so5.SendSignal[signal](criticalMbox))
	}

	require.NoError(t, env.Start())
	defer env.Stop()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(order) == 8
	}, 2*time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []string{
		"quiet", "critical",
		"quiet", "quiet", "critical", "critical",
		"quiet", "critical",
	}, order)
}
