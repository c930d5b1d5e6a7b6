package so5_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/so5go/so5"
)

type onMsg struct{ so5.Signal }
type offMsg struct{ so5.Signal }

type trafficLightBehavior struct {
	mu       sync.Mutex
	entered  []string
	on, off  *so5.State
	children *so5.State // a sub-state of "on" (making "on" composite), just to exercise nesting
}

func (b *trafficLightBehavior) DefineAgent(a *so5.Agent) error {
	b.off = so5.NewState("off").BindTo(a)
	b.on = so5.NewState("on").BindTo(a)
	b.children = so5.NewState("on.active").BindTo(a).SetParent(b.on)
	b.on.SetInitial(b.children)

	b.off.OnEnter(func() { b.record("off") })
	b.on.OnEnter(func() { b.record("on") })
	b.children.OnEnter(func() { b.record("on.active") })

	if err := a.ChangeState(b.off); err != nil {
		return err
	}

	mbox, err := a.CreateDirectMbox()
	if err != nil {
		return err
	}
	if err := a.Subscribe(mbox, onMsg{}, b.off, false, func(evt *so5.EventContext) error {
		return a.ChangeState(b.on)
	}); err != nil {
		return err
	}
	return a.Subscribe(mbox, offMsg{}, b.on, false, func(evt *so5.EventContext) error {
		return a.ChangeState(b.off)
	})
}

func (b *trafficLightBehavior) record(name string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entered = append(b.entered, name)
}

func TestHierarchicalStateSwitch(t *testing.T) {
	env := so5.NewEnvironment()
	behavior := &trafficLightBehavior{}
	agent := so5.NewAgent(behavior, nil)

	coop := so5.NewCoop("traffic-light")
	coop.AddAgent(agent)
	require.NoError(t, env.RegisterCoop(coop))
	require.NoError(t, env.Start())
	defer env.Stop()

	mbox, err := agent.CreateDirectMbox()
	require.NoError(t, err)

	require.NoError(t, so5.SendSignal[onMsg](mbox))
	time.Sleep(50 * time.Millisecond)
	require.Equal(t, "on.active", lastEnteredState(behavior))

	require.NoError(t, so5.SendSignal[offMsg](mbox))
	time.Sleep(50 * time.Millisecond)
	require.Equal(t, "off", lastEnteredState(behavior))
}

func lastEnteredState(b *trafficLightBehavior) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.entered) == 0 {
		return ""
	}
	return b.entered[len(b.entered)-1]
}
