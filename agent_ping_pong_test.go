package so5_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/so5go/so5"
)

type pingMsg struct{ n int }
type pongMsg struct{ n int }

type pingAgentBehavior struct {
	out     so5.Mbox
	in      so5.Mbox
	max     int
	env     *so5.Environment
	coop    string
	reached chan int
}

func (b *pingAgentBehavior) DefineAgent(a *so5.Agent) error {
	return a.Subscribe(b.in, pongMsg{}, nil, false, func(evt *so5.EventContext) error {
		p := evt.Message.Payload().(pongMsg)
		if p.n >= b.max {
			b.reached <- p.n
			b.env.DeregisterCoop(b.coop, "limit reached")
			return nil
		}
		return so5.Send(b.out, pingMsg{n: p.n + 1})
	})
}

func (b *pingAgentBehavior) EvtStart(a *so5.Agent) error {
	return so5.Send(b.out, pingMsg{n: 0})
}

type pongAgentBehavior struct {
	out so5.Mbox
	in  so5.Mbox
}

func (b *pongAgentBehavior) DefineAgent(a *so5.Agent) error {
	return a.Subscribe(b.in, pingMsg{}, nil, false, func(evt *so5.EventContext) error {
		p := evt.Message.Payload().(pingMsg)
		return so5.Send(b.out, pongMsg{n: p.n + 1})
	})
}

func TestPingPongRoundTrips(t *testing.T) {
	env := so5.NewEnvironment(so5.WithAutoShutdownWhenNoCoops(true))

	pingToPong := env.CreateMbox()
	pongToPing := env.CreateMbox()
	reached := make(chan int, 1)

	coop := so5.NewCoop("ping-pong")
	pb := &pingAgentBehavior{out: pingToPong, in: pongToPing, max: 6, env: env, coop: "ping-pong", reached: reached}
	coop.AddAgent(so5.NewAgent(pb, nil))

	qb := &pongAgentBehavior{out: pongToPing, in: pingToPong}
	coop.AddAgent(so5.NewAgent(qb, nil))

	require.NoError(t, env.RegisterCoop(coop))

	done := make(chan struct{})
	go func() {
		_ = env.Run()
		close(done)
	}()

	select {
	case n := <-reached:
		require.GreaterOrEqual(t, n, 6)
	case <-time.After(2 * time.Second):
		t.Fatal("ping-pong did not reach its round limit in time")
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("environment did not auto-shutdown after last coop drained")
	}
}

func TestMessageLimitDropReaction(t *testing.T) {
	env := so5.NewEnvironment()
	mbox := env.CreateMbox()

	var mu sync.Mutex
	var seen []int

	behavior := so5.AgentBehaviorFunc(func(a *so5.Agent) error {
		a.SetMessageLimits(pingMsg{}, 1, so5.DropReaction())
		return a.Subscribe(mbox, pingMsg{}, nil, false, func(evt *so5.EventContext) error {
			mu.Lock()
			seen = append(seen, evt.Message.Payload().(pingMsg).n)
			mu.Unlock()
			time.Sleep(50 * time.Millisecond)
			return nil
		})
	})

	coop := so5.NewCoop("limited")
	coop.AddAgent(so5.NewAgent(behavior, nil))
	require.NoError(t, env.RegisterCoop(coop))
	require.NoError(t, env.Start())
	defer env.Stop()

	for i := 0; i < 5; i++ {
		require.NoError(t, so5.Send(mbox, pingMsg{n: i}))
	}

	time.Sleep(300 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	require.LessOrEqual(t, len(seen), 5)
	require.NotEmpty(t, seen)
}
