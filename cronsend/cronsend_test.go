package cronsend

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/so5go/so5"
)

type tick struct{ so5.Signal }

func TestSchedulerDeliversOnExpression(t *testing.T) {
	env := so5.NewEnvironment()
	mbox := env.CreateMbox()

	count := 0
	behavior := so5.AgentBehaviorFunc(func(a *so5.Agent) error {
		return a.Subscribe(mbox, tick{}, nil, false, func(evt *so5.EventContext) error {
			count++
			return nil
		})
	})
	coop := so5.NewCoop("cron-consumer")
	coop.AddAgent(so5.NewAgent(behavior, nil))
	require.NoError(t, env.RegisterCoop(coop))
	require.NoError(t, env.Start())
	defer env.Stop()

	s := NewScheduler()
	require.NoError(t, s.AddSend("tick", "@every 1s", mbox, tick{}))
	s.Start()
	defer s.Stop()

	require.Eventually(t, func() bool { return count >= 2 }, 3*time.Second, 10*time.Millisecond)
}

func TestSchedulerRemoveStopsFutureFires(t *testing.T) {
	env := so5.NewEnvironment()
	mbox := env.CreateMbox()

	count := 0
	behavior := so5.AgentBehaviorFunc(func(a *so5.Agent) error {
		return a.Subscribe(mbox, tick{}, nil, false, func(evt *so5.EventContext) error {
			count++
			return nil
		})
	})
	coop := so5.NewCoop("cron-consumer-2")
	coop.AddAgent(so5.NewAgent(behavior, nil))
	require.NoError(t, env.RegisterCoop(coop))
	require.NoError(t, env.Start())
	defer env.Stop()

	s := NewScheduler()
	require.NoError(t, s.AddSend("tick", "@every 1s", mbox, tick{}))
	s.Start()

	time.Sleep(1500 * time.Millisecond)
	s.Remove("tick")
	snapshot := count
	time.Sleep(1500 * time.Millisecond)

	assert.LessOrEqual(t, count, snapshot+1, "no further fires expected once removed")
	s.Stop()
}

func TestSchedulerRejectsBadExpression(t *testing.T) {
	env := so5.NewEnvironment()
	mbox := env.CreateMbox()

	s := NewScheduler()
	err := s.AddSend("bad", "not-a-cron-expr", mbox, tick{})
	assert.Error(t, err)
}
