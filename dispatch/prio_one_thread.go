package dispatch

import (
	"sync"

	"github.com/so5go/so5"
)

// prioLevels enumerates so5.Priority from lowest to highest for iteration.
var prioLevels = []so5.Priority{
	so5.PriorityQuiet, so5.PriorityLow, so5.PriorityBelowNormal, so5.PriorityNormal,
	so5.PriorityAboveNormal, so5.PriorityHigh, so5.PriorityCritical,
}

// MaxPrioStealDepth bounds how many priority levels below a worker's own a
// cross-priority steal is willing to scan: reaching all the way from
// critical down to quiet on every idle cycle would turn an idle high
// priority worker into an unbounded-latency janitor for every other level.
const MaxPrioStealDepth = 5

// PrioOneThread is a single-worker dispatcher with one queue per priority
// level, consumed highest-priority-first with no quota — a demand of
// priority P always runs before any demand of priority < P. Built on the
// same demandQueue as ThreadPool/ActiveObject, partitioned by level.
type PrioOneThread struct {
	name   string
	queues map[so5.Priority]*demandQueue
	wg     sync.WaitGroup
	notify chan struct{}
	closed chan struct{}
	mu     sync.Mutex
}

// NewPrioOneThread constructs the dispatcher.
func NewPrioOneThread(name string) so5.Dispatcher {
	d := &PrioOneThread{
		name:   name,
		queues: make(map[so5.Priority]*demandQueue),
		notify: make(chan struct{}, 1),
		closed: make(chan struct{}),
	}
	for _, p := range prioLevels {
		d.queues[p] = newDemandQueue()
	}
	return d
}

type prioOneThreadBinder struct {
	agent    *so5.Agent
	priority so5.Priority
}

func (b *prioOneThreadBinder) Unbind() {}

func (d *PrioOneThread) Name() string { return d.name }

// prioQueueAdapter wraps one priority level's demandQueue so Push/PushEvtFinish
// also wake the single shared worker, which otherwise only polls its own
// level's queue and would miss demands pushed to a different level while it
// sleeps.
type prioQueueAdapter struct {
	*demandQueue
	wake func()
}

func (q prioQueueAdapter) Push(d so5.ExecutionDemand) error {
	err := q.demandQueue.Push(d)
	if err == nil {
		q.wake()
	}
	return err
}

func (q prioQueueAdapter) PushEvtFinish(d so5.ExecutionDemand) {
	q.demandQueue.PushEvtFinish(d)
	q.wake()
}

func (d *PrioOneThread) Bind(agent *so5.Agent, prio so5.Priority) (so5.DispBinder, error) {
	q := d.queues[prio]
	binder := &prioOneThreadBinder{agent: agent, priority: prio}
	so5.InstallQueue(agent, prioQueueAdapter{demandQueue: q, wake: d.wake}, binder)
	return binder, nil
}

func (d *PrioOneThread) wake() {
	select {
	case d.notify <- struct{}{}:
	default:
	}
}

func (d *PrioOneThread) Start() error {
	d.wg.Add(1)
	go d.worker()
	return nil
}

// worker scans priority levels highest-to-lowest every pass, draining one
// demand at a time per non-empty level before restarting the scan: this is
// what makes it strictly-ordered rather than weighted/quota-based.
func (d *PrioOneThread) worker() {
	defer d.wg.Done()
	for {
		ran := false
		for i := len(prioLevels) - 1; i >= 0; i-- {
			q := d.queues[prioLevels[i]]
			if q.Len() == 0 {
				continue
			}
			demand, ok := q.Pop()
			if !ok {
				continue
			}
			so5.Invoke(demand)
			if demand.Selector == so5.SelectorEvtFinish {
				so5.NotifyAgentFinished(demand.Agent)
			}
			ran = true
			break
		}
		if ran {
			continue
		}
		select {
		case <-d.notify:
		case <-d.closed:
			return
		}
	}
}

func (d *PrioOneThread) Shutdown() {
	close(d.closed)
	for _, q := range d.queues {
		q.Close()
	}
}

func (d *PrioOneThread) Wait() { d.wg.Wait() }

func (d *PrioOneThread) Stats() so5.DataSource {
	return so5.DataSourceFunc{
		SourceName: "dispatcher/" + d.name,
		CollectFn: func() []so5.StatsValue {
			d.mu.Lock()
			defer d.mu.Unlock()
			out := make([]so5.StatsValue, 0, len(d.queues))
			for p, q := range d.queues {
				out = append(out, so5.StatsValue{Name: "queue_depth", Value: float64(q.Len()), Labels: map[string]string{"dispatcher": d.name, "priority": itoa(int(p))}})
			}
			return out
		},
	}
}
