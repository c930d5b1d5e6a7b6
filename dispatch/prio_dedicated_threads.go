package dispatch

import (
	"strconv"
	"sync"

	"github.com/so5go/so5"
)

// PrioDedicatedThreads binds one dedicated worker goroutine to each
// priority level: a critical-priority agent's handler never waits behind a
// quiet-priority backlog, because the two levels are not sharing a thread
// at all. With StealFrom enabled, a worker whose own queue runs dry pulls a
// demand from the next lower non-empty level — scanning down at most
// MaxPrioStealDepth levels — instead of idling while lower-priority work
// is ready. A stolen demand's Metadata is tagged with "processor_prio" (the
// level actually running it) and "queue_prio" (the level it was queued at)
// so a tracing backend can tell a steal from ordinary same-level dispatch.
type PrioDedicatedThreads struct {
	name      string
	queues    map[so5.Priority]*demandQueue
	notify    map[so5.Priority]chan struct{}
	StealFrom bool

	closed    chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewPrioDedicatedThreads constructs the dispatcher. When stealFrom is
// true, a worker idle at its own level pulls from lower levels rather than
// blocking while they still have work queued.
func NewPrioDedicatedThreads(name string, stealFrom bool) so5.Dispatcher {
	d := &PrioDedicatedThreads{
		name:      name,
		queues:    make(map[so5.Priority]*demandQueue),
		notify:    make(map[so5.Priority]chan struct{}, len(prioLevels)),
		StealFrom: stealFrom,
		closed:    make(chan struct{}),
	}
	for _, p := range prioLevels {
		d.queues[p] = newDemandQueue()
		d.notify[p] = make(chan struct{}, 1)
	}
	return d
}

func (d *PrioDedicatedThreads) Name() string { return d.name }

type prioDedicatedBinder struct{}

func (prioDedicatedBinder) Unbind() {}

type prioDedicatedQueueAdapter struct {
	*demandQueue
	d *PrioDedicatedThreads
}

func (q prioDedicatedQueueAdapter) Push(demand so5.ExecutionDemand) error {
	err := q.demandQueue.Push(demand)
	if err == nil {
		q.d.wakeAll()
	}
	return err
}

func (q prioDedicatedQueueAdapter) PushEvtFinish(demand so5.ExecutionDemand) {
	q.demandQueue.PushEvtFinish(demand)
	q.d.wakeAll()
}

// wakeAll pokes every worker's notify channel, not just the level that
// just received work: with StealFrom enabled, any idle worker might be the
// one that ends up picking it up. Non-owning workers get a harmless spare
// wakeup when StealFrom is off.
func (d *PrioDedicatedThreads) wakeAll() {
	for _, ch := range d.notify {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

func (d *PrioDedicatedThreads) Bind(agent *so5.Agent, prio so5.Priority) (so5.DispBinder, error) {
	q := d.queues[prio]
	so5.InstallQueue(agent, prioDedicatedQueueAdapter{demandQueue: q, d: d}, prioDedicatedBinder{})
	return prioDedicatedBinder{}, nil
}

func (d *PrioDedicatedThreads) Start() error {
	for _, p := range prioLevels {
		d.wg.Add(1)
		go d.worker(p)
	}
	return nil
}

func prioIndex(p so5.Priority) int {
	for i, lvl := range prioLevels {
		if lvl == p {
			return i
		}
	}
	return -1
}

// steal looks at most MaxPrioStealDepth levels below own, nearest first,
// and pops from the first non-empty one it finds.
func (d *PrioDedicatedThreads) steal(own so5.Priority) (so5.ExecutionDemand, so5.Priority, bool) {
	idx := prioIndex(own)
	depth := idx
	if depth > MaxPrioStealDepth {
		depth = MaxPrioStealDepth
	}
	for i := 1; i <= depth; i++ {
		p := prioLevels[idx-i]
		if demand, ok := d.queues[p].TryPop(); ok {
			return demand, p, true
		}
	}
	return so5.ExecutionDemand{}, 0, false
}

func (d *PrioDedicatedThreads) worker(own so5.Priority) {
	defer d.wg.Done()
	ownQueue := d.queues[own]
	myNotify := d.notify[own]
	for {
		if demand, ok := ownQueue.TryPop(); ok {
			d.run(demand, own, own)
			continue
		}
		if d.StealFrom {
			if demand, from, ok := d.steal(own); ok {
				d.run(demand, own, from)
				continue
			}
		}
		select {
		case <-myNotify:
		case <-d.closed:
			return
		}
	}
}

// tagSteal stamps demand's Metadata with the processor/queue priority pair
// whenever it is run at a different level than it was queued at. Split out
// from run so the tagging itself can be exercised without invoking a real
// agent.
func tagSteal(demand so5.ExecutionDemand, processor, queue so5.Priority) so5.ExecutionDemand {
	if processor != queue {
		demand.Metadata = map[string]string{
			"processor_prio": strconv.Itoa(int(processor)),
			"queue_prio":     strconv.Itoa(int(queue)),
		}
	}
	return demand
}

func (d *PrioDedicatedThreads) run(demand so5.ExecutionDemand, processor, queue so5.Priority) {
	demand = tagSteal(demand, processor, queue)
	so5.Invoke(demand)
	if demand.Selector == so5.SelectorEvtFinish {
		so5.NotifyAgentFinished(demand.Agent)
	}
}

func (d *PrioDedicatedThreads) Shutdown() {
	d.closeOnce.Do(func() { close(d.closed) })
	for _, q := range d.queues {
		q.Close()
	}
}

func (d *PrioDedicatedThreads) Wait() { d.wg.Wait() }

func (d *PrioDedicatedThreads) Stats() so5.DataSource {
	return so5.DataSourceFunc{
		SourceName: "dispatcher/" + d.name,
		CollectFn: func() []so5.StatsValue {
			out := make([]so5.StatsValue, 0, len(d.queues))
			for p, q := range d.queues {
				out = append(out, so5.StatsValue{Name: "queue_depth", Value: float64(q.Len()), Labels: map[string]string{"dispatcher": d.name, "priority": itoa(int(p))}})
			}
			return out
		},
	}
}
