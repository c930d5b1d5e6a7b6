package dispatch

import (
	"sync"

	"github.com/so5go/so5"
)

// PrioThreadPool is a fixed-size worker pool over the same per-priority
// queue partitioning as PrioOneThread: every worker scans levels
// highest-to-lowest and pops from whichever non-empty level it finds first,
// so idle workers naturally drain a backlog that piled up at one priority
// while other workers were busy elsewhere — there is no per-worker queue to
// go stale. The scan never reaches more than MaxPrioStealDepth levels below
// the top, and whenever it pops from anywhere but the top level it tags the
// demand's Metadata with "processor_prio" (the top level, what this shared
// pool nominally serves) and "queue_prio" (the level actually drained),
// so a tracing backend can tell ordinary dispatch from a steal.
type PrioThreadPool struct {
	name        string
	workerCount int
	queues      map[so5.Priority]*demandQueue

	mu     sync.Mutex
	cond   *sync.Cond
	closed bool
	wg     sync.WaitGroup
}

// NewPrioThreadPool constructs the dispatcher.
func NewPrioThreadPool(name string, workerCount int) so5.Dispatcher {
	if workerCount < 1 {
		workerCount = 1
	}
	d := &PrioThreadPool{
		name:        name,
		workerCount: workerCount,
		queues:      make(map[so5.Priority]*demandQueue),
	}
	d.cond = sync.NewCond(&d.mu)
	for _, p := range prioLevels {
		d.queues[p] = newDemandQueue()
	}
	return d
}

func (d *PrioThreadPool) Name() string { return d.name }

type prioPoolBinder struct{}

func (prioPoolBinder) Unbind() {}

type prioPoolQueueAdapter struct {
	*demandQueue
	d *PrioThreadPool
}

func (q prioPoolQueueAdapter) Push(demand so5.ExecutionDemand) error {
	err := q.demandQueue.Push(demand)
	if err == nil {
		q.d.wakeOne()
	}
	return err
}

func (q prioPoolQueueAdapter) PushEvtFinish(demand so5.ExecutionDemand) {
	q.demandQueue.PushEvtFinish(demand)
	q.d.wakeOne()
}

func (d *PrioThreadPool) wakeOne() {
	d.mu.Lock()
	d.cond.Signal()
	d.mu.Unlock()
}

func (d *PrioThreadPool) Bind(agent *so5.Agent, prio so5.Priority) (so5.DispBinder, error) {
	q := d.queues[prio]
	so5.InstallQueue(agent, prioPoolQueueAdapter{demandQueue: q, d: d}, prioPoolBinder{})
	return prioPoolBinder{}, nil
}

func (d *PrioThreadPool) Start() error {
	for i := 0; i < d.workerCount; i++ {
		d.wg.Add(1)
		go d.worker()
	}
	return nil
}

func (d *PrioThreadPool) tryPopAny() (so5.ExecutionDemand, bool) {
	top := len(prioLevels) - 1
	bottom := top - MaxPrioStealDepth
	if bottom < 0 {
		bottom = 0
	}
	for i := top; i >= bottom; i-- {
		demand, ok := d.queues[prioLevels[i]].TryPop()
		if !ok {
			continue
		}
		if i != top {
			demand.Metadata = map[string]string{
				"processor_prio": itoa(int(prioLevels[top])),
				"queue_prio":     itoa(int(prioLevels[i])),
			}
		}
		return demand, true
	}
	return so5.ExecutionDemand{}, false
}

func (d *PrioThreadPool) worker() {
	defer d.wg.Done()
	for {
		demand, ok := d.tryPopAny()
		if ok {
			so5.Invoke(demand)
			if demand.Selector == so5.SelectorEvtFinish {
				so5.NotifyAgentFinished(demand.Agent)
			}
			continue
		}

		d.mu.Lock()
		if d.closed {
			d.mu.Unlock()
			return
		}
		d.cond.Wait()
		closed := d.closed
		d.mu.Unlock()
		if closed {
			return
		}
	}
}

func (d *PrioThreadPool) Shutdown() {
	d.mu.Lock()
	d.closed = true
	d.cond.Broadcast()
	d.mu.Unlock()
	for _, q := range d.queues {
		q.Close()
	}
}

func (d *PrioThreadPool) Wait() { d.wg.Wait() }

func (d *PrioThreadPool) Stats() so5.DataSource {
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
