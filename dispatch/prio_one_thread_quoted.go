package dispatch

import (
	"sync"

	"github.com/so5go/so5"
)

// DefaultRoundRobinQuota is how many demands a priority level gets to run
// per round when NewPrioOneThreadQuoted is built with a nil or incomplete
// quota map.
const DefaultRoundRobinQuota = 4

// PrioOneThreadQuoted is a single-worker dispatcher with one queue per
// priority level, like PrioOneThread, but drained round-robin instead of
// strictly highest-first: the worker visits every level in turn each round
// and runs up to that level's quota of demands before moving to the next
// level. A steady quiet-priority backlog still makes progress alongside a
// busy critical one, just in smaller slices.
type PrioOneThreadQuoted struct {
	name   string
	queues map[so5.Priority]*demandQueue
	quotas map[so5.Priority]int
	wg     sync.WaitGroup
	notify chan struct{}
	closed chan struct{}
}

// NewPrioOneThreadQuoted constructs the dispatcher. quotas maps a priority
// level to how many demands the worker runs from it per round before
// moving on; a level missing from quotas (or given a non-positive value)
// gets DefaultRoundRobinQuota.
func NewPrioOneThreadQuoted(name string, quotas map[so5.Priority]int) so5.Dispatcher {
	d := &PrioOneThreadQuoted{
		name:   name,
		queues: make(map[so5.Priority]*demandQueue),
		quotas: make(map[so5.Priority]int, len(prioLevels)),
		notify: make(chan struct{}, 1),
		closed: make(chan struct{}),
	}
	for _, p := range prioLevels {
		d.queues[p] = newDemandQueue()
		if q, ok := quotas[p]; ok && q > 0 {
			d.quotas[p] = q
		} else {
			d.quotas[p] = DefaultRoundRobinQuota
		}
	}
	return d
}

func (d *PrioOneThreadQuoted) Name() string { return d.name }

type prioQuotedBinder struct{}

func (prioQuotedBinder) Unbind() {}

func (d *PrioOneThreadQuoted) Bind(agent *so5.Agent, prio so5.Priority) (so5.DispBinder, error) {
	q := d.queues[prio]
	so5.InstallQueue(agent, prioQueueAdapter{demandQueue: q, wake: d.wake}, prioQuotedBinder{})
	return prioQuotedBinder{}, nil
}

func (d *PrioOneThreadQuoted) wake() {
	select {
	case d.notify <- struct{}{}:
	default:
	}
}

func (d *PrioOneThreadQuoted) Start() error {
	d.wg.Add(1)
	go d.worker()
	return nil
}

// worker visits every priority level once per round, running up to that
// level's quota before moving to the next, and only blocks once a full
// round drains nothing at all.
func (d *PrioOneThreadQuoted) worker() {
	defer d.wg.Done()
	for {
		ranAny := false
		for _, p := range prioLevels {
			q := d.queues[p]
			for i := 0; i < d.quotas[p]; i++ {
				demand, ok := q.TryPop()
				if !ok {
					break
				}
				so5.Invoke(demand)
				if demand.Selector == so5.SelectorEvtFinish {
					so5.NotifyAgentFinished(demand.Agent)
				}
				ranAny = true
			}
		}
		if ranAny {
			continue
		}
		select {
		case <-d.notify:
		case <-d.closed:
			return
		}
	}
}

func (d *PrioOneThreadQuoted) Shutdown() {
	close(d.closed)
	for _, q := range d.queues {
		q.Close()
	}
}

func (d *PrioOneThreadQuoted) Wait() { d.wg.Wait() }

func (d *PrioOneThreadQuoted) Stats() so5.DataSource {
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
