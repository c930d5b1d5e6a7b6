package dispatch

import (
	"sync"

	"github.com/so5go/so5"
)

// ActiveObject gives each bound agent its own dedicated goroutine and queue,
// so one agent's slow handler never delays another's.
type ActiveObject struct {
	name string

	mu      sync.Mutex
	workers map[*so5.Agent]*activeObjectWorker
}

type activeObjectWorker struct {
	queue *demandQueue
	wg    sync.WaitGroup
}

// NewActiveObject constructs the dispatcher. Workers are spun up lazily, one
// per agent, the first time that agent is bound.
func NewActiveObject(name string) so5.Dispatcher {
	return &ActiveObject{name: name, workers: make(map[*so5.Agent]*activeObjectWorker)}
}

func (d *ActiveObject) Name() string { return d.name }

type activeObjectBinder struct {
	d     *ActiveObject
	agent *so5.Agent
}

func (b *activeObjectBinder) Unbind() {
	b.d.mu.Lock()
	w, ok := b.d.workers[b.agent]
	delete(b.d.workers, b.agent)
	b.d.mu.Unlock()
	if ok {
		w.queue.Close()
	}
}

func (d *ActiveObject) Bind(agent *so5.Agent, _ so5.Priority) (so5.DispBinder, error) {
	w := &activeObjectWorker{queue: newDemandQueue()}
	d.mu.Lock()
	d.workers[agent] = w
	d.mu.Unlock()

	binder := &activeObjectBinder{d: d, agent: agent}
	so5.InstallQueue(agent, w.queue, binder)
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		for {
			demand, ok := w.queue.Pop()
			if !ok {
				return
			}
			so5.Invoke(demand)
			if demand.Selector == so5.SelectorEvtFinish {
				so5.NotifyAgentFinished(demand.Agent)
			}
		}
	}()
	return binder, nil
}

func (d *ActiveObject) Start() error { return nil }

func (d *ActiveObject) Shutdown() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, w := range d.workers {
		w.queue.Close()
	}
}

func (d *ActiveObject) Wait() {
	d.mu.Lock()
	workers := make([]*activeObjectWorker, 0, len(d.workers))
	for _, w := range d.workers {
		workers = append(workers, w)
	}
	d.mu.Unlock()
	for _, w := range workers {
		w.wg.Wait()
	}
}

func (d *ActiveObject) Stats() so5.DataSource {
	return so5.DataSourceFunc{
		SourceName: "dispatcher/" + d.name,
		CollectFn: func() []so5.StatsValue {
			d.mu.Lock()
			n := len(d.workers)
			d.mu.Unlock()
			return []so5.StatsValue{{Name: "active_agent_count", Value: float64(n), Labels: map[string]string{"dispatcher": d.name}}}
		},
	}
}
