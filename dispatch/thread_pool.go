// Package dispatch provides the dispatcher families beyond the root
// package's default one_thread dispatcher: a fixed-size worker pool, one
// goroutine per agent, and priority-aware variants spanning a single
// strictly-ordered worker, a quota-based round-robin worker, a shared pool
// that steals across levels, and one dedicated worker per level.
package dispatch

import (
	"sync"

	"github.com/so5go/so5"
)

// ThreadPool runs every bound agent's demands through a fixed-size worker
// pool draining one shared queue: several agents may have their handlers
// executing concurrently, unlike one_thread.
type ThreadPool struct {
	name        string
	workerCount int

	queue *demandQueue
	wg    sync.WaitGroup
}

// NewThreadPool constructs a dispatcher with workerCount goroutines sharing
// one FIFO queue.
func NewThreadPool(name string, workerCount int) so5.Dispatcher {
	if workerCount < 1 {
		workerCount = 1
	}
	return &ThreadPool{name: name, workerCount: workerCount, queue: newDemandQueue()}
}

func (d *ThreadPool) Name() string { return d.name }

type threadPoolBinder struct{ agent *so5.Agent }

func (b *threadPoolBinder) Unbind() {}

func (d *ThreadPool) Bind(agent *so5.Agent, _ so5.Priority) (so5.DispBinder, error) {
	binder := &threadPoolBinder{agent: agent}
	so5.InstallQueue(agent, d.queue, binder)
	return binder, nil
}

func (d *ThreadPool) Start() error {
	for i := 0; i < d.workerCount; i++ {
		d.wg.Add(1)
		go d.worker()
	}
	return nil
}

func (d *ThreadPool) worker() {
	defer d.wg.Done()
	for {
		demand, ok := d.queue.Pop()
		if !ok {
			return
		}
		so5.Invoke(demand)
		if demand.Selector == so5.SelectorEvtFinish {
			so5.NotifyAgentFinished(demand.Agent)
		}
	}
}

func (d *ThreadPool) Shutdown() { d.queue.Close() }
func (d *ThreadPool) Wait()     { d.wg.Wait() }

func (d *ThreadPool) Stats() so5.DataSource {
	return so5.DataSourceFunc{
		SourceName: "dispatcher/" + d.name,
		CollectFn: func() []so5.StatsValue {
			return []so5.StatsValue{{
				Name:   "queue_depth",
				Value:  float64(d.queue.Len()),
				Labels: map[string]string{"dispatcher": d.name, "workers": itoa(d.workerCount)},
			}}
		},
	}
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
