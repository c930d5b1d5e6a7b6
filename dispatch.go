package so5

import "sync"

// unboundedQueue is a mutex+condvar FIFO shared by every agent bound to one
// oneThreadDispatcher worker. Unbounded, so Push and PushEvtFinish never
// fail for capacity reasons — back-pressure in this framework is applied
// earlier, by MessageLimit, not by the dispatcher queue itself.
type unboundedQueue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	items  []ExecutionDemand
	closed bool
}

func newUnboundedQueue() *unboundedQueue {
	q := &unboundedQueue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

func (q *unboundedQueue) Push(d ExecutionDemand) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return newErr("push", KindInvariantViolation, ErrMboxClosed)
	}
	q.items = append(q.items, d)
	q.cond.Signal()
	return nil
}

// PushEvtFinish enqueues at the back, same as Push: the ordering guarantee
// is that evt_finish runs after every demand already queued for this
// agent, not ahead of them, so FIFO append is what correctness requires
// here. The one way it differs from Push is that it never fails — there is
// no capacity check, since a dispatcher must be able to guarantee delivery
// of the demand that actually tears the agent down.
func (q *unboundedQueue) PushEvtFinish(d ExecutionDemand) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, d)
	q.cond.Signal()
}

func (q *unboundedQueue) Pop() (ExecutionDemand, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.items) == 0 && !q.closed {
		q.cond.Wait()
	}
	if len(q.items) == 0 {
		return ExecutionDemand{}, false
	}
	d := q.items[0]
	q.items = q.items[1:]
	return d, true
}

func (q *unboundedQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *unboundedQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.cond.Broadcast()
}

// oneThreadDispatcher runs every bound agent's demands through a single
// worker goroutine draining one shared unboundedQueue — the simplest
// dispatcher family ("one_thread"). Richer families (active_object: one
// worker per agent; thread_pool and its priority variants: a fixed worker
// pool with optional work-stealing) live in so5/dispatch; this one ships in
// the root package so an Environment works with zero extra wiring, the same
// way timer.go ships a default TimerManager.
type oneThreadDispatcher struct {
	name  string
	queue *unboundedQueue
	wg    sync.WaitGroup
	env   *Environment
}

// NewOneThreadDispatcher constructs the default dispatcher: every agent
// bound to it shares one worker goroutine and one FIFO queue, so agents
// bound here serialize with each other exactly like SObjectizer's
// one_thread dispatcher.
func NewOneThreadDispatcher(name string) Dispatcher {
	return &oneThreadDispatcher{name: name, queue: newUnboundedQueue()}
}

func (d *oneThreadDispatcher) Name() string { return d.name }

type oneThreadBinder struct {
	d     *oneThreadDispatcher
	agent *Agent
}

func (b *oneThreadBinder) Unbind() {
	b.agent.queue = nil
}

func (d *oneThreadDispatcher) Bind(agent *Agent, _ Priority) (DispBinder, error) {
	binder := &oneThreadBinder{d: d, agent: agent}
	InstallQueue(agent, d.queue, binder)
	return binder, nil
}

func (d *oneThreadDispatcher) Start() error {
	d.wg.Add(1)
	go d.worker()
	return nil
}

func (d *oneThreadDispatcher) worker() {
	defer d.wg.Done()
	for {
		demand, ok := d.queue.Pop()
		if !ok {
			return
		}
		demand.Agent.invoke(demand)
		if demand.Selector == SelectorEvtFinish && demand.Agent.env != nil {
			demand.Agent.env.onAgentFinished(demand.Agent)
		}
	}
}

func (d *oneThreadDispatcher) Shutdown() { d.queue.Close() }

func (d *oneThreadDispatcher) Wait() { d.wg.Wait() }

func (d *oneThreadDispatcher) Stats() DataSource {
	return DataSourceFunc{
		SourceName: "dispatcher/" + d.name,
		CollectFn: func() []StatsValue {
			return []StatsValue{{Name: "queue_depth", Value: float64(d.queue.Len()), Labels: map[string]string{"dispatcher": d.name}}}
		},
	}
}
