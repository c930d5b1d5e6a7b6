// Package cronsend schedules a message delivery on a cron expression
// instead of a fixed pause/period, for "every day at 02:00" style periodic
// notifications that a plain fixed-interval timer can't express.
package cronsend

import (
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/so5go/so5"
)

// Scheduler runs a robfig/cron/v3 engine and issues so5.Send calls on
// matching ticks.
type Scheduler struct {
	mu   sync.Mutex
	cron *cron.Cron
	jobs map[string]cron.EntryID
}

// NewScheduler constructs a Scheduler with second-precision parsing enabled,
// so sub-minute jobs are expressible.
func NewScheduler() *Scheduler {
	return &Scheduler{
		cron: cron.New(cron.WithSeconds()),
		jobs: make(map[string]cron.EntryID),
	}
}

// AddSend schedules payload to be sent to mbox every time expr matches,
// under name (used later to Remove it). Replaces any existing job with the
// same name.
func (s *Scheduler) AddSend(name, expr string, mbox so5.Mbox, payload any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id, exists := s.jobs[name]; exists {
		s.cron.Remove(id)
		delete(s.jobs, name)
	}

	id, err := s.cron.AddFunc(expr, func() {
		_ = so5.Send(mbox, payload)
	})
	if err != nil {
		return &so5.Error{Op: "cronsend.add_send", Kind: so5.KindInvariantViolation, Cause: err}
	}
	s.jobs[name] = id
	return nil
}

// Remove cancels a previously scheduled job. No-op if name is unknown.
func (s *Scheduler) Remove(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.jobs[name]; ok {
		s.cron.Remove(id)
		delete(s.jobs, name)
	}
}

// Start begins running scheduled jobs in the background.
func (s *Scheduler) Start() { s.cron.Start() }

// Stop halts the scheduler and waits for any in-flight job to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}
