// Package scheduler runs one-shot deferred callbacks keyed by giveaway id.
package scheduler

import (
	"sync"
	"time"
)

type entry struct {
	timer *time.Timer
}

// Scheduler manages pending one-shot tasks. Scheduling a key that already has
// a pending task replaces it.
type Scheduler struct {
	mu      sync.Mutex
	tasks   map[int64]*entry
	stopped bool
	wg      sync.WaitGroup
}

// New creates a new scheduler.
func New() *Scheduler {
	return &Scheduler{
		tasks: make(map[int64]*entry),
	}
}

// ScheduleAt arms fn to run at the given time. A time in the past runs fn immediately.
func (s *Scheduler) ScheduleAt(key int64, at time.Time, fn func()) bool {
	return s.Schedule(key, time.Until(at), fn)
}

// Schedule arms fn to run after delay. It returns false once the scheduler is stopped.
func (s *Scheduler) Schedule(key int64, delay time.Duration, fn func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return false
	}
	if prev, ok := s.tasks[key]; ok {
		prev.timer.Stop()
	}
	if delay < 0 {
		delay = 0
	}

	e := &entry{}
	e.timer = time.AfterFunc(delay, func() { s.fire(key, e, fn) })
	s.tasks[key] = e
	return true
}

func (s *Scheduler) fire(key int64, e *entry, fn func()) {
	s.mu.Lock()
	if s.stopped || s.tasks[key] != e {
		s.mu.Unlock()
		return
	}
	delete(s.tasks, key)
	s.wg.Add(1)
	s.mu.Unlock()

	defer s.wg.Done()
	fn()
}

// Cancel removes a pending task. It reports whether a task was pending.
func (s *Scheduler) Cancel(key int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.tasks[key]
	if !ok {
		return false
	}
	e.timer.Stop()
	delete(s.tasks, key)
	return true
}

// Pending returns the number of armed tasks.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

// Stop cancels all pending tasks and waits for running ones to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.stopped = true
	for key, e := range s.tasks {
		e.timer.Stop()
		delete(s.tasks, key)
	}
	s.mu.Unlock()

	s.wg.Wait()
}
