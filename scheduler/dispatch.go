// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/xmidt-org/rtsem/logging"
	"github.com/xmidt-org/rtsem/semaphore"
)

// loop is the dispatch loop.  It must be called with s.lock held, and it only releases the lock
// while a task body executes or while waiting on the clock.
func (s *Scheduler) loop(ctx context.Context, horizon time.Time, bounded bool) error {
	for {
		if bounded && !s.now.Before(horizon) {
			return nil
		}

		if err := ctx.Err(); err != nil {
			return err
		}

		s.wake()

		t := s.current
		if t == nil {
			if t = s.nextReady(); t == nil {
				if err := s.idle(ctx, horizon, bounded); err != nil {
					return err
				}

				continue
			}

			s.switchTo(t)
		} else if t.critical == 0 {
			if next := s.nextReady(); next != nil && next.priority > t.priority {
				s.preempt(t, next)
				continue
			}
		}

		if t.busy > 0 {
			if err := s.execute(ctx, t, horizon, bounded); err != nil {
				return err
			}

			continue
		}

		s.handle(s.dispatch(t))
	}
}

// wake moves every task whose deadline has arrived to Ready.  A semaphore wait that times out
// is withdrawn from the semaphore's queue first.
func (s *Scheduler) wake() {
	for _, t := range s.tasks {
		if !t.timed || t.wakeAt.After(s.now) {
			continue
		}

		switch t.state {
		case Sleeping:
			t.timed = false
			s.makeReady(t)

		case Blocked:
			if t.waitingOn.Cancel(t.name) {
				logging.Debug(t.logger).Log(logging.MessageKey(), "acquire timed out", logging.SemaphoreKey(), t.waitingOn.Name())
				t.pending = reply{err: semaphore.ErrTimeout}
				t.waitingOn = nil
				t.timed = false
				s.makeReady(t)
			}
		}
	}
}

// nextReady selects the highest priority Ready task, breaking ties by readiness order
func (s *Scheduler) nextReady() *Task {
	var next *Task
	for _, t := range s.tasks {
		if t.state != Ready {
			continue
		}

		if next == nil || t.priority > next.priority || (t.priority == next.priority && t.seq < next.seq) {
			next = t
		}
	}

	return next
}

func (s *Scheduler) readyCount() (n int) {
	for _, t := range s.tasks {
		if t.state == Ready {
			n++
		}
	}

	return
}

// nextWake returns the earliest pending deadline of a sleeping or timed blocked task
func (s *Scheduler) nextWake() (next time.Time, ok bool) {
	for _, t := range s.tasks {
		if !t.timed || (t.state != Sleeping && t.state != Blocked) {
			continue
		}

		if !ok || t.wakeAt.Before(next) {
			next, ok = t.wakeAt, true
		}
	}

	return
}

func (s *Scheduler) makeReady(t *Task) {
	t.state = Ready
	t.seq = s.nextSeq()
}

func (s *Scheduler) switchTo(t *Task) {
	t.state = Running
	t.dispatches++
	s.current = t
	s.measures.ContextSwitches.Add(1.0)
	s.measures.Ready.Set(float64(s.readyCount()))
}

func (s *Scheduler) preempt(t, by *Task) {
	logging.Debug(t.logger).Log(logging.MessageKey(), "preempted", "by", by.name)
	t.preemptions++
	s.makeReady(t)
	s.current = nil
	s.measures.Preemptions.Add(1.0)
}

// advance waits on the clock until the given logical time
func (s *Scheduler) advance(ctx context.Context, target time.Time) error {
	d := target.Sub(s.now)
	if d <= 0 {
		return nil
	}

	s.lock.Unlock()
	timer := s.clock.NewTimer(d)
	select {
	case <-timer.C():
		s.lock.Lock()
		s.now = target
		return nil

	case <-ctx.Done():
		timer.Stop()
		s.lock.Lock()
		return ctx.Err()
	}
}

// idle waits for the nearest deadline when no task is Ready
func (s *Scheduler) idle(ctx context.Context, horizon time.Time, bounded bool) error {
	next, ok := s.nextWake()
	if !ok {
		if !s.idleLogged {
			s.idleLogged = true
			logging.Warn(s.logger).Log(logging.MessageKey(), "no ready tasks and no pending deadlines")
		}

		if !bounded {
			s.lock.Unlock()
			<-ctx.Done()
			s.lock.Lock()
			return ctx.Err()
		}

		next = horizon
	} else if bounded && horizon.Before(next) {
		next = horizon
	}

	before := s.now
	err := s.advance(ctx, next)
	s.measures.Idle.Add(s.now.Sub(before).Seconds())
	return err
}

// execute lets a Running task consume its busy time, stopping early at the next deadline so
// that a newly Ready task can preempt it
func (s *Scheduler) execute(ctx context.Context, t *Task, horizon time.Time, bounded bool) error {
	target := s.now.Add(t.busy)
	if next, ok := s.nextWake(); ok && next.Before(target) {
		target = next
	}

	if bounded && horizon.Before(target) {
		target = horizon
	}

	before := s.now
	err := s.advance(ctx, target)
	t.busy -= s.now.Sub(before)
	return err
}

// dispatch resumes a task's goroutine with its pending reply and waits for its next call
func (s *Scheduler) dispatch(t *Task) call {
	r := t.pending
	t.pending = reply{}

	s.lock.Unlock()
	t.resume <- r
	c := <-s.calls
	s.lock.Lock()
	return c
}

// handle applies a call made by the Running task
func (s *Scheduler) handle(c call) {
	t := c.task
	switch c.op {
	case opDelay:
		s.current = nil
		if c.d > 0 {
			t.state = Sleeping
			t.timed = true
			t.wakeAt = s.now.Add(c.d)
		} else {
			s.makeReady(t)
		}

	case opAcquire:
		s.acquire(t, c.sem, c.d)

	case opRelease:
		next, handedOff, err := c.sem.Release(t.name)
		t.pending = reply{err: err}
		if handedOff {
			if w := s.byName[next]; w != nil && w.state == Blocked {
				w.waitingOn = nil
				w.timed = false
				w.pending = reply{}
				s.makeReady(w)
			}
		}

	case opBusy:
		t.busy = c.d

	case opEnterCritical:
		t.critical++

	case opExitCritical:
		if t.critical > 0 {
			t.critical--
		}

	case opExit:
		s.exit(t, c.panicValue)
	}
}

func (s *Scheduler) acquire(t *Task, sem *semaphore.Binary, timeout time.Duration) {
	if timeout == 0 {
		acquired, err := sem.TryAcquire(t.name)
		if err == nil && !acquired {
			err = semaphore.ErrTimeout
		}

		t.pending = reply{err: err}
		return
	}

	acquired, err := sem.Acquire(t.name)
	if err != nil || acquired {
		t.pending = reply{err: err}
		return
	}

	logging.Debug(t.logger).Log(logging.MessageKey(), "blocked", logging.SemaphoreKey(), sem.Name())
	s.current = nil
	t.state = Blocked
	t.waitingOn = sem
	if timeout > 0 {
		t.timed = true
		t.wakeAt = s.now.Add(timeout)
	}
}

func (s *Scheduler) exit(t *Task, panicValue interface{}) {
	s.current = nil
	t.state = Done
	t.critical = 0
	s.measures.TaskExits.Add(1.0)

	if panicValue != nil {
		logging.Error(t.logger).Log(logging.MessageKey(), "task panicked", logging.ErrorKey(), fmt.Sprint(panicValue))
	} else {
		logging.Warn(t.logger).Log(logging.MessageKey(), "task returned")
	}

	for _, b := range s.semaphores {
		if holder, held := b.Holder(); held && holder == t.name {
			logging.Warn(t.logger).Log(logging.MessageKey(), "task exited while holding a semaphore", logging.SemaphoreKey(), b.Name())
		}
	}
}
