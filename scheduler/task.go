// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package scheduler

import (
	"runtime"
	"sync"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/xmidt-org/rtsem/semaphore"
)

// Forever is the Acquire timeout that never elapses
const Forever time.Duration = -1

// State is the scheduling state of a task
type State int

const (
	Ready State = iota
	Running
	Blocked
	Sleeping

	// Done is the terminal state of a task whose body returned or panicked
	Done
)

func (s State) String() string {
	switch s {
	case Ready:
		return "ready"
	case Running:
		return "running"
	case Blocked:
		return "blocked"
	case Sleeping:
		return "sleeping"
	case Done:
		return "done"
	default:
		return "unknown"
	}
}

// TaskFunc is the body of a task.  It normally loops forever.
type TaskFunc func(*Task)

// Spec describes a task to be spawned
type Spec struct {
	// Name uniquely identifies the task.  It is also the identity the task uses to hold semaphores.
	Name string

	// Priority orders dispatch.  Higher values run first.
	Priority int

	// Period is the task's nominal period.  The scheduler does not enforce it; bodies read it via Task.Period.
	Period time.Duration

	// Entry is the task body
	Entry TaskFunc
}

// TaskInfo is a point-in-time copy of a task's scheduling state
type TaskInfo struct {
	Name        string        `json:"name"`
	Priority    int           `json:"priority"`
	Period      time.Duration `json:"period"`
	State       string        `json:"state"`
	Critical    bool          `json:"critical"`
	Dispatches  uint64        `json:"dispatches"`
	Preemptions uint64        `json:"preemptions"`
}

type op int

const (
	opDelay op = iota
	opAcquire
	opRelease
	opBusy
	opEnterCritical
	opExitCritical
	opExit
)

// call is a request from a task body to the dispatch loop
type call struct {
	task       *Task
	op         op
	d          time.Duration
	sem        *semaphore.Binary
	panicValue interface{}
}

// reply is the dispatch loop's answer to a call.  A kill reply terminates the task goroutine.
type reply struct {
	err  error
	kill bool
}

// Task is a schedulable unit of work.  The exported methods that suspend or preempt, such as
// Delay and Acquire, may only be called from the task's own body.
type Task struct {
	sched    *Scheduler
	name     string
	priority int
	period   time.Duration
	entry    TaskFunc
	logger   log.Logger
	resume   chan reply

	// the following fields are owned by the dispatch loop and guarded by sched.lock
	state       State
	seq         uint64
	timed       bool
	wakeAt      time.Time
	waitingOn   *semaphore.Binary
	busy        time.Duration
	critical    int
	pending     reply
	dispatches  uint64
	preemptions uint64

	// only touched by the task's own goroutine
	killed bool
}

// Name is the unique task identifier, used as the semaphore holder id
func (t *Task) Name() string {
	return t.name
}

// Priority is the dispatch priority.  Higher numbers win.
func (t *Task) Priority() int {
	return t.priority
}

// Period is the informational period given at Spawn
func (t *Task) Period() time.Duration {
	return t.period
}

// Logger returns the scheduler's logger, tagged with this task's name
func (t *Task) Logger() log.Logger {
	return t.logger
}

// Now returns the scheduler's logical time
func (t *Task) Now() time.Time {
	return t.sched.Now()
}

// State returns the task's current dispatch state
func (t *Task) State() State {
	t.sched.lock.Lock()
	defer t.sched.lock.Unlock()
	return t.state
}

func (t *Task) info() TaskInfo {
	return TaskInfo{
		Name:        t.name,
		Priority:    t.priority,
		Period:      t.period,
		State:       t.state.String(),
		Critical:    t.critical > 0,
		Dispatches:  t.dispatches,
		Preemptions: t.preemptions,
	}
}

// Delay suspends this task for at least d of logical time.  A nonpositive d yields to any other
// Ready task of the same or higher priority.
func (t *Task) Delay(d time.Duration) {
	t.invoke(call{op: opDelay, d: d})
}

// Acquire takes the given semaphore, waiting up to timeout for it.  Forever never times out, and a
// zero timeout never waits.  A wait that times out returns semaphore.ErrTimeout.
func (t *Task) Acquire(sem *semaphore.Binary, timeout time.Duration) error {
	return t.invoke(call{op: opAcquire, sem: sem, d: timeout})
}

// Release gives back the given semaphore.  If a higher priority task was waiting for it, that
// task runs before Release returns.  Releasing a semaphore this task does not hold returns
// semaphore.ErrNotOwner and changes nothing.
func (t *Task) Release(sem *semaphore.Binary) error {
	return t.invoke(call{op: opRelease, sem: sem})
}

// Busy consumes d of logical processor time.  Higher priority tasks that become Ready in the
// meantime preempt this task unless it is inside a critical section.
func (t *Task) Busy(d time.Duration) {
	if d > 0 {
		t.invoke(call{op: opBusy, d: d})
	}
}

// EnterCritical disables preemption of this task until the matching ExitCritical.  Calls nest.
// Other tasks still become Ready on time, but none of them runs until the critical section ends.
func (t *Task) EnterCritical() {
	t.invoke(call{op: opEnterCritical})
}

// ExitCritical ends the innermost critical section.  If that reenables preemption and a higher
// priority task is Ready, that task runs before ExitCritical returns.
func (t *Task) ExitCritical() {
	t.invoke(call{op: opExitCritical})
}

// invoke hands a call to the dispatch loop and parks until the loop resumes this task
func (t *Task) invoke(c call) error {
	c.task = t
	t.sched.calls <- c
	return t.await()
}

func (t *Task) await() error {
	r := <-t.resume
	if r.kill {
		t.killed = true
		runtime.Goexit()
	}

	return r.err
}

// main is the task goroutine.  It waits for the first dispatch, runs the body, and reports
// the body's exit to the dispatch loop.
func (t *Task) main(exited *sync.WaitGroup) {
	defer exited.Done()

	defer func() {
		if t.killed {
			return
		}

		t.sched.calls <- call{task: t, op: opExit, panicValue: recover()}
	}()

	t.await()
	t.entry(t)
}
