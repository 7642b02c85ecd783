// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/segmentio/ksuid"
	"github.com/xmidt-org/rtsem/clock"
	"github.com/xmidt-org/rtsem/concurrent"
	"github.com/xmidt-org/rtsem/logging"
	"github.com/xmidt-org/rtsem/semaphore"
)

// DefaultMaxTasks is the task limit used when none is configured
const DefaultMaxTasks = 16

var (
	ErrInvalidTask   = errors.New("a task requires a name and an entry function")
	ErrDuplicateTask = errors.New("a task with that name already exists")
	ErrStarted       = errors.New("tasks cannot be spawned once the scheduler has started")
	ErrRunning       = errors.New("the scheduler is already running")
	ErrClosed        = errors.New("the scheduler has been closed")
)

// Option is a configurable option for a Scheduler
type Option func(*Scheduler)

// WithClock sets the clock used to wait.  A nil clock selects clock.System().
func WithClock(c clock.Interface) Option {
	return func(s *Scheduler) {
		if c != nil {
			s.clock = c
		} else {
			s.clock = clock.System()
		}
	}
}

// WithLogger sets the go-kit logger.  A nil logger discards output.
func WithLogger(l log.Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.logger = l
		} else {
			s.logger = logging.DefaultLogger()
		}
	}
}

// WithMeasures sets the scheduler's metrics.  Nil metrics in m are replaced with discards.
func WithMeasures(m Measures) Option {
	return func(s *Scheduler) {
		s.measures = m.withDefaults()
	}
}

// WithMaxTasks bounds the number of tasks, which also bounds every semaphore wait queue.
// Nonpositive values are ignored.
func WithMaxTasks(n int) Option {
	return func(s *Scheduler) {
		if n > 0 {
			s.maxTasks = n
		}
	}
}

// Scheduler owns a fixed set of tasks and the semaphores they share, and runs them on a single
// logical core.  Tasks are spawned before the first run.  A Scheduler may be run several times
// in succession, each run continuing where the previous one stopped, until it is closed.
type Scheduler struct {
	id       ksuid.KSUID
	clock    clock.Interface
	logger   log.Logger
	measures Measures
	maxTasks int
	calls    chan call
	exited   sync.WaitGroup

	lock       sync.Mutex
	tasks      []*Task
	byName     map[string]*Task
	semaphores []*semaphore.Binary
	start      time.Time
	now        time.Time
	seq        uint64
	current    *Task
	started    bool
	running    bool
	closed     bool
	idleLogged bool
}

// New creates a Scheduler with no tasks
func New(o ...Option) *Scheduler {
	s := &Scheduler{
		id:       ksuid.New(),
		clock:    clock.System(),
		logger:   logging.DefaultLogger(),
		measures: Measures{}.withDefaults(),
		maxTasks: DefaultMaxTasks,
		calls:    make(chan call),
		byName:   make(map[string]*Task),
	}

	for _, f := range o {
		f(s)
	}

	s.logger = log.With(s.logger, "run", s.id.String())
	return s
}

// ID returns the unique identifier of this scheduler, which is included in all its log output
func (s *Scheduler) ID() ksuid.KSUID {
	return s.id
}

// Spawn registers a task.  The task is Ready and will first run when the scheduler does.
func (s *Scheduler) Spawn(spec Spec) (*Task, error) {
	if len(spec.Name) == 0 || spec.Entry == nil {
		return nil, ErrInvalidTask
	}

	s.lock.Lock()
	defer s.lock.Unlock()

	switch {
	case s.closed:
		return nil, ErrClosed
	case s.started:
		return nil, ErrStarted
	case s.byName[spec.Name] != nil:
		return nil, fmt.Errorf("%w: %s", ErrDuplicateTask, spec.Name)
	case len(s.tasks) >= s.maxTasks:
		return nil, fmt.Errorf("%w: at most %d tasks", semaphore.ErrCapacity, s.maxTasks)
	}

	t := &Task{
		sched:    s,
		name:     spec.Name,
		priority: spec.Priority,
		period:   spec.Period,
		entry:    spec.Entry,
		logger:   logging.ForTask(s.logger, spec.Name),
		resume:   make(chan reply),
		state:    Ready,
		seq:      s.nextSeq(),
	}

	s.tasks = append(s.tasks, t)
	s.byName[t.name] = t
	return t, nil
}

// NewBinarySemaphore creates a semaphore owned by this scheduler.  Its wait queue can hold every task.
func (s *Scheduler) NewBinarySemaphore(name string, o ...semaphore.Option) *semaphore.Binary {
	s.lock.Lock()
	defer s.lock.Unlock()

	b := semaphore.NewBinary(
		name,
		append([]semaphore.Option{semaphore.WithCapacity(s.maxTasks)}, o...)...,
	)

	s.semaphores = append(s.semaphores, b)
	return b
}

// Now returns the logical time of this scheduler
func (s *Scheduler) Now() time.Time {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.now
}

// Elapsed returns the logical time since the first run started
func (s *Scheduler) Elapsed() time.Duration {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.now.Sub(s.start)
}

// Task looks up a task by name
func (s *Scheduler) Task(name string) (*Task, bool) {
	s.lock.Lock()
	defer s.lock.Unlock()
	t, ok := s.byName[name]
	return t, ok
}

// Tasks returns a snapshot of every task, in the order they were spawned
func (s *Scheduler) Tasks() []TaskInfo {
	s.lock.Lock()
	defer s.lock.Unlock()

	infos := make([]TaskInfo, 0, len(s.tasks))
	for _, t := range s.tasks {
		infos = append(infos, t.info())
	}

	return infos
}

// Semaphores returns a snapshot of every semaphore owned by this scheduler
func (s *Scheduler) Semaphores() []semaphore.Snapshot {
	s.lock.Lock()
	defer s.lock.Unlock()

	snapshots := make([]semaphore.Snapshot, 0, len(s.semaphores))
	for _, b := range s.semaphores {
		snapshots = append(snapshots, b.Snapshot())
	}

	return snapshots
}

// RunFor runs the scheduler for d of logical time.  Events due at or after the end of that
// window are left for a subsequent run.
func (s *Scheduler) RunFor(d time.Duration) error {
	return s.run(context.Background(), d, true)
}

// RunContext runs the scheduler until the context is canceled, returning the context's error.
// It never returns otherwise.
func (s *Scheduler) RunContext(ctx context.Context) error {
	return s.run(ctx, 0, false)
}

// Run implements concurrent.Runnable.  The scheduler runs in the background until shutdown is closed.
func (s *Scheduler) Run(waitGroup *sync.WaitGroup, shutdown <-chan struct{}) error {
	return concurrent.FromContext(s.logger, "scheduler", s.RunContext).Run(waitGroup, shutdown)
}

// Close terminates every task goroutine.  A closed scheduler cannot be run again.
func (s *Scheduler) Close() error {
	s.lock.Lock()
	switch {
	case s.closed:
		s.lock.Unlock()
		return ErrClosed
	case s.running:
		s.lock.Unlock()
		return ErrRunning
	}

	s.closed = true
	var live []*Task
	if s.started {
		for _, t := range s.tasks {
			if t.state != Done {
				live = append(live, t)
			}
		}
	}

	s.lock.Unlock()

	for _, t := range live {
		t.resume <- reply{kill: true}
	}

	s.exited.Wait()
	logging.Info(s.logger).Log(logging.MessageKey(), "scheduler closed")
	return nil
}

func (s *Scheduler) run(ctx context.Context, d time.Duration, bounded bool) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	switch {
	case s.closed:
		return ErrClosed
	case s.running:
		return ErrRunning
	}

	s.running = true
	defer func() {
		s.running = false
	}()

	if !s.started {
		s.started = true
		s.start = s.clock.Now()
		s.now = s.start

		for _, t := range s.tasks {
			s.exited.Add(1)
			go t.main(&s.exited)
		}
	}

	horizon := s.now.Add(d)
	logging.Info(s.logger).Log(logging.MessageKey(), "scheduler running", "tasks", len(s.tasks), "elapsed", s.now.Sub(s.start))
	err := s.loop(ctx, horizon, bounded)
	logging.Info(s.logger).Log(logging.MessageKey(), "scheduler stopped", "elapsed", s.now.Sub(s.start))
	return err
}

func (s *Scheduler) nextSeq() uint64 {
	s.seq++
	return s.seq
}
