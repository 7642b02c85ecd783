package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-kit/kit/metrics/generic"
	"github.com/go-kit/kit/metrics/provider"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xmidt-org/rtsem/clock"
	"github.com/xmidt-org/rtsem/concurrent"
	"github.com/xmidt-org/rtsem/logging"
	"github.com/xmidt-org/rtsem/semaphore"
)

var testStart = time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)

// newTestScheduler creates a fast forward scheduler that is closed when the test ends
func newTestScheduler(t *testing.T, o ...Option) *Scheduler {
	s := New(
		append([]Option{
			WithClock(clock.NewFastForward(testStart)),
			WithLogger(logging.NewTestLogger(&logging.Options{Level: "warn"}, t)),
		}, o...)...,
	)

	t.Cleanup(func() {
		s.Close()
	})

	return s
}

func mustSpawn(t *testing.T, s *Scheduler, spec Spec) *Task {
	task, err := s.Spawn(spec)
	require.NoError(t, err)
	require.NotNil(t, task)
	return task
}

// forever returns a task body that delays in a loop
func forever(period time.Duration) TaskFunc {
	return func(t *Task) {
		for {
			t.Delay(period)
		}
	}
}

func TestStateString(t *testing.T) {
	assert := assert.New(t)
	for state, expected := range map[State]string{
		Ready:     "ready",
		Running:   "running",
		Blocked:   "blocked",
		Sleeping:  "sleeping",
		Done:      "done",
		State(99): "unknown",
	} {
		assert.Equal(expected, state.String())
	}
}

func TestNew(t *testing.T) {
	var (
		assert = assert.New(t)
		s      = New(WithClock(nil), WithLogger(nil), WithMeasures(NewMeasures(provider.NewDiscardProvider())), WithMaxTasks(-1))
	)

	defer s.Close()
	assert.NotNil(s.clock)
	assert.NotNil(s.logger)
	assert.Equal(DefaultMaxTasks, s.maxTasks)
	assert.False(s.ID().IsNil())
	assert.Empty(s.Tasks())
	assert.Empty(s.Semaphores())
}

func testSpawnInvalid(t *testing.T) {
	var (
		assert = assert.New(t)
		s      = newTestScheduler(t)
	)

	task, err := s.Spawn(Spec{Entry: forever(time.Second)})
	assert.Nil(task)
	assert.Equal(ErrInvalidTask, err)

	task, err = s.Spawn(Spec{Name: "noentry"})
	assert.Nil(task)
	assert.Equal(ErrInvalidTask, err)
}

func testSpawnDuplicate(t *testing.T) {
	var (
		assert = assert.New(t)
		s      = newTestScheduler(t)
	)

	mustSpawn(t, s, Spec{Name: "green", Entry: forever(time.Second)})
	task, err := s.Spawn(Spec{Name: "green", Entry: forever(time.Second)})
	assert.Nil(task)
	assert.True(errors.Is(err, ErrDuplicateTask))
}

func testSpawnCapacity(t *testing.T) {
	var (
		assert = assert.New(t)
		s      = newTestScheduler(t, WithMaxTasks(1))
	)

	mustSpawn(t, s, Spec{Name: "green", Entry: forever(time.Second)})
	task, err := s.Spawn(Spec{Name: "red", Entry: forever(time.Second)})
	assert.Nil(task)
	assert.True(errors.Is(err, semaphore.ErrCapacity))
}

func testSpawnStarted(t *testing.T) {
	var (
		assert = assert.New(t)
		s      = newTestScheduler(t)
	)

	mustSpawn(t, s, Spec{Name: "green", Entry: forever(time.Second)})
	assert.NoError(s.RunFor(time.Second))

	task, err := s.Spawn(Spec{Name: "red", Entry: forever(time.Second)})
	assert.Nil(task)
	assert.Equal(ErrStarted, err)
}

func testSpawnClosed(t *testing.T) {
	var (
		assert = assert.New(t)
		s      = newTestScheduler(t)
	)

	assert.NoError(s.Close())
	task, err := s.Spawn(Spec{Name: "green", Entry: forever(time.Second)})
	assert.Nil(task)
	assert.Equal(ErrClosed, err)
}

func TestSpawn(t *testing.T) {
	t.Run("Invalid", testSpawnInvalid)
	t.Run("Duplicate", testSpawnDuplicate)
	t.Run("Capacity", testSpawnCapacity)
	t.Run("Started", testSpawnStarted)
	t.Run("Closed", testSpawnClosed)
}

func TestTaskAccessors(t *testing.T) {
	var (
		assert = assert.New(t)
		s      = newTestScheduler(t)
		task   = mustSpawn(t, s, Spec{Name: "green", Priority: 2, Period: 200 * time.Millisecond, Entry: forever(time.Second)})
	)

	assert.Equal("green", task.Name())
	assert.Equal(2, task.Priority())
	assert.Equal(200*time.Millisecond, task.Period())
	assert.NotNil(task.Logger())
	assert.Equal(Ready, task.State())

	found, ok := s.Task("green")
	assert.True(ok)
	assert.Equal(task, found)

	_, ok = s.Task("nosuch")
	assert.False(ok)

	assert.NoError(s.RunFor(time.Second))
	assert.Equal(Sleeping, task.State())
	assert.Equal(testStart.Add(time.Second), task.Now())
	assert.Equal(
		[]TaskInfo{{Name: "green", Priority: 2, Period: 200 * time.Millisecond, State: "sleeping", Dispatches: 1}},
		s.Tasks(),
	)
}

func TestNewBinarySemaphore(t *testing.T) {
	var (
		assert = assert.New(t)
		s      = newTestScheduler(t, WithMaxTasks(3))
		b      = s.NewBinarySemaphore("shared")
	)

	assert.Equal("shared", b.Name())
	assert.Equal(
		[]semaphore.Snapshot{{Name: "shared", Count: 1, Capacity: 3, Waiters: []string{}}},
		s.Semaphores(),
	)
}

func testRunContextCanceled(t *testing.T) {
	var (
		assert      = assert.New(t)
		s           = newTestScheduler(t)
		ctx, cancel = context.WithCancel(context.Background())
		iterations  int
	)

	defer cancel()
	mustSpawn(t, s, Spec{Name: "green", Entry: func(t *Task) {
		for {
			iterations++
			if iterations == 5 {
				cancel()
			}

			t.Delay(10 * time.Millisecond)
		}
	}})

	assert.Equal(context.Canceled, s.RunContext(ctx))
	assert.Equal(5, iterations)
	assert.Equal(40*time.Millisecond, s.Elapsed())
}

func testRunContextNoDeadlines(t *testing.T) {
	var (
		assert      = assert.New(t)
		s           = newTestScheduler(t)
		ctx, cancel = context.WithCancel(context.Background())
		first       = s.NewBinarySemaphore("first")
		second      = s.NewBinarySemaphore("second")
		result      = make(chan error, 1)
	)

	// a classic lock ordering deadlock leaves nothing Ready and nothing to wait for
	defer cancel()
	mustSpawn(t, s, Spec{Name: "a", Priority: 2, Entry: func(t *Task) {
		t.Acquire(first, Forever)
		t.Delay(10 * time.Millisecond)
		t.Acquire(second, Forever)
	}})

	mustSpawn(t, s, Spec{Name: "b", Priority: 1, Entry: func(t *Task) {
		t.Acquire(second, Forever)
		t.Acquire(first, Forever)
	}})

	go func() {
		result <- s.RunContext(ctx)
	}()

	cancel()
	select {
	case err := <-result:
		assert.Equal(context.Canceled, err)
	case <-time.After(5 * time.Second):
		assert.FailNow("RunContext did not return after cancellation")
	}
}

func TestRunContext(t *testing.T) {
	t.Run("Canceled", testRunContextCanceled)
	t.Run("NoDeadlines", testRunContextNoDeadlines)
}

func TestRunReentrant(t *testing.T) {
	var (
		assert = assert.New(t)
		s      = newTestScheduler(t)
		runErr error
		clsErr error
	)

	mustSpawn(t, s, Spec{Name: "green", Entry: func(t *Task) {
		runErr = s.RunFor(time.Second)
		clsErr = s.Close()
		forever(time.Second)(t)
	}})

	assert.NoError(s.RunFor(time.Second))
	assert.Equal(ErrRunning, runErr)
	assert.Equal(ErrRunning, clsErr)
}

func TestClose(t *testing.T) {
	var (
		assert   = assert.New(t)
		require  = require.New(t)
		s        = New(WithClock(clock.NewFastForward(testStart)))
		b        = s.NewBinarySemaphore("shared")
		deferred = make(chan string, 3)
	)

	for _, name := range []string{"sleeper", "holder", "waiter"} {
		name := name
		mustSpawn(t, s, Spec{Name: name, Entry: func(t *Task) {
			defer func() {
				deferred <- name
			}()

			if name != "sleeper" {
				t.Acquire(b, Forever)
			}

			forever(time.Second)(t)
		}})
	}

	require.NoError(s.RunFor(time.Second))

	done := make(chan error, 1)
	go func() {
		done <- s.Close()
	}()

	select {
	case err := <-done:
		assert.NoError(err)
	case <-time.After(5 * time.Second):
		assert.FailNow("Close did not terminate the task goroutines")
	}

	assert.Len(deferred, 3)
	assert.Equal(ErrClosed, s.Close())
	assert.Equal(ErrClosed, s.RunFor(time.Second))
	assert.Equal(ErrClosed, s.RunContext(context.Background()))
}

func TestCloseNeverStarted(t *testing.T) {
	s := New()
	mustSpawn(t, s, Spec{Name: "green", Entry: forever(time.Second)})
	assert.NoError(t, s.Close())
}

func TestMeasures(t *testing.T) {
	var (
		assert    = assert.New(t)
		switches  = generic.NewCounter("switches")
		preempts  = generic.NewCounter("preemptions")
		idle      = generic.NewCounter("idle")
		exits     = generic.NewCounter("exits")
		ready     = generic.NewGauge("ready")
		s         = newTestScheduler(t, WithMeasures(Measures{ContextSwitches: switches, Preemptions: preempts, Idle: idle, TaskExits: exits, Ready: ready}))
		lowFinish = false
	)

	mustSpawn(t, s, Spec{Name: "low", Priority: 1, Entry: func(t *Task) {
		t.Busy(100 * time.Millisecond)
		lowFinish = true
	}})

	mustSpawn(t, s, Spec{Name: "high", Priority: 2, Entry: func(t *Task) {
		for {
			t.Delay(40 * time.Millisecond)
		}
	}})

	assert.NoError(s.RunFor(200 * time.Millisecond))
	assert.True(lowFinish)

	// high: 0, 40, 80, 120, 160; low: 0, resumed after 40 and 80
	assert.Equal(8.0, switches.Value())
	assert.Equal(2.0, preempts.Value())
	assert.Equal(1.0, exits.Value())
	assert.InDelta(0.1, idle.Value(), 1e-9)
	assert.Equal(0.0, ready.Value())
}

func TestRun(t *testing.T) {
	var (
		assert  = assert.New(t)
		require = require.New(t)
		s       = newTestScheduler(t)
	)

	mustSpawn(t, s, Spec{Name: "orange", Priority: 3, Entry: forever(50 * time.Millisecond)})

	waitGroup, shutdown, err := concurrent.Execute(s)
	require.NoError(err)

	close(shutdown)
	assert.True(concurrent.WaitTimeout(waitGroup, 10*time.Second))

	orange, ok := s.Task("orange")
	require.True(ok)
	assert.NotEqual(Running, orange.State())
}
