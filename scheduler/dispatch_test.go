package scheduler

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/xmidt-org/rtsem/clock/clocktest"
	"github.com/xmidt-org/rtsem/logging"
	"github.com/xmidt-org/rtsem/semaphore"
)

// timeline records what the task bodies did and when, relative to testStart.  Only one body
// executes at a time, so no locking is needed.
type timeline []string

func (tl *timeline) add(t *Task, format string, args ...interface{}) {
	*tl = append(*tl, fmt.Sprintf("%v %s %s", t.Now().Sub(testStart), t.Name(), fmt.Sprintf(format, args...)))
}

func TestDelay(t *testing.T) {
	var (
		assert = assert.New(t)
		s      = newTestScheduler(t)
		events timeline
	)

	mustSpawn(t, s, Spec{Name: "orange", Entry: func(t *Task) {
		for {
			events.add(t, "toggle")
			t.Delay(50 * time.Millisecond)
		}
	}})

	assert.NoError(s.RunFor(200 * time.Millisecond))
	assert.Equal(timeline{"0s orange toggle", "50ms orange toggle", "100ms orange toggle", "150ms orange toggle"}, events)
	assert.Equal(200*time.Millisecond, s.Elapsed())

	// a second run continues the same timeline
	assert.NoError(s.RunFor(100 * time.Millisecond))
	assert.Equal("250ms orange toggle", events[len(events)-1])
	assert.Len(events, 6)
}

func TestDelayYield(t *testing.T) {
	var (
		assert = assert.New(t)
		s      = newTestScheduler(t)
		events timeline
	)

	for _, name := range []string{"a", "b"} {
		mustSpawn(t, s, Spec{Name: name, Entry: func(t *Task) {
			events.add(t, "first")
			t.Delay(0)
			events.add(t, "second")
			t.Delay(time.Second)
		}})
	}

	assert.NoError(s.RunFor(time.Millisecond))
	assert.Equal(timeline{"0s a first", "0s b first", "0s a second", "0s b second"}, events)
}

func TestPriorityDispatch(t *testing.T) {
	var (
		assert = assert.New(t)
		s      = newTestScheduler(t)
		events timeline
	)

	for _, spec := range []struct {
		name     string
		priority int
	}{
		{"low", 1}, {"mid1", 2}, {"high", 3}, {"mid2", 2},
	} {
		mustSpawn(t, s, Spec{Name: spec.name, Priority: spec.priority, Entry: func(t *Task) {
			for {
				events.add(t, "run")
				t.Delay(100 * time.Millisecond)
			}
		}})
	}

	assert.NoError(s.RunFor(150 * time.Millisecond))
	assert.Equal(
		timeline{
			"0s high run", "0s mid1 run", "0s mid2 run", "0s low run",
			"100ms high run", "100ms mid1 run", "100ms mid2 run", "100ms low run",
		},
		events,
	)
}

func testPreemptionOnWake(t *testing.T) {
	var (
		assert = assert.New(t)
		s      = newTestScheduler(t)
		events timeline
	)

	low := mustSpawn(t, s, Spec{Name: "low", Priority: 1, Entry: func(t *Task) {
		events.add(t, "start")
		t.Busy(100 * time.Millisecond)
		events.add(t, "finish")
		t.Delay(time.Second)
	}})

	mustSpawn(t, s, Spec{Name: "high", Priority: 2, Entry: func(t *Task) {
		t.Delay(30 * time.Millisecond)
		events.add(t, "run")
		t.Delay(time.Second)
	}})

	assert.NoError(s.RunFor(200 * time.Millisecond))
	assert.Equal(timeline{"0s low start", "30ms high run", "100ms low finish"}, events)
	assert.Equal(uint64(1), low.preemptions)
}

func testPreemptionOnRelease(t *testing.T) {
	var (
		assert = assert.New(t)
		s      = newTestScheduler(t)
		b      = s.NewBinarySemaphore("shared")
		events timeline
	)

	mustSpawn(t, s, Spec{Name: "low", Priority: 1, Entry: func(t *Task) {
		assert.NoError(t.Acquire(b, Forever))
		events.add(t, "acquired")
		t.Busy(50 * time.Millisecond)
		assert.NoError(t.Release(b))
		events.add(t, "released")
		t.Delay(time.Second)
	}})

	mustSpawn(t, s, Spec{Name: "high", Priority: 2, Entry: func(t *Task) {
		t.Delay(10 * time.Millisecond)
		events.add(t, "acquiring")
		assert.NoError(t.Acquire(b, Forever))
		events.add(t, "acquired")
		assert.NoError(t.Release(b))
		t.Delay(time.Second)
	}})

	assert.NoError(s.RunFor(100 * time.Millisecond))
	assert.Equal(
		timeline{
			"0s low acquired",
			"10ms high acquiring",
			"50ms high acquired",
			"50ms low released",
		},
		events,
	)
}

func TestPreemption(t *testing.T) {
	t.Run("OnWake", testPreemptionOnWake)
	t.Run("OnRelease", testPreemptionOnRelease)
}

func TestMutualExclusion(t *testing.T) {
	var (
		assert     = assert.New(t)
		s          = newTestScheduler(t)
		b          = s.NewBinarySemaphore("shared")
		inside     int
		violations int
		accesses   = make(map[string]int)
	)

	// priorities and periods are chosen so that every task is regularly preempted while holding the token
	for i, period := range []time.Duration{7 * time.Millisecond, 11 * time.Millisecond, 13 * time.Millisecond, 17 * time.Millisecond} {
		mustSpawn(t, s, Spec{Name: fmt.Sprintf("task%d", i), Priority: i, Period: period, Entry: func(t *Task) {
			for {
				if err := t.Acquire(b, Forever); err != nil {
					violations++
				}

				inside++
				if inside > 1 {
					violations++
				}

				accesses[t.Name()]++
				t.Busy(3 * time.Millisecond)
				inside--

				if err := t.Release(b); err != nil {
					violations++
				}

				t.Delay(t.Period())
			}
		}})
	}

	assert.NoError(s.RunFor(2 * time.Second))
	assert.Zero(violations)
	assert.Len(accesses, 4)
	for name, count := range accesses {
		assert.Greater(count, 30, "task %s was starved", name)
	}
}

func TestFIFOWakeup(t *testing.T) {
	var (
		assert = assert.New(t)
		s      = newTestScheduler(t)
		b      = s.NewBinarySemaphore("shared")
		order  []string
	)

	mustSpawn(t, s, Spec{Name: "holder", Priority: 1, Entry: func(t *Task) {
		t.Acquire(b, Forever)
		order = append(order, t.Name())
		t.Busy(100 * time.Millisecond)
		t.Release(b)
		t.Delay(time.Hour)
	}})

	// A blocks first even though B has the higher priority
	for _, spec := range []Spec{
		{Name: "A", Priority: 2, Period: 10 * time.Millisecond},
		{Name: "B", Priority: 3, Period: 20 * time.Millisecond},
	} {
		spec.Entry = func(t *Task) {
			t.Delay(t.Period())
			t.Acquire(b, Forever)
			order = append(order, t.Name())
			t.Busy(5 * time.Millisecond)
			t.Release(b)
			t.Delay(time.Hour)
		}

		mustSpawn(t, s, spec)
	}

	assert.NoError(s.RunFor(time.Second))
	assert.Equal([]string{"holder", "A", "B"}, order)
	assert.Equal(1, b.Count())
}

func testAcquireTimeout(t *testing.T) {
	var (
		assert = assert.New(t)
		s      = newTestScheduler(t)
		b      = s.NewBinarySemaphore("shared")
		events timeline
	)

	mustSpawn(t, s, Spec{Name: "holder", Priority: 1, Entry: func(t *Task) {
		t.Acquire(b, Forever)
		t.Busy(100 * time.Millisecond)
		t.Release(b)
		t.Delay(time.Hour)
	}})

	mustSpawn(t, s, Spec{Name: "waiter", Priority: 2, Entry: func(t *Task) {
		t.Delay(10 * time.Millisecond)
		err := t.Acquire(b, 30*time.Millisecond)
		events.add(t, "%v", err)
		t.Delay(time.Hour)
	}})

	assert.NoError(s.RunFor(200 * time.Millisecond))
	assert.Equal(timeline{"40ms waiter " + semaphore.ErrTimeout.Error()}, events)
	assert.Empty(b.Waiters())
	assert.Equal(1, b.Count())
}

func testAcquireZeroTimeout(t *testing.T) {
	var (
		assert = assert.New(t)
		s      = newTestScheduler(t)
		b      = s.NewBinarySemaphore("shared")
		errs   []error
	)

	mustSpawn(t, s, Spec{Name: "holder", Priority: 2, Entry: func(t *Task) {
		errs = append(errs, t.Acquire(b, 0))
		t.Delay(10 * time.Millisecond)
		t.Release(b)
		t.Delay(time.Hour)
	}})

	mustSpawn(t, s, Spec{Name: "poller", Priority: 1, Entry: func(t *Task) {
		errs = append(errs, t.Acquire(b, 0))
		t.Delay(20 * time.Millisecond)
		errs = append(errs, t.Acquire(b, 0))
		t.Delay(time.Hour)
	}})

	assert.NoError(s.RunFor(100 * time.Millisecond))
	assert.Equal([]error{nil, semaphore.ErrTimeout, nil}, errs)
}

func testAcquireWithinTimeout(t *testing.T) {
	var (
		assert = assert.New(t)
		s      = newTestScheduler(t)
		b      = s.NewBinarySemaphore("shared")
		events timeline
	)

	mustSpawn(t, s, Spec{Name: "holder", Priority: 1, Entry: func(t *Task) {
		t.Acquire(b, Forever)
		t.Busy(20 * time.Millisecond)
		t.Release(b)
		t.Delay(time.Hour)
	}})

	mustSpawn(t, s, Spec{Name: "waiter", Priority: 2, Entry: func(t *Task) {
		t.Delay(10 * time.Millisecond)
		err := t.Acquire(b, 30*time.Millisecond)
		events.add(t, "%v", err)
		t.Release(b)

		// the canceled deadline must not wake this task early
		t.Delay(100 * time.Millisecond)
		events.add(t, "woke")
		t.Delay(time.Hour)
	}})

	assert.NoError(s.RunFor(200 * time.Millisecond))
	assert.Equal(timeline{"20ms waiter <nil>", "120ms waiter woke"}, events)
}

func testAcquireRecursive(t *testing.T) {
	var (
		assert = assert.New(t)
		s      = newTestScheduler(t)
		b      = s.NewBinarySemaphore("shared")
		errs   []error
	)

	mustSpawn(t, s, Spec{Name: "green", Entry: func(t *Task) {
		errs = append(errs,
			t.Acquire(b, Forever),
			t.Acquire(b, 0),
			t.Acquire(b, 10*time.Millisecond),
			t.Acquire(b, Forever),
			t.Release(b),
		)

		t.Delay(time.Hour)
	}})

	assert.NoError(s.RunFor(time.Millisecond))
	assert.Equal([]error{nil, semaphore.ErrRecursive, semaphore.ErrRecursive, semaphore.ErrRecursive, nil}, errs)
	assert.Equal(1, b.Count())
}

func TestAcquire(t *testing.T) {
	t.Run("Timeout", testAcquireTimeout)
	t.Run("ZeroTimeout", testAcquireZeroTimeout)
	t.Run("WithinTimeout", testAcquireWithinTimeout)
	t.Run("Recursive", testAcquireRecursive)
}

func TestReleaseNotOwner(t *testing.T) {
	var (
		assert = assert.New(t)
		s      = newTestScheduler(t)
		b      = s.NewBinarySemaphore("shared")
		before []semaphore.Snapshot
		after  []semaphore.Snapshot
		err    error
	)

	mustSpawn(t, s, Spec{Name: "holder", Priority: 3, Entry: func(t *Task) {
		t.Acquire(b, Forever)
		t.Delay(time.Hour)
	}})

	mustSpawn(t, s, Spec{Name: "waiter", Priority: 2, Entry: func(t *Task) {
		t.Acquire(b, Forever)
	}})

	mustSpawn(t, s, Spec{Name: "intruder", Priority: 1, Entry: func(t *Task) {
		before = s.Semaphores()
		err = t.Release(b)
		after = s.Semaphores()
		t.Delay(time.Hour)
	}})

	assert.NoError(s.RunFor(time.Millisecond))
	assert.Equal(semaphore.ErrNotOwner, err)
	assert.Equal(
		[]semaphore.Snapshot{{Name: "shared", Count: 0, Capacity: DefaultMaxTasks, Holder: "holder", Waiters: []string{"waiter"}}},
		before,
	)

	assert.Equal(before, after)
}

func TestCriticalSection(t *testing.T) {
	var (
		assert = assert.New(t)
		s      = newTestScheduler(t)
		events timeline
	)

	mustSpawn(t, s, Spec{Name: "low", Priority: 1, Entry: func(t *Task) {
		t.EnterCritical()
		t.EnterCritical()
		t.Busy(50 * time.Millisecond)
		t.ExitCritical()
		events.add(t, "inner exit")
		t.ExitCritical()
		events.add(t, "outer exit")
		t.Delay(time.Hour)
	}})

	mustSpawn(t, s, Spec{Name: "high", Priority: 2, Entry: func(t *Task) {
		t.Delay(10 * time.Millisecond)
		events.add(t, "run")
		t.Delay(time.Hour)
	}})

	assert.NoError(s.RunFor(100 * time.Millisecond))
	assert.Equal(timeline{"50ms low inner exit", "50ms high run", "50ms low outer exit"}, events)
}

func TestIdle(t *testing.T) {
	var (
		assert = assert.New(t)
		c      = new(clocktest.Mock)
		s      = New(WithClock(c), WithLogger(logging.NewTestLogger(nil, t)))
		count  int
	)

	defer s.Close()
	c.OnNow(testStart).Once()
	c.OnNewTimer(100*time.Millisecond, clocktest.NewFiredTimer(testStart.Add(100*time.Millisecond))).Once()
	c.OnNewTimer(100*time.Millisecond, clocktest.NewFiredTimer(testStart.Add(200*time.Millisecond))).Once()
	c.OnNewTimer(50*time.Millisecond, clocktest.NewFiredTimer(testStart.Add(250*time.Millisecond))).Once()

	mustSpawn(t, s, Spec{Name: "sleepy", Entry: func(t *Task) {
		for {
			count++
			t.Delay(100 * time.Millisecond)
		}
	}})

	assert.NoError(s.RunFor(250 * time.Millisecond))
	assert.Equal(3, count)
	assert.Equal(250*time.Millisecond, s.Elapsed())
	c.AssertExpectations(t)
	c.AssertNotCalled(t, "Sleep", mock.Anything)
}

func TestIdleNothingToWaitFor(t *testing.T) {
	var (
		assert = assert.New(t)
		s      = newTestScheduler(t)
		b      = s.NewBinarySemaphore("shared")
	)

	mustSpawn(t, s, Spec{Name: "holder", Priority: 2, Entry: func(t *Task) {
		t.Acquire(b, Forever)
	}})

	mustSpawn(t, s, Spec{Name: "waiter", Priority: 1, Entry: func(t *Task) {
		t.Acquire(b, Forever)
	}})

	assert.NoError(s.RunFor(time.Second))
	assert.Equal(time.Second, s.Elapsed())

	waiter, _ := s.Task("waiter")
	assert.Equal(Blocked, waiter.State())
}

func TestTaskExit(t *testing.T) {
	var (
		assert   = assert.New(t)
		require  = require.New(t)
		s        = newTestScheduler(t)
		b        = s.NewBinarySemaphore("shared")
		survivor int
	)

	mustSpawn(t, s, Spec{Name: "panics", Priority: 3, Entry: func(t *Task) {
		t.Acquire(b, Forever)
		panic("expected")
	}})

	mustSpawn(t, s, Spec{Name: "returns", Priority: 2, Entry: func(t *Task) {
		t.Delay(10 * time.Millisecond)
	}})

	mustSpawn(t, s, Spec{Name: "survivor", Priority: 1, Entry: func(t *Task) {
		for {
			survivor++
			t.Delay(10 * time.Millisecond)
		}
	}})

	require.NoError(s.RunFor(100 * time.Millisecond))
	assert.Equal(10, survivor)

	for _, name := range []string{"panics", "returns"} {
		task, ok := s.Task(name)
		require.True(ok)
		assert.Equal(Done, task.State())
	}

	holder, held := b.Holder()
	assert.True(held)
	assert.Equal("panics", holder)
}
