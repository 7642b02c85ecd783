package clock

import (
	"sync"
	"time"
)

// FastForward is a clock in which every wait completes immediately by moving the clock's
// notion of now forward.  A scheduler driven by a FastForward clock executes a simulated
// timeline as fast as the host allows, which makes runs deterministic and tests quick.
//
// FastForward is safe for concurrent use.
type FastForward struct {
	lock sync.Mutex
	now  time.Time
}

var _ Interface = (*FastForward)(nil)

// NewFastForward creates a FastForward clock that starts at the given time
func NewFastForward(start time.Time) *FastForward {
	return &FastForward{now: start}
}

func (ff *FastForward) Now() time.Time {
	ff.lock.Lock()
	defer ff.lock.Unlock()
	return ff.now
}

// Advance moves this clock forward and returns the new current time.  Nonpositive
// durations leave the clock unchanged.
func (ff *FastForward) Advance(d time.Duration) time.Time {
	ff.lock.Lock()
	defer ff.lock.Unlock()
	if d > 0 {
		ff.now = ff.now.Add(d)
	}

	return ff.now
}

func (ff *FastForward) Sleep(d time.Duration) {
	ff.Advance(d)
}

// NewTimer advances the clock by d and returns a Timer that has already fired
func (ff *FastForward) NewTimer(d time.Duration) Timer {
	t := &fastForwardTimer{
		clock: ff,
		c:     make(chan time.Time, 1),
	}

	t.fire(d)
	return t
}

type fastForwardTimer struct {
	clock *FastForward
	c     chan time.Time
}

func (t *fastForwardTimer) fire(d time.Duration) {
	t.c <- t.clock.Advance(d)
}

func (t *fastForwardTimer) drain() bool {
	select {
	case <-t.c:
		return true
	default:
		return false
	}
}

func (t *fastForwardTimer) C() <-chan time.Time {
	return t.c
}

// Reset always reports false, since a fast forward timer has always fired by the time
// anyone can hold it.  The timer fires again after advancing the clock by d.
func (t *fastForwardTimer) Reset(d time.Duration) bool {
	t.drain()
	t.fire(d)
	return false
}

func (t *fastForwardTimer) Stop() bool {
	t.drain()
	return false
}
