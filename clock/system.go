package clock

import "time"

// wallClock is the Interface backed directly by the time package
type wallClock struct{}

var _ Interface = wallClock{}

// System returns the wall clock used for real-time runs
func System() Interface {
	return wallClock{}
}

func (wallClock) Now() time.Time {
	return time.Now()
}

func (wallClock) Sleep(d time.Duration) {
	time.Sleep(d)
}

func (wallClock) NewTimer(d time.Duration) Timer {
	return &wallTimer{timer: time.NewTimer(d)}
}

type wallTimer struct {
	timer *time.Timer
}

func (wt *wallTimer) C() <-chan time.Time {
	return wt.timer.C
}

func (wt *wallTimer) Reset(d time.Duration) bool {
	return wt.timer.Reset(d)
}

func (wt *wallTimer) Stop() bool {
	return wt.timer.Stop()
}
