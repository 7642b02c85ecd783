package clock

import "time"

// Interface is the scheduler's view of time:  the current instant plus the two ways a
// dispatch loop waits, unconditionally or alongside other events.  The system clock and
// FastForward are the production implementations.
type Interface interface {
	Now() time.Time
	Sleep(time.Duration)
	NewTimer(time.Duration) Timer
}

// Timer is a one-shot wake up.  C delivers the firing instant.  Reset and Stop follow the
// time.Timer contract, including the return values.
type Timer interface {
	C() <-chan time.Time
	Reset(time.Duration) bool
	Stop() bool
}
