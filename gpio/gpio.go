// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package gpio

import (
	"strconv"
	"sync"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/metrics"
	"github.com/xmidt-org/rtsem/logging"
	"github.com/xmidt-org/rtsem/xmetrics"
)

// Pin identifies a digital output
type Pin uint8

const (
	PinGreen  Pin = 12
	PinOrange Pin = 13
	PinRed    Pin = 14
)

func (p Pin) String() string {
	return strconv.Itoa(int(p))
}

// Level is the state of a digital output
type Level bool

const (
	Low  Level = false
	High Level = true
)

func (l Level) String() string {
	if l {
		return "high"
	}

	return "low"
}

// Toggle returns the opposite level
func (l Level) Toggle() Level {
	return !l
}

// Output drives pins.  Implementations must not block and are safe for concurrent use.
type Output interface {
	Set(Pin, Level)
}

// OutputFunc is a function type that implements Output
type OutputFunc func(Pin, Level)

func (f OutputFunc) Set(p Pin, l Level) {
	f(p, l)
}

// Discard is an Output that does nothing
var Discard Output = OutputFunc(func(Pin, Level) {})

// Tee returns an Output that sets every one of the given outputs, in order
func Tee(outputs ...Output) Output {
	return OutputFunc(func(p Pin, l Level) {
		for _, o := range outputs {
			o.Set(p, l)
		}
	})
}

// NewLogOutput returns an Output that logs each transition at debug level
func NewLogOutput(logger log.Logger) Output {
	if logger == nil {
		logger = logging.DefaultLogger()
	}

	return OutputFunc(func(p Pin, l Level) {
		logging.Debug(logger).Log(logging.MessageKey(), "pin set", logging.PinKey(), p, "level", l)
	})
}

// LevelGauge is the name of the gauge that tracks pin levels, labelled by pin
const LevelGauge = "gpio_level"

// Metrics is the module of metrics used by MetricsOutput
func Metrics() []xmetrics.Metric {
	return []xmetrics.Metric{
		{Name: LevelGauge, Type: xmetrics.GaugeType, Help: "The current level of each output pin", LabelNames: []string{"pin"}},
	}
}

// NewMetricsOutput returns an Output that sets the given gauge to 1 or 0.  The gauge must carry a
// "pin" label, as the LevelGauge from Metrics does.
func NewMetricsOutput(g metrics.Gauge) Output {
	return OutputFunc(func(p Pin, l Level) {
		v := 0.0
		if l {
			v = 1.0
		}

		g.With("pin", p.String()).Set(v)
	})
}

// Transition is a recorded change to a pin
type Transition struct {
	Pin   Pin       `json:"pin"`
	Level Level     `json:"level"`
	At    time.Time `json:"at"`
}

// Recorder is an Output that remembers every transition along with the time it happened
type Recorder struct {
	now func() time.Time

	lock        sync.Mutex
	transitions []Transition
}

// NewRecorder creates a Recorder that timestamps transitions with the given function, normally
// the scheduler's logical clock
func NewRecorder(now func() time.Time) *Recorder {
	if now == nil {
		now = time.Now
	}

	return &Recorder{now: now}
}

func (r *Recorder) Set(p Pin, l Level) {
	at := r.now()
	r.lock.Lock()
	r.transitions = append(r.transitions, Transition{Pin: p, Level: l, At: at})
	r.lock.Unlock()
}

// Transitions returns the recorded transitions of the given pins, in order.  With no pins, every
// transition is returned.
func (r *Recorder) Transitions(pins ...Pin) []Transition {
	r.lock.Lock()
	defer r.lock.Unlock()

	var result []Transition
	for _, t := range r.transitions {
		if len(pins) == 0 {
			result = append(result, t)
			continue
		}

		for _, p := range pins {
			if t.Pin == p {
				result = append(result, t)
				break
			}
		}
	}

	return result
}

// Count returns the number of transitions recorded for a pin
func (r *Recorder) Count(p Pin) int {
	return len(r.Transitions(p))
}

// Level returns the last level set on a pin, which is Low if the pin was never set
func (r *Recorder) Level(p Pin) Level {
	t := r.Transitions(p)
	if len(t) == 0 {
		return Low
	}

	return t[len(t)-1].Level
}
