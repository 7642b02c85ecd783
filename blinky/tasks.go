// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package blinky

import (
	"fmt"
	"sync"
	"time"

	"github.com/xmidt-org/rtsem/gpio"
	"github.com/xmidt-org/rtsem/scheduler"
	"github.com/xmidt-org/rtsem/semaphore"
)

// TaskStats summarizes the timing of one periodic task
type TaskStats struct {
	Name       string     `json:"name"`
	Pin        gpio.Pin   `json:"pin"`
	Contending bool       `json:"contending"`
	Level      gpio.Level `json:"level"`
	Toggles    int        `json:"toggles"`
	LastToggle time.Time  `json:"lastToggle"`

	// MaxLateness is the longest a task woke after the end of its Delay
	MaxLateness time.Duration `json:"maxLateness"`

	// MaxWait is the longest a contending task spent in Use beyond the access itself, which covers both
	// waiting for the semaphore and any preemption before the release returned
	MaxWait time.Duration `json:"maxWait"`

	Errors int `json:"errors"`
}

// monitor accumulates TaskStats.  Task bodies write while the status surface reads.
type monitor struct {
	lock  sync.Mutex
	stats TaskStats
}

func (m *monitor) toggle(at time.Time) gpio.Level {
	m.lock.Lock()
	defer m.lock.Unlock()

	m.stats.Level = m.stats.Level.Toggle()
	m.stats.Toggles++
	m.stats.LastToggle = at
	return m.stats.Level
}

func (m *monitor) woke(late time.Duration) {
	m.lock.Lock()
	if late > m.stats.MaxLateness {
		m.stats.MaxLateness = late
	}

	m.lock.Unlock()
}

func (m *monitor) used(wait time.Duration, err error) {
	m.lock.Lock()
	if wait > m.stats.MaxWait {
		m.stats.MaxWait = wait
	}

	if err != nil {
		m.stats.Errors++
	}

	m.lock.Unlock()
}

func (m *monitor) snapshot() TaskStats {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.stats
}

// sleep delays for a period and records how late the task woke
func (m *monitor) sleep(t *scheduler.Task) {
	due := t.Now().Add(t.Period())
	t.Delay(t.Period())
	m.woke(t.Now().Sub(due))
}

// Independent returns the body of a task that only toggles its pin, once per period
func Independent(pin gpio.Pin, out gpio.Output) scheduler.TaskFunc {
	return independent(&monitor{stats: TaskStats{Pin: pin}}, out)
}

func independent(m *monitor, out gpio.Output) scheduler.TaskFunc {
	return func(t *scheduler.Task) {
		for {
			out.Set(m.stats.Pin, m.toggle(t.Now()))
			m.sleep(t)
		}
	}
}

// Contending returns the body of a task that toggles its pin and then uses the shared resource, once per period
func Contending(pin gpio.Pin, out gpio.Output, r *SharedResource) scheduler.TaskFunc {
	return contending(&monitor{stats: TaskStats{Pin: pin, Contending: true}}, out, r)
}

func contending(m *monitor, out gpio.Output, r *SharedResource) scheduler.TaskFunc {
	return func(t *scheduler.Task) {
		for {
			out.Set(m.stats.Pin, m.toggle(t.Now()))

			// the wait includes the access itself, so subtract it back out
			start := t.Now()
			err := r.Use(t)
			m.used(t.Now().Sub(start)-r.accessTime, err)

			m.sleep(t)
		}
	}
}

// Blinky is an installed workload
type Blinky struct {
	resource *SharedResource
	names    []string
	monitors map[string]*monitor
}

// Install spawns every configured task on the given scheduler, in name order.  The semaphore
// options apply to the semaphore guarding the shared resource.
func Install(s *scheduler.Scheduler, cfg Config, out gpio.Output, o ...semaphore.Option) (*Blinky, error) {
	names, err := cfg.Validate()
	if err != nil {
		return nil, err
	}

	if out == nil {
		out = gpio.Discard
	}

	b := &Blinky{
		resource: NewSharedResource(s, cfg.Mode, cfg.AccessTime, o...),
		names:    names,
		monitors: make(map[string]*monitor, len(names)),
	}

	for _, name := range names {
		tc := cfg.Tasks[name]
		m := &monitor{
			stats: TaskStats{Name: name, Pin: tc.Pin, Contending: tc.Contending},
		}

		entry := independent(m, out)
		if tc.Contending {
			entry = contending(m, out, b.resource)
		}

		if _, err := s.Spawn(scheduler.Spec{Name: name, Priority: tc.Priority, Period: tc.Period, Entry: entry}); err != nil {
			return nil, fmt.Errorf("unable to install task %s: %w", name, err)
		}

		b.monitors[name] = m
	}

	return b, nil
}

func (b *Blinky) Resource() *SharedResource {
	return b.resource
}

// Tasks returns the timing summary of every task, in name order
func (b *Blinky) Tasks() []TaskStats {
	stats := make([]TaskStats, 0, len(b.names))
	for _, name := range b.names {
		stats = append(stats, b.monitors[name].snapshot())
	}

	return stats
}

// Task returns the timing summary of a single task
func (b *Blinky) Task(name string) (TaskStats, bool) {
	m, ok := b.monitors[name]
	if !ok {
		return TaskStats{}, false
	}

	return m.snapshot(), true
}

// ResourceStats returns the usage summary of the shared resource
func (b *Blinky) ResourceStats() ResourceStats {
	return b.resource.Stats()
}
