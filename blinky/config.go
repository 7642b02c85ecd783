// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package blinky

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/xmidt-org/rtsem/gpio"
)

const (
	Green  = "green"
	Red    = "red"
	Orange = "orange"

	DefaultAccessTime = 5 * time.Millisecond
)

// Mode selects how the shared resource is protected
type Mode string

const (
	// ModeSemaphore guards the resource with a binary semaphore
	ModeSemaphore Mode = "semaphore"

	// ModeCritical guards the resource by disabling preemption
	ModeCritical Mode = "critical"
)

var (
	ErrInvalidMode   = errors.New("invalid resource protection mode")
	ErrInvalidPeriod = errors.New("task periods must be positive")
	ErrNoTasks       = errors.New("no tasks are configured")
)

// TaskConfig describes one periodic task
type TaskConfig struct {
	Pin        gpio.Pin      `json:"pin"`
	Period     time.Duration `json:"period"`
	Priority   int           `json:"priority"`
	Contending bool          `json:"contending"`
}

// Config is the whole workload
type Config struct {
	Tasks map[string]TaskConfig `json:"tasks"`

	// AccessTime is the processor time each use of the shared resource takes
	AccessTime time.Duration `json:"accessTime"`

	Mode Mode `json:"mode"`
}

// DefaultConfig returns the three standard tasks.  Priorities are rate monotonic:  the shorter
// the period, the higher the priority.
func DefaultConfig() Config {
	return Config{
		Tasks: map[string]TaskConfig{
			Green:  {Pin: gpio.PinGreen, Period: 200 * time.Millisecond, Priority: 2, Contending: true},
			Red:    {Pin: gpio.PinRed, Period: 550 * time.Millisecond, Priority: 1, Contending: true},
			Orange: {Pin: gpio.PinOrange, Period: 50 * time.Millisecond, Priority: 3},
		},
		AccessTime: DefaultAccessTime,
		Mode:       ModeSemaphore,
	}
}

// Validate checks the configuration, returning the task names in spawn order
func (c Config) Validate() ([]string, error) {
	switch c.Mode {
	case ModeSemaphore, ModeCritical:
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidMode, c.Mode)
	}

	if len(c.Tasks) == 0 {
		return nil, ErrNoTasks
	}

	names := make([]string, 0, len(c.Tasks))
	for name, tc := range c.Tasks {
		if tc.Period <= 0 {
			return nil, fmt.Errorf("%w: %s", ErrInvalidPeriod, name)
		}

		names = append(names, name)
	}

	sort.Strings(names)
	return names, nil
}
