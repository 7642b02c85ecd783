// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package scheduler

import (
	"github.com/go-kit/kit/metrics"
	"github.com/go-kit/kit/metrics/discard"
	"github.com/go-kit/kit/metrics/provider"
	"github.com/xmidt-org/rtsem/xmetrics"
)

const (
	ContextSwitchCounter = "scheduler_context_switches"
	PreemptionCounter    = "scheduler_preemptions"
	IdleCounter          = "scheduler_idle_seconds"
	TaskExitCounter      = "scheduler_task_exits"
	ReadyGauge           = "scheduler_ready_tasks"
)

// Metrics is the module of metrics used by a Scheduler
func Metrics() []xmetrics.Metric {
	return []xmetrics.Metric{
		{Name: ContextSwitchCounter, Type: xmetrics.CounterType, Help: "The number of times a task was dispatched"},
		{Name: PreemptionCounter, Type: xmetrics.CounterType, Help: "The number of times a Running task was preempted"},
		{Name: IdleCounter, Type: xmetrics.CounterType, Help: "The logical time spent with no Ready task, in seconds"},
		{Name: TaskExitCounter, Type: xmetrics.CounterType, Help: "The number of task bodies that returned or panicked"},
		{Name: ReadyGauge, Type: xmetrics.GaugeType, Help: "The number of Ready tasks at the last context switch"},
	}
}

// Measures holds the scheduler's metric objects.  Any nil field discards its observations.
type Measures struct {
	ContextSwitches metrics.Counter
	Preemptions     metrics.Counter

	// Idle accumulates the logical seconds spent with no Ready task
	Idle metrics.Counter

	// TaskExits counts task bodies that returned or panicked
	TaskExits metrics.Counter

	// Ready tracks the number of Ready tasks, sampled at each context switch
	Ready metrics.Gauge
}

// NewMeasures constructs a Measures given a go-kit metrics Provider
func NewMeasures(p provider.Provider) Measures {
	return Measures{
		ContextSwitches: p.NewCounter(ContextSwitchCounter),
		Preemptions:     p.NewCounter(PreemptionCounter),
		Idle:            p.NewCounter(IdleCounter),
		TaskExits:       p.NewCounter(TaskExitCounter),
		Ready:           p.NewGauge(ReadyGauge),
	}
}

func (m Measures) withDefaults() Measures {
	if m.ContextSwitches == nil {
		m.ContextSwitches = discard.NewCounter()
	}

	if m.Preemptions == nil {
		m.Preemptions = discard.NewCounter()
	}

	if m.Idle == nil {
		m.Idle = discard.NewCounter()
	}

	if m.TaskExits == nil {
		m.TaskExits = discard.NewCounter()
	}

	if m.Ready == nil {
		m.Ready = discard.NewGauge()
	}

	return m
}
