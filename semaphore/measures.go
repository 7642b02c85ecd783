// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package semaphore

import (
	"github.com/go-kit/kit/metrics"
	"github.com/go-kit/kit/metrics/discard"
	"github.com/go-kit/kit/metrics/provider"
	"github.com/xmidt-org/rtsem/xmetrics"
)

const (
	AcquisitionCounter = "semaphore_acquisitions"
	ContentionCounter  = "semaphore_contentions"
	FailureCounter     = "semaphore_failures"
	ErrorCounter       = "semaphore_errors"
	WaitersGauge       = "semaphore_waiters"
	HeldGauge          = "semaphore_held"
)

// Metrics is the module of metrics shared by all semaphores
func Metrics() []xmetrics.Metric {
	return []xmetrics.Metric{
		{Name: AcquisitionCounter, Type: xmetrics.CounterType, Help: "The number of times a semaphore token changed hands"},
		{Name: ContentionCounter, Type: xmetrics.CounterType, Help: "The number of acquirers that had to wait"},
		{Name: FailureCounter, Type: xmetrics.CounterType, Help: "The number of acquisitions that gave up"},
		{Name: ErrorCounter, Type: xmetrics.CounterType, Help: "The number of rejected semaphore operations"},
		{Name: WaitersGauge, Type: xmetrics.GaugeType, Help: "The length of the semaphore wait queue"},
		{Name: HeldGauge, Type: xmetrics.GaugeType, Help: "Whether the semaphore token is held"},
	}
}

// Measures holds the metric objects a semaphore reports to.  Any nil field discards its observations.
type Measures struct {
	// Acquisitions counts every time the token changes hands, including handoffs to waiters
	Acquisitions metrics.Counter

	// Contentions counts callers that had to wait for the token
	Contentions metrics.Counter

	// Failures counts acquisitions that gave up:  a failed TryAcquire or a canceled wait
	Failures metrics.Counter

	// Errors counts misuse, such as a release by a caller that does not hold the token
	Errors metrics.Counter

	// Waiters tracks the length of the wait queue
	Waiters metrics.Gauge

	// Held is 1 while the token is held and 0 otherwise
	Held metrics.Gauge
}

// NewMeasures constructs a Measures given a go-kit metrics Provider
func NewMeasures(p provider.Provider) Measures {
	return Measures{
		Acquisitions: p.NewCounter(AcquisitionCounter),
		Contentions:  p.NewCounter(ContentionCounter),
		Failures:     p.NewCounter(FailureCounter),
		Errors:       p.NewCounter(ErrorCounter),
		Waiters:      p.NewGauge(WaitersGauge),
		Held:         p.NewGauge(HeldGauge),
	}
}

func (m Measures) withDefaults() Measures {
	if m.Acquisitions == nil {
		m.Acquisitions = discard.NewCounter()
	}

	if m.Contentions == nil {
		m.Contentions = discard.NewCounter()
	}

	if m.Failures == nil {
		m.Failures = discard.NewCounter()
	}

	if m.Errors == nil {
		m.Errors = discard.NewCounter()
	}

	if m.Waiters == nil {
		m.Waiters = discard.NewGauge()
	}

	if m.Held == nil {
		m.Held = discard.NewGauge()
	}

	return m
}
