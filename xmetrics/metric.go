// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package xmetrics

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	CounterType   = "counter"
	GaugeType     = "gauge"
	HistogramType = "histogram"
)

var ErrUnnamedMetric = errors.New("a name is required for a metric")

// Module is a function type that returns prebuilt metrics.
type Module func() []Metric

// Metric describes a single metric that will be preregistered.  This type loosely
// corresponds with Prometheus' Opts struct.
type Metric struct {
	// Name is the required name of this metric.
	Name string `json:"name"`

	// Type is the required type of metric.  This value must be one of the constants defined in this package.
	Type string `json:"type"`

	// Namespace is the namespace of this metric.  This value is optional.  The registry's namespace
	// is used if this is not supplied.
	Namespace string `json:"namespace,omitempty"`

	// Subsystem is the subsystem of this metric.  This value is optional.  The registry's subsystem
	// is used if this is not supplied.
	Subsystem string `json:"subsystem,omitempty"`

	// Help is the help string for this metric.  If not supplied, the metric's name is used
	Help string `json:"help,omitempty"`

	ConstLabels map[string]string `json:"constLabels,omitempty"`

	// LabelNames are the Prometheus label names for this metric.  Code using the metric must supply
	// exactly these labels via With.
	LabelNames []string `json:"labelNames,omitempty"`

	// Buckets describes the observation buckets for a histogram.  It is ignored for other metric types.
	Buckets []float64 `json:"buckets,omitempty"`
}

// NewCollector creates a Prometheus metric from a Metric descriptor.  The name must not be empty.
// Namespace and subsystem default to the given values, and help defaults to the name.
func NewCollector(m Metric, defaultNamespace, defaultSubsystem string) (prometheus.Collector, error) {
	if len(m.Name) == 0 {
		return nil, ErrUnnamedMetric
	}

	if len(m.Namespace) == 0 {
		m.Namespace = defaultNamespace
	}

	if len(m.Subsystem) == 0 {
		m.Subsystem = defaultSubsystem
	}

	if len(m.Help) == 0 {
		m.Help = m.Name
	}

	switch m.Type {
	case CounterType:
		return prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   m.Namespace,
			Subsystem:   m.Subsystem,
			Name:        m.Name,
			Help:        m.Help,
			ConstLabels: prometheus.Labels(m.ConstLabels),
		}, m.LabelNames), nil

	case GaugeType:
		return prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace:   m.Namespace,
			Subsystem:   m.Subsystem,
			Name:        m.Name,
			Help:        m.Help,
			ConstLabels: prometheus.Labels(m.ConstLabels),
		}, m.LabelNames), nil

	case HistogramType:
		return prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   m.Namespace,
			Subsystem:   m.Subsystem,
			Name:        m.Name,
			Help:        m.Help,
			Buckets:     m.Buckets,
			ConstLabels: prometheus.Labels(m.ConstLabels),
		}, m.LabelNames), nil

	default:
		return nil, fmt.Errorf("unsupported metric type: %s", m.Type)
	}
}

// Merger combines metrics from several sources, keyed by name.  A metric may only be redefined
// when overriding is allowed, and never as a different type.
type Merger struct {
	merged map[string]Metric
	err    error
}

func NewMerger() *Merger {
	return &Merger{
		merged: make(map[string]Metric),
	}
}

// Merged returns the built map of metrics from all sources, keyed by name
func (mr *Merger) Merged() map[string]Metric {
	return mr.merged
}

// Err returns any error that occurred during merging.  When this method returns non-nil,
// no further additions will be accepted.
func (mr *Merger) Err() error {
	return mr.err
}

func (mr *Merger) tryAdd(allowOverride bool, m Metric) bool {
	if mr.err != nil {
		return false
	}

	if len(m.Name) == 0 {
		mr.err = ErrUnnamedMetric
		return false
	}

	if existing, ok := mr.merged[m.Name]; ok {
		if !allowOverride {
			mr.err = fmt.Errorf("duplicate metric with name: %s", m.Name)
			return false
		}

		// we never allow a metric to override one of a different type
		if existing.Type != m.Type {
			mr.err = fmt.Errorf("metric %s was expected to be of type %s, but was of type %s", m.Name, existing.Type, m.Type)
			return false
		}
	}

	mr.merged[m.Name] = m
	return true
}

func (mr *Merger) AddMetrics(allowOverride bool, m []Metric) *Merger {
	for _, e := range m {
		if !mr.tryAdd(allowOverride, e) {
			break
		}
	}

	return mr
}

func (mr *Merger) AddModules(allowOverride bool, m ...Module) *Merger {
	for _, mf := range m {
		for _, e := range mf() {
			if !mr.tryAdd(allowOverride, e) {
				return mr
			}
		}
	}

	return mr
}
