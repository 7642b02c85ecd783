package xmetrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
)

func TestNewCollector(t *testing.T) {
	testData := []struct {
		metric   Metric
		expected interface{}
	}{
		{Metric{Name: "counter", Type: CounterType}, (*prometheus.CounterVec)(nil)},
		{Metric{Name: "gauge", Type: GaugeType, LabelNames: []string{"pin"}}, (*prometheus.GaugeVec)(nil)},
		{Metric{Name: "histogram", Type: HistogramType, Namespace: "ns", Subsystem: "ss"}, (*prometheus.HistogramVec)(nil)},
	}

	for _, record := range testData {
		t.Run(record.metric.Name, func(t *testing.T) {
			assert := assert.New(t)
			c, err := NewCollector(record.metric, DefaultNamespace, DefaultSubsystem)
			assert.NoError(err)
			assert.IsType(record.expected, c)
		})
	}

	t.Run("Unnamed", func(t *testing.T) {
		c, err := NewCollector(Metric{Type: CounterType}, "", "")
		assert.Nil(t, c)
		assert.Equal(t, ErrUnnamedMetric, err)
	})

	t.Run("Unsupported", func(t *testing.T) {
		c, err := NewCollector(Metric{Name: "summary", Type: "summary"}, "", "")
		assert.Nil(t, c)
		assert.Error(t, err)
	})
}

func TestOptionsModule(t *testing.T) {
	assert := assert.New(t)

	var o *Options
	assert.Nil(o.Module())
	assert.Equal(DefaultNamespace, o.namespace())
	assert.Equal(DefaultSubsystem, o.subsystem())

	o = &Options{Namespace: "ns", Subsystem: "ss", Metrics: []Metric{{Name: "a"}}}
	assert.Equal([]Metric{{Name: "a"}}, o.Module())
	assert.Equal("ns", o.namespace())
	assert.Equal("ss", o.subsystem())
}
