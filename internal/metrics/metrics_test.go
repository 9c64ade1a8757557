package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ehsaniara/shiplog/stats"
)

type fakeQueue struct{ depth int64 }

func (f fakeQueue) QueueSize() int64 { return f.depth }

func TestObserve_SetsAbsoluteCounterValues(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	st := stats.New()
	st.AddMessagesSent(5)
	m.Observe("cloudwatch", st.Snapshot(), fakeQueue{depth: 3})

	metric := &dto.Metric{}
	require.NoError(t, m.messagesSent.WithLabelValues("cloudwatch").Write(metric))
	assert.Equal(t, float64(5), metric.GetCounter().GetValue())
}

func TestObserve_SecondCallAddsOnlyTheDelta(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	st := stats.New()
	st.AddMessagesSent(5)
	m.Observe("cloudwatch", st.Snapshot(), fakeQueue{})

	st.AddMessagesSent(2)
	m.Observe("cloudwatch", st.Snapshot(), fakeQueue{})

	metric := &dto.Metric{}
	require.NoError(t, m.messagesSent.WithLabelValues("cloudwatch").Write(metric))
	assert.Equal(t, float64(7), metric.GetCounter().GetValue())
}

func TestObserve_TracksQueueDepthGauge(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.Observe("kinesis", stats.New().Snapshot(), fakeQueue{depth: 42})

	metric := &dto.Metric{}
	require.NoError(t, m.queueDepth.WithLabelValues("kinesis").Write(metric))
	assert.Equal(t, float64(42), metric.GetGauge().GetValue())
}
