// Package metrics exports stats.Writer snapshots as Prometheus series,
// grounded on the jordigilh-kubernaut pack entry's
// github.com/prometheus/client_golang dependency (the teacher itself
// carries no metrics library).
package metrics

import (
	dto "github.com/prometheus/client_model/go"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ehsaniara/shiplog/stats"
)

// QueueDepther is the subset of writer.Core that Observe reads to
// export the live queue depth gauge.
type QueueDepther interface{ QueueSize() int64 }

// Registry owns the per-destination Prometheus collectors fed from
// stats.Writer.Snapshot() on every Observe call.
type Registry struct {
	messagesSent      *prometheus.CounterVec
	messagesRequeued  *prometheus.CounterVec
	messagesDiscarded *prometheus.CounterVec
	oversizeDropped   *prometheus.CounterVec
	throttledWrites   *prometheus.CounterVec
	writerRaceRetries *prometheus.CounterVec
	queueDepth        *prometheus.GaugeVec
}

// New constructs a Registry and registers its collectors with reg.
func New(reg prometheus.Registerer) *Registry {
	r := &Registry{
		messagesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shiplog", Name: "messages_sent_total", Help: "Messages successfully sent.",
		}, []string{"destination"}),
		messagesRequeued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shiplog", Name: "messages_requeued_total", Help: "Messages requeued after a failed send.",
		}, []string{"destination"}),
		messagesDiscarded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shiplog", Name: "messages_discarded_total", Help: "Messages discarded by queue overflow or window violation.",
		}, []string{"destination"}),
		oversizeDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shiplog", Name: "oversize_dropped_total", Help: "Oversize messages dropped instead of truncated.",
		}, []string{"destination"}),
		throttledWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shiplog", Name: "throttled_writes_total", Help: "Send attempts that hit a throttling response.",
		}, []string{"destination"}),
		writerRaceRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shiplog", Name: "writer_race_retries_total", Help: "Sequence-token race retries (CloudWatch).",
		}, []string{"destination"}),
		queueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "shiplog", Name: "queue_depth", Help: "Current approximate queue depth.",
		}, []string{"destination"}),
	}

	reg.MustRegister(r.messagesSent, r.messagesRequeued, r.messagesDiscarded,
		r.oversizeDropped, r.throttledWrites, r.writerRaceRetries, r.queueDepth)
	return r
}

// Observe records one destination's current stats snapshot and live
// queue depth. stats.Writer's counters are monotonic for the lifetime
// of a writer, so each call sets the Prometheus counter to the
// snapshot's absolute value via the observed delta, rather than
// double-counting by blindly adding the snapshot value on every call.
func (r *Registry) Observe(destination string, snap stats.Snapshot, q QueueDepther) {
	setCounter(r.messagesSent, destination, float64(snap.MessagesSent))
	setCounter(r.messagesRequeued, destination, float64(snap.MessagesRequeued))
	setCounter(r.messagesDiscarded, destination, float64(snap.MessagesDiscarded))
	setCounter(r.oversizeDropped, destination, float64(snap.OversizeDropped))
	setCounter(r.throttledWrites, destination, float64(snap.ThrottledWrites))
	setCounter(r.writerRaceRetries, destination, float64(snap.WriterRaceRetries))
	r.queueDepth.WithLabelValues(destination).Set(float64(q.QueueSize()))
}

func setCounter(vec *prometheus.CounterVec, destination string, absolute float64) {
	counter := vec.WithLabelValues(destination)
	delta := absolute - counterValue(counter)
	if delta > 0 {
		counter.Add(delta)
	}
}

// counterValue reads a prometheus.Counter's current value by writing
// it into a client_model Metric, the standard way to inspect a live
// counter without a full scrape.
func counterValue(c prometheus.Counter) float64 {
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		return 0
	}
	return m.GetCounter().GetValue()
}
