// Package prom holds the prometheus metrics of the topology registry.
package prom

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/wangxicoding/edl/pkg/cluster"
)

// Namespace is the prometheus namespace of every metric defined here.
const Namespace = "edl"

const subsystem = "topology"

// Metrics are the gauges and counters describing published cluster snapshots.
type Metrics struct {
	WorldSize       prometheus.Gauge
	PodCount        prometheus.Gauge
	TopologyChanges prometheus.Counter
	DecodeFailures  *prometheus.CounterVec
	StepErrors      prometheus.Counter
	StepSeconds     prometheus.Histogram
}

// New creates the metrics and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		WorldSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: subsystem,
			Name:      "world_size",
			Help:      "Number of trainers in the published cluster snapshot",
		}),
		PodCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: subsystem,
			Name:      "pods",
			Help:      "Number of pods in the published cluster snapshot",
		}),
		TopologyChanges: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: subsystem,
			Name:      "changes_total",
			Help:      "Number of times a changed cluster snapshot was published",
		}),
		DecodeFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: subsystem,
			Name:      "decode_failures_total",
			Help:      "Number of snapshots or messages rejected while decoding",
		}, []string{"source"}),
		StepErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: subsystem,
			Name:      "reconcile_errors_total",
			Help:      "Number of reconcile steps that failed",
		}),
		StepSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: subsystem,
			Name:      "reconcile_seconds",
			Help:      "Duration of reconcile steps",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	reg.MustRegister(
		m.WorldSize, m.PodCount, m.TopologyChanges, m.DecodeFailures, m.StepErrors, m.StepSeconds,
	)
	return m
}

// Observe records the shape of a newly published snapshot.
func (m *Metrics) Observe(c *cluster.Cluster) {
	m.WorldSize.Set(float64(c.WorldSize()))
	m.PodCount.Set(float64(c.PodCount()))
	m.TopologyChanges.Inc()
}

// Time observes the time since start. Use it as `defer prom.Time(o, time.Now())`.
func Time(o prometheus.Observer, start time.Time) {
	o.Observe(time.Since(start).Seconds())
}

// ErrCount increments c if *err is non-nil. Use it as `defer prom.ErrCount(c, &err)`.
func ErrCount(c prometheus.Counter, err *error) {
	if *err != nil {
		c.Inc()
	}
}
