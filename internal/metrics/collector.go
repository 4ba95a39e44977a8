// Package metrics exposes the gateway's Prometheus instrumentation: the
// Kalman link table, ingress queue, and HTTP relay outcomes this gateway
// actually owns.
package metrics

import "github.com/prometheus/client_golang/prometheus"

const (
	namespace = "indoorloc"
	subsystem = "gateway"
)

const (
	labelOutcome = "outcome"
)

// Collector holds all gateway Prometheus metrics.
type Collector struct {
	// KalmanLinks tracks the current number of live entries in the
	// per-link Kalman table (§4.9, bounded at 60).
	KalmanLinks prometheus.Gauge

	// IngressEnqueued counts beacon summaries accepted onto the ingress
	// queue (§4.8).
	IngressEnqueued prometheus.Counter

	// IngressDropped counts payloads dropped at ingress, labeled by reason
	// (queue overflow or an unrecognized payload length, §4.8), as recorded
	// through IncIngressDropped. link.Queue.Demux does not call it, so drops
	// made there are logged but not counted here.
	IngressDropped *prometheus.CounterVec

	// RelayOutcomes counts relay HTTP POST results, labeled "success",
	// "retry", or "dropped" (§4.10/§7).
	RelayOutcomes *prometheus.CounterVec

	// RelayLatency observes the end-to-end relay POST latency, including
	// retries (§4.10).
	RelayLatency prometheus.Histogram

	// KalmanTableFull counts relays that fell back to the raw measurement
	// because the Kalman table had no room after eviction (§7).
	KalmanTableFull prometheus.Counter
}

// NewCollector creates a Collector with all gateway metrics registered
// against reg. If reg is nil, prometheus.DefaultRegisterer is used.
func NewCollector(reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	c := newMetrics()

	reg.MustRegister(
		c.KalmanLinks,
		c.IngressEnqueued,
		c.IngressDropped,
		c.RelayOutcomes,
		c.RelayLatency,
		c.KalmanTableFull,
	)

	return c
}

func newMetrics() *Collector {
	return &Collector{
		KalmanLinks: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "kalman_links",
			Help:      "Number of live entries in the per-link Kalman table.",
		}),

		IngressEnqueued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "ingress_enqueued_total",
			Help:      "Total beacon summaries accepted onto the ingress queue.",
		}),

		IngressDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "ingress_dropped_total",
			Help:      "Total inbound payloads dropped at ingress.",
		}, []string{"reason"}),

		RelayOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "relay_outcomes_total",
			Help:      "Total relay HTTP POST outcomes.",
		}, []string{labelOutcome}),

		RelayLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "relay_latency_seconds",
			Help:      "Relay HTTP POST latency including retries.",
			Buckets:   prometheus.DefBuckets,
		}),

		KalmanTableFull: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "kalman_table_full_total",
			Help:      "Total relays that used the raw measurement because the Kalman table was full.",
		}),
	}
}

// SetKalmanLinks updates the live-link gauge to n.
func (c *Collector) SetKalmanLinks(n int) {
	c.KalmanLinks.Set(float64(n))
}

// IncIngressDropped increments the dropped-at-ingress counter for reason.
func (c *Collector) IncIngressDropped(reason string) {
	c.IngressDropped.WithLabelValues(reason).Inc()
}

// RecordRelayOutcome increments the relay outcome counter for outcome
// ("success", "retry", or "dropped").
func (c *Collector) RecordRelayOutcome(outcome string) {
	c.RelayOutcomes.WithLabelValues(outcome).Inc()
}
