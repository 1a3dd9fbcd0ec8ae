package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds the service metrics on a private registry so tests can
// build as many collectors as they like.
type Collector struct {
	registry *prometheus.Registry

	submissions     *prometheus.CounterVec
	deliveries      *prometheus.CounterVec
	syncPasses      prometheus.Counter
	syncPassSeconds prometheus.Histogram
	pendingSync     prometheus.Gauge
	purgedRecords   prometheus.Counter
	riskAssessments *prometheus.CounterVec
	smsParseErrors  prometheus.Counter
}

func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "surveillance",
			Subsystem: "ingestion",
			Name:      "submissions_total",
			Help:      "Submitted reports by kind and outcome",
		}, []string{"kind", "outcome"}),
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "surveillance",
			Subsystem: "sync",
			Name:      "delivery_attempts_total",
			Help:      "Delivery attempts to the remote endpoint by result",
		}, []string{"result"}),
		syncPasses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "surveillance",
			Subsystem: "sync",
			Name:      "passes_total",
			Help:      "Completed sync queue passes",
		}),
		syncPassSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "surveillance",
			Subsystem: "sync",
			Name:      "pass_duration_seconds",
			Help:      "Duration of sync queue passes",
			Buckets:   prometheus.DefBuckets,
		}),
		pendingSync: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "surveillance",
			Subsystem: "sync",
			Name:      "pending_records",
			Help:      "Records waiting in the sync queue",
		}),
		purgedRecords: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "surveillance",
			Subsystem: "retention",
			Name:      "purged_records_total",
			Help:      "Records removed by the retention window",
		}),
		riskAssessments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "surveillance",
			Subsystem: "analytics",
			Name:      "risk_assessments_total",
			Help:      "Generated risk assessments by level",
		}, []string{"level"}),
		smsParseErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "surveillance",
			Subsystem: "ingestion",
			Name:      "sms_parse_errors_total",
			Help:      "SMS lines that could not be parsed",
		}),
	}

	c.registry.MustRegister(
		c.submissions,
		c.deliveries,
		c.syncPasses,
		c.syncPassSeconds,
		c.pendingSync,
		c.purgedRecords,
		c.riskAssessments,
		c.smsParseErrors,
	)
	return c
}

// All recorders accept a nil receiver so metrics stay optional for callers.

func (c *Collector) RecordSubmission(kind, outcome string) {
	if c == nil {
		return
	}
	c.submissions.WithLabelValues(kind, outcome).Inc()
}

func (c *Collector) RecordDelivery(ok bool) {
	if c == nil {
		return
	}
	result := "success"
	if !ok {
		result = "failure"
	}
	c.deliveries.WithLabelValues(result).Inc()
}

func (c *Collector) RecordSyncPass(seconds float64) {
	if c == nil {
		return
	}
	c.syncPasses.Inc()
	c.syncPassSeconds.Observe(seconds)
}

func (c *Collector) SetPendingSync(n int) {
	if c == nil {
		return
	}
	c.pendingSync.Set(float64(n))
}

func (c *Collector) RecordPurged(n int64) {
	if c == nil {
		return
	}
	c.purgedRecords.Add(float64(n))
}

func (c *Collector) RecordRiskAssessment(level string) {
	if c == nil {
		return
	}
	c.riskAssessments.WithLabelValues(level).Inc()
}

func (c *Collector) RecordSMSParseError() {
	if c == nil {
		return
	}
	c.smsParseErrors.Inc()
}

func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
