package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector собирает метрики конвейера решений. Нулевое значение *Collector
// (nil) допустимо: все методы становятся no-op.
type Collector struct {
	registry          *prometheus.Registry
	decisions         *prometheus.CounterVec
	decisionDuration  prometheus.Histogram
	riskScore         prometheus.Histogram
	ruleScore         prometheus.Histogram
	modelScore        prometheus.Histogram
	degraded          *prometheus.CounterVec
	replays           prometheus.Counter
	conflicts         prometheus.Counter
	dispatchDropped   *prometheus.CounterVec
	dispatchPublished *prometheus.CounterVec
	tasksProcessed    *prometheus.CounterVec
	webhookDeliveries *prometheus.CounterVec
	rateLimitRejected prometheus.Counter
}

func NewCollector() *Collector {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)
	scoreBuckets := []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1}

	return &Collector{
		registry: registry,
		decisions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "fraud_decisions_total",
			Help: "Total number of transaction decisions by status",
		}, []string{"status"}),
		decisionDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "fraud_decision_duration_seconds",
			Help:    "Time taken to produce a transaction decision",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.2, 0.5, 1},
		}),
		riskScore: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "fraud_final_risk_score",
			Help:    "Distribution of fused risk scores",
			Buckets: scoreBuckets,
		}),
		ruleScore: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "fraud_rule_score",
			Help:    "Distribution of rule engine scores",
			Buckets: scoreBuckets,
		}),
		modelScore: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "fraud_model_score",
			Help:    "Distribution of anomaly model scores",
			Buckets: scoreBuckets,
		}),
		degraded: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "fraud_degraded_dependency_total",
			Help: "Number of times a dependency was unavailable and a fallback was used",
		}, []string{"dependency"}),
		replays: factory.NewCounter(prometheus.CounterOpts{
			Name: "fraud_idempotent_replays_total",
			Help: "Number of requests answered from a stored idempotent response",
		}),
		conflicts: factory.NewCounter(prometheus.CounterOpts{
			Name: "fraud_idempotency_conflicts_total",
			Help: "Number of idempotency keys reused with a different payload",
		}),
		dispatchDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "fraud_dispatch_dropped_total",
			Help: "Number of side-effect tasks dropped because the queue was full",
		}, []string{"kind"}),
		dispatchPublished: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "fraud_dispatch_published_total",
			Help: "Number of side-effect tasks handed to the broker",
		}, []string{"kind", "result"}),
		tasksProcessed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "fraud_worker_tasks_total",
			Help: "Number of tasks executed by the worker",
		}, []string{"kind", "result"}),
		webhookDeliveries: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "fraud_webhook_attempts_total",
			Help: "Number of merchant webhook delivery attempts",
		}, []string{"result"}),
		rateLimitRejected: factory.NewCounter(prometheus.CounterOpts{
			Name: "fraud_rate_limited_total",
			Help: "Number of requests rejected by the rate limiter",
		}),
	}
}

func (m *Collector) RecordDecision(duration time.Duration, status string, ruleScore, modelScore, finalScore float64) {
	if m == nil {
		return
	}
	m.decisions.WithLabelValues(status).Inc()
	m.decisionDuration.Observe(duration.Seconds())
	m.ruleScore.Observe(ruleScore)
	m.modelScore.Observe(modelScore)
	m.riskScore.Observe(finalScore)
}

func (m *Collector) RecordDegraded(dependency string) {
	if m == nil {
		return
	}
	m.degraded.WithLabelValues(dependency).Inc()
}

func (m *Collector) RecordReplay() {
	if m == nil {
		return
	}
	m.replays.Inc()
}

func (m *Collector) RecordConflict() {
	if m == nil {
		return
	}
	m.conflicts.Inc()
}

func (m *Collector) RecordDispatchDropped(kind string) {
	if m == nil {
		return
	}
	m.dispatchDropped.WithLabelValues(kind).Inc()
}

func (m *Collector) RecordDispatchPublished(kind string, err error) {
	if m == nil {
		return
	}
	m.dispatchPublished.WithLabelValues(kind, result(err)).Inc()
}

func (m *Collector) RecordTask(kind string, err error) {
	if m == nil {
		return
	}
	m.tasksProcessed.WithLabelValues(kind, result(err)).Inc()
}

func (m *Collector) RecordWebhookAttempt(success bool) {
	if m == nil {
		return
	}
	if success {
		m.webhookDeliveries.WithLabelValues("success").Inc()
		return
	}
	m.webhookDeliveries.WithLabelValues("failure").Inc()
}

func (m *Collector) RecordRateLimited() {
	if m == nil {
		return
	}
	m.rateLimitRejected.Inc()
}

func (m *Collector) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
