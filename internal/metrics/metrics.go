// Package metrics exports check-in pipeline counters in Prometheus format.
// A nil *Recorder is valid and records nothing.
package metrics

import (
	"net/http"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "ember"

// Outcome labels for message attempts.
const (
	OutcomeSent     = "sent"
	OutcomeFailed   = "failed"
	OutcomeCooldown = "cooldown"
	OutcomeSkipped  = "skipped"
)

// Recorder holds the registered collectors.
type Recorder struct {
	registry *prom.Registry

	snapshots   *prom.CounterVec
	anomalies   *prom.CounterVec
	messages    *prom.CounterVec
	upstream    *prom.HistogramVec
	fallbacks   *prom.CounterVec
	persistence *prom.CounterVec
	storeUp     prom.Gauge
	cached      prom.Gauge
	evictions   prom.Counter
}

// New registers all collectors on a fresh registry, together with the Go
// runtime and process collectors.
func New() *Recorder {
	reg := prom.NewRegistry()
	r := &Recorder{
		registry: reg,
		snapshots: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "snapshots_total",
			Help:      "Snapshots received, by result",
		}, []string{"result"}),
		anomalies: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "anomalies_total",
			Help:      "Anomalies detected, by rule",
		}, []string{"type"}),
		messages: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "messages_total",
			Help:      "Outbound message attempts, by kind and outcome",
		}, []string{"kind", "outcome"}),
		upstream: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "upstream_duration_seconds",
			Help:      "Latency of text generation and transport calls",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		}, []string{"call", "status"}),
		fallbacks: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "text_fallbacks_total",
			Help:      "Generated texts replaced by the deterministic template",
		}, []string{"kind"}),
		persistence: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "persistence_errors_total",
			Help:      "State store failures, by operation",
		}, []string{"op"}),
		storeUp: prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "store_up",
			Help:      "1 if the last state store probe succeeded",
		}),
		cached: prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "cached_records",
			Help:      "State records held in the repository cache",
		}),
		evictions: prom.NewCounter(prom.CounterOpts{
			Namespace: namespace,
			Name:      "cache_evictions_total",
			Help:      "Idle records dropped from the repository cache",
		}),
	}
	reg.MustRegister(
		r.snapshots, r.anomalies, r.messages, r.upstream, r.fallbacks, r.persistence,
		r.storeUp, r.cached, r.evictions,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// Handler serves the registry.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// Registry exposes the underlying registry (tests, extra collectors).
func (r *Recorder) Registry() *prom.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

func (r *Recorder) Snapshot(result string) {
	if r == nil {
		return
	}
	r.snapshots.WithLabelValues(result).Inc()
}

func (r *Recorder) Anomaly(anomalyType string) {
	if r == nil {
		return
	}
	r.anomalies.WithLabelValues(anomalyType).Inc()
}

func (r *Recorder) Message(kind, outcome string) {
	if r == nil {
		return
	}
	r.messages.WithLabelValues(kind, outcome).Inc()
}

func (r *Recorder) Upstream(call string, d time.Duration, err error) {
	if r == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	r.upstream.WithLabelValues(call, status).Observe(d.Seconds())
}

func (r *Recorder) Fallback(kind string) {
	if r == nil {
		return
	}
	r.fallbacks.WithLabelValues(kind).Inc()
}

func (r *Recorder) PersistenceError(op string) {
	if r == nil {
		return
	}
	r.persistence.WithLabelValues(op).Inc()
}

func (r *Recorder) StoreProbe(err error) {
	if r == nil {
		return
	}
	if err != nil {
		r.storeUp.Set(0)
		return
	}
	r.storeUp.Set(1)
}

func (r *Recorder) CacheEviction(evicted, remaining int) {
	if r == nil {
		return
	}
	r.evictions.Add(float64(evicted))
	r.cached.Set(float64(remaining))
}
