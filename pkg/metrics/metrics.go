// Package metrics exposes Prometheus instruments for exchanges and capability
// dispatch. A nil *Recorder is valid and records nothing.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Recorder struct {
	registry          *prometheus.Registry
	exchanges         *prometheus.CounterVec
	exchangeDuration  *prometheus.HistogramVec
	completionCalls   *prometheus.CounterVec
	completionLatency *prometheus.HistogramVec
	dispatches        *prometheus.CounterVec
	dispatchDuration  *prometheus.HistogramVec
	httpRequests      *prometheus.CounterVec
}

// New creates a recorder on its own registry, with the Go and process
// collectors added.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	r := &Recorder{
		registry: reg,
		exchanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "waypoint_exchanges_total",
			Help: "Chat exchanges by outcome (direct, invocation, or the error kind)",
		}, []string{"outcome"}),
		exchangeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "waypoint_exchange_duration_seconds",
			Help:    "Wall time of a chat exchange",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
		}, []string{"outcome"}),
		completionCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "waypoint_completion_calls_total",
			Help: "Completion provider calls by phase and result",
		}, []string{"phase", "result"}),
		completionLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "waypoint_completion_duration_seconds",
			Help:    "Completion provider latency",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		}, []string{"phase"}),
		dispatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "waypoint_capability_dispatch_total",
			Help: "Capability dispatches by capability and error kind",
		}, []string{"capability", "error_kind"}),
		dispatchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name: "waypoint_capability_duration_seconds",
			Help: "Duration of capability handler executions",
		}, []string{"capability"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "waypoint_http_requests_total",
			Help: "HTTP requests by route and status code",
		}, []string{"route", "code"}),
	}
	reg.MustRegister(
		r.exchanges, r.exchangeDuration,
		r.completionCalls, r.completionLatency,
		r.dispatches, r.dispatchDuration,
		r.httpRequests,
	)
	return r
}

func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// Handler serves the exposition format for this recorder's registry.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

func (r *Recorder) ObserveExchange(outcome string, d time.Duration) {
	if r == nil {
		return
	}
	r.exchanges.WithLabelValues(outcome).Inc()
	r.exchangeDuration.WithLabelValues(outcome).Observe(d.Seconds())
}

func (r *Recorder) ObserveCompletion(phase string, err error, d time.Duration) {
	if r == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	r.completionCalls.WithLabelValues(phase, result).Inc()
	r.completionLatency.WithLabelValues(phase).Observe(d.Seconds())
}

// ObserveDispatch records one capability call. errorKind is empty on success.
func (r *Recorder) ObserveDispatch(capability, errorKind string, d time.Duration) {
	if r == nil {
		return
	}
	if errorKind == "" {
		errorKind = "none"
	}
	r.dispatches.WithLabelValues(capability, errorKind).Inc()
	r.dispatchDuration.WithLabelValues(capability).Observe(d.Seconds())
}

func (r *Recorder) ObserveHTTP(route string, code int) {
	if r == nil {
		return
	}
	r.httpRequests.WithLabelValues(route, strconv.Itoa(code)).Inc()
}
