// Package monitoring exposes Prometheus metrics for the HTTP layer, quiz
// generation outcomes and LLM calls.
package monitoring

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pavelanni/quizgen/internal/llm"
	"github.com/pavelanni/quizgen/internal/model"
)

// Metrics holds the service's collectors and the registry they live in.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	requests    *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	generations *prometheus.CounterVec
	llmLatency  *prometheus.HistogramVec
}

// New creates a registry with the Go and process collectors plus the
// quizgen collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quizgen_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "quizgen_http_request_duration_seconds",
				Help:    "Duration of HTTP requests",
				Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"method", "route"},
		),
		generations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quizgen_generations_total",
				Help: "Quizzes generated, by question source",
			},
			[]string{"source"},
		),
		llmLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "quizgen_llm_request_duration_seconds",
				Help:    "Latency of LLM provider calls",
				Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40, 60},
			},
			[]string{"model", "success"},
		),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requests, m.duration, m.generations, m.llmLatency,
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Middleware counts requests and observes their duration, labelled with the
// matched chi route pattern.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.requests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		m.duration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

// ObserveGeneration counts one generated quiz.
func (m *Metrics) ObserveGeneration(source model.Source) {
	if m == nil {
		return
	}
	m.generations.WithLabelValues(string(source)).Inc()
}

// ObserveLLM records the latency of one provider call.
func (m *Metrics) ObserveLLM(modelID string, latency time.Duration, success bool) {
	if m == nil {
		return
	}
	m.llmLatency.WithLabelValues(modelID, strconv.FormatBool(success)).Observe(latency.Seconds())
}

// Recorder returns an llm.Recorder that observes each call before handing the
// event to next. next may be nil.
func (m *Metrics) Recorder(next llm.Recorder) llm.Recorder {
	return &recorder{metrics: m, next: next}
}

type recorder struct {
	metrics *Metrics
	next    llm.Recorder
}

func (r *recorder) AppendLLMRequest(ctx context.Context, ev model.LLMRequestEvent) error {
	r.metrics.ObserveLLM(ev.Model, time.Duration(ev.LatencyMs)*time.Millisecond, ev.Success)
	if r.next == nil {
		return nil
	}
	return r.next.AppendLLMRequest(ctx, ev)
}
