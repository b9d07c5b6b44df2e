// Package observability adapts metric backends to the search metrics port.
package observability

import (
	"context"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"labsos-backend/application/ports"
	"labsos-backend/domain/search"
)

// Collector holds all Prometheus metrics for the application
type Collector struct {
	registry *prometheus.Registry

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	// Search metrics
	Searches       *prometheus.CounterVec
	SearchDuration *prometheus.HistogramVec
	ContextNodes   *prometheus.HistogramVec
	EstimatedCost  prometheus.Counter
	Fallbacks      *prometheus.CounterVec
	Truncations    prometheus.Counter
	TruncatedNodes prometheus.Counter
}

// NewCollector creates a collector registered on its own registry so that
// tests can build as many as they like.
func NewCollector(namespace string) *Collector {
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		Searches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ai_search_total",
				Help:      "Answered ai-search requests by selected and executed strategy",
			},
			[]string{"selected", "executed", "classification", "answered"},
		),
		SearchDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "ai_search_duration_seconds",
				Help:      "ai-search duration in seconds",
				Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 40},
			},
			[]string{"executed"},
		),
		ContextNodes: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "ai_search_context_nodes",
				Help:      "Nodes sent as context per request",
				Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
			},
			[]string{"executed"},
		),
		EstimatedCost: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ai_search_estimated_cost_usd_total",
				Help:      "Sum of estimated generation cost in USD",
			},
		),
		Fallbacks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ai_search_fallbacks_total",
				Help:      "Semantic attempts that fell back to full context",
			},
			[]string{"reason"},
		),
		Truncations: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ai_search_truncations_total",
				Help:      "Semantic payloads that overshot their node budget",
			},
		),
		TruncatedNodes: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ai_search_truncated_nodes_total",
				Help:      "Nodes dropped when the context exceeded the size cap",
			},
		),
	}

	registry.MustRegister(
		c.HTTPRequests,
		c.HTTPDuration,
		c.Searches,
		c.SearchDuration,
		c.ContextNodes,
		c.EstimatedCost,
		c.Fallbacks,
		c.Truncations,
		c.TruncatedNodes,
	)

	return c
}

// GetRegistry returns the Prometheus registry for this collector
func (c *Collector) GetRegistry() *prometheus.Registry {
	return c.registry
}

// RecordSearch implements ports.SearchMetrics
func (c *Collector) RecordSearch(_ context.Context, rec ports.SearchRecord) {
	executed := rec.Executed.String()
	c.Searches.WithLabelValues(
		rec.Selected.String(),
		executed,
		string(rec.Classification),
		strconv.FormatBool(rec.AnswerOK),
	).Inc()
	c.SearchDuration.WithLabelValues(executed).Observe(rec.Duration.Seconds())
	c.ContextNodes.WithLabelValues(executed).Observe(float64(rec.ContextNodes))
	c.EstimatedCost.Add(rec.EstimatedCost)
}

// RecordFallback implements ports.SearchMetrics
func (c *Collector) RecordFallback(reason search.Strategy) {
	c.Fallbacks.WithLabelValues(reason.String()).Inc()
}

// RecordTruncation implements ports.SearchMetrics
func (c *Collector) RecordTruncation(dropped int) {
	c.Truncations.Inc()
	c.TruncatedNodes.Add(float64(dropped))
}

// MultiMetrics fans measurements out to several backends.
type MultiMetrics []ports.SearchMetrics

func (m MultiMetrics) RecordSearch(ctx context.Context, rec ports.SearchRecord) {
	for _, s := range m {
		s.RecordSearch(ctx, rec)
	}
}

func (m MultiMetrics) RecordFallback(reason search.Strategy) {
	for _, s := range m {
		s.RecordFallback(reason)
	}
}

func (m MultiMetrics) RecordTruncation(dropped int) {
	for _, s := range m {
		s.RecordTruncation(dropped)
	}
}

// NopMetrics discards everything.
type NopMetrics struct{}

func (NopMetrics) RecordSearch(context.Context, ports.SearchRecord) {}
func (NopMetrics) RecordFallback(search.Strategy)                  {}
func (NopMetrics) RecordTruncation(int)                            {}
