// Package rest exposes the HTTP API.
package rest

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"labsos-backend/application/commands/bus"
	querybus "labsos-backend/application/queries/bus"
	"labsos-backend/infrastructure/observability"
	"labsos-backend/interfaces/http/rest/handlers"
	"labsos-backend/interfaces/http/rest/middleware"
	apperrors "labsos-backend/pkg/errors"
)

// ReadinessCheck reports whether downstream dependencies are usable
type ReadinessCheck func(ctx context.Context) error

// RouterConfig holds the router switches
type RouterConfig struct {
	ServiceName    string
	EnableCORS     bool
	AllowedOrigins []string
	EnableMetrics  bool
	EnableTracing  bool
	Debug          bool
	RequestTimeout time.Duration
}

// Router creates and configures the HTTP router
type Router struct {
	config     RouterConfig
	commandBus *bus.CommandBus
	queryBus   *querybus.QueryBus
	collector  *observability.Collector
	ready      ReadinessCheck
	logger     *zap.Logger
}

// NewRouter creates a new router instance. ready may be nil.
func NewRouter(
	config RouterConfig,
	commandBus *bus.CommandBus,
	queryBus *querybus.QueryBus,
	collector *observability.Collector,
	ready ReadinessCheck,
	logger *zap.Logger,
) *Router {
	return &Router{
		config:     config,
		commandBus: commandBus,
		queryBus:   queryBus,
		collector:  collector,
		ready:      ready,
		logger:     logger,
	}
}

// Setup configures all routes and middleware
func (rt *Router) Setup() http.Handler {
	router := chi.NewRouter()
	errorHandler := apperrors.NewErrorHandler(rt.logger, rt.config.Debug)

	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(middleware.Tracing(rt.config.ServiceName, rt.config.EnableTracing))
	router.Use(middleware.Logger(rt.logger))
	router.Use(errorHandler.Middleware)
	if rt.config.EnableMetrics && rt.collector != nil {
		router.Use(middleware.Metrics(rt.collector))
	}
	if rt.config.RequestTimeout > 0 {
		router.Use(chimiddleware.Timeout(rt.config.RequestTimeout))
	}

	if rt.config.EnableCORS {
		origins := rt.config.AllowedOrigins
		if len(origins) == 0 {
			origins = []string{"*"}
		}
		router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   origins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
			ExposedHeaders:   []string{"X-Request-ID"},
			AllowCredentials: false,
			MaxAge:           300,
		}))
	}

	router.Get("/health", rt.healthCheck)
	router.Get("/ready", rt.readinessCheck)
	if rt.config.EnableMetrics && rt.collector != nil {
		router.Handle("/metrics", promhttp.HandlerFor(rt.collector.GetRegistry(), promhttp.HandlerOpts{}))
	}

	search := handlers.NewAISearchHandler(rt.queryBus, errorHandler, rt.logger)
	nodes := handlers.NewNodeHandler(rt.commandBus, errorHandler, rt.logger)

	mountTrees := func(r chi.Router) {
		r.Get("/{treeID}/ai-search", search.Search)
		r.Post("/{treeID}/ai-search", search.Search)
	}

	router.Route("/api", func(r chi.Router) {
		r.Route("/trees", mountTrees)
		r.Put("/nodes/{nodeID}/references", nodes.UpdateReferences)
	})

	// Path used by older web clients
	router.Route("/trees", mountTrees)

	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		errorHandler.HandleStatus(w, r, http.StatusNotFound, "Not found")
	})
	router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		errorHandler.HandleStatus(w, r, http.StatusMethodNotAllowed, "Method not allowed")
	})

	return router
}

func (rt *Router) healthCheck(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"healthy"}`))
}

func (rt *Router) readinessCheck(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if rt.ready != nil {
		if err := rt.ready(req.Context()); err != nil {
			rt.logger.Warn("Readiness check failed", zap.Error(err))
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"not ready"}`))
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ready"}`))
}
