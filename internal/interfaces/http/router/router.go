// Package router assembles the gin engine and mounts the API handlers.
package router

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/certhub/backend/internal/infrastructure/logger"
	"github.com/certhub/backend/internal/interfaces/http/middleware"
)

// RouteRegistrar defines the interface for registering routes
type RouteRegistrar interface {
	RegisterRoutes(rg *gin.RouterGroup)
}

// EngineConfig configures the global middleware chain
type EngineConfig struct {
	Logger         *zap.Logger
	Tracing        middleware.TracingConfig
	Metrics        middleware.HTTPMetricsConfig
	CORS           middleware.CORSConfig
	Security       middleware.SecurityConfig
	RequestTimeout time.Duration
}

// NewEngine creates a gin engine with the global middleware chain. Order
// matters: the request ID must exist before logging and tracing read it, and
// span enrichment must run inside the otelgin span.
func NewEngine(cfg EngineConfig) *gin.Engine {
	l := cfg.Logger
	if l == nil {
		l = zap.NewNop()
	}
	middleware.SetupValidator()

	engine := gin.New()
	engine.Use(
		logger.Recovery(l),
		middleware.RequestID(),
		logger.GinMiddleware(l),
	)
	if cfg.Tracing.Enabled {
		engine.Use(
			middleware.TracingWithConfig(cfg.Tracing),
			middleware.TracingAttributeInjector(),
			middleware.SpanErrorMarker(),
		)
	}
	engine.Use(
		middleware.HTTPMetrics(cfg.Metrics),
		middleware.CORSWithConfig(cfg.CORS),
		middleware.SecureWithConfig(cfg.Security),
		middleware.Timeout(cfg.RequestTimeout),
	)
	return engine
}

// Router manages HTTP route registration
type Router struct {
	engine     *gin.Engine
	apiVersion string
	registrars []RouteRegistrar
	health     gin.HandlerFunc
}

// RouterOption is a functional option for Router configuration
type RouterOption func(*Router)

// WithHealthCheck mounts h at /health, outside API versioning
func WithHealthCheck(h gin.HandlerFunc) RouterOption {
	return func(r *Router) {
		r.health = h
	}
}

// NewRouter creates a new Router instance
func NewRouter(engine *gin.Engine, opts ...RouterOption) *Router {
	r := &Router{
		engine:     engine,
		apiVersion: "v1",
		registrars: make([]RouteRegistrar, 0),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Register adds a RouteRegistrar to be registered later
func (r *Router) Register(registrars ...RouteRegistrar) *Router {
	r.registrars = append(r.registrars, registrars...)
	return r
}

// Setup registers all routes with the engine
func (r *Router) Setup() {
	if r.health != nil {
		r.engine.GET("/health", r.health)
	}

	api := r.engine.Group("/api/" + r.apiVersion)
	for _, registrar := range r.registrars {
		registrar.RegisterRoutes(api)
	}
}

// Engine returns the underlying gin engine
func (r *Router) Engine() *gin.Engine {
	return r.engine
}
