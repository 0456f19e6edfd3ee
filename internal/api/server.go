package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	infragin "github.com/jonesrussell/north-cloud/insights/infrastructure/gin"
	"github.com/jonesrussell/north-cloud/insights/infrastructure/logger"
	"github.com/jonesrussell/north-cloud/insights/infrastructure/metrics"
	"github.com/jonesrussell/north-cloud/insights/internal/config"
	"github.com/jonesrussell/north-cloud/insights/internal/telemetry"
)

// ServerDeps are the collaborators the HTTP server needs.
type ServerDeps struct {
	Handler   *Handler
	Telemetry *telemetry.Provider
	// RedisPing is set when the report cache is enabled.
	RedisPing func() error
	// ElasticsearchPing is set when elasticsearch is the upstream.
	ElasticsearchPing func() error
}

// NewServer creates a new HTTP server.
func NewServer(cfg *config.Config, deps ServerDeps, log logger.Logger) *infragin.Server {
	builder := infragin.NewServerBuilder(cfg.Service.Name, cfg.Service.Port).
		WithLogger(log).
		WithDebug(cfg.Service.Debug).
		WithVersion(cfg.Service.Version).
		WithTimeouts(cfg.Service.ReadTimeout, cfg.Service.WriteTimeout, 0).
		WithUpstreamHealthCheck(deps.Handler.upstream.Degraded)

	if len(cfg.Service.CORSOrigins) > 0 {
		builder.WithCORSOrigins(cfg.Service.CORSOrigins)
	}
	if deps.RedisPing != nil {
		builder.WithRedisHealthCheck(deps.RedisPing)
	}
	if deps.ElasticsearchPing != nil {
		builder.WithElasticsearchHealthCheck(deps.ElasticsearchPing)
	}

	var metricsHandler http.Handler
	if deps.Telemetry != nil {
		httpMetrics := metrics.NewHTTPMetrics(deps.Telemetry.Registerer(), telemetry.Namespace)
		builder.WithMiddleware(httpMetrics.Middleware())
		metricsHandler = deps.Telemetry.Handler()
	}

	return builder.
		WithRoutes(func(router *gin.Engine) {
			SetupRoutes(router, deps.Handler, metricsHandler)
		}).
		Build()
}
