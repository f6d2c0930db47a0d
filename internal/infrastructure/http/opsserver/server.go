// Package opsserver exposes metrics and health probes on a port of
// their own, away from the public API surface.
package opsserver

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yambati03/touille/internal/infrastructure/config"
	"github.com/yambati03/touille/internal/infrastructure/monitoring"
	"github.com/yambati03/touille/pkg/healthcheck"
)

// OpsServer serves Prometheus metrics and health probes
type OpsServer struct {
	config *config.Config
	logger *zap.Logger
	server *http.Server
	engine *gin.Engine
}

// NewOpsServer creates a new operational endpoints server
func NewOpsServer(
	cfg *config.Config,
	log *zap.Logger,
	metrics *monitoring.MetricsCollector,
	health *healthcheck.HealthCheck,
) *OpsServer {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())

	if cfg.Monitoring.EnableMetrics {
		engine.GET("/metrics", gin.WrapH(metrics.Handler()))
	}

	healthPath := cfg.Monitoring.HealthCheckPath
	if healthPath == "" {
		healthPath = "/health"
	}
	readyPath := cfg.Monitoring.ReadinessPath
	if readyPath == "" {
		readyPath = "/ready"
	}

	engine.GET(healthPath, health.Handler())
	engine.GET(readyPath, health.ReadinessHandler())
	engine.GET("/live", health.LivenessHandler())

	return &OpsServer{
		config: cfg,
		logger: log.Named("ops-server"),
		engine: engine,
		server: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Monitoring.MetricsPort),
			Handler:      engine,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
	}
}

// Start starts the operational HTTP server
func (s *OpsServer) Start() error {
	s.logger.Info("Starting ops server",
		zap.String("address", s.server.Addr),
	)

	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server
func (s *OpsServer) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Engine returns the underlying gin engine, mostly for tests
func (s *OpsServer) Engine() *gin.Engine {
	return s.engine
}
