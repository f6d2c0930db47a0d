package container

import (
	"context"
	"fmt"
	"net/http"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/yambati03/touille/internal/infrastructure/config"
	"github.com/yambati03/touille/internal/infrastructure/http/webserver"
	"github.com/yambati03/touille/internal/infrastructure/security"
	"github.com/yambati03/touille/pkg/healthcheck"
)

// WebModule provides every dependency of the web frontend process. The
// frontend holds no database or Redis connection of its own; everything
// it shows comes through the API client.
var WebModule = fx.Options(
	ConfigModule,
	LoggerModule,

	fx.Provide(
		webserver.NewAPIClient,
		webserver.NewSessionStore,
		security.NewTokenService,
		NewWebHealthCheck,
		webserver.NewWebServer,
	),

	fx.Invoke(RegisterWebLifecycleHooks),
)

// NewWebHealthCheck reports readiness of the one dependency the
// frontend has, the API backend.
func NewWebHealthCheck(cfg *config.Config, log *zap.Logger, api *webserver.APIClient) *healthcheck.HealthCheck {
	h := healthcheck.New(cfg.App.Version, log)

	h.Register("api", healthcheck.NewPingChecker("api", func(ctx context.Context) error {
		if !api.VerifyConnection(ctx) {
			return fmt.Errorf("api backend unreachable")
		}
		return nil
	}))

	return h
}

// RegisterWebLifecycleHooks starts the web server and shuts it down
// gracefully.
func RegisterWebLifecycleHooks(
	lc fx.Lifecycle,
	cfg *config.Config,
	log *zap.Logger,
	web *webserver.WebServer,
) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("Starting touille web frontend",
				zap.String("version", cfg.App.Version),
				zap.String("environment", cfg.App.Environment),
			)

			go func() {
				if err := web.Start(); err != nil && err != http.ErrServerClosed {
					log.Fatal("Web server failed", zap.Error(err))
				}
			}()

			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info("Shutting down touille web frontend")

			if err := web.Shutdown(ctx); err != nil {
				log.Error("Web server shutdown failed", zap.Error(err))
			}

			_ = log.Sync()

			return nil
		},
	})
}
