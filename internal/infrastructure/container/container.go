// Package container wires the application together using Uber FX.
// This implements the Dependency Inversion Principle from SOLID
package container

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"
	gormlib "gorm.io/gorm"

	"github.com/yambati03/touille/internal/application/chat"
	"github.com/yambati03/touille/internal/application/recipe"
	"github.com/yambati03/touille/internal/application/timer"
	"github.com/yambati03/touille/internal/application/user"
	"github.com/yambati03/touille/internal/infrastructure/ai"
	"github.com/yambati03/touille/internal/infrastructure/ai/prompt"
	"github.com/yambati03/touille/internal/infrastructure/cache"
	"github.com/yambati03/touille/internal/infrastructure/config"
	"github.com/yambati03/touille/internal/infrastructure/http/apiserver"
	"github.com/yambati03/touille/internal/infrastructure/http/middleware"
	"github.com/yambati03/touille/internal/infrastructure/http/opsserver"
	"github.com/yambati03/touille/internal/infrastructure/media"
	"github.com/yambati03/touille/internal/infrastructure/monitoring"
	gormrepo "github.com/yambati03/touille/internal/infrastructure/persistence/gorm"
	"github.com/yambati03/touille/internal/infrastructure/persistence/migrations"
	"github.com/yambati03/touille/internal/infrastructure/persistence/postgres"
	redisrepo "github.com/yambati03/touille/internal/infrastructure/persistence/redis"
	"github.com/yambati03/touille/internal/infrastructure/security"
	"github.com/yambati03/touille/internal/infrastructure/storage"
	"github.com/yambati03/touille/internal/ports/inbound"
	"github.com/yambati03/touille/internal/ports/outbound"
	"github.com/yambati03/touille/pkg/healthcheck"
	"github.com/yambati03/touille/pkg/logger"
)

// Module provides every dependency of the API process.
var Module = fx.Options(
	// Infrastructure modules
	ConfigModule,
	LoggerModule,
	DatabaseModule,
	CacheModule,

	// Repository modules
	RepositoryModule,

	// Pipeline modules
	MediaModule,
	AIModule,

	// Security modules
	SecurityModule,

	// Service modules
	ServiceModule,

	// Observability modules
	MonitoringModule,

	// HTTP modules
	HTTPModule,

	// Lifecycle hooks
	LifecycleModule,
)

// ConfigModule provides configuration. TOUILLE_CONFIG points at an
// explicit config file; otherwise the default search path is used.
var ConfigModule = fx.Provide(
	func() (*config.Config, error) {
		return config.Load(os.Getenv("TOUILLE_CONFIG"))
	},
)

// LoggerModule provides logging
var LoggerModule = fx.Provide(
	func(cfg *config.Config) (*zap.Logger, error) {
		return logger.New(logger.Config{
			Level:       cfg.App.LogLevel,
			Format:      cfg.App.LogFormat,
			Development: cfg.App.Debug,
		})
	},
)

// DatabaseModule provides the PostgreSQL connection
var DatabaseModule = fx.Provide(
	postgres.NewConnectionManager,
	func(cm *postgres.ConnectionManager) *gormlib.DB {
		return cm.GetDB()
	},
	func(db *gormlib.DB) (*sql.DB, error) {
		return db.DB()
	},
)

// CacheModule provides the Redis client and the cache repository
var CacheModule = fx.Provide(
	func(cfg *config.Config, log *zap.Logger) (*cache.RedisClient, error) {
		return cache.NewRedisClient(&cfg.Redis, log)
	},
	redisrepo.NewCacheRepository,
)

// RepositoryModule provides repository implementations
var RepositoryModule = fx.Provide(
	gormrepo.NewRecipeRepository,
	gormrepo.NewUserRepository,
	gormrepo.NewSessionRepository,
	gormrepo.NewSettingsRepository,
	gormrepo.NewVerificationRepository,
)

// MediaModule provides the download and transcription stages plus the
// caches and the optional archive behind them
var MediaModule = fx.Provide(
	func(cfg *config.Config, log *zap.Logger, metrics *monitoring.MetricsCollector, tracing *monitoring.TracingProvider) outbound.VideoDownloader {
		return monitoring.InstrumentDownloader(media.NewYtDlpDownloader(cfg, log), metrics, tracing)
	},
	func(cfg *config.Config, log *zap.Logger, metrics *monitoring.MetricsCollector, tracing *monitoring.TracingProvider) (outbound.Transcriber, error) {
		transcriber, err := media.NewTranscriber(cfg, log)
		if err != nil {
			return nil, err
		}
		return monitoring.InstrumentTranscriber(transcriber, metrics, tracing), nil
	},
	func(cfg *config.Config, redis *cache.RedisClient, log *zap.Logger) outbound.TranscriptCache {
		return cache.NewExtractionCache(redis, log, cfg.Transcribe.CacheTTL, cfg.Transcribe.EnableCache)
	},
	func(cfg *config.Config, redis *cache.RedisClient, log *zap.Logger) outbound.ChatHistory {
		return cache.NewChatHistoryCache(redis, log, cfg.Chat.HistoryTTL)
	},
	// The archive is optional. A nil archive means processed videos are
	// not kept anywhere past transcription.
	func(cfg *config.Config, log *zap.Logger) (outbound.MediaArchive, error) {
		if !cfg.Storage.EnableArchive {
			return nil, nil
		}
		return storage.NewS3Archive(cfg, log)
	},
)

// AIModule provides the model completer, the prompt library and the
// extraction and chat adapters built on top of them
var AIModule = fx.Provide(
	ai.NewCompleter,
	prompt.NewLibrary,
	func(completer ai.Completer, prompts *prompt.Library, log *zap.Logger, metrics *monitoring.MetricsCollector, tracing *monitoring.TracingProvider) outbound.RecipeExtractor {
		return monitoring.InstrumentExtractor(ai.NewExtractor(completer, prompts, log), metrics, tracing)
	},
	func(completer ai.Completer, prompts *prompt.Library, log *zap.Logger, metrics *monitoring.MetricsCollector, tracing *monitoring.TracingProvider) outbound.ChatStreamer {
		return monitoring.InstrumentStreamer(ai.NewChatStreamer(completer, prompts, log), completer.Name(), metrics, tracing)
	},
	// The override watcher is nil unless a prompt override directory is
	// configured.
	func(cfg *config.Config, library *prompt.Library, log *zap.Logger) (*prompt.OverrideWatcher, error) {
		if cfg.Extract.PromptOverrides == "" {
			return nil, nil
		}
		return prompt.NewOverrideWatcher(library, cfg.Extract.PromptOverrides, log)
	},
)

// SecurityModule provides MFA management
var SecurityModule = fx.Provide(
	fx.Annotate(
		security.NewMFAService,
		fx.As(new(outbound.MFAManager)),
	),
)

// ServiceModule provides application services
var ServiceModule = fx.Provide(
	// User service
	func(
		userRepo outbound.UserRepository,
		sessionRepo outbound.SessionRepository,
		verificationRepo outbound.VerificationRepository,
		mfa outbound.MFAManager,
		cfg *config.Config,
		log *zap.Logger,
	) inbound.UserService {
		return user.NewUserService(userRepo, sessionRepo, verificationRepo, mfa, user.Options{
			JWTSecret:            cfg.Auth.JWTSecret,
			SessionTTL:           cfg.Auth.SessionTTL,
			VerificationTTL:      cfg.Auth.VerificationTTL,
			VerificationBaseURL:  cfg.Auth.VerificationBaseURL,
			RequireVerifiedEmail: cfg.Auth.RequireVerifiedEmail,
		}, log)
	},

	// Settings service
	user.NewSettingsService,

	// Recipe extraction service
	func(
		recipeRepo outbound.RecipeRepository,
		settingsRepo outbound.SettingsRepository,
		downloader outbound.VideoDownloader,
		transcriber outbound.Transcriber,
		extractor outbound.RecipeExtractor,
		transcripts outbound.TranscriptCache,
		archive outbound.MediaArchive,
		cfg *config.Config,
		log *zap.Logger,
	) inbound.RecipeService {
		return recipe.NewRecipeService(recipeRepo, settingsRepo, downloader, transcriber, extractor, transcripts, archive, recipe.PipelineOptions{
			WorkDir:        cfg.Media.WorkDir,
			KeepLocalFiles: cfg.Media.KeepLocalFiles,
		}, log)
	},

	// Step chat service
	func(
		streamer outbound.ChatStreamer,
		history outbound.ChatHistory,
		settingsRepo outbound.SettingsRepository,
		cfg *config.Config,
		log *zap.Logger,
	) inbound.ChatService {
		return chat.NewChatService(streamer, history, settingsRepo, chat.Options{
			MaxMessageLength: cfg.Chat.MaxMessageLength,
			HistoryTurns:     cfg.Chat.HistoryTurns,
			StreamTimeout:    cfg.Chat.StreamTimeout,
		}, log)
	},

	// Timer service. The concrete type is kept around so the lifecycle
	// sweeper can reach SweepAll.
	func(cfg *config.Config, log *zap.Logger) *timer.TimerService {
		return timer.NewTimerService(timer.Options{
			MaxPerUser:  cfg.Timers.MaxPerUser,
			MaxDuration: cfg.Timers.MaxDuration,
		}, log)
	},
	func(svc *timer.TimerService) inbound.TimerService {
		return svc
	},
)

// MonitoringModule provides metrics, tracing and health checks
var MonitoringModule = fx.Provide(
	monitoring.NewMetricsCollector,
	func(cfg *config.Config, log *zap.Logger) (*monitoring.TracingProvider, error) {
		return monitoring.NewTracingProvider(monitoring.TracingConfig{
			ServiceName:    cfg.App.Name,
			ServiceVersion: cfg.App.Version,
			Environment:    cfg.App.Environment,
			OTLPEndpoint:   cfg.Monitoring.OTLPEndpoint,
			SamplingRate:   cfg.Monitoring.SamplingRate,
			Enabled:        cfg.Monitoring.EnableTracing,
		}, log)
	},
	NewHealthCheck,
)

// NewHealthCheck registers a checker for every dependency the pipeline
// needs to produce a recipe.
func NewHealthCheck(
	cfg *config.Config,
	log *zap.Logger,
	sqlDB *sql.DB,
	redis *cache.RedisClient,
	completer ai.Completer,
) *healthcheck.HealthCheck {
	h := healthcheck.New(cfg.App.Version, log)

	h.Register("database", healthcheck.NewDatabaseChecker(sqlDB))
	h.Register("redis", healthcheck.NewPingChecker("redis", redis.Ping))
	h.Register("yt-dlp", healthcheck.NewBinaryChecker("yt-dlp", cfg.Media.DownloaderPath))
	if cfg.Transcribe.Mode != "api" {
		h.Register("whisper", healthcheck.NewBinaryChecker("whisper", cfg.Transcribe.BinaryPath))
	}

	workdir := cfg.Media.WorkDir
	if workdir == "" {
		workdir = os.TempDir()
	}
	h.Register("workdir", healthcheck.NewWorkdirChecker(workdir))

	h.Register(completer.Name(), healthcheck.NewProviderChecker(completer.Name(), completer.HealthCheck))

	return h
}

// HTTPModule provides the API server and the ops server
var HTTPModule = fx.Provide(
	func(cfg *config.Config, counters outbound.CacheRepository, log *zap.Logger) *middleware.RateLimiter {
		return middleware.NewRateLimiter(cfg.RateLimit, counters, log)
	},
	apiserver.NewAPIServer,
	opsserver.NewOpsServer,
)

// LifecycleModule provides lifecycle hooks
var LifecycleModule = fx.Invoke(
	RegisterLifecycleHooks,
)

// RegisterLifecycleHooks starts the servers and the background loops,
// and tears everything down in reverse on shutdown.
func RegisterLifecycleHooks(
	lc fx.Lifecycle,
	cfg *config.Config,
	log *zap.Logger,
	cm *postgres.ConnectionManager,
	sqlDB *sql.DB,
	redis *cache.RedisClient,
	tracing *monitoring.TracingProvider,
	metrics *monitoring.MetricsCollector,
	timers *timer.TimerService,
	watcher *prompt.OverrideWatcher,
	api *apiserver.APIServer,
	ops *opsserver.OpsServer,
) {
	sweepDone := make(chan struct{})

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("Starting touille",
				zap.String("version", cfg.App.Version),
				zap.String("environment", cfg.App.Environment),
			)

			if cfg.Database.AutoMigrate {
				// The migrator shares the server pool, so it is not
				// closed here. Closing it would close the pool.
				migrator, err := migrations.New(sqlDB, log)
				if err != nil {
					return err
				}
				if err := migrator.Up(); err != nil {
					return err
				}
			}

			if watcher != nil {
				if err := watcher.Start(); err != nil {
					return err
				}
			}

			go func() {
				if err := api.Start(); err != nil && err != http.ErrServerClosed {
					log.Fatal("API server failed", zap.Error(err))
				}
			}()
			go func() {
				if err := ops.Start(); err != nil && err != http.ErrServerClosed {
					log.Fatal("Ops server failed", zap.Error(err))
				}
			}()

			// Finished timers linger briefly for the frontend to show a
			// done state; the sweeper reclaims them and keeps the active
			// timer gauge honest.
			interval := cfg.Timers.TickInterval
			if interval <= 0 {
				interval = 30 * time.Second
			}
			go func() {
				ticker := time.NewTicker(interval)
				defer ticker.Stop()
				for {
					select {
					case <-ticker.C:
						metrics.SetActiveTimers(timers.SweepAll())
					case <-sweepDone:
						return
					}
				}
			}()

			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info("Shutting down touille")

			close(sweepDone)

			if watcher != nil {
				if err := watcher.Stop(); err != nil {
					log.Warn("Prompt watcher shutdown failed", zap.Error(err))
				}
			}

			if err := api.Shutdown(ctx); err != nil {
				log.Error("API server shutdown failed", zap.Error(err))
			}
			if err := ops.Shutdown(ctx); err != nil {
				log.Error("Ops server shutdown failed", zap.Error(err))
			}

			if err := tracing.Shutdown(ctx); err != nil {
				log.Warn("Tracing shutdown failed", zap.Error(err))
			}
			if err := redis.Close(); err != nil {
				log.Warn("Redis close failed", zap.Error(err))
			}
			if err := cm.Close(); err != nil {
				log.Error("Database close failed", zap.Error(err))
			}

			_ = log.Sync()

			return nil
		},
	})
}
