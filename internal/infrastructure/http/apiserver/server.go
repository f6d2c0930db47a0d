// Package apiserver provides the JSON API HTTP server
package apiserver

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/yambati03/touille/internal/infrastructure/config"
	"github.com/yambati03/touille/internal/infrastructure/http/handlers"
	"github.com/yambati03/touille/internal/infrastructure/http/middleware"
	"github.com/yambati03/touille/internal/infrastructure/monitoring"
	"github.com/yambati03/touille/internal/ports/inbound"
	"github.com/yambati03/touille/pkg/healthcheck"
)

// APIServer serves the JSON API consumed by the web frontend and any
// other client.
type APIServer struct {
	config *config.Config
	logger *zap.Logger
	server *http.Server
	router *chi.Mux

	health      *healthcheck.HealthCheck
	metrics     *monitoring.MetricsCollector
	rateLimiter *middleware.RateLimiter

	recipeService   inbound.RecipeService
	userService     inbound.UserService
	settingsService inbound.SettingsService
	chatService     inbound.ChatService
	timerService    inbound.TimerService

	openAPIHandler *OpenAPIHandler
}

// NewAPIServer creates a new API server instance
func NewAPIServer(
	cfg *config.Config,
	log *zap.Logger,
	health *healthcheck.HealthCheck,
	metrics *monitoring.MetricsCollector,
	tracing *monitoring.TracingProvider,
	rateLimiter *middleware.RateLimiter,
	recipeService inbound.RecipeService,
	userService inbound.UserService,
	settingsService inbound.SettingsService,
	chatService inbound.ChatService,
	timerService inbound.TimerService,
) *APIServer {
	server := &APIServer{
		config:          cfg,
		logger:          log.Named("api-server"),
		health:          health,
		metrics:         metrics,
		rateLimiter:     rateLimiter,
		recipeService:   recipeService,
		userService:     userService,
		settingsService: settingsService,
		chatService:     chatService,
		timerService:    timerService,
		openAPIHandler:  NewOpenAPIHandler(log),
	}

	server.router = server.setupRoutes()
	server.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      tracing.InstrumentHTTPHandler(server.router, "touille-api"),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return server
}

// setupRoutes configures the JSON API routes
func (s *APIServer) setupRoutes() *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logger(s.logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(s.metrics.HTTPMiddleware())
	r.Use(middleware.Security())
	if s.config.Server.EnableCORS {
		r.Use(middleware.CORS(s.config.Server.AllowedOrigins))
	}
	if s.config.Server.EnableCompression {
		// Brotli for clients that ask for it, gzip and deflate
		// otherwise. Chat streams stay uncompressed because
		// text/event-stream is not a compressible content type.
		compressor := chimiddleware.NewCompressor(5)
		compressor.SetEncoder("br", func(w io.Writer, level int) io.Writer {
			return brotli.NewWriterLevel(w, level)
		})
		r.Use(compressor.Handler)
	}
	r.Use(s.rateLimiter.Handler())
	r.Use(middleware.Authenticate(s.userService, s.logger))

	// Health endpoints stay outside /api/v1 so probes need no version
	// awareness.
	r.Get("/health", s.health.HTTPHandler())
	r.Get("/health/live", s.health.LivenessHTTPHandler())
	r.Get("/health/ready", s.health.ReadinessHTTPHandler())

	r.Get("/api/v1/openapi.yaml", s.openAPIHandler.ServeOpenAPISpec)
	r.Get("/api/v1/docs", s.openAPIHandler.ServeSwaggerUI)

	r.Route("/api/v1", func(r chi.Router) {
		s.setupAPIV1Routes(r)
	})

	return r
}

// setupAPIV1Routes configures API v1 endpoints
func (s *APIServer) setupAPIV1Routes(r chi.Router) {
	recipeH := handlers.NewRecipeHandlers(s.recipeService, s.metrics, s.logger)
	authH := handlers.NewAuthHandlers(s.userService, s.logger)
	settingsH := handlers.NewSettingsHandlers(s.settingsService, s.logger)
	chatH := handlers.NewChatHandlers(s.chatService, s.metrics, s.logger)
	timerH := handlers.NewTimerHandlers(s.timerService, s.userService, s.metrics, s.logger)

	// Request timeouts apply only to request/response routes. The chat
	// stream and the timer socket outlive any sane request deadline.
	jsonRoutes := func(r chi.Router) chi.Router {
		return r.With(
			chimiddleware.Timeout(30*time.Second),
			middleware.JSONOnly(),
		)
	}

	r.Route("/auth", func(r chi.Router) {
		j := jsonRoutes(r)
		j.Post("/register", authH.Register)
		j.Post("/login", authH.Login)
		j.Post("/logout", authH.Logout)
		j.Post("/refresh", authH.Refresh)
		j.Post("/mfa/verify", authH.CompleteMFALogin)
		j.Get("/verify-email", authH.VerifyEmail)

		j.Group(func(r chi.Router) {
			r.Use(middleware.RequireUser())
			r.Get("/me", authH.Me)
			r.Post("/resend-verification", authH.ResendVerification)
			r.Post("/mfa/setup", authH.SetupMFA)
			r.Post("/mfa/activate", authH.ActivateMFA)
			r.Post("/mfa/disable", authH.DisableMFA)
		})
	})

	r.Route("/recipes", func(r chi.Router) {
		// Extraction runs the whole download/transcribe/extract pipeline
		// inside the request, so it is exempt from the request deadline.
		process := r.With(middleware.JSONOnly(), s.rateLimiter.ProcessLimit())
		if !s.config.Auth.AllowAnonymousExtraction {
			process = process.With(middleware.RequireUser())
		}
		process.Post("/process", recipeH.ProcessVideo)

		j := jsonRoutes(r)
		j.Get("/", recipeH.ListRecipes)
		j.Get("/{id}", recipeH.GetRecipe)
		j.With(middleware.RequireUser()).Delete("/{id}", recipeH.DeleteRecipe)
	})

	r.Route("/chat", func(r chi.Router) {
		r.With(middleware.JSONOnly()).Post("/step", chatH.StreamStepChat)

		j := jsonRoutes(r)
		j.Get("/step/history", chatH.History)
		j.Delete("/step/history", chatH.ClearHistory)
	})

	r.Route("/timers", func(r chi.Router) {
		r.Get("/ws", timerH.HandleWS)

		j := jsonRoutes(r)
		j.Post("/", timerH.StartTimer)
		j.Get("/", timerH.ListTimers)
		j.Get("/{id}", timerH.GetTimer)
		j.Post("/{id}/pause", timerH.PauseTimer)
		j.Post("/{id}/resume", timerH.ResumeTimer)
		j.Post("/{id}/cancel", timerH.CancelTimer)
	})

	// Settings work without an account. Unauthenticated requests read
	// and write the shared anonymous record.
	r.Route("/settings", func(r chi.Router) {
		j := jsonRoutes(r)
		j.Get("/", settingsH.GetSettings)
		j.Put("/", settingsH.UpdateSettings)
	})
}

// Start starts the API HTTP server
func (s *APIServer) Start() error {
	s.logger.Info("Starting API server",
		zap.String("address", s.server.Addr),
	)

	return s.server.ListenAndServe()
}

// Router returns the configured router, mostly for tests
func (s *APIServer) Router() *chi.Mux {
	return s.router
}

// Shutdown gracefully shuts down the API server
func (s *APIServer) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down API server")
	return s.server.Shutdown(ctx)
}
