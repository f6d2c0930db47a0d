package webserver

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/yambati03/touille/internal/infrastructure/config"
	"github.com/yambati03/touille/internal/infrastructure/http/middleware"
	"github.com/yambati03/touille/internal/infrastructure/security"
	"github.com/yambati03/touille/pkg/healthcheck"
)

//go:embed templates/*
var templatesFS embed.FS

//go:embed static/*
var staticFS embed.FS

type contextKey string

const sessionContextKey contextKey = "session"

// WebServer serves the HTML frontend. It holds no domain state of its
// own: every page is rendered from API responses, with the session
// store bridging cookies to API tokens.
type WebServer struct {
	config    *config.Config
	logger    *zap.Logger
	server    *http.Server
	router    *chi.Mux
	apiClient *APIClient
	sessions  *SessionStore
	tokens    *security.TokenService
	health    *healthcheck.HealthCheck
	templates *template.Template
}

// NewWebServer creates a new web frontend server instance
func NewWebServer(
	cfg *config.Config,
	log *zap.Logger,
	apiClient *APIClient,
	sessions *SessionStore,
	tokens *security.TokenService,
	health *healthcheck.HealthCheck,
) (*WebServer, error) {
	templates, err := parseTemplates()
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}

	server := &WebServer{
		config:    cfg,
		logger:    log.Named("web-server"),
		apiClient: apiClient,
		sessions:  sessions,
		tokens:    tokens,
		health:    health,
		templates: templates,
	}

	server.router = server.setupRoutes()
	server.server = &http.Server{
		Addr:        fmt.Sprintf("%s:%d", cfg.Web.Host, cfg.Web.Port),
		Handler:     server.router,
		ReadTimeout: 30 * time.Second,
		// Extraction and chat streams ride single requests, so the
		// write deadline has to outlast the whole pipeline.
		WriteTimeout: 15 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	return server, nil
}

// setupRoutes configures the web frontend routes
func (s *WebServer) setupRoutes() *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logger(s.logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestSize(1 << 20))
	r.Use(s.securityHeaders)

	r.Handle("/static/*", s.staticHandler())

	r.Get("/health", s.health.HTTPHandler())
	r.Get("/health/live", s.health.LivenessHTTPHandler())
	r.Get("/health/ready", s.health.ReadinessHTTPHandler())

	r.Group(func(r chi.Router) {
		r.Use(s.withSession)
		r.Use(s.csrfProtect)

		// Public pages. Settings stay open so an anonymous cook can set
		// preferences; they land on the shared anonymous record.
		r.Get("/", s.handleHome)
		r.Post("/extract", s.handleExtract)
		r.Get("/recipes/{id}", s.handleRecipeDetail)
		r.Get("/login", s.handleLoginPage)
		r.Post("/login", s.handleLogin)
		r.Post("/mfa", s.handleMFAVerify)
		r.Get("/register", s.handleRegisterPage)
		r.Post("/register", s.handleRegister)
		r.Post("/logout", s.handleLogout)
		r.Get("/verify-email", s.handleVerifyEmail)
		r.Get("/settings", s.handleSettingsPage)
		r.Post("/settings", s.handleSettingsUpdate)

		// Pages that need an account
		r.Group(func(r chi.Router) {
			r.Use(s.requireAuth)
			r.Get("/recipes", s.handleRecipeList)
			r.Post("/recipes/{id}/delete", s.handleRecipeDelete)
		})

		// HTMX fragments for cook mode. These stay open to anonymous
		// sessions so a signed-out cook can still chat and run timers.
		r.Route("/htmx", func(r chi.Router) {
			r.Post("/chat/step", s.handleHTMXChatStream)
			r.Get("/chat/history", s.handleHTMXChatHistory)
			r.Post("/chat/clear", s.handleHTMXChatClear)
			r.Post("/steps/toggle", s.handleHTMXStepToggle)
			r.Get("/timers", s.handleHTMXTimers)
			r.Post("/timers", s.handleHTMXTimerStart)
			r.Post("/timers/{id}/{action}", s.handleHTMXTimerAction)
		})
	})

	return r
}

// Start starts the web frontend HTTP server
func (s *WebServer) Start() error {
	s.logger.Info("Starting web frontend server",
		zap.String("address", s.server.Addr),
		zap.String("api", s.apiClient.baseURL),
	)

	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the web server
func (s *WebServer) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down web frontend server...")
	return s.server.Shutdown(ctx)
}

// Router returns the configured router, mostly for tests
func (s *WebServer) Router() *chi.Mux {
	return s.router
}

// parseTemplates parses all HTML templates from the embedded filesystem
func parseTemplates() (*template.Template, error) {
	funcMap := template.FuncMap{
		"formatDate": func(t time.Time) string {
			return t.Format("Jan 2, 2006")
		},
		"timeAgo": func(t time.Time) string {
			duration := time.Since(t)
			if duration < time.Minute {
				return "just now"
			} else if duration < time.Hour {
				return fmt.Sprintf("%d minutes ago", int(duration.Minutes()))
			} else if duration < 24*time.Hour {
				return fmt.Sprintf("%d hours ago", int(duration.Hours()))
			} else if duration < 7*24*time.Hour {
				return fmt.Sprintf("%d days ago", int(duration.Hours()/24))
			}
			return t.Format("Jan 2")
		},
		"truncate": func(s string, n int) string {
			if len(s) <= n {
				return s
			}
			return s[:n] + "..."
		},
		"join": func(sep string, elems []string) string {
			return strings.Join(elems, sep)
		},
		"seq": func(start, end int) []int {
			var result []int
			for i := start; i <= end; i++ {
				result = append(result, i)
			}
			return result
		},
		"add": func(a, b int) int { return a + b },
		"sub": func(a, b int) int { return a - b },
		"formatAmount": func(v *float64) string {
			if v == nil {
				return ""
			}
			return strconv.FormatFloat(*v, 'f', -1, 64)
		},
		"formatMinutes": func(m *int) string {
			if m == nil {
				return ""
			}
			if *m < 60 {
				return fmt.Sprintf("%d min", *m)
			}
			if *m%60 == 0 {
				return fmt.Sprintf("%d hr", *m/60)
			}
			return fmt.Sprintf("%d hr %d min", *m/60, *m%60)
		},
		"minutesToSeconds": func(m *int) int {
			if m == nil {
				return 0
			}
			return *m * 60
		},
		"formatClock": func(seconds float64) string {
			total := int(seconds + 0.5)
			if total < 0 {
				total = 0
			}
			if total >= 3600 {
				return fmt.Sprintf("%d:%02d:%02d", total/3600, (total%3600)/60, total%60)
			}
			return fmt.Sprintf("%d:%02d", total/60, total%60)
		},
	}

	tmpl := template.New("").Funcs(funcMap)

	err := fs.WalkDir(templatesFS, "templates", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".html") {
			return nil
		}

		content, err := templatesFS.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read template %s: %w", path, err)
		}

		name := strings.TrimPrefix(path, "templates/")
		name = strings.TrimSuffix(name, ".html")

		if _, err := tmpl.New(name).Parse(string(content)); err != nil {
			return fmt.Errorf("failed to parse template %s: %w", name, err)
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk templates: %w", err)
	}

	return tmpl, nil
}

// Middleware

func (s *WebServer) withSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session, err := s.sessions.Get(r)
		if err != nil {
			session = s.sessions.New()
			s.sessions.Save(w, session)
		} else if s.sessions.Extend(session) {
			// The cookie slid forward, so push the API session out with
			// it. Neither should outlive the other.
			if session.Authenticated() {
				if _, err := s.apiClient.RefreshSession(r.Context(), session.APIToken); err != nil {
					s.logger.Debug("API session refresh failed", zap.Error(err))
					session.Clear()
				}
			}
			s.sessions.Save(w, session)
		}

		ctx := context.WithValue(r.Context(), sessionContextKey, session)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *WebServer) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session := currentSession(r.Context())
		if session == nil || !session.Authenticated() {
			s.redirectToLogin(w, r, "")
			return
		}

		// The API token can expire or be revoked out from under the
		// web session, so revalidate it on every protected page.
		if _, err := s.apiClient.Me(r.Context(), session.APIToken); err != nil {
			session.Clear()
			s.redirectToLogin(w, r, "session_expired")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *WebServer) redirectToLogin(w http.ResponseWriter, r *http.Request, reason string) {
	if r.Header.Get("HX-Request") == "true" {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`<div class="error">Please <a href="/login">log in</a> to continue.</div>`))
		return
	}

	target := "/login?redirect=" + r.URL.Path
	if reason != "" {
		target += "&error=" + reason
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

func (s *WebServer) csrfProtect(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet || r.Method == http.MethodHead || r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}

		session := currentSession(r.Context())
		if session == nil {
			http.Error(w, "Session required", http.StatusForbidden)
			return
		}

		token := r.Header.Get("X-CSRF-Token")
		if token == "" {
			token = r.FormValue("csrf_token")
		}

		if err := s.tokens.ValidateCSRFToken(token, security.SessionRef(session.ID)); err != nil {
			s.logger.Warn("CSRF validation failed",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Error(err),
			)
			if r.Header.Get("HX-Request") == "true" {
				w.WriteHeader(http.StatusForbidden)
				w.Write([]byte(`<div class="error">Your session went stale, reload the page.</div>`))
				return
			}
			http.Error(w, "Invalid CSRF token", http.StatusForbidden)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// securityHeaders adds browser security headers to all responses
func (s *WebServer) securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")

		csp := "default-src 'self'; " +
			"script-src 'self' https://unpkg.com; " +
			"style-src 'self' 'unsafe-inline' https://cdn.jsdelivr.net; " +
			"img-src 'self' data: https:; " +
			"font-src 'self' data:; " +
			"connect-src 'self'; " +
			"frame-ancestors 'none'; " +
			"base-uri 'none'; " +
			"object-src 'none';"
		w.Header().Set("Content-Security-Policy", csp)

		if s.config.IsProduction() {
			w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		next.ServeHTTP(w, r)
	})
}

func (s *WebServer) staticHandler() http.Handler {
	fileServer := http.FileServer(http.FS(staticFS))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "public, max-age=3600")
		fileServer.ServeHTTP(w, r)
	})
}

func currentSession(ctx context.Context) *Session {
	session, _ := ctx.Value(sessionContextKey).(*Session)
	return session
}

// Page handlers

func (s *WebServer) handleHome(w http.ResponseWriter, r *http.Request) {
	session := currentSession(r.Context())

	data := map[string]interface{}{
		"Title":   "Touille",
		"Error":   r.URL.Query().Get("error"),
		"Message": r.URL.Query().Get("message"),
	}

	if session.Authenticated() {
		if list, err := s.apiClient.ListRecipes(r.Context(), session.APIToken, 1, 6); err == nil {
			data["Recipes"] = list.Recipes
		} else {
			s.logger.Debug("Failed to load recent recipes", zap.Error(err))
		}
	}

	s.renderTemplate(w, r, "home", data)
}

func (s *WebServer) handleExtract(w http.ResponseWriter, r *http.Request) {
	session := currentSession(r.Context())

	videoURL := strings.TrimSpace(r.FormValue("url"))
	if videoURL == "" {
		s.renderTemplate(w, r, "home", map[string]interface{}{
			"Title": "Touille",
			"Error": "Paste a TikTok link first.",
		})
		return
	}
	refresh := r.FormValue("refresh") == "on" || r.FormValue("refresh") == "1"

	recipe, err := s.apiClient.ProcessVideo(r.Context(), session.APIToken, videoURL, refresh)
	if err != nil {
		s.logger.Warn("Extraction failed",
			zap.String("url", videoURL),
			zap.Error(err),
		)
		s.renderTemplate(w, r, "home", map[string]interface{}{
			"Title": "Touille",
			"Error": userMessage(err, "Could not extract a recipe from that video."),
			"URL":   videoURL,
		})
		return
	}

	http.Redirect(w, r, "/recipes/"+recipe.ID, http.StatusSeeOther)
}

func (s *WebServer) handleRecipeDetail(w http.ResponseWriter, r *http.Request) {
	session := currentSession(r.Context())

	recipe, err := s.apiClient.GetRecipe(r.Context(), session.APIToken, chi.URLParam(r, "id"))
	if err != nil {
		status, _ := apiErrorStatus(err)
		if status == http.StatusNotFound {
			s.renderErrorPage(w, r, http.StatusNotFound, "That recipe does not exist, or was deleted.")
			return
		}
		s.renderError(w, r, "Failed to load recipe", err)
		return
	}

	completed := make(map[int]bool)
	for _, step := range session.CompletedSteps(recipe.URL) {
		completed[step] = true
	}

	s.renderTemplate(w, r, "recipe-detail", map[string]interface{}{
		"Title":     recipe.Recipe.Title + " - Touille",
		"Item":      recipe,
		"Completed": completed,
	})
}

func (s *WebServer) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	session := currentSession(r.Context())
	if session.Authenticated() {
		http.Redirect(w, r, "/recipes", http.StatusSeeOther)
		return
	}

	s.renderTemplate(w, r, "login", map[string]interface{}{
		"Title":    "Log in - Touille",
		"Error":    loginFlash(r.URL.Query().Get("error")),
		"Redirect": r.URL.Query().Get("redirect"),
	})
}

func (s *WebServer) handleLogin(w http.ResponseWriter, r *http.Request) {
	session := currentSession(r.Context())

	email := strings.TrimSpace(r.FormValue("email"))
	password := r.FormValue("password")

	auth, err := s.apiClient.Login(r.Context(), email, password)
	if err != nil {
		s.renderTemplate(w, r, "login", map[string]interface{}{
			"Title": "Log in - Touille",
			"Error": userMessage(err, "Invalid email or password."),
			"Email": email,
		})
		return
	}

	if auth.MFARequired {
		s.renderTemplate(w, r, "mfa", map[string]interface{}{
			"Title":       "Two-factor check - Touille",
			"ChallengeID": auth.MFAChallengeID,
			"Redirect":    r.FormValue("redirect"),
		})
		return
	}

	s.signIn(w, session, auth)
	http.Redirect(w, r, safeRedirect(r.FormValue("redirect")), http.StatusSeeOther)
}

func (s *WebServer) handleMFAVerify(w http.ResponseWriter, r *http.Request) {
	session := currentSession(r.Context())

	challengeID := r.FormValue("challenge_id")
	code := strings.TrimSpace(r.FormValue("code"))

	auth, err := s.apiClient.CompleteMFALogin(r.Context(), challengeID, code)
	if err != nil {
		s.renderTemplate(w, r, "mfa", map[string]interface{}{
			"Title":       "Two-factor check - Touille",
			"ChallengeID": challengeID,
			"Error":       userMessage(err, "That code did not work. Try the next one."),
			"Redirect":    r.FormValue("redirect"),
		})
		return
	}

	s.signIn(w, session, auth)
	http.Redirect(w, r, safeRedirect(r.FormValue("redirect")), http.StatusSeeOther)
}

func (s *WebServer) handleRegisterPage(w http.ResponseWriter, r *http.Request) {
	session := currentSession(r.Context())
	if session.Authenticated() {
		http.Redirect(w, r, "/recipes", http.StatusSeeOther)
		return
	}

	s.renderTemplate(w, r, "register", map[string]interface{}{
		"Title": "Sign up - Touille",
	})
}

func (s *WebServer) handleRegister(w http.ResponseWriter, r *http.Request) {
	session := currentSession(r.Context())

	name := strings.TrimSpace(r.FormValue("name"))
	email := strings.TrimSpace(r.FormValue("email"))
	password := r.FormValue("password")

	auth, err := s.apiClient.Register(r.Context(), name, email, password)
	if err != nil {
		s.renderTemplate(w, r, "register", map[string]interface{}{
			"Title": "Sign up - Touille",
			"Error": userMessage(err, "Registration failed. Check the form and try again."),
			"Name":  name,
			"Email": email,
		})
		return
	}

	s.signIn(w, session, auth)
	http.Redirect(w, r, "/?message=Welcome! Check your inbox to verify your email.", http.StatusSeeOther)
}

func (s *WebServer) handleLogout(w http.ResponseWriter, r *http.Request) {
	session := currentSession(r.Context())

	if session.Authenticated() {
		if err := s.apiClient.Logout(r.Context(), session.APIToken); err != nil {
			s.logger.Debug("API logout failed", zap.Error(err))
		}
	}
	session.Clear()

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *WebServer) handleVerifyEmail(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")

	data := map[string]interface{}{
		"Title": "Email verification - Touille",
	}
	if token == "" {
		data["Error"] = "The verification link is missing its token."
	} else if err := s.apiClient.VerifyEmail(r.Context(), token); err != nil {
		data["Error"] = userMessage(err, "That verification link is invalid or expired.")
	} else {
		data["Verified"] = true
	}

	s.renderTemplate(w, r, "verify-email", data)
}

func (s *WebServer) handleRecipeList(w http.ResponseWriter, r *http.Request) {
	session := currentSession(r.Context())

	page := 1
	if p, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil && p > 0 {
		page = p
	}

	list, err := s.apiClient.ListRecipes(r.Context(), session.APIToken, page, 12)
	if err != nil {
		s.renderError(w, r, "Failed to load recipes", err)
		return
	}

	s.renderTemplate(w, r, "recipes", map[string]interface{}{
		"Title":   "My recipes - Touille",
		"List":    list,
		"Error":   r.URL.Query().Get("error"),
		"Message": r.URL.Query().Get("message"),
	})
}

func (s *WebServer) handleRecipeDelete(w http.ResponseWriter, r *http.Request) {
	session := currentSession(r.Context())

	if err := s.apiClient.DeleteRecipe(r.Context(), session.APIToken, chi.URLParam(r, "id")); err != nil {
		s.logger.Warn("Recipe delete failed", zap.Error(err))
		http.Redirect(w, r, "/recipes?error=Could not delete that recipe.", http.StatusSeeOther)
		return
	}

	http.Redirect(w, r, "/recipes?message=Recipe deleted.", http.StatusSeeOther)
}

func (s *WebServer) handleSettingsPage(w http.ResponseWriter, r *http.Request) {
	session := currentSession(r.Context())

	settings, err := s.apiClient.GetSettings(r.Context(), session.APIToken)
	if err != nil {
		s.renderError(w, r, "Failed to load settings", err)
		return
	}

	s.renderTemplate(w, r, "settings", map[string]interface{}{
		"Title":    "Settings - Touille",
		"Settings": settings,
		"Message":  r.URL.Query().Get("message"),
	})
}

func (s *WebServer) handleSettingsUpdate(w http.ResponseWriter, r *http.Request) {
	session := currentSession(r.Context())

	spice, err := strconv.Atoi(r.FormValue("spice_tolerance"))
	if err != nil || spice < 1 || spice > 5 {
		s.renderTemplate(w, r, "settings", map[string]interface{}{
			"Title":    "Settings - Touille",
			"Error":    "Spice tolerance must be a number from 1 to 5.",
			"Settings": settingsFromForm(r),
		})
		return
	}

	payload := SettingsData{SpiceTolerance: spice}
	if v := strings.TrimSpace(r.FormValue("dietary_restrictions")); v != "" {
		payload.DietaryRestrictions = &v
	}
	if v := strings.TrimSpace(r.FormValue("custom_rules")); v != "" {
		payload.CustomRules = &v
	}

	if _, err := s.apiClient.UpdateSettings(r.Context(), session.APIToken, payload); err != nil {
		s.renderTemplate(w, r, "settings", map[string]interface{}{
			"Title":    "Settings - Touille",
			"Error":    userMessage(err, "Could not save your preferences."),
			"Settings": &payload,
		})
		return
	}

	http.Redirect(w, r, "/settings?message=Preferences saved.", http.StatusSeeOther)
}

// HTMX handlers (return partial HTML)

func (s *WebServer) handleHTMXChatStream(w http.ResponseWriter, r *http.Request) {
	session := currentSession(r.Context())

	recipeID := strings.TrimSpace(r.FormValue("recipe_id"))
	message := strings.TrimSpace(r.FormValue("message"))
	step, _ := strconv.Atoi(r.FormValue("step"))

	if recipeID == "" || message == "" {
		s.htmxError(w, http.StatusBadRequest, "The chat needs a recipe and a message.")
		return
	}
	if len(message) > 2000 {
		s.htmxError(w, http.StatusBadRequest, "That message is too long.")
		return
	}

	// The recipe document comes from the API, not the form, so the
	// model context cannot be forged client side.
	recipe, err := s.apiClient.GetRecipe(r.Context(), session.APIToken, recipeID)
	if err != nil {
		status, msg := apiErrorStatus(err)
		s.htmxError(w, status, msg)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		s.htmxError(w, http.StatusInternalServerError, "Streaming is not supported here.")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	payload := StepChatPayload{
		URL:            recipe.URL,
		Recipe:         recipe.Recipe,
		CurrentStep:    step,
		CompletedSteps: session.CompletedSteps(recipe.URL),
		Message:        message,
	}

	if err := s.apiClient.StreamStepChat(r.Context(), session.APIToken, payload, w, flusher.Flush); err != nil {
		s.logger.Warn("Chat relay failed", zap.Error(err))
		event, _ := json.Marshal(map[string]string{"error": userMessage(err, "The chat is unavailable right now.")})
		fmt.Fprintf(w, "data: %s\n\n", event)
		flusher.Flush()
	}
}

func (s *WebServer) handleHTMXChatHistory(w http.ResponseWriter, r *http.Request) {
	session := currentSession(r.Context())

	recipeURL := r.URL.Query().Get("url")
	step, _ := strconv.Atoi(r.URL.Query().Get("step"))
	if recipeURL == "" {
		s.htmxError(w, http.StatusBadRequest, "Missing recipe URL.")
		return
	}

	turns, err := s.apiClient.ChatHistory(r.Context(), session.APIToken, recipeURL, step)
	if err != nil {
		status, msg := apiErrorStatus(err)
		s.htmxError(w, status, msg)
		return
	}

	s.renderFragment(w, r, "fragments/chat-history", map[string]interface{}{
		"Messages": turns,
	})
}

func (s *WebServer) handleHTMXChatClear(w http.ResponseWriter, r *http.Request) {
	session := currentSession(r.Context())

	recipeURL := r.FormValue("url")
	step, _ := strconv.Atoi(r.FormValue("step"))
	if recipeURL == "" {
		s.htmxError(w, http.StatusBadRequest, "Missing recipe URL.")
		return
	}

	if err := s.apiClient.ClearChatHistory(r.Context(), session.APIToken, recipeURL, step); err != nil {
		status, msg := apiErrorStatus(err)
		s.htmxError(w, status, msg)
		return
	}

	s.renderFragment(w, r, "fragments/chat-history", map[string]interface{}{
		"Messages": nil,
	})
}

func (s *WebServer) handleHTMXStepToggle(w http.ResponseWriter, r *http.Request) {
	session := currentSession(r.Context())

	recipeURL := r.FormValue("url")
	step, err := strconv.Atoi(r.FormValue("step"))
	if recipeURL == "" || err != nil || step < 0 {
		s.htmxError(w, http.StatusBadRequest, "Missing recipe URL or step.")
		return
	}

	done := session.ToggleStep(recipeURL, step)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]bool{"done": done})
}

func (s *WebServer) handleHTMXTimers(w http.ResponseWriter, r *http.Request) {
	s.renderTimerList(w, r)
}

func (s *WebServer) handleHTMXTimerStart(w http.ResponseWriter, r *http.Request) {
	session := currentSession(r.Context())

	seconds, err := strconv.ParseFloat(r.FormValue("duration_seconds"), 64)
	if err != nil || seconds <= 0 {
		s.htmxError(w, http.StatusBadRequest, "The timer needs a positive duration.")
		return
	}
	step, _ := strconv.Atoi(r.FormValue("step"))

	_, err = s.apiClient.StartTimer(
		r.Context(),
		session.APIToken,
		strings.TrimSpace(r.FormValue("recipe_id")),
		step,
		strings.TrimSpace(r.FormValue("label")),
		seconds,
	)
	if err != nil {
		status, msg := apiErrorStatus(err)
		s.htmxError(w, status, msg)
		return
	}

	s.renderTimerList(w, r)
}

func (s *WebServer) handleHTMXTimerAction(w http.ResponseWriter, r *http.Request) {
	session := currentSession(r.Context())

	action := chi.URLParam(r, "action")
	switch action {
	case "pause", "resume", "cancel":
	default:
		s.htmxError(w, http.StatusNotFound, "Unknown timer action.")
		return
	}

	if _, err := s.apiClient.TimerAction(r.Context(), session.APIToken, chi.URLParam(r, "id"), action); err != nil {
		status, msg := apiErrorStatus(err)
		s.htmxError(w, status, msg)
		return
	}

	s.renderTimerList(w, r)
}

func (s *WebServer) renderTimerList(w http.ResponseWriter, r *http.Request) {
	session := currentSession(r.Context())

	timers, err := s.apiClient.ListTimers(r.Context(), session.APIToken)
	if err != nil {
		status, msg := apiErrorStatus(err)
		s.htmxError(w, status, msg)
		return
	}

	s.renderFragment(w, r, "fragments/timers", map[string]interface{}{
		"Timers": timers,
	})
}

// Helper methods

func (s *WebServer) signIn(w http.ResponseWriter, session *Session, auth *AuthData) {
	name := ""
	userID := ""
	if auth.User != nil {
		name = auth.User.Name
		userID = auth.User.ID
	}
	session.SignIn(userID, name, auth.SessionToken)
	s.sessions.Save(w, session)
}

func (s *WebServer) templateData(r *http.Request, data map[string]interface{}) map[string]interface{} {
	if data == nil {
		data = make(map[string]interface{})
	}
	if data["Title"] == nil {
		data["Title"] = "Touille"
	}

	if session := currentSession(r.Context()); session != nil {
		data["IsAuthenticated"] = session.Authenticated()
		data["UserName"] = session.UserName
		if token, err := s.tokens.GenerateCSRFToken(security.SessionRef(session.ID)); err == nil {
			data["CSRFToken"] = token
		} else {
			s.logger.Error("Failed to generate CSRF token", zap.Error(err))
		}
	}

	return data
}

func (s *WebServer) renderTemplate(w http.ResponseWriter, r *http.Request, name string, data map[string]interface{}) {
	s.renderTemplateStatus(w, r, http.StatusOK, name, data)
}

func (s *WebServer) renderTemplateStatus(w http.ResponseWriter, r *http.Request, status int, name string, data map[string]interface{}) {
	td := s.templateData(r, data)

	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, td); err != nil {
		s.logger.Error("Failed to execute template",
			zap.String("template", name),
			zap.Error(err),
		)
		buf.Reset()
		fmt.Fprintf(&buf, `<!DOCTYPE html>
<html>
<head><title>%s</title></head>
<body>
	<h1>Touille</h1>
	<p>This page failed to render. Head back <a href="/">home</a>.</p>
</body>
</html>`, template.HTMLEscapeString(fmt.Sprint(td["Title"])))
		status = http.StatusInternalServerError
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}

func (s *WebServer) renderFragment(w http.ResponseWriter, r *http.Request, name string, data map[string]interface{}) {
	td := s.templateData(r, data)

	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, td); err != nil {
		s.logger.Error("Failed to execute fragment",
			zap.String("template", name),
			zap.Error(err),
		)
		s.htmxError(w, http.StatusInternalServerError, "This part of the page failed to render.")
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	buf.WriteTo(w)
}

func (s *WebServer) renderError(w http.ResponseWriter, r *http.Request, message string, err error) {
	s.logger.Error(message, zap.Error(err))
	status, _ := apiErrorStatus(err)
	s.renderErrorPage(w, r, status, message)
}

func (s *WebServer) renderErrorPage(w http.ResponseWriter, r *http.Request, status int, message string) {
	s.renderTemplateStatus(w, r, status, "error", map[string]interface{}{
		"Title":   "Something went wrong - Touille",
		"Status":  status,
		"Message": message,
	})
}

func (s *WebServer) htmxError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	fmt.Fprintf(w, `<div class="error">%s</div>`, template.HTMLEscapeString(message))
}

// userMessage prefers the API's own message and falls back when the
// failure was not a clean API error.
func userMessage(err error, fallback string) string {
	if apiErr, ok := err.(*APIError); ok && apiErr.Message != "" {
		return apiErr.Message
	}
	return fallback
}

func apiErrorStatus(err error) (int, string) {
	if apiErr, ok := err.(*APIError); ok {
		return apiErr.Status, apiErr.Message
	}
	return http.StatusInternalServerError, "Something went wrong. Try again."
}

func safeRedirect(target string) string {
	if target == "" || !strings.HasPrefix(target, "/") || strings.HasPrefix(target, "//") {
		return "/recipes"
	}
	return target
}

func loginFlash(code string) string {
	switch code {
	case "session_expired":
		return "Your session expired. Log in again."
	case "":
		return ""
	default:
		return code
	}
}

func settingsFromForm(r *http.Request) *SettingsData {
	settings := &SettingsData{SpiceTolerance: 2}
	if v := strings.TrimSpace(r.FormValue("dietary_restrictions")); v != "" {
		settings.DietaryRestrictions = &v
	}
	if v := strings.TrimSpace(r.FormValue("custom_rules")); v != "" {
		settings.CustomRules = &v
	}
	return settings
}
