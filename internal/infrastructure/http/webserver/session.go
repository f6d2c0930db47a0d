// Package webserver provides session management for the web frontend
package webserver

import (
	"crypto/rand"
	"encoding/base64"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/yambati03/touille/internal/infrastructure/config"
)

// sessionCookieName is the browser cookie carrying the session ID.
const sessionCookieName = "touille_session"

// Session is one browser's state. The API session token never reaches
// the browser; it lives here and every proxied request attaches it.
type Session struct {
	ID        string
	UserID    string
	UserName  string
	APIToken  string
	CreatedAt time.Time
	ExpiresAt time.Time

	mu sync.Mutex
	// completedSteps records checked-off cooking steps per recipe URL,
	// so cook mode survives a page reload.
	completedSteps map[string]map[int]bool
}

// SessionStore manages browser sessions in memory
type SessionStore struct {
	sessions map[string]*Session
	mu       sync.RWMutex
	ttl      time.Duration
	secure   bool
	logger   *zap.Logger
}

// NewSessionStore creates a new session store
func NewSessionStore(cfg *config.Config, logger *zap.Logger) *SessionStore {
	ttl := cfg.Web.SessionTTL
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}

	store := &SessionStore{
		sessions: make(map[string]*Session),
		ttl:      ttl,
		secure:   cfg.Web.SecureCookies,
		logger:   logger.Named("web-sessions"),
	}

	go store.cleanupExpired()

	return store
}

// Get retrieves the session referenced by the request cookie
func (s *SessionStore) Get(r *http.Request) (*Session, error) {
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	session, exists := s.sessions[cookie.Value]
	s.mu.RUnlock()

	if !exists {
		return nil, http.ErrNoCookie
	}

	if time.Now().After(session.ExpiresAt) {
		s.Delete(session.ID)
		return nil, http.ErrNoCookie
	}

	return session, nil
}

// New creates a new session
func (s *SessionStore) New() *Session {
	session := &Session{
		ID:             newSessionID(),
		CreatedAt:      time.Now(),
		ExpiresAt:      time.Now().Add(s.ttl),
		completedSteps: make(map[string]map[int]bool),
	}

	s.mu.Lock()
	s.sessions[session.ID] = session
	s.mu.Unlock()

	return session
}

// Save sets the session cookie on the response
func (s *SessionStore) Save(w http.ResponseWriter, session *Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    session.ID,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
		Expires:  session.ExpiresAt,
		MaxAge:   int(time.Until(session.ExpiresAt).Seconds()),
	})
}

// Extend gives a session past the halfway point of its lifetime the
// full TTL again. Reports whether the expiry moved.
func (s *SessionStore) Extend(session *Session) bool {
	if time.Until(session.ExpiresAt) > s.ttl/2 {
		return false
	}
	session.ExpiresAt = time.Now().Add(s.ttl)
	return true
}

// Delete removes a session
func (s *SessionStore) Delete(sessionID string) {
	s.mu.Lock()
	delete(s.sessions, sessionID)
	s.mu.Unlock()
}

// Authenticated reports whether the session holds a live API token.
func (session *Session) Authenticated() bool {
	return session.UserID != "" && session.APIToken != ""
}

// SignIn binds the session to an account
func (session *Session) SignIn(userID, userName, apiToken string) {
	session.UserID = userID
	session.UserName = userName
	session.APIToken = apiToken
}

// Clear detaches the session from its account. Step toggles stay so an
// anonymous cook does not lose their place.
func (session *Session) Clear() {
	session.UserID = ""
	session.UserName = ""
	session.APIToken = ""
}

// ToggleStep flips a step's checked-off state and reports the new one.
func (session *Session) ToggleStep(recipeURL string, step int) bool {
	session.mu.Lock()
	defer session.mu.Unlock()

	steps, ok := session.completedSteps[recipeURL]
	if !ok {
		steps = make(map[int]bool)
		session.completedSteps[recipeURL] = steps
	}

	steps[step] = !steps[step]
	return steps[step]
}

// CompletedSteps lists the checked-off steps for a recipe, sorted by
// the caller if order matters.
func (session *Session) CompletedSteps(recipeURL string) []int {
	session.mu.Lock()
	defer session.mu.Unlock()

	steps := session.completedSteps[recipeURL]
	out := make([]int, 0, len(steps))
	for step, done := range steps {
		if done {
			out = append(out, step)
		}
	}
	return out
}

// StepDone reports one step's checked-off state.
func (session *Session) StepDone(recipeURL string, step int) bool {
	session.mu.Lock()
	defer session.mu.Unlock()
	return session.completedSteps[recipeURL][step]
}

// cleanupExpired removes expired sessions periodically
func (s *SessionStore) cleanupExpired() {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for range ticker.C {
		s.mu.Lock()
		now := time.Now()
		for id, session := range s.sessions {
			if now.After(session.ExpiresAt) {
				delete(s.sessions, id)
				s.logger.Debug("Cleaned up expired session", zap.String("session_id", id))
			}
		}
		s.mu.Unlock()
	}
}

// newSessionID generates a random session ID
func newSessionID() string {
	b := make([]byte, 32)
	rand.Read(b)
	return base64.URLEncoding.EncodeToString(b)
}
