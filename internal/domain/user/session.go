package user

import (
	"crypto/rand"
	"encoding/base64"
	"time"

	"github.com/google/uuid"
)

// Session is a server-side login session. The opaque token travels in a
// cookie; everything else stays in storage.
type Session struct {
	id        string
	userID    string
	token     string
	expiresAt time.Time
	ipAddress string
	userAgent string
	createdAt time.Time
	updatedAt time.Time
}

// NewSession creates a session for the given user with a fresh random token.
func NewSession(userID string, ttl time.Duration, ipAddress, userAgent string) (*Session, error) {
	if userID == "" {
		return nil, ErrUserIDRequired
	}
	if ttl <= 0 {
		return nil, ErrSessionTTLInvalid
	}

	token, err := generateSessionToken()
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	return &Session{
		id:        uuid.NewString(),
		userID:    userID,
		token:     token,
		expiresAt: now.Add(ttl),
		ipAddress: ipAddress,
		userAgent: userAgent,
		createdAt: now,
		updatedAt: now,
	}, nil
}

// ReconstructSession rebuilds a Session from storage.
func ReconstructSession(id, userID, token string, expiresAt time.Time, ipAddress, userAgent string, createdAt, updatedAt time.Time) *Session {
	return &Session{
		id:        id,
		userID:    userID,
		token:     token,
		expiresAt: expiresAt,
		ipAddress: ipAddress,
		userAgent: userAgent,
		createdAt: createdAt,
		updatedAt: updatedAt,
	}
}

// ID returns the session's ID.
func (s *Session) ID() string { return s.id }

// UserID returns the owning user's ID.
func (s *Session) UserID() string { return s.userID }

// Token returns the opaque session token.
func (s *Session) Token() string { return s.token }

// ExpiresAt returns when the session expires.
func (s *Session) ExpiresAt() time.Time { return s.expiresAt }

// IPAddress returns the client address recorded at login.
func (s *Session) IPAddress() string { return s.ipAddress }

// UserAgent returns the client user agent recorded at login.
func (s *Session) UserAgent() string { return s.userAgent }

// CreatedAt returns when the session was created.
func (s *Session) CreatedAt() time.Time { return s.createdAt }

// UpdatedAt returns when the session was last touched.
func (s *Session) UpdatedAt() time.Time { return s.updatedAt }

// Expired reports whether the session is past its expiry.
func (s *Session) Expired() bool {
	return time.Now().UTC().After(s.expiresAt)
}

// Extend pushes the expiry forward. Used by sliding-window session
// refresh on authenticated requests.
func (s *Session) Extend(ttl time.Duration) error {
	if ttl <= 0 {
		return ErrSessionTTLInvalid
	}
	now := time.Now().UTC()
	s.expiresAt = now.Add(ttl)
	s.updatedAt = now
	return nil
}

func generateSessionToken() (string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", ErrTokenGeneration
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}
