package gorm

import (
	"context"
	"errors"
	"time"

	gormlib "gorm.io/gorm"

	"github.com/yambati03/touille/internal/domain/user"
	"github.com/yambati03/touille/internal/ports/outbound"
)

// SessionRepository implements the session repository interface using GORM
type SessionRepository struct {
	db *gormlib.DB
}

// NewSessionRepository creates a new session repository
func NewSessionRepository(db *gormlib.DB) outbound.SessionRepository {
	return &SessionRepository{db: db}
}

// Create stores a new session
func (r *SessionRepository) Create(ctx context.Context, s *user.Session) error {
	return r.db.WithContext(ctx).Create(SessionToModel(s)).Error
}

// Update saves a refreshed session
func (r *SessionRepository) Update(ctx context.Context, s *user.Session) error {
	result := r.db.WithContext(ctx).Save(SessionToModel(s))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return user.ErrSessionNotFound
	}
	return nil
}

// FindByToken resolves a session token. Expired rows are reported as
// expired, cleanup happens separately.
func (r *SessionRepository) FindByToken(ctx context.Context, token string) (*user.Session, error) {
	var model SessionModel

	result := r.db.WithContext(ctx).First(&model, "token = ?", token)
	if result.Error != nil {
		if errors.Is(result.Error, gormlib.ErrRecordNotFound) {
			return nil, user.ErrSessionNotFound
		}
		return nil, result.Error
	}

	session := ModelToSession(&model)
	if session.Expired() {
		return nil, user.ErrSessionExpired
	}

	return session, nil
}

// Delete removes a session by token
func (r *SessionRepository) Delete(ctx context.Context, token string) error {
	return r.db.WithContext(ctx).
		Delete(&SessionModel{}, "token = ?", token).Error
}

// DeleteByUserID removes every session belonging to a user
func (r *SessionRepository) DeleteByUserID(ctx context.Context, userID string) error {
	return r.db.WithContext(ctx).
		Delete(&SessionModel{}, `"userId" = ?`, userID).Error
}

// DeleteExpired removes sessions past their expiry and returns the count
func (r *SessionRepository) DeleteExpired(ctx context.Context) (int64, error) {
	result := r.db.WithContext(ctx).
		Delete(&SessionModel{}, `"expiresAt" < ?`, time.Now().UTC())
	return result.RowsAffected, result.Error
}
