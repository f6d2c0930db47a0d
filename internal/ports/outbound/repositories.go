// Package outbound defines the interfaces for outbound ports (secondary/driven adapters)
// These are the interfaces that the application uses to interact with external systems
package outbound

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/yambati03/touille/internal/domain/recipe"
	"github.com/yambati03/touille/internal/domain/user"
)

// RecipeRepository defines the interface for recipe persistence.
// Saves are upserts keyed on (url, user_id) so reprocessing a video
// replaces the stored extraction instead of duplicating it.
type RecipeRepository interface {
	Upsert(ctx context.Context, rec *recipe.Recipe) error
	FindByID(ctx context.Context, id uuid.UUID) (*recipe.Recipe, error)
	FindByURL(ctx context.Context, url, userID string) (*recipe.Recipe, error)
	FindByUserID(ctx context.Context, userID string, offset, limit int) ([]*recipe.Recipe, int, error)
	Delete(ctx context.Context, id uuid.UUID, userID string) error
}

// UserRepository defines the interface for user persistence
type UserRepository interface {
	Create(ctx context.Context, u *user.User) error
	Update(ctx context.Context, u *user.User) error
	FindByID(ctx context.Context, id string) (*user.User, error)
	FindByEmail(ctx context.Context, email string) (*user.User, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
}

// SessionRepository defines the interface for login session persistence
type SessionRepository interface {
	Create(ctx context.Context, s *user.Session) error
	Update(ctx context.Context, s *user.Session) error
	FindByToken(ctx context.Context, token string) (*user.Session, error)
	Delete(ctx context.Context, token string) error
	DeleteByUserID(ctx context.Context, userID string) error
	DeleteExpired(ctx context.Context) (int64, error)
}

// SettingsRepository defines the interface for the per-user preference
// record. Find returns user.ErrUserNotFound semantics via a nil record,
// callers fall back to user.DefaultSettings.
type SettingsRepository interface {
	Find(ctx context.Context, userID string) (*user.Settings, error)
	Upsert(ctx context.Context, s *user.Settings) error
}

// VerificationRepository stores single-use email verification tokens.
// Consume removes the token on a successful match so a link cannot be
// replayed.
type VerificationRepository interface {
	Save(ctx context.Context, identifier, value string, expiresAt time.Time) error
	Consume(ctx context.Context, identifier, value string) (bool, error)
	DeleteExpired(ctx context.Context) (int64, error)
}

// CacheRepository defines the interface for caching operations
type CacheRepository interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	Increment(ctx context.Context, key string, ttl time.Duration) (int64, error)
}

// StatsRepository serves the operator CLI and the ops endpoints with
// read-only aggregates straight from the database.
type StatsRepository interface {
	CountRecipes(ctx context.Context) (int64, error)
	CountUsers(ctx context.Context) (int64, error)
	RecipesPerUser(ctx context.Context, limit int) ([]UserRecipeCount, error)
	RecentRecipes(ctx context.Context, since time.Time) (int64, error)
}

// UserRecipeCount is a single row of the per-user recipe aggregate.
type UserRecipeCount struct {
	UserID string
	Count  int64
}
