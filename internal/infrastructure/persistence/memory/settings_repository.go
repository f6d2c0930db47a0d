package memory

import (
	"context"
	"sync"

	"github.com/yambati03/touille/internal/domain/user"
	"github.com/yambati03/touille/internal/ports/outbound"
)

// SettingsRepository implements the settings repository interface in
// memory
type SettingsRepository struct {
	mu     sync.RWMutex
	byUser map[string]*user.Settings
}

// NewSettingsRepository creates a new in-memory settings repository
func NewSettingsRepository() outbound.SettingsRepository {
	return &SettingsRepository{
		byUser: make(map[string]*user.Settings),
	}
}

// Find returns the stored preference record, or nil when the user has
// never saved one. Callers fall back to defaults on nil.
func (r *SettingsRepository) Find(ctx context.Context, userID string) (*user.Settings, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.byUser[userID], nil
}

// Upsert stores a preference record, replacing any previous one
func (r *SettingsRepository) Upsert(ctx context.Context, s *user.Settings) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.byUser[s.UserID()] = s
	return nil
}
