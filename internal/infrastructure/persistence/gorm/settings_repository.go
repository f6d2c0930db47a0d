package gorm

import (
	"context"
	"errors"

	gormlib "gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yambati03/touille/internal/domain/user"
	"github.com/yambati03/touille/internal/ports/outbound"
)

// SettingsRepository implements the preference record repository using GORM
type SettingsRepository struct {
	db *gormlib.DB
}

// NewSettingsRepository creates a new settings repository
func NewSettingsRepository(db *gormlib.DB) outbound.SettingsRepository {
	return &SettingsRepository{db: db}
}

// Find returns the stored preference record, or nil when the user has
// never saved one. Callers fall back to defaults on nil.
func (r *SettingsRepository) Find(ctx context.Context, userID string) (*user.Settings, error) {
	var model UserSettingsModel

	result := r.db.WithContext(ctx).First(&model, "user_id = ?", userID)
	if result.Error != nil {
		if errors.Is(result.Error, gormlib.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}

	return ModelToSettings(&model), nil
}

// Upsert stores a preference record, replacing any previous one
func (r *SettingsRepository) Upsert(ctx context.Context, s *user.Settings) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"dietary_restrictions", "spice_tolerance", "custom_rules", "updated_at",
			}),
		}).
		Create(SettingsToModel(s)).Error
}
