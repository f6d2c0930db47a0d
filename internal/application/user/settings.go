package user

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/yambati03/touille/internal/domain/recipe"
	"github.com/yambati03/touille/internal/domain/user"
	"github.com/yambati03/touille/internal/ports/inbound"
	"github.com/yambati03/touille/internal/ports/outbound"
	apperrors "github.com/yambati03/touille/pkg/errors"
)

// SettingsService implements the preference record use cases. A user
// without a stored record reads as the defaults; the first write
// creates the row. Requests with no signed-in user share one record
// keyed by the anonymous principal.
type SettingsService struct {
	settingsRepo outbound.SettingsRepository
	logger       *zap.Logger
}

// NewSettingsService creates a new settings service
func NewSettingsService(settingsRepo outbound.SettingsRepository, logger *zap.Logger) inbound.SettingsService {
	return &SettingsService{
		settingsRepo: settingsRepo,
		logger:       logger.Named("settings-service"),
	}
}

// GetSettings returns the stored preference record or the defaults.
func (s *SettingsService) GetSettings(ctx context.Context, userID string) (*inbound.SettingsDTO, error) {
	if userID == "" {
		userID = recipe.AnonymousUserID
	}
	settings, err := s.settingsRepo.Find(ctx, userID)
	if err != nil {
		return nil, apperrors.NewDatabaseError("find settings", err)
	}
	if settings == nil {
		settings = user.DefaultSettings(userID)
	}
	return s.entityToDTO(settings), nil
}

// UpdateSettings replaces the preference record wholesale. Absent
// optional fields clear their stored values.
func (s *SettingsService) UpdateSettings(ctx context.Context, cmd inbound.UpdateSettingsCommand) (*inbound.SettingsDTO, error) {
	if cmd.UserID == "" {
		cmd.UserID = recipe.AnonymousUserID
	}
	settings, err := user.NewSettings(cmd.UserID, cmd.DietaryRestrictions, cmd.SpiceTolerance, cmd.CustomRules)
	if err != nil {
		if errors.Is(err, user.ErrSpiceToleranceOutOfRange) ||
			errors.Is(err, user.ErrSettingsTextTooLong) ||
			errors.Is(err, user.ErrUserIDRequired) {
			return nil, apperrors.NewValidationError(err.Error())
		}
		return nil, apperrors.NewInternalError("failed to build settings").WithCause(err)
	}

	if err := s.settingsRepo.Upsert(ctx, settings); err != nil {
		return nil, apperrors.NewDatabaseError("store settings", err)
	}

	s.logger.Info("Settings updated",
		zap.String("user_id", cmd.UserID),
		zap.Int("spice_tolerance", settings.SpiceTolerance()),
	)
	return s.entityToDTO(settings), nil
}

func (s *SettingsService) entityToDTO(settings *user.Settings) *inbound.SettingsDTO {
	return &inbound.SettingsDTO{
		DietaryRestrictions: settings.DietaryRestrictions(),
		SpiceTolerance:      settings.SpiceTolerance(),
		CustomRules:         settings.CustomRules(),
		UpdatedAt:           settings.UpdatedAt(),
	}
}
