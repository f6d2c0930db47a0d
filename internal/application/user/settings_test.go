package user

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/yambati03/touille/internal/domain/recipe"
	"github.com/yambati03/touille/internal/domain/user"
	"github.com/yambati03/touille/internal/ports/inbound"
	apperrors "github.com/yambati03/touille/pkg/errors"
)

// MockSettingsRepository is a mock implementation of the settings repository
type MockSettingsRepository struct {
	mock.Mock
}

func (m *MockSettingsRepository) Find(ctx context.Context, userID string) (*user.Settings, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*user.Settings), args.Error(1)
}

func (m *MockSettingsRepository) Upsert(ctx context.Context, s *user.Settings) error {
	args := m.Called(ctx, s)
	return args.Error(0)
}

func TestGetSettingsFallsBackToDefaults(t *testing.T) {
	repo := new(MockSettingsRepository)
	svc := NewSettingsService(repo, zaptest.NewLogger(t))

	repo.On("Find", mock.Anything, "user-1").Return(nil, nil).Once()

	dto, err := svc.GetSettings(context.Background(), "user-1")
	require.NoError(t, err)

	assert.Equal(t, user.SpiceToleranceDefault, dto.SpiceTolerance)
	assert.Nil(t, dto.DietaryRestrictions)
	assert.Nil(t, dto.CustomRules)
}

func TestGetSettingsReturnsStoredRecord(t *testing.T) {
	repo := new(MockSettingsRepository)
	svc := NewSettingsService(repo, zaptest.NewLogger(t))

	dietary := "vegetarian"
	stored, err := user.NewSettings("user-1", &dietary, 4, nil)
	require.NoError(t, err)
	repo.On("Find", mock.Anything, "user-1").Return(stored, nil).Once()

	dto, err := svc.GetSettings(context.Background(), "user-1")
	require.NoError(t, err)

	require.NotNil(t, dto.DietaryRestrictions)
	assert.Equal(t, "vegetarian", *dto.DietaryRestrictions)
	assert.Equal(t, 4, dto.SpiceTolerance)
}

func TestUpdateSettingsStoresRecord(t *testing.T) {
	repo := new(MockSettingsRepository)
	svc := NewSettingsService(repo, zaptest.NewLogger(t))

	repo.On("Upsert", mock.Anything, mock.Anything).Return(nil).Once()

	custom := "no cilantro"
	dto, err := svc.UpdateSettings(context.Background(), inbound.UpdateSettingsCommand{
		UserID:         "user-1",
		SpiceTolerance: 2,
		CustomRules:    &custom,
	})
	require.NoError(t, err)

	assert.Equal(t, 2, dto.SpiceTolerance)
	require.NotNil(t, dto.CustomRules)
	assert.Equal(t, "no cilantro", *dto.CustomRules)
	repo.AssertExpectations(t)
}

func TestUpdateSettingsRejectsSpiceOutOfRange(t *testing.T) {
	repo := new(MockSettingsRepository)
	svc := NewSettingsService(repo, zaptest.NewLogger(t))

	_, err := svc.UpdateSettings(context.Background(), inbound.UpdateSettingsCommand{
		UserID:         "user-1",
		SpiceTolerance: 11,
	})
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeValidationFailed, apperrors.GetCode(err))
	repo.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything)
}

func TestSettingsWithoutUserLandOnAnonymousRecord(t *testing.T) {
	repo := new(MockSettingsRepository)
	svc := NewSettingsService(repo, zaptest.NewLogger(t))

	repo.On("Find", mock.Anything, recipe.AnonymousUserID).Return(nil, nil).Once()
	repo.On("Upsert", mock.Anything, mock.MatchedBy(func(s *user.Settings) bool {
		return s.UserID() == recipe.AnonymousUserID
	})).Return(nil).Once()

	_, err := svc.GetSettings(context.Background(), "")
	require.NoError(t, err)

	_, err = svc.UpdateSettings(context.Background(), inbound.UpdateSettingsCommand{
		SpiceTolerance: 4,
	})
	require.NoError(t, err)
	repo.AssertExpectations(t)
}
