package user_test

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/yambati03/touille/internal/domain/user"
)

// UserTestSuite tests the user aggregate
type UserTestSuite struct {
	suite.Suite
}

func TestUserSuite(t *testing.T) {
	suite.Run(t, new(UserTestSuite))
}

func (s *UserTestSuite) TestNewUser() {
	s.Run("creates user with valid input", func() {
		// Arrange & Act
		u, err := user.NewUser("Maya Chen", "Maya@Example.COM ", "plentystrong")

		// Assert
		require.NoError(s.T(), err)
		assert.NotEmpty(s.T(), u.ID())
		assert.Equal(s.T(), "Maya Chen", u.Name())
		assert.Equal(s.T(), "maya@example.com", u.Email())
		assert.False(s.T(), u.EmailVerified())
		assert.False(s.T(), u.MFAEnabled())
		assert.NotEqual(s.T(), "plentystrong", u.PasswordHash())

		events := u.Events()
		require.Len(s.T(), events, 1)
		assert.Equal(s.T(), "user.registered", events[0].EventName())
	})

	s.Run("rejects invalid email", func() {
		// Arrange & Act
		_, err := user.NewUser("Maya Chen", "not-an-email", "plentystrong")

		// Assert
		assert.ErrorIs(s.T(), err, user.ErrEmailInvalid)
	})

	s.Run("rejects short password", func() {
		// Arrange & Act
		_, err := user.NewUser("Maya Chen", "maya@example.com", "short")

		// Assert
		assert.ErrorIs(s.T(), err, user.ErrPasswordTooShort)
	})

	s.Run("rejects short name", func() {
		// Arrange & Act
		_, err := user.NewUser("M", "maya@example.com", "plentystrong")

		// Assert
		assert.ErrorIs(s.T(), err, user.ErrNameTooShort)
	})
}

func (s *UserTestSuite) TestPasswords() {
	s.Run("check accepts the original password", func() {
		// Arrange
		u, err := user.NewUser("Maya Chen", "maya@example.com", "plentystrong")
		require.NoError(s.T(), err)

		// Act & Assert
		assert.NoError(s.T(), u.CheckPassword("plentystrong"))
		assert.ErrorIs(s.T(), u.CheckPassword("wrong"), user.ErrInvalidPassword)
	})

	s.Run("update replaces the hash", func() {
		// Arrange
		u, err := user.NewUser("Maya Chen", "maya@example.com", "plentystrong")
		require.NoError(s.T(), err)

		// Act
		err = u.UpdatePassword("evenstronger1")

		// Assert
		require.NoError(s.T(), err)
		assert.NoError(s.T(), u.CheckPassword("evenstronger1"))
		assert.Error(s.T(), u.CheckPassword("plentystrong"))
	})
}

func (s *UserTestSuite) TestVerifyEmail() {
	// Arrange
	u, err := user.NewUser("Maya Chen", "maya@example.com", "plentystrong")
	require.NoError(s.T(), err)
	u.Events()

	// Act
	u.VerifyEmail()
	u.VerifyEmail()

	// Assert
	assert.True(s.T(), u.EmailVerified())
	events := u.Events()
	require.Len(s.T(), events, 1, "verifying twice should raise a single event")
	assert.Equal(s.T(), "user.email_verified", events[0].EventName())
}

func TestSettingsValidation(t *testing.T) {
	tests := []struct {
		name      string
		tolerance int
		wantErr   error
	}{
		{name: "minimum tolerance", tolerance: 1},
		{name: "maximum tolerance", tolerance: 5},
		{name: "below range", tolerance: 0, wantErr: user.ErrSpiceToleranceOutOfRange},
		{name: "above range", tolerance: 6, wantErr: user.ErrSpiceToleranceOutOfRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := user.NewSettings("user-1", nil, tt.tolerance, nil)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestSettingsNormalization(t *testing.T) {
	t.Run("blank text becomes nil", func(t *testing.T) {
		blank := "   "
		settings, err := user.NewSettings("user-1", &blank, 3, &blank)
		require.NoError(t, err)
		assert.Nil(t, settings.DietaryRestrictions())
		assert.Nil(t, settings.CustomRules())
	})

	t.Run("oversized text is rejected", func(t *testing.T) {
		long := strings.Repeat("x", 2001)
		_, err := user.NewSettings("user-1", &long, 3, nil)
		assert.ErrorIs(t, err, user.ErrSettingsTextTooLong)
	})

	t.Run("defaults carry tolerance 2", func(t *testing.T) {
		settings := user.DefaultSettings("user-1")
		assert.Equal(t, 2, settings.SpiceTolerance())
		assert.True(t, settings.IsDefault())
	})
}

func TestSessionLifecycle(t *testing.T) {
	t.Run("new session carries a fresh token", func(t *testing.T) {
		sess, err := user.NewSession("user-1", time.Hour, "10.0.0.1", "touille-web")
		require.NoError(t, err)
		assert.NotEmpty(t, sess.Token())
		assert.False(t, sess.Expired())

		other, err := user.NewSession("user-1", time.Hour, "10.0.0.1", "touille-web")
		require.NoError(t, err)
		assert.NotEqual(t, sess.Token(), other.Token())
	})

	t.Run("extend pushes expiry forward", func(t *testing.T) {
		sess, err := user.NewSession("user-1", time.Minute, "10.0.0.1", "touille-web")
		require.NoError(t, err)
		before := sess.ExpiresAt()

		require.NoError(t, sess.Extend(2*time.Hour))
		assert.True(t, sess.ExpiresAt().After(before))
	})

	t.Run("rejects non-positive ttl", func(t *testing.T) {
		_, err := user.NewSession("user-1", 0, "", "")
		assert.ErrorIs(t, err, user.ErrSessionTTLInvalid)
	})
}
