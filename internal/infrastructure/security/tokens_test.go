package security

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"

	"github.com/yambati03/touille/internal/infrastructure/config"
)

// TokenServiceTestSuite provides a test suite for TokenService
type TokenServiceTestSuite struct {
	suite.Suite
	tokens *TokenService
}

func (suite *TokenServiceTestSuite) SetupSuite() {
	cfg := &config.Config{
		Auth: config.AuthConfig{
			JWTSecret: "test-secret-key-for-testing-only-32-bytes",
		},
	}
	suite.tokens = NewTokenService(cfg, zap.NewNop())
}

func (suite *TokenServiceTestSuite) TestCSRFTokenRoundTrip() {
	ref := SessionRef("session-token-abc")

	token, err := suite.tokens.GenerateCSRFToken(ref)
	require.NoError(suite.T(), err)
	assert.NotEmpty(suite.T(), token)

	err = suite.tokens.ValidateCSRFToken(token, ref)
	assert.NoError(suite.T(), err)
}

func (suite *TokenServiceTestSuite) TestCSRFTokenRejectsWrongSession() {
	token, err := suite.tokens.GenerateCSRFToken(SessionRef("session-a"))
	require.NoError(suite.T(), err)

	err = suite.tokens.ValidateCSRFToken(token, SessionRef("session-b"))
	assert.ErrorIs(suite.T(), err, ErrTokenSessionMismatch)
}

func (suite *TokenServiceTestSuite) TestCSRFTokenRejectsTampering() {
	err := suite.tokens.ValidateCSRFToken("not-a-token", SessionRef("session-a"))
	assert.Error(suite.T(), err)

	other := NewTokenService(&config.Config{
		Auth: config.AuthConfig{JWTSecret: "a-completely-different-signing-key!!"},
	}, zap.NewNop())
	token, err := other.GenerateCSRFToken(SessionRef("session-a"))
	require.NoError(suite.T(), err)

	err = suite.tokens.ValidateCSRFToken(token, SessionRef("session-a"))
	assert.Error(suite.T(), err)
}

func (suite *TokenServiceTestSuite) TestSessionRefIsStableAndOpaque() {
	ref := SessionRef("session-token-abc")

	assert.Equal(suite.T(), ref, SessionRef("session-token-abc"))
	assert.NotEqual(suite.T(), ref, SessionRef("session-token-abd"))
	assert.NotContains(suite.T(), ref, "session-token")
	assert.Len(suite.T(), ref, 32)
}

func TestTokenServiceTestSuite(t *testing.T) {
	suite.Run(t, new(TokenServiceTestSuite))
}

func TestBackupCodeGeneration(t *testing.T) {
	service := &MFAService{logger: zap.NewNop()}

	codes, err := service.generateBackupCodes(backupCodeCount)
	require.NoError(t, err)
	require.Len(t, codes, backupCodeCount)

	seen := make(map[string]bool)
	for _, code := range codes {
		assert.Len(t, code, 8)
		assert.Equal(t, code, string([]rune(code)), "codes are plain ASCII")
		assert.False(t, seen[code], "codes must not repeat")
		seen[code] = true
	}
}
