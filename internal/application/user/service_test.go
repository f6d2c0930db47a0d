package user

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/yambati03/touille/internal/domain/user"
	"github.com/yambati03/touille/internal/ports/inbound"
	"github.com/yambati03/touille/internal/ports/outbound"
	apperrors "github.com/yambati03/touille/pkg/errors"
)

const testJWTSecret = "test-secret-key-for-verification"

// MockUserRepository is a mock implementation of the user repository
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) Create(ctx context.Context, u *user.User) error {
	args := m.Called(ctx, u)
	return args.Error(0)
}

func (m *MockUserRepository) Update(ctx context.Context, u *user.User) error {
	args := m.Called(ctx, u)
	return args.Error(0)
}

func (m *MockUserRepository) FindByID(ctx context.Context, id string) (*user.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*user.User), args.Error(1)
}

func (m *MockUserRepository) FindByEmail(ctx context.Context, email string) (*user.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*user.User), args.Error(1)
}

func (m *MockUserRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	args := m.Called(ctx, email)
	return args.Bool(0), args.Error(1)
}

// MockSessionRepository is a mock implementation of the session repository
type MockSessionRepository struct {
	mock.Mock
}

func (m *MockSessionRepository) Create(ctx context.Context, s *user.Session) error {
	args := m.Called(ctx, s)
	return args.Error(0)
}

func (m *MockSessionRepository) Update(ctx context.Context, s *user.Session) error {
	args := m.Called(ctx, s)
	return args.Error(0)
}

func (m *MockSessionRepository) FindByToken(ctx context.Context, token string) (*user.Session, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*user.Session), args.Error(1)
}

func (m *MockSessionRepository) Delete(ctx context.Context, token string) error {
	args := m.Called(ctx, token)
	return args.Error(0)
}

func (m *MockSessionRepository) DeleteByUserID(ctx context.Context, userID string) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

func (m *MockSessionRepository) DeleteExpired(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

// MockVerificationRepository is a mock implementation of the verification repository
type MockVerificationRepository struct {
	mock.Mock
}

func (m *MockVerificationRepository) Save(ctx context.Context, identifier, value string, expiresAt time.Time) error {
	args := m.Called(ctx, identifier, value, expiresAt)
	return args.Error(0)
}

func (m *MockVerificationRepository) Consume(ctx context.Context, identifier, value string) (bool, error) {
	args := m.Called(ctx, identifier, value)
	return args.Bool(0), args.Error(1)
}

func (m *MockVerificationRepository) DeleteExpired(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

// MockMFAManager is a mock implementation of the MFA manager
type MockMFAManager struct {
	mock.Mock
}

func (m *MockMFAManager) BeginSetup(ctx context.Context, userID, accountName string) (*outbound.TOTPSetup, error) {
	args := m.Called(ctx, userID, accountName)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*outbound.TOTPSetup), args.Error(1)
}

func (m *MockMFAManager) Activate(ctx context.Context, userID, code string) ([]string, error) {
	args := m.Called(ctx, userID, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockMFAManager) Disable(ctx context.Context, userID string) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

func (m *MockMFAManager) Enabled(ctx context.Context, userID string) (bool, error) {
	args := m.Called(ctx, userID)
	return args.Bool(0), args.Error(1)
}

func (m *MockMFAManager) CreateChallenge(ctx context.Context, userID string) (*outbound.MFAChallenge, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*outbound.MFAChallenge), args.Error(1)
}

func (m *MockMFAManager) VerifyChallenge(ctx context.Context, challengeID, code string) (string, error) {
	args := m.Called(ctx, challengeID, code)
	return args.String(0), args.Error(1)
}

type serviceMocks struct {
	users         *MockUserRepository
	sessions      *MockSessionRepository
	verifications *MockVerificationRepository
	mfa           *MockMFAManager
}

func newTestUserService(t *testing.T) (inbound.UserService, *serviceMocks) {
	t.Helper()
	m := &serviceMocks{
		users:         new(MockUserRepository),
		sessions:      new(MockSessionRepository),
		verifications: new(MockVerificationRepository),
		mfa:           new(MockMFAManager),
	}
	svc := NewUserService(
		m.users,
		m.sessions,
		m.verifications,
		m.mfa,
		Options{JWTSecret: testJWTSecret},
		zaptest.NewLogger(t),
	)
	return svc, m
}

func testUser(t *testing.T) *user.User {
	t.Helper()
	u, err := user.NewUser("Alex Cook", "alex@example.com", "a-strong-password")
	require.NoError(t, err)
	return u
}

func TestRegisterCreatesAccountAndSession(t *testing.T) {
	svc, m := newTestUserService(t)

	m.users.On("ExistsByEmail", mock.Anything, "alex@example.com").Return(false, nil).Once()
	m.users.On("Create", mock.Anything, mock.Anything).Return(nil).Once()
	m.verifications.On("Save", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil).Once()
	m.sessions.On("Create", mock.Anything, mock.Anything).Return(nil).Once()

	result, err := svc.Register(context.Background(), inbound.RegisterCommand{
		Name:     "Alex Cook",
		Email:    "alex@example.com",
		Password: "a-strong-password",
	})
	require.NoError(t, err)

	assert.NotEmpty(t, result.SessionToken)
	assert.False(t, result.MFARequired)
	assert.Equal(t, "alex@example.com", result.User.Email)
	assert.False(t, result.User.EmailVerified)
	m.users.AssertExpectations(t)
	m.sessions.AssertExpectations(t)
	m.verifications.AssertExpectations(t)
}

func TestRegisterRejectsDuplicateEmail(t *testing.T) {
	svc, m := newTestUserService(t)

	m.users.On("ExistsByEmail", mock.Anything, "alex@example.com").Return(true, nil).Once()

	_, err := svc.Register(context.Background(), inbound.RegisterCommand{
		Name:     "Alex Cook",
		Email:    "alex@example.com",
		Password: "a-strong-password",
	})
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeEmailAlreadyExists, apperrors.GetCode(err))
	m.users.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestLoginOpensSession(t *testing.T) {
	svc, m := newTestUserService(t)
	u := testUser(t)

	m.users.On("FindByEmail", mock.Anything, "alex@example.com").Return(u, nil).Once()
	m.users.On("Update", mock.Anything, u).Return(nil).Once()
	m.sessions.On("Create", mock.Anything, mock.Anything).Return(nil).Once()

	result, err := svc.Login(context.Background(), inbound.LoginCommand{
		Email:    "alex@example.com",
		Password: "a-strong-password",
	})
	require.NoError(t, err)

	assert.NotEmpty(t, result.SessionToken)
	assert.False(t, result.MFARequired)
	assert.True(t, result.SessionExpires.After(time.Now()))
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	svc, m := newTestUserService(t)
	u := testUser(t)

	m.users.On("FindByEmail", mock.Anything, "alex@example.com").Return(u, nil).Once()

	_, err := svc.Login(context.Background(), inbound.LoginCommand{
		Email:    "alex@example.com",
		Password: "wrong-password",
	})
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeInvalidCredentials, apperrors.GetCode(err))
	m.sessions.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestLoginHidesUnknownAccounts(t *testing.T) {
	svc, m := newTestUserService(t)

	m.users.On("FindByEmail", mock.Anything, "ghost@example.com").
		Return(nil, user.ErrUserNotFound).Once()

	_, err := svc.Login(context.Background(), inbound.LoginCommand{
		Email:    "ghost@example.com",
		Password: "whatever-password",
	})
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeInvalidCredentials, apperrors.GetCode(err))
}

func TestLoginWithMFAReturnsChallenge(t *testing.T) {
	svc, m := newTestUserService(t)
	u := testUser(t)
	u.EnableMFA()

	m.users.On("FindByEmail", mock.Anything, "alex@example.com").Return(u, nil).Once()
	m.mfa.On("CreateChallenge", mock.Anything, u.ID()).
		Return(&outbound.MFAChallenge{ID: "challenge-1", UserID: u.ID()}, nil).Once()

	result, err := svc.Login(context.Background(), inbound.LoginCommand{
		Email:    "alex@example.com",
		Password: "a-strong-password",
	})
	require.NoError(t, err)

	assert.True(t, result.MFARequired)
	assert.Equal(t, "challenge-1", result.MFAChallengeID)
	assert.Empty(t, result.SessionToken)
	m.sessions.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestCompleteMFALoginOpensSession(t *testing.T) {
	svc, m := newTestUserService(t)
	u := testUser(t)
	u.EnableMFA()

	m.mfa.On("VerifyChallenge", mock.Anything, "challenge-1", "123456").Return(u.ID(), nil).Once()
	m.users.On("FindByID", mock.Anything, u.ID()).Return(u, nil).Once()
	m.users.On("Update", mock.Anything, u).Return(nil).Once()
	m.sessions.On("Create", mock.Anything, mock.Anything).Return(nil).Once()

	result, err := svc.CompleteMFALogin(context.Background(), inbound.MFALoginCommand{
		ChallengeID: "challenge-1",
		Code:        "123456",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, result.SessionToken)
}

func TestCompleteMFALoginRejectsBadCode(t *testing.T) {
	svc, m := newTestUserService(t)

	m.mfa.On("VerifyChallenge", mock.Anything, "challenge-1", "000000").
		Return("", outbound.ErrInvalidMFACode).Once()

	_, err := svc.CompleteMFALogin(context.Background(), inbound.MFALoginCommand{
		ChallengeID: "challenge-1",
		Code:        "000000",
	})
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeMFAInvalid, apperrors.GetCode(err))
}

func TestAuthenticateResolvesSession(t *testing.T) {
	svc, m := newTestUserService(t)
	u := testUser(t)
	session, err := user.NewSession(u.ID(), 7*24*time.Hour, "", "")
	require.NoError(t, err)

	m.sessions.On("FindByToken", mock.Anything, session.Token()).Return(session, nil).Once()
	m.users.On("FindByID", mock.Anything, u.ID()).Return(u, nil).Once()

	dto, err := svc.Authenticate(context.Background(), session.Token())
	require.NoError(t, err)
	assert.Equal(t, u.ID(), dto.ID)
}

func TestAuthenticateRejectsExpiredSession(t *testing.T) {
	svc, m := newTestUserService(t)
	expired := user.ReconstructSession(
		uuid.NewString(), "user-1", "stale-token",
		time.Now().Add(-time.Hour), "", "",
		time.Now().Add(-48*time.Hour), time.Now().Add(-48*time.Hour),
	)

	m.sessions.On("FindByToken", mock.Anything, "stale-token").Return(expired, nil).Once()
	m.sessions.On("Delete", mock.Anything, "stale-token").Return(nil).Once()

	_, err := svc.Authenticate(context.Background(), "stale-token")
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeUnauthorized, apperrors.GetCode(err))
	m.sessions.AssertExpectations(t)
}

func TestAuthenticateExtendsAgingSession(t *testing.T) {
	svc, m := newTestUserService(t)
	u := testUser(t)
	// Two days left on a seven day session, past the halfway mark.
	aging := user.ReconstructSession(
		uuid.NewString(), u.ID(), "aging-token",
		time.Now().Add(48*time.Hour), "", "",
		time.Now().Add(-5*24*time.Hour), time.Now().Add(-5*24*time.Hour),
	)

	m.sessions.On("FindByToken", mock.Anything, "aging-token").Return(aging, nil).Once()
	m.sessions.On("Update", mock.Anything, aging).Return(nil).Once()
	m.users.On("FindByID", mock.Anything, u.ID()).Return(u, nil).Once()

	_, err := svc.Authenticate(context.Background(), "aging-token")
	require.NoError(t, err)
	assert.True(t, aging.ExpiresAt().After(time.Now().Add(6*24*time.Hour)))
	m.sessions.AssertExpectations(t)
}

func TestRefreshSessionExtendsRegardlessOfAge(t *testing.T) {
	svc, m := newTestUserService(t)
	// A day old session, nowhere near the halfway mark.
	fresh := user.ReconstructSession(
		uuid.NewString(), "user-1", "fresh-token",
		time.Now().Add(6*24*time.Hour), "", "",
		time.Now().Add(-24*time.Hour), time.Now().Add(-24*time.Hour),
	)

	m.sessions.On("FindByToken", mock.Anything, "fresh-token").Return(fresh, nil).Once()
	m.sessions.On("Update", mock.Anything, fresh).Return(nil).Once()

	expires, err := svc.RefreshSession(context.Background(), "fresh-token")
	require.NoError(t, err)
	assert.True(t, expires.After(time.Now().Add(6*24*time.Hour+12*time.Hour)))
	assert.Equal(t, fresh.ExpiresAt(), expires)
	m.sessions.AssertExpectations(t)
}

func TestRefreshSessionRejectsExpiredSession(t *testing.T) {
	svc, m := newTestUserService(t)
	expired := user.ReconstructSession(
		uuid.NewString(), "user-1", "stale-token",
		time.Now().Add(-time.Hour), "", "",
		time.Now().Add(-48*time.Hour), time.Now().Add(-48*time.Hour),
	)

	m.sessions.On("FindByToken", mock.Anything, "stale-token").Return(expired, nil).Once()
	m.sessions.On("Delete", mock.Anything, "stale-token").Return(nil).Once()

	_, err := svc.RefreshSession(context.Background(), "stale-token")
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeUnauthorized, apperrors.GetCode(err))
	m.sessions.AssertExpectations(t)
}

func TestVerifyEmailConsumesToken(t *testing.T) {
	svc, m := newTestUserService(t)
	u := testUser(t)

	jti := uuid.NewString()
	claims := jwt.StandardClaims{
		Subject:   u.ID(),
		Id:        jti,
		IssuedAt:  time.Now().Unix(),
		ExpiresAt: time.Now().Add(time.Hour).Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testJWTSecret))
	require.NoError(t, err)

	m.verifications.On("Consume", mock.Anything, u.ID(), jti).Return(true, nil).Once()
	m.users.On("FindByID", mock.Anything, u.ID()).Return(u, nil).Once()
	m.users.On("Update", mock.Anything, u).Return(nil).Once()

	require.NoError(t, svc.VerifyEmail(context.Background(), signed))
	assert.True(t, u.EmailVerified())
}

func TestVerifyEmailRejectsUsedToken(t *testing.T) {
	svc, m := newTestUserService(t)

	jti := uuid.NewString()
	claims := jwt.StandardClaims{
		Subject:   "user-1",
		Id:        jti,
		IssuedAt:  time.Now().Unix(),
		ExpiresAt: time.Now().Add(time.Hour).Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testJWTSecret))
	require.NoError(t, err)

	m.verifications.On("Consume", mock.Anything, "user-1", jti).Return(false, nil).Once()

	err = svc.VerifyEmail(context.Background(), signed)
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeUnauthorized, apperrors.GetCode(err))
}

func TestVerifyEmailRejectsTamperedToken(t *testing.T) {
	svc, m := newTestUserService(t)

	claims := jwt.StandardClaims{
		Subject:   "user-1",
		Id:        uuid.NewString(),
		ExpiresAt: time.Now().Add(time.Hour).Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("a-different-secret"))
	require.NoError(t, err)

	err = svc.VerifyEmail(context.Background(), signed)
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeUnauthorized, apperrors.GetCode(err))
	m.verifications.AssertNotCalled(t, "Consume", mock.Anything, mock.Anything, mock.Anything)
}

func TestActivateMFAEnablesFlagAndReturnsCodes(t *testing.T) {
	svc, m := newTestUserService(t)
	u := testUser(t)
	backupCodes := []string{"AAAA1111", "BBBB2222"}

	m.mfa.On("Activate", mock.Anything, u.ID(), "123456").Return(backupCodes, nil).Once()
	m.users.On("FindByID", mock.Anything, u.ID()).Return(u, nil).Once()
	m.users.On("Update", mock.Anything, u).Return(nil).Once()

	codes, err := svc.ActivateMFA(context.Background(), u.ID(), "123456")
	require.NoError(t, err)
	assert.Equal(t, backupCodes, codes)
	assert.True(t, u.MFAEnabled())
}

func TestDisableMFARequiresValidCode(t *testing.T) {
	svc, m := newTestUserService(t)

	m.mfa.On("CreateChallenge", mock.Anything, "user-1").
		Return(&outbound.MFAChallenge{ID: "challenge-1", UserID: "user-1"}, nil).Once()
	m.mfa.On("VerifyChallenge", mock.Anything, "challenge-1", "000000").
		Return("", outbound.ErrInvalidMFACode).Once()

	err := svc.DisableMFA(context.Background(), "user-1", "000000")
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeMFAInvalid, apperrors.GetCode(err))
	m.mfa.AssertNotCalled(t, "Disable", mock.Anything, mock.Anything)
}
