// Package user provides the application layer for accounts: register,
// login with an optional second factor, session management, email
// verification and the preference record.
package user

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/yambati03/touille/internal/domain/user"
	"github.com/yambati03/touille/internal/ports/inbound"
	"github.com/yambati03/touille/internal/ports/outbound"
	apperrors "github.com/yambati03/touille/pkg/errors"
)

// Options carries the runtime knobs for the user service. Zero values
// are replaced with safe defaults.
type Options struct {
	// JWTSecret signs email verification tokens.
	JWTSecret string
	// SessionTTL is the lifetime of a login session. Sessions past half
	// their lifetime are extended on use.
	SessionTTL time.Duration
	// VerificationTTL is the lifetime of an email verification link.
	VerificationTTL time.Duration
	// VerificationBaseURL is where verification links point.
	VerificationBaseURL string
	// RequireVerifiedEmail blocks login until the address is confirmed.
	RequireVerifiedEmail bool
}

func (o Options) withDefaults() Options {
	if o.SessionTTL <= 0 {
		o.SessionTTL = 7 * 24 * time.Hour
	}
	if o.VerificationTTL <= 0 {
		o.VerificationTTL = 24 * time.Hour
	}
	return o
}

// UserService implements the account use cases
type UserService struct {
	userRepo         outbound.UserRepository
	sessionRepo      outbound.SessionRepository
	verificationRepo outbound.VerificationRepository
	mfa              outbound.MFAManager
	opts             Options
	logger           *zap.Logger
}

// NewUserService creates a new user service
func NewUserService(
	userRepo outbound.UserRepository,
	sessionRepo outbound.SessionRepository,
	verificationRepo outbound.VerificationRepository,
	mfa outbound.MFAManager,
	opts Options,
	logger *zap.Logger,
) inbound.UserService {
	return &UserService{
		userRepo:         userRepo,
		sessionRepo:      sessionRepo,
		verificationRepo: verificationRepo,
		mfa:              mfa,
		opts:             opts.withDefaults(),
		logger:           logger.Named("user-service"),
	}
}

// verificationClaims are the JWT claims of an email verification token.
type verificationClaims struct {
	jwt.StandardClaims
}

// Register creates an account and signs it in. A verification link is
// issued for the address; whether login requires it is configurable.
func (s *UserService) Register(ctx context.Context, cmd inbound.RegisterCommand) (*inbound.AuthResult, error) {
	s.logger.Info("Registering new user", zap.String("email", cmd.Email))

	exists, err := s.userRepo.ExistsByEmail(ctx, cmd.Email)
	if err != nil {
		return nil, apperrors.NewDatabaseError("check email", err)
	}
	if exists {
		return nil, apperrors.NewEmailAlreadyExistsError(cmd.Email)
	}

	newUser, err := user.NewUser(cmd.Name, cmd.Email, cmd.Password)
	if err != nil {
		return nil, apperrors.NewValidationError(err.Error())
	}
	if err := s.userRepo.Create(ctx, newUser); err != nil {
		if errors.Is(err, user.ErrEmailAlreadyExists) {
			return nil, apperrors.NewEmailAlreadyExistsError(cmd.Email)
		}
		return nil, apperrors.NewDatabaseError("create user", err)
	}
	s.logEvents(newUser)

	if err := s.issueVerification(ctx, newUser); err != nil {
		// The account exists; the user can request a fresh link later.
		s.logger.Warn("Failed to issue verification link",
			zap.String("user_id", newUser.ID()),
			zap.Error(err),
		)
	}

	token, expires, err := s.openSession(ctx, newUser, "", "")
	if err != nil {
		return nil, err
	}

	s.logger.Info("User registered",
		zap.String("user_id", newUser.ID()),
		zap.String("email", newUser.Email()),
	)
	return &inbound.AuthResult{
		User:           s.entityToDTO(newUser),
		SessionToken:   token,
		SessionExpires: expires,
	}, nil
}

// Login checks credentials and opens a session. Accounts with a second
// factor get a challenge instead of a session; CompleteMFALogin turns
// the challenge into a session.
func (s *UserService) Login(ctx context.Context, cmd inbound.LoginCommand) (*inbound.AuthResult, error) {
	u, err := s.userRepo.FindByEmail(ctx, cmd.Email)
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			return nil, apperrors.NewInvalidCredentialsError()
		}
		return nil, apperrors.NewDatabaseError("find user", err)
	}
	if err := u.CheckPassword(cmd.Password); err != nil {
		s.logger.Warn("Login failed", zap.String("email", cmd.Email))
		return nil, apperrors.NewInvalidCredentialsError()
	}
	if s.opts.RequireVerifiedEmail && !u.EmailVerified() {
		return nil, apperrors.NewUnauthorizedError("email address is not verified")
	}

	if u.MFAEnabled() {
		challenge, err := s.mfa.CreateChallenge(ctx, u.ID())
		if err != nil {
			if errors.Is(err, outbound.ErrMFANotEnabled) {
				// Enrollment record lost; fall through to a plain login
				// rather than locking the account out.
				s.logger.Warn("MFA flag set but no enrollment found",
					zap.String("user_id", u.ID()),
				)
				return s.completeLogin(ctx, u, cmd.IPAddress, cmd.UserAgent)
			}
			return nil, apperrors.NewInternalError("failed to create MFA challenge").WithCause(err)
		}
		s.logger.Info("MFA challenge issued", zap.String("user_id", u.ID()))
		return &inbound.AuthResult{
			User:           s.entityToDTO(u),
			MFARequired:    true,
			MFAChallengeID: challenge.ID,
		}, nil
	}

	return s.completeLogin(ctx, u, cmd.IPAddress, cmd.UserAgent)
}

// CompleteMFALogin answers a login challenge with a TOTP or backup code.
func (s *UserService) CompleteMFALogin(ctx context.Context, cmd inbound.MFALoginCommand) (*inbound.AuthResult, error) {
	userID, err := s.mfa.VerifyChallenge(ctx, cmd.ChallengeID, cmd.Code)
	if err != nil {
		switch {
		case errors.Is(err, outbound.ErrInvalidMFACode):
			return nil, apperrors.NewMFAInvalidError()
		case errors.Is(err, outbound.ErrMFAChallengeNotFound),
			errors.Is(err, outbound.ErrTooManyMFAAttempts):
			return nil, apperrors.NewUnauthorizedError("the login challenge expired, sign in again")
		default:
			return nil, apperrors.NewInternalError("failed to verify MFA challenge").WithCause(err)
		}
	}

	u, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, apperrors.NewInvalidCredentialsError()
	}
	return s.completeLogin(ctx, u, cmd.IPAddress, cmd.UserAgent)
}

// Logout closes a session. Unknown tokens close silently.
func (s *UserService) Logout(ctx context.Context, sessionToken string) error {
	if err := s.sessionRepo.Delete(ctx, sessionToken); err != nil {
		if errors.Is(err, user.ErrSessionNotFound) {
			return nil
		}
		return apperrors.NewDatabaseError("delete session", err)
	}
	return nil
}

// Authenticate resolves a session token to its user, extending the
// session when it has passed half its lifetime.
func (s *UserService) Authenticate(ctx context.Context, sessionToken string) (*inbound.UserDTO, error) {
	session, err := s.sessionRepo.FindByToken(ctx, sessionToken)
	if err != nil {
		switch {
		case errors.Is(err, user.ErrSessionNotFound):
			return nil, apperrors.NewUnauthorizedError("not signed in")
		case errors.Is(err, user.ErrSessionExpired):
			if err := s.sessionRepo.Delete(ctx, sessionToken); err != nil {
				s.logger.Debug("Failed to delete expired session", zap.Error(err))
			}
			return nil, apperrors.NewUnauthorizedError("session expired")
		default:
			return nil, apperrors.NewDatabaseError("find session", err)
		}
	}
	if session.Expired() {
		if err := s.sessionRepo.Delete(ctx, sessionToken); err != nil {
			s.logger.Debug("Failed to delete expired session", zap.Error(err))
		}
		return nil, apperrors.NewUnauthorizedError("session expired")
	}

	if time.Until(session.ExpiresAt()) < s.opts.SessionTTL/2 {
		if err := session.Extend(s.opts.SessionTTL); err == nil {
			if err := s.sessionRepo.Update(ctx, session); err != nil {
				s.logger.Debug("Failed to extend session", zap.Error(err))
			}
		}
	}

	u, err := s.userRepo.FindByID(ctx, session.UserID())
	if err != nil {
		return nil, apperrors.NewUnauthorizedError("account no longer exists")
	}
	return s.entityToDTO(u), nil
}

// RefreshSession unconditionally extends a live session and reports
// the new expiry. Authenticate only slides past the halfway point, so
// clients that want a firm deadline call this.
func (s *UserService) RefreshSession(ctx context.Context, sessionToken string) (time.Time, error) {
	session, err := s.sessionRepo.FindByToken(ctx, sessionToken)
	if err != nil {
		switch {
		case errors.Is(err, user.ErrSessionNotFound):
			return time.Time{}, apperrors.NewUnauthorizedError("not signed in")
		case errors.Is(err, user.ErrSessionExpired):
			if err := s.sessionRepo.Delete(ctx, sessionToken); err != nil {
				s.logger.Debug("Failed to delete expired session", zap.Error(err))
			}
			return time.Time{}, apperrors.NewUnauthorizedError("session expired")
		default:
			return time.Time{}, apperrors.NewDatabaseError("find session", err)
		}
	}
	if session.Expired() {
		if err := s.sessionRepo.Delete(ctx, sessionToken); err != nil {
			s.logger.Debug("Failed to delete expired session", zap.Error(err))
		}
		return time.Time{}, apperrors.NewUnauthorizedError("session expired")
	}

	if err := session.Extend(s.opts.SessionTTL); err != nil {
		return time.Time{}, apperrors.NewInternalError("failed to extend session")
	}
	if err := s.sessionRepo.Update(ctx, session); err != nil {
		return time.Time{}, apperrors.NewDatabaseError("extend session", err)
	}
	return session.ExpiresAt(), nil
}

// VerifyEmail redeems a verification link. Each token works once.
func (s *UserService) VerifyEmail(ctx context.Context, token string) error {
	claims, err := s.parseVerificationToken(token)
	if err != nil {
		return apperrors.NewUnauthorizedError("verification link is invalid or expired")
	}

	ok, err := s.verificationRepo.Consume(ctx, claims.Subject, claims.Id)
	if err != nil {
		return apperrors.NewDatabaseError("consume verification token", err)
	}
	if !ok {
		return apperrors.NewUnauthorizedError("verification link is invalid or already used")
	}

	u, err := s.userRepo.FindByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			return apperrors.NewUserNotFoundError(claims.Subject)
		}
		return apperrors.NewDatabaseError("find user", err)
	}

	u.VerifyEmail()
	if err := s.userRepo.Update(ctx, u); err != nil {
		return apperrors.NewDatabaseError("update user", err)
	}
	s.logEvents(u)

	s.logger.Info("Email verified", zap.String("user_id", u.ID()))
	return nil
}

// ResendVerification issues a fresh verification link for an account
// whose address is still unconfirmed.
func (s *UserService) ResendVerification(ctx context.Context, userID string) error {
	u, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			return apperrors.NewUserNotFoundError(userID)
		}
		return apperrors.NewDatabaseError("find user", err)
	}
	if u.EmailVerified() {
		return apperrors.NewConflictError("email address is already verified")
	}
	if err := s.issueVerification(ctx, u); err != nil {
		return apperrors.NewInternalError("failed to issue verification link").WithCause(err)
	}
	return nil
}

// SetupMFA starts enrolling an authenticator app.
func (s *UserService) SetupMFA(ctx context.Context, userID string) (*inbound.MFASetupDTO, error) {
	u, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			return nil, apperrors.NewUserNotFoundError(userID)
		}
		return nil, apperrors.NewDatabaseError("find user", err)
	}

	setup, err := s.mfa.BeginSetup(ctx, u.ID(), u.Email())
	if err != nil {
		if errors.Is(err, outbound.ErrMFAAlreadyEnabled) {
			return nil, apperrors.NewConflictError("MFA is already enabled")
		}
		return nil, apperrors.NewInternalError("failed to start MFA setup").WithCause(err)
	}
	return &inbound.MFASetupDTO{
		Secret:    setup.Secret,
		QRCodeURL: setup.URL,
	}, nil
}

// ActivateMFA confirms enrollment with a code from the authenticator
// and returns single use backup codes. The codes are shown exactly once.
func (s *UserService) ActivateMFA(ctx context.Context, userID, code string) ([]string, error) {
	codes, err := s.mfa.Activate(ctx, userID, code)
	if err != nil {
		switch {
		case errors.Is(err, outbound.ErrMFASetupNotStarted):
			return nil, apperrors.NewBadRequestError("MFA setup has not been started")
		case errors.Is(err, outbound.ErrInvalidMFACode):
			return nil, apperrors.NewMFAInvalidError()
		default:
			return nil, apperrors.NewInternalError("failed to activate MFA").WithCause(err)
		}
	}

	u, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, apperrors.NewDatabaseError("find user", err)
	}
	u.EnableMFA()
	if err := s.userRepo.Update(ctx, u); err != nil {
		return nil, apperrors.NewDatabaseError("update user", err)
	}
	s.logEvents(u)
	return codes, nil
}

// DisableMFA turns the second factor off. A current code is required so
// a stolen session cannot silently weaken the account.
func (s *UserService) DisableMFA(ctx context.Context, userID, code string) error {
	challenge, err := s.mfa.CreateChallenge(ctx, userID)
	if err != nil {
		if errors.Is(err, outbound.ErrMFANotEnabled) {
			return apperrors.NewBadRequestError("MFA is not enabled")
		}
		return apperrors.NewInternalError("failed to verify MFA code").WithCause(err)
	}
	if _, err := s.mfa.VerifyChallenge(ctx, challenge.ID, code); err != nil {
		if errors.Is(err, outbound.ErrInvalidMFACode) {
			return apperrors.NewMFAInvalidError()
		}
		return apperrors.NewInternalError("failed to verify MFA code").WithCause(err)
	}
	if err := s.mfa.Disable(ctx, userID); err != nil {
		return apperrors.NewInternalError("failed to disable MFA").WithCause(err)
	}

	u, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return apperrors.NewDatabaseError("find user", err)
	}
	u.DisableMFA()
	if err := s.userRepo.Update(ctx, u); err != nil {
		return apperrors.NewDatabaseError("update user", err)
	}
	s.logEvents(u)
	return nil
}

// completeLogin records the login, opens a session and builds the
// result.
func (s *UserService) completeLogin(ctx context.Context, u *user.User, ipAddress, userAgent string) (*inbound.AuthResult, error) {
	u.RecordLogin()
	if err := s.userRepo.Update(ctx, u); err != nil {
		s.logger.Warn("Failed to record login time",
			zap.String("user_id", u.ID()),
			zap.Error(err),
		)
	}
	s.logEvents(u)

	token, expires, err := s.openSession(ctx, u, ipAddress, userAgent)
	if err != nil {
		return nil, err
	}

	s.logger.Info("User logged in", zap.String("user_id", u.ID()))
	return &inbound.AuthResult{
		User:           s.entityToDTO(u),
		SessionToken:   token,
		SessionExpires: expires,
	}, nil
}

func (s *UserService) openSession(ctx context.Context, u *user.User, ipAddress, userAgent string) (string, time.Time, error) {
	session, err := user.NewSession(u.ID(), s.opts.SessionTTL, ipAddress, userAgent)
	if err != nil {
		return "", time.Time{}, apperrors.NewInternalError("failed to create session").WithCause(err)
	}
	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return "", time.Time{}, apperrors.NewDatabaseError("create session", err)
	}
	return session.Token(), session.ExpiresAt(), nil
}

// issueVerification signs a fresh verification token, records its ID
// for single use redemption and hands the link to the mail path. Mail
// delivery is a log line until a provider is wired up.
func (s *UserService) issueVerification(ctx context.Context, u *user.User) error {
	now := time.Now()
	claims := verificationClaims{
		StandardClaims: jwt.StandardClaims{
			Subject:   u.ID(),
			Id:        uuid.NewString(),
			IssuedAt:  now.Unix(),
			ExpiresAt: now.Add(s.opts.VerificationTTL).Unix(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.opts.JWTSecret))
	if err != nil {
		return fmt.Errorf("failed to sign verification token: %w", err)
	}
	if err := s.verificationRepo.Save(ctx, u.ID(), claims.Id, now.Add(s.opts.VerificationTTL)); err != nil {
		return fmt.Errorf("failed to store verification token: %w", err)
	}

	s.logger.Info("Verification link issued",
		zap.String("user_id", u.ID()),
		zap.String("email", u.Email()),
		zap.String("url", fmt.Sprintf("%s?token=%s", s.opts.VerificationBaseURL, signed)),
	)
	return nil
}

func (s *UserService) parseVerificationToken(tokenString string) (*verificationClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &verificationClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.opts.JWTSecret), nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*verificationClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid verification token")
	}
	return claims, nil
}

func (s *UserService) logEvents(u *user.User) {
	for _, event := range u.Events() {
		s.logger.Info("Domain event",
			zap.String("event", event.EventName()),
			zap.Time("occurred_at", event.OccurredAt()),
		)
	}
}

func (s *UserService) entityToDTO(u *user.User) *inbound.UserDTO {
	return &inbound.UserDTO{
		ID:            u.ID(),
		Name:          u.Name(),
		Email:         u.Email(),
		EmailVerified: u.EmailVerified(),
		Image:         u.Image(),
		MFAEnabled:    u.MFAEnabled(),
	}
}
