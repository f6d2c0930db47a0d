// Package security provides authentication hardening services: TOTP
// based multi-factor authentication and CSRF token issuance.
package security

import (
	"context"
	"crypto/rand"
	"encoding/base32"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pquerna/otp/totp"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/yambati03/touille/internal/infrastructure/cache"
	"github.com/yambati03/touille/internal/infrastructure/config"
	"github.com/yambati03/touille/internal/ports/outbound"
)

const (
	challengeTTL         = 5 * time.Minute
	maxChallengeAttempts = 3
	backupCodeCount      = 8
	totpSecretSize       = 32
)

// MFAService manages TOTP enrollment and login challenges. Enrollment
// state and pending challenges live in Redis so every API instance
// sees the same view.
type MFAService struct {
	logger     *zap.Logger
	redis      *cache.RedisClient
	issuer     string
	bcryptCost int
}

// NewMFAService creates a new MFA service
func NewMFAService(cfg *config.Config, logger *zap.Logger, redisClient *cache.RedisClient) *MFAService {
	cost := cfg.Auth.BCryptCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return &MFAService{
		logger:     logger,
		redis:      redisClient,
		issuer:     cfg.Auth.MFAIssuer,
		bcryptCost: cost,
	}
}

var _ outbound.MFAManager = (*MFAService)(nil)

// MFAConfig is the per-user enrollment record. PendingSecret holds a
// secret that was generated but not yet confirmed with a valid code.
type MFAConfig struct {
	UserID        string    `json:"user_id"`
	Enabled       bool      `json:"enabled"`
	TOTPSecret    string    `json:"totp_secret,omitempty"`
	PendingSecret string    `json:"pending_secret,omitempty"`
	BackupCodes   []string  `json:"backup_codes,omitempty"`
	LastUsed      time.Time `json:"last_used"`
}

// BeginSetup generates a fresh TOTP secret for the user and stores it
// as pending until Activate confirms the authenticator works.
func (m *MFAService) BeginSetup(ctx context.Context, userID, accountName string) (*outbound.TOTPSetup, error) {
	cfg, err := m.getConfig(ctx, userID)
	if err != nil {
		return nil, err
	}
	if cfg != nil && cfg.Enabled {
		return nil, outbound.ErrMFAAlreadyEnabled
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      m.issuer,
		AccountName: accountName,
		SecretSize:  totpSecretSize,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate TOTP key: %w", err)
	}

	pending := &MFAConfig{
		UserID:        userID,
		Enabled:       false,
		PendingSecret: key.Secret(),
	}
	if err := m.storeConfig(ctx, pending); err != nil {
		return nil, err
	}

	m.logger.Info("MFA setup started", zap.String("user_id", userID))

	return &outbound.TOTPSetup{
		Secret: key.Secret(),
		URL:    key.URL(),
	}, nil
}

// Activate confirms the pending secret with a code from the
// authenticator app, enables MFA and returns single use backup codes.
// The plain codes are shown to the user exactly once.
func (m *MFAService) Activate(ctx context.Context, userID, code string) ([]string, error) {
	cfg, err := m.getConfig(ctx, userID)
	if err != nil {
		return nil, err
	}
	if cfg == nil || cfg.PendingSecret == "" {
		return nil, outbound.ErrMFASetupNotStarted
	}
	if !totp.Validate(code, cfg.PendingSecret) {
		return nil, outbound.ErrInvalidMFACode
	}

	backupCodes, err := m.generateBackupCodes(backupCodeCount)
	if err != nil {
		return nil, fmt.Errorf("failed to generate backup codes: %w", err)
	}
	hashed := make([]string, len(backupCodes))
	for i, c := range backupCodes {
		hash, err := bcrypt.GenerateFromPassword([]byte(c), m.bcryptCost)
		if err != nil {
			return nil, fmt.Errorf("failed to hash backup code: %w", err)
		}
		hashed[i] = string(hash)
	}

	enabled := &MFAConfig{
		UserID:      userID,
		Enabled:     true,
		TOTPSecret:  cfg.PendingSecret,
		BackupCodes: hashed,
		LastUsed:    time.Now(),
	}
	if err := m.storeConfig(ctx, enabled); err != nil {
		return nil, err
	}

	m.logger.Info("MFA enabled", zap.String("user_id", userID))
	return backupCodes, nil
}

// Disable removes the user's MFA enrollment entirely.
func (m *MFAService) Disable(ctx context.Context, userID string) error {
	if err := m.redis.Delete(ctx, cache.MFAConfigKey(userID)); err != nil {
		return fmt.Errorf("failed to clear MFA config: %w", err)
	}
	m.logger.Info("MFA disabled", zap.String("user_id", userID))
	return nil
}

// Enabled reports whether the user has a confirmed MFA enrollment.
func (m *MFAService) Enabled(ctx context.Context, userID string) (bool, error) {
	cfg, err := m.getConfig(ctx, userID)
	if err != nil {
		return false, err
	}
	return cfg != nil && cfg.Enabled, nil
}

// CreateChallenge opens a login challenge for a user whose password
// already checked out. The challenge expires after five minutes.
func (m *MFAService) CreateChallenge(ctx context.Context, userID string) (*outbound.MFAChallenge, error) {
	cfg, err := m.getConfig(ctx, userID)
	if err != nil {
		return nil, err
	}
	if cfg == nil || !cfg.Enabled {
		return nil, outbound.ErrMFANotEnabled
	}

	challenge := &outbound.MFAChallenge{
		ID:          m.generateChallengeID(),
		UserID:      userID,
		ExpiresAt:   time.Now().Add(challengeTTL),
		Attempts:    0,
		MaxAttempts: maxChallengeAttempts,
	}
	if err := m.storeChallenge(ctx, challenge, challengeTTL); err != nil {
		return nil, err
	}
	return challenge, nil
}

// VerifyChallenge checks a TOTP or backup code against an open
// challenge and returns the user ID on success. Backup codes are
// consumed on use.
func (m *MFAService) VerifyChallenge(ctx context.Context, challengeID, code string) (string, error) {
	challenge, err := m.getChallenge(ctx, challengeID)
	if err != nil {
		return "", err
	}
	if challenge.Attempts >= challenge.MaxAttempts {
		m.deleteChallenge(ctx, challengeID)
		return "", outbound.ErrTooManyMFAAttempts
	}

	cfg, err := m.getConfig(ctx, challenge.UserID)
	if err != nil {
		return "", err
	}
	if cfg == nil || !cfg.Enabled {
		return "", outbound.ErrMFANotEnabled
	}

	verified := totp.Validate(code, cfg.TOTPSecret)
	if !verified {
		if idx := m.matchBackupCode(cfg.BackupCodes, code); idx >= 0 {
			verified = true
			cfg.BackupCodes = append(cfg.BackupCodes[:idx], cfg.BackupCodes[idx+1:]...)
		}
	}

	if !verified {
		challenge.Attempts++
		remaining := time.Until(challenge.ExpiresAt)
		if remaining > 0 {
			m.storeChallenge(ctx, challenge, remaining)
		}
		m.logger.Warn("MFA verification failed",
			zap.String("user_id", challenge.UserID),
			zap.String("challenge_id", challengeID),
			zap.Int("attempts", challenge.Attempts),
		)
		return "", outbound.ErrInvalidMFACode
	}

	m.deleteChallenge(ctx, challengeID)
	cfg.LastUsed = time.Now()
	if err := m.storeConfig(ctx, cfg); err != nil {
		m.logger.Warn("Failed to update MFA config after verification", zap.Error(err))
	}

	m.logger.Info("MFA challenge verified",
		zap.String("user_id", challenge.UserID),
		zap.String("challenge_id", challengeID),
	)
	return challenge.UserID, nil
}

// matchBackupCode returns the index of the matching hashed code, or -1.
func (m *MFAService) matchBackupCode(hashedCodes []string, code string) int {
	for i, hashed := range hashedCodes {
		if bcrypt.CompareHashAndPassword([]byte(hashed), []byte(code)) == nil {
			return i
		}
	}
	return -1
}

// generateBackupCodes generates random 8-character alphanumeric codes.
func (m *MFAService) generateBackupCodes(count int) ([]string, error) {
	codes := make([]string, count)
	for i := 0; i < count; i++ {
		bytes := make([]byte, 5)
		if _, err := rand.Read(bytes); err != nil {
			return nil, err
		}
		codes[i] = strings.ToUpper(base32.StdEncoding.EncodeToString(bytes)[:8])
	}
	return codes, nil
}

func (m *MFAService) generateChallengeID() string {
	bytes := make([]byte, 16)
	rand.Read(bytes)
	return fmt.Sprintf("%x", bytes)
}

func (m *MFAService) storeConfig(ctx context.Context, cfg *MFAConfig) error {
	data, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode MFA config: %w", err)
	}
	if err := m.redis.Set(ctx, cache.MFAConfigKey(cfg.UserID), data, 0); err != nil {
		return fmt.Errorf("failed to store MFA config: %w", err)
	}
	return nil
}

func (m *MFAService) getConfig(ctx context.Context, userID string) (*MFAConfig, error) {
	data, err := m.redis.Get(ctx, cache.MFAConfigKey(userID))
	if err != nil {
		if errors.Is(err, cache.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load MFA config: %w", err)
	}
	var cfg MFAConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode MFA config: %w", err)
	}
	return &cfg, nil
}

func (m *MFAService) storeChallenge(ctx context.Context, challenge *outbound.MFAChallenge, ttl time.Duration) error {
	data, err := json.Marshal(challenge)
	if err != nil {
		return fmt.Errorf("failed to encode MFA challenge: %w", err)
	}
	if err := m.redis.Set(ctx, cache.MFAChallengeKey(challenge.ID), data, ttl); err != nil {
		return fmt.Errorf("failed to store MFA challenge: %w", err)
	}
	return nil
}

func (m *MFAService) getChallenge(ctx context.Context, challengeID string) (*outbound.MFAChallenge, error) {
	data, err := m.redis.Get(ctx, cache.MFAChallengeKey(challengeID))
	if err != nil {
		if errors.Is(err, cache.ErrKeyNotFound) {
			return nil, outbound.ErrMFAChallengeNotFound
		}
		return nil, fmt.Errorf("failed to load MFA challenge: %w", err)
	}
	var challenge outbound.MFAChallenge
	if err := json.Unmarshal(data, &challenge); err != nil {
		return nil, fmt.Errorf("failed to decode MFA challenge: %w", err)
	}
	if time.Now().After(challenge.ExpiresAt) {
		m.deleteChallenge(ctx, challengeID)
		return nil, outbound.ErrMFAChallengeNotFound
	}
	return &challenge, nil
}

func (m *MFAService) deleteChallenge(ctx context.Context, challengeID string) {
	if err := m.redis.Delete(ctx, cache.MFAChallengeKey(challengeID)); err != nil {
		m.logger.Debug("Failed to delete MFA challenge", zap.Error(err))
	}
}
