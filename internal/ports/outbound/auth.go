package outbound

import (
	"context"
	"errors"
	"time"
)

// MFA errors shared between the manager implementation and its callers.
var (
	ErrMFAAlreadyEnabled    = errors.New("mfa already enabled")
	ErrMFANotEnabled        = errors.New("mfa not enabled")
	ErrMFASetupNotStarted   = errors.New("mfa setup not started")
	ErrInvalidMFACode       = errors.New("invalid mfa code")
	ErrMFAChallengeNotFound = errors.New("mfa challenge not found or expired")
	ErrTooManyMFAAttempts   = errors.New("too many mfa attempts")
)

// TOTPSetup is handed back to the client during MFA enrollment so it
// can render the QR code and show the secret for manual entry.
type TOTPSetup struct {
	Secret string `json:"secret"`
	URL    string `json:"url"`
}

// MFAChallenge is a short lived login challenge created after a correct
// password when the account has a second factor enabled.
type MFAChallenge struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	ExpiresAt   time.Time `json:"expires_at"`
	Attempts    int       `json:"attempts"`
	MaxAttempts int       `json:"max_attempts"`
}

// MFAManager owns TOTP enrollment state and login challenges.
// VerifyChallenge accepts either a TOTP code or an unused backup code
// and returns the user the challenge belongs to.
type MFAManager interface {
	BeginSetup(ctx context.Context, userID, accountName string) (*TOTPSetup, error)
	Activate(ctx context.Context, userID, code string) ([]string, error)
	Disable(ctx context.Context, userID string) error
	Enabled(ctx context.Context, userID string) (bool, error)
	CreateChallenge(ctx context.Context, userID string) (*MFAChallenge, error)
	VerifyChallenge(ctx context.Context, challengeID, code string) (string, error)
}
