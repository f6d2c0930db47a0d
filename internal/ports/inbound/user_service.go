package inbound

import (
	"context"
	"time"
)

// UserService defines the authentication and account use cases.
type UserService interface {
	Register(ctx context.Context, cmd RegisterCommand) (*AuthResult, error)
	Login(ctx context.Context, cmd LoginCommand) (*AuthResult, error)
	Logout(ctx context.Context, sessionToken string) error

	// Authenticate resolves a session token to its user, extending the
	// session's expiry on success.
	Authenticate(ctx context.Context, sessionToken string) (*UserDTO, error)

	// RefreshSession extends a live session regardless of how much
	// lifetime it has left and returns the new expiry.
	RefreshSession(ctx context.Context, sessionToken string) (time.Time, error)

	VerifyEmail(ctx context.Context, token string) error
	ResendVerification(ctx context.Context, userID string) error

	// MFA enrollment and challenge. Login returns MFARequired instead
	// of a session when the account has a second factor enabled.
	SetupMFA(ctx context.Context, userID string) (*MFASetupDTO, error)
	ActivateMFA(ctx context.Context, userID, code string) ([]string, error)
	CompleteMFALogin(ctx context.Context, cmd MFALoginCommand) (*AuthResult, error)
	DisableMFA(ctx context.Context, userID, code string) error
}

// SettingsService defines the preference record use cases.
type SettingsService interface {
	GetSettings(ctx context.Context, userID string) (*SettingsDTO, error)
	UpdateSettings(ctx context.Context, cmd UpdateSettingsCommand) (*SettingsDTO, error)
}

// RegisterCommand contains data for creating an account
type RegisterCommand struct {
	Name     string
	Email    string
	Password string
}

// LoginCommand contains credentials plus client metadata recorded on
// the session row.
type LoginCommand struct {
	Email     string
	Password  string
	IPAddress string
	UserAgent string
}

// MFALoginCommand completes a login that answered MFARequired.
type MFALoginCommand struct {
	ChallengeID string
	Code        string
	IPAddress   string
	UserAgent   string
}

// AuthResult is the outcome of register, login and MFA completion.
// Exactly one of SessionToken or MFAChallengeID is set.
type AuthResult struct {
	User           *UserDTO
	SessionToken   string
	SessionExpires time.Time
	MFARequired    bool
	MFAChallengeID string
}

// UserDTO is the data transfer object for accounts
type UserDTO struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	Email         string  `json:"email"`
	EmailVerified bool    `json:"emailVerified"`
	Image         *string `json:"image,omitempty"`
	MFAEnabled    bool    `json:"mfaEnabled"`
}

// MFASetupDTO carries the enrollment secret for the authenticator app.
type MFASetupDTO struct {
	Secret    string `json:"secret"`
	QRCodeURL string `json:"qr_code_url"`
}

// UpdateSettingsCommand contains the full preference record; absent
// optional fields clear their stored values.
type UpdateSettingsCommand struct {
	UserID              string
	DietaryRestrictions *string
	SpiceTolerance      int
	CustomRules         *string
}

// SettingsDTO is the data transfer object for the preference record
type SettingsDTO struct {
	DietaryRestrictions *string   `json:"dietary_restrictions"`
	SpiceTolerance      int       `json:"spice_tolerance"`
	CustomRules         *string   `json:"custom_rules"`
	UpdatedAt           time.Time `json:"updated_at"`
}
