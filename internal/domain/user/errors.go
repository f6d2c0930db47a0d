package user

import "errors"

// Domain errors for user operations
var (
	ErrEmailRequired    = errors.New("email is required")
	ErrEmailInvalid     = errors.New("email format is invalid")
	ErrEmailTooLong     = errors.New("email must be at most 255 characters")
	ErrNameRequired     = errors.New("name is required")
	ErrNameTooShort     = errors.New("name must be at least 2 characters")
	ErrNameTooLong      = errors.New("name must be at most 100 characters")
	ErrPasswordTooShort = errors.New("password must be at least 8 characters")
	ErrPasswordTooLong  = errors.New("password must be at most 128 characters")
	ErrPasswordHashing  = errors.New("failed to hash password")
	ErrInvalidPassword  = errors.New("invalid password")

	ErrUserNotFound       = errors.New("user not found")
	ErrEmailAlreadyExists = errors.New("email already registered")

	ErrUserIDRequired           = errors.New("user id is required")
	ErrSpiceToleranceOutOfRange = errors.New("spice tolerance must be between 1 and 5")
	ErrSettingsTextTooLong      = errors.New("settings text exceeds the maximum length")

	ErrSessionNotFound   = errors.New("session not found")
	ErrSessionExpired    = errors.New("session expired")
	ErrSessionTTLInvalid = errors.New("session ttl must be positive")
	ErrTokenGeneration   = errors.New("failed to generate token")
)
