// Package user defines the user domain: accounts, sessions and the
// per-user preference record that biases extraction.
package user

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/yambati03/touille/internal/domain/shared"
)

// User represents a registered account. IDs are text, matching the auth
// schema the web clients were built against.
type User struct {
	id            string
	name          string
	email         string
	emailVerified bool
	image         *string
	passwordHash  string
	mfaEnabled    bool
	createdAt     time.Time
	updatedAt     time.Time
	lastLoginAt   *time.Time

	events []shared.DomainEvent
}

// NewUser creates a new user with validation
func NewUser(name, email, password string) (*User, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if err := validatePassword(password); err != nil {
		return nil, err
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, ErrPasswordHashing
	}

	now := time.Now().UTC()
	u := &User{
		id:            uuid.NewString(),
		name:          strings.TrimSpace(name),
		email:         strings.ToLower(strings.TrimSpace(email)),
		emailVerified: false,
		passwordHash:  string(hashedPassword),
		createdAt:     now,
		updatedAt:     now,
		events:        []shared.DomainEvent{},
	}

	u.addEvent(UserRegisteredEvent{
		UserID:       u.id,
		Email:        u.email,
		RegisteredAt: now,
	})

	return u, nil
}

// ReconstructUser rebuilds a User from storage without raising events
func ReconstructUser(id, name, email string, emailVerified bool, image *string, passwordHash string, mfaEnabled bool, createdAt, updatedAt time.Time, lastLoginAt *time.Time) *User {
	return &User{
		id:            id,
		name:          name,
		email:         email,
		emailVerified: emailVerified,
		image:         image,
		passwordHash:  passwordHash,
		mfaEnabled:    mfaEnabled,
		createdAt:     createdAt,
		updatedAt:     updatedAt,
		lastLoginAt:   lastLoginAt,
		events:        []shared.DomainEvent{},
	}
}

// ID returns the user's ID
func (u *User) ID() string {
	return u.id
}

// Name returns the user's display name
func (u *User) Name() string {
	return u.name
}

// Email returns the user's email
func (u *User) Email() string {
	return u.email
}

// EmailVerified returns whether the email address has been verified
func (u *User) EmailVerified() bool {
	return u.emailVerified
}

// Image returns the user's avatar URL, if set
func (u *User) Image() *string {
	return u.image
}

// PasswordHash returns the stored bcrypt hash
func (u *User) PasswordHash() string {
	return u.passwordHash
}

// MFAEnabled returns whether a second factor is required at login
func (u *User) MFAEnabled() bool {
	return u.mfaEnabled
}

// CreatedAt returns when the user was created
func (u *User) CreatedAt() time.Time {
	return u.createdAt
}

// UpdatedAt returns when the user was last updated
func (u *User) UpdatedAt() time.Time {
	return u.updatedAt
}

// LastLoginAt returns when the user last logged in
func (u *User) LastLoginAt() *time.Time {
	return u.lastLoginAt
}

// CheckPassword verifies if the provided password matches
func (u *User) CheckPassword(password string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(u.passwordHash), []byte(password)); err != nil {
		return ErrInvalidPassword
	}
	return nil
}

// UpdatePassword updates the user's password
func (u *User) UpdatePassword(newPassword string) error {
	if err := validatePassword(newPassword); err != nil {
		return err
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return ErrPasswordHashing
	}

	u.passwordHash = string(hashedPassword)
	u.updatedAt = time.Now().UTC()
	return nil
}

// UpdateName changes the display name
func (u *User) UpdateName(name string) error {
	if err := validateName(name); err != nil {
		return err
	}
	u.name = strings.TrimSpace(name)
	u.updatedAt = time.Now().UTC()
	return nil
}

// SetImage sets the avatar URL
func (u *User) SetImage(image *string) {
	u.image = image
	u.updatedAt = time.Now().UTC()
}

// VerifyEmail marks the email address as verified
func (u *User) VerifyEmail() {
	if u.emailVerified {
		return
	}
	u.emailVerified = true
	now := time.Now().UTC()
	u.updatedAt = now
	u.addEvent(UserEmailVerifiedEvent{UserID: u.id, VerifiedAt: now})
}

// EnableMFA marks the account as requiring a second factor
func (u *User) EnableMFA() {
	u.mfaEnabled = true
	u.updatedAt = time.Now().UTC()
}

// DisableMFA removes the second factor requirement
func (u *User) DisableMFA() {
	u.mfaEnabled = false
	u.updatedAt = time.Now().UTC()
}

// RecordLogin records a login timestamp
func (u *User) RecordLogin() {
	now := time.Now().UTC()
	u.lastLoginAt = &now
	u.updatedAt = now
}

// Events returns and clears pending domain events
func (u *User) Events() []shared.DomainEvent {
	events := u.events
	u.events = []shared.DomainEvent{}
	return events
}

func (u *User) addEvent(event shared.DomainEvent) {
	u.events = append(u.events, event)
}

// Validation functions

func validateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return ErrEmailRequired
	}
	at := strings.Index(email, "@")
	if at <= 0 || at == len(email)-1 {
		return ErrEmailInvalid
	}
	if len(email) > 255 {
		return ErrEmailTooLong
	}
	return nil
}

func validateName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrNameRequired
	}
	if len(name) < 2 {
		return ErrNameTooShort
	}
	if len(name) > 100 {
		return ErrNameTooLong
	}
	return nil
}

func validatePassword(password string) error {
	if len(password) < 8 {
		return ErrPasswordTooShort
	}
	if len(password) > 128 {
		return ErrPasswordTooLong
	}
	return nil
}
