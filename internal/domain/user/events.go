package user

import "time"

// UserRegisteredEvent is raised when a new account is created.
type UserRegisteredEvent struct {
	UserID       string
	Email        string
	RegisteredAt time.Time
}

// EventName returns the event name
func (e UserRegisteredEvent) EventName() string {
	return "user.registered"
}

// OccurredAt returns when the event occurred
func (e UserRegisteredEvent) OccurredAt() time.Time {
	return e.RegisteredAt
}

// UserEmailVerifiedEvent is raised when an email address is confirmed.
type UserEmailVerifiedEvent struct {
	UserID     string
	VerifiedAt time.Time
}

// EventName returns the event name
func (e UserEmailVerifiedEvent) EventName() string {
	return "user.email_verified"
}

// OccurredAt returns when the event occurred
func (e UserEmailVerifiedEvent) OccurredAt() time.Time {
	return e.VerifiedAt
}
