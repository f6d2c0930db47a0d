package user

import (
	"strings"
	"time"
)

// Spice tolerance bounds. The scale runs from "mild only" to "bring it on".
const (
	SpiceToleranceMin     = 1
	SpiceToleranceMax     = 5
	SpiceToleranceDefault = 2
)

// Free-text fields are capped so a runaway client cannot bloat the
// extraction prompt.
const maxSettingsTextLen = 2000

// Common dietary restrictions offered as suggestions in the settings UI.
// The stored value is free text, so anything else is equally valid.
const (
	DietVegetarian = "vegetarian"
	DietVegan      = "vegan"
	DietGlutenFree = "gluten-free"
	DietDairyFree  = "dairy-free"
	DietNutFree    = "nut-free"
	DietHalal      = "halal"
	DietKosher     = "kosher"
)

// Settings is the per-user preference record that biases recipe
// extraction and step chat. A user without a stored row gets defaults.
type Settings struct {
	userID              string
	dietaryRestrictions *string
	spiceTolerance      int
	customRules         *string
	updatedAt           time.Time
}

// NewSettings creates a preference record with validation.
func NewSettings(userID string, dietaryRestrictions *string, spiceTolerance int, customRules *string) (*Settings, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrUserIDRequired
	}
	if spiceTolerance < SpiceToleranceMin || spiceTolerance > SpiceToleranceMax {
		return nil, ErrSpiceToleranceOutOfRange
	}
	dietaryRestrictions = normalizeOptionalText(dietaryRestrictions)
	customRules = normalizeOptionalText(customRules)
	if dietaryRestrictions != nil && len(*dietaryRestrictions) > maxSettingsTextLen {
		return nil, ErrSettingsTextTooLong
	}
	if customRules != nil && len(*customRules) > maxSettingsTextLen {
		return nil, ErrSettingsTextTooLong
	}

	return &Settings{
		userID:              userID,
		dietaryRestrictions: dietaryRestrictions,
		spiceTolerance:      spiceTolerance,
		customRules:         customRules,
		updatedAt:           time.Now().UTC(),
	}, nil
}

// DefaultSettings returns the record used when a user has never saved
// preferences.
func DefaultSettings(userID string) *Settings {
	return &Settings{
		userID:         userID,
		spiceTolerance: SpiceToleranceDefault,
		updatedAt:      time.Now().UTC(),
	}
}

// ReconstructSettings rebuilds a Settings record from storage.
func ReconstructSettings(userID string, dietaryRestrictions *string, spiceTolerance int, customRules *string, updatedAt time.Time) *Settings {
	return &Settings{
		userID:              userID,
		dietaryRestrictions: dietaryRestrictions,
		spiceTolerance:      spiceTolerance,
		customRules:         customRules,
		updatedAt:           updatedAt,
	}
}

// UserID returns the owning user's ID.
func (s *Settings) UserID() string {
	return s.userID
}

// DietaryRestrictions returns the free-text restrictions, if any.
func (s *Settings) DietaryRestrictions() *string {
	return s.dietaryRestrictions
}

// SpiceTolerance returns the tolerance on the 1..5 scale.
func (s *Settings) SpiceTolerance() int {
	return s.spiceTolerance
}

// CustomRules returns the free-text extraction rules, if any.
func (s *Settings) CustomRules() *string {
	return s.customRules
}

// UpdatedAt returns when the record was last saved.
func (s *Settings) UpdatedAt() time.Time {
	return s.updatedAt
}

// IsDefault reports whether the record carries no user-provided content.
func (s *Settings) IsDefault() bool {
	return s.dietaryRestrictions == nil &&
		s.customRules == nil &&
		s.spiceTolerance == SpiceToleranceDefault
}

func normalizeOptionalText(v *string) *string {
	if v == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*v)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
