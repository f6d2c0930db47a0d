// Package gorm provides mapping between domain entities and GORM models
package gorm

import (
	"github.com/yambati03/touille/internal/domain/recipe"
	"github.com/yambati03/touille/internal/domain/user"
)

// RecipeToModel converts a domain recipe to a GORM model
func RecipeToModel(r *recipe.Recipe) *RecipeModel {
	return &RecipeModel{
		ID:         r.ID(),
		URL:        r.URL(),
		UserID:     r.UserID(),
		Transcript: r.Transcript(),
		Caption:    r.Caption(),
		Document:   DocumentField(r.Document()),
		CreatedAt:  r.CreatedAt(),
	}
}

// ModelToRecipe converts a GORM model to a domain recipe
func ModelToRecipe(model *RecipeModel) *recipe.Recipe {
	return recipe.Reconstruct(
		model.ID,
		model.URL,
		model.UserID,
		model.Transcript,
		model.Caption,
		recipe.Document(model.Document),
		model.CreatedAt,
	)
}

// UserToModel converts a domain user to a GORM model. The credential
// account row travels separately, see CredentialToModel.
func UserToModel(u *user.User) *UserModel {
	return &UserModel{
		ID:               u.ID(),
		Name:             u.Name(),
		Email:            u.Email(),
		EmailVerified:    u.EmailVerified(),
		Image:            u.Image(),
		TwoFactorEnabled: u.MFAEnabled(),
		CreatedAt:        u.CreatedAt(),
		UpdatedAt:        u.UpdatedAt(),
		LastLoginAt:      u.LastLoginAt(),
	}
}

// ModelToUser converts a GORM model and its credential hash to a domain user
func ModelToUser(model *UserModel, passwordHash string) *user.User {
	return user.ReconstructUser(
		model.ID,
		model.Name,
		model.Email,
		model.EmailVerified,
		model.Image,
		passwordHash,
		model.TwoFactorEnabled,
		model.CreatedAt,
		model.UpdatedAt,
		model.LastLoginAt,
	)
}

// SessionToModel converts a domain session to a GORM model
func SessionToModel(s *user.Session) *SessionModel {
	return &SessionModel{
		ID:        s.ID(),
		ExpiresAt: s.ExpiresAt(),
		Token:     s.Token(),
		IPAddress: optionalString(s.IPAddress()),
		UserAgent: optionalString(s.UserAgent()),
		UserID:    s.UserID(),
		CreatedAt: s.CreatedAt(),
		UpdatedAt: s.UpdatedAt(),
	}
}

// ModelToSession converts a GORM model to a domain session
func ModelToSession(model *SessionModel) *user.Session {
	return user.ReconstructSession(
		model.ID,
		model.UserID,
		model.Token,
		model.ExpiresAt,
		stringOrEmpty(model.IPAddress),
		stringOrEmpty(model.UserAgent),
		model.CreatedAt,
		model.UpdatedAt,
	)
}

// SettingsToModel converts a domain preference record to a GORM model
func SettingsToModel(s *user.Settings) *UserSettingsModel {
	return &UserSettingsModel{
		UserID:              s.UserID(),
		DietaryRestrictions: s.DietaryRestrictions(),
		SpiceTolerance:      s.SpiceTolerance(),
		CustomRules:         s.CustomRules(),
		UpdatedAt:           s.UpdatedAt(),
	}
}

// ModelToSettings converts a GORM model to a domain preference record
func ModelToSettings(model *UserSettingsModel) *user.Settings {
	return user.ReconstructSettings(
		model.UserID,
		model.DietaryRestrictions,
		model.SpiceTolerance,
		model.CustomRules,
		model.UpdatedAt,
	)
}

func optionalString(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

func stringOrEmpty(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
