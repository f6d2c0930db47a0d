// Package gorm provides GORM model definitions for the application
package gorm

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	gormlib "gorm.io/gorm"

	"github.com/yambati03/touille/internal/domain/recipe"
)

// RecipeModel represents the GORM model for extracted recipes.
// (url, user_id) is unique so reprocessing a video replaces the row.
type RecipeModel struct {
	ID         uuid.UUID     `gorm:"type:uuid;primaryKey"`
	URL        string        `gorm:"type:text;not null;uniqueIndex:uq_recipes_url_user_id"`
	UserID     string        `gorm:"column:user_id;type:text;not null;default:'__anonymous__';uniqueIndex:uq_recipes_url_user_id;index:idx_recipes_user_id"`
	Transcript string        `gorm:"type:text;not null"`
	Caption    *string       `gorm:"type:text"`
	Document   DocumentField `gorm:"column:recipe;type:jsonb;not null"`
	CreatedAt  time.Time     `gorm:"not null"`
}

// UserModel represents the GORM model for accounts. Column names are
// camelCase to stay byte-compatible with the auth schema the web
// clients were built against.
type UserModel struct {
	ID               string     `gorm:"type:text;primaryKey"`
	Name             string     `gorm:"type:text;not null"`
	Email            string     `gorm:"type:text;not null;uniqueIndex"`
	EmailVerified    bool       `gorm:"column:emailVerified;not null;default:false"`
	Image            *string    `gorm:"type:text"`
	TwoFactorEnabled bool       `gorm:"column:twoFactorEnabled;not null;default:false"`
	CreatedAt        time.Time  `gorm:"column:createdAt;not null"`
	UpdatedAt        time.Time  `gorm:"column:updatedAt;not null"`
	LastLoginAt      *time.Time `gorm:"column:lastLoginAt"`

	// Relationships
	Sessions []SessionModel `gorm:"foreignKey:UserID"`
	Accounts []AccountModel `gorm:"foreignKey:UserID"`
}

// SessionModel represents the GORM model for login sessions
type SessionModel struct {
	ID        string    `gorm:"type:text;primaryKey"`
	ExpiresAt time.Time `gorm:"column:expiresAt;not null"`
	Token     string    `gorm:"type:text;not null;uniqueIndex"`
	IPAddress *string   `gorm:"column:ipAddress;type:text"`
	UserAgent *string   `gorm:"column:userAgent;type:text"`
	UserID    string    `gorm:"column:userId;type:text;not null;index"`
	CreatedAt time.Time `gorm:"column:createdAt;not null"`
	UpdatedAt time.Time `gorm:"column:updatedAt;not null"`
}

// AccountModel represents the GORM model for login credentials. The
// credential provider stores the bcrypt hash in Password; the remaining
// columns exist for parity with the auth schema.
type AccountModel struct {
	ID                    string     `gorm:"type:text;primaryKey"`
	AccountID             string     `gorm:"column:accountId;type:text;not null"`
	ProviderID            string     `gorm:"column:providerId;type:text;not null"`
	UserID                string     `gorm:"column:userId;type:text;not null;index"`
	AccessToken           *string    `gorm:"column:accessToken;type:text"`
	RefreshToken          *string    `gorm:"column:refreshToken;type:text"`
	IDToken               *string    `gorm:"column:idToken;type:text"`
	AccessTokenExpiresAt  *time.Time `gorm:"column:accessTokenExpiresAt"`
	RefreshTokenExpiresAt *time.Time `gorm:"column:refreshTokenExpiresAt"`
	Scope                 *string    `gorm:"type:text"`
	Password              *string    `gorm:"type:text"`
	CreatedAt             time.Time  `gorm:"column:createdAt;not null"`
	UpdatedAt             time.Time  `gorm:"column:updatedAt;not null"`
}

// VerificationModel represents the GORM model for single-use tokens
type VerificationModel struct {
	ID         string    `gorm:"type:text;primaryKey"`
	Identifier string    `gorm:"type:text;not null;index"`
	Value      string    `gorm:"type:text;not null"`
	ExpiresAt  time.Time `gorm:"column:expiresAt;not null"`
	CreatedAt  time.Time `gorm:"column:createdAt;not null"`
	UpdatedAt  time.Time `gorm:"column:updatedAt;not null"`
}

// UserSettingsModel represents the GORM model for the preference record
type UserSettingsModel struct {
	UserID              string    `gorm:"column:user_id;type:text;primaryKey"`
	DietaryRestrictions *string   `gorm:"type:text"`
	SpiceTolerance      int       `gorm:"not null;default:2"`
	CustomRules         *string   `gorm:"type:text"`
	UpdatedAt           time.Time `gorm:"not null"`
}

// DocumentField stores a recipe document as a jsonb column
type DocumentField recipe.Document

// Scan implements the sql.Scanner interface
func (d *DocumentField) Scan(value interface{}) error {
	if value == nil {
		*d = DocumentField{}
		return nil
	}

	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, d)
	case string:
		return json.Unmarshal([]byte(v), d)
	default:
		return fmt.Errorf("cannot scan %T into DocumentField", value)
	}
}

// Value implements the driver.Valuer interface
func (d DocumentField) Value() (driver.Value, error) {
	return json.Marshal(d)
}

// BeforeCreate hook for RecipeModel
func (r *RecipeModel) BeforeCreate(tx *gormlib.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// TableName methods for custom table names

func (RecipeModel) TableName() string {
	return "recipes"
}

func (UserModel) TableName() string {
	return "user"
}

func (SessionModel) TableName() string {
	return "session"
}

func (AccountModel) TableName() string {
	return "account"
}

func (VerificationModel) TableName() string {
	return "verification"
}

func (UserSettingsModel) TableName() string {
	return "user_settings"
}
