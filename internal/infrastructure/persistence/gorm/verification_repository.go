package gorm

import (
	"context"
	"time"

	"github.com/google/uuid"
	gormlib "gorm.io/gorm"

	"github.com/yambati03/touille/internal/ports/outbound"
)

// VerificationRepository stores single-use verification tokens using GORM
type VerificationRepository struct {
	db *gormlib.DB
}

// NewVerificationRepository creates a new verification repository
func NewVerificationRepository(db *gormlib.DB) outbound.VerificationRepository {
	return &VerificationRepository{db: db}
}

// Save stores a token for an identifier, replacing earlier tokens for
// the same identifier so only the latest link works.
func (r *VerificationRepository) Save(ctx context.Context, identifier, value string, expiresAt time.Time) error {
	now := time.Now().UTC()
	model := &VerificationModel{
		ID:         uuid.NewString(),
		Identifier: identifier,
		Value:      value,
		ExpiresAt:  expiresAt,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gormlib.DB) error {
		if err := tx.Delete(&VerificationModel{}, "identifier = ?", identifier).Error; err != nil {
			return err
		}
		return tx.Create(model).Error
	})
}

// Consume removes the token on a match and reports whether it was
// valid. Expired tokens never match.
func (r *VerificationRepository) Consume(ctx context.Context, identifier, value string) (bool, error) {
	result := r.db.WithContext(ctx).
		Delete(&VerificationModel{},
			`identifier = ? AND value = ? AND "expiresAt" > ?`,
			identifier, value, time.Now().UTC())
	if result.Error != nil {
		return false, result.Error
	}

	return result.RowsAffected > 0, nil
}

// DeleteExpired removes tokens past their expiry and returns the count
func (r *VerificationRepository) DeleteExpired(ctx context.Context) (int64, error) {
	result := r.db.WithContext(ctx).
		Delete(&VerificationModel{}, `"expiresAt" < ?`, time.Now().UTC())
	return result.RowsAffected, result.Error
}
