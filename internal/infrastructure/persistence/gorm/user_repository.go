// Package gorm provides GORM-based repository implementations
package gorm

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	gormlib "gorm.io/gorm"

	"github.com/yambati03/touille/internal/domain/user"
	"github.com/yambati03/touille/internal/ports/outbound"
)

// credentialProviderID marks the account row that carries the password
// hash, as opposed to rows from external identity providers.
const credentialProviderID = "credential"

// UserRepository implements the user repository interface using GORM
type UserRepository struct {
	db *gormlib.DB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *gormlib.DB) outbound.UserRepository {
	return &UserRepository{db: db}
}

// Create stores a new user together with its credential account row
func (r *UserRepository) Create(ctx context.Context, u *user.User) error {
	model := UserToModel(u)
	hash := u.PasswordHash()
	account := &AccountModel{
		ID:         uuid.NewString(),
		AccountID:  u.ID(),
		ProviderID: credentialProviderID,
		UserID:     u.ID(),
		Password:   &hash,
		CreatedAt:  u.CreatedAt(),
		UpdatedAt:  u.UpdatedAt(),
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gormlib.DB) error {
		if err := tx.Create(model).Error; err != nil {
			return err
		}
		return tx.Create(account).Error
	})
	if err != nil {
		if isDuplicateKey(err) {
			return user.ErrEmailAlreadyExists
		}
		return err
	}

	return nil
}

// Update updates an existing user and its credential hash
func (r *UserRepository) Update(ctx context.Context, u *user.User) error {
	model := UserToModel(u)
	hash := u.PasswordHash()

	return r.db.WithContext(ctx).Transaction(func(tx *gormlib.DB) error {
		result := tx.Save(model)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return user.ErrUserNotFound
		}

		return tx.Model(&AccountModel{}).
			Where(`"userId" = ? AND "providerId" = ?`, u.ID(), credentialProviderID).
			Updates(map[string]interface{}{
				"password":  &hash,
				"updatedAt": u.UpdatedAt(),
			}).Error
	})
}

// FindByID finds a user by ID
func (r *UserRepository) FindByID(ctx context.Context, id string) (*user.User, error) {
	return r.findOne(ctx, "id = ?", id)
}

// FindByEmail finds a user by email
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*user.User, error) {
	return r.findOne(ctx, "email = ?", strings.ToLower(strings.TrimSpace(email)))
}

// ExistsByEmail checks whether an email address is already registered
func (r *UserRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var count int64

	result := r.db.WithContext(ctx).Model(&UserModel{}).
		Where("email = ?", strings.ToLower(strings.TrimSpace(email))).
		Count(&count)
	if result.Error != nil {
		return false, result.Error
	}

	return count > 0, nil
}

func (r *UserRepository) findOne(ctx context.Context, query string, arg interface{}) (*user.User, error) {
	var model UserModel

	result := r.db.WithContext(ctx).First(&model, query, arg)
	if result.Error != nil {
		if errors.Is(result.Error, gormlib.ErrRecordNotFound) {
			return nil, user.ErrUserNotFound
		}
		return nil, result.Error
	}

	var account AccountModel
	hash := ""
	accountResult := r.db.WithContext(ctx).
		First(&account, `"userId" = ? AND "providerId" = ?`, model.ID, credentialProviderID)
	if accountResult.Error == nil && account.Password != nil {
		hash = *account.Password
	} else if accountResult.Error != nil && !errors.Is(accountResult.Error, gormlib.ErrRecordNotFound) {
		return nil, accountResult.Error
	}

	return ModelToUser(&model, hash), nil
}

func isDuplicateKey(err error) bool {
	if errors.Is(err, gormlib.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key")
}
