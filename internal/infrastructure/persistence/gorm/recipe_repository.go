// Package gorm provides GORM-based repository implementations
package gorm

import (
	"context"
	"errors"

	"github.com/google/uuid"
	gormlib "gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yambati03/touille/internal/domain/recipe"
	"github.com/yambati03/touille/internal/ports/outbound"
)

// RecipeRepository implements the recipe repository interface using GORM
type RecipeRepository struct {
	db *gormlib.DB
}

// NewRecipeRepository creates a new recipe repository
func NewRecipeRepository(db *gormlib.DB) outbound.RecipeRepository {
	return &RecipeRepository{db: db}
}

// Upsert stores a recipe, replacing the transcript, caption and
// document of an existing (url, user_id) row. The original created_at
// is kept on replacement.
func (r *RecipeRepository) Upsert(ctx context.Context, rec *recipe.Recipe) error {
	model := RecipeToModel(rec)

	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "url"}, {Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"transcript", "caption", "recipe",
			}),
		}).
		Create(model)

	return result.Error
}

// FindByID finds a recipe by ID
func (r *RecipeRepository) FindByID(ctx context.Context, id uuid.UUID) (*recipe.Recipe, error) {
	var model RecipeModel

	result := r.db.WithContext(ctx).First(&model, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gormlib.ErrRecordNotFound) {
			return nil, recipe.ErrRecipeNotFound
		}
		return nil, result.Error
	}

	return ModelToRecipe(&model), nil
}

// FindByURL finds the stored extraction for a normalized URL and owner
func (r *RecipeRepository) FindByURL(ctx context.Context, url, userID string) (*recipe.Recipe, error) {
	var model RecipeModel

	result := r.db.WithContext(ctx).
		First(&model, "url = ? AND user_id = ?", url, userID)
	if result.Error != nil {
		if errors.Is(result.Error, gormlib.ErrRecordNotFound) {
			return nil, recipe.ErrRecipeNotFound
		}
		return nil, result.Error
	}

	return ModelToRecipe(&model), nil
}

// FindByUserID finds recipes by user ID with pagination, newest first
func (r *RecipeRepository) FindByUserID(ctx context.Context, userID string, offset, limit int) ([]*recipe.Recipe, int, error) {
	var models []RecipeModel
	var total int64

	countResult := r.db.WithContext(ctx).Model(&RecipeModel{}).
		Where("user_id = ?", userID).
		Count(&total)
	if countResult.Error != nil {
		return nil, 0, countResult.Error
	}

	result := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&models)
	if result.Error != nil {
		return nil, 0, result.Error
	}

	recipes := make([]*recipe.Recipe, len(models))
	for i := range models {
		recipes[i] = ModelToRecipe(&models[i])
	}

	return recipes, int(total), nil
}

// Delete removes a recipe owned by userID. A missing row and a row
// owned by someone else are both reported as not found.
func (r *RecipeRepository) Delete(ctx context.Context, id uuid.UUID, userID string) error {
	result := r.db.WithContext(ctx).
		Delete(&RecipeModel{}, "id = ? AND user_id = ?", id, userID)
	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return recipe.ErrRecipeNotFound
	}

	return nil
}
