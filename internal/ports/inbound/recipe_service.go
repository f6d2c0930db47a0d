// Package inbound defines the interfaces for inbound ports (primary/driving adapters)
// These are the interfaces that the application exposes to the outside world
package inbound

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/yambati03/touille/internal/domain/recipe"
)

// RecipeService defines the use cases around extracted recipes.
// This is the primary port that HTTP handlers and the CLI use.
type RecipeService interface {
	// ProcessVideo runs the full pipeline for a video URL: probe,
	// download, transcribe, extract, store. Identical (url, user)
	// pairs already in flight share one run.
	ProcessVideo(ctx context.Context, cmd ProcessVideoCommand) (*RecipeDTO, error)

	GetRecipe(ctx context.Context, recipeID uuid.UUID, userID string) (*RecipeDTO, error)
	ListRecipes(ctx context.Context, userID string, params PaginationParams) (*RecipeList, error)
	DeleteRecipe(ctx context.Context, recipeID uuid.UUID, userID string) error
}

// ProcessVideoCommand contains data for processing a video URL
type ProcessVideoCommand struct {
	URL string
	// UserID is empty for anonymous processing; the pipeline maps it
	// to the shared anonymous owner.
	UserID string
	// Refresh forces a fresh transcription and extraction even when a
	// stored recipe or cached transcript exists.
	Refresh bool
}

// PaginationParams for paginated queries
type PaginationParams struct {
	Page     int
	PageSize int
}

// RecipeDTO is the data transfer object for recipes
type RecipeDTO struct {
	ID        uuid.UUID       `json:"id"`
	URL       string          `json:"url"`
	Caption   *string         `json:"caption,omitempty"`
	Recipe    recipe.Document `json:"recipe"`
	CreatedAt time.Time       `json:"created_at"`
}

// RecipeList for paginated results
type RecipeList struct {
	Recipes    []RecipeDTO `json:"recipes"`
	Total      int         `json:"total"`
	Page       int         `json:"page"`
	PageSize   int         `json:"page_size"`
	TotalPages int         `json:"total_pages"`
}
