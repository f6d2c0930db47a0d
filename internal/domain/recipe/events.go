package recipe

import (
	"time"

	"github.com/google/uuid"
)

// Domain events raised by the recipe aggregate

// RecipeExtractedEvent is raised when a new extraction is saved
type RecipeExtractedEvent struct {
	RecipeID    uuid.UUID
	URL         string
	UserID      string
	Title       string
	StepCount   int
	ExtractedAt time.Time
}

func (e RecipeExtractedEvent) EventName() string {
	return "recipe.extracted"
}

func (e RecipeExtractedEvent) OccurredAt() time.Time {
	return e.ExtractedAt
}

// RecipeReplacedEvent is raised when a forced re-extraction overwrites
// an existing recipe for the same URL and user
type RecipeReplacedEvent struct {
	RecipeID   uuid.UUID
	URL        string
	Title      string
	ReplacedAt time.Time
}

func (e RecipeReplacedEvent) EventName() string {
	return "recipe.replaced"
}

func (e RecipeReplacedEvent) OccurredAt() time.Time {
	return e.ReplacedAt
}

// RecipeDeletedEvent is raised when a user removes a saved recipe
type RecipeDeletedEvent struct {
	RecipeID  uuid.UUID
	UserID    string
	DeletedAt time.Time
}

func (e RecipeDeletedEvent) EventName() string {
	return "recipe.deleted"
}

func (e RecipeDeletedEvent) OccurredAt() time.Time {
	return e.DeletedAt
}
