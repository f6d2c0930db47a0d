package recipe

import "errors"

// Domain errors for recipe extraction and storage

var (
	// Document validation errors
	ErrTitleRequired           = errors.New("recipe title is required")
	ErrIngredientNameRequired  = errors.New("ingredient name is required")
	ErrStepInstructionRequired = errors.New("step instruction is required")
	ErrNegativeAmount          = errors.New("ingredient amount cannot be negative")
	ErrNegativeDuration        = errors.New("step duration cannot be negative")

	// Source errors
	ErrInvalidURL       = errors.New("video URL must be an absolute http or https URL")
	ErrEmptyTranscript  = errors.New("transcript is empty")
	ErrUnknownStep      = errors.New("recipe has no step with that order")
	ErrRecipeNotFound   = errors.New("recipe not found")
	ErrNotRecipeOwner   = errors.New("recipe belongs to another user")
)
