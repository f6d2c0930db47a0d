// Package memory provides map-backed repository implementations. They
// serve the one-shot CLI pipeline and tests, where spinning up Postgres
// and Redis would be absurd overhead.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/yambati03/touille/internal/domain/recipe"
	"github.com/yambati03/touille/internal/ports/outbound"
)

// RecipeRepository implements the recipe repository interface in memory
type RecipeRepository struct {
	mu      sync.RWMutex
	byID    map[uuid.UUID]*recipe.Recipe
	byOwner map[string]*recipe.Recipe
}

// NewRecipeRepository creates a new in-memory recipe repository
func NewRecipeRepository() outbound.RecipeRepository {
	return &RecipeRepository{
		byID:    make(map[uuid.UUID]*recipe.Recipe),
		byOwner: make(map[string]*recipe.Recipe),
	}
}

func ownerKey(url, userID string) string {
	return url + "\x00" + userID
}

// Upsert stores a recipe. A second extraction for the same (url, user)
// replaces the document but keeps the original identity and creation
// time, matching the database repository.
func (r *RecipeRepository) Upsert(ctx context.Context, rec *recipe.Recipe) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := ownerKey(rec.URL(), rec.UserID())
	stored := rec
	if prev, ok := r.byOwner[key]; ok {
		stored = recipe.Reconstruct(prev.ID(), rec.URL(), rec.UserID(), rec.Transcript(), rec.Caption(), rec.Document(), prev.CreatedAt())
	}

	r.byOwner[key] = stored
	r.byID[stored.ID()] = stored
	return nil
}

// FindByID finds a recipe by ID
func (r *RecipeRepository) FindByID(ctx context.Context, id uuid.UUID) (*recipe.Recipe, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.byID[id]
	if !ok {
		return nil, recipe.ErrRecipeNotFound
	}
	return rec, nil
}

// FindByURL finds the stored extraction for a normalized URL and owner
func (r *RecipeRepository) FindByURL(ctx context.Context, url, userID string) (*recipe.Recipe, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.byOwner[ownerKey(url, userID)]
	if !ok {
		return nil, recipe.ErrRecipeNotFound
	}
	return rec, nil
}

// FindByUserID finds recipes by user ID with pagination, newest first
func (r *RecipeRepository) FindByUserID(ctx context.Context, userID string, offset, limit int) ([]*recipe.Recipe, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var owned []*recipe.Recipe
	for _, rec := range r.byOwner {
		if rec.UserID() == userID {
			owned = append(owned, rec)
		}
	}
	sort.Slice(owned, func(i, j int) bool {
		return owned[i].CreatedAt().After(owned[j].CreatedAt())
	})

	total := len(owned)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if limit <= 0 || end > total {
		end = total
	}
	return owned[offset:end], total, nil
}

// Delete removes a recipe owned by the given user
func (r *RecipeRepository) Delete(ctx context.Context, id uuid.UUID, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.byID[id]
	if !ok || rec.UserID() != userID {
		return recipe.ErrRecipeNotFound
	}

	delete(r.byID, id)
	delete(r.byOwner, ownerKey(rec.URL(), rec.UserID()))
	return nil
}
