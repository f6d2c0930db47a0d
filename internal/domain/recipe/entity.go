// Package recipe contains the core domain logic for extracted recipes.
// A Recipe is the persisted result of one extraction run: the normalized
// source URL, the owning user, the raw transcript and caption, and the
// structured Document the model produced.
package recipe

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/yambati03/touille/internal/domain/shared"
)

// AnonymousUserID is the principal recipes belong to when no user is
// authenticated. It is a real key in storage, not a sentinel for "none".
const AnonymousUserID = "__anonymous__"

// Recipe is the aggregate root for one saved extraction
type Recipe struct {
	id        uuid.UUID
	url       string
	userID    string
	transcript string
	caption   *string
	document  Document
	createdAt time.Time

	events []shared.DomainEvent
}

// NewRecipe creates a Recipe from a completed extraction run. The URL is
// normalized here so every recipe carries its identity form, and the
// document is normalized then validated before the aggregate exists.
func NewRecipe(rawURL, userID, transcript string, caption *string, doc Document) (*Recipe, error) {
	normalized, err := NormalizeURL(rawURL)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(transcript) == "" {
		return nil, ErrEmptyTranscript
	}
	if userID == "" {
		userID = AnonymousUserID
	}

	doc.Normalize()
	if err := doc.Validate(); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	r := &Recipe{
		id:         uuid.New(),
		url:        normalized,
		userID:     userID,
		transcript: transcript,
		caption:    caption,
		document:   doc,
		createdAt:  now,
		events:     []shared.DomainEvent{},
	}

	r.addEvent(RecipeExtractedEvent{
		RecipeID:    r.id,
		URL:         normalized,
		UserID:      userID,
		Title:       doc.Title,
		StepCount:   len(doc.Steps),
		ExtractedAt: now,
	})

	return r, nil
}

// Reconstruct rebuilds a Recipe from storage without raising events or
// re-running normalization. Callers are repositories only.
func Reconstruct(id uuid.UUID, url, userID, transcript string, caption *string, doc Document, createdAt time.Time) *Recipe {
	return &Recipe{
		id:         id,
		url:        url,
		userID:     userID,
		transcript: transcript,
		caption:    caption,
		document:   doc,
		createdAt:  createdAt,
		events:     []shared.DomainEvent{},
	}
}

// ID returns the recipe's unique identifier
func (r *Recipe) ID() uuid.UUID {
	return r.id
}

// URL returns the normalized source URL
func (r *Recipe) URL() string {
	return r.url
}

// UserID returns the owning user id
func (r *Recipe) UserID() string {
	return r.userID
}

// Transcript returns the raw video transcript
func (r *Recipe) Transcript() string {
	return r.transcript
}

// Caption returns the video caption, when the platform supplied one
func (r *Recipe) Caption() *string {
	return r.caption
}

// Document returns the structured recipe document
func (r *Recipe) Document() Document {
	return r.document
}

// CreatedAt returns when the extraction was first saved
func (r *Recipe) CreatedAt() time.Time {
	return r.createdAt
}

// IsAnonymous reports whether the recipe belongs to the anonymous principal
func (r *Recipe) IsAnonymous() bool {
	return r.userID == AnonymousUserID
}

// OwnedBy reports whether the given user may act on this recipe
func (r *Recipe) OwnedBy(userID string) bool {
	if userID == "" {
		userID = AnonymousUserID
	}
	return r.userID == userID
}

// Replace swaps in the result of a fresh extraction run for the same URL,
// keeping identity and ownership. Used when a re-extraction is forced.
func (r *Recipe) Replace(transcript string, caption *string, doc Document) error {
	if strings.TrimSpace(transcript) == "" {
		return ErrEmptyTranscript
	}
	doc.Normalize()
	if err := doc.Validate(); err != nil {
		return err
	}

	r.transcript = transcript
	r.caption = caption
	r.document = doc

	r.addEvent(RecipeReplacedEvent{
		RecipeID:   r.id,
		URL:        r.url,
		Title:      doc.Title,
		ReplacedAt: time.Now().UTC(),
	})
	return nil
}

// Events returns and clears pending domain events
func (r *Recipe) Events() []shared.DomainEvent {
	events := r.events
	r.events = []shared.DomainEvent{}
	return events
}

func (r *Recipe) addEvent(event shared.DomainEvent) {
	r.events = append(r.events, event)
}
