// Package testutils provides shared test infrastructure: fake data
// factories and a containerized Postgres for integration tests.
package testutils

import (
	"fmt"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"

	"github.com/yambati03/touille/internal/domain/recipe"
	"github.com/yambati03/touille/internal/domain/user"
)

// testPasswordHash is the bcrypt hash of "password". Reconstructed
// users carry it so tests that never authenticate skip the hashing
// cost. Tests that do authenticate should use RegisteredUser.
const testPasswordHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

var ingredientUnits = []string{"g", "ml", "cup", "tbsp", "tsp", "clove", "piece"}

// Factory produces fake domain objects. Seed it with a constant so a
// failing test reproduces the same data on every run.
type Factory struct {
	faker *gofakeit.Faker
}

// NewFactory creates a factory with a seeded faker.
func NewFactory(seed int64) *Factory {
	return &Factory{faker: gofakeit.New(seed)}
}

// VideoURL returns a TikTok video URL in the canonical share form.
func (f *Factory) VideoURL() string {
	return fmt.Sprintf("https://www.tiktok.com/@%s/video/%s", f.faker.Username(), f.faker.DigitN(19))
}

// Transcript returns a few paragraphs of spoken cooking narration.
func (f *Factory) Transcript() string {
	return f.faker.Paragraph(2, 4, 12, " ")
}

// Caption returns a video caption with the hashtag noise real captions
// carry.
func (f *Factory) Caption() string {
	return fmt.Sprintf("%s #%s #%s", f.faker.Sentence(6), f.faker.Word(), f.faker.Word())
}

// Document returns a valid extracted recipe document with randomized
// ingredients and steps.
func (f *Factory) Document() recipe.Document {
	ingredients := make([]recipe.Ingredient, f.faker.Number(3, 8))
	for i := range ingredients {
		ingredients[i] = recipe.Ingredient{
			Name:   f.ingredientName(),
			Amount: ptr(f.faker.Float64Range(0.25, 4)),
			Unit:   ptr(f.faker.RandomString(ingredientUnits)),
		}
	}

	steps := make([]recipe.Step, f.faker.Number(3, 6))
	for i := range steps {
		steps[i] = recipe.Step{
			Order:       i + 1,
			Instruction: f.faker.Sentence(8),
		}
		if f.faker.Bool() {
			steps[i].DurationMinutes = ptr(f.faker.Number(1, 45))
		}
	}

	return recipe.Document{
		Title:       f.faker.Dinner(),
		Description: ptr(f.faker.Sentence(12)),
		Servings:    &recipe.Servings{Amount: ptr(float64(f.faker.Number(2, 6))), Unit: ptr("servings")},
		Times: &recipe.Times{
			PrepMinutes: ptr(f.faker.Number(5, 30)),
			CookMinutes: ptr(f.faker.Number(10, 90)),
		},
		Ingredients: ingredients,
		Steps:       steps,
		Tags:        []string{f.faker.Word(), f.faker.Word()},
		Equipment:   []string{f.faker.RandomString([]string{"skillet", "dutch oven", "sheet pan", "wok"})},
	}
}

// Recipe returns a complete recipe aggregate owned by userID. An empty
// userID produces an anonymous recipe.
func (f *Factory) Recipe(userID string) *recipe.Recipe {
	rec, err := recipe.NewRecipe(f.VideoURL(), userID, f.Transcript(), ptr(f.Caption()), f.Document())
	if err != nil {
		panic(fmt.Sprintf("factory recipe: %v", err))
	}
	return rec
}

// User returns a verified user reconstructed with a canned password
// hash. Authentication against it only succeeds with "password".
func (f *Factory) User() *user.User {
	now := time.Now().UTC()
	return user.ReconstructUser(
		uuid.NewString(),
		f.faker.Name(),
		f.faker.Email(),
		true,
		nil,
		testPasswordHash,
		false,
		now,
		now,
		nil,
	)
}

// RegisteredUser runs the real registration path and returns the user
// along with the plaintext password it was created with.
func (f *Factory) RegisteredUser() (*user.User, string) {
	password := f.faker.Password(true, true, true, false, false, 14)
	u, err := user.NewUser(f.faker.Name(), f.faker.Email(), password)
	if err != nil {
		panic(fmt.Sprintf("factory user: %v", err))
	}
	return u, password
}

// Session returns a live login session for userID.
func (f *Factory) Session(userID string) *user.Session {
	s, err := user.NewSession(userID, time.Hour, f.faker.IPv4Address(), f.faker.UserAgent())
	if err != nil {
		panic(fmt.Sprintf("factory session: %v", err))
	}
	return s
}

// Settings returns randomized but valid preferences for userID.
func (f *Factory) Settings(userID string) *user.Settings {
	s, err := user.NewSettings(
		userID,
		ptr(f.faker.RandomString([]string{"vegetarian", "vegan", "gluten-free", "dairy-free"})),
		f.faker.Number(1, 5),
		nil,
	)
	if err != nil {
		panic(fmt.Sprintf("factory settings: %v", err))
	}
	return s
}

func (f *Factory) ingredientName() string {
	switch f.faker.Number(0, 2) {
	case 0:
		return f.faker.Vegetable()
	case 1:
		return f.faker.Fruit()
	default:
		return f.faker.NounConcrete()
	}
}

// RecipeBuilder assembles a recipe aggregate field by field. Defaults
// come from a fresh factory, so Build succeeds without any With calls.
type RecipeBuilder struct {
	url        string
	userID     string
	transcript string
	caption    *string
	doc        recipe.Document
}

// NewRecipeBuilder creates a builder populated with fake defaults.
func NewRecipeBuilder() *RecipeBuilder {
	f := NewFactory(time.Now().UnixNano())
	return &RecipeBuilder{
		url:        f.VideoURL(),
		userID:     recipe.AnonymousUserID,
		transcript: f.Transcript(),
		caption:    ptr(f.Caption()),
		doc:        f.Document(),
	}
}

// WithURL sets the source video URL.
func (b *RecipeBuilder) WithURL(url string) *RecipeBuilder {
	b.url = url
	return b
}

// WithUser sets the owning user.
func (b *RecipeBuilder) WithUser(userID string) *RecipeBuilder {
	b.userID = userID
	return b
}

// WithTranscript sets the transcript text.
func (b *RecipeBuilder) WithTranscript(transcript string) *RecipeBuilder {
	b.transcript = transcript
	return b
}

// WithCaption sets the caption. Pass nil for a caption-less video.
func (b *RecipeBuilder) WithCaption(caption *string) *RecipeBuilder {
	b.caption = caption
	return b
}

// WithDocument replaces the extracted document wholesale.
func (b *RecipeBuilder) WithDocument(doc recipe.Document) *RecipeBuilder {
	b.doc = doc
	return b
}

// WithTitle sets just the document title.
func (b *RecipeBuilder) WithTitle(title string) *RecipeBuilder {
	b.doc.Title = title
	return b
}

// Build runs the aggregate constructor with the assembled fields.
func (b *RecipeBuilder) Build() (*recipe.Recipe, error) {
	return recipe.NewRecipe(b.url, b.userID, b.transcript, b.caption, b.doc)
}

func ptr[T any](v T) *T {
	return &v
}
