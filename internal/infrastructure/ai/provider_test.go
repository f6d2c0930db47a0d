package ai

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/yambati03/touille/internal/infrastructure/ai/anthropic"
	"github.com/yambati03/touille/internal/infrastructure/ai/ollama"
	"github.com/yambati03/touille/internal/infrastructure/ai/prompt"
	"github.com/yambati03/touille/internal/infrastructure/config"
	"github.com/yambati03/touille/internal/ports/outbound"
)

// stubCompleter records prompts and plays back canned output.
type stubCompleter struct {
	response   string
	deltas     []string
	err        error
	lastSystem string
	lastUser   string
	history    []outbound.ChatMessage
}

func (s *stubCompleter) CompleteJSON(ctx context.Context, system, user string) (string, error) {
	s.lastSystem = system
	s.lastUser = user
	return s.response, s.err
}

func (s *stubCompleter) StreamChat(ctx context.Context, system string, history []outbound.ChatMessage, user string, onDelta func(string) error) error {
	s.lastSystem = system
	s.lastUser = user
	s.history = history
	for _, d := range s.deltas {
		if err := onDelta(d); err != nil {
			return err
		}
	}
	return s.err
}

func (s *stubCompleter) Name() string                          { return "stub" }
func (s *stubCompleter) HealthCheck(ctx context.Context) error { return nil }

func TestParseDocument(t *testing.T) {
	t.Run("strict JSON", func(t *testing.T) {
		doc, err := ParseDocument(`{"title":"Pad Thai","steps":[{"order":1,"instruction":"Soak noodles"}]}`)

		require.NoError(t, err)
		assert.Equal(t, "Pad Thai", doc.Title)
		require.Len(t, doc.Steps, 1)
	})

	t.Run("JSON wrapped in prose", func(t *testing.T) {
		raw := "Here is the recipe you asked for:\n```json\n{\"title\":\"Pad Thai\"}\n```\nEnjoy!"

		doc, err := ParseDocument(raw)

		require.NoError(t, err)
		assert.Equal(t, "Pad Thai", doc.Title)
	})

	t.Run("misnumbered steps are rewritten", func(t *testing.T) {
		raw := `{"title":"Soup","steps":[{"order":3,"instruction":"Chop"},{"order":7,"instruction":"Simmer"}]}`

		doc, err := ParseDocument(raw)

		require.NoError(t, err)
		require.Len(t, doc.Steps, 2)
		assert.Equal(t, 1, doc.Steps[0].Order)
		assert.Equal(t, 2, doc.Steps[1].Order)
	})

	t.Run("missing title fails", func(t *testing.T) {
		_, err := ParseDocument(`{"steps":[{"order":1,"instruction":"Chop"}]}`)
		assert.Error(t, err)
	})

	t.Run("no JSON at all fails", func(t *testing.T) {
		_, err := ParseDocument("I could not find a recipe in this video.")
		assert.Error(t, err)
	})
}

func TestExtractorBuildsPromptsAndParses(t *testing.T) {
	stub := &stubCompleter{response: `{"title":"Garlic Noodles","tags":["quick"]}`}
	extractor := NewExtractor(stub, prompt.NewLibrary(), zap.NewNop())

	caption := "so easy!"
	doc, err := extractor.Extract(context.Background(), "boil noodles, fry garlic", &caption,
		outbound.ExtractionPreferences{DietaryRestrictions: "vegetarian"})

	require.NoError(t, err)
	assert.Equal(t, "Garlic Noodles", doc.Title)
	assert.Contains(t, stub.lastSystem, "recipe extraction assistant")
	assert.Contains(t, stub.lastSystem, "Dietary restrictions: vegetarian")
	assert.Contains(t, stub.lastUser, "Video caption:\n\nso easy!")
	assert.Contains(t, stub.lastUser, "Transcript:\n\nboil noodles, fry garlic")
}

func TestExtractorRejectsUnusableOutput(t *testing.T) {
	stub := &stubCompleter{response: "sorry, no recipe here"}
	extractor := NewExtractor(stub, prompt.NewLibrary(), zap.NewNop())

	_, err := extractor.Extract(context.Background(), "transcript", nil, outbound.ExtractionPreferences{})

	assert.Error(t, err)
}

func TestChatStreamerForwardsDeltas(t *testing.T) {
	stub := &stubCompleter{deltas: []string{"Let", " it", " brown", " lightly"}}
	streamer := NewChatStreamer(stub, prompt.NewLibrary(), zap.NewNop())

	var got strings.Builder
	err := streamer.StreamReply(context.Background(), outbound.ChatPrompt{
		Message: "how brown?",
		History: []outbound.ChatMessage{{Role: "user", Content: "earlier question"}},
	}, func(delta string) error {
		got.WriteString(delta)
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, "Let it brown lightly", got.String())
	assert.Len(t, stub.history, 1)
	assert.Contains(t, stub.lastSystem, "cooking assistant")
}

func TestNewCompleterSelectsProvider(t *testing.T) {
	cfg := &config.Config{}
	cfg.Extract.Provider = "anthropic"
	completer, err := NewCompleter(cfg, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &anthropic.Client{}, completer)

	cfg.Extract.Provider = "ollama"
	completer, err = NewCompleter(cfg, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &ollama.Client{}, completer)

	cfg.Extract.Provider = "bard"
	_, err = NewCompleter(cfg, zap.NewNop())
	assert.Error(t, err)
}
