package ai

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/yambati03/touille/internal/domain/recipe"
	"github.com/yambati03/touille/internal/infrastructure/ai/anthropic"
	"github.com/yambati03/touille/internal/infrastructure/ai/ollama"
	"github.com/yambati03/touille/internal/infrastructure/ai/prompt"
	"github.com/yambati03/touille/internal/infrastructure/config"
	"github.com/yambati03/touille/internal/ports/outbound"
)

// Completer is the transport level contract a provider client has to
// satisfy. CompleteJSON must coax the model into producing a JSON
// response; StreamChat delivers plain text fragments as they arrive.
type Completer interface {
	CompleteJSON(ctx context.Context, system, user string) (string, error)
	StreamChat(ctx context.Context, system string, history []outbound.ChatMessage, user string, onDelta func(delta string) error) error
	Name() string
	HealthCheck(ctx context.Context) error
}

// NewCompleter selects the provider client from configuration.
func NewCompleter(cfg *config.Config, logger *zap.Logger) (Completer, error) {
	switch cfg.Extract.Provider {
	case "anthropic":
		return anthropic.NewClient(cfg, logger), nil
	case "ollama":
		return ollama.NewClient(cfg, logger), nil
	default:
		return nil, fmt.Errorf("unknown extraction provider %q", cfg.Extract.Provider)
	}
}

// Extractor adapts a Completer to the recipe extraction port.
type Extractor struct {
	completer Completer
	prompts   *prompt.Library
	logger    *zap.Logger
}

var _ outbound.RecipeExtractor = (*Extractor)(nil)

// NewExtractor creates the extraction adapter for a provider client.
func NewExtractor(completer Completer, prompts *prompt.Library, logger *zap.Logger) *Extractor {
	return &Extractor{
		completer: completer,
		prompts:   prompts,
		logger:    logger,
	}
}

// Name identifies the underlying provider.
func (e *Extractor) Name() string {
	return e.completer.Name()
}

// Extract runs one extraction request and parses the result into a
// recipe document.
func (e *Extractor) Extract(ctx context.Context, transcript string, caption *string, prefs outbound.ExtractionPreferences) (recipe.Document, error) {
	system := e.prompts.ExtractionSystem(prefs)
	user := prompt.ExtractionInput(transcript, caption)

	start := time.Now()
	raw, err := e.completer.CompleteJSON(ctx, system, user)
	if err != nil {
		return recipe.Document{}, fmt.Errorf("extraction request failed: %w", err)
	}

	doc, err := ParseDocument(raw)
	if err != nil {
		e.logger.Warn("Model returned unusable extraction output",
			zap.String("provider", e.completer.Name()),
			zap.Int("output_length", len(raw)),
			zap.Error(err),
		)
		return recipe.Document{}, err
	}

	e.logger.Info("Recipe extracted",
		zap.String("provider", e.completer.Name()),
		zap.String("title", doc.Title),
		zap.Int("steps", len(doc.Steps)),
		zap.Duration("duration", time.Since(start)),
	)
	return doc, nil
}

// ChatStreamer adapts a Completer to the step chat port.
type ChatStreamer struct {
	completer Completer
	prompts   *prompt.Library
	logger    *zap.Logger
}

var _ outbound.ChatStreamer = (*ChatStreamer)(nil)

// NewChatStreamer creates the chat adapter for a provider client.
func NewChatStreamer(completer Completer, prompts *prompt.Library, logger *zap.Logger) *ChatStreamer {
	return &ChatStreamer{
		completer: completer,
		prompts:   prompts,
		logger:    logger,
	}
}

// StreamReply streams the model's answer for one chat turn.
func (c *ChatStreamer) StreamReply(ctx context.Context, p outbound.ChatPrompt, onDelta func(delta string) error) error {
	system := c.prompts.ChatSystem(p.Preferences)
	user := prompt.ChatInput(p)

	start := time.Now()
	if err := c.completer.StreamChat(ctx, system, p.History, user, onDelta); err != nil {
		return fmt.Errorf("chat stream failed: %w", err)
	}

	c.logger.Debug("Chat reply streamed",
		zap.String("provider", c.completer.Name()),
		zap.Int("history_turns", len(p.History)),
		zap.Duration("duration", time.Since(start)),
	)
	return nil
}
