// Package chat provides the application layer for the step chat: the
// streamed conversation a cook has with the model about one recipe
// step.
package chat

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/yambati03/touille/internal/domain/recipe"
	"github.com/yambati03/touille/internal/ports/inbound"
	"github.com/yambati03/touille/internal/ports/outbound"
	apperrors "github.com/yambati03/touille/pkg/errors"
)

// Options carries the runtime knobs for the chat service. Zero values
// are replaced with safe defaults.
type Options struct {
	// MaxMessageLength bounds one question.
	MaxMessageLength int
	// HistoryTurns is how many stored messages ride along in the
	// prompt. The cache keeps more; the prompt stays small.
	HistoryTurns int
	// StreamTimeout bounds one full reply.
	StreamTimeout time.Duration
}

func (o Options) withDefaults() Options {
	if o.MaxMessageLength <= 0 {
		o.MaxMessageLength = 2000
	}
	if o.HistoryTurns <= 0 {
		o.HistoryTurns = 10
	}
	if o.StreamTimeout <= 0 {
		o.StreamTimeout = 2 * time.Minute
	}
	return o
}

// ChatService implements the step chat use cases
type ChatService struct {
	streamer     outbound.ChatStreamer
	history      outbound.ChatHistory
	settingsRepo outbound.SettingsRepository
	opts         Options
	logger       *zap.Logger
}

// NewChatService creates a new chat service
func NewChatService(
	streamer outbound.ChatStreamer,
	history outbound.ChatHistory,
	settingsRepo outbound.SettingsRepository,
	opts Options,
	logger *zap.Logger,
) inbound.ChatService {
	return &ChatService{
		streamer:     streamer,
		history:      history,
		settingsRepo: settingsRepo,
		opts:         opts.withDefaults(),
		logger:       logger.Named("chat-service"),
	}
}

// StreamStepChat streams one reply through onDelta and returns the
// assembled text. The exchange is stored only after the reply finished
// cleanly, so an interrupted stream never leaves a half answer in the
// thread.
func (s *ChatService) StreamStepChat(ctx context.Context, cmd inbound.StepChatCommand, onDelta func(delta string) error) (string, error) {
	message := strings.TrimSpace(cmd.Message)
	if message == "" {
		return "", apperrors.NewValidationError("message is required")
	}
	if len(message) > s.opts.MaxMessageLength {
		return "", apperrors.NewValidationError("message is too long")
	}
	if cmd.CurrentStep < 1 {
		return "", apperrors.NewValidationError("current step is required")
	}

	normalized, err := recipe.NormalizeURL(cmd.RecipeURL)
	if err != nil {
		return "", apperrors.NewInvalidVideoURLError(cmd.RecipeURL)
	}
	userID := cmd.UserID
	if userID == "" {
		userID = recipe.AnonymousUserID
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.StreamTimeout)
	defer cancel()

	prompt := outbound.ChatPrompt{
		Document:       cmd.Recipe,
		CurrentStep:    cmd.CurrentStep,
		CompletedSteps: cmd.CompletedSteps,
		History:        s.recentHistory(ctx, userID, normalized, cmd.CurrentStep),
		Message:        message,
		Preferences:    s.preferences(ctx, userID),
	}

	start := time.Now()
	var reply strings.Builder
	err = s.streamer.StreamReply(ctx, prompt, func(delta string) error {
		reply.WriteString(delta)
		return onDelta(delta)
	})
	if err != nil {
		s.logger.Warn("Chat stream aborted",
			zap.String("user_id", userID),
			zap.Int("step", cmd.CurrentStep),
			zap.Error(err),
		)
		return "", apperrors.NewUpstreamError("chat model", err)
	}

	full := reply.String()
	if strings.TrimSpace(full) != "" {
		// The request context may already be spent; the append must
		// still land.
		s.history.Append(context.Background(), userID, normalized, cmd.CurrentStep, message, full)
	}

	s.logger.Info("Chat reply streamed",
		zap.String("user_id", userID),
		zap.Int("step", cmd.CurrentStep),
		zap.Int("reply_chars", len(full)),
		zap.Duration("duration", time.Since(start)),
	)
	return full, nil
}

// History returns the stored thread for one step, oldest first.
func (s *ChatService) History(ctx context.Context, userID, recipeURL string, step int) ([]inbound.ChatTurn, error) {
	normalized, err := recipe.NormalizeURL(recipeURL)
	if err != nil {
		return nil, apperrors.NewInvalidVideoURLError(recipeURL)
	}
	if userID == "" {
		userID = recipe.AnonymousUserID
	}

	turns := s.history.Turns(ctx, userID, normalized, step)
	out := make([]inbound.ChatTurn, 0, len(turns))
	for _, turn := range turns {
		out = append(out, inbound.ChatTurn{
			Role:      turn.Role,
			Content:   turn.Content,
			CreatedAt: turn.CreatedAt,
		})
	}
	return out, nil
}

// ClearHistory deletes the stored thread for one step.
func (s *ChatService) ClearHistory(ctx context.Context, userID, recipeURL string, step int) error {
	normalized, err := recipe.NormalizeURL(recipeURL)
	if err != nil {
		return apperrors.NewInvalidVideoURLError(recipeURL)
	}
	if userID == "" {
		userID = recipe.AnonymousUserID
	}
	if err := s.history.Clear(ctx, userID, normalized, step); err != nil {
		return apperrors.NewInternalError("failed to clear chat history").WithCause(err)
	}
	return nil
}

// recentHistory returns the newest stored messages, bounded by the
// prompt budget.
func (s *ChatService) recentHistory(ctx context.Context, userID, url string, step int) []outbound.ChatMessage {
	turns := s.history.Turns(ctx, userID, url, step)
	if len(turns) > s.opts.HistoryTurns {
		turns = turns[len(turns)-s.opts.HistoryTurns:]
	}
	msgs := make([]outbound.ChatMessage, 0, len(turns))
	for _, turn := range turns {
		msgs = append(msgs, outbound.ChatMessage{Role: turn.Role, Content: turn.Content})
	}
	return msgs
}

func (s *ChatService) preferences(ctx context.Context, userID string) outbound.ExtractionPreferences {
	settings, err := s.settingsRepo.Find(ctx, userID)
	if err != nil || settings == nil {
		return outbound.ExtractionPreferences{}
	}
	prefs := outbound.ExtractionPreferences{SpiceTolerance: settings.SpiceTolerance()}
	if v := settings.DietaryRestrictions(); v != nil {
		prefs.DietaryRestrictions = *v
	}
	if v := settings.CustomRules(); v != nil {
		prefs.CustomRules = *v
	}
	return prefs
}
