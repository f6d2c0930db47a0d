package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/yambati03/touille/internal/domain/recipe"
	"github.com/yambati03/touille/internal/infrastructure/http/middleware"
	"github.com/yambati03/touille/internal/infrastructure/monitoring"
	"github.com/yambati03/touille/internal/ports/inbound"
	"github.com/yambati03/touille/pkg/errors"
)

// sseDone terminates every successful chat stream.
const sseDone = "[DONE]"

// ChatHandlers handles step chat API requests
type ChatHandlers struct {
	responder
	chatService inbound.ChatService
	metrics     *monitoring.MetricsCollector
}

// NewChatHandlers creates a new chat handlers instance
func NewChatHandlers(chatService inbound.ChatService, metrics *monitoring.MetricsCollector, logger *zap.Logger) *ChatHandlers {
	return &ChatHandlers{
		responder:   newResponder(logger),
		chatService: chatService,
		metrics:     metrics,
	}
}

// StepChatRequest carries the cooking context for one chat turn. The
// client sends the recipe it is rendering so the assistant answers
// about the exact document on screen.
type StepChatRequest struct {
	URL            string          `json:"url" validate:"required,url"`
	Recipe         recipe.Document `json:"recipe" validate:"required"`
	CurrentStep    int             `json:"current_step" validate:"min=0"`
	CompletedSteps []int           `json:"completed_steps"`
	Message        string          `json:"message" validate:"required,max=2000"`
}

// chatStreamEvent is one server-sent chunk of the assistant reply.
type chatStreamEvent struct {
	Delta string `json:"delta,omitempty"`
	Error string `json:"error,omitempty"`
}

// StreamStepChat handles POST /api/v1/chat/step. The reply streams as
// server-sent events, one delta per data line, terminated by [DONE].
func (h *ChatHandlers) StreamStepChat(w http.ResponseWriter, r *http.Request) {
	var req StepChatRequest
	if err := h.decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		h.writeError(w, r, errors.NewInternalError("streaming unsupported"))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	cmd := inbound.StepChatCommand{
		UserID:         middleware.CurrentUserID(r.Context()),
		RecipeURL:      req.URL,
		Recipe:         req.Recipe,
		CurrentStep:    req.CurrentStep,
		CompletedSteps: req.CompletedSteps,
		Message:        req.Message,
	}

	start := time.Now()
	_, err := h.chatService.StreamStepChat(r.Context(), cmd, func(delta string) error {
		return h.writeEvent(w, flusher, chatStreamEvent{Delta: delta})
	})
	if err != nil {
		h.metrics.ChatStream(monitoring.OutcomeFailed, time.Since(start))
		h.logger.Warn("Chat stream failed", zap.Error(err))
		// Headers are gone, so the failure travels as a stream event.
		h.writeEvent(w, flusher, chatStreamEvent{Error: userFacingMessage(err)})
		return
	}

	h.metrics.ChatStream(monitoring.OutcomeCompleted, time.Since(start))
	fmt.Fprintf(w, "data: %s\n\n", sseDone)
	flusher.Flush()
}

func (h *ChatHandlers) writeEvent(w http.ResponseWriter, flusher http.Flusher, event chatStreamEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}

// History handles GET /api/v1/chat/step/history
func (h *ChatHandlers) History(w http.ResponseWriter, r *http.Request) {
	url, step, err := stepThreadFromQuery(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	turns, svcErr := h.chatService.History(r.Context(), middleware.CurrentUserID(r.Context()), url, step)
	if svcErr != nil {
		h.writeError(w, r, svcErr)
		return
	}

	h.writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    map[string]interface{}{"messages": turns},
	})
}

// ClearHistory handles DELETE /api/v1/chat/step/history
func (h *ChatHandlers) ClearHistory(w http.ResponseWriter, r *http.Request) {
	url, step, err := stepThreadFromQuery(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if err := h.chatService.ClearHistory(r.Context(), middleware.CurrentUserID(r.Context()), url, step); err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Message: "Chat history cleared",
	})
}

func stepThreadFromQuery(r *http.Request) (string, int, error) {
	url := r.URL.Query().Get("url")
	if url == "" {
		return "", 0, errors.NewBadRequestError("missing url parameter")
	}

	step, err := strconv.Atoi(r.URL.Query().Get("step"))
	if err != nil || step < 0 {
		return "", 0, errors.NewBadRequestError("invalid step parameter")
	}
	return url, step, nil
}

// userFacingMessage strips internal detail from errors surfaced inside
// an open stream.
func userFacingMessage(err error) string {
	if appErr, ok := err.(*errors.AppError); ok {
		return appErr.Message
	}
	return "something went wrong, try again"
}
