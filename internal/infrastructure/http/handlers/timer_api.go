package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/yambati03/touille/internal/infrastructure/http/middleware"
	"github.com/yambati03/touille/internal/infrastructure/monitoring"
	"github.com/yambati03/touille/internal/ports/inbound"
	"github.com/yambati03/touille/pkg/errors"
)

const (
	// wsWriteWait bounds a single frame write.
	wsWriteWait = 10 * time.Second
	// wsPongWait is how long a connection may stay silent.
	wsPongWait = 60 * time.Second
	// wsPingPeriod must be shorter than wsPongWait.
	wsPingPeriod = (wsPongWait * 9) / 10
	// wsPushPeriod is the countdown broadcast interval.
	wsPushPeriod = time.Second
)

// TimerHandlers handles countdown timer API requests
type TimerHandlers struct {
	responder
	timerService inbound.TimerService
	userService  inbound.UserService
	metrics      *monitoring.MetricsCollector
	upgrader     websocket.Upgrader
}

// NewTimerHandlers creates a new timer handlers instance
func NewTimerHandlers(
	timerService inbound.TimerService,
	userService inbound.UserService,
	metrics *monitoring.MetricsCollector,
	logger *zap.Logger,
) *TimerHandlers {
	return &TimerHandlers{
		responder:    newResponder(logger),
		timerService: timerService,
		userService:  userService,
		metrics:      metrics,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The socket is read-only for clients and authenticated by
			// token, not cookies, so any origin may connect.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// StartTimerRequest represents a countdown start request
type StartTimerRequest struct {
	RecipeID        string  `json:"recipe_id" validate:"omitempty,max=64"`
	Step            int     `json:"step" validate:"min=0"`
	Label           string  `json:"label" validate:"omitempty,max=120"`
	DurationSeconds float64 `json:"duration_seconds" validate:"required,gt=0"`
}

// StartTimer handles POST /api/v1/timers
func (h *TimerHandlers) StartTimer(w http.ResponseWriter, r *http.Request) {
	var req StartTimerRequest
	if err := h.decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	dto, err := h.timerService.StartTimer(r.Context(), inbound.StartTimerCommand{
		UserID:   middleware.CurrentUserID(r.Context()),
		RecipeID: req.RecipeID,
		Step:     req.Step,
		Label:    req.Label,
		Duration: time.Duration(req.DurationSeconds * float64(time.Second)),
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, APIResponse{
		Success: true,
		Data:    dto,
	})
}

// PauseTimer handles POST /api/v1/timers/{id}/pause
func (h *TimerHandlers) PauseTimer(w http.ResponseWriter, r *http.Request) {
	dto, err := h.timerService.PauseTimer(r.Context(), middleware.CurrentUserID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: dto})
}

// ResumeTimer handles POST /api/v1/timers/{id}/resume
func (h *TimerHandlers) ResumeTimer(w http.ResponseWriter, r *http.Request) {
	dto, err := h.timerService.ResumeTimer(r.Context(), middleware.CurrentUserID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: dto})
}

// CancelTimer handles POST /api/v1/timers/{id}/cancel
func (h *TimerHandlers) CancelTimer(w http.ResponseWriter, r *http.Request) {
	if err := h.timerService.CancelTimer(r.Context(), middleware.CurrentUserID(r.Context()), chi.URLParam(r, "id")); err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, APIResponse{Success: true, Message: "Timer cancelled"})
}

// GetTimer handles GET /api/v1/timers/{id}
func (h *TimerHandlers) GetTimer(w http.ResponseWriter, r *http.Request) {
	dto, err := h.timerService.GetTimer(r.Context(), middleware.CurrentUserID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: dto})
}

// ListTimers handles GET /api/v1/timers
func (h *TimerHandlers) ListTimers(w http.ResponseWriter, r *http.Request) {
	timers, err := h.timerService.ListTimers(r.Context(), middleware.CurrentUserID(r.Context()))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    map[string]interface{}{"timers": timers},
	})
}

// timerPush is the frame broadcast to timer sockets every second.
type timerPush struct {
	Type   string            `json:"type"`
	Timers []inbound.TimerDTO `json:"timers"`
}

// HandleWS handles GET /api/v1/timers/ws. The server pushes the user's
// countdowns once a second so every open tab shows the same clock.
// Browsers cannot set an Authorization header on a WebSocket, so the
// session token also rides in the token query parameter.
func (h *TimerHandlers) HandleWS(w http.ResponseWriter, r *http.Request) {
	userID := middleware.CurrentUserID(r.Context())
	if userID == "" {
		if token := r.URL.Query().Get("token"); token != "" {
			user, err := h.userService.Authenticate(r.Context(), token)
			if err != nil {
				h.writeError(w, r, errors.NewUnauthorizedError("invalid session token"))
				return
			}
			userID = user.ID
		}
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("WebSocket upgrade failed", zap.Error(err))
		return
	}
	h.metrics.TimerSocketOpened()
	defer h.metrics.TimerSocketClosed()

	go h.readLoop(conn)
	h.pushLoop(r, conn, userID)
}

// readLoop drains client frames so pongs and close frames get
// processed. Clients never send data frames.
func (h *TimerHandlers) readLoop(conn *websocket.Conn) {
	conn.SetReadLimit(512)
	conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *TimerHandlers) pushLoop(r *http.Request, conn *websocket.Conn, userID string) {
	defer conn.Close()

	push := time.NewTicker(wsPushPeriod)
	defer push.Stop()
	ping := time.NewTicker(wsPingPeriod)
	defer ping.Stop()

	if err := h.pushTimers(r, conn, userID); err != nil {
		return
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case <-push.C:
			if err := h.pushTimers(r, conn, userID); err != nil {
				return
			}
		case <-ping.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *TimerHandlers) pushTimers(r *http.Request, conn *websocket.Conn, userID string) error {
	timers, err := h.timerService.ListTimers(r.Context(), userID)
	if err != nil {
		return err
	}

	conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return conn.WriteJSON(timerPush{Type: "timers", Timers: timers})
}
