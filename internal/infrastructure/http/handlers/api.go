// Package handlers provides HTTP handlers for the REST API
package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/yambati03/touille/internal/infrastructure/http/middleware"
	"github.com/yambati03/touille/internal/infrastructure/monitoring"
	"github.com/yambati03/touille/internal/ports/inbound"
	"github.com/yambati03/touille/pkg/errors"
)

// APIResponse represents a standard API response
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Message string      `json:"message,omitempty"`
}

// responder carries the JSON helpers shared by every handler group.
type responder struct {
	logger   *zap.Logger
	validate *validator.Validate
}

func newResponder(logger *zap.Logger) responder {
	return responder{
		logger:   logger,
		validate: validator.New(),
	}
}

// writeJSON writes a JSON response
func (re responder) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		re.logger.Error("Failed to encode JSON response", zap.Error(err))
	}
}

// writeError maps an error to its HTTP status and the standard error
// envelope. Unknown error types are reported as internal errors
// without leaking their message.
func (re responder) writeError(w http.ResponseWriter, r *http.Request, err error) {
	appErr, ok := err.(*errors.AppError)
	if !ok {
		re.logger.Error("Unhandled error reached the API surface", zap.Error(err))
		appErr = errors.NewInternalError("internal server error")
	}

	status := appErr.StatusCode()
	if status >= http.StatusInternalServerError {
		re.logger.Error("Request failed",
			zap.String("code", string(appErr.Code)),
			zap.String("path", r.URL.Path),
			zap.Error(appErr),
		)
	}

	requestID := middleware.RequestIDFromContext(r.Context())
	re.writeJSON(w, status, errors.ToErrorResponse(appErr, requestID))
}

// decodeJSON decodes the request body into dst and runs the validate
// tags declared on it.
func (re responder) decodeJSON(r *http.Request, dst interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return errors.NewBadRequestError("invalid JSON payload")
	}
	if err := re.validate.Struct(dst); err != nil {
		return errors.NewValidationError(err.Error())
	}
	return nil
}

// RecipeHandlers handles recipe extraction API requests
type RecipeHandlers struct {
	responder
	recipeService inbound.RecipeService
	metrics       *monitoring.MetricsCollector
}

// NewRecipeHandlers creates a new recipe handlers instance
func NewRecipeHandlers(recipeService inbound.RecipeService, metrics *monitoring.MetricsCollector, logger *zap.Logger) *RecipeHandlers {
	return &RecipeHandlers{
		responder:     newResponder(logger),
		recipeService: recipeService,
		metrics:       metrics,
	}
}

// ProcessVideoRequest represents a video extraction request
type ProcessVideoRequest struct {
	URL string `json:"url" validate:"required,url"`
}

// ProcessVideo handles POST /api/v1/recipes/process
func (h *RecipeHandlers) ProcessVideo(w http.ResponseWriter, r *http.Request) {
	var req ProcessVideoRequest
	if err := h.decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	cmd := inbound.ProcessVideoCommand{
		URL:     req.URL,
		UserID:  middleware.CurrentUserID(r.Context()),
		Refresh: r.URL.Query().Get("refresh") == "1",
	}

	start := time.Now()
	result, err := h.recipeService.ProcessVideo(r.Context(), cmd)
	if err != nil {
		h.metrics.PipelineRun(monitoring.OutcomeFailed, time.Since(start))
		h.writeError(w, r, err)
		return
	}
	h.metrics.PipelineRun(monitoring.OutcomeCompleted, time.Since(start))

	h.writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    result,
		Message: "Recipe extracted successfully",
	})
}

// GetRecipe handles GET /api/v1/recipes/{id}
func (h *RecipeHandlers) GetRecipe(w http.ResponseWriter, r *http.Request) {
	recipeID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, errors.NewBadRequestError("invalid recipe id"))
		return
	}

	result, svcErr := h.recipeService.GetRecipe(r.Context(), recipeID, middleware.CurrentUserID(r.Context()))
	if svcErr != nil {
		h.writeError(w, r, svcErr)
		return
	}

	h.writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    result,
	})
}

// ListRecipes handles GET /api/v1/recipes
func (h *RecipeHandlers) ListRecipes(w http.ResponseWriter, r *http.Request) {
	params := paginationFromQuery(r)

	result, err := h.recipeService.ListRecipes(r.Context(), middleware.CurrentUserID(r.Context()), params)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    result,
	})
}

// DeleteRecipe handles DELETE /api/v1/recipes/{id}
func (h *RecipeHandlers) DeleteRecipe(w http.ResponseWriter, r *http.Request) {
	recipeID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, errors.NewBadRequestError("invalid recipe id"))
		return
	}

	if err := h.recipeService.DeleteRecipe(r.Context(), recipeID, middleware.CurrentUserID(r.Context())); err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Message: "Recipe deleted successfully",
	})
}

func paginationFromQuery(r *http.Request) inbound.PaginationParams {
	params := inbound.PaginationParams{Page: 1, PageSize: 20}

	if v, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil && v > 0 {
		params.Page = v
	}
	if v, err := strconv.Atoi(r.URL.Query().Get("page_size")); err == nil && v > 0 && v <= 100 {
		params.PageSize = v
	}
	return params
}
