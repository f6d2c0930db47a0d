package handlers

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/yambati03/touille/internal/infrastructure/http/middleware"
	"github.com/yambati03/touille/internal/ports/inbound"
	"github.com/yambati03/touille/pkg/errors"
)

// AuthHandlers handles authentication API requests
type AuthHandlers struct {
	responder
	userService inbound.UserService
}

// NewAuthHandlers creates a new authentication handlers instance
func NewAuthHandlers(userService inbound.UserService, logger *zap.Logger) *AuthHandlers {
	return &AuthHandlers{
		responder:   newResponder(logger),
		userService: userService,
	}
}

// RegisterRequest represents an account registration request
type RegisterRequest struct {
	Name     string `json:"name" validate:"required,min=2,max=100"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=128"`
}

// LoginRequest represents a login request
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// MFAVerifyRequest completes a login challenged for a second factor.
type MFAVerifyRequest struct {
	ChallengeID string `json:"challenge_id" validate:"required"`
	Code        string `json:"code" validate:"required,min=6,max=16"`
}

// MFACodeRequest carries an authenticator code for enrollment changes.
type MFACodeRequest struct {
	Code string `json:"code" validate:"required,min=6,max=16"`
}

// AuthPayload is the session data returned by register, login and MFA
// completion. MFARequired with a challenge ID means no session was
// opened yet.
type AuthPayload struct {
	User           *inbound.UserDTO `json:"user,omitempty"`
	SessionToken   string           `json:"session_token,omitempty"`
	ExpiresAt      *time.Time       `json:"expires_at,omitempty"`
	MFARequired    bool             `json:"mfa_required,omitempty"`
	MFAChallengeID string           `json:"mfa_challenge_id,omitempty"`
}

func authPayloadFrom(result *inbound.AuthResult) AuthPayload {
	payload := AuthPayload{
		User:           result.User,
		SessionToken:   result.SessionToken,
		MFARequired:    result.MFARequired,
		MFAChallengeID: result.MFAChallengeID,
	}
	if !result.SessionExpires.IsZero() {
		expires := result.SessionExpires
		payload.ExpiresAt = &expires
	}
	return payload
}

// Register handles POST /api/v1/auth/register
func (h *AuthHandlers) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := h.decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	result, err := h.userService.Register(r.Context(), inbound.RegisterCommand{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, APIResponse{
		Success: true,
		Data:    authPayloadFrom(result),
		Message: "Account created, check your inbox to verify your email",
	})
}

// Login handles POST /api/v1/auth/login
func (h *AuthHandlers) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := h.decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	result, err := h.userService.Login(r.Context(), inbound.LoginCommand{
		Email:     req.Email,
		Password:  req.Password,
		IPAddress: r.RemoteAddr,
		UserAgent: r.UserAgent(),
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    authPayloadFrom(result),
	})
}

// CompleteMFALogin handles POST /api/v1/auth/mfa/verify
func (h *AuthHandlers) CompleteMFALogin(w http.ResponseWriter, r *http.Request) {
	var req MFAVerifyRequest
	if err := h.decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	result, err := h.userService.CompleteMFALogin(r.Context(), inbound.MFALoginCommand{
		ChallengeID: req.ChallengeID,
		Code:        req.Code,
		IPAddress:   r.RemoteAddr,
		UserAgent:   r.UserAgent(),
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    authPayloadFrom(result),
	})
}

// Logout handles POST /api/v1/auth/logout
func (h *AuthHandlers) Logout(w http.ResponseWriter, r *http.Request) {
	token := middleware.SessionToken(r.Context())
	if token == "" {
		h.writeError(w, r, errors.NewUnauthorizedError("no active session"))
		return
	}

	if err := h.userService.Logout(r.Context(), token); err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Message: "Logged out",
	})
}

// Refresh handles POST /api/v1/auth/refresh
func (h *AuthHandlers) Refresh(w http.ResponseWriter, r *http.Request) {
	token := middleware.SessionToken(r.Context())
	if token == "" {
		h.writeError(w, r, errors.NewUnauthorizedError("no active session"))
		return
	}

	expires, err := h.userService.RefreshSession(r.Context(), token)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    map[string]time.Time{"expires_at": expires},
	})
}

// Me handles GET /api/v1/auth/me
func (h *AuthHandlers) Me(w http.ResponseWriter, r *http.Request) {
	user := middleware.CurrentUser(r.Context())
	if user == nil {
		h.writeError(w, r, errors.NewUnauthorizedError("authentication required"))
		return
	}

	h.writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    user,
	})
}

// VerifyEmail handles GET /api/v1/auth/verify-email
func (h *AuthHandlers) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		h.writeError(w, r, errors.NewBadRequestError("missing verification token"))
		return
	}

	if err := h.userService.VerifyEmail(r.Context(), token); err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Message: "Email verified",
	})
}

// ResendVerification handles POST /api/v1/auth/resend-verification
func (h *AuthHandlers) ResendVerification(w http.ResponseWriter, r *http.Request) {
	userID := middleware.CurrentUserID(r.Context())
	if userID == "" {
		h.writeError(w, r, errors.NewUnauthorizedError("authentication required"))
		return
	}

	if err := h.userService.ResendVerification(r.Context(), userID); err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Message: "Verification email sent",
	})
}

// SetupMFA handles POST /api/v1/auth/mfa/setup
func (h *AuthHandlers) SetupMFA(w http.ResponseWriter, r *http.Request) {
	setup, err := h.userService.SetupMFA(r.Context(), middleware.CurrentUserID(r.Context()))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    setup,
		Message: "Scan the QR code, then confirm with a generated code",
	})
}

// ActivateMFA handles POST /api/v1/auth/mfa/activate
func (h *AuthHandlers) ActivateMFA(w http.ResponseWriter, r *http.Request) {
	var req MFACodeRequest
	if err := h.decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	backupCodes, err := h.userService.ActivateMFA(r.Context(), middleware.CurrentUserID(r.Context()), req.Code)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    map[string]interface{}{"backup_codes": backupCodes},
		Message: "Two-factor authentication enabled",
	})
}

// DisableMFA handles POST /api/v1/auth/mfa/disable
func (h *AuthHandlers) DisableMFA(w http.ResponseWriter, r *http.Request) {
	var req MFACodeRequest
	if err := h.decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	if err := h.userService.DisableMFA(r.Context(), middleware.CurrentUserID(r.Context()), req.Code); err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Message: "Two-factor authentication disabled",
	})
}

// SettingsHandlers handles preference record API requests
type SettingsHandlers struct {
	responder
	settingsService inbound.SettingsService
}

// NewSettingsHandlers creates a new settings handlers instance
func NewSettingsHandlers(settingsService inbound.SettingsService, logger *zap.Logger) *SettingsHandlers {
	return &SettingsHandlers{
		responder:       newResponder(logger),
		settingsService: settingsService,
	}
}

// UpdateSettingsRequest is the full preference record. Omitted
// optional fields clear their stored values.
type UpdateSettingsRequest struct {
	DietaryRestrictions *string `json:"dietary_restrictions" validate:"omitempty,max=500"`
	SpiceTolerance      int     `json:"spice_tolerance" validate:"min=0,max=10"`
	CustomRules         *string `json:"custom_rules" validate:"omitempty,max=2000"`
}

// GetSettings handles GET /api/v1/settings
func (h *SettingsHandlers) GetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.settingsService.GetSettings(r.Context(), middleware.CurrentUserID(r.Context()))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    settings,
	})
}

// UpdateSettings handles PUT /api/v1/settings
func (h *SettingsHandlers) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req UpdateSettingsRequest
	if err := h.decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	settings, err := h.settingsService.UpdateSettings(r.Context(), inbound.UpdateSettingsCommand{
		UserID:              middleware.CurrentUserID(r.Context()),
		DietaryRestrictions: req.DietaryRestrictions,
		SpiceTolerance:      req.SpiceTolerance,
		CustomRules:         req.CustomRules,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    settings,
		Message: "Preferences saved",
	})
}
