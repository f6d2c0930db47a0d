// Package webserver provides the API client for backend communication
package webserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/yambati03/touille/internal/infrastructure/config"
)

// APIClient handles communication with the backend API
type APIClient struct {
	baseURL    string
	httpClient *http.Client
	longClient *http.Client
	logger     *zap.Logger
}

// NewAPIClient creates a new API client instance
func NewAPIClient(cfg *config.Config, logger *zap.Logger) *APIClient {
	baseURL := cfg.Web.APIBaseURL
	if baseURL == "" {
		baseURL = fmt.Sprintf("http://localhost:%d", cfg.Server.Port)
	}

	timeout := cfg.Web.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &APIClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		// Extraction and chat streams run far past any normal request
		// deadline and are cancelled through their context instead.
		longClient: &http.Client{
			Timeout: 10 * time.Minute,
		},
		logger: logger.Named("api-client"),
	}
}

// APIError carries the backend's error envelope to the web layer.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d (%s): %s", e.Status, e.Code, e.Message)
}

// UserData represents an account in API responses
type UserData struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"emailVerified"`
	MFAEnabled    bool   `json:"mfaEnabled"`
}

// AuthData is the session payload from register, login and MFA verify
type AuthData struct {
	User           *UserData  `json:"user"`
	SessionToken   string     `json:"session_token"`
	ExpiresAt      *time.Time `json:"expires_at"`
	MFARequired    bool       `json:"mfa_required"`
	MFAChallengeID string     `json:"mfa_challenge_id"`
}

// RecipeData represents an extracted recipe
type RecipeData struct {
	ID        string         `json:"id"`
	URL       string         `json:"url"`
	Caption   *string        `json:"caption"`
	Recipe    RecipeDocument `json:"recipe"`
	CreatedAt time.Time      `json:"created_at"`
}

// RecipeDocument mirrors the structured recipe schema
type RecipeDocument struct {
	Title       string           `json:"title"`
	Description *string          `json:"description"`
	Servings    *ServingsData    `json:"servings"`
	Times       *TimesData       `json:"times"`
	Ingredients []IngredientData `json:"ingredients"`
	Steps       []StepData       `json:"steps"`
	Tags        []string         `json:"tags"`
	Equipment   []string         `json:"equipment"`
	Notes       *string          `json:"notes"`
}

// ServingsData describes the recipe yield
type ServingsData struct {
	Amount *float64 `json:"amount"`
	Unit   *string  `json:"unit"`
}

// TimesData holds timings in minutes
type TimesData struct {
	PrepMinutes  *int `json:"prep_minutes"`
	CookMinutes  *int `json:"cook_minutes"`
	TotalMinutes *int `json:"total_minutes"`
}

// IngredientData is one recipe ingredient
type IngredientData struct {
	Name   string   `json:"name"`
	Amount *float64 `json:"amount"`
	Unit   *string  `json:"unit"`
	Notes  *string  `json:"notes"`
}

// StepData is one cooking step
type StepData struct {
	Order           int    `json:"order"`
	Instruction     string `json:"instruction"`
	DurationMinutes *int   `json:"duration_minutes"`
}

// RecipeListData is a paginated recipe listing
type RecipeListData struct {
	Recipes    []RecipeData `json:"recipes"`
	Total      int          `json:"total"`
	Page       int          `json:"page"`
	PageSize   int          `json:"page_size"`
	TotalPages int          `json:"total_pages"`
}

// SettingsData is the preference record
type SettingsData struct {
	DietaryRestrictions *string `json:"dietary_restrictions"`
	SpiceTolerance      int     `json:"spice_tolerance"`
	CustomRules         *string `json:"custom_rules"`
}

// ChatTurnData is one message of a step chat transcript
type ChatTurnData struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// StepChatPayload is the cooking context sent with a chat message
type StepChatPayload struct {
	URL            string         `json:"url"`
	Recipe         RecipeDocument `json:"recipe"`
	CurrentStep    int            `json:"current_step"`
	CompletedSteps []int          `json:"completed_steps"`
	Message        string         `json:"message"`
}

// TimerData represents a countdown timer
type TimerData struct {
	ID        string    `json:"id"`
	RecipeID  string    `json:"recipe_id"`
	Step      int       `json:"step"`
	Label     string    `json:"label"`
	State     string    `json:"state"`
	StartedAt time.Time `json:"started_at"`
	EndsAt    time.Time `json:"ends_at"`
	Remaining float64   `json:"remaining_seconds"`
}

// Authentication

// Register creates a new account
func (c *APIClient) Register(ctx context.Context, name, email, password string) (*AuthData, error) {
	req := map[string]string{"name": name, "email": email, "password": password}

	var resp struct {
		Data AuthData `json:"data"`
	}
	if err := c.post(ctx, "/api/v1/auth/register", "", req, &resp); err != nil {
		return nil, err
	}
	return &resp.Data, nil
}

// Login opens a session, or returns an MFA challenge
func (c *APIClient) Login(ctx context.Context, email, password string) (*AuthData, error) {
	req := map[string]string{"email": email, "password": password}

	var resp struct {
		Data AuthData `json:"data"`
	}
	if err := c.post(ctx, "/api/v1/auth/login", "", req, &resp); err != nil {
		return nil, err
	}
	return &resp.Data, nil
}

// CompleteMFALogin answers an MFA challenge with an authenticator code
func (c *APIClient) CompleteMFALogin(ctx context.Context, challengeID, code string) (*AuthData, error) {
	req := map[string]string{"challenge_id": challengeID, "code": code}

	var resp struct {
		Data AuthData `json:"data"`
	}
	if err := c.post(ctx, "/api/v1/auth/mfa/verify", "", req, &resp); err != nil {
		return nil, err
	}
	return &resp.Data, nil
}

// Logout closes the API session
func (c *APIClient) Logout(ctx context.Context, token string) error {
	return c.post(ctx, "/api/v1/auth/logout", token, struct{}{}, nil)
}

// RefreshSession extends the API session and returns its new expiry
func (c *APIClient) RefreshSession(ctx context.Context, token string) (time.Time, error) {
	var resp struct {
		Data struct {
			ExpiresAt time.Time `json:"expires_at"`
		} `json:"data"`
	}
	if err := c.post(ctx, "/api/v1/auth/refresh", token, struct{}{}, &resp); err != nil {
		return time.Time{}, err
	}
	return resp.Data.ExpiresAt, nil
}

// Me resolves the token's account, also serving as token validation
func (c *APIClient) Me(ctx context.Context, token string) (*UserData, error) {
	var resp struct {
		Data UserData `json:"data"`
	}
	if err := c.get(ctx, "/api/v1/auth/me", token, &resp); err != nil {
		return nil, err
	}
	return &resp.Data, nil
}

// VerifyEmail consumes an email verification token
func (c *APIClient) VerifyEmail(ctx context.Context, token string) error {
	path := "/api/v1/auth/verify-email?token=" + url.QueryEscape(token)
	return c.get(ctx, path, "", nil)
}

// VerifyConnection checks if the API backend is reachable
func (c *APIClient) VerifyConnection(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return false
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug("Connection verification failed", zap.Error(err))
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode < 500
}

// Recipes

// ProcessVideo runs the extraction pipeline for a video URL
func (c *APIClient) ProcessVideo(ctx context.Context, token, videoURL string, refresh bool) (*RecipeData, error) {
	path := "/api/v1/recipes/process"
	if refresh {
		path += "?refresh=1"
	}

	req := map[string]string{"url": videoURL}

	var resp struct {
		Data RecipeData `json:"data"`
	}
	if err := c.doWith(ctx, c.longClient, http.MethodPost, path, token, req, &resp); err != nil {
		return nil, err
	}
	return &resp.Data, nil
}

// GetRecipe fetches a single recipe by ID
func (c *APIClient) GetRecipe(ctx context.Context, token, recipeID string) (*RecipeData, error) {
	var resp struct {
		Data RecipeData `json:"data"`
	}
	if err := c.get(ctx, "/api/v1/recipes/"+url.PathEscape(recipeID), token, &resp); err != nil {
		return nil, err
	}
	return &resp.Data, nil
}

// ListRecipes fetches a page of the caller's recipes
func (c *APIClient) ListRecipes(ctx context.Context, token string, page, pageSize int) (*RecipeListData, error) {
	path := fmt.Sprintf("/api/v1/recipes/?page=%d&page_size=%d", page, pageSize)

	var resp struct {
		Data RecipeListData `json:"data"`
	}
	if err := c.get(ctx, path, token, &resp); err != nil {
		return nil, err
	}
	return &resp.Data, nil
}

// DeleteRecipe deletes one recipe
func (c *APIClient) DeleteRecipe(ctx context.Context, token, recipeID string) error {
	return c.do(ctx, http.MethodDelete, "/api/v1/recipes/"+url.PathEscape(recipeID), token, nil, nil)
}

// Settings

// GetSettings fetches the caller's preference record
func (c *APIClient) GetSettings(ctx context.Context, token string) (*SettingsData, error) {
	var resp struct {
		Data SettingsData `json:"data"`
	}
	if err := c.get(ctx, "/api/v1/settings/", token, &resp); err != nil {
		return nil, err
	}
	return &resp.Data, nil
}

// UpdateSettings replaces the caller's preference record
func (c *APIClient) UpdateSettings(ctx context.Context, token string, settings SettingsData) (*SettingsData, error) {
	var resp struct {
		Data SettingsData `json:"data"`
	}
	if err := c.do(ctx, http.MethodPut, "/api/v1/settings/", token, settings, &resp); err != nil {
		return nil, err
	}
	return &resp.Data, nil
}

// Chat

// StreamStepChat relays the chat event stream to w chunk by chunk.
// flush pushes each chunk to the browser as soon as it arrives.
func (c *APIClient) StreamStepChat(ctx context.Context, token string, payload StepChatPayload, w io.Writer, flush func()) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/chat/step", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.longClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return decodeAPIError(resp)
	}

	buf := make([]byte, 4096)
	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			if _, writeErr := w.Write(buf[:n]); writeErr != nil {
				return writeErr
			}
			flush()
		}
		if readErr == io.EOF {
			return nil
		}
		if readErr != nil {
			return readErr
		}
	}
}

// ChatHistory fetches a step chat transcript
func (c *APIClient) ChatHistory(ctx context.Context, token, recipeURL string, step int) ([]ChatTurnData, error) {
	path := "/api/v1/chat/step/history?url=" + url.QueryEscape(recipeURL) + "&step=" + strconv.Itoa(step)

	var resp struct {
		Data struct {
			Messages []ChatTurnData `json:"messages"`
		} `json:"data"`
	}
	if err := c.get(ctx, path, token, &resp); err != nil {
		return nil, err
	}
	return resp.Data.Messages, nil
}

// ClearChatHistory deletes a step chat transcript
func (c *APIClient) ClearChatHistory(ctx context.Context, token, recipeURL string, step int) error {
	path := "/api/v1/chat/step/history?url=" + url.QueryEscape(recipeURL) + "&step=" + strconv.Itoa(step)
	return c.do(ctx, http.MethodDelete, path, token, nil, nil)
}

// Timers

// StartTimer starts a countdown
func (c *APIClient) StartTimer(ctx context.Context, token, recipeID string, step int, label string, durationSeconds float64) (*TimerData, error) {
	req := map[string]interface{}{
		"recipe_id":        recipeID,
		"step":             step,
		"label":            label,
		"duration_seconds": durationSeconds,
	}

	var resp struct {
		Data TimerData `json:"data"`
	}
	if err := c.post(ctx, "/api/v1/timers/", token, req, &resp); err != nil {
		return nil, err
	}
	return &resp.Data, nil
}

// ListTimers fetches the caller's countdowns
func (c *APIClient) ListTimers(ctx context.Context, token string) ([]TimerData, error) {
	var resp struct {
		Data struct {
			Timers []TimerData `json:"timers"`
		} `json:"data"`
	}
	if err := c.get(ctx, "/api/v1/timers/", token, &resp); err != nil {
		return nil, err
	}
	return resp.Data.Timers, nil
}

// TimerAction pauses, resumes or cancels a countdown
func (c *APIClient) TimerAction(ctx context.Context, token, timerID, action string) (*TimerData, error) {
	path := "/api/v1/timers/" + url.PathEscape(timerID) + "/" + action

	var resp struct {
		Data TimerData `json:"data"`
	}
	if err := c.post(ctx, path, token, struct{}{}, &resp); err != nil {
		return nil, err
	}
	return &resp.Data, nil
}

// Helper methods

func (c *APIClient) post(ctx context.Context, path, token string, body, response interface{}) error {
	return c.do(ctx, http.MethodPost, path, token, body, response)
}

func (c *APIClient) get(ctx context.Context, path, token string, response interface{}) error {
	return c.do(ctx, http.MethodGet, path, token, nil, response)
}

func (c *APIClient) do(ctx context.Context, method, path, token string, body, response interface{}) error {
	return c.doWith(ctx, c.httpClient, method, path, token, body, response)
}

func (c *APIClient) doWith(ctx context.Context, client *http.Client, method, path, token string, body, response interface{}) error {
	var reader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	c.logger.Debug("API request",
		zap.String("method", method),
		zap.String("path", path),
	)

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return decodeAPIError(resp)
	}

	if response == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(response); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}

// decodeAPIError turns the backend error envelope into an APIError,
// falling back to the bare status when the body is not the envelope.
func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{
		Status:  resp.StatusCode,
		Code:    "UNKNOWN",
		Message: http.StatusText(resp.StatusCode),
	}

	var envelope struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err == nil && envelope.Error.Code != "" {
		apiErr.Code = envelope.Error.Code
		apiErr.Message = envelope.Error.Message
	}

	return apiErr
}
