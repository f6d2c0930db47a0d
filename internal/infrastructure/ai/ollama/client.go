// Package ollama provides the Ollama API client for local inference
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/yambati03/touille/internal/infrastructure/config"
	"github.com/yambati03/touille/internal/ports/outbound"
)

// Client talks to a local or remote Ollama instance.
type Client struct {
	baseURL string
	model   string
	logger  *zap.Logger

	client       *http.Client
	streamClient *http.Client
}

// NewClient creates a new Ollama client from configuration.
func NewClient(cfg *config.Config, logger *zap.Logger) *Client {
	timeout := cfg.Extract.Timeout
	if timeout == 0 {
		timeout = 2 * time.Minute
	}

	logger.Info("Ollama client initialized",
		zap.String("base_url", cfg.Extract.OllamaHost),
		zap.String("model", cfg.Extract.OllamaModel),
	)

	return &Client{
		baseURL:      cfg.Extract.OllamaHost,
		model:        cfg.Extract.OllamaModel,
		logger:       logger.Named("ollama-client"),
		client:       &http.Client{Timeout: timeout},
		streamClient: &http.Client{},
	}
}

// Ollama API structures
type generateRequest struct {
	Model  string `json:"model"`
	System string `json:"system,omitempty"`
	Prompt string `json:"prompt"`
	Format string `json:"format,omitempty"`
	Stream bool   `json:"stream"`
}

type generateResponse struct {
	Model        string `json:"model"`
	Response     string `json:"response"`
	Done         bool   `json:"done"`
	EvalCount    int    `json:"eval_count,omitempty"`
	EvalDuration int64  `json:"eval_duration,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
}

type chatStreamChunk struct {
	Model   string      `json:"model"`
	Message chatMessage `json:"message"`
	Done    bool        `json:"done"`
}

// Name identifies the provider for logging and health reporting.
func (c *Client) Name() string {
	return "ollama"
}

// HealthCheck verifies the Ollama service is reachable.
func (c *Client) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return fmt.Errorf("failed to create health check request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("ollama health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ollama health check failed with status %d", resp.StatusCode)
	}
	return nil
}

// CompleteJSON runs one generation with Ollama's JSON mode enabled,
// which constrains the model to emit a single JSON object.
func (c *Client) CompleteJSON(ctx context.Context, system, user string) (string, error) {
	reqBody := generateRequest{
		Model:  c.model,
		System: system,
		Prompt: user,
		Format: "json",
		Stream: false,
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/generate", bytes.NewReader(jsonBody))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ollama API error %d: %s", resp.StatusCode, string(body))
	}

	var genResp generateResponse
	if err := json.Unmarshal(body, &genResp); err != nil {
		return "", fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if !genResp.Done {
		return "", fmt.Errorf("incomplete response from ollama")
	}

	c.logger.Debug("Ollama completion finished",
		zap.String("model", genResp.Model),
		zap.Int("eval_count", genResp.EvalCount),
		zap.Int64("eval_duration", genResp.EvalDuration),
	)
	return genResp.Response, nil
}

// StreamChat streams a chat reply. Ollama emits newline delimited JSON
// chunks, each carrying one content fragment.
func (c *Client) StreamChat(ctx context.Context, system string, history []outbound.ChatMessage, user string, onDelta func(delta string) error) error {
	messages := make([]chatMessage, 0, len(history)+2)
	if system != "" {
		messages = append(messages, chatMessage{Role: "system", Content: system})
	}
	for _, turn := range history {
		messages = append(messages, chatMessage{Role: turn.Role, Content: turn.Content})
	}
	messages = append(messages, chatMessage{Role: "user", Content: user})

	reqBody := chatRequest{
		Model:    c.model,
		Messages: messages,
		Stream:   true,
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(jsonBody))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.streamClient.Do(req)
	if err != nil {
		return fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("ollama API error %d: %s", resp.StatusCode, string(body))
	}

	decoder := json.NewDecoder(resp.Body)
	for {
		var chunk chatStreamChunk
		if err := decoder.Decode(&chunk); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("stream read failed: %w", err)
		}

		if chunk.Message.Content != "" {
			if err := onDelta(chunk.Message.Content); err != nil {
				return err
			}
		}
		if chunk.Done {
			return nil
		}
	}
}
