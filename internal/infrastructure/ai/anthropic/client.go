// Package anthropic provides the Anthropic Messages API client
package anthropic

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/yambati03/touille/internal/infrastructure/config"
	"github.com/yambati03/touille/internal/ports/outbound"
)

const (
	defaultBaseURL = "https://api.anthropic.com"
	apiVersion     = "2023-06-01"
)

// Client talks to the Anthropic Messages API.
type Client struct {
	baseURL   string
	apiKey    string
	model     string
	maxTokens int
	logger    *zap.Logger

	// Streaming responses can legitimately outlive any fixed client
	// timeout, so streams run on a client without one and rely on the
	// request context instead.
	client       *http.Client
	streamClient *http.Client
}

// NewClient creates a new Anthropic client from configuration.
func NewClient(cfg *config.Config, logger *zap.Logger) *Client {
	timeout := cfg.Extract.Timeout
	if timeout == 0 {
		timeout = 2 * time.Minute
	}

	return &Client{
		baseURL:      defaultBaseURL,
		apiKey:       cfg.Extract.AnthropicKey,
		model:        cfg.Extract.AnthropicModel,
		maxTokens:    cfg.Extract.MaxTokens,
		logger:       logger.Named("anthropic-client"),
		client:       &http.Client{Timeout: timeout},
		streamClient: &http.Client{},
	}
}

// Anthropic API structures
type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messageRequest struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	System    string    `json:"system,omitempty"`
	Messages  []message `json:"messages"`
	Stream    bool      `json:"stream,omitempty"`
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

type messageResponse struct {
	ID         string         `json:"id"`
	Content    []contentBlock `json:"content"`
	StopReason string         `json:"stop_reason"`
	Usage      usage          `json:"usage"`
}

type apiError struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

type streamEvent struct {
	Type  string `json:"type"`
	Delta struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"delta"`
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// Name identifies the provider for logging and health reporting.
func (c *Client) Name() string {
	return "anthropic"
}

// HealthCheck verifies the client is usable. The API key is the only
// hard requirement; reachability problems surface on the first call.
func (c *Client) HealthCheck(ctx context.Context) error {
	if c.apiKey == "" {
		return fmt.Errorf("anthropic API key not configured")
	}
	return nil
}

// CompleteJSON sends one message exchange and returns the text
// response. The system prompt is responsible for forcing JSON output.
func (c *Client) CompleteJSON(ctx context.Context, system, user string) (string, error) {
	if c.apiKey == "" {
		return "", fmt.Errorf("anthropic API key not configured")
	}

	reqBody := messageRequest{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		System:    system,
		Messages:  []message{{Role: "user", Content: user}},
	}

	resp, err := c.post(ctx, c.client, reqBody)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", c.errorFromBody(resp.StatusCode, body)
	}

	var msgResp messageResponse
	if err := json.Unmarshal(body, &msgResp); err != nil {
		return "", fmt.Errorf("failed to unmarshal response: %w", err)
	}

	var text strings.Builder
	for _, block := range msgResp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	c.logger.Debug("Anthropic completion finished",
		zap.String("model", c.model),
		zap.String("stop_reason", msgResp.StopReason),
		zap.Int("input_tokens", msgResp.Usage.InputTokens),
		zap.Int("output_tokens", msgResp.Usage.OutputTokens),
	)
	return text.String(), nil
}

// StreamChat streams a reply as server sent events and forwards each
// text delta to onDelta.
func (c *Client) StreamChat(ctx context.Context, system string, history []outbound.ChatMessage, user string, onDelta func(delta string) error) error {
	if c.apiKey == "" {
		return fmt.Errorf("anthropic API key not configured")
	}

	messages := make([]message, 0, len(history)+1)
	for _, turn := range history {
		messages = append(messages, message{Role: turn.Role, Content: turn.Content})
	}
	messages = append(messages, message{Role: "user", Content: user})

	reqBody := messageRequest{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		System:    system,
		Messages:  messages,
		Stream:    true,
	}

	resp, err := c.post(ctx, c.streamClient, reqBody)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return c.errorFromBody(resp.StatusCode, body)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}

		var event streamEvent
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &event); err != nil {
			c.logger.Debug("Skipping malformed stream event", zap.Error(err))
			continue
		}

		switch event.Type {
		case "content_block_delta":
			if event.Delta.Type == "text_delta" && event.Delta.Text != "" {
				if err := onDelta(event.Delta.Text); err != nil {
					return err
				}
			}
		case "error":
			return fmt.Errorf("anthropic stream error (%s): %s", event.Error.Type, event.Error.Message)
		case "message_stop":
			return nil
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("stream read failed: %w", err)
	}
	return nil
}

func (c *Client) post(ctx context.Context, client *http.Client, reqBody messageRequest) (*http.Response, error) {
	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/messages", bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Api-Key", c.apiKey)
	req.Header.Set("Anthropic-Version", apiVersion)

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("API request failed: %w", err)
	}
	return resp, nil
}

func (c *Client) errorFromBody(status int, body []byte) error {
	var apiErr apiError
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error.Message != "" {
		return fmt.Errorf("anthropic API error %d (%s): %s", status, apiErr.Error.Type, apiErr.Error.Message)
	}
	return fmt.Errorf("anthropic API error %d: %s", status, string(body))
}
