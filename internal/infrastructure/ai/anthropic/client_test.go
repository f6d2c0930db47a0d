package anthropic

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/yambati03/touille/internal/infrastructure/config"
	"github.com/yambati03/touille/internal/ports/outbound"
)

func newTestClient(serverURL string) *Client {
	cfg := &config.Config{}
	cfg.Extract.AnthropicKey = "test-key"
	cfg.Extract.AnthropicModel = "claude-sonnet-4-20250514"
	cfg.Extract.MaxTokens = 4096

	client := NewClient(cfg, zap.NewNop())
	client.baseURL = serverURL
	return client
}

func TestCompleteJSONSendsMessagesRequest(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("X-Api-Key"))
		assert.Equal(t, apiVersion, r.Header.Get("Anthropic-Version"))

		var req messageRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "claude-sonnet-4-20250514", req.Model)
		assert.Equal(t, 4096, req.MaxTokens)
		assert.NotEmpty(t, req.System)
		require.Len(t, req.Messages, 1)
		assert.Equal(t, "user", req.Messages[0].Role)

		json.NewEncoder(w).Encode(messageResponse{
			Content:    []contentBlock{{Type: "text", Text: `{"title":`}, {Type: "text", Text: `"Ramen"}`}},
			StopReason: "end_turn",
		})
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	out, err := client.CompleteJSON(context.Background(), "extract recipes", "the transcript")

	require.NoError(t, err)
	assert.Equal(t, `{"title":"Ramen"}`, out)
}

func TestCompleteJSONWithoutKeyFailsFast(t *testing.T) {
	client := NewClient(&config.Config{}, zap.NewNop())

	_, err := client.CompleteJSON(context.Background(), "s", "u")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "API key")
}

func TestCompleteJSONSurfacesAPIErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"type":"error","error":{"type":"invalid_request_error","message":"max_tokens required"}}`)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	_, err := client.CompleteJSON(context.Background(), "s", "u")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid_request_error")
	assert.Contains(t, err.Error(), "max_tokens required")
}

func TestStreamChatParsesServerSentEvents(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req messageRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.True(t, req.Stream)
		require.Len(t, req.Messages, 3)
		assert.Equal(t, "assistant", req.Messages[1].Role)

		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "event: message_start\n")
		fmt.Fprint(w, "data: {\"type\":\"message_start\"}\n\n")
		fmt.Fprint(w, "event: content_block_delta\n")
		fmt.Fprint(w, "data: {\"type\":\"content_block_delta\",\"delta\":{\"type\":\"text_delta\",\"text\":\"Low \"}}\n\n")
		fmt.Fprint(w, "event: content_block_delta\n")
		fmt.Fprint(w, "data: {\"type\":\"content_block_delta\",\"delta\":{\"type\":\"text_delta\",\"text\":\"and slow\"}}\n\n")
		fmt.Fprint(w, "event: message_stop\n")
		fmt.Fprint(w, "data: {\"type\":\"message_stop\"}\n\n")
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	var got string
	err := client.StreamChat(context.Background(), "be brief",
		[]outbound.ChatMessage{
			{Role: "user", Content: "earlier question"},
			{Role: "assistant", Content: "earlier answer"},
		},
		"how hot should the pan be?",
		func(delta string) error {
			got += delta
			return nil
		})

	require.NoError(t, err)
	assert.Equal(t, "Low and slow", got)
}

func TestStreamChatSurfacesStreamErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "event: error\n")
		fmt.Fprint(w, "data: {\"type\":\"error\",\"error\":{\"type\":\"overloaded_error\",\"message\":\"try again\"}}\n\n")
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	err := client.StreamChat(context.Background(), "", nil, "q", func(string) error { return nil })

	require.Error(t, err)
	assert.Contains(t, err.Error(), "overloaded_error")
}
