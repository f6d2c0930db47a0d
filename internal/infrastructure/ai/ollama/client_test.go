package ollama

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
	cfg.Extract.OllamaHost = serverURL
	cfg.Extract.OllamaModel = "llama3.2"
	return NewClient(cfg, zap.NewNop())
}

func TestCompleteJSONUsesJSONMode(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)

		var req generateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "llama3.2", req.Model)
		assert.Equal(t, "json", req.Format)
		assert.False(t, req.Stream)

		json.NewEncoder(w).Encode(generateResponse{
			Model:    "llama3.2",
			Response: `{"title":"Pho"}`,
			Done:     true,
		})
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	out, err := client.CompleteJSON(context.Background(), "system", "user")

	require.NoError(t, err)
	assert.Equal(t, `{"title":"Pho"}`, out)
}

func TestCompleteJSONSurfacesAPIErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"model not found"}`, http.StatusNotFound)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	_, err := client.CompleteJSON(context.Background(), "system", "user")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestStreamChatDeliversChunksInOrder(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.True(t, req.Stream)
		require.NotEmpty(t, req.Messages)
		assert.Equal(t, "system", req.Messages[0].Role)
		assert.Equal(t, "user", req.Messages[len(req.Messages)-1].Role)

		enc := json.NewEncoder(w)
		for _, word := range []string{"Use ", "medium ", "heat"} {
			enc.Encode(chatStreamChunk{Message: chatMessage{Role: "assistant", Content: word}})
		}
		enc.Encode(chatStreamChunk{Done: true})
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	var got string
	err := client.StreamChat(context.Background(), "be helpful",
		[]outbound.ChatMessage{{Role: "user", Content: "earlier"}},
		"how hot?",
		func(delta string) error {
			got += delta
			return nil
		})

	require.NoError(t, err)
	assert.Equal(t, "Use medium heat", got)
}

func TestStreamChatStopsWhenCallbackFails(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		enc := json.NewEncoder(w)
		for i := 0; i < 10; i++ {
			enc.Encode(chatStreamChunk{Message: chatMessage{Role: "assistant", Content: "x"}})
		}
		enc.Encode(chatStreamChunk{Done: true})
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	calls := 0
	err := client.StreamChat(context.Background(), "", nil, "q", func(delta string) error {
		calls++
		if calls == 2 {
			return fmt.Errorf("client went away")
		}
		return nil
	})

	require.Error(t, err)
	assert.Equal(t, 2, calls)
}

func TestHealthCheck(t *testing.T) {
	healthy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/tags", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer healthy.Close()

	assert.NoError(t, newTestClient(healthy.URL).HealthCheck(context.Background()))

	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer broken.Close()

	assert.Error(t, newTestClient(broken.URL).HealthCheck(context.Background()))
}
