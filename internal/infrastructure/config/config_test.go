package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yambati03/touille/internal/infrastructure/config"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, "Touille", cfg.App.Name)
	assert.Equal(t, 8000, cfg.Server.Port)
	assert.Equal(t, 3000, cfg.Web.Port)
	assert.Equal(t, "anthropic", cfg.Extract.Provider)
	assert.Equal(t, "claude-sonnet-4-20250514", cfg.Extract.AnthropicModel)
	assert.Equal(t, "http://ollama:11434", cfg.Extract.OllamaHost)
	assert.Equal(t, "llama3.2", cfg.Extract.OllamaModel)
	assert.Equal(t, 4096, cfg.Extract.MaxTokens)
	assert.Equal(t, "base", cfg.Transcribe.Model)
	assert.Equal(t, "local", cfg.Transcribe.Mode)
	assert.Equal(t, 16, cfg.Timers.MaxPerUser)
	assert.True(t, cfg.Auth.AllowAnonymousExtraction)
}

func TestEnvironmentOverride(t *testing.T) {
	t.Setenv("TOUILLE_SERVER_PORT", "9999")
	t.Setenv("TOUILLE_EXTRACT_PROVIDER", "ollama")
	t.Setenv("TOUILLE_EXTRACT_OLLAMA_HOST", "http://localhost:11434")

	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, "ollama", cfg.Extract.Provider)
	assert.Equal(t, "http://localhost:11434", cfg.Extract.OllamaHost)
}

func TestValidation(t *testing.T) {
	t.Run("rejects unknown extraction provider", func(t *testing.T) {
		t.Setenv("TOUILLE_EXTRACT_PROVIDER", "gpt-next")

		_, err := config.Load("")
		assert.ErrorContains(t, err, "extract.provider")
	})

	t.Run("api transcription requires a base url", func(t *testing.T) {
		t.Setenv("TOUILLE_TRANSCRIBE_MODE", "api")

		_, err := config.Load("")
		assert.ErrorContains(t, err, "transcribe.api_base_url")
	})

	t.Run("archive requires a bucket", func(t *testing.T) {
		t.Setenv("TOUILLE_STORAGE_ENABLE_ARCHIVE", "true")

		_, err := config.Load("")
		assert.ErrorContains(t, err, "storage.s3_bucket")
	})
}

func TestDSN(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)

	dsn := cfg.GetDSN()
	assert.Contains(t, dsn, "host=localhost")
	assert.Contains(t, dsn, "dbname=touille")
	assert.Contains(t, dsn, "sslmode=disable")
	assert.Equal(t, "localhost:6379", cfg.RedisAddr())
}
