package healthcheck

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPingCheckerHealthy(t *testing.T) {
	c := NewPingChecker("redis", func(ctx context.Context) error { return nil })

	check := c.Check(context.Background())
	assert.Equal(t, StatusHealthy, check.Status)
}

func TestPingCheckerUnhealthy(t *testing.T) {
	c := NewPingChecker("redis", func(ctx context.Context) error {
		return errors.New("connection refused")
	})

	check := c.Check(context.Background())
	assert.Equal(t, StatusUnhealthy, check.Status)
	assert.Equal(t, "connection refused", check.Message)
}

func TestBinaryCheckerFindsInstalledBinary(t *testing.T) {
	c := NewBinaryChecker("shell", "sh")

	check := c.Check(context.Background())
	require.Equal(t, StatusHealthy, check.Status)
	meta, ok := check.Metadata.(map[string]interface{})
	require.True(t, ok)
	assert.NotEmpty(t, meta["path"])
}

func TestBinaryCheckerMissingBinary(t *testing.T) {
	c := NewBinaryChecker("yt-dlp", "definitely-not-installed-anywhere")

	check := c.Check(context.Background())
	assert.Equal(t, StatusUnhealthy, check.Status)
	assert.Contains(t, check.Message, "not found on PATH")
}

func TestWorkdirCheckerWritableDir(t *testing.T) {
	c := NewWorkdirChecker(t.TempDir())

	check := c.Check(context.Background())
	assert.Equal(t, StatusHealthy, check.Status)
}

func TestWorkdirCheckerUnwritablePath(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "occupied")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	// A path under a regular file can never become a directory.
	c := NewWorkdirChecker(filepath.Join(file, "nested"))

	check := c.Check(context.Background())
	assert.Equal(t, StatusUnhealthy, check.Status)
}

func TestProviderCheckerReportsProbeFailure(t *testing.T) {
	c := NewProviderChecker("ollama", func(ctx context.Context) error {
		return errors.New("model not loaded")
	})

	check := c.Check(context.Background())
	assert.Equal(t, StatusUnhealthy, check.Status)
	assert.Equal(t, "model not loaded", check.Message)
}

func TestProviderCheckerOpensCircuitAfterRepeatedFailures(t *testing.T) {
	c := NewProviderChecker("ollama", func(ctx context.Context) error {
		return errors.New("model not loaded")
	})

	for i := 0; i < 5; i++ {
		c.Check(context.Background())
	}

	check := c.Check(context.Background())
	assert.Equal(t, StatusUnhealthy, check.Status)
	assert.Equal(t, ErrCircuitOpen.Error(), check.Message)

	meta, ok := check.Metadata.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "open", meta["circuit_state"])
}

func TestExternalServiceCheckerStatuses(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		want       Status
	}{
		{"success", http.StatusOK, StatusHealthy},
		{"client error", http.StatusNotFound, StatusDegraded},
		{"server error", http.StatusInternalServerError, StatusUnhealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.statusCode)
			}))
			defer server.Close()

			c := NewExternalServiceChecker("upstream", server.URL, 0)
			check := c.Check(context.Background())
			assert.Equal(t, tt.want, check.Status)
		})
	}
}
