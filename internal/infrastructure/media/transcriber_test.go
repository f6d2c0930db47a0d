package media

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/yambati03/touille/internal/infrastructure/config"
)

func newTestWhisper() *WhisperTranscriber {
	cfg := &config.Config{}
	cfg.Transcribe.BinaryPath = "whisper"
	cfg.Transcribe.Model = "base"
	cfg.Transcribe.Timeout = time.Minute
	return NewWhisperTranscriber(cfg, zap.NewNop())
}

// outputDirFromArgs returns the value following --output_dir.
func outputDirFromArgs(t *testing.T, args []string) string {
	t.Helper()
	for i, arg := range args {
		if arg == "--output_dir" {
			require.Less(t, i+1, len(args))
			return args[i+1]
		}
	}
	t.Fatal("no --output_dir in args")
	return ""
}

func TestWhisperTranscribeReadsProducedText(t *testing.T) {
	transcriber := newTestWhisper()
	mediaPath := filepath.Join(t.TempDir(), "video.mp4")
	require.NoError(t, os.WriteFile(mediaPath, []byte("mp4"), 0o644))

	var gotArgs []string
	transcriber.WithCommandRunner(func(ctx context.Context, name string, args ...string) ([]byte, error) {
		assert.Equal(t, "whisper", name)
		gotArgs = args
		dir := outputDirFromArgs(t, args)
		return nil, os.WriteFile(filepath.Join(dir, "video.txt"), []byte(" Start by charring the scallions.\n"), 0o644)
	})

	transcript, err := transcriber.Transcribe(context.Background(), mediaPath)
	require.NoError(t, err)

	assert.Equal(t, "Start by charring the scallions.", transcript)
	assert.Equal(t, mediaPath, gotArgs[0])
	assert.Contains(t, gotArgs, "--model")
	assert.Contains(t, gotArgs, "base")
	assert.Contains(t, gotArgs, "--output_format")
	assert.Contains(t, gotArgs, "txt")
}

func TestWhisperTranscribeFailsOnCommandError(t *testing.T) {
	transcriber := newTestWhisper()
	transcriber.WithCommandRunner(func(ctx context.Context, name string, args ...string) ([]byte, error) {
		return nil, errors.New("CUDA out of memory")
	})

	_, err := transcriber.Transcribe(context.Background(), "/tmp/video.mp4")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "whisper failed")
}

func TestWhisperTranscribeFailsWhenNoTextProduced(t *testing.T) {
	transcriber := newTestWhisper()
	transcriber.WithCommandRunner(func(ctx context.Context, name string, args ...string) ([]byte, error) {
		return nil, nil
	})

	_, err := transcriber.Transcribe(context.Background(), "/tmp/video.mp4")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "produced no transcript")
}

func TestWhisperTranscribeFailsOnEmptyTranscript(t *testing.T) {
	transcriber := newTestWhisper()
	transcriber.WithCommandRunner(func(ctx context.Context, name string, args ...string) ([]byte, error) {
		dir := outputDirFromArgs(t, args)
		return nil, os.WriteFile(filepath.Join(dir, "video.txt"), []byte("   \n"), 0o644)
	})

	_, err := transcriber.Transcribe(context.Background(), "/tmp/video.mp4")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty transcript")
}

func TestAPITranscribeUploadsMultipart(t *testing.T) {
	mediaPath := filepath.Join(t.TempDir(), "video.mp4")
	require.NoError(t, os.WriteFile(mediaPath, []byte("mp4-bytes"), 0o644))

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/audio/transcriptions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "whisper-1", r.FormValue("model"))
		assert.Equal(t, "text", r.FormValue("response_format"))

		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		assert.Equal(t, "video.mp4", header.Filename)
		data, err := io.ReadAll(file)
		require.NoError(t, err)
		assert.Equal(t, "mp4-bytes", string(data))

		io.WriteString(w, "Butter the pan before the eggs go in.\n")
	}))
	defer server.Close()

	cfg := &config.Config{}
	cfg.Transcribe.APIBaseURL = server.URL
	cfg.Transcribe.APIKey = "test-key"
	cfg.Transcribe.Model = "whisper-1"
	transcriber := NewAPITranscriber(cfg, zap.NewNop())

	transcript, err := transcriber.Transcribe(context.Background(), mediaPath)
	require.NoError(t, err)
	assert.Equal(t, "Butter the pan before the eggs go in.", transcript)
}

func TestAPITranscribeSurfacesAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		io.WriteString(w, `{"error": "unsupported file format"}`)
	}))
	defer server.Close()

	mediaPath := filepath.Join(t.TempDir(), "video.mp4")
	require.NoError(t, os.WriteFile(mediaPath, []byte("mp4"), 0o644))

	cfg := &config.Config{}
	cfg.Transcribe.APIBaseURL = server.URL
	transcriber := NewAPITranscriber(cfg, zap.NewNop())

	_, err := transcriber.Transcribe(context.Background(), mediaPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 400")
	assert.Contains(t, err.Error(), "unsupported file format")
}

func TestNewTranscriberSelectsMode(t *testing.T) {
	cfg := &config.Config{}
	cfg.Transcribe.Mode = "local"
	transcriber, err := NewTranscriber(cfg, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &WhisperTranscriber{}, transcriber)

	cfg.Transcribe.Mode = "api"
	transcriber, err = NewTranscriber(cfg, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &APITranscriber{}, transcriber)

	cfg.Transcribe.Mode = "carrier-pigeon"
	_, err = NewTranscriber(cfg, zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown transcription mode")
}
