package media

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/yambati03/touille/internal/infrastructure/config"
	"github.com/yambati03/touille/internal/ports/outbound"
)

// NewTranscriber selects the transcription backend from configuration.
func NewTranscriber(cfg *config.Config, logger *zap.Logger) (outbound.Transcriber, error) {
	switch cfg.Transcribe.Mode {
	case "local":
		return NewWhisperTranscriber(cfg, logger), nil
	case "api":
		return NewAPITranscriber(cfg, logger), nil
	default:
		return nil, fmt.Errorf("unknown transcription mode: %s", cfg.Transcribe.Mode)
	}
}

// WhisperTranscriber shells out to the whisper CLI. The CLI writes one
// output file per requested format into the output directory, named
// after the input file.
type WhisperTranscriber struct {
	binary  string
	model   string
	timeout time.Duration
	logger  *zap.Logger

	commandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)
}

var _ outbound.Transcriber = (*WhisperTranscriber)(nil)

// NewWhisperTranscriber creates a local CLI transcriber.
func NewWhisperTranscriber(cfg *config.Config, logger *zap.Logger) *WhisperTranscriber {
	binary := cfg.Transcribe.BinaryPath
	if binary == "" {
		binary = "whisper"
	}
	model := cfg.Transcribe.Model
	if model == "" {
		model = "base"
	}
	return &WhisperTranscriber{
		binary:  binary,
		model:   model,
		timeout: cfg.Transcribe.Timeout,
		logger:  logger,
	}
}

// WithCommandRunner sets a custom command runner (for testing).
func (t *WhisperTranscriber) WithCommandRunner(runner func(ctx context.Context, name string, args ...string) ([]byte, error)) {
	t.commandRunner = runner
}

// Transcribe runs whisper against the media file and returns the plain
// text transcript.
func (t *WhisperTranscriber) Transcribe(ctx context.Context, mediaPath string) (string, error) {
	if t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	outputDir, err := os.MkdirTemp("", "touille-whisper-*")
	if err != nil {
		return "", fmt.Errorf("failed to create transcript directory: %w", err)
	}
	defer os.RemoveAll(outputDir)

	start := time.Now()
	args := []string{
		mediaPath,
		"--model", t.model,
		"--output_format", "txt",
		"--output_dir", outputDir,
	}
	if _, err := t.run(ctx, args...); err != nil {
		return "", fmt.Errorf("whisper failed: %w", err)
	}

	base := strings.TrimSuffix(filepath.Base(mediaPath), filepath.Ext(mediaPath))
	textPath := filepath.Join(outputDir, base+".txt")
	data, err := os.ReadFile(textPath)
	if err != nil {
		return "", fmt.Errorf("whisper produced no transcript: %w", err)
	}

	transcript := strings.TrimSpace(string(data))
	if transcript == "" {
		return "", fmt.Errorf("whisper produced an empty transcript for %s", filepath.Base(mediaPath))
	}

	t.logger.Debug("Media transcribed",
		zap.String("model", t.model),
		zap.Int("transcript_chars", len(transcript)),
		zap.Duration("duration", time.Since(start)),
	)
	return transcript, nil
}

func (t *WhisperTranscriber) run(ctx context.Context, args ...string) ([]byte, error) {
	if t.commandRunner != nil {
		return t.commandRunner(ctx, t.binary, args...)
	}

	cmd := exec.CommandContext(ctx, t.binary, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %s", t.binary, err, strings.TrimSpace(string(output)))
	}
	return output, nil
}

// APITranscriber posts media to an OpenAI-compatible transcription
// endpoint and reads the transcript from the response body.
type APITranscriber struct {
	baseURL string
	apiKey  string
	model   string
	logger  *zap.Logger
	client  *http.Client
}

var _ outbound.Transcriber = (*APITranscriber)(nil)

// NewAPITranscriber creates a transcriber backed by a remote API.
func NewAPITranscriber(cfg *config.Config, logger *zap.Logger) *APITranscriber {
	model := cfg.Transcribe.Model
	if model == "" {
		model = "whisper-1"
	}
	timeout := cfg.Transcribe.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &APITranscriber{
		baseURL: strings.TrimRight(cfg.Transcribe.APIBaseURL, "/"),
		apiKey:  cfg.Transcribe.APIKey,
		model:   model,
		logger:  logger,
		client:  &http.Client{Timeout: timeout},
	}
}

// Transcribe uploads the media file and returns the transcript text.
func (t *APITranscriber) Transcribe(ctx context.Context, mediaPath string) (string, error) {
	file, err := os.Open(mediaPath)
	if err != nil {
		return "", fmt.Errorf("failed to open media file: %w", err)
	}
	defer file.Close()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", filepath.Base(mediaPath))
	if err != nil {
		return "", fmt.Errorf("failed to build upload: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return "", fmt.Errorf("failed to read media file: %w", err)
	}
	if err := writer.WriteField("model", t.model); err != nil {
		return "", fmt.Errorf("failed to build upload: %w", err)
	}
	if err := writer.WriteField("response_format", "text"); err != nil {
		return "", fmt.Errorf("failed to build upload: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("failed to build upload: %w", err)
	}

	url := t.baseURL + "/v1/audio/transcriptions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &body)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	if t.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+t.apiKey)
	}

	start := time.Now()
	resp, err := t.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("transcription request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read transcription response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("transcription API returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	transcript := strings.TrimSpace(string(respBody))
	if transcript == "" {
		return "", fmt.Errorf("transcription API returned an empty transcript for %s", filepath.Base(mediaPath))
	}

	t.logger.Debug("Media transcribed via API",
		zap.String("model", t.model),
		zap.Int("transcript_chars", len(transcript)),
		zap.Duration("duration", time.Since(start)),
	)
	return transcript, nil
}
