// Package media runs the external tools that turn a video URL into
// local files and text: yt-dlp for fetching, whisper for speech to
// text.
package media

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/yambati03/touille/internal/infrastructure/config"
	"github.com/yambati03/touille/internal/ports/outbound"
)

// mediaFileName is the fixed name the downloader writes inside its
// working directory.
const mediaFileName = "video.mp4"

// ytdlpInfo is the subset of yt-dlp's --dump-json output Touille needs.
// The description field carries the TikTok caption.
type ytdlpInfo struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Uploader    string  `json:"uploader"`
	Duration    float64 `json:"duration"`
}

// YtDlpDownloader shells out to yt-dlp.
type YtDlpDownloader struct {
	binary          string
	probeTimeout    time.Duration
	downloadTimeout time.Duration
	logger          *zap.Logger

	commandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)
}

var _ outbound.VideoDownloader = (*YtDlpDownloader)(nil)

// NewYtDlpDownloader creates a downloader from configuration.
func NewYtDlpDownloader(cfg *config.Config, logger *zap.Logger) *YtDlpDownloader {
	binary := cfg.Media.DownloaderPath
	if binary == "" {
		binary = "yt-dlp"
	}
	return &YtDlpDownloader{
		binary:          binary,
		probeTimeout:    cfg.Media.ProbeTimeout,
		downloadTimeout: cfg.Media.DownloadTimeout,
		logger:          logger,
	}
}

// WithCommandRunner sets a custom command runner (for testing).
func (d *YtDlpDownloader) WithCommandRunner(runner func(ctx context.Context, name string, args ...string) ([]byte, error)) {
	d.commandRunner = runner
}

// Probe fetches video metadata without downloading the media. The
// caption lives in the description field of the metadata dump.
func (d *YtDlpDownloader) Probe(ctx context.Context, rawURL string) (*outbound.VideoInfo, error) {
	if d.probeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.probeTimeout)
		defer cancel()
	}

	out, err := d.run(ctx, "--no-playlist", "--dump-json", rawURL)
	if err != nil {
		return nil, fmt.Errorf("yt-dlp probe failed: %w", err)
	}

	var info ytdlpInfo
	if err := json.Unmarshal(out, &info); err != nil {
		return nil, fmt.Errorf("yt-dlp metadata is not valid JSON: %w", err)
	}

	return &outbound.VideoInfo{
		ID:          info.ID,
		Title:       info.Title,
		Description: info.Description,
		Uploader:    info.Uploader,
		Duration:    info.Duration,
	}, nil
}

// Download fetches the video as mp4 into dir and returns the file path.
func (d *YtDlpDownloader) Download(ctx context.Context, rawURL, dir string) (string, error) {
	if d.downloadTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.downloadTimeout)
		defer cancel()
	}

	path := filepath.Join(dir, mediaFileName)
	start := time.Now()

	if _, err := d.run(ctx, "--no-playlist", "-f", "mp4", "-o", path, rawURL); err != nil {
		return "", fmt.Errorf("yt-dlp failed: %w", err)
	}
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("yt-dlp reported success but wrote no file: %w", err)
	}

	d.logger.Debug("Video downloaded",
		zap.String("path", path),
		zap.Duration("duration", time.Since(start)),
	)
	return path, nil
}

// run executes yt-dlp and returns its stdout. Stderr is folded into the
// error because that is where yt-dlp explains failures.
func (d *YtDlpDownloader) run(ctx context.Context, args ...string) ([]byte, error) {
	if d.commandRunner != nil {
		return d.commandRunner(ctx, d.binary, args...)
	}

	cmd := exec.CommandContext(ctx, d.binary, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%s: %w: %s", d.binary, err, strings.TrimSpace(stderr.String()))
	}
	return stdout.Bytes(), nil
}
