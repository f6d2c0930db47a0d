package media

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/yambati03/touille/internal/infrastructure/config"
)

func newTestDownloader() *YtDlpDownloader {
	cfg := &config.Config{}
	cfg.Media.DownloaderPath = "yt-dlp"
	cfg.Media.ProbeTimeout = 30 * time.Second
	cfg.Media.DownloadTimeout = 2 * time.Minute
	return NewYtDlpDownloader(cfg, zap.NewNop())
}

func TestProbeParsesMetadata(t *testing.T) {
	downloader := newTestDownloader()

	var gotArgs []string
	downloader.WithCommandRunner(func(ctx context.Context, name string, args ...string) ([]byte, error) {
		assert.Equal(t, "yt-dlp", name)
		gotArgs = args
		return []byte(`{
			"id": "7312",
			"title": "Midnight ramen",
			"description": "Full recipe in caption! 2 cloves garlic...",
			"uploader": "noodlelab",
			"duration": 47.5
		}`), nil
	})

	info, err := downloader.Probe(context.Background(), "https://www.tiktok.com/@noodlelab/video/7312")
	require.NoError(t, err)

	assert.Equal(t, []string{"--no-playlist", "--dump-json", "https://www.tiktok.com/@noodlelab/video/7312"}, gotArgs)
	assert.Equal(t, "7312", info.ID)
	assert.Equal(t, "Midnight ramen", info.Title)
	assert.Equal(t, "Full recipe in caption! 2 cloves garlic...", info.Description)
	assert.Equal(t, "noodlelab", info.Uploader)
	assert.Equal(t, 47.5, info.Duration)
}

func TestProbeSurfacesCommandFailure(t *testing.T) {
	downloader := newTestDownloader()
	downloader.WithCommandRunner(func(ctx context.Context, name string, args ...string) ([]byte, error) {
		return nil, errors.New("ERROR: Unsupported URL")
	})

	info, err := downloader.Probe(context.Background(), "https://example.com/not-a-video")
	require.Error(t, err)
	assert.Nil(t, info)
	assert.Contains(t, err.Error(), "probe failed")
}

func TestProbeRejectsMalformedMetadata(t *testing.T) {
	downloader := newTestDownloader()
	downloader.WithCommandRunner(func(ctx context.Context, name string, args ...string) ([]byte, error) {
		return []byte("[youtube] extracting"), nil
	})

	_, err := downloader.Probe(context.Background(), "https://www.tiktok.com/@a/video/1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not valid JSON")
}

func TestDownloadWritesIntoDirectory(t *testing.T) {
	downloader := newTestDownloader()
	dir := t.TempDir()

	var gotArgs []string
	downloader.WithCommandRunner(func(ctx context.Context, name string, args ...string) ([]byte, error) {
		gotArgs = args
		// yt-dlp writes the file named by -o.
		for i, arg := range args {
			if arg == "-o" {
				require.Less(t, i+1, len(args))
				require.NoError(t, os.WriteFile(args[i+1], []byte("mp4"), 0o644))
			}
		}
		return nil, nil
	})

	path, err := downloader.Download(context.Background(), "https://www.tiktok.com/@a/video/1", dir)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "video.mp4"), path)
	assert.Equal(t, []string{"--no-playlist", "-f", "mp4", "-o", path, "https://www.tiktok.com/@a/video/1"}, gotArgs)
	assert.FileExists(t, path)
}

func TestDownloadFailsWhenCommandFails(t *testing.T) {
	downloader := newTestDownloader()
	downloader.WithCommandRunner(func(ctx context.Context, name string, args ...string) ([]byte, error) {
		return nil, errors.New("ERROR: Requested format is not available")
	})

	_, err := downloader.Download(context.Background(), "https://www.tiktok.com/@a/video/1", t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "yt-dlp failed")
}

func TestDownloadFailsWhenNoFileProduced(t *testing.T) {
	downloader := newTestDownloader()
	downloader.WithCommandRunner(func(ctx context.Context, name string, args ...string) ([]byte, error) {
		return nil, nil
	})

	_, err := downloader.Download(context.Background(), "https://www.tiktok.com/@a/video/1", t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "wrote no file")
}
