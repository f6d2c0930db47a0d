package cache

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/yambati03/touille/internal/ports/outbound"
)

// ExtractionCache keeps transcription results in Redis. Transcription
// is by far the most expensive stage of the pipeline, so a refresh that
// only needs a new extraction can reuse the cached transcript instead
// of downloading the video again.
type ExtractionCache struct {
	redis         *RedisClient
	logger        *zap.Logger
	transcriptTTL time.Duration
	enabled       bool
}

var _ outbound.TranscriptCache = (*ExtractionCache)(nil)

// cachedMedia is the stored transcription result for a video URL
type cachedMedia struct {
	Transcript string  `json:"transcript"`
	Caption    *string `json:"caption,omitempty"`
	CachedAt   int64   `json:"cached_at"`
}

// NewExtractionCache creates an extraction cache
func NewExtractionCache(redis *RedisClient, logger *zap.Logger, transcriptTTL time.Duration, enabled bool) *ExtractionCache {
	return &ExtractionCache{
		redis:         redis,
		logger:        logger,
		transcriptTTL: transcriptTTL,
		enabled:       enabled,
	}
}

// GetTranscript returns the cached transcription for a normalized URL.
// Cache failures degrade to a miss, the pipeline simply does the work.
func (c *ExtractionCache) GetTranscript(ctx context.Context, url string) (string, *string, bool) {
	if !c.enabled {
		return "", nil, false
	}

	data, err := c.redis.Get(ctx, TranscriptKey(url))
	if err != nil {
		if err != ErrKeyNotFound {
			c.logger.Debug("Transcript cache read failed", zap.Error(err))
		}
		return "", nil, false
	}

	var media cachedMedia
	if err := json.Unmarshal(data, &media); err != nil {
		c.logger.Warn("Corrupt transcript cache entry", zap.String("url", url), zap.Error(err))
		return "", nil, false
	}

	c.logger.Debug("Transcript cache hit", zap.String("url", url))
	return media.Transcript, media.Caption, true
}

// StoreTranscript caches a transcription result. Best effort.
func (c *ExtractionCache) StoreTranscript(ctx context.Context, url, transcript string, caption *string) {
	if !c.enabled {
		return
	}

	data, err := json.Marshal(cachedMedia{
		Transcript: transcript,
		Caption:    caption,
		CachedAt:   time.Now().Unix(),
	})
	if err != nil {
		return
	}

	if err := c.redis.Set(ctx, TranscriptKey(url), data, c.transcriptTTL); err != nil {
		c.logger.Debug("Transcript cache write failed", zap.Error(err))
	}
}

// InvalidateTranscript drops the cached transcription for a URL.
// Used by forced refresh so the video is fetched and transcribed anew.
func (c *ExtractionCache) InvalidateTranscript(ctx context.Context, url string) {
	if !c.enabled {
		return
	}
	if err := c.redis.Delete(ctx, TranscriptKey(url)); err != nil {
		c.logger.Debug("Transcript cache invalidation failed", zap.Error(err))
	}
}

// AcquireProcessLock takes the single-flight lock for a (url, user)
// pipeline run. Returns false when another run already holds it. The
// TTL bounds how long a crashed run can block the pair.
func (c *ExtractionCache) AcquireProcessLock(ctx context.Context, url, userID string, ttl time.Duration) (bool, error) {
	return c.redis.SetNX(ctx, ProcessLockKey(url, userID), []byte("1"), ttl)
}

// ReleaseProcessLock releases the single-flight lock
func (c *ExtractionCache) ReleaseProcessLock(ctx context.Context, url, userID string) {
	if err := c.redis.Delete(ctx, ProcessLockKey(url, userID)); err != nil {
		c.logger.Debug("Process lock release failed", zap.Error(err))
	}
}
