package memory

import (
	"context"
	"sync"
	"time"

	"github.com/yambati03/touille/internal/ports/outbound"
)

type transcriptEntry struct {
	transcript string
	caption    *string
}

// TranscriptCache implements the transcript cache interface in memory.
// Entries never expire; the cache lives only as long as the process.
type TranscriptCache struct {
	mu          sync.Mutex
	transcripts map[string]transcriptEntry
	locks       map[string]string
}

var _ outbound.TranscriptCache = (*TranscriptCache)(nil)

// NewTranscriptCache creates a new in-memory transcript cache
func NewTranscriptCache() *TranscriptCache {
	return &TranscriptCache{
		transcripts: make(map[string]transcriptEntry),
		locks:       make(map[string]string),
	}
}

// GetTranscript returns a cached transcript for the URL
func (c *TranscriptCache) GetTranscript(ctx context.Context, url string) (string, *string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.transcripts[url]
	if !ok {
		return "", nil, false
	}
	return entry.transcript, entry.caption, true
}

// StoreTranscript caches a transcript for the URL
func (c *TranscriptCache) StoreTranscript(ctx context.Context, url, transcript string, caption *string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.transcripts[url] = transcriptEntry{transcript: transcript, caption: caption}
}

// InvalidateTranscript drops the cached transcript for the URL
func (c *TranscriptCache) InvalidateTranscript(ctx context.Context, url string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.transcripts, url)
}

// AcquireProcessLock takes the per (url, user) lock. The TTL is
// ignored; a process that dies takes its locks with it.
func (c *TranscriptCache) AcquireProcessLock(ctx context.Context, url, userID string, ttl time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := url + "\x00" + userID
	if _, held := c.locks[key]; held {
		return false, nil
	}
	c.locks[key] = userID
	return true, nil
}

// ReleaseProcessLock releases the per (url, user) lock
func (c *TranscriptCache) ReleaseProcessLock(ctx context.Context, url, userID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.locks, url+"\x00"+userID)
}
