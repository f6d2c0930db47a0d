package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/yambati03/touille/internal/ports/outbound"
)

// maxHistoryTurns bounds how many turns one conversation keeps in
// Redis. Older turns fall off the front.
const maxHistoryTurns = 50

// ChatHistoryCache stores step chat conversations in Redis, keyed by
// user, recipe URL and step. Every append rewrites the entry with a
// full TTL so active conversations stay alive and idle ones expire.
type ChatHistoryCache struct {
	redis  *RedisClient
	logger *zap.Logger
	ttl    time.Duration
}

var _ outbound.ChatHistory = (*ChatHistoryCache)(nil)

// NewChatHistoryCache creates a chat history cache with the given TTL.
func NewChatHistoryCache(redis *RedisClient, logger *zap.Logger, ttl time.Duration) *ChatHistoryCache {
	return &ChatHistoryCache{
		redis:  redis,
		logger: logger,
		ttl:    ttl,
	}
}

// Turns returns the stored conversation, oldest first. A missing or
// unreadable entry is an empty history.
func (c *ChatHistoryCache) Turns(ctx context.Context, userID, url string, step int) []outbound.HistoryTurn {
	key := ChatHistoryKey(userID, url, step)

	data, err := c.redis.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrKeyNotFound) {
			c.logger.Warn("Chat history read failed", zap.Error(err))
		}
		return nil
	}

	var turns []outbound.HistoryTurn
	if err := json.Unmarshal(data, &turns); err != nil {
		c.logger.Warn("Chat history entry is corrupt, dropping it", zap.Error(err))
		c.redis.Delete(ctx, key)
		return nil
	}
	return turns
}

// Append stores a completed question and answer exchange and resets the
// conversation's TTL.
func (c *ChatHistoryCache) Append(ctx context.Context, userID, url string, step int, question, answer string) {
	now := time.Now().UTC()
	turns := append(c.Turns(ctx, userID, url, step),
		outbound.HistoryTurn{Role: outbound.RoleUser, Content: question, CreatedAt: now},
		outbound.HistoryTurn{Role: outbound.RoleAssistant, Content: answer, CreatedAt: now},
	)
	if len(turns) > maxHistoryTurns {
		turns = turns[len(turns)-maxHistoryTurns:]
	}

	data, err := json.Marshal(turns)
	if err != nil {
		c.logger.Warn("Failed to encode chat history", zap.Error(err))
		return
	}
	if err := c.redis.Set(ctx, ChatHistoryKey(userID, url, step), data, c.ttl); err != nil {
		c.logger.Warn("Chat history write failed", zap.Error(err))
	}
}

// Clear removes the stored conversation.
func (c *ChatHistoryCache) Clear(ctx context.Context, userID, url string, step int) error {
	return c.redis.Delete(ctx, ChatHistoryKey(userID, url, step))
}
