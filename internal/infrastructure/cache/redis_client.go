// Package cache provides Redis caching infrastructure for Touille.
// Transcripts, chat replies, MFA state and rate limit counters all live
// here so the extraction pipeline stays stateless between requests.
package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/yambati03/touille/internal/infrastructure/config"
)

// ErrKeyNotFound is returned when a key does not exist in the cache
var ErrKeyNotFound = errors.New("cache: key not found")

// RedisClient provides Redis connection management with circuit breaker
// protection. When Redis is down the breaker opens and callers fall
// back to their source of truth instead of stalling on timeouts.
type RedisClient struct {
	client         redis.UniversalClient
	config         *config.RedisConfig
	logger         *zap.Logger
	metrics        *RedisMetrics
	healthCheck    *healthCheck
	circuitBreaker *CircuitBreaker
}

// RedisMetrics tracks Redis performance and health
type RedisMetrics struct {
	TotalCommands    int64         `json:"total_commands"`
	SuccessfulOps    int64         `json:"successful_ops"`
	FailedOps        int64         `json:"failed_ops"`
	AvgResponseTime  time.Duration `json:"avg_response_time"`
	ConnectionErrors int64         `json:"connection_errors"`
	CacheHits        int64         `json:"cache_hits"`
	CacheMisses      int64         `json:"cache_misses"`
	LastUpdate       time.Time     `json:"last_update"`
	mu               sync.RWMutex
}

type healthCheck struct {
	isHealthy     bool
	lastCheck     time.Time
	lastError     string
	checkInterval time.Duration
	timeout       time.Duration
	checkTicker   *time.Ticker
	stopChan      chan struct{}
	mu            sync.RWMutex
}

// HealthStatus is a snapshot of the background health check
type HealthStatus struct {
	IsHealthy bool      `json:"is_healthy"`
	LastCheck time.Time `json:"last_check"`
	LastError string    `json:"last_error,omitempty"`
}

// CircuitBreaker implements the circuit breaker pattern for Redis
type CircuitBreaker struct {
	maxFailures     int
	timeout         time.Duration
	failures        int
	lastFailureTime time.Time
	state           CircuitState
	mu              sync.Mutex
}

// CircuitState represents circuit breaker states
type CircuitState int

const (
	CircuitClosed CircuitState = iota
	CircuitOpen
	CircuitHalfOpen
)

// NewRedisClient creates a new Redis client and verifies connectivity
func NewRedisClient(cfg *config.RedisConfig, logger *zap.Logger) (*RedisClient, error) {
	if cfg == nil {
		return nil, fmt.Errorf("redis config cannot be nil")
	}

	opts := &redis.UniversalOptions{
		Addrs:        []string{fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)},
		Password:     cfg.Password,
		DB:           cfg.Database,
		MaxRetries:   cfg.MaxRetries,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,

		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,

		ConnMaxLifetime: cfg.ConnMaxLifetime,
		ConnMaxIdleTime: time.Minute * 5,
		PoolTimeout:     time.Second * 10,
	}

	client := redis.NewUniversalClient(opts)

	redisClient := &RedisClient{
		client:  client,
		config:  cfg,
		logger:  logger,
		metrics: &RedisMetrics{LastUpdate: time.Now()},
		healthCheck: &healthCheck{
			checkInterval: time.Second * 30,
			timeout:       time.Second * 5,
			stopChan:      make(chan struct{}),
		},
		circuitBreaker: &CircuitBreaker{
			maxFailures: 5,
			timeout:     time.Second * 30,
			state:       CircuitClosed,
		},
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()

	if err := redisClient.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	redisClient.startHealthCheck()

	logger.Info("Redis client initialized successfully",
		zap.String("host", cfg.Host),
		zap.Int("port", cfg.Port),
		zap.Int("database", cfg.Database))

	return redisClient, nil
}

// Ping tests Redis connection
func (r *RedisClient) Ping(ctx context.Context) error {
	if !r.circuitBreaker.AllowRequest() {
		return fmt.Errorf("redis circuit breaker is open")
	}

	start := time.Now()
	err := r.client.Ping(ctx).Err()
	r.updateMetrics(err, time.Since(start))

	if err != nil {
		r.circuitBreaker.RecordFailure()
		r.logger.Error("Redis ping failed", zap.Error(err))
		return err
	}

	r.circuitBreaker.RecordSuccess()
	return nil
}

// Get retrieves a value from Redis with circuit breaker protection
func (r *RedisClient) Get(ctx context.Context, key string) ([]byte, error) {
	if !r.circuitBreaker.AllowRequest() {
		r.metrics.incrementCacheMiss()
		return nil, fmt.Errorf("redis circuit breaker is open")
	}

	start := time.Now()
	result, err := r.client.Get(ctx, key).Bytes()
	r.updateMetrics(err, time.Since(start))

	if err == redis.Nil {
		r.metrics.incrementCacheMiss()
		return nil, ErrKeyNotFound
	}

	if err != nil {
		r.circuitBreaker.RecordFailure()
		r.metrics.incrementCacheMiss()
		r.logger.Error("Redis GET failed", zap.String("key", key), zap.Error(err))
		return nil, err
	}

	r.circuitBreaker.RecordSuccess()
	r.metrics.incrementCacheHit()
	return result, nil
}

// Set stores a value in Redis with TTL
func (r *RedisClient) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if !r.circuitBreaker.AllowRequest() {
		return fmt.Errorf("redis circuit breaker is open")
	}

	start := time.Now()
	err := r.client.Set(ctx, key, value, ttl).Err()
	r.updateMetrics(err, time.Since(start))

	if err != nil {
		r.circuitBreaker.RecordFailure()
		r.logger.Error("Redis SET failed", zap.String("key", key), zap.Error(err))
		return err
	}

	r.circuitBreaker.RecordSuccess()
	return nil
}

// SetNX sets a key only if it doesn't exist (atomic operation)
func (r *RedisClient) SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	if !r.circuitBreaker.AllowRequest() {
		return false, fmt.Errorf("redis circuit breaker is open")
	}

	start := time.Now()
	result, err := r.client.SetNX(ctx, key, value, ttl).Result()
	r.updateMetrics(err, time.Since(start))

	if err != nil {
		r.circuitBreaker.RecordFailure()
		r.logger.Error("Redis SETNX failed", zap.String("key", key), zap.Error(err))
		return false, err
	}

	r.circuitBreaker.RecordSuccess()
	return result, nil
}

// Delete removes keys from Redis
func (r *RedisClient) Delete(ctx context.Context, keys ...string) error {
	if !r.circuitBreaker.AllowRequest() {
		return fmt.Errorf("redis circuit breaker is open")
	}

	start := time.Now()
	err := r.client.Del(ctx, keys...).Err()
	r.updateMetrics(err, time.Since(start))

	if err != nil {
		r.circuitBreaker.RecordFailure()
		r.logger.Error("Redis DEL failed", zap.Strings("keys", keys), zap.Error(err))
		return err
	}

	r.circuitBreaker.RecordSuccess()
	return nil
}

// Exists checks if keys exist in Redis
func (r *RedisClient) Exists(ctx context.Context, keys ...string) (int64, error) {
	if !r.circuitBreaker.AllowRequest() {
		return 0, fmt.Errorf("redis circuit breaker is open")
	}

	start := time.Now()
	result, err := r.client.Exists(ctx, keys...).Result()
	r.updateMetrics(err, time.Since(start))

	if err != nil {
		r.circuitBreaker.RecordFailure()
		r.logger.Error("Redis EXISTS failed", zap.Strings("keys", keys), zap.Error(err))
		return 0, err
	}

	r.circuitBreaker.RecordSuccess()
	return result, nil
}

// Increment atomically increments a counter and refreshes its expiry
func (r *RedisClient) Increment(ctx context.Context, key string, expiration time.Duration) (int64, error) {
	if !r.circuitBreaker.AllowRequest() {
		return 0, fmt.Errorf("redis circuit breaker is open")
	}

	pipe := r.client.Pipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, expiration)

	start := time.Now()
	_, err := pipe.Exec(ctx)
	r.updateMetrics(err, time.Since(start))

	if err != nil {
		r.circuitBreaker.RecordFailure()
		r.logger.Error("Redis INCR failed", zap.String("key", key), zap.Error(err))
		return 0, err
	}

	r.circuitBreaker.RecordSuccess()
	return incr.Val(), nil
}

// ScanKeys scans for keys matching a pattern
func (r *RedisClient) ScanKeys(ctx context.Context, pattern string) ([]string, error) {
	if !r.circuitBreaker.AllowRequest() {
		return nil, fmt.Errorf("redis circuit breaker is open")
	}

	var keys []string
	start := time.Now()

	iter := r.client.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}

	err := iter.Err()
	r.updateMetrics(err, time.Since(start))

	if err != nil {
		r.circuitBreaker.RecordFailure()
		r.logger.Error("Redis SCAN failed", zap.String("pattern", pattern), zap.Error(err))
		return nil, err
	}

	r.circuitBreaker.RecordSuccess()
	return keys, nil
}

// GetMetrics returns a copy of the current Redis metrics
func (r *RedisClient) GetMetrics() *RedisMetrics {
	r.metrics.mu.RLock()
	defer r.metrics.mu.RUnlock()

	return &RedisMetrics{
		TotalCommands:    r.metrics.TotalCommands,
		SuccessfulOps:    r.metrics.SuccessfulOps,
		FailedOps:        r.metrics.FailedOps,
		AvgResponseTime:  r.metrics.AvgResponseTime,
		ConnectionErrors: r.metrics.ConnectionErrors,
		CacheHits:        r.metrics.CacheHits,
		CacheMisses:      r.metrics.CacheMisses,
		LastUpdate:       r.metrics.LastUpdate,
	}
}

// GetHealthStatus returns the latest background health check result
func (r *RedisClient) GetHealthStatus() HealthStatus {
	r.healthCheck.mu.RLock()
	defer r.healthCheck.mu.RUnlock()

	return HealthStatus{
		IsHealthy: r.healthCheck.isHealthy,
		LastCheck: r.healthCheck.lastCheck,
		LastError: r.healthCheck.lastError,
	}
}

// Close closes the Redis client connection
func (r *RedisClient) Close() error {
	close(r.healthCheck.stopChan)
	if r.healthCheck.checkTicker != nil {
		r.healthCheck.checkTicker.Stop()
	}

	return r.client.Close()
}

func (r *RedisClient) updateMetrics(err error, duration time.Duration) {
	r.metrics.mu.Lock()
	defer r.metrics.mu.Unlock()

	r.metrics.TotalCommands++
	if err != nil && err != redis.Nil {
		r.metrics.FailedOps++
		r.metrics.ConnectionErrors++
	} else {
		r.metrics.SuccessfulOps++
	}

	// Exponential moving average, alpha 0.1
	if r.metrics.TotalCommands == 1 {
		r.metrics.AvgResponseTime = duration
	} else {
		alpha := 0.1
		r.metrics.AvgResponseTime = time.Duration(
			float64(r.metrics.AvgResponseTime)*(1-alpha) + float64(duration)*alpha)
	}

	r.metrics.LastUpdate = time.Now()
}

func (r *RedisClient) startHealthCheck() {
	r.healthCheck.checkTicker = time.NewTicker(r.healthCheck.checkInterval)

	go func() {
		for {
			select {
			case <-r.healthCheck.checkTicker.C:
				r.performHealthCheck()
			case <-r.healthCheck.stopChan:
				return
			}
		}
	}()
}

func (r *RedisClient) performHealthCheck() {
	ctx, cancel := context.WithTimeout(context.Background(), r.healthCheck.timeout)
	defer cancel()

	err := r.Ping(ctx)

	r.healthCheck.mu.Lock()
	r.healthCheck.lastCheck = time.Now()
	r.healthCheck.isHealthy = err == nil
	if err != nil {
		r.healthCheck.lastError = err.Error()
	} else {
		r.healthCheck.lastError = ""
	}
	r.healthCheck.mu.Unlock()
}

// Circuit breaker methods

// AllowRequest checks if requests are allowed based on circuit state
func (cb *CircuitBreaker) AllowRequest() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case CircuitClosed, CircuitHalfOpen:
		return true
	case CircuitOpen:
		if time.Since(cb.lastFailureTime) > cb.timeout {
			cb.state = CircuitHalfOpen
			return true
		}
		return false
	default:
		return false
	}
}

// RecordSuccess records a successful operation
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures = 0
	cb.state = CircuitClosed
}

// RecordFailure records a failed operation
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures++
	cb.lastFailureTime = time.Now()

	if cb.failures >= cb.maxFailures {
		cb.state = CircuitOpen
	}
}

// State returns the current breaker state
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Metrics helper methods

func (m *RedisMetrics) incrementCacheHit() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CacheHits++
}

func (m *RedisMetrics) incrementCacheMiss() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CacheMisses++
}

// GetCacheHitRatio calculates cache hit ratio
func (m *RedisMetrics) GetCacheHitRatio() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	total := m.CacheHits + m.CacheMisses
	if total == 0 {
		return 0.0
	}
	return float64(m.CacheHits) / float64(total)
}
