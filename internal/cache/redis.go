package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"stock-insight-backend/config"
)

// ErrCacheUnavailable is returned while the circuit breaker is open.
var ErrCacheUnavailable = errors.New("cache unavailable - Redis is not healthy")

// Service provides Redis-based caching with graceful degradation. When
// Redis is unavailable, operations return errors that callers should handle
// by recomputing instead of failing the request.
type Service struct {
	client       *redis.Client
	config       config.RedisConfig
	logger       zerolog.Logger
	mu           sync.RWMutex
	healthy      bool
	failureCount int
	lastCheck    time.Time

	// Circuit breaker settings
	maxFailures   int
	checkInterval time.Duration
}

// NewService creates a Service with the provided configuration. It attempts
// to connect to Redis; a failed initial ping leaves the service in degraded
// mode rather than erroring out.
func NewService(cfg config.RedisConfig, logger zerolog.Logger) (*Service, error) {
	if !cfg.Enabled {
		return nil, fmt.Errorf("redis is not enabled in configuration")
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: 2,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	s := &Service{
		client:        client,
		config:        cfg,
		logger:        logger.With().Str("component", "cache").Logger(),
		maxFailures:   3,
		checkInterval: 30 * time.Second,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		s.logger.Warn().Err(err).Msg("Initial Redis connection failed, starting degraded")
		return s, nil
	}

	s.healthy = true
	s.lastCheck = time.Now()
	s.logger.Info().Str("address", cfg.Address).Msg("Redis connected")

	return s, nil
}

// IsHealthy returns whether Redis is currently available.
func (s *Service) IsHealthy() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.healthy
}

// recordFailure tracks a Redis operation failure for the circuit breaker.
func (s *Service) recordFailure() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.failureCount++
	if s.failureCount >= s.maxFailures {
		if s.healthy {
			s.logger.Warn().Int("failures", s.failureCount).Msg("Circuit breaker OPEN, Redis marked unhealthy")
		}
		s.healthy = false
	}
}

// recordSuccess resets the failure counter on a successful operation.
func (s *Service) recordSuccess() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.healthy {
		s.logger.Info().Msg("Circuit breaker CLOSED, Redis recovered")
	}
	s.healthy = true
	s.failureCount = 0
	s.lastCheck = time.Now()
}

// checkHealth launches a background ping when the breaker has been open
// past the check interval.
func (s *Service) checkHealth() {
	s.mu.RLock()
	shouldCheck := !s.healthy && time.Since(s.lastCheck) >= s.checkInterval
	s.mu.RUnlock()

	if !shouldCheck {
		return
	}

	go func() {
		pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		if err := s.client.Ping(pingCtx).Err(); err == nil {
			s.recordSuccess()
		}
	}()
}

// Get retrieves a value from cache. A miss returns redis.Nil.
func (s *Service) Get(ctx context.Context, key string) (string, error) {
	s.checkHealth()

	if !s.IsHealthy() {
		return "", ErrCacheUnavailable
	}

	result, err := s.client.Get(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return "", err
		}
		s.recordFailure()
		return "", fmt.Errorf("redis get failed: %w", err)
	}

	s.recordSuccess()
	return result, nil
}

// Set stores a value in cache with a TTL.
func (s *Service) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	s.checkHealth()

	if !s.IsHealthy() {
		return ErrCacheUnavailable
	}

	var data string
	switch v := value.(type) {
	case string:
		data = v
	case []byte:
		data = string(v)
	default:
		jsonData, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("failed to marshal value: %w", err)
		}
		data = string(jsonData)
	}

	if err := s.client.Set(ctx, key, data, ttl).Err(); err != nil {
		s.recordFailure()
		return fmt.Errorf("redis set failed: %w", err)
	}

	s.recordSuccess()
	return nil
}

// Delete removes a key from cache.
func (s *Service) Delete(ctx context.Context, key string) error {
	s.checkHealth()

	if !s.IsHealthy() {
		return ErrCacheUnavailable
	}

	if err := s.client.Del(ctx, key).Err(); err != nil {
		s.recordFailure()
		return fmt.Errorf("redis delete failed: %w", err)
	}

	s.recordSuccess()
	return nil
}

// Ping checks Redis connectivity.
func (s *Service) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		s.recordFailure()
		return err
	}
	s.recordSuccess()
	return nil
}

// Close closes the Redis connection.
func (s *Service) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

// Stats reports cache health for the monitoring endpoint.
type Stats struct {
	Healthy      bool   `json:"healthy"`
	FailureCount int    `json:"failure_count"`
	Address      string `json:"address"`
	PoolSize     int    `json:"pool_size"`
}

// GetStats returns current cache statistics.
func (s *Service) GetStats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return Stats{
		Healthy:      s.healthy,
		FailureCount: s.failureCount,
		Address:      s.config.Address,
		PoolSize:     s.config.PoolSize,
	}
}

// RedisStore adapts Service to the Store interface for one cache namespace.
// Backend failures and open-breaker states degrade to misses so callers
// recompute instead of erroring.
type RedisStore struct {
	service *Service
	prefix  string
	ttl     time.Duration
}

// NewRedisStore wraps service into a Store whose keys live under prefix and
// whose entries expire after ttl.
func NewRedisStore(service *Service, prefix string, ttl time.Duration) *RedisStore {
	return &RedisStore{service: service, prefix: prefix, ttl: ttl}
}

func (r *RedisStore) Get(ctx context.Context, key string) ([]byte, bool) {
	val, err := r.service.Get(ctx, r.prefix+":"+key)
	if err != nil {
		return nil, false
	}
	return []byte(val), true
}

func (r *RedisStore) Set(ctx context.Context, key string, value []byte) {
	_ = r.service.Set(ctx, r.prefix+":"+key, value, r.ttl)
}

func (r *RedisStore) Delete(ctx context.Context, key string) {
	_ = r.service.Delete(ctx, r.prefix+":"+key)
}
