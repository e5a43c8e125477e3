package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/flowmarket/marketplace/internal/config"
	"github.com/flowmarket/marketplace/internal/models"
	"github.com/flowmarket/marketplace/internal/observability"
)

// RedisCache backs the shared rate limiter and the job status tracker.
// Both live in redis, not process memory, so their state holds across
// every server replica.
type RedisCache struct {
	client       redis.UniversalClient
	jobStatusTTL time.Duration
	logger       *zap.Logger
}

func NewRedisCache(cfg config.RedisConfig, logger *zap.Logger) (*RedisCache, error) {
	var client redis.UniversalClient

	if len(cfg.Addresses) > 1 {
		client = redis.NewClusterClient(&redis.ClusterOptions{
			Addrs:        cfg.Addresses,
			Password:     cfg.Password,
			PoolSize:     cfg.PoolSize,
			MinIdleConns: cfg.MinIdleConns,
			DialTimeout:  cfg.DialTimeout,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		})
	} else {
		client = redis.NewClient(&redis.Options{
			Addr:         cfg.Addresses[0],
			Password:     cfg.Password,
			DB:           cfg.DB,
			PoolSize:     cfg.PoolSize,
			MinIdleConns: cfg.MinIdleConns,
			DialTimeout:  cfg.DialTimeout,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	logger.Info("redis connected", zap.Strings("addresses", cfg.Addresses))

	return &RedisCache{
		client:       client,
		jobStatusTTL: cfg.JobStatusTTL,
		logger:       logger,
	}, nil
}

// Allow applies a fixed-window rate limit for one client key. The
// counter is created with the window TTL on first increment; once it
// exceeds maxRequests the caller rejects until the window expires.
// Redis errors fail open: an unreachable limiter must not take down
// every request with it.
func (rc *RedisCache) Allow(ctx context.Context, clientKey string, maxRequests int, window time.Duration) bool {
	key := "ratelimit:" + clientKey

	count, err := rc.client.Incr(ctx, key).Result()
	if err != nil {
		rc.logger.Warn("rate limiter unavailable, allowing request", zap.Error(err))
		return true
	}
	if count == 1 {
		if err := rc.client.Expire(ctx, key, window).Err(); err != nil {
			rc.logger.Warn("setting rate limit window failed", zap.Error(err))
		}
	}

	if count > int64(maxRequests) {
		observability.RateLimitedRequests.Inc()
		return false
	}
	return true
}

// SetJobStatus records the tracker state for one job.
func (rc *RedisCache) SetJobStatus(ctx context.Context, status *models.JobStatus) error {
	data, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("marshaling job status: %w", err)
	}
	return rc.client.Set(ctx, jobKey(status.ID), data, rc.jobStatusTTL).Err()
}

// GetJobStatus returns the tracker state for a job, or nil when the job
// is unknown or its record expired.
func (rc *RedisCache) GetJobStatus(ctx context.Context, jobID string) (*models.JobStatus, error) {
	val, err := rc.client.Get(ctx, jobKey(jobID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetching job status: %w", err)
	}

	var status models.JobStatus
	if err := json.Unmarshal([]byte(val), &status); err != nil {
		return nil, fmt.Errorf("unmarshaling job status: %w", err)
	}
	return &status, nil
}

func jobKey(id string) string {
	return "job:" + id
}

func (rc *RedisCache) HealthCheck(ctx context.Context) error {
	return rc.client.Ping(ctx).Err()
}

func (rc *RedisCache) Close() error {
	return rc.client.Close()
}
