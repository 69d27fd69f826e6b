package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	"github.com/Liuhangfung/get-allassets/pkg/config"
	"github.com/Liuhangfung/get-allassets/pkg/models"
)

// RedisClient caches the latest ranked snapshot so the read API does not
// hit MySQL on every request.
type RedisClient struct {
	client *redis.Client
	logger *logrus.Entry
	cfg    *config.RedisConfig
	ttl    time.Duration
}

// NewRedisClient creates a new Redis client
func NewRedisClient(cfg *config.RedisConfig, logger *logrus.Logger) (*RedisClient, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	ttl := cfg.SnapshotTTL
	if ttl <= 0 {
		ttl = 48 * time.Hour
	}

	return &RedisClient{
		client: client,
		logger: logger.WithField("component", "redis"),
		cfg:    cfg,
		ttl:    ttl,
	}, nil
}

// Close closes the Redis connection
func (rc *RedisClient) Close() error {
	return rc.client.Close()
}

// Health checks Redis health
func (rc *RedisClient) Health(ctx context.Context) error {
	return rc.client.Ping(ctx).Err()
}

// SetSnapshot caches a ranked snapshot under its date and as the latest.
func (rc *RedisClient) SetSnapshot(ctx context.Context, snapshotDate string, assets []*models.Asset) error {
	data, err := json.Marshal(assets)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	pipe := rc.client.Pipeline()
	pipe.Set(ctx, fmt.Sprintf("assets:snapshot:%s", snapshotDate), data, rc.ttl)
	pipe.Set(ctx, "assets:latest", data, rc.ttl)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to cache snapshot: %w", err)
	}

	rc.logger.WithFields(logrus.Fields{
		"snapshot_date": snapshotDate,
		"assets":        len(assets),
	}).Debug("Cached snapshot")

	return nil
}

// GetLatestSnapshot returns the latest cached ranked list, or nil on a
// cache miss.
func (rc *RedisClient) GetLatestSnapshot(ctx context.Context) ([]*models.Asset, error) {
	data, err := rc.client.Get(ctx, "assets:latest").Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest snapshot: %w", err)
	}

	var assets []*models.Asset
	if err := json.Unmarshal([]byte(data), &assets); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}

	return assets, nil
}
