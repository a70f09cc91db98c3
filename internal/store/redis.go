package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"vehicle-sense/gateway/internal/config"
	"vehicle-sense/gateway/internal/domain"
)

// RedisStore caches the latest prediction per category and publishes every
// successful prediction for live consumers (dashboards subscribe to the
// pub/sub channels, the websocket feed is served in-process).
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(ctx context.Context, cfg *config.Config) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.RedisAddr,
		Password:     cfg.RedisPassword,
		DB:           cfg.RedisDB,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisStore{client: client}, nil
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}

func (r *RedisStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// PublishPrediction caches the event as the category's latest result and
// broadcasts it on the category channel. Raw is excluded; subscribers get
// the decision, not the full backend body.
func (r *RedisStore) PublishPrediction(ctx context.Context, rec *domain.AuditRecord) error {
	event, err := json.Marshal(domain.AuditRecord{
		ID:        rec.ID,
		Category:  rec.Category,
		Input:     rec.Input,
		Decision:  rec.Decision,
		CreatedAt: rec.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal prediction event: %w", err)
	}

	latestKey := fmt.Sprintf("prediction:%s:latest", rec.Category)
	channel := fmt.Sprintf("predictions:%s", rec.Category)

	pipe := r.client.Pipeline()
	pipe.Set(ctx, latestKey, event, 0)
	pipe.Publish(ctx, channel, event)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis pipeline failed: %w", err)
	}
	return nil
}

// LatestPrediction returns the cached latest event for a category, or nil
// when none has been recorded yet.
func (r *RedisStore) LatestPrediction(ctx context.Context, category domain.Category) (json.RawMessage, error) {
	key := fmt.Sprintf("prediction:%s:latest", category)
	val, err := r.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get latest failed: %w", err)
	}
	return json.RawMessage(val), nil
}
