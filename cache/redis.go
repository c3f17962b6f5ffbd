package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"parcelpoint.app/cloud/models"
)

// RedisStore is the production SnapshotStore. Values are JSON with no
// TTL: the webhook handler and post-mutation syncs keep entries fresh,
// and a missing entry just reads as "no subscription".
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(ctx context.Context, redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisStore{client: client}, nil
}

func (r *RedisStore) GetSnapshot(ctx context.Context, billingCustomerID string) (*models.SubscriptionSnapshot, error) {
	payload, err := r.client.Get(ctx, customerKey(billingCustomerID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}
	return decodeSnapshot(payload)
}

func (r *RedisStore) SetSnapshot(ctx context.Context, billingCustomerID string, snapshot *models.SubscriptionSnapshot) error {
	payload, err := encodeSnapshot(snapshot)
	if err != nil {
		return err
	}
	if err := r.client.Set(ctx, customerKey(billingCustomerID), payload, 0).Err(); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	return nil
}

func (r *RedisStore) GetUserCustomerID(ctx context.Context, userID string) (string, error) {
	id, err := r.client.Get(ctx, userKey(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read user mapping: %w", err)
	}
	return id, nil
}

func (r *RedisStore) SetUserCustomerID(ctx context.Context, userID, billingCustomerID string) error {
	if err := r.client.Set(ctx, userKey(userID), billingCustomerID, 0).Err(); err != nil {
		return fmt.Errorf("failed to write user mapping: %w", err)
	}
	return nil
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}

func encodeSnapshot(snapshot *models.SubscriptionSnapshot) ([]byte, error) {
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return payload, nil
}

func decodeSnapshot(payload []byte) (*models.SubscriptionSnapshot, error) {
	var snapshot models.SubscriptionSnapshot
	if err := json.Unmarshal(payload, &snapshot); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return &snapshot, nil
}
