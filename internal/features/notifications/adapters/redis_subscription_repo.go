package adapters

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cakeshop-dispatch/internal/features/notifications/domain"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	subKeyPrefix     = "push:sub:"
	subEndpointIndex = "push:endpoints"
	subUserPrefix    = "push:user:"
)

// RedisSubscriptionRepository stores push subscriptions in Redis. Endpoints
// are unique: re-registering an endpoint replaces the old record, so a browser
// refreshing its subscription never produces duplicate deliveries.
type RedisSubscriptionRepository struct {
	client *redis.Client
}

// NewRedisSubscriptionRepository creates a new RedisSubscriptionRepository.
func NewRedisSubscriptionRepository(client *redis.Client) *RedisSubscriptionRepository {
	return &RedisSubscriptionRepository{
		client: client,
	}
}

func subKey(id string) string {
	return subKeyPrefix + id
}

func subUserKey(user string) string {
	return subUserPrefix + user
}

// Save registers a subscription, replacing any existing registration of the
// same endpoint.
func (r *RedisSubscriptionRepository) Save(ctx context.Context, sub *domain.PushSubscription) error {
	if err := sub.Validate(); err != nil {
		return err
	}

	existingID, err := r.client.HGet(ctx, subEndpointIndex, sub.Endpoint).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("failed to look up endpoint: %w", err)
	}
	if existingID != "" {
		if err := r.Delete(ctx, existingID); err != nil && !errors.Is(err, domain.ErrSubscriptionNotFound) {
			return err
		}
	}

	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = time.Now()
	}

	data, err := json.Marshal(sub)
	if err != nil {
		return fmt.Errorf("failed to marshal subscription: %w", err)
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, subKey(sub.ID), data, 0)
	pipe.HSet(ctx, subEndpointIndex, sub.Endpoint, sub.ID)
	pipe.SAdd(ctx, subUserKey(sub.User), sub.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save subscription: %w", err)
	}
	return nil
}

// FindByUser returns every subscription registered for the user.
func (r *RedisSubscriptionRepository) FindByUser(ctx context.Context, user string) ([]domain.PushSubscription, error) {
	ids, err := r.client.SMembers(ctx, subUserKey(user)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list subscriptions for %s: %w", user, err)
	}

	subs := make([]domain.PushSubscription, 0, len(ids))
	for _, id := range ids {
		raw, err := r.client.Get(ctx, subKey(id)).Bytes()
		if errors.Is(err, redis.Nil) {
			// stale set member, drop it
			r.client.SRem(ctx, subUserKey(user), id)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to get subscription %s: %w", id, err)
		}

		var sub domain.PushSubscription
		if err := json.Unmarshal(raw, &sub); err != nil {
			continue
		}
		subs = append(subs, sub)
	}
	return subs, nil
}

// Delete removes a subscription by id.
func (r *RedisSubscriptionRepository) Delete(ctx context.Context, id string) error {
	raw, err := r.client.Get(ctx, subKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.ErrSubscriptionNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to get subscription %s: %w", id, err)
	}

	var sub domain.PushSubscription
	if err := json.Unmarshal(raw, &sub); err != nil {
		return fmt.Errorf("failed to unmarshal subscription %s: %w", id, err)
	}

	pipe := r.client.TxPipeline()
	pipe.Del(ctx, subKey(id))
	pipe.HDel(ctx, subEndpointIndex, sub.Endpoint)
	pipe.SRem(ctx, subUserKey(sub.User), id)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete subscription %s: %w", id, err)
	}
	return nil
}
