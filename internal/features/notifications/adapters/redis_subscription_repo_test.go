package adapters

import (
	"context"
	"testing"

	"cakeshop-dispatch/internal/features/notifications/domain"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSubRepo(t *testing.T) *RedisSubscriptionRepository {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisSubscriptionRepository(client)
}

func testSubscription(endpoint, user string) *domain.PushSubscription {
	return &domain.PushSubscription{
		Endpoint: endpoint,
		Keys: domain.SubscriptionKeys{
			P256dh: "BNcRd...",
			Auth:   "tBHI...",
		},
		User: user,
	}
}

func TestRedisSubscriptionRepository_SaveAndFind(t *testing.T) {
	repo := newSubRepo(t)
	ctx := context.Background()

	sub := testSubscription("https://push.example/ep-1", "buyer-1")
	require.NoError(t, repo.Save(ctx, sub))
	assert.NotEmpty(t, sub.ID)
	assert.False(t, sub.CreatedAt.IsZero())

	subs, err := repo.FindByUser(ctx, "buyer-1")
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, sub.Endpoint, subs[0].Endpoint)

	subs, err = repo.FindByUser(ctx, "someone-else")
	require.NoError(t, err)
	assert.Empty(t, subs)
}

func TestRedisSubscriptionRepository_Save_Invalid(t *testing.T) {
	repo := newSubRepo(t)

	sub := testSubscription("", "buyer-1")
	assert.ErrorIs(t, repo.Save(context.Background(), sub), domain.ErrInvalidSubscription)

	sub = testSubscription("https://push.example/ep-1", "buyer-1")
	sub.Keys.Auth = ""
	assert.ErrorIs(t, repo.Save(context.Background(), sub), domain.ErrInvalidSubscription)
}

// TestRedisSubscriptionRepository_EndpointReplaced verifies that registering
// the same endpoint twice keeps a single subscription.
func TestRedisSubscriptionRepository_EndpointReplaced(t *testing.T) {
	repo := newSubRepo(t)
	ctx := context.Background()

	first := testSubscription("https://push.example/ep-1", "buyer-1")
	require.NoError(t, repo.Save(ctx, first))

	second := testSubscription("https://push.example/ep-1", "buyer-1")
	require.NoError(t, repo.Save(ctx, second))
	assert.NotEqual(t, first.ID, second.ID)

	subs, err := repo.FindByUser(ctx, "buyer-1")
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, second.ID, subs[0].ID)
}

func TestRedisSubscriptionRepository_Delete(t *testing.T) {
	repo := newSubRepo(t)
	ctx := context.Background()

	sub := testSubscription("https://push.example/ep-1", "buyer-1")
	require.NoError(t, repo.Save(ctx, sub))

	require.NoError(t, repo.Delete(ctx, sub.ID))

	subs, err := repo.FindByUser(ctx, "buyer-1")
	require.NoError(t, err)
	assert.Empty(t, subs)

	assert.ErrorIs(t, repo.Delete(ctx, sub.ID), domain.ErrSubscriptionNotFound)
}
