package adapters

import (
	"context"
	"sync"
	"testing"
	"time"

	"cakeshop-dispatch/internal/features/orders/domain"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newOrderRepo(t *testing.T) *RedisOrderRepository {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisOrderRepository(client, "ORD")
}

func seedOrder(t *testing.T, repo *RedisOrderRepository, status domain.Status) *domain.Order {
	t.Helper()
	ctx := context.Background()

	id, err := repo.NextOrderID(ctx)
	require.NoError(t, err)

	order := &domain.Order{
		OrderID:  id,
		Buyer:    "buyer-1",
		Location: "Indiranagar",
		Items: []domain.OrderItem{
			{ProductID: "prod-1", VariantID: "var-1", Name: "Black Forest", Price: 450, Quantity: 1},
		},
		Subtotal:      450,
		Total:         450,
		FinalAmount:   450,
		PaymentMethod: domain.PaymentMethodCOD,
		PaymentStatus: domain.PaymentStatusPending,
		Status:        status,
	}
	require.NoError(t, repo.Create(ctx, order))
	return order
}

func TestRedisOrderRepository_NextOrderID(t *testing.T) {
	repo := newOrderRepo(t)
	ctx := context.Background()

	first, err := repo.NextOrderID(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ORD00001", first)

	second, err := repo.NextOrderID(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ORD00002", second)
}

func TestRedisOrderRepository_NextOrderID_GrowsPastPadding(t *testing.T) {
	repo := newOrderRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.client.Set(ctx, orderCounterKey, 99999, 0).Err())

	id, err := repo.NextOrderID(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ORD100000", id)
}

func TestRedisOrderRepository_CreateAndFind(t *testing.T) {
	repo := newOrderRepo(t)
	ctx := context.Background()

	order := seedOrder(t, repo, domain.StatusPending)

	found, err := repo.FindByID(ctx, order.OrderID)
	require.NoError(t, err)
	assert.Equal(t, order.OrderID, found.OrderID)
	assert.Equal(t, "buyer-1", found.Buyer)
	assert.Equal(t, domain.StatusPending, found.Status)
	assert.Len(t, found.Items, 1)
	assert.False(t, found.CreatedAt.IsZero())
}

func TestRedisOrderRepository_Create_DuplicateID(t *testing.T) {
	repo := newOrderRepo(t)
	ctx := context.Background()

	order := seedOrder(t, repo, domain.StatusPending)

	dup := &domain.Order{OrderID: order.OrderID, Buyer: "buyer-2", Location: "HSR"}
	assert.Error(t, repo.Create(ctx, dup))
}

func TestRedisOrderRepository_FindByID_NotFound(t *testing.T) {
	repo := newOrderRepo(t)

	_, err := repo.FindByID(context.Background(), "ORD99999")
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)
}

func TestRedisOrderRepository_Listings(t *testing.T) {
	repo := newOrderRepo(t)
	ctx := context.Background()

	first := seedOrder(t, repo, domain.StatusPending)
	second := seedOrder(t, repo, domain.StatusPending)

	third := seedOrder(t, repo, domain.StatusPending)
	_, err := repo.Claim(ctx, third.OrderID, "pilot-9", time.Minute)
	require.NoError(t, err)

	t.Run("List", func(t *testing.T) {
		orders, err := repo.List(ctx)
		require.NoError(t, err)
		assert.Len(t, orders, 3)
	})

	t.Run("ListByBuyer", func(t *testing.T) {
		orders, err := repo.ListByBuyer(ctx, "buyer-1")
		require.NoError(t, err)
		assert.Len(t, orders, 3)

		orders, err = repo.ListByBuyer(ctx, "nobody")
		require.NoError(t, err)
		assert.Empty(t, orders)
	})

	t.Run("ListByCourier", func(t *testing.T) {
		orders, err := repo.ListByCourier(ctx, "pilot-9")
		require.NoError(t, err)
		require.Len(t, orders, 1)
		assert.Equal(t, third.OrderID, orders[0].OrderID)
	})

	t.Run("ListUnclaimed", func(t *testing.T) {
		orders, err := repo.ListUnclaimed(ctx)
		require.NoError(t, err)
		require.Len(t, orders, 2)
		for _, o := range orders {
			assert.NotEqual(t, third.OrderID, o.OrderID)
		}
	})

	t.Run("ListUnread", func(t *testing.T) {
		_, err := repo.MarkRead(ctx, first.OrderID)
		require.NoError(t, err)

		orders, err := repo.ListUnread(ctx)
		require.NoError(t, err)
		for _, o := range orders {
			assert.NotEqual(t, first.OrderID, o.OrderID)
		}
		assert.Len(t, orders, 2)
		_ = second
	})
}

func TestRedisOrderRepository_MarkRead(t *testing.T) {
	repo := newOrderRepo(t)
	ctx := context.Background()

	order := seedOrder(t, repo, domain.StatusPending)

	updated, err := repo.MarkRead(ctx, order.OrderID)
	require.NoError(t, err)
	assert.True(t, updated.NotificationRead)

	_, err = repo.MarkRead(ctx, "ORD99999")
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)
}

func TestRedisOrderRepository_Claim(t *testing.T) {
	repo := newOrderRepo(t)
	ctx := context.Background()

	order := seedOrder(t, repo, domain.StatusPending)

	claimed, err := repo.Claim(ctx, order.OrderID, "pilot-1", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusClaimed, claimed.Status)
	assert.Equal(t, "pilot-1", claimed.ClaimedBy)
	assert.False(t, claimed.ClaimedAt.IsZero())
	assert.True(t, claimed.ClaimExpiresAt.After(claimed.ClaimedAt))

	// live lease blocks everyone else
	_, err = repo.Claim(ctx, order.OrderID, "pilot-2", time.Minute)
	assert.ErrorIs(t, err, domain.ErrAlreadyClaimed)

	// including the holder itself
	_, err = repo.Claim(ctx, order.OrderID, "pilot-1", time.Minute)
	assert.ErrorIs(t, err, domain.ErrAlreadyClaimed)

	_, err = repo.Claim(ctx, "ORD99999", "pilot-1", time.Minute)
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)
}

func TestRedisOrderRepository_Claim_NotPending(t *testing.T) {
	repo := newOrderRepo(t)
	ctx := context.Background()

	order := seedOrder(t, repo, domain.StatusShipped)

	_, err := repo.Claim(ctx, order.OrderID, "pilot-1", time.Minute)
	assert.ErrorIs(t, err, domain.ErrAlreadyClaimed)
}

// TestRedisOrderRepository_Claim_Concurrent verifies the exclusivity guarantee:
// among N pilots racing for the same order, exactly one claim succeeds.
func TestRedisOrderRepository_Claim_Concurrent(t *testing.T) {
	repo := newOrderRepo(t)
	ctx := context.Background()

	order := seedOrder(t, repo, domain.StatusPending)

	const pilots = 16
	var wg sync.WaitGroup
	errs := make(chan error, pilots)

	for i := 0; i < pilots; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, err := repo.Claim(ctx, order.OrderID, string(rune('A'+n)), time.Minute)
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)

	won := 0
	for err := range errs {
		if err == nil {
			won++
		} else {
			assert.ErrorIs(t, err, domain.ErrAlreadyClaimed)
		}
	}
	assert.Equal(t, 1, won)
}

// TestRedisOrderRepository_Claim_ExpiredLease verifies that a lapsed lease is
// reclaimable by another pilot without any background sweeper.
func TestRedisOrderRepository_Claim_ExpiredLease(t *testing.T) {
	repo := newOrderRepo(t)
	ctx := context.Background()

	order := seedOrder(t, repo, domain.StatusPending)

	_, err := repo.Claim(ctx, order.OrderID, "pilot-1", 2*time.Minute)
	require.NoError(t, err)

	// one second before expiry the lease still holds
	repo.nowFunc = func() time.Time { return time.Now().Add(2*time.Minute - time.Second) }
	_, err = repo.Claim(ctx, order.OrderID, "pilot-2", time.Minute)
	assert.ErrorIs(t, err, domain.ErrAlreadyClaimed)

	// past expiry the order is claimable again
	repo.nowFunc = func() time.Time { return time.Now().Add(3 * time.Minute) }
	claimed, err := repo.Claim(ctx, order.OrderID, "pilot-2", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, "pilot-2", claimed.ClaimedBy)
	assert.Equal(t, domain.StatusClaimed, claimed.Status)

	// the previous holder lost the claim along with the lease
	_, err = repo.Release(ctx, order.OrderID, "pilot-1")
	assert.ErrorIs(t, err, domain.ErrNotHolder)
}

func TestRedisOrderRepository_Release(t *testing.T) {
	repo := newOrderRepo(t)
	ctx := context.Background()

	order := seedOrder(t, repo, domain.StatusPending)

	_, err := repo.Claim(ctx, order.OrderID, "pilot-1", time.Minute)
	require.NoError(t, err)

	t.Run("NotHolder", func(t *testing.T) {
		_, err := repo.Release(ctx, order.OrderID, "pilot-2")
		assert.ErrorIs(t, err, domain.ErrNotHolder)

		// the original claim survives
		found, err := repo.FindByID(ctx, order.OrderID)
		require.NoError(t, err)
		assert.Equal(t, "pilot-1", found.ClaimedBy)
	})

	t.Run("Holder", func(t *testing.T) {
		released, err := repo.Release(ctx, order.OrderID, "pilot-1")
		require.NoError(t, err)
		assert.Equal(t, domain.StatusPending, released.Status)
		assert.Empty(t, released.ClaimedBy)
		assert.True(t, released.ClaimedAt.IsZero())
		assert.True(t, released.ClaimExpiresAt.IsZero())
	})

	t.Run("Missing", func(t *testing.T) {
		_, err := repo.Release(ctx, "ORD99999", "pilot-1")
		assert.ErrorIs(t, err, domain.ErrOrderNotFound)
	})
}

func TestRedisOrderRepository_Transition(t *testing.T) {
	repo := newOrderRepo(t)
	ctx := context.Background()

	t.Run("Legal", func(t *testing.T) {
		order := seedOrder(t, repo, domain.StatusPending)
		_, err := repo.Claim(ctx, order.OrderID, "pilot-1", time.Minute)
		require.NoError(t, err)

		updated, err := repo.Transition(ctx, order.OrderID, domain.StatusProcessing,
			domain.TransitionSources(domain.StatusProcessing), false)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusProcessing, updated.Status)
	})

	t.Run("IllegalSource", func(t *testing.T) {
		order := seedOrder(t, repo, domain.StatusPending)

		_, err := repo.Transition(ctx, order.OrderID, domain.StatusDelivered,
			domain.TransitionSources(domain.StatusDelivered), true)
		assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	})

	t.Run("ClaimGuard", func(t *testing.T) {
		order := seedOrder(t, repo, domain.StatusProcessing)

		// Processing -> reached_pickup is legal, but nobody holds the order
		_, err := repo.Transition(ctx, order.OrderID, domain.StatusReachedPickup,
			domain.TransitionSources(domain.StatusReachedPickup), true)
		assert.ErrorIs(t, err, domain.ErrOrderNotClaimed)
	})

	t.Run("ClaimGuardPickedUp", func(t *testing.T) {
		order := seedOrder(t, repo, domain.StatusReachedPickup)

		_, err := repo.Transition(ctx, order.OrderID, domain.StatusPickedUp,
			domain.TransitionSources(domain.StatusPickedUp), true)
		assert.ErrorIs(t, err, domain.ErrOrderNotClaimed)
	})

	t.Run("DeliveredTimestamp", func(t *testing.T) {
		order := seedOrder(t, repo, domain.StatusPending)
		_, err := repo.Claim(ctx, order.OrderID, "pilot-1", time.Minute)
		require.NoError(t, err)

		updated, err := repo.Transition(ctx, order.OrderID, domain.StatusShipped,
			[]domain.Status{domain.StatusClaimed}, true)
		require.NoError(t, err)
		require.Equal(t, domain.StatusShipped, updated.Status)

		updated, err = repo.Transition(ctx, order.OrderID, domain.StatusDelivered,
			domain.TransitionSources(domain.StatusDelivered), true)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusDelivered, updated.Status)
		assert.False(t, updated.DeliveredAt.IsZero())
	})

	t.Run("CancelledTimestamp", func(t *testing.T) {
		order := seedOrder(t, repo, domain.StatusPending)

		updated, err := repo.Transition(ctx, order.OrderID, domain.StatusCancelled,
			domain.TransitionSources(domain.StatusCancelled), false)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusCancelled, updated.Status)
		assert.False(t, updated.CancelledAt.IsZero())
	})

	t.Run("Missing", func(t *testing.T) {
		_, err := repo.Transition(ctx, "ORD99999", domain.StatusCancelled,
			domain.TransitionSources(domain.StatusCancelled), false)
		assert.ErrorIs(t, err, domain.ErrOrderNotFound)
	})

	t.Run("EmptySources", func(t *testing.T) {
		order := seedOrder(t, repo, domain.StatusPending)

		_, err := repo.Transition(ctx, order.OrderID, domain.StatusPending, nil, false)
		assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	})
}

func TestRedisOrderRepository_Update(t *testing.T) {
	repo := newOrderRepo(t)
	ctx := context.Background()

	order := seedOrder(t, repo, domain.StatusPending)
	order.DeliveryInstructions = "leave at the gate"
	order.ShippingFee = 49
	order.FinalAmount = 499

	require.NoError(t, repo.Update(ctx, order))

	found, err := repo.FindByID(ctx, order.OrderID)
	require.NoError(t, err)
	assert.Equal(t, "leave at the gate", found.DeliveryInstructions)
	assert.Equal(t, 499.0, found.FinalAmount)

	missing := &domain.Order{OrderID: "ORD99999"}
	assert.ErrorIs(t, repo.Update(ctx, missing), domain.ErrOrderNotFound)
}

func TestRedisOrderRepository_Delete(t *testing.T) {
	repo := newOrderRepo(t)
	ctx := context.Background()

	order := seedOrder(t, repo, domain.StatusPending)

	require.NoError(t, repo.Delete(ctx, order.OrderID))

	_, err := repo.FindByID(ctx, order.OrderID)
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)

	orders, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, orders)

	assert.ErrorIs(t, repo.Delete(ctx, order.OrderID), domain.ErrOrderNotFound)
}
