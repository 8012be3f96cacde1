package adapters

import (
	"context"
	"sync"
	"testing"

	"cakeshop-dispatch/internal/features/products/domain"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepo(t *testing.T) *RedisProductRepository {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisProductRepository(client)
}

func seedProduct(t *testing.T, repo *RedisProductRepository, stock int64) *domain.Product {
	t.Helper()
	product := &domain.Product{
		ID:   "prod-1",
		Name: "Chocolate Truffle",
		Variants: []domain.Variant{
			{ID: "var-500g", Weight: 500, Unit: "g", Price: 450, Stock: stock},
			{ID: "var-1kg", Weight: 1, Unit: "kg", Price: 850, Stock: 2},
		},
	}
	require.NoError(t, repo.Save(context.Background(), product))
	return product
}

func TestRedisProductRepository_FindByID(t *testing.T) {
	repo := newTestRepo(t)
	seedProduct(t, repo, 5)

	found, err := repo.FindByID(context.Background(), "prod-1")
	require.NoError(t, err)
	assert.Equal(t, "Chocolate Truffle", found.Name)
	require.NotNil(t, found.Variant("var-500g"))
	assert.Equal(t, int64(5), found.Variant("var-500g").Stock)

	_, err = repo.FindByID(context.Background(), "ghost")
	assert.ErrorIs(t, err, domain.ErrProductNotFound)
}

func TestRedisProductRepository_CheckStock(t *testing.T) {
	repo := newTestRepo(t)
	seedProduct(t, repo, 3)
	ctx := context.Background()

	ok, err := repo.CheckStock(ctx, "prod-1", "var-500g", 3)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.CheckStock(ctx, "prod-1", "var-500g", 4)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = repo.CheckStock(ctx, "prod-1", "ghost", 1)
	assert.ErrorIs(t, err, domain.ErrVariantNotFound)
}

func TestRedisProductRepository_DecrementStock(t *testing.T) {
	repo := newTestRepo(t)
	seedProduct(t, repo, 3)
	ctx := context.Background()

	require.NoError(t, repo.DecrementStock(ctx, "prod-1", "var-500g", 2))

	found, err := repo.FindByID(ctx, "prod-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), found.Variant("var-500g").Stock)
	// other variant untouched
	assert.Equal(t, int64(2), found.Variant("var-1kg").Stock)

	err = repo.DecrementStock(ctx, "prod-1", "var-500g", 2)
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)

	err = repo.DecrementStock(ctx, "prod-1", "ghost", 1)
	assert.ErrorIs(t, err, domain.ErrVariantNotFound)

	err = repo.DecrementStock(ctx, "ghost", "var-500g", 1)
	assert.ErrorIs(t, err, domain.ErrProductNotFound)
}

func TestRedisProductRepository_IncrementStock(t *testing.T) {
	repo := newTestRepo(t)
	seedProduct(t, repo, 1)
	ctx := context.Background()

	require.NoError(t, repo.IncrementStock(ctx, "prod-1", "var-500g", 4))

	found, err := repo.FindByID(ctx, "prod-1")
	require.NoError(t, err)
	assert.Equal(t, int64(5), found.Variant("var-500g").Stock)
}

// TestRedisProductRepository_DecrementStock_Race verifies that concurrent
// buyers racing for the last unit never drive stock negative.
func TestRedisProductRepository_DecrementStock_Race(t *testing.T) {
	repo := newTestRepo(t)
	seedProduct(t, repo, 1)
	ctx := context.Background()

	const attempts = 8
	var wg sync.WaitGroup
	errs := make(chan error, attempts)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- repo.DecrementStock(ctx, "prod-1", "var-500g", 1)
		}()
	}
	wg.Wait()
	close(errs)

	succeeded := 0
	for err := range errs {
		if err == nil {
			succeeded++
		} else {
			assert.ErrorIs(t, err, domain.ErrInsufficientStock)
		}
	}
	assert.Equal(t, 1, succeeded)

	found, err := repo.FindByID(ctx, "prod-1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), found.Variant("var-500g").Stock)
}
