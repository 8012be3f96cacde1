package adapters

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"cakeshop-dispatch/internal/features/products/domain"

	"github.com/redis/go-redis/v9"
)

const productKeyPrefix = "product:"

// adjustStockScript changes a variant's stock by ARGV[2] (negative to take
// units). The stock predicate and the write are one Lua evaluation.
// Returns 1 on success, 0 when stock is insufficient, -1 when the product is
// missing, -2 when the variant is missing.
var adjustStockScript = redis.NewScript(`
local raw = redis.call('GET', KEYS[1])
if not raw then
  return -1
end
local p = cjson.decode(raw)
local delta = tonumber(ARGV[2])
for _, v in ipairs(p.variants) do
  if v.id == ARGV[1] then
    local stock = tonumber(v.stock) or 0
    if stock + delta < 0 then
      return 0
    end
    v.stock = stock + delta
    redis.call('SET', KEYS[1], cjson.encode(p))
    return 1
  end
end
return -2
`)

// RedisProductRepository implements ports.ProductRepository on Redis.
// Products are JSON documents keyed by product id.
type RedisProductRepository struct {
	client *redis.Client
}

// NewRedisProductRepository creates a new RedisProductRepository.
func NewRedisProductRepository(client *redis.Client) *RedisProductRepository {
	return &RedisProductRepository{client: client}
}

func productKey(productID string) string {
	return productKeyPrefix + productID
}

// FindByID retrieves a product by id.
func (r *RedisProductRepository) FindByID(ctx context.Context, productID string) (*domain.Product, error) {
	raw, err := r.client.Get(ctx, productKey(productID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrProductNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get product %s: %w", productID, err)
	}

	var product domain.Product
	if err := json.Unmarshal(raw, &product); err != nil {
		return nil, fmt.Errorf("failed to unmarshal product %s: %w", productID, err)
	}
	return &product, nil
}

// Save persists a product.
func (r *RedisProductRepository) Save(ctx context.Context, product *domain.Product) error {
	data, err := json.Marshal(product)
	if err != nil {
		return fmt.Errorf("failed to marshal product: %w", err)
	}
	if err := r.client.Set(ctx, productKey(product.ID), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to save product %s: %w", product.ID, err)
	}
	return nil
}

// CheckStock reports whether the variant currently has enough stock.
func (r *RedisProductRepository) CheckStock(ctx context.Context, productID, variantID string, quantity int64) (bool, error) {
	product, err := r.FindByID(ctx, productID)
	if err != nil {
		return false, err
	}

	variant := product.Variant(variantID)
	if variant == nil {
		return false, domain.ErrVariantNotFound
	}
	return variant.Stock >= quantity, nil
}

// DecrementStock atomically takes quantity units from the variant.
func (r *RedisProductRepository) DecrementStock(ctx context.Context, productID, variantID string, quantity int64) error {
	return r.adjustStock(ctx, productID, variantID, -quantity)
}

// IncrementStock returns quantity units to the variant.
func (r *RedisProductRepository) IncrementStock(ctx context.Context, productID, variantID string, quantity int64) error {
	return r.adjustStock(ctx, productID, variantID, quantity)
}

func (r *RedisProductRepository) adjustStock(ctx context.Context, productID, variantID string, delta int64) error {
	res, err := adjustStockScript.Run(ctx, r.client,
		[]string{productKey(productID)}, variantID, delta).Int64()
	if err != nil {
		return fmt.Errorf("failed to adjust stock for %s/%s: %w", productID, variantID, err)
	}

	switch res {
	case 1:
		return nil
	case 0:
		return domain.ErrInsufficientStock
	case -2:
		return domain.ErrVariantNotFound
	default:
		return domain.ErrProductNotFound
	}
}
