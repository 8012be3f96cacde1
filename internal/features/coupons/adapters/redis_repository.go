package adapters

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cakeshop-dispatch/internal/features/coupons/domain"

	"github.com/redis/go-redis/v9"
)

const (
	couponKeyPrefix = "coupon:"
	couponIndexKey  = "coupons:index"
)

// incrementUsageScript is the atomic usage consumption. The quota predicate
// and the increment are one Lua evaluation; there is no window between the
// check and the write.
// Returns 1 on success, 0 when the quota is exhausted, -1 when the coupon is missing.
var incrementUsageScript = redis.NewScript(`
local raw = redis.call('GET', KEYS[1])
if not raw then
  return -1
end
local c = cjson.decode(raw)
local limit = tonumber(c.usageLimit) or 0
local used = tonumber(c.usedCount) or 0
if limit > 0 and used >= limit then
  return 0
end
c.usedCount = used + 1
redis.call('SET', KEYS[1], cjson.encode(c))
return 1
`)

// decrementUsageScript undoes a consumption, flooring at zero.
var decrementUsageScript = redis.NewScript(`
local raw = redis.call('GET', KEYS[1])
if not raw then
  return -1
end
local c = cjson.decode(raw)
local used = tonumber(c.usedCount) or 0
if used > 0 then
  c.usedCount = used - 1
  redis.call('SET', KEYS[1], cjson.encode(c))
end
return 1
`)

// RedisCouponRepository implements ports.CouponRepository on Redis.
// Coupons are JSON documents keyed by their uppercase code.
type RedisCouponRepository struct {
	client *redis.Client
}

// NewRedisCouponRepository creates a new RedisCouponRepository.
func NewRedisCouponRepository(client *redis.Client) *RedisCouponRepository {
	return &RedisCouponRepository{client: client}
}

func couponKey(code string) string {
	return couponKeyPrefix + domain.NormalizeCode(code)
}

// FindByCode retrieves a coupon by its redemption code.
func (r *RedisCouponRepository) FindByCode(ctx context.Context, code string) (*domain.Coupon, error) {
	raw, err := r.client.Get(ctx, couponKey(code)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrCouponNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get coupon %s: %w", code, err)
	}

	var coupon domain.Coupon
	if err := json.Unmarshal(raw, &coupon); err != nil {
		return nil, fmt.Errorf("failed to unmarshal coupon %s: %w", code, err)
	}
	return &coupon, nil
}

// Save persists a coupon keyed by its normalized code.
func (r *RedisCouponRepository) Save(ctx context.Context, coupon *domain.Coupon) error {
	coupon.Code = domain.NormalizeCode(coupon.Code)

	data, err := json.Marshal(coupon)
	if err != nil {
		return fmt.Errorf("failed to marshal coupon: %w", err)
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, couponKey(coupon.Code), data, 0)
	pipe.SAdd(ctx, couponIndexKey, coupon.Code)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save coupon %s: %w", coupon.Code, err)
	}
	return nil
}

// IncrementUsageIfUnderLimit atomically consumes one usage slot.
func (r *RedisCouponRepository) IncrementUsageIfUnderLimit(ctx context.Context, code string) (bool, error) {
	res, err := incrementUsageScript.Run(ctx, r.client, []string{couponKey(code)}).Int64()
	if err != nil {
		return false, fmt.Errorf("failed to increment coupon usage for %s: %w", code, err)
	}

	switch res {
	case 1:
		return true, nil
	case 0:
		return false, nil
	default:
		return false, domain.ErrCouponNotFound
	}
}

// DecrementUsage returns a previously consumed usage slot.
func (r *RedisCouponRepository) DecrementUsage(ctx context.Context, code string) error {
	res, err := decrementUsageScript.Run(ctx, r.client, []string{couponKey(code)}).Int64()
	if err != nil {
		return fmt.Errorf("failed to decrement coupon usage for %s: %w", code, err)
	}
	if res < 0 {
		return domain.ErrCouponNotFound
	}
	return nil
}

// ListRedeemable returns all coupons a buyer can currently redeem.
func (r *RedisCouponRepository) ListRedeemable(ctx context.Context, now time.Time) ([]domain.Coupon, error) {
	codes, err := r.client.SMembers(ctx, couponIndexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list coupon codes: %w", err)
	}
	if len(codes) == 0 {
		return []domain.Coupon{}, nil
	}

	keys := make([]string, len(codes))
	for i, code := range codes {
		keys[i] = couponKey(code)
	}

	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch coupons: %w", err)
	}

	coupons := make([]domain.Coupon, 0, len(values))
	for _, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		var coupon domain.Coupon
		if err := json.Unmarshal([]byte(raw), &coupon); err != nil {
			continue
		}
		if coupon.Redeemable(now) {
			coupons = append(coupons, coupon)
		}
	}
	return coupons, nil
}
