package adapters

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"cakeshop-dispatch/internal/core/logger"
	"cakeshop-dispatch/internal/features/orders/domain"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	orderKeyPrefix  = "order:"
	orderIndexKey   = "orders:index"
	orderCounterKey = "order:seq"
	orderIDPadding  = 5
)

// claimScript grants a time-bound exclusive claim. The availability predicate
// and the claim write are one Lua evaluation, so among N concurrent claims on
// the same order exactly one can observe the order as available.
//
// An order is claimable when it is pending, or when it is claimed but the
// lease has lapsed (lazy expiry: nothing sweeps expired leases; they are
// reclaimed here on the next attempt).
//
// ARGV: courierID, nowMs, leaseMs.
// Returns the updated JSON, 0 when unavailable, -1 when missing.
var claimScript = redis.NewScript(`
local raw = redis.call('GET', KEYS[1])
if not raw then
  return -1
end
local o = cjson.decode(raw)
local now = tonumber(ARGV[2])
local expires = tonumber(o.claimExpiresAt) or 0
local lapsed = expires > 0 and expires <= now
local holder = o.claimedBy
local claimable = false
if o.status == 'pending' then
  claimable = (holder == nil or holder == '' or lapsed)
elseif o.status == 'claimed' then
  claimable = lapsed
end
if not claimable then
  return 0
end
o.status = 'claimed'
o.claimedBy = ARGV[1]
o.claimedAt = now
o.claimExpiresAt = now + tonumber(ARGV[3])
o.updatedAt = now
local out = cjson.encode(o)
redis.call('SET', KEYS[1], out)
return out
`)

// releaseScript resets the claim if the caller holds it.
// ARGV: courierID, nowMs.
// Returns the updated JSON, 0 when the caller is not the holder, -1 when missing.
var releaseScript = redis.NewScript(`
local raw = redis.call('GET', KEYS[1])
if not raw then
  return -1
end
local o = cjson.decode(raw)
if o.claimedBy == nil or o.claimedBy ~= ARGV[1] then
  return 0
end
o.claimedBy = nil
o.claimedAt = nil
o.claimExpiresAt = nil
o.status = 'pending'
o.updatedAt = tonumber(ARGV[2])
local out = cjson.encode(o)
redis.call('SET', KEYS[1], out)
return out
`)

// transitionScript is the conditional status update: the current status must
// be one of the comma-separated source states, and when the claim guard is on
// the order must have a holder. Entering delivered/cancelled records the
// lifecycle timestamp.
// ARGV: target, nowMs, sourcesCSV, requireClaim ("1"/"0").
// Returns the updated JSON, 0 on an illegal move, -2 when the claim guard
// fails, -1 when missing.
var transitionScript = redis.NewScript(`
local raw = redis.call('GET', KEYS[1])
if not raw then
  return -1
end
local o = cjson.decode(raw)
local allowed = false
for from in string.gmatch(ARGV[3], '([^,]+)') do
  if o.status == from then
    allowed = true
  end
end
if not allowed then
  return 0
end
if ARGV[4] == '1' and (o.claimedBy == nil or o.claimedBy == '') then
  return -2
end
local now = tonumber(ARGV[2])
o.status = ARGV[1]
if ARGV[1] == 'delivered' then
  o.deliveredAt = now
end
if ARGV[1] == 'cancelled' then
  o.cancelledAt = now
end
o.updatedAt = now
local out = cjson.encode(o)
redis.call('SET', KEYS[1], out)
return out
`)

// markReadScript flips the admin notification flag without touching any other
// field, so it cannot clobber a concurrent claim.
var markReadScript = redis.NewScript(`
local raw = redis.call('GET', KEYS[1])
if not raw then
  return -1
end
local o = cjson.decode(raw)
o.notificationRead = true
o.updatedAt = tonumber(ARGV[1])
local out = cjson.encode(o)
redis.call('SET', KEYS[1], out)
return out
`)

// RedisOrderRepository implements ports.OrderRepository on Redis.
// Orders are JSON documents keyed by their human-readable id, indexed by a
// creation-time zset for listings.
type RedisOrderRepository struct {
	client   *redis.Client
	idPrefix string
	nowFunc  func() time.Time
}

// NewRedisOrderRepository creates a new RedisOrderRepository.
func NewRedisOrderRepository(client *redis.Client, idPrefix string) *RedisOrderRepository {
	return &RedisOrderRepository{
		client:   client,
		idPrefix: idPrefix,
		nowFunc:  time.Now,
	}
}

func orderKey(orderID string) string {
	return orderKeyPrefix + orderID
}

// NextOrderID issues the next sequential identifier via an atomic
// increment-and-fetch on a single shared counter key, so it stays correct
// across service instances.
func (r *RedisOrderRepository) NextOrderID(ctx context.Context) (string, error) {
	seq, err := r.client.Incr(ctx, orderCounterKey).Result()
	if err != nil {
		// Degraded mode: a timestamp-derived id can collide under concurrent
		// fallback use and must never be treated as a uniqueness guarantee.
		fallback := fmt.Sprintf("%s%d", r.idPrefix, r.nowFunc().UnixMilli())
		logger.Get().Warn("Order counter unavailable, using degraded timestamp id",
			zap.String("fallback_id", fallback),
			zap.Error(err),
		)
		return fallback, nil
	}
	return fmt.Sprintf("%s%0*d", r.idPrefix, orderIDPadding, seq), nil
}

// Create persists a new order.
func (r *RedisOrderRepository) Create(ctx context.Context, order *domain.Order) error {
	now := r.nowFunc()
	if order.CreatedAt.IsZero() {
		order.CreatedAt = now
	}
	order.UpdatedAt = now

	data, err := json.Marshal(toRecord(order))
	if err != nil {
		return fmt.Errorf("failed to marshal order: %w", err)
	}

	set, err := r.client.SetNX(ctx, orderKey(order.OrderID), data, 0).Result()
	if err != nil {
		return fmt.Errorf("failed to create order %s: %w", order.OrderID, err)
	}
	if !set {
		return fmt.Errorf("order %s already exists", order.OrderID)
	}

	if err := r.client.ZAdd(ctx, orderIndexKey, redis.Z{
		Score:  float64(order.CreatedAt.UnixMilli()),
		Member: order.OrderID,
	}).Err(); err != nil {
		return fmt.Errorf("failed to index order %s: %w", order.OrderID, err)
	}
	return nil
}

// FindByID retrieves an order by id.
func (r *RedisOrderRepository) FindByID(ctx context.Context, orderID string) (*domain.Order, error) {
	raw, err := r.client.Get(ctx, orderKey(orderID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get order %s: %w", orderID, err)
	}
	return decodeOrder(raw)
}

// List returns all orders, newest first.
func (r *RedisOrderRepository) List(ctx context.Context) ([]domain.Order, error) {
	return r.listFiltered(ctx, func(o *domain.Order) bool { return true })
}

// ListByBuyer returns a buyer's orders, newest first.
func (r *RedisOrderRepository) ListByBuyer(ctx context.Context, buyerID string) ([]domain.Order, error) {
	return r.listFiltered(ctx, func(o *domain.Order) bool { return o.Buyer == buyerID })
}

// ListByCourier returns the orders a pilot currently holds, newest first.
func (r *RedisOrderRepository) ListByCourier(ctx context.Context, courierID string) ([]domain.Order, error) {
	return r.listFiltered(ctx, func(o *domain.Order) bool { return o.ClaimedBy == courierID })
}

// ListUnclaimed returns pending orders with no live claim, newest first.
func (r *RedisOrderRepository) ListUnclaimed(ctx context.Context) ([]domain.Order, error) {
	now := r.nowFunc()
	return r.listFiltered(ctx, func(o *domain.Order) bool {
		return o.Status == domain.StatusPending && !o.ClaimActive(now)
	})
}

// ListUnread returns orders whose admin notification is unread.
func (r *RedisOrderRepository) ListUnread(ctx context.Context) ([]domain.Order, error) {
	return r.listFiltered(ctx, func(o *domain.Order) bool { return !o.NotificationRead })
}

func (r *RedisOrderRepository) listFiltered(ctx context.Context, keep func(*domain.Order) bool) ([]domain.Order, error) {
	ids, err := r.client.ZRevRange(ctx, orderIndexKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list order ids: %w", err)
	}
	if len(ids) == 0 {
		return []domain.Order{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = orderKey(id)
	}

	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch orders: %w", err)
	}

	orders := make([]domain.Order, 0, len(values))
	for _, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		order, err := decodeOrder([]byte(raw))
		if err != nil {
			continue
		}
		if keep(order) {
			orders = append(orders, *order)
		}
	}
	return orders, nil
}

// MarkRead flags the admin notification as read.
func (r *RedisOrderRepository) MarkRead(ctx context.Context, orderID string) (*domain.Order, error) {
	res, err := markReadScript.Run(ctx, r.client,
		[]string{orderKey(orderID)}, r.nowFunc().UnixMilli()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to mark order %s read: %w", orderID, err)
	}
	return r.scriptResult(res, orderID, nil, nil)
}

// Update overwrites the stored order document (admin correction path).
// Claim state is carried over from the caller's copy; concurrent claim
// changes can be lost, which matches the authority of the admin edit.
func (r *RedisOrderRepository) Update(ctx context.Context, order *domain.Order) error {
	order.UpdatedAt = r.nowFunc()

	data, err := json.Marshal(toRecord(order))
	if err != nil {
		return fmt.Errorf("failed to marshal order: %w", err)
	}

	set, err := r.client.SetXX(ctx, orderKey(order.OrderID), data, 0).Result()
	if err != nil {
		return fmt.Errorf("failed to update order %s: %w", order.OrderID, err)
	}
	if !set {
		return domain.ErrOrderNotFound
	}
	return nil
}

// Delete removes an order and its index entry.
func (r *RedisOrderRepository) Delete(ctx context.Context, orderID string) error {
	removed, err := r.client.Del(ctx, orderKey(orderID)).Result()
	if err != nil {
		return fmt.Errorf("failed to delete order %s: %w", orderID, err)
	}
	if removed == 0 {
		return domain.ErrOrderNotFound
	}
	if err := r.client.ZRem(ctx, orderIndexKey, orderID).Err(); err != nil {
		return fmt.Errorf("failed to unindex order %s: %w", orderID, err)
	}
	return nil
}

// Claim grants a time-bound exclusive claim lease.
func (r *RedisOrderRepository) Claim(ctx context.Context, orderID, courierID string, lease time.Duration) (*domain.Order, error) {
	res, err := claimScript.Run(ctx, r.client, []string{orderKey(orderID)},
		courierID, r.nowFunc().UnixMilli(), lease.Milliseconds()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to claim order %s: %w", orderID, err)
	}
	return r.scriptResult(res, orderID, domain.ErrAlreadyClaimed, nil)
}

// Release resets the claim if courierID holds it.
func (r *RedisOrderRepository) Release(ctx context.Context, orderID, courierID string) (*domain.Order, error) {
	res, err := releaseScript.Run(ctx, r.client, []string{orderKey(orderID)},
		courierID, r.nowFunc().UnixMilli()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to release order %s: %w", orderID, err)
	}
	return r.scriptResult(res, orderID, domain.ErrNotHolder, nil)
}

// Transition performs the conditional status update.
func (r *RedisOrderRepository) Transition(ctx context.Context, orderID string, target domain.Status, sources []domain.Status, requireClaim bool) (*domain.Order, error) {
	if len(sources) == 0 {
		return nil, domain.ErrInvalidTransition
	}

	csv := make([]string, len(sources))
	for i, s := range sources {
		csv[i] = string(s)
	}
	guard := "0"
	if requireClaim {
		guard = "1"
	}

	res, err := transitionScript.Run(ctx, r.client, []string{orderKey(orderID)},
		string(target), r.nowFunc().UnixMilli(), strings.Join(csv, ","), guard).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to transition order %s to %s: %w", orderID, target, err)
	}
	return r.scriptResult(res, orderID, domain.ErrInvalidTransition, domain.ErrOrderNotClaimed)
}

// scriptResult maps a Lua script's return value onto the domain: a JSON string
// is the updated order; 0 is the conditional failure; -2 is the claim-guard
// failure; -1 is a missing order.
func (r *RedisOrderRepository) scriptResult(res interface{}, orderID string, conflictErr, guardErr error) (*domain.Order, error) {
	switch v := res.(type) {
	case string:
		return decodeOrder([]byte(v))
	case int64:
		switch v {
		case 0:
			return nil, conflictErr
		case -2:
			if guardErr != nil {
				return nil, guardErr
			}
			return nil, fmt.Errorf("unexpected script result %d for order %s", v, orderID)
		default:
			return nil, domain.ErrOrderNotFound
		}
	default:
		return nil, fmt.Errorf("unexpected script result type %T for order %s", res, orderID)
	}
}

func decodeOrder(raw []byte) (*domain.Order, error) {
	var rec orderRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal order: %w", err)
	}
	return rec.toDomain(), nil
}
