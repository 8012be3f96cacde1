package ports

import (
	"context"
	"time"

	coupondomain "cakeshop-dispatch/internal/features/coupons/domain"
	"cakeshop-dispatch/internal/features/orders/domain"
)

// OrderRepository defines the secondary port for order storage.
//
// Claim, Release and Transition are atomic conditional updates: their
// predicate and write happen in a single storage operation, never as a read
// followed by a write in Go. Among N concurrent Claim calls on one order,
// exactly one succeeds.
type OrderRepository interface {
	// NextOrderID returns the next human-readable sequential identifier from
	// the shared atomic counter. If the counter is unavailable it falls back
	// to a timestamp-derived id and reports degraded mode in the log; the
	// fallback can collide and is never relied upon for uniqueness.
	NextOrderID(ctx context.Context) (string, error)

	// Create persists a new order. Fails if the id already exists.
	Create(ctx context.Context, order *domain.Order) error

	// FindByID retrieves an order. Returns domain.ErrOrderNotFound when absent.
	FindByID(ctx context.Context, orderID string) (*domain.Order, error)

	// List returns all orders, newest first.
	List(ctx context.Context) ([]domain.Order, error)
	// ListByBuyer returns a buyer's orders, newest first.
	ListByBuyer(ctx context.Context, buyerID string) ([]domain.Order, error)
	// ListByCourier returns the orders a pilot currently holds, newest first.
	ListByCourier(ctx context.Context, courierID string) ([]domain.Order, error)
	// ListUnclaimed returns pending orders with no live claim, newest first.
	ListUnclaimed(ctx context.Context) ([]domain.Order, error)
	// ListUnread returns orders whose admin notification is unread.
	ListUnread(ctx context.Context) ([]domain.Order, error)

	// MarkRead flags the admin notification as read.
	MarkRead(ctx context.Context, orderID string) (*domain.Order, error)

	// Update overwrites mutable order fields (admin correction path).
	Update(ctx context.Context, order *domain.Order) error

	// Delete removes an order.
	Delete(ctx context.Context, orderID string) error

	// Claim grants courierID a time-bound exclusive claim if the order is
	// pending, or claimed with a lapsed lease. Returns domain.ErrAlreadyClaimed
	// without side effects otherwise.
	Claim(ctx context.Context, orderID, courierID string, lease time.Duration) (*domain.Order, error)

	// Release gives the claim back if courierID is the current holder,
	// resetting the order to pending. Returns domain.ErrNotHolder otherwise.
	Release(ctx context.Context, orderID, courierID string) (*domain.Order, error)

	// Transition moves the order into target if the current status is one of
	// sources, enforcing the claim guard when requireClaim is set. Entering
	// delivered or cancelled records the matching timestamp.
	Transition(ctx context.Context, orderID string, target domain.Status, sources []domain.Status, requireClaim bool) (*domain.Order, error)
}

// ProductStore is what order creation needs from the product catalog.
type ProductStore interface {
	CheckStock(ctx context.Context, productID, variantID string, quantity int64) (bool, error)
	DecrementStock(ctx context.Context, productID, variantID string, quantity int64) error
	IncrementStock(ctx context.Context, productID, variantID string, quantity int64) error
}

// CouponEngine is what order creation needs from the discount engine.
type CouponEngine interface {
	// Validate checks the coupon against the subtotal; advisory on quota.
	Validate(ctx context.Context, code string, subtotal float64, now time.Time) (*coupondomain.Coupon, error)
	// Consume atomically takes a usage slot, re-checking the quota at commit
	// time; returns coupondomain.ErrCouponLimitReached when the slot is gone.
	Consume(ctx context.Context, code string) error
	// Refund returns a usage slot after a failed order commit.
	Refund(ctx context.Context, code string) error
}

// NotificationFanout is the primary port into the notification fanout.
// Every call is fire-and-forget: it must not block the order mutation that
// produced the event, and its failures are never propagated.
type NotificationFanout interface {
	OrderCreated(order *domain.Order)
	UnclaimedSnapshot(orders []domain.Order)
	OrderClaimed(order *domain.Order)
	CourierProgress(order *domain.Order)
	BuyerStatusPush(order *domain.Order)
}
