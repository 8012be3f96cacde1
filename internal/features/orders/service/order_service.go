package service

import (
	"context"
	"fmt"
	"time"

	"cakeshop-dispatch/internal/core/logger"
	coupondomain "cakeshop-dispatch/internal/features/coupons/domain"
	"cakeshop-dispatch/internal/features/orders/domain"
	"cakeshop-dispatch/internal/features/orders/ports"

	"go.uber.org/zap"
)

// OrderService orchestrates the order lifecycle: creation with stock and
// coupon handling, the claim lease for pilots, and the status state machine.
type OrderService struct {
	repo       ports.OrderRepository
	products   ports.ProductStore
	coupons    ports.CouponEngine
	fanout     ports.NotificationFanout
	claimLease time.Duration
	nowFunc    func() time.Time
}

// NewOrderService creates a new OrderService.
func NewOrderService(repo ports.OrderRepository, products ports.ProductStore, coupons ports.CouponEngine, fanout ports.NotificationFanout, claimLease time.Duration) *OrderService {
	return &OrderService{
		repo:       repo,
		products:   products,
		coupons:    coupons,
		fanout:     fanout,
		claimLease: claimLease,
		nowFunc:    time.Now,
	}
}

// CreateOrder validates the order, reserves stock, applies the coupon and
// persists the order, then fans the new-order event out to admins and pilots.
//
// Stock decrements and the coupon usage slot are taken before the write and
// compensated if a later step fails. The compensation is best effort; a crash
// between steps can leak a reservation, which an admin corrects manually.
func (s *OrderService) CreateOrder(ctx context.Context, order *domain.Order) (*domain.Order, error) {
	if err := order.ValidateForCreate(); err != nil {
		return nil, err
	}

	now := s.nowFunc()
	order.Status = domain.StatusPending
	order.NotificationRead = false
	if order.PaymentStatus == "" {
		order.PaymentStatus = domain.PaymentStatusPending
	}
	if order.Subtotal == 0 {
		order.Subtotal = order.ItemsTotal()
	}

	reserved, err := s.reserveStock(ctx, order.Items)
	if err != nil {
		s.restock(ctx, reserved)
		return nil, err
	}

	if order.CouponCode != "" {
		coupon, err := s.coupons.Validate(ctx, order.CouponCode, order.Subtotal, now)
		if err != nil {
			s.restock(ctx, reserved)
			return nil, err
		}

		order.CouponCode = coupon.Code
		order.CouponSnapshot = &domain.CouponSnapshot{
			Name:              coupon.Name,
			Code:              coupon.Code,
			Percentage:        coupon.Percentage,
			MinOrderAmount:    coupon.MinOrderAmount,
			MaxDiscountAmount: coupon.MaxDiscountAmount,
		}
		order.CouponDiscount = coupondomain.ComputeDiscount(order.Subtotal, coupon.Percentage, coupon.MaxDiscountAmount)
		order.Discount = order.CouponDiscount
		order.CouponAppliedAt = now

		// commit-time quota check; the loser of a race for the last slot
		// fails here even though Validate passed
		if err := s.coupons.Consume(ctx, order.CouponCode); err != nil {
			s.restock(ctx, reserved)
			return nil, err
		}
	}

	order.ComputeTotals()

	orderID, err := s.repo.NextOrderID(ctx)
	if err != nil {
		s.compensate(ctx, order, reserved)
		return nil, fmt.Errorf("failed to allocate order id: %w", err)
	}
	order.OrderID = orderID

	if err := s.repo.Create(ctx, order); err != nil {
		s.compensate(ctx, order, reserved)
		return nil, err
	}

	s.fanout.OrderCreated(order)
	return order, nil
}

// reserveStock decrements stock for every line item, returning the items
// decremented so far so the caller can roll them back on failure.
func (s *OrderService) reserveStock(ctx context.Context, items []domain.OrderItem) ([]domain.OrderItem, error) {
	reserved := make([]domain.OrderItem, 0, len(items))
	for _, item := range items {
		if err := s.products.DecrementStock(ctx, item.ProductID, item.VariantID, item.Quantity); err != nil {
			return reserved, err
		}
		reserved = append(reserved, item)
	}
	return reserved, nil
}

func (s *OrderService) restock(ctx context.Context, reserved []domain.OrderItem) {
	for _, item := range reserved {
		if err := s.products.IncrementStock(ctx, item.ProductID, item.VariantID, item.Quantity); err != nil {
			logger.Get().Error("Failed to restock after aborted order",
				zap.String("product_id", item.ProductID),
				zap.String("variant_id", item.VariantID),
				zap.Int64("quantity", item.Quantity),
				zap.Error(err),
			)
		}
	}
}

func (s *OrderService) compensate(ctx context.Context, order *domain.Order, reserved []domain.OrderItem) {
	s.restock(ctx, reserved)
	if order.CouponCode != "" && order.CouponSnapshot != nil {
		if err := s.coupons.Refund(ctx, order.CouponCode); err != nil {
			logger.Get().Error("Failed to refund coupon slot after aborted order",
				zap.String("coupon", order.CouponCode),
				zap.Error(err),
			)
		}
	}
}

// GetOrder retrieves one order.
func (s *OrderService) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	return s.repo.FindByID(ctx, orderID)
}

// ListOrders returns every order, newest first.
func (s *OrderService) ListOrders(ctx context.Context) ([]domain.Order, error) {
	return s.repo.List(ctx)
}

// ListUnread returns orders admins have not acknowledged yet.
func (s *OrderService) ListUnread(ctx context.Context) ([]domain.Order, error) {
	return s.repo.ListUnread(ctx)
}

// ListUnclaimed returns orders open for claiming and pushes the same snapshot
// to the pilots topic so dashboards converge.
func (s *OrderService) ListUnclaimed(ctx context.Context) ([]domain.Order, error) {
	orders, err := s.repo.ListUnclaimed(ctx)
	if err != nil {
		return nil, err
	}
	s.fanout.UnclaimedSnapshot(orders)
	return orders, nil
}

// ListByBuyer returns a buyer's order history.
func (s *OrderService) ListByBuyer(ctx context.Context, buyerID string) ([]domain.Order, error) {
	return s.repo.ListByBuyer(ctx, buyerID)
}

// ListByCourier returns the orders a pilot holds.
func (s *OrderService) ListByCourier(ctx context.Context, courierID string) ([]domain.Order, error) {
	return s.repo.ListByCourier(ctx, courierID)
}

// MarkRead acknowledges the admin new-order notification.
func (s *OrderService) MarkRead(ctx context.Context, orderID string) (*domain.Order, error) {
	return s.repo.MarkRead(ctx, orderID)
}

// UpdateOrder applies an admin correction to the stored order. Totals are
// recomputed so the pricing invariant survives the edit.
func (s *OrderService) UpdateOrder(ctx context.Context, order *domain.Order) (*domain.Order, error) {
	current, err := s.repo.FindByID(ctx, order.OrderID)
	if err != nil {
		return nil, err
	}

	// lifecycle and claim state are owned by the state machine, not the edit
	order.Status = current.Status
	order.ClaimedBy = current.ClaimedBy
	order.ClaimedAt = current.ClaimedAt
	order.ClaimExpiresAt = current.ClaimExpiresAt
	order.DeliveredAt = current.DeliveredAt
	order.CancelledAt = current.CancelledAt
	order.CouponAppliedAt = current.CouponAppliedAt
	order.CreatedAt = current.CreatedAt
	order.NotificationRead = current.NotificationRead

	order.Total = 0
	order.ComputeTotals()

	if err := s.repo.Update(ctx, order); err != nil {
		return nil, err
	}
	return order, nil
}

// DeleteOrder removes an order.
func (s *OrderService) DeleteOrder(ctx context.Context, orderID string) error {
	return s.repo.Delete(ctx, orderID)
}

// Claim grants the pilot a time-bound exclusive claim on the order and
// announces the claim to the pilots topic.
func (s *OrderService) Claim(ctx context.Context, orderID, courierID string) (*domain.Order, error) {
	if courierID == "" {
		return nil, fmt.Errorf("%w: pilot id is required", domain.ErrValidation)
	}

	order, err := s.repo.Claim(ctx, orderID, courierID, s.claimLease)
	if err != nil {
		return nil, err
	}

	logger.Get().Info("Order claimed",
		zap.String("order_id", order.OrderID),
		zap.String("pilot_id", courierID),
		zap.Time("lease_expires_at", order.ClaimExpiresAt),
	)

	s.fanout.OrderClaimed(order)
	return order, nil
}

// Release gives a claim back before the lease lapses, returning the order to
// the unclaimed pool.
func (s *OrderService) Release(ctx context.Context, orderID, courierID string) (*domain.Order, error) {
	if courierID == "" {
		return nil, fmt.Errorf("%w: pilot id is required", domain.ErrValidation)
	}

	order, err := s.repo.Release(ctx, orderID, courierID)
	if err != nil {
		return nil, err
	}

	s.fanout.UnclaimedSnapshot([]domain.Order{*order})
	return order, nil
}

// UpdateStatus advances the courier lifecycle. pending and claimed are not
// assignable through here: pending is only re-entered via Release and claimed
// only via Claim, so the claim bookkeeping cannot be bypassed.
func (s *OrderService) UpdateStatus(ctx context.Context, orderID, rawStatus string) (*domain.Order, error) {
	target, err := domain.ParseStatus(rawStatus)
	if err != nil {
		return nil, err
	}
	if target == domain.StatusPending || target == domain.StatusClaimed {
		return nil, fmt.Errorf("%w: %s is not directly assignable", domain.ErrInvalidTransition, target)
	}

	order, err := s.repo.Transition(ctx, orderID, target, domain.TransitionSources(target), target.RequiresClaim())
	if err != nil {
		return nil, err
	}

	s.fanout.CourierProgress(order)
	s.fanout.BuyerStatusPush(order)
	return order, nil
}

// AdminUpdateStatus forces an order into one of the admin-assignable states.
// This authority bypasses the claim guard and the step-by-step courier table
// but still cannot leave a terminal state.
func (s *OrderService) AdminUpdateStatus(ctx context.Context, orderID, rawStatus string) (*domain.Order, error) {
	target, err := domain.ParseStatus(rawStatus)
	if err != nil {
		return nil, err
	}
	if !target.AdminAssignable() {
		return nil, fmt.Errorf("%w: %s is not admin assignable", domain.ErrInvalidTransition, target)
	}

	order, err := s.repo.Transition(ctx, orderID, target, domain.AdminTransitionSources(), false)
	if err != nil {
		return nil, err
	}

	logger.Get().Info("Order status forced by admin",
		zap.String("order_id", order.OrderID),
		zap.String("status", string(order.Status)),
	)

	s.fanout.BuyerStatusPush(order)
	return order, nil
}
