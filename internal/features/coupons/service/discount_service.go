package service

import (
	"context"
	"fmt"
	"time"

	"cakeshop-dispatch/internal/features/coupons/domain"
	"cakeshop-dispatch/internal/features/coupons/ports"
)

// DiscountEngine validates coupons against order subtotals and consumes usage
// quota atomically alongside order creation.
type DiscountEngine struct {
	repo ports.CouponRepository
}

// NewDiscountEngine creates a new DiscountEngine.
func NewDiscountEngine(repo ports.CouponRepository) *DiscountEngine {
	return &DiscountEngine{
		repo: repo,
	}
}

// Validate loads the coupon for code and checks it against the subtotal.
// The usage-quota result here is advisory; Consume re-checks it atomically
// at commit time.
func (e *DiscountEngine) Validate(ctx context.Context, code string, subtotal float64, now time.Time) (*domain.Coupon, error) {
	coupon, err := e.repo.FindByCode(ctx, code)
	if err != nil {
		return nil, err
	}

	if err := coupon.Validate(subtotal, now); err != nil {
		return nil, err
	}

	return coupon, nil
}

// Consume takes one usage slot for the coupon. The limit is re-checked inside
// the store's single conditional write, closing the race where two orders both
// pass Validate while only one slot remains: the loser gets
// domain.ErrCouponLimitReached here, at commit time.
func (e *DiscountEngine) Consume(ctx context.Context, code string) error {
	ok, err := e.repo.IncrementUsageIfUnderLimit(ctx, code)
	if err != nil {
		return fmt.Errorf("failed to consume coupon %s: %w", code, err)
	}
	if !ok {
		return domain.ErrCouponLimitReached
	}
	return nil
}

// Refund returns a usage slot after the surrounding order creation failed.
func (e *DiscountEngine) Refund(ctx context.Context, code string) error {
	if err := e.repo.DecrementUsage(ctx, code); err != nil {
		return fmt.Errorf("failed to refund coupon %s: %w", code, err)
	}
	return nil
}

// ListRedeemable returns the coupons a buyer can currently redeem.
func (e *DiscountEngine) ListRedeemable(ctx context.Context, now time.Time) ([]domain.Coupon, error) {
	coupons, err := e.repo.ListRedeemable(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("service: failed to list coupons: %w", err)
	}
	return coupons, nil
}
