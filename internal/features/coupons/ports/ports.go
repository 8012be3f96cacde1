package ports

import (
	"context"
	"time"

	"cakeshop-dispatch/internal/features/coupons/domain"
)

// CouponRepository defines the secondary port for coupon storage.
type CouponRepository interface {
	// FindByCode retrieves a coupon by its redemption code.
	// Returns domain.ErrCouponNotFound when no coupon exists for the code.
	FindByCode(ctx context.Context, code string) (*domain.Coupon, error)

	// Save persists a coupon keyed by its code.
	Save(ctx context.Context, coupon *domain.Coupon) error

	// IncrementUsageIfUnderLimit atomically increments the coupon's usedCount
	// if (and only if) usageLimit == 0 or usedCount < usageLimit. The quota
	// check and the increment are a single storage operation so that two
	// concurrent orders cannot both take the last usage slot.
	// Returns false when the quota is exhausted.
	IncrementUsageIfUnderLimit(ctx context.Context, code string) (bool, error)

	// DecrementUsage undoes a usage increment when the surrounding order
	// creation fails after the coupon was consumed.
	DecrementUsage(ctx context.Context, code string) error

	// ListRedeemable returns coupons currently offered to buyers: active,
	// inside their validity window, with quota remaining.
	ListRedeemable(ctx context.Context, now time.Time) ([]domain.Coupon, error)
}
