package domain

import (
	"errors"
	"strings"
	"time"
)

// CouponStatus represents the administrative state of a coupon.
type CouponStatus string

const (
	// CouponStatusActive means the coupon can be redeemed inside its validity window.
	CouponStatusActive CouponStatus = "active"
	// CouponStatusInactive means the coupon has been switched off by an admin.
	CouponStatusInactive CouponStatus = "inactive"
	// CouponStatusExpired means the coupon was marked expired by admin tooling.
	CouponStatusExpired CouponStatus = "expired"
)

var (
	// ErrCouponNotFound is returned when no coupon exists for a code.
	ErrCouponNotFound = errors.New("coupon not found")
	// ErrCouponInactive is returned when the coupon status is not active.
	ErrCouponInactive = errors.New("coupon is not active")
	// ErrCouponNotStarted is returned when the validity window has not opened yet.
	ErrCouponNotStarted = errors.New("coupon not started yet")
	// ErrCouponExpired is returned when the validity window has closed.
	ErrCouponExpired = errors.New("coupon expired")
	// ErrCouponLimitReached is returned when the usage quota is exhausted.
	ErrCouponLimitReached = errors.New("coupon usage limit reached")
	// ErrCouponBelowMinimum is returned when the order subtotal is below the coupon minimum.
	ErrCouponBelowMinimum = errors.New("order subtotal below coupon minimum")
)

// Coupon represents a percentage discount with a validity window and usage quota.
type Coupon struct {
	// Name is the display name of the coupon.
	Name string `json:"name"`
	// Description is optional marketing copy.
	Description string `json:"description,omitempty"`
	// Code is the unique redemption code, stored uppercase.
	Code string `json:"code"`
	// Percentage is the discount percentage, 1-100.
	Percentage float64 `json:"percentage"`
	// MinOrderAmount is the minimum subtotal required to redeem.
	MinOrderAmount float64 `json:"minOrderAmount"`
	// MaxDiscountAmount caps the discount; 0 means uncapped.
	MaxDiscountAmount float64 `json:"maxDiscountAmount"`
	// StartDate opens the validity window.
	StartDate time.Time `json:"startDate"`
	// EndDate closes the validity window.
	EndDate time.Time `json:"endDate"`
	// UsageLimit is the total number of redemptions allowed; 0 means unlimited.
	UsageLimit int64 `json:"usageLimit"`
	// UsedCount is the number of redemptions so far. Mutated only by the
	// discount engine's atomic apply, never directly.
	UsedCount int64 `json:"usedCount"`
	// Status is the administrative state.
	Status CouponStatus `json:"status"`
	// CreatedAt is when the coupon was created.
	CreatedAt time.Time `json:"createdAt"`
	// UpdatedAt is when the coupon was last modified.
	UpdatedAt time.Time `json:"updatedAt"`
}

// NormalizeCode uppercases and trims a redemption code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Validate checks whether the coupon can be applied to an order with the given
// subtotal at the given instant. Each failing condition yields its own error.
// A passing result is advisory only: the usage quota is re-checked atomically
// at commit time by the store's conditional increment.
func (c *Coupon) Validate(subtotal float64, now time.Time) error {
	if c.Status != CouponStatusActive {
		return ErrCouponInactive
	}
	if now.Before(c.StartDate) {
		return ErrCouponNotStarted
	}
	if now.After(c.EndDate) {
		return ErrCouponExpired
	}
	if c.UsageLimit > 0 && c.UsedCount >= c.UsageLimit {
		return ErrCouponLimitReached
	}
	if subtotal < c.MinOrderAmount {
		return ErrCouponBelowMinimum
	}
	return nil
}

// Discount computes the discount this coupon yields for a subtotal.
func (c *Coupon) Discount(subtotal float64) float64 {
	return ComputeDiscount(subtotal, c.Percentage, c.MaxDiscountAmount)
}

// ComputeDiscount returns subtotal*percentage/100, capped at maxDiscountAmount
// when the cap is positive. The result is always within [0, subtotal].
func ComputeDiscount(subtotal, percentage, maxDiscountAmount float64) float64 {
	if subtotal <= 0 || percentage <= 0 {
		return 0
	}

	amount := subtotal * percentage / 100

	if maxDiscountAmount > 0 && amount > maxDiscountAmount {
		amount = maxDiscountAmount
	}
	if amount > subtotal {
		amount = subtotal
	}
	return amount
}

// Redeemable reports whether the coupon is currently offered to buyers:
// active, inside its window, with quota remaining.
func (c *Coupon) Redeemable(now time.Time) bool {
	if c.Status != CouponStatusActive {
		return false
	}
	if now.Before(c.StartDate) || now.After(c.EndDate) {
		return false
	}
	if c.UsageLimit > 0 && c.UsedCount >= c.UsageLimit {
		return false
	}
	return true
}
