package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrOrderNotFound is returned when the order does not exist.
	ErrOrderNotFound = errors.New("order not found")
	// ErrValidation is returned when required order fields are missing.
	ErrValidation = errors.New("order validation failed")
	// ErrAlreadyClaimed is returned when another pilot holds a live claim.
	ErrAlreadyClaimed = errors.New("order already claimed or unavailable")
	// ErrNotHolder is returned when a pilot releases a claim it does not hold.
	ErrNotHolder = errors.New("pilot does not hold the claim")
)

// PaymentMethod is how the buyer pays.
type PaymentMethod string

const (
	PaymentMethodCOD    PaymentMethod = "COD"
	PaymentMethodOnline PaymentMethod = "online"
)

// PaymentStatus tracks payment progress. Gateway integration is out of scope;
// only identifiers are persisted.
type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusFailed   PaymentStatus = "failed"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

// BuyerDetails is contact info snapshotted on the order.
type BuyerDetails struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

// ShippingAddress is the delivery address for the order.
type ShippingAddress struct {
	FirstName    string `json:"first_name,omitempty"`
	LastName     string `json:"last_name,omitempty"`
	AddressLine1 string `json:"address_line1,omitempty"`
	AddressLine2 string `json:"address_line2,omitempty"`
	City         string `json:"city,omitempty"`
	State        string `json:"state,omitempty"`
	Pincode      string `json:"pincode,omitempty"`
	Country      string `json:"country,omitempty"`
}

// OrderItem is a line item snapshotted at creation time. Line items are
// immutable once the order exists; later product edits never change them.
type OrderItem struct {
	// ProductID references the catalog product.
	ProductID string `json:"product_id"`
	// VariantID references the purchased weight option.
	VariantID string `json:"variant_id"`
	// Name is the product name at purchase time.
	Name string `json:"name"`
	// Weight is the numeric weight of the option.
	Weight float64 `json:"weight,omitempty"`
	// Unit is the weight unit: g, kg or piece.
	Unit string `json:"unit,omitempty"`
	// Price is the unit price at purchase time.
	Price float64 `json:"price"`
	// Quantity is the number of units purchased.
	Quantity int64 `json:"quantity"`
	// CuttingType is an optional preparation note (e.g., eggless, heart shape).
	CuttingType string `json:"cutting_type,omitempty"`
}

// CouponSnapshot is the immutable copy of coupon terms recorded on the order
// at apply time, so later coupon edits cannot retroactively change the order.
type CouponSnapshot struct {
	Name              string  `json:"name"`
	Code              string  `json:"code"`
	Percentage        float64 `json:"percentage"`
	MinOrderAmount    float64 `json:"min_order_amount"`
	MaxDiscountAmount float64 `json:"max_discount_amount"`
}

// Order is the aggregate root of the dispatch lifecycle.
type Order struct {
	// OrderID is the human-readable sequential identifier (e.g. ORD00042).
	OrderID string `json:"order_id"`
	// Buyer references the buyer account.
	Buyer string `json:"buyer"`
	// BuyerDetails is buyer contact info snapshotted on the order.
	BuyerDetails BuyerDetails `json:"buyer_details,omitempty"`
	// ShippingAddress is the delivery address.
	ShippingAddress ShippingAddress `json:"shipping_address,omitempty"`
	// Location is the delivery zone the bakery serves.
	Location string `json:"location"`
	// DeliveryInstructions is optional free text from the buyer.
	DeliveryInstructions string `json:"delivery_instructions,omitempty"`
	// Items are the purchased line items, immutable after creation.
	Items []OrderItem `json:"items"`

	// Subtotal is the sum of line item prices before discounts.
	Subtotal float64 `json:"subtotal"`
	// Discount is the total discount on the order, coupon included.
	Discount float64 `json:"discount"`
	// CouponCode references the applied coupon, empty when none.
	CouponCode string `json:"coupon,omitempty"`
	// CouponSnapshot freezes the applied coupon's terms.
	CouponSnapshot *CouponSnapshot `json:"coupon_snapshot,omitempty"`
	// CouponDiscount is the portion of Discount contributed by the coupon.
	CouponDiscount float64 `json:"coupon_discount"`
	// CouponAppliedAt is when the coupon was applied.
	CouponAppliedAt time.Time `json:"coupon_applied_at,omitempty"`
	// TaxAmount is the tax charged on the order.
	TaxAmount float64 `json:"tax_amount"`
	// ShippingFee is the delivery charge.
	ShippingFee float64 `json:"shipping_fee"`
	// Total is the order value before discount, tax and shipping.
	Total float64 `json:"total"`
	// FinalAmount is what the buyer is charged:
	// Total - Discount + TaxAmount + ShippingFee.
	FinalAmount float64 `json:"final_amount"`

	// PaymentMethod is how the buyer pays.
	PaymentMethod PaymentMethod `json:"payment_method"`
	// PaymentStatus tracks payment progress.
	PaymentStatus PaymentStatus `json:"payment_status"`
	// RazorpayOrderID / RazorpayPaymentID / RazorpaySignature are gateway
	// identifiers, persisted verbatim.
	RazorpayOrderID   string `json:"razorpay_order_id,omitempty"`
	RazorpayPaymentID string `json:"razorpay_payment_id,omitempty"`
	RazorpaySignature string `json:"razorpay_signature,omitempty"`

	// NotificationRead marks whether admins have seen the new-order alert.
	NotificationRead bool `json:"notification_read"`

	// Status is the lifecycle state.
	Status Status `json:"status"`

	// ClaimedBy is the pilot holding the claim lease, empty when unclaimed.
	ClaimedBy string `json:"claimed_by,omitempty"`
	// ClaimedAt is when the current claim was granted.
	ClaimedAt time.Time `json:"claimed_at,omitempty"`
	// ClaimExpiresAt is when the current claim lease lapses.
	ClaimExpiresAt time.Time `json:"claim_expires_at,omitempty"`

	// DeliveredAt is set when the order enters delivered.
	DeliveredAt time.Time `json:"delivered_at,omitempty"`
	// CancelledAt is set when the order enters cancelled.
	CancelledAt time.Time `json:"cancelled_at,omitempty"`

	// CreatedAt is when the order was created.
	CreatedAt time.Time `json:"created_at"`
	// UpdatedAt is when the order was last modified.
	UpdatedAt time.Time `json:"updated_at"`
}

// ValidateForCreate checks the required creation fields.
func (o *Order) ValidateForCreate() error {
	if o.Buyer == "" {
		return fmt.Errorf("%w: buyer is required", ErrValidation)
	}
	if len(o.Items) == 0 {
		return fmt.Errorf("%w: at least one item is required", ErrValidation)
	}
	if o.Location == "" {
		return fmt.Errorf("%w: location is required", ErrValidation)
	}
	for i, item := range o.Items {
		if item.ProductID == "" || item.VariantID == "" {
			return fmt.Errorf("%w: item %d missing product or variant reference", ErrValidation, i)
		}
		if item.Quantity <= 0 {
			return fmt.Errorf("%w: item %d quantity must be positive", ErrValidation, i)
		}
	}
	return nil
}

// ItemsTotal is the sum of line item price*quantity.
func (o *Order) ItemsTotal() float64 {
	var sum float64
	for _, item := range o.Items {
		sum += item.Price * float64(item.Quantity)
	}
	return sum
}

// ComputeTotals fills Total (when unset) and always recomputes FinalAmount so
// the pricing invariant holds for every created order regardless of what the
// client sent.
func (o *Order) ComputeTotals() {
	if o.Total == 0 {
		o.Total = o.ItemsTotal()
	}
	o.FinalAmount = o.Total - o.Discount + o.TaxAmount + o.ShippingFee
}

// ClaimActive reports whether a claim lease is live at the given instant.
func (o *Order) ClaimActive(now time.Time) bool {
	if o.ClaimedBy == "" {
		return false
	}
	return o.ClaimExpiresAt.After(now)
}
