package adapters

import (
	"time"

	"cakeshop-dispatch/internal/features/orders/domain"
)

// orderRecord is the persistence shape of an order. Timestamps are stored as
// unix milliseconds so the claim and transition scripts can compare them as
// plain numbers inside Lua.
type orderRecord struct {
	OrderID              string                 `json:"orderId"`
	Buyer                string                 `json:"buyer"`
	BuyerDetails         domain.BuyerDetails    `json:"buyerDetails,omitempty"`
	ShippingAddress      domain.ShippingAddress `json:"shippingAddress,omitempty"`
	Location             string                 `json:"location"`
	DeliveryInstructions string                 `json:"deliveryInstructions,omitempty"`
	Items                []domain.OrderItem     `json:"items"`

	Subtotal        float64                `json:"subtotal"`
	Discount        float64                `json:"discount"`
	CouponCode      string                 `json:"coupon,omitempty"`
	CouponSnapshot  *domain.CouponSnapshot `json:"couponSnapshot,omitempty"`
	CouponDiscount  float64                `json:"couponDiscount"`
	CouponAppliedAt int64                  `json:"couponAppliedAt,omitempty"`
	TaxAmount       float64                `json:"taxAmount"`
	ShippingFee     float64                `json:"shippingFee"`
	Total           float64                `json:"total"`
	FinalAmount     float64                `json:"finalAmount"`

	PaymentMethod     string `json:"paymentMethod"`
	PaymentStatus     string `json:"paymentStatus"`
	RazorpayOrderID   string `json:"razorpayOrderId,omitempty"`
	RazorpayPaymentID string `json:"razorpayPaymentId,omitempty"`
	RazorpaySignature string `json:"razorpaySignature,omitempty"`

	NotificationRead bool `json:"notificationRead"`

	Status string `json:"status"`

	ClaimedBy      string `json:"claimedBy,omitempty"`
	ClaimedAt      int64  `json:"claimedAt,omitempty"`
	ClaimExpiresAt int64  `json:"claimExpiresAt,omitempty"`

	DeliveredAt int64 `json:"deliveredAt,omitempty"`
	CancelledAt int64 `json:"cancelledAt,omitempty"`

	CreatedAt int64 `json:"createdAt"`
	UpdatedAt int64 `json:"updatedAt"`
}

func msFromTime(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func timeFromMs(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}

func toRecord(o *domain.Order) *orderRecord {
	return &orderRecord{
		OrderID:              o.OrderID,
		Buyer:                o.Buyer,
		BuyerDetails:         o.BuyerDetails,
		ShippingAddress:      o.ShippingAddress,
		Location:             o.Location,
		DeliveryInstructions: o.DeliveryInstructions,
		Items:                o.Items,
		Subtotal:             o.Subtotal,
		Discount:             o.Discount,
		CouponCode:           o.CouponCode,
		CouponSnapshot:       o.CouponSnapshot,
		CouponDiscount:       o.CouponDiscount,
		CouponAppliedAt:      msFromTime(o.CouponAppliedAt),
		TaxAmount:            o.TaxAmount,
		ShippingFee:          o.ShippingFee,
		Total:                o.Total,
		FinalAmount:          o.FinalAmount,
		PaymentMethod:        string(o.PaymentMethod),
		PaymentStatus:        string(o.PaymentStatus),
		RazorpayOrderID:      o.RazorpayOrderID,
		RazorpayPaymentID:    o.RazorpayPaymentID,
		RazorpaySignature:    o.RazorpaySignature,
		NotificationRead:     o.NotificationRead,
		Status:               string(o.Status),
		ClaimedBy:            o.ClaimedBy,
		ClaimedAt:            msFromTime(o.ClaimedAt),
		ClaimExpiresAt:       msFromTime(o.ClaimExpiresAt),
		DeliveredAt:          msFromTime(o.DeliveredAt),
		CancelledAt:          msFromTime(o.CancelledAt),
		CreatedAt:            msFromTime(o.CreatedAt),
		UpdatedAt:            msFromTime(o.UpdatedAt),
	}
}

func (r *orderRecord) toDomain() *domain.Order {
	return &domain.Order{
		OrderID:              r.OrderID,
		Buyer:                r.Buyer,
		BuyerDetails:         r.BuyerDetails,
		ShippingAddress:      r.ShippingAddress,
		Location:             r.Location,
		DeliveryInstructions: r.DeliveryInstructions,
		Items:                r.Items,
		Subtotal:             r.Subtotal,
		Discount:             r.Discount,
		CouponCode:           r.CouponCode,
		CouponSnapshot:       r.CouponSnapshot,
		CouponDiscount:       r.CouponDiscount,
		CouponAppliedAt:      timeFromMs(r.CouponAppliedAt),
		TaxAmount:            r.TaxAmount,
		ShippingFee:          r.ShippingFee,
		Total:                r.Total,
		FinalAmount:          r.FinalAmount,
		PaymentMethod:        domain.PaymentMethod(r.PaymentMethod),
		PaymentStatus:        domain.PaymentStatus(r.PaymentStatus),
		RazorpayOrderID:      r.RazorpayOrderID,
		RazorpayPaymentID:    r.RazorpayPaymentID,
		RazorpaySignature:    r.RazorpaySignature,
		NotificationRead:     r.NotificationRead,
		Status:               domain.Status(r.Status),
		ClaimedBy:            r.ClaimedBy,
		ClaimedAt:            timeFromMs(r.ClaimedAt),
		ClaimExpiresAt:       timeFromMs(r.ClaimExpiresAt),
		DeliveredAt:          timeFromMs(r.DeliveredAt),
		CancelledAt:          timeFromMs(r.CancelledAt),
		CreatedAt:            timeFromMs(r.CreatedAt),
		UpdatedAt:            timeFromMs(r.UpdatedAt),
	}
}
