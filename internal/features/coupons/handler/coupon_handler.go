package handler

import (
	"errors"
	"net/http"
	"time"

	"cakeshop-dispatch/internal/core/logger"
	"cakeshop-dispatch/internal/features/coupons/domain"
	"cakeshop-dispatch/internal/features/coupons/service"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// CouponHandler handles HTTP requests related to coupons.
type CouponHandler struct {
	engine *service.DiscountEngine
}

// NewCouponHandler creates a new instance of CouponHandler.
func NewCouponHandler(e *service.DiscountEngine) *CouponHandler {
	return &CouponHandler{
		engine: e,
	}
}

// VerifyRequest is the body of a coupon verification call.
type VerifyRequest struct {
	// Code is the redemption code to verify.
	Code string `json:"code"`
	// Subtotal is the order subtotal the coupon would apply to.
	Subtotal float64 `json:"subtotal"`
}

// VerifyResponse reports the outcome of a verification.
type VerifyResponse struct {
	// Valid is true when the coupon can be applied.
	Valid bool `json:"valid"`
	// Percentage is the coupon's discount percentage.
	Percentage float64 `json:"percentage"`
	// Discount is the amount the coupon would take off the given subtotal.
	Discount float64 `json:"discount"`
	// Coupon carries the full coupon terms.
	Coupon *domain.Coupon `json:"coupon"`
}

// VerifyCoupon handles pre-checkout coupon validation.
// This is advisory: the usage quota is re-checked atomically when the order commits.
// @Summary Verify a coupon code
// @Description Validate a coupon against an order subtotal without consuming usage.
// @Accept json
// @Produce json
// @Param request body VerifyRequest true "Code and subtotal"
// @Success 200 {object} VerifyResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /coupons/verify [post]
func (h *CouponHandler) VerifyCoupon(c *fiber.Ctx) error {
	rayID, ok := c.Locals("requestid").(string)
	if !ok {
		rayID = "unknown"
	}

	var req VerifyRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(http.StatusBadRequest).JSON(ErrorResponse{
			Message: "Invalid request body",
			RayID:   rayID,
		})
	}
	if req.Code == "" {
		return c.Status(http.StatusBadRequest).JSON(ErrorResponse{
			Message: "Coupon code is required",
			RayID:   rayID,
		})
	}

	coupon, err := h.engine.Validate(c.Context(), req.Code, req.Subtotal, time.Now())
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, domain.ErrCouponNotFound) {
			status = http.StatusNotFound
		} else if !isCouponRuleError(err) {
			logger.Get().Error("Coupon verification failed",
				zap.String("code", req.Code),
				zap.String("ray_id", rayID),
				zap.Error(err),
			)
			status = http.StatusInternalServerError
		}

		return c.Status(status).JSON(ErrorResponse{
			Message: err.Error(),
			RayID:   rayID,
		})
	}

	return c.Status(http.StatusOK).JSON(VerifyResponse{
		Valid:      true,
		Percentage: coupon.Percentage,
		Discount:   coupon.Discount(req.Subtotal),
		Coupon:     coupon,
	})
}

// GetAvailableCoupons lists coupons a buyer can currently redeem.
// @Summary List redeemable coupons
// @Produce json
// @Success 200 {array} domain.Coupon
// @Failure 500 {object} ErrorResponse
// @Router /coupons/available [get]
func (h *CouponHandler) GetAvailableCoupons(c *fiber.Ctx) error {
	rayID, ok := c.Locals("requestid").(string)
	if !ok {
		rayID = "unknown"
	}

	coupons, err := h.engine.ListRedeemable(c.Context(), time.Now())
	if err != nil {
		logger.Get().Error("Failed to list coupons",
			zap.String("ray_id", rayID),
			zap.Error(err),
		)
		return c.Status(http.StatusInternalServerError).JSON(ErrorResponse{
			Message: "Internal Server Error",
			RayID:   rayID,
		})
	}

	return c.Status(http.StatusOK).JSON(coupons)
}

// isCouponRuleError reports whether err is a business-rule rejection rather
// than a storage failure.
func isCouponRuleError(err error) bool {
	return errors.Is(err, domain.ErrCouponInactive) ||
		errors.Is(err, domain.ErrCouponNotStarted) ||
		errors.Is(err, domain.ErrCouponExpired) ||
		errors.Is(err, domain.ErrCouponLimitReached) ||
		errors.Is(err, domain.ErrCouponBelowMinimum)
}

// ErrorResponse represents the structure of an error response.
type ErrorResponse struct {
	// Message is the error description.
	Message string `json:"message"`
	// RayID is the unique request identifier for debugging.
	RayID string `json:"ray_id"`
}
