package handler

import (
	"errors"
	"net/http"

	"cakeshop-dispatch/internal/core/logger"
	coupondomain "cakeshop-dispatch/internal/features/coupons/domain"
	"cakeshop-dispatch/internal/features/orders/domain"
	"cakeshop-dispatch/internal/features/orders/service"
	productdomain "cakeshop-dispatch/internal/features/products/domain"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// PilotHeader carries the pilot identity on claim, release and listing calls.
const PilotHeader = "X-Pilot-ID"

// OrderHandler handles HTTP requests for the order lifecycle.
type OrderHandler struct {
	service *service.OrderService
}

// NewOrderHandler creates a new instance of OrderHandler.
func NewOrderHandler(s *service.OrderService) *OrderHandler {
	return &OrderHandler{
		service: s,
	}
}

// ErrorResponse represents the structure of an error response.
type ErrorResponse struct {
	// Message is the error description.
	Message string `json:"message"`
	// RayID is the unique request identifier for debugging.
	RayID string `json:"ray_id"`
}

// StatusRequest carries a lifecycle status value.
type StatusRequest struct {
	Status string `json:"status"`
}

// PilotRequest carries the pilot identity when it is not sent as a header.
type PilotRequest struct {
	PilotID string `json:"pilotId"`
}

func rayID(c *fiber.Ctx) string {
	id, ok := c.Locals("requestid").(string)
	if !ok {
		return "unknown"
	}
	return id
}

// pilotID resolves the pilot identity from the header, falling back to the
// request body for clients that cannot set custom headers.
func pilotID(c *fiber.Ctx) string {
	if id := c.Get(PilotHeader); id != "" {
		return id
	}
	var req PilotRequest
	if err := c.BodyParser(&req); err == nil {
		return req.PilotID
	}
	return ""
}

// fail maps a domain error onto an HTTP status and writes the error body.
func (h *OrderHandler) fail(c *fiber.Ctx, err error) error {
	status := http.StatusInternalServerError

	switch {
	case errors.Is(err, domain.ErrOrderNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrAlreadyClaimed),
		errors.Is(err, domain.ErrOrderNotClaimed),
		errors.Is(err, productdomain.ErrInsufficientStock):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrNotHolder):
		status = http.StatusForbidden
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrUnknownStatus),
		errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, productdomain.ErrProductNotFound),
		errors.Is(err, productdomain.ErrVariantNotFound),
		errors.Is(err, coupondomain.ErrCouponNotFound),
		isCouponRuleError(err):
		status = http.StatusBadRequest
	}

	if status == http.StatusInternalServerError {
		logger.Get().Error("Order request failed",
			zap.String("path", c.Path()),
			zap.String("ray_id", rayID(c)),
			zap.Error(err),
		)
		return c.Status(status).JSON(ErrorResponse{
			Message: "Internal Server Error",
			RayID:   rayID(c),
		})
	}

	return c.Status(status).JSON(ErrorResponse{
		Message: err.Error(),
		RayID:   rayID(c),
	})
}

func isCouponRuleError(err error) bool {
	return errors.Is(err, coupondomain.ErrCouponInactive) ||
		errors.Is(err, coupondomain.ErrCouponNotStarted) ||
		errors.Is(err, coupondomain.ErrCouponExpired) ||
		errors.Is(err, coupondomain.ErrCouponLimitReached) ||
		errors.Is(err, coupondomain.ErrCouponBelowMinimum)
}

// CreateOrder places a new order.
// @Summary Place an order
// @Description Validate the order, reserve stock, apply the coupon and persist it.
// @Accept json
// @Produce json
// @Param order body domain.Order true "Order draft"
// @Success 201 {object} domain.Order
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /orders [post]
func (h *OrderHandler) CreateOrder(c *fiber.Ctx) error {
	var order domain.Order
	if err := c.BodyParser(&order); err != nil {
		return c.Status(http.StatusBadRequest).JSON(ErrorResponse{
			Message: "Invalid request body",
			RayID:   rayID(c),
		})
	}

	created, err := h.service.CreateOrder(c.Context(), &order)
	if err != nil {
		return h.fail(c, err)
	}

	return c.Status(http.StatusCreated).JSON(created)
}

// GetOrders lists every order, newest first.
// @Summary List all orders
// @Produce json
// @Success 200 {array} domain.Order
// @Router /orders [get]
func (h *OrderHandler) GetOrders(c *fiber.Ctx) error {
	orders, err := h.service.ListOrders(c.Context())
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(http.StatusOK).JSON(orders)
}

// GetUnreadOrders lists orders admins have not acknowledged yet.
// @Summary List unread orders
// @Produce json
// @Success 200 {array} domain.Order
// @Router /orders/unread [get]
func (h *OrderHandler) GetUnreadOrders(c *fiber.Ctx) error {
	orders, err := h.service.ListUnread(c.Context())
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(http.StatusOK).JSON(orders)
}

// GetUnclaimedOrders lists orders open for claiming.
// @Summary List unclaimed orders
// @Produce json
// @Success 200 {array} domain.Order
// @Router /orders/unclaimed [get]
func (h *OrderHandler) GetUnclaimedOrders(c *fiber.Ctx) error {
	orders, err := h.service.ListUnclaimed(c.Context())
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(http.StatusOK).JSON(orders)
}

// GetOrder retrieves one order by id.
// @Summary Get an order
// @Produce json
// @Param id path string true "Order ID"
// @Success 200 {object} domain.Order
// @Failure 404 {object} ErrorResponse
// @Router /orders/{id} [get]
func (h *OrderHandler) GetOrder(c *fiber.Ctx) error {
	order, err := h.service.GetOrder(c.Context(), c.Params("id"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(http.StatusOK).JSON(order)
}

// UpdateOrder applies an admin correction to an order.
// @Summary Update an order
// @Accept json
// @Produce json
// @Param id path string true "Order ID"
// @Param order body domain.Order true "Order fields"
// @Success 200 {object} domain.Order
// @Failure 404 {object} ErrorResponse
// @Router /orders/{id} [put]
func (h *OrderHandler) UpdateOrder(c *fiber.Ctx) error {
	var order domain.Order
	if err := c.BodyParser(&order); err != nil {
		return c.Status(http.StatusBadRequest).JSON(ErrorResponse{
			Message: "Invalid request body",
			RayID:   rayID(c),
		})
	}
	order.OrderID = c.Params("id")

	updated, err := h.service.UpdateOrder(c.Context(), &order)
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(http.StatusOK).JSON(updated)
}

// DeleteOrder removes an order.
// @Summary Delete an order
// @Param id path string true "Order ID"
// @Success 204
// @Failure 404 {object} ErrorResponse
// @Router /orders/{id} [delete]
func (h *OrderHandler) DeleteOrder(c *fiber.Ctx) error {
	if err := h.service.DeleteOrder(c.Context(), c.Params("id")); err != nil {
		return h.fail(c, err)
	}
	return c.SendStatus(http.StatusNoContent)
}

// MarkOrderRead acknowledges the admin new-order notification.
// @Summary Mark an order notification as read
// @Produce json
// @Param id path string true "Order ID"
// @Success 200 {object} domain.Order
// @Failure 404 {object} ErrorResponse
// @Router /orders/{id}/read [patch]
func (h *OrderHandler) MarkOrderRead(c *fiber.Ctx) error {
	order, err := h.service.MarkRead(c.Context(), c.Params("id"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(http.StatusOK).JSON(order)
}

// ClaimOrder grants the calling pilot a time-bound exclusive claim.
// Exactly one of N concurrent claims on the same order succeeds; the rest
// receive 409.
// @Summary Claim an order
// @Produce json
// @Param id path string true "Order ID"
// @Param X-Pilot-ID header string true "Pilot ID"
// @Success 200 {object} domain.Order
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /orders/{id}/claim [patch]
func (h *OrderHandler) ClaimOrder(c *fiber.Ctx) error {
	order, err := h.service.Claim(c.Context(), c.Params("id"), pilotID(c))
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(http.StatusOK).JSON(order)
}

// ReleaseOrder gives a claim back, returning the order to the unclaimed pool.
// @Summary Release a claimed order
// @Produce json
// @Param id path string true "Order ID"
// @Param X-Pilot-ID header string true "Pilot ID"
// @Success 200 {object} domain.Order
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /orders/{id}/release [patch]
func (h *OrderHandler) ReleaseOrder(c *fiber.Ctx) error {
	order, err := h.service.Release(c.Context(), c.Params("id"), pilotID(c))
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(http.StatusOK).JSON(order)
}

// UpdateOrderStatus advances the courier lifecycle by one step.
// @Summary Update order status
// @Accept json
// @Produce json
// @Param id path string true "Order ID"
// @Param request body StatusRequest true "Target status"
// @Success 200 {object} domain.Order
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /orders/{id}/status [patch]
func (h *OrderHandler) UpdateOrderStatus(c *fiber.Ctx) error {
	var req StatusRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(http.StatusBadRequest).JSON(ErrorResponse{
			Message: "Invalid request body",
			RayID:   rayID(c),
		})
	}

	order, err := h.service.UpdateStatus(c.Context(), c.Params("id"), req.Status)
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(http.StatusOK).JSON(order)
}

// AdminUpdateOrderStatus forces an order into an admin-assignable state.
// @Summary Force order status (admin)
// @Accept json
// @Produce json
// @Param id path string true "Order ID"
// @Param request body StatusRequest true "Target status"
// @Success 200 {object} domain.Order
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /orders/{id}/adminorderstatus [put]
func (h *OrderHandler) AdminUpdateOrderStatus(c *fiber.Ctx) error {
	var req StatusRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(http.StatusBadRequest).JSON(ErrorResponse{
			Message: "Invalid request body",
			RayID:   rayID(c),
		})
	}

	order, err := h.service.AdminUpdateStatus(c.Context(), c.Params("id"), req.Status)
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(http.StatusOK).JSON(order)
}

// GetPilotOrders lists the orders a pilot currently holds.
// @Summary List a pilot's orders
// @Produce json
// @Param pilotId path string true "Pilot ID"
// @Success 200 {array} domain.Order
// @Router /orders/pilot/{pilotId} [get]
func (h *OrderHandler) GetPilotOrders(c *fiber.Ctx) error {
	orders, err := h.service.ListByCourier(c.Context(), c.Params("pilotId"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(http.StatusOK).JSON(orders)
}

// GetUserOrders lists a buyer's order history.
// @Summary List a buyer's orders
// @Produce json
// @Param userId path string true "User ID"
// @Success 200 {array} domain.Order
// @Router /orders/user/{userId} [get]
func (h *OrderHandler) GetUserOrders(c *fiber.Ctx) error {
	orders, err := h.service.ListByBuyer(c.Context(), c.Params("userId"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(http.StatusOK).JSON(orders)
}
