package handler

import (
	"errors"
	"net/http"

	"cakeshop-dispatch/internal/core/config"
	"cakeshop-dispatch/internal/core/logger"
	"cakeshop-dispatch/internal/features/notifications/domain"
	"cakeshop-dispatch/internal/features/notifications/ports"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// NotificationHandler handles push subscription registration.
type NotificationHandler struct {
	subs ports.SubscriptionRepository
	cfg  config.PushConfig
}

// NewNotificationHandler creates a new instance of NotificationHandler.
func NewNotificationHandler(subs ports.SubscriptionRepository, cfg config.PushConfig) *NotificationHandler {
	return &NotificationHandler{
		subs: subs,
		cfg:  cfg,
	}
}

// ErrorResponse represents the structure of an error response.
type ErrorResponse struct {
	// Message is the error description.
	Message string `json:"message"`
	// RayID is the unique request identifier for debugging.
	RayID string `json:"ray_id"`
}

// SubscribeRequest is the browser push subscription to register.
type SubscribeRequest struct {
	Endpoint string                  `json:"endpoint"`
	Keys     domain.SubscriptionKeys `json:"keys"`
	User     string                  `json:"user"`
}

// PublicKeyResponse carries the VAPID public key browsers subscribe with.
type PublicKeyResponse struct {
	PublicKey string `json:"publicKey"`
}

func rayID(c *fiber.Ctx) string {
	id, ok := c.Locals("requestid").(string)
	if !ok {
		return "unknown"
	}
	return id
}

// Subscribe registers a browser push subscription.
// @Summary Register a push subscription
// @Accept json
// @Produce json
// @Param subscription body SubscribeRequest true "Browser push subscription"
// @Success 201 {object} domain.PushSubscription
// @Failure 400 {object} ErrorResponse
// @Router /notifications/subscribe [post]
func (h *NotificationHandler) Subscribe(c *fiber.Ctx) error {
	var req SubscribeRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(http.StatusBadRequest).JSON(ErrorResponse{
			Message: "Invalid request body",
			RayID:   rayID(c),
		})
	}

	sub := &domain.PushSubscription{
		Endpoint: req.Endpoint,
		Keys:     req.Keys,
		User:     req.User,
	}

	if err := h.subs.Save(c.Context(), sub); err != nil {
		if errors.Is(err, domain.ErrInvalidSubscription) {
			return c.Status(http.StatusBadRequest).JSON(ErrorResponse{
				Message: err.Error(),
				RayID:   rayID(c),
			})
		}
		logger.Get().Error("Failed to save push subscription",
			zap.String("ray_id", rayID(c)),
			zap.Error(err),
		)
		return c.Status(http.StatusInternalServerError).JSON(ErrorResponse{
			Message: "Internal Server Error",
			RayID:   rayID(c),
		})
	}

	return c.Status(http.StatusCreated).JSON(sub)
}

// PublicKey returns the VAPID public key browsers need to subscribe.
// @Summary Get the Web Push public key
// @Produce json
// @Success 200 {object} PublicKeyResponse
// @Failure 404 {object} ErrorResponse
// @Router /notifications/publickey [get]
func (h *NotificationHandler) PublicKey(c *fiber.Ctx) error {
	if !h.cfg.Enabled() {
		return c.Status(http.StatusNotFound).JSON(ErrorResponse{
			Message: "Push notifications are not configured",
			RayID:   rayID(c),
		})
	}
	return c.Status(http.StatusOK).JSON(PublicKeyResponse{
		PublicKey: h.cfg.VAPIDPublicKey,
	})
}
