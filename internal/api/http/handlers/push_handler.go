package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/party-admin-service/internal/api/dto"
	"github.com/spec-kit/party-admin-service/internal/service"

	apperrors "github.com/spec-kit/party-admin-service/pkg/util"
)

// PushHandler exposes the push subscription endpoints.
type PushHandler struct {
	push *service.PushService
}

// NewPushHandler constructs the handler.
func NewPushHandler(push *service.PushService) *PushHandler {
	return &PushHandler{push: push}
}

// Subscribe handles POST /api/push/subscribe.
func (h *PushHandler) Subscribe(c *fiber.Ctx) error {
	var req dto.SubscribeRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	if _, err := h.push.Subscribe(c.UserContext(), req.Endpoint, req.Keys.P256dh, req.Keys.Auth); err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"message": "subscribed"})
}

// Unsubscribe handles DELETE /api/push/subscribe.
func (h *PushHandler) Unsubscribe(c *fiber.Ctx) error {
	var req dto.UnsubscribeRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	if err := h.push.Unsubscribe(c.UserContext(), req.Endpoint); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "unsubscribed"})
}

// Broadcast handles POST /api/push/broadcast (admin only).
func (h *PushHandler) Broadcast(c *fiber.Ctx) error {
	var req dto.BroadcastRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.Title == "" || req.Body == "" {
		return apperrors.NewValidationError("title and body are required", nil)
	}

	result, err := h.push.Broadcast(c.UserContext(), "admin-broadcast", req.Title, req.Body, req.URL)
	if err != nil {
		return err
	}
	return c.JSON(dto.BroadcastResponse{
		Delivered: result.Delivered,
		Pruned:    result.Pruned,
		Failed:    result.Failed,
	})
}
