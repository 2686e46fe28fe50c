package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/party-admin-service/internal/api/dto"
	"github.com/spec-kit/party-admin-service/internal/auth"
	"github.com/spec-kit/party-admin-service/internal/service"

	apperrors "github.com/spec-kit/party-admin-service/pkg/util"
)

// ProfileHandler exposes self-service account endpoints.
type ProfileHandler struct {
	accounts *service.AccountService
}

// NewProfileHandler constructs the handler.
func NewProfileHandler(accounts *service.AccountService) *ProfileHandler {
	return &ProfileHandler{accounts: accounts}
}

// Get handles GET /api/profile.
func (h *ProfileHandler) Get(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}

	profile, err := h.accounts.GetProfile(c.UserContext(), principal.UserID)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"user":      dto.FromUser(&profile.User),
		"createdBy": profile.CreatedByInfo,
		"updatedBy": profile.UpdatedByInfo,
	})
}

// Update handles PUT /api/profile.
func (h *ProfileHandler) Update(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}

	var req dto.UpdateProfileRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	user, err := h.accounts.UpdateProfile(c.UserContext(), principal.UserID, service.ProfileUpdateInput{
		Name:     req.Name,
		Phone:    req.Phone,
		PhotoURL: req.PhotoURL,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"user": dto.FromUser(user)})
}

// ChangePassword handles PUT /api/profile/password.
func (h *ProfileHandler) ChangePassword(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}

	var req dto.ChangePasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	if err := h.accounts.ChangePassword(c.UserContext(), principal.UserID, req.CurrentPassword, req.NewPassword); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "password updated"})
}
