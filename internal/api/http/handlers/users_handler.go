package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/party-admin-service/internal/api/dto"
	"github.com/spec-kit/party-admin-service/internal/auth"
	"github.com/spec-kit/party-admin-service/internal/service"

	apperrors "github.com/spec-kit/party-admin-service/pkg/util"
)

// UsersHandler exposes the admin account management endpoints.
type UsersHandler struct {
	accounts *service.AccountService
}

// NewUsersHandler constructs the handler.
func NewUsersHandler(accounts *service.AccountService) *UsersHandler {
	return &UsersHandler{accounts: accounts}
}

func actorFrom(c *fiber.Ctx) (service.Actor, error) {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return service.Actor{}, apperrors.NewUnauthorized("authentication required")
	}
	return service.Actor{ID: principal.UserID, Name: principal.Name}, nil
}

// List handles GET /api/admin/users.
func (h *UsersHandler) List(c *fiber.Ctx) error {
	users, err := h.accounts.ListUsers(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"users": dto.FromUsers(users)})
}

// Create handles POST /api/admin/users.
func (h *UsersHandler) Create(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}

	var req dto.CreateUserRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	result, err := h.accounts.CreateUser(c.UserContext(), actor, service.CreateUserInput{
		Name:                  req.Name,
		Email:                 req.Email,
		Password:              req.Password,
		IsAdmin:               req.IsAdmin,
		SkipEmailConfirmation: req.SkipEmailConfirmation,
	})
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(dto.CreatedUserResponse{
		User:              dto.FromUser(result.User),
		GeneratedPassword: result.GeneratedPassword,
	})
}

// Update handles PUT /api/admin/users/:id.
func (h *UsersHandler) Update(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}

	var req dto.UpdateUserRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	user, err := h.accounts.UpdateUser(c.UserContext(), actor, c.Params("id"), service.UpdateUserInput{
		Name:           req.Name,
		Email:          req.Email,
		IsAdmin:        req.IsAdmin,
		EmailConfirmed: req.EmailConfirmed,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"user": dto.FromUser(user)})
}

// Delete handles DELETE /api/admin/users/:id.
func (h *UsersHandler) Delete(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}

	if err := h.accounts.DeleteUser(c.UserContext(), actor, c.Params("id")); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "user deleted"})
}
