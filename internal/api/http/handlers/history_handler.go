package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/party-admin-service/internal/service"

	apperrors "github.com/spec-kit/party-admin-service/pkg/util"
)

// HistoryHandler exposes the audit history endpoint.
type HistoryHandler struct {
	audit *service.AuditService
}

// NewHistoryHandler constructs the handler.
func NewHistoryHandler(audit *service.AuditService) *HistoryHandler {
	return &HistoryHandler{audit: audit}
}

// List handles GET /api/admin/history. Filters: userId, action, startDate,
// endDate (inclusive, YYYY-MM-DD), limit, offset.
func (h *HistoryHandler) List(c *fiber.Ctx) error {
	query := service.AuditQuery{
		UserID: c.Query("userId"),
		Action: c.Query("action"),
		Limit:  c.QueryInt("limit"),
		Offset: c.QueryInt("offset"),
	}

	start, err := parseDate(c.Query("startDate"))
	if err != nil {
		return apperrors.NewValidationError("invalid startDate", nil)
	}
	query.StartDate = start

	end, err := parseDate(c.Query("endDate"))
	if err != nil {
		return apperrors.NewValidationError("invalid endDate", nil)
	}
	query.EndDate = end

	page, err := h.audit.Query(c.UserContext(), query)
	if err != nil {
		return err
	}
	return c.JSON(page)
}

func parseDate(value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
