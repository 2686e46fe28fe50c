package http

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/party-admin-service/internal/observability"
	apperrors "github.com/spec-kit/party-admin-service/pkg/util"
)

func newTestApp(t *testing.T) *fiber.App {
	t.Helper()
	app := fiber.New()
	RegisterMiddlewares(app, zap.NewNop(), observability.NewMetrics(), 5*time.Second)
	return app
}

func doRequest(t *testing.T, app *fiber.App, method, path string) (int, map[string]any) {
	t.Helper()
	resp, err := app.Test(httptest.NewRequest(method, path, nil))
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var body map[string]any
	require.NoError(t, json.Unmarshal(raw, &body))
	return resp.StatusCode, body
}

func TestErrorMiddlewareMapsDomainErrors(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantStatus int
		wantBody   string
	}{
		{"validation", apperrors.NewValidationError("name is required", nil), 400, "name is required"},
		{"conflict", apperrors.NewConflict("email already registered", nil), 400, "email already registered"},
		{"credentials", apperrors.NewInvalidCredentials(), 401, "invalid credentials"},
		{"unconfirmed", apperrors.NewEmailNotConfirmed(), 403, "email not confirmed"},
		{"not found", apperrors.NewNotFound("user", nil), 404, "user not found"},
		{"rate limited", apperrors.NewRateLimited("push rate limit exceeded"), 429, "push rate limit exceeded"},
		{"internal", apperrors.NewInternalError(nil), 500, "internal server error"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			app := newTestApp(t)
			app.Get("/boom", func(c *fiber.Ctx) error { return tc.err })

			status, body := doRequest(t, app, "GET", "/boom")
			assert.Equal(t, tc.wantStatus, status)
			assert.Equal(t, tc.wantBody, body["error"])
		})
	}
}

func TestErrorMiddlewareRecoversPanics(t *testing.T) {
	app := newTestApp(t)
	app.Get("/panic", func(c *fiber.Ctx) error { panic("boom") })

	status, body := doRequest(t, app, "GET", "/panic")
	assert.Equal(t, 500, status)
	assert.Equal(t, "internal server error", body["error"])
}

func TestErrorMiddlewarePassesSuccessThrough(t *testing.T) {
	app := newTestApp(t)
	app.Get("/ok", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"message": "fine"})
	})

	status, body := doRequest(t, app, "GET", "/ok")
	assert.Equal(t, 200, status)
	assert.Equal(t, "fine", body["message"])
}
