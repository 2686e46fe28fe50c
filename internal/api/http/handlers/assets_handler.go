package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/spec-kit/party-admin-service/internal/cache"
)

// AssetsHandler serves cached application assets and the cache lifecycle
// endpoints.
type AssetsHandler struct {
	manager *cache.Manager
}

// NewAssetsHandler constructs the handler.
func NewAssetsHandler(manager *cache.Manager) *AssetsHandler {
	return &AssetsHandler{manager: manager}
}

// Serve is the asset fallback for routes no API handler claimed. Cached
// entries are answered immediately; an unreachable origin with no cached
// copy yields 503.
func (h *AssetsHandler) Serve(c *fiber.Ctx) error {
	path := c.Path()
	if h.manager.Bypass(c.Method(), path) {
		return fiber.ErrNotFound
	}
	if path == "/" {
		path = "/index.html"
	}

	entry, err := h.manager.Serve(c.UserContext(), path)
	if err != nil {
		if errors.Is(err, cache.ErrUnavailable) {
			c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
			return c.Status(fiber.StatusServiceUnavailable).
				SendString("<h1>Offline</h1><p>The application is temporarily unavailable.</p>")
		}
		return err
	}

	if entry.ContentType != "" {
		c.Set(fiber.HeaderContentType, entry.ContentType)
	}
	return c.Send(entry.Body)
}

// Status handles GET /api/cache/status.
func (h *AssetsHandler) Status(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"state":   h.manager.State(),
		"version": h.manager.Version(),
		"current": h.manager.CurrentGeneration(),
	})
}

// WaitForUpdate handles GET /api/cache/updates: a long-poll that resolves
// once a generation newer than the client's reported version takes over,
// telling it to reload. A client polling on the current version just waits;
// after reloading it reports the new version, so it is never told twice.
func (h *AssetsHandler) WaitForUpdate(c *fiber.Ctx) error {
	clientID := c.Query("client")
	if clientID == "" {
		clientID = uuid.NewString()
	}

	notices := h.manager.RegisterClient(clientID, c.Query("version"))
	defer h.manager.UnregisterClient(clientID)

	select {
	case notice := <-notices:
		return c.JSON(fiber.Map{"reload": true, "version": notice.Version})
	case <-c.UserContext().Done():
		return c.JSON(fiber.Map{"reload": false})
	}
}
