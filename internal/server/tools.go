package server

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/mohammad-safakhou/dockagent/internal/capability"
)

// ToolsHandler exposes the capability registry.
type ToolsHandler struct {
	Registry *capability.Registry
}

func (h *ToolsHandler) Register(g *echo.Group, secret []byte) {
	g.Use(authMiddleware(secret))
	g.GET("", h.list)
}

func (h *ToolsHandler) list(c echo.Context) error {
	var categories []capability.Category
	if raw := c.QueryParam("category"); raw != "" {
		categories = append(categories, capability.Category(strings.ToLower(strings.TrimSpace(raw))))
	}
	return c.JSON(http.StatusOK, h.Registry.List(categories...))
}
