package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"martus-proxy/internal/registry"
	"martus-proxy/internal/route"
)

const (
	healthMessage   = "The server is up and running!"
	notFoundMessage = "The requested resource does not exist on this server!"
)

// Version is a string type for dependency injection of the build version.
type Version string

// envelope is the body of every response the proxy produces itself.
type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func failure(msg string) envelope {
	return envelope{Success: false, Message: msg}
}

// HealthHandler serves health and status endpoints.
type HealthHandler struct {
	registry *registry.Registry
	resolver *route.Resolver
	version  Version
}

// NewHealthHandler creates a HealthHandler.
func NewHealthHandler(reg *registry.Registry, res *route.Resolver, v Version) *HealthHandler {
	return &HealthHandler{registry: reg, resolver: res, version: v}
}

// Health reports liveness. It never consults the backends.
func (h *HealthHandler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, envelope{Success: true, Message: healthMessage})
}

// Status returns proxy status information.
func (h *HealthHandler) Status(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"success":  true,
		"version":  string(h.version),
		"prefix":   "/" + h.resolver.Version(),
		"services": h.registry.IDs(),
	})
}
