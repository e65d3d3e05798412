// Package handler contains the HTTP handlers and route wiring.
package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"martus-proxy/internal/config"
	"martus-proxy/internal/metrics"
	"martus-proxy/internal/middleware"
)

// ProxyMethods are the methods relayed under the version prefix.
var ProxyMethods = []string{
	http.MethodGet,
	http.MethodPost,
	http.MethodPut,
	http.MethodPatch,
	http.MethodDelete,
}

// RegisterRoutes wires all route handlers onto the Echo instance.
// m may be nil, in which case no metrics endpoint is exposed.
func RegisterRoutes(e *echo.Echo, cfg *config.Config, proxy *ProxyHandler, health *HealthHandler, m *metrics.Metrics) {
	e.GET("/health", health.Health, middleware.SecurityHeaders())
	e.GET("/proxy/status", health.Status, middleware.SecurityHeaders())
	e.Match(ProxyMethods, "/"+cfg.Routing.Version+"/*", proxy.Handle)

	if m != nil && !cfg.Metrics.Disabled {
		e.GET(cfg.Metrics.Path, echo.WrapHandler(promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})))
	}
}
