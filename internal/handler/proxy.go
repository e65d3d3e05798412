package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"

	"github.com/labstack/echo/v4"

	"martus-proxy/internal/model"
	"martus-proxy/internal/route"
	"martus-proxy/internal/service"
)

// ProxyHandler forwards /{version}/{service}/... requests to backend services.
type ProxyHandler struct {
	forwarder *service.Forwarder
	logger    *slog.Logger
}

// NewProxyHandler creates a ProxyHandler.
func NewProxyHandler(f *service.Forwarder, logger *slog.Logger) *ProxyHandler {
	return &ProxyHandler{
		forwarder: f,
		logger:    logger.With("component", "proxy_handler"),
	}
}

// Handle proxies the request to its backend and streams the response back unchanged.
func (h *ProxyHandler) Handle(c echo.Context) error {
	req := c.Request()
	pr := &model.ProxyRequest{
		Ctx:           req.Context(),
		Method:        req.Method,
		Path:          req.URL.EscapedPath(),
		RawQuery:      req.URL.RawQuery,
		Host:          req.Host,
		Header:        req.Header,
		Body:          req.Body,
		ContentLength: req.ContentLength,
	}

	resp, err := h.forwarder.Forward(pr)
	if err != nil {
		return h.mapError(c, err)
	}
	defer func() { _ = resp.Body.Close() }()

	// Backend headers replace anything set earlier in the chain.
	dst := c.Response().Header()
	for key, vals := range resp.Header {
		dst[key] = vals
	}
	c.Response().WriteHeader(resp.StatusCode)

	// The status is already on the wire; a failed copy can only be logged.
	if _, err := io.Copy(c.Response(), resp.Body); err != nil {
		h.logger.Error("streaming response body",
			"err", err,
			"path", req.URL.Path,
		)
	}
	return nil
}

func (h *ProxyHandler) mapError(c echo.Context, err error) error {
	path := c.Request().URL.Path

	switch {
	case errors.Is(err, route.ErrMalformedPath):
		h.logger.Debug("malformed path", "err", err, "path", path)
		return c.JSON(http.StatusBadRequest, failure("The request path must name a service: /{version}/{service}/{resource}"))
	case errors.Is(err, service.ErrUnknownService):
		h.logger.Debug("unknown service", "err", err, "path", path)
		return c.JSON(http.StatusNotFound, failure(notFoundMessage))
	}

	h.logger.Error("proxy error", "err", err, "path", path)

	if errors.Is(err, context.DeadlineExceeded) {
		return c.JSON(http.StatusGatewayTimeout, failure("upstream request timed out"))
	}
	if errors.Is(err, context.Canceled) {
		return c.JSON(http.StatusBadGateway, failure("client disconnected"))
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return c.JSON(http.StatusGatewayTimeout, failure("upstream request timed out"))
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return c.JSON(http.StatusBadGateway, failure("upstream host unreachable"))
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return c.JSON(http.StatusBadGateway, failure("upstream connection failed"))
	}
	return c.JSON(http.StatusBadGateway, failure("upstream request failed"))
}
