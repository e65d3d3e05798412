// Package client provides the outbound HTTP client used to reach backend services.
package client

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"martus-proxy/internal/config"
	"martus-proxy/internal/metrics"
	"martus-proxy/internal/model"
)

// BackendClient sends proxied requests to backend services.
type BackendClient struct {
	httpClient *http.Client
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

// NewBackendClient creates a BackendClient with a bounded per-request timeout.
// The metrics parameter is optional; pass nil to disable upstream metrics recording.
func NewBackendClient(cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) *BackendClient {
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        cfg.Upstream.IdleConnections,
		MaxIdleConnsPerHost: cfg.Upstream.IdleConnections,
		IdleConnTimeout:     90 * time.Second,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout: 10 * time.Second,
		// Relay bodies exactly as the backend encoded them.
		DisableCompression: true,
	}

	return &BackendClient{
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   time.Duration(cfg.Upstream.TimeoutSeconds) * time.Second,
			// Redirects belong to the caller.
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		logger:  logger.With("component", "backend_client"),
		metrics: m,
	}
}

// Do executes req against the backend named service and returns the raw response.
// The caller is responsible for closing the response body.
func (c *BackendClient) Do(service string, req *http.Request) (*model.ProxyResponse, error) {
	c.logger.Debug("backend request",
		"service", service,
		"method", req.Method,
		"url", req.URL.Redacted(),
	)

	start := time.Now()
	resp, err := c.httpClient.Do(req) //nolint:bodyclose // body ownership transfers to caller via ProxyResponse
	duration := time.Since(start).Seconds()
	method := metrics.NormalizeMethod(req.Method)

	if c.metrics != nil {
		c.metrics.UpstreamDuration.WithLabelValues(service, method).Observe(duration)
	}
	if err != nil {
		if c.metrics != nil {
			c.metrics.UpstreamFailures.WithLabelValues(service, method).Inc()
		}
		return nil, fmt.Errorf("backend request: %w", err)
	}
	if c.metrics != nil {
		c.metrics.UpstreamResponses.WithLabelValues(service, method, strconv.Itoa(resp.StatusCode)).Inc()
	}

	return &model.ProxyResponse{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       resp.Body,
	}, nil
}

// Outbound describes a request to send to a backend.
type Outbound struct {
	Service       string
	Method        string
	URL           string
	Host          string // sent as the Host header when non-empty
	Header        http.Header
	Body          io.Reader
	ContentLength int64
}

// DoStream builds the outbound request and executes it. The response body is
// returned as a stream; the caller must close it.
// The provided context controls the lifetime of the backend request:
// when the context is canceled (e.g. client disconnects), the backend
// request is also canceled.
func (c *BackendClient) DoStream(ctx context.Context, out Outbound) (*model.ProxyResponse, error) {
	req, err := http.NewRequestWithContext(ctx, out.Method, out.URL, out.Body)
	if err != nil {
		return nil, fmt.Errorf("build backend request: %w", err)
	}
	req.Header = out.Header
	if req.Header == nil {
		req.Header = make(http.Header)
	}
	if _, ok := req.Header["User-Agent"]; !ok {
		// A nil value suppresses net/http's default User-Agent.
		req.Header["User-Agent"] = nil
	}
	if out.Host != "" {
		req.Host = out.Host
	}
	if out.Body != nil && out.Body != http.NoBody {
		req.ContentLength = out.ContentLength
		if req.ContentLength == 0 {
			// Unknown length from the inbound side; let the transport chunk it.
			req.ContentLength = -1
		}
	}
	return c.Do(out.Service, req)
}
