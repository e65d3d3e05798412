// Package service implements the core proxy forwarding logic.
package service

import (
	"errors"
	"fmt"
	"log/slog"

	"martus-proxy/internal/client"
	"martus-proxy/internal/config"
	"martus-proxy/internal/model"
	"martus-proxy/internal/route"
)

// ErrUnknownService is returned when the path names a service that is not
// registered and the proxy is not configured to bounce such requests off itself.
var ErrUnknownService = errors.New("unknown service")

// Forwarder resolves inbound requests to backends and relays them unchanged.
type Forwarder struct {
	client      *client.BackendClient
	resolver    *route.Resolver
	logger      *slog.Logger
	selfForward bool
}

// NewForwarder creates a Forwarder.
func NewForwarder(c *client.BackendClient, r *route.Resolver, cfg *config.Config, logger *slog.Logger) *Forwarder {
	return &Forwarder{
		client:      c,
		resolver:    r,
		logger:      logger.With("component", "forwarder"),
		selfForward: cfg.Routing.UnknownService == config.UnknownSelf,
	}
}

// Forward sends a ProxyRequest to the backend that owns its path and returns
// the backend response. The caller is responsible for closing the response body.
//
// Method, headers (every key and value, in order), Host and body are passed
// through as received; nothing is added or stripped.
func (f *Forwarder) Forward(pr *model.ProxyRequest) (*model.ProxyResponse, error) {
	target, err := f.resolver.Resolve(pr.Path)
	if err != nil {
		return nil, err
	}
	if !target.Known && !f.selfForward {
		return nil, fmt.Errorf("%w: %q", ErrUnknownService, target.Service)
	}

	url := target.URL
	if pr.RawQuery != "" {
		url += "?" + pr.RawQuery
	}

	f.logger.Debug("forwarding request",
		"method", pr.Method,
		"path", pr.Path,
		"service", target.Service,
		"known", target.Known,
	)

	resp, err := f.client.DoStream(pr.Ctx, client.Outbound{
		Service:       target.Service,
		Method:        pr.Method,
		URL:           url,
		Host:          pr.Host,
		Header:        pr.Header.Clone(),
		Body:          pr.Body,
		ContentLength: pr.ContentLength,
	})
	if err != nil {
		return nil, fmt.Errorf("forward to %s: %w", target.Service, err)
	}
	return resp, nil
}
