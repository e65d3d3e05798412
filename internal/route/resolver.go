// Package route maps inbound proxy paths to backend URLs.
package route

import (
	"errors"
	"fmt"
	"strings"

	"martus-proxy/internal/model"
	"martus-proxy/internal/registry"
)

// ErrMalformedPath is returned when a path does not carry a version prefix
// followed by a service identifier.
var ErrMalformedPath = errors.New("malformed proxy path")

// minSegments covers the leading empty segment, the version and the service id.
const minSegments = 3

// Resolver turns /{version}/{service}/{resource...} paths into backend URLs.
type Resolver struct {
	registry *registry.Registry
	version  string
	self     string
}

// NewResolver creates a Resolver. selfURL is the proxy's own externally
// reachable address, used as the base for unregistered services.
func NewResolver(reg *registry.Registry, version, selfURL string) (*Resolver, error) {
	if version == "" || strings.Contains(version, "/") {
		return nil, fmt.Errorf("invalid version prefix %q", version)
	}
	self, err := registry.NormalizeBase(selfURL)
	if err != nil {
		return nil, fmt.Errorf("proxy address: %w", err)
	}
	return &Resolver{registry: reg, version: version, self: self}, nil
}

// Version returns the path prefix segment this resolver accepts.
func (r *Resolver) Version() string {
	return r.version
}

// Resolve splits path on "/" and builds the backend URL from the service's
// base address and the remaining segments, rejoined unchanged.
func (r *Resolver) Resolve(path string) (model.Target, error) {
	segments := strings.Split(path, "/")
	if len(segments) < minSegments || segments[0] != "" || segments[1] != r.version || segments[2] == "" {
		return model.Target{}, fmt.Errorf("%w: %q", ErrMalformedPath, path)
	}

	id := segments[2]
	resource := strings.Join(segments[3:], "/")

	base, ok := r.registry.Lookup(id)
	if !ok {
		return model.Target{Service: id, URL: r.self + resource}, nil
	}
	return model.Target{Service: id, URL: base + resource, Known: true}, nil
}
