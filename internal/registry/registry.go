// Package registry holds the immutable mapping from service identifier to
// backend base address.
package registry

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// ErrInvalidEntry is returned by New when a service entry cannot be registered.
var ErrInvalidEntry = errors.New("invalid service entry")

// Registry maps service identifiers to normalized backend base addresses.
// It has no mutating methods; a *Registry may be shared freely between goroutines.
type Registry struct {
	bases map[string]string
}

// New validates entries and builds a Registry. Every base address is
// normalized to end with exactly one "/" so that appending a resource path
// never yields a missing or doubled separator.
func New(entries map[string]string) (*Registry, error) {
	bases := make(map[string]string, len(entries))
	for id, raw := range entries {
		if id == "" || strings.Contains(id, "/") {
			return nil, fmt.Errorf("%w: identifier %q", ErrInvalidEntry, id)
		}
		base, err := NormalizeBase(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: service %q: %w", ErrInvalidEntry, id, err)
		}
		bases[id] = base
	}
	return &Registry{bases: bases}, nil
}

// Lookup returns the base address registered for id. The second result is
// false for unknown identifiers; choosing a fallback is up to the caller.
func (r *Registry) Lookup(id string) (string, bool) {
	base, ok := r.bases[id]
	return base, ok
}

// IDs returns the registered identifiers in sorted order.
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.bases))
	for id := range r.bases {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Len returns the number of registered services.
func (r *Registry) Len() int {
	return len(r.bases)
}

// NormalizeBase checks that raw is an absolute http(s) URL without query or
// fragment and returns it with a single trailing slash.
func NormalizeBase(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse base address %q: %w", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("base address %q must use http or https", raw)
	}
	if u.Host == "" {
		return "", fmt.Errorf("base address %q has no host", raw)
	}
	if u.RawQuery != "" || u.Fragment != "" {
		return "", fmt.Errorf("base address %q must not carry a query or fragment", raw)
	}
	return strings.TrimRight(raw, "/") + "/", nil
}
