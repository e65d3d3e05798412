// Package model defines shared types for the proxy.
package model

import (
	"context"
	"io"
	"net/http"
)

// ProxyRequest represents an inbound request to be forwarded to a backend.
type ProxyRequest struct {
	Ctx           context.Context
	Method        string
	Path          string // escaped path as received, e.g. /v1/student/courses/42
	RawQuery      string
	Host          string
	Header        http.Header
	Body          io.ReadCloser
	ContentLength int64
}

// ProxyResponse represents the backend response to be streamed back.
type ProxyResponse struct {
	StatusCode int
	Header     http.Header
	Body       io.ReadCloser
}

// Target is the backend location resolved for one inbound path.
type Target struct {
	Service string
	URL     string
	// Known is false when Service is not registered and URL points back at
	// the proxy itself.
	Known bool
}
