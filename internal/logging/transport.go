package logging

import (
	"net/http"
	"time"
)

// Transport is an http.RoundTripper that logs outbound requests and
// propagates the assembly id as X-Request-ID.
type Transport struct {
	// Base is the underlying transport. http.DefaultTransport is used when nil.
	Base http.RoundTripper
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}

	ctx := req.Context()
	if id := GetAssemblyID(ctx); id != "" && req.Header.Get("X-Request-ID") == "" {
		req = req.Clone(ctx)
		req.Header.Set("X-Request-ID", id)
	}

	start := time.Now()
	resp, err := base.RoundTrip(req)
	duration := time.Since(start)

	if err != nil {
		LoggerFromContext(ctx).Warn("http_request_failed",
			"method", req.Method,
			"url", req.URL.String(),
			"duration_ms", duration.Milliseconds(),
			"error", err.Error(),
		)
		return nil, err
	}
	HTTPRequestContext(ctx, req.Method, req.URL.String(), resp.StatusCode, duration)
	return resp, nil
}

// NewClient returns an http.Client that logs through Transport.
func NewClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout:   timeout,
		Transport: &Transport{},
	}
}
