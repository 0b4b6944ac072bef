package testutil

import (
	"context"
	"net/http"
	"time"

	id "attest/pkg/domain"
	"attest/pkg/requestcontext"
)

// WithCaller adds an authenticated caller to the request context.
// This simulates what the auth middleware would do for authenticated requests.
// If the identity does not parse, it will not be added to the context.
func WithCaller(req *http.Request, caller string) *http.Request {
	if parsed, err := id.ParseIdentity(caller); err == nil {
		return req.WithContext(requestcontext.WithCaller(req.Context(), parsed))
	}
	return req
}

// CallerContext returns ctx carrying caller and a fixed request time.
// Invalid identities are silently ignored.
func CallerContext(ctx context.Context, caller string, now time.Time) context.Context {
	if parsed, err := id.ParseIdentity(caller); err == nil {
		ctx = requestcontext.WithCaller(ctx, parsed)
	}
	return requestcontext.WithTime(ctx, now)
}

// WithContextValue adds an arbitrary key-value pair to the request context.
func WithContextValue(req *http.Request, key, value any) *http.Request {
	ctx := context.WithValue(req.Context(), key, value)
	return req.WithContext(ctx)
}
