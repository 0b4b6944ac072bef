package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	id "attest/pkg/domain"
	dErrors "attest/pkg/domain-errors"
	"attest/pkg/platform/httputil"
	"attest/pkg/requestcontext"
)

// CallerValidator resolves a bearer token to the principal it was issued for.
type CallerValidator interface {
	Caller(tokenString string) (id.Identity, error)
}

const bearerPrefix = "Bearer "

// RequireCaller rejects requests without a valid bearer token and places the
// caller identity in the request context.
func RequireCaller(validator CallerValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			requestID := requestcontext.RequestID(ctx)

			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), bearerPrefix)
			if !ok {
				logger.WarnContext(ctx, "unauthorized access - missing token",
					"request_id", requestID,
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "Missing or invalid Authorization header"))
				return
			}

			caller, err := validator.Caller(token)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"error", err,
					"request_id", requestID,
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "Invalid or expired token"))
				return
			}

			next.ServeHTTP(w, r.WithContext(requestcontext.WithCaller(ctx, caller)))
		})
	}
}

// OptionalCaller attaches the caller when a valid bearer token is present.
// Requests without a token pass through anonymously; a malformed or expired
// token is still rejected.
func OptionalCaller(validator CallerValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	required := RequireCaller(validator, logger)
	return func(next http.Handler) http.Handler {
		withCaller := required(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") == "" {
				next.ServeHTTP(w, r)
				return
			}
			withCaller.ServeHTTP(w, r)
		})
	}
}
