// Package middleware provides the HTTP middleware chain: request IDs,
// bearer authentication, organization context resolution, metrics, and
// panic recovery.
package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/craftwork-crm/craftwork/pkg/contextkeys"
	"github.com/craftwork-crm/craftwork/pkg/observability"
)

// RequestIDHeader carries the request ID in responses, and accepts one from
// trusted upstream proxies.
const RequestIDHeader = "X-Request-ID"

// RequestID assigns each request an ID and attaches a request-scoped logger.
func RequestID(logger *observability.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get(RequestIDHeader)
			if requestID == "" {
				requestID = uuid.NewString()
			}

			w.Header().Set(RequestIDHeader, requestID)

			ctx := contextkeys.WithRequestID(r.Context(), requestID)
			ctx = contextkeys.WithLogger(ctx, logger)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
