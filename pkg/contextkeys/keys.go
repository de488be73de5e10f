// Package contextkeys provides centralized context key definitions
//
// IMPORTANT: All context keys used across the application must be defined here.
// This prevents typos, documents dependencies, and makes key usage discoverable.
package contextkeys

import "context"

// Key is the type for context keys to prevent collisions
type Key string

const (
	// IdentityKey contains *auth.Identity
	// Set by: middleware.AuthMiddleware (pkg/middleware/auth.go)
	// Required by: all authenticated endpoints
	// Type: *auth.Identity
	IdentityKey Key = "identity"

	// EffectiveContextKey contains *tenantctx.EffectiveContext
	// Set by: middleware.ContextMiddleware (pkg/middleware/tenant.go)
	// Required by: org-scoped endpoints
	// Type: *tenantctx.EffectiveContext
	EffectiveContextKey Key = "effective_context"

	// RequestIDKey contains request ID string (UUID)
	// Set by: middleware.RequestID
	// Used by: logger, audit trail, tracing
	// Type: string
	RequestIDKey Key = "request_id"

	// UserIDKey contains user ID
	// Set by: middleware.AuthMiddleware after authentication
	// Used by: logger, audit trail
	// Type: int64
	UserIDKey Key = "user_id"

	// SessionIDKey contains the session ID string
	// Set by: middleware.AuthMiddleware
	// Used by: audit trail, forced logout
	// Type: string
	SessionIDKey Key = "session_id"

	// LoggerKey contains *observability.Logger
	// Set by: middleware.RequestID
	// Used by: handlers that need structured logging with request context
	// Type: *observability.Logger
	LoggerKey Key = "logger"
)

// Helper functions for type-safe context operations

// WithIdentity adds the authenticated identity to the context
func WithIdentity(ctx context.Context, identity interface{}) context.Context {
	return context.WithValue(ctx, IdentityKey, identity)
}

// WithEffectiveContext adds the resolved organization context to the context
func WithEffectiveContext(ctx context.Context, ec interface{}) context.Context {
	return context.WithValue(ctx, EffectiveContextKey, ec)
}

// WithRequestID adds request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// WithUserID adds user ID to the context
func WithUserID(ctx context.Context, userID int64) context.Context {
	return context.WithValue(ctx, UserIDKey, userID)
}

// WithSessionID adds session ID to the context
func WithSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, SessionIDKey, sessionID)
}

// WithLogger adds logger to the context
func WithLogger(ctx context.Context, logger interface{}) context.Context {
	return context.WithValue(ctx, LoggerKey, logger)
}

// GetRequestID retrieves request ID from context
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		return requestID
	}
	return ""
}

// GetUserID retrieves user ID from context. Zero means unauthenticated.
func GetUserID(ctx context.Context) int64 {
	if userID, ok := ctx.Value(UserIDKey).(int64); ok {
		return userID
	}
	return 0
}

// GetSessionID retrieves session ID from context
func GetSessionID(ctx context.Context) string {
	if sessionID, ok := ctx.Value(SessionIDKey).(string); ok {
		return sessionID
	}
	return ""
}
