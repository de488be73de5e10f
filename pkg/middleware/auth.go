package middleware

import (
	"net/http"
	"strings"

	"github.com/craftwork-crm/craftwork/pkg/auth"
	"github.com/craftwork-crm/craftwork/pkg/contextkeys"
	"github.com/craftwork-crm/craftwork/pkg/httputil"
	"github.com/craftwork-crm/craftwork/pkg/observability"
	"github.com/craftwork-crm/craftwork/pkg/sessions"
	"github.com/craftwork-crm/craftwork/pkg/users"
)

// AuthMiddleware resolves bearer tokens to identities. The token maps to a
// session in Redis and the session to a user row, so a forced logout or a
// deactivation is effective on the very next request.
type AuthMiddleware struct {
	sessions *sessions.Store
	users    users.Service
	metrics  *observability.Metrics
}

// NewAuthMiddleware creates a new authentication middleware
func NewAuthMiddleware(sessionStore *sessions.Store, userService users.Service, metrics *observability.Metrics) *AuthMiddleware {
	return &AuthMiddleware{
		sessions: sessionStore,
		users:    userService,
		metrics:  metrics,
	}
}

// Handler wraps an HTTP handler with authentication
func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Format: "Bearer <token>"
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			m.reject(w, "missing_header", "missing authorization header")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			m.reject(w, "malformed_header", "invalid authorization header format")
			return
		}

		session, err := m.sessions.Get(r.Context(), parts[1])
		if err == sessions.ErrSessionNotFound {
			m.reject(w, "invalid_token", "invalid or expired token")
			return
		}
		if err != nil {
			observability.FromContext(r.Context()).WithError(err).Error("session lookup failed")
			httputil.WriteInternalError(w)
			return
		}

		user, err := m.users.GetByID(r.Context(), session.UserID)
		if err == users.ErrNotFound {
			m.reject(w, "unknown_user", "invalid or expired token")
			return
		}
		if err != nil {
			observability.FromContext(r.Context()).WithError(err).Error("user lookup failed")
			httputil.WriteInternalError(w)
			return
		}
		if !user.IsActive {
			m.reject(w, "inactive_user", "account is deactivated")
			return
		}

		identity := user.Identity()
		identity.SessionID = session.ID

		ctx := contextkeys.WithIdentity(r.Context(), identity)
		ctx = contextkeys.WithUserID(ctx, identity.UserID)
		ctx = contextkeys.WithSessionID(ctx, session.ID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *AuthMiddleware) reject(w http.ResponseWriter, reason, message string) {
	if m.metrics != nil {
		m.metrics.AuthFailuresTotal.WithLabelValues(reason).Inc()
	}
	httputil.WriteUnauthorized(w, message)
}

// GetIdentity extracts the authenticated identity from the request context.
// Nil means unauthenticated.
func GetIdentity(r *http.Request) *auth.Identity {
	identity, ok := r.Context().Value(contextkeys.IdentityKey).(*auth.Identity)
	if !ok {
		return nil
	}
	return identity
}
