package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/craftwork-crm/craftwork/pkg/audit"
	"github.com/craftwork-crm/craftwork/pkg/httputil"
	"github.com/craftwork-crm/craftwork/pkg/middleware"
	"github.com/craftwork-crm/craftwork/pkg/observability"
	"github.com/craftwork-crm/craftwork/pkg/orgs"
	"github.com/craftwork-crm/craftwork/pkg/users"
)

// AuthHandlers handles login, logout, and the current-identity endpoint
type AuthHandlers struct {
	deps Dependencies
}

// NewAuthHandlers creates a new AuthHandlers
func NewAuthHandlers(deps Dependencies) *AuthHandlers {
	return &AuthHandlers{deps: deps}
}

// LoginRequest is the login payload. OrganizationCode disambiguates an email
// registered in more than one organization.
type LoginRequest struct {
	Email            string `json:"email"`
	Password         string `json:"password"`
	OrganizationCode string `json:"organization_code,omitempty"`
}

// LoginResponse carries the bearer token. The token is shown exactly once.
type LoginResponse struct {
	Token string      `json:"token"`
	User  *users.User `json:"user"`
}

// Login authenticates a user and issues a session token
func (h *AuthHandlers) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.Email == "" || req.Password == "" {
		httputil.WriteValidationError(w, "email and password are required")
		return
	}

	var orgID *int64
	if req.OrganizationCode != "" {
		org, err := h.deps.Orgs.GetOrganizationByCode(r.Context(), req.OrganizationCode)
		if errors.Is(err, orgs.ErrOrgNotFound) {
			// Indistinguishable from a bad password on purpose.
			h.loginFailed(w, r, req.Email, "unknown organization")
			return
		}
		if err != nil {
			observability.FromContext(r.Context()).WithError(err).Error("organization lookup failed")
			httputil.WriteInternalError(w)
			return
		}
		orgID = &org.ID
	}

	user, err := h.deps.Users.Authenticate(r.Context(), req.Email, req.Password, orgID)
	switch {
	case errors.Is(err, users.ErrAmbiguousEmail):
		h.countLogin("ambiguous")
		httputil.WriteValidationError(w, "email exists in multiple organizations; provide organization_code")
		return
	case errors.Is(err, users.ErrUserInactive):
		h.loginFailed(w, r, req.Email, "account deactivated")
		return
	case errors.Is(err, users.ErrInvalidCredentials):
		h.loginFailed(w, r, req.Email, "invalid credentials")
		return
	case err != nil:
		observability.FromContext(r.Context()).WithError(err).Error("authentication failed")
		httputil.WriteInternalError(w)
		return
	}

	token, session, err := h.deps.Sessions.Create(r.Context(), user.ID)
	if err != nil {
		observability.FromContext(r.Context()).WithError(err).Error("session creation failed")
		httputil.WriteInternalError(w)
		return
	}

	event := audit.NewEvent(r.Context(), r, audit.EventTypeLogin, audit.EventStatusSuccess)
	event.ActorID = &user.ID
	event.ActorEmail = user.Email
	event.OrganizationID = &user.HomeOrgID
	event.Metadata["session_id"] = session.ID
	h.logAudit(r, event)

	h.countLogin("success")
	httputil.WriteSuccess(w, LoginResponse{Token: token, User: user})
}

// Logout revokes the session presented on this request
func (h *AuthHandlers) Logout(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r)

	authHeader := r.Header.Get("Authorization")
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) == 2 && parts[0] == "Bearer" {
		if err := h.deps.Sessions.Delete(r.Context(), parts[1]); err != nil {
			observability.FromContext(r.Context()).WithError(err).Error("session deletion failed")
			httputil.WriteInternalError(w)
			return
		}
	}

	event := audit.NewEvent(r.Context(), r, audit.EventTypeLogout, audit.EventStatusSuccess)
	if identity != nil {
		event.ActorID = &identity.UserID
		event.ActorEmail = identity.Email
	}
	h.logAudit(r, event)

	httputil.WriteNoContent(w)
}

// Me returns the authenticated identity
func (h *AuthHandlers) Me(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r)
	if identity == nil {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}
	httputil.WriteSuccess(w, identity)
}

func (h *AuthHandlers) loginFailed(w http.ResponseWriter, r *http.Request, email, reason string) {
	event := audit.NewEvent(r.Context(), r, audit.EventTypeLoginFailed, audit.EventStatusDenied)
	event.ActorEmail = email
	event.Message = reason
	h.logAudit(r, event)

	h.countLogin("failure")
	httputil.WriteUnauthorized(w, "invalid credentials")
}

func (h *AuthHandlers) countLogin(status string) {
	if h.deps.Metrics != nil {
		h.deps.Metrics.LoginsTotal.WithLabelValues(status).Inc()
	}
}

func (h *AuthHandlers) logAudit(r *http.Request, event *audit.Event) {
	if err := h.deps.Audit.Log(r.Context(), event); err != nil && h.deps.Logger != nil {
		h.deps.Logger.WithError(err).Warn("failed to write audit event")
	}
}
