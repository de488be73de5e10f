package api

import (
	"net/http"
	"strconv"

	"github.com/craftwork-crm/craftwork/pkg/audit"
	"github.com/craftwork-crm/craftwork/pkg/httputil"
	"github.com/craftwork-crm/craftwork/pkg/middleware"
	"github.com/craftwork-crm/craftwork/pkg/observability"
	"github.com/craftwork-crm/craftwork/pkg/roles"
	"github.com/craftwork-crm/craftwork/pkg/users"
)

// UserHandlers handles user administration requests
type UserHandlers struct {
	deps Dependencies
}

// NewUserHandlers creates a new UserHandlers
func NewUserHandlers(deps Dependencies) *UserHandlers {
	return &UserHandlers{deps: deps}
}

// CreateUser creates a new user with a home organization membership
func (h *UserHandlers) CreateUser(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r)

	var req users.CreateUserRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.Email == "" || req.Password == "" || req.HomeOrgID <= 0 {
		httputil.WriteValidationError(w, "email, password, and home_org_id are required")
		return
	}
	if req.PlatformRole != "" && !req.PlatformRole.Valid() {
		httputil.WriteValidationError(w, "unknown platform role")
		return
	}

	user, err := h.deps.Users.Create(r.Context(), identity, &req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httputil.WriteCreated(w, user)
}

// GetUser retrieves a user. Callers may read themselves; reading others
// requires a platform role of at least ORG_ADMIN.
func (h *UserHandlers) GetUser(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r)
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	if id != identity.UserID && !identity.IsSuperAdmin() &&
		!roles.MeetsMinimumPlatform(identity.PlatformRole, roles.PlatformOrgAdmin) {
		httputil.WriteErrorCode(w, http.StatusForbidden, httputil.CodePermissionDenied, "permission denied")
		return
	}

	user, err := h.deps.Users.GetByID(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httputil.WriteSuccess(w, user)
}

// ListUsers lists users of the caller's effective organization
func (h *UserHandlers) ListUsers(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r)
	ec := middleware.GetEffectiveContext(r)
	if ec == nil || !ec.IsScoped() {
		middleware.WriteSelectionRequired(w, r, identity, h.deps.Orgs)
		return
	}

	list, err := h.deps.Users.ListByOrg(r.Context(), identity, *ec.OrganizationID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httputil.WriteSuccess(w, list)
}

// UpdatePlatformRoleRequest is the platform role change payload
type UpdatePlatformRoleRequest struct {
	PlatformRole roles.PlatformRole `json:"platform_role"`
}

// UpdatePlatformRole changes a user's platform role
func (h *UserHandlers) UpdatePlatformRole(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r)
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	var req UpdatePlatformRoleRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !req.PlatformRole.Valid() {
		httputil.WriteValidationError(w, "unknown platform role")
		return
	}

	if err := h.deps.Users.UpdatePlatformRole(r.Context(), identity, id, req.PlatformRole); err != nil {
		writeServiceError(w, r, err)
		return
	}

	httputil.WriteNoContent(w)
}

// ChangePasswordRequest is the password change payload. CurrentPassword is
// required for self-service changes and ignored for admin resets.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password,omitempty"`
	NewPassword     string `json:"new_password"`
}

// ChangePassword updates a user's password and revokes every live session so
// stolen tokens die with the old credential.
func (h *UserHandlers) ChangePassword(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r)
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	var req ChangePasswordRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.NewPassword, "new_password") {
		return
	}

	if err := h.deps.Users.ChangePassword(r.Context(), identity, id, req.CurrentPassword, req.NewPassword); err != nil {
		writeServiceError(w, r, err)
		return
	}

	h.revokeSessions(w, r, id)
	httputil.WriteNoContent(w)
}

// DeactivateUser deactivates a user and revokes every live session, so the
// account stops working on the very next request.
func (h *UserHandlers) DeactivateUser(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r)
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	if err := h.deps.Users.Deactivate(r.Context(), identity, id); err != nil {
		writeServiceError(w, r, err)
		return
	}

	h.revokeSessions(w, r, id)
	httputil.WriteNoContent(w)
}

// ForceLogout revokes every live session of a user
func (h *UserHandlers) ForceLogout(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r)
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	if id != identity.UserID && !identity.IsSuperAdmin() &&
		!roles.MeetsMinimumPlatform(identity.PlatformRole, roles.PlatformOrgAdmin) {
		httputil.WriteErrorCode(w, http.StatusForbidden, httputil.CodePermissionDenied, "permission denied")
		return
	}

	revoked := h.revokeSessions(w, r, id)
	httputil.WriteSuccess(w, map[string]interface{}{"sessions_revoked": revoked})
}

func (h *UserHandlers) revokeSessions(w http.ResponseWriter, r *http.Request, userID int64) int {
	revoked, err := h.deps.Sessions.DeleteAllForUser(r.Context(), userID)
	if err != nil {
		observability.FromContext(r.Context()).WithError(err).Error("session revocation failed")
		return 0
	}

	if h.deps.Metrics != nil {
		h.deps.Metrics.SessionsRevoked.Add(float64(revoked))
	}

	event := audit.NewEvent(r.Context(), r, audit.EventTypeForceLogout, audit.EventStatusSuccess)
	event.TargetUserID = &userID
	event.TargetID = strconv.FormatInt(userID, 10)
	event.Metadata["sessions_revoked"] = revoked
	if err := h.deps.Audit.Log(r.Context(), event); err != nil && h.deps.Logger != nil {
		h.deps.Logger.WithError(err).Warn("failed to write audit event")
	}

	return revoked
}
