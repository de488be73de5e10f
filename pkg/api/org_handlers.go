package api

import (
	"net/http"

	"github.com/craftwork-crm/craftwork/pkg/httputil"
	"github.com/craftwork-crm/craftwork/pkg/middleware"
	"github.com/craftwork-crm/craftwork/pkg/observability"
	"github.com/craftwork-crm/craftwork/pkg/orgs"
	"github.com/craftwork-crm/craftwork/pkg/roles"
)

// OrgHandlers handles organization administration requests
type OrgHandlers struct {
	deps Dependencies
}

// NewOrgHandlers creates a new OrgHandlers
func NewOrgHandlers(deps Dependencies) *OrgHandlers {
	return &OrgHandlers{deps: deps}
}

// CreateOrganization creates a new organization
func (h *OrgHandlers) CreateOrganization(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r)

	var req orgs.CreateOrgRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.Name, "name") {
		return
	}

	org, err := h.deps.Orgs.CreateOrganization(r.Context(), identity, &req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httputil.WriteCreated(w, org)
}

// ListOrganizations lists the organizations the caller can access
func (h *OrgHandlers) ListOrganizations(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r)

	infos, err := h.deps.Orgs.ListAccessible(r.Context(), identity.UserID)
	if err != nil {
		observability.FromContext(r.Context()).WithError(err).Error("listing organizations failed")
		httputil.WriteInternalError(w)
		return
	}

	httputil.WriteSuccess(w, infos)
}

// GetOrganization retrieves an organization by ID
func (h *OrgHandlers) GetOrganization(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	org, err := h.deps.Orgs.GetOrganization(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httputil.WriteSuccess(w, org)
}

// UpdateOrganization updates an organization's name or settings
func (h *OrgHandlers) UpdateOrganization(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r)
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	var req orgs.UpdateOrgRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	if err := h.deps.Orgs.UpdateOrganization(r.Context(), identity, id, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}

	org, err := h.deps.Orgs.GetOrganization(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httputil.WriteSuccess(w, org)
}

// DeactivateOrganization deactivates an organization. Members keep their
// rows; the organization stops resolving as context.
func (h *OrgHandlers) DeactivateOrganization(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r)
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	if err := h.deps.Orgs.DeactivateOrganization(r.Context(), identity, id); err != nil {
		writeServiceError(w, r, err)
		return
	}

	httputil.WriteNoContent(w)
}

// ListMembers lists active members of an organization
func (h *OrgHandlers) ListMembers(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r)
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	members, err := h.deps.Orgs.ListMembers(r.Context(), identity, id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httputil.WriteSuccess(w, members)
}

// GrantAccessRequest is the membership grant payload
type GrantAccessRequest struct {
	UserID int64         `json:"user_id"`
	Role   roles.OrgRole `json:"role"`
}

// GrantAccess adds a user to an organization
func (h *OrgHandlers) GrantAccess(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r)
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	var req GrantAccessRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.UserID <= 0 {
		httputil.WriteValidationError(w, "user_id is required")
		return
	}
	if req.Role == "" {
		req.Role = roles.OrgMember
	}
	if !req.Role.Valid() {
		httputil.WriteValidationError(w, "unknown organization role")
		return
	}

	membership, err := h.deps.Orgs.GrantAccess(r.Context(), identity, id, req.UserID, req.Role)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httputil.WriteCreated(w, membership)
}

// UpdateMemberRoleRequest is the membership role change payload
type UpdateMemberRoleRequest struct {
	Role roles.OrgRole `json:"role"`
}

// UpdateMemberRole changes a member's organization role
func (h *OrgHandlers) UpdateMemberRole(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r)
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	userID, ok := httputil.ParsePathInt64OrError(w, r, "user_id")
	if !ok {
		return
	}

	var req UpdateMemberRoleRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !req.Role.Valid() {
		httputil.WriteValidationError(w, "unknown organization role")
		return
	}

	if err := h.deps.Orgs.UpdateMemberRole(r.Context(), identity, id, userID, req.Role); err != nil {
		writeServiceError(w, r, err)
		return
	}

	httputil.WriteNoContent(w)
}

// RevokeAccess removes a user's membership from an organization
func (h *OrgHandlers) RevokeAccess(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r)
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	userID, ok := httputil.ParsePathInt64OrError(w, r, "user_id")
	if !ok {
		return
	}

	if err := h.deps.Orgs.RevokeAccess(r.Context(), identity, id, userID); err != nil {
		writeServiceError(w, r, err)
		return
	}

	httputil.WriteNoContent(w)
}
