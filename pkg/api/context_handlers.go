package api

import (
	"errors"
	"net/http"

	"github.com/craftwork-crm/craftwork/pkg/httputil"
	"github.com/craftwork-crm/craftwork/pkg/middleware"
	"github.com/craftwork-crm/craftwork/pkg/observability"
	"github.com/craftwork-crm/craftwork/pkg/orgs"
	"github.com/craftwork-crm/craftwork/pkg/tenantctx"
)

// ContextHandlers implements the organization context endpoints
type ContextHandlers struct {
	deps Dependencies
}

// NewContextHandlers creates a new ContextHandlers
func NewContextHandlers(deps Dependencies) *ContextHandlers {
	return &ContextHandlers{deps: deps}
}

// ContextResponse describes the caller's effective organization context.
// Status "selection_required" means the caller must pick from Organizations
// before org-scoped requests will succeed.
type ContextResponse struct {
	Status           string                    `json:"status"`
	OrganizationID   *int64                    `json:"organization_id,omitempty"`
	Organization     *orgs.Organization        `json:"organization,omitempty"`
	Role             string                    `json:"role,omitempty"`
	Source           string                    `json:"source,omitempty"`
	SuperAdminBypass bool                      `json:"super_admin_bypass,omitempty"`
	Organizations    []middleware.OrgCandidate `json:"organizations,omitempty"`
}

// GetContext returns the effective organization context for the caller. A
// caller with no resolvable context gets a distinguished selection_required
// status with the organizations they could select, not an error.
func (h *ContextHandlers) GetContext(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r)
	if identity == nil {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}

	ec, err := h.deps.Resolver.Resolve(r.Context(), identity)
	if errors.Is(err, tenantctx.ErrOrganizationRequired) {
		httputil.WriteSuccess(w, ContextResponse{
			Status:        "selection_required",
			Organizations: middleware.SelectionCandidates(r.Context(), identity, h.deps.Orgs),
		})
		return
	}
	if err != nil {
		observability.FromContext(r.Context()).WithError(err).Error("context resolution failed")
		httputil.WriteInternalError(w)
		return
	}

	resp := ContextResponse{
		Status:           "ok",
		OrganizationID:   ec.OrganizationID,
		Organization:     ec.Organization,
		Source:           string(ec.Source),
		SuperAdminBypass: ec.SuperAdminBypass,
	}
	if ec.Role != nil {
		resp.Role = string(*ec.Role)
	}
	httputil.WriteSuccess(w, resp)
}

// SwitchRequest is the context switch payload
type SwitchRequest struct {
	OrganizationID int64 `json:"organization_id"`
}

// Switch changes the caller's active organization
func (h *ContextHandlers) Switch(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r)
	if identity == nil {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}

	var req SwitchRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.OrganizationID <= 0 {
		httputil.WriteValidationError(w, "organization_id is required")
		return
	}

	org, err := h.deps.Switcher.Switch(r.Context(), identity, req.OrganizationID)
	switch {
	case errors.Is(err, tenantctx.ErrAccessDenied):
		httputil.WriteErrorCode(w, http.StatusForbidden, httputil.CodeOrgAccessDenied, "no access to the requested organization")
		return
	case errors.Is(err, tenantctx.ErrOrganizationInactive):
		httputil.WriteErrorCode(w, http.StatusForbidden, httputil.CodeOrgInactive, "organization is deactivated")
		return
	case err != nil:
		observability.FromContext(r.Context()).WithError(err).Error("context switch failed")
		httputil.WriteInternalError(w)
		return
	}

	httputil.WriteSuccess(w, map[string]interface{}{
		"organization": org,
	})
}

// ClearContext drops the caller's persisted organization selection
func (h *ContextHandlers) ClearContext(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r)
	if identity == nil {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}

	if err := h.deps.Switcher.ClearContext(r.Context(), identity); err != nil {
		observability.FromContext(r.Context()).WithError(err).Error("clearing context failed")
		httputil.WriteInternalError(w)
		return
	}

	httputil.WriteNoContent(w)
}
