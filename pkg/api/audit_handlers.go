package api

import (
	"net/http"
	"time"

	"github.com/craftwork-crm/craftwork/pkg/audit"
	"github.com/craftwork-crm/craftwork/pkg/httputil"
	"github.com/craftwork-crm/craftwork/pkg/middleware"
	"github.com/craftwork-crm/craftwork/pkg/observability"
	"github.com/craftwork-crm/craftwork/pkg/roles"
)

const (
	defaultAuditLimit = 50
	maxAuditLimit     = 500
)

// AuditHandlers serves the audit trail query endpoint
type AuditHandlers struct {
	deps Dependencies
}

// NewAuditHandlers creates a new AuditHandlers
func NewAuditHandlers(deps Dependencies) *AuditHandlers {
	return &AuditHandlers{deps: deps}
}

// Search queries the audit trail. Unscoped super-admins query platform-wide;
// everyone else needs an organization role of at least ORG_ADMIN and the
// query is pinned to their effective organization.
func (h *AuditHandlers) Search(w http.ResponseWriter, r *http.Request) {
	if h.deps.AuditSearch == nil {
		httputil.WriteNotFound(w, "audit trail is not queryable")
		return
	}

	identity := middleware.GetIdentity(r)
	ec := middleware.GetEffectiveContext(r)
	if identity == nil || ec == nil {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}

	filter, ok := parseAuditFilter(w, r)
	if !ok {
		return
	}

	if ec.IsScoped() {
		if !identity.IsSuperAdmin() {
			if ec.Role == nil || !roles.MeetsMinimumOrg(*ec.Role, roles.OrgAdmin) {
				httputil.WriteErrorCode(w, http.StatusForbidden, httputil.CodePermissionDenied,
					"organization role ORG_ADMIN or OWNER required")
				return
			}
		}
		filter.OrganizationID = ec.OrganizationID
	}

	events, err := h.deps.AuditSearch.Search(r.Context(), filter)
	if err != nil {
		observability.FromContext(r.Context()).WithError(err).Error("audit search failed")
		httputil.WriteInternalError(w)
		return
	}

	httputil.WriteSuccess(w, map[string]interface{}{
		"events": events,
		"limit":  filter.Limit,
		"offset": filter.Offset,
	})
}

func parseAuditFilter(w http.ResponseWriter, r *http.Request) (audit.SearchFilter, bool) {
	filter := audit.SearchFilter{Limit: defaultAuditLimit}
	q := r.URL.Query()

	if v := q.Get("start_time"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			httputil.WriteValidationError(w, "start_time must be RFC3339")
			return filter, false
		}
		filter.StartTime = &t
	}
	if v := q.Get("end_time"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			httputil.WriteValidationError(w, "end_time must be RFC3339")
			return filter, false
		}
		filter.EndTime = &t
	}
	if q.Get("actor_id") != "" {
		id, err := httputil.ParseQueryInt64(r, "actor_id", 0)
		if err != nil {
			httputil.WriteValidationError(w, "actor_id must be an integer")
			return filter, false
		}
		filter.ActorID = &id
	}
	if q.Get("target_user_id") != "" {
		id, err := httputil.ParseQueryInt64(r, "target_user_id", 0)
		if err != nil {
			httputil.WriteValidationError(w, "target_user_id must be an integer")
			return filter, false
		}
		filter.TargetUserID = &id
	}
	for _, v := range q["event_type"] {
		filter.EventTypes = append(filter.EventTypes, audit.EventType(v))
	}
	if v := httputil.ParseQueryString(r, "status", ""); v != "" {
		status := audit.EventStatus(v)
		filter.Status = &status
	}

	limit, err := httputil.ParseQueryInt(r, "limit", defaultAuditLimit)
	if err != nil || limit <= 0 {
		httputil.WriteValidationError(w, "limit must be a positive integer")
		return filter, false
	}
	if limit > maxAuditLimit {
		limit = maxAuditLimit
	}
	filter.Limit = limit

	offset, err := httputil.ParseQueryInt(r, "offset", 0)
	if err != nil || offset < 0 {
		httputil.WriteValidationError(w, "offset must be a non-negative integer")
		return filter, false
	}
	filter.Offset = offset

	return filter, true
}
