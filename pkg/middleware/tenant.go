package middleware

import (
	"context"
	"net/http"

	"github.com/craftwork-crm/craftwork/pkg/auth"
	"github.com/craftwork-crm/craftwork/pkg/authz"
	"github.com/craftwork-crm/craftwork/pkg/contextkeys"
	"github.com/craftwork-crm/craftwork/pkg/httputil"
	"github.com/craftwork-crm/craftwork/pkg/observability"
	"github.com/craftwork-crm/craftwork/pkg/orgs"
	"github.com/craftwork-crm/craftwork/pkg/tenantctx"
)

// OrgCandidate is one selectable organization in a selection-required
// response.
type OrgCandidate struct {
	OrganizationID   int64  `json:"organization_id"`
	OrganizationCode string `json:"organization_code"`
	OrganizationName string `json:"organization_name"`
	Role             string `json:"role"`
	IsPrimary        bool   `json:"is_primary"`
}

// ContextMiddleware resolves the effective organization context for every
// authenticated request and attaches it to the request context.
type ContextMiddleware struct {
	resolver *tenantctx.Resolver
	orgs     orgs.Service
}

// NewContextMiddleware creates a new organization context middleware
func NewContextMiddleware(resolver *tenantctx.Resolver, orgService orgs.Service) *ContextMiddleware {
	return &ContextMiddleware{resolver: resolver, orgs: orgService}
}

// Handler resolves organization context. When no context can be resolved it
// answers 428 with the list of organizations the user could select, so the
// client can prompt instead of guessing.
func (m *ContextMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity := GetIdentity(r)
		if identity == nil {
			httputil.WriteUnauthorized(w, "authentication required")
			return
		}

		ec, err := m.resolver.Resolve(r.Context(), identity)
		if err == tenantctx.ErrOrganizationRequired {
			WriteSelectionRequired(w, r, identity, m.orgs)
			return
		}
		if err != nil {
			observability.FromContext(r.Context()).WithError(err).Error("context resolution failed")
			httputil.WriteInternalError(w)
			return
		}

		ctx := contextkeys.WithEffectiveContext(r.Context(), ec)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// SelectionCandidates lists the organizations a user could select as context.
// Members get their accessible organizations; a super-admin usually has no
// memberships, so they get every active organization instead.
func SelectionCandidates(ctx context.Context, identity *auth.Identity, orgService orgs.Service) []OrgCandidate {
	candidates := []OrgCandidate{}
	if identity.IsSuperAdmin() {
		all, err := orgService.ListActiveOrganizations(ctx)
		if err != nil {
			observability.FromContext(ctx).WithError(err).Warn("listing candidate organizations failed")
			return candidates
		}
		for _, org := range all {
			candidates = append(candidates, OrgCandidate{
				OrganizationID:   org.ID,
				OrganizationCode: org.Code,
				OrganizationName: org.Name,
			})
		}
		return candidates
	}

	infos, err := orgService.ListAccessible(ctx, identity.UserID)
	if err != nil {
		observability.FromContext(ctx).WithError(err).Warn("listing candidate organizations failed")
		return candidates
	}
	for _, info := range infos {
		candidates = append(candidates, OrgCandidate{
			OrganizationID:   info.OrganizationID,
			OrganizationCode: info.OrganizationCode,
			OrganizationName: info.OrganizationName,
			Role:             string(info.Role),
			IsPrimary:        info.IsPrimary,
		})
	}
	return candidates
}

// WriteSelectionRequired answers 428 with the organizations the user could
// select, so the client can prompt instead of guessing.
func WriteSelectionRequired(w http.ResponseWriter, r *http.Request, identity *auth.Identity, orgService orgs.Service) {
	httputil.WriteErrorDetails(w, http.StatusPreconditionRequired,
		httputil.CodeOrgSelectionRequired,
		"an organization context is required for this request",
		map[string]interface{}{"organizations": SelectionCandidates(r.Context(), identity, orgService)})
}

// RequireScoped guards a route with the context requirement of an action.
// Actions that demand an explicit organization context answer 428 with
// selectable candidates when the request is unscoped; platform-wide actions
// pass through so a super-admin can operate across organizations.
func (m *ContextMiddleware) RequireScoped(action authz.Action) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ec := GetEffectiveContext(r)
			if ec == nil {
				httputil.WriteUnauthorized(w, "authentication required")
				return
			}
			if !ec.IsScoped() && authz.RequiresExplicitContext(action) {
				identity := GetIdentity(r)
				if identity == nil {
					httputil.WriteUnauthorized(w, "authentication required")
					return
				}
				WriteSelectionRequired(w, r, identity, m.orgs)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// GetEffectiveContext extracts the resolved organization context from the
// request. Nil means context middleware did not run.
func GetEffectiveContext(r *http.Request) *tenantctx.EffectiveContext {
	ec, ok := r.Context().Value(contextkeys.EffectiveContextKey).(*tenantctx.EffectiveContext)
	if !ok {
		return nil
	}
	return ec
}
