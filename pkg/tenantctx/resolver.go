package tenantctx

import (
	"context"

	"github.com/craftwork-crm/craftwork/pkg/auth"
	"github.com/craftwork-crm/craftwork/pkg/observability"
	"github.com/craftwork-crm/craftwork/pkg/orgs"
	"github.com/craftwork-crm/craftwork/pkg/roles"
)

// Resolver derives the effective organization context for a request.
// Resolution order: the identity's current-organization pointer, then the
// home organization, then unscoped mode for super-admins. Anything else is
// ErrOrganizationRequired.
type Resolver struct {
	orgs    orgs.Service
	cache   *OrgCache
	metrics *observability.Metrics
	logger  *observability.Logger
}

// NewResolver creates a Resolver. The cache is optional; without it every
// resolution hits the store.
func NewResolver(orgService orgs.Service, cache *OrgCache, metrics *observability.Metrics, logger *observability.Logger) *Resolver {
	return &Resolver{orgs: orgService, cache: cache, metrics: metrics, logger: logger}
}

// Resolve computes the effective context for the identity. A stale
// current-organization pointer (membership revoked, organization deactivated)
// falls back to the home organization rather than failing the request; the
// pointer is left for the next successful switch to overwrite.
func (r *Resolver) Resolve(ctx context.Context, identity *auth.Identity) (*EffectiveContext, error) {
	if identity.CurrentOrgID != nil {
		ec, err := r.tryScope(ctx, identity, *identity.CurrentOrgID, SourceCurrent)
		if err != nil {
			return nil, err
		}
		if ec != nil {
			return ec, r.count(ec)
		}
		if r.logger != nil {
			r.logger.WithFields(map[string]interface{}{
				"user_id": identity.UserID,
				"org_id":  *identity.CurrentOrgID,
			}).Warn("current organization no longer accessible, falling back to home")
		}
	}

	if identity.HomeOrgID != nil {
		ec, err := r.tryScope(ctx, identity, *identity.HomeOrgID, SourceHome)
		if err != nil {
			return nil, err
		}
		if ec != nil {
			return ec, r.count(ec)
		}
	}

	if identity.IsSuperAdmin() {
		ec := &EffectiveContext{Source: SourceUnscoped}
		return ec, r.count(ec)
	}

	return nil, ErrOrganizationRequired
}

// tryScope attempts to scope the identity to one organization. Returns
// (nil, nil) when the organization cannot serve as context, so the caller
// moves on to the next fallback.
func (r *Resolver) tryScope(ctx context.Context, identity *auth.Identity, orgID int64, source Source) (*EffectiveContext, error) {
	membership, err := r.orgs.ValidateAccess(ctx, identity.UserID, orgID, roles.OrgGuest)
	if err != nil {
		return nil, err
	}

	if membership != nil {
		org, err := r.snapshot(ctx, orgID)
		if err != nil {
			return nil, err
		}
		role := membership.Role
		return &EffectiveContext{
			OrganizationID: &orgID,
			Organization:   org,
			Role:           &role,
			Source:         source,
		}, nil
	}

	// Super-admins may scope to an active organization without membership.
	if identity.IsSuperAdmin() {
		org, err := r.snapshot(ctx, orgID)
		if err == orgs.ErrOrgNotFound {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		if !org.IsActive {
			return nil, nil
		}
		return &EffectiveContext{
			OrganizationID:   &orgID,
			Organization:     org,
			SuperAdminBypass: true,
			Source:           source,
		}, nil
	}

	return nil, nil
}

func (r *Resolver) snapshot(ctx context.Context, orgID int64) (*orgs.Organization, error) {
	if r.cache != nil {
		return r.cache.Get(ctx, orgID)
	}
	return r.orgs.GetOrganization(ctx, orgID)
}

func (r *Resolver) count(ec *EffectiveContext) error {
	if r.metrics != nil {
		r.metrics.ContextResolutions.WithLabelValues(string(ec.Source)).Inc()
	}
	return nil
}
