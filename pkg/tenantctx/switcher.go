package tenantctx

import (
	"context"
	"strconv"

	"github.com/craftwork-crm/craftwork/pkg/audit"
	"github.com/craftwork-crm/craftwork/pkg/auth"
	"github.com/craftwork-crm/craftwork/pkg/observability"
	"github.com/craftwork-crm/craftwork/pkg/orgs"
	"github.com/craftwork-crm/craftwork/pkg/roles"
	"github.com/craftwork-crm/craftwork/pkg/users"
)

// Switcher implements the context switch protocol: validate access to the
// target organization, persist the current-organization pointer, and audit
// the switch. Every switch is audited, including a switch to the
// organization already current and every denial, because the super-admin
// bypass must stay traceable.
type Switcher struct {
	orgs    orgs.Service
	users   users.Service
	cache   *OrgCache
	audit   audit.Logger
	metrics *observability.Metrics
	logger  *observability.Logger
}

// NewSwitcher creates a Switcher
func NewSwitcher(orgService orgs.Service, userService users.Service, cache *OrgCache, auditLogger audit.Logger, metrics *observability.Metrics, logger *observability.Logger) *Switcher {
	if auditLogger == nil {
		auditLogger = audit.NewNoopLogger()
	}
	return &Switcher{
		orgs:    orgService,
		users:   userService,
		cache:   cache,
		audit:   auditLogger,
		metrics: metrics,
		logger:  logger,
	}
}

// Switch changes the identity's effective organization to targetOrgID and
// returns the fresh organization snapshot. The read deliberately bypasses the
// snapshot cache: a switch must observe the organization's true state.
func (s *Switcher) Switch(ctx context.Context, identity *auth.Identity, targetOrgID int64) (*orgs.Organization, error) {
	org, err := s.orgs.GetOrganization(ctx, targetOrgID)
	if err == orgs.ErrOrgNotFound {
		s.record(ctx, identity, targetOrgID, audit.EventStatusDenied, false, "organization not found")
		return nil, ErrAccessDenied
	}
	if err != nil {
		return nil, err
	}

	if !org.IsActive {
		s.record(ctx, identity, targetOrgID, audit.EventStatusDenied, false, "organization inactive")
		return nil, ErrOrganizationInactive
	}

	membership, err := s.orgs.ValidateAccess(ctx, identity.UserID, targetOrgID, roles.OrgGuest)
	if err != nil {
		return nil, err
	}

	bypass := false
	if membership == nil {
		if !identity.IsSuperAdmin() {
			s.record(ctx, identity, targetOrgID, audit.EventStatusDenied, false, "no membership")
			return nil, ErrAccessDenied
		}
		// The one place membership is bypassed. The audit record below is
		// what keeps the bypass traceable.
		bypass = true
	}

	if err := s.users.SetCurrentOrg(ctx, identity.UserID, &targetOrgID); err != nil {
		s.record(ctx, identity, targetOrgID, audit.EventStatusFailure, bypass, "failed to persist context pointer")
		return nil, err
	}

	if s.cache != nil {
		s.cache.Invalidate(targetOrgID)
	}

	unchanged := identity.CurrentOrgID != nil && *identity.CurrentOrgID == targetOrgID
	event := audit.NewEvent(ctx, nil, audit.EventTypeContextSwitch, audit.EventStatusSuccess)
	event.ActorID = &identity.UserID
	event.ActorEmail = identity.Email
	event.OrganizationID = &targetOrgID
	event.TargetID = strconv.FormatInt(targetOrgID, 10)
	event.Metadata["bypass"] = bypass
	event.Metadata["unchanged"] = unchanged
	if identity.CurrentOrgID != nil {
		event.Metadata["previous_org_id"] = *identity.CurrentOrgID
	}
	s.logAudit(ctx, event)

	if s.metrics != nil {
		s.metrics.ContextSwitchesTotal.WithLabelValues("success", strconv.FormatBool(bypass)).Inc()
	}

	return org, nil
}

// ClearContext drops the identity's current-organization pointer, returning
// a super-admin to unscoped mode. Non-super-admins simply fall back to their
// home organization on the next request.
func (s *Switcher) ClearContext(ctx context.Context, identity *auth.Identity) error {
	if err := s.users.SetCurrentOrg(ctx, identity.UserID, nil); err != nil {
		return err
	}

	event := audit.NewEvent(ctx, nil, audit.EventTypeContextSwitch, audit.EventStatusSuccess)
	event.ActorID = &identity.UserID
	event.ActorEmail = identity.Email
	event.Metadata["cleared"] = true
	s.logAudit(ctx, event)

	return nil
}

func (s *Switcher) record(ctx context.Context, identity *auth.Identity, targetOrgID int64, status audit.EventStatus, bypass bool, reason string) {
	event := audit.NewEvent(ctx, nil, audit.EventTypeContextSwitch, status)
	event.ActorID = &identity.UserID
	event.ActorEmail = identity.Email
	event.OrganizationID = &targetOrgID
	event.TargetID = strconv.FormatInt(targetOrgID, 10)
	event.Message = reason
	event.Metadata["bypass"] = bypass
	s.logAudit(ctx, event)

	if s.metrics != nil {
		s.metrics.ContextSwitchesTotal.WithLabelValues(string(status), strconv.FormatBool(bypass)).Inc()
	}
}

func (s *Switcher) logAudit(ctx context.Context, event *audit.Event) {
	if err := s.audit.Log(ctx, event); err != nil && s.logger != nil {
		s.logger.WithError(err).Warn("failed to write audit event")
	}
}
