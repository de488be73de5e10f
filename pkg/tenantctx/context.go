// Package tenantctx resolves the effective organization for each request and
// implements the context switch protocol. The effective context is derived
// per request from the identity's persisted current-organization pointer; it
// is never embedded in the bearer token, so switching organizations never
// re-issues credentials.
package tenantctx

import (
	"errors"

	"github.com/craftwork-crm/craftwork/pkg/orgs"
	"github.com/craftwork-crm/craftwork/pkg/roles"
)

var (
	// ErrOrganizationRequired is returned when an organization-scoped request
	// arrives with no resolvable organization context
	ErrOrganizationRequired = errors.New("organization context required")

	// ErrAccessDenied is returned when the user holds no membership in the
	// target organization and is not a super-admin
	ErrAccessDenied = errors.New("access to organization denied")

	// ErrOrganizationInactive is returned when the target organization is
	// deactivated. This is terminal for the user; an administrator must
	// reactivate the organization.
	ErrOrganizationInactive = errors.New("organization is inactive")
)

// Source records which fallback produced the effective context.
type Source string

const (
	SourceCurrent  Source = "current"
	SourceHome     Source = "home"
	SourceUnscoped Source = "unscoped"
)

// EffectiveContext is the organization scope of a single request. It is
// derived, never persisted as its own record.
type EffectiveContext struct {
	// OrganizationID is nil only in super-admin unscoped mode.
	OrganizationID *int64

	// Organization is the snapshot for scoped contexts.
	Organization *orgs.Organization

	// Role is the membership role that applies within the organization. Nil
	// when a super-admin is scoped by bypass rather than membership.
	Role *roles.OrgRole

	// SuperAdminBypass marks a scope obtained without a membership.
	SuperAdminBypass bool

	Source Source
}

// IsScoped reports whether the request operates inside an organization.
func (c *EffectiveContext) IsScoped() bool {
	return c.OrganizationID != nil
}
