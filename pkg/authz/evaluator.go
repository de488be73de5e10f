// Package authz holds the stateless authorization decisions that gate every
// privileged operation. The evaluator never performs mutations itself; it
// returns a Decision and callers apply the effect, which keeps policy
// separable from storage.
package authz

import (
	"github.com/craftwork-crm/craftwork/pkg/roles"
)

// Actor is a snapshot of the requesting principal at decision time.
type Actor struct {
	UserID       int64
	PlatformRole roles.PlatformRole

	// OrganizationID is the actor's effective organization. Nil means the
	// actor is operating unscoped, which is valid only for super-admins.
	OrganizationID *int64

	// OrgRole is the actor's membership role within OrganizationID, when the
	// actor holds one.
	OrgRole *roles.OrgRole
}

// Target is a snapshot of the principal being acted upon.
type Target struct {
	UserID         int64
	PlatformRole   roles.PlatformRole
	OrganizationID *int64
}

// Decision is the result of an authorization check.
type Decision struct {
	Allowed bool
	Reason  string
}

func allow() Decision {
	return Decision{Allowed: true}
}

func deny(reason string) Decision {
	return Decision{Allowed: false, Reason: reason}
}

// CanManageUser decides whether the actor may manage the target user
// (profile edits, deactivation, password resets). Management is
// organization-scoped: actor and target must share an organization, the actor
// needs a platform role of at least ORG_ADMIN, and the actor's platform role
// must not be below the target's. A super-admin bypasses the
// organization-equality check only when operating unscoped; once scoped to an
// organization, even a super-admin manages only users of that organization.
func CanManageUser(actor Actor, target Target) Decision {
	if actor.PlatformRole == roles.PlatformSuperAdmin {
		if actor.OrganizationID == nil {
			return allow()
		}
		if target.OrganizationID != nil && *actor.OrganizationID == *target.OrganizationID {
			return allow()
		}
		return deny("target is outside the current organization")
	}

	if target.PlatformRole == roles.PlatformSuperAdmin {
		return deny("only a super-admin can manage a super-admin")
	}

	if actor.OrganizationID == nil || target.OrganizationID == nil {
		return deny("organization context required")
	}
	if *actor.OrganizationID != *target.OrganizationID {
		return deny("target belongs to a different organization")
	}

	if !roles.MeetsMinimumPlatform(actor.PlatformRole, roles.PlatformOrgAdmin) {
		return deny("platform role ORG_ADMIN required")
	}
	if roles.ComparePlatform(actor.PlatformRole, target.PlatformRole) < 0 {
		return deny("cannot manage a user with a higher platform role")
	}

	return allow()
}

// CanManageUserRoles decides whether the actor may change the target's roles.
// Strictly tighter than CanManageUser: the actor additionally needs an
// organization role of ORG_ADMIN or OWNER. Platform role and organization
// role authorize independently; a platform ORG_ADMIN who is merely a MEMBER
// of the organization cannot mutate roles there, and a super-admin's
// membership bypass does not extend here: role mutation always requires an
// actual ORG_ADMIN or OWNER membership.
func CanManageUserRoles(actor Actor, target Target) Decision {
	base := CanManageUser(actor, target)
	if !base.Allowed {
		return base
	}

	if actor.OrgRole == nil {
		return deny("organization membership required to change roles")
	}
	if !roles.MeetsMinimumOrg(*actor.OrgRole, roles.OrgAdmin) {
		return deny("organization role ORG_ADMIN or OWNER required to change roles")
	}

	return allow()
}

// Action names a privileged operation with an organization role floor.
type Action string

const (
	ActionViewMembers   Action = "members.view"
	ActionManageMembers Action = "members.manage"
	ActionManageOrg     Action = "org.manage"
	ActionViewAudit     Action = "audit.view"
)

var actionFloors = map[Action]roles.OrgRole{
	ActionViewMembers:   roles.OrgMember,
	ActionManageMembers: roles.OrgAdmin,
	ActionManageOrg:     roles.OrgAdmin,
	ActionViewAudit:     roles.OrgAdmin,
}

// MinimumRoleFor returns the organization role floor for an action. Unknown
// actions report ok=false and must be treated as denied.
func MinimumRoleFor(action Action) (roles.OrgRole, bool) {
	floor, ok := actionFloors[action]
	return floor, ok
}

// RequiresExplicitContext reports whether a super-admin must first scope to an
// organization before performing the action. Unscoped super-admins may
// administer users and organizations globally but may not touch
// organization-internal data without selecting a context.
func RequiresExplicitContext(action Action) bool {
	switch action {
	case ActionViewMembers, ActionManageMembers:
		return true
	default:
		return false
	}
}
