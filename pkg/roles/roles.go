// Package roles defines the platform and organization role hierarchies and
// the ordering rules used by every authorization decision.
//
// Platform roles and organization roles are independent axes: a user's
// platform role says what they may do across the deployment, their
// organization role says what they may do inside a single organization.
// Neither implies the other.
package roles

import "fmt"

// PlatformRole is a deployment-wide role.
type PlatformRole string

const (
	// PlatformViewer has read-only access.
	PlatformViewer PlatformRole = "VIEWER"
	// PlatformUser is a regular user.
	PlatformUser PlatformRole = "USER"
	// PlatformOrgAdmin may administer users within their organization scope.
	PlatformOrgAdmin PlatformRole = "ORG_ADMIN"
	// PlatformSuperAdmin sits outside the ordered hierarchy and bypasses
	// membership checks. It never participates in Compare.
	PlatformSuperAdmin PlatformRole = "SUPER_ADMIN"
)

// OrgRole is a role held within a single organization.
type OrgRole string

const (
	OrgGuest  OrgRole = "GUEST"
	OrgMember OrgRole = "MEMBER"
	OrgAdmin  OrgRole = "ORG_ADMIN"
	OrgOwner  OrgRole = "OWNER"
)

// platformRank orders the comparable platform roles. SUPER_ADMIN is
// deliberately absent: it is out-of-band and handled explicitly by callers.
var platformRank = map[PlatformRole]int{
	PlatformViewer:   0,
	PlatformUser:     1,
	PlatformOrgAdmin: 2,
}

var orgRank = map[OrgRole]int{
	OrgGuest:  0,
	OrgMember: 1,
	OrgAdmin:  2,
	OrgOwner:  3,
}

// Valid reports whether the platform role is a known value.
func (r PlatformRole) Valid() bool {
	if r == PlatformSuperAdmin {
		return true
	}
	_, ok := platformRank[r]
	return ok
}

// Valid reports whether the organization role is a known value.
func (r OrgRole) Valid() bool {
	_, ok := orgRank[r]
	return ok
}

// ComparePlatform returns -1, 0, or 1 ordering a against b in the platform
// hierarchy. It panics on unknown or out-of-band roles: an unrecognized role
// reaching a comparison is a programming error, and silently ranking it would
// grant or deny access arbitrarily.
func ComparePlatform(a, b PlatformRole) int {
	ra, ok := platformRank[a]
	if !ok {
		panic(fmt.Sprintf("roles: cannot compare platform role %q", a))
	}
	rb, ok := platformRank[b]
	if !ok {
		panic(fmt.Sprintf("roles: cannot compare platform role %q", b))
	}
	return compareRank(ra, rb)
}

// CompareOrg returns -1, 0, or 1 ordering a against b in the organization
// hierarchy. It panics on unknown roles.
func CompareOrg(a, b OrgRole) int {
	ra, ok := orgRank[a]
	if !ok {
		panic(fmt.Sprintf("roles: cannot compare org role %q", a))
	}
	rb, ok := orgRank[b]
	if !ok {
		panic(fmt.Sprintf("roles: cannot compare org role %q", b))
	}
	return compareRank(ra, rb)
}

// MeetsMinimumPlatform reports whether role is at least min. It is reflexive:
// every comparable role meets itself. SUPER_ADMIN meets any minimum.
func MeetsMinimumPlatform(role, min PlatformRole) bool {
	if role == PlatformSuperAdmin {
		return true
	}
	return ComparePlatform(role, min) >= 0
}

// MeetsMinimumOrg reports whether role is at least min within an organization.
func MeetsMinimumOrg(role, min OrgRole) bool {
	return CompareOrg(role, min) >= 0
}

func compareRank(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
