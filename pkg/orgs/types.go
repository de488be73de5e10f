// Package orgs manages organizations and the membership records that grant
// users access to them. A user may belong to many organizations but holds at
// most one active membership per organization.
package orgs

import (
	"context"
	"time"

	"github.com/craftwork-crm/craftwork/pkg/auth"
	"github.com/craftwork-crm/craftwork/pkg/roles"
)

// Organization represents a tenant
type Organization struct {
	ID        int64                  `json:"id"`
	Code      string                 `json:"code"` // URL-safe unique identifier
	Name      string                 `json:"name"`
	IsActive  bool                   `json:"is_active"`
	Settings  map[string]interface{} `json:"settings,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
	UpdatedAt time.Time              `json:"updated_at"`
}

// Membership links a user to an organization with an org-scoped role.
// Revocation is a soft delete: is_active flips to false and left_at is set,
// so the row remains for the audit trail.
type Membership struct {
	ID             int64         `json:"id"`
	OrganizationID int64         `json:"organization_id"`
	UserID         int64         `json:"user_id"`
	Role           roles.OrgRole `json:"role"`
	IsActive       bool          `json:"is_active"`
	JoinedAt       time.Time     `json:"joined_at"`
	LeftAt         *time.Time    `json:"left_at,omitempty"`
	GrantedBy      *int64        `json:"granted_by,omitempty"`
}

// MembershipInfo is a membership joined with its organization snapshot,
// as returned to clients listing their accessible organizations.
type MembershipInfo struct {
	Membership
	OrganizationCode string `json:"organization_code"`
	OrganizationName string `json:"organization_name"`
	OrgIsActive      bool   `json:"org_is_active"`

	// IsPrimary marks the user's home organization.
	IsPrimary bool `json:"is_primary"`
}

// CreateOrgRequest carries the fields for creating an organization
type CreateOrgRequest struct {
	Code     string                 `json:"code"`
	Name     string                 `json:"name"`
	Settings map[string]interface{} `json:"settings,omitempty"`
}

// UpdateOrgRequest carries optional fields for updating an organization
type UpdateOrgRequest struct {
	Name     *string                `json:"name,omitempty"`
	Settings map[string]interface{} `json:"settings,omitempty"`
}

// Service defines organization and membership operations
type Service interface {
	// Organization lifecycle
	CreateOrganization(ctx context.Context, requester *auth.Identity, req *CreateOrgRequest) (*Organization, error)
	GetOrganization(ctx context.Context, id int64) (*Organization, error)
	GetOrganizationByCode(ctx context.Context, code string) (*Organization, error)
	ListActiveOrganizations(ctx context.Context) ([]*Organization, error)
	UpdateOrganization(ctx context.Context, requester *auth.Identity, id int64, updates *UpdateOrgRequest) error
	DeactivateOrganization(ctx context.Context, requester *auth.Identity, id int64) error

	// Membership management
	GrantAccess(ctx context.Context, requester *auth.Identity, orgID, userID int64, role roles.OrgRole) (*Membership, error)
	RevokeAccess(ctx context.Context, requester *auth.Identity, orgID, userID int64) error
	UpdateMemberRole(ctx context.Context, requester *auth.Identity, orgID, userID int64, role roles.OrgRole) error
	ListAccessible(ctx context.Context, userID int64) ([]*MembershipInfo, error)
	ValidateAccess(ctx context.Context, userID, orgID int64, minRole roles.OrgRole) (*MembershipInfo, error)
	ListMembers(ctx context.Context, requester *auth.Identity, orgID int64) ([]*Membership, error)
}
