// Package users persists identities: who can sign in, their platform role,
// their home organization, and the persisted "current organization" pointer
// that context resolution reads per request.
package users

import (
	"context"
	"time"

	"github.com/craftwork-crm/craftwork/pkg/auth"
	"github.com/craftwork-crm/craftwork/pkg/roles"
)

// User is a signed-in principal. Email is unique within the user's home
// organization, not globally. Users are never hard-deleted; deactivation
// keeps the row for the audit trail.
type User struct {
	ID           int64              `json:"id"`
	Email        string             `json:"email"`
	DisplayName  string             `json:"display_name"`
	PasswordHash string             `json:"-"`
	PlatformRole roles.PlatformRole `json:"platform_role"`

	// HomeOrgID is fixed at creation. The home membership cannot be revoked
	// while the user exists.
	HomeOrgID int64 `json:"home_org_id"`

	// CurrentOrgID is the persisted context pointer. Nil means no explicit
	// selection; resolution falls back to the home organization.
	CurrentOrgID *int64 `json:"current_org_id,omitempty"`

	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Identity converts the stored user into the request-scoped identity shape.
func (u *User) Identity() *auth.Identity {
	home := u.HomeOrgID
	return &auth.Identity{
		UserID:       u.ID,
		Email:        u.Email,
		DisplayName:  u.DisplayName,
		PlatformRole: u.PlatformRole,
		HomeOrgID:    &home,
		CurrentOrgID: u.CurrentOrgID,
		IsActive:     u.IsActive,
	}
}

// CreateUserRequest carries the fields for creating a user
type CreateUserRequest struct {
	Email        string             `json:"email"`
	DisplayName  string             `json:"display_name"`
	Password     string             `json:"password"`
	PlatformRole roles.PlatformRole `json:"platform_role"`
	HomeOrgID    int64              `json:"home_org_id"`

	// HomeOrgRole is the membership role in the home organization,
	// defaulting to MEMBER.
	HomeOrgRole roles.OrgRole `json:"home_org_role,omitempty"`
}

// Service defines identity operations
type Service interface {
	Create(ctx context.Context, requester *auth.Identity, req *CreateUserRequest) (*User, error)
	GetByID(ctx context.Context, id int64) (*User, error)
	GetByEmailAndOrg(ctx context.Context, email string, orgID int64) (*User, error)
	Authenticate(ctx context.Context, email, password string, orgID *int64) (*User, error)
	UpdatePlatformRole(ctx context.Context, requester *auth.Identity, userID int64, role roles.PlatformRole) error
	Deactivate(ctx context.Context, requester *auth.Identity, userID int64) error
	ChangePassword(ctx context.Context, requester *auth.Identity, userID int64, currentPassword, newPassword string) error
	SetCurrentOrg(ctx context.Context, userID int64, orgID *int64) error
	ListByOrg(ctx context.Context, requester *auth.Identity, orgID int64) ([]*User, error)
}
