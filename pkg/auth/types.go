// Package auth provides authenticated identity types, session token
// generation, and password hashing.
package auth

import (
	"time"

	"github.com/craftwork-crm/craftwork/pkg/roles"
)

// Identity is the authenticated principal attached to a request after the
// session token has been resolved. It carries everything authorization
// decisions need without further user-store lookups.
type Identity struct {
	UserID       int64              `json:"user_id"`
	Email        string             `json:"email"`
	DisplayName  string             `json:"display_name"`
	PlatformRole roles.PlatformRole `json:"platform_role"`

	// HomeOrgID is the organization the user was created in. Nil only for
	// out-of-band accounts with no home organization.
	HomeOrgID *int64 `json:"home_org_id,omitempty"`

	// CurrentOrgID is the persisted context selection, nil when the user has
	// never switched or the selection was cleared.
	CurrentOrgID *int64 `json:"current_org_id,omitempty"`

	IsActive  bool   `json:"is_active"`
	SessionID string `json:"session_id,omitempty"`
}

// IsSuperAdmin reports whether the identity holds the out-of-band platform role.
func (i *Identity) IsSuperAdmin() bool {
	return i.PlatformRole == roles.PlatformSuperAdmin
}

// Session is the server-side session record stored against a token hash.
type Session struct {
	ID       string    `json:"id"`
	UserID   int64     `json:"user_id"`
	IssuedAt time.Time `json:"issued_at"`
}
