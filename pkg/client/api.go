package client

import (
	"context"
	"net/http"
)

// Organization is the client-side view of an organization
type Organization struct {
	ID       int64  `json:"id"`
	Code     string `json:"code"`
	Name     string `json:"name"`
	IsActive bool   `json:"is_active"`
}

// OrgCandidate is one selectable organization when a context selection is
// required
type OrgCandidate struct {
	OrganizationID   int64  `json:"organization_id"`
	OrganizationCode string `json:"organization_code"`
	OrganizationName string `json:"organization_name"`
	Role             string `json:"role"`
	IsPrimary        bool   `json:"is_primary"`
}

// User is the client-side view of a user
type User struct {
	ID           int64  `json:"id"`
	Email        string `json:"email"`
	DisplayName  string `json:"display_name"`
	PlatformRole string `json:"platform_role"`
	HomeOrgID    int64  `json:"home_org_id"`
	CurrentOrgID *int64 `json:"current_org_id,omitempty"`
	IsActive     bool   `json:"is_active"`
}

// ContextResult is the server's description of the effective context
type ContextResult struct {
	Status           string         `json:"status"`
	OrganizationID   *int64         `json:"organization_id,omitempty"`
	Organization     *Organization  `json:"organization,omitempty"`
	Role             string         `json:"role,omitempty"`
	Source           string         `json:"source,omitempty"`
	SuperAdminBypass bool           `json:"super_admin_bypass,omitempty"`
	Organizations    []OrgCandidate `json:"organizations,omitempty"`
}

// LoginResult carries the issued token and the signed-in user
type LoginResult struct {
	Token string `json:"token"`
	User  *User  `json:"user"`
}

// Login authenticates and stores the issued token on the client
func (c *Client) Login(ctx context.Context, email, password, organizationCode string) (*LoginResult, error) {
	payload := map[string]string{
		"email":    email,
		"password": password,
	}
	if organizationCode != "" {
		payload["organization_code"] = organizationCode
	}

	var result LoginResult
	if err := c.do(ctx, http.MethodPost, "/api/v1/auth/login", payload, &result); err != nil {
		return nil, err
	}

	c.SetToken(result.Token)
	return &result, nil
}

// Logout revokes the current session and clears the stored token
func (c *Client) Logout(ctx context.Context) error {
	err := c.do(ctx, http.MethodPost, "/api/v1/auth/logout", nil, nil)
	c.SetToken("")
	return err
}

// Me returns the authenticated identity
func (c *Client) Me(ctx context.Context) (*User, error) {
	var user User
	if err := c.do(ctx, http.MethodGet, "/api/v1/me", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// GetContext fetches the effective organization context
func (c *Client) GetContext(ctx context.Context) (*ContextResult, error) {
	var result ContextResult
	if err := c.do(ctx, http.MethodGet, "/api/v1/context", nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// SwitchOrganization changes the active organization
func (c *Client) SwitchOrganization(ctx context.Context, orgID int64) (*Organization, error) {
	payload := map[string]int64{"organization_id": orgID}

	var result struct {
		Organization *Organization `json:"organization"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/v1/context/switch", payload, &result); err != nil {
		return nil, err
	}
	return result.Organization, nil
}

// ClearContext drops the persisted organization selection
func (c *Client) ClearContext(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, "/api/v1/context", nil, nil)
}

// ListOrganizations lists the organizations the caller can access
func (c *Client) ListOrganizations(ctx context.Context) ([]OrgCandidate, error) {
	var result []OrgCandidate
	if err := c.do(ctx, http.MethodGet, "/api/v1/orgs", nil, &result); err != nil {
		return nil, err
	}
	return result, nil
}
