package orgs

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/craftwork-crm/craftwork/pkg/audit"
	"github.com/craftwork-crm/craftwork/pkg/auth"
	"github.com/craftwork-crm/craftwork/pkg/authz"
	"github.com/craftwork-crm/craftwork/pkg/roles"
)

// requireOrgAdmin verifies that the requester may administer memberships in
// the organization. Super-admins pass unconditionally; everyone else needs an
// active membership with a role of at least ORG_ADMIN.
func (s *PostgresService) requireOrgAdmin(ctx context.Context, requester *auth.Identity, orgID int64) error {
	if requester.IsSuperAdmin() {
		return nil
	}

	membership, err := s.ValidateAccess(ctx, requester.UserID, orgID, roles.OrgAdmin)
	if err != nil {
		return err
	}
	if membership == nil {
		return ErrPermissionDenied
	}

	return nil
}

// GrantAccess adds a user to an organization with the given role. The
// organization must exist and be active, and the requester must be an org
// admin within it (or super-admin). Granting to an existing active member
// returns ErrAlreadyMember without touching the existing record.
func (s *PostgresService) GrantAccess(ctx context.Context, requester *auth.Identity, orgID, userID int64, role roles.OrgRole) (*Membership, error) {
	if !role.Valid() {
		return nil, fmt.Errorf("invalid org role %q", role)
	}

	org, err := s.GetOrganization(ctx, orgID)
	if err == ErrOrgNotFound {
		return nil, ErrInvalidOrganization
	}
	if err != nil {
		return nil, err
	}
	if !org.IsActive {
		return nil, ErrInvalidOrganization
	}

	if err := s.requireOrgAdmin(ctx, requester, orgID); err != nil {
		if err == ErrPermissionDenied {
			event := audit.NewEvent(ctx, nil, audit.EventTypeMembershipGrant, audit.EventStatusDenied)
			event.OrganizationID = &orgID
			event.TargetUserID = &userID
			s.logAudit(ctx, event)
		}
		return nil, err
	}

	membership := &Membership{
		OrganizationID: orgID,
		UserID:         userID,
		Role:           role,
		IsActive:       true,
		GrantedBy:      &requester.UserID,
	}

	// The partial unique index on (organization_id, user_id) WHERE is_active
	// makes the conflict target match only the live membership, so a user who
	// previously left can be re-granted.
	query := `
		INSERT INTO organization_memberships (organization_id, user_id, role, is_active, granted_by)
		VALUES ($1, $2, $3, true, $4)
		ON CONFLICT (organization_id, user_id) WHERE is_active DO NOTHING
		RETURNING id, joined_at
	`
	err = s.db.QueryRowContext(ctx, query, orgID, userID, role, requester.UserID).
		Scan(&membership.ID, &membership.JoinedAt)
	if err == sql.ErrNoRows {
		return nil, ErrAlreadyMember
	}
	if err != nil {
		return nil, fmt.Errorf("failed to grant access: %w", err)
	}

	event := audit.NewEvent(ctx, nil, audit.EventTypeMembershipGrant, audit.EventStatusSuccess)
	event.OrganizationID = &orgID
	event.TargetUserID = &userID
	event.Metadata["role"] = string(role)
	s.logAudit(ctx, event)

	return membership, nil
}

// RevokeAccess removes a user's active membership in an organization. The
// membership row is kept with is_active=false and left_at set. A user's home
// organization membership can never be revoked, not even by a super-admin;
// deactivate the user instead.
func (s *PostgresService) RevokeAccess(ctx context.Context, requester *auth.Identity, orgID, userID int64) error {
	if err := s.requireOrgAdmin(ctx, requester, orgID); err != nil {
		if err == ErrPermissionDenied {
			event := audit.NewEvent(ctx, nil, audit.EventTypeMembershipRevoke, audit.EventStatusDenied)
			event.OrganizationID = &orgID
			event.TargetUserID = &userID
			s.logAudit(ctx, event)
		}
		return err
	}

	var homeOrgID sql.NullInt64
	err := s.db.QueryRowContext(ctx, `SELECT home_org_id FROM users WHERE id = $1`, userID).Scan(&homeOrgID)
	if err == sql.ErrNoRows {
		return ErrNotMember
	}
	if err != nil {
		return fmt.Errorf("failed to look up user: %w", err)
	}
	if homeOrgID.Valid && homeOrgID.Int64 == orgID {
		return ErrCannotRevokeHome
	}

	query := `
		UPDATE organization_memberships
		SET is_active = false, left_at = NOW()
		WHERE organization_id = $1 AND user_id = $2 AND is_active = true
	`
	result, err := s.db.ExecContext(ctx, query, orgID, userID)
	if err != nil {
		return fmt.Errorf("failed to revoke access: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotMember
	}

	event := audit.NewEvent(ctx, nil, audit.EventTypeMembershipRevoke, audit.EventStatusSuccess)
	event.OrganizationID = &orgID
	event.TargetUserID = &userID
	s.logAudit(ctx, event)

	return nil
}

// UpdateMemberRole changes the role of an existing active membership. The
// requester's organization role and platform role authorize independently:
// platform feature access does not imply tenant-internal authority.
func (s *PostgresService) UpdateMemberRole(ctx context.Context, requester *auth.Identity, orgID, userID int64, role roles.OrgRole) error {
	if !role.Valid() {
		return fmt.Errorf("invalid org role %q", role)
	}

	actor := authz.Actor{
		UserID:         requester.UserID,
		PlatformRole:   requester.PlatformRole,
		OrganizationID: &orgID,
	}
	membership, err := s.ValidateAccess(ctx, requester.UserID, orgID, roles.OrgGuest)
	if err != nil {
		return err
	}
	if membership != nil {
		actor.OrgRole = &membership.Role
	}

	target, err := s.ValidateAccess(ctx, userID, orgID, roles.OrgGuest)
	if err != nil {
		return err
	}
	if target == nil {
		return ErrNotMember
	}

	targetUser, err := s.lookupUserSnapshot(ctx, userID)
	if err != nil {
		return err
	}

	decision := authz.CanManageUserRoles(actor, authz.Target{
		UserID:         userID,
		PlatformRole:   targetUser.platformRole,
		OrganizationID: &orgID,
	})
	if !decision.Allowed {
		event := audit.NewEvent(ctx, nil, audit.EventTypeRoleChange, audit.EventStatusDenied)
		event.OrganizationID = &orgID
		event.TargetUserID = &userID
		event.Message = decision.Reason
		s.logAudit(ctx, event)
		return ErrPermissionDenied
	}

	query := `
		UPDATE organization_memberships
		SET role = $1
		WHERE organization_id = $2 AND user_id = $3 AND is_active = true
	`
	result, err := s.db.ExecContext(ctx, query, role, orgID, userID)
	if err != nil {
		return fmt.Errorf("failed to update member role: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotMember
	}

	event := audit.NewEvent(ctx, nil, audit.EventTypeRoleChange, audit.EventStatusSuccess)
	event.OrganizationID = &orgID
	event.TargetUserID = &userID
	event.Metadata["old_role"] = string(target.Role)
	event.Metadata["new_role"] = string(role)
	s.logAudit(ctx, event)

	return nil
}

type userSnapshot struct {
	platformRole roles.PlatformRole
}

func (s *PostgresService) lookupUserSnapshot(ctx context.Context, userID int64) (*userSnapshot, error) {
	var snap userSnapshot
	err := s.db.QueryRowContext(ctx, `SELECT platform_role FROM users WHERE id = $1`, userID).
		Scan(&snap.platformRole)
	if err == sql.ErrNoRows {
		return nil, ErrNotMember
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}
	return &snap, nil
}

// ListAccessible returns the organizations a user can operate in: active
// memberships in active organizations, oldest membership first. The home
// organization is flagged IsPrimary.
func (s *PostgresService) ListAccessible(ctx context.Context, userID int64) ([]*MembershipInfo, error) {
	query := `
		SELECT m.id, m.organization_id, m.user_id, m.role, m.is_active, m.joined_at, m.left_at, m.granted_by,
		       o.code, o.name, o.is_active,
		       COALESCE(u.home_org_id = o.id, false) AS is_primary
		FROM organization_memberships m
		JOIN organizations o ON o.id = m.organization_id
		JOIN users u ON u.id = m.user_id
		WHERE m.user_id = $1 AND m.is_active = true AND o.is_active = true
		ORDER BY m.joined_at ASC
	`
	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list accessible organizations: %w", err)
	}
	defer rows.Close()

	infos := make([]*MembershipInfo, 0)
	for rows.Next() {
		info := &MembershipInfo{}
		if err := rows.Scan(
			&info.ID, &info.OrganizationID, &info.UserID, &info.Role,
			&info.IsActive, &info.JoinedAt, &info.LeftAt, &info.GrantedBy,
			&info.OrganizationCode, &info.OrganizationName, &info.OrgIsActive,
			&info.IsPrimary,
		); err != nil {
			return nil, fmt.Errorf("failed to scan membership: %w", err)
		}
		infos = append(infos, info)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating memberships: %w", err)
	}

	return infos, nil
}

// ValidateAccess returns the user's active membership in the organization,
// annotated with the organization snapshot, when the membership role meets
// minRole and the organization is active. A nil result with a nil error means
// "no access"; errors are reserved for lookup failures, so callers decide
// whether absence is fatal.
func (s *PostgresService) ValidateAccess(ctx context.Context, userID, orgID int64, minRole roles.OrgRole) (*MembershipInfo, error) {
	query := `
		SELECT m.id, m.organization_id, m.user_id, m.role, m.is_active, m.joined_at, m.left_at, m.granted_by,
		       o.code, o.name, o.is_active,
		       COALESCE(u.home_org_id = o.id, false) AS is_primary
		FROM organization_memberships m
		JOIN organizations o ON o.id = m.organization_id
		JOIN users u ON u.id = m.user_id
		WHERE m.user_id = $1 AND m.organization_id = $2 AND m.is_active = true AND o.is_active = true
	`
	info := &MembershipInfo{}
	err := s.db.QueryRowContext(ctx, query, userID, orgID).Scan(
		&info.ID, &info.OrganizationID, &info.UserID, &info.Role,
		&info.IsActive, &info.JoinedAt, &info.LeftAt, &info.GrantedBy,
		&info.OrganizationCode, &info.OrganizationName, &info.OrgIsActive,
		&info.IsPrimary,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to validate access: %w", err)
	}

	if !roles.MeetsMinimumOrg(info.Role, minRole) {
		return nil, nil
	}

	return info, nil
}

// ListMembers returns the active memberships of an organization, oldest
// first. Requires org admin within the organization or super-admin.
func (s *PostgresService) ListMembers(ctx context.Context, requester *auth.Identity, orgID int64) ([]*Membership, error) {
	if err := s.requireOrgAdmin(ctx, requester, orgID); err != nil {
		return nil, err
	}

	query := `
		SELECT id, organization_id, user_id, role, is_active, joined_at, left_at, granted_by
		FROM organization_memberships
		WHERE organization_id = $1 AND is_active = true
		ORDER BY joined_at ASC
	`
	rows, err := s.db.QueryContext(ctx, query, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	defer rows.Close()

	members := make([]*Membership, 0)
	for rows.Next() {
		m := &Membership{}
		if err := rows.Scan(
			&m.ID, &m.OrganizationID, &m.UserID, &m.Role,
			&m.IsActive, &m.JoinedAt, &m.LeftAt, &m.GrantedBy,
		); err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		members = append(members, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating members: %w", err)
	}

	return members, nil
}
