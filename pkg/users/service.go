package users

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/craftwork-crm/craftwork/pkg/audit"
	"github.com/craftwork-crm/craftwork/pkg/auth"
	"github.com/craftwork-crm/craftwork/pkg/authz"
	"github.com/craftwork-crm/craftwork/pkg/observability"
	"github.com/craftwork-crm/craftwork/pkg/roles"
)

// PostgresService implements the Service interface using PostgreSQL
type PostgresService struct {
	db     *sql.DB
	hasher *auth.PasswordHasher
	audit  audit.Logger
	logger *observability.Logger
}

// NewPostgresService creates a new PostgresService
func NewPostgresService(db *sql.DB, hasher *auth.PasswordHasher, auditLogger audit.Logger, logger *observability.Logger) *PostgresService {
	if hasher == nil {
		hasher = auth.NewPasswordHasher(auth.DefaultBcryptCost)
	}
	if auditLogger == nil {
		auditLogger = audit.NewNoopLogger()
	}
	return &PostgresService{db: db, hasher: hasher, audit: auditLogger, logger: logger}
}

func (s *PostgresService) logAudit(ctx context.Context, event *audit.Event) {
	if err := s.audit.Log(ctx, event); err != nil && s.logger != nil {
		s.logger.WithError(err).Warn("failed to write audit event")
	}
}

// effectiveOrg resolves the organization an identity is operating in: the
// explicit current-organization pointer, else home. Nil for an unscoped
// super-admin.
func effectiveOrg(identity *auth.Identity) *int64 {
	if identity.CurrentOrgID != nil {
		return identity.CurrentOrgID
	}
	return identity.HomeOrgID
}

func (s *PostgresService) actorFor(ctx context.Context, requester *auth.Identity) (authz.Actor, error) {
	actor := authz.Actor{
		UserID:         requester.UserID,
		PlatformRole:   requester.PlatformRole,
		OrganizationID: effectiveOrg(requester),
	}

	if actor.OrganizationID == nil {
		return actor, nil
	}

	var role roles.OrgRole
	err := s.db.QueryRowContext(ctx, `
		SELECT role FROM organization_memberships
		WHERE user_id = $1 AND organization_id = $2 AND is_active = true
	`, requester.UserID, *actor.OrganizationID).Scan(&role)
	if err == sql.ErrNoRows {
		return actor, nil
	}
	if err != nil {
		return actor, fmt.Errorf("failed to look up requester membership: %w", err)
	}

	actor.OrgRole = &role
	return actor, nil
}

const userColumns = `id, email, display_name, password_hash, platform_role, home_org_id, current_org_id, is_active, created_at, updated_at`

func scanUser(row interface{ Scan(...interface{}) error }) (*User, error) {
	u := &User{}
	err := row.Scan(
		&u.ID, &u.Email, &u.DisplayName, &u.PasswordHash, &u.PlatformRole,
		&u.HomeOrgID, &u.CurrentOrgID, &u.IsActive, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return u, nil
}

// Create registers a user with a home organization and an active home
// membership, in one transaction so a user row never exists without its home
// membership.
func (s *PostgresService) Create(ctx context.Context, requester *auth.Identity, req *CreateUserRequest) (*User, error) {
	if req.Email == "" || req.Password == "" {
		return nil, fmt.Errorf("email and password are required")
	}
	if !req.PlatformRole.Valid() {
		return nil, fmt.Errorf("invalid platform role %q", req.PlatformRole)
	}
	if req.HomeOrgRole == "" {
		req.HomeOrgRole = roles.OrgMember
	}
	if !req.HomeOrgRole.Valid() {
		return nil, fmt.Errorf("invalid org role %q", req.HomeOrgRole)
	}

	decision := authz.CanManageUser(authzActorOrDeny(s, ctx, requester), authz.Target{
		PlatformRole:   req.PlatformRole,
		OrganizationID: &req.HomeOrgID,
	})
	if !decision.Allowed {
		return nil, ErrPermissionDenied
	}

	passwordHash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	user := &User{
		Email:        req.Email,
		DisplayName:  req.DisplayName,
		PasswordHash: passwordHash,
		PlatformRole: req.PlatformRole,
		HomeOrgID:    req.HomeOrgID,
		IsActive:     true,
	}

	err = tx.QueryRowContext(ctx, `
		INSERT INTO users (email, display_name, password_hash, platform_role, home_org_id, is_active)
		VALUES ($1, $2, $3, $4, $5, true)
		RETURNING id, created_at, updated_at
	`, req.Email, req.DisplayName, passwordHash, req.PlatformRole, req.HomeOrgID).
		Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO organization_memberships (organization_id, user_id, role, is_active, granted_by)
		VALUES ($1, $2, $3, true, $4)
	`, req.HomeOrgID, user.ID, req.HomeOrgRole, requester.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to create home membership: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	event := audit.NewEvent(ctx, nil, audit.EventTypeUserCreate, audit.EventStatusSuccess)
	event.OrganizationID = &req.HomeOrgID
	event.TargetUserID = &user.ID
	event.Metadata["platform_role"] = string(req.PlatformRole)
	s.logAudit(ctx, event)

	return user, nil
}

// authzActorOrDeny builds the actor snapshot, degrading to a membership-less
// actor when the lookup fails so the decision comes out denied rather than
// erroring the request.
func authzActorOrDeny(s *PostgresService, ctx context.Context, requester *auth.Identity) authz.Actor {
	actor, err := s.actorFor(ctx, requester)
	if err != nil && s.logger != nil {
		s.logger.WithError(err).Warn("failed to resolve requester membership")
	}
	return actor
}

// GetByID retrieves a user by ID
func (s *PostgresService) GetByID(ctx context.Context, id int64) (*User, error) {
	row := s.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT %s FROM users WHERE id = $1`, userColumns), id)
	user, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// GetByEmailAndOrg retrieves a user by email within a home organization
func (s *PostgresService) GetByEmailAndOrg(ctx context.Context, email string, orgID int64) (*User, error) {
	row := s.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT %s FROM users WHERE lower(email) = lower($1) AND home_org_id = $2`, userColumns),
		email, orgID)
	user, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// Authenticate verifies credentials and returns the user. When orgID is nil
// and the email exists in more than one organization, ErrAmbiguousEmail asks
// the caller to supply an organization.
func (s *PostgresService) Authenticate(ctx context.Context, email, password string, orgID *int64) (*User, error) {
	var user *User
	var err error

	if orgID != nil {
		user, err = s.GetByEmailAndOrg(ctx, email, *orgID)
		if err == ErrNotFound {
			return nil, ErrInvalidCredentials
		}
		if err != nil {
			return nil, err
		}
	} else {
		rows, qerr := s.db.QueryContext(ctx,
			fmt.Sprintf(`SELECT %s FROM users WHERE lower(email) = lower($1)`, userColumns), email)
		if qerr != nil {
			return nil, fmt.Errorf("failed to look up user: %w", qerr)
		}
		defer rows.Close()

		var matches []*User
		for rows.Next() {
			u, serr := scanUser(rows)
			if serr != nil {
				return nil, fmt.Errorf("failed to scan user: %w", serr)
			}
			matches = append(matches, u)
		}
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("error iterating users: %w", err)
		}

		switch len(matches) {
		case 0:
			return nil, ErrInvalidCredentials
		case 1:
			user = matches[0]
		default:
			return nil, ErrAmbiguousEmail
		}
	}

	if !s.hasher.Verify(user.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, ErrUserInactive
	}

	return user, nil
}

// UpdatePlatformRole changes a user's platform role. Requires both axes to
// authorize: CanManageUserRoles checks the actor's platform role against the
// target and the actor's organization role within the shared organization.
func (s *PostgresService) UpdatePlatformRole(ctx context.Context, requester *auth.Identity, userID int64, role roles.PlatformRole) error {
	if !role.Valid() {
		return fmt.Errorf("invalid platform role %q", role)
	}

	target, err := s.GetByID(ctx, userID)
	if err != nil {
		return err
	}

	homeOrg := target.HomeOrgID
	decision := authz.CanManageUserRoles(authzActorOrDeny(s, ctx, requester), authz.Target{
		UserID:         target.ID,
		PlatformRole:   target.PlatformRole,
		OrganizationID: &homeOrg,
	})
	if !decision.Allowed {
		event := audit.NewEvent(ctx, nil, audit.EventTypeRoleChange, audit.EventStatusDenied)
		event.OrganizationID = &homeOrg
		event.TargetUserID = &userID
		event.Message = decision.Reason
		s.logAudit(ctx, event)
		return ErrPermissionDenied
	}

	result, err := s.db.ExecContext(ctx,
		`UPDATE users SET platform_role = $1, updated_at = NOW() WHERE id = $2`, role, userID)
	if err != nil {
		return fmt.Errorf("failed to update platform role: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	event := audit.NewEvent(ctx, nil, audit.EventTypeRoleChange, audit.EventStatusSuccess)
	event.OrganizationID = &homeOrg
	event.TargetUserID = &userID
	event.Metadata["old_role"] = string(target.PlatformRole)
	event.Metadata["new_role"] = string(role)
	s.logAudit(ctx, event)

	return nil
}

// Deactivate soft-deletes a user and clears their context pointer so the
// account stops resolving a context immediately. Session revocation is the
// caller's responsibility.
func (s *PostgresService) Deactivate(ctx context.Context, requester *auth.Identity, userID int64) error {
	target, err := s.GetByID(ctx, userID)
	if err != nil {
		return err
	}

	homeOrg := target.HomeOrgID
	decision := authz.CanManageUser(authzActorOrDeny(s, ctx, requester), authz.Target{
		UserID:         target.ID,
		PlatformRole:   target.PlatformRole,
		OrganizationID: &homeOrg,
	})
	if !decision.Allowed {
		return ErrPermissionDenied
	}

	result, err := s.db.ExecContext(ctx,
		`UPDATE users SET is_active = false, current_org_id = NULL, updated_at = NOW() WHERE id = $1 AND is_active = true`,
		userID)
	if err != nil {
		return fmt.Errorf("failed to deactivate user: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	event := audit.NewEvent(ctx, nil, audit.EventTypeUserDeactivate, audit.EventStatusSuccess)
	event.OrganizationID = &homeOrg
	event.TargetUserID = &userID
	s.logAudit(ctx, event)

	return nil
}

// ChangePassword updates a user's password hash. Self-service changes must
// present the current password; an administrator allowed by CanManageUser may
// reset without it. Session revocation is the caller's responsibility.
func (s *PostgresService) ChangePassword(ctx context.Context, requester *auth.Identity, userID int64, currentPassword, newPassword string) error {
	target, err := s.GetByID(ctx, userID)
	if err != nil {
		return err
	}

	homeOrg := target.HomeOrgID
	if requester.UserID == userID {
		if !s.hasher.Verify(target.PasswordHash, currentPassword) {
			event := audit.NewEvent(ctx, nil, audit.EventTypePasswordReset, audit.EventStatusDenied)
			event.OrganizationID = &homeOrg
			event.TargetUserID = &userID
			event.Message = "current password mismatch"
			s.logAudit(ctx, event)
			return ErrInvalidCredentials
		}
	} else {
		decision := authz.CanManageUser(authzActorOrDeny(s, ctx, requester), authz.Target{
			UserID:         target.ID,
			PlatformRole:   target.PlatformRole,
			OrganizationID: &homeOrg,
		})
		if !decision.Allowed {
			event := audit.NewEvent(ctx, nil, audit.EventTypePasswordReset, audit.EventStatusDenied)
			event.OrganizationID = &homeOrg
			event.TargetUserID = &userID
			event.Message = decision.Reason
			s.logAudit(ctx, event)
			return ErrPermissionDenied
		}
	}

	passwordHash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx,
		`UPDATE users SET password_hash = $1, updated_at = NOW() WHERE id = $2 AND is_active = true`,
		passwordHash, userID)
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	event := audit.NewEvent(ctx, nil, audit.EventTypePasswordReset, audit.EventStatusSuccess)
	event.OrganizationID = &homeOrg
	event.TargetUserID = &userID
	event.Metadata["by_admin"] = requester.UserID != userID
	s.logAudit(ctx, event)

	return nil
}

// SetCurrentOrg persists the current-organization pointer. Nil clears the
// selection. Access validation happens in the context switch protocol; this
// is the storage primitive.
func (s *PostgresService) SetCurrentOrg(ctx context.Context, userID int64, orgID *int64) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE users SET current_org_id = $1, updated_at = NOW() WHERE id = $2 AND is_active = true`,
		orgID, userID)
	if err != nil {
		return fmt.Errorf("failed to set current organization: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

// ListByOrg returns the users holding an active membership in the
// organization, oldest account first.
func (s *PostgresService) ListByOrg(ctx context.Context, requester *auth.Identity, orgID int64) ([]*User, error) {
	if !requester.IsSuperAdmin() {
		actor, err := s.actorFor(ctx, requester)
		if err != nil {
			return nil, err
		}
		floor, _ := authz.MinimumRoleFor(authz.ActionViewMembers)
		if actor.OrganizationID == nil || *actor.OrganizationID != orgID ||
			actor.OrgRole == nil || !roles.MeetsMinimumOrg(*actor.OrgRole, floor) {
			return nil, ErrPermissionDenied
		}
	}

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT %s FROM users u
		JOIN organization_memberships m ON m.user_id = u.id
		WHERE m.organization_id = $1 AND m.is_active = true
		ORDER BY u.created_at ASC
	`, prefixedUserColumns("u")), orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	result := make([]*User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		result = append(result, u)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating users: %w", err)
	}

	return result, nil
}

func prefixedUserColumns(alias string) string {
	return fmt.Sprintf("%s.id, %s.email, %s.display_name, %s.password_hash, %s.platform_role, %s.home_org_id, %s.current_org_id, %s.is_active, %s.created_at, %s.updated_at",
		alias, alias, alias, alias, alias, alias, alias, alias, alias, alias)
}
