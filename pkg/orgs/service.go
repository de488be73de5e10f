package orgs

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/craftwork-crm/craftwork/pkg/audit"
	"github.com/craftwork-crm/craftwork/pkg/auth"
	"github.com/craftwork-crm/craftwork/pkg/observability"
	"github.com/craftwork-crm/craftwork/pkg/roles"
)

// PostgresService implements the Service interface using PostgreSQL
type PostgresService struct {
	db     *sql.DB
	audit  audit.Logger
	logger *observability.Logger
}

// NewPostgresService creates a new PostgresService
func NewPostgresService(db *sql.DB, auditLogger audit.Logger, logger *observability.Logger) *PostgresService {
	if auditLogger == nil {
		auditLogger = audit.NewNoopLogger()
	}
	return &PostgresService{db: db, audit: auditLogger, logger: logger}
}

// logAudit writes an audit event without failing the operation
func (s *PostgresService) logAudit(ctx context.Context, event *audit.Event) {
	if err := s.audit.Log(ctx, event); err != nil && s.logger != nil {
		s.logger.WithError(err).Warn("failed to write audit event")
	}
}

// CreateOrganization creates a new organization. Requires a platform role of
// ORG_ADMIN or super-admin.
func (s *PostgresService) CreateOrganization(ctx context.Context, requester *auth.Identity, req *CreateOrgRequest) (*Organization, error) {
	if !requester.IsSuperAdmin() && !roles.MeetsMinimumPlatform(requester.PlatformRole, roles.PlatformOrgAdmin) {
		return nil, ErrPermissionDenied
	}

	if req.Name == "" {
		return nil, fmt.Errorf("organization name is required")
	}

	org := &Organization{
		Code:     req.Code,
		Name:     req.Name,
		IsActive: true,
		Settings: req.Settings,
	}
	if org.Code == "" {
		org.Code = generateCode(org.Name)
	}

	settingsJSON, err := json.Marshal(org.Settings)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal settings: %w", err)
	}

	query := `
		INSERT INTO organizations (code, name, is_active, settings)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at
	`
	err = s.db.QueryRowContext(ctx, query, org.Code, org.Name, org.IsActive, settingsJSON).
		Scan(&org.ID, &org.CreatedAt, &org.UpdatedAt)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return nil, ErrCodeTaken
		}
		return nil, fmt.Errorf("failed to create organization: %w", err)
	}

	event := audit.NewEvent(ctx, nil, audit.EventTypeOrgCreate, audit.EventStatusSuccess)
	event.OrganizationID = &org.ID
	event.TargetID = org.Code
	s.logAudit(ctx, event)

	return org, nil
}

// GetOrganization retrieves an organization by ID
func (s *PostgresService) GetOrganization(ctx context.Context, id int64) (*Organization, error) {
	return s.getOrganization(ctx, "id = $1", id)
}

// GetOrganizationByCode retrieves an organization by its code
func (s *PostgresService) GetOrganizationByCode(ctx context.Context, code string) (*Organization, error) {
	return s.getOrganization(ctx, "code = $1", code)
}

func (s *PostgresService) getOrganization(ctx context.Context, where string, arg interface{}) (*Organization, error) {
	query := fmt.Sprintf(`
		SELECT id, code, name, is_active, settings, created_at, updated_at
		FROM organizations
		WHERE %s
	`, where)

	org := &Organization{}
	var settingsJSON []byte
	err := s.db.QueryRowContext(ctx, query, arg).Scan(
		&org.ID, &org.Code, &org.Name, &org.IsActive, &settingsJSON,
		&org.CreatedAt, &org.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrOrgNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get organization: %w", err)
	}

	if len(settingsJSON) > 0 {
		if err := json.Unmarshal(settingsJSON, &org.Settings); err != nil {
			return nil, fmt.Errorf("failed to unmarshal settings: %w", err)
		}
	}

	return org, nil
}

// ListActiveOrganizations returns every active organization, ordered by name.
// Backs the super-admin selection picker, which cannot be derived from
// memberships.
func (s *PostgresService) ListActiveOrganizations(ctx context.Context) ([]*Organization, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, code, name, is_active, settings, created_at, updated_at
		FROM organizations
		WHERE is_active = true
		ORDER BY name ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list organizations: %w", err)
	}
	defer rows.Close()

	result := make([]*Organization, 0)
	for rows.Next() {
		org := &Organization{}
		var settingsJSON []byte
		if err := rows.Scan(
			&org.ID, &org.Code, &org.Name, &org.IsActive, &settingsJSON,
			&org.CreatedAt, &org.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan organization: %w", err)
		}
		if len(settingsJSON) > 0 {
			if err := json.Unmarshal(settingsJSON, &org.Settings); err != nil {
				return nil, fmt.Errorf("failed to unmarshal settings: %w", err)
			}
		}
		result = append(result, org)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating organizations: %w", err)
	}

	return result, nil
}

// UpdateOrganization updates an organization. Requires org admin within the
// organization or super-admin.
func (s *PostgresService) UpdateOrganization(ctx context.Context, requester *auth.Identity, id int64, updates *UpdateOrgRequest) error {
	if err := s.requireOrgAdmin(ctx, requester, id); err != nil {
		return err
	}

	setClauses := []string{}
	args := []interface{}{}
	argPos := 1

	if updates.Name != nil {
		setClauses = append(setClauses, fmt.Sprintf("name = $%d", argPos))
		args = append(args, *updates.Name)
		argPos++
	}
	if updates.Settings != nil {
		settingsJSON, err := json.Marshal(updates.Settings)
		if err != nil {
			return fmt.Errorf("failed to marshal settings: %w", err)
		}
		setClauses = append(setClauses, fmt.Sprintf("settings = $%d", argPos))
		args = append(args, settingsJSON)
		argPos++
	}

	if len(setClauses) == 0 {
		return nil // Nothing to update
	}

	setClauses = append(setClauses, "updated_at = NOW()")
	args = append(args, id)
	query := fmt.Sprintf("UPDATE organizations SET %s WHERE id = $%d", strings.Join(setClauses, ", "), argPos)

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update organization: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrOrgNotFound
	}

	return nil
}

// DeactivateOrganization soft deletes an organization. Requires a platform
// role of ORG_ADMIN or super-admin. Active memberships remain but no longer
// grant context access while the organization is inactive.
func (s *PostgresService) DeactivateOrganization(ctx context.Context, requester *auth.Identity, id int64) error {
	if !requester.IsSuperAdmin() && !roles.MeetsMinimumPlatform(requester.PlatformRole, roles.PlatformOrgAdmin) {
		return ErrPermissionDenied
	}

	query := `UPDATE organizations SET is_active = false, updated_at = NOW() WHERE id = $1 AND is_active = true`
	result, err := s.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to deactivate organization: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrOrgNotFound
	}

	event := audit.NewEvent(ctx, nil, audit.EventTypeOrgDeactivate, audit.EventStatusSuccess)
	event.OrganizationID = &id
	s.logAudit(ctx, event)

	return nil
}

// generateCode derives a URL-safe code from an organization name
func generateCode(name string) string {
	code := strings.ToLower(name)
	code = strings.ReplaceAll(code, " ", "-")
	code = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' {
			return r
		}
		return -1
	}, code)
	return code
}
