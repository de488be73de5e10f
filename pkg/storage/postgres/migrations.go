package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/craftwork-crm/craftwork/pkg/observability"
)

// Migration represents a database migration
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// GetMigrations returns all schema migrations in order
func GetMigrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "Create organizations table",
			SQL: `
				CREATE TABLE IF NOT EXISTS organizations (
					id BIGSERIAL PRIMARY KEY,
					code VARCHAR(100) NOT NULL UNIQUE,
					name VARCHAR(255) NOT NULL,
					is_active BOOLEAN NOT NULL DEFAULT TRUE,
					settings JSONB NOT NULL DEFAULT '{}',
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP NOT NULL DEFAULT NOW()
				);

				CREATE INDEX idx_organizations_code ON organizations(code);
				CREATE INDEX idx_organizations_is_active ON organizations(is_active);
			`,
		},
		{
			Version:     2,
			Description: "Create users table",
			SQL: `
				CREATE TABLE IF NOT EXISTS users (
					id BIGSERIAL PRIMARY KEY,
					email VARCHAR(255) NOT NULL,
					display_name VARCHAR(255) NOT NULL,
					password_hash VARCHAR(255) NOT NULL,
					platform_role VARCHAR(50) NOT NULL DEFAULT 'USER',
					home_org_id BIGINT NOT NULL REFERENCES organizations(id),
					current_org_id BIGINT REFERENCES organizations(id) ON DELETE SET NULL,
					is_active BOOLEAN NOT NULL DEFAULT TRUE,
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP NOT NULL DEFAULT NOW(),
					UNIQUE(home_org_id, email)
				);

				CREATE INDEX idx_users_email ON users(email);
				CREATE INDEX idx_users_home_org_id ON users(home_org_id);
				CREATE INDEX idx_users_is_active ON users(is_active);
			`,
		},
		{
			Version:     3,
			Description: "Create organization_memberships table",
			SQL: `
				CREATE TABLE IF NOT EXISTS organization_memberships (
					id BIGSERIAL PRIMARY KEY,
					organization_id BIGINT NOT NULL REFERENCES organizations(id) ON DELETE CASCADE,
					user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
					role VARCHAR(50) NOT NULL DEFAULT 'MEMBER',
					is_active BOOLEAN NOT NULL DEFAULT TRUE,
					joined_at TIMESTAMP NOT NULL DEFAULT NOW(),
					left_at TIMESTAMP,
					granted_by BIGINT REFERENCES users(id) ON DELETE SET NULL
				);

				-- One live membership per user per organization. Revoked rows
				-- stay behind for history and allow a later re-grant.
				CREATE UNIQUE INDEX idx_memberships_active_unique
					ON organization_memberships(organization_id, user_id)
					WHERE is_active;

				CREATE INDEX idx_memberships_user_id ON organization_memberships(user_id);
				CREATE INDEX idx_memberships_organization_id ON organization_memberships(organization_id);
				CREATE INDEX idx_memberships_is_active ON organization_memberships(is_active);
			`,
		},
	}
}

// RunMigrations executes all pending migrations, each in its own transaction
func RunMigrations(ctx context.Context, db *sql.DB, logger *observability.Logger) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INT PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at TIMESTAMP NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	rows, err := db.QueryContext(ctx, "SELECT version FROM schema_migrations ORDER BY version")
	if err != nil {
		return fmt.Errorf("failed to query migrations: %w", err)
	}

	appliedVersions := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan migration version: %w", err)
		}
		appliedVersions[version] = true
	}
	rows.Close()

	for _, migration := range GetMigrations() {
		if appliedVersions[migration.Version] {
			continue
		}

		if logger != nil {
			logger.WithFields(map[string]interface{}{
				"version":     migration.Version,
				"description": migration.Description,
			}).Info("running migration")
		}

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to start transaction: %w", err)
		}

		if _, err := tx.ExecContext(ctx, migration.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to execute migration %d: %w", migration.Version, err)
		}

		if _, err := tx.ExecContext(ctx,
			"INSERT INTO schema_migrations (version, description) VALUES ($1, $2)",
			migration.Version, migration.Description,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
		}
	}

	return nil
}
