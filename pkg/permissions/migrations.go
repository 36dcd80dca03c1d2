package permissions

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/bcgov/sbc-auth-sub003/pkg/observability"
)

// Migration represents a database migration
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// GetMigrations returns the schema owned by the authorization service: the
// permission catalog plus the account tables the authorization view reads.
func GetMigrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "Create users table",
			SQL: `
				CREATE TABLE IF NOT EXISTS users (
					id BIGSERIAL PRIMARY KEY,
					username VARCHAR(100) NOT NULL,
					keycloak_guid VARCHAR(36) NOT NULL,
					first_name VARCHAR(200),
					last_name VARCHAR(200),
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					modified_at TIMESTAMP NOT NULL DEFAULT NOW(),
					UNIQUE(keycloak_guid)
				);

				CREATE INDEX idx_users_keycloak_guid ON users(keycloak_guid);
				CREATE INDEX idx_users_username ON users(username);
			`,
		},
		{
			Version:     2,
			Description: "Create orgs table",
			SQL: `
				CREATE TABLE IF NOT EXISTS orgs (
					id BIGSERIAL PRIMARY KEY,
					name VARCHAR(250) NOT NULL,
					status_code VARCHAR(30) NOT NULL DEFAULT 'ACTIVE',
					type_code VARCHAR(30) NOT NULL DEFAULT 'BASIC',
					branch_name VARCHAR(100),
					bcol_user_id VARCHAR(20),
					bcol_account_id VARCHAR(20),
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					modified_at TIMESTAMP NOT NULL DEFAULT NOW()
				);

				CREATE INDEX idx_orgs_status_code ON orgs(status_code);
				CREATE INDEX idx_orgs_name ON orgs(name);
			`,
		},
		{
			Version:     3,
			Description: "Create memberships table",
			SQL: `
				CREATE TABLE IF NOT EXISTS memberships (
					id BIGSERIAL PRIMARY KEY,
					user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
					org_id BIGINT NOT NULL REFERENCES orgs(id) ON DELETE CASCADE,
					membership_type_code VARCHAR(30) NOT NULL,
					status VARCHAR(30) NOT NULL DEFAULT 'ACTIVE',
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					modified_at TIMESTAMP NOT NULL DEFAULT NOW(),
					UNIQUE(user_id, org_id)
				);

				CREATE INDEX idx_memberships_user_id ON memberships(user_id);
				CREATE INDEX idx_memberships_org_id ON memberships(org_id);
				CREATE INDEX idx_memberships_status ON memberships(status);
			`,
		},
		{
			Version:     4,
			Description: "Create entities and affiliations tables",
			SQL: `
				CREATE TABLE IF NOT EXISTS entities (
					id BIGSERIAL PRIMARY KEY,
					business_identifier VARCHAR(75) NOT NULL,
					name VARCHAR(250),
					corp_type_code VARCHAR(15),
					folio_number VARCHAR(50),
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					UNIQUE(business_identifier)
				);

				CREATE INDEX idx_entities_business_identifier ON entities(business_identifier);

				CREATE TABLE IF NOT EXISTS affiliations (
					id BIGSERIAL PRIMARY KEY,
					org_id BIGINT NOT NULL REFERENCES orgs(id) ON DELETE CASCADE,
					entity_id BIGINT NOT NULL REFERENCES entities(id) ON DELETE CASCADE,
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					UNIQUE(org_id, entity_id)
				);

				CREATE INDEX idx_affiliations_org_id ON affiliations(org_id);
				CREATE INDEX idx_affiliations_entity_id ON affiliations(entity_id);
			`,
		},
		{
			Version:     5,
			Description: "Create product_subscriptions table",
			SQL: `
				CREATE TABLE IF NOT EXISTS product_subscriptions (
					id BIGSERIAL PRIMARY KEY,
					org_id BIGINT NOT NULL REFERENCES orgs(id) ON DELETE CASCADE,
					product_code VARCHAR(30) NOT NULL,
					status_code VARCHAR(30) NOT NULL DEFAULT 'ACTIVE',
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					UNIQUE(org_id, product_code)
				);

				CREATE INDEX idx_product_subscriptions_org_id ON product_subscriptions(org_id);
				CREATE INDEX idx_product_subscriptions_product_code ON product_subscriptions(product_code);
			`,
		},
		{
			Version:     6,
			Description: "Create permissions catalog table",
			SQL: `
				CREATE TABLE IF NOT EXISTS permissions (
					id BIGSERIAL PRIMARY KEY,
					membership_type VARCHAR(30) NOT NULL,
					org_status VARCHAR(30),
					action VARCHAR(100) NOT NULL,
					created_at TIMESTAMP NOT NULL DEFAULT NOW()
				);

				CREATE INDEX idx_permissions_membership_type ON permissions(membership_type);
				CREATE INDEX idx_permissions_org_status ON permissions(org_status);
			`,
		},
	}
}

// RunMigrations executes all pending migrations
func RunMigrations(ctx context.Context, db *sql.DB, logger *observability.Logger) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS auth_migrations (
			version INT PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at TIMESTAMP NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	rows, err := db.QueryContext(ctx, "SELECT version FROM auth_migrations ORDER BY version")
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

		logger.WithFields(map[string]interface{}{
			"version":     migration.Version,
			"description": migration.Description,
		}).Info("running migration")

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to start transaction: %w", err)
		}

		if _, err := tx.ExecContext(ctx, migration.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to execute migration %d: %w", migration.Version, err)
		}

		if _, err := tx.ExecContext(ctx,
			"INSERT INTO auth_migrations (version, description) VALUES ($1, $2)",
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
