package store

import (
	"context"
	"database/sql"
	"fmt"
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
			Description: "Create users table",
			SQL: `
				CREATE TABLE IF NOT EXISTS users (
					id BIGSERIAL PRIMARY KEY,
					name VARCHAR(50) NOT NULL,
					email VARCHAR(50) NOT NULL,
					hash VARCHAR(150) NOT NULL,
					blocked BOOLEAN NOT NULL DEFAULT FALSE,
					login_attempts INT,
					last_login_attempt TIMESTAMP,
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP,
					UNIQUE(email)
				);

				CREATE INDEX idx_users_email ON users(email);
			`,
		},
		{
			Version:     2,
			Description: "Create groups table",
			SQL: `
				CREATE TABLE IF NOT EXISTS groups (
					id BIGSERIAL PRIMARY KEY,
					name VARCHAR(50) NOT NULL,
					description VARCHAR(255),
					blocked BOOLEAN NOT NULL DEFAULT FALSE,
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP,
					UNIQUE(name)
				);
			`,
		},
		{
			Version:     3,
			Description: "Create resources table",
			SQL: `
				CREATE TABLE IF NOT EXISTS resources (
					id BIGSERIAL PRIMARY KEY,
					name VARCHAR(30) NOT NULL,
					department VARCHAR(30) NOT NULL,
					description VARCHAR(30) NOT NULL,
					UNIQUE(name)
				);
			`,
		},
		{
			Version:     4,
			Description: "Create groups_users association",
			SQL: `
				CREATE TABLE IF NOT EXISTS groups_users (
					id BIGSERIAL PRIMARY KEY,
					group_id BIGINT NOT NULL REFERENCES groups(id) ON DELETE RESTRICT,
					user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE RESTRICT,
					UNIQUE(group_id, user_id)
				);

				CREATE INDEX idx_groups_users_user_id ON groups_users(user_id);
			`,
		},
		{
			Version:     5,
			Description: "Create groups_resources association",
			SQL: `
				CREATE TABLE IF NOT EXISTS groups_resources (
					id BIGSERIAL PRIMARY KEY,
					group_id BIGINT NOT NULL REFERENCES groups(id) ON DELETE RESTRICT,
					resource_id BIGINT NOT NULL REFERENCES resources(id) ON DELETE RESTRICT,
					"write" BOOLEAN NOT NULL DEFAULT FALSE,
					"update" BOOLEAN NOT NULL DEFAULT FALSE,
					"delete" BOOLEAN NOT NULL DEFAULT FALSE,
					UNIQUE(group_id, resource_id)
				);

				CREATE INDEX idx_groups_resources_group_id ON groups_resources(group_id);
			`,
		},
		{
			Version:     6,
			Description: "Seed application resources",
			SQL: `
				INSERT INTO resources (name, department, description) VALUES
					('/users', 'Security', 'User registry'),
					('/groups', 'Security', 'User group registry'),
					('/resources', 'Security', 'System URLs')
				ON CONFLICT (name) DO NOTHING;
			`,
		},
	}
}

// RunMigrations executes all pending migrations
func RunMigrations(ctx context.Context, db *sql.DB) error {
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

	applied := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan migration version: %w", err)
		}
		applied[version] = true
	}
	rows.Close()

	for _, migration := range GetMigrations() {
		if applied[migration.Version] {
			continue
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

// SeedAdmin creates the bootstrap administrator account and group and
// grants the group every seeded resource with full permissions. It is
// a no-op when the admin user already exists.
func SeedAdmin(ctx context.Context, db *sql.DB, email, passwordHash string) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin admin seed: %w", err)
	}
	defer tx.Rollback()

	var exists int
	if err := tx.QueryRowContext(ctx,
		`SELECT count(*) FROM users WHERE email = $1`, email).Scan(&exists); err != nil {
		return fmt.Errorf("check admin user: %w", err)
	}
	if exists > 0 {
		return nil
	}

	var userID int64
	if err := tx.QueryRowContext(ctx, `
		INSERT INTO users (name, email, hash, blocked, created_at, updated_at)
		VALUES ('Administrator', $1, $2, false, NOW(), NOW())
		RETURNING id
	`, email, passwordHash).Scan(&userID); err != nil {
		return fmt.Errorf("insert admin user: %w", err)
	}

	var groupID int64
	if err := tx.QueryRowContext(ctx, `
		INSERT INTO groups (name, description, blocked, created_at, updated_at)
		VALUES ('Administrators', 'System administration group', false, NOW(), NOW())
		ON CONFLICT (name) DO UPDATE SET updated_at = NOW()
		RETURNING id
	`).Scan(&groupID); err != nil {
		return fmt.Errorf("insert admin group: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO groups_users (group_id, user_id) VALUES ($1, $2)
		ON CONFLICT (group_id, user_id) DO NOTHING
	`, groupID, userID); err != nil {
		return fmt.Errorf("associate admin user: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO groups_resources (group_id, resource_id, "write", "update", "delete")
		SELECT $1, id, true, true, true FROM resources
		ON CONFLICT (group_id, resource_id) DO NOTHING
	`, groupID); err != nil {
		return fmt.Errorf("grant admin resources: %w", err)
	}

	return tx.Commit()
}
