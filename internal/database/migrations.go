package database

import (
	"database/sql"
	"fmt"
	"sort"
)

// Migration represents a database migration
type Migration struct {
	Version int
	Up      string
	Down    string
}

// Migrations contains all database migrations
var Migrations = []Migration{
	{
		Version: 1,
		Up: `
			CREATE EXTENSION IF NOT EXISTS "uuid-ossp";

			CREATE TABLE IF NOT EXISTS users (
				id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
				email VARCHAR(255) UNIQUE NOT NULL,
				display_name VARCHAR(255) NOT NULL,
				email_verified BOOLEAN NOT NULL DEFAULT false,
				role VARCHAR(50) NOT NULL DEFAULT 'user',
				token_version INT NOT NULL DEFAULT 0,
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			);

			CREATE INDEX IF NOT EXISTS idx_users_role ON users(role);
		`,
		Down: `
			DROP TABLE IF EXISTS users;
		`,
	},
	{
		Version: 2,
		Up: `
			ALTER TABLE users
				ADD COLUMN IF NOT EXISTS banned BOOLEAN NOT NULL DEFAULT false,
				ADD COLUMN IF NOT EXISTS banned_reason TEXT,
				ADD COLUMN IF NOT EXISTS suspended_until TIMESTAMPTZ,
				ADD COLUMN IF NOT EXISTS suspension_reason TEXT,
				ADD COLUMN IF NOT EXISTS warnings INT NOT NULL DEFAULT 0,
				ADD COLUMN IF NOT EXISTS karma_points INT NOT NULL DEFAULT 0;
		`,
		Down: `
			ALTER TABLE users
				DROP COLUMN IF EXISTS banned,
				DROP COLUMN IF EXISTS banned_reason,
				DROP COLUMN IF EXISTS suspended_until,
				DROP COLUMN IF EXISTS suspension_reason,
				DROP COLUMN IF EXISTS warnings,
				DROP COLUMN IF EXISTS karma_points;
		`,
	},
	{
		Version: 3,
		Up: `
			-- owned by the group and chat services; kept here for existence checks
			CREATE TABLE IF NOT EXISTS groups (
				id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			);

			CREATE TABLE IF NOT EXISTS messages (
				id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			);
		`,
		Down: `
			DROP TABLE IF EXISTS messages;
			DROP TABLE IF EXISTS groups;
		`,
	},
	{
		Version: 4,
		Up: `
			CREATE TABLE IF NOT EXISTS reports (
				id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
				reporter_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
				reported_user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
				reported_group_id UUID REFERENCES groups(id) ON DELETE SET NULL,
				reported_message_id UUID REFERENCES messages(id) ON DELETE SET NULL,
				reason VARCHAR(50) NOT NULL,
				description TEXT NOT NULL,
				evidence_url TEXT,
				status VARCHAR(20) NOT NULL DEFAULT 'pending',
				priority VARCHAR(20) NOT NULL DEFAULT 'medium',
				resolved_by UUID REFERENCES users(id) ON DELETE SET NULL,
				resolved_at TIMESTAMPTZ,
				resolution_notes TEXT,
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				CONSTRAINT reports_no_self_report CHECK (reporter_id <> reported_user_id),
				CONSTRAINT reports_reason_check CHECK (reason IN ('spam', 'harassment', 'inappropriate_content', 'fake_profile', 'other')),
				CONSTRAINT reports_status_check CHECK (status IN ('pending', 'resolved', 'dismissed')),
				CONSTRAINT reports_priority_check CHECK (priority IN ('low', 'medium', 'high', 'urgent')),
				CONSTRAINT reports_resolved_at_check CHECK ((status = 'pending') = (resolved_at IS NULL))
			);

			CREATE INDEX IF NOT EXISTS idx_reports_status ON reports(status, created_at DESC);
			CREATE INDEX IF NOT EXISTS idx_reports_reported_user ON reports(reported_user_id);
		`,
		Down: `
			DROP TABLE IF EXISTS reports;
		`,
	},
	{
		Version: 5,
		Up: `
			CREATE TABLE IF NOT EXISTS user_warnings (
				id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
				user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
				warned_by UUID NOT NULL REFERENCES users(id),
				reason TEXT NOT NULL,
				expires_at TIMESTAMPTZ NOT NULL,
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			);

			CREATE INDEX IF NOT EXISTS idx_user_warnings_active ON user_warnings(user_id, expires_at);
		`,
		Down: `
			DROP TABLE IF EXISTS user_warnings;
		`,
	},
	{
		Version: 6,
		Up: `
			CREATE TABLE IF NOT EXISTS moderation_logs (
				id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
				moderator_id UUID NOT NULL,
				target_user_id UUID NOT NULL,
				report_id UUID REFERENCES reports(id) ON DELETE RESTRICT,
				action_type VARCHAR(50) NOT NULL,
				duration_days INT,
				reason TEXT NOT NULL,
				metadata JSONB,
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			);

			CREATE INDEX IF NOT EXISTS idx_moderation_logs_target ON moderation_logs(target_user_id, created_at DESC);
			CREATE INDEX IF NOT EXISTS idx_moderation_logs_report ON moderation_logs(report_id);

			-- audit trail of record
			CREATE OR REPLACE FUNCTION moderation_logs_immutable() RETURNS trigger AS $$
			BEGIN
				RAISE EXCEPTION 'moderation_logs is append-only';
			END;
			$$ LANGUAGE plpgsql;

			DROP TRIGGER IF EXISTS moderation_logs_no_mutation ON moderation_logs;
			CREATE TRIGGER moderation_logs_no_mutation
				BEFORE UPDATE OR DELETE ON moderation_logs
				FOR EACH ROW EXECUTE FUNCTION moderation_logs_immutable();
		`,
		Down: `
			DROP TABLE IF EXISTS moderation_logs;
			DROP FUNCTION IF EXISTS moderation_logs_immutable();
		`,
	},
	{
		Version: 7,
		Up: `
			CREATE TABLE IF NOT EXISTS karma_events (
				id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
				user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
				event_type VARCHAR(50) NOT NULL,
				delta INT NOT NULL,
				balance_after INT NOT NULL,
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			);

			CREATE INDEX IF NOT EXISTS idx_karma_events_user ON karma_events(user_id, created_at DESC);
		`,
		Down: `
			DROP TABLE IF EXISTS karma_events;
		`,
	},
}

// RunMigrations runs all pending migrations
func RunMigrations(db *sql.DB) error {
	// Ensure migrations table exists
	if err := ensureMigrationsTable(db); err != nil {
		return err
	}

	currentVersion, err := CurrentVersion(db)
	if err != nil {
		return err
	}

	for _, migration := range sortedMigrations() {
		if migration.Version <= currentVersion {
			continue
		}

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}

		if _, err := tx.Exec(migration.Up); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to run migration %d: %w", migration.Version, err)
		}

		if _, err := tx.Exec("INSERT INTO schema_migrations (version) VALUES ($1)", migration.Version); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
		}
	}

	return nil
}

// RollbackLatest reverts the most recently applied migration and returns its
// version, or 0 when nothing is applied.
func RollbackLatest(db *sql.DB) (int, error) {
	if err := ensureMigrationsTable(db); err != nil {
		return 0, err
	}

	currentVersion, err := CurrentVersion(db)
	if err != nil {
		return 0, err
	}
	if currentVersion == 0 {
		return 0, nil
	}

	var target *Migration
	for _, m := range Migrations {
		if m.Version == currentVersion {
			m := m
			target = &m
			break
		}
	}
	if target == nil {
		return 0, fmt.Errorf("migration %d is applied but unknown", currentVersion)
	}

	tx, err := db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(target.Down); err != nil {
		return 0, fmt.Errorf("failed to roll back migration %d: %w", target.Version, err)
	}
	if _, err := tx.Exec("DELETE FROM schema_migrations WHERE version = $1", target.Version); err != nil {
		return 0, fmt.Errorf("failed to unrecord migration %d: %w", target.Version, err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit rollback %d: %w", target.Version, err)
	}
	return target.Version, nil
}

func sortedMigrations() []Migration {
	sorted := make([]Migration, len(Migrations))
	copy(sorted, Migrations)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Version < sorted[j].Version })
	return sorted
}

func ensureMigrationsTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	return err
}

// CurrentVersion returns the highest applied migration version
func CurrentVersion(db *sql.DB) (int, error) {
	var version int
	err := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&version)
	if err != nil {
		return 0, err
	}
	return version, nil
}
