package db

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Migration is one idempotent schema step.
type Migration struct {
	Name string
	SQL  string
}

// Migrations lists the schema steps in the order they are applied.
var Migrations = []Migration{
	{
		Name: "create_extensions",
		SQL:  `CREATE EXTENSION IF NOT EXISTS pgcrypto`,
	},
	{
		Name: "create_users",
		SQL: `CREATE TABLE IF NOT EXISTS users (
			id            UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			email         TEXT NOT NULL,
			password_hash TEXT NOT NULL,
			created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			CONSTRAINT users_email_key UNIQUE (email)
		)`,
	},
	{
		Name: "create_user_profiles",
		SQL: `CREATE TABLE IF NOT EXISTS user_profiles (
			id         UUID PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE,
			email      TEXT NOT NULL,
			full_name  TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
	},
	{
		Name: "create_eligibility_submissions",
		SQL: `CREATE TABLE IF NOT EXISTS eligibility_submissions (
			id                   UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			user_id              UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			reference_id         TEXT NOT NULL,
			personal_info        JSONB,
			education_info       JSONB,
			work_experience      JSONB,
			language_skills      JSONB,
			canadian_connections JSONB,
			additional_info      JSONB,
			submission_status    TEXT NOT NULL DEFAULT 'draft'
			                     CHECK (submission_status IN ('draft', 'submitted')),
			full_name            TEXT NOT NULL DEFAULT '',
			email                TEXT NOT NULL DEFAULT '',
			created_at           TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at           TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			CONSTRAINT eligibility_submissions_reference_id_key UNIQUE (reference_id)
		)`,
	},
	{
		Name: "index_submissions_by_owner",
		SQL: `CREATE INDEX IF NOT EXISTS idx_eligibility_submissions_user_created
			ON eligibility_submissions (user_id, created_at DESC)`,
	},
	{
		Name: "index_submissions_by_email",
		SQL: `CREATE INDEX IF NOT EXISTS idx_eligibility_submissions_email
			ON eligibility_submissions (email)`,
	},
}

// Migrate applies every migration. Each step is idempotent, so Migrate is
// safe to run on every start.
func (db *DB) Migrate(ctx context.Context, log *zap.Logger) error {
	log.Info("starting database migrations", zap.Int("count", len(Migrations)))

	for _, m := range Migrations {
		if _, err := db.pool.Exec(ctx, m.SQL); err != nil {
			log.Error("migration failed", zap.String("name", m.Name), zap.Error(err))
			return fmt.Errorf("migration %s: %w", m.Name, err)
		}
		log.Debug("migration applied", zap.String("name", m.Name))
	}

	log.Info("database migrations complete")
	return nil
}
