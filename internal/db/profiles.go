package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// GetProfile retrieves the profile for a user. Returns nil, nil when the
// profile has not been created yet.
func (db *DB) GetProfile(ctx context.Context, id uuid.UUID) (*Profile, error) {
	var p Profile
	err := db.pool.QueryRow(ctx,
		`SELECT id, email, full_name, created_at, updated_at
		 FROM user_profiles WHERE id = $1`,
		id,
	).Scan(&p.ID, &p.Email, &p.FullName, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	return &p, nil
}

// CreateProfile inserts a profile. A concurrent creator (e.g. a database
// trigger) winning the race is not an error: the existing row is returned.
func (db *DB) CreateProfile(ctx context.Context, id uuid.UUID, email, fullName string) (*Profile, error) {
	var p Profile
	err := db.pool.QueryRow(ctx,
		`INSERT INTO user_profiles (id, email, full_name)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (id) DO NOTHING
		 RETURNING id, email, full_name, created_at, updated_at`,
		id, normalizeEmail(email), fullName,
	).Scan(&p.ID, &p.Email, &p.FullName, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return db.GetProfile(ctx, id)
		}
		return nil, fmt.Errorf("failed to create profile: %w", err)
	}
	return &p, nil
}

// UpdateProfile syncs email and full name onto an existing profile.
// Returns nil, nil when the profile does not exist.
func (db *DB) UpdateProfile(ctx context.Context, id uuid.UUID, email, fullName string) (*Profile, error) {
	var p Profile
	err := db.pool.QueryRow(ctx,
		`UPDATE user_profiles SET email = $2, full_name = $3, updated_at = NOW()
		 WHERE id = $1
		 RETURNING id, email, full_name, created_at, updated_at`,
		id, normalizeEmail(email), fullName,
	).Scan(&p.ID, &p.Email, &p.FullName, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}
	return &p, nil
}
