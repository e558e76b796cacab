package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jonathan/eligibility-intake/internal/types"
)

// ErrReferenceTaken is returned by CreateSubmission when the reference code
// collides with an existing row.
var ErrReferenceTaken = errors.New("reference id already in use")

// SubmissionInput carries the columns written on create and update.
type SubmissionInput struct {
	ReferenceID string // ignored on update
	Groups      types.RawGroups
	Status      types.SubmissionStatus
	FullName    string
	Email       string
}

const submissionColumns = `id, user_id, reference_id,
	personal_info, education_info, work_experience,
	language_skills, canadian_connections, additional_info,
	submission_status, created_at, updated_at`

// CreateSubmission inserts a submission owned by userID.
func (db *DB) CreateSubmission(ctx context.Context, userID uuid.UUID, in SubmissionInput) (*types.Submission, error) {
	g := in.Groups
	row := db.pool.QueryRow(ctx,
		`INSERT INTO eligibility_submissions (user_id, reference_id,
			personal_info, education_info, work_experience,
			language_skills, canadian_connections, additional_info,
			submission_status, full_name, email)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 RETURNING `+submissionColumns,
		userID, in.ReferenceID,
		g.PersonalInfo, g.EducationInfo, g.WorkExperience,
		g.LanguageSkills, g.CanadianConnections, g.AdditionalInfo,
		string(in.Status), in.FullName, in.Email,
	)
	s, err := scanSubmission(row)
	if err != nil {
		if isUniqueViolation(err, "eligibility_submissions_reference_id_key") {
			return nil, ErrReferenceTaken
		}
		return nil, fmt.Errorf("failed to create submission: %w", err)
	}
	return s, nil
}

// UpdateSubmission replaces the answers and status of a submission owned by
// userID. Returns nil, nil when no such submission is owned by userID.
func (db *DB) UpdateSubmission(ctx context.Context, userID uuid.UUID, referenceID string, in SubmissionInput) (*types.Submission, error) {
	g := in.Groups
	row := db.pool.QueryRow(ctx,
		`UPDATE eligibility_submissions SET
			personal_info = $3, education_info = $4, work_experience = $5,
			language_skills = $6, canadian_connections = $7, additional_info = $8,
			submission_status = $9, full_name = $10, email = $11, updated_at = NOW()
		 WHERE user_id = $1 AND reference_id = $2
		 RETURNING `+submissionColumns,
		userID, referenceID,
		g.PersonalInfo, g.EducationInfo, g.WorkExperience,
		g.LanguageSkills, g.CanadianConnections, g.AdditionalInfo,
		string(in.Status), in.FullName, in.Email,
	)
	s, err := scanSubmission(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to update submission: %w", err)
	}
	return s, nil
}

// ListSubmissionsByUser returns every submission owned by userID, newest first.
func (db *DB) ListSubmissionsByUser(ctx context.Context, userID uuid.UUID) ([]types.Submission, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT `+submissionColumns+`
		 FROM eligibility_submissions
		 WHERE user_id = $1
		 ORDER BY created_at DESC, id DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list submissions: %w", err)
	}
	defer rows.Close()

	var out []types.Submission
	for rows.Next() {
		s, err := scanSubmission(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan submission: %w", err)
		}
		out = append(out, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list submissions: %w", err)
	}
	return out, nil
}

// GetLatestSubmission returns the most recently created submission owned by
// userID. Returns nil, nil when there is none.
func (db *DB) GetLatestSubmission(ctx context.Context, userID uuid.UUID) (*types.Submission, error) {
	row := db.pool.QueryRow(ctx,
		`SELECT `+submissionColumns+`
		 FROM eligibility_submissions
		 WHERE user_id = $1
		 ORDER BY created_at DESC, id DESC
		 LIMIT 1`,
		userID,
	)
	s, err := scanSubmission(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get latest submission: %w", err)
	}
	return s, nil
}

// GetSubmissionByReference returns the submission with the given reference
// code if it is owned by userID. Returns nil, nil otherwise.
func (db *DB) GetSubmissionByReference(ctx context.Context, userID uuid.UUID, referenceID string) (*types.Submission, error) {
	row := db.pool.QueryRow(ctx,
		`SELECT `+submissionColumns+`
		 FROM eligibility_submissions
		 WHERE user_id = $1 AND reference_id = $2`,
		userID, referenceID,
	)
	s, err := scanSubmission(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get submission: %w", err)
	}
	return s, nil
}

// DeleteSubmission removes a submission owned by userID and reports whether a
// row was deleted.
func (db *DB) DeleteSubmission(ctx context.Context, userID uuid.UUID, referenceID string) (bool, error) {
	tag, err := db.pool.Exec(ctx,
		`DELETE FROM eligibility_submissions WHERE user_id = $1 AND reference_id = $2`,
		userID, referenceID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to delete submission: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func scanSubmission(row pgx.Row) (*types.Submission, error) {
	var s types.Submission
	var status string
	err := row.Scan(&s.ID, &s.UserID, &s.ReferenceID,
		&s.Groups.PersonalInfo, &s.Groups.EducationInfo, &s.Groups.WorkExperience,
		&s.Groups.LanguageSkills, &s.Groups.CanadianConnections, &s.Groups.AdditionalInfo,
		&status, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	s.Status = types.SubmissionStatus(status)
	return &s, nil
}
