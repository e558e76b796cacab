package types

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// SubmissionStatus is the lifecycle status of a persisted submission.
type SubmissionStatus string

// Submission statuses.
const (
	StatusDraft     SubmissionStatus = "draft"
	StatusSubmitted SubmissionStatus = "submitted"
)

// Valid reports whether s is a known status.
func (s SubmissionStatus) Valid() bool {
	return s == StatusDraft || s == StatusSubmitted
}

// Group names of the nested persisted record, in storage order.
const (
	GroupPersonal    = "personal_info"
	GroupEducation   = "education_info"
	GroupWork        = "work_experience"
	GroupLanguage    = "language_skills"
	GroupConnections = "canadian_connections"
	GroupAdditional  = "additional_info"
)

// GroupNames lists every nested group.
var GroupNames = []string{
	GroupPersonal, GroupEducation, GroupWork, GroupLanguage, GroupConnections, GroupAdditional,
}

// Group is one nested group of a persisted submission.
type Group map[string]any

// Groups is the nested record shape written to storage.
type Groups struct {
	PersonalInfo        Group `json:"personal_info"`
	EducationInfo       Group `json:"education_info"`
	WorkExperience      Group `json:"work_experience"`
	LanguageSkills      Group `json:"language_skills"`
	CanadianConnections Group `json:"canadian_connections"`
	AdditionalInfo      Group `json:"additional_info"`
}

// RawGroups is the nested record shape read back from storage. Each group may
// be a JSON object or a JSON string holding an encoded object.
type RawGroups struct {
	PersonalInfo        json.RawMessage `json:"personal_info"`
	EducationInfo       json.RawMessage `json:"education_info"`
	WorkExperience      json.RawMessage `json:"work_experience"`
	LanguageSkills      json.RawMessage `json:"language_skills"`
	CanadianConnections json.RawMessage `json:"canadian_connections"`
	AdditionalInfo      json.RawMessage `json:"additional_info"`
}

// Submission is a persisted Answer Set plus metadata.
type Submission struct {
	ID          uuid.UUID        `json:"id"`
	UserID      uuid.UUID        `json:"user_id"`
	ReferenceID string           `json:"reference_id"`
	Groups      RawGroups        `json:"groups"`
	Status      SubmissionStatus `json:"submission_status"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

// StatusCounts summarizes a set of submissions for the dashboard.
type StatusCounts struct {
	Total     int `json:"total"`
	Draft     int `json:"draft"`
	Submitted int `json:"submitted"`
}
