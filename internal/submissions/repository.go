// Package submissions stores Answer Sets as persisted submissions scoped to
// the calling identity.
package submissions

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jonathan/eligibility-intake/internal/db"
	"github.com/jonathan/eligibility-intake/internal/mapper"
	"github.com/jonathan/eligibility-intake/internal/types"
)

// referenceAttempts bounds regeneration after a reference collision.
const referenceAttempts = 3

// MsgSubmittedIsFinal rejects moving a submitted record back to draft.
const MsgSubmittedIsFinal = "A submitted application cannot be changed back to a draft"

// Store is the subset of the database used for submissions.
type Store interface {
	CreateSubmission(ctx context.Context, userID uuid.UUID, in db.SubmissionInput) (*types.Submission, error)
	UpdateSubmission(ctx context.Context, userID uuid.UUID, referenceID string, in db.SubmissionInput) (*types.Submission, error)
	ListSubmissionsByUser(ctx context.Context, userID uuid.UUID) ([]types.Submission, error)
	GetLatestSubmission(ctx context.Context, userID uuid.UUID) (*types.Submission, error)
	GetSubmissionByReference(ctx context.Context, userID uuid.UUID, referenceID string) (*types.Submission, error)
	DeleteSubmission(ctx context.Context, userID uuid.UUID, referenceID string) (bool, error)
}

// Notifier sends best-effort notifications without blocking the caller.
type Notifier interface {
	DispatchAsync(kind types.EventKind, identity *types.Identity, answers *types.FormData)
}

// Repository creates, updates and reads submissions for one identity at a time.
type Repository struct {
	store    Store
	notifier Notifier
	log      *zap.Logger
	now      func() time.Time
}

// New creates a Repository. notifier may be nil.
func New(store Store, notifier Notifier, log *zap.Logger) *Repository {
	return &Repository{
		store:    store,
		notifier: notifier,
		log:      log.Named("submissions"),
		now:      time.Now,
	}
}

// Create maps answers to the nested record shape and writes a new submission.
// A submitted create fires a completion notification after the write.
func (r *Repository) Create(ctx context.Context, identity *types.Identity, answers types.FormData, status types.SubmissionStatus) (*types.Submission, error) {
	in, err := r.input(identity, answers, status)
	if err != nil {
		return nil, err
	}

	var created *types.Submission
	for attempt := 0; attempt < referenceAttempts; attempt++ {
		in.ReferenceID = NewReference(r.now())
		created, err = r.store.CreateSubmission(ctx, identity.ID, in)
		if !errors.Is(err, db.ErrReferenceTaken) {
			break
		}
		r.log.Debug("reference collision, regenerating", zap.String("reference_id", in.ReferenceID))
	}
	if err != nil {
		return nil, &types.ErrWrite{Op: "create submission", Err: err}
	}

	r.log.Info("submission created",
		zap.String("reference_id", created.ReferenceID),
		zap.String("status", string(created.Status)))
	if status == types.StatusSubmitted {
		r.notify(identity, answers)
	}
	return created, nil
}

// Update overwrites the answers and status of an owned submission. Moving a
// draft to submitted fires a completion notification after the write. A
// submitted record never goes back to draft.
func (r *Repository) Update(ctx context.Context, identity *types.Identity, referenceID string, answers types.FormData, status types.SubmissionStatus) (*types.Submission, error) {
	in, err := r.input(identity, answers, status)
	if err != nil {
		return nil, err
	}

	existing, err := r.store.GetSubmissionByReference(ctx, identity.ID, referenceID)
	if err != nil {
		return nil, &types.ErrWrite{Op: "update submission", Err: err}
	}
	if existing == nil {
		return nil, &types.ErrNotFound{Resource: "submission", Key: referenceID}
	}
	if existing.Status == types.StatusSubmitted && status != types.StatusSubmitted {
		return nil, &types.ErrValidation{Field: "status", Message: MsgSubmittedIsFinal}
	}

	updated, err := r.store.UpdateSubmission(ctx, identity.ID, referenceID, in)
	if err != nil {
		return nil, &types.ErrWrite{Op: "update submission", Err: err}
	}
	if updated == nil {
		// Deleted between the lookup and the write.
		return nil, &types.ErrNotFound{Resource: "submission", Key: referenceID}
	}

	r.log.Info("submission updated",
		zap.String("reference_id", referenceID),
		zap.String("status", string(updated.Status)))
	if status == types.StatusSubmitted && existing.Status != types.StatusSubmitted {
		r.notify(identity, answers)
	}
	return updated, nil
}

// SaveDraft creates a draft, or updates the draft named by referenceID.
func (r *Repository) SaveDraft(ctx context.Context, identity *types.Identity, referenceID string, answers types.FormData) (*types.Submission, error) {
	if referenceID == "" {
		return r.Create(ctx, identity, answers, types.StatusDraft)
	}
	return r.Update(ctx, identity, referenceID, answers, types.StatusDraft)
}

// ListByOwner returns the identity's submissions, newest first.
func (r *Repository) ListByOwner(ctx context.Context, identity *types.Identity) ([]types.Submission, error) {
	if identity == nil {
		return nil, &types.ErrNotAuthenticated{}
	}
	list, err := r.store.ListSubmissionsByUser(ctx, identity.ID)
	if err != nil {
		return nil, &types.ErrNetwork{Op: "list submissions", Err: err}
	}
	if list == nil {
		list = []types.Submission{}
	}
	return list, nil
}

// FetchLatest returns the identity's newest submission, or nil when there is none.
func (r *Repository) FetchLatest(ctx context.Context, identity *types.Identity) (*types.Submission, error) {
	if identity == nil {
		return nil, &types.ErrNotAuthenticated{}
	}
	latest, err := r.store.GetLatestSubmission(ctx, identity.ID)
	if err != nil {
		return nil, &types.ErrNetwork{Op: "fetch latest submission", Err: err}
	}
	return latest, nil
}

// FetchLatestAnswers returns the newest submission decoded back into an
// Answer Set, or nil when there is none.
func (r *Repository) FetchLatestAnswers(ctx context.Context, identity *types.Identity) (*types.FormData, error) {
	latest, err := r.FetchLatest(ctx, identity)
	if err != nil || latest == nil {
		return nil, err
	}
	answers := r.decode(latest)
	return &answers, nil
}

// FetchByReference returns an owned submission and its decoded answers.
func (r *Repository) FetchByReference(ctx context.Context, identity *types.Identity, referenceID string) (*types.Submission, types.FormData, error) {
	if identity == nil {
		return nil, types.FormData{}, &types.ErrNotAuthenticated{}
	}
	s, err := r.store.GetSubmissionByReference(ctx, identity.ID, referenceID)
	if err != nil {
		return nil, types.FormData{}, &types.ErrNetwork{Op: "fetch submission", Err: err}
	}
	if s == nil {
		return nil, types.FormData{}, &types.ErrNotFound{Resource: "submission", Key: referenceID}
	}
	return s, r.decode(s), nil
}

// Delete removes an owned submission.
func (r *Repository) Delete(ctx context.Context, identity *types.Identity, referenceID string) error {
	if identity == nil {
		return &types.ErrNotAuthenticated{}
	}
	deleted, err := r.store.DeleteSubmission(ctx, identity.ID, referenceID)
	if err != nil {
		return &types.ErrWrite{Op: "delete submission", Err: err}
	}
	if !deleted {
		return &types.ErrNotFound{Resource: "submission", Key: referenceID}
	}
	r.log.Info("submission deleted", zap.String("reference_id", referenceID))
	return nil
}

// Summarize counts submissions by status.
func Summarize(list []types.Submission) types.StatusCounts {
	counts := types.StatusCounts{Total: len(list)}
	for _, s := range list {
		switch s.Status {
		case types.StatusDraft:
			counts.Draft++
		case types.StatusSubmitted:
			counts.Submitted++
		}
	}
	return counts
}

// input validates and encodes the columns for a write.
func (r *Repository) input(identity *types.Identity, answers types.FormData, status types.SubmissionStatus) (db.SubmissionInput, error) {
	if identity == nil {
		return db.SubmissionInput{}, &types.ErrNotAuthenticated{}
	}
	if !status.Valid() {
		return db.SubmissionInput{}, fmt.Errorf("unknown submission status %q", status)
	}
	// Drafts may be incomplete; submitted answers must be complete.
	if status == types.StatusSubmitted {
		if err := answers.Validate(); err != nil {
			return db.SubmissionInput{}, err
		}
	}

	groups, err := mapper.Encode(mapper.ToRecord(answers))
	if err != nil {
		return db.SubmissionInput{}, &types.ErrWrite{Op: "encode submission", Err: err}
	}
	return db.SubmissionInput{
		Groups:   groups,
		Status:   status,
		FullName: answers.FullName,
		Email:    answers.Email,
	}, nil
}

func (r *Repository) decode(s *types.Submission) types.FormData {
	answers, failed := mapper.Decode(s.Groups)
	if len(failed) > 0 {
		r.log.Warn("submission groups could not be decoded, using defaults",
			zap.String("reference_id", s.ReferenceID),
			zap.Strings("groups", failed))
	}
	return answers
}

// notify fires the completion notification. The identity's own name and
// email win; the answers fill them in when the identity lacks them.
func (r *Repository) notify(identity *types.Identity, answers types.FormData) {
	if r.notifier == nil {
		return
	}
	who := *identity
	if who.Email == "" {
		who.Email = answers.Email
	}
	if who.FullName == "" {
		who.FullName = answers.FullName
	}
	r.notifier.DispatchAsync(types.EventFormCompletion, &who, &answers)
}
