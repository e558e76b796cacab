package server

import (
	"context"
	"net/http"

	"github.com/jonathan/eligibility-intake/internal/server/middleware"
	"github.com/jonathan/eligibility-intake/internal/submissions"
	"github.com/jonathan/eligibility-intake/internal/types"
)

// SubmissionStore is the submission repository behind the REST endpoints.
type SubmissionStore interface {
	ListByOwner(ctx context.Context, identity *types.Identity) ([]types.Submission, error)
	FetchLatest(ctx context.Context, identity *types.Identity) (*types.Submission, error)
	FetchByReference(ctx context.Context, identity *types.Identity, referenceID string) (*types.Submission, types.FormData, error)
	Update(ctx context.Context, identity *types.Identity, referenceID string, answers types.FormData, status types.SubmissionStatus) (*types.Submission, error)
	Delete(ctx context.Context, identity *types.Identity, referenceID string) error
}

type submissionListResponse struct {
	Submissions []types.Submission `json:"submissions"`
	Counts      types.StatusCounts `json:"counts"`
}

type submissionResponse struct {
	Submission *types.Submission `json:"submission"`
	Answers    types.FormData    `json:"answers"`
}

type updateSubmissionRequest struct {
	Answers types.FormData         `json:"answers"`
	Status  types.SubmissionStatus `json:"status"`
}

// caller returns the identity the auth middleware attached to r.
func (s *Server) caller(w http.ResponseWriter, r *http.Request) (*types.Identity, bool) {
	userID, err := middleware.GetUserID(r)
	if err != nil {
		s.errorResponse(w, http.StatusUnauthorized, "Unauthorized")
		return nil, false
	}
	return &types.Identity{ID: userID}, true
}

func (s *Server) handleListSubmissions(w http.ResponseWriter, r *http.Request) {
	identity, ok := s.caller(w, r)
	if !ok {
		return
	}
	list, err := s.subs.ListByOwner(r.Context(), identity)
	if err != nil {
		s.failure(w, err)
		return
	}
	if list == nil {
		list = []types.Submission{}
	}
	s.jsonResponse(w, http.StatusOK, submissionListResponse{
		Submissions: list,
		Counts:      submissions.Summarize(list),
	})
}

func (s *Server) handleLatestSubmission(w http.ResponseWriter, r *http.Request) {
	identity, ok := s.caller(w, r)
	if !ok {
		return
	}
	latest, err := s.subs.FetchLatest(r.Context(), identity)
	if err != nil {
		s.failure(w, err)
		return
	}
	if latest == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	s.writeSubmission(w, r, identity, latest.ReferenceID)
}

func (s *Server) handleGetSubmission(w http.ResponseWriter, r *http.Request) {
	identity, ok := s.caller(w, r)
	if !ok {
		return
	}
	s.writeSubmission(w, r, identity, r.PathValue("ref"))
}

func (s *Server) writeSubmission(w http.ResponseWriter, r *http.Request, identity *types.Identity, ref string) {
	sub, answers, err := s.subs.FetchByReference(r.Context(), identity, ref)
	if err != nil {
		s.failure(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, submissionResponse{Submission: sub, Answers: answers})
}

func (s *Server) handleUpdateSubmission(w http.ResponseWriter, r *http.Request) {
	identity, ok := s.caller(w, r)
	if !ok {
		return
	}
	var req updateSubmissionRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if req.Status == "" {
		req.Status = types.StatusSubmitted
	}
	if !req.Status.Valid() {
		s.failure(w, &types.ErrValidation{Field: "status", Message: "Status must be draft or submitted"})
		return
	}
	if req.Status == types.StatusSubmitted {
		if err := req.Answers.Validate(); err != nil {
			s.failure(w, err)
			return
		}
	}

	sub, err := s.subs.Update(r.Context(), identity, r.PathValue("ref"), req.Answers, req.Status)
	if err != nil {
		s.failure(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, submissionResponse{Submission: sub, Answers: req.Answers})
}

func (s *Server) handleDeleteSubmission(w http.ResponseWriter, r *http.Request) {
	identity, ok := s.caller(w, r)
	if !ok {
		return
	}
	if err := s.subs.Delete(r.Context(), identity, r.PathValue("ref")); err != nil {
		s.failure(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
