package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jonathan/eligibility-intake/internal/config"
	"github.com/jonathan/eligibility-intake/internal/db"
	"github.com/jonathan/eligibility-intake/internal/session"
	"github.com/jonathan/eligibility-intake/internal/submissions"
	"github.com/jonathan/eligibility-intake/internal/types"
	"github.com/jonathan/eligibility-intake/internal/webhook"
)

// recordStore is an in-memory submissions.Store.
type recordStore struct {
	mu   sync.Mutex
	rows map[string]*types.Submission
}

func (s *recordStore) CreateSubmission(_ context.Context, userID uuid.UUID, in db.SubmissionInput) (*types.Submission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	row := &types.Submission{
		ID: uuid.New(), UserID: userID, ReferenceID: in.ReferenceID,
		Groups: in.Groups, Status: in.Status, CreatedAt: now, UpdatedAt: now,
	}
	s.rows[in.ReferenceID] = row
	cp := *row
	return &cp, nil
}

func (s *recordStore) UpdateSubmission(_ context.Context, userID uuid.UUID, ref string, in db.SubmissionInput) (*types.Submission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[ref]
	if !ok || row.UserID != userID {
		return nil, nil
	}
	row.Groups, row.Status, row.UpdatedAt = in.Groups, in.Status, time.Now()
	cp := *row
	return &cp, nil
}

func (s *recordStore) ListSubmissionsByUser(_ context.Context, userID uuid.UUID) ([]types.Submission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []types.Submission
	for _, row := range s.rows {
		if row.UserID == userID {
			out = append(out, *row)
		}
	}
	return out, nil
}

func (s *recordStore) GetLatestSubmission(ctx context.Context, userID uuid.UUID) (*types.Submission, error) {
	list, _ := s.ListSubmissionsByUser(ctx, userID)
	if len(list) == 0 {
		return nil, nil
	}
	return &list[0], nil
}

func (s *recordStore) GetSubmissionByReference(_ context.Context, userID uuid.UUID, ref string) (*types.Submission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[ref]
	if !ok || row.UserID != userID {
		return nil, nil
	}
	cp := *row
	return &cp, nil
}

func (s *recordStore) DeleteSubmission(_ context.Context, userID uuid.UUID, ref string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[ref]
	if !ok || row.UserID != userID {
		return false, nil
	}
	delete(s.rows, ref)
	return true, nil
}

func TestController_SubmitCompletesWhenNotificationFails(t *testing.T) {
	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(failing.Close)

	tests := []struct {
		name string
		url  string
	}{
		{name: "endpoint rejects", url: failing.URL},
		{name: "endpoint unreachable", url: "http://127.0.0.1:1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dispatcher := webhook.New(webhook.Options{URL: tt.url, Timeout: time.Second, MaxInFlight: 4}, zap.NewNop())
			t.Cleanup(dispatcher.Close)
			store := &recordStore{rows: make(map[string]*types.Submission)}
			repo := submissions.New(store, dispatcher, zap.NewNop())

			sess := newFakeSession(session.State{Status: session.StatusLoading})
			c := NewController(sess, repo, Options{
				ResumePolicy: config.ResumeSubmit,
				Payment:      config.Defaults.Payment,
				LoadTimeout:  time.Second,
			}, zap.NewNop())
			t.Cleanup(c.Close)
			sess.mu.Lock()
			sess.state = session.Authenticated(testIdentity)
			sess.mu.Unlock()

			require.NoError(t, c.SubmitForm(context.Background(), completeAnswers()))
			dispatcher.Wait()

			v := c.View()
			assert.Equal(t, StateCompleted, v.State)
			assert.NotEmpty(t, v.ReferenceID)
			assert.Empty(t, v.Error)
			store.mu.Lock()
			assert.Len(t, store.rows, 1)
			store.mu.Unlock()
		})
	}
}
