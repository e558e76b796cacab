package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/jonathan/eligibility-intake/internal/app"
	"github.com/jonathan/eligibility-intake/internal/auth"
	"github.com/jonathan/eligibility-intake/internal/config"
	"github.com/jonathan/eligibility-intake/internal/db"
	"github.com/jonathan/eligibility-intake/internal/session"
	"github.com/jonathan/eligibility-intake/internal/submissions"
	"github.com/jonathan/eligibility-intake/internal/types"
)

// memAccounts is an in-memory auth.Store.
type memAccounts struct {
	mu       sync.Mutex
	users    map[uuid.UUID]*db.User
	profiles map[uuid.UUID]*db.Profile
}

func (m *memAccounts) CreateUser(_ context.Context, email, hash string) (uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == strings.ToLower(email) {
			return uuid.Nil, &types.ErrDuplicateAccount{Email: email}
		}
	}
	id := uuid.New()
	m.users[id] = &db.User{ID: id, Email: strings.ToLower(email), PasswordHash: hash, CreatedAt: time.Now()}
	return id, nil
}

func (m *memAccounts) GetUser(_ context.Context, id uuid.UUID) (*db.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.users[id], nil
}

func (m *memAccounts) GetUserByEmail(_ context.Context, email string) (*db.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == strings.ToLower(email) {
			return u, nil
		}
	}
	return nil, nil
}

func (m *memAccounts) CheckEmailExists(ctx context.Context, email string) (bool, error) {
	u, err := m.GetUserByEmail(ctx, email)
	return u != nil, err
}

func (m *memAccounts) GetProfile(_ context.Context, id uuid.UUID) (*db.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.profiles[id], nil
}

func (m *memAccounts) CreateProfile(_ context.Context, id uuid.UUID, email, fullName string) (*db.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.profiles[id]; ok {
		return p, nil
	}
	p := &db.Profile{ID: id, Email: email, FullName: fullName, CreatedAt: time.Now(), UpdatedAt: time.Now()}
	m.profiles[id] = p
	return p, nil
}

func (m *memAccounts) UpdateProfile(_ context.Context, id uuid.UUID, email, fullName string) (*db.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[id]
	if !ok {
		return nil, nil
	}
	p.Email, p.FullName = email, fullName
	return p, nil
}

// memRecords is an in-memory submissions.Store.
type memRecords struct {
	mu   sync.Mutex
	rows map[string]*types.Submission
	seq  int
}

func (m *memRecords) CreateSubmission(_ context.Context, userID uuid.UUID, in db.SubmissionInput) (*types.Submission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	now := time.Unix(0, 0).Add(time.Duration(m.seq) * time.Minute)
	s := &types.Submission{
		ID: uuid.New(), UserID: userID, ReferenceID: in.ReferenceID,
		Groups: in.Groups, Status: in.Status, CreatedAt: now, UpdatedAt: now,
	}
	m.rows[in.ReferenceID] = s
	cp := *s
	return &cp, nil
}

func (m *memRecords) UpdateSubmission(_ context.Context, userID uuid.UUID, ref string, in db.SubmissionInput) (*types.Submission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.rows[ref]
	if !ok || s.UserID != userID {
		return nil, nil
	}
	s.Groups, s.Status = in.Groups, in.Status
	cp := *s
	return &cp, nil
}

func (m *memRecords) ListSubmissionsByUser(_ context.Context, userID uuid.UUID) ([]types.Submission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []types.Submission
	for _, s := range m.rows {
		if s.UserID == userID {
			out = append(out, *s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *memRecords) GetLatestSubmission(ctx context.Context, userID uuid.UUID) (*types.Submission, error) {
	list, _ := m.ListSubmissionsByUser(ctx, userID)
	if len(list) == 0 {
		return nil, nil
	}
	return &list[0], nil
}

func (m *memRecords) GetSubmissionByReference(_ context.Context, userID uuid.UUID, ref string) (*types.Submission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.rows[ref]
	if !ok || s.UserID != userID {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

func (m *memRecords) DeleteSubmission(_ context.Context, userID uuid.UUID, ref string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.rows[ref]
	if !ok || s.UserID != userID {
		return false, nil
	}
	delete(m.rows, ref)
	return true, nil
}

func completeAnswers() types.FormData {
	return types.FormData{
		FullName:                       "Amara Okafor",
		Email:                          "amara@example.com",
		CountryOfCitizenship:           "Nigeria",
		CountryOfResidence:             "Nigeria",
		AgeGroup:                       "30-35",
		MaritalStatus:                  "Married",
		HasChildren:                    types.AnswerYes,
		HighestEducation:               "Master's Degree",
		EducationOutsideCanada:         types.AnswerYes,
		YearsOfExperience:              "Over 5 years",
		WorkInRegulatedProfession:      types.AnswerNo,
		Occupation:                     "Civil engineer",
		SpeakEnglishOrFrench:           types.AnswerYes,
		LanguageTest:                   types.AnswerYes,
		InterestedInImmigrating:        "Permanent Residency (Express Entry or PNP)",
		StudiedOrWorkedInCanada:        types.AnswerNo,
		JobOfferFromCanadianEmployer:   types.AnswerNo,
		RelativesInCanada:              types.AnswerNo,
		SettlementFunds:                types.AnswerYes,
		BusinessOrManagerialExperience: types.AnswerNo,
	}
}

type fixture struct {
	handler http.Handler
	server  *Server
	auth    *auth.Service
	repo    *submissions.Repository
	pingErr error
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := zap.NewNop()
	passwords := &config.PasswordConfig{BcryptCost: bcrypt.MinCost, MinLength: 6}
	tokens := auth.NewJWTService(&config.JWTConfig{
		Secret:          "test-secret-at-least-16",
		ExpirationHours: 1,
		Issuer:          "eligibility-intake-test",
	})
	accounts := &memAccounts{users: map[uuid.UUID]*db.User{}, profiles: map[uuid.UUID]*db.Profile{}}
	authService := auth.NewService(accounts, passwords, tokens, log)
	repo := submissions.New(&memRecords{rows: map[string]*types.Submission{}}, nil, log)

	registry := app.NewRegistry(app.Deps{
		Auth: authService,
		Repo: repo,
		Options: app.Options{
			Payment:     config.Defaults.Payment,
			LoadTimeout: 2 * time.Second,
		},
		SessionTimeout: 2 * time.Second,
		IdleTTL:        time.Hour,
	}, log)

	f := &fixture{auth: authService, repo: repo}
	f.server = NewWithDeps(&config.Config{Port: 0}, Deps{
		Registry:    registry,
		Submissions: repo,
		Tokens:      tokens.AsTokenValidator(),
		TokenTTL:    tokens.TTL(),
		Ping:        func(context.Context) error { return f.pingErr },
		Heartbeat:   50 * time.Millisecond,
		Closers:     []func(){registry.Close},
	}, log)
	f.handler = f.server.Handler()
	t.Cleanup(f.server.Close)
	return f
}

// register creates an account and returns its identity and token.
func (f *fixture) register(t *testing.T, email string) (*types.Identity, string) {
	t.Helper()
	resp, err := f.auth.Register(context.Background(), &types.SignUpRequest{
		FullName: "Amara Okafor", Email: email, Password: "secret1",
	})
	require.NoError(t, err)
	return resp.Identity, resp.Token
}

// browser replays cookies across requests like a user agent would.
type browser struct {
	t       *testing.T
	handler http.Handler
	cookies map[string]*http.Cookie
	bearer  string
}

func (f *fixture) browser(t *testing.T) *browser {
	return &browser{t: t, handler: f.handler, cookies: map[string]*http.Cookie{}}
}

func (b *browser) do(method, path string, body any) *httptest.ResponseRecorder {
	b.t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(b.t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	for _, c := range b.cookies {
		req.AddCookie(c)
	}
	if b.bearer != "" {
		req.Header.Set("Authorization", "Bearer "+b.bearer)
	}
	rec := httptest.NewRecorder()
	b.handler.ServeHTTP(rec, req)
	for _, c := range rec.Result().Cookies() {
		if c.MaxAge < 0 {
			delete(b.cookies, c.Name)
			continue
		}
		b.cookies[c.Name] = c
	}
	return rec
}

func decodeFlow(t *testing.T, rec *httptest.ResponseRecorder) flowResponse {
	t.Helper()
	var resp flowResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	return resp
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	b := f.browser(t)

	rec := b.do(http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	f.pingErr = errors.New("connection refused")
	rec = b.do(http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestFormOptions(t *testing.T) {
	f := newFixture(t)
	rec := f.browser(t).do(http.MethodGet, "/api/form/options", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var options map[string][]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &options))
	assert.Contains(t, options, "country")
	assert.Equal(t, []string{types.AnswerYes, types.AnswerNo}, options["yes_no"])
}

func TestCORSPreflight(t *testing.T) {
	f := newFixture(t)
	rec := f.browser(t).do(http.MethodOptions, "/api/form/submit", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), "DELETE")
}

func TestAnonymousSubmitThenSignUp(t *testing.T) {
	f := newFixture(t)
	b := f.browser(t)

	rec := b.do(http.MethodGet, "/api/view", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, app.StateCollecting, decodeFlow(t, rec).View.State)
	require.Contains(t, b.cookies, ClientCookie)
	clientID := b.cookies[ClientCookie].Value

	rec = b.do(http.MethodPost, "/api/form/submit", completeAnswers())
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	view := decodeFlow(t, rec).View
	assert.Equal(t, app.StateAuthenticating, view.State)
	assert.Equal(t, app.AuthSignup, view.AuthMode)
	assert.False(t, view.Chrome)
	require.NotNil(t, view.Pending)
	assert.Equal(t, "Amara Okafor", view.Pending.FullName)

	rec = b.do(http.MethodPost, "/api/auth/signup", types.SignUpRequest{
		FullName: "Amara Okafor", Email: "amara@example.com", Password: "secret1",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	view = decodeFlow(t, rec).View
	assert.Equal(t, app.StateCompleted, view.State)
	assert.NotEmpty(t, view.ReferenceID)
	assert.Len(t, view.PaymentOffers, 2)
	assert.Equal(t, clientID, b.cookies[ClientCookie].Value)
	require.Contains(t, b.cookies, TokenCookie)

	rec = b.do(http.MethodGet, "/api/submissions", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list submissionListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list.Submissions, 1)
	assert.Equal(t, view.ReferenceID, list.Submissions[0].ReferenceID)
	assert.Equal(t, types.StatusCounts{Total: 1, Submitted: 1}, list.Counts)

	rec = b.do(http.MethodPost, "/api/completed/start-new", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, app.StateDashboard, decodeFlow(t, rec).View.State)

	rec = b.do(http.MethodPost, "/api/auth/signout", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	view = decodeFlow(t, rec).View
	assert.Equal(t, app.StateCollecting, view.State)
	assert.Equal(t, session.StatusAnonymous, view.Session)
	assert.NotContains(t, b.cookies, TokenCookie)

	rec = b.do(http.MethodGet, "/api/submissions", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSubmitForm_InvalidAnswers(t *testing.T) {
	f := newFixture(t)
	b := f.browser(t)

	answers := completeAnswers()
	answers.Email = "not-an-email"
	answers.AgeGroup = ""
	rec := b.do(http.MethodPost, "/api/form/submit", answers)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeFlow(t, rec)
	assert.Equal(t, "Please correct the highlighted fields", resp.Error)
	assert.Len(t, resp.Fields, 2)
	assert.Equal(t, app.StateCollecting, resp.View.State)
	require.NotNil(t, resp.View.Answers)
	assert.Equal(t, "not-an-email", resp.View.Answers.Email)
}

func TestSignIn_WrongPasswordThenRetry(t *testing.T) {
	f := newFixture(t)
	f.register(t, "amara@example.com")
	b := f.browser(t)

	rec := b.do(http.MethodPost, "/api/auth/show", map[string]string{"mode": "login"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, app.AuthLogin, decodeFlow(t, rec).View.AuthMode)

	rec = b.do(http.MethodPost, "/api/auth/signin", types.SignInRequest{Email: "amara@example.com", Password: "wrong-password"})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	resp := decodeFlow(t, rec)
	assert.Equal(t, session.MsgInvalidCredentials, resp.Error)
	assert.Equal(t, app.StateAuthenticating, resp.View.State)
	assert.NotContains(t, b.cookies, TokenCookie)

	rec = b.do(http.MethodPost, "/api/auth/signin", types.SignInRequest{Email: "amara@example.com", Password: "secret1"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, app.StateDashboard, decodeFlow(t, rec).View.State)
	assert.Contains(t, b.cookies, TokenCookie)
}

func TestSignUp_DuplicateAccount(t *testing.T) {
	f := newFixture(t)
	f.register(t, "amara@example.com")
	b := f.browser(t)

	b.do(http.MethodPost, "/api/auth/show", map[string]string{"mode": "signup"})
	rec := b.do(http.MethodPost, "/api/auth/signup", types.SignUpRequest{
		FullName: "Amara Okafor", Email: "amara@example.com", Password: "secret1",
	})

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, session.MsgDuplicateAccount, decodeFlow(t, rec).Error)
}

func TestSignUp_PasswordTooLong(t *testing.T) {
	f := newFixture(t)
	b := f.browser(t)

	b.do(http.MethodPost, "/api/auth/show", map[string]string{"mode": "signup"})
	rec := b.do(http.MethodPost, "/api/auth/signup", types.SignUpRequest{
		FullName: "Amara Okafor", Email: "amara@example.com", Password: strings.Repeat("a", 80),
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	flow := decodeFlow(t, rec)
	assert.Equal(t, "Password must be at most 72 bytes long", flow.Error)
	assert.Equal(t, app.StateAuthenticating, flow.View.State)
}

func TestCancelAuthRestoresAnswers(t *testing.T) {
	f := newFixture(t)
	b := f.browser(t)

	b.do(http.MethodPost, "/api/form/submit", completeAnswers())
	rec := b.do(http.MethodPost, "/api/auth/cancel", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	view := decodeFlow(t, rec).View
	assert.Equal(t, app.StateCollecting, view.State)
	assert.Nil(t, view.Pending)
	require.NotNil(t, view.Answers)
	assert.Equal(t, "Civil engineer", view.Answers.Occupation)
}

func TestOperationOutsideItsScreen(t *testing.T) {
	f := newFixture(t)
	b := f.browser(t)

	rec := b.do(http.MethodPost, "/api/dashboard/draft", completeAnswers())
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, app.StateCollecting, decodeFlow(t, rec).View.State)

	rec = b.do(http.MethodPost, "/api/completed/start-new", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestInvalidBody(t *testing.T) {
	f := newFixture(t)
	req := httptest.NewRequest(http.MethodPost, "/api/form/submit", strings.NewReader("{"))
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"Invalid request body"}`, rec.Body.String())
}

func TestSessionRestoredFromTokenCookie(t *testing.T) {
	f := newFixture(t)
	_, token := f.register(t, "amara@example.com")
	b := f.browser(t)
	b.cookies[TokenCookie] = &http.Cookie{Name: TokenCookie, Value: token}

	rec := b.do(http.MethodGet, "/api/view", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	view := decodeFlow(t, rec).View
	assert.Equal(t, app.StateDashboard, view.State)
	require.NotNil(t, view.User)
	assert.Equal(t, "amara@example.com", view.User.Email)
}

func TestRejectedTokenCookieIsCleared(t *testing.T) {
	f := newFixture(t)
	b := f.browser(t)
	b.cookies[TokenCookie] = &http.Cookie{Name: TokenCookie, Value: "expired"}

	rec := b.do(http.MethodGet, "/api/view", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, app.StateCollecting, decodeFlow(t, rec).View.State)
	assert.NotContains(t, b.cookies, TokenCookie)
}

func TestDashboardDraftAndSubmit(t *testing.T) {
	f := newFixture(t)
	_, token := f.register(t, "amara@example.com")
	b := f.browser(t)
	b.cookies[TokenCookie] = &http.Cookie{Name: TokenCookie, Value: token}

	rec := b.do(http.MethodPost, "/api/dashboard/form", map[string]bool{"fresh": true})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NotNil(t, decodeFlow(t, rec).View.Dashboard)
	assert.True(t, decodeFlow(t, rec).View.Dashboard.FormOpen)

	draft := types.FormData{FullName: "Amara Okafor", Occupation: "Civil engineer"}
	rec = b.do(http.MethodPost, "/api/dashboard/draft", draft)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	dash := decodeFlow(t, rec).View.Dashboard
	require.NotNil(t, dash)
	assert.Equal(t, app.MsgDraftSaved, dash.Notice)
	ref := dash.EditingReference
	require.NotEmpty(t, ref)

	rec = b.do(http.MethodPost, "/api/dashboard/submit", completeAnswers())
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	view := decodeFlow(t, rec).View
	assert.Equal(t, app.StateCompleted, view.State)
	assert.Equal(t, ref, view.ReferenceID)

	b.bearer = token
	rec = b.do(http.MethodGet, "/api/submissions/"+ref, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var got submissionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, types.StatusSubmitted, got.Submission.Status)
	assert.Equal(t, "Permanent Residency (Express Entry or PNP)", got.Answers.InterestedInImmigrating)
}

func TestDashboardDelete(t *testing.T) {
	f := newFixture(t)
	identity, token := f.register(t, "amara@example.com")
	sub, err := f.repo.Create(context.Background(), identity, completeAnswers(), types.StatusSubmitted)
	require.NoError(t, err)
	b := f.browser(t)
	b.cookies[TokenCookie] = &http.Cookie{Name: TokenCookie, Value: token}

	rec := b.do(http.MethodDelete, "/api/dashboard/submissions/"+sub.ReferenceID, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = b.do(http.MethodDelete, "/api/dashboard/submissions/IEA-MISSING", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSubmissionsREST(t *testing.T) {
	f := newFixture(t)
	identity, token := f.register(t, "amara@example.com")
	_, other := f.register(t, "someone.else@example.com")
	b := f.browser(t)
	b.bearer = token

	rec := b.do(http.MethodGet, "/api/submissions/latest", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	draft, err := f.repo.Create(context.Background(), identity, types.FormData{FullName: "Amara Okafor"}, types.StatusDraft)
	require.NoError(t, err)

	rec = b.do(http.MethodGet, "/api/submissions/latest", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var got submissionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, draft.ReferenceID, got.Submission.ReferenceID)
	assert.Equal(t, "Amara Okafor", got.Answers.FullName)

	rec = b.do(http.MethodPut, "/api/submissions/"+draft.ReferenceID, map[string]any{
		"answers": types.FormData{FullName: "Amara Okafor"},
		"status":  "submitted",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = b.do(http.MethodPut, "/api/submissions/"+draft.ReferenceID, map[string]any{
		"answers": completeAnswers(),
		"status":  "archived",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = b.do(http.MethodPut, "/api/submissions/"+draft.ReferenceID, map[string]any{
		"answers": completeAnswers(),
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, types.StatusSubmitted, got.Submission.Status)

	rec = b.do(http.MethodPut, "/api/submissions/"+draft.ReferenceID, map[string]any{
		"answers": types.FormData{FullName: "x"},
		"status":  "draft",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = b.do(http.MethodGet, "/api/submissions", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var listed submissionListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listed))
	assert.Equal(t, types.StatusCounts{Total: 1, Submitted: 1}, listed.Counts)

	stranger := f.browser(t)
	stranger.bearer = other
	rec = stranger.do(http.MethodGet, "/api/submissions/"+draft.ReferenceID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = stranger.do(http.MethodPut, "/api/submissions/"+draft.ReferenceID, map[string]any{"answers": completeAnswers()})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = b.do(http.MethodDelete, "/api/submissions/"+draft.ReferenceID, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = b.do(http.MethodGet, "/api/submissions", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"submissions":[],"counts":{"total":0,"draft":0,"submitted":0}}`, rec.Body.String())
}

func TestSubmissionsREST_RequiresToken(t *testing.T) {
	f := newFixture(t)
	b := f.browser(t)

	rec := b.do(http.MethodGet, "/api/submissions", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	b.bearer = "not-a-token"
	rec = b.do(http.MethodGet, "/api/submissions/latest", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
