package auth

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/jonathan/eligibility-intake/internal/config"
	"github.com/jonathan/eligibility-intake/internal/db"
	"github.com/jonathan/eligibility-intake/internal/types"
)

// memStore is an in-memory Store.
type memStore struct {
	mu       sync.Mutex
	users    map[uuid.UUID]*db.User
	profiles map[uuid.UUID]*db.Profile
	failGet  error
}

func newMemStore() *memStore {
	return &memStore{
		users:    make(map[uuid.UUID]*db.User),
		profiles: make(map[uuid.UUID]*db.Profile),
	}
}

func (m *memStore) CreateUser(_ context.Context, email, hash string) (uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	email = strings.ToLower(email)
	for _, u := range m.users {
		if u.Email == email {
			return uuid.Nil, &types.ErrDuplicateAccount{Email: email}
		}
	}
	id := uuid.New()
	m.users[id] = &db.User{ID: id, Email: email, PasswordHash: hash, CreatedAt: time.Now()}
	return id, nil
}

func (m *memStore) GetUser(_ context.Context, id uuid.UUID) (*db.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.users[id], nil
}

func (m *memStore) GetUserByEmail(_ context.Context, email string) (*db.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failGet != nil {
		return nil, m.failGet
	}
	for _, u := range m.users {
		if u.Email == strings.ToLower(email) {
			return u, nil
		}
	}
	return nil, nil
}

func (m *memStore) CheckEmailExists(ctx context.Context, email string) (bool, error) {
	u, err := m.GetUserByEmail(ctx, email)
	return u != nil, err
}

func (m *memStore) GetProfile(_ context.Context, id uuid.UUID) (*db.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.profiles[id]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, nil
}

func (m *memStore) CreateProfile(_ context.Context, id uuid.UUID, email, fullName string) (*db.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.profiles[id]; ok {
		return p, nil
	}
	p := &db.Profile{ID: id, Email: email, FullName: fullName, CreatedAt: time.Now(), UpdatedAt: time.Now()}
	m.profiles[id] = p
	return p, nil
}

func (m *memStore) UpdateProfile(_ context.Context, id uuid.UUID, email, fullName string) (*db.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[id]
	if !ok {
		return nil, nil
	}
	p.Email, p.FullName, p.UpdatedAt = email, fullName, time.Now()
	return p, nil
}

func newTestService(t *testing.T) (*Service, *memStore) {
	t.Helper()
	store := newMemStore()
	passwords := &config.PasswordConfig{BcryptCost: bcrypt.MinCost, MinLength: 6}
	return NewService(store, passwords, setupTestJWTService(t, 24), zap.NewNop()), store
}

func TestService_Register(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	resp, err := svc.Register(ctx, &types.SignUpRequest{FullName: "Ada Lovelace", Email: "ada@example.com", Password: "engine1"})
	require.NoError(t, err)
	require.NotNil(t, resp.Identity)
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, "Ada Lovelace", resp.Identity.FullName)

	profile, err := store.GetProfile(ctx, resp.Identity.ID)
	require.NoError(t, err)
	require.NotNil(t, profile, "sign-up creates the profile")
	assert.Equal(t, "Ada Lovelace", profile.FullName)

	// Password is stored hashed.
	u, _ := store.GetUser(ctx, resp.Identity.ID)
	assert.NotEqual(t, "engine1", u.PasswordHash)
}

func TestService_Register_Errors(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	_, err := svc.Register(ctx, &types.SignUpRequest{FullName: "Ada", Email: "ada@example.com", Password: "engine1"})
	require.NoError(t, err)

	t.Run("duplicate email", func(t *testing.T) {
		_, err := svc.Register(ctx, &types.SignUpRequest{FullName: "Ada", Email: "ada@example.com", Password: "engine2"})
		var dup *types.ErrDuplicateAccount
		assert.True(t, errors.As(err, &dup))
	})

	t.Run("weak password", func(t *testing.T) {
		_, err := svc.Register(ctx, &types.SignUpRequest{FullName: "Bo", Email: "bo@example.com", Password: "12345"})
		var weak *types.ErrWeakPassword
		require.True(t, errors.As(err, &weak))
		assert.Equal(t, 6, weak.MinLength)
	})

	t.Run("password longer than bcrypt accepts", func(t *testing.T) {
		_, err := svc.Register(ctx, &types.SignUpRequest{FullName: "Bo", Email: "bo@example.com", Password: strings.Repeat("x", 80)})
		var verr *types.ErrValidation
		require.True(t, errors.As(err, &verr))
		assert.Equal(t, "password", verr.Field)
		assert.Equal(t, "Password must be at most 72 bytes long", verr.Message)
	})

	t.Run("invalid email", func(t *testing.T) {
		_, err := svc.Register(ctx, &types.SignUpRequest{FullName: "Bo", Email: "bo", Password: "123456"})
		var verr *types.ErrValidation
		require.True(t, errors.As(err, &verr))
		assert.Equal(t, "email", verr.Field)
	})
}

func TestService_Register_NormalizesEmail(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	reg, err := svc.Register(ctx, &types.SignUpRequest{FullName: "Ada", Email: "Ada@Example.COM", Password: "engine1"})
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", reg.Identity.Email)

	login, err := svc.Login(ctx, &types.SignInRequest{Email: "ada@example.com", Password: "engine1"})
	require.NoError(t, err)
	assert.Equal(t, reg.Identity.Email, login.Identity.Email)

	before, _ := store.GetProfile(ctx, reg.Identity.ID)
	_, err = svc.EnsureProfile(ctx, login.Identity)
	require.NoError(t, err)
	after, _ := store.GetProfile(ctx, reg.Identity.ID)
	assert.Equal(t, before.UpdatedAt, after.UpdatedAt, "matching profile is not rewritten")
}

func TestService_Login(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	reg, err := svc.Register(ctx, &types.SignUpRequest{FullName: "Ada", Email: "ada@example.com", Password: "engine1"})
	require.NoError(t, err)

	resp, err := svc.Login(ctx, &types.SignInRequest{Email: "ADA@example.com", Password: "engine1"})
	require.NoError(t, err)
	assert.Equal(t, reg.Identity.ID, resp.Identity.ID)
	assert.Equal(t, "Ada", resp.Identity.FullName)

	for _, req := range []*types.SignInRequest{
		{Email: "ada@example.com", Password: "wrong-one"},
		{Email: "nobody@example.com", Password: "engine1"},
	} {
		_, err := svc.Login(ctx, req)
		var invalid *types.ErrInvalidCredentials
		assert.True(t, errors.As(err, &invalid), "email=%s", req.Email)
	}

	store.failGet = errors.New("connection reset")
	_, err = svc.Login(ctx, &types.SignInRequest{Email: "ada@example.com", Password: "engine1"})
	require.Error(t, err)
	var invalid *types.ErrInvalidCredentials
	assert.False(t, errors.As(err, &invalid))
}

func TestService_Identify(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	reg, err := svc.Register(ctx, &types.SignUpRequest{FullName: "Ada", Email: "ada@example.com", Password: "engine1"})
	require.NoError(t, err)

	identity, err := svc.Identify(ctx, reg.Token)
	require.NoError(t, err)
	assert.Equal(t, reg.Identity.ID, identity.ID)

	_, err = svc.Identify(ctx, "garbage")
	var notAuth *types.ErrNotAuthenticated
	assert.True(t, errors.As(err, &notAuth))

	orphan, err := svc.Tokens().GenerateToken(uuid.New())
	require.NoError(t, err)
	_, err = svc.Identify(ctx, orphan)
	assert.True(t, errors.As(err, &notAuth))
}

func TestService_EnsureProfile(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	id := uuid.New()

	t.Run("creates when missing", func(t *testing.T) {
		p, err := svc.EnsureProfile(ctx, &types.Identity{ID: id, Email: "a@example.com", FullName: "Ada"})
		require.NoError(t, err)
		assert.Equal(t, "Ada", p.FullName)
	})

	t.Run("keeps existing when nothing changed", func(t *testing.T) {
		before, _ := store.GetProfile(ctx, id)
		p, err := svc.EnsureProfile(ctx, &types.Identity{ID: id, Email: "a@example.com", FullName: "Ada"})
		require.NoError(t, err)
		assert.Equal(t, before.UpdatedAt, p.UpdatedAt)
	})

	t.Run("syncs name on existing", func(t *testing.T) {
		p, err := svc.EnsureProfile(ctx, &types.Identity{ID: id, Email: "a@example.com", FullName: "Ada King"})
		require.NoError(t, err)
		assert.Equal(t, "Ada King", p.FullName)
	})

	t.Run("nil identity", func(t *testing.T) {
		_, err := svc.EnsureProfile(ctx, nil)
		var notAuth *types.ErrNotAuthenticated
		assert.True(t, errors.As(err, &notAuth))
	})
}
