package auth

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jonathan/eligibility-intake/internal/config"
	"github.com/jonathan/eligibility-intake/internal/db"
	"github.com/jonathan/eligibility-intake/internal/types"
)

// Store is the subset of the database used for credentials and profiles.
type Store interface {
	CreateUser(ctx context.Context, email, passwordHash string) (uuid.UUID, error)
	GetUser(ctx context.Context, id uuid.UUID) (*db.User, error)
	GetUserByEmail(ctx context.Context, email string) (*db.User, error)
	CheckEmailExists(ctx context.Context, email string) (bool, error)
	GetProfile(ctx context.Context, id uuid.UUID) (*db.Profile, error)
	CreateProfile(ctx context.Context, id uuid.UUID, email, fullName string) (*db.Profile, error)
	UpdateProfile(ctx context.Context, id uuid.UUID, email, fullName string) (*db.Profile, error)
}

// Service registers, authenticates and identifies users.
type Service struct {
	store     Store
	passwords *config.PasswordConfig
	tokens    *JWTService
	log       *zap.Logger
}

// NewService creates a new Service with the given dependencies.
func NewService(store Store, passwords *config.PasswordConfig, tokens *JWTService, log *zap.Logger) *Service {
	return &Service{
		store:     store,
		passwords: passwords,
		tokens:    tokens,
		log:       log.Named("auth"),
	}
}

// Tokens returns the token service used to sign sessions.
func (s *Service) Tokens() *JWTService {
	return s.tokens
}

// Register creates an account with password authentication, ensures its
// profile and issues a session token.
func (s *Service) Register(ctx context.Context, req *types.SignUpRequest) (*types.AuthResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if !s.passwords.MeetsPolicy(req.Password) {
		return nil, &types.ErrWeakPassword{MinLength: s.passwords.MinLength}
	}
	if s.passwords.TooLong(req.Password) {
		return nil, &types.ErrValidation{
			Field:   "password",
			Message: fmt.Sprintf("Password must be at most %d bytes long", s.passwords.MaxBytes()),
		}
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))

	exists, err := s.store.CheckEmailExists(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to check email existence: %w", err)
	}
	if exists {
		return nil, &types.ErrDuplicateAccount{Email: email}
	}

	passwordHash, err := s.passwords.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	// CreateUser reports a duplicate itself if a concurrent sign-up won.
	userID, err := s.store.CreateUser(ctx, email, passwordHash)
	if err != nil {
		return nil, err
	}

	identity := &types.Identity{ID: userID, Email: email, FullName: req.FullName}
	if _, err := s.EnsureProfile(ctx, identity); err != nil {
		// The account exists; a missing profile is repaired on next sign-in.
		s.log.Warn("profile creation failed after sign-up",
			zap.Stringer("user_id", userID), zap.Error(err))
	}

	s.log.Info("account registered", zap.Stringer("user_id", userID))
	return s.issue(identity)
}

// Login authenticates an email/password pair and issues a session token.
func (s *Service) Login(ctx context.Context, req *types.SignInRequest) (*types.AuthResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	user, err := s.store.GetUserByEmail(ctx, req.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}
	// Unknown email and wrong password are indistinguishable to the caller.
	if user == nil || !s.passwords.VerifyPassword(req.Password, user.PasswordHash) {
		return nil, &types.ErrInvalidCredentials{}
	}

	identity, err := s.identityFor(ctx, user)
	if err != nil {
		return nil, err
	}
	return s.issue(identity)
}

// Identify resolves the identity behind a session token.
// Returns *types.ErrNotAuthenticated for invalid tokens or deleted users.
func (s *Service) Identify(ctx context.Context, token string) (*types.Identity, error) {
	claims, err := s.tokens.ValidateToken(token)
	if err != nil {
		s.log.Debug("session token rejected", zap.Error(err))
		return nil, &types.ErrNotAuthenticated{}
	}

	user, err := s.store.GetUser(ctx, claims.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return nil, &types.ErrNotAuthenticated{}
	}
	return s.identityFor(ctx, user)
}

// EnsureProfile makes sure a profile exists for the identity: it creates one
// when missing and syncs email and name onto an existing one when they differ.
// The check-then-create tolerates profiles created concurrently by a trigger.
func (s *Service) EnsureProfile(ctx context.Context, identity *types.Identity) (*types.Profile, error) {
	if identity == nil {
		return nil, &types.ErrNotAuthenticated{}
	}

	existing, err := s.store.GetProfile(ctx, identity.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}

	if existing == nil {
		created, err := s.store.CreateProfile(ctx, identity.ID, identity.Email, identity.FullName)
		if err != nil {
			return nil, &types.ErrWrite{Op: "create profile", Err: err}
		}
		return convertProfile(created), nil
	}

	if identity.FullName == "" || (existing.FullName == identity.FullName && existing.Email == identity.Email) {
		return convertProfile(existing), nil
	}

	updated, err := s.store.UpdateProfile(ctx, identity.ID, identity.Email, identity.FullName)
	if err != nil {
		return nil, &types.ErrWrite{Op: "update profile", Err: err}
	}
	if updated == nil {
		return convertProfile(existing), nil
	}
	return convertProfile(updated), nil
}

func (s *Service) identityFor(ctx context.Context, user *db.User) (*types.Identity, error) {
	identity := &types.Identity{ID: user.ID, Email: user.Email}
	profile, err := s.store.GetProfile(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	if profile != nil {
		identity.FullName = profile.FullName
	}
	return identity, nil
}

func (s *Service) issue(identity *types.Identity) (*types.AuthResponse, error) {
	token, err := s.tokens.GenerateToken(identity.ID)
	if err != nil {
		return nil, err
	}
	return &types.AuthResponse{Identity: identity, Token: token}, nil
}

// convertProfile converts a profile row to its public shape.
func convertProfile(p *db.Profile) *types.Profile {
	if p == nil {
		return nil
	}
	return &types.Profile{
		ID:        p.ID,
		Email:     p.Email,
		FullName:  p.FullName,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}
