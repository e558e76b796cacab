package types

import (
	"time"

	"github.com/google/uuid"
)

// SignUpRequest represents the request to create a new account.
type SignUpRequest struct {
	FullName string `json:"fullName" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// SignInRequest represents the sign-in request.
type SignInRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Identity is the authenticated principal a session and submissions are scoped to.
type Identity struct {
	ID       uuid.UUID `json:"id"`
	Email    string    `json:"email"`
	FullName string    `json:"full_name"`
}

// Profile is the public profile record kept for every identity.
type Profile struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	FullName  string    `json:"full_name,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// AuthResponse is returned after a successful sign-in or sign-up.
type AuthResponse struct {
	Identity *Identity `json:"user"`
	Token    string    `json:"token"`
}

// Validate validates the SignUpRequest.
func (r *SignUpRequest) Validate() error {
	return validationError(formValidator.Struct(r))
}

// Validate validates the SignInRequest.
func (r *SignInRequest) Validate() error {
	return validationError(formValidator.Struct(r))
}
