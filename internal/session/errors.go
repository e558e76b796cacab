package session

import (
	"errors"
	"fmt"

	"github.com/jonathan/eligibility-intake/internal/types"
)

// User-facing authentication messages.
const (
	MsgInvalidCredentials = "Invalid email or password"
	MsgDuplicateAccount   = "An account with this email already exists. Please sign in instead."
	MsgInvalidEmail       = "Please enter a valid email address"
	MsgGeneric            = "An error occurred during authentication"
)

// AuthError is an authentication failure translated for display. The
// underlying kind stays reachable through errors.As.
type AuthError struct {
	Message string
	Err     error
}

func (e *AuthError) Error() string {
	return e.Message
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// Translate maps a backend authentication error to its user-facing message.
func Translate(err error) *AuthError {
	if err == nil {
		return nil
	}
	var already *AuthError
	if errors.As(err, &already) {
		return already
	}

	var (
		invalid *types.ErrInvalidCredentials
		dup     *types.ErrDuplicateAccount
		weak    *types.ErrWeakPassword
		verr    *types.ErrValidation
	)
	switch {
	case errors.As(err, &invalid):
		return &AuthError{Message: MsgInvalidCredentials, Err: err}
	case errors.As(err, &dup):
		return &AuthError{Message: MsgDuplicateAccount, Err: err}
	case errors.As(err, &weak):
		return &AuthError{Message: weakPasswordMessage(weak.MinLength), Err: err}
	case errors.As(err, &verr):
		if verr.Field == "email" {
			return &AuthError{Message: MsgInvalidEmail, Err: err}
		}
		if verr.Message != "" {
			return &AuthError{Message: verr.Message, Err: err}
		}
	}
	return &AuthError{Message: MsgGeneric, Err: err}
}

func weakPasswordMessage(minLength int) string {
	if minLength <= 0 {
		minLength = 6
	}
	return fmt.Sprintf("Password must be at least %d characters long", minLength)
}
