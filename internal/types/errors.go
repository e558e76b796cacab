package types

import (
	"fmt"
	"sort"
	"strings"
)

// ErrValidation indicates a missing or malformed field, caught before any
// network call is made.
type ErrValidation struct {
	Field   string
	Message string
	// Fields holds every failing field and its message when more than one failed.
	Fields map[string]string
}

func (e *ErrValidation) Error() string {
	if len(e.Fields) > 1 {
		names := make([]string, 0, len(e.Fields))
		for name := range e.Fields {
			names = append(names, name)
		}
		sort.Strings(names)
		return fmt.Sprintf("validation error: %s", strings.Join(names, ", "))
	}
	return fmt.Sprintf("validation error: %s - %s", e.Field, e.Message)
}

// ErrInvalidCredentials indicates the backend rejected the email/password pair.
type ErrInvalidCredentials struct{}

func (e *ErrInvalidCredentials) Error() string {
	return "invalid email or password"
}

// ErrDuplicateAccount indicates the sign-up email is already registered.
type ErrDuplicateAccount struct {
	Email string
}

func (e *ErrDuplicateAccount) Error() string {
	return fmt.Sprintf("email already registered: %s", e.Email)
}

// ErrWeakPassword indicates a password policy violation.
type ErrWeakPassword struct {
	MinLength int
}

func (e *ErrWeakPassword) Error() string {
	return fmt.Sprintf("password should be at least %d characters", e.MinLength)
}

// ErrNotAuthenticated indicates an operation that needs an identity was
// attempted without one.
type ErrNotAuthenticated struct{}

func (e *ErrNotAuthenticated) Error() string {
	return "not authenticated"
}

// ErrNotFound indicates the target record does not exist or is not owned by
// the calling identity.
type ErrNotFound struct {
	Resource string
	Key      string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.Key)
}

// ErrWrite indicates the backend rejected a create or update.
type ErrWrite struct {
	Op  string
	Err error
}

func (e *ErrWrite) Error() string {
	return fmt.Sprintf("failed to %s: %v", e.Op, e.Err)
}

func (e *ErrWrite) Unwrap() error {
	return e.Err
}

// ErrNetwork indicates a transport-level failure.
type ErrNetwork struct {
	Op  string
	Err error
}

func (e *ErrNetwork) Error() string {
	return fmt.Sprintf("network error during %s: %v", e.Op, e.Err)
}

func (e *ErrNetwork) Unwrap() error {
	return e.Err
}
