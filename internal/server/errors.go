package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/jonathan/eligibility-intake/internal/app"
	"github.com/jonathan/eligibility-intake/internal/session"
	"github.com/jonathan/eligibility-intake/internal/types"
)

// HTTPStatus returns the appropriate HTTP status code for an error.
func HTTPStatus(err error) int {
	var (
		verr       *types.ErrValidation
		weak       *types.ErrWeakPassword
		invalid    *types.ErrInvalidCredentials
		notAuth    *types.ErrNotAuthenticated
		dup        *types.ErrDuplicateAccount
		notFound   *types.ErrNotFound
		writeErr   *types.ErrWrite
		netErr     *types.ErrNetwork
		transition *app.TransitionError
	)
	switch {
	case err == nil:
		return http.StatusInternalServerError
	case errors.As(err, &verr), errors.As(err, &weak):
		return http.StatusBadRequest
	case errors.As(err, &invalid), errors.As(err, &notAuth):
		return http.StatusUnauthorized
	case errors.As(err, &notFound):
		return http.StatusNotFound
	case errors.As(err, &dup), errors.As(err, &transition),
		errors.Is(err, app.ErrStale), errors.Is(err, app.ErrBusy):
		return http.StatusConflict
	case errors.As(err, &writeErr), errors.As(err, &netErr):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// ErrorMessage returns the client-facing message for an error. Internal
// failures never leak their cause.
func ErrorMessage(err error) string {
	var (
		authErr    *session.AuthError
		verr       *types.ErrValidation
		weak       *types.ErrWeakPassword
		notFound   *types.ErrNotFound
		transition *app.TransitionError
	)
	switch {
	case err == nil:
		return "Internal server error"
	case errors.As(err, &authErr):
		return authErr.Message
	case errors.As(err, &verr):
		if len(verr.Fields) > 1 {
			return "Please correct the highlighted fields"
		}
		return verr.Message
	case errors.As(err, &weak):
		return weak.Error()
	case errors.As(err, &notFound):
		return "Not found"
	case errors.As(err, &transition):
		return transition.Error()
	case errors.Is(err, app.ErrStale), errors.Is(err, app.ErrBusy):
		return err.Error()
	}
	switch HTTPStatus(err) {
	case http.StatusUnauthorized:
		return "Unauthorized"
	case http.StatusBadGateway:
		return "Upstream request failed. Please try again."
	case http.StatusGatewayTimeout:
		return "Request timed out. Please try again."
	}
	return "Internal server error"
}

// fieldErrors returns per-field messages for a validation failure, or nil.
func fieldErrors(err error) map[string]string {
	var verr *types.ErrValidation
	if !errors.As(err, &verr) {
		return nil
	}
	if len(verr.Fields) > 0 {
		return verr.Fields
	}
	if verr.Field != "" {
		return map[string]string{verr.Field: verr.Message}
	}
	return nil
}
