// Package session owns the authentication session of one client: its current
// state, the operations that change it and the observers that follow it.
package session

import "github.com/jonathan/eligibility-intake/internal/types"

// Status is the lifecycle status of a session.
type Status string

// Session statuses. A session starts loading and never returns to it.
const (
	StatusLoading       Status = "loading"
	StatusAnonymous     Status = "anonymous"
	StatusAuthenticated Status = "authenticated"
)

// State is an immutable snapshot of a session.
type State struct {
	Status   Status          `json:"status"`
	Identity *types.Identity `json:"identity,omitempty"`
}

// Anonymous is the signed-out state.
func Anonymous() State {
	return State{Status: StatusAnonymous}
}

// Authenticated is the signed-in state for identity.
func Authenticated(identity *types.Identity) State {
	if identity == nil {
		return Anonymous()
	}
	cp := *identity
	return State{Status: StatusAuthenticated, Identity: &cp}
}

// FromIdentity maps a backend session report to a state.
func FromIdentity(identity *types.Identity) State {
	return Authenticated(identity)
}

// Equal reports whether two states describe the same session.
func (s State) Equal(o State) bool {
	if s.Status != o.Status {
		return false
	}
	if s.Identity == nil || o.Identity == nil {
		return s.Identity == o.Identity
	}
	return *s.Identity == *o.Identity
}

// IsAuthenticated reports whether the session has an identity.
func (s State) IsAuthenticated() bool {
	return s.Status == StatusAuthenticated && s.Identity != nil
}
