package types

// EventKind tags an outbound notification.
type EventKind string

// Notification event kinds.
const (
	EventSignup          EventKind = "signup"
	EventEligibilityForm EventKind = "eligibility_form"
	EventFormCompletion  EventKind = "form_completion"
)

// Valid reports whether k is a known event kind.
func (k EventKind) Valid() bool {
	switch k {
	case EventSignup, EventEligibilityForm, EventFormCompletion:
		return true
	}
	return false
}
