package app

import (
	"github.com/jonathan/eligibility-intake/internal/config"
	"github.com/jonathan/eligibility-intake/internal/session"
	"github.com/jonathan/eligibility-intake/internal/types"
)

// View is the screen a client should currently render.
type View struct {
	State   string          `json:"state"`
	Chrome  bool            `json:"chrome"`
	Session session.Status  `json:"session"`
	User    *types.Identity `json:"user,omitempty"`

	Answers     *types.FormData   `json:"answers,omitempty"`
	Pending     *types.FormData   `json:"pending,omitempty"`
	ReferenceID string            `json:"reference_id,omitempty"`
	Error       string            `json:"error,omitempty"`
	FieldErrors map[string]string `json:"field_errors,omitempty"`
	AuthMode    AuthMode          `json:"auth_mode,omitempty"`

	Dashboard     *DashboardView `json:"dashboard,omitempty"`
	PaymentOffers []PaymentOffer `json:"payment_offers,omitempty"`
}

// DashboardView is the dashboard's per-state data.
type DashboardView struct {
	Loaded           bool               `json:"loaded"`
	Submissions      []types.Submission `json:"submissions"`
	Counts           types.StatusCounts `json:"counts"`
	Prefill          *types.FormData    `json:"prefill,omitempty"`
	FormOpen         bool               `json:"form_open"`
	EditingReference string             `json:"editing_reference,omitempty"`
	Notice           string             `json:"notice,omitempty"`
}

// PaymentOffer is a static outbound payment link shown on the completed screen.
type PaymentOffer struct {
	Provider    string `json:"provider"`
	URL         string `json:"url"`
	AmountCents int    `json:"amount_cents"`
	Currency    string `json:"currency"`
}

// Offers builds the payment offers from configuration, skipping providers
// without a link.
func Offers(cfg config.PaymentConfig) []PaymentOffer {
	var offers []PaymentOffer
	if cfg.StripeURL != "" {
		offers = append(offers, PaymentOffer{Provider: "stripe", URL: cfg.StripeURL, AmountCents: cfg.PriceCents, Currency: cfg.Currency})
	}
	if cfg.PayPalURL != "" {
		offers = append(offers, PaymentOffer{Provider: "paypal", URL: cfg.PayPalURL, AmountCents: cfg.PriceCents, Currency: cfg.Currency})
	}
	return offers
}

func copyAnswers(f *types.FormData) *types.FormData {
	if f == nil {
		return nil
	}
	cp := *f
	return &cp
}

func copyFields(m map[string]string) map[string]string {
	if len(m) == 0 {
		return nil
	}
	cp := make(map[string]string, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return cp
}

// prefillFor seeds the dashboard form from the latest answers, falling back
// to the identity's name and email.
func prefillFor(identity *types.Identity, latest *types.FormData) *types.FormData {
	var f types.FormData
	if latest != nil {
		f = *latest
	}
	if identity != nil {
		if f.FullName == "" {
			f.FullName = identity.FullName
		}
		if f.Email == "" {
			f.Email = identity.Email
		}
	}
	return &f
}
