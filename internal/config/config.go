// Package config provides configuration loading and validation for the intake server.
package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Pending resume policies applied after an anonymous user authenticates.
const (
	ResumeSubmit = "submit" // submit the pending answers immediately
	ResumeReview = "review" // open the dashboard with the pending answers pre-filled
)

// Config is the server configuration. Values come from the environment and,
// optionally, a JSON file whose values fill anything the environment left unset.
type Config struct {
	Port        int    `json:"port,omitempty"`
	DatabaseURL string `json:"database_url,omitempty"`

	// Notifications
	WebhookURL            string `json:"webhook_url,omitempty"`             // Empty disables dispatch
	WebhookTimeoutSeconds int    `json:"webhook_timeout_seconds,omitempty"` // Per-request timeout
	WebhookMaxInFlight    int    `json:"webhook_max_in_flight,omitempty"`   // Concurrent detached dispatches

	// Client flow
	SessionTimeoutSeconds int    `json:"session_timeout_seconds,omitempty"` // Watchdog for session establishment
	ClientIdleTTLMinutes  int    `json:"client_idle_ttl_minutes,omitempty"` // Idle clients are evicted after this
	AnonymousTTLMinutes   int    `json:"anonymous_ttl_minutes,omitempty"`   // Shorter idle limit for signed-out clients
	MaxClients            int    `json:"max_clients,omitempty"`             // Live client cap
	PendingResumePolicy   string `json:"pending_resume_policy,omitempty"`   // submit | review
	SecureCookies         bool   `json:"secure_cookies,omitempty"`

	Payment PaymentConfig `json:"payment"`

	Verbose bool `json:"verbose,omitempty"`
}

// PaymentConfig holds the static outbound payment links shown after submission.
type PaymentConfig struct {
	StripeURL  string `json:"stripe_url,omitempty"`
	PayPalURL  string `json:"paypal_url,omitempty"`
	PriceCents int    `json:"price_cents,omitempty"`
	Currency   string `json:"currency,omitempty"`
}

// Defaults used when neither the environment nor the file sets a value.
var Defaults = Config{
	Port:                  8080,
	WebhookTimeoutSeconds: 10,
	WebhookMaxInFlight:    16,
	SessionTimeoutSeconds: 8,
	ClientIdleTTLMinutes:  120,
	AnonymousTTLMinutes:   15,
	MaxClients:            10000,
	PendingResumePolicy:   ResumeSubmit,
	Payment: PaymentConfig{
		StripeURL:  "https://buy.stripe.com/fZu14ngrhaFvdNh2IT0x200",
		PayPalURL:  "https://www.paypal.com/ncp/payment/UQK88YJA6AEBY",
		PriceCents: 3900,
		Currency:   "USD",
	},
}

// Load reads the environment, merges the optional JSON file under it, applies
// defaults and validates the result.
func Load(path string) (*Config, error) {
	cfg := FromEnv()
	if path != "" {
		file, err := LoadConfig(path)
		if err != nil {
			return nil, err
		}
		merged := cfg.MergeWithDefaults(*file)
		cfg = &merged
	}
	merged := cfg.MergeWithDefaults(Defaults)
	if err := merged.Validate(); err != nil {
		return nil, err
	}
	return &merged, nil
}

// FromEnv reads configuration from environment variables. Unset variables
// leave zero values so they can be filled by MergeWithDefaults.
func FromEnv() *Config {
	return &Config{
		Port:                  getEnvInt("PORT", 0),
		DatabaseURL:           os.Getenv("DATABASE_URL"),
		WebhookURL:            os.Getenv("WEBHOOK_URL"),
		WebhookTimeoutSeconds: getEnvInt("WEBHOOK_TIMEOUT_SECONDS", 0),
		WebhookMaxInFlight:    getEnvInt("WEBHOOK_MAX_IN_FLIGHT", 0),
		SessionTimeoutSeconds: getEnvInt("SESSION_TIMEOUT_SECONDS", 0),
		ClientIdleTTLMinutes:  getEnvInt("CLIENT_IDLE_TTL_MINUTES", 0),
		AnonymousTTLMinutes:   getEnvInt("ANONYMOUS_TTL_MINUTES", 0),
		MaxClients:            getEnvInt("MAX_CLIENTS", 0),
		PendingResumePolicy:   os.Getenv("PENDING_RESUME_POLICY"),
		SecureCookies:         getEnvBool("SECURE_COOKIES", false),
		Payment: PaymentConfig{
			StripeURL:  os.Getenv("PAYMENT_STRIPE_URL"),
			PayPalURL:  os.Getenv("PAYMENT_PAYPAL_URL"),
			PriceCents: getEnvInt("PAYMENT_PRICE_CENTS", 0),
			Currency:   os.Getenv("PAYMENT_CURRENCY"),
		},
	}
}

// LoadConfig loads configuration from a JSON file.
// Returns an error if the file cannot be read or parsed.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		path = filepath.Join(cwd, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	return &cfg, nil
}

// Validate checks that the configuration has usable values.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("config error: 'port' must be between 1 and 65535, got %d", c.Port)
	}
	if c.DatabaseURL == "" {
		return fmt.Errorf("config error: 'database_url' is required (DATABASE_URL)")
	}
	if c.WebhookURL != "" {
		u, err := url.Parse(c.WebhookURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("config error: 'webhook_url' must be an absolute http(s) URL")
		}
	}
	if c.WebhookTimeoutSeconds < 1 {
		return fmt.Errorf("config error: 'webhook_timeout_seconds' must be positive")
	}
	if c.WebhookMaxInFlight < 1 {
		return fmt.Errorf("config error: 'webhook_max_in_flight' must be positive")
	}
	if c.SessionTimeoutSeconds < 1 {
		return fmt.Errorf("config error: 'session_timeout_seconds' must be positive")
	}
	if c.MaxClients < 1 {
		return fmt.Errorf("config error: 'max_clients' must be positive")
	}
	if c.PendingResumePolicy != ResumeSubmit && c.PendingResumePolicy != ResumeReview {
		return fmt.Errorf("config error: 'pending_resume_policy' must be %q or %q, got %q",
			ResumeSubmit, ResumeReview, c.PendingResumePolicy)
	}
	if c.Payment.PriceCents < 0 {
		return fmt.Errorf("config error: 'payment.price_cents' must be non-negative")
	}
	return nil
}

// MergeWithDefaults returns a new Config with zero-valued fields filled from defaults.
func (c *Config) MergeWithDefaults(defaults Config) Config {
	result := *c

	if result.Port == 0 {
		result.Port = defaults.Port
	}
	if result.DatabaseURL == "" {
		result.DatabaseURL = defaults.DatabaseURL
	}
	if result.WebhookURL == "" {
		result.WebhookURL = defaults.WebhookURL
	}
	if result.WebhookTimeoutSeconds == 0 {
		result.WebhookTimeoutSeconds = defaults.WebhookTimeoutSeconds
	}
	if result.WebhookMaxInFlight == 0 {
		result.WebhookMaxInFlight = defaults.WebhookMaxInFlight
	}
	if result.SessionTimeoutSeconds == 0 {
		result.SessionTimeoutSeconds = defaults.SessionTimeoutSeconds
	}
	if result.ClientIdleTTLMinutes == 0 {
		result.ClientIdleTTLMinutes = defaults.ClientIdleTTLMinutes
	}
	if result.AnonymousTTLMinutes == 0 {
		result.AnonymousTTLMinutes = defaults.AnonymousTTLMinutes
	}
	if result.MaxClients == 0 {
		result.MaxClients = defaults.MaxClients
	}
	if result.PendingResumePolicy == "" {
		result.PendingResumePolicy = defaults.PendingResumePolicy
	}
	if result.Payment.StripeURL == "" {
		result.Payment.StripeURL = defaults.Payment.StripeURL
	}
	if result.Payment.PayPalURL == "" {
		result.Payment.PayPalURL = defaults.Payment.PayPalURL
	}
	if result.Payment.PriceCents == 0 {
		result.Payment.PriceCents = defaults.Payment.PriceCents
	}
	if result.Payment.Currency == "" {
		result.Payment.Currency = defaults.Payment.Currency
	}

	// Bool fields: cannot distinguish unset from false, so true wins
	result.SecureCookies = result.SecureCookies || defaults.SecureCookies
	result.Verbose = result.Verbose || defaults.Verbose

	return result
}

// WebhookTimeout returns the per-request notification timeout.
func (c *Config) WebhookTimeout() time.Duration {
	return time.Duration(c.WebhookTimeoutSeconds) * time.Second
}

// SessionTimeout returns the upper bound for session establishment.
func (c *Config) SessionTimeout() time.Duration {
	return time.Duration(c.SessionTimeoutSeconds) * time.Second
}

// ClientIdleTTL returns how long an idle client is kept in memory.
func (c *Config) ClientIdleTTL() time.Duration {
	return time.Duration(c.ClientIdleTTLMinutes) * time.Minute
}

// AnonymousTTL returns how long an idle signed-out client is kept in memory.
func (c *Config) AnonymousTTL() time.Duration {
	return time.Duration(c.AnonymousTTLMinutes) * time.Minute
}

// getEnvInt gets an environment variable as an integer with a default value.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvBool gets an environment variable as a boolean with a default value.
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
