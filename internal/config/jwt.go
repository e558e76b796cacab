package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

const (
	minSecretLength = 16
	// maxTokenHours bounds how long a browser stays signed in without
	// re-entering credentials.
	maxTokenHours = 30 * 24
)

// JWTConfig configures the signed session tokens handed to browsers in the
// intake_token cookie and accepted as bearer tokens on the REST endpoints.
// The token lifetime is also the cookie lifetime.
type JWTConfig struct {
	Secret          string
	ExpirationHours int
	Issuer          string
}

// NewJWTConfig reads JWT_SECRET (required, at least 16 characters),
// JWT_EXPIRATION_HOURS (default 24, at most 720) and JWT_ISSUER
// (default eligibility-intake).
func NewJWTConfig() (*JWTConfig, error) {
	cfg := &JWTConfig{
		Secret:          os.Getenv("JWT_SECRET"),
		ExpirationHours: 24,
		Issuer:          os.Getenv("JWT_ISSUER"),
	}
	if cfg.Secret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required but not set")
	}
	if raw := os.Getenv("JWT_EXPIRATION_HOURS"); raw != "" {
		hours, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid JWT_EXPIRATION_HOURS: %v", err)
		}
		cfg.ExpirationHours = hours
	}
	if cfg.Issuer == "" {
		cfg.Issuer = "eligibility-intake"
	}

	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// TTL is how long an issued session token, and the cookie carrying it, lives.
func (c *JWTConfig) TTL() time.Duration {
	return time.Duration(c.ExpirationHours) * time.Hour
}

func (c *JWTConfig) normalize() error {
	if len(c.Secret) < minSecretLength {
		return fmt.Errorf("JWT_SECRET must be at least %d characters, got: %d", minSecretLength, len(c.Secret))
	}
	if c.ExpirationHours < 1 || c.ExpirationHours > maxTokenHours {
		return fmt.Errorf("JWT_EXPIRATION_HOURS must be between 1 and %d, got: %d", maxTokenHours, c.ExpirationHours)
	}
	return nil
}
