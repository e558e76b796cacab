// Package config provides password configuration and hashing functionality.
package config

import (
	"fmt"
	"os"
	"strconv"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"
)

// maxHashInput is the most bytes bcrypt accepts, pepper included.
const maxHashInput = 72

// PasswordConfig holds configuration for password policy, hashing and verification.
type PasswordConfig struct {
	BcryptCost int
	Pepper     string // optional global secret appended before hashing
	MinLength  int
}

// NewPasswordConfig creates a new password configuration from environment variables.
// It reads BCRYPT_COST (default: 12), PASSWORD_MIN_LENGTH (default: 6) and
// optionally PASSWORD_PEPPER.
func NewPasswordConfig() (*PasswordConfig, error) {
	costStr := os.Getenv("BCRYPT_COST")
	if costStr == "" {
		costStr = "12"
	}

	cost, err := strconv.Atoi(costStr)
	if err != nil {
		return nil, fmt.Errorf("invalid BCRYPT_COST: %v", err)
	}

	minStr := os.Getenv("PASSWORD_MIN_LENGTH")
	if minStr == "" {
		minStr = "6"
	}

	minLength, err := strconv.Atoi(minStr)
	if err != nil {
		return nil, fmt.Errorf("invalid PASSWORD_MIN_LENGTH: %v", err)
	}

	config := &PasswordConfig{
		BcryptCost: cost,
		Pepper:     os.Getenv("PASSWORD_PEPPER"),
		MinLength:  minLength,
	}

	if err := config.normalize(); err != nil {
		return nil, err
	}

	return config, nil
}

// normalize validates the configuration.
func (c *PasswordConfig) normalize() error {
	if c.BcryptCost < bcrypt.MinCost || c.BcryptCost > 14 {
		return fmt.Errorf("bcrypt cost out of range: %d (must be %d-14)", c.BcryptCost, bcrypt.MinCost)
	}
	if c.MinLength < 1 {
		return fmt.Errorf("password min length must be at least 1, got: %d", c.MinLength)
	}
	if c.MaxBytes() < c.MinLength {
		return fmt.Errorf("PASSWORD_PEPPER is %d bytes, leaving no room for a %d character password", len(c.Pepper), c.MinLength)
	}
	return nil
}

// MeetsPolicy reports whether pw satisfies the length policy. Length is
// counted in characters, not bytes.
func (c *PasswordConfig) MeetsPolicy(pw string) bool {
	return utf8.RuneCountInString(pw) >= c.MinLength
}

// MaxBytes is the longest password, in bytes, that can still be hashed
// once the pepper is appended.
func (c *PasswordConfig) MaxBytes() int {
	return maxHashInput - len(c.Pepper)
}

// TooLong reports whether pw exceeds MaxBytes.
func (c *PasswordConfig) TooLong(pw string) bool {
	return len(pw) > c.MaxBytes()
}

// HashPassword hashes a password using bcrypt (with optional pepper).
func (c *PasswordConfig) HashPassword(pw string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(c.pepper(pw)), c.BcryptCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// VerifyPassword verifies a password against a stored hash (with optional pepper).
func (c *PasswordConfig) VerifyPassword(pw, storedHash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(storedHash), []byte(c.pepper(pw))) == nil
}

func (c *PasswordConfig) pepper(pw string) string {
	if c.Pepper == "" {
		return pw
	}
	return pw + c.Pepper
}
