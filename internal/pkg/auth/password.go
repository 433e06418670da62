// internal/pkg/auth/password.go
package auth

import (
	"errors"
	"fmt"
	"unicode"

	"github.com/your-org/marketplace-api/internal/config"
	"golang.org/x/crypto/bcrypt"
)

var ErrPasswordMismatch = errors.New("password does not match")

// PasswordManager handles password operations
type PasswordManager struct {
	cost int
}

// NewPasswordManager creates a new password manager
func NewPasswordManager(cfg *config.Config) *PasswordManager {
	return &PasswordManager{cost: cfg.Security.BcryptCost}
}

// HashPassword validates and hashes a password using bcrypt
func (p *PasswordManager) HashPassword(password string) (string, error) {
	if err := p.ValidatePassword(password); err != nil {
		return "", err
	}

	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(password), p.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}

	return string(hashedBytes), nil
}

// VerifyPassword verifies a password against its hash
func (p *PasswordManager) VerifyPassword(password, hash string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrPasswordMismatch
		}
		return fmt.Errorf("failed to verify password: %w", err)
	}
	return nil
}

// PasswordPolicyError describes why a password was rejected
type PasswordPolicyError struct {
	Reason string
}

func (e *PasswordPolicyError) Error() string {
	return "password " + e.Reason
}

// ValidatePassword validates password strength
func (p *PasswordManager) ValidatePassword(password string) error {
	if len(password) < 8 {
		return &PasswordPolicyError{Reason: "must be at least 8 characters long"}
	}
	if len(password) > 72 {
		// bcrypt ignores everything past 72 bytes
		return &PasswordPolicyError{Reason: "must be no more than 72 characters long"}
	}

	var hasUpper, hasLower, hasNumber bool
	repeat, prev := 0, rune(0)
	for _, char := range password {
		switch {
		case unicode.IsUpper(char):
			hasUpper = true
		case unicode.IsLower(char):
			hasLower = true
		case unicode.IsNumber(char):
			hasNumber = true
		}

		if char == prev {
			repeat++
			if repeat >= 2 {
				return &PasswordPolicyError{Reason: "cannot contain more than 2 repeating characters"}
			}
		} else {
			repeat = 0
		}
		prev = char
	}

	if !hasUpper {
		return &PasswordPolicyError{Reason: "must contain at least one uppercase letter"}
	}
	if !hasLower {
		return &PasswordPolicyError{Reason: "must contain at least one lowercase letter"}
	}
	if !hasNumber {
		return &PasswordPolicyError{Reason: "must contain at least one number"}
	}

	return nil
}
