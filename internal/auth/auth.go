// Package auth signs users up and authenticates them against a credential
// store. The authenticated username is the user ID that keys a ledger.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode"

	"golang.org/x/crypto/bcrypt"

	"fintrack/internal/core"
)

var (
	ErrInvalidUsername    = errors.New("invalid username: use at least 3 letters, digits or underscores")
	ErrWeakPassword       = errors.New("password must be at least 6 characters and include upper, lower, number, and symbol (@$!%*?&)")
	ErrUsernameTaken      = errors.New("username already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

const (
	minPasswordLength = 6
	passwordSymbols   = "@$!%*?&"
)

// UserRepository stores password hashes by username.
type UserRepository interface {
	LookupPasswordHash(ctx context.Context, username string) (string, bool, error)
	StoreUser(ctx context.Context, username, passwordHash string) error
}

type Service struct {
	users UserRepository
	cost  int
}

func NewService(users UserRepository) *Service {
	return &Service{users: users, cost: bcrypt.DefaultCost}
}

// WithCost sets the bcrypt cost. Tests use bcrypt.MinCost.
func (s *Service) WithCost(cost int) *Service {
	s.cost = cost
	return s
}

func ValidateUsername(username string) error {
	if !core.ValidUserID(username) {
		return ErrInvalidUsername
	}
	return nil
}

// ValidatePassword requires minPasswordLength characters including a lower
// and upper case letter, a digit and one of passwordSymbols.
func ValidatePassword(password string) error {
	var lower, upper, digit, symbol bool
	n := 0
	for _, r := range password {
		n++
		switch {
		case unicode.IsLower(r):
			lower = true
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r):
			digit = true
		case strings.ContainsRune(passwordSymbols, r):
			symbol = true
		}
	}
	if n < minPasswordLength || !lower || !upper || !digit || !symbol {
		return ErrWeakPassword
	}
	return nil
}

// SignUp creates a new account. Existing accounts are never overwritten.
func (s *Service) SignUp(ctx context.Context, username, password string) error {
	username = strings.TrimSpace(username)
	if err := ValidateUsername(username); err != nil {
		return err
	}

	_, exists, err := s.users.LookupPasswordHash(ctx, username)
	if err != nil {
		return fmt.Errorf("check username: %w", err)
	}
	if exists {
		return ErrUsernameTaken
	}

	if err := ValidatePassword(password); err != nil {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.users.StoreUser(ctx, username, string(hash)); err != nil {
		return fmt.Errorf("store user: %w", err)
	}

	slog.InfoContext(ctx, "Account created", "user_id", username)
	return nil
}

// Authenticate returns the user ID for valid credentials. Unknown users and
// wrong passwords both yield ErrInvalidCredentials.
func (s *Service) Authenticate(ctx context.Context, username, password string) (string, error) {
	username = strings.TrimSpace(username)

	hash, ok, err := s.users.LookupPasswordHash(ctx, username)
	if err != nil {
		return "", fmt.Errorf("lookup user: %w", err)
	}
	if !ok {
		return "", ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		slog.WarnContext(ctx, "Authentication failed", "user_id", username)
		return "", ErrInvalidCredentials
	}
	return username, nil
}
