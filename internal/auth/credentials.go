package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"time"
)

// usernamePattern defines the valid format for usernames:
// alphanumeric, dots, hyphens, underscores, 1-64 characters.
var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9._-]{1,64}$`)

// minPasswordLength is the minimum accepted password length.
const minPasswordLength = 8

// IsValidUsername checks if a username meets format requirements.
func IsValidUsername(username string) bool {
	return usernamePattern.MatchString(username)
}

// Credentials manages the single operator account stored in
// server_config. It backs both broker connect-time authentication and
// the HTTP login endpoint.
type Credentials struct {
	db *sql.DB
}

// NewCredentials creates a credentials service over an open database.
func NewCredentials(db *sql.DB) *Credentials {
	return &Credentials{db: db}
}

// IsInitialized reports whether operator credentials exist yet.
func (c *Credentials) IsInitialized(ctx context.Context) (bool, error) {
	var count int
	err := c.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM server_config WHERE id = 1").Scan(&count)
	if err != nil {
		return false, fmt.Errorf("checking server config: %w", err)
	}
	return count > 0, nil
}

// Initialize creates the operator account. It can only succeed once;
// a second attempt fails with ErrAlreadyConfigured.
func (c *Credentials) Initialize(ctx context.Context, username, password string) error {
	if !IsValidUsername(username) {
		return ErrInvalidUsername
	}
	if len(password) < minPasswordLength {
		return ErrWeakPassword
	}

	initialized, err := c.IsInitialized(ctx)
	if err != nil {
		return err
	}
	if initialized {
		return ErrAlreadyConfigured
	}

	hash, err := HashPassword(password)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}

	now := time.Now().UTC().Format(time.RFC3339)
	_, err = c.db.ExecContext(ctx,
		"INSERT INTO server_config (id, username, password_hash, created_at, updated_at) VALUES (1, ?, ?, ?, ?)",
		username, hash, now, now,
	)
	if err != nil {
		return fmt.Errorf("storing credentials: %w", err)
	}
	return nil
}

// Verify checks a username/password pair against the stored account.
// Returns ErrNotInitialized if no account exists and
// ErrInvalidCredentials on mismatch.
func (c *Credentials) Verify(ctx context.Context, username, password string) error {
	var (
		storedUsername string
		storedHash     string
	)
	err := c.db.QueryRowContext(ctx,
		"SELECT username, password_hash FROM server_config WHERE id = 1",
	).Scan(&storedUsername, &storedHash)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotInitialized
	}
	if err != nil {
		return fmt.Errorf("loading credentials: %w", err)
	}

	if username != storedUsername {
		return ErrInvalidCredentials
	}

	match, err := VerifyPassword(password, storedHash)
	if err != nil {
		return fmt.Errorf("verifying password: %w", err)
	}
	if !match {
		return ErrInvalidCredentials
	}
	return nil
}
