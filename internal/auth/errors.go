package auth

import "errors"

// Domain errors for the auth package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, auth.ErrAlreadyConfigured) {
//	    // server was initialized before
//	}
var (
	// ErrAlreadyConfigured is returned when initialization is attempted
	// after operator credentials already exist.
	ErrAlreadyConfigured = errors.New("auth: server already configured")

	// ErrNotInitialized is returned when authentication is attempted
	// before operator credentials exist.
	ErrNotInitialized = errors.New("auth: server not initialized")

	// ErrInvalidCredentials is returned when a username/password pair
	// does not match the stored account.
	ErrInvalidCredentials = errors.New("auth: invalid credentials")

	// ErrTokenInvalid is returned when a JWT fails validation.
	ErrTokenInvalid = errors.New("auth: invalid token")

	// ErrInvalidUsername is returned when a username fails format checks.
	ErrInvalidUsername = errors.New("auth: invalid username")

	// ErrWeakPassword is returned when a password is too short.
	ErrWeakPassword = errors.New("auth: password too short")
)
