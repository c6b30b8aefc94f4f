package auth

import "errors"

var (
	// ErrNoCredential indicates the request carried no bearer credential
	ErrNoCredential = errors.New("no authentication token provided")

	// ErrInvalidToken indicates the credential failed verification
	// (malformed, unknown, expired, or revoked)
	ErrInvalidToken = errors.New("invalid or expired token")

	// ErrUserNotFound indicates a lookup for a missing user
	ErrUserNotFound = errors.New("user not found")

	// ErrEmailTaken indicates a registration with an already-used email
	ErrEmailTaken = errors.New("email already registered")

	// ErrBadCredentials indicates a failed login attempt
	ErrBadCredentials = errors.New("invalid email or password")
)
