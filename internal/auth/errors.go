package auth

import "errors"

var (
	// ErrInvalidSignature marks a token that is malformed, mis-signed or uses an unexpected algorithm.
	ErrInvalidSignature = errors.New("auth: invalid token signature")
	// ErrExpired marks a well-signed token past its expiry.
	ErrExpired = errors.New("auth: token expired")
	// ErrInvalidTokenKind marks a refresh token used as access token or vice versa.
	ErrInvalidTokenKind = errors.New("auth: invalid token kind")

	ErrUnauthorized       = errors.New("auth: unauthorized")
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	ErrForbidden          = errors.New("auth: forbidden")
	ErrNotFound           = errors.New("auth: not found")
	ErrAlreadyExists      = errors.New("auth: already exists")
	ErrInvalidInput       = errors.New("auth: invalid input")
)
