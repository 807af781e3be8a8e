package auth

import "errors"

// Token validation failures. The API answers all of them with 401.
var (
	ErrMissingToken     = errors.New("no bearer token supplied")
	ErrInvalidToken     = errors.New("bearer token is malformed or its signature does not verify")
	ErrExpiredToken     = errors.New("bearer token has expired")
	ErrTokenNotYetValid = errors.New("bearer token is not valid yet")

	// ErrInvalidRole means the role is not participant, provider or admin.
	ErrInvalidRole = errors.New("unknown actor role")
)

// Token issuing failures.
var (
	ErrMissingActor = errors.New("token subject must be a non-nil actor id")
	ErrWeakSecret   = errors.New("jwt secret must be at least 32 characters")
)
