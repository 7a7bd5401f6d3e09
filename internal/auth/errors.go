package auth

import "github.com/otcheredev/roadservice-api/internal/apperr"

// Token verification failures. All are authentication failures.
var (
	ErrInvalidToken   = apperr.Authentication("Invalid token")
	ErrExpiredToken   = apperr.Authentication("Token expired")
	ErrMalformedToken = apperr.Authentication("Malformed token")
	ErrMissingToken   = apperr.Authentication("Token missing or invalid")
)

// Revalidation failures.
var (
	ErrUserNotFound        = apperr.Authentication("User not found")
	ErrAccountInactive     = apperr.Authentication("Account is not active")
	ErrTokenTenantMismatch = apperr.Authentication("Token tenant mismatch")
)
