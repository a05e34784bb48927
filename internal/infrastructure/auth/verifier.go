// Package auth holds the credential verifiers the gateway and HTTP API accept.
package auth

import "context"

// TokenVerifier resolves a bearer credential to the user id it was issued for.
// Implementations return an UNAUTHORIZED AppError for bad or expired credentials.
type TokenVerifier interface {
	VerifyToken(ctx context.Context, token string) (string, error)
}
