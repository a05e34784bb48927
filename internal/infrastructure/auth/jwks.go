package auth

import (
	"context"
	"time"

	"github.com/MicahParks/keyfunc"
	"github.com/golang-jwt/jwt/v4"

	"tutorlink/pkg/errors"
	"tutorlink/pkg/logger"
)

var jwksLog = logger.New("jwks")

// JWKSVerifier checks RS256 ID tokens against a remote key set, so no service
// account is needed to verify Firebase credentials.
type JWKSVerifier struct {
	jwks     *keyfunc.JWKS
	issuer   string
	audience string
}

func NewJWKSVerifier(jwksURL, issuer, audience string) (*JWKSVerifier, error) {
	jwks, err := keyfunc.Get(jwksURL, keyfunc.Options{
		RefreshInterval:   time.Hour,
		RefreshRateLimit:  5 * time.Minute,
		RefreshTimeout:    10 * time.Second,
		RefreshUnknownKID: true,
		RefreshErrorHandler: func(err error) {
			jwksLog.Error("Failed to refresh key set: %v", err)
		},
	})
	if err != nil {
		return nil, errors.Unavailable("Failed to load signing keys", err)
	}

	return NewJWKSVerifierFromKeys(jwks, issuer, audience), nil
}

func NewJWKSVerifierFromKeys(jwks *keyfunc.JWKS, issuer, audience string) *JWKSVerifier {
	return &JWKSVerifier{
		jwks:     jwks,
		issuer:   issuer,
		audience: audience,
	}
}

func (v *JWKSVerifier) VerifyToken(ctx context.Context, token string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, v.jwks.Keyfunc, jwt.WithValidMethods([]string{"RS256"}))
	if err != nil || !parsed.Valid {
		return "", errors.Unauthorized("Invalid or expired token", err)
	}

	if !claims.VerifyIssuer(v.issuer, true) {
		return "", errors.Unauthorized("Unexpected token issuer", nil)
	}
	if v.audience != "" && !claims.VerifyAudience(v.audience, true) {
		return "", errors.Unauthorized("Unexpected token audience", nil)
	}
	if claims.Subject == "" {
		return "", errors.Unauthorized("Token has no subject", nil)
	}

	return claims.Subject, nil
}

// Close stops the background key refresh.
func (v *JWKSVerifier) Close() {
	v.jwks.EndBackground()
}
