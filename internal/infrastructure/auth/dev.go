package auth

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"golang.org/x/oauth2"

	"tutorlink/pkg/errors"
)

const devIssuer = "tutorlink-dev"

// DevTokens issues and verifies HS256 credentials for local development and tests.
type DevTokens struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewDevTokens(secret string, ttl time.Duration) *DevTokens {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &DevTokens{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

func (d *DevTokens) Issue(userID string) (string, time.Time, error) {
	if userID == "" {
		return "", time.Time{}, errors.BadRequest("User ID is required", nil)
	}

	now := d.now()
	expiresAt := now.Add(d.ttl)
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		Issuer:    devIssuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(d.secret)
	if err != nil {
		return "", time.Time{}, errors.Internal("Failed to sign token", err)
	}
	return signed, expiresAt, nil
}

func (d *DevTokens) VerifyToken(ctx context.Context, token string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return d.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil || !parsed.Valid {
		return "", errors.Unauthorized("Invalid or expired token", err)
	}
	if !claims.VerifyIssuer(devIssuer, true) || claims.Subject == "" {
		return "", errors.Unauthorized("Invalid token claims", nil)
	}

	return claims.Subject, nil
}

// TokenSource mints credentials for userID, reusing each one until shortly before expiry.
func (d *DevTokens) TokenSource(userID string) oauth2.TokenSource {
	return oauth2.ReuseTokenSource(nil, &devTokenSource{tokens: d, userID: userID})
}

type devTokenSource struct {
	tokens *DevTokens
	userID string
}

func (s *devTokenSource) Token() (*oauth2.Token, error) {
	signed, expiresAt, err := s.tokens.Issue(s.userID)
	if err != nil {
		return nil, err
	}
	return &oauth2.Token{
		AccessToken: signed,
		TokenType:   "Bearer",
		Expiry:      expiresAt,
	}, nil
}
