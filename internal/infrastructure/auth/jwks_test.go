package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"testing"
	"time"

	"github.com/MicahParks/keyfunc"
	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tutorlink/pkg/errors"
)

const (
	testKID      = "test-key"
	testIssuer   = "https://securetoken.google.com/tutorlink-test"
	testAudience = "tutorlink-test"
)

func newTestJWKS(t *testing.T) (*rsa.PrivateKey, *keyfunc.JWKS) {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	raw, err := json.Marshal(map[string]interface{}{
		"keys": []map[string]string{{
			"kty": "RSA",
			"kid": testKID,
			"alg": "RS256",
			"use": "sig",
			"n":   base64.RawURLEncoding.EncodeToString(key.PublicKey.N.Bytes()),
			"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.PublicKey.E)).Bytes()),
		}},
	})
	require.NoError(t, err)

	jwks, err := keyfunc.NewJSON(raw)
	require.NoError(t, err)
	return key, jwks
}

func signRS256(t *testing.T, key *rsa.PrivateKey, claims jwt.RegisteredClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = testKID
	signed, err := token.SignedString(key)
	require.NoError(t, err)
	return signed
}

func validClaims(subject string) jwt.RegisteredClaims {
	now := time.Now()
	return jwt.RegisteredClaims{
		Subject:   subject,
		Issuer:    testIssuer,
		Audience:  jwt.ClaimStrings{testAudience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
	}
}

func TestJWKSVerifier(t *testing.T) {
	key, jwks := newTestJWKS(t)
	verifier := NewJWKSVerifierFromKeys(jwks, testIssuer, testAudience)
	ctx := context.Background()

	t.Run("valid token", func(t *testing.T) {
		uid, err := verifier.VerifyToken(ctx, signRS256(t, key, validClaims("tutor-1")))
		require.NoError(t, err)
		assert.Equal(t, "tutor-1", uid)
	})

	t.Run("wrong issuer", func(t *testing.T) {
		claims := validClaims("tutor-1")
		claims.Issuer = "https://example.com"
		_, err := verifier.VerifyToken(ctx, signRS256(t, key, claims))
		assert.True(t, errors.Is(err, errors.CodeUnauthorized))
	})

	t.Run("wrong audience", func(t *testing.T) {
		claims := validClaims("tutor-1")
		claims.Audience = jwt.ClaimStrings{"someone-else"}
		_, err := verifier.VerifyToken(ctx, signRS256(t, key, claims))
		assert.True(t, errors.Is(err, errors.CodeUnauthorized))
	})

	t.Run("expired", func(t *testing.T) {
		claims := validClaims("tutor-1")
		claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))
		_, err := verifier.VerifyToken(ctx, signRS256(t, key, claims))
		assert.True(t, errors.Is(err, errors.CodeUnauthorized))
	})

	t.Run("foreign key", func(t *testing.T) {
		other, err := rsa.GenerateKey(rand.Reader, 2048)
		require.NoError(t, err)
		_, err = verifier.VerifyToken(ctx, signRS256(t, other, validClaims("tutor-1")))
		assert.True(t, errors.Is(err, errors.CodeUnauthorized))
	})

	t.Run("hmac token rejected", func(t *testing.T) {
		signed, _, err := NewDevTokens("secret", time.Minute).Issue("tutor-1")
		require.NoError(t, err)
		_, err = verifier.VerifyToken(ctx, signed)
		assert.True(t, errors.Is(err, errors.CodeUnauthorized))
	})
}
