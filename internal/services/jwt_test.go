package services

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestJWT() *JWTService {
	return NewJWTService("test-secret", 15*time.Minute, 24*time.Hour)
}

func TestJWTService_RoundTrip(t *testing.T) {
	svc := newTestJWT()
	userID := uuid.New()

	pair, err := svc.GenerateTokenPair(userID, "issuer@example.com", "token_issuer")
	require.NoError(t, err)
	assert.Equal(t, int64(15*60), pair.ExpiresIn)

	claims, err := svc.ValidateAccessToken(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, userID, claims.UserID)
	assert.Equal(t, "issuer@example.com", claims.Email)
	assert.Equal(t, "token_issuer", claims.Role)
	assert.Equal(t, jwt.ClaimStrings{accessAudience}, claims.Audience)

	subject, err := svc.ValidateRefreshToken(pair.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, userID, subject)
}

func TestJWTService_TokenKindsAreNotInterchangeable(t *testing.T) {
	svc := newTestJWT()
	pair, err := svc.GenerateTokenPair(uuid.New(), "a@example.com", "admin")
	require.NoError(t, err)

	_, err = svc.ValidateAccessToken(pair.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = svc.ValidateRefreshToken(pair.AccessToken)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTService_Rejects(t *testing.T) {
	svc := newTestJWT()
	userID := uuid.New()
	now := time.Now()

	signed := func(t *testing.T, method jwt.SigningMethod, key any, claims jwt.Claims) string {
		t.Helper()
		s, err := jwt.NewWithClaims(method, claims).SignedString(key)
		require.NoError(t, err)
		return s
	}
	claims := func(mutate func(*jwt.RegisteredClaims)) jwt.RegisteredClaims {
		c := svc.registered(userID, refreshAudience, now, time.Hour)
		mutate(&c)
		return c
	}

	tests := []struct {
		name  string
		token func(t *testing.T) string
	}{
		{"empty", func(*testing.T) string { return "" }},
		{"garbage", func(*testing.T) string { return "not-a-jwt" }},
		{"wrong secret", func(t *testing.T) string {
			return signed(t, jwt.SigningMethodHS256, []byte("other-secret"), claims(func(*jwt.RegisteredClaims) {}))
		}},
		{"other hmac algorithm", func(t *testing.T) string {
			return signed(t, jwt.SigningMethodHS512, svc.secret, claims(func(*jwt.RegisteredClaims) {}))
		}},
		{"unsigned", func(t *testing.T) string {
			return signed(t, jwt.SigningMethodNone, jwt.UnsafeAllowNoneSignatureType, claims(func(*jwt.RegisteredClaims) {}))
		}},
		{"expired", func(t *testing.T) string {
			return signed(t, jwt.SigningMethodHS256, svc.secret, claims(func(c *jwt.RegisteredClaims) {
				c.IssuedAt = jwt.NewNumericDate(now.Add(-2 * time.Hour))
				c.ExpiresAt = jwt.NewNumericDate(now.Add(-time.Hour))
			}))
		}},
		{"no expiry", func(t *testing.T) string {
			return signed(t, jwt.SigningMethodHS256, svc.secret, claims(func(c *jwt.RegisteredClaims) { c.ExpiresAt = nil }))
		}},
		{"foreign issuer", func(t *testing.T) string {
			return signed(t, jwt.SigningMethodHS256, svc.secret, claims(func(c *jwt.RegisteredClaims) { c.Issuer = "someone-else" }))
		}},
		{"no audience", func(t *testing.T) string {
			return signed(t, jwt.SigningMethodHS256, svc.secret, claims(func(c *jwt.RegisteredClaims) { c.Audience = nil }))
		}},
		{"subject is not a uuid", func(t *testing.T) string {
			return signed(t, jwt.SigningMethodHS256, svc.secret, claims(func(c *jwt.RegisteredClaims) { c.Subject = "alice" }))
		}},
		{"nil subject", func(t *testing.T) string {
			return signed(t, jwt.SigningMethodHS256, svc.secret, claims(func(c *jwt.RegisteredClaims) { c.Subject = uuid.Nil.String() }))
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.ValidateRefreshToken(tt.token(t))
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestJWTService_ExpiredAccessToken(t *testing.T) {
	svc := NewJWTService("test-secret", -time.Minute, time.Hour)

	pair, err := svc.GenerateTokenPair(uuid.New(), "a@example.com", "user")
	require.NoError(t, err)

	_, err = svc.ValidateAccessToken(pair.AccessToken)
	assert.ErrorIs(t, err, ErrInvalidToken)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
}

func TestJWTService_EveryRefreshTokenIsUnique(t *testing.T) {
	svc := newTestJWT()
	userID := uuid.New()
	seen := make(map[string]bool)

	for i := 0; i < 5; i++ {
		pair, err := svc.GenerateTokenPair(userID, "a@example.com", "user")
		require.NoError(t, err)
		hash := HashToken(pair.RefreshToken)
		assert.False(t, seen[hash], "refresh token repeated")
		seen[hash] = true
	}
}

func TestHashToken(t *testing.T) {
	hash := HashToken("my-refresh-token")

	assert.Equal(t, hash, HashToken("my-refresh-token"))
	assert.NotEqual(t, hash, HashToken("my-refresh-token2"))
	assert.Len(t, hash, 64)
	assert.Equal(t, strings.ToLower(hash), hash)
}
