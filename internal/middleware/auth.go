package middleware

import (
	"strings"

	"github.com/dimitrije/tokenhub-api/internal/services"
	"github.com/google/uuid"
	"github.com/m1z23r/drift/pkg/drift"
)

const principalKey = "principal"

// Principal is the caller as stated by its access token. The role is only a
// routing hint; services re-read it from the account.
type Principal struct {
	UserID uuid.UUID
	Email  string
	Role   string
}

type AccessTokenVerifier interface {
	ValidateAccessToken(tokenString string) (*services.Claims, error)
}

func Auth(verifier AccessTokenVerifier) drift.HandlerFunc {
	return func(c *drift.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.Unauthorized("missing authorization header")
			return
		}

		token, ok := bearerToken(header)
		if !ok {
			c.Unauthorized("invalid authorization header format")
			return
		}

		claims, err := verifier.ValidateAccessToken(token)
		if err != nil {
			c.Unauthorized("invalid or expired token")
			return
		}

		c.Set(principalKey, Principal{UserID: claims.UserID, Email: claims.Email, Role: claims.Role})
		c.Next()
	}
}

// bearerToken extracts the credential from "Bearer <token>". The scheme is
// matched case-insensitively.
func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// RequireRole must run after Auth.
func RequireRole(roles ...string) drift.HandlerFunc {
	return func(c *drift.Context) {
		p, ok := GetPrincipal(c)
		if !ok {
			c.Unauthorized("not authenticated")
			return
		}
		for _, r := range roles {
			if p.Role == r {
				c.Next()
				return
			}
		}
		c.Forbidden("insufficient role")
	}
}

func GetPrincipal(c *drift.Context) (Principal, bool) {
	v, ok := c.Get(principalKey)
	if !ok {
		return Principal{}, false
	}
	p, ok := v.(Principal)
	return p, ok
}

// GetUserID returns uuid.Nil when the request is unauthenticated.
func GetUserID(c *drift.Context) uuid.UUID {
	p, _ := GetPrincipal(c)
	return p.UserID
}
