package models

import (
	"time"

	"github.com/google/uuid"
)

// Account kinds. External accounts always carry an external id, local admins
// never do.
const (
	KindExternal   = "external"
	KindLocalAdmin = "local_admin"
)

// Roles (coarse authorization tiers)
const (
	RoleUser        = "user"
	RoleTokenIssuer = "token_issuer"
	RoleAdmin       = "admin"
)

type User struct {
	ID            uuid.UUID  `json:"id"`
	Kind          string     `json:"kind"`
	Provider      *string    `json:"provider,omitempty"`
	ExternalID    *string    `json:"-"`
	Email         string     `json:"email"`
	PasswordHash  *string    `json:"-"`
	Name          string     `json:"name"`
	AvatarURL     *string    `json:"avatar_url,omitempty"`
	Role          string     `json:"role"`
	IsActive      bool       `json:"is_active"`
	WalletAddress *string    `json:"wallet_address,omitempty"`
	LastSeenAt    *time.Time `json:"last_seen_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

func ValidRole(role string) bool {
	switch role {
	case RoleUser, RoleTokenIssuer, RoleAdmin:
		return true
	}
	return false
}

// CanIssueTokens reports whether the account's role allows creating and
// managing its own tokens.
func (u *User) CanIssueTokens() bool {
	return u.IsActive && (u.Role == RoleTokenIssuer || u.Role == RoleAdmin)
}

func (u *User) IsAdmin() bool {
	return u.IsActive && u.Role == RoleAdmin
}
