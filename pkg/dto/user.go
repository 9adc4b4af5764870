package dto

import (
	"time"

	"github.com/dimitrije/tokenhub-api/internal/models"
	"github.com/google/uuid"
)

type UserResponse struct {
	ID            uuid.UUID  `json:"id"`
	Kind          string     `json:"kind"`
	Email         string     `json:"email"`
	Name          string     `json:"name"`
	AvatarURL     *string    `json:"avatar_url,omitempty"`
	Provider      *string    `json:"provider,omitempty"`
	Role          string     `json:"role"`
	IsActive      bool       `json:"is_active"`
	WalletAddress *string    `json:"wallet_address,omitempty"`
	LastSeenAt    *time.Time `json:"last_seen_at,omitempty"`
}

func NewUserResponse(u *models.User) UserResponse {
	return UserResponse{
		ID:            u.ID,
		Kind:          u.Kind,
		Email:         u.Email,
		Name:          u.Name,
		AvatarURL:     u.AvatarURL,
		Provider:      u.Provider,
		Role:          u.Role,
		IsActive:      u.IsActive,
		WalletAddress: u.WalletAddress,
		LastSeenAt:    u.LastSeenAt,
	}
}

type UpdateUserRequest struct {
	Name string `json:"name"`
}

type ConnectWalletRequest struct {
	Address string `json:"address"`
}

type SetRoleRequest struct {
	Role string `json:"role"`
}

type SetActiveRequest struct {
	IsActive *bool `json:"is_active"`
}
