package models

import (
	"time"

	"github.com/google/uuid"
)

// Permission delegates mint/burn authority on a token to a user who does not
// own it. At most one exists per (user, token).
type Permission struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	TokenID   uuid.UUID `json:"token_id"`
	CanManage bool      `json:"can_manage"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Populated by joins
	UserEmail string `json:"user_email,omitempty"`
	UserName  string `json:"user_name,omitempty"`
}
