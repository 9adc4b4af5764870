package models

import (
	"time"

	"github.com/google/uuid"
)

type Token struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Symbol      string    `json:"symbol"`
	TotalSupply int64     `json:"total_supply"`
	OwnerID     uuid.UUID `json:"owner_id"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// SupplyAdjustment is the audit record written with every committed mint or burn.
type SupplyAdjustment struct {
	ID               uuid.UUID `json:"id"`
	TokenID          uuid.UUID `json:"token_id"`
	ActorID          uuid.UUID `json:"actor_id"`
	Action           string    `json:"action"`
	Amount           int64     `json:"amount"`
	TotalSupplyAfter int64     `json:"total_supply_after"`
	CreatedAt        time.Time `json:"created_at"`
}

type Favorite struct {
	UserID    uuid.UUID `json:"user_id"`
	TokenID   uuid.UUID `json:"token_id"`
	CreatedAt time.Time `json:"created_at"`
}
