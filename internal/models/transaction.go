package models

import (
	"time"

	"github.com/google/uuid"
)

// Transaction is an append-only ledger movement record.
type Transaction struct {
	ID          uuid.UUID  `json:"id"`
	TokenID     uuid.UUID  `json:"token_id"`
	FromAddress string     `json:"from_address"`
	FromUserID  *uuid.UUID `json:"from_user_id,omitempty"`
	ToAddress   string     `json:"to_address"`
	ToUserID    *uuid.UUID `json:"to_user_id,omitempty"`
	Amount      int64      `json:"amount"`
	Timestamp   time.Time  `json:"timestamp"`
	CreatedAt   time.Time  `json:"created_at"`
}
