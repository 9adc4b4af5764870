package dto

import (
	"encoding/json"
	"strings"

	"github.com/dimitrije/tokenhub-api/internal/models"
	"github.com/google/uuid"
)

// Amount accepts both "50" and 50 on the wire. The raw text is handed to the
// ledger parser unchanged so both forms are validated the same way.
type Amount json.RawMessage

func (a *Amount) UnmarshalJSON(data []byte) error {
	*a = append((*a)[:0], data...)
	return nil
}

func (a Amount) MarshalJSON() ([]byte, error) {
	if len(a) == 0 {
		return []byte("null"), nil
	}
	return []byte(a), nil
}

func (a Amount) String() string {
	s := strings.TrimSpace(string(a))
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		var unquoted string
		if err := json.Unmarshal([]byte(s), &unquoted); err == nil {
			return unquoted
		}
	}
	if s == "null" {
		return ""
	}
	return s
}

type CreateTokenRequest struct {
	Name          string `json:"name"`
	Symbol        string `json:"symbol"`
	InitialSupply Amount `json:"initial_supply"`
}

type ManageSupplyRequest struct {
	Action string `json:"action"`
	Amount Amount `json:"amount"`
}

type SetTokenActiveRequest struct {
	IsActive *bool `json:"is_active"`
}

type GrantPermissionRequest struct {
	UserID    uuid.UUID `json:"user_id"`
	CanManage *bool     `json:"can_manage"`
}

type TransferRequest struct {
	ToAddress string `json:"to_address"`
	Amount    Amount `json:"amount"`
}

type TokenHistoryResponse struct {
	Adjustments []models.SupplyAdjustment `json:"adjustments"`
	Transfers   []models.Transaction      `json:"transfers"`
}
