// Package ledger holds the supply adjustment rules: input parsing,
// authorization and the supply floor. Persistence and locking live in the
// services package.
package ledger

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/dimitrije/tokenhub-api/internal/models"
)

var (
	ErrUnauthorized       = errors.New("not authorized to manage this token")
	ErrInvalidAmount      = errors.New("invalid amount (must be a positive integer)")
	ErrInvalidAction      = errors.New("invalid action (must be mint or burn)")
	ErrInsufficientSupply = errors.New("insufficient supply")
	ErrSupplyOverflow     = errors.New("supply would overflow")
)

type Action string

const (
	Mint Action = "mint"
	Burn Action = "burn"
)

func ParseAction(s string) (Action, error) {
	switch Action(strings.ToLower(strings.TrimSpace(s))) {
	case Mint:
		return Mint, nil
	case Burn:
		return Burn, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidAction, s)
}

// ParseAmount accepts base-10 integers, optionally JSON-quoted. Zero,
// negative, fractional and out-of-range values are rejected.
func ParseAmount(s string) (int64, error) {
	raw := strings.TrimSpace(s)
	if strings.HasPrefix(raw, `"`) {
		unquoted, err := strconv.Unquote(raw)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
		}
		raw = unquoted
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	if n <= 0 {
		return 0, fmt.Errorf("%w: %d", ErrInvalidAmount, n)
	}
	return n, nil
}

// CanManage reports whether actor may mint or burn token: either the owner
// holding an issuing role, or a holder of a can_manage grant.
func CanManage(actor *models.User, token *models.Token, granted bool) bool {
	if actor == nil || token == nil || !actor.IsActive {
		return false
	}
	if actor.ID == token.OwnerID && actor.CanIssueTokens() {
		return true
	}
	return granted
}

// Apply returns the supply after performing action. Burning more than the
// current supply fails with ErrInsufficientSupply.
func Apply(supply int64, action Action, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("%w: %d", ErrInvalidAmount, amount)
	}
	switch action {
	case Mint:
		if supply > math.MaxInt64-amount {
			return 0, fmt.Errorf("%w: %d + %d", ErrSupplyOverflow, supply, amount)
		}
		return supply + amount, nil
	case Burn:
		if amount > supply {
			return 0, fmt.Errorf("%w: burning %d of %d", ErrInsufficientSupply, amount, supply)
		}
		return supply - amount, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidAction, action)
}
