package handlers

import (
	"context"
	"errors"
	"log/slog"

	"github.com/dimitrije/tokenhub-api/internal/identity"
	"github.com/dimitrije/tokenhub-api/internal/ledger"
	"github.com/dimitrije/tokenhub-api/internal/obs"
	"github.com/dimitrije/tokenhub-api/internal/services"
	"github.com/m1z23r/drift/pkg/drift"
)

// respondError maps service errors onto HTTP responses. Anything unrecognised
// is logged and reported as a 500 without leaking detail.
func respondError(c *drift.Context, err error, fallback string) {
	switch {
	case errors.Is(err, identity.ErrIdentityConflict),
		errors.Is(err, services.ErrEmailTaken):
		_ = c.JSON(409, map[string]string{"error": err.Error()})

	case errors.Is(err, identity.ErrInvalidAssertion),
		errors.Is(err, ledger.ErrInvalidAmount),
		errors.Is(err, ledger.ErrInvalidAction),
		errors.Is(err, ledger.ErrInsufficientSupply),
		errors.Is(err, ledger.ErrSupplyOverflow),
		errors.Is(err, services.ErrInvalidRole),
		errors.Is(err, services.ErrInvalidWallet),
		errors.Is(err, services.ErrWalletNotConnected),
		errors.Is(err, services.ErrInvalidTokenData),
		errors.Is(err, services.ErrTokenInactive):
		c.BadRequest(err.Error())

	case errors.Is(err, ledger.ErrUnauthorized),
		errors.Is(err, services.ErrForbidden):
		c.Forbidden(err.Error())

	case errors.Is(err, services.ErrAccountDisabled):
		c.Forbidden("account disabled")

	case errors.Is(err, services.ErrInvalidCredentials),
		errors.Is(err, services.ErrInvalidToken):
		c.Unauthorized(err.Error())

	case errors.Is(err, services.ErrTokenNotFound):
		c.NotFound("token not found")
	case errors.Is(err, services.ErrUserNotFound):
		c.NotFound("user not found")
	case errors.Is(err, services.ErrPermissionNotFound):
		c.NotFound("permission not found")

	case errors.Is(err, context.DeadlineExceeded):
		c.GatewayTimeout("request timed out")

	default:
		if errors.Is(err, identity.ErrConstraintViolation) {
			slog.Error("account invariant violated", "error", err, "request_id", obs.RequestID(c.Request.Context()))
		} else {
			slog.Error(fallback, "error", err, "request_id", obs.RequestID(c.Request.Context()))
		}
		c.InternalServerError(fallback)
	}
}
