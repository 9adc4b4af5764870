package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dimitrije/tokenhub-api/internal/database"
	"github.com/dimitrije/tokenhub-api/internal/ledger"
	"github.com/dimitrije/tokenhub-api/internal/models"
	"github.com/dimitrije/tokenhub-api/internal/obs"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// EventPublisher fans committed ledger changes out to live subscribers.
type EventPublisher interface {
	SupplyAdjusted(token *models.Token, adj *models.SupplyAdjustment)
	TransferRecorded(t *models.Transaction)
}

type noopPublisher struct{}

func (noopPublisher) SupplyAdjusted(*models.Token, *models.SupplyAdjustment) {}
func (noopPublisher) TransferRecorded(*models.Transaction)                 {}

// SupplyService is the only writer of tokens.total_supply after creation.
type SupplyService struct {
	db     *database.DB
	events EventPublisher
}

func NewSupplyService(db *database.DB, events EventPublisher) *SupplyService {
	if events == nil {
		events = noopPublisher{}
	}
	return &SupplyService{db: db, events: events}
}

// Adjust mints or burns amount units of tokenID on behalf of actorID. The
// action is checked before any database access. Authorization comes before
// the token's state and the amount are looked at, and the amount is parsed
// before the row lock is taken. The supply is read and written under that
// lock so concurrent adjustments serialize and none is lost.
func (s *SupplyService) Adjust(ctx context.Context, tokenID, actorID uuid.UUID, rawAction, rawAmount string) (*models.Token, error) {
	action, err := ledger.ParseAction(rawAction)
	if err != nil {
		obs.ObserveSupplyAdjustment("unknown", supplyOutcome(err))
		return nil, err
	}

	token, adj, err := s.adjust(ctx, tokenID, actorID, action, rawAmount)
	obs.ObserveSupplyAdjustment(string(action), supplyOutcome(err))
	if err != nil {
		if !isCallerError(err) {
			slog.Error("supply adjustment failed", "token_id", tokenID, "actor_id", actorID, "action", action, "error", err)
		}
		return nil, err
	}

	slog.Info("supply adjusted",
		"token_id", token.ID, "actor_id", actorID, "action", action,
		"amount", adj.Amount, "total_supply", token.TotalSupply)
	s.events.SupplyAdjusted(token, adj)
	return token, nil
}

func (s *SupplyService) adjust(ctx context.Context, tokenID, actorID uuid.UUID, action ledger.Action, rawAmount string) (*models.Token, *models.SupplyAdjustment, error) {
	tx, err := s.db.Pool.Begin(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	token, err := findToken(ctx, tx, `SELECT `+tokenColumns+` FROM tokens WHERE id = $1`, tokenID)
	if err != nil {
		return nil, nil, err
	}

	actor, err := findUser(ctx, tx, `SELECT `+userColumns+` FROM users WHERE id = $1`, actorID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load actor: %w", err)
	}

	var granted bool
	err = tx.QueryRow(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM token_permissions
			WHERE user_id = $1 AND token_id = $2 AND can_manage = TRUE
		)
	`, actorID, tokenID).Scan(&granted)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to check permission: %w", err)
	}

	if !ledger.CanManage(actor, token, granted) {
		return nil, nil, ledger.ErrUnauthorized
	}
	if !token.IsActive {
		return nil, nil, ErrTokenInactive
	}

	amount, err := ledger.ParseAmount(rawAmount)
	if err != nil {
		return nil, nil, err
	}

	var supply int64
	err = tx.QueryRow(ctx, `SELECT total_supply FROM tokens WHERE id = $1 FOR UPDATE`, tokenID).Scan(&supply)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to lock token: %w", err)
	}

	next, err := ledger.Apply(supply, action, amount)
	if err != nil {
		return nil, nil, err
	}

	updated, err := findToken(ctx, tx, `
		UPDATE tokens SET total_supply = $1, updated_at = NOW()
		WHERE id = $2
		RETURNING `+tokenColumns, next, tokenID)
	if database.IsCheckViolation(err) {
		return nil, nil, fmt.Errorf("%w: %s", ledger.ErrInsufficientSupply, database.ConstraintName(err))
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to update supply: %w", err)
	}

	adj := models.SupplyAdjustment{
		TokenID:          tokenID,
		ActorID:          actorID,
		Action:           string(action),
		Amount:           amount,
		TotalSupplyAfter: next,
	}
	err = tx.QueryRow(ctx, `
		INSERT INTO supply_adjustments (token_id, actor_id, action, amount, total_supply_after)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`, adj.TokenID, adj.ActorID, adj.Action, adj.Amount, adj.TotalSupplyAfter).Scan(&adj.ID, &adj.CreatedAt)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to record adjustment: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return updated, &adj, nil
}

// History returns the committed adjustments for a token, newest first.
func (s *SupplyService) History(ctx context.Context, tokenID uuid.UUID) ([]models.SupplyAdjustment, error) {
	rows, err := s.db.Pool.Query(ctx, `
		SELECT id, token_id, actor_id, action, amount, total_supply_after, created_at
		FROM supply_adjustments
		WHERE token_id = $1
		ORDER BY created_at DESC
	`, tokenID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var adjustments []models.SupplyAdjustment
	for rows.Next() {
		var a models.SupplyAdjustment
		if err := rows.Scan(&a.ID, &a.TokenID, &a.ActorID, &a.Action, &a.Amount, &a.TotalSupplyAfter, &a.CreatedAt); err != nil {
			return nil, err
		}
		adjustments = append(adjustments, a)
	}
	return adjustments, rows.Err()
}

// isCallerError reports whether err was caused by the request rather than
// the system.
func isCallerError(err error) bool {
	return errors.Is(err, ledger.ErrUnauthorized) ||
		errors.Is(err, ledger.ErrInvalidAmount) ||
		errors.Is(err, ledger.ErrInvalidAction) ||
		errors.Is(err, ledger.ErrInsufficientSupply) ||
		errors.Is(err, ledger.ErrSupplyOverflow) ||
		errors.Is(err, ErrTokenNotFound) ||
		errors.Is(err, ErrTokenInactive)
}

func supplyOutcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ledger.ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ledger.ErrInvalidAmount):
		return "invalid_amount"
	case errors.Is(err, ledger.ErrInvalidAction):
		return "invalid_action"
	case errors.Is(err, ledger.ErrInsufficientSupply):
		return "insufficient_supply"
	case errors.Is(err, ledger.ErrSupplyOverflow):
		return "overflow"
	case errors.Is(err, ErrTokenNotFound):
		return "not_found"
	case errors.Is(err, ErrTokenInactive):
		return "inactive"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	}
	return "error"
}

// findToken maps a missing row to ErrTokenNotFound.
func findToken(ctx context.Context, q rowQuerier, sql string, args ...any) (*models.Token, error) {
	var t models.Token
	err := q.QueryRow(ctx, sql, args...).Scan(
		&t.ID, &t.Name, &t.Symbol, &t.TotalSupply, &t.OwnerID, &t.IsActive, &t.CreatedAt, &t.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrTokenNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}
