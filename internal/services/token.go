package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dimitrije/tokenhub-api/internal/database"
	"github.com/dimitrije/tokenhub-api/internal/ledger"
	"github.com/dimitrije/tokenhub-api/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const tokenColumns = `id, name, symbol, total_supply, owner_id, is_active, created_at, updated_at`

const (
	maxTokenNameLength   = 100
	maxTokenSymbolLength = 10
)

var (
	ErrInvalidTokenData   = errors.New("invalid token data")
	ErrPermissionNotFound = errors.New("permission not found")
)

// TokenService manages the token catalogue, delegated manage grants and
// favorites. Supply changes after creation go through SupplyService.
type TokenService struct {
	db *database.DB
}

func NewTokenService(db *database.DB) *TokenService {
	return &TokenService{db: db}
}

func (s *TokenService) Create(ctx context.Context, ownerID uuid.UUID, name, symbol string, initialSupply int64) (*models.Token, error) {
	name = strings.TrimSpace(name)
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if name == "" || len(name) > maxTokenNameLength {
		return nil, fmt.Errorf("%w: name must be 1-%d characters", ErrInvalidTokenData, maxTokenNameLength)
	}
	if symbol == "" || len(symbol) > maxTokenSymbolLength {
		return nil, fmt.Errorf("%w: symbol must be 1-%d characters", ErrInvalidTokenData, maxTokenSymbolLength)
	}
	if initialSupply < 0 {
		return nil, fmt.Errorf("%w: initial supply %d", ledger.ErrInvalidAmount, initialSupply)
	}

	owner, err := findUser(ctx, s.db.Pool, `SELECT `+userColumns+` FROM users WHERE id = $1`, ownerID)
	if err != nil {
		return nil, err
	}
	if owner == nil || !owner.CanIssueTokens() {
		return nil, ledger.ErrUnauthorized
	}

	token, err := findToken(ctx, s.db.Pool, `
		INSERT INTO tokens (name, symbol, total_supply, owner_id)
		VALUES ($1, $2, $3, $4)
		RETURNING `+tokenColumns, name, symbol, initialSupply, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to create token: %w", err)
	}
	return token, nil
}

func (s *TokenService) GetByID(ctx context.Context, id uuid.UUID) (*models.Token, error) {
	return findToken(ctx, s.db.Pool, `SELECT `+tokenColumns+` FROM tokens WHERE id = $1`, id)
}

// List returns active tokens, newest first.
func (s *TokenService) List(ctx context.Context) ([]models.Token, error) {
	return s.queryTokens(ctx, `
		SELECT `+tokenColumns+` FROM tokens
		WHERE is_active = TRUE
		ORDER BY created_at DESC
	`)
}

func (s *TokenService) ListOwned(ctx context.Context, ownerID uuid.UUID) ([]models.Token, error) {
	return s.queryTokens(ctx, `
		SELECT `+tokenColumns+` FROM tokens
		WHERE owner_id = $1
		ORDER BY created_at DESC
	`, ownerID)
}

// SetActive enables or disables a token. Inactive tokens cannot be adjusted
// or transferred.
func (s *TokenService) SetActive(ctx context.Context, tokenID, actorID uuid.UUID, active bool) (*models.Token, error) {
	if _, err := s.authorizeTokenAdmin(ctx, tokenID, actorID); err != nil {
		return nil, err
	}
	return findToken(ctx, s.db.Pool, `
		UPDATE tokens SET is_active = $1, updated_at = NOW()
		WHERE id = $2
		RETURNING `+tokenColumns, active, tokenID)
}

// GrantPermission creates or updates the single grant for (userID, tokenID).
func (s *TokenService) GrantPermission(ctx context.Context, tokenID, granterID, userID uuid.UUID, canManage bool) (*models.Permission, error) {
	if _, err := s.authorizeTokenAdmin(ctx, tokenID, granterID); err != nil {
		return nil, err
	}

	grantee, err := findUser(ctx, s.db.Pool, `SELECT `+userColumns+` FROM users WHERE id = $1`, userID)
	if err != nil {
		return nil, err
	}
	if grantee == nil {
		return nil, ErrUserNotFound
	}

	p := models.Permission{UserEmail: grantee.Email, UserName: grantee.Name}
	err = s.db.Pool.QueryRow(ctx, `
		INSERT INTO token_permissions (user_id, token_id, can_manage)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, token_id)
		DO UPDATE SET can_manage = EXCLUDED.can_manage, updated_at = NOW()
		RETURNING id, user_id, token_id, can_manage, created_at, updated_at
	`, userID, tokenID, canManage).Scan(&p.ID, &p.UserID, &p.TokenID, &p.CanManage, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to grant permission: %w", err)
	}
	return &p, nil
}

func (s *TokenService) ListPermissions(ctx context.Context, tokenID, actorID uuid.UUID) ([]models.Permission, error) {
	if _, err := s.authorizeTokenAdmin(ctx, tokenID, actorID); err != nil {
		return nil, err
	}

	rows, err := s.db.Pool.Query(ctx, `
		SELECT p.id, p.user_id, p.token_id, p.can_manage, p.created_at, p.updated_at, u.email, u.name
		FROM token_permissions p
		JOIN users u ON u.id = p.user_id
		WHERE p.token_id = $1
		ORDER BY p.created_at
	`, tokenID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var permissions []models.Permission
	for rows.Next() {
		var p models.Permission
		if err := rows.Scan(&p.ID, &p.UserID, &p.TokenID, &p.CanManage, &p.CreatedAt, &p.UpdatedAt, &p.UserEmail, &p.UserName); err != nil {
			return nil, err
		}
		permissions = append(permissions, p)
	}
	return permissions, rows.Err()
}

func (s *TokenService) RevokePermission(ctx context.Context, tokenID, actorID, userID uuid.UUID) error {
	if _, err := s.authorizeTokenAdmin(ctx, tokenID, actorID); err != nil {
		return err
	}

	tag, err := s.db.Pool.Exec(ctx, `
		DELETE FROM token_permissions WHERE user_id = $1 AND token_id = $2
	`, userID, tokenID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrPermissionNotFound
	}
	return nil
}

func (s *TokenService) AddFavorite(ctx context.Context, userID, tokenID uuid.UUID) error {
	if _, err := s.GetByID(ctx, tokenID); err != nil {
		return err
	}
	_, err := s.db.Pool.Exec(ctx, `
		INSERT INTO token_favorites (user_id, token_id)
		VALUES ($1, $2)
		ON CONFLICT (user_id, token_id) DO NOTHING
	`, userID, tokenID)
	return err
}

func (s *TokenService) RemoveFavorite(ctx context.Context, userID, tokenID uuid.UUID) error {
	_, err := s.db.Pool.Exec(ctx, `
		DELETE FROM token_favorites WHERE user_id = $1 AND token_id = $2
	`, userID, tokenID)
	return err
}

func (s *TokenService) ListFavorites(ctx context.Context, userID uuid.UUID) ([]models.Token, error) {
	return s.queryTokens(ctx, `
		SELECT t.id, t.name, t.symbol, t.total_supply, t.owner_id, t.is_active, t.created_at, t.updated_at
		FROM tokens t
		JOIN token_favorites f ON f.token_id = t.id
		WHERE f.user_id = $1
		ORDER BY f.created_at DESC
	`, userID)
}

// authorizeTokenAdmin allows the token's owner and platform admins.
func (s *TokenService) authorizeTokenAdmin(ctx context.Context, tokenID, actorID uuid.UUID) (*models.Token, error) {
	token, err := s.GetByID(ctx, tokenID)
	if err != nil {
		return nil, err
	}
	actor, err := findUser(ctx, s.db.Pool, `SELECT `+userColumns+` FROM users WHERE id = $1`, actorID)
	if err != nil {
		return nil, err
	}
	if actor == nil || !actor.IsActive {
		return nil, ledger.ErrUnauthorized
	}
	if actor.ID != token.OwnerID && !actor.IsAdmin() {
		return nil, ledger.ErrUnauthorized
	}
	return token, nil
}

func (s *TokenService) queryTokens(ctx context.Context, sql string, args ...any) ([]models.Token, error) {
	rows, err := s.db.Pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tokens, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Token, error) {
		var t models.Token
		err := row.Scan(&t.ID, &t.Name, &t.Symbol, &t.TotalSupply, &t.OwnerID, &t.IsActive, &t.CreatedAt, &t.UpdatedAt)
		return t, err
	})
	if err != nil {
		return nil, err
	}
	return tokens, nil
}
