package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/dimitrije/tokenhub-api/internal/database"
	"github.com/dimitrije/tokenhub-api/internal/ledger"
	"github.com/dimitrije/tokenhub-api/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var tokenRowColumns = []string{"id", "name", "symbol", "total_supply", "owner_id", "is_active", "created_at", "updated_at"}

func tokenRows(tokens ...*models.Token) *pgxmock.Rows {
	rows := pgxmock.NewRows(tokenRowColumns)
	for _, t := range tokens {
		rows.AddRow(t.ID, t.Name, t.Symbol, t.TotalSupply, t.OwnerID, t.IsActive, t.CreatedAt, t.UpdatedAt)
	}
	return rows
}

func testToken(ownerID uuid.UUID, supply int64) *models.Token {
	now := time.Now()
	return &models.Token{
		ID:          uuid.New(),
		Name:        "Test Token",
		Symbol:      "TT",
		TotalSupply: supply,
		OwnerID:     ownerID,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

type recordingPublisher struct {
	mu          sync.Mutex
	adjustments []models.SupplyAdjustment
	transfers   []models.Transaction
}

func (p *recordingPublisher) SupplyAdjusted(_ *models.Token, adj *models.SupplyAdjustment) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.adjustments = append(p.adjustments, *adj)
}

func (p *recordingPublisher) TransferRecorded(t *models.Transaction) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.transfers = append(p.transfers, *t)
}

func setupSupplyService(t *testing.T) (*SupplyService, pgxmock.PgxPoolIface, *recordingPublisher) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	events := &recordingPublisher{}
	return NewSupplyService(&database.DB{Pool: mock}, events), mock, events
}

// expectAuthorization queues the token, actor and grant lookups.
func expectAuthorization(mock pgxmock.PgxPoolIface, token *models.Token, actor *models.User, granted bool) {
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT id, name, symbol, total_supply, owner_id, is_active, created_at, updated_at FROM tokens WHERE id = \$1`).
		WithArgs(token.ID).
		WillReturnRows(tokenRows(token))
	mock.ExpectQuery(`SELECT .+ FROM users WHERE id = \$1`).
		WithArgs(actor.ID).
		WillReturnRows(userRows(actor))
	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs(actor.ID, token.ID).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(granted))
}

func expectLockedSupply(mock pgxmock.PgxPoolIface, token *models.Token) {
	mock.ExpectQuery(`SELECT total_supply FROM tokens WHERE id = \$1 FOR UPDATE`).
		WithArgs(token.ID).
		WillReturnRows(pgxmock.NewRows([]string{"total_supply"}).AddRow(token.TotalSupply))
}

func expectCommittedAdjustment(mock pgxmock.PgxPoolIface, token *models.Token, actor *models.User, action string, amount, next int64) {
	updated := *token
	updated.TotalSupply = next
	mock.ExpectQuery(`UPDATE tokens SET total_supply = \$1`).
		WithArgs(next, token.ID).
		WillReturnRows(tokenRows(&updated))
	mock.ExpectQuery(`INSERT INTO supply_adjustments`).
		WithArgs(token.ID, actor.ID, action, amount, next).
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at"}).AddRow(uuid.New(), time.Now()))
	mock.ExpectCommit()
}

func TestSupplyService_Adjust_OwnerMints(t *testing.T) {
	svc, mock, events := setupSupplyService(t)
	ctx := context.Background()
	owner := externalUser("gh-owner", "owner@example.com", models.RoleTokenIssuer)
	token := testToken(owner.ID, 100)

	expectAuthorization(mock, token, owner, false)
	expectLockedSupply(mock, token)
	expectCommittedAdjustment(mock, token, owner, "mint", 50, 150)

	got, err := svc.Adjust(ctx, token.ID, owner.ID, "mint", "50")

	require.NoError(t, err)
	assert.Equal(t, int64(150), got.TotalSupply)
	require.Len(t, events.adjustments, 1)
	assert.Equal(t, int64(150), events.adjustments[0].TotalSupplyAfter)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSupplyService_Adjust_GrantedManagerBurns(t *testing.T) {
	svc, mock, _ := setupSupplyService(t)
	ctx := context.Background()
	owner := externalUser("gh-owner", "owner@example.com", models.RoleTokenIssuer)
	manager := externalUser("gh-manager", "manager@example.com", models.RoleUser)
	token := testToken(owner.ID, 100)

	expectAuthorization(mock, token, manager, true)
	expectLockedSupply(mock, token)
	expectCommittedAdjustment(mock, token, manager, "burn", 100, 0)

	got, err := svc.Adjust(ctx, token.ID, manager.ID, "burn", "100")

	require.NoError(t, err)
	assert.Equal(t, int64(0), got.TotalSupply)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSupplyService_Adjust_BurnBelowZero(t *testing.T) {
	svc, mock, events := setupSupplyService(t)
	ctx := context.Background()
	owner := externalUser("gh-owner", "owner@example.com", models.RoleTokenIssuer)
	token := testToken(owner.ID, 100)

	expectAuthorization(mock, token, owner, false)
	expectLockedSupply(mock, token)
	mock.ExpectRollback()

	_, err := svc.Adjust(ctx, token.ID, owner.ID, "burn", "150")

	assert.ErrorIs(t, err, ledger.ErrInsufficientSupply)
	assert.Empty(t, events.adjustments)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSupplyService_Adjust_Unauthorized(t *testing.T) {
	tests := []struct {
		name  string
		actor func(owner *models.User) *models.User
	}{
		{"stranger", func(*models.User) *models.User {
			return externalUser("gh-x", "x@example.com", models.RoleTokenIssuer)
		}},
		{"admin without grant", func(*models.User) *models.User {
			return externalUser("gh-admin", "admin@example.com", models.RoleAdmin)
		}},
		{"owner without issuing role", func(owner *models.User) *models.User {
			demoted := *owner
			demoted.Role = models.RoleUser
			return &demoted
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, mock, _ := setupSupplyService(t)
			owner := externalUser("gh-owner", "owner@example.com", models.RoleTokenIssuer)
			token := testToken(owner.ID, 100)
			actor := tt.actor(owner)

			expectAuthorization(mock, token, actor, false)
			mock.ExpectRollback()

			_, err := svc.Adjust(context.Background(), token.ID, actor.ID, "mint", "1")

			assert.ErrorIs(t, err, ledger.ErrUnauthorized)
			assert.NoError(t, mock.ExpectationsWereMet(), "no lock is taken for unauthorized actors")
		})
	}
}

func TestSupplyService_Adjust_UnknownActor(t *testing.T) {
	svc, mock, _ := setupSupplyService(t)
	owner := externalUser("gh-owner", "owner@example.com", models.RoleTokenIssuer)
	token := testToken(owner.ID, 100)
	actorID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM tokens WHERE id = \$1`).WithArgs(token.ID).WillReturnRows(tokenRows(token))
	mock.ExpectQuery(`SELECT .+ FROM users WHERE id = \$1`).WithArgs(actorID).WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs(actorID, token.ID).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectRollback()

	_, err := svc.Adjust(context.Background(), token.ID, actorID, "mint", "1")

	assert.ErrorIs(t, err, ledger.ErrUnauthorized)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSupplyService_Adjust_UnknownActionTouchesNothing(t *testing.T) {
	for _, action := range []string{"melt", "", "transfer"} {
		t.Run(action, func(t *testing.T) {
			svc, mock, _ := setupSupplyService(t)

			_, err := svc.Adjust(context.Background(), uuid.New(), uuid.New(), action, "5")

			assert.ErrorIs(t, err, ledger.ErrInvalidAction)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestSupplyService_Adjust_StrangerIsUnauthorizedWhateverTheAmount(t *testing.T) {
	for _, amount := range []string{"-5", "abc", "0", "2.5", "10"} {
		t.Run(amount, func(t *testing.T) {
			svc, mock, _ := setupSupplyService(t)
			owner := externalUser("gh-owner", "owner@example.com", models.RoleTokenIssuer)
			stranger := externalUser("gh-x", "x@example.com", models.RoleUser)
			token := testToken(owner.ID, 100)

			expectAuthorization(mock, token, stranger, false)
			mock.ExpectRollback()

			_, err := svc.Adjust(context.Background(), token.ID, stranger.ID, "burn", amount)

			assert.ErrorIs(t, err, ledger.ErrUnauthorized)
			assert.NotErrorIs(t, err, ledger.ErrInvalidAmount)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestSupplyService_Adjust_InvalidAmountRejectedBeforeLock(t *testing.T) {
	for _, amount := range []string{"0", "-5", "abc", "2.5", `5"`} {
		t.Run(amount, func(t *testing.T) {
			svc, mock, events := setupSupplyService(t)
			owner := externalUser("gh-owner", "owner@example.com", models.RoleTokenIssuer)
			token := testToken(owner.ID, 100)

			expectAuthorization(mock, token, owner, false)
			mock.ExpectRollback()

			_, err := svc.Adjust(context.Background(), token.ID, owner.ID, "mint", amount)

			assert.ErrorIs(t, err, ledger.ErrInvalidAmount)
			assert.Empty(t, events.adjustments)
			assert.NoError(t, mock.ExpectationsWereMet(), "no lock is taken for invalid amounts")
		})
	}
}

func TestSupplyService_Adjust_TokenState(t *testing.T) {
	t.Run("not found", func(t *testing.T) {
		svc, mock, _ := setupSupplyService(t)
		tokenID := uuid.New()

		mock.ExpectBegin()
		mock.ExpectQuery(`FROM tokens WHERE id = \$1`).WithArgs(tokenID).WillReturnError(pgx.ErrNoRows)
		mock.ExpectRollback()

		_, err := svc.Adjust(context.Background(), tokenID, uuid.New(), "mint", "1")

		assert.ErrorIs(t, err, ErrTokenNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("inactive", func(t *testing.T) {
		svc, mock, _ := setupSupplyService(t)
		owner := externalUser("gh-owner", "owner@example.com", models.RoleTokenIssuer)
		token := testToken(owner.ID, 10)
		token.IsActive = false

		expectAuthorization(mock, token, owner, false)
		mock.ExpectRollback()

		_, err := svc.Adjust(context.Background(), token.ID, owner.ID, "mint", "1")

		assert.ErrorIs(t, err, ErrTokenInactive)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("inactive seen by a stranger", func(t *testing.T) {
		svc, mock, _ := setupSupplyService(t)
		stranger := externalUser("gh-x", "x@example.com", models.RoleTokenIssuer)
		token := testToken(uuid.New(), 10)
		token.IsActive = false

		expectAuthorization(mock, token, stranger, false)
		mock.ExpectRollback()

		_, err := svc.Adjust(context.Background(), token.ID, stranger.ID, "mint", "1")

		assert.ErrorIs(t, err, ledger.ErrUnauthorized)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestSupplyService_Adjust_CheckConstraintBackstop(t *testing.T) {
	svc, mock, _ := setupSupplyService(t)
	owner := externalUser("gh-owner", "owner@example.com", models.RoleTokenIssuer)
	token := testToken(owner.ID, 100)

	expectAuthorization(mock, token, owner, false)
	expectLockedSupply(mock, token)
	mock.ExpectQuery(`UPDATE tokens SET total_supply = \$1`).
		WithArgs(int64(90), token.ID).
		WillReturnError(&pgconn.PgError{Code: "23514", ConstraintName: "tokens_total_supply_check"})
	mock.ExpectRollback()

	_, err := svc.Adjust(context.Background(), token.ID, owner.ID, "burn", "10")

	assert.ErrorIs(t, err, ledger.ErrInsufficientSupply)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSupplyService_Adjust_CommitFailure(t *testing.T) {
	svc, mock, events := setupSupplyService(t)
	owner := externalUser("gh-owner", "owner@example.com", models.RoleTokenIssuer)
	token := testToken(owner.ID, 100)

	expectAuthorization(mock, token, owner, false)
	expectLockedSupply(mock, token)
	mock.ExpectQuery(`UPDATE tokens SET total_supply = \$1`).
		WithArgs(int64(101), token.ID).
		WillReturnRows(tokenRows(token))
	mock.ExpectQuery(`INSERT INTO supply_adjustments`).
		WithArgs(token.ID, owner.ID, "mint", int64(1), int64(101)).
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at"}).AddRow(uuid.New(), time.Now()))
	mock.ExpectCommit().WillReturnError(context.DeadlineExceeded)

	_, err := svc.Adjust(context.Background(), token.ID, owner.ID, "mint", "1")

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Empty(t, events.adjustments)
	assert.Equal(t, "timeout", supplyOutcome(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSupplyService_History(t *testing.T) {
	svc, mock, _ := setupSupplyService(t)
	tokenID := uuid.New()
	actorID := uuid.New()
	now := time.Now()

	rows := pgxmock.NewRows([]string{"id", "token_id", "actor_id", "action", "amount", "total_supply_after", "created_at"}).
		AddRow(uuid.New(), tokenID, actorID, "mint", int64(50), int64(150), now).
		AddRow(uuid.New(), tokenID, actorID, "burn", int64(150), int64(100), now.Add(-time.Minute))
	mock.ExpectQuery(`SELECT .+ FROM supply_adjustments WHERE token_id = \$1 ORDER BY created_at DESC`).
		WithArgs(tokenID).
		WillReturnRows(rows)

	history, err := svc.History(context.Background(), tokenID)

	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "mint", history[0].Action)
	assert.NoError(t, mock.ExpectationsWereMet())
}
