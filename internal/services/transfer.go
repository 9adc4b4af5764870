package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dimitrije/tokenhub-api/internal/database"
	"github.com/dimitrije/tokenhub-api/internal/ledger"
	"github.com/dimitrije/tokenhub-api/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// TransferService records token movements. Records are append-only: there is
// no update or delete path for token_transactions.
type TransferService struct {
	db     *database.DB
	wallet WalletVerifier
	events EventPublisher
}

func NewTransferService(db *database.DB, wallet WalletVerifier, events EventPublisher) *TransferService {
	if wallet == nil {
		wallet = DefaultWalletVerifier{}
	}
	if events == nil {
		events = noopPublisher{}
	}
	return &TransferService{db: db, wallet: wallet, events: events}
}

// Record stores a transfer from the sender's connected wallet to toAddress.
// The recipient account is attached when the address belongs to a known user.
func (s *TransferService) Record(ctx context.Context, tokenID, senderID uuid.UUID, toAddress, rawAmount string) (*models.Transaction, error) {
	amount, err := ledger.ParseAmount(rawAmount)
	if err != nil {
		return nil, err
	}
	toAddress = strings.TrimSpace(toAddress)
	if err := s.wallet.VerifyAddress(ctx, toAddress); err != nil {
		return nil, err
	}

	sender, err := findUser(ctx, s.db.Pool, `SELECT `+userColumns+` FROM users WHERE id = $1`, senderID)
	if err != nil {
		return nil, err
	}
	if sender == nil {
		return nil, ErrUserNotFound
	}
	if sender.WalletAddress == nil || *sender.WalletAddress == "" {
		return nil, ErrWalletNotConnected
	}

	token, err := findToken(ctx, s.db.Pool, `SELECT `+tokenColumns+` FROM tokens WHERE id = $1`, tokenID)
	if err != nil {
		return nil, err
	}
	if !token.IsActive {
		return nil, ErrTokenInactive
	}

	var toUserID *uuid.UUID
	var recipient uuid.UUID
	err = s.db.Pool.QueryRow(ctx, `SELECT id FROM users WHERE wallet_address = $1 LIMIT 1`, toAddress).Scan(&recipient)
	switch {
	case err == nil:
		toUserID = &recipient
	case !errors.Is(err, pgx.ErrNoRows):
		return nil, fmt.Errorf("failed to look up recipient: %w", err)
	}

	t := models.Transaction{
		TokenID:     tokenID,
		FromAddress: *sender.WalletAddress,
		FromUserID:  &sender.ID,
		ToAddress:   toAddress,
		ToUserID:    toUserID,
		Amount:      amount,
	}
	err = s.db.Pool.QueryRow(ctx, `
		INSERT INTO token_transactions (token_id, from_address, from_user_id, to_address, to_user_id, amount)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, timestamp, created_at
	`, t.TokenID, t.FromAddress, t.FromUserID, t.ToAddress, t.ToUserID, t.Amount).Scan(&t.ID, &t.Timestamp, &t.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to record transfer: %w", err)
	}

	slog.Info("transfer recorded", "token_id", tokenID, "transaction_id", t.ID, "amount", amount)
	s.events.TransferRecorded(&t)
	return &t, nil
}

// History returns a token's transfers, newest first.
func (s *TransferService) History(ctx context.Context, tokenID uuid.UUID) ([]models.Transaction, error) {
	rows, err := s.db.Pool.Query(ctx, `
		SELECT id, token_id, from_address, from_user_id, to_address, to_user_id, amount, timestamp, created_at
		FROM token_transactions
		WHERE token_id = $1
		ORDER BY timestamp DESC
	`, tokenID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var history []models.Transaction
	for rows.Next() {
		var t models.Transaction
		if err := rows.Scan(&t.ID, &t.TokenID, &t.FromAddress, &t.FromUserID, &t.ToAddress, &t.ToUserID, &t.Amount, &t.Timestamp, &t.CreatedAt); err != nil {
			return nil, err
		}
		history = append(history, t)
	}
	return history, rows.Err()
}
