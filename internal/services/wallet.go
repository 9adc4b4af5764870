package services

import (
	"context"
	"fmt"
)

const maxWalletAddressLength = 44

// WalletVerifier decides whether an address may be attached to an account.
// Chain-specific format and ownership checks plug in here.
type WalletVerifier interface {
	VerifyAddress(ctx context.Context, address string) error
}

// DefaultWalletVerifier only enforces what the schema can store.
type DefaultWalletVerifier struct{}

func (DefaultWalletVerifier) VerifyAddress(_ context.Context, address string) error {
	if address == "" {
		return fmt.Errorf("%w: address is required", ErrInvalidWallet)
	}
	if len(address) > maxWalletAddressLength {
		return fmt.Errorf("%w: address longer than %d characters", ErrInvalidWallet, maxWalletAddressLength)
	}
	return nil
}
