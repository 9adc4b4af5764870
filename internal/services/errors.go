package services

import "errors"

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrTokenNotFound      = errors.New("token not found")
	ErrTokenInactive      = errors.New("token is inactive")
	ErrAccountDisabled    = errors.New("account is disabled")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
	ErrInvalidRole        = errors.New("invalid role")
	ErrForbidden          = errors.New("forbidden")
	ErrEmailTaken         = errors.New("email is already registered")
	ErrWalletNotConnected = errors.New("wallet not connected")
	ErrInvalidWallet      = errors.New("invalid wallet address")
)
