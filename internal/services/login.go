package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dimitrije/tokenhub-api/internal/identity"
	"github.com/dimitrije/tokenhub-api/internal/models"
	"github.com/dimitrije/tokenhub-api/internal/obs"
	"github.com/google/uuid"
)

// Login paths, as reported in metrics.
const (
	LoginPathOAuth      = "oauth"
	LoginPathLocalAdmin = "local_admin"
	LoginPathRefresh    = "refresh"
)

type AccountStore interface {
	ResolveIdentity(ctx context.Context, a identity.Assertion) (*models.User, identity.Action, error)
	AuthenticateLocalAdmin(ctx context.Context, email, password string) (*models.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

type CredentialIssuer interface {
	GenerateTokenPair(userID uuid.UUID, email, role string) (*TokenPair, error)
	ValidateRefreshToken(tokenString string) (uuid.UUID, error)
	RefreshExpiry() time.Duration
}

type SessionStore interface {
	Store(ctx context.Context, userID uuid.UUID, tokenHash string, expiresAt time.Time) error
	Validate(ctx context.Context, tokenHash string) (uuid.UUID, error)
	Rotate(ctx context.Context, userID uuid.UUID, oldHash, newHash string, expiresAt time.Time) error
	Revoke(ctx context.Context, tokenHash string) error
	RevokeAll(ctx context.Context, userID uuid.UUID) error
}

// LoginService turns a resolved account into session credentials. Disabled
// accounts are still resolved (so profiles and links stay current) but never
// receive credentials.
type LoginService struct {
	accounts AccountStore
	issuer   CredentialIssuer
	sessions SessionStore
}

func NewLoginService(accounts AccountStore, issuer CredentialIssuer, sessions SessionStore) *LoginService {
	return &LoginService{accounts: accounts, issuer: issuer, sessions: sessions}
}

func (s *LoginService) Login(ctx context.Context, a identity.Assertion) (*models.User, *TokenPair, error) {
	user, action, err := s.accounts.ResolveIdentity(ctx, a)
	if err != nil {
		obs.ObserveLogin(LoginPathOAuth, loginOutcome(err))
		return nil, nil, err
	}
	if !user.IsActive {
		obs.ObserveLogin(LoginPathOAuth, loginOutcome(ErrAccountDisabled))
		slog.Warn("login refused for disabled account", "user_id", user.ID)
		return nil, nil, ErrAccountDisabled
	}

	pair, err := s.issue(ctx, user)
	if err != nil {
		obs.ObserveLogin(LoginPathOAuth, loginOutcome(err))
		return nil, nil, err
	}

	obs.ObserveLogin(LoginPathOAuth, action.String())
	slog.Info("login", "user_id", user.ID, "provider", a.Provider, "action", action.String())
	return user, pair, nil
}

func (s *LoginService) LoginLocalAdmin(ctx context.Context, email, password string) (*models.User, *TokenPair, error) {
	user, err := s.accounts.AuthenticateLocalAdmin(ctx, email, password)
	if err != nil {
		obs.ObserveLogin(LoginPathLocalAdmin, loginOutcome(err))
		return nil, nil, err
	}

	pair, err := s.issue(ctx, user)
	if err != nil {
		obs.ObserveLogin(LoginPathLocalAdmin, loginOutcome(err))
		return nil, nil, err
	}

	obs.ObserveLogin(LoginPathLocalAdmin, "success")
	slog.Info("local admin login", "user_id", user.ID)
	return user, pair, nil
}

// Refresh trades a live refresh token for a new pair carrying the account's
// current role. The old token is consumed; presenting it again fails.
func (s *LoginService) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	userID, err := s.issuer.ValidateRefreshToken(refreshToken)
	if err != nil {
		obs.ObserveLogin(LoginPathRefresh, loginOutcome(ErrInvalidToken))
		return nil, ErrInvalidToken
	}

	tokenHash := HashToken(refreshToken)
	storedUserID, err := s.sessions.Validate(ctx, tokenHash)
	if err != nil {
		obs.ObserveLogin(LoginPathRefresh, loginOutcome(err))
		return nil, err
	}
	if storedUserID != userID {
		obs.ObserveLogin(LoginPathRefresh, loginOutcome(ErrInvalidToken))
		return nil, ErrInvalidToken
	}

	user, err := s.accounts.GetByID(ctx, userID)
	if errors.Is(err, ErrUserNotFound) {
		err = ErrInvalidToken
	}
	if err != nil {
		obs.ObserveLogin(LoginPathRefresh, loginOutcome(err))
		return nil, err
	}
	if !user.IsActive {
		if err := s.sessions.RevokeAll(ctx, user.ID); err != nil {
			slog.Error("failed to revoke sessions of disabled account", "user_id", user.ID, "error", err)
		}
		obs.ObserveLogin(LoginPathRefresh, loginOutcome(ErrAccountDisabled))
		return nil, ErrAccountDisabled
	}

	pair, expiresAt, err := s.mint(user)
	if err == nil {
		err = s.sessions.Rotate(ctx, user.ID, tokenHash, HashToken(pair.RefreshToken), expiresAt)
	}
	if err != nil {
		obs.ObserveLogin(LoginPathRefresh, loginOutcome(err))
		return nil, err
	}

	obs.ObserveLogin(LoginPathRefresh, "success")
	return pair, nil
}

func (s *LoginService) Logout(ctx context.Context, refreshToken string) error {
	return s.sessions.Revoke(ctx, HashToken(refreshToken))
}

func (s *LoginService) LogoutAll(ctx context.Context, userID uuid.UUID) error {
	return s.sessions.RevokeAll(ctx, userID)
}

func (s *LoginService) issue(ctx context.Context, user *models.User) (*TokenPair, error) {
	pair, expiresAt, err := s.mint(user)
	if err != nil {
		return nil, err
	}
	if err := s.sessions.Store(ctx, user.ID, HashToken(pair.RefreshToken), expiresAt); err != nil {
		return nil, fmt.Errorf("failed to store refresh token: %w", err)
	}
	return pair, nil
}

func (s *LoginService) mint(user *models.User) (*TokenPair, time.Time, error) {
	pair, err := s.issuer.GenerateTokenPair(user.ID, user.Email, user.Role)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("failed to generate tokens: %w", err)
	}
	return pair, time.Now().Add(s.issuer.RefreshExpiry()), nil
}

func loginOutcome(err error) string {
	switch {
	case errors.Is(err, ErrAccountDisabled):
		return "disabled"
	case errors.Is(err, identity.ErrIdentityConflict):
		return "conflict"
	case errors.Is(err, identity.ErrInvalidAssertion):
		return "invalid_assertion"
	case errors.Is(err, identity.ErrConstraintViolation):
		return "constraint_violation"
	case errors.Is(err, ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, ErrInvalidToken):
		return "invalid_token"
	case errors.Is(err, ErrUserNotFound):
		return "unknown_user"
	}
	return "error"
}
