package handlers

import (
	"context"

	"github.com/dimitrije/tokenhub-api/internal/identity"
	"github.com/dimitrije/tokenhub-api/internal/models"
	"github.com/dimitrije/tokenhub-api/internal/services"
	"github.com/dimitrije/tokenhub-api/internal/sse"
	"github.com/google/uuid"
)

// UserServiceInterface defines the methods used by handlers from UserService
type UserServiceInterface interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	Update(ctx context.Context, id uuid.UUID, name string) (*models.User, error)
	ConnectWallet(ctx context.Context, id uuid.UUID, address string) (*models.User, error)
	SetRole(ctx context.Context, actorID, targetID uuid.UUID, role string) (*models.User, error)
	SetActive(ctx context.Context, actorID, targetID uuid.UUID, active bool) (*models.User, error)
}

// LoginServiceInterface defines the methods used by handlers from LoginService
type LoginServiceInterface interface {
	Login(ctx context.Context, a identity.Assertion) (*models.User, *services.TokenPair, error)
	LoginLocalAdmin(ctx context.Context, email, password string) (*models.User, *services.TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (*services.TokenPair, error)
	Logout(ctx context.Context, refreshToken string) error
	LogoutAll(ctx context.Context, userID uuid.UUID) error
}

// TokenServiceInterface defines the methods used by handlers from TokenService
type TokenServiceInterface interface {
	Create(ctx context.Context, ownerID uuid.UUID, name, symbol string, initialSupply int64) (*models.Token, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Token, error)
	List(ctx context.Context) ([]models.Token, error)
	ListOwned(ctx context.Context, ownerID uuid.UUID) ([]models.Token, error)
	SetActive(ctx context.Context, tokenID, actorID uuid.UUID, active bool) (*models.Token, error)
	GrantPermission(ctx context.Context, tokenID, granterID, userID uuid.UUID, canManage bool) (*models.Permission, error)
	ListPermissions(ctx context.Context, tokenID, actorID uuid.UUID) ([]models.Permission, error)
	RevokePermission(ctx context.Context, tokenID, actorID, userID uuid.UUID) error
	AddFavorite(ctx context.Context, userID, tokenID uuid.UUID) error
	RemoveFavorite(ctx context.Context, userID, tokenID uuid.UUID) error
	ListFavorites(ctx context.Context, userID uuid.UUID) ([]models.Token, error)
}

// SupplyServiceInterface defines the methods used by handlers from SupplyService
type SupplyServiceInterface interface {
	Adjust(ctx context.Context, tokenID, actorID uuid.UUID, rawAction, rawAmount string) (*models.Token, error)
	History(ctx context.Context, tokenID uuid.UUID) ([]models.SupplyAdjustment, error)
}

// TransferServiceInterface defines the methods used by handlers from TransferService
type TransferServiceInterface interface {
	Record(ctx context.Context, tokenID, senderID uuid.UUID, toAddress, rawAmount string) (*models.Transaction, error)
	History(ctx context.Context, tokenID uuid.UUID) ([]models.Transaction, error)
}

// SSEHubInterface defines the methods used by handlers from the SSE Hub
type SSEHubInterface interface {
	Register(client *sse.Client) bool
	Unregister(client *sse.Client)
}
