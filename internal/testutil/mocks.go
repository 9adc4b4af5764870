package testutil

import (
	"context"

	"github.com/dimitrije/tokenhub-api/internal/identity"
	"github.com/dimitrije/tokenhub-api/internal/models"
	"github.com/dimitrije/tokenhub-api/internal/services"
	"github.com/dimitrije/tokenhub-api/internal/sse"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

func userResult(args mock.Arguments) (*models.User, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func tokenResult(args mock.Arguments) (*models.Token, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Token), args.Error(1)
}

func tokensResult(args mock.Arguments) ([]models.Token, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Token), args.Error(1)
}

func pairResult(args mock.Arguments, i int) *services.TokenPair {
	if args.Get(i) == nil {
		return nil
	}
	return args.Get(i).(*services.TokenPair)
}

// MockUserService mocks the UserService
type MockUserService struct {
	mock.Mock
}

func (m *MockUserService) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return userResult(m.Called(ctx, id))
}

func (m *MockUserService) Update(ctx context.Context, id uuid.UUID, name string) (*models.User, error) {
	return userResult(m.Called(ctx, id, name))
}

func (m *MockUserService) ConnectWallet(ctx context.Context, id uuid.UUID, address string) (*models.User, error) {
	return userResult(m.Called(ctx, id, address))
}

func (m *MockUserService) SetRole(ctx context.Context, actorID, targetID uuid.UUID, role string) (*models.User, error) {
	return userResult(m.Called(ctx, actorID, targetID, role))
}

func (m *MockUserService) SetActive(ctx context.Context, actorID, targetID uuid.UUID, active bool) (*models.User, error) {
	return userResult(m.Called(ctx, actorID, targetID, active))
}

// MockLoginService mocks the LoginService
type MockLoginService struct {
	mock.Mock
}

func (m *MockLoginService) Login(ctx context.Context, a identity.Assertion) (*models.User, *services.TokenPair, error) {
	args := m.Called(ctx, a)
	user, _ := args.Get(0).(*models.User)
	return user, pairResult(args, 1), args.Error(2)
}

func (m *MockLoginService) LoginLocalAdmin(ctx context.Context, email, password string) (*models.User, *services.TokenPair, error) {
	args := m.Called(ctx, email, password)
	user, _ := args.Get(0).(*models.User)
	return user, pairResult(args, 1), args.Error(2)
}

func (m *MockLoginService) Refresh(ctx context.Context, refreshToken string) (*services.TokenPair, error) {
	args := m.Called(ctx, refreshToken)
	return pairResult(args, 0), args.Error(1)
}

func (m *MockLoginService) Logout(ctx context.Context, refreshToken string) error {
	return m.Called(ctx, refreshToken).Error(0)
}

func (m *MockLoginService) LogoutAll(ctx context.Context, userID uuid.UUID) error {
	return m.Called(ctx, userID).Error(0)
}

// MockTokenService mocks the TokenService
type MockTokenService struct {
	mock.Mock
}

func (m *MockTokenService) Create(ctx context.Context, ownerID uuid.UUID, name, symbol string, initialSupply int64) (*models.Token, error) {
	return tokenResult(m.Called(ctx, ownerID, name, symbol, initialSupply))
}

func (m *MockTokenService) GetByID(ctx context.Context, id uuid.UUID) (*models.Token, error) {
	return tokenResult(m.Called(ctx, id))
}

func (m *MockTokenService) List(ctx context.Context) ([]models.Token, error) {
	return tokensResult(m.Called(ctx))
}

func (m *MockTokenService) ListOwned(ctx context.Context, ownerID uuid.UUID) ([]models.Token, error) {
	return tokensResult(m.Called(ctx, ownerID))
}

func (m *MockTokenService) SetActive(ctx context.Context, tokenID, actorID uuid.UUID, active bool) (*models.Token, error) {
	return tokenResult(m.Called(ctx, tokenID, actorID, active))
}

func (m *MockTokenService) GrantPermission(ctx context.Context, tokenID, granterID, userID uuid.UUID, canManage bool) (*models.Permission, error) {
	args := m.Called(ctx, tokenID, granterID, userID, canManage)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Permission), args.Error(1)
}

func (m *MockTokenService) ListPermissions(ctx context.Context, tokenID, actorID uuid.UUID) ([]models.Permission, error) {
	args := m.Called(ctx, tokenID, actorID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Permission), args.Error(1)
}

func (m *MockTokenService) RevokePermission(ctx context.Context, tokenID, actorID, userID uuid.UUID) error {
	return m.Called(ctx, tokenID, actorID, userID).Error(0)
}

func (m *MockTokenService) AddFavorite(ctx context.Context, userID, tokenID uuid.UUID) error {
	return m.Called(ctx, userID, tokenID).Error(0)
}

func (m *MockTokenService) RemoveFavorite(ctx context.Context, userID, tokenID uuid.UUID) error {
	return m.Called(ctx, userID, tokenID).Error(0)
}

func (m *MockTokenService) ListFavorites(ctx context.Context, userID uuid.UUID) ([]models.Token, error) {
	return tokensResult(m.Called(ctx, userID))
}

// MockSupplyService mocks the SupplyService
type MockSupplyService struct {
	mock.Mock
}

func (m *MockSupplyService) Adjust(ctx context.Context, tokenID, actorID uuid.UUID, rawAction, rawAmount string) (*models.Token, error) {
	return tokenResult(m.Called(ctx, tokenID, actorID, rawAction, rawAmount))
}

func (m *MockSupplyService) History(ctx context.Context, tokenID uuid.UUID) ([]models.SupplyAdjustment, error) {
	args := m.Called(ctx, tokenID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.SupplyAdjustment), args.Error(1)
}

// MockTransferService mocks the TransferService
type MockTransferService struct {
	mock.Mock
}

func (m *MockTransferService) Record(ctx context.Context, tokenID, senderID uuid.UUID, toAddress, rawAmount string) (*models.Transaction, error) {
	args := m.Called(ctx, tokenID, senderID, toAddress, rawAmount)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Transaction), args.Error(1)
}

func (m *MockTransferService) History(ctx context.Context, tokenID uuid.UUID) ([]models.Transaction, error) {
	args := m.Called(ctx, tokenID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Transaction), args.Error(1)
}

// MockSSEHub mocks the SSE Hub
type MockSSEHub struct {
	mock.Mock
}

func (m *MockSSEHub) Register(client *sse.Client) bool {
	return m.Called(client).Bool(0)
}

func (m *MockSSEHub) Unregister(client *sse.Client) {
	m.Called(client)
}

// MockOAuthProvider mocks an OAuth provider
type MockOAuthProvider struct {
	mock.Mock
}

func (m *MockOAuthProvider) GetConsentURL(state string) string {
	args := m.Called(state)
	return args.String(0)
}

func (m *MockOAuthProvider) ExchangeCode(ctx context.Context, code string) (identity.Assertion, error) {
	args := m.Called(ctx, code)
	a, _ := args.Get(0).(identity.Assertion)
	return a, args.Error(1)
}

func (m *MockOAuthProvider) Name() string {
	args := m.Called()
	return args.String(0)
}
