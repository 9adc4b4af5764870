package handlers

import (
	"net/http"
	"testing"

	"github.com/dimitrije/tokenhub-api/internal/middleware"
	"github.com/dimitrije/tokenhub-api/internal/models"
	"github.com/dimitrije/tokenhub-api/internal/services"
	"github.com/dimitrije/tokenhub-api/internal/sse"
	"github.com/dimitrije/tokenhub-api/internal/testutil"
	"github.com/google/uuid"
	"github.com/m1z23r/drift/pkg/drift"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func setupSSETest(t *testing.T) (*testutil.MockSSEHub, *testutil.MockTokenService, http.Handler, *services.JWTService) {
	t.Helper()
	mockHub := new(testutil.MockSSEHub)
	mockTokenService := new(testutil.MockTokenService)
	handler := NewSSEHandler(mockHub, mockTokenService)
	jwtSvc := newTestJWTService()

	app := drift.New()
	app.Use(middleware.Auth(jwtSvc))
	app.Get("/tokens/:id/events", handler.Connect)

	return mockHub, mockTokenService, app, jwtSvc
}

func TestSSEHandler_Connect_StreamsEvents(t *testing.T) {
	mockHub, mockTokenService, app, jwtSvc := setupSSETest(t)
	userID := uuid.New()
	token := sampleToken(uuid.New(), 100)

	mockTokenService.On("GetByID", mock.Anything, token.ID).Return(token, nil)
	mockHub.On("Register", mock.MatchedBy(func(c *sse.Client) bool {
		return c.TokenID == token.ID && c.UserID == userID && c.ID != ""
	})).Run(func(args mock.Arguments) {
		client := args.Get(0).(*sse.Client)
		client.Send <- []byte(`{"type":"supply_adjusted","data":{"total_supply":150}}`)
		close(client.Send)
	}).Return(true)
	mockHub.On("Unregister", mock.Anything).Return()

	rec := clientFor(t, app, jwtSvc, userID, models.RoleUser).GET("/tokens/" + token.ID.String() + "/events")

	body := rec.Body.String()
	assert.Contains(t, body, "connected")
	assert.Contains(t, body, "supply_adjusted")
	mockHub.AssertExpectations(t)
}

func TestSSEHandler_Connect_HubStopped(t *testing.T) {
	mockHub, mockTokenService, app, jwtSvc := setupSSETest(t)
	token := sampleToken(uuid.New(), 1)

	mockTokenService.On("GetByID", mock.Anything, token.ID).Return(token, nil)
	mockHub.On("Register", mock.Anything).Return(false)

	rec := clientFor(t, app, jwtSvc, uuid.New(), models.RoleUser).GET("/tokens/" + token.ID.String() + "/events")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	mockHub.AssertNotCalled(t, "Unregister", mock.Anything)
}

func TestSSEHandler_Connect_TokenNotFound(t *testing.T) {
	mockHub, mockTokenService, app, jwtSvc := setupSSETest(t)
	tokenID := uuid.New()

	mockTokenService.On("GetByID", mock.Anything, tokenID).Return(nil, services.ErrTokenNotFound)

	rec := clientFor(t, app, jwtSvc, uuid.New(), models.RoleUser).GET("/tokens/" + tokenID.String() + "/events")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	mockHub.AssertNotCalled(t, "Register", mock.Anything)
}

func TestSSEHandler_Connect_NotAuthenticated(t *testing.T) {
	_, _, app, _ := setupSSETest(t)

	rec := testutil.NewHTTPTestClient(t, app).GET("/tokens/" + uuid.New().String() + "/events")

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSSEHandler_Connect_InvalidTokenID(t *testing.T) {
	_, _, app, jwtSvc := setupSSETest(t)

	rec := clientFor(t, app, jwtSvc, uuid.New(), models.RoleUser).GET("/tokens/not-a-uuid/events")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
