package handlers

import (
	"net/http"
	"testing"

	"github.com/dimitrije/tokenhub-api/internal/services"
	"github.com/dimitrije/tokenhub-api/internal/testutil"
	"github.com/google/uuid"
)

func newTestJWTService() *services.JWTService {
	return testutil.TestJWTService()
}

// clientFor returns a test client authenticated as userID with role.
func clientFor(t *testing.T, app http.Handler, jwtSvc *services.JWTService, userID uuid.UUID, role string) *testutil.HTTPTestClient {
	t.Helper()
	token := testutil.GenerateTestToken(t, jwtSvc, userID, "user@example.com", role)
	return testutil.NewHTTPTestClient(t, app).As(token)
}
