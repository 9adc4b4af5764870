package testutil

import (
	"context"
	"fmt"
	"testing"

	"github.com/dimitrije/tokenhub-api/internal/database"
	"github.com/dimitrije/tokenhub-api/internal/identity"
	"github.com/dimitrije/tokenhub-api/internal/models"
	"github.com/dimitrije/tokenhub-api/internal/services"
	"github.com/google/uuid"
)

// Fixtures creates test data through the services, so fixtures obey the same
// invariants as production writes.
type Fixtures struct {
	Users   *services.UserService
	Tokens  *services.TokenService
	counter int
}

func NewFixtures(db *database.DB) *Fixtures {
	return &Fixtures{
		Users:  services.NewUserService(db, nil),
		Tokens: services.NewTokenService(db),
	}
}

// Assertion returns a fresh external identity assertion.
func (f *Fixtures) Assertion() identity.Assertion {
	f.counter++
	return identity.Assertion{
		Provider:   "github",
		ExternalID: fmt.Sprintf("github-%d-%s", f.counter, uuid.NewString()[:8]),
		Email:      fmt.Sprintf("user%d-%s@example.com", f.counter, uuid.NewString()[:8]),
		Profile:    identity.Profile{DisplayName: fmt.Sprintf("Test User %d", f.counter)},
	}
}

// CreateUser logs a new external identity in and optionally changes its role.
func (f *Fixtures) CreateUser(t *testing.T, role string) *models.User {
	t.Helper()
	ctx := context.Background()

	user, _, err := f.Users.ResolveIdentity(ctx, f.Assertion())
	if err != nil {
		t.Fatalf("failed to create user: %v", err)
	}
	if role != "" && role != user.Role {
		user, err = f.Users.SetRoleByEmail(ctx, user.Email, role)
		if err != nil {
			t.Fatalf("failed to set role: %v", err)
		}
	}
	return user
}

// CreateToken creates a token owned by owner, who must hold an issuing role.
func (f *Fixtures) CreateToken(t *testing.T, owner *models.User, supply int64) *models.Token {
	t.Helper()
	f.counter++

	token, err := f.Tokens.Create(context.Background(), owner.ID, fmt.Sprintf("Token %d", f.counter), fmt.Sprintf("TK%d", f.counter), supply)
	if err != nil {
		t.Fatalf("failed to create token: %v", err)
	}
	return token
}

// Grant gives user a manage grant on token, issued by the token's owner.
func (f *Fixtures) Grant(t *testing.T, token *models.Token, user *models.User) {
	t.Helper()

	if _, err := f.Tokens.GrantPermission(context.Background(), token.ID, token.OwnerID, user.ID, true); err != nil {
		t.Fatalf("failed to grant permission: %v", err)
	}
}
