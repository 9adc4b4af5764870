// Package identity decides how an external identity assertion maps onto a
// local account. It performs no I/O: callers look the candidate accounts up,
// ask Decide what to do, and persist the result of Apply.
package identity

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dimitrije/tokenhub-api/internal/models"
)

var (
	ErrInvalidAssertion    = errors.New("invalid identity assertion")
	ErrConstraintViolation = errors.New("account constraint violation")
	ErrIdentityConflict    = errors.New("email is linked to a different external identity")
)

// Profile holds the provider's profile claims. It is a cache on the account,
// never authoritative.
type Profile struct {
	DisplayName string
	AvatarURL   string
}

// Assertion is what an identity provider tells us after a successful login.
type Assertion struct {
	Provider   string
	ExternalID string
	Email      string
	Profile    Profile
}

// Normalize returns a copy with surrounding whitespace removed and the email
// lower-cased.
func (a Assertion) Normalize() Assertion {
	a.Provider = strings.ToLower(strings.TrimSpace(a.Provider))
	a.ExternalID = strings.TrimSpace(a.ExternalID)
	a.Email = strings.ToLower(strings.TrimSpace(a.Email))
	a.Profile.DisplayName = strings.TrimSpace(a.Profile.DisplayName)
	a.Profile.AvatarURL = strings.TrimSpace(a.Profile.AvatarURL)
	return a
}

func (a Assertion) Validate() error {
	if a.ExternalID == "" {
		return fmt.Errorf("%w: external id is required", ErrInvalidAssertion)
	}
	if a.Email == "" {
		return fmt.Errorf("%w: email is required", ErrInvalidAssertion)
	}
	if !strings.Contains(a.Email, "@") {
		return fmt.Errorf("%w: malformed email %q", ErrInvalidAssertion, a.Email)
	}
	return nil
}

type Action int

const (
	ActionRefresh Action = iota + 1
	ActionLink
	ActionCreate
)

func (a Action) String() string {
	switch a {
	case ActionRefresh:
		return "refresh"
	case ActionLink:
		return "link"
	case ActionCreate:
		return "create"
	}
	return "unknown"
}

// Decision is the outcome of Decide. Account is nil for ActionCreate.
type Decision struct {
	Action  Action
	Account *models.User
}

// Decide applies the resolution order: exact external id match, then email
// match (account linking), then creation. Each step short-circuits.
func Decide(a Assertion, byExternalID, byEmail *models.User) (Decision, error) {
	if byExternalID != nil {
		return Decision{Action: ActionRefresh, Account: byExternalID}, nil
	}
	if byEmail != nil {
		if byEmail.ExternalID != nil && *byEmail.ExternalID != a.ExternalID {
			return Decision{}, fmt.Errorf("%w: %s", ErrIdentityConflict, a.Email)
		}
		return Decision{Action: ActionLink, Account: byEmail}, nil
	}
	return Decision{Action: ActionCreate}, nil
}

// Apply returns the account state to persist for d. The decision's account is
// copied, never mutated.
func Apply(d Decision, a Assertion, now time.Time) *models.User {
	var u models.User
	switch d.Action {
	case ActionCreate:
		u = models.User{
			Kind:     models.KindExternal,
			Email:    a.Email,
			Role:     models.RoleUser,
			IsActive: true,
		}
		linkExternal(&u, a)
	case ActionLink:
		u = *d.Account
		linkExternal(&u, a)
	default:
		u = *d.Account
	}

	refreshProfile(&u, a.Profile)
	if u.Name == "" {
		u.Name, _, _ = strings.Cut(u.Email, "@")
	}
	u.LastSeenAt = &now
	return &u
}

// CheckInvariants verifies the kind/external id/password rules that the
// database also enforces with CHECK constraints.
func CheckInvariants(u *models.User) error {
	switch u.Kind {
	case models.KindExternal:
		if u.ExternalID == nil || *u.ExternalID == "" {
			return fmt.Errorf("%w: external account without external id", ErrConstraintViolation)
		}
		if u.PasswordHash != nil {
			return fmt.Errorf("%w: external account with a password", ErrConstraintViolation)
		}
	case models.KindLocalAdmin:
		if u.ExternalID != nil {
			return fmt.Errorf("%w: local admin with external id", ErrConstraintViolation)
		}
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrConstraintViolation, u.Kind)
	}
	if u.Email == "" {
		return fmt.Errorf("%w: account without email", ErrConstraintViolation)
	}
	if !models.ValidRole(u.Role) {
		return fmt.Errorf("%w: unknown role %q", ErrConstraintViolation, u.Role)
	}
	return nil
}

// linkExternal turns u into an external-identity account bound to a. Linked
// accounts lose any local password.
func linkExternal(u *models.User, a Assertion) {
	externalID := a.ExternalID
	u.Kind = models.KindExternal
	u.ExternalID = &externalID
	u.PasswordHash = nil
	if a.Provider != "" {
		provider := a.Provider
		u.Provider = &provider
	}
}

func refreshProfile(u *models.User, p Profile) {
	if p.DisplayName != "" {
		u.Name = p.DisplayName
	}
	if p.AvatarURL != "" {
		avatar := p.AvatarURL
		u.AvatarURL = &avatar
	}
}
