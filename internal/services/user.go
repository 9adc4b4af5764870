package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dimitrije/tokenhub-api/internal/database"
	"github.com/dimitrije/tokenhub-api/internal/identity"
	"github.com/dimitrije/tokenhub-api/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"golang.org/x/crypto/bcrypt"
)

const minPasswordLength = 8

const userColumns = `id, kind, provider, external_id, email, password_hash, name, avatar_url,
	role, is_active, wallet_address, last_seen_at, created_at, updated_at`

type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// UserService owns every write to the users table. OAuth logins go through
// ResolveIdentity; admin tooling uses the explicit role and status setters.
type UserService struct {
	db     *database.DB
	wallet WalletVerifier
}

func NewUserService(db *database.DB, wallet WalletVerifier) *UserService {
	if wallet == nil {
		wallet = DefaultWalletVerifier{}
	}
	return &UserService{db: db, wallet: wallet}
}

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(
		&u.ID, &u.Kind, &u.Provider, &u.ExternalID, &u.Email, &u.PasswordHash, &u.Name, &u.AvatarURL,
		&u.Role, &u.IsActive, &u.WalletAddress, &u.LastSeenAt, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// findUser returns nil without error when no row matches.
func findUser(ctx context.Context, q rowQuerier, sql string, arg any) (*models.User, error) {
	u, err := scanUser(q.QueryRow(ctx, sql, arg))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return u, err
}

// ResolveIdentity maps a provider assertion onto exactly one account,
// refreshing, linking or creating it. A unique violation means a concurrent
// login won the insert; the whole resolution is retried once and then sees
// the committed row.
func (s *UserService) ResolveIdentity(ctx context.Context, a identity.Assertion) (*models.User, identity.Action, error) {
	a = a.Normalize()
	if err := a.Validate(); err != nil {
		return nil, 0, err
	}

	user, action, err := s.resolveOnce(ctx, a)
	if database.IsUniqueViolation(err) {
		slog.Info("identity resolution raced, retrying",
			"provider", a.Provider, "constraint", database.ConstraintName(err))
		user, action, err = s.resolveOnce(ctx, a)
	}
	if err != nil {
		if database.IsCheckViolation(err) {
			err = fmt.Errorf("%w: %s", identity.ErrConstraintViolation, database.ConstraintName(err))
		}
		if errors.Is(err, identity.ErrConstraintViolation) {
			slog.Error("identity resolution broke account invariants", "provider", a.Provider, "error", err)
		}
		return nil, 0, err
	}

	return user, action, nil
}

func (s *UserService) resolveOnce(ctx context.Context, a identity.Assertion) (*models.User, identity.Action, error) {
	tx, err := s.db.Pool.Begin(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	byExternalID, err := findUser(ctx, tx,
		`SELECT `+userColumns+` FROM users WHERE external_id = $1 FOR UPDATE`, a.ExternalID)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to look up external id: %w", err)
	}

	var byEmail *models.User
	if byExternalID == nil {
		byEmail, err = findUser(ctx, tx,
			`SELECT `+userColumns+` FROM users WHERE email = $1 FOR UPDATE`, a.Email)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to look up email: %w", err)
		}
	}

	decision, err := identity.Decide(a, byExternalID, byEmail)
	if err != nil {
		return nil, 0, err
	}

	next := identity.Apply(decision, a, time.Now().UTC())
	if err := identity.CheckInvariants(next); err != nil {
		return nil, 0, err
	}

	var saved *models.User
	switch decision.Action {
	case identity.ActionCreate:
		saved, err = scanUser(tx.QueryRow(ctx, `
			INSERT INTO users (kind, provider, external_id, email, name, avatar_url, role, last_seen_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			RETURNING `+userColumns,
			next.Kind, next.Provider, next.ExternalID, next.Email, next.Name, next.AvatarURL, next.Role, next.LastSeenAt,
		))
	case identity.ActionLink:
		saved, err = scanUser(tx.QueryRow(ctx, `
			UPDATE users SET kind = $1, provider = $2, external_id = $3, password_hash = NULL,
				name = $4, avatar_url = $5, last_seen_at = $6, updated_at = NOW()
			WHERE id = $7
			RETURNING `+userColumns,
			next.Kind, next.Provider, next.ExternalID, next.Name, next.AvatarURL, next.LastSeenAt, next.ID,
		))
	default:
		saved, err = scanUser(tx.QueryRow(ctx, `
			UPDATE users SET name = $1, avatar_url = $2, last_seen_at = $3, updated_at = NOW()
			WHERE id = $4
			RETURNING `+userColumns,
			next.Name, next.AvatarURL, next.LastSeenAt, next.ID,
		))
	}
	if err != nil {
		return nil, 0, fmt.Errorf("failed to %s account: %w", decision.Action, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	if decision.Action == identity.ActionLink {
		slog.Info("linked external identity to existing account",
			"user_id", saved.ID, "provider", a.Provider, "previous_kind", decision.Account.Kind)
	}

	return saved, decision.Action, nil
}

func (s *UserService) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	user, err := findUser(ctx, s.db.Pool, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

func (s *UserService) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	user, err := findUser(ctx, s.db.Pool, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

func (s *UserService) Update(ctx context.Context, id uuid.UUID, name string) (*models.User, error) {
	return s.updateOne(ctx, `
		UPDATE users SET name = $1, updated_at = NOW()
		WHERE id = $2
		RETURNING `+userColumns, strings.TrimSpace(name), id)
}

// ConnectWallet stores the caller's wallet address after the verifier
// accepts it.
func (s *UserService) ConnectWallet(ctx context.Context, id uuid.UUID, address string) (*models.User, error) {
	address = strings.TrimSpace(address)
	if err := s.wallet.VerifyAddress(ctx, address); err != nil {
		return nil, err
	}
	return s.updateOne(ctx, `
		UPDATE users SET wallet_address = $1, updated_at = NOW()
		WHERE id = $2
		RETURNING `+userColumns, address, id)
}

// SetRole changes target's role. Only active admins may call it.
func (s *UserService) SetRole(ctx context.Context, actorID, targetID uuid.UUID, role string) (*models.User, error) {
	if !models.ValidRole(role) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}
	if err := s.requireAdmin(ctx, actorID); err != nil {
		return nil, err
	}

	user, err := s.setRole(ctx, targetID, role)
	if err != nil {
		return nil, err
	}
	slog.Info("role changed", "actor_id", actorID, "user_id", targetID, "role", role)
	return user, nil
}

// SetRoleByEmail is the operator path used by the promote-role command.
func (s *UserService) SetRoleByEmail(ctx context.Context, email, role string) (*models.User, error) {
	if !models.ValidRole(role) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}
	user, err := s.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	return s.setRole(ctx, user.ID, role)
}

func (s *UserService) setRole(ctx context.Context, id uuid.UUID, role string) (*models.User, error) {
	return s.updateOne(ctx, `
		UPDATE users SET role = $1, updated_at = NOW()
		WHERE id = $2
		RETURNING `+userColumns, role, id)
}

// SetActive enables or disables target. Admins cannot disable themselves.
func (s *UserService) SetActive(ctx context.Context, actorID, targetID uuid.UUID, active bool) (*models.User, error) {
	if err := s.requireAdmin(ctx, actorID); err != nil {
		return nil, err
	}
	if actorID == targetID && !active {
		return nil, fmt.Errorf("%w: cannot disable your own account", ErrForbidden)
	}

	user, err := s.updateOne(ctx, `
		UPDATE users SET is_active = $1, updated_at = NOW()
		WHERE id = $2
		RETURNING `+userColumns, active, targetID)
	if err != nil {
		return nil, err
	}
	slog.Info("account status changed", "actor_id", actorID, "user_id", targetID, "active", active)
	return user, nil
}

// ProvisionLocalAdmin creates a password-authenticated admin account that
// exists independently of any identity provider.
func (s *UserService) ProvisionLocalAdmin(ctx context.Context, email, name, password string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if !strings.Contains(email, "@") {
		return nil, fmt.Errorf("%w: malformed email %q", identity.ErrInvalidAssertion, email)
	}
	if len(password) < minPasswordLength {
		return nil, fmt.Errorf("%w: password must be at least %d characters", ErrInvalidCredentials, minPasswordLength)
	}
	if name == "" {
		name, _, _ = strings.Cut(email, "@")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user, err := scanUser(s.db.Pool.QueryRow(ctx, `
		INSERT INTO users (kind, email, password_hash, name, role)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+userColumns,
		models.KindLocalAdmin, email, string(hash), name, models.RoleAdmin,
	))
	if database.IsUniqueViolation(err) {
		return nil, ErrEmailTaken
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create local admin: %w", err)
	}
	return user, nil
}

// AuthenticateLocalAdmin checks a local admin's password and records the
// login. Unknown emails, linked accounts and wrong passwords all yield
// ErrInvalidCredentials.
func (s *UserService) AuthenticateLocalAdmin(ctx context.Context, email, password string) (*models.User, error) {
	user, err := s.GetByEmail(ctx, email)
	if errors.Is(err, ErrUserNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if user.Kind != models.KindLocalAdmin || user.PasswordHash == nil {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(*user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, ErrAccountDisabled
	}

	if _, err := s.db.Pool.Exec(ctx, `UPDATE users SET last_seen_at = NOW() WHERE id = $1`, user.ID); err != nil {
		return nil, fmt.Errorf("failed to record login: %w", err)
	}
	return user, nil
}

func (s *UserService) requireAdmin(ctx context.Context, actorID uuid.UUID) error {
	actor, err := s.GetByID(ctx, actorID)
	if errors.Is(err, ErrUserNotFound) {
		return ErrForbidden
	}
	if err != nil {
		return err
	}
	if !actor.IsAdmin() {
		return ErrForbidden
	}
	return nil
}

func (s *UserService) updateOne(ctx context.Context, sql string, args ...any) (*models.User, error) {
	user, err := scanUser(s.db.Pool.QueryRow(ctx, sql, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}
