package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/dimitrije/tokenhub-api/internal/config"
	"github.com/dimitrije/tokenhub-api/internal/identity"
	"github.com/dimitrije/tokenhub-api/internal/middleware"
	"github.com/dimitrije/tokenhub-api/internal/oauth"
	"github.com/dimitrije/tokenhub-api/internal/services"
	"github.com/dimitrije/tokenhub-api/pkg/dto"
	"github.com/google/uuid"
	"github.com/m1z23r/drift/pkg/drift"
)

const (
	stateTTL        = 10 * time.Minute
	authCodeTTL     = 30 * time.Second
	providerTimeout = 30 * time.Second
)

// AuthHandler runs the browser side of OAuth sign-in. A consent URL carries
// a random state that only the issuing provider's callback may present; a
// successful callback
// parks the minted credentials behind a one-time code, so tokens never
// appear in a redirect URL.
type AuthHandler struct {
	cfg          *config.Config
	providers    oauth.Registry
	loginService LoginServiceInterface
	states       oneTime[string]
	authCodes    oneTime[*services.TokenPair]
}

// NewAuthHandler sweeps expired states and codes until ctx is cancelled.
func NewAuthHandler(ctx context.Context, cfg *config.Config, loginService LoginServiceInterface) *AuthHandler {
	h := &AuthHandler{
		cfg:          cfg,
		providers:    oauth.NewRegistry(cfg),
		loginService: loginService,
	}
	go h.sweepLoop(ctx)
	return h
}

func (h *AuthHandler) sweepLoop(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			h.sweep(now)
		}
	}
}

func (h *AuthHandler) sweep(now time.Time) {
	if n := h.states.sweep(now) + h.authCodes.sweep(now); n > 0 {
		slog.Debug("swept expired oauth states and codes", "count", n)
	}
}

func (h *AuthHandler) GetConsentURL(c *drift.Context) {
	name := c.Param("provider")
	p, err := h.providers.Lookup(name)
	if err != nil {
		c.BadRequest("unsupported provider: " + name)
		return
	}

	state, err := oauth.GenerateState()
	if err != nil {
		c.InternalServerError("failed to generate state")
		return
	}
	h.states.put(state, name, time.Now().Add(stateTTL))

	_ = c.JSON(http.StatusOK, dto.ConsentURLResponse{URL: p.GetConsentURL(state)})
}

// Callback always answers with a redirect to the frontend, carrying either
// ?code= or ?error=.
func (h *AuthHandler) Callback(c *drift.Context) {
	name := c.Param("provider")
	p, err := h.providers.Lookup(name)
	if err != nil {
		h.redirect(c, "error", "unsupported provider")
		return
	}

	state := c.QueryParam("state")
	if state == "" {
		h.redirect(c, "error", "missing state parameter")
		return
	}
	if issuer, ok := h.states.take(state, time.Now()); !ok || issuer != name {
		h.redirect(c, "error", "invalid or expired state")
		return
	}

	code := c.QueryParam("code")
	if code == "" {
		h.redirect(c, "error", "missing authorization code")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), providerTimeout)
	defer cancel()

	assertion, err := p.ExchangeCode(ctx, code)
	if err != nil {
		h.redirect(c, "error", exchangeErrorMessage(name, err))
		return
	}

	_, tokens, err := h.loginService.Login(ctx, assertion)
	if err != nil {
		h.redirect(c, "error", loginErrorMessage(err))
		return
	}

	authCode, err := oauth.GenerateState()
	if err != nil {
		h.redirect(c, "error", "failed to generate auth code")
		return
	}
	h.authCodes.put(authCode, tokens, time.Now().Add(authCodeTTL))

	h.redirect(c, "code", authCode)
}

func (h *AuthHandler) ExchangeCode(c *drift.Context) {
	var req dto.ExchangeCodeRequest
	if err := c.BindJSON(&req); err != nil {
		c.BadRequest("invalid request body")
		return
	}
	if req.Code == "" {
		c.BadRequest("code is required")
		return
	}

	tokens, ok := h.authCodes.take(req.Code, time.Now())
	if !ok {
		c.Unauthorized("invalid or expired code")
		return
	}

	_ = c.JSON(http.StatusOK, tokenResponse(tokens))
}

func (h *AuthHandler) AdminLogin(c *drift.Context) {
	var req dto.AdminLoginRequest
	if err := c.BindJSON(&req); err != nil {
		c.BadRequest("invalid request body")
		return
	}

	if req.Email == "" || req.Password == "" {
		c.BadRequest("email and password are required")
		return
	}

	_, tokens, err := h.loginService.LoginLocalAdmin(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respondError(c, err, "failed to log in")
		return
	}

	_ = c.JSON(http.StatusOK, tokenResponse(tokens))
}

func (h *AuthHandler) RefreshToken(c *drift.Context) {
	var req dto.RefreshTokenRequest
	if err := c.BindJSON(&req); err != nil {
		c.BadRequest("invalid request body")
		return
	}

	if req.RefreshToken == "" {
		c.BadRequest("refresh_token is required")
		return
	}

	tokens, err := h.loginService.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		respondError(c, err, "failed to refresh token")
		return
	}

	_ = c.JSON(http.StatusOK, tokenResponse(tokens))
}

func (h *AuthHandler) Logout(c *drift.Context) {
	var req dto.RefreshTokenRequest
	if err := c.BindJSON(&req); err != nil {
		c.BadRequest("invalid request body")
		return
	}

	if req.RefreshToken != "" {
		if err := h.loginService.Logout(c.Request.Context(), req.RefreshToken); err != nil {
			slog.Warn("failed to revoke refresh token", "error", err)
		}
	}

	_ = c.JSON(http.StatusOK, map[string]string{"message": "logged out"})
}

func (h *AuthHandler) LogoutAll(c *drift.Context) {
	userID := middleware.GetUserID(c)
	if userID == uuid.Nil {
		c.Unauthorized("not authenticated")
		return
	}

	if err := h.loginService.LogoutAll(c.Request.Context(), userID); err != nil {
		c.InternalServerError("failed to revoke tokens")
		return
	}

	_ = c.JSON(http.StatusOK, map[string]string{"message": "all sessions logged out"})
}

func (h *AuthHandler) redirect(c *drift.Context, key, value string) {
	target := h.cfg.FrontendCallbackURL + "?" + url.Values{key: {value}}.Encode()
	http.Redirect(c.Response, c.Request, target, http.StatusFound)
	c.Abort()
}

func tokenResponse(tokens *services.TokenPair) dto.TokenResponse {
	return dto.TokenResponse{
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		ExpiresIn:    tokens.ExpiresIn,
	}
}

func exchangeErrorMessage(provider string, err error) string {
	if errors.Is(err, oauth.ErrUnverifiedEmail) {
		return "provider email is not verified"
	}
	slog.Warn("provider code exchange failed", "provider", provider, "error", err)
	return "failed to exchange code"
}

// loginErrorMessage keeps resolver detail out of the redirect URL.
func loginErrorMessage(err error) string {
	switch {
	case errors.Is(err, identity.ErrIdentityConflict):
		return "email is linked to another sign-in"
	case errors.Is(err, identity.ErrInvalidAssertion):
		return "provider returned an incomplete profile"
	case errors.Is(err, services.ErrAccountDisabled):
		return "account disabled"
	}
	slog.Error("oauth login failed", "error", err)
	return "failed to sign in"
}
