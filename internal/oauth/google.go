package oauth

import (
	"context"
	"net/http"

	"github.com/dimitrije/tokenhub-api/internal/config"
	"github.com/dimitrije/tokenhub-api/internal/identity"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

type GoogleProvider struct {
	endpoint
}

func NewGoogleProvider(cfg config.OAuthConfig) *GoogleProvider {
	return &GoogleProvider{endpoint{
		name: "google",
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     google.Endpoint,
		},
		apiURL: "https://openidconnect.googleapis.com/v1",
	}}
}

// googleClaims is the OpenID Connect userinfo document.
type googleClaims struct {
	Subject       string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	GivenName     string `json:"given_name"`
	Picture       string `json:"picture"`
}

func (p *GoogleProvider) ExchangeCode(ctx context.Context, code string) (identity.Assertion, error) {
	client, err := p.authorize(ctx, code)
	if err != nil {
		return identity.Assertion{}, err
	}
	return p.identify(ctx, client)
}

func (p *GoogleProvider) identify(ctx context.Context, client *http.Client) (identity.Assertion, error) {
	var claims googleClaims
	if err := p.getJSON(ctx, client, "/userinfo", &claims); err != nil {
		return identity.Assertion{}, err
	}
	if !claims.EmailVerified {
		return identity.Assertion{}, ErrUnverifiedEmail
	}

	return p.assertion(
		claims.Subject,
		claims.Email,
		firstNonEmpty(claims.Name, claims.GivenName),
		claims.Picture,
	), nil
}
