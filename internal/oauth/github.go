package oauth

import (
	"context"
	"net/http"
	"strconv"

	"github.com/dimitrije/tokenhub-api/internal/config"
	"github.com/dimitrije/tokenhub-api/internal/identity"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
)

type GitHubProvider struct {
	endpoint
}

func NewGitHubProvider(cfg config.OAuthConfig) *GitHubProvider {
	return &GitHubProvider{endpoint{
		name: "github",
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       []string{"read:user", "user:email"},
			Endpoint:     github.Endpoint,
		},
		apiURL: "https://api.github.com",
	}}
}

type githubUser struct {
	ID        int64  `json:"id"`
	Login     string `json:"login"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatar_url"`
}

type githubEmail struct {
	Email    string `json:"email"`
	Primary  bool   `json:"primary"`
	Verified bool   `json:"verified"`
}

func (p *GitHubProvider) ExchangeCode(ctx context.Context, code string) (identity.Assertion, error) {
	client, err := p.authorize(ctx, code)
	if err != nil {
		return identity.Assertion{}, err
	}
	return p.identify(ctx, client)
}

func (p *GitHubProvider) identify(ctx context.Context, client *http.Client) (identity.Assertion, error) {
	var user githubUser
	if err := p.getJSON(ctx, client, "/user", &user); err != nil {
		return identity.Assertion{}, err
	}

	// The profile email is whatever the user chose to publish, verified or
	// not, so the address always comes from the emails endpoint.
	var emails []githubEmail
	if err := p.getJSON(ctx, client, "/user/emails", &emails); err != nil {
		return identity.Assertion{}, err
	}
	email, err := verifiedGitHubEmail(emails)
	if err != nil {
		return identity.Assertion{}, err
	}

	return p.assertion(
		strconv.FormatInt(user.ID, 10),
		email,
		firstNonEmpty(user.Name, user.Login),
		user.AvatarURL,
	), nil
}

// verifiedGitHubEmail prefers the primary address and falls back to any
// other verified one.
func verifiedGitHubEmail(emails []githubEmail) (string, error) {
	fallback := ""
	for _, e := range emails {
		if !e.Verified {
			continue
		}
		if e.Primary {
			return e.Email, nil
		}
		if fallback == "" {
			fallback = e.Email
		}
	}
	if fallback == "" {
		return "", ErrUnverifiedEmail
	}
	return fallback, nil
}
