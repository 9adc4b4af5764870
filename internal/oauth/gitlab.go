package oauth

import (
	"context"
	"net/http"
	"strconv"

	"github.com/dimitrije/tokenhub-api/internal/config"
	"github.com/dimitrije/tokenhub-api/internal/identity"
	"golang.org/x/oauth2"
)

type GitLabProvider struct {
	endpoint
}

func NewGitLabProvider(cfg config.OAuthConfig) *GitLabProvider {
	return &GitLabProvider{endpoint{
		name: "gitlab",
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       []string{"read_user"},
			Endpoint: oauth2.Endpoint{
				AuthURL:  "https://gitlab.com/oauth/authorize",
				TokenURL: "https://gitlab.com/oauth/token",
			},
		},
		apiURL: "https://gitlab.com/api/v4",
	}}
}

type gitlabUser struct {
	ID          int64  `json:"id"`
	Username    string `json:"username"`
	Name        string `json:"name"`
	Email       string `json:"email"`
	AvatarURL   string `json:"avatar_url"`
	ConfirmedAt string `json:"confirmed_at"`
}

func (p *GitLabProvider) ExchangeCode(ctx context.Context, code string) (identity.Assertion, error) {
	client, err := p.authorize(ctx, code)
	if err != nil {
		return identity.Assertion{}, err
	}
	return p.identify(ctx, client)
}

func (p *GitLabProvider) identify(ctx context.Context, client *http.Client) (identity.Assertion, error) {
	var user gitlabUser
	if err := p.getJSON(ctx, client, "/user", &user); err != nil {
		return identity.Assertion{}, err
	}
	// GitLab only reports the primary address, confirmed or not.
	if user.ConfirmedAt == "" {
		return identity.Assertion{}, ErrUnverifiedEmail
	}

	return p.assertion(
		strconv.FormatInt(user.ID, 10),
		user.Email,
		firstNonEmpty(user.Name, user.Username),
		user.AvatarURL,
	), nil
}
