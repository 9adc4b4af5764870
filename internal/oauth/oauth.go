// Package oauth runs the authorization-code round trip against the supported
// identity providers and reports who signed in as an identity.Assertion.
package oauth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"

	"github.com/dimitrije/tokenhub-api/internal/config"
	"github.com/dimitrije/tokenhub-api/internal/identity"
	"golang.org/x/oauth2"
)

var (
	ErrUnknownProvider = errors.New("unknown provider")
	ErrUnverifiedEmail = errors.New("provider email is not verified")
)

type Provider interface {
	Name() string
	GetConsentURL(state string) string
	ExchangeCode(ctx context.Context, code string) (identity.Assertion, error)
}

// Registry maps provider names to the providers that have credentials
// configured.
type Registry map[string]Provider

func NewRegistry(cfg *config.Config) Registry {
	r := Registry{}
	if cfg.GitHub.ClientID != "" {
		r.add(NewGitHubProvider(cfg.GitHub))
	}
	if cfg.GitLab.ClientID != "" {
		r.add(NewGitLabProvider(cfg.GitLab))
	}
	if cfg.Google.ClientID != "" {
		r.add(NewGoogleProvider(cfg.Google))
	}
	return r
}

func (r Registry) add(p Provider) { r[p.Name()] = p }

func (r Registry) Lookup(name string) (Provider, error) {
	p, ok := r[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, name)
	}
	return p, nil
}

// Names returns the configured providers in a stable order.
func (r Registry) Names() []string {
	names := make([]string, 0, len(r))
	for name := range r {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GenerateState returns 32 random bytes, URL-safe encoded. It doubles as the
// one-time code handed back to the frontend.
func GenerateState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

// endpoint holds what every provider shares: the client credentials and the
// API root that profile lookups are made against.
type endpoint struct {
	name   string
	config *oauth2.Config
	apiURL string
}

func (e *endpoint) Name() string {
	return e.name
}

// Only the identity is needed, so no offline access is requested.
func (e *endpoint) GetConsentURL(state string) string {
	return e.config.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

func (e *endpoint) authorize(ctx context.Context, code string) (*http.Client, error) {
	token, err := e.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to exchange code: %w", e.name, err)
	}
	return e.config.Client(ctx, token), nil
}

func (e *endpoint) getJSON(ctx context.Context, client *http.Client, path string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.apiURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%s: GET %s: %w", e.name, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: GET %s returned status %d", e.name, path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("%s: decode %s: %w", e.name, path, err)
	}
	return nil
}

func (e *endpoint) assertion(externalID, email, name, avatarURL string) identity.Assertion {
	return identity.Assertion{
		Provider:   e.name,
		ExternalID: externalID,
		Email:      email,
		Profile: identity.Profile{
			DisplayName: name,
			AvatarURL:   avatarURL,
		},
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
