package oauth

import (
	"net/url"
	"testing"

	"github.com/dimitrije/tokenhub-api/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateState(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 16; i++ {
		state, err := GenerateState()
		require.NoError(t, err)
		assert.Len(t, state, 44)
		assert.False(t, seen[state], "state repeated")
		seen[state] = true
	}
}

func TestNewRegistry_OnlyConfiguredProviders(t *testing.T) {
	cfg := &config.Config{
		GitHub: config.OAuthConfig{ClientID: "gh"},
		Google: config.OAuthConfig{ClientID: "go"},
	}

	r := NewRegistry(cfg)

	assert.Equal(t, []string{"github", "google"}, r.Names())

	p, err := r.Lookup("github")
	require.NoError(t, err)
	assert.Equal(t, "github", p.Name())

	_, err = r.Lookup("gitlab")
	assert.ErrorIs(t, err, ErrUnknownProvider)
}

func TestProviders_ConsentURL(t *testing.T) {
	cfg := config.OAuthConfig{ClientID: "client-1", RedirectURL: "http://localhost/callback"}

	tests := []struct {
		provider Provider
		host     string
		scope    string
	}{
		{NewGitHubProvider(cfg), "github.com", "read:user user:email"},
		{NewGitLabProvider(cfg), "gitlab.com", "read_user"},
		{NewGoogleProvider(cfg), "accounts.google.com", "openid email profile"},
	}

	for _, tt := range tests {
		t.Run(tt.provider.Name(), func(t *testing.T) {
			u, err := url.Parse(tt.provider.GetConsentURL("state-1"))
			require.NoError(t, err)

			q := u.Query()
			assert.Equal(t, tt.host, u.Host)
			assert.Equal(t, "client-1", q.Get("client_id"))
			assert.Equal(t, "state-1", q.Get("state"))
			assert.Equal(t, "http://localhost/callback", q.Get("redirect_uri"))
			assert.Equal(t, tt.scope, q.Get("scope"))
			assert.Equal(t, "online", q.Get("access_type"))
		})
	}
}

func TestFirstNonEmpty(t *testing.T) {
	assert.Equal(t, "b", firstNonEmpty("", "b", "c"))
	assert.Equal(t, "", firstNonEmpty("", ""))
}
