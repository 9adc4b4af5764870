package oauth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dimitrije/tokenhub-api/internal/config"
	"github.com/dimitrije/tokenhub-api/internal/identity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAPI serves canned JSON bodies keyed by path.
func fakeAPI(t *testing.T, bodies map[string]string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := bodies[r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

type identifier func(ctx context.Context, client *http.Client) (identity.Assertion, error)

func githubAt(apiURL string) identifier {
	p := NewGitHubProvider(config.OAuthConfig{})
	p.apiURL = apiURL
	return p.identify
}

func gitlabAt(apiURL string) identifier {
	p := NewGitLabProvider(config.OAuthConfig{})
	p.apiURL = apiURL
	return p.identify
}

func googleAt(apiURL string) identifier {
	p := NewGoogleProvider(config.OAuthConfig{})
	p.apiURL = apiURL
	return p.identify
}

func TestProviders_Identify(t *testing.T) {
	tests := []struct {
		name     string
		provider func(apiURL string) identifier
		bodies   map[string]string
		want     identity.Assertion
		wantErr  error
	}{
		{
			name:     "github primary verified email wins",
			provider: githubAt,
			bodies: map[string]string{
				"/user": `{"id": 12345, "login": "octo", "name": "Octo Cat", "avatar_url": "https://avatars.example.com/u/12345"}`,
				"/user/emails": `[
					{"email": "old@example.com", "primary": false, "verified": true},
					{"email": "main@example.com", "primary": true, "verified": true}
				]`,
			},
			want: identity.Assertion{
				Provider: "github", ExternalID: "12345", Email: "main@example.com",
				Profile: identity.Profile{DisplayName: "Octo Cat", AvatarURL: "https://avatars.example.com/u/12345"},
			},
		},
		{
			name:     "github falls back to login and secondary email",
			provider: githubAt,
			bodies: map[string]string{
				"/user": `{"id": 7, "login": "octo"}`,
				"/user/emails": `[
					{"email": "unverified@example.com", "primary": true, "verified": false},
					{"email": "backup@example.com", "primary": false, "verified": true}
				]`,
			},
			want: identity.Assertion{
				Provider: "github", ExternalID: "7", Email: "backup@example.com",
				Profile: identity.Profile{DisplayName: "octo"},
			},
		},
		{
			name:     "github without verified email",
			provider: githubAt,
			bodies: map[string]string{
				"/user":        `{"id": 7, "login": "octo"}`,
				"/user/emails": `[{"email": "unverified@example.com", "primary": true, "verified": false}]`,
			},
			wantErr: ErrUnverifiedEmail,
		},
		{
			name:     "gitlab confirmed account",
			provider: gitlabAt,
			bodies: map[string]string{
				"/user": `{"id": 42, "username": "tanuki", "email": "tanuki@example.com", "confirmed_at": "2024-01-01T00:00:00Z"}`,
			},
			want: identity.Assertion{
				Provider: "gitlab", ExternalID: "42", Email: "tanuki@example.com",
				Profile: identity.Profile{DisplayName: "tanuki"},
			},
		},
		{
			name:     "gitlab unconfirmed account",
			provider: gitlabAt,
			bodies: map[string]string{
				"/user": `{"id": 42, "username": "tanuki", "email": "tanuki@example.com"}`,
			},
			wantErr: ErrUnverifiedEmail,
		},
		{
			name:     "google verified subject",
			provider: googleAt,
			bodies: map[string]string{
				"/userinfo": `{"sub": "1099", "email": "g@example.com", "email_verified": true, "given_name": "Gee", "picture": "https://lh3.example.com/p.png"}`,
			},
			want: identity.Assertion{
				Provider: "google", ExternalID: "1099", Email: "g@example.com",
				Profile: identity.Profile{DisplayName: "Gee", AvatarURL: "https://lh3.example.com/p.png"},
			},
		},
		{
			name:     "google unverified email",
			provider: googleAt,
			bodies: map[string]string{
				"/userinfo": `{"sub": "1099", "email": "g@example.com", "email_verified": false}`,
			},
			wantErr: ErrUnverifiedEmail,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := fakeAPI(t, tt.bodies)

			got, err := tt.provider(srv.URL)(context.Background(), srv.Client())

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.NoError(t, got.Validate())
		})
	}
}

func TestProviders_Identify_APIError(t *testing.T) {
	srv := fakeAPI(t, nil)

	for _, identify := range []identifier{githubAt(srv.URL), gitlabAt(srv.URL), googleAt(srv.URL)} {
		_, err := identify(context.Background(), srv.Client())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "status 401")
	}
}
