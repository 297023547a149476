// Package auth loads OAuth client settings and provides the stored bearer credential.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"golang.org/x/oauth2/microsoft"

	"tasksync/internal/config"
)

const (
	// GoogleTasksScope is the OAuth scope for Google Tasks.
	GoogleTasksScope = "https://www.googleapis.com/auth/tasks"

	// validateTimeout bounds the refresh attempt made by Valid.
	validateTimeout = 10 * time.Second
)

// MicrosoftScopes are the Graph scopes needed for To Do lists and tasks.
var MicrosoftScopes = []string{"offline_access", "Tasks.ReadWrite"}

// microsoftClient is the layout of oauth_client.json for the Microsoft backend.
type microsoftClient struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	Tenant       string `json:"tenant"`
}

// OAuthConfig reads oauth_client.json for the configured backend.
func OAuthConfig(cfg *config.Config) (*oauth2.Config, error) {
	clientJSON, err := os.ReadFile(cfg.OAuthClientPath())
	if err != nil {
		return nil, fmt.Errorf("failed to read oauth_client.json: %w", err)
	}

	switch cfg.Settings.Backend {
	case config.BackendGoogleTasks:
		conf, err := google.ConfigFromJSON(clientJSON, GoogleTasksScope)
		if err != nil {
			return nil, fmt.Errorf("invalid oauth_client.json: %w", err)
		}
		return conf, nil

	case config.BackendMicrosoftToDo:
		var mc microsoftClient
		if err := json.Unmarshal(clientJSON, &mc); err != nil {
			return nil, fmt.Errorf("invalid oauth_client.json: %w", err)
		}
		if mc.ClientID == "" {
			return nil, errors.New("invalid oauth_client.json: client_id missing")
		}
		tenant := mc.Tenant
		if tenant == "" {
			tenant = cfg.Settings.Tenant
		}
		return &oauth2.Config{
			ClientID:     mc.ClientID,
			ClientSecret: mc.ClientSecret,
			Endpoint:     microsoft.AzureADEndpoint(tenant),
			Scopes:       MicrosoftScopes,
		}, nil

	default:
		return nil, fmt.Errorf("unknown backend: %s", cfg.Settings.Backend)
	}
}

// TokenFile is a service.Credentials backed by token.json.
// Refreshed tokens are written back so the next process starts with them.
type TokenFile struct {
	path string
	conf *oauth2.Config

	mu  sync.Mutex
	src oauth2.TokenSource
}

// NewTokenFile returns credentials stored at path, refreshed with conf.
func NewTokenFile(path string, conf *oauth2.Config) *TokenFile {
	return &TokenFile{path: path, conf: conf}
}

// Load reads the stored token.
func (t *TokenFile) Load() (*oauth2.Token, error) {
	data, err := os.ReadFile(t.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read token.json: %w", err)
	}
	var token oauth2.Token
	if err := json.Unmarshal(data, &token); err != nil {
		return nil, fmt.Errorf("invalid token.json: %w", err)
	}
	return &token, nil
}

// Save writes a token to the file with mode 0600.
func (t *TokenFile) Save(token *oauth2.Token) error {
	data, err := json.MarshalIndent(token, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(t.path, data, 0600)
}

// IsSignedIn reports whether a usable token is stored: one that can be refreshed or is still live.
func (t *TokenFile) IsSignedIn() bool {
	token, err := t.Load()
	if err != nil {
		return false
	}
	return token.RefreshToken != "" || token.Valid()
}

// TokenSource returns an auto-refreshing source that persists refreshed tokens.
func (t *TokenFile) TokenSource(ctx context.Context) (oauth2.TokenSource, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.src != nil {
		return t.src, nil
	}

	token, err := t.Load()
	if err != nil {
		return nil, err
	}
	t.src = &persistingSource{
		base: t.conf.TokenSource(ctx, token),
		file: t,
		last: token.AccessToken,
	}
	return t.src, nil
}

// AccessToken implements service.Credentials.
func (t *TokenFile) AccessToken(ctx context.Context) (string, error) {
	src, err := t.TokenSource(ctx)
	if err != nil {
		return "", err
	}
	token, err := src.Token()
	if err != nil {
		return "", fmt.Errorf("token expired or revoked (run: tasksync login): %w", err)
	}
	return token.AccessToken, nil
}

// HTTPClient returns an HTTP client that authorises every request with the stored token.
func (t *TokenFile) HTTPClient(ctx context.Context) (*http.Client, error) {
	src, err := t.TokenSource(ctx)
	if err != nil {
		return nil, err
	}
	return oauth2.NewClient(ctx, src), nil
}

// Valid checks that the stored token parses, carries a refresh token
// and can actually be refreshed against the provider.
func (t *TokenFile) Valid(ctx context.Context) bool {
	token, err := t.Load()
	if err != nil || token.RefreshToken == "" {
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, validateTimeout)
	defer cancel()

	_, err = t.conf.TokenSource(ctx, token).Token()
	return err == nil
}

type persistingSource struct {
	mu   sync.Mutex
	base oauth2.TokenSource
	file *TokenFile
	last string
}

func (s *persistingSource) Token() (*oauth2.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	token, err := s.base.Token()
	if err != nil {
		return nil, err
	}
	if token.AccessToken != s.last {
		s.last = token.AccessToken
		// A failed write only costs an extra refresh next run.
		_ = s.file.Save(token)
	}
	return token, nil
}
