// Package providers completes the OAuth handshake with the configured
// identity providers. The rest of the system only ever sees the resolved
// (provider, subject id) pair this package hands back.
package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/facebook"
	"golang.org/x/oauth2/google"

	"github.com/whisperwall/secrets-backend/internal/config"
)

var ErrUnconfiguredProvider = errors.New("unknown or unconfigured provider")

// Profile is what a completed handshake yields: the provider's stable
// subject id plus whatever profile fields it returned.
type Profile struct {
	SubjectID string
	Email     string
	Name      string
	Raw       []byte
}

type provider struct {
	oauth       *oauth2.Config
	userInfoURL string
	subjectKey  string
}

// Registry holds the configured OAuth providers. Providers with missing
// credentials are simply absent; asking for one is an error, not a panic.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]*provider
	client    *http.Client
}

func NewRegistry(cfg *config.Config) *Registry {
	r := &Registry{
		providers: make(map[string]*provider),
		client:    &http.Client{Timeout: 10 * time.Second},
	}

	if cfg.Google.ClientID != "" && cfg.Google.ClientSecret != "" {
		r.Register("google", &oauth2.Config{
			ClientID:     cfg.Google.ClientID,
			ClientSecret: cfg.Google.ClientSecret,
			Endpoint:     google.Endpoint,
			RedirectURL:  cfg.Google.CallbackURL,
			Scopes:       []string{"openid", "profile", "email"},
		}, "https://www.googleapis.com/oauth2/v3/userinfo", "sub")
	}

	if cfg.Facebook.ClientID != "" && cfg.Facebook.ClientSecret != "" {
		r.Register("facebook", &oauth2.Config{
			ClientID:     cfg.Facebook.ClientID,
			ClientSecret: cfg.Facebook.ClientSecret,
			Endpoint:     facebook.Endpoint,
			RedirectURL:  cfg.Facebook.CallbackURL,
			Scopes:       []string{"public_profile", "email"},
		}, "https://graph.facebook.com/me?fields=id,name,email", "id")
	}

	return r
}

// Register adds or replaces a provider. Exposed so tests can point a
// provider at a local stand-in server.
func (r *Registry) Register(name string, oauth *oauth2.Config, userInfoURL, subjectKey string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[name] = &provider{oauth: oauth, userInfoURL: userInfoURL, subjectKey: subjectKey}
}

// SetHTTPClient overrides the client used for profile fetches and the code
// exchange. Used by tests.
func (r *Registry) SetHTTPClient(client *http.Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.client = client
}

func (r *Registry) get(name string) (*provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnconfiguredProvider, name)
	}
	return p, nil
}

// Names lists the configured providers.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	return names
}

// AuthCodeURL builds the provider's consent-screen URL for the given state.
func (r *Registry) AuthCodeURL(name, state string) (string, error) {
	p, err := r.get(name)
	if err != nil {
		return "", err
	}
	return p.oauth.AuthCodeURL(state), nil
}

// Exchange trades the callback code for a token, fetches the provider's
// profile, and extracts the subject id.
func (r *Registry) Exchange(ctx context.Context, name, code string) (*Profile, error) {
	p, err := r.get(name)
	if err != nil {
		return nil, err
	}

	r.mu.RLock()
	client := r.client
	r.mu.RUnlock()
	ctx = context.WithValue(ctx, oauth2.HTTPClient, client)

	token, err := p.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("token exchange failed: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.userInfoURL, nil)
	if err != nil {
		return nil, err
	}
	token.SetAuthHeader(req)

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("profile fetch failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("profile fetch failed: status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("profile read failed: %w", err)
	}

	var fields map[string]any
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, fmt.Errorf("profile parse failed: %w", err)
	}

	subject, _ := fields[p.subjectKey].(string)
	if subject == "" {
		return nil, fmt.Errorf("provider %q returned no subject id", name)
	}

	email, _ := fields["email"].(string)
	displayName, _ := fields["name"].(string)

	return &Profile{
		SubjectID: subject,
		Email:     email,
		Name:      displayName,
		Raw:       body,
	}, nil
}
