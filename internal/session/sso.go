package session

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"golang.org/x/oauth2"
)

var (
	ErrSSODisabled = errors.New("single sign-on not configured")
	ErrBadState    = errors.New("unknown or expired sso state")
)

// SSOConfig describes the identity provider.
type SSOConfig struct {
	ClientID     string
	ClientSecret string
	AuthURL      string
	TokenURL     string
	UserinfoURL  string
	RedirectURL  string
	Scopes       []string
}

// Identity is what the provider's userinfo endpoint tells us about the user.
type Identity struct {
	Subject string `json:"sub"`
	Email   string `json:"email"`
}

// SSO runs the OAuth2 authorization-code flow. Issued state values live in
// memory, so a callback must reach the instance that started the flow.
type SSO struct {
	oauth       *oauth2.Config
	userinfoURL string
	// HTTPClient is used for the token exchange and userinfo calls when set.
	HTTPClient *http.Client

	mu       sync.Mutex
	states   map[string]time.Time
	stateTTL time.Duration
	now      func() time.Time
}

func NewSSO(cfg SSOConfig) *SSO {
	return &SSO{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint: oauth2.Endpoint{
				AuthURL:  cfg.AuthURL,
				TokenURL: cfg.TokenURL,
			},
			RedirectURL: cfg.RedirectURL,
			Scopes:      cfg.Scopes,
		},
		userinfoURL: cfg.UserinfoURL,
		states:      make(map[string]time.Time),
		stateTTL:    10 * time.Minute,
		now:         time.Now,
	}
}

// Start returns the provider URL the browser is redirected to.
func (s *SSO) Start() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	state := base64.RawURLEncoding.EncodeToString(b)

	s.mu.Lock()
	now := s.now()
	for k, exp := range s.states {
		if exp.Before(now) {
			delete(s.states, k)
		}
	}
	s.states[state] = now.Add(s.stateTTL)
	s.mu.Unlock()

	return s.oauth.AuthCodeURL(state, oauth2.AccessTypeOnline), nil
}

func (s *SSO) consumeState(state string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	exp, ok := s.states[state]
	if !ok {
		return false
	}
	delete(s.states, state)
	return !exp.Before(s.now())
}

// Exchange trades the authorization code for a token and fetches the identity.
func (s *SSO) Exchange(ctx context.Context, code, state string) (*Identity, error) {
	if state == "" || !s.consumeState(state) {
		return nil, ErrBadState
	}
	if s.HTTPClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, s.HTTPClient)
	}
	tok, err := s.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("sso token exchange: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.userinfoURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.oauth.Client(ctx, tok).Do(req)
	if err != nil {
		return nil, fmt.Errorf("sso userinfo: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("sso userinfo: status %d: %s", resp.StatusCode, body)
	}
	var id Identity
	if err := json.NewDecoder(resp.Body).Decode(&id); err != nil {
		return nil, fmt.Errorf("sso userinfo decode: %w", err)
	}
	if id.Subject == "" {
		return nil, errors.New("sso userinfo: missing subject")
	}
	return &id, nil
}
