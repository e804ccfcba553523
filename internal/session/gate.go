package session

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-library/internal/account"
	accountentity "github.com/ovaphlow/pitchfork/service-library/internal/account/entity"
	"github.com/ovaphlow/pitchfork/service-library/internal/oidc"
	"github.com/ovaphlow/pitchfork/service-library/internal/person"
	personentity "github.com/ovaphlow/pitchfork/service-library/internal/person/entity"
	"github.com/ovaphlow/pitchfork/service-library/pkg/utilities"
)

var (
	ErrUnauthenticated = errors.New("not signed in")
	ErrProvisionFailed = errors.New("profile provisioning failed")
)

// Accounts is satisfied by *account.Service.
type Accounts interface {
	AuthenticatePassword(ctx context.Context, email, password string) (*accountentity.MinimalAuthView, error)
	Signup(ctx context.Context, email, password string) (*accountentity.Account, error)
	FindOrCreateSSO(ctx context.Context, subject, email string) (*accountentity.Account, bool, error)
	BumpVersion(ctx context.Context, id string) (int64, error)
	Discard(ctx context.Context, id string) error
	GetMinimalAuthView(ctx context.Context, id string) (*accountentity.MinimalAuthView, error)
}

// People is satisfied by *person.Service.
type People interface {
	Get(ctx context.Context, id string) (*personentity.Person, error)
	Register(ctx context.Context, id, email string, prof person.Profile) (*personentity.Person, error)
	EnsurePlaceholder(ctx context.Context, id, email string) (*personentity.Person, bool, error)
	CompleteProfile(ctx context.Context, id string, prof person.Profile) (*personentity.Person, error)
}

// Tokens is satisfied by *oidc.OIDCService.
type Tokens interface {
	Issue(ctx context.Context, v *accountentity.MinimalAuthView, clientID string) (*oidc.TokenPair, error)
	VerifyAccess(token string) (*oidc.Claims, error)
	ValidateRefreshToken(ctx context.Context, token string) (*oidc.RefreshSession, bool)
	RevokeRefreshToken(ctx context.Context, token string) (bool, error)
}

// Result is handed back after every successful sign-in.
type Result struct {
	Session *Session        `json:"session"`
	Tokens  *oidc.TokenPair `json:"tokens"`
	Landing string          `json:"landing"`
}

// Gate authenticates principals and resolves their session state.
type Gate struct {
	accounts Accounts
	people   People
	tokens   Tokens
	logger   *zap.SugaredLogger

	// SSO is nil when single sign-on is not configured.
	SSO      *SSO
	Retry    RetryPolicy
	ClientID string
}

func NewGate(accounts Accounts, people People, tokens Tokens, logger *zap.SugaredLogger) *Gate {
	return &Gate{
		accounts: accounts,
		people:   people,
		tokens:   tokens,
		logger:   logger,
		Retry:    DefaultRetryPolicy(),
		ClientID: "web",
	}
}

// RegisterRequest is the signup form.
type RegisterRequest struct {
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
	person.Profile
}

// Validate runs every check that needs no I/O.
func (r *RegisterRequest) Validate() error {
	fe := utilities.FieldErrors{}
	r.Email = strings.TrimSpace(r.Email)
	if r.Email == "" || !strings.Contains(r.Email, "@") {
		fe.Add("email", "a valid email is required")
	}
	if len(r.Password) < 6 {
		fe.Add("password", "must be at least 6 characters")
	}
	if r.Password != r.ConfirmPassword {
		fe.Add("confirm_password", "passwords do not match")
	}
	if err := r.Profile.Validate(); err != nil {
		if pfe, ok := utilities.AsFieldErrors(err); ok {
			for k, v := range pfe {
				fe.Add(k, v)
			}
		}
	}
	return fe.Err()
}

// Register creates a password account together with its person record.
func (g *Gate) Register(ctx context.Context, req RegisterRequest) (*Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	a, err := g.accounts.Signup(ctx, req.Email, req.Password)
	if err != nil {
		return nil, err
	}
	p, err := g.people.Register(ctx, a.ID, a.Email, req.Profile)
	if err != nil {
		if derr := g.accounts.Discard(ctx, a.ID); derr != nil {
			g.logger.Errorw("discard account after failed profile write", "account", a.ID, "err", derr)
		}
		return nil, fmt.Errorf("register profile: %w", err)
	}
	g.logger.Infow("account registered", "account", a.ID)
	return g.issue(ctx, &accountentity.MinimalAuthView{ID: a.ID, Email: a.Email, Version: a.Version}, p)
}

// Login authenticates by email and password.
func (g *Gate) Login(ctx context.Context, email, password string) (*Result, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		fe := utilities.FieldErrors{}
		if strings.TrimSpace(email) == "" {
			fe.Add("email", "required")
		}
		if password == "" {
			fe.Add("password", "required")
		}
		return nil, fe
	}
	view, err := g.accounts.AuthenticatePassword(ctx, email, password)
	if err != nil {
		return nil, err
	}
	p, err := g.awaitPerson(ctx, view)
	if err != nil {
		return nil, err
	}
	return g.issue(ctx, view, p)
}

// SSOStart returns the identity provider URL to redirect to.
func (g *Gate) SSOStart() (string, error) {
	if g.SSO == nil {
		return "", ErrSSODisabled
	}
	return g.SSO.Start()
}

// SSOCallback completes the redirect flow, waiting for the person record the
// provisioning trigger writes for new accounts.
func (g *Gate) SSOCallback(ctx context.Context, code, state string) (*Result, error) {
	if g.SSO == nil {
		return nil, ErrSSODisabled
	}
	id, err := g.SSO.Exchange(ctx, code, state)
	if err != nil {
		return nil, err
	}
	a, created, err := g.accounts.FindOrCreateSSO(ctx, id.Subject, id.Email)
	if err != nil {
		return nil, err
	}
	if created {
		g.logger.Infow("sso account created", "account", a.ID)
	}
	view := &accountentity.MinimalAuthView{ID: a.ID, Email: a.Email, Version: a.Version}
	p, err := g.awaitPerson(ctx, view)
	if err != nil {
		return nil, err
	}
	return g.issue(ctx, view, p)
}

func (g *Gate) awaitPerson(ctx context.Context, view *accountentity.MinimalAuthView) (*personentity.Person, error) {
	p, outcome, err := AwaitPerson(ctx, g.people, g.Retry, view.ID, view.Email)
	switch outcome {
	case ProvisionFailed:
		g.logger.Errorw("profile provisioning failed", "account", view.ID, "err", err)
		return nil, fmt.Errorf("%w: %v", ErrProvisionFailed, err)
	case ProvisionCreated:
		g.logger.Warnw("profile not provisioned in time, placeholder inserted", "account", view.ID)
	}
	return p, nil
}

func (g *Gate) issue(ctx context.Context, view *accountentity.MinimalAuthView, p *personentity.Person) (*Result, error) {
	pair, err := g.tokens.Issue(ctx, view, g.ClientID)
	if err != nil {
		return nil, err
	}
	s := &Session{AccountID: view.ID, Email: view.Email, Version: view.Version, Profile: p, State: StateFor(p)}
	return &Result{Session: s, Tokens: pair, Landing: Landing(s.State)}, nil
}

// Refresh rotates a refresh token.
func (g *Gate) Refresh(ctx context.Context, refreshToken string) (*Result, error) {
	rs, ok := g.tokens.ValidateRefreshToken(ctx, refreshToken)
	if !ok {
		return nil, ErrUnauthenticated
	}
	view, err := g.accounts.GetMinimalAuthView(ctx, rs.AccountID)
	if err != nil {
		if errors.Is(err, account.ErrNotFound) {
			return nil, ErrUnauthenticated
		}
		return nil, err
	}
	revoked, err := g.tokens.RevokeRefreshToken(ctx, refreshToken)
	if err != nil {
		return nil, err
	}
	if !revoked {
		// a concurrent refresh consumed the token first
		return nil, ErrUnauthenticated
	}
	p, err := g.people.Get(ctx, view.ID)
	if err != nil && !errors.Is(err, person.ErrNotFound) {
		return nil, err
	}
	return g.issue(ctx, view, p)
}

// SignOut revokes the refresh token and invalidates outstanding access tokens.
func (g *Gate) SignOut(ctx context.Context, s *Session, refreshToken string) (*Session, error) {
	if refreshToken != "" {
		if _, err := g.tokens.RevokeRefreshToken(ctx, refreshToken); err != nil {
			return nil, err
		}
	}
	if s != nil && s.AccountID != "" {
		if _, err := g.accounts.BumpVersion(ctx, s.AccountID); err != nil {
			return nil, err
		}
		g.logger.Infow("signed out", "account", s.AccountID)
	}
	return &Session{State: StateUnauthenticated}, nil
}

// Resolve turns an access token into a session.
func (g *Gate) Resolve(ctx context.Context, accessToken string) (*Session, error) {
	claims, err := g.tokens.VerifyAccess(accessToken)
	if err != nil {
		return nil, ErrUnauthenticated
	}
	view, err := g.accounts.GetMinimalAuthView(ctx, claims.AccountID)
	if err != nil {
		if errors.Is(err, account.ErrNotFound) {
			return nil, ErrUnauthenticated
		}
		return nil, err
	}
	if view.Version != claims.Version {
		return nil, ErrUnauthenticated
	}
	return g.Reload(ctx, &Session{AccountID: view.ID, Email: view.Email, Version: view.Version})
}

// Reload re-reads the person record and recomputes the state.
func (g *Gate) Reload(ctx context.Context, s *Session) (*Session, error) {
	if s == nil || s.AccountID == "" {
		return &Session{State: StateUnauthenticated}, nil
	}
	p, err := g.people.Get(ctx, s.AccountID)
	if err != nil && !errors.Is(err, person.ErrNotFound) {
		return nil, err
	}
	out := *s
	out.Profile = p
	out.State = StateFor(p)
	return &out, nil
}

// CompleteProfile stores the owner's profile and returns the reloaded session.
func (g *Gate) CompleteProfile(ctx context.Context, s *Session, prof person.Profile) (*Session, error) {
	if s == nil || s.AccountID == "" {
		return nil, ErrUnauthenticated
	}
	if _, err := g.people.CompleteProfile(ctx, s.AccountID, prof); err != nil {
		return nil, err
	}
	return g.Reload(ctx, s)
}
