package session_test

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-library/internal/account"
	"github.com/ovaphlow/pitchfork/service-library/internal/account/accounttest"
	"github.com/ovaphlow/pitchfork/service-library/internal/oidc"
	"github.com/ovaphlow/pitchfork/service-library/internal/oidc/oidctest"
	"github.com/ovaphlow/pitchfork/service-library/internal/person"
	personentity "github.com/ovaphlow/pitchfork/service-library/internal/person/entity"
	"github.com/ovaphlow/pitchfork/service-library/internal/person/persontest"
	"github.com/ovaphlow/pitchfork/service-library/internal/session"
	"github.com/ovaphlow/pitchfork/service-library/pkg/utilities"
)

type fixture struct {
	gate     *session.Gate
	accounts *account.Service
	accStore *accounttest.MemStore
	people   *persontest.MemStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	accStore := accounttest.NewMemStore()
	accounts := account.NewService(accStore, account.BcryptHasher{Cost: 4})
	people := persontest.NewMemStore()
	tokens, err := oidc.NewOIDCService(oidctest.NewMemRefresh(), oidc.Config{Issuer: "library-test"})
	require.NoError(t, err)
	g := session.NewGate(accounts, person.NewService(people), tokens, zap.NewNop().Sugar())
	g.Retry = session.RetryPolicy{MaxAttempts: 2, Delay: time.Millisecond}
	return &fixture{gate: g, accounts: accounts, accStore: accStore, people: people}
}

func validRegistration() session.RegisterRequest {
	return session.RegisterRequest{
		Email:           "reader@example.com",
		Password:        "secret1",
		ConfirmPassword: "secret1",
		Profile:         person.Profile{FirstName: "Mario", LastName: "Rossi", Gender: "M", Age: 40},
	}
}

func TestRegisterValidatesBeforeAnyWrite(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	req := validRegistration()
	req.Password, req.ConfirmPassword = "abc", "abd"
	req.Age = 0
	_, err := f.gate.Register(ctx, req)
	fe, ok := utilities.AsFieldErrors(err)
	require.True(t, ok, "expected field errors, got %v", err)
	assert.Contains(t, fe, "password")
	assert.Contains(t, fe, "confirm_password")
	assert.Contains(t, fe, "age")

	_, err = f.accStore.GetByEmail(ctx, "reader@example.com")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestRegisterThenResolve(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.gate.Register(ctx, validRegistration())
	require.NoError(t, err)
	assert.Equal(t, session.StatePatronHome, res.Session.State)
	assert.Equal(t, "/", res.Landing)
	require.NotEmpty(t, res.Tokens.AccessToken)

	s, err := f.gate.Resolve(ctx, res.Tokens.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, res.Session.AccountID, s.AccountID)
	assert.Equal(t, "Rossi", s.Profile.LastName)

	_, err = f.gate.Register(ctx, validRegistration())
	assert.ErrorIs(t, err, account.ErrEmailTaken)
}

func TestLoginInsertsPlaceholderWhenProfileMissing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a, err := f.accounts.Signup(ctx, "orphan@example.com", "secret1")
	require.NoError(t, err)

	res, err := f.gate.Login(ctx, "orphan@example.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, session.StateProfileIncomplete, res.Session.State)
	assert.Equal(t, "/complete-profile", res.Landing)
	assert.Equal(t, a.ID, res.Session.Profile.ID)

	_, err = f.gate.Login(ctx, "orphan@example.com", "wrong")
	assert.ErrorIs(t, err, account.ErrBadCredentials)

	_, err = f.gate.Login(ctx, "", "")
	_, ok := utilities.AsFieldErrors(err)
	assert.True(t, ok)
}

func TestCompleteProfileMovesToHome(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.accounts.Signup(ctx, "new@example.com", "secret1")
	require.NoError(t, err)
	res, err := f.gate.Login(ctx, "new@example.com", "secret1")
	require.NoError(t, err)
	require.Equal(t, session.StateProfileIncomplete, res.Session.State)

	s, err := f.gate.CompleteProfile(ctx, res.Session, person.Profile{FirstName: "Giulia", LastName: "Bianchi", Gender: "F", Age: 29})
	require.NoError(t, err)
	assert.Equal(t, session.StatePatronHome, s.State)

	_, err = f.people.SetAdmin(ctx, s.AccountID, true)
	require.NoError(t, err)
	s, err = f.gate.Reload(ctx, s)
	require.NoError(t, err)
	assert.Equal(t, session.StateAdminHome, s.State)
	assert.Equal(t, "/admin", session.Landing(s.State))
}

func TestSignOutRevokesTokens(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res, err := f.gate.Register(ctx, validRegistration())
	require.NoError(t, err)

	s, err := f.gate.SignOut(ctx, res.Session, res.Tokens.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, session.StateUnauthenticated, s.State)

	_, err = f.gate.Resolve(ctx, res.Tokens.AccessToken)
	assert.ErrorIs(t, err, session.ErrUnauthenticated)
	_, err = f.gate.Refresh(ctx, res.Tokens.RefreshToken)
	assert.ErrorIs(t, err, session.ErrUnauthenticated)
}

func TestRefreshRotates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res, err := f.gate.Register(ctx, validRegistration())
	require.NoError(t, err)

	next, err := f.gate.Refresh(ctx, res.Tokens.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, res.Tokens.RefreshToken, next.Tokens.RefreshToken)
	assert.Equal(t, session.StatePatronHome, next.Session.State)

	_, err = f.gate.Refresh(ctx, res.Tokens.RefreshToken)
	assert.ErrorIs(t, err, session.ErrUnauthenticated)
}

func TestConcurrentRefreshIssuesOnePair(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res, err := f.gate.Register(ctx, validRegistration())
	require.NoError(t, err)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.gate.Refresh(ctx, res.Tokens.RefreshToken)
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
				return
			}
			assert.ErrorIs(t, err, session.ErrUnauthenticated)
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, succeeded)
}

type failingPeople struct {
	*person.Service
	err error
}

func (p failingPeople) Register(context.Context, string, string, person.Profile) (*personentity.Person, error) {
	return nil, p.err
}

func TestRegisterDiscardsAccountWhenProfileFails(t *testing.T) {
	accStore := accounttest.NewMemStore()
	accounts := account.NewService(accStore, account.BcryptHasher{Cost: 4})
	tokens, err := oidc.NewOIDCService(oidctest.NewMemRefresh(), oidc.Config{Issuer: "library-test"})
	require.NoError(t, err)
	people := person.NewService(persontest.NewMemStore())
	ctx := context.Background()

	writeFailed := errors.New("people table unavailable")
	g := session.NewGate(accounts, failingPeople{Service: people, err: writeFailed}, tokens, zap.NewNop().Sugar())
	_, err = g.Register(ctx, validRegistration())
	assert.ErrorIs(t, err, writeFailed)
	_, err = accStore.GetByEmail(ctx, "reader@example.com")
	assert.ErrorIs(t, err, sql.ErrNoRows)

	g = session.NewGate(accounts, people, tokens, zap.NewNop().Sugar())
	res, err := g.Register(ctx, validRegistration())
	require.NoError(t, err)
	assert.Equal(t, session.StatePatronHome, res.Session.State)
}

func TestStateForAndLanding(t *testing.T) {
	assert.Equal(t, session.StatePending, session.StateFor(nil))
	assert.Equal(t, "/login", session.Landing(session.StatePending))
	assert.Equal(t, "/login", session.Landing(session.StateUnauthenticated))
	assert.Equal(t, session.StateUnauthenticated, session.FromContext(context.Background()).State)
}

func TestSSODisabled(t *testing.T) {
	f := newFixture(t)
	_, err := f.gate.SSOStart()
	assert.ErrorIs(t, err, session.ErrSSODisabled)
	_, err = f.gate.SSOCallback(context.Background(), "code", "state")
	assert.ErrorIs(t, err, session.ErrSSODisabled)
}
