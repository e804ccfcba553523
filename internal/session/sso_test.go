package session_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ovaphlow/pitchfork/service-library/internal/person/entity"
	"github.com/ovaphlow/pitchfork/service-library/internal/session"
)

func newProvider(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("POST /token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		if r.Form.Get("code") != "good-code" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"provider-at","token_type":"Bearer","expires_in":3600}`))
	})
	mux.HandleFunc("GET /userinfo", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer provider-at" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"sub": "g-123", "email": "sso@example.com"})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newSSO(srv *httptest.Server) *session.SSO {
	s := session.NewSSO(session.SSOConfig{
		ClientID:     "client",
		ClientSecret: "secret",
		AuthURL:      srv.URL + "/authorize",
		TokenURL:     srv.URL + "/token",
		UserinfoURL:  srv.URL + "/userinfo",
		RedirectURL:  "http://localhost/api/auth/sso/callback",
		Scopes:       []string{"openid", "email"},
	})
	s.HTTPClient = srv.Client()
	return s
}

func stateOf(t *testing.T, raw string) string {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "/authorize", u.Path)
	assert.Equal(t, "client", u.Query().Get("client_id"))
	st := u.Query().Get("state")
	require.NotEmpty(t, st)
	return st
}

func TestSSOCallbackAwaitsProvisioning(t *testing.T) {
	f := newFixture(t)
	f.gate.SSO = newSSO(newProvider(t))
	// the database trigger lands the placeholder while we poll
	f.people.OnGet = func(id string, call int) {
		if call == 2 {
			f.people.Put(entity.Placeholder(id, "sso@example.com"))
		}
	}
	ctx := context.Background()

	raw, err := f.gate.SSOStart()
	require.NoError(t, err)
	state := stateOf(t, raw)

	res, err := f.gate.SSOCallback(ctx, "good-code", state)
	require.NoError(t, err)
	assert.Equal(t, "sso@example.com", res.Session.Email)
	assert.Equal(t, session.StateProfileIncomplete, res.Session.State)
	assert.Equal(t, 2, f.people.GetCalls)

	// a state value is single use
	_, err = f.gate.SSOCallback(ctx, "good-code", state)
	assert.ErrorIs(t, err, session.ErrBadState)
}

func TestSSOCallbackLinksExistingAccount(t *testing.T) {
	f := newFixture(t)
	f.gate.SSO = newSSO(newProvider(t))
	ctx := context.Background()
	res, err := f.gate.Register(ctx, session.RegisterRequest{
		Email: "sso@example.com", Password: "secret1", ConfirmPassword: "secret1",
		Profile: validRegistration().Profile,
	})
	require.NoError(t, err)

	raw, err := f.gate.SSOStart()
	require.NoError(t, err)
	got, err := f.gate.SSOCallback(ctx, "good-code", stateOf(t, raw))
	require.NoError(t, err)
	assert.Equal(t, res.Session.AccountID, got.Session.AccountID)
	assert.Equal(t, session.StatePatronHome, got.Session.State)
}

func TestSSOCallbackRejectsBadCode(t *testing.T) {
	f := newFixture(t)
	f.gate.SSO = newSSO(newProvider(t))

	raw, err := f.gate.SSOStart()
	require.NoError(t, err)
	_, err = f.gate.SSOCallback(context.Background(), "bad-code", stateOf(t, raw))
	require.Error(t, err)

	_, err = f.gate.SSOCallback(context.Background(), "good-code", "forged")
	assert.ErrorIs(t, err, session.ErrBadState)
}
