package account_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ovaphlow/pitchfork/service-library/internal/account"
	"github.com/ovaphlow/pitchfork/service-library/internal/account/accounttest"
)

func newService() (*account.Service, *accounttest.MemStore) {
	store := accounttest.NewMemStore()
	return account.NewService(store, account.BcryptHasher{Cost: 4}), store
}

func TestSignupAndAuthenticate(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()

	a, err := svc.Signup(ctx, "  Reader@Example.com ", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "reader@example.com", a.Email)

	view, err := svc.AuthenticatePassword(ctx, "reader@example.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, a.ID, view.ID)
	assert.Equal(t, int64(1), view.Version)

	_, err = svc.AuthenticatePassword(ctx, "reader@example.com", "wrong")
	assert.ErrorIs(t, err, account.ErrBadCredentials)

	_, err = svc.AuthenticatePassword(ctx, "nobody@example.com", "secret1")
	assert.ErrorIs(t, err, account.ErrBadCredentials)
}

func TestSignupDuplicateEmail(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()

	_, err := svc.Signup(ctx, "dup@example.com", "secret1")
	require.NoError(t, err)
	_, err = svc.Signup(ctx, "DUP@example.com", "secret2")
	assert.ErrorIs(t, err, account.ErrEmailTaken)
}

func TestLockAfterRepeatedFailures(t *testing.T) {
	svc, store := newService()
	svc.MaxFailed = 3
	ctx := context.Background()

	a, err := svc.Signup(ctx, "lock@example.com", "secret1")
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err = svc.AuthenticatePassword(ctx, "lock@example.com", "nope")
		require.ErrorIs(t, err, account.ErrBadCredentials)
	}
	got, ok := store.Get(a.ID)
	require.True(t, ok)
	assert.Equal(t, "locked", got.Status)

	_, err = svc.AuthenticatePassword(ctx, "lock@example.com", "secret1")
	assert.ErrorIs(t, err, account.ErrLocked)
}

func TestFindOrCreateSSO(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()

	created, isNew, err := svc.FindOrCreateSSO(ctx, "sub-1", "sso@example.com")
	require.NoError(t, err)
	assert.True(t, isNew)

	again, isNew, err := svc.FindOrCreateSSO(ctx, "sub-1", "sso@example.com")
	require.NoError(t, err)
	assert.False(t, isNew)
	assert.Equal(t, created.ID, again.ID)

	pw, err := svc.Signup(ctx, "both@example.com", "secret1")
	require.NoError(t, err)
	linked, isNew, err := svc.FindOrCreateSSO(ctx, "sub-2", "both@example.com")
	require.NoError(t, err)
	assert.False(t, isNew)
	assert.Equal(t, pw.ID, linked.ID)
}

func TestBumpVersion(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()

	a, err := svc.Signup(ctx, "v@example.com", "secret1")
	require.NoError(t, err)
	v, err := svc.BumpVersion(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), v)

	_, err = svc.GetMinimalAuthView(ctx, "missing")
	assert.ErrorIs(t, err, account.ErrNotFound)
}

func TestBcryptNeedsRehash(t *testing.T) {
	low := account.BcryptHasher{Cost: 4}
	hash, algo, err := low.Hash("pw")
	require.NoError(t, err)
	assert.Equal(t, "bcrypt:4", algo)
	assert.True(t, account.BcryptHasher{Cost: 5}.NeedsRehash(hash))
	assert.False(t, low.NeedsRehash(hash))
}
