package person_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ovaphlow/pitchfork/service-library/internal/person"
	"github.com/ovaphlow/pitchfork/service-library/internal/person/entity"
	"github.com/ovaphlow/pitchfork/service-library/internal/person/persontest"
	"github.com/ovaphlow/pitchfork/service-library/pkg/utilities"
)

func seed(store *persontest.MemStore) {
	store.Put(&entity.Person{ID: "1", FirstName: "Mario", LastName: "Rossi", Email: "mario@example.com", Gender: "M", Age: 40})
	store.Put(&entity.Person{ID: "2", FirstName: "Giulia", LastName: "Bianchi", Email: "giulia@example.com", Gender: "F", Age: 29})
	store.Put(&entity.Person{ID: "3", FirstName: "Luca", LastName: "Verdi", Email: "lv@mail.it", Gender: "M", Age: 51})
}

func TestListFilter(t *testing.T) {
	store := persontest.NewMemStore()
	seed(store)
	svc := person.NewService(store)
	ctx := context.Background()

	all, err := svc.List(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "Bianchi", all[0].LastName)

	byEmail, err := svc.List(ctx, "MAIL.IT")
	require.NoError(t, err)
	require.Len(t, byEmail, 1)
	assert.Equal(t, "3", byEmail[0].ID)

	byName, err := svc.List(ctx, "gIu")
	require.NoError(t, err)
	require.Len(t, byName, 1)
	assert.Equal(t, "2", byName[0].ID)
}

func TestCompleteProfileValidation(t *testing.T) {
	store := persontest.NewMemStore()
	store.Put(entity.Placeholder("p1", "new@example.com"))
	svc := person.NewService(store)
	ctx := context.Background()

	_, err := svc.CompleteProfile(ctx, "p1", person.Profile{FirstName: "Ada", LastName: "", Gender: "X", Age: 200})
	fe, ok := utilities.AsFieldErrors(err)
	require.True(t, ok, "expected field errors, got %v", err)
	assert.Contains(t, fe, "last_name")
	assert.Contains(t, fe, "gender")
	assert.Contains(t, fe, "age")

	p, err := svc.CompleteProfile(ctx, "p1", person.Profile{FirstName: " Ada ", LastName: "Lovelace", Gender: "F", Age: 36})
	require.NoError(t, err)
	assert.Equal(t, "Ada", p.FirstName)
	assert.True(t, p.IsComplete())

	_, err = svc.CompleteProfile(ctx, "missing", person.Profile{FirstName: "A", LastName: "B", Gender: "M", Age: 30})
	assert.ErrorIs(t, err, person.ErrNotFound)
}

func TestToggleAdmin(t *testing.T) {
	store := persontest.NewMemStore()
	seed(store)
	svc := person.NewService(store)
	ctx := context.Background()

	p, err := svc.ToggleAdmin(ctx, "1")
	require.NoError(t, err)
	assert.True(t, p.IsAdmin)

	p, err = svc.ToggleAdmin(ctx, "1")
	require.NoError(t, err)
	assert.False(t, p.IsAdmin)

	_, err = svc.ToggleAdmin(ctx, "nope")
	assert.ErrorIs(t, err, person.ErrNotFound)
}

func TestEnsurePlaceholder(t *testing.T) {
	store := persontest.NewMemStore()
	svc := person.NewService(store)
	ctx := context.Background()

	p, created, err := svc.EnsurePlaceholder(ctx, "x", "x@example.com")
	require.NoError(t, err)
	assert.True(t, created)
	assert.False(t, p.IsComplete())

	_, created, err = svc.EnsurePlaceholder(ctx, "x", "x@example.com")
	require.NoError(t, err)
	assert.False(t, created)
}

func TestSetAdminByEmailAndDelete(t *testing.T) {
	store := persontest.NewMemStore()
	seed(store)
	svc := person.NewService(store)
	ctx := context.Background()

	require.NoError(t, svc.SetAdminByEmail(ctx, "GIULIA@example.com", true))
	p, err := svc.Get(ctx, "2")
	require.NoError(t, err)
	assert.True(t, p.IsAdmin)
	assert.ErrorIs(t, svc.SetAdminByEmail(ctx, "ghost@example.com", true), person.ErrNotFound)

	require.NoError(t, svc.Delete(ctx, "2"))
	assert.ErrorIs(t, svc.Delete(ctx, "2"), person.ErrNotFound)
}
