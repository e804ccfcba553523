package person_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-library/internal/person"
	"github.com/ovaphlow/pitchfork/service-library/internal/person/entity"
	"github.com/ovaphlow/pitchfork/service-library/internal/person/persontest"
)

func TestHandlerAdminUsers(t *testing.T) {
	const id = "3f0c2a8e-6a3b-4c1e-9d5e-2b7f1a0c9e44"
	store := persontest.NewMemStore()
	store.Put(&entity.Person{ID: id, FirstName: "Mario", LastName: "Rossi", Email: "mario@example.com", Gender: "M", Age: 40})
	h := person.NewHandler(person.NewService(store), zap.NewNop().Sugar())
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/admin/users", h.List)
	mux.HandleFunc("POST /api/admin/users/{id}/admin", h.ToggleAdmin)
	mux.HandleFunc("DELETE /api/admin/users/{id}", h.Delete)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/admin/users?q=ross", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var list []entity.Person
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/admin/users/"+id+"/admin", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"is_admin":true`)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/admin/users/not-a-uuid", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/admin/users/"+id, nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/admin/users/"+id, nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
