package loan_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-library/internal/loan"
	"github.com/ovaphlow/pitchfork/service-library/internal/session"
)

func asPatron(id string, next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s := &session.Session{AccountID: id, State: session.StatePatronHome}
		next(w, r.WithContext(session.WithSession(r.Context(), s)))
	})
}

func TestHandlerPatronFlow(t *testing.T) {
	f := newFixture()
	h := loan.NewHandler(f.svc, zap.NewNop().Sugar())
	mux := http.NewServeMux()
	mux.Handle("POST /api/books/{id}/loans", asPatron("p1", h.Request))
	mux.Handle("GET /api/loans/mine", asPatron("p1", h.Mine))
	mux.Handle("POST /api/loans/{id}/return", asPatron("p1", h.ReturnMine))
	mux.HandleFunc("POST /api/admin/loans", h.Create)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/books/10/loans", nil))
	require.Equal(t, http.StatusCreated, rec.Code)
	var created map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Nil(t, created["end_date"])

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/books/10/loans", nil))
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/loans/"+created["id"].(string)+"/return", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/loans/mine", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var mine loan.Mine
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &mine))
	assert.Empty(t, mine.Active)
	assert.Len(t, mine.Completed, 1)

	rec = httptest.NewRecorder()
	body := `{"person_id":"p2","item_id":"11","start_date":"2024-01-01"}`
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/admin/loans", strings.NewReader(body)))
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), `"start_date":"2024-01-01"`)
}
