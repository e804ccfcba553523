package translate_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-library/internal/translate"
)

func fakeDeepL(t *testing.T, status int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "DeepL-Auth-Key secret", r.Header.Get("Authorization"))
		assert.NoError(t, r.ParseForm())
		if status != http.StatusOK {
			w.WriteHeader(status)
			return
		}
		text := r.PostForm.Get("text")
		out := map[string]any{"translations": []map[string]string{{
			"text":                     "[" + r.PostForm.Get("target_lang") + "] " + text,
			"detected_source_language": "EN",
		}}}
		_ = json.NewEncoder(w).Encode(out)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestDeepLTranslate(t *testing.T) {
	srv := fakeDeepL(t, http.StatusOK)
	d := translate.NewDeepL("secret", srv.URL, time.Second)

	res, err := d.Translate(context.Background(), "hello", "")
	require.NoError(t, err)
	assert.Equal(t, "[IT] hello", res.TranslatedText)
	assert.Equal(t, "EN", res.DetectedSourceLang)
}

func TestDeepLErrors(t *testing.T) {
	_, err := translate.NewDeepL("", "http://unused", time.Second).Translate(context.Background(), "x", "IT")
	assert.ErrorIs(t, err, translate.ErrNoCredential)

	srv := fakeDeepL(t, http.StatusForbidden)
	_, err = translate.NewDeepL("secret", srv.URL, time.Second).Translate(context.Background(), "x", "IT")
	var up *translate.UpstreamError
	require.ErrorAs(t, err, &up)
	assert.Equal(t, http.StatusForbidden, up.Status)
	assert.Equal(t, "DeepL API error: 403", err.Error())
}

func TestProxyHandler(t *testing.T) {
	deepl := fakeDeepL(t, http.StatusOK)
	h := translate.NewHandler(translate.NewDeepL("secret", deepl.URL, time.Second), zap.NewNop().Sugar(), "")

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/functions/v1/translate", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), "apikey")

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/functions/v1/translate", strings.NewReader(`{"target_lang":"IT"}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Text parameter is required")

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/functions/v1/translate", strings.NewReader(`{"text":"good morning"}`)))
	require.Equal(t, http.StatusOK, rec.Code)
	var res translate.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, "[IT] good morning", res.TranslatedText)
}

func TestProxyHandlerErrorStatuses(t *testing.T) {
	h := translate.NewHandler(translate.NewDeepL("", "http://unused", time.Second), zap.NewNop().Sugar(), "")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"text":"x"}`)))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "DeepL API key not configured")

	deepl := fakeDeepL(t, http.StatusTooManyRequests)
	h = translate.NewHandler(translate.NewDeepL("secret", deepl.URL, time.Second), zap.NewNop().Sugar(), "")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"text":"x"}`)))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Contains(t, rec.Body.String(), "DeepL API error: 429")
}

func TestProxyClientThroughHandler(t *testing.T) {
	deepl := fakeDeepL(t, http.StatusOK)
	proxy := httptest.NewServer(translate.NewHandler(translate.NewDeepL("secret", deepl.URL, time.Second), zap.NewNop().Sugar(), ""))
	t.Cleanup(proxy.Close)

	c := translate.NewProxyClient(proxy.URL, "anon", time.Second)
	res, err := c.Translate(context.Background(), "book", "DE")
	require.NoError(t, err)
	assert.Equal(t, "[DE] book", res.TranslatedText)

	_, err = c.Translate(context.Background(), "", "DE")
	var up *translate.UpstreamError
	require.ErrorAs(t, err, &up)
	assert.Equal(t, http.StatusBadRequest, up.Status)
}
