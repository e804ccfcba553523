package storage

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func TestUploaderStoresImages(t *testing.T) {
	b, err := NewFSBucket(t.TempDir(), "/storage/covers/")
	require.NoError(t, err)
	u := NewUploader(b, 1024)
	ctx := context.Background()

	url, err := u.Upload(ctx, "image/png", int64(len(pngHeader)), bytes.NewReader(pngHeader))
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(url, "/storage/covers/"))
	assert.True(t, strings.HasSuffix(url, ".png"))

	rc, err := b.Open(ctx, strings.TrimPrefix(url, "/storage/covers/"))
	require.NoError(t, err)
	defer rc.Close()
	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, pngHeader, got)
}

func TestUploaderRejects(t *testing.T) {
	b, err := NewFSBucket(t.TempDir(), "/c")
	require.NoError(t, err)
	u := NewUploader(b, 16)
	ctx := context.Background()

	tests := []struct {
		name        string
		contentType string
		size        int64
		body        []byte
		want        error
	}{
		{"declared text", "text/plain", 5, []byte("hello"), ErrNotImage},
		{"bad media type", ";;", 5, []byte("hello"), ErrNotImage},
		{"declared too large", "image/png", 17, pngHeader, ErrTooLarge},
		{"actual too large", "image/png", -1, bytes.Repeat([]byte{0x89}, 17), ErrTooLarge},
		{"sniffed not image", "image/png", 11, []byte("plain text."), ErrNotImage},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := u.Upload(ctx, tc.contentType, tc.size, bytes.NewReader(tc.body))
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestBucketKeys(t *testing.T) {
	b, err := NewFSBucket(t.TempDir(), "/c")
	require.NoError(t, err)
	ctx := context.Background()

	_, err = b.Put(ctx, "../escape", "image/png", bytes.NewReader(pngHeader))
	assert.ErrorIs(t, err, ErrInvalidKey)
	_, err = b.Open(ctx, "missing.png")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestHandlerServesObjects(t *testing.T) {
	b, err := NewFSBucket(t.TempDir(), "/storage/covers")
	require.NoError(t, err)
	_, err = b.Put(context.Background(), "abc.png", "image/png", bytes.NewReader(pngHeader))
	require.NoError(t, err)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /storage/covers/{key}", NewHandler(b, zap.NewNop().Sugar()).Get)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/storage/covers/abc.png", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Equal(t, pngHeader, rec.Body.Bytes())

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/storage/covers/nope.png", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
