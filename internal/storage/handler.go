package storage

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"path/filepath"

	"go.uber.org/zap"
)

// Handler serves bucket objects read-only.
type Handler struct {
	bucket Bucket
	logger *zap.SugaredLogger
}

func NewHandler(bucket Bucket, logger *zap.SugaredLogger) *Handler {
	return &Handler{bucket: bucket, logger: logger}
}

// Get handles GET /storage/covers/{key}
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	rc, err := h.bucket.Open(r.Context(), key)
	if err != nil {
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrInvalidKey) {
			http.NotFound(w, r)
			return
		}
		h.logger.Errorw("open object failed", "key", key, "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	defer rc.Close()
	if ct := mime.TypeByExtension(filepath.Ext(key)); ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	w.Header().Set("Cache-Control", "public, max-age=86400")
	if _, err := io.Copy(w, rc); err != nil {
		h.logger.Debugw("object copy interrupted", "key", key, "err", err)
	}
}
