package catalog

import (
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-library/internal/storage"
	"github.com/ovaphlow/pitchfork/service-library/pkg/utilities"
)

// Handler exposes the catalog browser and the administrator's books panel.
type Handler struct {
	svc       *Service
	logger    *zap.SugaredLogger
	maxUpload int64
}

func NewHandler(svc *Service, logger *zap.SugaredLogger, maxUpload int64) *Handler {
	return &Handler{svc: svc, logger: logger, maxUpload: maxUpload}
}

// ParseID reads the numeric {id} path value.
func ParseID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	return id, err == nil
}

// Browse handles GET /api/books?q=&category=
func (h *Handler) Browse(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	items, err := h.svc.Browse(r.Context(), q.Get("q"), q.Get("category"))
	if err != nil {
		h.writeErr(w, "list books", err)
		return
	}
	utilities.WriteJSON(w, http.StatusOK, items)
}

// Categories handles GET /api/books/categories
func (h *Handler) Categories(w http.ResponseWriter, r *http.Request) {
	cats, err := h.svc.Categories(r.Context())
	if err != nil {
		h.writeErr(w, "list categories", err)
		return
	}
	utilities.WriteJSON(w, http.StatusOK, cats)
}

// AdminList handles GET /api/admin/books?q=
func (h *Handler) AdminList(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.AdminList(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		h.writeErr(w, "list books", err)
		return
	}
	utilities.WriteJSON(w, http.StatusOK, items)
}

// Create handles POST /api/admin/books
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var d Draft
	if err := utilities.DecodeJSON(r, &d); err != nil {
		utilities.WriteError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	it, err := h.svc.Create(r.Context(), d)
	if err != nil {
		h.writeErr(w, "create book", err)
		return
	}
	h.logger.Infow("book created", "item", it.ID, "title", it.Title)
	utilities.WriteJSON(w, http.StatusCreated, it)
}

// Update handles PUT /api/admin/books/{id}
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseID(r)
	if !ok {
		utilities.WriteError(w, http.StatusBadRequest, "invalid id")
		return
	}
	var d Draft
	if err := utilities.DecodeJSON(r, &d); err != nil {
		utilities.WriteError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	it, err := h.svc.Update(r.Context(), id, d)
	if err != nil {
		h.writeErr(w, "update book", err)
		return
	}
	utilities.WriteJSON(w, http.StatusOK, it)
}

// Delete handles DELETE /api/admin/books/{id}
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseID(r)
	if !ok {
		utilities.WriteError(w, http.StatusBadRequest, "invalid id")
		return
	}
	if err := h.svc.Delete(r.Context(), id); err != nil {
		h.writeErr(w, "delete book", err)
		return
	}
	h.logger.Infow("book deleted", "item", id)
	w.WriteHeader(http.StatusNoContent)
}

// UploadCover handles POST /api/admin/books/{id}/cover as multipart form field "file".
func (h *Handler) UploadCover(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseID(r)
	if !ok {
		utilities.WriteError(w, http.StatusBadRequest, "invalid id")
		return
	}
	// leave room for the multipart envelope
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload+1<<20)
	f, hdr, err := r.FormFile("file")
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			utilities.WriteError(w, http.StatusRequestEntityTooLarge, storage.ErrTooLarge.Error())
			return
		}
		utilities.WriteError(w, http.StatusBadRequest, "file field required")
		return
	}
	defer f.Close()
	it, err := h.svc.UploadCover(r.Context(), id, hdr.Header.Get("Content-Type"), hdr.Size, f)
	if err != nil {
		h.writeErr(w, "upload cover", err)
		return
	}
	utilities.WriteJSON(w, http.StatusOK, it)
}

func (h *Handler) writeErr(w http.ResponseWriter, op string, err error) {
	if fe, ok := utilities.AsFieldErrors(err); ok {
		utilities.WriteValidation(w, fe)
		return
	}
	switch {
	case errors.Is(err, ErrNotFound):
		utilities.WriteError(w, http.StatusNotFound, "book not found")
	case errors.Is(err, ErrInUse):
		utilities.WriteError(w, http.StatusConflict, "book has loans and cannot be deleted")
	case errors.Is(err, storage.ErrNotImage):
		utilities.WriteError(w, http.StatusUnsupportedMediaType, err.Error())
	case errors.Is(err, storage.ErrTooLarge):
		utilities.WriteError(w, http.StatusRequestEntityTooLarge, err.Error())
	default:
		h.logger.Errorw(op+" failed", "err", err)
		utilities.WriteError(w, http.StatusInternalServerError, op+" failed")
	}
}
